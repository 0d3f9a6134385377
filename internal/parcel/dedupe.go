package parcel

import "sync"

// Index is the run-scoped set of seen parcel ids. First sight wins,
// repeats from retried or overlapping pages are discarded by the
// caller. The mutex keeps first-seen-wins intact if pages are ever
// fetched with bounded concurrency.
type Index struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

func NewIndex() *Index {
	return &Index{seen: make(map[string]struct{})}
}

// Accept registers the id on first sight and reports whether the caller
// should keep the record.
func (i *Index) Accept(id string) bool {
	i.mu.Lock()
	defer i.mu.Unlock()

	_, dup := i.seen[id]
	if dup {
		return false
	}
	i.seen[id] = struct{}{}
	return true
}

func (i *Index) Len() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return len(i.seen)
}
