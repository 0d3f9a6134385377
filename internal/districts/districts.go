package districts

import (
	"time"

	"github.com/lalmajed/citysh/lib/textutil"

	"github.com/antzucaro/matchr"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Some layers carry a district NAME where the parcel layer carries an
// id. The directory maps free-text names back onto directory ids so
// normalized records stay joinable either way.

const matchThreshold = 0.90

// District is one entry of the city's district directory.
type District struct {
	ID     string `json:"id"`
	NameAr string `json:"name_ar"`
	NameEn string `json:"name_en"`
}

type nameKey struct {
	normalized string
	id         string
}

type Directory struct {
	byID  map[string]District
	names []nameKey
	// the same handful of district names repeat across millions of
	// rows, resolving each once is enough
	cache *expirable.LRU[string, string]
}

func NewDirectory(entries []District) *Directory {
	d := &Directory{
		byID:  make(map[string]District, len(entries)),
		cache: expirable.NewLRU[string, string](2048, nil, time.Minute*15),
	}
	for _, entry := range entries {
		d.byID[entry.ID] = entry
		for _, name := range []string{entry.NameAr, entry.NameEn} {
			normalized := normalize(name)
			if normalized == "" {
				continue
			}
			d.names = append(d.names, nameKey{normalized: normalized, id: entry.ID})
		}
	}
	return d
}

func normalize(name string) string {
	return textutil.NormalizeName(textutil.StripParenthetical(name))
}

func (d *Directory) Get(id string) (District, bool) {
	district, ok := d.byID[id]
	return district, ok
}

func (d *Directory) Len() int {
	return len(d.byID)
}

// Resolve maps a free-text district name to a directory id, first by
// normalized equality, then by the closest JaroWinkler match at or
// above the threshold.
func (d *Directory) Resolve(name string) (string, bool) {
	normalized := normalize(name)
	if normalized == "" {
		return "", false
	}

	cached, hit := d.cache.Get(normalized)
	if hit {
		return cached, cached != ""
	}

	id := d.resolve(normalized)
	d.cache.Add(normalized, id)
	return id, id != ""
}

func (d *Directory) resolve(normalized string) string {
	for _, key := range d.names {
		if key.normalized == normalized {
			return key.id
		}
	}

	bestID := ""
	bestScore := 0.0
	for _, key := range d.names {
		similarity := matchr.JaroWinkler(normalized, key.normalized, false)
		if similarity > bestScore {
			bestScore = similarity
			bestID = key.id
		}
	}
	if bestScore >= matchThreshold {
		return bestID
	}
	return ""
}
