package harvest

// PageRequest describes one page fetch: ask for Count records starting
// at Offset.
type PageRequest struct {
	Offset int64
	Count  int64
}

// Cursor hands out page requests in order and decides when the run is
// complete. It never talks to the network, the runner feeds observed
// page sizes back through Advance.
//
// A run ends when a page comes back short (the server ran out of
// records), when a page comes back empty, or when the record limit is
// reached. The limit counts records fetched in this run, so a resumed
// run with --limit 1000 fetches 1000 more records, not 1000 total.
type Cursor struct {
	pageSize int64
	limit    int64
	start    int64
	offset   int64
	fetched  int64
	expected int64
	done     bool
}

func NewCursor(pageSize, limit int64) *Cursor {
	if pageSize <= 0 {
		pageSize = 2000
	}
	if limit < 0 {
		limit = 0
	}
	return &Cursor{pageSize: pageSize, limit: limit}
}

// SetStartOffset positions the cursor for a resumed run. Must be called
// before the first Next.
func (c *Cursor) SetStartOffset(offset int64) {
	if offset > 0 {
		c.start = offset
		c.offset = offset
	}
}

// SetExpectedTotal records the server's count preflight result. Zero
// means unknown, the cursor works fine without it.
func (c *Cursor) SetExpectedTotal(total int64) {
	if total > 0 {
		c.expected = total
	}
}

// Target returns how many records this run is expected to fetch, or 0
// when unknown. Used for progress reporting only, the stop conditions
// never depend on it.
func (c *Cursor) Target() int64 {
	if c.expected <= 0 {
		return c.limit
	}
	remaining := c.expected - c.start
	if remaining < 0 {
		remaining = 0
	}
	if c.limit > 0 && c.limit < remaining {
		return c.limit
	}
	return remaining
}

// Next returns the next page request. ok is false once the run is
// complete, either because the server ran out of records or because the
// limit was reached.
func (c *Cursor) Next() (PageRequest, bool) {
	if c.done {
		return PageRequest{}, false
	}
	count := c.pageSize
	if c.limit > 0 {
		remaining := c.limit - c.fetched
		if remaining <= 0 {
			c.done = true
			return PageRequest{}, false
		}
		if remaining < count {
			count = remaining
		}
	}
	return PageRequest{Offset: c.offset, Count: count}, true
}

// Advance reports how many records the page request actually returned.
// A short or empty page marks the cursor done.
func (c *Cursor) Advance(req PageRequest, got int64) {
	if got < 0 {
		got = 0
	}
	c.fetched += got
	c.offset += got
	if got < req.Count {
		c.done = true
	}
}

// Offset is the position the next page would start at. After a failed
// or stopped run this is the resume offset.
func (c *Cursor) Offset() int64 { return c.offset }

// Fetched is the number of records retrieved so far in this run.
func (c *Cursor) Fetched() int64 { return c.fetched }
