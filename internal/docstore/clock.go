package docstore

import (
	"sync"
	"time"
)

// serverClock hands out strictly increasing UTC timestamps. Two messages
// appended back to back always get distinct, ordered creation times even if
// the wall clock does not advance between calls.
type serverClock struct {
	mu   sync.Mutex
	last time.Time
}

func (c *serverClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := time.Now().UTC()
	if !now.After(c.last) {
		now = c.last.Add(time.Microsecond)
	}
	c.last = now
	return now
}
