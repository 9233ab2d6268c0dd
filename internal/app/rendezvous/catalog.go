package rendezvous

import (
	"sync"
	"time"

	"github.com/dkeye/Consult/internal/domain"
)

// Catalog serves read-only appointment details. Unknown ids get a generic
// 60 minute session scheduled now.
type Catalog struct {
	mu      sync.RWMutex
	entries map[string]domain.SessionDetails
	now     func() time.Time
}

func NewCatalog(seed ...domain.SessionDetails) *Catalog {
	c := &Catalog{entries: make(map[string]domain.SessionDetails), now: time.Now}
	for _, d := range seed {
		c.entries[d.ID] = d
	}
	return c
}

func (c *Catalog) Put(d domain.SessionDetails) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[d.ID] = d
}

func (c *Catalog) Get(id string) (domain.SessionDetails, bool) {
	if id == "" {
		return domain.SessionDetails{}, false
	}
	c.mu.RLock()
	d, ok := c.entries[id]
	c.mu.RUnlock()
	if ok {
		return d, true
	}
	return domain.SessionDetails{
		ID:              id,
		Title:           "Counseling session",
		CoachName:       "Coach Kim",
		ClientName:      "Client",
		ScheduledTime:   c.now().Truncate(time.Minute),
		DurationMinutes: 60,
	}, true
}
