// Package statecache memoizes per-broker dynamic security state so the
// dashboard does not refetch the full blob on every page interaction. It
// also tracks the broker of the last successful fetch as the session's
// current broker context; the explicit accessor replaces the hidden global
// the original dashboard relied on.
package statecache

import (
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"

	dynsec "github.com/hilthontt/dynboard/api-sdk"
)

type Cache struct {
	states *gocache.Cache

	mu            sync.RWMutex
	currentBroker string
}

func New(ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Cache{
		states: gocache.New(ttl, 2*ttl),
	}
}

// Get returns the cached state for a broker, if any.
func (c *Cache) Get(broker string) (*dynsec.BrokerState, bool) {
	v, ok := c.states.Get(broker)
	if !ok {
		return nil, false
	}
	return v.(*dynsec.BrokerState), true
}

// Put stores a freshly fetched state and records the broker as the current
// broker context.
func (c *Cache) Put(broker string, state *dynsec.BrokerState) {
	c.states.SetDefault(broker, state)

	c.mu.Lock()
	c.currentBroker = broker
	c.mu.Unlock()
}

// Invalidate drops the cached state for a broker, e.g. after a mutation was
// applied.
func (c *Cache) Invalidate(broker string) {
	c.states.Delete(broker)
}

// CurrentBroker returns the broker of the most recent successful state
// fetch, falling back to the given default when none happened yet.
func (c *Cache) CurrentBroker(fallback string) string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.currentBroker != "" {
		return c.currentBroker
	}
	return fallback
}
