package statecache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	dynsec "github.com/hilthontt/dynboard/api-sdk"
)

func TestPutGetInvalidate(t *testing.T) {
	c := New(time.Minute)

	_, ok := c.Get("main")
	assert.False(t, ok)

	st := &dynsec.BrokerState{Broker: "main"}
	c.Put("main", st)

	got, ok := c.Get("main")
	assert.True(t, ok)
	assert.Same(t, st, got)

	c.Invalidate("main")
	_, ok = c.Get("main")
	assert.False(t, ok)
}

func TestExpiry(t *testing.T) {
	c := New(10 * time.Millisecond)
	c.Put("main", &dynsec.BrokerState{Broker: "main"})

	time.Sleep(25 * time.Millisecond)
	_, ok := c.Get("main")
	assert.False(t, ok)
}

func TestCurrentBroker(t *testing.T) {
	c := New(time.Minute)

	assert.Equal(t, "fallback", c.CurrentBroker("fallback"))

	c.Put("edge-7", &dynsec.BrokerState{Broker: "edge-7"})
	assert.Equal(t, "edge-7", c.CurrentBroker("fallback"))

	// Invalidation drops state but not the broker context.
	c.Invalidate("edge-7")
	assert.Equal(t, "edge-7", c.CurrentBroker("fallback"))
}
