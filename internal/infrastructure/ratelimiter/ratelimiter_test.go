package ratelimiter

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAllow_ExhaustsBurst(t *testing.T) {
	rl := New(Options{MaxRatePerSecond: 1, MaxBurst: 3})

	for i := 0; i < 3; i++ {
		assert.True(t, rl.Allow("client-a"), "request %d should pass", i)
	}
	assert.False(t, rl.Allow("client-a"))

	// A different source has its own bucket.
	assert.True(t, rl.Allow("client-b"))
}

func TestAllow_RefillsOverTime(t *testing.T) {
	rl := New(Options{MaxRatePerSecond: 100, MaxBurst: 1})

	assert.True(t, rl.Allow("k"))
	assert.False(t, rl.Allow("k"))

	time.Sleep(30 * time.Millisecond) // 100/s refills one token in 10ms
	assert.True(t, rl.Allow("k"))
}

func TestRemaining(t *testing.T) {
	rl := New(Options{MaxRatePerSecond: 1, MaxBurst: 5})

	assert.Equal(t, 5, rl.Remaining("k"))
	rl.Allow("k")
	rl.Allow("k")
	assert.Equal(t, 3, rl.Remaining("k"))
}

func TestGetSourceKey(t *testing.T) {
	rl := New(Options{MaxRatePerSecond: 1, SourceHeaderKey: "X-Forwarded-For"})

	r := httptest.NewRequest("GET", "/", nil)
	r.RemoteAddr = "10.0.0.1:1234"
	assert.Equal(t, "10.0.0.1:1234", rl.GetSourceKey(r))

	r.Header.Set("X-Forwarded-For", "203.0.113.9")
	assert.Equal(t, "203.0.113.9", rl.GetSourceKey(r))
}

func TestStateCodec(t *testing.T) {
	s := bucketState{tokens: 4, lastFill: 1700000000000}
	decoded, ok := decodeState(encodeState(s))
	assert.True(t, ok)
	assert.Equal(t, s, decoded)

	_, ok = decodeState("garbage")
	assert.False(t, ok)
}

func TestInMemory_Expiration(t *testing.T) {
	im := NewInMemory()
	defer im.Close()

	_ = im.SetWithExpiration("k", "v", 10*time.Millisecond)
	v, err := im.Get("k")
	assert.NoError(t, err)
	assert.Equal(t, "v", v)

	time.Sleep(20 * time.Millisecond)
	_, err = im.Get("k")
	assert.ErrorIs(t, err, ErrCacheMiss)
}
