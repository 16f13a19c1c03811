// Package ratelimiter throttles dashboard requests per source with a token
// bucket. Bucket state lives behind a small cache interface so a single
// process can use the in-memory store and multi-replica deployments can
// share buckets through redis.
package ratelimiter

import (
	"fmt"
	"math"
	"net/http"
	"strings"
	"sync"
	"time"
)

const (
	bucketKeyPrefix  = "rl:bucket:"
	defaultSourceKey = "X-RateLimit-Key"
)

type Limiter interface {
	Allow(sourceKey string) bool
	GetSourceKey(r *http.Request) string
	Remaining(sourceKey string) int
	GetMaxBurst() int
}

type bucketState struct {
	tokens   int
	lastFill int64 // Unix milliseconds
}

func encodeState(s bucketState) string {
	return fmt.Sprintf("%d:%d", s.tokens, s.lastFill)
}

func decodeState(v string) (bucketState, bool) {
	var s bucketState
	if _, err := fmt.Sscanf(strings.TrimSpace(v), "%d:%d", &s.tokens, &s.lastFill); err != nil {
		return bucketState{}, false
	}
	return s, true
}

type RateLimiter struct {
	ratePerMilli    float64
	maxBurst        int
	cache           GetterSetter
	cacheTTL        time.Duration
	sourceHeaderKey string
	// Per-key locks keep refill-and-take atomic for each source.
	locks sync.Map // map[string]*sync.Mutex
}

type Options struct {
	MaxRatePerSecond int
	MaxBurst         int
	Cache            GetterSetter
	CacheTTL         time.Duration
	SourceHeaderKey  string
}

func New(options Options) Limiter {
	if options.Cache == nil {
		options.Cache = NewInMemory()
	}
	if options.CacheTTL == 0 {
		options.CacheTTL = 10 * time.Second
	}
	if options.MaxBurst <= 0 {
		options.MaxBurst = options.MaxRatePerSecond
	}
	if options.SourceHeaderKey == "" {
		options.SourceHeaderKey = defaultSourceKey
	}

	return &RateLimiter{
		ratePerMilli:    float64(options.MaxRatePerSecond) / 1000.0,
		maxBurst:        options.MaxBurst,
		cache:           options.Cache,
		cacheTTL:        options.CacheTTL,
		sourceHeaderKey: options.SourceHeaderKey,
	}
}

func (rl *RateLimiter) lockFor(sourceKey string) *sync.Mutex {
	lock, _ := rl.locks.LoadOrStore(sourceKey, &sync.Mutex{})
	return lock.(*sync.Mutex)
}

func (rl *RateLimiter) load(sourceKey string) bucketState {
	full := bucketState{tokens: rl.maxBurst, lastFill: time.Now().UnixMilli()}

	raw, err := rl.cache.Get(bucketKeyPrefix + sourceKey)
	if err != nil {
		// Miss or cache failure: fail open with a full bucket.
		return full
	}
	state, ok := decodeState(raw)
	if !ok {
		return full
	}
	return state
}

func (rl *RateLimiter) store(sourceKey string, state bucketState) {
	_ = rl.cache.SetWithExpiration(bucketKeyPrefix+sourceKey, encodeState(state), rl.cacheTTL)
}

func (rl *RateLimiter) refill(state bucketState, now int64) bucketState {
	elapsed := now - state.lastFill
	if elapsed <= 0 {
		return state
	}

	refilled := float64(state.tokens) + float64(elapsed)*rl.ratePerMilli
	if refilled >= float64(rl.maxBurst) {
		return bucketState{tokens: rl.maxBurst, lastFill: now}
	}
	// Only whole tokens count.
	return bucketState{tokens: int(math.Floor(refilled)), lastFill: now}
}

func (rl *RateLimiter) Allow(sourceKey string) bool {
	lock := rl.lockFor(sourceKey)
	lock.Lock()
	defer lock.Unlock()

	state := rl.refill(rl.load(sourceKey), time.Now().UnixMilli())
	if state.tokens <= 0 {
		rl.store(sourceKey, state)
		return false
	}

	state.tokens--
	rl.store(sourceKey, state)
	return true
}

func (rl *RateLimiter) Remaining(sourceKey string) int {
	lock := rl.lockFor(sourceKey)
	lock.Lock()
	defer lock.Unlock()

	state := rl.refill(rl.load(sourceKey), time.Now().UnixMilli())
	rl.store(sourceKey, state)
	return state.tokens
}

func (rl *RateLimiter) GetMaxBurst() int {
	return rl.maxBurst
}

func (rl *RateLimiter) GetSourceKey(r *http.Request) string {
	if key := r.Header.Get(rl.sourceHeaderKey); key != "" {
		return key
	}
	return r.RemoteAddr
}
