package ratelimiter

import (
	"context"
	"errors"
	"time"

	rdb "github.com/redis/go-redis/v9"
)

// Redis backs the limiter with a shared redis so multiple dashboard
// replicas count against the same buckets.
type Redis struct {
	c *rdb.Client
}

func NewRedis(addr string, db int) *Redis {
	return &Redis{c: rdb.NewClient(&rdb.Options{Addr: addr, DB: db})}
}

func (r *Redis) Get(key string) (string, error) {
	v, err := r.c.Get(context.Background(), key).Result()
	if errors.Is(err, rdb.Nil) {
		return "", ErrCacheMiss
	}
	return v, err
}

func (r *Redis) SetWithExpiration(key string, value string, expiration time.Duration) error {
	return r.c.Set(context.Background(), key, value, expiration).Err()
}

func (r *Redis) Close() error {
	return r.c.Close()
}
