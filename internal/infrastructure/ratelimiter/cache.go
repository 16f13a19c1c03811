package ratelimiter

import (
	"errors"
	"time"
)

var ErrCacheMiss = errors.New("cache miss")

type GetterSetter interface {
	Get(key string) (string, error)
	SetWithExpiration(key string, value string, expiration time.Duration) error
	Close() error
}
