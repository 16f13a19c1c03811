package configs

import (
	"fmt"
	"time"

	"github.com/hilthontt/dynboard/internal/infrastructure/env"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	HTTP        HTTPConfig        `koanf:"http"`
	Upstream    UpstreamConfig    `koanf:"upstream"`
	Poller      PollerConfig      `koanf:"poller"`
	StateCache  StateCacheConfig  `koanf:"state_cache"`
	Watcher     WatcherConfig     `koanf:"watcher"`
	RateLimiter RateLimiterConfig `koanf:"rateLimiter"`
	Redis       RedisConfig       `koanf:"redis"`
}

type HTTPConfig struct {
	Host           string        `koanf:"host"`
	Port           uint16        `koanf:"port"`
	AllowedOrigins []string      `koanf:"allowed_origins"`
	ReadTimeout    time.Duration `koanf:"read_timeout"`
	WriteTimeout   time.Duration `koanf:"write_timeout"`
}

// UpstreamConfig locates the PostgREST-shaped control API and fixes the
// broker context operations default to when the request does not name one.
type UpstreamConfig struct {
	BaseURL        string        `koanf:"base_url"`
	Token          string        `koanf:"token"`
	DefaultBroker  string        `koanf:"default_broker"`
	RequestTimeout time.Duration `koanf:"request_timeout"`
}

// PollerConfig is the single polling policy every operation uses. The
// interval is fixed per attempt; there is no backoff.
type PollerConfig struct {
	MaxAttempts int           `koanf:"max_attempts"`
	Interval    time.Duration `koanf:"interval"`
}

type StateCacheConfig struct {
	TTL time.Duration `koanf:"ttl"`
}

type WatcherConfig struct {
	Enabled   bool          `koanf:"enabled"`
	Interval  time.Duration `koanf:"interval"`
	ListLimit int           `koanf:"list_limit"`
}

type RateLimiterConfig struct {
	MaxRatePerSecond int           `koanf:"maxRatePerSecond"`
	MaxBurst         int           `koanf:"maxBurst"`
	CacheTTL         time.Duration `koanf:"cacheTTL"`
	SourceHeaderKey  string        `koanf:"sourceHeaderKey"`
}

// RedisConfig, when Addr is set, moves the rate-limiter buckets to a shared
// redis so multiple dashboard replicas see the same counters.
type RedisConfig struct {
	Addr string `koanf:"addr"`
	DB   int    `koanf:"db"`
}

func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	applyDefaults(k)
	applyEnvOverrides(k)

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

func applyDefaults(k *koanf.Koanf) {
	setDefault(k, "http.host", "0.0.0.0")
	setDefault(k, "http.port", 8080)
	setDefault(k, "http.read_timeout", 10*time.Second)
	setDefault(k, "http.write_timeout", 30*time.Second)
	setDefault(k, "http.allowed_origins", []string{"*"})

	setDefault(k, "upstream.base_url", "http://localhost:3000")
	setDefault(k, "upstream.default_broker", "main")
	setDefault(k, "upstream.request_timeout", 15*time.Second)

	setDefault(k, "poller.max_attempts", 20)
	setDefault(k, "poller.interval", time.Second)

	setDefault(k, "state_cache.ttl", 30*time.Second)

	setDefault(k, "watcher.enabled", true)
	setDefault(k, "watcher.interval", 2*time.Second)
	setDefault(k, "watcher.list_limit", 100)

	setDefault(k, "rateLimiter.maxRatePerSecond", 10)
	setDefault(k, "rateLimiter.maxBurst", 20)
	setDefault(k, "rateLimiter.cacheTTL", 5*time.Minute)
	setDefault(k, "rateLimiter.sourceHeaderKey", "X-Forwarded-For")
}

func applyEnvOverrides(k *koanf.Koanf) {
	if host := env.GetString("HTTP_HOST", ""); host != "" {
		k.Set("http.host", host)
	}
	if port := env.GetInt("HTTP_PORT", 0); port > 0 {
		k.Set("http.port", port)
	}

	if base := env.GetString("DYNSEC_API_URL", ""); base != "" {
		k.Set("upstream.base_url", base)
	}
	if token := env.GetString("DYNSEC_API_TOKEN", ""); token != "" {
		k.Set("upstream.token", token)
	}
	if broker := env.GetString("DYNSEC_DEFAULT_BROKER", ""); broker != "" {
		k.Set("upstream.default_broker", broker)
	}

	if attempts := env.GetInt("POLLER_MAX_ATTEMPTS", 0); attempts > 0 {
		k.Set("poller.max_attempts", attempts)
	}
	if interval := env.GetDuration("POLLER_INTERVAL", 0); interval > 0 {
		k.Set("poller.interval", interval)
	}

	if ttl := env.GetDuration("STATE_CACHE_TTL", 0); ttl > 0 {
		k.Set("state_cache.ttl", ttl)
	}

	if addr := env.GetString("REDIS_ADDR", ""); addr != "" {
		k.Set("redis.addr", addr)
	}

	if maxRate := env.GetInt("RATE_LIMIT_MAX_RATE_PER_SECOND", 0); maxRate > 0 {
		k.Set("rateLimiter.maxRatePerSecond", maxRate)
	}
	if maxBurst := env.GetInt("RATE_LIMIT_MAX_BURST", 0); maxBurst > 0 {
		k.Set("rateLimiter.maxBurst", maxBurst)
	}
}

// setDefault only sets the value if the key doesn't already exist
func setDefault(k *koanf.Koanf, key string, value interface{}) {
	if !k.Exists(key) {
		k.Set(key, value)
	}
}
