package main

import (
	"context"
	"errors"
	"expvar"
	"log"
	"net/http"
	"runtime"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	dynsec "github.com/hilthontt/dynboard/api-sdk"
	"github.com/hilthontt/dynboard/api-sdk/option"
	"github.com/hilthontt/dynboard/internal/infrastructure/configs"
	"github.com/hilthontt/dynboard/internal/infrastructure/events"
	"github.com/hilthontt/dynboard/internal/infrastructure/metrics"
	"github.com/hilthontt/dynboard/internal/infrastructure/ratelimiter"
	"github.com/hilthontt/dynboard/internal/infrastructure/statecache"
	"github.com/hilthontt/dynboard/internal/infrastructure/tracing"
	"github.com/hilthontt/dynboard/internal/infrastructure/ws"
	"github.com/hilthontt/dynboard/internal/presentation/api"
	"github.com/hilthontt/dynboard/internal/presentation/handler/audit"
	"github.com/hilthontt/dynboard/internal/presentation/handler/backups"
	"github.com/hilthontt/dynboard/internal/presentation/handler/health"
	"github.com/hilthontt/dynboard/internal/presentation/handler/ops"
	"github.com/hilthontt/dynboard/internal/presentation/handler/queue"
	"github.com/hilthontt/dynboard/internal/presentation/handler/state"
)

const (
	serviceName = "dynboard-api"
)

func main() {
	tracerCfg := tracing.NewDefaultConfig(serviceName)

	sh, err := tracing.InitTracer(tracerCfg)
	if err != nil {
		log.Fatalf("Failed to initialize the tracer: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	defer sh(ctx)

	logger := zap.Must(zap.NewProduction()).Sugar()
	defer logger.Sync()

	configPath := configs.DetermineConfigPath()
	cfg, err := configs.Load(configPath)
	if err != nil {
		log.Fatal(err)
	}

	clientOpts := []option.RequestOption{
		option.WithHTTPClient(&http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}),
	}
	if cfg.Upstream.BaseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(cfg.Upstream.BaseURL))
	}
	if cfg.Upstream.Token != "" {
		clientOpts = append(clientOpts, option.WithBearerToken(cfg.Upstream.Token))
	}
	if cfg.Upstream.RequestTimeout > 0 {
		clientOpts = append(clientOpts, option.WithRequestTimeout(cfg.Upstream.RequestTimeout))
	}
	client := dynsec.NewClient(clientOpts...)

	runner := client.Runner(dynsec.PollPolicy{
		MaxAttempts: cfg.Poller.MaxAttempts,
		Interval:    cfg.Poller.Interval,
	})

	stateCache := statecache.New(cfg.StateCache.TTL)

	hub := ws.NewHub(logger)
	go hub.Run()

	metricsHandler := metrics.Register(prometheus.DefaultRegisterer)

	healthHandler := health.NewHandler()
	stateHandler := state.NewHandler(client.State, stateCache, cfg.Upstream.DefaultBroker, logger)
	opsHandler := ops.NewHandler(&ops.SDKRunner{Base: *runner}, stateCache, cfg.Upstream.DefaultBroker, logger)
	queueHandler := queue.NewHandler(client.Queue, logger)
	auditHandler := audit.NewHandler(client.Audit, logger)
	backupsHandler := backups.NewHandler(client.Backup, logger)

	var cache ratelimiter.GetterSetter
	if cfg.Redis.Addr != "" {
		cache = ratelimiter.NewRedis(cfg.Redis.Addr, cfg.Redis.DB)
		logger.Infow("rate limiter backed by redis", "addr", cfg.Redis.Addr)
	}
	rl := ratelimiter.New(ratelimiter.Options{
		MaxRatePerSecond: cfg.RateLimiter.MaxRatePerSecond,
		MaxBurst:         cfg.RateLimiter.MaxBurst,
		Cache:            cache,
		CacheTTL:         cfg.RateLimiter.CacheTTL,
		SourceHeaderKey:  cfg.RateLimiter.SourceHeaderKey,
	})

	app := api.NewApplication(
		*cfg,
		healthHandler,
		stateHandler,
		opsHandler,
		queueHandler,
		auditHandler,
		backupsHandler,
		hub,
		metricsHandler,
		logger,
		rl,
	)

	expvar.Publish("goroutines", expvar.Func(func() any {
		return runtime.NumGoroutine()
	}))

	g, gctx := errgroup.WithContext(ctx)

	if cfg.Watcher.Enabled {
		watcher := events.NewQueueWatcher(client.Queue, hub, cfg.Watcher.Interval, cfg.Watcher.ListLimit, logger)
		g.Go(func() error {
			return watcher.Run(gctx)
		})
	}

	g.Go(func() error {
		defer cancel()
		return app.Run(app.Mount())
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal(err)
	}
}
