package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/hilthontt/dynboard/internal/infrastructure/configs"
	"github.com/hilthontt/dynboard/internal/infrastructure/ratelimiter"
	"github.com/hilthontt/dynboard/internal/infrastructure/ws"
	auditHandler "github.com/hilthontt/dynboard/internal/presentation/handler/audit"
	backupsHandler "github.com/hilthontt/dynboard/internal/presentation/handler/backups"
	healthHandler "github.com/hilthontt/dynboard/internal/presentation/handler/health"
	opsHandler "github.com/hilthontt/dynboard/internal/presentation/handler/ops"
	queueHandler "github.com/hilthontt/dynboard/internal/presentation/handler/queue"
	stateHandler "github.com/hilthontt/dynboard/internal/presentation/handler/state"
)

type Application struct {
	config         configs.Config
	healthHandler  *healthHandler.Handler
	stateHandler   *stateHandler.Handler
	opsHandler     *opsHandler.Handler
	queueHandler   *queueHandler.Handler
	auditHandler   *auditHandler.Handler
	backupsHandler *backupsHandler.Handler
	hub            *ws.Hub
	metricsHandler http.Handler
	logger         *zap.SugaredLogger
	ratelimiter    ratelimiter.Limiter
}

func NewApplication(
	config configs.Config,
	healthHandler *healthHandler.Handler,
	stateHandler *stateHandler.Handler,
	opsHandler *opsHandler.Handler,
	queueHandler *queueHandler.Handler,
	auditHandler *auditHandler.Handler,
	backupsHandler *backupsHandler.Handler,
	hub *ws.Hub,
	metricsHandler http.Handler,
	logger *zap.SugaredLogger,
	ratelimiter ratelimiter.Limiter,
) *Application {
	return &Application{
		config:         config,
		healthHandler:  healthHandler,
		stateHandler:   stateHandler,
		opsHandler:     opsHandler,
		queueHandler:   queueHandler,
		auditHandler:   auditHandler,
		backupsHandler: backupsHandler,
		hub:            hub,
		metricsHandler: metricsHandler,
		logger:         logger,
		ratelimiter:    ratelimiter,
	}
}

func (app *Application) Mount() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Use(app.rateLimiterMiddleware)
	r.Use(app.enableCors)
	r.Use(app.loggerMiddleware)
	r.Use(app.metricsMiddleware)

	r.Route("/api", func(r chi.Router) {
		// Broker-less aliases: the broker defaults to the current broker
		// context, falling back to the configured default.
		r.Get("/state", app.stateHandler.GetStateHandler)
		r.Post("/operations", app.opsHandler.SubmitOperationHandler)
		r.Post("/operations/bulk", app.opsHandler.SubmitBulkHandler)

		r.Route("/brokers/{broker}", func(r chi.Router) {
			r.Get("/state", app.stateHandler.GetStateHandler)

			r.Post("/operations", app.opsHandler.SubmitOperationHandler)
			r.Post("/operations/bulk", app.opsHandler.SubmitBulkHandler)

			r.Post("/backups", app.backupsHandler.CreateBackupHandler)
			r.Get("/backups", app.backupsHandler.ListBackupsHandler)
		})

		r.Get("/queue", app.queueHandler.ListQueueHandler)
		r.Get("/queue/{id}", app.queueHandler.GetQueueItemHandler)
		r.Get("/audit", app.auditHandler.ListAuditHandler)

		r.Get("/ws", app.hub.Serve)

		r.Get("/health", app.healthHandler.GetHealth)
		r.Get("/healthz", app.healthHandler.GetHealth)
		r.Get("/ready", app.healthHandler.GetHealth)
		r.Get("/live", app.healthHandler.GetHealth)
	})

	r.Handle("/metrics", app.metricsHandler)

	return otelhttp.NewHandler(r, "dynboard")
}

func (app *Application) Run(mux http.Handler) error {
	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", app.config.HTTP.Host, app.config.HTTP.Port),
		Handler:      mux,
		WriteTimeout: time.Second * 30,
		ReadTimeout:  time.Second * 10,
		IdleTimeout:  time.Minute,
	}

	shutdown := make(chan error)

	go func() {
		quit := make(chan os.Signal, 1)

		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		s := <-quit

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		app.logger.Infow("signal caught", "signal", s.String())

		shutdown <- srv.Shutdown(ctx)
	}()

	app.logger.Infow("server has started", "addr", srv.Addr)

	err := srv.ListenAndServe()
	if !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	err = <-shutdown
	if err != nil {
		return err
	}

	app.logger.Infow("server has stopped", "addr", srv.Addr)

	return nil
}
