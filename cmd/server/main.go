package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	_ "github.com/erp/marketsync/docs"
	"github.com/erp/marketsync/internal/bootstrap"
	"github.com/erp/marketsync/internal/infrastructure/auth"
	"github.com/erp/marketsync/internal/infrastructure/config"
	"github.com/erp/marketsync/internal/infrastructure/logger"
	"github.com/erp/marketsync/internal/interfaces/http/handler"
	"github.com/erp/marketsync/internal/interfaces/http/middleware"
	"github.com/erp/marketsync/internal/interfaces/http/router"
)

//	@title			Marketplace Sync API
//	@version		1.0
//	@description	Marketplace order synchronization and fiscal document emission

//	@contact.name	API Support

//	@license.name	Apache 2.0
//	@license.url	http://www.apache.org/licenses/LICENSE-2.0.html

//	@host		localhost:8080
//	@BasePath	/api/v1

//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				Operator bearer token. Format: "Bearer {token}"

const shutdownTimeout = 30 * time.Second

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	log.Info("Starting marketplace sync",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("version", handler.Version),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.Build(ctx, cfg, log)
	if err != nil {
		log.Fatal("Failed to assemble pipeline", zap.Error(err))
	}
	defer func() {
		if err := app.Close(context.Background()); err != nil {
			log.Error("Error releasing resources", zap.Error(err))
		}
	}()
	log = app.Logger

	// Scheduler runs until shutdown; Stop waits for in-flight runs
	if err := app.Scheduler.Start(ctx); err != nil {
		log.Fatal("Failed to start pipeline scheduler", zap.Error(err))
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := app.Scheduler.Stop(stopCtx); err != nil {
			log.Error("Error stopping pipeline scheduler", zap.Error(err))
		}
	}()

	// Token blacklist and rate limiter follow the cache backend
	var (
		blacklist   auth.TokenBlacklist
		rateLimiter middleware.RateLimiter
	)
	if client := app.Stores.Client(); client != nil {
		blacklist = auth.NewRedisTokenBlacklist(client)
		if cfg.HTTP.RateLimit > 0 {
			rateLimiter = middleware.NewRedisRateLimiter(client, cfg.HTTP.RateLimit, cfg.HTTP.RateWindow)
		}
	} else {
		blacklist = auth.NewInMemoryTokenBlacklist()
		if cfg.HTTP.RateLimit > 0 {
			rateLimiter = middleware.NewMemoryRateLimiter(cfg.HTTP.RateLimit, cfg.HTTP.RateWindow)
		}
	}

	// Initialize HTTP handlers
	handlers := router.Handlers{
		Marketplace: handler.NewMarketplaceHandler(app.Tokens, app.Syncer, app.Fulfillment),
		Fiscal:      handler.NewFiscalHandler(app.Queue, app.Artifacts, app.Credentials, cfg.Scheduler.DrainBatchSize),
		Order:       handler.NewOrderHandler(app.Orders),
		Scheduler:   handler.NewSchedulerHandler(app.Scheduler),
		Session:     handler.NewSessionHandler(blacklist),
		System: handler.NewSystemHandler(map[string]handler.HealthProbe{
			"database": func(context.Context) error { return app.DB.Ping() },
			"cache":    app.Stores.Ping,
		}),
	}

	var meter metric.Meter
	if app.Telemetry.Meter.IsEnabled() {
		meter = app.Telemetry.Meter.Meter("marketsync.http")
	}

	// Set Gin mode based on environment
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Setup validation
	middleware.SetupValidator()

	engine := router.NewEngine(router.Options{
		HTTP:        cfg.HTTP,
		ServiceName: cfg.Telemetry.ServiceName,
		Logger:      log,
		JWT:         auth.NewJWTService(cfg.JWT),
		Blacklist:   blacklist,
		RateLimiter: rateLimiter,
		Meter:       meter,
		Tracing:     cfg.Telemetry.TracingEnabled,
		Profiling:   app.Telemetry.Profiler.IsEnabled(),
	}, handlers)

	// Create HTTP server with config
	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	// Start server in goroutine
	serverErr := make(chan error, 1)
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Graceful shutdown
	select {
	case <-ctx.Done():
	case err := <-serverErr:
		log.Error("Server failed", zap.Error(err))
	}
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}
