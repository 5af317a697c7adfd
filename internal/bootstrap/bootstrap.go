// Package bootstrap assembles the sync pipeline from configuration. The
// HTTP server and the syncctl CLI share it.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	fiscalapp "github.com/erp/marketsync/internal/application/fiscal"
	"github.com/erp/marketsync/internal/application/integration"
	"github.com/erp/marketsync/internal/domain/fiscal"
	"github.com/erp/marketsync/internal/domain/marketplace"
	"github.com/erp/marketsync/internal/infrastructure/bling"
	"github.com/erp/marketsync/internal/infrastructure/cache"
	"github.com/erp/marketsync/internal/infrastructure/config"
	"github.com/erp/marketsync/internal/infrastructure/ecommerce"
	"github.com/erp/marketsync/internal/infrastructure/logger"
	"github.com/erp/marketsync/internal/infrastructure/mail"
	"github.com/erp/marketsync/internal/infrastructure/persistence"
	"github.com/erp/marketsync/internal/infrastructure/printing"
	"github.com/erp/marketsync/internal/infrastructure/scheduler"
	"github.com/erp/marketsync/internal/infrastructure/secrets"
	"github.com/erp/marketsync/internal/infrastructure/storage"
	"github.com/erp/marketsync/internal/infrastructure/telemetry"
)

const (
	slowQueryThreshold = 200 * time.Millisecond
	meterName          = "marketsync"
)

// Container holds every long-lived component of the service
type Container struct {
	Config    *config.Config
	Logger    *zap.Logger
	Telemetry *telemetry.Providers
	DB        *persistence.Database
	Stores    *cache.Stores
	Registry  *marketplace.Registry

	Orders      *persistence.GormOrderRepository
	Tokens      *integration.TokenManager
	Syncer      *integration.OrderSynchronizer
	Fulfillment *integration.FulfillmentService
	Queue       *integration.QueueProcessor
	Artifacts   *fiscalapp.ArtifactService
	Credentials *integration.CredentialService
	Scheduler   *scheduler.PipelineScheduler

	closers []func() error
}

// Build connects to the database and cache and wires the services.
// Close releases whatever Build opened, also after a failed Build.
func Build(ctx context.Context, cfg *config.Config, base *zap.Logger) (_ *Container, err error) {
	c := &Container{Config: cfg, Logger: base}
	defer func() {
		if err != nil {
			_ = c.Close(context.Background())
		}
	}()

	c.Telemetry, err = telemetry.Setup(ctx, cfg.Telemetry, base)
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}
	c.closers = append(c.closers, func() error { return c.Telemetry.Shutdown(context.Background()) })

	level, lerr := zapcore.ParseLevel(cfg.Log.Level)
	if lerr != nil {
		level = zapcore.InfoLevel
	}
	log := telemetry.BridgeLogger(base, cfg.Telemetry.ServiceName, c.Telemetry.Logs, level)
	c.Logger = log

	c.DB, err = persistence.NewDatabase(&cfg.Database, persistence.Options{
		Logger:        log,
		LogLevel:      logger.MapGormLogLevel(cfg.Log.Level),
		SlowThreshold: slowQueryThreshold,
	})
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}
	c.closers = append(c.closers, c.DB.Close)
	if c.DB.Driver() == "sqlite" {
		if err = c.DB.AutoMigrate(); err != nil {
			return nil, err
		}
	}
	if cfg.Telemetry.DBTracing {
		if err = telemetry.RegisterDBTracing(c.DB.DB, telemetry.DBTracingConfig{
			Enabled:         true,
			DBSystem:        c.DB.Driver(),
			SlowQueryThresh: slowQueryThreshold,
		}, log); err != nil {
			return nil, fmt.Errorf("database tracing: %w", err)
		}
	}

	c.Stores, err = cache.NewStores(cfg.Redis,
		cache.WithLogger(log),
		cache.WithInMemoryFallback(cfg.App.Env != "production"),
	)
	if err != nil {
		return nil, fmt.Errorf("cache: %w", err)
	}
	c.closers = append(c.closers, c.Stores.Close)

	cipher := secrets.New(cfg.Secrets.MasterKey)
	if cfg.Secrets.MasterKey == "" {
		log.Warn("No secrets master key configured, tokens and credentials are stored in plain text")
	}

	c.Registry, err = newRegistry(cfg, log)
	if err != nil {
		return nil, err
	}

	c.Orders = persistence.NewGormOrderRepository(c.DB.DB)
	jobs := persistence.NewGormFiscalJobRepository(c.DB.DB)

	c.Tokens = integration.NewTokenManager(c.Registry, persistence.NewGormTokenRepository(c.DB.DB, cipher), c.Stores.Sessions, log)
	c.Credentials = integration.NewCredentialService(persistence.NewGormCredentialRepository(c.DB.DB, cipher), cfg.Fiscal.APIKey, log)

	store, err := storage.NewArtifactStore(&cfg.Storage, cfg.Fiscal.ArtifactDir, log)
	if err != nil {
		return nil, fmt.Errorf("artifact store: %w", err)
	}
	renderer, err := c.newRenderer(cfg.Fiscal, log)
	if err != nil {
		return nil, err
	}
	deliverer, err := mail.NewDeliverer(cfg.SMTP, log)
	if err != nil {
		return nil, fmt.Errorf("mail: %w", err)
	}

	emitter := fiscalapp.NewEmissionService(
		bling.NewClient(bling.Config{BaseURL: cfg.Fiscal.BaseURL, Timeout: cfg.Fiscal.Timeout}, c.Credentials, log),
		store,
		renderer,
		deliverer,
		log,
	)

	c.Syncer = integration.NewOrderSynchronizer(c.Registry, c.Tokens, c.Orders, log)
	c.Queue = integration.NewQueueProcessor(jobs, c.Orders, emitter, log)
	c.Fulfillment = integration.NewFulfillmentService(c.Registry, c.Tokens, log)
	c.Artifacts = fiscalapp.NewArtifactService(store, log)

	c.Scheduler, err = scheduler.NewPipelineScheduler(scheduler.ConfigFrom(cfg.Scheduler), c.Stores.RunGuard, log,
		integration.SyncTask(c.Syncer, c.Registry, cfg.Scheduler.SyncInterval),
		integration.DrainTask(c.Queue, cfg.Scheduler.DrainBatchSize, cfg.Scheduler.DrainInterval),
	)
	if err != nil {
		return nil, fmt.Errorf("scheduler: %w", err)
	}

	if c.Telemetry.Meter.IsEnabled() {
		pm, merr := telemetry.NewPipelineMetrics(c.Telemetry.Meter.Meter(meterName))
		if merr != nil {
			log.Warn("Pipeline metrics unavailable", zap.Error(merr))
		} else {
			c.Tokens.SetPipelineMetrics(pm)
			c.Syncer.SetPipelineMetrics(pm)
			c.Queue.SetPipelineMetrics(pm)
			c.Scheduler.SetPipelineMetrics(pm)
		}
	}

	log.Info("Pipeline assembled",
		zap.String("database", c.DB.Driver()),
		zap.Bool("redis", c.Stores.Distributed()),
		zap.Int("marketplaces", len(c.Registry.Enabled())),
		zap.String("storage", storageType(cfg.Storage)),
	)
	return c, nil
}

func newRegistry(cfg *config.Config, log *zap.Logger) (*marketplace.Registry, error) {
	registry := marketplace.NewRegistry()
	if cfg.MercadoLivre.Enabled {
		ml, err := ecommerce.NewMercadoLivreAdapter(&ecommerce.MercadoLivreConfig{
			Enabled:      true,
			ClientID:     cfg.MercadoLivre.ClientID,
			ClientSecret: cfg.MercadoLivre.ClientSecret,
			RedirectURI:  cfg.MercadoLivre.RedirectURI,
			AuthURL:      cfg.MercadoLivre.AuthURL,
			APIBaseURL:   cfg.MercadoLivre.APIBaseURL,
			Timeout:      cfg.MercadoLivre.Timeout,
		}, log)
		if err != nil {
			return nil, fmt.Errorf("mercadolivre: %w", err)
		}
		registry.Register(ml)
	}
	registry.Register(ecommerce.NewShopeeAdapter(cfg.Shopee.Enabled, log))
	return registry, nil
}

func (c *Container) newRenderer(cfg config.FiscalConfig, log *zap.Logger) (fiscal.DocumentRenderer, error) {
	switch cfg.DocumentRenderer {
	case "", "text":
		return printing.NewTextDocumentRenderer(), nil
	case "chromedp":
		pdf := printing.NewChromePrinter(printing.ChromeConfig{
			ExecPath:  cfg.ChromePath,
			NoSandbox: true,
			Logger:    log,
		})
		c.closers = append(c.closers, pdf.Close)
		return printing.NewPDFDocumentRenderer(pdf), nil
	default:
		return nil, fmt.Errorf("unsupported document renderer %q", cfg.DocumentRenderer)
	}
}

func storageType(cfg config.StorageConfig) string {
	if cfg.Type == "" {
		return "local"
	}
	return cfg.Type
}

// Close releases resources in reverse order of acquisition
func (c *Container) Close(ctx context.Context) error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		errs = append(errs, c.closers[i]())
	}
	c.closers = nil
	return errors.Join(errs...)
}
