package router

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/erp/marketsync/internal/infrastructure/auth"
	"github.com/erp/marketsync/internal/infrastructure/config"
	"github.com/erp/marketsync/internal/infrastructure/logger"
	"github.com/erp/marketsync/internal/interfaces/http/handler"
	"github.com/erp/marketsync/internal/interfaces/http/middleware"
)

// Token scopes checked per route group. Unscoped tokens may call every route.
const (
	ScopeMarketplace = "marketplace"
	ScopeFiscal      = "fiscal"
	ScopeScheduler   = "scheduler"
)

// Handlers are the HTTP handlers mounted by NewEngine
type Handlers struct {
	Marketplace *handler.MarketplaceHandler
	Fiscal      *handler.FiscalHandler
	Order       *handler.OrderHandler
	Scheduler   *handler.SchedulerHandler
	Session     *handler.SessionHandler
	System      *handler.SystemHandler
}

// Options configure the middleware stack
type Options struct {
	HTTP        config.HTTPConfig
	ServiceName string
	Logger      *zap.Logger
	JWT         *auth.JWTService
	Blacklist   auth.TokenBlacklist
	// RateLimiter is optional; nil disables rate limiting
	RateLimiter middleware.RateLimiter
	// Meter is optional; nil disables HTTP metrics
	Meter     metric.Meter
	Tracing   bool
	Profiling bool
}

// NewEngine builds the gin engine with the full middleware stack and every
// route of the service.
func NewEngine(opts Options, h Handlers) *gin.Engine {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	engine := gin.New()
	engine.Use(logger.GinMiddleware(log))
	engine.Use(logger.Recovery(log))
	if opts.Tracing {
		engine.Use(middleware.Tracing(opts.ServiceName))
	}
	engine.Use(middleware.HTTPMetrics(opts.Meter))
	engine.Use(middleware.Secure())

	cors := middleware.DefaultCORSConfig()
	cors.AllowOrigins = opts.HTTP.CORSOrigins
	engine.Use(middleware.CORSWithConfig(cors))
	engine.Use(middleware.BodyLimit(opts.HTTP.MaxBodyBytes))

	engine.GET("/health", h.System.Health)
	engine.GET("/ping", h.System.Ping)

	r := NewRouter(engine, WithAPIVersion("v1"))
	callbackPath := r.BasePath() + "/marketplaces/:code/auth/callback"
	jwtMiddleware := middleware.JWTAuthMiddleware(middleware.JWTMiddlewareConfig{
		JWTService:     opts.JWT,
		TokenBlacklist: opts.Blacklist,
		SkipPaths:      []string{callbackPath},
		Logger:         log,
	})

	engine.GET("/swagger/*any",
		middleware.SwaggerProtection(opts.HTTP.Swagger, jwtMiddleware),
		ginSwagger.WrapHandler(swaggerFiles.Handler),
	)

	r.Use(jwtMiddleware, middleware.SpanAttributes())
	if opts.Profiling {
		r.Use(middleware.Profiling())
	}
	if opts.RateLimiter != nil {
		r.Use(middleware.RateLimit(opts.RateLimiter))
	}
	if opts.HTTP.RequestTimeout > 0 {
		r.Use(middleware.Timeout(opts.HTTP.RequestTimeout))
	}

	r.Register(marketplaceRoutes(h.Marketplace)).
		Register(orderRoutes(h.Order)).
		Register(fiscalRoutes(h.Fiscal)).
		Register(schedulerRoutes(h.Scheduler)).
		Register(sessionRoutes(h.Session))
	r.Setup()

	return engine
}

func marketplaceRoutes(h *handler.MarketplaceHandler) *DomainGroup {
	g := NewDomainGroup("marketplaces", "/marketplaces/:code")

	oauth := g.Group("auth", "/auth")
	oauth.GET("/callback", h.Callback)
	oauth.GET("/login", middleware.RequireScope(ScopeMarketplace), h.Login)
	oauth.POST("/token", middleware.RequireScope(ScopeMarketplace), h.ExchangeCode)
	oauth.POST("/refresh", middleware.RequireScope(ScopeMarketplace), h.Refresh)
	oauth.GET("/tokens", middleware.RequireScope(ScopeMarketplace), h.Tokens)

	ops := g.Group("operations", "").Use(middleware.RequireScope(ScopeMarketplace))
	ops.POST("/orders/sync", h.SyncOrders)
	ops.POST("/stock", h.UpdateStock)
	ops.POST("/tracking", h.SendTracking)
	return g
}

func orderRoutes(h *handler.OrderHandler) *DomainGroup {
	g := NewDomainGroup("orders", "/orders").Use(middleware.RequireScope(ScopeMarketplace))
	g.GET("", h.List)
	g.GET("/:id", h.Get)
	return g
}

func fiscalRoutes(h *handler.FiscalHandler) *DomainGroup {
	g := NewDomainGroup("fiscal", "/fiscal").Use(middleware.RequireScope(ScopeFiscal))
	g.POST("/queue/drain", h.DrainQueue)
	g.GET("/queue/stats", h.QueueStats)
	g.GET("/documents/:number/download", h.DownloadDocument)
	g.PUT("/credentials", h.SaveCredential)
	g.GET("/credentials/:user_id", h.GetCredential)
	return g
}

func schedulerRoutes(h *handler.SchedulerHandler) *DomainGroup {
	g := NewDomainGroup("scheduler", "/scheduler").Use(middleware.RequireScope(ScopeScheduler))
	g.GET("/status", h.Status)
	g.GET("/history", h.History)
	g.POST("/:job/trigger", h.Trigger)
	return g
}

func sessionRoutes(h *handler.SessionHandler) *DomainGroup {
	g := NewDomainGroup("session", "/session")
	g.GET("", h.Current)
	g.POST("/revoke", h.Revoke)
	return g
}
