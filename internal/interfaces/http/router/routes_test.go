package router

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erp/marketsync/internal/infrastructure/auth"
	"github.com/erp/marketsync/internal/infrastructure/config"
	"github.com/erp/marketsync/internal/infrastructure/scheduler"
	"github.com/erp/marketsync/internal/interfaces/http/handler"
	"github.com/erp/marketsync/internal/interfaces/http/middleware"
)

type idleScheduler struct{}

func (idleScheduler) Status() []scheduler.JobStatus { return []scheduler.JobStatus{} }
func (idleScheduler) History(int) []*scheduler.Run  { return []*scheduler.Run{} }
func (idleScheduler) TriggerNow(context.Context, string) (*scheduler.Run, error) {
	return &scheduler.Run{}, nil
}

type engineFixture struct {
	engine    *gin.Engine
	jwt       *auth.JWTService
	blacklist auth.TokenBlacklist
}

func newEngineFixture(t *testing.T, tweak func(*Options)) *engineFixture {
	t.Helper()
	jwtService := auth.NewJWTService(config.JWTConfig{
		Secret:          "router-test-secret",
		Issuer:          "marketsync",
		TokenExpiration: time.Hour,
	})
	blacklist := auth.NewInMemoryTokenBlacklist()

	opts := Options{
		HTTP: config.HTTPConfig{
			MaxBodyBytes:   1 << 20,
			RequestTimeout: 5 * time.Second,
		},
		ServiceName: "marketsync-test",
		JWT:         jwtService,
		Blacklist:   blacklist,
	}
	if tweak != nil {
		tweak(&opts)
	}

	h := Handlers{
		Marketplace: handler.NewMarketplaceHandler(nil, nil, nil),
		Fiscal:      handler.NewFiscalHandler(nil, nil, nil, 0),
		Order:       handler.NewOrderHandler(nil),
		Scheduler:   handler.NewSchedulerHandler(idleScheduler{}),
		Session:     handler.NewSessionHandler(blacklist),
		System:      handler.NewSystemHandler(nil),
	}
	return &engineFixture{engine: NewEngine(opts, h), jwt: jwtService, blacklist: blacklist}
}

func (f *engineFixture) token(t *testing.T, scopes ...string) string {
	t.Helper()
	issued, err := f.jwt.GenerateToken("ops", scopes...)
	require.NoError(t, err)
	return issued.AccessToken
}

func (f *engineFixture) do(method, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	req.RemoteAddr = "10.0.0.7:3000"
	if token != "" {
		req.Header.Set(middleware.AuthHeaderKey, "Bearer "+token)
	}
	w := httptest.NewRecorder()
	f.engine.ServeHTTP(w, req)
	return w
}

func TestNewEngine_PublicRoutes(t *testing.T) {
	f := newEngineFixture(t, nil)

	w := f.do(http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))

	w = f.do(http.MethodGet, "/ping", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestNewEngine_RequiresToken(t *testing.T) {
	f := newEngineFixture(t, nil)

	w := f.do(http.MethodGet, "/api/v1/orders", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = f.do(http.MethodGet, "/api/v1/scheduler/status", "not-a-jwt")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestNewEngine_CallbackIsPublic(t *testing.T) {
	f := newEngineFixture(t, nil)

	// Reaches the handler without a token; the unknown marketplace is rejected there.
	w := f.do(http.MethodGet, "/api/v1/marketplaces/magalu/auth/callback?code=c&state=s", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(http.MethodGet, "/api/v1/marketplaces/shopee/auth/callback", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestNewEngine_Scopes(t *testing.T) {
	f := newEngineFixture(t, nil)

	w := f.do(http.MethodGet, "/api/v1/scheduler/status", f.token(t, ScopeFiscal))
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = f.do(http.MethodGet, "/api/v1/scheduler/status", f.token(t, ScopeScheduler))
	assert.Equal(t, http.StatusOK, w.Code)

	w = f.do(http.MethodGet, "/api/v1/scheduler/history", f.token(t))
	assert.Equal(t, http.StatusOK, w.Code)

	w = f.do(http.MethodPost, "/api/v1/scheduler/sync_orders/trigger", f.token(t, ScopeScheduler))
	assert.Equal(t, http.StatusAccepted, w.Code)
}

func TestNewEngine_RevokedTokenRejected(t *testing.T) {
	f := newEngineFixture(t, nil)
	token := f.token(t)

	w := f.do(http.MethodGet, "/api/v1/session", token)
	assert.Equal(t, http.StatusOK, w.Code)

	w = f.do(http.MethodPost, "/api/v1/session/revoke", token)
	assert.Equal(t, http.StatusOK, w.Code)

	w = f.do(http.MethodGet, "/api/v1/session", token)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestNewEngine_SwaggerDisabledByDefault(t *testing.T) {
	f := newEngineFixture(t, nil)

	w := f.do(http.MethodGet, "/swagger/index.html", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestNewEngine_RateLimit(t *testing.T) {
	f := newEngineFixture(t, func(o *Options) {
		o.RateLimiter = middleware.NewMemoryRateLimiter(1, time.Minute)
	})
	token := f.token(t)

	w := f.do(http.MethodGet, "/api/v1/scheduler/status", token)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "1", w.Header().Get("X-RateLimit-Limit"))

	w = f.do(http.MethodGet, "/api/v1/scheduler/status", token)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)

	// Public routes are not limited.
	w = f.do(http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
}
