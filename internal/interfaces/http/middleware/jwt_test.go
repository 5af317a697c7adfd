package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erp/marketsync/internal/infrastructure/auth"
	"github.com/erp/marketsync/internal/infrastructure/config"
)

const (
	testSecret = "test-secret-key-at-least-32-chars"
	testIssuer = "marketsync-test"
)

func newTestJWTService() *auth.JWTService {
	return auth.NewJWTService(config.JWTConfig{
		Secret:          testSecret,
		Issuer:          testIssuer,
		TokenExpiration: 15 * time.Minute,
	})
}

func jwtRouter(cfg JWTMiddlewareConfig, handler gin.HandlerFunc) *gin.Engine {
	router := gin.New()
	router.Use(JWTAuthMiddleware(cfg))
	router.GET("/api/v1/orders", handler)
	router.GET("/api/v1/health", func(c *gin.Context) { c.Status(http.StatusOK) })
	return router
}

func getWithAuth(router http.Handler, path, header string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func okHandler(c *gin.Context) { c.Status(http.StatusOK) }

func TestJWTAuthMiddleware_ValidToken(t *testing.T) {
	svc := newTestJWTService()
	token, err := svc.GenerateToken("alice", "fiscal")
	require.NoError(t, err)

	router := jwtRouter(JWTMiddlewareConfig{JWTService: svc}, func(c *gin.Context) {
		claims := GetJWTClaims(c)
		require.NotNil(t, claims)
		assert.Equal(t, "alice", claims.Operator)
		assert.Equal(t, "alice", GetOperator(c))
		c.Status(http.StatusOK)
	})

	w := getWithAuth(router, "/api/v1/orders", "Bearer "+token.AccessToken)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestJWTAuthMiddleware_Rejections(t *testing.T) {
	svc := newTestJWTService()
	router := jwtRouter(JWTMiddlewareConfig{JWTService: svc}, okHandler)

	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, &auth.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        "expired-jti",
			Issuer:    testIssuer,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now().Add(-2 * time.Hour)),
		},
		Operator: "alice",
	})
	expiredToken, err := expired.SignedString([]byte(testSecret))
	require.NoError(t, err)

	other := auth.NewJWTService(config.JWTConfig{Secret: "another-secret-key-of-32-chars!!", Issuer: testIssuer})
	foreign, err := other.GenerateToken("mallory")
	require.NoError(t, err)

	tests := []struct {
		name     string
		header   string
		wantCode string
	}{
		{"missing header", "", "ERR_UNAUTHORIZED"},
		{"basic scheme", "Basic YWxpY2U6cHc=", "ERR_UNAUTHORIZED"},
		{"empty bearer", "Bearer ", "ERR_UNAUTHORIZED"},
		{"garbage", "Bearer not-a-jwt", "ERR_TOKEN_INVALID"},
		{"wrong secret", "Bearer " + foreign.AccessToken, "ERR_TOKEN_INVALID"},
		{"expired", "Bearer " + expiredToken, "ERR_TOKEN_EXPIRED"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := getWithAuth(router, "/api/v1/orders", tt.header)
			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.Contains(t, w.Body.String(), tt.wantCode)
		})
	}
}

func TestJWTAuthMiddleware_SkipPaths(t *testing.T) {
	router := jwtRouter(JWTMiddlewareConfig{
		JWTService: newTestJWTService(),
		SkipPaths:  []string{"/api/v1/health"},
	}, okHandler)

	assert.Equal(t, http.StatusOK, getWithAuth(router, "/api/v1/health", "").Code)
	assert.Equal(t, http.StatusUnauthorized, getWithAuth(router, "/api/v1/orders", "").Code)
}

func TestJWTAuthMiddleware_RevokedToken(t *testing.T) {
	svc := newTestJWTService()
	blacklist := auth.NewInMemoryTokenBlacklist()
	router := jwtRouter(JWTMiddlewareConfig{JWTService: svc, TokenBlacklist: blacklist}, okHandler)

	token, err := svc.GenerateToken("alice")
	require.NoError(t, err)
	header := "Bearer " + token.AccessToken

	assert.Equal(t, http.StatusOK, getWithAuth(router, "/api/v1/orders", header).Code)

	require.NoError(t, blacklist.AddToBlacklist(context.Background(), token.ID, time.Hour))
	w := getWithAuth(router, "/api/v1/orders", header)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "revoked")
}

type brokenBlacklist struct{}

func (brokenBlacklist) AddToBlacklist(context.Context, string, time.Duration) error { return nil }
func (brokenBlacklist) IsBlacklisted(context.Context, string) (bool, error) {
	return false, assert.AnError
}

func TestJWTAuthMiddleware_BlacklistErrorFailsOpen(t *testing.T) {
	svc := newTestJWTService()
	router := jwtRouter(JWTMiddlewareConfig{JWTService: svc, TokenBlacklist: brokenBlacklist{}}, okHandler)

	token, err := svc.GenerateToken("alice")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, getWithAuth(router, "/api/v1/orders", "Bearer "+token.AccessToken).Code)
}

func TestRequireScope(t *testing.T) {
	svc := newTestJWTService()
	router := gin.New()
	router.Use(JWTAuthMiddleware(JWTMiddlewareConfig{JWTService: svc}))
	router.GET("/fiscal", RequireScope("fiscal"), okHandler)

	scoped, err := svc.GenerateToken("alice", "sync")
	require.NoError(t, err)
	unrestricted, err := svc.GenerateToken("bob")
	require.NoError(t, err)

	assert.Equal(t, http.StatusForbidden, getWithAuth(router, "/fiscal", "Bearer "+scoped.AccessToken).Code)
	assert.Equal(t, http.StatusOK, getWithAuth(router, "/fiscal", "Bearer "+unrestricted.AccessToken).Code)
}
