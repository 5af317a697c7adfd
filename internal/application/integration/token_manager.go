package integration

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/erp/marketsync/internal/domain/marketplace"
	"github.com/erp/marketsync/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

const (
	// DefaultExpirySkew refreshes tokens this long before they expire
	DefaultExpirySkew = 5 * time.Minute
	// DefaultSessionTTL bounds how long a login redirect stays valid
	DefaultSessionTTL = 10 * time.Minute
	// DefaultHistoryLimit caps token history listings
	DefaultHistoryLimit = 20
)

// TokenManager owns the OAuth credential lifecycle of every registered
// marketplace. Refreshes are serialised per marketplace.
type TokenManager struct {
	registry *marketplace.Registry
	tokens   marketplace.TokenRepository
	sessions marketplace.SessionStore
	logger   *zap.Logger
	metrics  *telemetry.PipelineMetrics

	now        func() time.Time
	skew       time.Duration
	sessionTTL time.Duration

	mu    sync.Mutex
	locks map[marketplace.Code]*sync.Mutex
}

// TokenManagerOption configures a TokenManager
type TokenManagerOption func(*TokenManager)

// WithTokenClock overrides the clock used for issue and expiry times
func WithTokenClock(now func() time.Time) TokenManagerOption {
	return func(m *TokenManager) { m.now = now }
}

// WithExpirySkew sets how early ValidToken refreshes
func WithExpirySkew(skew time.Duration) TokenManagerOption {
	return func(m *TokenManager) { m.skew = skew }
}

// WithSessionTTL sets the lifetime of pending authorizations
func WithSessionTTL(ttl time.Duration) TokenManagerOption {
	return func(m *TokenManager) { m.sessionTTL = ttl }
}

// NewTokenManager creates a TokenManager
func NewTokenManager(
	registry *marketplace.Registry,
	tokens marketplace.TokenRepository,
	sessions marketplace.SessionStore,
	logger *zap.Logger,
	opts ...TokenManagerOption,
) *TokenManager {
	m := &TokenManager{
		registry:   registry,
		tokens:     tokens,
		sessions:   sessions,
		logger:     logger,
		now:        time.Now,
		skew:       DefaultExpirySkew,
		sessionTTL: DefaultSessionTTL,
		locks:      make(map[marketplace.Code]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// SetPipelineMetrics sets the metrics collector
func (m *TokenManager) SetPipelineMetrics(pm *telemetry.PipelineMetrics) {
	m.metrics = pm
}

// AuthorizationStart is the redirect issued to begin a PKCE login
type AuthorizationStart struct {
	URL   string
	State string
}

// BeginAuthorization creates a PKCE session and returns the marketplace
// login URL carrying its state and challenge.
func (m *TokenManager) BeginAuthorization(ctx context.Context, code marketplace.Code) (*AuthorizationStart, error) {
	mp, err := m.registry.Get(code)
	if err != nil {
		return nil, err
	}

	session, err := marketplace.NewAuthSession(code, m.now())
	if err != nil {
		return nil, err
	}
	if err := m.sessions.Save(ctx, session, m.sessionTTL); err != nil {
		return nil, fmt.Errorf("save authorization session: %w", err)
	}

	return &AuthorizationStart{
		URL:   mp.AuthorizationURL(session.State, session.Challenge()),
		State: session.State,
	}, nil
}

// CompleteAuthorization consumes the session for state and exchanges the
// code with its verifier. A state is accepted once only.
func (m *TokenManager) CompleteAuthorization(ctx context.Context, code marketplace.Code, state, authCode string) (*marketplace.TokenRecord, error) {
	mp, err := m.registry.Get(code)
	if err != nil {
		return nil, err
	}

	session, err := m.sessions.Take(ctx, state)
	if err != nil {
		return nil, err
	}
	if session.Marketplace != code {
		return nil, fmt.Errorf("%w: state issued for %s", marketplace.ErrInvalidState, session.Marketplace)
	}

	return m.exchange(ctx, mp, marketplace.AuthorizationRequest{
		Code:         authCode,
		CodeVerifier: session.Verifier,
	})
}

// Authenticate exchanges a one-time authorization code obtained outside
// the PKCE flow and stores the resulting token.
func (m *TokenManager) Authenticate(ctx context.Context, code marketplace.Code, authCode string) (*marketplace.TokenRecord, error) {
	mp, err := m.registry.Get(code)
	if err != nil {
		return nil, err
	}
	return m.exchange(ctx, mp, marketplace.AuthorizationRequest{Code: authCode})
}

func (m *TokenManager) exchange(ctx context.Context, mp marketplace.Marketplace, req marketplace.AuthorizationRequest) (*marketplace.TokenRecord, error) {
	code := mp.Code()
	if req.Code == "" {
		return nil, &marketplace.AuthExchangeError{Marketplace: code, Err: errors.New("authorization code is required")}
	}

	grant, err := mp.ExchangeCode(ctx, req)
	if err != nil {
		m.logger.Warn("Authorization code exchange failed",
			zap.String("marketplace", code.String()),
			zap.Error(err),
		)
		return nil, &marketplace.AuthExchangeError{Marketplace: code, Err: err}
	}

	rec, err := marketplace.NewTokenRecord(code, grant, m.now())
	if err != nil {
		return nil, &marketplace.AuthExchangeError{Marketplace: code, Err: err}
	}

	lock := m.lockFor(code)
	lock.Lock()
	defer lock.Unlock()

	if err := m.tokens.Append(ctx, rec); err != nil {
		return nil, fmt.Errorf("store %s token: %w", code, err)
	}

	m.logger.Info("Marketplace authorized",
		zap.String("marketplace", code.String()),
		zap.Int64("token_id", rec.ID),
		zap.Time("expires_at", rec.ExpiresAt()),
	)
	return rec, nil
}

// CurrentToken returns the most recently issued token, or
// marketplace.ErrNoCredential.
func (m *TokenManager) CurrentToken(ctx context.Context, code marketplace.Code) (*marketplace.TokenRecord, error) {
	return m.tokens.Latest(ctx, code)
}

// History returns up to limit tokens, newest first
func (m *TokenManager) History(ctx context.Context, code marketplace.Code, limit int) ([]*marketplace.TokenRecord, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return m.tokens.History(ctx, code, limit)
}

// Refresh exchanges the current refresh token for a new pair and appends
// it. On failure the current record stays in place.
func (m *TokenManager) Refresh(ctx context.Context, code marketplace.Code) (*marketplace.TokenRecord, error) {
	mp, err := m.registry.Get(code)
	if err != nil {
		return nil, err
	}

	lock := m.lockFor(code)
	lock.Lock()
	defer lock.Unlock()

	current, err := m.tokens.Latest(ctx, code)
	if err != nil {
		return nil, err
	}
	return m.refreshLocked(ctx, mp, current)
}

// ValidToken returns the current token, refreshing it first when it
// expires within the configured skew.
func (m *TokenManager) ValidToken(ctx context.Context, code marketplace.Code) (*marketplace.TokenRecord, error) {
	mp, err := m.registry.Get(code)
	if err != nil {
		return nil, err
	}

	current, err := m.tokens.Latest(ctx, code)
	if err != nil {
		return nil, err
	}
	if !current.IsExpired(m.now(), m.skew) {
		return current, nil
	}

	lock := m.lockFor(code)
	lock.Lock()
	defer lock.Unlock()

	// Another caller may have refreshed while we waited.
	current, err = m.tokens.Latest(ctx, code)
	if err != nil {
		return nil, err
	}
	if !current.IsExpired(m.now(), m.skew) {
		return current, nil
	}
	return m.refreshLocked(ctx, mp, current)
}

func (m *TokenManager) refreshLocked(ctx context.Context, mp marketplace.Marketplace, current *marketplace.TokenRecord) (rec *marketplace.TokenRecord, err error) {
	code := mp.Code()
	if m.metrics != nil {
		defer func() { m.metrics.RecordTokenRefresh(ctx, code.String(), err) }()
	}

	if !current.CanRefresh() {
		return nil, &marketplace.RefreshError{Marketplace: code, Err: errors.New("current token has no refresh token")}
	}

	grant, err := mp.ExchangeRefreshToken(ctx, current.RefreshToken)
	if err != nil {
		m.logger.Warn("Token refresh failed",
			zap.String("marketplace", code.String()),
			zap.Int64("current_token_id", current.ID),
			zap.Error(err),
		)
		return nil, &marketplace.RefreshError{Marketplace: code, Err: err}
	}

	rec, err = marketplace.NewTokenRecord(code, grant, m.now())
	if err != nil {
		return nil, &marketplace.RefreshError{Marketplace: code, Err: err}
	}
	if err = m.tokens.Append(ctx, rec); err != nil {
		return nil, fmt.Errorf("store refreshed %s token: %w", code, err)
	}

	m.logger.Info("Marketplace token refreshed",
		zap.String("marketplace", code.String()),
		zap.Int64("token_id", rec.ID),
		zap.Time("expires_at", rec.ExpiresAt()),
	)
	return rec, nil
}

func (m *TokenManager) lockFor(code marketplace.Code) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.locks[code]
	if !ok {
		l = &sync.Mutex{}
		m.locks[code] = l
	}
	return l
}
