package integration

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/erp/marketsync/internal/domain/marketplace"
	"github.com/erp/marketsync/internal/infrastructure/cache"
)

type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time { return c.now }

func (c *testClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

type tokenFixture struct {
	manager *TokenManager
	mp      *MockMarketplace
	tokens  *memTokenRepository
	clock   *testClock
}

func newTokenFixture(t *testing.T) *tokenFixture {
	t.Helper()
	mp := newMockMarketplace(marketplace.CodeMercadoLivre)
	registry := marketplace.NewRegistry()
	registry.Register(mp)

	clock := &testClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	tokens := &memTokenRepository{}
	manager := NewTokenManager(registry, tokens, cache.NewInMemorySessionStore(), zap.NewNop(),
		WithTokenClock(clock.Now),
		WithExpirySkew(time.Minute),
	)
	return &tokenFixture{manager: manager, mp: mp, tokens: tokens, clock: clock}
}

func TestTokenManager_AuthenticateThenRefresh(t *testing.T) {
	f := newTokenFixture(t)
	ctx := context.Background()
	code := marketplace.CodeMercadoLivre

	f.mp.On("ExchangeCode", mock.Anything, marketplace.AuthorizationRequest{Code: "abc"}).
		Return(&marketplace.TokenGrant{AccessToken: "T1", RefreshToken: "R1", ExpiresIn: 21600}, nil)
	f.mp.On("ExchangeRefreshToken", mock.Anything, "R1").
		Return(&marketplace.TokenGrant{AccessToken: "T2", RefreshToken: "R2", ExpiresIn: 21600}, nil)

	first, err := f.manager.Authenticate(ctx, code, "abc")
	require.NoError(t, err)
	assert.Equal(t, "T1", first.AccessToken)

	f.clock.Advance(time.Minute)
	second, err := f.manager.Refresh(ctx, code)
	require.NoError(t, err)
	assert.Equal(t, "T2", second.AccessToken)

	current, err := f.manager.CurrentToken(ctx, code)
	require.NoError(t, err)
	assert.Equal(t, "T2", current.AccessToken)

	history, err := f.manager.History(ctx, code, 0)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "T2", history[0].AccessToken)
	assert.Equal(t, "T1", history[1].AccessToken)

	f.mp.AssertExpectations(t)
}

func TestTokenManager_Authenticate_ExchangeFails(t *testing.T) {
	f := newTokenFixture(t)
	cause := errors.New("invalid_grant")
	f.mp.On("ExchangeCode", mock.Anything, mock.Anything).Return(nil, cause)

	rec, err := f.manager.Authenticate(context.Background(), marketplace.CodeMercadoLivre, "abc")
	require.Error(t, err)
	assert.Nil(t, rec)

	var exchangeErr *marketplace.AuthExchangeError
	require.ErrorAs(t, err, &exchangeErr)
	assert.Equal(t, marketplace.CodeMercadoLivre, exchangeErr.Marketplace)
	assert.ErrorIs(t, err, marketplace.ErrAuthExchange)
	assert.ErrorIs(t, err, cause)

	_, err = f.manager.CurrentToken(context.Background(), marketplace.CodeMercadoLivre)
	assert.ErrorIs(t, err, marketplace.ErrNoCredential)
}

func TestTokenManager_Authenticate_NoAccessToken(t *testing.T) {
	f := newTokenFixture(t)
	f.mp.On("ExchangeCode", mock.Anything, mock.Anything).Return(&marketplace.TokenGrant{}, nil)

	_, err := f.manager.Authenticate(context.Background(), marketplace.CodeMercadoLivre, "abc")
	assert.ErrorIs(t, err, marketplace.ErrAuthExchange)
}

func TestTokenManager_Authenticate_EmptyCode(t *testing.T) {
	f := newTokenFixture(t)

	_, err := f.manager.Authenticate(context.Background(), marketplace.CodeMercadoLivre, "")
	assert.ErrorIs(t, err, marketplace.ErrAuthExchange)
	f.mp.AssertNotCalled(t, "ExchangeCode", mock.Anything, mock.Anything)
}

func TestTokenManager_Refresh_FailureKeepsCurrent(t *testing.T) {
	f := newTokenFixture(t)
	ctx := context.Background()
	code := marketplace.CodeMercadoLivre

	f.mp.On("ExchangeCode", mock.Anything, mock.Anything).
		Return(&marketplace.TokenGrant{AccessToken: "T1", RefreshToken: "R1", ExpiresIn: 60}, nil)
	f.mp.On("ExchangeRefreshToken", mock.Anything, "R1").Return(nil, marketplace.ErrUnavailable)

	_, err := f.manager.Authenticate(ctx, code, "abc")
	require.NoError(t, err)

	_, err = f.manager.Refresh(ctx, code)
	var refreshErr *marketplace.RefreshError
	require.ErrorAs(t, err, &refreshErr)
	assert.ErrorIs(t, err, marketplace.ErrRefresh)
	assert.ErrorIs(t, err, marketplace.ErrUnavailable)

	current, err := f.manager.CurrentToken(ctx, code)
	require.NoError(t, err)
	assert.Equal(t, "T1", current.AccessToken)
}

func TestTokenManager_Refresh_NoCredential(t *testing.T) {
	f := newTokenFixture(t)

	_, err := f.manager.Refresh(context.Background(), marketplace.CodeMercadoLivre)
	assert.ErrorIs(t, err, marketplace.ErrNoCredential)
}

func TestTokenManager_Refresh_WithoutRefreshToken(t *testing.T) {
	f := newTokenFixture(t)
	f.mp.On("ExchangeCode", mock.Anything, mock.Anything).
		Return(&marketplace.TokenGrant{AccessToken: "T1", ExpiresIn: 60}, nil)

	_, err := f.manager.Authenticate(context.Background(), marketplace.CodeMercadoLivre, "abc")
	require.NoError(t, err)

	_, err = f.manager.Refresh(context.Background(), marketplace.CodeMercadoLivre)
	assert.ErrorIs(t, err, marketplace.ErrRefresh)
	f.mp.AssertNotCalled(t, "ExchangeRefreshToken", mock.Anything, mock.Anything)
}

func TestTokenManager_ValidToken(t *testing.T) {
	f := newTokenFixture(t)
	ctx := context.Background()
	code := marketplace.CodeMercadoLivre

	f.mp.On("ExchangeCode", mock.Anything, mock.Anything).
		Return(&marketplace.TokenGrant{AccessToken: "T1", RefreshToken: "R1", ExpiresIn: 3600}, nil)
	f.mp.On("ExchangeRefreshToken", mock.Anything, "R1").
		Return(&marketplace.TokenGrant{AccessToken: "T2", RefreshToken: "R2", ExpiresIn: 3600}, nil).Once()

	_, err := f.manager.Authenticate(ctx, code, "abc")
	require.NoError(t, err)

	t.Run("fresh token is returned as is", func(t *testing.T) {
		tok, err := f.manager.ValidToken(ctx, code)
		require.NoError(t, err)
		assert.Equal(t, "T1", tok.AccessToken)
		f.mp.AssertNotCalled(t, "ExchangeRefreshToken", mock.Anything, mock.Anything)
	})

	t.Run("token inside the skew is refreshed", func(t *testing.T) {
		f.clock.Advance(59*time.Minute + 30*time.Second)
		tok, err := f.manager.ValidToken(ctx, code)
		require.NoError(t, err)
		assert.Equal(t, "T2", tok.AccessToken)
	})

	t.Run("refreshed token is reused", func(t *testing.T) {
		tok, err := f.manager.ValidToken(ctx, code)
		require.NoError(t, err)
		assert.Equal(t, "T2", tok.AccessToken)
		f.mp.AssertNumberOfCalls(t, "ExchangeRefreshToken", 1)
	})
}

func TestTokenManager_PKCEFlow(t *testing.T) {
	f := newTokenFixture(t)
	ctx := context.Background()
	code := marketplace.CodeMercadoLivre

	f.mp.On("AuthorizationURL", mock.Anything, mock.Anything).Return("https://auth.example/authorization")

	start, err := f.manager.BeginAuthorization(ctx, code)
	require.NoError(t, err)
	assert.Equal(t, "https://auth.example/authorization", start.URL)
	require.NotEmpty(t, start.State)

	call := f.mp.Calls[0]
	assert.Equal(t, start.State, call.Arguments.String(0))
	challenge := call.Arguments.String(1)

	f.mp.On("ExchangeCode", mock.Anything, mock.MatchedBy(func(req marketplace.AuthorizationRequest) bool {
		return req.Code == "abc" && marketplace.ChallengeS256(req.CodeVerifier) == challenge
	})).Return(&marketplace.TokenGrant{AccessToken: "T1", RefreshToken: "R1", ExpiresIn: 21600}, nil).Once()

	rec, err := f.manager.CompleteAuthorization(ctx, code, start.State, "abc")
	require.NoError(t, err)
	assert.Equal(t, "T1", rec.AccessToken)

	t.Run("state is single use", func(t *testing.T) {
		_, err := f.manager.CompleteAuthorization(ctx, code, start.State, "abc")
		assert.ErrorIs(t, err, marketplace.ErrInvalidState)
	})

	t.Run("unknown state", func(t *testing.T) {
		_, err := f.manager.CompleteAuthorization(ctx, code, "forged", "abc")
		assert.ErrorIs(t, err, marketplace.ErrInvalidState)
	})
}

func TestTokenManager_UnknownMarketplace(t *testing.T) {
	f := newTokenFixture(t)

	_, err := f.manager.Authenticate(context.Background(), marketplace.CodeShopee, "abc")
	assert.ErrorIs(t, err, marketplace.ErrUnknownMarketplace)

	_, err = f.manager.BeginAuthorization(context.Background(), marketplace.Code("amazon"))
	assert.ErrorIs(t, err, marketplace.ErrUnknownMarketplace)
}
