package marketplace

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erp/marketsync/internal/domain/order"
)

type stubMarketplace struct {
	code    Code
	enabled bool
}

func (s *stubMarketplace) Code() Code    { return s.code }
func (s *stubMarketplace) Enabled() bool { return s.enabled }
func (s *stubMarketplace) AuthorizationURL(string, string) string {
	return ""
}
func (s *stubMarketplace) ExchangeCode(context.Context, AuthorizationRequest) (*TokenGrant, error) {
	return nil, nil
}
func (s *stubMarketplace) ExchangeRefreshToken(context.Context, string) (*TokenGrant, error) {
	return nil, nil
}
func (s *stubMarketplace) FetchRecentOrders(context.Context, string) ([]RemoteOrder, error) {
	return nil, nil
}
func (s *stubMarketplace) MapOrder(RemoteOrder) (*order.Order, error) { return nil, nil }
func (s *stubMarketplace) UpdateStock(context.Context, string, string, int) error {
	return nil
}
func (s *stubMarketplace) SendTracking(context.Context, string, string, TrackingInfo) error {
	return nil
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	r.Register(&stubMarketplace{code: CodeShopee, enabled: true})
	r.Register(&stubMarketplace{code: CodeMercadoLivre, enabled: true})

	m, err := r.Get(CodeMercadoLivre)
	require.NoError(t, err)
	assert.Equal(t, CodeMercadoLivre, m.Code())

	enabled := r.Enabled()
	require.Len(t, enabled, 2)
	assert.Equal(t, CodeMercadoLivre, enabled[0].Code())
	assert.Equal(t, CodeShopee, enabled[1].Code())

	r.Register(&stubMarketplace{code: CodeShopee, enabled: false})
	_, err = r.Get(CodeShopee)
	assert.ErrorIs(t, err, ErrMarketplaceDisabled)
	assert.Len(t, r.Enabled(), 1)

	_, err = r.Get(Code("amazon"))
	assert.ErrorIs(t, err, ErrUnknownMarketplace)
}

func TestParseCode(t *testing.T) {
	c, err := ParseCode("mercadolivre")
	require.NoError(t, err)
	assert.Equal(t, CodeMercadoLivre, c)
	assert.Equal(t, "Mercado Livre", c.DisplayName())

	_, err = ParseCode("magalu")
	assert.ErrorIs(t, err, ErrUnknownMarketplace)
}

func TestTypedErrors(t *testing.T) {
	cause := errors.New("invalid_grant")

	authErr := error(&AuthExchangeError{Marketplace: CodeMercadoLivre, Err: cause})
	assert.ErrorIs(t, authErr, ErrAuthExchange)
	assert.ErrorIs(t, authErr, cause)
	assert.Contains(t, authErr.Error(), "invalid_grant")

	refreshErr := error(&RefreshError{Marketplace: CodeMercadoLivre, Err: ErrUnauthorized})
	assert.ErrorIs(t, refreshErr, ErrRefresh)
	assert.ErrorIs(t, refreshErr, ErrUnauthorized)
	assert.NotErrorIs(t, refreshErr, ErrAuthExchange)
}
