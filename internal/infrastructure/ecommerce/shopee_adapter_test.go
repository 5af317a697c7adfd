package ecommerce

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erp/marketsync/internal/domain/marketplace"
)

func TestShopeeAdapter(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	a := NewShopeeAdapter(true, nil, WithShopeeClock(func() time.Time { return now }))
	ts := "1709294400000"

	assert.Equal(t, marketplace.CodeShopee, a.Code())
	assert.True(t, a.Enabled())

	t.Run("tokens", func(t *testing.T) {
		grant, err := a.ExchangeCode(ctx, marketplace.AuthorizationRequest{Code: "x"})
		require.NoError(t, err)
		assert.Equal(t, "token_simulado_"+ts, grant.AccessToken)
		assert.Equal(t, "refresh_simulado_"+ts, grant.RefreshToken)
		assert.Equal(t, 3600, grant.ExpiresIn)

		renewed, err := a.ExchangeRefreshToken(ctx, grant.RefreshToken)
		require.NoError(t, err)
		assert.Equal(t, "token_renovado_"+ts, renewed.AccessToken)

		_, err = a.ExchangeRefreshToken(ctx, "")
		assert.ErrorIs(t, err, marketplace.ErrRequestFailed)
	})

	t.Run("orders", func(t *testing.T) {
		remote, err := a.FetchRecentOrders(ctx, "token")
		require.NoError(t, err)
		require.Len(t, remote, 1)
		assert.Equal(t, "SP"+ts, remote[0].ExternalID)

		o, err := a.MapOrder(remote[0])
		require.NoError(t, err)
		assert.Equal(t, "shopee", o.Marketplace)
		assert.Equal(t, "SP"+ts, o.ExternalID)
		assert.Equal(t, "clienteSP", o.Buyer.DisplayName)
		assert.Equal(t, "cliente@shopee.com", o.Buyer.Email)
		assert.True(t, decimal.NewFromInt(200).Equal(o.TotalAmount))
		assert.True(t, now.Equal(o.CreatedAt))
		require.Len(t, o.Items, 1)
		assert.Equal(t, "itemSP1", o.Items[0].ItemID)
	})

	t.Run("fulfillment is accepted", func(t *testing.T) {
		assert.NoError(t, a.UpdateStock(ctx, "token", "itemSP1", 3))
		assert.NoError(t, a.SendTracking(ctx, "token", "SP1", marketplace.TrackingInfo{TrackingNumber: "X"}))
	})
}
