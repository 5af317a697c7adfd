package ecommerce

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/erp/marketsync/internal/domain/marketplace"
	"github.com/erp/marketsync/internal/domain/order"
)

// shopeeTokenTTL is the lifetime reported for simulated tokens, in seconds
const shopeeTokenTTL = 3600

// ShopeeAdapter is a simulated Shopee integration. It issues synthetic
// tokens and returns one fabricated paid order per sync pass, which keeps
// the pipeline exercisable without partner credentials.
type ShopeeAdapter struct {
	enabled bool
	now     func() time.Time
	logger  *zap.Logger
}

// ShopeeOption configures a ShopeeAdapter
type ShopeeOption func(*ShopeeAdapter)

// WithShopeeClock replaces the adapter's clock
func WithShopeeClock(now func() time.Time) ShopeeOption {
	return func(a *ShopeeAdapter) {
		a.now = now
	}
}

// NewShopeeAdapter creates the simulated adapter
func NewShopeeAdapter(enabled bool, logger *zap.Logger, opts ...ShopeeOption) *ShopeeAdapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &ShopeeAdapter{
		enabled: enabled,
		now:     time.Now,
		logger:  logger.With(zap.String("marketplace", marketplace.CodeShopee.String())),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// shopeeOrder is the simulated order payload
type shopeeOrder struct {
	OrderID     string          `json:"order_id"`
	Buyer       shopeeBuyer     `json:"buyer"`
	Status      string          `json:"status"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	DateCreated time.Time       `json:"date_created"`
	Items       []shopeeItem    `json:"items"`
}

type shopeeBuyer struct {
	ID       int64  `json:"id"`
	Nickname string `json:"nickname"`
	Email    string `json:"email"`
}

type shopeeItem struct {
	ID        string          `json:"id"`
	Title     string          `json:"title"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// Code returns the marketplace code this adapter handles
func (a *ShopeeAdapter) Code() marketplace.Code {
	return marketplace.CodeShopee
}

// Enabled reports whether the integration is switched on
func (a *ShopeeAdapter) Enabled() bool {
	return a.enabled
}

// AuthorizationURL has no real login page to point to
func (a *ShopeeAdapter) AuthorizationURL(state, _ string) string {
	return "/api/v1/marketplaces/shopee/auth/callback?code=simulated&state=" + state
}

// ExchangeCode issues a synthetic token pair
func (a *ShopeeAdapter) ExchangeCode(_ context.Context, _ marketplace.AuthorizationRequest) (*marketplace.TokenGrant, error) {
	ts := a.timestamp()
	return &marketplace.TokenGrant{
		AccessToken:  "token_simulado_" + ts,
		RefreshToken: "refresh_simulado_" + ts,
		ExpiresIn:    shopeeTokenTTL,
	}, nil
}

// ExchangeRefreshToken issues a renewed synthetic token pair
func (a *ShopeeAdapter) ExchangeRefreshToken(_ context.Context, refreshToken string) (*marketplace.TokenGrant, error) {
	if refreshToken == "" {
		return nil, fmt.Errorf("%w: refresh token is required", marketplace.ErrRequestFailed)
	}
	ts := a.timestamp()
	return &marketplace.TokenGrant{
		AccessToken:  "token_renovado_" + ts,
		RefreshToken: "refresh_renovado_" + ts,
		ExpiresIn:    shopeeTokenTTL,
	}, nil
}

// FetchRecentOrders fabricates a single paid order keyed by the current time
func (a *ShopeeAdapter) FetchRecentOrders(_ context.Context, _ string) ([]marketplace.RemoteOrder, error) {
	now := a.now().UTC()
	src := shopeeOrder{
		OrderID:     "SP" + strconv.FormatInt(now.UnixMilli(), 10),
		Buyer:       shopeeBuyer{ID: 123, Nickname: "clienteSP", Email: "cliente@shopee.com"},
		Status:      "paid",
		TotalAmount: decimal.NewFromInt(200),
		DateCreated: now,
		Items: []shopeeItem{{
			ID:        "itemSP1",
			Title:     "Produto Shopee 1",
			Quantity:  1,
			UnitPrice: decimal.NewFromInt(200),
		}},
	}
	payload, err := json.Marshal(src)
	if err != nil {
		return nil, fmt.Errorf("shopee: failed to encode order: %w", err)
	}
	return []marketplace.RemoteOrder{{ExternalID: src.OrderID, Payload: payload}}, nil
}

// MapOrder converts a simulated payload into a domain order
func (a *ShopeeAdapter) MapOrder(remote marketplace.RemoteOrder) (*order.Order, error) {
	var src shopeeOrder
	if err := json.Unmarshal(remote.Payload, &src); err != nil {
		return nil, &order.MappingError{Marketplace: marketplace.CodeShopee.String(), ExternalID: remote.ExternalID, Err: err}
	}

	items := make([]order.Item, 0, len(src.Items))
	for _, it := range src.Items {
		items = append(items, order.Item{
			ItemID:    it.ID,
			Title:     it.Title,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
		})
	}

	o, err := order.NewOrder(
		marketplace.CodeShopee.String(),
		src.OrderID,
		order.Buyer{ID: strconv.FormatInt(src.Buyer.ID, 10), DisplayName: src.Buyer.Nickname, Email: src.Buyer.Email},
		src.Status,
		src.TotalAmount,
		src.DateCreated,
		items,
		remote.Payload,
	)
	if err != nil {
		return nil, &order.MappingError{Marketplace: marketplace.CodeShopee.String(), ExternalID: remote.ExternalID, Err: err}
	}
	return o, nil
}

// UpdateStock only records the request
func (a *ShopeeAdapter) UpdateStock(_ context.Context, _, itemID string, quantity int) error {
	a.logger.Info("Stock updated", zap.String("item_id", itemID), zap.Int("quantity", quantity))
	return nil
}

// SendTracking only records the request
func (a *ShopeeAdapter) SendTracking(_ context.Context, _, orderID string, info marketplace.TrackingInfo) error {
	a.logger.Info("Tracking sent",
		zap.String("order_id", orderID),
		zap.String("tracking_number", info.TrackingNumber),
		zap.String("carrier", info.Carrier),
	)
	return nil
}

func (a *ShopeeAdapter) timestamp() string {
	return strconv.FormatInt(a.now().UnixMilli(), 10)
}

var _ marketplace.Marketplace = (*ShopeeAdapter)(nil)
