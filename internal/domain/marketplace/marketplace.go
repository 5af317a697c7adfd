package marketplace

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/erp/marketsync/internal/domain/order"
)

// AuthorizationRequest carries a one-time authorization code. CodeVerifier
// is set when the authorization was started with PKCE.
type AuthorizationRequest struct {
	Code         string
	CodeVerifier string
}

// OAuthClient talks to a marketplace's OAuth endpoints
type OAuthClient interface {
	AuthorizationURL(state, codeChallenge string) string
	ExchangeCode(ctx context.Context, req AuthorizationRequest) (*TokenGrant, error)
	ExchangeRefreshToken(ctx context.Context, refreshToken string) (*TokenGrant, error)
}

// RemoteOrder is one order as returned by the marketplace, before mapping
type RemoteOrder struct {
	ExternalID string
	Payload    json.RawMessage
}

// OrderSource lists recent orders and maps them to domain orders
type OrderSource interface {
	FetchRecentOrders(ctx context.Context, accessToken string) ([]RemoteOrder, error)
	MapOrder(remote RemoteOrder) (*order.Order, error)
}

// TrackingInfo is the shipment data sent back to the marketplace
type TrackingInfo struct {
	TrackingNumber string
	Carrier        string
}

// Fulfillment covers the stock and shipment pass-through calls
type Fulfillment interface {
	UpdateStock(ctx context.Context, accessToken, itemID string, quantity int) error
	SendTracking(ctx context.Context, accessToken, orderID string, info TrackingInfo) error
}

// Marketplace is a complete marketplace integration
type Marketplace interface {
	Code() Code
	Enabled() bool
	OAuthClient
	OrderSource
	Fulfillment
}

// Registry holds the configured marketplaces
type Registry struct {
	mu    sync.RWMutex
	items map[Code]Marketplace
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{items: make(map[Code]Marketplace)}
}

// Register adds m, replacing any marketplace with the same code
func (r *Registry) Register(m Marketplace) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[m.Code()] = m
}

// Get returns the marketplace for code
func (r *Registry) Get(code Code) (Marketplace, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.items[code]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownMarketplace, code)
	}
	if !m.Enabled() {
		return nil, fmt.Errorf("%w: %s", ErrMarketplaceDisabled, code)
	}
	return m, nil
}

// Enabled returns the enabled marketplaces ordered by code
func (r *Registry) Enabled() []Marketplace {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Marketplace, 0, len(r.items))
	for _, m := range r.items {
		if m.Enabled() {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code() < out[j].Code() })
	return out
}
