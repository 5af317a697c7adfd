package ecommerce

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/erp/marketsync/internal/domain/marketplace"
	"github.com/erp/marketsync/internal/domain/order"
)

// maxResponseSize is the maximum allowed response size from marketplace APIs (10MB)
const maxResponseSize = 10 * 1024 * 1024

// MercadoLivreAdapter implements marketplace.Marketplace for Mercado Livre
type MercadoLivreAdapter struct {
	config     *MercadoLivreConfig
	httpClient *http.Client
	logger     *zap.Logger
}

// NewMercadoLivreAdapter creates a new Mercado Livre adapter with the given configuration
func NewMercadoLivreAdapter(config *MercadoLivreConfig, logger *zap.Logger) (*MercadoLivreAdapter, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MercadoLivreAdapter{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
		logger:     logger.With(zap.String("marketplace", marketplace.CodeMercadoLivre.String())),
	}, nil
}

// Code returns the marketplace code this adapter handles
func (a *MercadoLivreAdapter) Code() marketplace.Code {
	return marketplace.CodeMercadoLivre
}

// Enabled reports whether the integration is switched on
func (a *MercadoLivreAdapter) Enabled() bool {
	return a.config.Enabled
}

// ---------------------------------------------------------------------------
// OAuth
// ---------------------------------------------------------------------------

// AuthorizationURL builds the login redirect. The PKCE parameters are only
// added when a challenge is supplied.
func (a *MercadoLivreAdapter) AuthorizationURL(state, codeChallenge string) string {
	q := url.Values{}
	q.Set("response_type", "code")
	q.Set("client_id", a.config.ClientID)
	q.Set("redirect_uri", a.config.RedirectURI)
	if state != "" {
		q.Set("state", state)
	}
	if codeChallenge != "" {
		q.Set("code_challenge", codeChallenge)
		q.Set("code_challenge_method", "S256")
	}
	return a.config.AuthURL + "?" + q.Encode()
}

// ExchangeCode trades an authorization code for a token pair
func (a *MercadoLivreAdapter) ExchangeCode(ctx context.Context, req marketplace.AuthorizationRequest) (*marketplace.TokenGrant, error) {
	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", req.Code)
	form.Set("redirect_uri", a.config.RedirectURI)
	if req.CodeVerifier != "" {
		form.Set("code_verifier", req.CodeVerifier)
	}
	return a.requestToken(ctx, form)
}

// ExchangeRefreshToken trades a refresh token for a new token pair
func (a *MercadoLivreAdapter) ExchangeRefreshToken(ctx context.Context, refreshToken string) (*marketplace.TokenGrant, error) {
	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refreshToken)
	return a.requestToken(ctx, form)
}

func (a *MercadoLivreAdapter) requestToken(ctx context.Context, form url.Values) (*marketplace.TokenGrant, error) {
	form.Set("client_id", a.config.ClientID)
	form.Set("client_secret", a.config.ClientSecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.config.APIBaseURL+"/oauth/token", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("mercadolivre: failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	body, err := a.do(req)
	if err != nil {
		return nil, err
	}

	var resp mlTokenResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: failed to parse token response: %v", marketplace.ErrInvalidResponse, err)
	}
	if resp.AccessToken == "" {
		return nil, fmt.Errorf("%w: token response has no access_token", marketplace.ErrInvalidResponse)
	}
	return &marketplace.TokenGrant{
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
		ExpiresIn:    resp.ExpiresIn,
	}, nil
}

// ---------------------------------------------------------------------------
// Orders
// ---------------------------------------------------------------------------

// FetchRecentOrders lists the seller's recent orders, preserving API order
func (a *MercadoLivreAdapter) FetchRecentOrders(ctx context.Context, accessToken string) ([]marketplace.RemoteOrder, error) {
	req, err := a.newAuthorizedRequest(ctx, http.MethodGet, "/orders/search/recent", accessToken, nil)
	if err != nil {
		return nil, err
	}
	body, err := a.do(req)
	if err != nil {
		return nil, err
	}

	var resp mlOrdersSearchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: failed to parse orders response: %v", marketplace.ErrInvalidResponse, err)
	}

	orders := make([]marketplace.RemoteOrder, 0, len(resp.Results))
	for _, raw := range resp.Results {
		var head struct {
			ID json.Number `json:"id"`
		}
		// an unreadable id surfaces as a mapping error for this order only
		_ = json.Unmarshal(raw, &head)
		orders = append(orders, marketplace.RemoteOrder{
			ExternalID: head.ID.String(),
			Payload:    raw,
		})
	}
	return orders, nil
}

// MapOrder converts an order payload into a domain order
func (a *MercadoLivreAdapter) MapOrder(remote marketplace.RemoteOrder) (*order.Order, error) {
	mappingErr := func(err error) error {
		return &order.MappingError{
			Marketplace: marketplace.CodeMercadoLivre.String(),
			ExternalID:  remote.ExternalID,
			Err:         err,
		}
	}

	var src mlOrder
	if err := json.Unmarshal(remote.Payload, &src); err != nil {
		return nil, mappingErr(fmt.Errorf("decode payload: %w", err))
	}
	if src.ID == "" {
		return nil, mappingErr(errors.New("order has no id"))
	}

	createdAt, err := parseMercadoLivreTime(src.DateCreated)
	if err != nil {
		return nil, mappingErr(err)
	}

	items := make([]order.Item, 0, len(src.OrderItems))
	for i, it := range src.OrderItems {
		qty, err := parseQuantity(it.Quantity)
		if err != nil {
			return nil, mappingErr(fmt.Errorf("item %d: %w", i+1, err))
		}
		items = append(items, order.Item{
			ItemID:    it.Item.ID,
			Title:     it.Item.Title,
			Quantity:  qty,
			UnitPrice: it.UnitPrice,
		})
	}

	o, err := order.NewOrder(
		marketplace.CodeMercadoLivre.String(),
		src.ID.String(),
		order.Buyer{
			ID:          src.Buyer.ID.String(),
			DisplayName: src.Buyer.Nickname,
			Email:       src.Buyer.Email,
		},
		src.Status,
		src.TotalAmount,
		createdAt,
		items,
		remote.Payload,
	)
	if err != nil {
		return nil, mappingErr(err)
	}
	return o, nil
}

// ---------------------------------------------------------------------------
// Fulfillment
// ---------------------------------------------------------------------------

// UpdateStock sets the available quantity of a listing
func (a *MercadoLivreAdapter) UpdateStock(ctx context.Context, accessToken, itemID string, quantity int) error {
	if itemID == "" {
		return fmt.Errorf("%w: item id is required", marketplace.ErrRequestFailed)
	}
	req, err := a.newAuthorizedRequest(ctx, http.MethodPut, "/items/"+url.PathEscape(itemID)+"/quantity", accessToken,
		mlStockUpdate{Available: quantity})
	if err != nil {
		return err
	}
	if _, err := a.do(req); err != nil {
		return err
	}
	a.logger.Info("Stock updated", zap.String("item_id", itemID), zap.Int("quantity", quantity))
	return nil
}

// SendTracking attaches a custom shipment with tracking data to an order
func (a *MercadoLivreAdapter) SendTracking(ctx context.Context, accessToken, orderID string, info marketplace.TrackingInfo) error {
	if orderID == "" {
		return fmt.Errorf("%w: order id is required", marketplace.ErrRequestFailed)
	}
	body := mlShipmentRequest{Shipments: []mlShipment{{
		ShipmentType:   "custom",
		Status:         "ready_to_ship",
		TrackingNumber: info.TrackingNumber,
		Carrier:        info.Carrier,
	}}}
	req, err := a.newAuthorizedRequest(ctx, http.MethodPost, "/orders/"+url.PathEscape(orderID)+"/shipments", accessToken, body)
	if err != nil {
		return err
	}
	if _, err := a.do(req); err != nil {
		return err
	}
	a.logger.Info("Tracking sent", zap.String("order_id", orderID), zap.String("carrier", info.Carrier))
	return nil
}

// ---------------------------------------------------------------------------
// HTTP helpers
// ---------------------------------------------------------------------------

func (a *MercadoLivreAdapter) newAuthorizedRequest(ctx context.Context, method, path, accessToken string, payload any) (*http.Request, error) {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("mercadolivre: failed to encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, a.config.APIBaseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("mercadolivre: failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

// do executes req and maps transport and status failures to marketplace errors
func (a *MercadoLivreAdapter) do(req *http.Request) ([]byte, error) {
	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", marketplace.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("mercadolivre: failed to read response: %w", err)
	}

	if resp.StatusCode < 400 {
		return body, nil
	}

	var apiErr mlErrorResponse
	_ = json.Unmarshal(body, &apiErr)
	detail := apiErr.String()
	if detail == "" {
		detail = http.StatusText(resp.StatusCode)
	}

	a.logger.Warn("Mercado Livre request failed",
		zap.String("method", req.Method),
		zap.String("path", req.URL.Path),
		zap.Int("status", resp.StatusCode),
		zap.String("detail", detail),
	)

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("%w: HTTP %d: %s", marketplace.ErrUnauthorized, resp.StatusCode, detail)
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, fmt.Errorf("%w: HTTP %d: %s", marketplace.ErrRateLimited, resp.StatusCode, detail)
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: HTTP %d: %s", marketplace.ErrUnavailable, resp.StatusCode, detail)
	default:
		return nil, fmt.Errorf("%w: HTTP %d: %s", marketplace.ErrRequestFailed, resp.StatusCode, detail)
	}
}

func parseMercadoLivreTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, errors.New("order has no date_created")
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date_created %q: %w", s, err)
	}
	return t, nil
}

func parseQuantity(n json.Number) (int, error) {
	d, err := decimal.NewFromString(n.String())
	if err != nil {
		return 0, fmt.Errorf("invalid quantity %q", n.String())
	}
	if !d.Equal(d.Truncate(0)) {
		return 0, fmt.Errorf("fractional quantity %s", d.String())
	}
	return int(d.IntPart()), nil
}

var _ marketplace.Marketplace = (*MercadoLivreAdapter)(nil)
