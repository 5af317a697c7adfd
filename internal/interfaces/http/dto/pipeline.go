package dto

import (
	"strings"
	"time"

	"github.com/erp/marketsync/internal/domain/fiscal"
	"github.com/erp/marketsync/internal/domain/marketplace"
	"github.com/erp/marketsync/internal/domain/order"
)

// AuthCodeRequest exchanges an authorization code without PKCE
type AuthCodeRequest struct {
	Code string `json:"code" binding:"required"`
}

// StockUpdateRequest sets the available quantity of a listing
type StockUpdateRequest struct {
	ItemID   string `json:"item_id" binding:"required"`
	Quantity *int   `json:"quantity" binding:"required,min=0"`
}

// TrackingRequest submits shipment tracking for an order
type TrackingRequest struct {
	OrderID        string `json:"order_id" binding:"required"`
	TrackingNumber string `json:"tracking_number" binding:"required"`
	Carrier        string `json:"carrier"`
}

// CredentialRequest stores the fiscal API credential of a user
type CredentialRequest struct {
	UserID      string `json:"user_id" binding:"required"`
	APIKey      string `json:"api_key" binding:"required"`
	Environment string `json:"environment" binding:"omitempty,oneof=production homologation"`
}

// OrderListRequest filters the order listing
type OrderListRequest struct {
	ListRequest
	Marketplace string `form:"marketplace" binding:"omitempty,oneof=mercadolivre shopee"`
	Emitted     *bool  `form:"emitted"`
}

// TokenResponse describes a stored marketplace token. Secrets are masked.
type TokenResponse struct {
	Marketplace     string     `json:"marketplace"`
	AccessToken     string     `json:"access_token"`
	HasRefreshToken bool       `json:"has_refresh_token"`
	IssuedAt        time.Time  `json:"issued_at"`
	ExpiresAt       *time.Time `json:"expires_at,omitempty"`
}

// NewTokenResponse converts a token record
func NewTokenResponse(rec *marketplace.TokenRecord) TokenResponse {
	resp := TokenResponse{
		Marketplace:     string(rec.Marketplace),
		AccessToken:     maskSecret(rec.AccessToken),
		HasRefreshToken: rec.RefreshToken != "",
		IssuedAt:        rec.IssuedAt,
	}
	if exp := rec.ExpiresAt(); !exp.IsZero() {
		resp.ExpiresAt = &exp
	}
	return resp
}

// CredentialResponse is a fiscal credential with its key masked
type CredentialResponse struct {
	UserID      string    `json:"user_id"`
	APIKey      string    `json:"api_key"`
	Environment string    `json:"environment"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// NewCredentialResponse converts a credential
func NewCredentialResponse(c *fiscal.Credential) CredentialResponse {
	return CredentialResponse{
		UserID:      c.UserID,
		APIKey:      c.MaskedAPIKey(),
		Environment: c.Environment,
		UpdatedAt:   c.UpdatedAt,
	}
}

// BuyerResponse identifies who placed an order
type BuyerResponse struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
}

// OrderItemResponse is one order line
type OrderItemResponse struct {
	ItemID    string `json:"item_id"`
	Title     string `json:"title"`
	Quantity  int    `json:"quantity"`
	UnitPrice string `json:"unit_price"`
}

// FiscalResultResponse references the emitted artifacts
type FiscalResultResponse struct {
	DocumentNumber string    `json:"document_number"`
	XMLPath        string    `json:"xml_path"`
	DocumentPath   string    `json:"document_path"`
	EmittedAt      time.Time `json:"emitted_at"`
}

// OrderResponse is a stored marketplace order
type OrderResponse struct {
	ID          string                `json:"id"`
	Marketplace string                `json:"marketplace"`
	ExternalID  string                `json:"external_id"`
	Buyer       BuyerResponse         `json:"buyer"`
	Status      string                `json:"status"`
	TotalAmount string                `json:"total_amount"`
	CreatedAt   time.Time             `json:"created_at"`
	SyncedAt    time.Time             `json:"synced_at"`
	Items       []OrderItemResponse   `json:"items"`
	Fiscal      *FiscalResultResponse `json:"fiscal,omitempty"`
}

// NewOrderResponse converts an order. Amounts keep two decimals.
func NewOrderResponse(o *order.Order) OrderResponse {
	items := make([]OrderItemResponse, len(o.Items))
	for i, it := range o.Items {
		items[i] = OrderItemResponse{
			ItemID:    it.ItemID,
			Title:     it.Title,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice.StringFixed(2),
		}
	}
	resp := OrderResponse{
		ID:          o.ID.String(),
		Marketplace: o.Marketplace,
		ExternalID:  o.ExternalID,
		Buyer: BuyerResponse{
			ID:    o.Buyer.ID,
			Name:  o.Buyer.Name(),
			Email: o.Buyer.Email,
		},
		Status:      o.Status,
		TotalAmount: o.TotalAmount.StringFixed(2),
		CreatedAt:   o.CreatedAt,
		SyncedAt:    o.SyncedAt,
		Items:       items,
	}
	if r := o.FiscalResult; r != nil {
		resp.Fiscal = &FiscalResultResponse{
			DocumentNumber: r.DocumentNumber,
			XMLPath:        r.XMLPath,
			DocumentPath:   r.DocumentPath,
			EmittedAt:      r.EmittedAt,
		}
	}
	return resp
}

// NewOrderResponses converts a page of orders
func NewOrderResponses(orders []*order.Order) []OrderResponse {
	out := make([]OrderResponse, len(orders))
	for i, o := range orders {
		out[i] = NewOrderResponse(o)
	}
	return out
}

// IssueTokenRequest asks for an operator bearer token
type IssueTokenRequest struct {
	Operator string   `json:"operator" binding:"required"`
	Scopes   []string `json:"scopes"`
}

func maskSecret(s string) string {
	if len(s) <= 4 {
		return strings.Repeat("*", len(s))
	}
	return strings.Repeat("*", len(s)-4) + s[len(s)-4:]
}
