package ecommerce

import (
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"
)

// mlTokenResponse is the body returned by POST /oauth/token
type mlTokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	Scope        string `json:"scope"`
	UserID       int64  `json:"user_id"`
	RefreshToken string `json:"refresh_token"`
}

// mlErrorResponse is the error envelope used across the API
type mlErrorResponse struct {
	Message          string `json:"message"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
	Status           int    `json:"status"`
}

func (e mlErrorResponse) String() string {
	parts := make([]string, 0, 2)
	if e.Error != "" {
		parts = append(parts, e.Error)
	}
	switch {
	case e.Message != "":
		parts = append(parts, e.Message)
	case e.ErrorDescription != "":
		parts = append(parts, e.ErrorDescription)
	}
	return strings.Join(parts, ": ")
}

// mlOrdersSearchResponse is the body of GET /orders/search/recent
type mlOrdersSearchResponse struct {
	Results []json.RawMessage `json:"results"`
}

// mlOrder is the subset of the order resource that is captured.
// Numeric fields accept both JSON numbers and numeric strings.
type mlOrder struct {
	ID          json.Number     `json:"id"`
	Status      string          `json:"status"`
	DateCreated string          `json:"date_created"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Buyer       mlBuyer         `json:"buyer"`
	OrderItems  []mlOrderItem   `json:"order_items"`
}

type mlBuyer struct {
	ID       json.Number `json:"id"`
	Nickname string      `json:"nickname"`
	Email    string      `json:"email"`
}

type mlOrderItem struct {
	Item struct {
		ID    string `json:"id"`
		Title string `json:"title"`
	} `json:"item"`
	Quantity  json.Number     `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// mlStockUpdate is the body of PUT /items/{id}/quantity
type mlStockUpdate struct {
	Available int `json:"available"`
}

// mlShipmentRequest is the body of POST /orders/{id}/shipments
type mlShipmentRequest struct {
	Shipments []mlShipment `json:"shipments"`
}

type mlShipment struct {
	ShipmentType   string `json:"shipment_type"`
	Status         string `json:"status"`
	TrackingNumber string `json:"tracking_number"`
	Carrier        string `json:"carrier"`
}
