package order

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrInvalidOrder                = errors.New("order: invalid order")
	ErrOrderNotFound               = errors.New("order: not found")
	ErrFiscalResultAlreadyAttached = errors.New("order: fiscal result already attached")
)

// Buyer identifies who placed the order
type Buyer struct {
	ID          string
	DisplayName string
	Email       string
}

// Name returns the display name, falling back to the buyer id
func (b Buyer) Name() string {
	if strings.TrimSpace(b.DisplayName) != "" {
		return b.DisplayName
	}
	return b.ID
}

// Item is one order line
type Item struct {
	ItemID    string
	Title     string
	Quantity  int
	UnitPrice decimal.Decimal
}

// LineTotal returns quantity × unit price without rounding
func (i Item) LineTotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// FiscalResult references the artifacts produced for an order
type FiscalResult struct {
	DocumentNumber string
	XMLPath        string
	DocumentPath   string
	EmittedAt      time.Time
}

// Order is a marketplace order captured by a sync pass. ExternalID is
// unique per marketplace.
type Order struct {
	ID           uuid.UUID
	Marketplace  string
	ExternalID   string
	Buyer        Buyer
	Status       string
	TotalAmount  decimal.Decimal
	CreatedAt    time.Time
	Items        []Item
	RawPayload   json.RawMessage
	FiscalResult *FiscalResult
	SyncedAt     time.Time
}

// NewOrder validates and builds an order
func NewOrder(marketplace, externalID string, buyer Buyer, status string, total decimal.Decimal,
	createdAt time.Time, items []Item, raw json.RawMessage) (*Order, error) {
	if marketplace == "" {
		return nil, fmt.Errorf("%w: marketplace is required", ErrInvalidOrder)
	}
	if strings.TrimSpace(externalID) == "" {
		return nil, fmt.Errorf("%w: order id is required", ErrInvalidOrder)
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: order %s has no items", ErrInvalidOrder, externalID)
	}
	for i, item := range items {
		if item.Quantity <= 0 {
			return nil, fmt.Errorf("%w: item %d of order %s has non-positive quantity", ErrInvalidOrder, i+1, externalID)
		}
		if item.UnitPrice.IsNegative() {
			return nil, fmt.Errorf("%w: item %d of order %s has negative unit price", ErrInvalidOrder, i+1, externalID)
		}
	}
	if total.IsNegative() {
		return nil, fmt.Errorf("%w: order %s has negative total", ErrInvalidOrder, externalID)
	}

	return &Order{
		ID:          uuid.New(),
		Marketplace: marketplace,
		ExternalID:  externalID,
		Buyer:       buyer,
		Status:      status,
		TotalAmount: total,
		CreatedAt:   createdAt.UTC(),
		Items:       items,
		RawPayload:  raw,
	}, nil
}

// ComputedTotal is the exact sum of all line totals
func (o *Order) ComputedTotal() decimal.Decimal {
	total := decimal.Zero
	for _, item := range o.Items {
		total = total.Add(item.LineTotal())
	}
	return total
}

// HasFiscalResult reports whether a fiscal document was already emitted
func (o *Order) HasFiscalResult() bool {
	return o.FiscalResult != nil
}

// AttachFiscalResult records the emitted document. It can only happen once.
func (o *Order) AttachFiscalResult(result FiscalResult) error {
	if o.FiscalResult != nil {
		return ErrFiscalResultAlreadyAttached
	}
	o.FiscalResult = &result
	return nil
}
