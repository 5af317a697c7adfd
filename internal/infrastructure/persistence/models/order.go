package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/erp/marketsync/internal/domain/order"
)

// OrderModel is the persistence model for captured marketplace orders.
// (marketplace, external_id) is unique; this constraint is what prevents
// duplicate orders when two sync passes race.
type OrderModel struct {
	BaseModel
	Marketplace          string           `gorm:"type:varchar(32);not null;uniqueIndex:ux_orders_marketplace_external,priority:1"`
	ExternalID           string           `gorm:"type:varchar(64);not null;uniqueIndex:ux_orders_marketplace_external,priority:2"`
	BuyerID              string           `gorm:"type:varchar(64)"`
	BuyerName            string           `gorm:"type:varchar(255)"`
	BuyerEmail           string           `gorm:"type:varchar(255)"`
	Status               string           `gorm:"type:varchar(32)"`
	TotalAmount          decimal.Decimal  `gorm:"type:numeric(18,4);not null"`
	PlacedAt             time.Time        `gorm:"not null"`
	RawPayload           string           `gorm:"type:text"`
	FiscalDocumentNumber *string          `gorm:"type:varchar(64);index"`
	FiscalXMLPath        *string          `gorm:"type:varchar(512)"`
	FiscalDocumentPath   *string          `gorm:"type:varchar(512)"`
	FiscalEmittedAt      *time.Time       `gorm:""`
	Items                []OrderItemModel `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
}

// TableName returns the table name for GORM
func (OrderModel) TableName() string {
	return "orders"
}

// OrderItemModel is one order line
type OrderItemModel struct {
	ID        uuid.UUID       `gorm:"type:uuid;primary_key"`
	OrderID   uuid.UUID       `gorm:"type:uuid;not null;index"`
	Position  int             `gorm:"not null"`
	ItemID    string          `gorm:"type:varchar(64);not null"`
	Title     string          `gorm:"type:varchar(512)"`
	Quantity  int             `gorm:"not null"`
	UnitPrice decimal.Decimal `gorm:"type:numeric(18,4);not null"`
}

// TableName returns the table name for GORM
func (OrderItemModel) TableName() string {
	return "order_items"
}

// ToDomain converts the model to a domain order. Items must be preloaded.
func (m *OrderModel) ToDomain() *order.Order {
	o := &order.Order{
		ID:          m.ID,
		Marketplace: m.Marketplace,
		ExternalID:  m.ExternalID,
		Buyer: order.Buyer{
			ID:          m.BuyerID,
			DisplayName: m.BuyerName,
			Email:       m.BuyerEmail,
		},
		Status:      m.Status,
		TotalAmount: m.TotalAmount,
		CreatedAt:   m.PlacedAt.UTC(),
		Items:       make([]order.Item, 0, len(m.Items)),
		SyncedAt:    m.CreatedAt.UTC(),
	}
	if m.RawPayload != "" {
		o.RawPayload = []byte(m.RawPayload)
	}
	for _, item := range m.Items {
		o.Items = append(o.Items, order.Item{
			ItemID:    item.ItemID,
			Title:     item.Title,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		})
	}
	if m.FiscalDocumentNumber != nil {
		result := &order.FiscalResult{DocumentNumber: *m.FiscalDocumentNumber}
		if m.FiscalXMLPath != nil {
			result.XMLPath = *m.FiscalXMLPath
		}
		if m.FiscalDocumentPath != nil {
			result.DocumentPath = *m.FiscalDocumentPath
		}
		if m.FiscalEmittedAt != nil {
			result.EmittedAt = m.FiscalEmittedAt.UTC()
		}
		o.FiscalResult = result
	}
	return o
}

// FromDomain populates the model, including items, from a domain order
func (m *OrderModel) FromDomain(o *order.Order, now time.Time) {
	m.ID = o.ID
	m.CreatedAt = now
	m.UpdatedAt = now
	m.Marketplace = o.Marketplace
	m.ExternalID = o.ExternalID
	m.BuyerID = o.Buyer.ID
	m.BuyerName = o.Buyer.DisplayName
	m.BuyerEmail = o.Buyer.Email
	m.Status = o.Status
	m.TotalAmount = o.TotalAmount
	m.PlacedAt = o.CreatedAt
	m.RawPayload = string(o.RawPayload)
	m.Items = make([]OrderItemModel, 0, len(o.Items))
	for i, item := range o.Items {
		m.Items = append(m.Items, OrderItemModel{
			ID:        uuid.New(),
			OrderID:   o.ID,
			Position:  i + 1,
			ItemID:    item.ItemID,
			Title:     item.Title,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		})
	}
	if o.FiscalResult != nil {
		m.SetFiscalResult(*o.FiscalResult)
	}
}

// SetFiscalResult copies the fiscal result columns
func (m *OrderModel) SetFiscalResult(r order.FiscalResult) {
	number, xmlPath, docPath, emitted := r.DocumentNumber, r.XMLPath, r.DocumentPath, r.EmittedAt
	m.FiscalDocumentNumber = &number
	m.FiscalXMLPath = &xmlPath
	m.FiscalDocumentPath = &docPath
	m.FiscalEmittedAt = &emitted
}
