package order

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validItems() []Item {
	return []Item{
		{ItemID: "MLB1", Title: "Caneca", Quantity: 2, UnitPrice: decimal.RequireFromString("10.005")},
		{ItemID: "MLB2", Title: "Camiseta", Quantity: 1, UnitPrice: decimal.RequireFromString("49.90")},
	}
}

func TestNewOrder(t *testing.T) {
	created := time.Date(2024, 3, 1, 12, 0, 0, 0, time.FixedZone("BRT", -3*3600))

	t.Run("valid order", func(t *testing.T) {
		o, err := NewOrder("mercadolivre", "2000001", Buyer{ID: "77", DisplayName: "ana"}, "paid",
			decimal.RequireFromString("69.91"), created, validItems(), nil)
		require.NoError(t, err)
		assert.NotEqual(t, "00000000-0000-0000-0000-000000000000", o.ID.String())
		assert.Equal(t, time.UTC, o.CreatedAt.Location())
		assert.False(t, o.HasFiscalResult())
	})

	tests := []struct {
		name       string
		externalID string
		items      []Item
		total      string
	}{
		{"missing id", " ", validItems(), "1"},
		{"no items", "1", nil, "1"},
		{"zero quantity", "1", []Item{{ItemID: "a", Quantity: 0, UnitPrice: decimal.NewFromInt(1)}}, "1"},
		{"negative price", "1", []Item{{ItemID: "a", Quantity: 1, UnitPrice: decimal.NewFromInt(-1)}}, "1"},
		{"negative total", "1", validItems(), "-5"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewOrder("mercadolivre", tt.externalID, Buyer{}, "paid",
				decimal.RequireFromString(tt.total), created, tt.items, nil)
			assert.ErrorIs(t, err, ErrInvalidOrder)
		})
	}
}

func TestOrder_ComputedTotal(t *testing.T) {
	o := &Order{Items: validItems()}
	assert.Equal(t, "69.91", o.ComputedTotal().String())
	assert.Equal(t, "20.01", o.Items[0].LineTotal().String())
}

func TestOrder_AttachFiscalResult(t *testing.T) {
	o := &Order{}
	require.NoError(t, o.AttachFiscalResult(FiscalResult{DocumentNumber: "15"}))
	assert.True(t, o.HasFiscalResult())
	assert.ErrorIs(t, o.AttachFiscalResult(FiscalResult{DocumentNumber: "16"}), ErrFiscalResultAlreadyAttached)
	assert.Equal(t, "15", o.FiscalResult.DocumentNumber)
}

func TestBuyer_Name(t *testing.T) {
	assert.Equal(t, "ana", Buyer{ID: "1", DisplayName: "ana"}.Name())
	assert.Equal(t, "1", Buyer{ID: "1", DisplayName: "  "}.Name())
}
