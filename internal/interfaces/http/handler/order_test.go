package handler

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erp/marketsync/internal/domain/order"
)

type stubOrderReader struct {
	orders     []*order.Order
	lastFilter order.Filter
}

func (s *stubOrderReader) FindByID(_ context.Context, id uuid.UUID) (*order.Order, error) {
	for _, o := range s.orders {
		if o.ID == id {
			return o, nil
		}
	}
	return nil, order.ErrOrderNotFound
}

func (s *stubOrderReader) List(_ context.Context, filter order.Filter) ([]*order.Order, int64, error) {
	s.lastFilter = filter
	return s.orders, int64(len(s.orders)), nil
}

func sampleOrder(emitted bool) *order.Order {
	o := &order.Order{
		ID:          uuid.New(),
		Marketplace: "mercadolivre",
		ExternalID:  "2000001",
		Buyer:       order.Buyer{ID: "77", DisplayName: "Ana"},
		Status:      "paid",
		TotalAmount: decimal.RequireFromString("149.9"),
		CreatedAt:   time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC),
		Items: []order.Item{
			{ItemID: "MLB1", Title: "Cabo USB", Quantity: 1, UnitPrice: decimal.RequireFromString("149.9")},
		},
	}
	if emitted {
		o.FiscalResult = &order.FiscalResult{DocumentNumber: "1001", EmittedAt: time.Now()}
	}
	return o
}

func TestOrderHandler_List(t *testing.T) {
	t.Run("applies filters", func(t *testing.T) {
		reader := &stubOrderReader{orders: []*order.Order{sampleOrder(true)}}
		h := NewOrderHandler(reader)

		w := serve(http.MethodGet, "/orders", "/orders?marketplace=mercadolivre&emitted=true&page=2&page_size=10", nil, h.List)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "mercadolivre", reader.lastFilter.Marketplace)
		require.NotNil(t, reader.lastFilter.Emitted)
		assert.True(t, *reader.lastFilter.Emitted)
		assert.Equal(t, 2, reader.lastFilter.Page)
		assert.Equal(t, 10, reader.lastFilter.PageSize)

		resp := decode(t, w)
		require.NotNil(t, resp.Meta)
		assert.Equal(t, int64(1), resp.Meta.Total)

		rows := resp.Data.([]any)
		require.Len(t, rows, 1)
		row := rows[0].(map[string]any)
		assert.Equal(t, "149.90", row["total_amount"])
		assert.Equal(t, "1001", row["fiscal"].(map[string]any)["document_number"])
	})

	t.Run("defaults", func(t *testing.T) {
		reader := &stubOrderReader{}
		h := NewOrderHandler(reader)

		w := serve(http.MethodGet, "/orders", "/orders", nil, h.List)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Nil(t, reader.lastFilter.Emitted)
		assert.Equal(t, 1, reader.lastFilter.Page)
		assert.Equal(t, 20, reader.lastFilter.PageSize)
	})

	t.Run("rejects unknown marketplace", func(t *testing.T) {
		h := NewOrderHandler(&stubOrderReader{})
		w := serve(http.MethodGet, "/orders", "/orders?marketplace=amazon", nil, h.List)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("rejects oversized page", func(t *testing.T) {
		h := NewOrderHandler(&stubOrderReader{})
		w := serve(http.MethodGet, "/orders", "/orders?page_size=500", nil, h.List)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestOrderHandler_Get(t *testing.T) {
	o := sampleOrder(false)
	h := NewOrderHandler(&stubOrderReader{orders: []*order.Order{o}})

	t.Run("found", func(t *testing.T) {
		w := serve(http.MethodGet, "/orders/:id", "/orders/"+o.ID.String(), nil, h.Get)
		assert.Equal(t, http.StatusOK, w.Code)
		data := decode(t, w).Data.(map[string]any)
		assert.Equal(t, "2000001", data["external_id"])
		assert.NotContains(t, data, "fiscal")
	})

	t.Run("not found", func(t *testing.T) {
		w := serve(http.MethodGet, "/orders/:id", "/orders/"+uuid.NewString(), nil, h.Get)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("malformed id", func(t *testing.T) {
		w := serve(http.MethodGet, "/orders/:id", "/orders/not-a-uuid", nil, h.Get)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}
