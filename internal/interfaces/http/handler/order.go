package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/erp/marketsync/internal/domain/order"
	"github.com/erp/marketsync/internal/interfaces/http/dto"
)

// OrderHandler exposes stored marketplace orders
type OrderHandler struct {
	BaseHandler
	orders OrderReader
}

// NewOrderHandler creates a new OrderHandler
func NewOrderHandler(orders OrderReader) *OrderHandler {
	return &OrderHandler{orders: orders}
}

// List godoc
// @ID           listOrders
// @Summary      List synchronized orders
// @Description  Returns stored orders newest first with their fiscal status
// @Tags         orders
// @Produce      json
// @Param        marketplace query string false "Marketplace code" Enums(mercadolivre, shopee)
// @Param        emitted     query bool   false "Filter on fiscal emission"
// @Param        page        query int    false "Page number" default(1)
// @Param        page_size   query int    false "Page size" default(20) maximum(100)
// @Success      200 {object} APIResponse[[]dto.OrderResponse]
// @Failure      400 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /orders [get]
func (h *OrderHandler) List(c *gin.Context) {
	req := dto.OrderListRequest{ListRequest: dto.DefaultListRequest()}
	if err := c.ShouldBindQuery(&req); err != nil {
		h.ValidationError(c, err)
		return
	}

	orders, total, err := h.orders.List(c.Request.Context(), order.Filter{
		Marketplace: req.Marketplace,
		Emitted:     req.Emitted,
		Page:        req.Page,
		PageSize:    req.PageSize,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, dto.NewOrderResponses(orders), total, req.Page, req.PageSize)
}

// Get godoc
// @ID           getOrder
// @Summary      Get an order
// @Tags         orders
// @Produce      json
// @Param        id path string true "Order id" format(uuid)
// @Success      200 {object} APIResponse[dto.OrderResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /orders/{id} [get]
func (h *OrderHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid order id")
		return
	}
	o, err := h.orders.FindByID(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.NewOrderResponse(o))
}
