package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/erp/marketsync/internal/domain/marketplace"
	"github.com/erp/marketsync/internal/interfaces/http/dto"
)

const defaultTokenHistory = 10

// MarketplaceHandler handles marketplace authorization, order sync and
// fulfillment endpoints
type MarketplaceHandler struct {
	BaseHandler
	auth        MarketplaceAuthenticator
	syncer      OrderSyncer
	fulfillment FulfillmentUpdater
}

// NewMarketplaceHandler creates a new MarketplaceHandler
func NewMarketplaceHandler(auth MarketplaceAuthenticator, syncer OrderSyncer, fulfillment FulfillmentUpdater) *MarketplaceHandler {
	return &MarketplaceHandler{
		auth:        auth,
		syncer:      syncer,
		fulfillment: fulfillment,
	}
}

func (h *MarketplaceHandler) marketplaceCode(c *gin.Context) (marketplace.Code, bool) {
	code, err := marketplace.ParseCode(c.Param("code"))
	if err != nil {
		h.HandleError(c, err)
		return "", false
	}
	return code, true
}

// Login godoc
// @ID           loginMarketplace
// @Summary      Start marketplace authorization
// @Description  Redirects to the marketplace login page with a PKCE challenge
// @Tags         marketplaces
// @Param        code path string true "Marketplace code" Enums(mercadolivre, shopee)
// @Success      302
// @Failure      400 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /marketplaces/{code}/auth/login [get]
func (h *MarketplaceHandler) Login(c *gin.Context) {
	code, ok := h.marketplaceCode(c)
	if !ok {
		return
	}
	start, err := h.auth.BeginAuthorization(c.Request.Context(), code)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.Redirect(http.StatusFound, start.URL)
}

// Callback godoc
// @ID           callbackMarketplace
// @Summary      Complete marketplace authorization
// @Description  Receives the marketplace redirect and exchanges the code with the stored PKCE verifier
// @Tags         marketplaces
// @Produce      json
// @Param        code  path  string true "Marketplace code"
// @Param        state query string true "Authorization state"
// @Success      200 {object} APIResponse[dto.TokenResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      502 {object} ErrorResponse
// @Router       /marketplaces/{code}/auth/callback [get]
func (h *MarketplaceHandler) Callback(c *gin.Context) {
	code, ok := h.marketplaceCode(c)
	if !ok {
		return
	}
	authCode, state := c.Query("code"), c.Query("state")
	if authCode == "" || state == "" {
		h.BadRequest(c, "code and state are required")
		return
	}
	rec, err := h.auth.CompleteAuthorization(c.Request.Context(), code, state, authCode)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.NewTokenResponse(rec))
}

// ExchangeCode godoc
// @ID           exchangeMarketplaceCode
// @Summary      Exchange an authorization code
// @Description  Exchanges a code obtained outside the PKCE flow and stores the token
// @Tags         marketplaces
// @Accept       json
// @Produce      json
// @Param        code    path string              true "Marketplace code"
// @Param        request body dto.AuthCodeRequest true "Authorization code"
// @Success      200 {object} APIResponse[dto.TokenResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      502 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /marketplaces/{code}/auth/token [post]
func (h *MarketplaceHandler) ExchangeCode(c *gin.Context) {
	code, ok := h.marketplaceCode(c)
	if !ok {
		return
	}
	var req dto.AuthCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.ValidationError(c, err)
		return
	}
	rec, err := h.auth.Authenticate(c.Request.Context(), code, req.Code)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.NewTokenResponse(rec))
}

// Refresh godoc
// @ID           refreshMarketplaceToken
// @Summary      Refresh the marketplace token
// @Tags         marketplaces
// @Produce      json
// @Param        code path string true "Marketplace code"
// @Success      200 {object} APIResponse[dto.TokenResponse]
// @Failure      401 {object} ErrorResponse
// @Failure      502 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /marketplaces/{code}/auth/refresh [post]
func (h *MarketplaceHandler) Refresh(c *gin.Context) {
	code, ok := h.marketplaceCode(c)
	if !ok {
		return
	}
	rec, err := h.auth.Refresh(c.Request.Context(), code)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.NewTokenResponse(rec))
}

// Tokens godoc
// @ID           listMarketplaceTokens
// @Summary      List issued tokens
// @Description  Returns the most recent token records, newest first, with secrets masked
// @Tags         marketplaces
// @Produce      json
// @Param        code  path  string true  "Marketplace code"
// @Param        limit query int    false "Maximum records" default(10)
// @Success      200 {object} APIResponse[[]dto.TokenResponse]
// @Security     BearerAuth
// @Router       /marketplaces/{code}/auth/tokens [get]
func (h *MarketplaceHandler) Tokens(c *gin.Context) {
	code, ok := h.marketplaceCode(c)
	if !ok {
		return
	}
	limit := defaultTokenHistory
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 100 {
			h.BadRequest(c, "limit must be between 1 and 100")
			return
		}
		limit = n
	}
	records, err := h.auth.History(c.Request.Context(), code, limit)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	out := make([]dto.TokenResponse, len(records))
	for i, rec := range records {
		out[i] = dto.NewTokenResponse(rec)
	}
	h.Success(c, out)
}

// SyncOrders godoc
// @ID           syncMarketplaceOrders
// @Summary      Sync recent orders
// @Description  Fetches recent orders and stores the unseen ones with a pending fiscal job
// @Tags         marketplaces
// @Produce      json
// @Param        code path string true "Marketplace code"
// @Success      200 {object} APIResponse[integration.SyncResult]
// @Failure      401 {object} ErrorResponse
// @Failure      502 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /marketplaces/{code}/orders/sync [post]
func (h *MarketplaceHandler) SyncOrders(c *gin.Context) {
	code, ok := h.marketplaceCode(c)
	if !ok {
		return
	}
	result, err := h.syncer.SyncRecentOrders(c.Request.Context(), code)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// UpdateStock godoc
// @ID           updateMarketplaceStock
// @Summary      Update listing stock
// @Tags         marketplaces
// @Accept       json
// @Produce      json
// @Param        code    path string                 true "Marketplace code"
// @Param        request body dto.StockUpdateRequest true "Stock update"
// @Success      200 {object} SuccessResponse
// @Failure      400 {object} ErrorResponse
// @Failure      502 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /marketplaces/{code}/stock [post]
func (h *MarketplaceHandler) UpdateStock(c *gin.Context) {
	code, ok := h.marketplaceCode(c)
	if !ok {
		return
	}
	var req dto.StockUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.ValidationError(c, err)
		return
	}
	if err := h.fulfillment.UpdateStock(c.Request.Context(), code, req.ItemID, *req.Quantity); err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, gin.H{"item_id": req.ItemID, "quantity": *req.Quantity})
}

// SendTracking godoc
// @ID           sendMarketplaceTracking
// @Summary      Submit shipment tracking
// @Tags         marketplaces
// @Accept       json
// @Produce      json
// @Param        code    path string              true "Marketplace code"
// @Param        request body dto.TrackingRequest true "Tracking data"
// @Success      200 {object} SuccessResponse
// @Failure      400 {object} ErrorResponse
// @Failure      502 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /marketplaces/{code}/tracking [post]
func (h *MarketplaceHandler) SendTracking(c *gin.Context) {
	code, ok := h.marketplaceCode(c)
	if !ok {
		return
	}
	var req dto.TrackingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.ValidationError(c, err)
		return
	}
	info := marketplace.TrackingInfo{TrackingNumber: req.TrackingNumber, Carrier: req.Carrier}
	if err := h.fulfillment.SendTracking(c.Request.Context(), code, req.OrderID, info); err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, gin.H{"order_id": req.OrderID, "tracking_number": req.TrackingNumber})
}
