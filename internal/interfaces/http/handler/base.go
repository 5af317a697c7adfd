package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/erp/marketsync/internal/domain/fiscal"
	"github.com/erp/marketsync/internal/domain/marketplace"
	"github.com/erp/marketsync/internal/domain/order"
	"github.com/erp/marketsync/internal/domain/shared"
	"github.com/erp/marketsync/internal/infrastructure/logger"
	"github.com/erp/marketsync/internal/infrastructure/scheduler"
	"github.com/erp/marketsync/internal/interfaces/http/dto"
	"github.com/erp/marketsync/internal/interfaces/http/middleware"
)

// BaseHandler provides common handler utilities
type BaseHandler struct{}

// Success sends a success response
func (h *BaseHandler) Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, dto.NewSuccessResponse(data))
}

// SuccessWithMeta sends a success response with pagination meta
func (h *BaseHandler) SuccessWithMeta(c *gin.Context, data any, total int64, page, pageSize int) {
	c.JSON(http.StatusOK, dto.NewSuccessResponseWithMeta(data, total, page, pageSize))
}

// Accepted sends a 202 response for work started in the background
func (h *BaseHandler) Accepted(c *gin.Context, data any) {
	c.JSON(http.StatusAccepted, dto.NewSuccessResponse(data))
}

// Error sends an error response with the appropriate status code
func (h *BaseHandler) Error(c *gin.Context, statusCode int, code, message string) {
	c.JSON(statusCode, dto.NewErrorResponseWithRequestID(code, message, middleware.GetRequestID(c)))
}

// BadRequest sends a 400 bad request response
func (h *BaseHandler) BadRequest(c *gin.Context, message string) {
	h.Error(c, http.StatusBadRequest, dto.ErrCodeBadRequest, message)
}

// NotFound sends a 404 not found response
func (h *BaseHandler) NotFound(c *gin.Context, message string) {
	h.Error(c, http.StatusNotFound, dto.ErrCodeNotFound, message)
}

// InternalError sends a 500 internal server error response
func (h *BaseHandler) InternalError(c *gin.Context) {
	h.Error(c, http.StatusInternalServerError, dto.ErrCodeInternal, "An unexpected error occurred")
}

// ValidationError answers a failed request binding
func (h *BaseHandler) ValidationError(c *gin.Context, err error) {
	middleware.HandleValidationError(c, err)
}

// errorMapping is checked in order; the first matching sentinel wins
var errorMapping = []struct {
	target error
	status int
	code   string
}{
	{marketplace.ErrNoCredential, http.StatusUnauthorized, dto.ErrCodeUnauthorized},
	{marketplace.ErrUnknownMarketplace, http.StatusBadRequest, dto.ErrCodeInvalidInput},
	{marketplace.ErrMarketplaceDisabled, http.StatusBadRequest, dto.ErrCodeInvalidState},
	{marketplace.ErrInvalidState, http.StatusBadRequest, dto.ErrCodeInvalidState},
	{marketplace.ErrAuthExchange, http.StatusBadGateway, dto.ErrCodeUpstream},
	{marketplace.ErrRefresh, http.StatusBadGateway, dto.ErrCodeUpstream},
	{marketplace.ErrRateLimited, http.StatusTooManyRequests, dto.ErrCodeRateLimited},
	{marketplace.ErrUnavailable, http.StatusServiceUnavailable, dto.ErrCodeUpstreamUnavailable},
	{marketplace.ErrUnauthorized, http.StatusBadGateway, dto.ErrCodeUpstream},
	{marketplace.ErrRequestFailed, http.StatusBadGateway, dto.ErrCodeUpstream},
	{marketplace.ErrInvalidResponse, http.StatusBadGateway, dto.ErrCodeUpstream},
	{fiscal.ErrEmissionRejected, http.StatusBadGateway, dto.ErrCodeEmissionRejected},
	{fiscal.ErrDeliveryFailed, http.StatusBadGateway, dto.ErrCodeUpstream},
	{fiscal.ErrInvalidCredential, http.StatusBadRequest, dto.ErrCodeInvalidInput},
	{fiscal.ErrCredentialNotFound, http.StatusNotFound, dto.ErrCodeNotFound},
	{fiscal.ErrArtifactNotFound, http.StatusNotFound, dto.ErrCodeNotFound},
	{fiscal.ErrJobNotFound, http.StatusNotFound, dto.ErrCodeNotFound},
	{order.ErrOrderNotFound, http.StatusNotFound, dto.ErrCodeNotFound},
	{order.ErrInvalidOrder, http.StatusBadRequest, dto.ErrCodeInvalidInput},
	{scheduler.ErrRunInProgress, http.StatusConflict, dto.ErrCodeRunInProgress},
	{scheduler.ErrUnknownJob, http.StatusNotFound, dto.ErrCodeNotFound},
	{scheduler.ErrSchedulerNotRunning, http.StatusServiceUnavailable, dto.ErrCodeUpstreamUnavailable},
	{context.DeadlineExceeded, http.StatusGatewayTimeout, dto.ErrCodeUpstreamUnavailable},
}

// HandleError maps service errors to HTTP responses. Server-side failures
// are logged and answered with a generic message.
func (h *BaseHandler) HandleError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)

	for _, m := range errorMapping {
		if errors.Is(err, m.target) {
			h.Error(c, m.status, m.code, err.Error())
			return
		}
	}

	var domainErr *shared.DomainError
	if errors.As(err, &domainErr) {
		code := dto.NormalizeErrorCode(domainErr.Code)
		status := dto.GetHTTPStatus(code)
		if code == dto.ErrCodeInvalidState {
			status = http.StatusBadRequest
		}
		h.Error(c, status, code, err.Error())
		return
	}

	logger.GetGinLogger(c, nil).Error("Unhandled request error", zap.Error(err))
	h.InternalError(c)
}
