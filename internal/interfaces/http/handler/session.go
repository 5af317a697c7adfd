package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/erp/marketsync/internal/infrastructure/auth"
	"github.com/erp/marketsync/internal/infrastructure/logger"
	"github.com/erp/marketsync/internal/interfaces/http/dto"
	"github.com/erp/marketsync/internal/interfaces/http/middleware"
)

// SessionHandler reports and revokes operator bearer tokens
type SessionHandler struct {
	BaseHandler
	blacklist auth.TokenBlacklist
	now       func() time.Time
}

// NewSessionHandler creates a new SessionHandler
func NewSessionHandler(blacklist auth.TokenBlacklist) *SessionHandler {
	return &SessionHandler{blacklist: blacklist, now: time.Now}
}

// Current godoc
// @ID           getSession
// @Summary      Current operator session
// @Tags         session
// @Produce      json
// @Success      200 {object} APIResponse[SessionResponse]
// @Failure      401 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /session [get]
func (h *SessionHandler) Current(c *gin.Context) {
	claims := middleware.GetJWTClaims(c)
	if claims == nil {
		h.Error(c, http.StatusUnauthorized, dto.ErrCodeUnauthorized, "Authentication required")
		return
	}
	h.Success(c, SessionResponse{
		Operator:  claims.Operator,
		Scopes:    claims.Scopes,
		TokenID:   claims.ID,
		ExpiresIn: claims.RemainingTTL(h.now()).Round(time.Second).String(),
	})
}

// Revoke godoc
// @ID           revokeSession
// @Summary      Revoke the current token
// @Description  Blacklists the presented bearer token until it would have expired
// @Tags         session
// @Produce      json
// @Success      200 {object} SuccessResponse
// @Failure      401 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /session/revoke [post]
func (h *SessionHandler) Revoke(c *gin.Context) {
	claims := middleware.GetJWTClaims(c)
	if claims == nil || claims.ID == "" {
		h.Error(c, http.StatusUnauthorized, dto.ErrCodeUnauthorized, "Authentication required")
		return
	}
	ttl := claims.RemainingTTL(h.now())
	if ttl > 0 {
		if err := h.blacklist.AddToBlacklist(c.Request.Context(), claims.ID, ttl); err != nil {
			h.HandleError(c, err)
			return
		}
	}
	logger.GetGinLogger(c, nil).Info("Operator token revoked",
		zap.String("jti", claims.ID),
		zap.Duration("ttl", ttl),
	)
	h.Success(c, gin.H{"revoked": claims.ID})
}
