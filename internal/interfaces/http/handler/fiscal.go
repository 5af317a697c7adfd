package handler

import (
	"bytes"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/erp/marketsync/internal/application/integration"
	"github.com/erp/marketsync/internal/interfaces/http/dto"
)

// FiscalHandler handles the fiscal queue, document and credential endpoints
type FiscalHandler struct {
	BaseHandler
	queue            QueueDrainer
	documents        DocumentBundler
	credentials      CredentialStore
	defaultBatchSize int
}

// NewFiscalHandler creates a new FiscalHandler. batchSize applies when a
// drain request names none.
func NewFiscalHandler(queue QueueDrainer, documents DocumentBundler, credentials CredentialStore, batchSize int) *FiscalHandler {
	if batchSize <= 0 {
		batchSize = integration.DefaultBatchSize
	}
	return &FiscalHandler{
		queue:            queue,
		documents:        documents,
		credentials:      credentials,
		defaultBatchSize: batchSize,
	}
}

// DrainQueue godoc
// @ID           drainFiscalQueue
// @Summary      Drain the fiscal queue
// @Description  Emits fiscal documents for up to batch_size pending jobs, oldest first
// @Tags         fiscal
// @Produce      json
// @Param        batch_size query int false "Jobs to process, capped at 100"
// @Success      200 {object} APIResponse[integration.DrainResult]
// @Failure      400 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /fiscal/queue/drain [post]
func (h *FiscalHandler) DrainQueue(c *gin.Context) {
	batchSize := h.defaultBatchSize
	if raw := c.Query("batch_size"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			h.BadRequest(c, "batch_size must be an integer")
			return
		}
		batchSize = n
	}
	result, err := h.queue.Drain(c.Request.Context(), batchSize)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// QueueStats godoc
// @ID           getFiscalQueueStats
// @Summary      Fiscal queue statistics
// @Tags         fiscal
// @Produce      json
// @Success      200 {object} APIResponse[fiscal.QueueStats]
// @Security     BearerAuth
// @Router       /fiscal/queue/stats [get]
func (h *FiscalHandler) QueueStats(c *gin.Context) {
	stats, err := h.queue.Stats(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, stats)
}

// DownloadDocument godoc
// @ID           downloadFiscalDocument
// @Summary      Download a fiscal document
// @Description  Returns a ZIP holding NFe_<number>.xml and DANFE_<number>.pdf
// @Tags         fiscal
// @Produce      application/zip
// @Param        number path string true "Document number"
// @Success      200 {file} binary
// @Failure      404 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /fiscal/documents/{number}/download [get]
func (h *FiscalHandler) DownloadDocument(c *gin.Context) {
	bundle, err := h.documents.Bundle(c.Request.Context(), c.Param("number"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.DataFromReader(http.StatusOK, int64(len(bundle.Data)), "application/zip",
		bytes.NewReader(bundle.Data),
		map[string]string{"Content-Disposition": `attachment; filename="` + bundle.FileName + `"`},
	)
}

// SaveCredential godoc
// @ID           saveFiscalCredential
// @Summary      Store a fiscal API credential
// @Description  Replaces the user's credential; the key is encrypted at rest and masked in the response
// @Tags         fiscal
// @Accept       json
// @Produce      json
// @Param        request body dto.CredentialRequest true "Credential"
// @Success      200 {object} APIResponse[dto.CredentialResponse]
// @Failure      400 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /fiscal/credentials [put]
func (h *FiscalHandler) SaveCredential(c *gin.Context) {
	var req dto.CredentialRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.ValidationError(c, err)
		return
	}
	cred, err := h.credentials.Save(c.Request.Context(), req.UserID, req.APIKey, req.Environment)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.NewCredentialResponse(cred))
}

// GetCredential godoc
// @ID           getFiscalCredential
// @Summary      Get a fiscal API credential
// @Tags         fiscal
// @Produce      json
// @Param        user_id path string true "User id"
// @Success      200 {object} APIResponse[dto.CredentialResponse]
// @Failure      404 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /fiscal/credentials/{user_id} [get]
func (h *FiscalHandler) GetCredential(c *gin.Context) {
	cred, err := h.credentials.Get(c.Request.Context(), c.Param("user_id"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.NewCredentialResponse(cred))
}
