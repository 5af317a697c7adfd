package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erp/marketsync/internal/interfaces/http/dto"
)

type stockInput struct {
	ItemID   string `json:"item_id" binding:"required,notblank"`
	Quantity *int   `json:"quantity" binding:"required,min=0"`
}

func bindRouter() *gin.Engine {
	SetupValidator()
	router := gin.New()
	router.POST("/stock", func(c *gin.Context) {
		var in stockInput
		if err := c.ShouldBindJSON(&in); err != nil {
			HandleValidationError(c, err)
			return
		}
		c.Status(http.StatusOK)
	})
	return router
}

func postJSON(router http.Handler, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/stock", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", "req-1")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestHandleValidationError(t *testing.T) {
	router := bindRouter()

	t.Run("field errors use json names", func(t *testing.T) {
		w := postJSON(router, `{"item_id":"   ","quantity":-1}`)
		require.Equal(t, http.StatusBadRequest, w.Code)

		var resp dto.Response
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		require.NotNil(t, resp.Error)
		assert.Equal(t, dto.ErrCodeValidation, resp.Error.Code)
		assert.Equal(t, "req-1", resp.Error.RequestID)

		fields := map[string]string{}
		for _, d := range resp.Error.Details {
			fields[d.Field] = d.Tag
		}
		assert.Equal(t, map[string]string{"item_id": "notblank", "quantity": "min"}, fields)
	})

	t.Run("missing quantity is required, zero is not", func(t *testing.T) {
		w := postJSON(router, `{"item_id":"MLB1"}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "This field is required")

		w = postJSON(router, `{"item_id":"MLB1","quantity":0}`)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("malformed body", func(t *testing.T) {
		w := postJSON(router, `{"item_id":`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), dto.ErrCodeValidation)
	})
}

func TestFormatValidationErrors_PlainError(t *testing.T) {
	resp := FormatValidationErrors(errors.New("unexpected EOF"), "req-2")

	require.NotNil(t, resp.Error)
	require.Len(t, resp.Error.Details, 1)
	assert.Empty(t, resp.Error.Details[0].Field)
	assert.Equal(t, "unexpected EOF", resp.Error.Details[0].Message)
}
