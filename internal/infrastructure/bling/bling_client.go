// Package bling submits fiscal XML documents to the Bling emission API.
package bling

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"go.uber.org/zap"

	"github.com/erp/marketsync/internal/domain/fiscal"
)

// maxResponseSize is the maximum accepted response size (1MB)
const maxResponseSize = 1 << 20

var (
	ErrRejected        = errors.New("bling: document rejected")
	ErrUnavailable     = errors.New("bling: service unavailable")
	ErrInvalidResponse = errors.New("bling: invalid response")
)

// Client implements fiscal.EmissionAPI
type Client struct {
	config     Config
	keys       KeyProvider
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a Bling client
func NewClient(config Config, keys KeyProvider, logger *zap.Logger) *Client {
	config.applyDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		config:     config,
		keys:       keys,
		httpClient: &http.Client{Timeout: config.Timeout},
		logger:     logger,
	}
}

// Submit uploads the XML as the multipart field "xml" and returns the
// assigned document number
func (c *Client) Submit(ctx context.Context, xml []byte) (string, error) {
	apiKey, err := c.keys.APIKey(ctx)
	if err != nil {
		return "", err
	}

	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	if err := form.WriteField("xml", string(xml)); err != nil {
		return "", fmt.Errorf("bling: failed to build form: %w", err)
	}
	if err := form.Close(); err != nil {
		return "", fmt.Errorf("bling: failed to build form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+"/notasfiscais/xml/", &body)
	if err != nil {
		return "", fmt.Errorf("bling: failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", form.FormDataContentType())
	req.Header.Set("Accept", "application/json")
	req.Header.Set("apikey", apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return "", fmt.Errorf("%w: failed to read response: %v", ErrUnavailable, err)
	}

	if resp.StatusCode >= 500 {
		return "", fmt.Errorf("%w: HTTP %d", ErrUnavailable, resp.StatusCode)
	}

	var parsed emissionResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		if resp.StatusCode >= 400 {
			return "", fmt.Errorf("%w: HTTP %d", ErrRejected, resp.StatusCode)
		}
		return "", fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	if parsed.hasErrors() {
		detail := parsed.errorDetail()
		c.logger.Warn("Bling rejected document", zap.Int("status", resp.StatusCode), zap.String("errors", detail))
		return "", fmt.Errorf("%w: %s", ErrRejected, detail)
	}
	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("%w: HTTP %d", ErrRejected, resp.StatusCode)
	}

	number := parsed.documentNumber()
	if number == "" {
		return "", fmt.Errorf("%w: response has no document number", ErrInvalidResponse)
	}
	c.logger.Info("Fiscal document accepted", zap.String("document_number", number))
	return number, nil
}

var _ fiscal.EmissionAPI = (*Client)(nil)
