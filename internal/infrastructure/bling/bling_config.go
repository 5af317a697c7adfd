package bling

import (
	"context"
	"errors"
	"strings"
	"time"
)

const (
	// DefaultBaseURL is the Bling API v2 endpoint
	DefaultBaseURL = "https://bling.com.br/Api/v2"
	defaultTimeout = 30 * time.Second
)

var ErrMissingAPIKey = errors.New("bling: api key is not configured")

// Config holds the Bling client settings
type Config struct {
	// BaseURL of the API, without trailing slash
	BaseURL string
	// Timeout per request
	Timeout time.Duration
}

func (c *Config) applyDefaults() {
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
}

// KeyProvider resolves the API key for each request, so rotated
// credentials take effect without a restart
type KeyProvider interface {
	APIKey(ctx context.Context) (string, error)
}

// StaticKey is a fixed API key
type StaticKey string

// APIKey implements KeyProvider
func (k StaticKey) APIKey(context.Context) (string, error) {
	if k == "" {
		return "", ErrMissingAPIKey
	}
	return string(k), nil
}
