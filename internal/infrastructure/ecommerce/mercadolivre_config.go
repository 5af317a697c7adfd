package ecommerce

import (
	"errors"
	"time"
)

const (
	// MercadoLivreAuthURL is the Brazilian authorization page
	MercadoLivreAuthURL = "https://auth.mercadolibre.com.br/authorization"
	// MercadoLivreAPIURL is the public API endpoint
	MercadoLivreAPIURL = "https://api.mercadolibre.com"
)

// Errors for Mercado Livre configuration
var (
	ErrMercadoLivreConfigMissingClientID     = errors.New("mercadolivre: client id is required")
	ErrMercadoLivreConfigMissingClientSecret = errors.New("mercadolivre: client secret is required")
	ErrMercadoLivreConfigMissingRedirectURI  = errors.New("mercadolivre: redirect uri is required")
)

// MercadoLivreConfig holds the OAuth application registered with Mercado Livre
type MercadoLivreConfig struct {
	Enabled      bool
	ClientID     string
	ClientSecret string
	RedirectURI  string
	AuthURL      string
	APIBaseURL   string
	Timeout      time.Duration
}

// Validate checks required fields and fills defaults
func (c *MercadoLivreConfig) Validate() error {
	if c.ClientID == "" {
		return ErrMercadoLivreConfigMissingClientID
	}
	if c.ClientSecret == "" {
		return ErrMercadoLivreConfigMissingClientSecret
	}
	if c.RedirectURI == "" {
		return ErrMercadoLivreConfigMissingRedirectURI
	}
	if c.AuthURL == "" {
		c.AuthURL = MercadoLivreAuthURL
	}
	if c.APIBaseURL == "" {
		c.APIBaseURL = MercadoLivreAPIURL
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	return nil
}
