package marketplace

import (
	"errors"
	"fmt"
)

var (
	ErrNoCredential        = errors.New("marketplace: no credential stored")
	ErrUnknownMarketplace  = errors.New("marketplace: unknown marketplace")
	ErrMarketplaceDisabled = errors.New("marketplace: marketplace not enabled")
	ErrInvalidState        = errors.New("marketplace: unknown or expired authorization state")

	ErrAuthExchange = errors.New("marketplace: authorization code exchange failed")
	ErrRefresh      = errors.New("marketplace: token refresh failed")

	ErrUnavailable     = errors.New("marketplace: service temporarily unavailable")
	ErrRequestFailed   = errors.New("marketplace: request failed")
	ErrInvalidResponse = errors.New("marketplace: invalid response")
	ErrUnauthorized    = errors.New("marketplace: access token rejected")
	ErrRateLimited     = errors.New("marketplace: rate limited")
)

// AuthExchangeError is returned when exchanging an authorization code does
// not yield a usable token. It matches both ErrAuthExchange and the cause.
type AuthExchangeError struct {
	Marketplace Code
	Err         error
}

func (e *AuthExchangeError) Error() string {
	return fmt.Sprintf("%s: authorization code exchange failed: %v", e.Marketplace, e.Err)
}

func (e *AuthExchangeError) Unwrap() []error {
	return []error{ErrAuthExchange, e.Err}
}

// RefreshError is returned when the refresh grant fails. The previous token
// record is left untouched.
type RefreshError struct {
	Marketplace Code
	Err         error
}

func (e *RefreshError) Error() string {
	return fmt.Sprintf("%s: token refresh failed: %v", e.Marketplace, e.Err)
}

func (e *RefreshError) Unwrap() []error {
	return []error{ErrRefresh, e.Err}
}
