package handler

import "github.com/erp/marketsync/internal/interfaces/http/dto"

// APIResponse represents a generic API response for OpenAPI documentation
// @Description Standard API response wrapper with typed data field
type APIResponse[T any] struct {
	Success bool           `json:"success"`
	Data    T              `json:"data,omitempty"`
	Error   *dto.ErrorInfo `json:"error,omitempty"`
	Meta    *dto.Meta      `json:"meta,omitempty"`
}

// ErrorResponse represents an error API response for OpenAPI documentation
// @Description Standard error response
type ErrorResponse struct {
	Success bool           `json:"success" example:"false"`
	Error   *dto.ErrorInfo `json:"error,omitempty"`
}

// SuccessResponse represents a simple success API response for OpenAPI documentation
// @Description Simple success response without data
type SuccessResponse struct {
	Success bool `json:"success" example:"true"`
}

// HealthCheck is the outcome of one dependency probe
// @Description Dependency probe result
type HealthCheck struct {
	Status  string `json:"status" example:"up"`
	Latency string `json:"latency,omitempty" example:"1.2ms"`
	Error   string `json:"error,omitempty"`
}

// HealthResponse reports service liveness and dependency state
// @Description Health check result
type HealthResponse struct {
	Status    string                 `json:"status" example:"ok"`
	Version   string                 `json:"version" example:"1.0.0"`
	GoVersion string                 `json:"go_version" example:"go1.25.5"`
	Uptime    string                 `json:"uptime" example:"1h30m45s"`
	Checks    map[string]HealthCheck `json:"checks,omitempty"`
}

// SessionResponse describes the authenticated operator
// @Description Operator session
type SessionResponse struct {
	Operator  string   `json:"operator" example:"ops@example.com"`
	Scopes    []string `json:"scopes,omitempty"`
	TokenID   string   `json:"token_id"`
	ExpiresIn string   `json:"expires_in" example:"7h59m0s"`
}
