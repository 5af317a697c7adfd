package fiscal

import (
	"errors"
	"fmt"
)

var (
	ErrEmissionRejected   = errors.New("fiscal: emission rejected")
	ErrEmissionIncomplete = errors.New("fiscal: emission incomplete")
	ErrDeliveryFailed     = errors.New("fiscal: delivery failed")
	ErrArtifactNotFound   = errors.New("fiscal: artifact not found")
	ErrJobNotFound        = errors.New("fiscal: job not found")
	ErrCredentialNotFound = errors.New("fiscal: credential not found")
	ErrInvalidCredential  = errors.New("fiscal: invalid credential")
)

// EmissionRejectedError is returned when the fiscal API does not accept a
// document. No artifact exists when this error is returned.
type EmissionRejectedError struct {
	OrderRef string
	Err      error
}

func (e *EmissionRejectedError) Error() string {
	return fmt.Sprintf("emission for order %s rejected: %v", e.OrderRef, e.Err)
}

func (e *EmissionRejectedError) Unwrap() []error {
	return []error{ErrEmissionRejected, e.Err}
}

// IncompleteEmissionError is returned when the fiscal API accepted a
// document but its files could not be produced or stored. The document
// number must be kept so the emission can be resumed without a second
// submission.
type IncompleteEmissionError struct {
	OrderRef       string
	DocumentNumber string
	Err            error
}

func (e *IncompleteEmissionError) Error() string {
	return fmt.Sprintf("emission %s for order %s incomplete: %v", e.DocumentNumber, e.OrderRef, e.Err)
}

func (e *IncompleteEmissionError) Unwrap() []error {
	return []error{ErrEmissionIncomplete, e.Err}
}

// DeliveryError describes a failed email hand-off. It is logged, never
// propagated out of an emission.
type DeliveryError struct {
	Recipient string
	Err       error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("deliver fiscal documents to %s: %v", e.Recipient, e.Err)
}

func (e *DeliveryError) Unwrap() []error {
	return []error{ErrDeliveryFailed, e.Err}
}
