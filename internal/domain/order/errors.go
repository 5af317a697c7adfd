package order

import "fmt"

// MappingError is reported per order when a marketplace payload cannot be
// converted. A sync pass logs it and moves on to the next order.
type MappingError struct {
	Marketplace string
	ExternalID  string
	Err         error
}

func (e *MappingError) Error() string {
	return fmt.Sprintf("map %s order %q: %v", e.Marketplace, e.ExternalID, e.Err)
}

func (e *MappingError) Unwrap() error {
	return e.Err
}
