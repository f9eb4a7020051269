package leads

import "errors"

var (
	// ErrMissingPhone is returned when the phone number is absent.
	ErrMissingPhone = errors.New("phone is required")

	// ErrInvalidPhone is returned when the phone is not E.164.
	ErrInvalidPhone = errors.New("phone must be E.164 with country code")

	// ErrLeadNotFound is returned when a lead is not found.
	ErrLeadNotFound = errors.New("lead not found")
)
