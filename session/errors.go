package session

import (
	"errors"
	"fmt"
)

// ErrMissingCredentials is returned when neither a static token nor a client
// id/secret pair is configured.
var ErrMissingCredentials = errors.New("session: missing credentials")

// ExchangeError indicates the client-credentials exchange with the backend
// failed. It never contains the client secret or any token material.
type ExchangeError struct {
	// Status is the HTTP status of the exchange response, or 0 for
	// transport-level failures.
	Status int

	// Message describes the failure.
	Message string

	// Err is the underlying cause, if any.
	Err error
}

func (e *ExchangeError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("session: credential exchange failed with status %d: %s", e.Status, e.Message)
	}
	return "session: credential exchange failed: " + e.Message
}

func (e *ExchangeError) Unwrap() error {
	return e.Err
}
