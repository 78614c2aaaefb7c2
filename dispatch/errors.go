package dispatch

import (
	"errors"
	"fmt"
)

// ErrUnknownRoute is returned when an endpoint maps to no backend service.
var ErrUnknownRoute = errors.New("dispatch: unknown route")

// AuthError indicates the call could not be authenticated: the credential
// exchange failed, or the backend rejected the token twice in a row.
type AuthError struct {
	Message string
	Err     error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("dispatch: authentication failed: %s: %v", e.Message, e.Err)
	}
	return "dispatch: authentication failed: " + e.Message
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// TransportError indicates a network failure or timeout before a usable
// response was received. It is never retried.
type TransportError struct {
	Message string
	Timeout bool
	Err     error
}

func (e *TransportError) Error() string {
	if e.Timeout {
		return "dispatch: request timed out: " + e.Message
	}
	return "dispatch: transport failure: " + e.Message
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// BackendValidationError indicates the backend rejected the request semantics
// (a 4xx other than unauthorized). Message carries the backend's own detail.
type BackendValidationError struct {
	Status  int
	Message string
}

func (e *BackendValidationError) Error() string {
	return fmt.Sprintf("dispatch: backend rejected request (status %d): %s", e.Status, e.Message)
}

// BackendServiceError indicates a backend internal failure (5xx).
type BackendServiceError struct {
	Status  int
	Message string
}

func (e *BackendServiceError) Error() string {
	return fmt.Sprintf("dispatch: backend service error (status %d): %s", e.Status, e.Message)
}
