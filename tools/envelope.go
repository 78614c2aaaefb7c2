package tools

import (
	"encoding/json"
	"errors"

	"github.com/jonwraymond/querybridge/dispatch"
)

// Status is the caller-visible outcome of a tool invocation.
type Status string

const (
	StatusSuccess         Status = "success"
	StatusValidationError Status = "validation_error"
	StatusError           Status = "error"
)

// Envelope is the fixed three-state result structure returned from every
// invocation. Query and SchemaID echo the request's values when present,
// including empty ones.
type Envelope struct {
	Data     json.RawMessage `json:"data,omitempty"`
	Error    string          `json:"error,omitempty"`
	Status   Status          `json:"status"`
	Query    *string         `json:"query,omitempty"`
	SchemaID *int            `json:"schema_id,omitempty"`
}

// Classify maps a failure to its envelope status and message. Local
// validation failures and backend semantic rejections surface as
// validation_error; everything else is error. Messages keep the most
// specific available detail and never include credential material.
func Classify(err error) (Status, string) {
	var verr *ValidationError
	if errors.As(err, &verr) {
		return StatusValidationError, verr.Message
	}

	var bve *dispatch.BackendValidationError
	if errors.As(err, &bve) {
		return StatusValidationError, bve.Message
	}

	var ae *dispatch.AuthError
	if errors.As(err, &ae) {
		return StatusError, ae.Error()
	}

	var te *dispatch.TransportError
	if errors.As(err, &te) {
		if te.Timeout {
			return StatusError, "request timed out"
		}
		return StatusError, te.Error()
	}

	var bse *dispatch.BackendServiceError
	if errors.As(err, &bse) {
		return StatusError, bse.Error()
	}

	return StatusError, err.Error()
}
