package tools

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

// FieldType is the declared type of a tool argument.
type FieldType string

const (
	// TypeText is a string argument.
	TypeText FieldType = "text"
	// TypeInteger is a whole-number argument.
	TypeInteger FieldType = "integer"
)

// Field declares one tool argument and its constraints.
type Field struct {
	Name        string
	Description string
	Type        FieldType

	// Required rejects invocations missing this field.
	Required bool

	// NonEmpty rejects empty or whitespace-only text.
	NonEmpty bool

	// MaxLen caps text length in characters. Zero means unlimited.
	MaxLen int

	// Positive requires an integer greater than zero.
	Positive bool
}

// Spec declares one tool: its arguments and the backend route it maps to.
// The table is fixed at startup and independently checkable.
type Spec struct {
	Name        string
	Title       string
	Description string

	// Endpoint is the backend endpoint name. Empty for tools served locally
	// (health_check).
	Endpoint string

	// Method is the HTTP method for the backend call. Default: POST.
	Method string

	// Stream marks endpoints that respond with a chunked stream.
	Stream bool

	// PathField names an integer field whose value is appended to Endpoint
	// as a dynamic path segment (metadata/get/123).
	PathField string

	Fields []Field

	// BuildPayload overrides the default request body (the validated
	// arguments) for endpoints with a bespoke payload shape.
	BuildPayload func(args map[string]any) any
}

// ValidationError reports a locally rejected invocation. No backend call is
// made when validation fails.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return "tools: invalid argument: " + e.Message
}

// Validate checks args against the spec's field table and returns a
// normalized copy (integer fields converted to int). Unknown extra arguments
// pass through untouched.
func (s Spec) Validate(args map[string]any) (map[string]any, *ValidationError) {
	out := make(map[string]any, len(args))
	for k, v := range args {
		out[k] = v
	}

	for _, f := range s.Fields {
		raw, present := args[f.Name]
		if !present || raw == nil {
			if f.Required {
				return nil, &ValidationError{Field: f.Name, Message: f.Name + " is required"}
			}
			continue
		}

		switch f.Type {
		case TypeText:
			text, ok := raw.(string)
			if !ok {
				return nil, &ValidationError{Field: f.Name, Message: f.Name + " must be text"}
			}
			if f.NonEmpty && strings.TrimSpace(text) == "" {
				return nil, &ValidationError{Field: f.Name, Message: f.Name + " must be non-empty"}
			}
			if f.MaxLen > 0 && len([]rune(text)) > f.MaxLen {
				return nil, &ValidationError{
					Field:   f.Name,
					Message: fmt.Sprintf("%s must be at most %d characters", f.Name, f.MaxLen),
				}
			}
			out[f.Name] = text

		case TypeInteger:
			n, ok := asInt(raw)
			if !ok {
				return nil, &ValidationError{Field: f.Name, Message: f.Name + " must be an integer"}
			}
			if f.Positive && n <= 0 {
				return nil, &ValidationError{Field: f.Name, Message: f.Name + " must be a positive integer"}
			}
			out[f.Name] = n

		default:
			return nil, &ValidationError{Field: f.Name, Message: f.Name + " has an unsupported type"}
		}
	}

	return out, nil
}

// asInt accepts the integer encodings a JSON framing layer may hand us.
func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case float64:
		if n != math.Trunc(n) {
			return 0, false
		}
		return int(n), true
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, false
		}
		return int(i), true
	}
	return 0, false
}
