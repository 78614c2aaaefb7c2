package tools

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestSpec_Validate_Query(t *testing.T) {
	spec := Spec{Name: "get_trend_data", Fields: queryFields()}

	tests := []struct {
		name    string
		args    map[string]any
		wantMsg string
	}{
		{
			name: "valid",
			args: map[string]any{"userQuery": "top 5 regions", "schemaId": 123},
		},
		{
			name: "valid with float64 schema id",
			args: map[string]any{"userQuery": "top 5 regions", "schemaId": float64(123)},
		},
		{
			name: "valid with json.Number schema id",
			args: map[string]any{"userQuery": "top 5 regions", "schemaId": json.Number("123")},
		},
		{
			name:    "missing query",
			args:    map[string]any{"schemaId": 123},
			wantMsg: "userQuery is required",
		},
		{
			name:    "empty query",
			args:    map[string]any{"userQuery": "", "schemaId": 123},
			wantMsg: "userQuery must be non-empty",
		},
		{
			name:    "whitespace query",
			args:    map[string]any{"userQuery": "   \n\t", "schemaId": 123},
			wantMsg: "userQuery must be non-empty",
		},
		{
			name:    "query too long",
			args:    map[string]any{"userQuery": strings.Repeat("q", maxQueryLen+1), "schemaId": 123},
			wantMsg: "userQuery must be at most 5000 characters",
		},
		{
			name:    "query wrong type",
			args:    map[string]any{"userQuery": 42, "schemaId": 123},
			wantMsg: "userQuery must be text",
		},
		{
			name:    "missing schema id",
			args:    map[string]any{"userQuery": "top 5 regions"},
			wantMsg: "schemaId is required",
		},
		{
			name:    "nil schema id",
			args:    map[string]any{"userQuery": "top 5 regions", "schemaId": nil},
			wantMsg: "schemaId is required",
		},
		{
			name:    "non-integer schema id",
			args:    map[string]any{"userQuery": "top 5 regions", "schemaId": "123"},
			wantMsg: "schemaId must be an integer",
		},
		{
			name:    "fractional schema id",
			args:    map[string]any{"userQuery": "top 5 regions", "schemaId": 12.5},
			wantMsg: "schemaId must be an integer",
		},
		{
			name:    "zero schema id",
			args:    map[string]any{"userQuery": "top 5 regions", "schemaId": 0},
			wantMsg: "schemaId must be a positive integer",
		},
		{
			name:    "negative schema id",
			args:    map[string]any{"userQuery": "top 5 regions", "schemaId": -7},
			wantMsg: "schemaId must be a positive integer",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			normalized, verr := spec.Validate(tt.args)
			if tt.wantMsg != "" {
				if verr == nil {
					t.Fatalf("Validate() = %v, want error %q", normalized, tt.wantMsg)
				}
				if verr.Message != tt.wantMsg {
					t.Errorf("Validate() message = %q, want %q", verr.Message, tt.wantMsg)
				}
				return
			}
			if verr != nil {
				t.Fatalf("Validate() error = %v", verr)
			}
			if got, ok := normalized["schemaId"].(int); !ok || got != 123 {
				t.Errorf("normalized schemaId = %v (%T), want int 123", normalized["schemaId"], normalized["schemaId"])
			}
		})
	}
}

func TestSpec_Validate_ExtraArgsPassThrough(t *testing.T) {
	spec := Spec{Name: "t", Fields: queryFields()}

	normalized, verr := spec.Validate(map[string]any{
		"userQuery": "q",
		"schemaId":  1,
		"extra":     "kept",
	})
	if verr != nil {
		t.Fatalf("Validate() error = %v", verr)
	}
	if normalized["extra"] != "kept" {
		t.Errorf("extra arg = %v, want passthrough", normalized["extra"])
	}
}

func TestCatalog(t *testing.T) {
	catalog := Catalog()

	want := []string{
		"nlq_to_data",
		"get_trend_data",
		"get_prediction_data",
		"get_outlier_data",
		"get_correlation_data",
		"get_change_data",
		"get_pareto_data",
		"get_dataset_metadata",
		"get_metadata_info",
		"health_check",
	}
	if len(catalog) != len(want) {
		t.Fatalf("Catalog() has %d tools, want %d", len(catalog), len(want))
	}

	byName := make(map[string]Spec, len(catalog))
	for _, s := range catalog {
		byName[s.Name] = s
	}
	for _, name := range want {
		if _, ok := byName[name]; !ok {
			t.Errorf("Catalog() missing tool %q", name)
		}
	}

	if !byName["nlq_to_data"].Stream {
		t.Error("nlq_to_data must be streamed")
	}
	if got := byName["get_dataset_metadata"].Method; got != "GET" {
		t.Errorf("get_dataset_metadata method = %q, want GET", got)
	}
	if got := byName["get_metadata_info"].PathField; got != "schemaId" {
		t.Errorf("get_metadata_info path field = %q, want schemaId", got)
	}

	payload := byName["get_metadata_info"].BuildPayload(map[string]any{"schemaId": 42})
	body, ok := payload.(map[string]any)
	if !ok {
		t.Fatalf("BuildPayload returned %T, want map", payload)
	}
	if body["domainId"] != 42 {
		t.Errorf("payload domainId = %v, want 42", body["domainId"])
	}
	if cols, ok := body["columns"].([]string); !ok || len(cols) == 0 {
		t.Errorf("payload columns = %v, want the fixed column set", body["columns"])
	}
}
