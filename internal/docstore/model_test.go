package docstore

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestNewDocumentIDValidation(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr error
	}{
		{name: "valid", input: "doc-1"},
		{name: "trimmed", input: "  doc-1  "},
		{name: "empty", input: "   ", wantErr: ErrInvalidDocumentID},
		{name: "deprecated", input: "draft-1699999999", wantErr: ErrDeprecatedDocumentID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := NewDocumentID(tt.input)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if id.String() != "doc-1" {
				t.Fatalf("unexpected id %q", id.String())
			}
		})
	}
}

func TestVersionDecodesLegacyStringForm(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  int64
	}{
		{name: "number", input: `{"version": 7}`, want: 7},
		{name: "legacy-string", input: `{"version": "7"}`, want: 7},
		{name: "null", input: `{"version": null}`, want: 0},
		{name: "absent", input: `{}`, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var record Record
			if err := json.Unmarshal([]byte(tt.input), &record); err != nil {
				t.Fatalf("unexpected decode error: %v", err)
			}
			if record.Version.Int64() != tt.want {
				t.Fatalf("expected version %d, got %d", tt.want, record.Version.Int64())
			}
		})
	}
}

func TestVersionRejectsNonNumericString(t *testing.T) {
	var record Record
	if err := json.Unmarshal([]byte(`{"version": "abc"}`), &record); err == nil {
		t.Fatalf("expected decode error for non-numeric version")
	}
}

func TestVersionMarshalsAsNumber(t *testing.T) {
	encoded, err := json.Marshal(Record{ID: "doc-1", Version: 3})
	if err != nil {
		t.Fatalf("unexpected encode error: %v", err)
	}
	var decoded map[string]interface{}
	if err := json.Unmarshal(encoded, &decoded); err != nil {
		t.Fatalf("unexpected decode error: %v", err)
	}
	if value, ok := decoded["version"].(float64); !ok || value != 3 {
		t.Fatalf("expected numeric version, got %#v", decoded["version"])
	}
}
