package docstore

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const maxIdentifierLength = 190

// deprecatedIDPrefix marks ids minted by the pre-sync, browser-local scheme.
// They never resolve on the document store and must be rejected up front.
const deprecatedIDPrefix = "draft-"

var (
	// ErrInvalidDocumentID indicates an empty or oversized document identifier.
	ErrInvalidDocumentID = errors.New("docstore: invalid document id")
	// ErrDeprecatedDocumentID indicates an identifier from the retired local scheme.
	ErrDeprecatedDocumentID = errors.New("docstore: deprecated document id format")
)

// DocumentID represents a validated document identifier.
type DocumentID string

// NewDocumentID validates raw input and returns a DocumentID.
func NewDocumentID(rawInput string) (DocumentID, error) {
	trimmed := strings.TrimSpace(rawInput)
	if trimmed == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidDocumentID)
	}
	if len(trimmed) > maxIdentifierLength {
		return "", fmt.Errorf("%w: exceeds %d characters", ErrInvalidDocumentID, maxIdentifierLength)
	}
	if strings.HasPrefix(trimmed, deprecatedIDPrefix) {
		return "", fmt.Errorf("%w: %s", ErrDeprecatedDocumentID, trimmed)
	}
	return DocumentID(trimmed), nil
}

// String returns the underlying string identifier.
func (id DocumentID) String() string {
	return string(id)
}

// Version is the optimistic-concurrency counter for a document record.
// Legacy records encoded it as a JSON string; decoding coerces both forms
// to a number so the ambiguity never reaches core logic.
type Version int64

// UnmarshalJSON accepts both numeric and legacy string encodings.
func (v *Version) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || string(trimmed) == "null" {
		*v = 0
		return nil
	}
	unquoted := strings.Trim(string(trimmed), `"`)
	if unquoted == "" {
		*v = 0
		return nil
	}
	parsed, err := strconv.ParseInt(unquoted, 10, 64)
	if err != nil {
		return fmt.Errorf("docstore: version %q is not numeric: %w", unquoted, err)
	}
	*v = Version(parsed)
	return nil
}

// MarshalJSON always emits the numeric form.
func (v Version) MarshalJSON() ([]byte, error) {
	return []byte(strconv.FormatInt(int64(v), 10)), nil
}

// Int64 exposes the raw counter value.
func (v Version) Int64() int64 {
	return int64(v)
}

// Document status values reported by the store.
const (
	StatusActive  = "active"
	StatusDeleted = "deleted"
)

// Record is the document payload held by the remote store.
type Record struct {
	ID               string   `json:"id"`
	Title            string   `json:"title"`
	Author           string   `json:"author"`
	Content          string   `json:"content"`
	Version          Version  `json:"version"`
	Status           string   `json:"status"`
	Collaborators    []string `json:"collaborators,omitempty"`
	LastEditedBy     string   `json:"last_edited_by,omitempty"`
	UpdatedAtSeconds int64    `json:"updated_at_s"`
}

// CreateRequest describes a new document to persist.
type CreateRequest struct {
	Title   string `json:"title"`
	Author  string `json:"author"`
	Content string `json:"content"`
}

// UpdateRequest describes an update to an existing document. A zero Version
// skips the optimistic check; Force overwrites regardless of version.
type UpdateRequest struct {
	ID      string  `json:"id"`
	Title   string  `json:"title"`
	Author  string  `json:"author"`
	Content string  `json:"content"`
	Version Version `json:"version,omitempty"`
	Force   bool    `json:"force,omitempty"`
}
