package presence

import (
	"context"
	"errors"
)

// ErrInvalidRecord indicates a cursor record missing its identity.
var ErrInvalidRecord = errors.New("presence: record requires document and user")

// CursorRecord is one collaborator's published cursor for a document.
// SelectionStart/SelectionEnd equal Position when nothing is selected.
type CursorRecord struct {
	UserID            string `json:"user_id"`
	DisplayName       string `json:"display_name,omitempty"`
	Position          int    `json:"position"`
	SelectionStart    int    `json:"selection_start"`
	SelectionEnd      int    `json:"selection_end"`
	LastSeenAtSeconds int64  `json:"last_seen_at_s"`
}

// Service stores and serves per-document cursor records. Records are
// best-effort: readers filter staleness themselves, and implementations may
// drop records at any time.
type Service interface {
	Publish(ctx context.Context, documentID string, record CursorRecord) error
	Clear(ctx context.Context, documentID, userID string) error
	List(ctx context.Context, documentID string) ([]CursorRecord, error)
}
