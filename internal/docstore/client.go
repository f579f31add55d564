package docstore

import (
	"context"
	"errors"
)

var (
	// ErrNotFound indicates the requested document id does not resolve.
	ErrNotFound = errors.New("docstore: document not found")
	// ErrPermissionDenied indicates the caller may not access the document.
	ErrPermissionDenied = errors.New("docstore: permission denied")
	// ErrVersionConflict indicates an optimistic version check failed.
	ErrVersionConflict = errors.New("docstore: version conflict")
	// ErrDocumentDeleted indicates the document was soft-deleted.
	ErrDocumentDeleted = errors.New("docstore: document deleted")
)

// Client is the remote document store contract the editor core depends on.
type Client interface {
	Create(ctx context.Context, req CreateRequest) (Record, error)
	Get(ctx context.Context, id string) (Record, error)
	Update(ctx context.Context, req UpdateRequest) (Record, error)
	List(ctx context.Context) ([]Record, error)
}

// IsTransient reports whether an error should fall through to secondary
// resolution strategies rather than aborting. Typed store errors are
// authoritative; everything else (network, unknown) is retryable.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, ErrPermissionDenied),
		errors.Is(err, ErrDocumentDeleted),
		errors.Is(err, ErrDeprecatedDocumentID),
		errors.Is(err, ErrInvalidDocumentID):
		return false
	}
	return true
}
