package cache

import "strings"

// Kind labels the categories of values the editor caches per document.
const (
	KindContent     = "screenplay_content"
	KindTitle       = "screenplay_title"
	KindAuthor      = "screenplay_author"
	KindPreferences = "editor_preferences"
)

// Store is the synchronous key-value cache the editor writes on every change.
// Implementations must survive process restarts when crash protection is
// expected; the in-memory implementation exists for tests.
type Store interface {
	Get(key string) (string, bool)
	Set(key, value string) error
	Remove(key string) error
}

// Key returns the per-document cache key for a kind. An empty document id
// yields the legacy non-namespaced key used before multi-document support.
func Key(kind, documentID string) string {
	trimmed := strings.TrimSpace(documentID)
	if trimmed == "" {
		return kind
	}
	return kind + "_" + trimmed
}

// LegacyKey returns the pre-namespacing key for a kind.
func LegacyKey(kind string) string {
	return kind
}
