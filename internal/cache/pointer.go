package cache

import "strings"

const (
	pointerKind     = "current_document"
	legacyPointerID = "current_document"
)

// PointerStore remembers the last active document per user across sessions.
type PointerStore struct {
	store Store
}

// NewPointerStore wraps a Store and migrates the legacy single-user pointer
// key into the per-user namespace on first use.
func NewPointerStore(store Store, userID string) *PointerStore {
	ps := &PointerStore{store: store}
	ps.migrateLegacy(userID)
	return ps
}

// CurrentDocumentID returns the remembered document id for the user.
func (p *PointerStore) CurrentDocumentID(userID string) (string, bool) {
	value, ok := p.store.Get(Key(pointerKind, userID))
	if !ok || strings.TrimSpace(value) == "" {
		return "", false
	}
	return value, true
}

// SetCurrentDocumentID records the document id for the user.
func (p *PointerStore) SetCurrentDocumentID(userID, documentID string) error {
	return p.store.Set(Key(pointerKind, userID), documentID)
}

// migrateLegacy copies the pre-multi-user pointer into the user's namespace
// exactly once, then removes the old key.
func (p *PointerStore) migrateLegacy(userID string) {
	if strings.TrimSpace(userID) == "" {
		return
	}
	if _, ok := p.store.Get(Key(pointerKind, userID)); ok {
		return
	}
	legacy, ok := p.store.Get(legacyPointerID)
	if !ok || strings.TrimSpace(legacy) == "" {
		return
	}
	if err := p.store.Set(Key(pointerKind, userID), legacy); err != nil {
		return
	}
	_ = p.store.Remove(legacyPointerID)
}
