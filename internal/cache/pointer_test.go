package cache

import "testing"

func TestPointerStoreRoundTrip(t *testing.T) {
	store := NewMemoryStore()
	pointer := NewPointerStore(store, "user-1")

	if _, ok := pointer.CurrentDocumentID("user-1"); ok {
		t.Fatalf("expected no pointer for fresh store")
	}
	if err := pointer.SetCurrentDocumentID("user-1", "doc-9"); err != nil {
		t.Fatalf("unexpected set error: %v", err)
	}
	id, ok := pointer.CurrentDocumentID("user-1")
	if !ok || id != "doc-9" {
		t.Fatalf("unexpected pointer %q %v", id, ok)
	}
}

func TestPointerStoreMigratesLegacyKey(t *testing.T) {
	store := NewMemoryStore()
	if err := store.Set(legacyPointerID, "doc-legacy"); err != nil {
		t.Fatalf("unexpected seed error: %v", err)
	}

	pointer := NewPointerStore(store, "user-1")

	id, ok := pointer.CurrentDocumentID("user-1")
	if !ok || id != "doc-legacy" {
		t.Fatalf("expected migrated pointer, got %q %v", id, ok)
	}
	if _, ok := store.Get(legacyPointerID); ok {
		t.Fatalf("legacy key should be removed after migration")
	}
}

func TestPointerStoreMigrationDoesNotClobberExisting(t *testing.T) {
	store := NewMemoryStore()
	if err := store.Set(legacyPointerID, "doc-legacy"); err != nil {
		t.Fatalf("unexpected seed error: %v", err)
	}
	if err := store.Set(Key(pointerKind, "user-1"), "doc-current"); err != nil {
		t.Fatalf("unexpected seed error: %v", err)
	}

	pointer := NewPointerStore(store, "user-1")

	id, ok := pointer.CurrentDocumentID("user-1")
	if !ok || id != "doc-current" {
		t.Fatalf("existing pointer should win, got %q %v", id, ok)
	}
}
