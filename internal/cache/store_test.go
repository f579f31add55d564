package cache

import "testing"

func TestKeyNamespacesByDocument(t *testing.T) {
	if got := Key(KindContent, "doc-1"); got != "screenplay_content_doc-1" {
		t.Fatalf("unexpected key %q", got)
	}
	if got := Key(KindContent, ""); got != KindContent {
		t.Fatalf("empty document id should yield legacy key, got %q", got)
	}
	if got := Key(KindTitle, "  "); got != KindTitle {
		t.Fatalf("blank document id should yield legacy key, got %q", got)
	}
}

func TestMemoryStoreRoundTrip(t *testing.T) {
	store := NewMemoryStore()
	if _, ok := store.Get("missing"); ok {
		t.Fatalf("expected miss for absent key")
	}
	if err := store.Set("k", "v"); err != nil {
		t.Fatalf("unexpected set error: %v", err)
	}
	value, ok := store.Get("k")
	if !ok || value != "v" {
		t.Fatalf("unexpected get result %q %v", value, ok)
	}
	if err := store.Remove("k"); err != nil {
		t.Fatalf("unexpected remove error: %v", err)
	}
	if _, ok := store.Get("k"); ok {
		t.Fatalf("expected key to be removed")
	}
}

func TestBoltStoreSurvivesReopen(t *testing.T) {
	path := t.TempDir() + "/cache.db"

	store, err := OpenBolt(path)
	if err != nil {
		t.Fatalf("unexpected open error: %v", err)
	}
	if err := store.Set(Key(KindContent, "doc-1"), "INT. OFFICE - DAY"); err != nil {
		t.Fatalf("unexpected set error: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("unexpected close error: %v", err)
	}

	reopened, err := OpenBolt(path)
	if err != nil {
		t.Fatalf("unexpected reopen error: %v", err)
	}
	defer reopened.Close()

	value, ok := reopened.Get(Key(KindContent, "doc-1"))
	if !ok || value != "INT. OFFICE - DAY" {
		t.Fatalf("expected cached content after reopen, got %q %v", value, ok)
	}
}

func TestOpenBoltRequiresPath(t *testing.T) {
	if _, err := OpenBolt(""); err == nil {
		t.Fatalf("expected error for empty path")
	}
}
