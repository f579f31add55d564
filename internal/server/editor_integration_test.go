package server

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/fountainhead-app/fountainhead/internal/cache"
	"github.com/fountainhead-app/fountainhead/internal/docstore"
	"github.com/fountainhead-app/fountainhead/internal/editor"
	"github.com/fountainhead-app/fountainhead/internal/lock"
	"github.com/fountainhead-app/fountainhead/internal/presence"
)

// The editor core talking to the reference backend over real HTTP: lazy
// create, cross-device pickup, and the forced-overwrite conflict path.
func TestEditorAgainstReferenceBackend(t *testing.T) {
	fx := newRouterFixture(t)
	backend := httptest.NewServer(fx.handler)
	defer backend.Close()

	locks := lock.NewMemoryService(lock.MemoryServiceConfig{})
	cursors := presence.NewMemoryService()

	newEditor := func(t *testing.T, userID, deviceID string) *editor.Session {
		t.Helper()
		token := fx.token(t, userID, userID)
		client, err := docstore.NewHTTPClient(docstore.HTTPClientConfig{
			BaseURL:     backend.URL,
			TokenSource: docstore.StaticToken(token),
		})
		if err != nil {
			t.Fatalf("NewHTTPClient: %v", err)
		}
		memCache := cache.NewMemoryStore()
		session, err := editor.NewSession(editor.Config{
			Cache:    memCache,
			Store:    client,
			Locks:    locks,
			Cursors:  cursors,
			Pointer:  cache.NewPointerStore(memCache, userID),
			UserID:   userID,
			DeviceID: deviceID,
			Intervals: editor.Intervals{
				SaveDebounce: time.Hour,
				Autosave:     time.Hour,
				CursorPoll:   time.Hour,
				RemotePoll:   time.Hour,
			},
		})
		if err != nil {
			t.Fatalf("NewSession: %v", err)
		}
		t.Cleanup(session.Close)
		return session
	}

	ctx := context.Background()

	// First device: lazy create through the full stack.
	first := newEditor(t, "user-1", "device-1")
	if err := first.Load(ctx, ""); err != nil {
		t.Fatalf("Load: %v", err)
	}
	first.SetContent("FADE IN:\n\nINT. LAB - NIGHT", 27)
	if err := first.SaveNow(ctx); err != nil {
		t.Fatalf("SaveNow: %v", err)
	}
	documentID := first.State().Document.ID
	if documentID == "" {
		t.Fatalf("no id after first save")
	}

	// Second device of the same account finds it via the recency listing.
	second := newEditor(t, "user-1", "device-2")
	if err := second.Load(ctx, ""); err != nil {
		t.Fatalf("second Load: %v", err)
	}
	state := second.State()
	if state.Document.ID != documentID {
		t.Fatalf("second device loaded %q, want %q", state.Document.ID, documentID)
	}
	if state.Document.Content != "FADE IN:\n\nINT. LAB - NIGHT" {
		t.Fatalf("second device content = %q", state.Document.Content)
	}

	// The first device holds the lock, so the second sees it held elsewhere
	// and cannot save.
	if !state.Lock.LockedByOtherDevice {
		t.Fatalf("lock view = %+v, want held by other device", state.Lock)
	}

	// Release the first device's claim, then race the two versions: the
	// second device saves, leaving the first device's version stale; its
	// next save must still land via the forced retry.
	first.SetContent("FADE IN:\n\nfirst device pass", 27)
	firstVersion := first.State().Document.Version
	first.Close()

	if err := second.Load(ctx, documentID); err != nil {
		t.Fatalf("reload: %v", err)
	}
	if second.State().Lock.LockedByOtherDevice {
		t.Fatalf("lock not released by close")
	}
	second.SetContent("FADE IN:\n\nsecond device pass", 28)
	if err := second.SaveNow(ctx); err != nil {
		t.Fatalf("second SaveNow: %v", err)
	}
	if got := second.State().Document.Version; got <= firstVersion {
		t.Fatalf("version did not advance: %d", got)
	}

	// A third mount confirms the overwrite is what persisted.
	third := newEditor(t, "user-1", "device-3")
	if err := third.Load(ctx, documentID); err != nil {
		t.Fatalf("third Load: %v", err)
	}
	if content := third.State().Document.Content; content != "FADE IN:\n\nsecond device pass" {
		t.Fatalf("persisted content = %q", content)
	}
}

func TestEditorConflictForcedOverwriteOverHTTP(t *testing.T) {
	fx := newRouterFixture(t)
	backend := httptest.NewServer(fx.handler)
	defer backend.Close()

	token := fx.token(t, "user-1", "Ada")
	client, err := docstore.NewHTTPClient(docstore.HTTPClientConfig{
		BaseURL:     backend.URL,
		TokenSource: docstore.StaticToken(token),
	})
	if err != nil {
		t.Fatalf("NewHTTPClient: %v", err)
	}

	ctx := context.Background()
	created, err := client.Create(ctx, docstore.CreateRequest{Content: "FADE IN:"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	memCache := cache.NewMemoryStore()
	session, err := editor.NewSession(editor.Config{
		Cache:    memCache,
		Store:    client,
		Locks:    lock.NewMemoryService(lock.MemoryServiceConfig{}),
		Cursors:  presence.NewMemoryService(),
		UserID:   "user-1",
		DeviceID: "device-1",
		Intervals: editor.Intervals{
			SaveDebounce: time.Hour,
			Autosave:     time.Hour,
			CursorPoll:   time.Hour,
			RemotePoll:   time.Hour,
		},
	})
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	defer session.Close()

	if err := session.Load(ctx, created.ID); err != nil {
		t.Fatalf("Load: %v", err)
	}

	// Bump the remote version behind the session's back.
	if _, err := client.Update(ctx, docstore.UpdateRequest{
		ID:      created.ID,
		Content: "out-of-band edit",
		Force:   true,
	}); err != nil {
		t.Fatalf("out-of-band Update: %v", err)
	}

	// The session's optimistic save 409s, retries forced, and wins.
	session.SetContent("session edit wins", 17)
	if err := session.SaveNow(ctx); err != nil {
		t.Fatalf("SaveNow: %v", err)
	}

	final, err := client.Get(ctx, created.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if final.Content != "session edit wins" {
		t.Fatalf("final content = %q", final.Content)
	}
}
