package editor

import (
	"context"
	"testing"
	"time"

	"github.com/fountainhead-app/fountainhead/internal/docstore"
)

func seedSharedDocument(fx *fixture, content string) {
	fx.store.seed(docstore.Record{
		ID:            "doc-1",
		Title:         "Pilot",
		Content:       content,
		Version:       3,
		Collaborators: []string{"user-2"},
	})
}

func bumpRemote(fx *fixture, content, editedBy string) {
	fx.store.mu.Lock()
	defer fx.store.mu.Unlock()
	record := fx.store.records["doc-1"]
	record.Content = content
	record.Version++
	record.LastEditedBy = editedBy
	fx.store.records["doc-1"] = record
}

func TestRemoteWatchAdoptsOwnSaveSilently(t *testing.T) {
	fx := newFixture(t, func(cfg *Config) {
		cfg.Intervals.RemotePoll = 20 * time.Millisecond
	})
	seedSharedDocument(fx, "FADE IN:")
	mustLoad(t, fx.session, "doc-1")

	eventCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events, _ := fx.session.Events().Subscribe(eventCtx)

	// Another device of the same account saved: version moves, content too.
	bumpRemote(fx, "FADE IN: (other device)", testUserID)

	waitFor(t, 2*time.Second, "silent version adoption", func() bool {
		return fx.session.State().Document.Version == 4
	})

	// The bump is ours, so no toast and no content swap underneath the caret.
	state := fx.session.State()
	if state.Document.Content != "FADE IN:" {
		t.Fatalf("self-authored bump replaced content: %q", state.Document.Content)
	}
	select {
	case event := <-events:
		t.Fatalf("unexpected event %+v", event)
	default:
	}
}

func TestRemoteWatchAdoptsCollaboratorChangeWhenClean(t *testing.T) {
	fx := newFixture(t, func(cfg *Config) {
		cfg.Intervals.RemotePoll = 20 * time.Millisecond
	})
	seedSharedDocument(fx, "FADE IN:")
	mustLoad(t, fx.session, "doc-1")

	eventCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events, _ := fx.session.Events().Subscribe(eventCtx)

	bumpRemote(fx, "FADE IN: (grace's pass)", "user-2")

	waitFor(t, 2*time.Second, "content adoption", func() bool {
		return fx.session.State().Document.Content == "FADE IN: (grace's pass)"
	})

	state := fx.session.State()
	if state.Document.Dirty {
		t.Fatalf("adopted content must be a clean baseline")
	}
	if state.CanUndo || state.CanRedo {
		t.Fatalf("adoption must reset edit history")
	}

	select {
	case event := <-events:
		if event.Type != EventRemoteContentAdopted || event.RemoteVersion != 4 {
			t.Fatalf("event = %+v", event)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("no adoption notice")
	}
}

func TestRemoteWatchRaisesConflictOverUnsavedEdits(t *testing.T) {
	fx := newFixture(t, func(cfg *Config) {
		cfg.Intervals.RemotePoll = 20 * time.Millisecond
	})
	seedSharedDocument(fx, "FADE IN:")
	mustLoad(t, fx.session, "doc-1")

	fx.session.SetContent("FADE IN: (my unsaved pass)", 26)

	eventCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events, _ := fx.session.Events().Subscribe(eventCtx)

	bumpRemote(fx, "FADE IN: (grace's pass)", "user-2")

	select {
	case event := <-events:
		if event.Type != EventRemoteChangeConflict || event.RemoteVersion != 4 {
			t.Fatalf("event = %+v", event)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("no conflict notice")
	}

	// Local work is never clobbered automatically.
	if content := fx.session.State().Document.Content; content != "FADE IN: (my unsaved pass)" {
		t.Fatalf("local edits overwritten: %q", content)
	}
}

func TestReloadFromRemoteDiscardsLocalEdits(t *testing.T) {
	fx := newFixture(t, nil)
	seedSharedDocument(fx, "FADE IN:")
	mustLoad(t, fx.session, "doc-1")

	fx.session.SetContent("FADE IN: (doomed local pass)", 28)
	bumpRemote(fx, "FADE IN: (grace's pass)", "user-2")

	if err := fx.session.ReloadFromRemote(context.Background()); err != nil {
		t.Fatalf("ReloadFromRemote: %v", err)
	}

	state := fx.session.State()
	if state.Document.Content != "FADE IN: (grace's pass)" {
		t.Fatalf("content = %q", state.Document.Content)
	}
	if state.Document.Dirty || state.Document.Version != 4 {
		t.Fatalf("reloaded document = %+v", state.Document)
	}
	if state.CanUndo {
		t.Fatalf("reload must reset edit history")
	}
}

func TestRemoteWatchOnlyRunsForSharedDocuments(t *testing.T) {
	fx := newFixture(t, func(cfg *Config) {
		cfg.Intervals.RemotePoll = 15 * time.Millisecond
	})
	// No collaborators on this record.
	fx.store.seed(docstore.Record{ID: "doc-1", Content: "FADE IN:", Version: 3})
	mustLoad(t, fx.session, "doc-1")

	gets, _, _ := fx.store.counts()
	time.Sleep(80 * time.Millisecond)
	if after, _, _ := fx.store.counts(); after != gets {
		t.Fatalf("watcher polled a private document: %d -> %d gets", gets, after)
	}
}

func TestRemoteWatchIgnoresUnchangedVersion(t *testing.T) {
	fx := newFixture(t, func(cfg *Config) {
		cfg.Intervals.RemotePoll = 15 * time.Millisecond
	})
	seedSharedDocument(fx, "FADE IN:")
	mustLoad(t, fx.session, "doc-1")

	eventCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events, _ := fx.session.Events().Subscribe(eventCtx)

	time.Sleep(80 * time.Millisecond)

	select {
	case event := <-events:
		t.Fatalf("unexpected event on an unchanged document: %+v", event)
	default:
	}
}
