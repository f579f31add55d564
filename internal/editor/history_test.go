package editor

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/fountainhead-app/fountainhead/internal/docstore"
)

func TestTypingBurstCommitsAsSingleUndoStep(t *testing.T) {
	fx := newFixture(t, nil)
	fx.store.seed(docstore.Record{ID: "doc-1", Content: "", Version: 1})
	mustLoad(t, fx.session, "doc-1")

	// Adjacent caret positions: one burst.
	fx.session.SetContent("F", 1)
	fx.session.SetContent("FA", 2)
	fx.session.SetContent("FAD", 3)
	fx.session.SetContent("FADE", 4)

	waitFor(t, 2*time.Second, "burst commit", func() bool {
		return fx.session.State().CanUndo
	})

	fx.session.Undo()
	state := fx.session.State()
	if state.Document.Content != "" {
		t.Fatalf("undo of one burst left %q, want the pre-burst content", state.Document.Content)
	}
	if state.CanUndo {
		t.Fatalf("the whole burst must be one step")
	}
	if !state.CanRedo {
		t.Fatalf("undo must enable redo")
	}
}

func TestCursorJumpClosesTypingBurst(t *testing.T) {
	fx := newFixture(t, nil)
	fx.store.seed(docstore.Record{ID: "doc-1", Content: "", Version: 1})
	mustLoad(t, fx.session, "doc-1")

	fx.session.SetContent("hello", 5)
	// The caret leaps from 5 to 20: the first burst commits immediately and a
	// second one opens.
	fx.session.SetContent("hello          world", 20)

	waitFor(t, 2*time.Second, "second burst commit", func() bool {
		fx.session.mu.Lock()
		defer fx.session.mu.Unlock()
		return len(fx.session.undoStack) == 2
	})

	fx.session.Undo()
	if content := fx.session.State().Document.Content; content != "hello" {
		t.Fatalf("first undo restored %q, want %q", content, "hello")
	}
	fx.session.Undo()
	if content := fx.session.State().Document.Content; content != "" {
		t.Fatalf("second undo restored %q, want empty", content)
	}
}

func TestUndoRedoRoundTripIsByteExact(t *testing.T) {
	fx := newFixture(t, nil)
	fx.store.seed(docstore.Record{ID: "doc-1", Content: "", Version: 1})
	mustLoad(t, fx.session, "doc-1")

	first := "INT. LAB - NIGHT\n\nAda studies the console."
	second := first + "\n\nADA\nIt works."

	fx.session.SetContent(first, len(first))
	waitFor(t, 2*time.Second, "first commit", func() bool {
		return fx.session.State().CanUndo
	})
	fx.session.SetContent(second, len(second))
	waitFor(t, 2*time.Second, "second commit", func() bool {
		fx.session.mu.Lock()
		defer fx.session.mu.Unlock()
		return len(fx.session.undoStack) == 2
	})

	fx.session.Undo()
	if content := fx.session.State().Document.Content; content != first {
		t.Fatalf("undo restored %q, want %q", content, first)
	}
	fx.session.Redo()
	state := fx.session.State()
	if state.Document.Content != second {
		t.Fatalf("redo restored %q, want %q", state.Document.Content, second)
	}
	if state.CanRedo {
		t.Fatalf("redo stack must be empty after the round trip")
	}
	if !state.Document.Dirty {
		t.Fatalf("restored content must be treated as an edit")
	}
}

func TestNewEditInvalidatesRedo(t *testing.T) {
	fx := newFixture(t, nil)
	fx.store.seed(docstore.Record{ID: "doc-1", Content: "", Version: 1})
	mustLoad(t, fx.session, "doc-1")

	fx.session.SetContent("alpha", 5)
	waitFor(t, 2*time.Second, "commit", func() bool {
		return fx.session.State().CanUndo
	})
	fx.session.Undo()
	if !fx.session.State().CanRedo {
		t.Fatalf("expected redo after undo")
	}

	fx.session.SetContent("beta", 4)
	if fx.session.State().CanRedo {
		t.Fatalf("typing after undo must clear redo")
	}
}

func TestUndoDepthIsBounded(t *testing.T) {
	fx := newFixture(t, nil)
	fx.store.seed(docstore.Record{ID: "doc-1", Content: "", Version: 1})
	mustLoad(t, fx.session, "doc-1")

	// Programmatic insertions checkpoint atomically, so each one is a step.
	for i := 0; i < maxUndoDepth+10; i++ {
		state := fx.session.State()
		fx.session.InsertText(len(state.Document.Content), "x")
	}

	undos := 0
	for fx.session.State().CanUndo {
		fx.session.Undo()
		undos++
		if undos > maxUndoDepth {
			t.Fatalf("undo stack exceeded the %d-entry bound", maxUndoDepth)
		}
	}
	if undos != maxUndoDepth {
		t.Fatalf("performed %d undos, want %d", undos, maxUndoDepth)
	}
	// The ten oldest steps were evicted: full unwind stops at ten characters,
	// not at the empty document.
	if content := fx.session.State().Document.Content; content != strings.Repeat("x", 10) {
		t.Fatalf("fully unwound content = %q", content)
	}
}

func TestUndoOnEmptyStackIsNoOp(t *testing.T) {
	fx := newFixture(t, nil)
	fx.store.seed(docstore.Record{ID: "doc-1", Content: "FADE IN:", Version: 1})
	mustLoad(t, fx.session, "doc-1")

	fx.session.Undo()
	fx.session.Redo()

	state := fx.session.State()
	if state.Document.Content != "FADE IN:" || state.Document.Dirty {
		t.Fatalf("empty-stack undo/redo mutated the document: %+v", state.Document)
	}
}

func TestUndoRestoresCaretOfSnapshot(t *testing.T) {
	fx := newFixture(t, nil)
	fx.store.seed(docstore.Record{ID: "doc-1", Content: "FADE IN:", Version: 1})
	mustLoad(t, fx.session, "doc-1")

	fx.session.SetCursor(8)
	fx.session.InsertText(8, " ...")

	fx.session.Undo()
	state := fx.session.State()
	if state.Document.Content != "FADE IN:" {
		t.Fatalf("content = %q", state.Document.Content)
	}
	if state.Cursor.Position != 8 {
		t.Fatalf("caret = %d, want 8", state.Cursor.Position)
	}
}

type fakeSceneIndex struct {
	mu      sync.Mutex
	indexed bool
	purged  bool
}

func (f *fakeSceneIndex) ScenesInContent(content string) int {
	return strings.Count(content, "INT.") + strings.Count(content, "EXT.")
}

func (f *fakeSceneIndex) HasIndexedScenes(_ context.Context) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.indexed, nil
}

func (f *fakeSceneIndex) PurgeIndexedScenes(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.indexed = false
	f.purged = true
	return nil
}

func (f *fakeSceneIndex) wasPurged() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.purged
}

func TestUndoPurgesOrphanedSceneIndex(t *testing.T) {
	index := &fakeSceneIndex{indexed: true}
	fx := newFixture(t, func(cfg *Config) {
		cfg.Scenes = index
	})
	fx.store.seed(docstore.Record{ID: "doc-1", Content: "", Version: 1})
	mustLoad(t, fx.session, "doc-1")

	fx.session.InsertText(0, "INT. LAB - NIGHT\n")
	fx.session.Undo()

	waitFor(t, 2*time.Second, "scene purge", index.wasPurged)
}

func TestBurstGroupingStressAcrossManyBursts(t *testing.T) {
	fx := newFixture(t, nil)
	fx.store.seed(docstore.Record{ID: "doc-1", Content: "", Version: 1})
	mustLoad(t, fx.session, "doc-1")

	content := ""
	for burst := 0; burst < 3; burst++ {
		word := fmt.Sprintf("word%d ", burst)
		for _, r := range word {
			content += string(r)
			fx.session.SetContent(content, len(content))
		}
		waitFor(t, 2*time.Second, "burst commit", func() bool {
			fx.session.mu.Lock()
			defer fx.session.mu.Unlock()
			return fx.session.pending == nil
		})
	}

	fx.session.mu.Lock()
	depth := len(fx.session.undoStack)
	fx.session.mu.Unlock()
	if depth != 3 {
		t.Fatalf("undo depth = %d, want one step per burst (3)", depth)
	}
}
