package editor

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// The grouping heuristic: consecutive user edits whose caret moves at most
// one position belong to the same typing burst. A burst becomes a single
// undo step when the debounce window closes; a caret jump larger than one
// closes the burst immediately.

// recordUserMutationLocked runs before a user edit is applied, while the
// document still holds the pre-edit state.
func (s *Session) recordUserMutationLocked(newCursorPosition int) {
	if s.pending != nil && abs(newCursorPosition-s.lastMutationCursor) > 1 {
		s.commitPendingLocked()
	}
	if s.pending == nil {
		s.pending = &Snapshot{
			Content:        s.doc.Content,
			CursorPosition: s.cursor.Position,
			Timestamp:      s.clock(),
		}
	}
	s.lastMutationCursor = newCursorPosition

	// Typing invalidates redo regardless of when the burst commits.
	s.redoStack = nil

	if s.undoTimer != nil {
		s.undoTimer.Stop()
	}
	epoch := s.epoch
	s.undoTimer = time.AfterFunc(s.intervals.UndoDebounce, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.epoch != epoch || s.closed {
			return
		}
		s.commitPendingLocked()
	})
}

func (s *Session) commitPendingLocked() {
	if s.undoTimer != nil {
		s.undoTimer.Stop()
		s.undoTimer = nil
	}
	if s.pending == nil {
		return
	}
	s.pushUndoLocked(*s.pending)
	s.pending = nil
}

// checkpointLocked records the current state as its own atomic undo step.
// Programmatic insertions use it so they never merge into a typing group.
func (s *Session) checkpointLocked() {
	if s.undoTimer != nil {
		s.undoTimer.Stop()
		s.undoTimer = nil
	}
	s.pending = nil
	s.pushUndoLocked(Snapshot{
		Content:        s.doc.Content,
		CursorPosition: s.cursor.Position,
		Timestamp:      s.clock(),
	})
}

// pushUndoLocked commits a snapshot and invalidates redo history. Undo and
// redo themselves bypass this and append directly.
func (s *Session) pushUndoLocked(snapshot Snapshot) {
	s.undoStack = appendBounded(s.undoStack, snapshot)
	s.redoStack = nil
}

// Undo restores the most recent committed snapshot. An explicit undo wins
// over an in-flight grouping decision: any pending snapshot is discarded.
func (s *Session) Undo() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.mutationBlockedLocked("undo") {
		return
	}
	if len(s.undoStack) == 0 {
		s.logWarn(opUndo, "empty_stack", nil)
		return
	}

	if s.undoTimer != nil {
		s.undoTimer.Stop()
		s.undoTimer = nil
	}
	s.pending = nil

	s.redoStack = appendBounded(s.redoStack, Snapshot{
		Content:        s.doc.Content,
		CursorPosition: s.cursor.Position,
		Timestamp:      s.clock(),
	})

	restored := s.undoStack[len(s.undoStack)-1]
	s.undoStack = s.undoStack[:len(s.undoStack)-1]
	s.restoreSnapshotLocked(restored)
}

// Redo reapplies the change reverted by the last Undo.
func (s *Session) Redo() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.mutationBlockedLocked("redo") {
		return
	}
	if len(s.redoStack) == 0 {
		s.logWarn(opRedo, "empty_stack", nil)
		return
	}

	s.undoStack = appendBounded(s.undoStack, Snapshot{
		Content:        s.doc.Content,
		CursorPosition: s.cursor.Position,
		Timestamp:      s.clock(),
	})

	restored := s.redoStack[len(s.redoStack)-1]
	s.redoStack = s.redoStack[:len(s.redoStack)-1]
	s.restoreSnapshotLocked(restored)
}

func (s *Session) restoreSnapshotLocked(snapshot Snapshot) {
	s.doc.Content = snapshot.Content
	s.cursor = cursorAt(clamp(snapshot.CursorPosition, 0, len(snapshot.Content)))
	s.highlight = nil
	s.markDirtyLocked()
	s.cursorChangedLocked()
	s.reconcileSceneIndexLocked(snapshot.Content)
}

// reconcileSceneIndexLocked keeps the derived structural index consistent
// with a restore: undoing "delete everything" must also drop the indexed
// scenes. The cleanup is asynchronous and never blocks the restore.
func (s *Session) reconcileSceneIndexLocked(content string) {
	if s.scenes == nil || s.scenes.ScenesInContent(content) > 0 {
		return
	}
	scenes := s.scenes
	logger := s.logger
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		indexed, err := scenes.HasIndexedScenes(ctx)
		if err != nil {
			logger.Warn("scene index check failed",
				zap.String("operation", opUndo), zap.Error(err))
			return
		}
		if !indexed {
			return
		}
		if err := scenes.PurgeIndexedScenes(ctx); err != nil {
			logger.Warn("scene index purge failed",
				zap.String("operation", opUndo), zap.Error(err))
		}
	}()
}

func appendBounded(stack []Snapshot, snapshot Snapshot) []Snapshot {
	stack = append(stack, snapshot)
	if len(stack) > maxUndoDepth {
		// Oldest entry is discarded silently.
		stack = stack[len(stack)-maxUndoDepth:]
	}
	return stack
}

func abs(value int) int {
	if value < 0 {
		return -value
	}
	return value
}
