package editor

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/fountainhead-app/fountainhead/internal/docstore"
)

// armRemoteSaveLocked (re)starts the debounced remote save. When the timer
// fires it re-checks that content has not moved on since it was armed; a
// newer debounce is presumed in flight otherwise.
func (s *Session) armRemoteSaveLocked() {
	s.contentAtArm = s.doc.Content
	if s.saveTimer != nil {
		s.saveTimer.Stop()
	}
	epoch := s.epoch
	armed := s.contentAtArm
	s.saveTimer = time.AfterFunc(s.intervals.SaveDebounce, func() {
		s.mu.Lock()
		if s.epoch != epoch || s.closed || !s.doc.Dirty ||
			s.doc.Content != armed || s.doc.Content == "" {
			s.mu.Unlock()
			return
		}
		s.mu.Unlock()
		s.backgroundSave("debounce")
	})
}

// backgroundSave runs SaveNow on behalf of a timer. Failures are swallowed:
// the cache copy is the durability backstop and another trigger will retry.
func (s *Session) backgroundSave(trigger string) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()
	if err := s.SaveNow(ctx); err != nil {
		s.logWarn(opSaveNow, "background_save_failed", err, zap.String("trigger", trigger))
	}
}

// autosaveLoop is the backstop against a debounce that never fires: while
// the document stays dirty it forces a save every interval.
func (s *Session) autosaveLoop(ctx context.Context) {
	ticker := time.NewTicker(s.intervals.Autosave)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if s.HasUnsavedChanges() {
				s.backgroundSave("autosave")
			}
		}
	}
}

// SaveNow persists the document to the local cache and the remote store.
// Manual callers receive failures; background triggers swallow them. The
// conflict policy is last-write-wins: a version-rejected update retries once
// with a forced overwrite.
func (s *Session) SaveNow(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return newSessionError(opSaveNow, "session_closed", nil)
	}
	if lockViewFor(s.lockStatus, s.claimLocked()).blocked() {
		s.mu.Unlock()
		return newSessionError(opSaveNow, "lock_held", ErrLockHeld)
	}

	targetID := s.resolveDocumentIDLocked()
	s.doc.ID = targetID
	s.writeCacheLocked()

	if targetID == "" {
		return s.createRemoteLocked(ctx)
	}
	return s.updateRemoteLocked(ctx, targetID)
}

// resolveDocumentIDLocked prefers a well-formed route-level id over the
// internally tracked one. A malformed or deprecated route id is never
// silently trusted: it logs and falls back to the tracked reference.
func (s *Session) resolveDocumentIDLocked() string {
	if s.routeDocumentID == "" {
		return s.doc.ID
	}
	routeID, err := docstore.NewDocumentID(s.routeDocumentID)
	if err != nil {
		s.logWarn(opSaveNow, "malformed_route_id", err,
			zap.String("route_id", s.routeDocumentID))
		return s.doc.ID
	}
	return routeID.String()
}

// createRemoteLocked handles the lazy first save: the document gains its id
// here, not at first keystroke. Caller holds s.mu; it is released across the
// remote call and re-taken to apply the result.
func (s *Session) createRemoteLocked(ctx context.Context) error {
	if s.creating {
		s.mu.Unlock()
		return nil
	}
	if s.doc.Content == "" {
		s.mu.Unlock()
		return nil
	}
	s.creating = true
	payload := s.doc
	epoch := s.epoch
	s.mu.Unlock()

	record, err := s.store.Create(ctx, docstore.CreateRequest{
		Title:   payload.Title,
		Author:  payload.Author,
		Content: payload.Content,
	})

	s.mu.Lock()
	s.creating = false
	if err != nil {
		s.saveFailures++
		s.mu.Unlock()
		s.logError(opSaveNow, "create_failed", err)
		return newSessionError(opSaveNow, "create_failed", err)
	}
	if s.epoch != epoch {
		// The session switched documents while the create was in flight;
		// the result is ignored.
		s.mu.Unlock()
		return nil
	}

	s.doc.ID = record.ID
	s.doc.Version = record.Version.Int64()
	s.trackedVersionDoc = record.ID
	s.doc.LastSavedAt = s.clock()
	s.saveFailures = 0
	if s.doc.Content == payload.Content {
		s.doc.Dirty = false
		s.lastSynced = payload.Content
	}
	s.writeCacheLocked()
	s.clearCacheLocked("")
	if s.pointer != nil {
		if err := s.pointer.SetCurrentDocumentID(s.userID, record.ID); err != nil {
			s.logWarn(opSaveNow, "pointer_update_failed", err)
		}
	}
	claim := s.claimLocked()
	s.mu.Unlock()

	s.events.Publish(Event{
		Type:       EventDocumentCreated,
		DocumentID: record.ID,
		Timestamp:  s.clock(),
	})
	s.acquireLock(claim)
	return nil
}

func (s *Session) updateRemoteLocked(ctx context.Context, targetID string) error {
	if !s.doc.Dirty {
		// Nothing moved since the last confirmed save; a repeat call is a
		// safe no-op.
		s.mu.Unlock()
		return nil
	}

	version := s.doc.Version
	if s.trackedVersionDoc != targetID {
		// Version ref belongs to a previously open document; sending it
		// would be an incorrect optimistic token.
		s.logWarn(opSaveNow, "stale_version_ref", nil,
			zap.String("tracked", s.trackedVersionDoc),
			zap.String("target", targetID))
		version = 0
	}
	payload := s.doc
	epoch := s.epoch
	s.mu.Unlock()

	request := docstore.UpdateRequest{
		ID:      targetID,
		Title:   payload.Title,
		Author:  payload.Author,
		Content: payload.Content,
		Version: docstore.Version(version),
	}
	record, err := s.store.Update(ctx, request)
	if errors.Is(err, docstore.ErrVersionConflict) {
		// Last write wins: retry once with a forced overwrite instead of
		// surfacing a merge UI.
		request.Force = true
		request.Version = 0
		record, err = s.store.Update(ctx, request)
	}

	s.mu.Lock()
	if err != nil {
		s.saveFailures++
		s.mu.Unlock()
		s.logError(opSaveNow, "update_failed", err, zap.String("document_id", targetID))
		return newSessionError(opSaveNow, "update_failed", err)
	}
	if s.epoch != epoch {
		s.mu.Unlock()
		return nil
	}

	s.doc.Version = record.Version.Int64()
	s.trackedVersionDoc = targetID
	s.doc.LastSavedAt = s.clock()
	s.saveFailures = 0
	if s.doc.Content == payload.Content {
		s.doc.Dirty = false
		s.lastSynced = payload.Content
	}
	claim := s.claimLocked()
	s.mu.Unlock()

	// Keep the advisory lock warm after every successful save.
	go func() {
		heartbeatCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.locks.Heartbeat(heartbeatCtx, claim); err != nil {
			s.logWarn(opSaveNow, "lock_heartbeat_failed", err)
		}
	}()
	return nil
}
