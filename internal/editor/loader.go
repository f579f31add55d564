package editor

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/fountainhead-app/fountainhead/internal/cache"
	"github.com/fountainhead-app/fountainhead/internal/docstore"
	"github.com/fountainhead-app/fountainhead/internal/lock"
)

type loadOutcome struct {
	doc           Document
	lastSynced    string
	collaborators []string
}

// Load resolves the authoritative initial content for a logical document
// identity: the route-supplied id, else the tracked id, else the sentinel
// "no document yet". The guard-key check runs synchronously before any
// remote call, so overlapping or duplicate loads of the same identity are
// impossible even under fast remount churn.
func (s *Session) Load(ctx context.Context, requestedID string) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return newSessionError(opLoad, "session_closed", nil)
	}

	key := s.loadKeyLocked(requestedID)
	switch {
	case s.guardState == guardLoading:
		// A load for some identity is already in flight; re-running would
		// risk clobbering newer in-memory edits with stale remote data.
		s.mu.Unlock()
		return nil
	case s.guardState == guardReady && s.guardKey == key:
		s.mu.Unlock()
		return nil
	case s.guardState == guardReady:
		// Genuine identity switch, including the sentinel-to-real-id case:
		// tear the old document down before loading fresh.
		s.resetIdentityLocked()
	}
	s.guardState = guardLoading
	s.guardKey = key
	s.routeDocumentID = requestedID
	epoch := s.epoch
	s.mu.Unlock()

	outcome, err := s.resolveDocument(ctx, requestedID)

	s.mu.Lock()
	if s.epoch != epoch || s.closed {
		// A newer identity took over while this resolution was in flight.
		s.mu.Unlock()
		return nil
	}
	if err != nil {
		if docstore.IsTransient(err) {
			// Allow the next mount to retry.
			s.guardState = guardIdle
			s.guardKey = guardKeyNone
		} else {
			s.guardState = guardReady
		}
		s.mu.Unlock()
		s.publishUnavailable(requestedID, err)
		s.logError(opLoad, "resolve_failed", err, zap.String("requested_id", requestedID))
		return newSessionError(opLoad, "resolve_failed", err)
	}

	s.doc = outcome.doc
	s.cursor = cursorAt(0)
	s.lastSynced = outcome.lastSynced
	if outcome.doc.ID != "" {
		s.trackedVersionDoc = outcome.doc.ID
	}
	s.knownCollabs = outcome.collaborators
	s.watchCollabs = len(outcome.collaborators) > 0
	s.writeCacheLocked()
	s.guardState = guardReady
	s.startBackgroundLocked()
	claim := s.claimLocked()
	s.mu.Unlock()

	if claim.DocumentID != "" {
		s.acquireLock(claim)
	}
	return nil
}

func (s *Session) loadKeyLocked(requestedID string) string {
	if trimmed := strings.TrimSpace(requestedID); trimmed != "" {
		return trimmed
	}
	if s.doc.ID != "" {
		return s.doc.ID
	}
	return guardKeyNone
}

// resolveDocument walks the resolution order: explicit id, account pointer,
// legacy global cache, recency listing, empty. It runs without the session
// lock; the caller re-validates the epoch before applying the outcome.
func (s *Session) resolveDocument(ctx context.Context, requestedID string) (loadOutcome, error) {
	var fallthroughErr error

	if strings.TrimSpace(requestedID) != "" {
		documentID, err := docstore.NewDocumentID(requestedID)
		if err != nil {
			// Deprecated or malformed explicit ids surface an error state;
			// falling through would load the wrong document.
			return loadOutcome{}, err
		}
		record, err := s.store.Get(ctx, documentID.String())
		switch {
		case err == nil && record.Status == docstore.StatusDeleted:
			return loadOutcome{}, docstore.ErrDocumentDeleted
		case err == nil:
			return s.reconcileWithCache(record), nil
		case !docstore.IsTransient(err):
			// 403/404/deleted stop resolution: the id was explicit and
			// authoritative.
			return loadOutcome{}, err
		default:
			s.logWarn(opLoad, "explicit_fetch_transient", err,
				zap.String("document_id", documentID.String()))
			fallthroughErr = err
		}
	}

	if s.pointer != nil {
		if pointerID, ok := s.pointer.CurrentDocumentID(s.userID); ok {
			record, err := s.store.Get(ctx, pointerID)
			if err == nil && record.Status != docstore.StatusDeleted {
				return s.reconcileWithCache(record), nil
			}
			if err != nil {
				s.logWarn(opLoad, "pointer_fetch_failed", err,
					zap.String("document_id", pointerID))
			}
		}
	}

	// Last-resort legacy fallback: the pre-multi-document global cache keys.
	// Content found here has never been confirmed remotely, so it loads dirty.
	if content, ok := s.cacheStore.Get(cache.Key(cache.KindContent, "")); ok && strings.TrimSpace(content) != "" {
		title, _ := s.cacheStore.Get(cache.Key(cache.KindTitle, ""))
		author, _ := s.cacheStore.Get(cache.Key(cache.KindAuthor, ""))
		return loadOutcome{doc: Document{
			Content: content,
			Title:   title,
			Author:  author,
			Dirty:   true,
		}}, nil
	}

	if strings.TrimSpace(requestedID) == "" {
		records, err := s.store.List(ctx)
		if err != nil {
			s.logWarn(opLoad, "listing_failed", err)
		} else if len(records) > 0 {
			outcome := s.reconcileWithCache(records[0])
			if s.pointer != nil {
				_ = s.pointer.SetCurrentDocumentID(s.userID, records[0].ID)
			}
			return outcome, nil
		}
	}

	if fallthroughErr != nil {
		// The explicit fetch failed transiently and no fallback produced
		// content; report it so the guard resets and the next mount retries.
		return loadOutcome{}, fallthroughErr
	}

	// Brand-new user, nothing anywhere: stay empty and let the first save
	// create the document lazily.
	return loadOutcome{}, nil
}

// reconcileWithCache prefers a diverging non-empty cache copy over the
// remote record: the cache holds unflushed edits, and the next save cycle
// reconciles them back to the store.
func (s *Session) reconcileWithCache(record docstore.Record) loadOutcome {
	outcome := loadOutcome{
		lastSynced:    record.Content,
		collaborators: record.Collaborators,
	}
	doc := Document{
		ID:      record.ID,
		Title:   record.Title,
		Author:  record.Author,
		Content: record.Content,
		Version: record.Version.Int64(),
	}
	if record.UpdatedAtSeconds > 0 {
		doc.LastSavedAt = time.Unix(record.UpdatedAtSeconds, 0).UTC()
	}

	cachedContent, ok := s.cacheStore.Get(cache.Key(cache.KindContent, record.ID))
	if ok && strings.TrimSpace(cachedContent) != "" && cachedContent != record.Content {
		doc.Content = cachedContent
		doc.Dirty = true
		if cachedTitle, ok := s.cacheStore.Get(cache.Key(cache.KindTitle, record.ID)); ok && cachedTitle != "" {
			doc.Title = cachedTitle
		}
		if cachedAuthor, ok := s.cacheStore.Get(cache.Key(cache.KindAuthor, record.ID)); ok && cachedAuthor != "" {
			doc.Author = cachedAuthor
		}
	}

	outcome.doc = doc
	return outcome
}

func (s *Session) publishUnavailable(requestedID string, err error) {
	message := "document unavailable"
	switch {
	case errors.Is(err, docstore.ErrDocumentDeleted):
		message = "document was deleted"
	case errors.Is(err, docstore.ErrNotFound):
		message = "document not found"
	case errors.Is(err, docstore.ErrPermissionDenied):
		message = "you do not have access to this document"
	case errors.Is(err, docstore.ErrDeprecatedDocumentID):
		message = "this link uses a retired document id format"
	case docstore.IsTransient(err):
		return
	}
	s.events.Publish(Event{
		Type:       EventDocumentUnavailable,
		DocumentID: requestedID,
		Message:    message,
		Timestamp:  s.clock(),
	})
}

// acquireLock claims the advisory edit lock once a document finishes
// loading and records the observed holder.
func (s *Session) acquireLock(claim lock.Claim) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	status, err := s.locks.Acquire(ctx, claim)
	if err != nil {
		s.logWarn(opLoad, "lock_acquire_failed", err,
			zap.String("document_id", claim.DocumentID))
		return
	}
	s.mu.Lock()
	if s.doc.ID == claim.DocumentID {
		s.lockStatus = status
	}
	s.mu.Unlock()
}

// startBackgroundLocked launches the per-identity timer loops exactly once.
// They all stop through the identity context when the document switches.
func (s *Session) startBackgroundLocked() {
	if s.bgStarted {
		return
	}
	s.bgStarted = true
	ctx := s.bgCtx
	go s.autosaveLoop(ctx)
	go s.cursorPollLoop(ctx)
	if s.watchCollabs {
		go s.remoteWatchLoop(ctx)
	}
}
