package editor

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/fountainhead-app/fountainhead/internal/docstore"
)

// remoteWatchLoop detects version bumps made by collaborators. It only runs
// for documents that had collaborators when the load finished. A change is
// adopted silently when self-authored, adopted with a passive notice when
// the local document is clean, and surfaced as an actionable conflict when
// local edits would be lost. The check-then-adopt gap is accepted risk under
// the last-write-wins policy.
func (s *Session) remoteWatchLoop(ctx context.Context) {
	ticker := time.NewTicker(s.intervals.RemotePoll)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.mu.Lock()
			documentID := s.doc.ID
			epoch := s.epoch
			knownVersion := s.doc.Version
			s.mu.Unlock()
			if documentID == "" {
				continue
			}

			fetchCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			record, err := s.store.Get(fetchCtx, documentID)
			cancel()
			if err != nil {
				s.logWarn(opRemoteWatch, "poll_failed", err,
					zap.String("document_id", documentID))
				continue
			}
			if record.Version.Int64() == knownVersion {
				continue
			}
			s.applyRemoteChange(epoch, record)
		}
	}
}

func (s *Session) applyRemoteChange(epoch int64, record docstore.Record) {
	s.mu.Lock()
	if s.epoch != epoch || s.closed || s.doc.ID != record.ID {
		s.mu.Unlock()
		return
	}

	if record.LastEditedBy == s.userID {
		// Our own prior save landed; track the version, no notification.
		s.doc.Version = record.Version.Int64()
		s.trackedVersionDoc = record.ID
		s.mu.Unlock()
		return
	}

	if s.doc.Dirty {
		remoteVersion := record.Version.Int64()
		s.mu.Unlock()
		// Never overwrite unsaved local work; offer a reload instead.
		s.events.Publish(Event{
			Type:          EventRemoteChangeConflict,
			DocumentID:    record.ID,
			Message:       "this screenplay was changed by a collaborator",
			RemoteVersion: remoteVersion,
			Timestamp:     s.clock(),
		})
		return
	}

	s.adoptRecordLocked(record)
	documentID := record.ID
	s.mu.Unlock()

	s.events.Publish(Event{
		Type:          EventRemoteContentAdopted,
		DocumentID:    documentID,
		Message:       "updated with a collaborator's changes",
		RemoteVersion: record.Version.Int64(),
		Timestamp:     s.clock(),
	})
}

// ReloadFromRemote discards local edits in favor of the current remote
// record. It backs the actionable conflict notice.
func (s *Session) ReloadFromRemote(ctx context.Context) error {
	s.mu.Lock()
	documentID := s.doc.ID
	epoch := s.epoch
	s.mu.Unlock()
	if documentID == "" {
		return newSessionError(opRemoteWatch, "no_document", nil)
	}

	record, err := s.store.Get(ctx, documentID)
	if err != nil {
		return newSessionError(opRemoteWatch, "reload_failed", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.epoch != epoch || s.closed || s.doc.ID != record.ID {
		return nil
	}
	s.adoptRecordLocked(record)
	return nil
}

// adoptRecordLocked replaces local state with the remote record and resets
// edit history; the adopted content is a new baseline.
func (s *Session) adoptRecordLocked(record docstore.Record) {
	s.doc.Title = record.Title
	s.doc.Author = record.Author
	s.doc.Content = record.Content
	s.doc.Version = record.Version.Int64()
	s.doc.Dirty = false
	s.trackedVersionDoc = record.ID
	s.lastSynced = record.Content
	s.cursor = cursorAt(clamp(s.cursor.Position, 0, len(record.Content)))
	s.undoStack = nil
	s.redoStack = nil
	s.pending = nil
	if s.undoTimer != nil {
		s.undoTimer.Stop()
		s.undoTimer = nil
	}
	s.highlight = nil
	s.writeCacheLocked()
}
