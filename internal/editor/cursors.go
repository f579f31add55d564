package editor

import (
	"context"
	"time"

	"github.com/fountainhead-app/fountainhead/internal/presence"
)

// cursorChangedLocked debounces cursor broadcasts. Unchanged positions are
// skipped entirely; movement restarts the debounce window.
func (s *Session) cursorChangedLocked() {
	if s.doc.ID == "" {
		return
	}
	if s.broadcastCurrent && s.cursor == s.lastBroadcast {
		return
	}
	s.broadcastCurrent = false
	if s.cursorTimer != nil {
		s.cursorTimer.Stop()
	}
	epoch := s.epoch
	s.cursorTimer = time.AfterFunc(s.intervals.CursorDebounce, func() {
		s.publishCursor(epoch)
	})
}

func (s *Session) publishCursor(epoch int64) {
	s.mu.Lock()
	if s.epoch != epoch || s.closed || s.doc.ID == "" {
		s.mu.Unlock()
		return
	}
	documentID := s.doc.ID
	snapshot := s.cursor
	record := presence.CursorRecord{
		UserID:            s.userID,
		DisplayName:       s.displayName,
		Position:          snapshot.Position,
		SelectionStart:    snapshot.SelectionStart,
		SelectionEnd:      snapshot.SelectionEnd,
		LastSeenAtSeconds: s.clock().Unix(),
	}
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.cursors.Publish(ctx, documentID, record); err != nil {
		s.logWarn(opCursorSync, "publish_failed", err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.epoch != epoch || s.closed {
		return
	}
	s.lastBroadcast = snapshot
	s.broadcastCurrent = true
	if !s.heartbeatOn {
		// After the first successful publish, keep the cursor alive during
		// idle pauses so it does not vanish from peers' views.
		s.heartbeatOn = true
		go s.cursorHeartbeatLoop(s.bgCtx, epoch)
	}
}

func (s *Session) cursorHeartbeatLoop(ctx context.Context, epoch int64) {
	ticker := time.NewTicker(s.intervals.CursorHeartbeat)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.mu.Lock()
			if s.epoch != epoch || s.closed || s.doc.ID == "" || !s.broadcastCurrent {
				s.mu.Unlock()
				continue
			}
			documentID := s.doc.ID
			record := presence.CursorRecord{
				UserID:            s.userID,
				DisplayName:       s.displayName,
				Position:          s.lastBroadcast.Position,
				SelectionStart:    s.lastBroadcast.SelectionStart,
				SelectionEnd:      s.lastBroadcast.SelectionEnd,
				LastSeenAtSeconds: s.clock().Unix(),
			}
			s.mu.Unlock()

			publishCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := s.cursors.Publish(publishCtx, documentID, record); err != nil {
				s.logWarn(opCursorSync, "heartbeat_failed", err)
			}
			cancel()
		}
	}
}

// cursorPollLoop fetches peer cursors while the editing surface is the
// active view and a document id is known.
func (s *Session) cursorPollLoop(ctx context.Context) {
	ticker := time.NewTicker(s.intervals.CursorPoll)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !s.viewActive() {
				continue
			}
			s.mu.Lock()
			documentID := s.doc.ID
			epoch := s.epoch
			s.mu.Unlock()
			if documentID == "" {
				continue
			}

			listCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			records, err := s.cursors.List(listCtx, documentID)
			cancel()
			if err != nil {
				s.logWarn(opCursorSync, "poll_failed", err)
				continue
			}
			s.applyPeerCursors(epoch, records)
		}
	}
}

func (s *Session) applyPeerCursors(epoch int64, records []presence.CursorRecord) {
	now := s.clock().Unix()
	staleAfter := int64(s.intervals.CursorStaleAfter / time.Second)
	filtered := make([]presence.CursorRecord, 0, len(records))
	for _, record := range records {
		if record.UserID == s.userID {
			continue
		}
		if now-record.LastSeenAtSeconds > staleAfter {
			continue
		}
		filtered = append(filtered, record)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.epoch != epoch || s.closed {
		return
	}
	// Only swap the rendered set when its (user, position) composition
	// actually changed, to avoid redundant re-renders downstream.
	if samePeerCursors(s.otherCursors, filtered) {
		return
	}
	s.otherCursors = filtered
}

func samePeerCursors(current, next []presence.CursorRecord) bool {
	if len(current) != len(next) {
		return false
	}
	for i := range current {
		if current[i].UserID != next[i].UserID || current[i].Position != next[i].Position {
			return false
		}
	}
	return true
}
