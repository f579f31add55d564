package editor

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/fountainhead-app/fountainhead/internal/cache"
	"github.com/fountainhead-app/fountainhead/internal/docstore"
	"github.com/fountainhead-app/fountainhead/internal/lock"
	"github.com/fountainhead-app/fountainhead/internal/presence"
)

// Default timer settings. Each one is independently overridable for tests.
const (
	defaultUndoDebounce     = 500 * time.Millisecond
	defaultSaveDebounce     = 3 * time.Second
	defaultAutosave         = 60 * time.Second
	defaultCursorDebounce   = 500 * time.Millisecond
	defaultCursorHeartbeat  = 5 * time.Second
	defaultCursorPoll       = 2 * time.Second
	defaultRemotePoll       = 15 * time.Second
	defaultCursorStaleAfter = 30 * time.Second
)

const maxUndoDepth = 50

var noOpLogger = zap.NewNop()

// PointerStore remembers the user's last active document across sessions.
type PointerStore interface {
	CurrentDocumentID(userID string) (string, bool)
	SetCurrentDocumentID(userID, documentID string) error
}

// SceneIndex is the structural-parse collaborator. The session only needs
// enough of it to keep the derived scene index consistent across undo.
type SceneIndex interface {
	ScenesInContent(content string) int
	HasIndexedScenes(ctx context.Context) (bool, error)
	PurgeIndexedScenes(ctx context.Context) error
}

// ExitFlusher delivers best-effort saves that outlive the session.
type ExitFlusher interface {
	Send(payload docstore.FlushPayload)
}

// ViewProbe reports whether the editing surface is the active view. Cursor
// polling pauses while it returns false.
type ViewProbe func() bool

// Intervals overrides the session's timers. Zero values keep the defaults.
type Intervals struct {
	UndoDebounce     time.Duration
	SaveDebounce     time.Duration
	Autosave         time.Duration
	CursorDebounce   time.Duration
	CursorHeartbeat  time.Duration
	CursorPoll       time.Duration
	RemotePoll       time.Duration
	CursorStaleAfter time.Duration
}

func (i Intervals) withDefaults() Intervals {
	pick := func(value, fallback time.Duration) time.Duration {
		if value > 0 {
			return value
		}
		return fallback
	}
	return Intervals{
		UndoDebounce:     pick(i.UndoDebounce, defaultUndoDebounce),
		SaveDebounce:     pick(i.SaveDebounce, defaultSaveDebounce),
		Autosave:         pick(i.Autosave, defaultAutosave),
		CursorDebounce:   pick(i.CursorDebounce, defaultCursorDebounce),
		CursorHeartbeat:  pick(i.CursorHeartbeat, defaultCursorHeartbeat),
		CursorPoll:       pick(i.CursorPoll, defaultCursorPoll),
		RemotePoll:       pick(i.RemotePoll, defaultRemotePoll),
		CursorStaleAfter: pick(i.CursorStaleAfter, defaultCursorStaleAfter),
	}
}

// Config describes the collaborators and identity a session needs.
type Config struct {
	Cache   cache.Store
	Store   docstore.Client
	Locks   lock.Service
	Cursors presence.Service
	Pointer PointerStore
	Scenes  SceneIndex
	Flusher ExitFlusher
	Events  *EventDispatcher

	UserID      string
	DeviceID    string
	DisplayName string

	ViewActive ViewProbe
	Intervals  Intervals
	Logger     *zap.Logger
	Clock      func() time.Time
}

// Session is the editor state machine: it owns the in-memory document,
// groups keystrokes into undo units, schedules persistence across the local
// cache and the remote store, honors the advisory edit lock, and shares
// cursors with collaborators. All public methods are safe for concurrent use.
type Session struct {
	mu sync.Mutex

	cacheStore cache.Store
	store      docstore.Client
	locks      lock.Service
	cursors    presence.Service
	pointer    PointerStore
	scenes     SceneIndex
	flusher    ExitFlusher
	events     *EventDispatcher

	userID      string
	deviceID    string
	displayName string

	viewActive ViewProbe
	intervals  Intervals
	logger     *zap.Logger
	clock      func() time.Time

	doc        Document
	cursor     CursorState
	lastSynced string
	highlight  *HighlightRange
	prefs      Preferences

	// trackedVersionDoc records which document the tracked version belongs
	// to; a mismatch means the ref is stale and must not be sent.
	trackedVersionDoc string

	lockStatus lock.Status

	undoStack          []Snapshot
	redoStack          []Snapshot
	pending            *Snapshot
	lastMutationCursor int
	undoTimer          *time.Timer

	saveTimer        *time.Timer
	contentAtArm     string
	creating         bool
	saveFailures     int
	routeDocumentID  string
	watchCollabs     bool
	knownCollabs     []string
	lastBroadcast    CursorState
	broadcastCurrent bool
	cursorTimer      *time.Timer
	heartbeatOn      bool
	otherCursors     []presence.CursorRecord

	guardState guardState
	guardKey   string

	epoch     int64
	bgCtx     context.Context
	bgCancel  context.CancelFunc
	bgStarted bool
	closed    bool
}

type guardState int

const (
	guardIdle guardState = iota
	guardLoading
	guardReady
)

const guardKeyNone = "none"

// NewSession validates the configuration and returns an idle session. Call
// Load to resolve the initial document.
func NewSession(cfg Config) (*Session, error) {
	if cfg.Cache == nil {
		return nil, newSessionError(opSessionNew, "missing_cache", nil)
	}
	if cfg.Store == nil {
		return nil, newSessionError(opSessionNew, "missing_store", nil)
	}
	if cfg.Locks == nil {
		return nil, newSessionError(opSessionNew, "missing_locks", nil)
	}
	if cfg.Cursors == nil {
		return nil, newSessionError(opSessionNew, "missing_cursors", nil)
	}
	if strings.TrimSpace(cfg.UserID) == "" {
		return nil, newSessionError(opSessionNew, "missing_user", nil)
	}
	if strings.TrimSpace(cfg.DeviceID) == "" {
		return nil, newSessionError(opSessionNew, "missing_device", nil)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	viewActive := cfg.ViewActive
	if viewActive == nil {
		viewActive = func() bool { return true }
	}
	events := cfg.Events
	if events == nil {
		events = NewEventDispatcher()
	}

	bgCtx, bgCancel := context.WithCancel(context.Background())
	session := &Session{
		cacheStore:  cfg.Cache,
		store:       cfg.Store,
		locks:       cfg.Locks,
		cursors:     cfg.Cursors,
		pointer:     cfg.Pointer,
		scenes:      cfg.Scenes,
		flusher:     cfg.Flusher,
		events:      events,
		userID:      cfg.UserID,
		deviceID:    cfg.DeviceID,
		displayName: cfg.DisplayName,
		viewActive:  viewActive,
		intervals:   cfg.Intervals.withDefaults(),
		logger:      logger,
		clock:       clock,
		guardState:  guardIdle,
		guardKey:    guardKeyNone,
		bgCtx:       bgCtx,
		bgCancel:    bgCancel,
	}
	session.loadPreferencesLocked()
	return session, nil
}

// Events exposes the session's notification dispatcher.
func (s *Session) Events() *EventDispatcher {
	return s.events
}

// State returns a copy of the UI-facing session state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	state := State{
		Document:          s.doc,
		Cursor:            s.cursor,
		LastSyncedContent: s.lastSynced,
		CanUndo:           len(s.undoStack) > 0,
		CanRedo:           len(s.redoStack) > 0,
		Lock:              lockViewFor(s.lockStatus, s.claimLocked()),
		Highlight:         s.highlight,
		Preferences:       s.prefs,
		SaveFailures:      s.saveFailures,
	}
	state.Collaborators = append([]string(nil), s.knownCollabs...)
	state.OtherCursors = append([]presence.CursorRecord(nil), s.otherCursors...)
	return state
}

// HasUnsavedChanges reports whether content differs from the last confirmed
// remote save.
func (s *Session) HasUnsavedChanges() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc.Dirty
}

// SetContent applies a user-initiated edit: the full new content plus the
// caret position after the edit. Typing bursts are grouped into undo units.
func (s *Session) SetContent(content string, cursorPosition int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.mutationBlockedLocked("set_content") {
		return
	}
	if content == s.doc.Content {
		s.setCursorLocked(cursorPosition)
		return
	}

	position := clamp(cursorPosition, 0, len(content))
	s.recordUserMutationLocked(position)
	s.doc.Content = content
	s.cursor = cursorAt(position)
	s.markDirtyLocked()
	s.cursorChangedLocked()
}

// InsertText inserts text at the given offset as one atomic undo step. This
// is the programmatic entry point (assistant-driven insertions); it never
// merges into a typing group, and it sets the highlight range.
func (s *Session) InsertText(position int, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.mutationBlockedLocked("insert_text") || text == "" {
		return
	}

	at := clamp(position, 0, len(s.doc.Content))
	s.checkpointLocked()
	s.doc.Content = s.doc.Content[:at] + text + s.doc.Content[at:]
	s.cursor = cursorAt(at + len(text))
	s.highlight = &HighlightRange{Start: at, End: at + len(text)}
	s.markDirtyLocked()
	s.cursorChangedLocked()
}

// ReplaceSelection replaces the current selection (or inserts at the caret
// when nothing is selected) as one atomic undo step, programmatically.
func (s *Session) ReplaceSelection(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.mutationBlockedLocked("replace_selection") {
		return
	}

	start := clamp(s.cursor.SelectionStart, 0, len(s.doc.Content))
	end := clamp(s.cursor.SelectionEnd, start, len(s.doc.Content))
	s.checkpointLocked()
	s.doc.Content = s.doc.Content[:start] + text + s.doc.Content[end:]
	s.cursor = cursorAt(start + len(text))
	s.highlight = &HighlightRange{Start: start, End: start + len(text)}
	s.markDirtyLocked()
	s.cursorChangedLocked()
}

// SetTitle updates the document title.
func (s *Session) SetTitle(title string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mutationBlockedLocked("set_title") || title == s.doc.Title {
		return
	}
	s.doc.Title = title
	s.markDirtyLocked()
}

// SetAuthor updates the document author.
func (s *Session) SetAuthor(author string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mutationBlockedLocked("set_author") || author == s.doc.Author {
		return
	}
	s.doc.Author = author
	s.markDirtyLocked()
}

// SetCursor moves the caret, collapsing any selection.
func (s *Session) SetCursor(position int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setCursorLocked(position)
}

// SetSelection sets the selection range; the caret follows the end.
func (s *Session) SetSelection(start, end int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	start = clamp(start, 0, len(s.doc.Content))
	end = clamp(end, start, len(s.doc.Content))
	s.cursor = CursorState{Position: end, SelectionStart: start, SelectionEnd: end}
	s.cursorChangedLocked()
}

// ClearHighlight drops the "just inserted" range.
func (s *Session) ClearHighlight() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.highlight = nil
}

// SetFocusMode toggles the distraction-free preference.
func (s *Session) SetFocusMode(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prefs.FocusMode = enabled
	s.storePreferencesLocked()
}

// SetShowLineNumbers toggles the line-number gutter preference.
func (s *Session) SetShowLineNumbers(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prefs.ShowLineNumbers = enabled
	s.storePreferencesLocked()
}

// SetFontSize records the preferred editor font size.
func (s *Session) SetFontSize(size int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if size <= 0 {
		return
	}
	s.prefs.FontSize = size
	s.storePreferencesLocked()
}

// Hide flushes state for a visibility change (tab hidden, window minimized).
// The local cache write is synchronous; the remote flush is fire-and-forget
// and survives the transition. It reports whether the caller should show an
// unsaved-changes confirmation.
func (s *Session) Hide() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.writeCacheLocked()
	s.sendExitFlushLocked()
	return s.doc.Dirty && s.doc.Content != ""
}

// Close tears the session down: flushes the cache, fires a best-effort
// remote flush, clears the published cursor, releases the lock, and cancels
// every timer. Safe to call more than once.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.writeCacheLocked()
	s.sendExitFlushLocked()
	documentID := s.doc.ID
	claim := s.claimLocked()
	s.stopTimersLocked()
	s.bgCancel()
	s.mu.Unlock()

	if documentID == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := s.cursors.Clear(ctx, documentID, s.userID); err != nil {
		s.logWarn(opTeardown, "cursor_clear_failed", err, zap.String("document_id", documentID))
	}
	if err := s.locks.Release(ctx, claim); err != nil {
		s.logWarn(opTeardown, "lock_release_failed", err, zap.String("document_id", documentID))
	}
}

// --- internal helpers (callers hold s.mu) ---

func (s *Session) claimLocked() lock.Claim {
	return lock.Claim{
		DocumentID:  s.doc.ID,
		UserID:      s.userID,
		DeviceID:    s.deviceID,
		DisplayName: s.displayName,
	}
}

func (s *Session) mutationBlockedLocked(action string) bool {
	if s.closed {
		return true
	}
	view := lockViewFor(s.lockStatus, s.claimLocked())
	if !view.blocked() {
		return false
	}
	// UI components call mutations reflexively; log and no-op, never panic.
	s.logger.Warn("mutation rejected, edit lock held elsewhere",
		zap.String("operation", opMutate),
		zap.String("action", action),
		zap.String("holder", view.HolderName))
	return true
}

func (s *Session) setCursorLocked(position int) {
	s.cursor = cursorAt(clamp(position, 0, len(s.doc.Content)))
	s.cursorChangedLocked()
}

// markDirtyLocked flags the document, persists the crash-protection copy,
// and arms the debounced remote save.
func (s *Session) markDirtyLocked() {
	s.doc.Dirty = true
	s.writeCacheLocked()
	s.armRemoteSaveLocked()
}

// writeCacheLocked persists content, title, and author synchronously under
// the current document's namespaced keys (legacy global keys when the
// document has no id yet).
func (s *Session) writeCacheLocked() {
	id := s.doc.ID
	s.setCacheValue(cache.Key(cache.KindContent, id), s.doc.Content)
	s.setCacheValue(cache.Key(cache.KindTitle, id), s.doc.Title)
	s.setCacheValue(cache.Key(cache.KindAuthor, id), s.doc.Author)
}

func (s *Session) setCacheValue(key, value string) {
	if err := s.cacheStore.Set(key, value); err != nil {
		s.logWarn(opMutate, "cache_write_failed", err, zap.String("key", key))
	}
}

func (s *Session) clearCacheLocked(documentID string) {
	for _, kind := range []string{cache.KindContent, cache.KindTitle, cache.KindAuthor} {
		if err := s.cacheStore.Remove(cache.Key(kind, documentID)); err != nil {
			s.logWarn(opMutate, "cache_remove_failed", err, zap.String("kind", kind))
		}
	}
}

func (s *Session) sendExitFlushLocked() {
	if s.flusher == nil || !s.doc.Dirty || s.doc.Content == "" || s.doc.ID == "" {
		return
	}
	s.flusher.Send(docstore.FlushPayload{
		ID:      s.doc.ID,
		Title:   s.doc.Title,
		Author:  s.doc.Author,
		Content: s.doc.Content,
	})
}

func (s *Session) loadPreferencesLocked() {
	raw, ok := s.cacheStore.Get(cache.Key(cache.KindPreferences, s.userID))
	if !ok {
		return
	}
	var prefs Preferences
	if err := json.Unmarshal([]byte(raw), &prefs); err != nil {
		return
	}
	s.prefs = prefs
}

func (s *Session) storePreferencesLocked() {
	encoded, err := json.Marshal(s.prefs)
	if err != nil {
		return
	}
	s.setCacheValue(cache.Key(cache.KindPreferences, s.userID), string(encoded))
}

// resetIdentityLocked cancels every timer keyed to the old document and
// clears per-document state before a different identity loads.
func (s *Session) resetIdentityLocked() {
	previousID := s.doc.ID
	previousClaim := s.claimLocked()

	s.epoch++
	s.stopTimersLocked()
	s.bgCancel()
	s.bgCtx, s.bgCancel = context.WithCancel(context.Background())
	s.bgStarted = false

	if previousID != "" {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			_ = s.cursors.Clear(ctx, previousID, s.userID)
			_ = s.locks.Release(ctx, previousClaim)
		}()
	}

	s.doc = Document{}
	s.cursor = CursorState{}
	s.lastSynced = ""
	s.highlight = nil
	s.trackedVersionDoc = ""
	s.lockStatus = lock.Status{}
	s.undoStack = nil
	s.redoStack = nil
	s.pending = nil
	s.lastMutationCursor = 0
	s.contentAtArm = ""
	s.creating = false
	s.saveFailures = 0
	s.watchCollabs = false
	s.knownCollabs = nil
	s.lastBroadcast = CursorState{}
	s.broadcastCurrent = false
	s.heartbeatOn = false
	s.otherCursors = nil
}

func (s *Session) stopTimersLocked() {
	for _, timer := range []*time.Timer{s.undoTimer, s.saveTimer, s.cursorTimer} {
		if timer != nil {
			timer.Stop()
		}
	}
	s.undoTimer = nil
	s.saveTimer = nil
	s.cursorTimer = nil
}

func (s *Session) logWarn(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	s.logger.Warn("editor session warning", attrs...)
}

func (s *Session) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	s.logger.Error("editor session error", attrs...)
}
