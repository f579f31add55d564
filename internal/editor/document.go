package editor

import (
	"time"

	"github.com/fountainhead-app/fountainhead/internal/lock"
	"github.com/fountainhead-app/fountainhead/internal/presence"
)

// Document is the single editable entity the session owns while open.
// ID stays empty until the first successful remote create; Version is the
// last server-confirmed optimistic counter.
type Document struct {
	ID          string
	Title       string
	Author      string
	Content     string
	Version     int64
	LastSavedAt time.Time
	Dirty       bool
}

// CursorState tracks the local caret and selection. SelectionStart and
// SelectionEnd equal Position when nothing is selected.
type CursorState struct {
	Position       int
	SelectionStart int
	SelectionEnd   int
}

func cursorAt(position int) CursorState {
	return CursorState{Position: position, SelectionStart: position, SelectionEnd: position}
}

func clamp(value, low, high int) int {
	if value < low {
		return low
	}
	if value > high {
		return high
	}
	return value
}

// Snapshot is one undo/redo unit: the full content plus the caret that
// produced it.
type Snapshot struct {
	Content        string
	CursorPosition int
	Timestamp      time.Time
}

// HighlightRange marks a span the UI renders as "just inserted".
type HighlightRange struct {
	Start int
	End   int
}

// Preferences are the lightweight UI toggles persisted alongside content.
type Preferences struct {
	FocusMode       bool `json:"focus_mode"`
	ShowLineNumbers bool `json:"show_line_numbers"`
	FontSize        int  `json:"font_size"`
}

// LockView is the session's read of the advisory lock for its document.
type LockView struct {
	LockedByOtherDevice  bool
	LockedByCollaborator bool
	HolderName           string
}

func lockViewFor(status lock.Status, claim lock.Claim) LockView {
	view := LockView{
		LockedByOtherDevice:  status.HeldByOtherDevice(claim),
		LockedByCollaborator: status.HeldByCollaborator(claim),
	}
	if view.LockedByOtherDevice || view.LockedByCollaborator {
		view.HolderName = status.HolderName
	}
	return view
}

func (v LockView) blocked() bool {
	return v.LockedByOtherDevice || v.LockedByCollaborator
}

// State is the read-only snapshot exposed to the UI.
type State struct {
	Document          Document
	Cursor            CursorState
	LastSyncedContent string
	CanUndo           bool
	CanRedo           bool
	Lock              LockView
	Collaborators     []string
	OtherCursors      []presence.CursorRecord
	Highlight         *HighlightRange
	Preferences       Preferences
	SaveFailures      int
}

// HasUnsavedChanges reports whether in-memory content differs from the last
// confirmed remote persistence.
func (s State) HasUnsavedChanges() bool {
	return s.Document.Dirty
}
