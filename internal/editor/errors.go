package editor

import (
	"errors"
	"fmt"
)

var (
	// ErrLockHeld indicates another device or collaborator holds the edit lock.
	ErrLockHeld = errors.New("editor: edit lock held elsewhere")
	// ErrNoContent indicates a save was requested for an empty, unsaved document.
	ErrNoContent = errors.New("editor: nothing to save")
)

// SessionError wraps a failure with a dotted operation code for logging and
// user-facing classification.
type SessionError struct {
	code string
	err  error
}

func (e *SessionError) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *SessionError) Unwrap() error {
	return e.err
}

// Code returns the dotted operation code.
func (e *SessionError) Code() string {
	return e.code
}

const (
	opSessionNew  = "editor.session.new"
	opLoad        = "editor.load"
	opSaveNow     = "editor.save_now"
	opUndo        = "editor.undo"
	opRedo        = "editor.redo"
	opMutate      = "editor.mutate"
	opCursorSync  = "editor.cursor_sync"
	opRemoteWatch = "editor.remote_watch"
	opTeardown    = "editor.teardown"
)

func newSessionError(operation, reason string, cause error) error {
	code := fmt.Sprintf("%s.%s", operation, reason)
	return &SessionError{code: code, err: cause}
}
