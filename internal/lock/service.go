package lock

import (
	"context"
	"errors"
	"time"
)

// DefaultTTL is how long a lock survives without a heartbeat.
const DefaultTTL = 90 * time.Second

// ErrInvalidClaim indicates a claim missing its document, user, or device.
var ErrInvalidClaim = errors.New("lock: claim requires document, user, and device")

// Claim identifies the device asking for editing rights on a document.
type Claim struct {
	DocumentID  string
	UserID      string
	DeviceID    string
	DisplayName string
}

func (c Claim) validate() error {
	if c.DocumentID == "" || c.UserID == "" || c.DeviceID == "" {
		return ErrInvalidClaim
	}
	return nil
}

// Status describes the current holder of a document's edit lock.
type Status struct {
	Held           bool
	HolderUserID   string
	HolderDeviceID string
	HolderName     string
}

// HeldByOtherDevice reports whether the same user holds the lock elsewhere.
func (s Status) HeldByOtherDevice(claim Claim) bool {
	return s.Held && s.HolderUserID == claim.UserID && s.HolderDeviceID != claim.DeviceID
}

// HeldByCollaborator reports whether a different user holds the lock.
func (s Status) HeldByCollaborator(claim Claim) bool {
	return s.Held && s.HolderUserID != claim.UserID
}

// HeldBySelf reports whether this exact device holds the lock.
func (s Status) HeldBySelf(claim Claim) bool {
	return s.Held && s.HolderUserID == claim.UserID && s.HolderDeviceID == claim.DeviceID
}

// Service is the soft advisory lock the editor consults before persisting.
// It is heartbeat-renewed and expires on its own; it is not transactional.
type Service interface {
	// Acquire grants the lock when it is free, expired, or already held by
	// the claiming device. It returns the resulting status either way.
	Acquire(ctx context.Context, claim Claim) (Status, error)
	// Heartbeat extends the lock while the claiming device still holds it.
	Heartbeat(ctx context.Context, claim Claim) error
	// Release drops the lock when held by the claiming device.
	Release(ctx context.Context, claim Claim) error
	// Status reports the current holder without mutating anything.
	Status(ctx context.Context, documentID string) (Status, error)
}
