package lock

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	claim     Claim
	expiresAt time.Time
}

// MemoryService is an in-process lock Service for tests and single-node use.
type MemoryService struct {
	mu    sync.Mutex
	locks map[string]memoryEntry
	ttl   time.Duration
	clock func() time.Time
}

// MemoryServiceConfig configures the in-memory lock service.
type MemoryServiceConfig struct {
	TTL   time.Duration
	Clock func() time.Time
}

// NewMemoryService constructs a MemoryService with sane defaults.
func NewMemoryService(cfg MemoryServiceConfig) *MemoryService {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &MemoryService{
		locks: make(map[string]memoryEntry),
		ttl:   ttl,
		clock: clock,
	}
}

// Acquire implements Service.
func (s *MemoryService) Acquire(_ context.Context, claim Claim) (Status, error) {
	if err := claim.validate(); err != nil {
		return Status{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock()
	entry, ok := s.locks[claim.DocumentID]
	if ok && now.Before(entry.expiresAt) && !sameDevice(entry.claim, claim) {
		return statusFor(entry.claim), nil
	}

	s.locks[claim.DocumentID] = memoryEntry{claim: claim, expiresAt: now.Add(s.ttl)}
	return statusFor(claim), nil
}

// Heartbeat implements Service.
func (s *MemoryService) Heartbeat(_ context.Context, claim Claim) error {
	if err := claim.validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.locks[claim.DocumentID]
	if !ok || !sameDevice(entry.claim, claim) {
		return nil
	}
	entry.expiresAt = s.clock().Add(s.ttl)
	s.locks[claim.DocumentID] = entry
	return nil
}

// Release implements Service.
func (s *MemoryService) Release(_ context.Context, claim Claim) error {
	if err := claim.validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.locks[claim.DocumentID]
	if ok && sameDevice(entry.claim, claim) {
		delete(s.locks, claim.DocumentID)
	}
	return nil
}

// Status implements Service.
func (s *MemoryService) Status(_ context.Context, documentID string) (Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.locks[documentID]
	if !ok || !s.clock().Before(entry.expiresAt) {
		return Status{}, nil
	}
	return statusFor(entry.claim), nil
}

func sameDevice(a, b Claim) bool {
	return a.UserID == b.UserID && a.DeviceID == b.DeviceID
}

func statusFor(claim Claim) Status {
	return Status{
		Held:           true,
		HolderUserID:   claim.UserID,
		HolderDeviceID: claim.DeviceID,
		HolderName:     claim.DisplayName,
	}
}
