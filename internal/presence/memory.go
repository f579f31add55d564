package presence

import (
	"context"
	"sort"
	"sync"
)

// MemoryService is an in-process cursor Service for tests and single-node use.
type MemoryService struct {
	mu      sync.RWMutex
	records map[string]map[string]CursorRecord
}

// NewMemoryService constructs an empty MemoryService.
func NewMemoryService() *MemoryService {
	return &MemoryService{records: make(map[string]map[string]CursorRecord)}
}

// Publish implements Service.
func (s *MemoryService) Publish(_ context.Context, documentID string, record CursorRecord) error {
	if documentID == "" || record.UserID == "" {
		return ErrInvalidRecord
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[documentID]; !ok {
		s.records[documentID] = make(map[string]CursorRecord)
	}
	s.records[documentID][record.UserID] = record
	return nil
}

// Clear implements Service.
func (s *MemoryService) Clear(_ context.Context, documentID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if byUser, ok := s.records[documentID]; ok {
		delete(byUser, userID)
		if len(byUser) == 0 {
			delete(s.records, documentID)
		}
	}
	return nil
}

// List implements Service.
func (s *MemoryService) List(_ context.Context, documentID string) ([]CursorRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	byUser := s.records[documentID]
	records := make([]CursorRecord, 0, len(byUser))
	for _, record := range byUser {
		records = append(records, record)
	}
	sort.Slice(records, func(i, j int) bool { return records[i].UserID < records[j].UserID })
	return records, nil
}
