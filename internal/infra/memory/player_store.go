package memory

import (
	"context"
	"sync"

	"github.com/digitarmedia-techteam/MintX-sub000/internal/domain"
)

// ExposureStore keeps exposure records in memory. Last write wins.
type ExposureStore struct {
	mu      sync.RWMutex
	records map[string]domain.ExposureRecord
}

func NewExposureStore() *ExposureStore {
	return &ExposureStore{records: make(map[string]domain.ExposureRecord)}
}

func (s *ExposureStore) LoadExposure(_ context.Context, userID string) (domain.ExposureRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneExposure(s.records[userID]), nil
}

func (s *ExposureStore) SaveExposure(_ context.Context, userID string, rec domain.ExposureRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[userID] = cloneExposure(rec)
	return nil
}

func cloneExposure(rec domain.ExposureRecord) domain.ExposureRecord {
	out := domain.ExposureRecord{AttemptCounter: rec.AttemptCounter}
	out.Correct = append(out.Correct, rec.Correct...)
	out.Wrong = append(out.Wrong, rec.Wrong...)
	return out
}

// ProgressStore keeps player progress in memory.
type ProgressStore struct {
	mu       sync.Mutex
	progress map[string]domain.PlayerProgress
}

func NewProgressStore() *ProgressStore {
	return &ProgressStore{progress: make(map[string]domain.PlayerProgress)}
}

func (s *ProgressStore) LoadProgress(_ context.Context, userID string) (domain.PlayerProgress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked(userID), nil
}

func (s *ProgressStore) UpdateProgress(_ context.Context, userID string, fn func(*domain.PlayerProgress)) (domain.PlayerProgress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.loadLocked(userID)
	fn(&p)
	p.Sanitize()
	s.progress[userID] = p
	return p, nil
}

func (s *ProgressStore) loadLocked(userID string) domain.PlayerProgress {
	p, ok := s.progress[userID]
	if !ok {
		p = domain.PlayerProgress{UserID: userID}
	}
	p.Sanitize()
	return p
}

// ActivityStore keeps per-day session counts in memory.
type ActivityStore struct {
	mu   sync.Mutex
	days map[string]map[string]int
}

func NewActivityStore() *ActivityStore {
	return &ActivityStore{days: make(map[string]map[string]int)}
}

func (s *ActivityStore) RecordActivity(_ context.Context, userID, day string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	counts, ok := s.days[userID]
	if !ok {
		counts = make(map[string]int)
		s.days[userID] = counts
	}
	counts[day]++
	return nil
}

func (s *ActivityStore) DailyCounts(_ context.Context, userID string) (map[string]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]int, len(s.days[userID]))
	for day, n := range s.days[userID] {
		out[day] = n
	}
	return out, nil
}
