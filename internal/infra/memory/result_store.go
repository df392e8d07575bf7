package memory

import (
	"context"
	"sync"

	"assessment-engine/internal/domain"
)

// ResultStore is an append-only in-memory result log.
type ResultStore struct {
	mu      sync.RWMutex
	results []domain.Result
}

func NewResultStore() *ResultStore {
	return &ResultStore{}
}

func (s *ResultStore) CountAttempts(_ context.Context, participantID, activationID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, r := range s.results {
		if r.ParticipantID == participantID && r.ActivationID == activationID {
			n++
		}
	}
	return n, nil
}

func (s *ResultStore) Append(_ context.Context, r domain.Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r.Answers = append([]domain.Answer(nil), r.Answers...)
	s.results = append(s.results, r)
	return nil
}

func (s *ResultStore) ListByParticipant(_ context.Context, participantID string) ([]domain.Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Result
	for _, r := range s.results {
		if r.ParticipantID == participantID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *ResultStore) ListByActivations(_ context.Context, activationIDs []string) ([]domain.Result, error) {
	wanted := make(map[string]struct{}, len(activationIDs))
	for _, id := range activationIDs {
		wanted[id] = struct{}{}
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Result
	for _, r := range s.results {
		if _, ok := wanted[r.ActivationID]; ok {
			out = append(out, r)
		}
	}
	return out, nil
}
