package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"assessment-engine/internal/domain"
)

// ActivationStore keeps activations in memory. EndActive is a conditional
// update under one lock, so concurrent deactivations never double count.
type ActivationStore struct {
	mu          sync.RWMutex
	activations map[string]domain.Activation
}

func NewActivationStore() *ActivationStore {
	return &ActivationStore{activations: make(map[string]domain.Activation)}
}

func (s *ActivationStore) Insert(_ context.Context, a domain.Activation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.activations[a.ID]; exists {
		return fmt.Errorf("activation %s already exists", a.ID)
	}
	s.activations[a.ID] = a
	return nil
}

func (s *ActivationStore) ActiveAt(_ context.Context, bankID string, at time.Time) ([]domain.Activation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Activation
	for _, a := range s.activations {
		if a.BankID == bankID && a.ActiveAt(at) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *ActivationStore) EndActive(_ context.Context, bankID string, at time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, a := range s.activations {
		if a.BankID == bankID && !a.StartTime.After(at) && a.EndTime.After(at) {
			a.EndTime = at
			s.activations[id] = a
			n++
		}
	}
	return n, nil
}

func (s *ActivationStore) ListByBank(_ context.Context, bankID, enabledBy string) ([]domain.Activation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Activation
	for _, a := range s.activations {
		if a.BankID != bankID {
			continue
		}
		if enabledBy != "" && a.EnabledBy != enabledBy {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}
