package app

import (
	"context"
	"sort"

	"assessment-engine/internal/domain"
)

// Reports reads persisted results, scoped by participant or by activation ownership.
type Reports struct {
	activations ActivationStore
	results     ResultStore
}

func NewReports(activations ActivationStore, results ResultStore) *Reports {
	return &Reports{activations: activations, results: results}
}

// Own returns the participant's results, newest first.
func (r *Reports) Own(ctx context.Context, participantID string) ([]domain.Result, error) {
	results, err := r.results.ListByParticipant(ctx, participantID)
	if err != nil {
		return nil, domain.Persistence("list results", err)
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].CompletedAt.After(results[j].CompletedAt)
	})
	return results, nil
}

// ForBank returns results of the bank's activations visible to the requester:
// admins see every activation, operators only those they enabled.
func (r *Reports) ForBank(ctx context.Context, bankID, requester string, role domain.Role) ([]domain.Result, error) {
	if !role.Can(domain.CapOperator) {
		return nil, domain.ErrForbidden
	}
	owner := requester
	if role == domain.RoleAdmin {
		owner = ""
	}
	activations, err := r.activations.ListByBank(ctx, bankID, owner)
	if err != nil {
		return nil, domain.Persistence("list activations", err)
	}
	if len(activations) == 0 {
		return nil, nil
	}
	ids := make([]string, 0, len(activations))
	for _, a := range activations {
		ids = append(ids, a.ID)
	}

	results, err := r.results.ListByActivations(ctx, ids)
	if err != nil {
		return nil, domain.Persistence("list results", err)
	}
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].ParticipantID != results[j].ParticipantID {
			return results[i].ParticipantID < results[j].ParticipantID
		}
		return results[i].CompletedAt.Before(results[j].CompletedAt)
	})
	return results, nil
}
