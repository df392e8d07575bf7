package app

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"assessment-engine/internal/domain"
)

// ActivateRequest describes a new activation window for a bank.
type ActivateRequest struct {
	BankID              string
	EnabledBy           string
	QuestionsPerAttempt int
	MaxTries            int
	Window              domain.Window
}

// ActivationReceipt is returned by Activate. Warnings are informational only.
type ActivationReceipt struct {
	Activation domain.Activation
	BankSize   int
	Warnings   []string
}

// Registry creates, queries and deactivates activations.
type Registry struct {
	activations ActivationStore
	banks       BankRepository
	opts        options
}

func NewRegistry(activations ActivationStore, banks BankRepository, opts ...Option) *Registry {
	o := buildOptions(opts)
	o.log = o.log.With().Str("component", "activation_registry").Logger()
	return &Registry{activations: activations, banks: banks, opts: o}
}

// Activate opens a new window for the bank. questions_per_attempt larger than
// the bank is clamped to the bank size and reported as a warning.
func (r *Registry) Activate(ctx context.Context, req ActivateRequest) (ActivationReceipt, error) {
	if req.BankID == "" {
		return ActivationReceipt{}, domain.InvalidArgument("bank id is required")
	}
	if req.EnabledBy == "" {
		return ActivationReceipt{}, domain.InvalidArgument("operator identity is required")
	}
	if req.QuestionsPerAttempt <= 0 {
		return ActivationReceipt{}, domain.InvalidArgument("questions per attempt must be positive, got %d", req.QuestionsPerAttempt)
	}
	if req.MaxTries <= 0 {
		return ActivationReceipt{}, domain.InvalidArgument("max tries must be positive, got %d", req.MaxTries)
	}

	now := r.opts.now()
	start, end, err := req.Window.Resolve(now)
	if err != nil {
		return ActivationReceipt{}, err
	}

	bank, err := r.banks.GetBank(ctx, req.BankID)
	if err != nil {
		return ActivationReceipt{}, bankError(err)
	}
	size := len(bank.Questions)
	if size == 0 {
		return ActivationReceipt{}, domain.InvalidArgument("bank %q has no questions", req.BankID)
	}

	receipt := ActivationReceipt{BankSize: size}
	perAttempt := req.QuestionsPerAttempt
	if perAttempt > size {
		r.opts.log.Warn().
			Str("bank_id", req.BankID).
			Int("requested", perAttempt).
			Int("available", size).
			Msg("questions per attempt clamped to bank size")
		receipt.Warnings = append(receipt.Warnings,
			fmt.Sprintf("bank %q has only %d questions; all of them will be used", req.BankID, size))
		perAttempt = size
	}

	activation := domain.Activation{
		ID:                  r.opts.newID(),
		BankID:              req.BankID,
		EnabledBy:           req.EnabledBy,
		StartTime:           start,
		EndTime:             end,
		QuestionsPerAttempt: perAttempt,
		MaxTries:            req.MaxTries,
		CreatedAt:           now,
	}
	if err := r.activations.Insert(ctx, activation); err != nil {
		return ActivationReceipt{}, domain.Persistence("insert activation", err)
	}
	receipt.Activation = activation

	r.opts.log.Info().
		Str("bank_id", activation.BankID).
		Str("activation_id", activation.ID).
		Str("enabled_by", activation.EnabledBy).
		Time("start", activation.StartTime).
		Time("end", activation.EndTime).
		Int("questions", activation.QuestionsPerAttempt).
		Int("max_tries", activation.MaxTries).
		Msg("activation created")
	r.opts.observer.ActivationCreated(activation.BankID)
	r.publish(ctx, EventActivationCreated, activation)

	return receipt, nil
}

// Status returns the activations of the bank that are active right now,
// newest first. An empty result is not an error.
func (r *Registry) Status(ctx context.Context, bankID string) ([]domain.Activation, error) {
	active, err := r.activeNow(ctx, bankID)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(active, func(i, j int) bool {
		if !active[i].StartTime.Equal(active[j].StartTime) {
			return active[i].StartTime.After(active[j].StartTime)
		}
		return active[i].CreatedAt.After(active[j].CreatedAt)
	})
	return active, nil
}

// Deactivate pulls end_time to now for every currently active activation of
// the bank and returns how many were affected. Sessions already running are
// allowed to finish.
func (r *Registry) Deactivate(ctx context.Context, bankID, requestedBy string) (int, error) {
	if bankID == "" {
		return 0, domain.InvalidArgument("bank id is required")
	}
	now := r.opts.now()
	n, err := r.activations.EndActive(ctx, bankID, now)
	if err != nil {
		return 0, domain.Persistence("end activations", err)
	}

	r.opts.log.Info().
		Str("bank_id", bankID).
		Str("requested_by", requestedBy).
		Int("affected", n).
		Msg("deactivate requested")
	if n > 0 {
		r.opts.observer.ActivationsEnded(bankID, n)
		r.publish(ctx, EventActivationDeactivated, map[string]any{
			"bank_id":      bankID,
			"requested_by": requestedBy,
			"affected":     n,
			"ended_at":     now,
		})
	}
	return n, nil
}

// FindActiveForStart picks the most recently created active activation.
func (r *Registry) FindActiveForStart(ctx context.Context, bankID string) (domain.Activation, error) {
	active, err := r.activeNow(ctx, bankID)
	if err != nil {
		return domain.Activation{}, err
	}
	if len(active) == 0 {
		return domain.Activation{}, fmt.Errorf("bank %q: %w", bankID, domain.ErrNotActive)
	}
	best := active[0]
	for _, a := range active[1:] {
		if a.CreatedAt.After(best.CreatedAt) {
			best = a
		}
	}
	return best, nil
}

func (r *Registry) activeNow(ctx context.Context, bankID string) ([]domain.Activation, error) {
	now := r.opts.now()
	found, err := r.activations.ActiveAt(ctx, bankID, now)
	if err != nil {
		return nil, domain.Persistence("query activations", err)
	}
	active := found[:0]
	for _, a := range found {
		if a.ActiveAt(now) {
			active = append(active, a)
		}
	}
	return active, nil
}

func (r *Registry) publish(ctx context.Context, eventType string, payload any) {
	if err := r.opts.events.Publish(ctx, eventType, payload); err != nil {
		r.opts.log.Warn().Err(err).Str("event", eventType).Msg("publish event failed")
	}
}

// bankError keeps NotFound classification and wraps anything else as a store failure.
func bankError(err error) error {
	if errors.Is(err, domain.ErrNotFound) {
		return err
	}
	return domain.Persistence("load bank", err)
}
