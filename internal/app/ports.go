package app

import (
	"context"
	"time"

	"assessment-engine/internal/domain"
)

// BankRepository loads question banks (from cache/backing store).
type BankRepository interface {
	GetBank(ctx context.Context, bankID string) (domain.Bank, error)
}

// ActivationStore persists activation records.
type ActivationStore interface {
	Insert(ctx context.Context, a domain.Activation) error
	// ActiveAt returns activations of the bank with start_time <= at <= end_time.
	ActiveAt(ctx context.Context, bankID string, at time.Time) ([]domain.Activation, error)
	// EndActive sets end_time = at on every activation of the bank with
	// start_time <= at < end_time and returns how many were changed.
	EndActive(ctx context.Context, bankID string, at time.Time) (int, error)
	// ListByBank returns all activations of the bank; enabledBy filters by owner when non-empty.
	ListByBank(ctx context.Context, bankID, enabledBy string) ([]domain.Activation, error)
}

// ResultStore is the append-only record of completed attempts.
// CountAttempts must observe every committed Append immediately.
type ResultStore interface {
	CountAttempts(ctx context.Context, participantID, activationID string) (int, error)
	Append(ctx context.Context, r domain.Result) error
	ListByParticipant(ctx context.Context, participantID string) ([]domain.Result, error)
	ListByActivations(ctx context.Context, activationIDs []string) ([]domain.Result, error)
}

// SessionKey identifies the one live session per participant conversation.
type SessionKey struct {
	ParticipantID  string
	ConversationID string
}

func (k SessionKey) String() string {
	return k.ParticipantID + "/" + k.ConversationID
}

// SessionRepository abstracts how live sessions are stored (in-memory, Redis, etc).
type SessionRepository interface {
	// Put stores s under key, discarding any unfinished session already there.
	Put(ctx context.Context, key SessionKey, s *Session) error
	Get(ctx context.Context, key SessionKey) (*Session, error)
	// Update runs fn on the live session while holding the key exclusively.
	// Terminal sessions are deleted whatever fn returns; otherwise the
	// session is saved only when fn returns nil.
	Update(ctx context.Context, key SessionKey, fn func(*Session) error) error
	Delete(ctx context.Context, key SessionKey) error
	// Finished returns the tag of the last session under key that reached a
	// terminal state through Update. Put and Delete clear it; "" means none.
	Finished(ctx context.Context, key SessionKey) (string, error)
}

// StartGuard hands out short-lived leases so concurrent starts for the same
// participant and activation do not both run.
type StartGuard interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(), err error)
}

// EventPublisher emits best-effort domain events.
type EventPublisher interface {
	Publish(ctx context.Context, eventType string, payload any) error
}

// Observer receives counters about the engine. Implementations must be cheap.
type Observer interface {
	SessionStarted(bankID string)
	SessionCompleted(bankID string, saved bool)
	SessionCancelled(bankID string)
	StartRejected(reason string)
	ActivationCreated(bankID string)
	ActivationsEnded(bankID string, n int)
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, string, any) error { return nil }

type nopObserver struct{}

func (nopObserver) SessionStarted(string)         {}
func (nopObserver) SessionCompleted(string, bool) {}
func (nopObserver) SessionCancelled(string)       {}
func (nopObserver) StartRejected(string)          {}
func (nopObserver) ActivationCreated(string)      {}
func (nopObserver) ActivationsEnded(string, int)  {}

// Event types published by the engine and registry.
const (
	EventActivationCreated     = "activation.created"
	EventActivationDeactivated = "activation.deactivated"
	EventResultRecorded        = "result.recorded"
	EventSessionCancelled      = "session.cancelled"
)
