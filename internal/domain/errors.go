package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a bank, activation or session is absent.
	ErrNotFound = errors.New("not found")
	// ErrInvalidArgument covers malformed windows and non-positive counts.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrAttemptsExhausted is returned when the try limit of an activation is reached.
	ErrAttemptsExhausted = errors.New("attempts exhausted")
	// ErrPersistenceFailure wraps store read/write errors.
	ErrPersistenceFailure = errors.New("persistence failure")
	// ErrInvalidTransition is returned for answers out of sequence or with a bad token.
	ErrInvalidTransition = errors.New("invalid transition")
	// ErrForbidden is returned when the actor lacks the capability for a command.
	ErrForbidden = errors.New("forbidden")
)

var (
	// ErrNotActive means no activation of the bank is open right now.
	ErrNotActive = fmt.Errorf("no open activation: %w", ErrNotFound)
	// ErrBankNotFound indicates the bank could not be loaded.
	ErrBankNotFound = fmt.Errorf("bank %w", ErrNotFound)
	// ErrBankEmpty indicates the bank holds no questions.
	ErrBankEmpty = fmt.Errorf("bank has no questions: %w", ErrNotFound)
	// ErrSessionNotFound is returned when no live session exists for the key.
	ErrSessionNotFound = fmt.Errorf("no live session: %w", ErrInvalidTransition)
	// ErrSessionBusy is returned when another update holds the session.
	ErrSessionBusy = fmt.Errorf("session busy: %w", ErrInvalidTransition)
	// ErrStartInProgress is returned when a concurrent Start holds the lease.
	ErrStartInProgress = fmt.Errorf("start already in progress: %w", ErrInvalidTransition)
)

// InvalidArgument builds an ErrInvalidArgument with detail.
func InvalidArgument(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}

// InvalidTransition builds an ErrInvalidTransition with detail.
func InvalidTransition(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidTransition, fmt.Sprintf(format, args...))
}

// Persistence wraps a store error as ErrPersistenceFailure. Nil stays nil.
func Persistence(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %s: %w", ErrPersistenceFailure, op, err)
}

// Code maps an error to a stable wire code.
func Code(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotActive):
		return "NOT_ACTIVE"
	case errors.Is(err, ErrPersistenceFailure):
		return "PERSISTENCE_FAILURE"
	case errors.Is(err, ErrNotFound):
		return "NOT_FOUND"
	case errors.Is(err, ErrInvalidArgument):
		return "INVALID_ARGUMENT"
	case errors.Is(err, ErrAttemptsExhausted):
		return "ATTEMPTS_EXHAUSTED"
	case errors.Is(err, ErrInvalidTransition):
		return "INVALID_TRANSITION"
	case errors.Is(err, ErrForbidden):
		return "FORBIDDEN"
	default:
		return "INTERNAL"
	}
}
