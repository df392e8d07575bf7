package app

import (
	"context"
	"errors"
	"fmt"

	"assessment-engine/internal/domain"
)

// AnswerOutcome describes what a single answer did.
// Exactly one of Next and Final is set unless Ignored is true.
type AnswerOutcome struct {
	Ignored bool
	Correct bool
	Next    *domain.QuestionPrompt
	Final   *domain.FinalScore
}

// Engine runs the quiz session state machine.
type Engine struct {
	registry *Registry
	banks    BankRepository
	results  ResultStore
	sessions SessionRepository
	opts     options
}

func NewEngine(registry *Registry, banks BankRepository, results ResultStore, sessions SessionRepository, opts ...Option) *Engine {
	o := buildOptions(opts)
	o.log = o.log.With().Str("component", "session_engine").Logger()
	return &Engine{
		registry: registry,
		banks:    banks,
		results:  results,
		sessions: sessions,
		opts:     o,
	}
}

// Start opens a new attempt for the participant on the bank's active
// activation and returns the first question. Any unfinished session under
// the same key is discarded without being scored.
func (e *Engine) Start(ctx context.Context, key SessionKey, bankID string) (domain.QuestionPrompt, error) {
	activation, err := e.registry.FindActiveForStart(ctx, bankID)
	if err != nil {
		if errors.Is(err, domain.ErrNotActive) {
			e.opts.observer.StartRejected("not_active")
		}
		return domain.QuestionPrompt{}, err
	}

	release, err := e.opts.guard.Acquire(ctx, key.ParticipantID+":"+activation.ID, e.opts.leaseTTL)
	if err != nil {
		e.opts.observer.StartRejected("in_progress")
		return domain.QuestionPrompt{}, err
	}
	defer release()

	used, err := e.results.CountAttempts(ctx, key.ParticipantID, activation.ID)
	if err != nil {
		return domain.QuestionPrompt{}, domain.Persistence("count attempts", err)
	}
	if used >= activation.MaxTries {
		e.opts.observer.StartRejected("attempts_exhausted")
		e.opts.log.Info().
			Str("participant_id", key.ParticipantID).
			Str("activation_id", activation.ID).
			Int("max_tries", activation.MaxTries).
			Msg("try limit reached")
		return domain.QuestionPrompt{}, fmt.Errorf("%w: %d of %d tries used", domain.ErrAttemptsExhausted, used, activation.MaxTries)
	}

	bank, err := e.banks.GetBank(ctx, activation.BankID)
	if err != nil {
		return domain.QuestionPrompt{}, bankError(err)
	}
	if len(bank.Questions) == 0 {
		return domain.QuestionPrompt{}, fmt.Errorf("bank %q: %w", bank.ID, domain.ErrBankEmpty)
	}

	picked := e.opts.random.Sample(len(bank.Questions), activation.QuestionsPerAttempt)
	e.opts.random.Shuffle(picked)
	questions := make([]SessionQuestion, 0, len(picked))
	for _, idx := range picked {
		questions = append(questions, SessionQuestion{BankIndex: idx, Question: bank.Questions[idx]})
	}

	attempt := used + 1
	session, err := NewSession(e.opts.newID(), key.ParticipantID, activation, questions, attempt, e.opts.now())
	if err != nil {
		return domain.QuestionPrompt{}, err
	}
	if err := e.sessions.Put(ctx, key, session); err != nil {
		return domain.QuestionPrompt{}, domain.Persistence("store session", err)
	}

	e.opts.log.Info().
		Str("participant_id", key.ParticipantID).
		Str("bank_id", activation.BankID).
		Str("activation_id", activation.ID).
		Int("attempt", attempt).
		Int("max_tries", activation.MaxTries).
		Int("questions", len(questions)).
		Msg("session started")
	e.opts.observer.SessionStarted(activation.BankID)

	return session.Prompt(e.opts.random.Perm)
}

// Answer applies one answer token to the live session.
// On ErrPersistenceFailure the outcome still carries the final score with
// Saved=false; the session is discarded either way and never retried.
// A token re-sent after its session finished is Ignored.
func (e *Engine) Answer(ctx context.Context, key SessionKey, token string) (AnswerOutcome, error) {
	var (
		out       AnswerOutcome
		result    domain.Result
		completed bool
	)
	err := e.sessions.Update(ctx, key, func(s *Session) error {
		position := s.CurrentIndex
		applied, correct, err := s.Apply(token)
		if err != nil {
			return err
		}
		if !applied {
			out.Ignored = true
			return nil
		}
		out.Correct = correct
		e.opts.log.Debug().
			Str("participant_id", key.ParticipantID).
			Str("session", s.Tag()).
			Int("position", position+1).
			Bool("correct", correct).
			Msg("answer recorded")

		if s.State != domain.StateScoring {
			next, err := s.Prompt(e.opts.random.Perm)
			if err != nil {
				return err
			}
			out.Next = &next
			return nil
		}

		result, err = s.Complete(e.opts.now())
		if err != nil {
			return err
		}
		completed = true
		out.Final = &domain.FinalScore{
			BankID:  result.BankID,
			Correct: result.CorrectCount,
			Total:   result.TotalQuestions,
			Percent: result.ScorePercent,
			Saved:   true,
		}
		if err := e.results.Append(ctx, result); err != nil {
			out.Final.Saved = false
			return domain.Persistence("append result", err)
		}
		return nil
	})

	if errors.Is(err, domain.ErrSessionNotFound) && e.finishedToken(ctx, key, token) {
		return AnswerOutcome{Ignored: true}, nil
	}
	if completed {
		e.finish(ctx, key, result, out.Final.Saved, err)
	}
	return out, err
}

// finishedToken reports whether token belongs to the session that last
// finished under key.
func (e *Engine) finishedToken(ctx context.Context, key SessionKey, token string) bool {
	tag, _, _, err := ParseToken(token)
	if err != nil {
		return false
	}
	last, err := e.sessions.Finished(ctx, key)
	if err != nil {
		e.opts.log.Warn().Err(err).Str("participant_id", key.ParticipantID).Msg("finished session lookup failed")
		return false
	}
	return last != "" && last == tag
}

func (e *Engine) finish(ctx context.Context, key SessionKey, result domain.Result, saved bool, err error) {
	e.opts.observer.SessionCompleted(result.BankID, saved)
	if !saved {
		e.opts.log.Error().Err(err).
			Str("participant_id", key.ParticipantID).
			Str("activation_id", result.ActivationID).
			Int("attempt", result.AttemptNumber).
			Msg("session completed but result not saved")
		return
	}
	e.opts.log.Info().
		Str("participant_id", key.ParticipantID).
		Str("bank_id", result.BankID).
		Str("activation_id", result.ActivationID).
		Int("attempt", result.AttemptNumber).
		Int("correct", result.CorrectCount).
		Int("total", result.TotalQuestions).
		Str("percent", FormatPercent(result.ScorePercent)).
		Msg("session completed")
	if perr := e.opts.events.Publish(ctx, EventResultRecorded, result); perr != nil {
		e.opts.log.Warn().Err(perr).Str("event", EventResultRecorded).Msg("publish event failed")
	}
}

// Cancel abandons the live session. No result is written and no try is used.
func (e *Engine) Cancel(ctx context.Context, key SessionKey) error {
	var s Session
	err := e.sessions.Update(ctx, key, func(live *Session) error {
		if err := live.Cancel(); err != nil {
			return err
		}
		s = *live
		return nil
	})
	if err != nil {
		return err
	}

	e.opts.log.Warn().
		Str("participant_id", key.ParticipantID).
		Str("bank_id", s.BankID).
		Int("answered", s.CurrentIndex).
		Int("total", len(s.Questions)).
		Msg("session cancelled")
	e.opts.observer.SessionCancelled(s.BankID)
	if perr := e.opts.events.Publish(ctx, EventSessionCancelled, map[string]any{
		"participant_id": key.ParticipantID,
		"activation_id":  s.ActivationID,
		"bank_id":        s.BankID,
		"answered":       s.CurrentIndex,
	}); perr != nil {
		e.opts.log.Warn().Err(perr).Str("event", EventSessionCancelled).Msg("publish event failed")
	}
	return nil
}

// Current re-emits the question awaiting an answer with a fresh option order.
func (e *Engine) Current(ctx context.Context, key SessionKey) (domain.QuestionPrompt, error) {
	s, err := e.sessions.Get(ctx, key)
	if err != nil {
		return domain.QuestionPrompt{}, err
	}
	return s.Prompt(e.opts.random.Perm)
}
