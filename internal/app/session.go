package app

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"assessment-engine/internal/domain"
)

const tagLength = 8

// SessionQuestion is a sampled question with its index in the bank retained for audit.
type SessionQuestion struct {
	BankIndex int             `json:"bank_index"`
	Question  domain.Question `json:"question"`
}

// Session is the in-progress state of one participant's attempt.
// Fields are exported so external session stores can serialise it.
type Session struct {
	ID            string              `json:"id"`
	ParticipantID string              `json:"participant_id"`
	ActivationID  string              `json:"activation_id"`
	BankID        string              `json:"bank_id"`
	Questions     []SessionQuestion   `json:"questions"`
	CurrentIndex  int                 `json:"current_index"`
	CorrectCount  int                 `json:"correct_count"`
	Answers       []domain.Answer     `json:"answers"`
	AttemptNumber int                 `json:"attempt_number"`
	StartedAt     time.Time           `json:"started_at"`
	State         domain.SessionState `json:"state"`
}

// NewSession builds a session and moves it to AwaitingAnswer.
// It is exported for infrastructure layers and tests that need to seed sessions.
func NewSession(id, participantID string, activation domain.Activation, questions []SessionQuestion, attempt int, startedAt time.Time) (*Session, error) {
	s := &Session{
		ID:            id,
		ParticipantID: participantID,
		ActivationID:  activation.ID,
		BankID:        activation.BankID,
		Questions:     questions,
		Answers:       make([]domain.Answer, 0, len(questions)),
		AttemptNumber: attempt,
		StartedAt:     startedAt,
		State:         domain.StateNotStarted,
	}
	if err := s.begin(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Session) begin() error {
	if s.State != domain.StateNotStarted {
		return domain.InvalidTransition("begin from %s", s.State)
	}
	if len(s.Questions) == 0 {
		return domain.InvalidArgument("session needs at least one question")
	}
	s.State = domain.StateAwaitingAnswer
	return nil
}

// Tag is the short session marker embedded in answer tokens.
func (s *Session) Tag() string {
	if len(s.ID) <= tagLength {
		return s.ID
	}
	return s.ID[:tagLength]
}

// Prompt renders the current question. perm must return a permutation of
// [0, n); it is called on every emission so the display order changes each time.
// Tokens always carry the original option index.
func (s *Session) Prompt(perm func(n int) []int) (domain.QuestionPrompt, error) {
	if s.State != domain.StateAwaitingAnswer {
		return domain.QuestionPrompt{}, domain.InvalidTransition("no question to show in state %s", s.State)
	}
	q := s.Questions[s.CurrentIndex].Question
	order := perm(len(q.Options))
	options := make([]domain.PromptOption, 0, len(order))
	for _, original := range order {
		options = append(options, domain.PromptOption{
			Text:  q.Options[original],
			Token: FormatToken(s.Tag(), s.CurrentIndex, original),
		})
	}
	return domain.QuestionPrompt{
		BankID:        s.BankID,
		AttemptNumber: s.AttemptNumber,
		Position:      s.CurrentIndex + 1,
		Total:         len(s.Questions),
		Text:          q.Text,
		Options:       options,
	}, nil
}

// Apply records the answer carried by token.
// A token for a different session or another position is a stale delivery:
// applied is false and nothing changes. Malformed tokens and out-of-range
// options return ErrInvalidTransition without advancing.
func (s *Session) Apply(token string) (applied, correct bool, err error) {
	tag, position, option, err := ParseToken(token)
	if err != nil {
		return false, false, err
	}
	if s.State != domain.StateAwaitingAnswer {
		return false, false, domain.InvalidTransition("answer in state %s", s.State)
	}
	if tag != s.Tag() || position != s.CurrentIndex {
		return false, false, nil
	}

	current := s.Questions[s.CurrentIndex]
	if option < 0 || option >= len(current.Question.Options) {
		return false, false, domain.InvalidTransition("option %d out of range for question %d", option, position+1)
	}

	correct = option == current.Question.CorrectOption
	s.Answers = append(s.Answers, domain.Answer{
		BankIndex:    current.BankIndex,
		ChosenOption: option,
		Correct:      correct,
	})
	if correct {
		s.CorrectCount++
	}
	s.CurrentIndex++
	if s.CurrentIndex == len(s.Questions) {
		s.State = domain.StateScoring
	}
	return true, correct, nil
}

// Complete moves a scoring session to Completed and returns its Result.
func (s *Session) Complete(completedAt time.Time) (domain.Result, error) {
	if s.State != domain.StateScoring {
		return domain.Result{}, domain.InvalidTransition("complete from %s", s.State)
	}
	s.State = domain.StateCompleted
	total := len(s.Questions)
	return domain.Result{
		ParticipantID:  s.ParticipantID,
		ActivationID:   s.ActivationID,
		BankID:         s.BankID,
		AttemptNumber:  s.AttemptNumber,
		CorrectCount:   s.CorrectCount,
		TotalQuestions: total,
		ScorePercent:   ScorePercent(s.CorrectCount, total),
		Answers:        append([]domain.Answer(nil), s.Answers...),
		StartedAt:      s.StartedAt,
		CompletedAt:    completedAt,
	}, nil
}

// Cancel abandons the attempt. Valid only while awaiting an answer.
func (s *Session) Cancel() error {
	if s.State != domain.StateAwaitingAnswer {
		return domain.InvalidTransition("cancel from %s", s.State)
	}
	s.State = domain.StateCancelled
	return nil
}

// FormatToken encodes an answer token as tag:position:option.
func FormatToken(tag string, position, option int) string {
	return tag + ":" + strconv.Itoa(position) + ":" + strconv.Itoa(option)
}

// ParseToken decodes a token produced by FormatToken.
func ParseToken(token string) (tag string, position, option int, err error) {
	parts := strings.Split(strings.TrimSpace(token), ":")
	if len(parts) != 3 || parts[0] == "" {
		return "", 0, 0, domain.InvalidTransition("malformed answer token %q", token)
	}
	position, perr := strconv.Atoi(parts[1])
	option, oerr := strconv.Atoi(parts[2])
	if perr != nil || oerr != nil || position < 0 {
		return "", 0, 0, domain.InvalidTransition("malformed answer token %q", token)
	}
	return parts[0], position, option, nil
}

func (s *Session) String() string {
	return fmt.Sprintf("session %s (%s, %d/%d)", s.Tag(), s.State, s.CurrentIndex, len(s.Questions))
}

// Clone returns a copy that can be mutated without affecting s.
func (s *Session) Clone() *Session {
	cp := *s
	cp.Questions = append([]SessionQuestion(nil), s.Questions...)
	cp.Answers = append(make([]domain.Answer, 0, len(s.Questions)), s.Answers...)
	return &cp
}
