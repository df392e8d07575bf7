package domain

import (
	"regexp"
	"strings"
	"time"
)

// Question is a single-choice question. CorrectOption indexes Options in bank order.
type Question struct {
	Text          string   `json:"text" yaml:"text" bson:"text"`
	Options       []string `json:"options" yaml:"options" bson:"options"`
	CorrectOption int      `json:"correct_option_index" yaml:"correct_option_index" bson:"correct_option_index"`
}

// Valid reports whether the correct option index points into Options.
func (q Question) Valid() bool {
	return len(q.Options) > 0 && q.CorrectOption >= 0 && q.CorrectOption < len(q.Options)
}

// Bank is an immutable, ordered collection of questions.
type Bank struct {
	ID        string     `json:"bank_id" yaml:"bank_id" bson:"_id"`
	Questions []Question `json:"questions" yaml:"questions" bson:"questions"`
}

var leadingTest = regexp.MustCompile(`(?i)^test`)

// NormalizeBankID strips a leading "test" prefix (any case), removes
// underscores, lowercases and trims.
func NormalizeBankID(raw string) (string, error) {
	id := leadingTest.ReplaceAllString(strings.TrimSpace(raw), "")
	id = strings.ReplaceAll(id, "_", "")
	id = strings.TrimSpace(strings.ToLower(id))
	if id == "" {
		return "", InvalidArgument("invalid bank id %q", raw)
	}
	return id, nil
}

// Activation is a time window that opens a bank for attempts.
type Activation struct {
	ID                  string    `json:"id" bson:"_id"`
	BankID              string    `json:"bank_id" bson:"bank_id"`
	EnabledBy           string    `json:"enabled_by" bson:"enabled_by"`
	StartTime           time.Time `json:"start_time" bson:"start_time"`
	EndTime             time.Time `json:"end_time" bson:"end_time"`
	QuestionsPerAttempt int       `json:"questions_per_attempt" bson:"questions_per_attempt"`
	MaxTries            int       `json:"max_tries" bson:"max_tries"`
	CreatedAt           time.Time `json:"created_at" bson:"created_at"`
}

// ActiveAt reports whether t falls inside [StartTime, EndTime].
func (a Activation) ActiveAt(t time.Time) bool {
	return !t.Before(a.StartTime) && !t.After(a.EndTime)
}

// Window is either a duration starting now or an explicit [Start, End) pair.
type Window struct {
	Duration time.Duration
	Start    time.Time
	End      time.Time
}

// WindowFor opens a window of length d starting at activation time.
func WindowFor(d time.Duration) Window {
	return Window{Duration: d}
}

// WindowBetween opens an explicit window.
func WindowBetween(start, end time.Time) Window {
	return Window{Start: start, End: end}
}

// Explicit reports whether the window carries its own bounds.
func (w Window) Explicit() bool {
	return !w.Start.IsZero() || !w.End.IsZero()
}

// Resolve returns UTC bounds for the window relative to now.
func (w Window) Resolve(now time.Time) (time.Time, time.Time, error) {
	if w.Explicit() {
		if !w.Start.Before(w.End) {
			return time.Time{}, time.Time{}, InvalidArgument("window start %s must be before end %s",
				w.Start.UTC().Format(time.RFC3339), w.End.UTC().Format(time.RFC3339))
		}
		return w.Start.UTC(), w.End.UTC(), nil
	}
	if w.Duration <= 0 {
		return time.Time{}, time.Time{}, InvalidArgument("window duration must be positive, got %s", w.Duration)
	}
	start := now.UTC()
	return start, start.Add(w.Duration), nil
}

// Answer records one submitted answer against the original bank order.
type Answer struct {
	BankIndex    int  `json:"bank_index" bson:"bank_index"`
	ChosenOption int  `json:"chosen_option_index" bson:"chosen_option_index"`
	Correct      bool `json:"is_correct" bson:"is_correct"`
}

// Result is the immutable record of one completed attempt.
type Result struct {
	ParticipantID  string    `json:"participant_id" bson:"participant_id"`
	ActivationID   string    `json:"activation_id" bson:"activation_id"`
	BankID         string    `json:"bank_id" bson:"bank_id"`
	AttemptNumber  int       `json:"attempt_number" bson:"attempt_number"`
	CorrectCount   int       `json:"correct_count" bson:"correct_count"`
	TotalQuestions int       `json:"total_questions" bson:"total_questions"`
	ScorePercent   float64   `json:"score_percent" bson:"score_percent"`
	Answers        []Answer  `json:"answers" bson:"answers"`
	StartedAt      time.Time `json:"started_at" bson:"started_at"`
	CompletedAt    time.Time `json:"completed_at" bson:"completed_at"`
}

// SessionState is a node of the quiz session state machine.
type SessionState string

const (
	StateNotStarted     SessionState = "not_started"
	StateAwaitingAnswer SessionState = "awaiting_answer"
	StateScoring        SessionState = "scoring"
	StateCompleted      SessionState = "completed"
	StateCancelled      SessionState = "cancelled"
)

// Terminal reports whether no further transition is possible.
func (s SessionState) Terminal() bool {
	return s == StateCompleted || s == StateCancelled
}

// PromptOption is one displayed option and the token that selects it.
type PromptOption struct {
	Text  string `json:"text"`
	Token string `json:"token"`
}

// QuestionPrompt is what the presentation adapter renders for one question.
type QuestionPrompt struct {
	BankID        string         `json:"bankId"`
	AttemptNumber int            `json:"attempt"`
	Position      int            `json:"position"` // 1-based
	Total         int            `json:"total"`
	Text          string         `json:"text"`
	Options       []PromptOption `json:"options"`
}

// FinalScore is delivered once the last answer is recorded.
type FinalScore struct {
	BankID  string  `json:"bankId"`
	Correct int     `json:"correct"`
	Total   int     `json:"total"`
	Percent float64 `json:"percent"`
	Saved   bool    `json:"saved"`
}

// Role is the capability level of an actor.
type Role string

const (
	RoleParticipant Role = "participant"
	RoleOperator    Role = "operator"
	RoleAdmin       Role = "admin"
)

// Capability is what a command requires from its actor.
type Capability string

const (
	CapParticipant Capability = "participant"
	CapOperator    Capability = "operator"
)

// Can reports whether r grants c. Admins and operators may also take quizzes.
func (r Role) Can(c Capability) bool {
	switch c {
	case CapParticipant:
		return r == RoleParticipant || r == RoleOperator || r == RoleAdmin
	case CapOperator:
		return r == RoleOperator || r == RoleAdmin
	default:
		return false
	}
}
