package app_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"assessment-engine/internal/app"
	"assessment-engine/internal/domain"
	"assessment-engine/internal/infra/memory"
)

var baseTime = time.Date(2024, 6, 20, 9, 0, 0, 0, time.UTC)

type fixture struct {
	clock       *fakeClock
	activations *memory.ActivationStore
	results     *flakyResults
	sessions    *memory.SessionStore
	banks       *memory.BankRepository
	registry    *app.Registry
	engine      *app.Engine
	reports     *app.Reports
}

func newFixture(t *testing.T, banks ...domain.Bank) *fixture {
	t.Helper()
	byID := make(map[string]domain.Bank, len(banks))
	for _, b := range banks {
		byID[b.ID] = b
	}
	f := &fixture{
		clock:       &fakeClock{now: baseTime},
		activations: memory.NewActivationStore(),
		results:     &flakyResults{ResultStore: memory.NewResultStore()},
		sessions:    memory.NewSessionStore(),
		banks:       memory.NewBankRepository(memory.NewStaticBankLoader(byID), time.Minute),
	}
	var seq int
	var mu sync.Mutex
	opts := []app.Option{
		app.WithClock(f.clock.Now),
		app.WithIDs(func() string {
			mu.Lock()
			defer mu.Unlock()
			seq++
			return fmt.Sprintf("id%06d-0000", seq)
		}),
		app.WithRandomizer(app.NewRandomizer(7)),
	}
	f.registry = app.NewRegistry(f.activations, f.banks, opts...)
	f.engine = app.NewEngine(f.registry, f.banks, f.results, f.sessions, opts...)
	f.reports = app.NewReports(f.activations, f.results)
	return f
}

func (f *fixture) activate(t *testing.T, bankID string, perAttempt, tries int) domain.Activation {
	t.Helper()
	receipt, err := f.registry.Activate(context.Background(), app.ActivateRequest{
		BankID:              bankID,
		EnabledBy:           "op-1",
		QuestionsPerAttempt: perAttempt,
		MaxTries:            tries,
		Window:              domain.WindowFor(time.Hour),
	})
	if err != nil {
		t.Fatalf("activate: %v", err)
	}
	return receipt.Activation
}

// play answers every question of a started session, choosing the correct
// option for the first `correct` questions and a wrong one afterwards.
func (f *fixture) play(t *testing.T, key app.SessionKey, first domain.QuestionPrompt, bank domain.Bank, correct int) app.AnswerOutcome {
	t.Helper()
	prompt := first
	for i := 0; ; i++ {
		token := pickToken(t, prompt, bank, i < correct)
		out, err := f.engine.Answer(context.Background(), key, token)
		if err != nil {
			t.Fatalf("answer %d: %v", i+1, err)
		}
		if out.Ignored {
			t.Fatalf("answer %d unexpectedly ignored", i+1)
		}
		if out.Final != nil {
			return out
		}
		prompt = *out.Next
	}
}

// pickToken finds the token of the correct (or a wrong) option by matching
// option text back to the bank question.
func pickToken(t *testing.T, p domain.QuestionPrompt, bank domain.Bank, wantCorrect bool) string {
	t.Helper()
	for _, q := range bank.Questions {
		if q.Text != p.Text {
			continue
		}
		right := q.Options[q.CorrectOption]
		for _, o := range p.Options {
			if (o.Text == right) == wantCorrect {
				return o.Token
			}
		}
	}
	t.Fatalf("question %q not in bank", p.Text)
	return ""
}

func numberedBank(id string, n int) domain.Bank {
	b := domain.Bank{ID: id}
	for i := 0; i < n; i++ {
		b.Questions = append(b.Questions, domain.Question{
			Text:          fmt.Sprintf("%s question %d", id, i),
			Options:       []string{fmt.Sprintf("right %d", i), fmt.Sprintf("wrong %d", i), fmt.Sprintf("other %d", i)},
			CorrectOption: 0,
		})
	}
	return b
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

var errStoreDown = errors.New("store down")

// flakyResults fails Append while failAppend is set.
type flakyResults struct {
	*memory.ResultStore
	mu         sync.Mutex
	failAppend bool
}

func (r *flakyResults) setFailing(v bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failAppend = v
}

func (r *flakyResults) Append(ctx context.Context, res domain.Result) error {
	r.mu.Lock()
	fail := r.failAppend
	r.mu.Unlock()
	if fail {
		return errStoreDown
	}
	return r.ResultStore.Append(ctx, res)
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}
