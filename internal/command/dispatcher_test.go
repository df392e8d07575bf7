package command

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"assessment-engine/internal/app"
	"assessment-engine/internal/domain"
	"assessment-engine/internal/infra/memory"
	"github.com/rs/zerolog"
)

func newTestDispatcher(t *testing.T) *Dispatcher {
	t.Helper()
	banks := memory.NewBankRepository(memory.NewStaticBankLoader(map[string]domain.Bank{
		"m1": {ID: "m1", Questions: []domain.Question{
			{Text: "2 + 2?", Options: []string{"3", "4"}, CorrectOption: 1},
			{Text: "3 + 3?", Options: []string{"6", "7"}, CorrectOption: 0},
		}},
	}), time.Minute)
	activations := memory.NewActivationStore()
	results := memory.NewResultStore()
	registry := app.NewRegistry(activations, banks)
	engine := app.NewEngine(registry, banks, results, memory.NewSessionStore())
	reports := app.NewReports(activations, results)
	roles := NewStaticRoles([]string{"root"}, []string{"op-1"})
	return NewDispatcher(registry, engine, reports, roles, zerolog.Nop())
}

func TestDispatcherCapabilities(t *testing.T) {
	ctx := context.Background()
	d := newTestDispatcher(t)
	student := Actor{ID: "s1", ConversationID: "c"}

	for _, text := range []string{"activate m1 2 1 60", "activate m1 status", "activate m1 deact", "results m1"} {
		if _, err := d.Handle(ctx, student, text); !errors.Is(err, domain.ErrForbidden) {
			t.Fatalf("%q by participant: expected forbidden, got %v", text, err)
		}
	}
	if _, err := d.Handle(ctx, Actor{ID: "root", ConversationID: "c"}, "activate m1 status"); err != nil {
		t.Fatalf("admin status: %v", err)
	}
}

func TestDispatcherFullAttempt(t *testing.T) {
	ctx := context.Background()
	d := newTestDispatcher(t)
	op := Actor{ID: "op-1", ConversationID: "ops"}
	student := Actor{ID: "s1", ConversationID: "chat"}

	reply, err := d.Handle(ctx, op, "activate test_m1 5 1 60")
	if err != nil {
		t.Fatalf("activate: %v", err)
	}
	if !strings.Contains(reply.Messages[0], "Note:") || !strings.Contains(reply.Messages[0], "Questions per attempt: 2 (of 2)") {
		t.Fatalf("expected clamp note, got %q", reply.Messages[0])
	}

	reply, err = d.Handle(ctx, student, "begin m1")
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	for reply.Final == nil {
		if reply.Question == nil {
			t.Fatalf("expected a question, got %+v", reply)
		}
		token := correctToken(t, *reply.Question)
		reply, err = d.Handle(ctx, student, "answer "+token)
		if err != nil {
			t.Fatalf("answer: %v", err)
		}
	}
	if reply.Final.Correct != 2 || !strings.Contains(reply.Messages[0], "2 of 2 (100.0%)") {
		t.Fatalf("unexpected final %+v %q", reply.Final, reply.Messages)
	}

	if _, err := d.Handle(ctx, student, "begin m1"); !errors.Is(err, domain.ErrAttemptsExhausted) {
		t.Fatalf("expected exhausted, got %v", err)
	}

	own, err := d.Handle(ctx, student, "results")
	if err != nil || !strings.Contains(own.Messages[0], "attempt 1, score 100.0%") {
		t.Fatalf("own results: %q %v", own.Messages, err)
	}
	forBank, err := d.Handle(ctx, op, "results m1")
	if err != nil || !strings.Contains(forBank.Messages[0], "s1: attempt 1") {
		t.Fatalf("bank results: %q %v", forBank.Messages, err)
	}

	status, _ := d.Handle(ctx, op, "activate m1")
	if !strings.Contains(status.Messages[0], "enabled by: op-1") {
		t.Fatalf("unexpected status %q", status.Messages[0])
	}
	deact, _ := d.Handle(ctx, op, "activate m1 deact")
	if !strings.Contains(deact.Messages[0], "Deactivated 1") {
		t.Fatalf("unexpected deactivate reply %q", deact.Messages[0])
	}
	again, _ := d.Handle(ctx, op, "activate m1 deact")
	if !strings.Contains(again.Messages[0], "No active activation") {
		t.Fatalf("unexpected second deactivate reply %q", again.Messages[0])
	}
}

func TestDispatcherCancel(t *testing.T) {
	ctx := context.Background()
	d := newTestDispatcher(t)
	student := Actor{ID: "s1", ConversationID: "chat"}
	if _, err := d.Handle(ctx, Actor{ID: "op-1"}, "activate m1 2 1 60"); err != nil {
		t.Fatalf("activate: %v", err)
	}

	if _, err := d.Cancel(ctx, student); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("cancel without attempt: %v", err)
	}
	if _, err := d.Handle(ctx, student, "begin m1"); err != nil {
		t.Fatalf("begin: %v", err)
	}
	reply, err := d.Cancel(ctx, student)
	if err != nil || reply.Messages[0] != "Attempt cancelled." {
		t.Fatalf("cancel: %+v %v", reply, err)
	}
	if _, err := d.Handle(ctx, student, "begin m1"); err != nil {
		t.Fatalf("cancel must not use the only try: %v", err)
	}
}

func correctToken(t *testing.T, p domain.QuestionPrompt) string {
	t.Helper()
	answers := map[string]string{"2 + 2?": "4", "3 + 3?": "6"}
	for _, o := range p.Options {
		if o.Text == answers[p.Text] {
			return o.Token
		}
	}
	t.Fatalf("no correct option in %+v", p)
	return ""
}
