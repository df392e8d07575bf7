package app_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"assessment-engine/internal/app"
	"assessment-engine/internal/domain"
)

func TestActivateClampsQuestionsToBankSize(t *testing.T) {
	f := newFixture(t, numberedBank("m1", 3))

	receipt, err := f.registry.Activate(context.Background(), app.ActivateRequest{
		BankID:              "m1",
		EnabledBy:           "op-1",
		QuestionsPerAttempt: 10,
		MaxTries:            2,
		Window:              domain.WindowFor(30 * time.Minute),
	})
	if err != nil {
		t.Fatalf("activate: %v", err)
	}
	if receipt.Activation.QuestionsPerAttempt != 3 {
		t.Fatalf("expected clamp to 3, got %d", receipt.Activation.QuestionsPerAttempt)
	}
	if len(receipt.Warnings) != 1 || receipt.BankSize != 3 {
		t.Fatalf("expected one warning and bank size 3, got %+v", receipt)
	}
	if !receipt.Activation.StartTime.Equal(baseTime) || !receipt.Activation.EndTime.Equal(baseTime.Add(30*time.Minute)) {
		t.Fatalf("unexpected window %s - %s", receipt.Activation.StartTime, receipt.Activation.EndTime)
	}
}

func TestActivateRejectsBadInput(t *testing.T) {
	f := newFixture(t, numberedBank("m1", 3), domain.Bank{ID: "empty"})

	cases := []struct {
		name string
		req  app.ActivateRequest
		want error
	}{
		{"zero questions", app.ActivateRequest{BankID: "m1", EnabledBy: "op", QuestionsPerAttempt: 0, MaxTries: 1, Window: domain.WindowFor(time.Hour)}, domain.ErrInvalidArgument},
		{"zero tries", app.ActivateRequest{BankID: "m1", EnabledBy: "op", QuestionsPerAttempt: 1, MaxTries: 0, Window: domain.WindowFor(time.Hour)}, domain.ErrInvalidArgument},
		{"zero duration", app.ActivateRequest{BankID: "m1", EnabledBy: "op", QuestionsPerAttempt: 1, MaxTries: 1}, domain.ErrInvalidArgument},
		{"inverted window", app.ActivateRequest{BankID: "m1", EnabledBy: "op", QuestionsPerAttempt: 1, MaxTries: 1, Window: domain.WindowBetween(baseTime.Add(time.Hour), baseTime)}, domain.ErrInvalidArgument},
		{"empty window", app.ActivateRequest{BankID: "m1", EnabledBy: "op", QuestionsPerAttempt: 1, MaxTries: 1, Window: domain.WindowBetween(baseTime, baseTime)}, domain.ErrInvalidArgument},
		{"unknown bank", app.ActivateRequest{BankID: "nope", EnabledBy: "op", QuestionsPerAttempt: 1, MaxTries: 1, Window: domain.WindowFor(time.Hour)}, domain.ErrNotFound},
		{"empty bank", app.ActivateRequest{BankID: "empty", EnabledBy: "op", QuestionsPerAttempt: 1, MaxTries: 1, Window: domain.WindowFor(time.Hour)}, domain.ErrInvalidArgument},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.registry.Activate(context.Background(), tc.req)
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}

	all, _ := f.activations.ListByBank(context.Background(), "m1", "")
	if len(all) != 0 {
		t.Fatalf("rejected activations must not be stored, got %d", len(all))
	}
}

func TestStatusFollowsWindow(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, numberedBank("m1", 3))
	start := baseTime.Add(time.Hour)
	end := start.Add(time.Hour)
	if _, err := f.registry.Activate(ctx, app.ActivateRequest{
		BankID: "m1", EnabledBy: "op-1", QuestionsPerAttempt: 2, MaxTries: 1,
		Window: domain.WindowBetween(start, end),
	}); err != nil {
		t.Fatalf("activate: %v", err)
	}

	steps := []struct {
		at     time.Duration
		active bool
	}{
		{0, false},
		{time.Hour - time.Second, false},
		{time.Hour, true},
		{2 * time.Hour, true},
		{2*time.Hour + time.Second, false},
	}
	for _, step := range steps {
		f.clock.Set(baseTime.Add(step.at))
		got, err := f.registry.Status(ctx, "m1")
		if err != nil {
			t.Fatalf("status: %v", err)
		}
		if (len(got) == 1) != step.active {
			t.Fatalf("at +%s expected active=%v, got %d", step.at, step.active, len(got))
		}
	}
}

func TestStatusNewestFirst(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, numberedBank("m1", 3))
	older := f.activate(t, "m1", 1, 1)
	f.clock.Advance(time.Minute)
	newer := f.activate(t, "m1", 1, 1)

	got, _ := f.registry.Status(ctx, "m1")
	if len(got) != 2 || got[0].ID != newer.ID || got[1].ID != older.ID {
		t.Fatalf("unexpected order %+v", got)
	}

	chosen, err := f.registry.FindActiveForStart(ctx, "m1")
	if err != nil || chosen.ID != newer.ID {
		t.Fatalf("expected newest activation, got %v %v", chosen.ID, err)
	}
}

func TestDeactivateIsIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, numberedBank("m1", 3))
	f.activate(t, "m1", 1, 1)
	_, err := f.registry.Activate(ctx, app.ActivateRequest{
		BankID: "m1", EnabledBy: "op-1", QuestionsPerAttempt: 1, MaxTries: 1,
		Window: domain.WindowBetween(baseTime.Add(2*time.Hour), baseTime.Add(3*time.Hour)),
	})
	if err != nil {
		t.Fatalf("schedule: %v", err)
	}

	n, err := f.registry.Deactivate(ctx, "m1", "op-1")
	if err != nil || n != 1 {
		t.Fatalf("expected 1 affected, got %d %v", n, err)
	}
	n, err = f.registry.Deactivate(ctx, "m1", "op-1")
	if err != nil || n != 0 {
		t.Fatalf("expected 0 on repeat, got %d %v", n, err)
	}

	// end_time is inclusive, so the pulled-in activation stops counting right after now.
	f.clock.Advance(time.Second)

	if got, _ := f.registry.Status(ctx, "m1"); len(got) != 0 {
		t.Fatalf("expected nothing active, got %d", len(got))
	}
	if _, err := f.registry.FindActiveForStart(ctx, "m1"); !errors.Is(err, domain.ErrNotActive) {
		t.Fatalf("expected not active, got %v", err)
	}

	f.clock.Advance(2 * time.Hour)
	if got, _ := f.registry.Status(ctx, "m1"); len(got) != 1 {
		t.Fatalf("scheduled activation must survive deactivation")
	}
}

func TestDeactivateUnknownBankAffectsNothing(t *testing.T) {
	f := newFixture(t)
	n, err := f.registry.Deactivate(context.Background(), "ghost", "op-1")
	if err != nil || n != 0 {
		t.Fatalf("expected 0, nil; got %d %v", n, err)
	}
}
