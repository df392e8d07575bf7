package command

import (
	"errors"
	"testing"
	"time"

	"assessment-engine/internal/domain"
)

func TestParseActivateForms(t *testing.T) {
	start := time.Date(2024, 6, 20, 9, 0, 0, 0, time.UTC)
	end := time.Date(2024, 6, 20, 17, 0, 0, 0, time.UTC)

	cases := []struct {
		in   string
		want Command
	}{
		{"activate math101", Command{Kind: KindStatus, BankID: "math101"}},
		{"/act_test test_math101 status", Command{Kind: KindStatus, BankID: "math101"}},
		{"activate math101 deact", Command{Kind: KindDeactivate, BankID: "math101"}},
		{"activate math101 DEACTIVATE", Command{Kind: KindDeactivate, BankID: "math101"}},
		{"activate math101 20 3 60", Command{Kind: KindActivate, BankID: "math101", QuestionsPerAttempt: 20, MaxTries: 3, Window: domain.WindowFor(time.Hour)}},
		{"activate math101 20 3 90m", Command{Kind: KindActivate, BankID: "math101", QuestionsPerAttempt: 20, MaxTries: 3, Window: domain.WindowFor(90 * time.Minute)}},
		{"activate math101 15 1 2024-06-20 09:00 2024-06-20 17:00", Command{Kind: KindActivate, BankID: "math101", QuestionsPerAttempt: 15, MaxTries: 1, Window: domain.WindowBetween(start, end)}},
		{"activate math101 15 1 2024-06-20 09-00 2024-06-20 17:00:00", Command{Kind: KindActivate, BankID: "math101", QuestionsPerAttempt: 15, MaxTries: 1, Window: domain.WindowBetween(start, end)}},
	}
	for _, tc := range cases {
		got, err := Parse(tc.in)
		if err != nil {
			t.Fatalf("Parse(%q): %v", tc.in, err)
		}
		if got.Kind != tc.want.Kind || got.BankID != tc.want.BankID ||
			got.QuestionsPerAttempt != tc.want.QuestionsPerAttempt || got.MaxTries != tc.want.MaxTries ||
			got.Window.Duration != tc.want.Window.Duration ||
			!got.Window.Start.Equal(tc.want.Window.Start) || !got.Window.End.Equal(tc.want.Window.End) {
			t.Fatalf("Parse(%q) = %+v, want %+v", tc.in, got, tc.want)
		}
	}
}

func TestParseRejects(t *testing.T) {
	for _, in := range []string{
		"activate",
		"activate m1 20",
		"activate m1 20 3",
		"activate m1 x 3 60",
		"activate m1 0 3 60",
		"activate m1 20 -1 60",
		"activate m1 20 3 0",
		"activate m1 20 3 soon",
		"activate m1 3 1 153722867281",
		"activate m1 20 3 2024-06-20 17:00 2024-06-20 09:00",
		"activate m1 20 3 2024-06-20 09:00 2024-06-20 09:00",
		"activate m1 20 3 20/06/2024 09:00 2024-06-20 17:00",
		"activate m1 status now",
		"begin",
		"begin a b",
		"answer",
		"results a b",
		"dance",
	} {
		if _, err := Parse(in); !errors.Is(err, domain.ErrInvalidArgument) {
			t.Fatalf("Parse(%q) expected invalid argument, got %v", in, err)
		}
	}
}

func TestParseParticipantCommands(t *testing.T) {
	cases := map[string]Command{
		"begin Test_M1":   {Kind: KindBegin, BankID: "m1"},
		"/test m1":        {Kind: KindBegin, BankID: "m1"},
		"answer ab:0:1":   {Kind: KindAnswer, Token: "ab:0:1"},
		"cancel":          {Kind: KindCancel},
		"results":         {Kind: KindResults},
		"results math101": {Kind: KindResults, BankID: "math101"},
		"":                {Kind: KindHelp},
		"help":            {Kind: KindHelp},
	}
	for in, want := range cases {
		got, err := Parse(in)
		if err != nil || got != want {
			t.Fatalf("Parse(%q) = %+v, %v; want %+v", in, got, err, want)
		}
	}
}
