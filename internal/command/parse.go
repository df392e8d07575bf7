// Package command turns chat-style text into engine calls and renders the
// outcome back to text. It is shared by the websocket adapter and the CLI.
package command

import (
	"math"
	"strconv"
	"strings"
	"time"

	"assessment-engine/internal/domain"
)

type Kind int

const (
	KindHelp Kind = iota
	KindActivate
	KindStatus
	KindDeactivate
	KindBegin
	KindAnswer
	KindCancel
	KindResults
)

func (k Kind) String() string {
	switch k {
	case KindActivate:
		return "activate"
	case KindStatus:
		return "status"
	case KindDeactivate:
		return "deactivate"
	case KindBegin:
		return "begin"
	case KindAnswer:
		return "answer"
	case KindCancel:
		return "cancel"
	case KindResults:
		return "results"
	default:
		return "help"
	}
}

// Command is one parsed request. Only the fields relevant to Kind are set.
type Command struct {
	Kind                Kind
	BankID              string
	QuestionsPerAttempt int
	MaxTries            int
	Window              domain.Window
	Token               string
}

const ActivateUsage = `Usage:
  activate <bank> status
  activate <bank> deactivate
  activate <bank> <questions> <tries> <minutes|duration>
  activate <bank> <questions> <tries> <start-date> <start-time> <end-date> <end-time>
Examples:
  activate math101 20 3 60
  activate math101 15 1 2024-06-20 09:00 2024-06-20 17:00`

const HelpText = `Commands:
  begin <bank>        start an attempt
  answer <token>      answer the current question
  cancel              abandon the current attempt
  results             show your results
  results <bank>      operators: results of your activations
` + ActivateUsage

// Parse reads one command line. A leading slash is accepted for chat clients.
func Parse(text string) (Command, error) {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return Command{Kind: KindHelp}, nil
	}
	verb := strings.ToLower(strings.TrimPrefix(fields[0], "/"))
	args := fields[1:]

	switch verb {
	case "help", "start":
		return Command{Kind: KindHelp}, nil
	case "activate", "act", "act_test":
		return parseActivate(args)
	case "begin", "test":
		if len(args) != 1 {
			return Command{}, domain.InvalidArgument("usage: begin <bank>")
		}
		id, err := domain.NormalizeBankID(args[0])
		if err != nil {
			return Command{}, err
		}
		return Command{Kind: KindBegin, BankID: id}, nil
	case "answer":
		if len(args) != 1 {
			return Command{}, domain.InvalidArgument("usage: answer <token>")
		}
		return Command{Kind: KindAnswer, Token: args[0]}, nil
	case "cancel":
		return Command{Kind: KindCancel}, nil
	case "results":
		switch len(args) {
		case 0:
			return Command{Kind: KindResults}, nil
		case 1:
			id, err := domain.NormalizeBankID(args[0])
			if err != nil {
				return Command{}, err
			}
			return Command{Kind: KindResults, BankID: id}, nil
		default:
			return Command{}, domain.InvalidArgument("usage: results [bank]")
		}
	}
	return Command{}, domain.InvalidArgument("unknown command %q, try help", fields[0])
}

func parseActivate(args []string) (Command, error) {
	if len(args) == 0 {
		return Command{}, domain.InvalidArgument("bank id is required\n%s", ActivateUsage)
	}
	id, err := domain.NormalizeBankID(args[0])
	if err != nil {
		return Command{}, err
	}
	if len(args) == 1 {
		return Command{Kind: KindStatus, BankID: id}, nil
	}

	switch strings.ToLower(args[1]) {
	case "status":
		if len(args) != 2 {
			break
		}
		return Command{Kind: KindStatus, BankID: id}, nil
	case "deact", "deactivate":
		if len(args) != 2 {
			break
		}
		return Command{Kind: KindDeactivate, BankID: id}, nil
	}

	if len(args) != 4 && len(args) != 7 {
		return Command{}, domain.InvalidArgument("expected 4 or 7 arguments, got %d\n%s", len(args), ActivateUsage)
	}
	questions, err := positive(args[1], "questions")
	if err != nil {
		return Command{}, err
	}
	tries, err := positive(args[2], "tries")
	if err != nil {
		return Command{}, err
	}
	cmd := Command{Kind: KindActivate, BankID: id, QuestionsPerAttempt: questions, MaxTries: tries}

	if len(args) == 4 {
		d, err := parseDuration(args[3])
		if err != nil {
			return Command{}, err
		}
		cmd.Window = domain.WindowFor(d)
		return cmd, nil
	}

	start, err := parseInstant(args[3], args[4])
	if err != nil {
		return Command{}, err
	}
	end, err := parseInstant(args[5], args[6])
	if err != nil {
		return Command{}, err
	}
	if !start.Before(end) {
		return Command{}, domain.InvalidArgument("end time must be after start time")
	}
	cmd.Window = domain.WindowBetween(start, end)
	return cmd, nil
}

func positive(raw, name string) (int, error) {
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, domain.InvalidArgument("%s must be a number, got %q", name, raw)
	}
	if n <= 0 {
		return 0, domain.InvalidArgument("%s must be positive, got %d", name, n)
	}
	return n, nil
}

// parseDuration accepts whole minutes ("60") or a Go duration ("90m", "2h").
const maxMinutes = math.MaxInt64 / int64(time.Minute)

func parseDuration(raw string) (time.Duration, error) {
	if n, err := strconv.Atoi(raw); err == nil {
		if n <= 0 {
			return 0, domain.InvalidArgument("duration must be positive, got %d", n)
		}
		if int64(n) > maxMinutes {
			return 0, domain.InvalidArgument("duration of %d minutes is too long", n)
		}
		return time.Duration(n) * time.Minute, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, domain.InvalidArgument("duration must be minutes or a duration like 90m, got %q", raw)
	}
	if d <= 0 {
		return 0, domain.InvalidArgument("duration must be positive, got %s", d)
	}
	return d, nil
}

var clockLayouts = []string{"15:04", "15:04:05", "15-04"}

// parseInstant reads a UTC date (YYYY-MM-DD) and time of day.
func parseInstant(date, clock string) (time.Time, error) {
	for _, layout := range clockLayouts {
		if t, err := time.ParseInLocation("2006-01-02 "+layout, date+" "+clock, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, domain.InvalidArgument("cannot parse %q as YYYY-MM-DD HH:MM", date+" "+clock)
}
