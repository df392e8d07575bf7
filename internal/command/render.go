package command

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"assessment-engine/internal/app"
	"assessment-engine/internal/domain"
)

// MaxMessageLen is the longest single message a chat transport accepts.
const MaxMessageLen = 4000

const stamp = "2006-01-02 15:04 UTC"

func RenderReceipt(r app.ActivationReceipt) string {
	var b strings.Builder
	for _, w := range r.Warnings {
		b.WriteString("Note: " + w + "\n")
	}
	a := r.Activation
	fmt.Fprintf(&b, "Bank %q activated.\nWindow: %s to %s\nQuestions per attempt: %d (of %d)\nMax tries: %d",
		a.BankID, a.StartTime.Format(stamp), a.EndTime.Format(stamp), a.QuestionsPerAttempt, r.BankSize, a.MaxTries)
	return b.String()
}

func RenderStatus(bankID string, active []domain.Activation) string {
	if len(active) == 0 {
		return fmt.Sprintf("Bank %q is not active right now.", bankID)
	}
	lines := []string{fmt.Sprintf("Activations of bank %q:", bankID)}
	for _, a := range active {
		lines = append(lines, fmt.Sprintf("- %s to %s (questions: %d, tries: %d, enabled by: %s)",
			a.StartTime.Format(stamp), a.EndTime.Format(stamp), a.QuestionsPerAttempt, a.MaxTries, a.EnabledBy))
	}
	return strings.Join(lines, "\n")
}

func RenderDeactivated(bankID string, n int) string {
	if n == 0 {
		return fmt.Sprintf("No active activation of bank %q to deactivate.", bankID)
	}
	return fmt.Sprintf("Deactivated %d activation(s) of bank %q. New attempts cannot start.", n, bankID)
}

// RenderPrompt is the text form of a question, with the answer token next
// to each option for transports without buttons.
func RenderPrompt(p domain.QuestionPrompt) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Bank %s (attempt %d)\nQuestion %d of %d:\n%s\n", p.BankID, p.AttemptNumber, p.Position, p.Total, p.Text)
	for i, o := range p.Options {
		fmt.Fprintf(&b, "%d) %s  [answer %s]\n", i+1, o.Text, o.Token)
	}
	return strings.TrimRight(b.String(), "\n")
}

func RenderFinal(f domain.FinalScore) string {
	if !f.Saved {
		return fmt.Sprintf("Bank %q completed: %d of %d (%s%%), but the result could not be saved.",
			f.BankID, f.Correct, f.Total, app.FormatPercent(f.Percent))
	}
	return fmt.Sprintf("Bank %q completed!\nYour score: %d of %d (%s%%)\nUse 'results' to see all your results.",
		f.BankID, f.Correct, f.Total, app.FormatPercent(f.Percent))
}

// RenderOwnResults lists a participant's results, already ordered newest first.
func RenderOwnResults(results []domain.Result) []string {
	if len(results) == 0 {
		return []string{"You have no results yet."}
	}
	lines := []string{"Your results:"}
	for _, r := range results {
		lines = append(lines, fmt.Sprintf("Bank %q: attempt %d, score %s%%, completed %s",
			r.BankID, r.AttemptNumber, app.FormatPercent(r.ScorePercent), r.CompletedAt.Format(stamp)))
	}
	return Chunk(lines, MaxMessageLen)
}

func RenderBankResults(bankID string, results []domain.Result) []string {
	if len(results) == 0 {
		return []string{fmt.Sprintf("No results for bank %q (or none you may view).", bankID)}
	}
	lines := []string{fmt.Sprintf("Results of bank %q:", bankID)}
	for _, r := range results {
		lines = append(lines, fmt.Sprintf("%s: attempt %d, score %s%%, completed %s",
			r.ParticipantID, r.AttemptNumber, app.FormatPercent(r.ScorePercent), r.CompletedAt.Format(stamp)))
	}
	return Chunk(lines, MaxMessageLen)
}

// Chunk joins lines into messages of at most limit bytes, breaking only
// between lines. A single line longer than limit is cut on a rune boundary.
func Chunk(lines []string, limit int) []string {
	var (
		out []string
		cur strings.Builder
	)
	flush := func() {
		if cur.Len() > 0 {
			out = append(out, cur.String())
			cur.Reset()
		}
	}
	for _, line := range lines {
		for len(line) > limit {
			flush()
			cut := limit
			for cut > 0 && !utf8.RuneStart(line[cut]) {
				cut--
			}
			out = append(out, line[:cut])
			line = line[cut:]
		}
		need := len(line)
		if cur.Len() > 0 {
			need++
		}
		if cur.Len()+need > limit {
			flush()
		}
		if cur.Len() > 0 {
			cur.WriteByte('\n')
		}
		cur.WriteString(line)
	}
	flush()
	return out
}

// Explain turns an engine error into the text shown to the user.
func Explain(err error) string {
	switch {
	case errors.Is(err, domain.ErrAttemptsExhausted):
		return "You have used all available tries for this bank."
	case errors.Is(err, domain.ErrNotActive):
		return "This bank is not active right now."
	case errors.Is(err, domain.ErrStartInProgress):
		return "Your attempt is already being started, please wait."
	case errors.Is(err, domain.ErrSessionNotFound):
		return "You have no attempt in progress. Use 'begin <bank>' to start one."
	case errors.Is(err, domain.ErrSessionBusy):
		return "Your previous answer is still being processed, please retry."
	case errors.Is(err, domain.ErrForbidden):
		return "This command is only available to operators and admins."
	case errors.Is(err, domain.ErrPersistenceFailure):
		return "A storage error occurred, please try again later."
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrInvalidArgument), errors.Is(err, domain.ErrInvalidTransition):
		return err.Error()
	}
	return "Internal error."
}
