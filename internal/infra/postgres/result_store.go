package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"assessment-engine/internal/domain"
	"github.com/jackc/pgx/v4/pgxpool"
)

const resultColumns = `participant_id, activation_id, bank_id, attempt_number, correct_count,
	total_questions, score_percent, answers, started_at, completed_at`

// ResultStore is the append-only results table.
type ResultStore struct {
	pool *pgxpool.Pool
}

func NewResultStore(pool *pgxpool.Pool) *ResultStore {
	return &ResultStore{pool: pool}
}

func (s *ResultStore) CountAttempts(ctx context.Context, participantID, activationID string) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `SELECT count(*) FROM results
		WHERE participant_id=$1 AND activation_id=$2`, participantID, activationID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count attempts: %w", err)
	}
	return n, nil
}

func (s *ResultStore) Append(ctx context.Context, r domain.Result) error {
	answers, err := json.Marshal(r.Answers)
	if err != nil {
		return fmt.Errorf("marshal answers: %w", err)
	}
	_, err = s.pool.Exec(ctx, `INSERT INTO results (`+resultColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8::jsonb, $9, $10)`,
		r.ParticipantID, r.ActivationID, r.BankID, r.AttemptNumber, r.CorrectCount,
		r.TotalQuestions, r.ScorePercent, string(answers), r.StartedAt.UTC(), r.CompletedAt.UTC())
	if err != nil {
		return fmt.Errorf("insert result: %w", err)
	}
	return nil
}

func (s *ResultStore) ListByParticipant(ctx context.Context, participantID string) ([]domain.Result, error) {
	return s.query(ctx, `SELECT `+resultColumns+` FROM results
		WHERE participant_id=$1 ORDER BY completed_at DESC`, participantID)
}

func (s *ResultStore) ListByActivations(ctx context.Context, activationIDs []string) ([]domain.Result, error) {
	if len(activationIDs) == 0 {
		return nil, nil
	}
	return s.query(ctx, `SELECT `+resultColumns+` FROM results
		WHERE activation_id = ANY($1) ORDER BY participant_id, completed_at`, activationIDs)
}

func (s *ResultStore) query(ctx context.Context, sql string, args ...interface{}) ([]domain.Result, error) {
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query results: %w", err)
	}
	defer rows.Close()

	var out []domain.Result
	for rows.Next() {
		var (
			r   domain.Result
			raw []byte
		)
		if err := rows.Scan(&r.ParticipantID, &r.ActivationID, &r.BankID, &r.AttemptNumber,
			&r.CorrectCount, &r.TotalQuestions, &r.ScorePercent, &raw, &r.StartedAt, &r.CompletedAt); err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		if err := json.Unmarshal(raw, &r.Answers); err != nil {
			return nil, fmt.Errorf("unmarshal answers: %w", err)
		}
		r.StartedAt = r.StartedAt.UTC()
		r.CompletedAt = r.CompletedAt.UTC()
		out = append(out, r)
	}
	return out, rows.Err()
}
