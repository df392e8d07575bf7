package postgres

import (
	"context"
	"fmt"
	"time"

	"assessment-engine/internal/domain"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

const activationColumns = `id, bank_id, enabled_by, start_time, end_time, questions_per_attempt, max_tries, created_at`

// ActivationStore keeps activations in the activations table.
type ActivationStore struct {
	pool *pgxpool.Pool
}

func NewActivationStore(pool *pgxpool.Pool) *ActivationStore {
	return &ActivationStore{pool: pool}
}

func (s *ActivationStore) Insert(ctx context.Context, a domain.Activation) error {
	_, err := s.pool.Exec(ctx, `INSERT INTO activations (`+activationColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		a.ID, a.BankID, a.EnabledBy, a.StartTime.UTC(), a.EndTime.UTC(),
		a.QuestionsPerAttempt, a.MaxTries, a.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("insert activation: %w", err)
	}
	return nil
}

func (s *ActivationStore) ActiveAt(ctx context.Context, bankID string, at time.Time) ([]domain.Activation, error) {
	return s.query(ctx, `SELECT `+activationColumns+` FROM activations
		WHERE bank_id=$1 AND start_time <= $2 AND end_time >= $2`, bankID, at.UTC())
}

// EndActive is one conditional UPDATE; rows already ended no longer match,
// so concurrent calls never count the same activation twice.
func (s *ActivationStore) EndActive(ctx context.Context, bankID string, at time.Time) (int, error) {
	tag, err := s.pool.Exec(ctx, `UPDATE activations SET end_time=$2
		WHERE bank_id=$1 AND start_time <= $2 AND end_time > $2`, bankID, at.UTC())
	if err != nil {
		return 0, fmt.Errorf("end activations: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (s *ActivationStore) ListByBank(ctx context.Context, bankID, enabledBy string) ([]domain.Activation, error) {
	return s.query(ctx, `SELECT `+activationColumns+` FROM activations
		WHERE bank_id=$1 AND ($2 = '' OR enabled_by=$2)
		ORDER BY created_at`, bankID, enabledBy)
}

func (s *ActivationStore) query(ctx context.Context, sql string, args ...interface{}) ([]domain.Activation, error) {
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query activations: %w", err)
	}
	defer rows.Close()

	var out []domain.Activation
	for rows.Next() {
		a, err := scanActivation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func scanActivation(row pgx.Row) (domain.Activation, error) {
	var a domain.Activation
	if err := row.Scan(&a.ID, &a.BankID, &a.EnabledBy, &a.StartTime, &a.EndTime,
		&a.QuestionsPerAttempt, &a.MaxTries, &a.CreatedAt); err != nil {
		return domain.Activation{}, fmt.Errorf("scan activation: %w", err)
	}
	a.StartTime = a.StartTime.UTC()
	a.EndTime = a.EndTime.UTC()
	a.CreatedAt = a.CreatedAt.UTC()
	return a, nil
}
