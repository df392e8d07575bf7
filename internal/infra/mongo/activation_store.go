package mongo

import (
	"context"
	"fmt"
	"time"

	"assessment-engine/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

type ActivationStore struct {
	col *mongo.Collection
}

func NewActivationStore(db *mongo.Database) *ActivationStore {
	return &ActivationStore{col: db.Collection(activationsCollection)}
}

func (s *ActivationStore) Insert(ctx context.Context, a domain.Activation) error {
	if _, err := s.col.InsertOne(ctx, a); err != nil {
		return fmt.Errorf("insert activation: %w", err)
	}
	return nil
}

func (s *ActivationStore) ActiveAt(ctx context.Context, bankID string, at time.Time) ([]domain.Activation, error) {
	return s.find(ctx, bson.M{
		"bank_id":    bankID,
		"start_time": bson.M{"$lte": at},
		"end_time":   bson.M{"$gte": at},
	})
}

// EndActive matches only activations still open at `at`, so a concurrent
// second call finds nothing left to update.
func (s *ActivationStore) EndActive(ctx context.Context, bankID string, at time.Time) (int, error) {
	res, err := s.col.UpdateMany(ctx,
		bson.M{
			"bank_id":    bankID,
			"start_time": bson.M{"$lte": at},
			"end_time":   bson.M{"$gt": at},
		},
		bson.M{"$set": bson.M{"end_time": at}},
	)
	if err != nil {
		return 0, fmt.Errorf("end activations: %w", err)
	}
	return int(res.ModifiedCount), nil
}

func (s *ActivationStore) ListByBank(ctx context.Context, bankID, enabledBy string) ([]domain.Activation, error) {
	filter := bson.M{"bank_id": bankID}
	if enabledBy != "" {
		filter["enabled_by"] = enabledBy
	}
	return s.find(ctx, filter)
}

func (s *ActivationStore) find(ctx context.Context, filter bson.M) ([]domain.Activation, error) {
	cur, err := s.col.Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("find activations: %w", err)
	}
	defer cur.Close(ctx)

	var out []domain.Activation
	for cur.Next(ctx) {
		var a domain.Activation
		if err := cur.Decode(&a); err != nil {
			return nil, fmt.Errorf("decode activation: %w", err)
		}
		out = append(out, a)
	}
	return out, cur.Err()
}
