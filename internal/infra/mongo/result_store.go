package mongo

import (
	"context"
	"fmt"

	"assessment-engine/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type ResultStore struct {
	col *mongo.Collection
}

func NewResultStore(db *mongo.Database) *ResultStore {
	return &ResultStore{col: db.Collection(resultsCollection)}
}

func (s *ResultStore) CountAttempts(ctx context.Context, participantID, activationID string) (int, error) {
	n, err := s.col.CountDocuments(ctx, bson.M{
		"participant_id": participantID,
		"activation_id":  activationID,
	})
	if err != nil {
		return 0, fmt.Errorf("count attempts: %w", err)
	}
	return int(n), nil
}

func (s *ResultStore) Append(ctx context.Context, r domain.Result) error {
	if _, err := s.col.InsertOne(ctx, r); err != nil {
		return fmt.Errorf("insert result: %w", err)
	}
	return nil
}

func (s *ResultStore) ListByParticipant(ctx context.Context, participantID string) ([]domain.Result, error) {
	return s.find(ctx, bson.M{"participant_id": participantID},
		options.Find().SetSort(bson.D{{Key: "completed_at", Value: -1}}))
}

func (s *ResultStore) ListByActivations(ctx context.Context, activationIDs []string) ([]domain.Result, error) {
	if len(activationIDs) == 0 {
		return nil, nil
	}
	return s.find(ctx, bson.M{"activation_id": bson.M{"$in": activationIDs}},
		options.Find().SetSort(bson.D{{Key: "participant_id", Value: 1}, {Key: "completed_at", Value: 1}}))
}

func (s *ResultStore) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]domain.Result, error) {
	cur, err := s.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("find results: %w", err)
	}
	defer cur.Close(ctx)

	var out []domain.Result
	for cur.Next(ctx) {
		var r domain.Result
		if err := cur.Decode(&r); err != nil {
			return nil, fmt.Errorf("decode result: %w", err)
		}
		out = append(out, r)
	}
	return out, cur.Err()
}
