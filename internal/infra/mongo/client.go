// Package mongo stores banks, activations and results in MongoDB, the
// document layout the bot deployments already use.
package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	banksCollection       = "banks"
	activationsCollection = "activations"
	resultsCollection     = "results"
)

// Connect dials uri and pings the primary before returning the database.
func Connect(ctx context.Context, uri, database string) (*mongo.Client, *mongo.Database, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, nil, fmt.Errorf("ping mongo: %w", err)
	}
	return client, client.Database(database), nil
}

// EnsureIndexes creates the indexes the stores query by. It is idempotent.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	activations := []mongo.IndexModel{
		{Keys: bson.D{{Key: "bank_id", Value: 1}, {Key: "start_time", Value: 1}, {Key: "end_time", Value: 1}}},
		{Keys: bson.D{{Key: "bank_id", Value: 1}, {Key: "enabled_by", Value: 1}}},
	}
	if _, err := db.Collection(activationsCollection).Indexes().CreateMany(ctx, activations); err != nil {
		return fmt.Errorf("failed to create activation indexes: %w", err)
	}

	results := []mongo.IndexModel{
		{Keys: bson.D{{Key: "participant_id", Value: 1}, {Key: "activation_id", Value: 1}}},
		{Keys: bson.D{{Key: "activation_id", Value: 1}}},
		{Keys: bson.D{{Key: "completed_at", Value: -1}}},
	}
	if _, err := db.Collection(resultsCollection).Indexes().CreateMany(ctx, results); err != nil {
		return fmt.Errorf("failed to create result indexes: %w", err)
	}
	return nil
}
