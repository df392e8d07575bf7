package mongo

import (
	"context"
	"errors"
	"fmt"

	"assessment-engine/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type BankStore struct {
	col *mongo.Collection
}

func NewBankStore(db *mongo.Database) *BankStore {
	return &BankStore{col: db.Collection(banksCollection)}
}

func (s *BankStore) LoadBank(ctx context.Context, bankID string) (domain.Bank, error) {
	var bank domain.Bank
	err := s.col.FindOne(ctx, bson.M{"_id": bankID}).Decode(&bank)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return domain.Bank{}, fmt.Errorf("%q: %w", bankID, domain.ErrBankNotFound)
	}
	if err != nil {
		return domain.Bank{}, fmt.Errorf("load bank: %w", err)
	}
	return bank, nil
}

func (s *BankStore) SaveBank(ctx context.Context, bank domain.Bank) error {
	_, err := s.col.ReplaceOne(ctx, bson.M{"_id": bank.ID}, bank, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("save bank: %w", err)
	}
	return nil
}
