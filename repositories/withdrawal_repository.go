package repositories

import (
	"context"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/rmhse/rmhse_backend/models"
	"github.com/rmhse/rmhse_backend/services"
)

var _ services.WithdrawalStore = (*WithdrawalRepository)(nil)

type WithdrawalRepository struct {
	requests requestCollection
}

func NewWithdrawalRepository(db *mongo.Database) *WithdrawalRepository {
	return &WithdrawalRepository{requests: requestCollection{collection: db.Collection("withdrawals")}}
}

func (r *WithdrawalRepository) Create(ctx context.Context, withdrawal *models.Withdrawal) error {
	id, err := r.requests.insert(ctx, withdrawal)
	if err != nil {
		return err
	}
	withdrawal.ID = id
	return nil
}

func (r *WithdrawalRepository) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Withdrawal, error) {
	var withdrawal models.Withdrawal
	found, err := r.requests.findByID(ctx, id, &withdrawal)
	if err != nil || !found {
		return nil, err
	}
	return &withdrawal, nil
}

func (r *WithdrawalRepository) List(ctx context.Context, userID *primitive.ObjectID, status string) ([]models.Withdrawal, error) {
	withdrawals := []models.Withdrawal{}
	if err := r.requests.list(ctx, userID, status, &withdrawals); err != nil {
		return nil, err
	}
	return withdrawals, nil
}

func (r *WithdrawalRepository) CountByStatus(ctx context.Context, status string) (int64, error) {
	return r.requests.countByStatus(ctx, status)
}

func (r *WithdrawalRepository) Decide(ctx context.Context, id primitive.ObjectID, from string, decision models.Decision) (*models.Withdrawal, error) {
	var withdrawal models.Withdrawal
	found, err := r.requests.decide(ctx, id, from, decision, &withdrawal)
	if err != nil || !found {
		return nil, err
	}
	return &withdrawal, nil
}
