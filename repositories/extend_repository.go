package repositories

import (
	"context"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/rmhse/rmhse_backend/models"
	"github.com/rmhse/rmhse_backend/services"
)

var _ services.ExtendStore = (*ExtendRepository)(nil)

type ExtendRepository struct {
	requests requestCollection
}

func NewExtendRepository(db *mongo.Database) *ExtendRepository {
	return &ExtendRepository{requests: requestCollection{collection: db.Collection("extends")}}
}

func (r *ExtendRepository) Create(ctx context.Context, extend *models.Extend) error {
	id, err := r.requests.insert(ctx, extend)
	if err != nil {
		return err
	}
	extend.ID = id
	return nil
}

func (r *ExtendRepository) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Extend, error) {
	var extend models.Extend
	found, err := r.requests.findByID(ctx, id, &extend)
	if err != nil || !found {
		return nil, err
	}
	return &extend, nil
}

func (r *ExtendRepository) List(ctx context.Context, userID *primitive.ObjectID, status string) ([]models.Extend, error) {
	extends := []models.Extend{}
	if err := r.requests.list(ctx, userID, status, &extends); err != nil {
		return nil, err
	}
	return extends, nil
}

func (r *ExtendRepository) CountByStatus(ctx context.Context, status string) (int64, error) {
	return r.requests.countByStatus(ctx, status)
}

func (r *ExtendRepository) Decide(ctx context.Context, id primitive.ObjectID, from string, decision models.Decision) (*models.Extend, error) {
	var extend models.Extend
	found, err := r.requests.decide(ctx, id, from, decision, &extend)
	if err != nil || !found {
		return nil, err
	}
	return &extend, nil
}
