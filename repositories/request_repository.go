package repositories

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/rmhse/rmhse_backend/models"
)

// requestCollection holds the queries shared by the extends and withdrawals
// collections, which both move from pending to approved or rejected.
type requestCollection struct {
	collection *mongo.Collection
}

func (r requestCollection) insert(ctx context.Context, doc interface{}) (primitive.ObjectID, error) {
	result, err := r.collection.InsertOne(ctx, doc)
	if err != nil {
		return primitive.NilObjectID, err
	}
	id, _ := result.InsertedID.(primitive.ObjectID)
	return id, nil
}

func (r requestCollection) findByID(ctx context.Context, id primitive.ObjectID, out interface{}) (bool, error) {
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(out)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return false, nil
	}
	return err == nil, err
}

func (r requestCollection) list(ctx context.Context, userID *primitive.ObjectID, status string, out interface{}) error {
	filter := bson.M{}
	if userID != nil {
		filter["userId"] = *userID
	}
	if status != "" {
		filter["status"] = status
	}
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return err
	}
	defer cursor.Close(ctx)
	return cursor.All(ctx, out)
}

func (r requestCollection) countByStatus(ctx context.Context, status string) (int64, error) {
	return r.collection.CountDocuments(ctx, bson.M{"status": status})
}

// decide applies the decision only while the request is still in status from.
func (r requestCollection) decide(ctx context.Context, id primitive.ObjectID, from string, decision models.Decision, out interface{}) (bool, error) {
	set := bson.M{
		"status":      decision.Status,
		"processedAt": decision.At,
	}
	if decision.AdminID != nil {
		set["adminId"] = *decision.AdminID
	}
	if decision.AdminNote != "" {
		set["adminNote"] = decision.AdminNote
	}
	if decision.RejectionReason != "" {
		set["rejectionReason"] = decision.RejectionReason
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	err := r.collection.FindOneAndUpdate(ctx,
		bson.M{"_id": id, "status": from},
		bson.M{"$set": set},
		opts,
	).Decode(out)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return false, nil
	}
	return err == nil, err
}
