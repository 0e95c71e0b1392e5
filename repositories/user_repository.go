package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/rmhse/rmhse_backend/models"
	"github.com/rmhse/rmhse_backend/services"
)

var _ services.UserStore = (*UserRepository)(nil)

type UserRepository struct {
	collection *mongo.Collection
}

func NewUserRepository(db *mongo.Database) *UserRepository {
	return &UserRepository{
		collection: db.Collection("users"),
	}
}

func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	if user.RoleIDs == nil {
		user.RoleIDs = []string{}
	}
	if user.Commission == nil {
		user.Commission = []models.CommissionEntry{}
	}
	result, err := r.collection.InsertOne(ctx, user)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("%w: email already registered", services.ErrConflict)
		}
		return err
	}
	if id, ok := result.InsertedID.(primitive.ObjectID); ok {
		user.ID = id
	}
	return nil
}

func (r *UserRepository) FindByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.findOne(ctx, bson.M{"email": email})
}

// FindByRoleIDInHistory relies on Mongo's array matching: {roleId: x} matches any element.
func (r *UserRepository) FindByRoleIDInHistory(ctx context.Context, roleID string) (*models.User, error) {
	return r.findOne(ctx, bson.M{"roleId": roleID})
}

func (r *UserRepository) FindByRole(ctx context.Context, role models.Role) ([]models.User, error) {
	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: 1}})
	cursor, err := r.collection.Find(ctx, bson.M{"role": role}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	users := []models.User{}
	if err := cursor.All(ctx, &users); err != nil {
		return nil, err
	}
	return users, nil
}

func (r *UserRepository) FindOneByRole(ctx context.Context, role models.Role) (*models.User, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "_id", Value: 1}})
	return r.findOne(ctx, bson.M{"role": role}, opts)
}

func (r *UserRepository) CountByReferredByIn(ctx context.Context, roleIDs []string) (int64, error) {
	if len(roleIDs) == 0 {
		return 0, nil
	}
	return r.collection.CountDocuments(ctx, bson.M{"referredBy": bson.M{"$in": roleIDs}})
}

func (r *UserRepository) CountAll(ctx context.Context) (int64, error) {
	return r.collection.CountDocuments(ctx, bson.M{})
}

func (r *UserRepository) CountByRole(ctx context.Context, role models.Role) (int64, error) {
	return r.collection.CountDocuments(ctx, bson.M{"role": role})
}

// IncrementIncomeAndAppendLedger credits income and records the ledger entry in one
// document update. The distributionId filter makes a repeated payout match nothing.
func (r *UserRepository) IncrementIncomeAndAppendLedger(ctx context.Context, id primitive.ObjectID, entry models.CommissionEntry) (bool, error) {
	filter := bson.M{"_id": id}
	if entry.DistributionID != "" {
		filter["commission.distributionId"] = bson.M{"$ne": entry.DistributionID}
	}
	update := bson.M{
		"$inc":  bson.M{"income": entry.Amount},
		"$push": bson.M{"commission": entry},
		"$set":  bson.M{"updatedAt": time.Now()},
	}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, err
	}
	return result.MatchedCount == 1, nil
}

func (r *UserRepository) Promote(ctx context.Context, id primitive.ObjectID, params models.PromoteParams) (*models.User, error) {
	filter := bson.M{"_id": id, "role": params.FromRole}
	update := bson.M{
		"$set": bson.M{
			"role":       params.Role,
			"referredBy": params.ReferredBy,
			"updatedAt":  time.Now(),
		},
		"$push": bson.M{"roleId": params.NewRoleID},
	}
	return r.findOneAndUpdate(ctx, filter, update)
}

func (r *UserRepository) Activate(ctx context.Context, id primitive.ObjectID, params models.ActivateParams) (*models.User, error) {
	filter := bson.M{"_id": id, "status": models.StatusPending}
	update := bson.M{
		"$set": bson.M{
			"status":        models.StatusActive,
			"paymentStatus": models.PaymentCompleted,
			"role":          params.Role,
			"referredBy":    params.ReferredBy,
			"joinId":        params.JoinID,
			"updatedAt":     time.Now(),
		},
		"$push": bson.M{"roleId": params.NewRoleID},
	}
	return r.findOneAndUpdate(ctx, filter, update)
}

// SaveActivationPlan sets the plan only while none is stored, so concurrent retries
// agree on the first plan written.
func (r *UserRepository) SaveActivationPlan(ctx context.Context, id primitive.ObjectID, plan models.DistributionPlan) (*models.User, error) {
	filter := bson.M{"_id": id, "activationPlan": bson.M{"$exists": false}}
	update := bson.M{"$set": bson.M{"activationPlan": plan, "updatedAt": time.Now()}}
	user, err := r.findOneAndUpdate(ctx, filter, update)
	if err != nil || user != nil {
		return user, err
	}
	return r.FindByID(ctx, id)
}

func (r *UserRepository) ListReferredBy(ctx context.Context, roleIDs []string) ([]models.ReferredUser, error) {
	if len(roleIDs) == 0 {
		return []models.ReferredUser{}, nil
	}
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"referredBy": bson.M{"$in": roleIDs}}}},
		{{Key: "$sort", Value: bson.M{"_id": 1}}},
		{{Key: "$project", Value: bson.M{
			"name":         1,
			"phoneNumber":  1,
			"status":       1,
			"role":         1,
			"income":       1,
			"latestRoleId": bson.M{"$ifNull": bson.A{bson.M{"$arrayElemAt": bson.A{"$roleId", -1}}, ""}},
		}}},
	}

	cursor, err := r.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	referred := []models.ReferredUser{}
	if err := cursor.All(ctx, &referred); err != nil {
		return nil, err
	}
	return referred, nil
}

// CommissionHistory joins every ledger entry with the user whose activation paid it.
func (r *UserRepository) CommissionHistory(ctx context.Context, id primitive.ObjectID) ([]models.CommissionRecord, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"_id": id}}},
		{{Key: "$unwind", Value: "$commission"}},
		{{Key: "$lookup", Value: bson.M{
			"from":         r.collection.Name(),
			"localField":   "commission.userId",
			"foreignField": "_id",
			"as":           "source",
		}}},
		{{Key: "$project", Value: bson.M{
			"_id":            0,
			"amount":         "$commission.amount",
			"distributionId": "$commission.distributionId",
			"createdAt":      "$commission.createdAt",
			"sourceUserName": bson.M{"$ifNull": bson.A{
				bson.M{"$arrayElemAt": bson.A{"$source.name", 0}},
				models.DeletedUserName,
			}},
			"sourceUserLatestRoleId": bson.M{"$ifNull": bson.A{
				bson.M{"$arrayElemAt": bson.A{bson.M{"$arrayElemAt": bson.A{"$source.roleId", 0}}, -1}},
				models.UnknownRoleID,
			}},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "amount", Value: -1}, {Key: "createdAt", Value: 1}}}},
	}

	cursor, err := r.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	records := []models.CommissionRecord{}
	if err := cursor.All(ctx, &records); err != nil {
		return nil, err
	}
	return records, nil
}

func (r *UserRepository) TotalIncome(ctx context.Context) (int64, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$group", Value: bson.M{"_id": nil, "total": bson.M{"$sum": "$income"}}}},
	}
	cursor, err := r.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return 0, err
	}
	defer cursor.Close(ctx)

	var rows []struct {
		Total int64 `bson:"total"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, nil
	}
	return rows[0].Total, nil
}

// AddLimit raises the limit by delta, starting from def when the stored limit is unset.
func (r *UserRepository) AddLimit(ctx context.Context, id primitive.ObjectID, delta int, def int) (*models.User, error) {
	update := mongo.Pipeline{
		{{Key: "$set", Value: bson.M{
			"limit": bson.M{"$add": bson.A{
				bson.M{"$cond": bson.A{bson.M{"$gt": bson.A{"$limit", 0}}, "$limit", def}},
				delta,
			}},
			"updatedAt": time.Now(),
		}}},
	}
	return r.findOneAndUpdate(ctx, bson.M{"_id": id}, update)
}

func (r *UserRepository) DebitIncome(ctx context.Context, id primitive.ObjectID, amount int64) (bool, error) {
	filter := bson.M{"_id": id, "income": bson.M{"$gte": amount}}
	update := bson.M{
		"$inc": bson.M{"income": -amount},
		"$set": bson.M{"updatedAt": time.Now()},
	}
	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, err
	}
	return result.MatchedCount == 1, nil
}

func (r *UserRepository) findOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) (*models.User, error) {
	var user models.User
	err := r.collection.FindOne(ctx, filter, opts...).Decode(&user)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *UserRepository) findOneAndUpdate(ctx context.Context, filter, update interface{}) (*models.User, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var user models.User
	err := r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&user)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}
