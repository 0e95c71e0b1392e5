package services

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/rmhse/rmhse_backend/models"
)

// UserStore is the persistence contract of the engine. Finders return (nil, nil)
// when nothing matches; the services decide whether that is an error.
type UserStore interface {
	Create(ctx context.Context, user *models.User) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	// FindByRoleIDInHistory matches against the whole roleId history, not only the latest element.
	FindByRoleIDInHistory(ctx context.Context, roleID string) (*models.User, error)
	FindByRole(ctx context.Context, role models.Role) ([]models.User, error)
	FindOneByRole(ctx context.Context, role models.Role) (*models.User, error)
	CountByReferredByIn(ctx context.Context, roleIDs []string) (int64, error)
	CountAll(ctx context.Context) (int64, error)
	CountByRole(ctx context.Context, role models.Role) (int64, error)
	// IncrementIncomeAndAppendLedger applies $inc income and $push commission in one
	// document update. It reports false when the user already holds an entry with the
	// same distribution id (or no longer exists).
	IncrementIncomeAndAppendLedger(ctx context.Context, id primitive.ObjectID, entry models.CommissionEntry) (bool, error)
	// Promote returns nil when the user is missing or no longer holds params.FromRole.
	Promote(ctx context.Context, id primitive.ObjectID, params models.PromoteParams) (*models.User, error)
	// Activate returns nil when the user is missing or not pending.
	Activate(ctx context.Context, id primitive.ObjectID, params models.ActivateParams) (*models.User, error)
	// SaveActivationPlan stores plan unless the user already holds one, and returns the
	// user with whichever plan was kept. nil when the user is missing.
	SaveActivationPlan(ctx context.Context, id primitive.ObjectID, plan models.DistributionPlan) (*models.User, error)
	ListReferredBy(ctx context.Context, roleIDs []string) ([]models.ReferredUser, error)
	CommissionHistory(ctx context.Context, id primitive.ObjectID) ([]models.CommissionRecord, error)
	TotalIncome(ctx context.Context) (int64, error)
	AddLimit(ctx context.Context, id primitive.ObjectID, delta int, def int) (*models.User, error)
	// DebitIncome subtracts amount only if the balance covers it.
	DebitIncome(ctx context.Context, id primitive.ObjectID, amount int64) (bool, error)
}

// SequenceStore hands out monotonically increasing values per key.
type SequenceStore interface {
	Next(ctx context.Context, key string) (int64, error)
}

// Locker serializes critical sections across processes.
type Locker interface {
	Lock(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}

// PayoutNotifier is told about every payout that lands.
type PayoutNotifier interface {
	NotifyPayout(userID primitive.ObjectID, event models.PayoutEvent) error
}

type ExtendStore interface {
	Create(ctx context.Context, extend *models.Extend) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Extend, error)
	List(ctx context.Context, userID *primitive.ObjectID, status string) ([]models.Extend, error)
	CountByStatus(ctx context.Context, status string) (int64, error)
	// Decide moves a request from status `from` to decision.Status; nil when it was not in `from`.
	Decide(ctx context.Context, id primitive.ObjectID, from string, decision models.Decision) (*models.Extend, error)
}

type WithdrawalStore interface {
	Create(ctx context.Context, withdrawal *models.Withdrawal) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Withdrawal, error)
	List(ctx context.Context, userID *primitive.ObjectID, status string) ([]models.Withdrawal, error)
	CountByStatus(ctx context.Context, status string) (int64, error)
	Decide(ctx context.Context, id primitive.ObjectID, from string, decision models.Decision) (*models.Withdrawal, error)
}
