package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/rmhse/rmhse_backend/models"
)

// UserService covers registration and the read side of a member's account.
type UserService struct {
	users       UserStore
	extends     ExtendStore
	withdrawals WithdrawalStore
	hierarchy   Hierarchy
	logger      *zap.Logger
}

func NewUserService(users UserStore, extends ExtendStore, withdrawals WithdrawalStore, hierarchy Hierarchy, logger *zap.Logger) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserService{users: users, extends: extends, withdrawals: withdrawals, hierarchy: hierarchy, logger: logger}
}

// Register creates a pending user. The account stays pending until an admin
// activates it after payment.
func (s *UserService) Register(ctx context.Context, req models.SignupRequest) (*models.User, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	existing, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("checking email: %w", err)
	}
	if existing != nil {
		return nil, fmt.Errorf("%w: email already registered", ErrConflict)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	now := time.Now()
	user := &models.User{
		Name:          strings.TrimSpace(req.Name),
		Email:         email,
		Password:      string(hashed),
		PhoneNumber:   req.PhoneNumber,
		RoleIDs:       []string{},
		Commission:    []models.CommissionEntry{},
		Limit:         s.hierarchy.DefaultLimit,
		Status:        models.StatusPending,
		PaymentStatus: models.PaymentPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("creating user: %w", err)
	}
	s.logger.Info("user registered", zap.String("userId", user.ID.Hex()))
	return user, nil
}

// EnsureAdmin creates the admin account when none exists. The admin is the
// remainder sink of every distribution, so the service seeds one at startup.
func (s *UserService) EnsureAdmin(ctx context.Context, name, email, password string) (*models.User, bool, error) {
	existing, err := s.users.FindOneByRole(ctx, models.RoleAdmin)
	if err != nil {
		return nil, false, fmt.Errorf("looking up admin: %w", err)
	}
	if existing != nil {
		return existing, false, nil
	}
	if email == "" || password == "" {
		return nil, false, fmt.Errorf("%w: admin credentials are required to seed the admin account", ErrInvalidArgument)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, false, fmt.Errorf("hashing password: %w", err)
	}
	now := time.Now()
	admin := &models.User{
		Name:          name,
		Email:         strings.ToLower(strings.TrimSpace(email)),
		Password:      string(hashed),
		Role:          models.RoleAdmin,
		RoleIDs:       []string{},
		Commission:    []models.CommissionEntry{},
		Status:        models.StatusActive,
		PaymentStatus: models.PaymentCompleted,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.users.Create(ctx, admin); err != nil {
		return nil, false, fmt.Errorf("creating admin: %w", err)
	}
	s.logger.Info("admin account seeded", zap.String("userId", admin.ID.Hex()))
	return admin, true, nil
}

// Authenticate checks an email/password pair.
func (s *UserService) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	user, err := s.users.FindByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return nil, fmt.Errorf("loading user: %w", err)
	}
	if user == nil {
		return nil, fmt.Errorf("%w: invalid credentials", ErrInvalidArgument)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, fmt.Errorf("%w: invalid credentials", ErrInvalidArgument)
	}
	return user, nil
}

func (s *UserService) GetUser(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("loading user: %w", err)
	}
	if user == nil {
		return nil, fmt.Errorf("%w: user %s", ErrNotFound, id.Hex())
	}
	return user, nil
}

// Referrals lists the users whose referredBy matches any of the user's role ids.
func (s *UserService) Referrals(ctx context.Context, id primitive.ObjectID) ([]models.ReferredUser, error) {
	user, err := s.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	if len(user.RoleIDs) == 0 {
		return []models.ReferredUser{}, nil
	}
	return s.users.ListReferredBy(ctx, user.RoleIDs)
}

// ReferralCount is the downline size that counts against the user's limit.
func (s *UserService) ReferralCount(ctx context.Context, id primitive.ObjectID) (int64, int, error) {
	user, err := s.GetUser(ctx, id)
	if err != nil {
		return 0, 0, err
	}
	limit := user.EffectiveLimit(s.hierarchy.DefaultLimit)
	if len(user.RoleIDs) == 0 {
		return 0, limit, nil
	}
	count, err := s.users.CountByReferredByIn(ctx, user.RoleIDs)
	if err != nil {
		return 0, 0, fmt.Errorf("counting referrals: %w", err)
	}
	return count, limit, nil
}

// CommissionHistory returns the ledger joined with its source users, largest first.
func (s *UserService) CommissionHistory(ctx context.Context, id primitive.ObjectID) ([]models.CommissionRecord, error) {
	if _, err := s.GetUser(ctx, id); err != nil {
		return nil, err
	}
	return s.users.CommissionHistory(ctx, id)
}

func (s *UserService) Stats(ctx context.Context) (*models.Stats, error) {
	total, err := s.users.CountAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("counting users: %w", err)
	}
	stats := &models.Stats{TotalUsers: total, UsersByRole: make(map[models.Role]int64, len(models.Roles))}
	for _, role := range models.Roles {
		n, err := s.users.CountByRole(ctx, role)
		if err != nil {
			return nil, fmt.Errorf("counting %s users: %w", role, err)
		}
		stats.UsersByRole[role] = n
	}
	if stats.TotalIncome, err = s.users.TotalIncome(ctx); err != nil {
		return nil, fmt.Errorf("summing income: %w", err)
	}
	if stats.PendingExtends, err = s.extends.CountByStatus(ctx, models.RequestPending); err != nil {
		return nil, fmt.Errorf("counting extends: %w", err)
	}
	if stats.PendingWithdrawals, err = s.withdrawals.CountByStatus(ctx, models.RequestPending); err != nil {
		return nil, fmt.Errorf("counting withdrawals: %w", err)
	}
	return stats, nil
}
