package services

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/rmhse/rmhse_backend/models"
)

// ExtendService handles requests to raise a user's referral limit.
type ExtendService struct {
	extends   ExtendStore
	users     UserStore
	hierarchy Hierarchy
	logger    *zap.Logger
}

func NewExtendService(extends ExtendStore, users UserStore, hierarchy Hierarchy, logger *zap.Logger) *ExtendService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExtendService{extends: extends, users: users, hierarchy: hierarchy, logger: logger}
}

// Create files a pending request. Only active users can ask, and only one pending
// request per user is kept.
func (s *ExtendService) Create(ctx context.Context, userID primitive.ObjectID, req models.ExtendRequest) (*models.Extend, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("loading user: %w", err)
	}
	if user == nil {
		return nil, fmt.Errorf("%w: user %s", ErrNotFound, userID.Hex())
	}
	if user.Status != models.StatusActive {
		return nil, fmt.Errorf("%w: only active users can request a limit extension", ErrInvalidState)
	}

	pending, err := s.extends.List(ctx, &userID, models.RequestPending)
	if err != nil {
		return nil, fmt.Errorf("listing extends: %w", err)
	}
	if len(pending) > 0 {
		return nil, fmt.Errorf("%w: a limit extension request is already pending", ErrConflict)
	}

	extend := &models.Extend{
		UserID:    userID,
		Status:    models.RequestPending,
		Reason:    req.Reason,
		CreatedAt: time.Now(),
	}
	if err := s.extends.Create(ctx, extend); err != nil {
		return nil, fmt.Errorf("creating extend: %w", err)
	}
	return extend, nil
}

func (s *ExtendService) List(ctx context.Context, status string) ([]models.Extend, error) {
	return s.extends.List(ctx, nil, status)
}

// Decide approves or rejects a pending request. Approval raises the user's limit by
// the configured step.
func (s *ExtendService) Decide(ctx context.Context, id, adminID primitive.ObjectID, req models.DecisionRequest) (*models.Extend, error) {
	decision := models.Decision{AdminID: &adminID, AdminNote: req.Note, At: time.Now()}
	if req.Approve {
		decision.Status = models.RequestApproved
	} else {
		decision.Status = models.RequestRejected
		decision.RejectionReason = req.Note
	}

	extend, err := s.extends.Decide(ctx, id, models.RequestPending, decision)
	if err != nil {
		return nil, fmt.Errorf("updating extend: %w", err)
	}
	if extend == nil {
		return nil, s.missingOrProcessed(ctx, id)
	}
	if !req.Approve {
		return extend, nil
	}

	user, err := s.users.AddLimit(ctx, extend.UserID, s.hierarchy.LimitStep, s.hierarchy.DefaultLimit)
	if err != nil {
		return nil, fmt.Errorf("raising limit: %w", err)
	}
	if user == nil {
		return nil, fmt.Errorf("%w: user %s of extend %s", ErrNotFound, extend.UserID.Hex(), id.Hex())
	}
	s.logger.Info("limit extended",
		zap.String("userId", user.ID.Hex()), zap.Int("limit", user.Limit), zap.String("extendId", id.Hex()))
	return extend, nil
}

func (s *ExtendService) missingOrProcessed(ctx context.Context, id primitive.ObjectID) error {
	existing, err := s.extends.FindByID(ctx, id)
	if err != nil {
		return fmt.Errorf("loading extend: %w", err)
	}
	if existing == nil {
		return fmt.Errorf("%w: extend %s", ErrNotFound, id.Hex())
	}
	return fmt.Errorf("%w: extend %s is already %s", ErrInvalidState, id.Hex(), existing.Status)
}
