package services

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/rmhse/rmhse_backend/models"
	"github.com/rmhse/rmhse_backend/monitoring"
)

// ActivationResult is the activated user and the distribution it triggered.
type ActivationResult struct {
	User         *models.User        `json:"user"`
	Distribution *DistributionResult `json:"distribution,omitempty"`
}

// ActivationService turns a paid pending user into an active member.
type ActivationService struct {
	store       UserStore
	ids         *IDGenerator
	distributor *Distributor
	hierarchy   Hierarchy
	logger      *zap.Logger
}

func NewActivationService(store UserStore, ids *IDGenerator, distributor *Distributor, hierarchy Hierarchy, logger *zap.Logger) *ActivationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ActivationService{store: store, ids: ids, distributor: distributor, hierarchy: hierarchy, logger: logger}
}

// Activate assigns the first role identifier and triggers the commission
// distribution. If the distribution fails the user stays active and the returned
// result carries the user next to an ErrDistributionFailure; RetryDistribution
// completes it without paying anyone twice.
func (s *ActivationService) Activate(ctx context.Context, userID primitive.ObjectID, referrerRoleID string) (*ActivationResult, error) {
	user, err := s.store.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("loading user: %w", err)
	}
	if user == nil {
		return nil, fmt.Errorf("%w: user %s", ErrNotFound, userID.Hex())
	}
	if user.Status != models.StatusPending {
		monitoring.ActivationsTotal.WithLabelValues("rejected").Inc()
		return nil, fmt.Errorf("%w: user %s is %q, only pending users can be activated", ErrInvalidState, userID.Hex(), user.Status)
	}
	referredBy := referrerRoleID
	if s.hierarchy.IsRoot(referredBy) {
		referredBy = s.hierarchy.RootReferrer
	}

	ids, err := s.ids.Generate(ctx, s.hierarchy.BaseRole)
	if err != nil {
		monitoring.ActivationsTotal.WithLabelValues("failed").Inc()
		return nil, err
	}

	activated, err := s.store.Activate(ctx, userID, models.ActivateParams{
		Role:       s.hierarchy.BaseRole,
		ReferredBy: referredBy,
		JoinID:     ids.JoinID,
		NewRoleID:  ids.RoleID,
	})
	if err != nil {
		monitoring.ActivationsTotal.WithLabelValues("failed").Inc()
		return nil, fmt.Errorf("activating user: %w", err)
	}
	if activated == nil {
		monitoring.ActivationsTotal.WithLabelValues("rejected").Inc()
		return nil, fmt.Errorf("%w: user %s was activated concurrently", ErrConflict, userID.Hex())
	}
	s.logger.Info("user activated, distributing income",
		zap.String("userId", userID.Hex()), zap.String("roleId", ids.RoleID), zap.String("referredBy", referredBy))

	result := &ActivationResult{User: activated}
	dist, err := s.distribute(ctx, activated)
	result.Distribution = dist
	if err != nil {
		monitoring.ActivationsTotal.WithLabelValues("distribution_failed").Inc()
		return result, err
	}

	monitoring.ActivationsTotal.WithLabelValues("completed").Inc()
	return result, nil
}

// RetryDistribution completes the activation distribution of an active user. It
// replays the plan fixed at activation, so recipients added to the tree since then
// are not paid and payouts already recorded are not repeated.
func (s *ActivationService) RetryDistribution(ctx context.Context, userID primitive.ObjectID) (*DistributionResult, error) {
	user, err := s.store.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("loading user: %w", err)
	}
	if user == nil {
		return nil, fmt.Errorf("%w: user %s", ErrNotFound, userID.Hex())
	}
	if user.Status != models.StatusActive {
		return nil, fmt.Errorf("%w: user %s is not active", ErrInvalidState, userID.Hex())
	}

	s.logger.Info("retrying activation distribution",
		zap.String("userId", userID.Hex()), zap.Bool("planned", user.ActivationPlan != nil))
	return s.distribute(ctx, user)
}

// distribute executes the stored activation plan, planning and storing it first when
// the user has none. No payout is written before the plan is stored.
func (s *ActivationService) distribute(ctx context.Context, user *models.User) (*DistributionResult, error) {
	plan := user.ActivationPlan
	if plan == nil {
		planned, err := s.distributor.Plan(ctx, ActivationDistributionID(user.ID), user.ReferredBy, user.ID)
		if err != nil {
			return nil, err
		}
		stored, err := s.store.SaveActivationPlan(ctx, user.ID, *planned)
		if err != nil {
			return nil, fmt.Errorf("%w: saving plan: %w", ErrDistributionFailure, err)
		}
		if stored == nil || stored.ActivationPlan == nil {
			return nil, fmt.Errorf("%w: user %s disappeared before its plan was stored", ErrNotFound, user.ID.Hex())
		}
		plan = stored.ActivationPlan
	}
	return s.distributor.Execute(ctx, plan)
}
