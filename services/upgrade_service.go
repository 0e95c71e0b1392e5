package services

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/rmhse/rmhse_backend/models"
	"github.com/rmhse/rmhse_backend/monitoring"
)

const referrerLockTTL = 15 * time.Second

// UpgradeService promotes users up the ladder and re-parents them under a referrer
// from the tier above that still has capacity.
type UpgradeService struct {
	store     UserStore
	ids       *IDGenerator
	locker    Locker
	hierarchy Hierarchy
	pick      func(n int) int
	logger    *zap.Logger
}

func NewUpgradeService(store UserStore, ids *IDGenerator, locker Locker, hierarchy Hierarchy, logger *zap.Logger) *UpgradeService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UpgradeService{
		store:     store,
		ids:       ids,
		locker:    locker,
		hierarchy: hierarchy,
		pick:      rand.Intn,
		logger:    logger,
	}
}

// WithPicker replaces the uniform random choice among eligible referrers.
func (s *UpgradeService) WithPicker(pick func(n int) int) *UpgradeService {
	s.pick = pick
	return s
}

// Candidate is a potential referrer together with its current downline size.
type Candidate struct {
	User      models.User
	Referrals int64
	Limit     int
}

// Upgrade promotes userID one tier.
func (s *UpgradeService) Upgrade(ctx context.Context, userID primitive.ObjectID) (*models.User, error) {
	user, err := s.store.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("loading user: %w", err)
	}
	if user == nil {
		return nil, fmt.Errorf("%w: user %s", ErrNotFound, userID.Hex())
	}

	nextRole, ok := s.hierarchy.NextRole(user.Role)
	if !ok {
		monitoring.UpgradesTotal.WithLabelValues(string(user.Role), "rejected").Inc()
		return nil, fmt.Errorf("%w: role %q cannot be upgraded", ErrInvalidState, user.Role)
	}

	tier, needsReferrer := s.hierarchy.ReferrerTier(nextRole)
	if !needsReferrer {
		s.logger.Info("user reaches the top tier, re-parenting to root",
			zap.String("userId", userID.Hex()), zap.String("role", string(nextRole)))
		return s.promote(ctx, user, nextRole, s.hierarchy.RootReferrer)
	}

	// Selection and the promote write share one lock per referrer tier so two upgrades
	// cannot both take the last free slot of the same referrer.
	unlock, err := s.locker.Lock(ctx, "upgrade:referrer-tier:"+string(tier), referrerLockTTL)
	if err != nil {
		return nil, fmt.Errorf("%w: acquiring %s referrer lock: %w", ErrConflict, tier, err)
	}
	defer unlock()

	eligible, err := s.EligibleReferrers(ctx, tier)
	if err != nil {
		monitoring.UpgradesTotal.WithLabelValues(string(nextRole), "rejected").Inc()
		return nil, err
	}

	chosen := eligible[s.pick(len(eligible))]
	referredBy := chosen.User.LatestRoleID()
	if referredBy == "" {
		monitoring.UpgradesTotal.WithLabelValues(string(nextRole), "failed").Inc()
		return nil, fmt.Errorf("%w: selected referrer %s has no role id history", ErrDataIntegrity, chosen.User.ID.Hex())
	}
	s.logger.Info("assigning new referrer",
		zap.String("userId", userID.Hex()), zap.String("referrerRoleId", referredBy),
		zap.Int64("referrerDownline", chosen.Referrals), zap.Int("referrerLimit", chosen.Limit))

	return s.promote(ctx, user, nextRole, referredBy)
}

// EligibleReferrers returns the members of tier still below their capacity.
func (s *UpgradeService) EligibleReferrers(ctx context.Context, tier models.Role) ([]Candidate, error) {
	members, err := s.store.FindByRole(ctx, tier)
	if err != nil {
		return nil, fmt.Errorf("loading %s users: %w", tier, err)
	}
	if len(members) == 0 {
		return nil, fmt.Errorf("%w: no users with the required referrer role %q", ErrConflict, tier)
	}

	eligible := make([]Candidate, 0, len(members))
	for _, member := range members {
		count, err := s.store.CountByReferredByIn(ctx, member.RoleIDs)
		if err != nil {
			return nil, fmt.Errorf("counting referrals of %s: %w", member.ID.Hex(), err)
		}
		limit := member.EffectiveLimit(s.hierarchy.DefaultLimit)
		if count < int64(limit) {
			eligible = append(eligible, Candidate{User: member, Referrals: count, Limit: limit})
		}
	}
	if len(eligible) == 0 {
		return nil, fmt.Errorf("%w: all referrers in the %q tier have reached their capacity", ErrConflict, tier)
	}
	return eligible, nil
}

func (s *UpgradeService) promote(ctx context.Context, user *models.User, nextRole models.Role, referredBy string) (*models.User, error) {
	ids, err := s.ids.Generate(ctx, nextRole)
	if err != nil {
		monitoring.UpgradesTotal.WithLabelValues(string(nextRole), "failed").Inc()
		return nil, err
	}

	updated, err := s.store.Promote(ctx, user.ID, models.PromoteParams{
		FromRole:   user.Role,
		Role:       nextRole,
		ReferredBy: referredBy,
		NewRoleID:  ids.RoleID,
	})
	if err != nil {
		monitoring.UpgradesTotal.WithLabelValues(string(nextRole), "failed").Inc()
		return nil, fmt.Errorf("promoting user: %w", err)
	}
	if updated == nil {
		monitoring.UpgradesTotal.WithLabelValues(string(nextRole), "rejected").Inc()
		return nil, fmt.Errorf("%w: user %s changed role during upgrade", ErrConflict, user.ID.Hex())
	}

	monitoring.UpgradesTotal.WithLabelValues(string(nextRole), "completed").Inc()
	s.logger.Info("user upgraded",
		zap.String("userId", user.ID.Hex()), zap.String("from", string(user.Role)),
		zap.String("to", string(nextRole)), zap.String("roleId", ids.RoleID))
	return updated, nil
}
