package services

import (
	"fmt"

	"github.com/rmhse/rmhse_backend/models"
)

// Hierarchy holds the payout table, the promotion ladder and the capacity rules.
// It is passed into the distributor and the upgrade engine so alternate tables can
// be used without touching the algorithms.
type Hierarchy struct {
	TotalBudget  int64
	ChainPayouts map[models.Role]int64
	CohortRole   models.Role
	CohortPayout int64
	SinkRole     models.Role
	// ChainTop is the highest paid tier; the chain stops after paying it.
	ChainTop models.Role
	BaseRole models.Role
	// Ladder maps a role to the role it is promoted to.
	Ladder map[models.Role]models.Role
	// ReferrerTiers maps a promoted role to the tier its new referrer is drawn from.
	// Promoted roles missing here are re-parented to the root.
	ReferrerTiers map[models.Role]models.Role
	DefaultLimit  int
	LimitStep     int
	MaxChainDepth int
	RootReferrer  string
	// LegacyRoots are older sentinel values still found in data.
	LegacyRoots []string
	JoinPrefix  string
}

// DefaultHierarchy returns the production table.
func DefaultHierarchy() Hierarchy {
	return Hierarchy{
		TotalBudget: 350,
		ChainPayouts: map[models.Role]int64{
			models.RoleDivisional:  70,
			models.RoleDistributor: 40,
			models.RoleState:       20,
		},
		CohortRole:   models.RoleBM,
		CohortPayout: 10,
		SinkRole:     models.RoleAdmin,
		ChainTop:     models.RoleState,
		BaseRole:     models.RoleMember,
		Ladder: map[models.Role]models.Role{
			models.RoleMember:      models.RoleDivisional,
			models.RoleDivisional:  models.RoleDistributor,
			models.RoleDistributor: models.RoleState,
		},
		ReferrerTiers: map[models.Role]models.Role{
			models.RoleDivisional:  models.RoleDistributor,
			models.RoleDistributor: models.RoleState,
		},
		DefaultLimit:  25,
		LimitStep:     25,
		MaxChainDepth: 10,
		RootReferrer:  models.RootReferrer,
		LegacyRoots:   []string{"admin123"},
		JoinPrefix:    "RMHSE",
	}
}

// Validate rejects tables the engine cannot run with.
func (h Hierarchy) Validate() error {
	if h.TotalBudget <= 0 {
		return fmt.Errorf("%w: total budget must be positive", ErrInvalidArgument)
	}
	var chainMax int64
	for role, amount := range h.ChainPayouts {
		if amount < 0 {
			return fmt.Errorf("%w: negative payout for %s", ErrInvalidArgument, role)
		}
		chainMax += amount
	}
	if chainMax > h.TotalBudget {
		return fmt.Errorf("%w: chain payouts (%d) exceed budget (%d)", ErrInvalidArgument, chainMax, h.TotalBudget)
	}
	if h.CohortPayout < 0 {
		return fmt.Errorf("%w: negative cohort payout", ErrInvalidArgument)
	}
	if h.MaxChainDepth <= 0 {
		return fmt.Errorf("%w: chain depth must be positive", ErrInvalidArgument)
	}
	if h.DefaultLimit <= 0 {
		return fmt.Errorf("%w: default limit must be positive", ErrInvalidArgument)
	}
	if h.LimitStep <= 0 {
		return fmt.Errorf("%w: limit step must be positive", ErrInvalidArgument)
	}
	if h.RootReferrer == "" {
		return fmt.Errorf("%w: root referrer is required", ErrInvalidArgument)
	}
	return nil
}

// IsRoot reports whether a referredBy value points at nobody.
func (h Hierarchy) IsRoot(roleID string) bool {
	if roleID == "" || roleID == h.RootReferrer {
		return true
	}
	for _, legacy := range h.LegacyRoots {
		if roleID == legacy {
			return true
		}
	}
	return false
}

// NextRole returns the promotion target for role.
func (h Hierarchy) NextRole(role models.Role) (models.Role, bool) {
	next, ok := h.Ladder[role]
	return next, ok
}

// ReferrerTier returns the tier a user promoted to role must be re-parented under.
func (h Hierarchy) ReferrerTier(role models.Role) (models.Role, bool) {
	tier, ok := h.ReferrerTiers[role]
	return tier, ok
}
