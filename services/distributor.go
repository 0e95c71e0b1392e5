package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/rmhse/rmhse_backend/models"
	"github.com/rmhse/rmhse_backend/monitoring"
)

// Payout is one credit made (or found already made) by a distribution.
type Payout struct {
	UserID  primitive.ObjectID `json:"userId"`
	Role    models.Role        `json:"role"`
	Amount  int64              `json:"amount"`
	Kind    models.PayoutKind  `json:"kind"`
	Applied bool               `json:"applied"` // false when an earlier attempt already wrote it
}

// DistributionResult summarizes one distribution run.
type DistributionResult struct {
	DistributionID string             `json:"distributionId"`
	SourceUserID   primitive.ObjectID `json:"sourceUserId"`
	Payouts        []Payout           `json:"payouts"`
	TotalPaid      int64              `json:"totalPaid"`
	Remainder      int64              `json:"remainder"`
	ChainStop      StopReason         `json:"chainStop"`
	SkippedCohort  int                `json:"skippedCohort,omitempty"`
	SinkMissing    bool               `json:"sinkMissing,omitempty"`
}

// Distributor splits the fixed budget of an activation across the referral chain,
// the flat-rate cohort and the remainder sink.
type Distributor struct {
	store     UserStore
	walker    *ChainWalker
	hierarchy Hierarchy
	notifier  PayoutNotifier
	logger    *zap.Logger
	now       func() time.Time
}

func NewDistributor(store UserStore, hierarchy Hierarchy, notifier PayoutNotifier, logger *zap.Logger) *Distributor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Distributor{
		store:     store,
		walker:    NewChainWalker(store, hierarchy, logger),
		hierarchy: hierarchy,
		notifier:  notifier,
		logger:    logger,
		now:       time.Now,
	}
}

// Distribute runs a distribution under a fresh id. Calling it twice with the same
// arguments pays every recipient twice; use DistributeOnce to make retries safe.
func (d *Distributor) Distribute(ctx context.Context, startRoleID string, sourceUserID primitive.ObjectID) (*DistributionResult, error) {
	return d.DistributeOnce(ctx, uuid.NewString(), startRoleID, sourceUserID)
}

// ActivationDistributionID is the idempotency key of the distribution an activation triggers.
func ActivationDistributionID(userID primitive.ObjectID) string {
	return "activation:" + userID.Hex()
}

// DistributeOnce plans a distribution from the current referral tree and executes it
// under distributionID. Payouts already written under the same id are skipped but still
// count toward the budget. Callers that must survive a change of the tree between
// attempts keep the plan and replay it with Execute.
func (d *Distributor) DistributeOnce(ctx context.Context, distributionID, startRoleID string, sourceUserID primitive.ObjectID) (*DistributionResult, error) {
	plan, err := d.Plan(ctx, distributionID, startRoleID, sourceUserID)
	if err != nil {
		return nil, err
	}
	return d.Execute(ctx, plan)
}

// Plan decides every credit of a distribution without writing anything: the chain
// payouts, the cohort payouts that fit in the budget and the remainder.
func (d *Distributor) Plan(ctx context.Context, distributionID, startRoleID string, sourceUserID primitive.ObjectID) (*models.DistributionPlan, error) {
	if sourceUserID.IsZero() {
		return nil, fmt.Errorf("%w: source user id is required", ErrInvalidArgument)
	}
	if distributionID == "" {
		return nil, fmt.Errorf("%w: distribution id is required", ErrInvalidArgument)
	}

	h := d.hierarchy
	plan := &models.DistributionPlan{
		DistributionID: distributionID,
		SourceUserID:   sourceUserID,
		StartRoleID:    startRoleID,
		Payouts:        []models.PlannedPayout{},
		CreatedAt:      d.now(),
	}
	log := d.logger.With(zap.String("distributionId", distributionID), zap.String("sourceUserId", sourceUserID.Hex()))
	var total int64
	add := func(recipient *models.User, amount int64, kind models.PayoutKind) {
		plan.Payouts = append(plan.Payouts, models.PlannedPayout{UserID: recipient.ID, Role: recipient.Role, Amount: amount, Kind: kind})
		total += amount
	}

	// 1. Referral chain
	if h.IsRoot(startRoleID) {
		log.Info("no upstream referrer, skipping chain payouts")
		plan.ChainStop = string(StopRoot)
	} else {
		chain := d.walker.Walk(ctx, startRoleID)
		reachedTop := false
		for {
			referrer, ok := chain.Next()
			if !ok {
				break
			}
			if amount, paid := h.ChainPayouts[referrer.Role]; paid && amount > 0 {
				add(referrer, amount, models.PayoutChain)
			}
			if referrer.Role == h.ChainTop {
				reachedTop = true
				chain.Close()
				break
			}
		}
		stop := chain.Reason()
		if reachedTop {
			stop = StopTop
		}
		plan.ChainStop = string(stop)
		monitoring.ChainStopsTotal.WithLabelValues(plan.ChainStop).Inc()
		if err := chain.Err(); err != nil {
			return nil, d.planFailed(log, fmt.Errorf("walking chain: %w", err))
		}
	}

	// 2. Flat-rate cohort
	if h.CohortPayout > 0 {
		cohort, err := d.store.FindByRole(ctx, h.CohortRole)
		if err != nil {
			return nil, d.planFailed(log, fmt.Errorf("loading %s users: %w", h.CohortRole, err))
		}
		for i := range cohort {
			if total+h.CohortPayout > h.TotalBudget {
				plan.SkippedCohort = len(cohort) - i
				log.Warn("budget exhausted before cohort was fully paid",
					zap.Int("skipped", plan.SkippedCohort), zap.Int64("planned", total))
				break
			}
			add(&cohort[i], h.CohortPayout, models.PayoutCohort)
		}
	}

	// 3. Remainder sink
	if remainder := h.TotalBudget - total; remainder > 0 {
		sink, err := d.store.FindOneByRole(ctx, h.SinkRole)
		if err != nil {
			return nil, d.planFailed(log, fmt.Errorf("loading %s user: %w", h.SinkRole, err))
		}
		if sink == nil {
			log.Warn("remainder sink not found, dropping remainder", zap.Int64("remainder", remainder))
			plan.SinkMissing = true
		} else {
			add(sink, remainder, models.PayoutRemainder)
		}
	}
	return plan, nil
}

// Execute writes the credits of plan in order. A plan whose credits exceed the budget
// is refused before anything is paid.
func (d *Distributor) Execute(ctx context.Context, plan *models.DistributionPlan) (*DistributionResult, error) {
	if plan == nil || plan.DistributionID == "" || plan.SourceUserID.IsZero() {
		return nil, fmt.Errorf("%w: incomplete distribution plan", ErrInvalidArgument)
	}
	if total := plan.Total(); total > d.hierarchy.TotalBudget {
		return nil, fmt.Errorf("%w: plan %s pays %d, budget is %d", ErrDataIntegrity, plan.DistributionID, total, d.hierarchy.TotalBudget)
	}

	result := &DistributionResult{
		DistributionID: plan.DistributionID,
		SourceUserID:   plan.SourceUserID,
		ChainStop:      StopReason(plan.ChainStop),
		SkippedCohort:  plan.SkippedCohort,
		SinkMissing:    plan.SinkMissing,
	}
	log := d.logger.With(zap.String("distributionId", plan.DistributionID), zap.String("sourceUserId", plan.SourceUserID.Hex()))
	log.Info("starting commission distribution", zap.String("startRoleId", plan.StartRoleID), zap.Int("planned", len(plan.Payouts)))

	for _, planned := range plan.Payouts {
		recipient := &models.User{ID: planned.UserID, Role: planned.Role}
		if err := d.pay(ctx, result, recipient, planned.Amount, planned.Kind); err != nil {
			return d.fail(log, result, err)
		}
		if planned.Kind == models.PayoutRemainder {
			result.Remainder += planned.Amount
		}
	}

	monitoring.DistributionsTotal.WithLabelValues("completed").Inc()
	log.Info("commission distribution completed",
		zap.Int64("totalPaid", result.TotalPaid), zap.Int("payouts", len(result.Payouts)))
	return result, nil
}

func (d *Distributor) pay(ctx context.Context, result *DistributionResult, recipient *models.User, amount int64, kind models.PayoutKind) error {
	entry := models.CommissionEntry{
		Amount:         amount,
		UserID:         result.SourceUserID,
		DistributionID: result.DistributionID,
		CreatedAt:      d.now(),
	}
	applied, err := d.store.IncrementIncomeAndAppendLedger(ctx, recipient.ID, entry)
	if err != nil {
		return fmt.Errorf("paying %d to %s %s: %w", amount, recipient.Role, recipient.ID.Hex(), err)
	}

	result.Payouts = append(result.Payouts, Payout{
		UserID:  recipient.ID,
		Role:    recipient.Role,
		Amount:  amount,
		Kind:    kind,
		Applied: applied,
	})
	result.TotalPaid += amount

	if !applied {
		d.logger.Info("payout already recorded for this distribution, skipping",
			zap.String("userId", recipient.ID.Hex()), zap.String("distributionId", result.DistributionID))
		return nil
	}

	monitoring.CommissionPayoutsTotal.WithLabelValues(string(kind), string(recipient.Role)).Inc()
	monitoring.CommissionPaidTotal.WithLabelValues(string(kind), string(recipient.Role)).Add(float64(amount))
	d.logger.Debug("paid commission",
		zap.String("userId", recipient.ID.Hex()), zap.String("role", string(recipient.Role)),
		zap.Int64("amount", amount), zap.String("kind", string(kind)))

	if d.notifier != nil {
		event := models.PayoutEvent{
			Amount:         amount,
			Kind:           kind,
			SourceUserID:   result.SourceUserID,
			DistributionID: result.DistributionID,
		}
		if err := d.notifier.NotifyPayout(recipient.ID, event); err != nil {
			d.logger.Debug("payout notification not delivered", zap.String("userId", recipient.ID.Hex()), zap.Error(err))
		}
	}
	return nil
}

func (d *Distributor) fail(log *zap.Logger, result *DistributionResult, err error) (*DistributionResult, error) {
	monitoring.DistributionsTotal.WithLabelValues("failed").Inc()
	log.Error("commission distribution aborted",
		zap.Int64("totalPaid", result.TotalPaid), zap.Int("payouts", len(result.Payouts)), zap.Error(err))
	return result, fmt.Errorf("%w: %w", ErrDistributionFailure, err)
}

func (d *Distributor) planFailed(log *zap.Logger, err error) error {
	monitoring.DistributionsTotal.WithLabelValues("failed").Inc()
	log.Error("commission distribution could not be planned", zap.Error(err))
	return fmt.Errorf("%w: %w", ErrDistributionFailure, err)
}
