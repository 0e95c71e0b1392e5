package services

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/rmhse/rmhse_backend/models"
)

const (
	insufficientIncome = "insufficient income"
	debitFailed        = "income could not be debited"
)

// WithdrawalService lets members cash out income. The balance is only debited on
// approval, through a guarded decrement.
type WithdrawalService struct {
	withdrawals WithdrawalStore
	users       UserStore
	logger      *zap.Logger
}

func NewWithdrawalService(withdrawals WithdrawalStore, users UserStore, logger *zap.Logger) *WithdrawalService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WithdrawalService{withdrawals: withdrawals, users: users, logger: logger}
}

func (s *WithdrawalService) Create(ctx context.Context, userID primitive.ObjectID, req models.WithdrawalRequest) (*models.Withdrawal, error) {
	if req.Amount <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", ErrInvalidArgument)
	}
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("loading user: %w", err)
	}
	if user == nil {
		return nil, fmt.Errorf("%w: user %s", ErrNotFound, userID.Hex())
	}
	if user.Status != models.StatusActive {
		return nil, fmt.Errorf("%w: only active users can withdraw", ErrInvalidState)
	}
	if req.Amount > user.Income {
		return nil, fmt.Errorf("%w: requested %d but income is %d", ErrInvalidArgument, req.Amount, user.Income)
	}

	withdrawal := &models.Withdrawal{
		UserID:    userID,
		Amount:    req.Amount,
		Status:    models.RequestPending,
		UserNote:  req.UserNote,
		CreatedAt: time.Now(),
	}
	if err := s.withdrawals.Create(ctx, withdrawal); err != nil {
		return nil, fmt.Errorf("creating withdrawal: %w", err)
	}
	return withdrawal, nil
}

func (s *WithdrawalService) List(ctx context.Context, userID *primitive.ObjectID, status string) ([]models.Withdrawal, error) {
	return s.withdrawals.List(ctx, userID, status)
}

// Decide approves or rejects a pending withdrawal. An approval whose debit fails
// because the balance dropped in the meantime is turned into a rejection.
func (s *WithdrawalService) Decide(ctx context.Context, id, adminID primitive.ObjectID, req models.DecisionRequest) (*models.Withdrawal, error) {
	now := time.Now()
	decision := models.Decision{AdminID: &adminID, AdminNote: req.Note, At: now}
	if req.Approve {
		decision.Status = models.RequestApproved
	} else {
		decision.Status = models.RequestRejected
		decision.RejectionReason = req.Note
	}

	withdrawal, err := s.withdrawals.Decide(ctx, id, models.RequestPending, decision)
	if err != nil {
		return nil, fmt.Errorf("updating withdrawal: %w", err)
	}
	if withdrawal == nil {
		existing, err := s.withdrawals.FindByID(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("loading withdrawal: %w", err)
		}
		if existing == nil {
			return nil, fmt.Errorf("%w: withdrawal %s", ErrNotFound, id.Hex())
		}
		return nil, fmt.Errorf("%w: withdrawal %s is already %s", ErrInvalidState, id.Hex(), existing.Status)
	}
	if !req.Approve {
		return withdrawal, nil
	}

	debited, err := s.users.DebitIncome(ctx, withdrawal.UserID, withdrawal.Amount)
	if err != nil {
		s.logger.Error("withdrawal approved but debit failed, rejecting",
			zap.String("withdrawalId", id.Hex()), zap.Int64("amount", withdrawal.Amount), zap.Error(err))
		if revertErr := s.revert(ctx, id, adminID, req.Note, debitFailed, now); revertErr != nil {
			return nil, fmt.Errorf("debiting income: %w (reverting withdrawal: %v)", err, revertErr)
		}
		return nil, fmt.Errorf("debiting income: %w", err)
	}
	if !debited {
		s.logger.Warn("withdrawal approved but balance no longer covers it, rejecting",
			zap.String("withdrawalId", id.Hex()), zap.Int64("amount", withdrawal.Amount))
		if err := s.revert(ctx, id, adminID, req.Note, insufficientIncome, now); err != nil {
			return nil, fmt.Errorf("reverting withdrawal: %w", err)
		}
		return nil, fmt.Errorf("%w: %s", ErrConflict, insufficientIncome)
	}

	s.logger.Info("withdrawal approved",
		zap.String("withdrawalId", id.Hex()), zap.String("userId", withdrawal.UserID.Hex()), zap.Int64("amount", withdrawal.Amount))
	return withdrawal, nil
}

// revert moves an approved withdrawal whose debit did not happen to rejected. It runs
// even when ctx has expired, since an expired deadline is a common cause of the failed debit.
func (s *WithdrawalService) revert(ctx context.Context, id, adminID primitive.ObjectID, note, reason string, at time.Time) error {
	_, err := s.withdrawals.Decide(context.WithoutCancel(ctx), id, models.RequestApproved, models.Decision{
		Status:          models.RequestRejected,
		AdminID:         &adminID,
		AdminNote:       note,
		RejectionReason: reason,
		At:              at,
	})
	return err
}
