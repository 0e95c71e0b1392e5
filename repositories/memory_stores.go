package repositories

import (
	"context"
	"sort"
	"sync"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/rmhse/rmhse_backend/models"
	"github.com/rmhse/rmhse_backend/services"
)

var (
	_ services.SequenceStore   = (*MemorySequenceStore)(nil)
	_ services.ExtendStore     = (*MemoryExtendStore)(nil)
	_ services.WithdrawalStore = (*MemoryWithdrawalStore)(nil)
)

type MemorySequenceStore struct {
	mu     sync.Mutex
	values map[string]int64
}

func NewMemorySequenceStore() *MemorySequenceStore {
	return &MemorySequenceStore{values: make(map[string]int64)}
}

func (s *MemorySequenceStore) Next(_ context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key]++
	return s.values[key], nil
}

type MemoryExtendStore struct {
	mu      sync.RWMutex
	extends map[primitive.ObjectID]models.Extend
}

func NewMemoryExtendStore() *MemoryExtendStore {
	return &MemoryExtendStore{extends: make(map[primitive.ObjectID]models.Extend)}
}

func (s *MemoryExtendStore) Create(_ context.Context, extend *models.Extend) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if extend.ID.IsZero() {
		extend.ID = primitive.NewObjectID()
	}
	s.extends[extend.ID] = *extend
	return nil
}

func (s *MemoryExtendStore) FindByID(_ context.Context, id primitive.ObjectID) (*models.Extend, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	extend, ok := s.extends[id]
	if !ok {
		return nil, nil
	}
	return &extend, nil
}

func (s *MemoryExtendStore) List(_ context.Context, userID *primitive.ObjectID, status string) ([]models.Extend, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	extends := []models.Extend{}
	for _, extend := range s.extends {
		if matchesRequest(extend.UserID, extend.Status, userID, status) {
			extends = append(extends, extend)
		}
	}
	sort.Slice(extends, func(i, j int) bool { return extends[i].CreatedAt.After(extends[j].CreatedAt) })
	return extends, nil
}

func (s *MemoryExtendStore) CountByStatus(_ context.Context, status string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	for _, extend := range s.extends {
		if extend.Status == status {
			n++
		}
	}
	return n, nil
}

func (s *MemoryExtendStore) Decide(_ context.Context, id primitive.ObjectID, from string, decision models.Decision) (*models.Extend, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	extend, ok := s.extends[id]
	if !ok || extend.Status != from {
		return nil, nil
	}
	at := decision.At
	extend.Status = decision.Status
	extend.ProcessedAt = &at
	if decision.AdminID != nil {
		extend.AdminID = decision.AdminID
	}
	if decision.AdminNote != "" {
		extend.AdminNote = decision.AdminNote
	}
	s.extends[id] = extend
	return &extend, nil
}

type MemoryWithdrawalStore struct {
	mu          sync.RWMutex
	withdrawals map[primitive.ObjectID]models.Withdrawal
}

func NewMemoryWithdrawalStore() *MemoryWithdrawalStore {
	return &MemoryWithdrawalStore{withdrawals: make(map[primitive.ObjectID]models.Withdrawal)}
}

func (s *MemoryWithdrawalStore) Create(_ context.Context, withdrawal *models.Withdrawal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if withdrawal.ID.IsZero() {
		withdrawal.ID = primitive.NewObjectID()
	}
	s.withdrawals[withdrawal.ID] = *withdrawal
	return nil
}

func (s *MemoryWithdrawalStore) FindByID(_ context.Context, id primitive.ObjectID) (*models.Withdrawal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	withdrawal, ok := s.withdrawals[id]
	if !ok {
		return nil, nil
	}
	return &withdrawal, nil
}

func (s *MemoryWithdrawalStore) List(_ context.Context, userID *primitive.ObjectID, status string) ([]models.Withdrawal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	withdrawals := []models.Withdrawal{}
	for _, withdrawal := range s.withdrawals {
		if matchesRequest(withdrawal.UserID, withdrawal.Status, userID, status) {
			withdrawals = append(withdrawals, withdrawal)
		}
	}
	sort.Slice(withdrawals, func(i, j int) bool { return withdrawals[i].CreatedAt.After(withdrawals[j].CreatedAt) })
	return withdrawals, nil
}

func (s *MemoryWithdrawalStore) CountByStatus(_ context.Context, status string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	for _, withdrawal := range s.withdrawals {
		if withdrawal.Status == status {
			n++
		}
	}
	return n, nil
}

func (s *MemoryWithdrawalStore) Decide(_ context.Context, id primitive.ObjectID, from string, decision models.Decision) (*models.Withdrawal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	withdrawal, ok := s.withdrawals[id]
	if !ok || withdrawal.Status != from {
		return nil, nil
	}
	at := decision.At
	withdrawal.Status = decision.Status
	withdrawal.ProcessedAt = &at
	if decision.AdminID != nil {
		withdrawal.AdminID = decision.AdminID
	}
	if decision.AdminNote != "" {
		withdrawal.AdminNote = decision.AdminNote
	}
	if decision.RejectionReason != "" {
		withdrawal.RejectionReason = decision.RejectionReason
	}
	s.withdrawals[id] = withdrawal
	return &withdrawal, nil
}

func matchesRequest(owner primitive.ObjectID, current string, userID *primitive.ObjectID, status string) bool {
	if userID != nil && owner != *userID {
		return false
	}
	return status == "" || current == status
}
