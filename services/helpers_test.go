package services_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/rmhse/rmhse_backend/models"
	"github.com/rmhse/rmhse_backend/repositories"
)

func seedUser(t *testing.T, store *repositories.MemoryUserStore, name string, role models.Role, roleID, referredBy string) *models.User {
	t.Helper()
	user := &models.User{
		Name:       name,
		Email:      name + "@example.com",
		Role:       role,
		RoleIDs:    []string{},
		ReferredBy: referredBy,
		Status:     models.StatusActive,
	}
	if roleID != "" {
		user.RoleIDs = append(user.RoleIDs, roleID)
	}
	if err := store.Create(context.Background(), user); err != nil {
		t.Fatalf("seeding %s: %v", name, err)
	}
	return user
}

func seedPending(t *testing.T, store *repositories.MemoryUserStore, name string) *models.User {
	t.Helper()
	user := &models.User{
		Name:    name,
		Email:   name + "@example.com",
		RoleIDs: []string{},
		Status:  models.StatusPending,
	}
	if err := store.Create(context.Background(), user); err != nil {
		t.Fatalf("seeding %s: %v", name, err)
	}
	return user
}

func incomeOf(t *testing.T, store *repositories.MemoryUserStore, id primitive.ObjectID) int64 {
	t.Helper()
	user, err := store.FindByID(context.Background(), id)
	if err != nil || user == nil {
		t.Fatalf("loading %s: %v", id.Hex(), err)
	}
	return user.Income
}

var errStoreDown = errors.New("store unavailable")

// flakyStore fails payouts to one recipient until healed.
type flakyStore struct {
	*repositories.MemoryUserStore
	mu     sync.Mutex
	failOn primitive.ObjectID
	broken bool
}

func (s *flakyStore) IncrementIncomeAndAppendLedger(ctx context.Context, id primitive.ObjectID, entry models.CommissionEntry) (bool, error) {
	s.mu.Lock()
	broken := s.broken && id == s.failOn
	s.mu.Unlock()
	if broken {
		return false, errStoreDown
	}
	return s.MemoryUserStore.IncrementIncomeAndAppendLedger(ctx, id, entry)
}

func (s *flakyStore) heal() {
	s.mu.Lock()
	s.broken = false
	s.mu.Unlock()
}

// stubSequence returns fixed values or an error.
type stubSequence struct {
	value int64
	err   error
}

func (s stubSequence) Next(context.Context, string) (int64, error) {
	return s.value, s.err
}

// debitFailingStore fails every debit with errStoreDown.
type debitFailingStore struct {
	*repositories.MemoryUserStore
}

func (debitFailingStore) DebitIncome(context.Context, primitive.ObjectID, int64) (bool, error) {
	return false, errStoreDown
}
