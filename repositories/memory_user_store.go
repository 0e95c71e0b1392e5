package repositories

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/rmhse/rmhse_backend/models"
	"github.com/rmhse/rmhse_backend/services"
)

var _ services.UserStore = (*MemoryUserStore)(nil)

// MemoryUserStore keeps users in process. Each method holds the lock for its whole
// read-modify-write, which gives the same per-document atomicity as the Mongo store.
// It backs STORAGE_DRIVER=memory and the service tests.
type MemoryUserStore struct {
	mu    sync.RWMutex
	users map[primitive.ObjectID]*models.User
	order []primitive.ObjectID
}

func NewMemoryUserStore() *MemoryUserStore {
	return &MemoryUserStore{users: make(map[primitive.ObjectID]*models.User)}
}

func (s *MemoryUserStore) Create(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if user.Email != "" {
		for _, existing := range s.users {
			if existing.Email == user.Email {
				return services.ErrConflict
			}
		}
	}
	if user.ID.IsZero() {
		user.ID = primitive.NewObjectID()
	}
	if _, exists := s.users[user.ID]; exists {
		return services.ErrConflict
	}
	if user.RoleIDs == nil {
		user.RoleIDs = []string{}
	}
	s.users[user.ID] = cloneUser(user)
	s.order = append(s.order, user.ID)
	return nil
}

func (s *MemoryUserStore) FindByID(_ context.Context, id primitive.ObjectID) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneUser(s.users[id]), nil
}

func (s *MemoryUserStore) FindByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneUser(s.first(func(u *models.User) bool { return u.Email == email })), nil
}

func (s *MemoryUserStore) FindByRoleIDInHistory(_ context.Context, roleID string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneUser(s.first(func(u *models.User) bool { return u.HasRoleID(roleID) })), nil
}

func (s *MemoryUserStore) FindByRole(_ context.Context, role models.Role) ([]models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := []models.User{}
	for _, id := range s.order {
		if u := s.users[id]; u.Role == role {
			users = append(users, *cloneUser(u))
		}
	}
	return users, nil
}

func (s *MemoryUserStore) FindOneByRole(_ context.Context, role models.Role) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneUser(s.first(func(u *models.User) bool { return u.Role == role })), nil
}

func (s *MemoryUserStore) CountByReferredByIn(_ context.Context, roleIDs []string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	for _, u := range s.users {
		if containsString(roleIDs, u.ReferredBy) {
			n++
		}
	}
	return n, nil
}

func (s *MemoryUserStore) CountAll(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.users)), nil
}

func (s *MemoryUserStore) CountByRole(_ context.Context, role models.Role) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	for _, u := range s.users {
		if u.Role == role {
			n++
		}
	}
	return n, nil
}

func (s *MemoryUserStore) IncrementIncomeAndAppendLedger(_ context.Context, id primitive.ObjectID, entry models.CommissionEntry) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return false, nil
	}
	if entry.DistributionID != "" {
		for _, existing := range u.Commission {
			if existing.DistributionID == entry.DistributionID {
				return false, nil
			}
		}
	}
	u.Income += entry.Amount
	u.Commission = append(u.Commission, entry)
	u.UpdatedAt = time.Now()
	return true, nil
}

func (s *MemoryUserStore) Promote(_ context.Context, id primitive.ObjectID, params models.PromoteParams) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok || u.Role != params.FromRole {
		return nil, nil
	}
	u.Role = params.Role
	u.ReferredBy = params.ReferredBy
	u.RoleIDs = append(u.RoleIDs, params.NewRoleID)
	u.UpdatedAt = time.Now()
	return cloneUser(u), nil
}

func (s *MemoryUserStore) Activate(_ context.Context, id primitive.ObjectID, params models.ActivateParams) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok || u.Status != models.StatusPending {
		return nil, nil
	}
	u.Status = models.StatusActive
	u.PaymentStatus = models.PaymentCompleted
	u.Role = params.Role
	u.ReferredBy = params.ReferredBy
	u.JoinID = params.JoinID
	u.RoleIDs = append(u.RoleIDs, params.NewRoleID)
	u.UpdatedAt = time.Now()
	return cloneUser(u), nil
}

func (s *MemoryUserStore) SaveActivationPlan(_ context.Context, id primitive.ObjectID, plan models.DistributionPlan) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return nil, nil
	}
	if u.ActivationPlan == nil {
		u.ActivationPlan = clonePlan(&plan)
		u.UpdatedAt = time.Now()
	}
	return cloneUser(u), nil
}

func (s *MemoryUserStore) ListReferredBy(_ context.Context, roleIDs []string) ([]models.ReferredUser, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	referred := []models.ReferredUser{}
	for _, id := range s.order {
		u := s.users[id]
		if !containsString(roleIDs, u.ReferredBy) {
			continue
		}
		referred = append(referred, models.ReferredUser{
			ID:           u.ID,
			Name:         u.Name,
			PhoneNumber:  u.PhoneNumber,
			Status:       u.Status,
			Role:         u.Role,
			LatestRoleID: u.LatestRoleID(),
			Income:       u.Income,
		})
	}
	return referred, nil
}

func (s *MemoryUserStore) CommissionHistory(_ context.Context, id primitive.ObjectID) ([]models.CommissionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := []models.CommissionRecord{}
	u, ok := s.users[id]
	if !ok {
		return records, nil
	}
	for _, entry := range u.Commission {
		record := models.CommissionRecord{
			Amount:                 entry.Amount,
			SourceUserName:         models.DeletedUserName,
			SourceUserLatestRoleID: models.UnknownRoleID,
			DistributionID:         entry.DistributionID,
			CreatedAt:              entry.CreatedAt,
		}
		if source, ok := s.users[entry.UserID]; ok {
			record.SourceUserName = source.Name
			if latest := source.LatestRoleID(); latest != "" {
				record.SourceUserLatestRoleID = latest
			}
		}
		records = append(records, record)
	}
	sort.SliceStable(records, func(i, j int) bool { return records[i].Amount > records[j].Amount })
	return records, nil
}

func (s *MemoryUserStore) TotalIncome(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var total int64
	for _, u := range s.users {
		total += u.Income
	}
	return total, nil
}

func (s *MemoryUserStore) AddLimit(_ context.Context, id primitive.ObjectID, delta int, def int) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return nil, nil
	}
	u.Limit = u.EffectiveLimit(def) + delta
	u.UpdatedAt = time.Now()
	return cloneUser(u), nil
}

func (s *MemoryUserStore) DebitIncome(_ context.Context, id primitive.ObjectID, amount int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok || u.Income < amount {
		return false, nil
	}
	u.Income -= amount
	u.UpdatedAt = time.Now()
	return true, nil
}

// first returns the earliest inserted user matching pred. Callers hold the lock.
func (s *MemoryUserStore) first(pred func(*models.User) bool) *models.User {
	for _, id := range s.order {
		if u := s.users[id]; pred(u) {
			return u
		}
	}
	return nil
}

func cloneUser(u *models.User) *models.User {
	if u == nil {
		return nil
	}
	c := *u
	c.RoleIDs = append(make([]string, 0, len(u.RoleIDs)), u.RoleIDs...)
	c.Commission = append(make([]models.CommissionEntry, 0, len(u.Commission)), u.Commission...)
	c.ActivationPlan = clonePlan(u.ActivationPlan)
	return &c
}

func clonePlan(p *models.DistributionPlan) *models.DistributionPlan {
	if p == nil {
		return nil
	}
	c := *p
	c.Payouts = append(make([]models.PlannedPayout, 0, len(p.Payouts)), p.Payouts...)
	return &c
}

func containsString(values []string, v string) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}
