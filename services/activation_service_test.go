package services_test

import (
	"context"
	"errors"
	"testing"

	"github.com/rmhse/rmhse_backend/models"
	"github.com/rmhse/rmhse_backend/repositories"
	"github.com/rmhse/rmhse_backend/services"
)

func newActivationService(store services.UserStore) *services.ActivationService {
	h := services.DefaultHierarchy()
	ids := services.NewIDGenerator(repositories.NewMemorySequenceStore(), h.JoinPrefix, nil).WithClock(fixedClock)
	return services.NewActivationService(store, ids, services.NewDistributor(store, h, nil, nil), h, nil)
}

func TestActivate_AssignsIDsAndDistributes(t *testing.T) {
	f := newChainFixture(t)
	pending := seedPending(t, f.store, "newbie")

	result, err := newActivationService(f.store).Activate(context.Background(), pending.ID, "DIV0101250003")
	if err != nil {
		t.Fatalf("Activate: %v", err)
	}
	user := result.User
	if user.Status != models.StatusActive || user.PaymentStatus != models.PaymentCompleted {
		t.Errorf("status = %q payment = %q", user.Status, user.PaymentStatus)
	}
	if user.Role != models.RoleMember || user.JoinID != "RMHSE0703250001" {
		t.Errorf("role = %q joinId = %q", user.Role, user.JoinID)
	}
	if len(user.RoleIDs) != 1 || user.RoleIDs[0] != "MEM0703250001" {
		t.Errorf("RoleIDs = %v", user.RoleIDs)
	}
	if user.ReferredBy != "DIV0101250003" {
		t.Errorf("ReferredBy = %q", user.ReferredBy)
	}
	if result.Distribution == nil || result.Distribution.TotalPaid != 350 {
		t.Fatalf("distribution = %+v", result.Distribution)
	}
	if result.Distribution.DistributionID != services.ActivationDistributionID(pending.ID) {
		t.Errorf("DistributionID = %q", result.Distribution.DistributionID)
	}
	if got := incomeOf(t, f.store, f.a.ID); got != 70 {
		t.Errorf("referrer income = %d, want 70", got)
	}
}

func TestActivate_WithoutReferrerUsesRoot(t *testing.T) {
	f := newChainFixture(t)
	pending := seedPending(t, f.store, "orphan")

	result, err := newActivationService(f.store).Activate(context.Background(), pending.ID, "")
	if err != nil {
		t.Fatalf("Activate: %v", err)
	}
	if result.User.ReferredBy != models.RootReferrer {
		t.Errorf("ReferredBy = %q, want root", result.User.ReferredBy)
	}
	if got := incomeOf(t, f.store, f.admin.ID); got != 330 {
		t.Errorf("admin income = %d, want 330", got)
	}
}

func TestActivate_Rejections(t *testing.T) {
	f := newChainFixture(t)
	svc := newActivationService(f.store)

	if _, err := svc.Activate(context.Background(), f.d.ID, ""); !errors.Is(err, services.ErrInvalidState) {
		t.Errorf("active user: err = %v, want ErrInvalidState", err)
	}
	missing := &models.User{}
	if _, err := svc.Activate(context.Background(), missing.ID, ""); !errors.Is(err, services.ErrNotFound) {
		t.Errorf("missing user: err = %v, want ErrNotFound", err)
	}

	pending := seedPending(t, f.store, "twice")
	if _, err := svc.Activate(context.Background(), pending.ID, ""); err != nil {
		t.Fatalf("first activation: %v", err)
	}
	if _, err := svc.Activate(context.Background(), pending.ID, ""); !errors.Is(err, services.ErrInvalidState) {
		t.Errorf("second activation: err = %v, want ErrInvalidState", err)
	}
}

func TestActivate_DistributionFailureIsRetryable(t *testing.T) {
	f := newChainFixture(t)
	flaky := &flakyStore{MemoryUserStore: f.store, failOn: f.c.ID, broken: true}
	svc := newActivationService(flaky)
	pending := seedPending(t, f.store, "unlucky")

	result, err := svc.Activate(context.Background(), pending.ID, "DIV0101250003")
	if !errors.Is(err, services.ErrDistributionFailure) {
		t.Fatalf("err = %v, want ErrDistributionFailure", err)
	}
	if result == nil || result.User == nil || result.User.Status != models.StatusActive {
		t.Fatalf("user must stay active after a failed distribution: %+v", result)
	}

	if _, err := svc.RetryDistribution(context.Background(), pending.ID); !errors.Is(err, services.ErrDistributionFailure) {
		t.Fatalf("retry while store is down: err = %v", err)
	}

	flaky.heal()
	dist, err := svc.RetryDistribution(context.Background(), pending.ID)
	if err != nil {
		t.Fatalf("RetryDistribution: %v", err)
	}
	if dist.TotalPaid != 350 {
		t.Errorf("TotalPaid = %d, want 350", dist.TotalPaid)
	}
	assertIncomes(t, f.incomes(t), map[string]int64{
		"a": 70, "b": 40, "c": 20, "bm1": 10, "bm2": 10, "admin": 200,
	})
}

func TestRetryDistribution_RequiresActiveUser(t *testing.T) {
	store := repositories.NewMemoryUserStore()
	pending := seedPending(t, store, "waiting")

	if _, err := newActivationService(store).RetryDistribution(context.Background(), pending.ID); !errors.Is(err, services.ErrInvalidState) {
		t.Errorf("err = %v, want ErrInvalidState", err)
	}
}

// activationLedgerTotal sums every ledger entry written under the activation of source.
func activationLedgerTotal(t *testing.T, store *repositories.MemoryUserStore, source *models.User) int64 {
	t.Helper()
	id := services.ActivationDistributionID(source.ID)
	var total int64
	for _, role := range models.Roles {
		users, err := store.FindByRole(context.Background(), role)
		if err != nil {
			t.Fatalf("FindByRole(%s): %v", role, err)
		}
		for _, u := range users {
			for _, entry := range u.Commission {
				if entry.DistributionID == id {
					total += entry.Amount
				}
			}
		}
	}
	return total
}

func TestRetryDistribution_IgnoresCohortMembersAddedLater(t *testing.T) {
	f := newChainFixture(t)
	svc := newActivationService(f.store)
	pending := seedPending(t, f.store, "early")

	if _, err := svc.Activate(context.Background(), pending.ID, "DIV0101250003"); err != nil {
		t.Fatalf("Activate: %v", err)
	}
	bm3 := seedUser(t, f.store, "bm3", models.RoleBM, "BM0101250009", models.RootReferrer)

	dist, err := svc.RetryDistribution(context.Background(), pending.ID)
	if err != nil {
		t.Fatalf("RetryDistribution: %v", err)
	}
	for _, payout := range dist.Payouts {
		if payout.Applied {
			t.Errorf("retry applied a payout to %s", payout.UserID.Hex())
		}
	}
	if got := incomeOf(t, f.store, bm3.ID); got != 0 {
		t.Errorf("late BM income = %d, want 0", got)
	}
	if got := activationLedgerTotal(t, f.store, pending); got != 350 {
		t.Errorf("ledger total = %d, want 350", got)
	}
}

func TestRetryDistribution_ReplaysPlanAfterReparenting(t *testing.T) {
	f := newChainFixture(t)
	flaky := &flakyStore{MemoryUserStore: f.store, failOn: f.c.ID, broken: true}
	svc := newActivationService(flaky)
	pending := seedPending(t, f.store, "mover")

	if _, err := svc.Activate(context.Background(), pending.ID, "DIV0101250003"); !errors.Is(err, services.ErrDistributionFailure) {
		t.Fatalf("err = %v, want ErrDistributionFailure", err)
	}

	// a second distributor joins and the member is re-parented under it
	b2 := seedUser(t, f.store, "b2", models.RoleDistributor, "DIST0101250009", "STAT0101250001")
	upgraded, err := newUpgradeService(f.store).WithPicker(func(n int) int { return n - 1 }).Upgrade(context.Background(), pending.ID)
	if err != nil {
		t.Fatalf("Upgrade: %v", err)
	}
	if upgraded.ReferredBy != "DIST0101250009" {
		t.Fatalf("ReferredBy = %q, want the new distributor", upgraded.ReferredBy)
	}

	flaky.heal()
	dist, err := svc.RetryDistribution(context.Background(), pending.ID)
	if err != nil {
		t.Fatalf("RetryDistribution: %v", err)
	}
	if dist.TotalPaid != 350 {
		t.Errorf("TotalPaid = %d, want 350", dist.TotalPaid)
	}
	if got := incomeOf(t, f.store, b2.ID); got != 0 {
		t.Errorf("new distributor income = %d, want 0", got)
	}
	assertIncomes(t, f.incomes(t), map[string]int64{
		"a": 70, "b": 40, "c": 20, "bm1": 10, "bm2": 10, "admin": 200,
	})
	if got := activationLedgerTotal(t, f.store, pending); got != 350 {
		t.Errorf("ledger total = %d, want 350", got)
	}
}
