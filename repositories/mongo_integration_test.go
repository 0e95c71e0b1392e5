package repositories_test

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/rmhse/rmhse_backend/models"
	"github.com/rmhse/rmhse_backend/repositories"
	"github.com/rmhse/rmhse_backend/services"
)

// testDatabase connects to TEST_MONGO_URI and returns a throwaway database.
func testDatabase(t *testing.T) *mongo.Database {
	t.Helper()
	uri := os.Getenv("TEST_MONGO_URI")
	if uri == "" {
		t.Skip("TEST_MONGO_URI not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		t.Skipf("mongo unreachable: %v", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		t.Skipf("mongo unreachable: %v", err)
	}

	db := client.Database(fmt.Sprintf("rmhse_test_%d", time.Now().UnixNano()))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		db.Drop(ctx)
		client.Disconnect(ctx)
	})
	return db
}

func TestMongo_DistributionAgainstRealStore(t *testing.T) {
	db := testDatabase(t)
	ctx := context.Background()
	users := repositories.NewUserRepository(db)

	create := func(name string, role models.Role, roleID, referredBy string) *models.User {
		u := &models.User{Name: name, Email: name + "@example.com", Role: role, ReferredBy: referredBy, Status: models.StatusActive}
		if roleID != "" {
			u.RoleIDs = []string{roleID}
		}
		if err := users.Create(ctx, u); err != nil {
			t.Fatalf("create %s: %v", name, err)
		}
		return u
	}
	admin := create("admin", models.RoleAdmin, "", "")
	top := create("top", models.RoleState, "STAT0101250001", models.RootReferrer)
	mid := create("mid", models.RoleDistributor, "DIST0101250002", "STAT0101250001")
	low := create("low", models.RoleDivisional, "DIV0101250003", "DIST0101250002")
	bm := create("bm", models.RoleBM, "BM0101250004", models.RootReferrer)
	source := create("src", models.RoleMember, "MEM0101250005", "DIV0101250003")

	dist := services.NewDistributor(users, services.DefaultHierarchy(), nil, nil)
	for i := 0; i < 2; i++ {
		if _, err := dist.DistributeOnce(ctx, services.ActivationDistributionID(source.ID), "DIV0101250003", source.ID); err != nil {
			t.Fatalf("DistributeOnce #%d: %v", i+1, err)
		}
	}

	want := map[*models.User]int64{low: 70, mid: 40, top: 20, bm: 10, admin: 210}
	for u, amount := range want {
		loaded, err := users.FindByID(ctx, u.ID)
		if err != nil || loaded == nil {
			t.Fatalf("load %s: %v", u.Name, err)
		}
		if loaded.Income != amount {
			t.Errorf("%s income = %d, want %d", u.Name, loaded.Income, amount)
		}
	}

	history, err := users.CommissionHistory(ctx, low.ID)
	if err != nil || len(history) != 1 || history[0].SourceUserName != "src" {
		t.Errorf("history = %+v, %v", history, err)
	}
	total, err := users.TotalIncome(ctx)
	if err != nil || total != 350 {
		t.Errorf("TotalIncome = %d, %v", total, err)
	}
}

func TestMongo_CounterIsMonotonic(t *testing.T) {
	db := testDatabase(t)
	counters := repositories.NewCounterRepository(db)
	key := services.SequenceKey("070325")

	for want := int64(1); want <= 3; want++ {
		got, err := counters.Next(context.Background(), key)
		if err != nil {
			t.Fatal(err)
		}
		if got != want {
			t.Errorf("Next = %d, want %d", got, want)
		}
	}
}

func TestMongo_RequestDecisionIsGuarded(t *testing.T) {
	db := testDatabase(t)
	ctx := context.Background()
	withdrawals := repositories.NewWithdrawalRepository(db)

	w := &models.Withdrawal{Amount: 50, Status: models.RequestPending, CreatedAt: time.Now()}
	if err := withdrawals.Create(ctx, w); err != nil {
		t.Fatal(err)
	}
	decided, err := withdrawals.Decide(ctx, w.ID, models.RequestPending, models.Decision{Status: models.RequestApproved, At: time.Now()})
	if err != nil || decided == nil || decided.Status != models.RequestApproved {
		t.Fatalf("Decide = %+v, %v", decided, err)
	}
	again, err := withdrawals.Decide(ctx, w.ID, models.RequestPending, models.Decision{Status: models.RequestRejected, At: time.Now()})
	if err != nil || again != nil {
		t.Errorf("second Decide = %+v, %v", again, err)
	}
}

func TestMongo_SaveActivationPlanKeepsFirst(t *testing.T) {
	db := testDatabase(t)
	ctx := context.Background()
	users := repositories.NewUserRepository(db)

	user := &models.User{Name: "p", Email: "p@example.com", Status: models.StatusActive}
	if err := users.Create(ctx, user); err != nil {
		t.Fatal(err)
	}
	plan := models.DistributionPlan{
		DistributionID: services.ActivationDistributionID(user.ID),
		SourceUserID:   user.ID,
		StartRoleID:    "DIV0101250001",
		Payouts:        []models.PlannedPayout{{UserID: user.ID, Role: models.RoleAdmin, Amount: 350, Kind: models.PayoutRemainder}},
	}
	saved, err := users.SaveActivationPlan(ctx, user.ID, plan)
	if err != nil || saved == nil || saved.ActivationPlan == nil || saved.ActivationPlan.Total() != 350 {
		t.Fatalf("SaveActivationPlan = %+v, %v", saved, err)
	}

	other := plan
	other.StartRoleID = "DIST0101250002"
	kept, err := users.SaveActivationPlan(ctx, user.ID, other)
	if err != nil || kept.ActivationPlan.StartRoleID != "DIV0101250001" {
		t.Errorf("second save = %+v, %v, want the first plan kept", kept.ActivationPlan, err)
	}
}
