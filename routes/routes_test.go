package routes_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/rmhse/rmhse_backend/controllers"
	"github.com/rmhse/rmhse_backend/middleware"
	"github.com/rmhse/rmhse_backend/models"
	"github.com/rmhse/rmhse_backend/repositories"
	"github.com/rmhse/rmhse_backend/routes"
	"github.com/rmhse/rmhse_backend/services"
	"github.com/rmhse/rmhse_backend/utils"
	"github.com/rmhse/rmhse_backend/websocket"
)

const testSecret = "test-secret"

type testServer struct {
	e     *echo.Echo
	users *services.UserService
	admin *models.User
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	h := services.DefaultHierarchy()
	userStore := repositories.NewMemoryUserStore()
	extends := repositories.NewMemoryExtendStore()
	withdrawals := repositories.NewMemoryWithdrawalStore()
	ids := services.NewIDGenerator(repositories.NewMemorySequenceStore(), h.JoinPrefix, nil)

	userSvc := services.NewUserService(userStore, extends, withdrawals, h, nil)
	activationSvc := services.NewActivationService(userStore, ids, services.NewDistributor(userStore, h, nil, nil), h, nil)
	upgradeSvc := services.NewUpgradeService(userStore, ids, repositories.NewLocalLocker(), h, nil)
	extendSvc := services.NewExtendService(extends, userStore, h, nil)
	withdrawalSvc := services.NewWithdrawalService(withdrawals, userStore, nil)

	admin, _, err := userSvc.EnsureAdmin(context.Background(), "Admin", "admin@example.com", "adminpass")
	if err != nil {
		t.Fatalf("EnsureAdmin: %v", err)
	}

	e := echo.New()
	e.Validator = utils.NewValidator()
	hub := websocket.NewHub()
	go hub.Run()
	t.Cleanup(hub.Stop)

	routes.SetupRoutes(e, testSecret, hub, routes.Controllers{
		Auth:  controllers.NewAuthController(userSvc, testSecret, nil),
		User:  controllers.NewUserController(userSvc, upgradeSvc, extendSvc, withdrawalSvc, nil),
		Admin: controllers.NewAdminController(userSvc, activationSvc, upgradeSvc, extendSvc, withdrawalSvc, nil),
	})
	return &testServer{e: e, users: userSvc, admin: admin}
}

func (s *testServer) do(t *testing.T, method, path, body, token string) (*httptest.ResponseRecorder, models.Response) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)

	var resp models.Response
	if rec.Body.Len() > 0 {
		json.Unmarshal(rec.Body.Bytes(), &resp)
	}
	return rec, resp
}

func tokenFor(t *testing.T, u *models.User) string {
	t.Helper()
	token, err := middleware.GenerateJWT(testSecret, u.ID.Hex(), u.Email, string(u.Role))
	if err != nil {
		t.Fatal(err)
	}
	return token
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	rec, _ := s.do(t, http.MethodGet, "/health", "", "")
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestSignupLoginAndActivate(t *testing.T) {
	s := newTestServer(t)
	body := `{"name":"Ravi","email":"ravi@example.com","phoneNumber":"9876543210","password":"secret1"}`

	rec, _ := s.do(t, http.MethodPost, "/api/auth/signup", body, "")
	if rec.Code != http.StatusCreated {
		t.Fatalf("signup status = %d body = %s", rec.Code, rec.Body)
	}
	if rec, _ := s.do(t, http.MethodPost, "/api/auth/signup", body, ""); rec.Code != http.StatusConflict {
		t.Errorf("duplicate signup status = %d", rec.Code)
	}
	if rec, _ := s.do(t, http.MethodPost, "/api/auth/signup", `{"name":"x"}`, ""); rec.Code != http.StatusBadRequest {
		t.Errorf("invalid signup status = %d", rec.Code)
	}

	if rec, _ := s.do(t, http.MethodPost, "/api/auth/login", `{"email":"ravi@example.com","password":"nope"}`, ""); rec.Code != http.StatusUnauthorized {
		t.Errorf("bad login status = %d", rec.Code)
	}
	rec, _ = s.do(t, http.MethodPost, "/api/auth/login", `{"email":"ravi@example.com","password":"secret1"}`, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("login status = %d", rec.Code)
	}
	var login struct {
		Data models.LoginResponse `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &login); err != nil || login.Data.Token == "" {
		t.Fatalf("login body = %s", rec.Body)
	}
	member := login.Data.User

	// members cannot reach admin routes
	activatePath := "/api/admin/users/" + member.ID.Hex() + "/activate"
	memberToken, err := middleware.GenerateJWT(testSecret, member.ID.Hex(), member.Email, string(models.RoleMember))
	if err != nil {
		t.Fatal(err)
	}
	if rec, _ := s.do(t, http.MethodPost, activatePath, `{"paymentVerified":true}`, memberToken); rec.Code != http.StatusForbidden {
		t.Errorf("member activation status = %d, want 403", rec.Code)
	}

	adminToken := tokenFor(t, s.admin)
	if rec, _ := s.do(t, http.MethodPost, activatePath, `{"paymentVerified":false}`, adminToken); rec.Code != http.StatusPaymentRequired {
		t.Errorf("unpaid activation status = %d, want 402", rec.Code)
	}
	rec, _ = s.do(t, http.MethodPost, activatePath, `{"paymentVerified":true}`, adminToken)
	if rec.Code != http.StatusOK {
		t.Fatalf("activation status = %d body = %s", rec.Code, rec.Body)
	}
	if rec, _ := s.do(t, http.MethodPost, activatePath, `{"paymentVerified":true}`, adminToken); rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("second activation status = %d, want 422", rec.Code)
	}

	rec, resp := s.do(t, http.MethodGet, "/api/users/me", "", login.Data.Token)
	if rec.Code != http.StatusOK {
		t.Fatalf("profile status = %d", rec.Code)
	}
	profile, _ := resp.Data.(map[string]interface{})
	if profile["status"] != models.StatusActive {
		t.Errorf("profile = %v", profile)
	}

	// nobody holds the DIST role yet
	if rec, _ := s.do(t, http.MethodPost, "/api/users/me/upgrade", "", login.Data.Token); rec.Code != http.StatusConflict {
		t.Errorf("upgrade status = %d, want 409", rec.Code)
	}

	rec, _ = s.do(t, http.MethodGet, "/api/admin/stats", "", adminToken)
	if rec.Code != http.StatusOK {
		t.Errorf("stats status = %d", rec.Code)
	}
}

func TestAuthenticationRequired(t *testing.T) {
	s := newTestServer(t)
	if rec, _ := s.do(t, http.MethodGet, "/api/users/me", "", ""); rec.Code != http.StatusUnauthorized {
		t.Errorf("missing token status = %d", rec.Code)
	}
	if rec, _ := s.do(t, http.MethodGet, "/api/users/me", "", "garbage"); rec.Code != http.StatusUnauthorized {
		t.Errorf("bad token status = %d", rec.Code)
	}
	if rec, _ := s.do(t, http.MethodPost, "/api/admin/users/nothex/activate", `{"paymentVerified":true}`, tokenFor(t, s.admin)); rec.Code != http.StatusBadRequest {
		t.Errorf("bad id status = %d", rec.Code)
	}
}

func TestWithdrawalRoutes(t *testing.T) {
	s := newTestServer(t)
	member, err := s.users.Register(context.Background(), models.SignupRequest{Name: "M", Email: "m@example.com", Password: "secret1"})
	if err != nil {
		t.Fatal(err)
	}
	token := tokenFor(t, member)

	// pending users cannot withdraw
	if rec, _ := s.do(t, http.MethodPost, "/api/users/me/withdrawals", `{"amount":10}`, token); rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("pending withdrawal status = %d, want 422", rec.Code)
	}
	if rec, _ := s.do(t, http.MethodPost, "/api/users/me/withdrawals", `{"amount":0}`, token); rec.Code != http.StatusBadRequest {
		t.Errorf("zero withdrawal status = %d, want 400", rec.Code)
	}
	rec, resp := s.do(t, http.MethodGet, "/api/users/me/withdrawals", "", token)
	if rec.Code != http.StatusOK {
		t.Errorf("list status = %d", rec.Code)
	}
	if list, ok := resp.Data.([]interface{}); !ok || len(list) != 0 {
		t.Errorf("withdrawals = %v", resp.Data)
	}
}
