// controllers/user_controller.go
package controllers

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/rmhse/rmhse_backend/middleware"
	"github.com/rmhse/rmhse_backend/models"
	"github.com/rmhse/rmhse_backend/services"
)

// UserController serves the authenticated member's own account
type UserController struct {
	users       *services.UserService
	upgrades    *services.UpgradeService
	extends     *services.ExtendService
	withdrawals *services.WithdrawalService
	logger      *zap.Logger
}

func NewUserController(users *services.UserService, upgrades *services.UpgradeService, extends *services.ExtendService, withdrawals *services.WithdrawalService, logger *zap.Logger) *UserController {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserController{users: users, upgrades: upgrades, extends: extends, withdrawals: withdrawals, logger: logger}
}

// ReferralCount is the body of GET /api/users/me/referrals/count.
type ReferralCount struct {
	Count     int64 `json:"count"`
	Limit     int   `json:"limit"`
	Remaining int64 `json:"remaining"`
}

func currentUserID(c echo.Context) (primitive.ObjectID, bool) {
	userID, err := middleware.ExtractUserID(c)
	return userID, err == nil
}

func invalidToken(c echo.Context) error {
	return c.JSON(http.StatusUnauthorized, models.Response{
		Status:  http.StatusUnauthorized,
		Message: "Invalid user ID in token",
	})
}

// GetProfile handler gets the current user's profile
func (uc *UserController) GetProfile(c echo.Context) error {
	ctx, cancel := requestContext(c)
	defer cancel()

	userID, ok := currentUserID(c)
	if !ok {
		return invalidToken(c)
	}
	user, err := uc.users.GetUser(ctx, userID)
	if err != nil {
		return errorResponse(c, uc.logger, err, "Failed to find user")
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Profile retrieved successfully",
		Data:    user,
	})
}

func (uc *UserController) GetReferrals(c echo.Context) error {
	ctx, cancel := requestContext(c)
	defer cancel()

	userID, ok := currentUserID(c)
	if !ok {
		return invalidToken(c)
	}
	referred, err := uc.users.Referrals(ctx, userID)
	if err != nil {
		return errorResponse(c, uc.logger, err, "Failed to fetch referred users")
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Referred users fetched successfully",
		Data:    referred,
	})
}

func (uc *UserController) GetReferralCount(c echo.Context) error {
	ctx, cancel := requestContext(c)
	defer cancel()

	userID, ok := currentUserID(c)
	if !ok {
		return invalidToken(c)
	}
	count, limit, err := uc.users.ReferralCount(ctx, userID)
	if err != nil {
		return errorResponse(c, uc.logger, err, "Failed to count referrals")
	}

	remaining := int64(limit) - count
	if remaining < 0 {
		remaining = 0
	}
	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Referral count fetched successfully",
		Data:    ReferralCount{Count: count, Limit: limit, Remaining: remaining},
	})
}

func (uc *UserController) GetCommissions(c echo.Context) error {
	ctx, cancel := requestContext(c)
	defer cancel()

	userID, ok := currentUserID(c)
	if !ok {
		return invalidToken(c)
	}
	history, err := uc.users.CommissionHistory(ctx, userID)
	if err != nil {
		return errorResponse(c, uc.logger, err, "Failed to fetch commission history")
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Commission history fetched successfully",
		Data:    history,
	})
}

// Upgrade promotes the caller one tier.
func (uc *UserController) Upgrade(c echo.Context) error {
	ctx, cancel := requestContext(c)
	defer cancel()

	userID, ok := currentUserID(c)
	if !ok {
		return invalidToken(c)
	}
	user, err := uc.upgrades.Upgrade(ctx, userID)
	if err != nil {
		return errorResponse(c, uc.logger, err, "Failed to upgrade role")
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Role upgraded to " + string(user.Role),
		Data:    user,
	})
}

func (uc *UserController) CreateExtend(c echo.Context) error {
	ctx, cancel := requestContext(c)
	defer cancel()

	userID, ok := currentUserID(c)
	if !ok {
		return invalidToken(c)
	}
	var req models.ExtendRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	extend, err := uc.extends.Create(ctx, userID, req)
	if err != nil {
		return errorResponse(c, uc.logger, err, "Failed to create limit extension request")
	}

	return c.JSON(http.StatusCreated, models.Response{
		Status:  http.StatusCreated,
		Message: "Limit extension request submitted",
		Data:    extend,
	})
}

func (uc *UserController) CreateWithdrawal(c echo.Context) error {
	ctx, cancel := requestContext(c)
	defer cancel()

	userID, ok := currentUserID(c)
	if !ok {
		return invalidToken(c)
	}
	var req models.WithdrawalRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return badRequest(c, err.Error())
	}

	withdrawal, err := uc.withdrawals.Create(ctx, userID, req)
	if err != nil {
		return errorResponse(c, uc.logger, err, "Failed to create withdrawal request")
	}

	return c.JSON(http.StatusCreated, models.Response{
		Status:  http.StatusCreated,
		Message: "Withdrawal request submitted",
		Data:    withdrawal,
	})
}

func (uc *UserController) GetWithdrawals(c echo.Context) error {
	ctx, cancel := requestContext(c)
	defer cancel()

	userID, ok := currentUserID(c)
	if !ok {
		return invalidToken(c)
	}
	withdrawals, err := uc.withdrawals.List(ctx, &userID, c.QueryParam("status"))
	if err != nil {
		return errorResponse(c, uc.logger, err, "Failed to fetch withdrawals")
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Withdrawals fetched successfully",
		Data:    withdrawals,
	})
}
