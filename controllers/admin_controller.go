// controllers/admin_controller.go
package controllers

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/rmhse/rmhse_backend/middleware"
	"github.com/rmhse/rmhse_backend/models"
	"github.com/rmhse/rmhse_backend/services"
)

// AdminController exposes activation, upgrades and request moderation to admins
type AdminController struct {
	users       *services.UserService
	activations *services.ActivationService
	upgrades    *services.UpgradeService
	extends     *services.ExtendService
	withdrawals *services.WithdrawalService
	logger      *zap.Logger
}

func NewAdminController(users *services.UserService, activations *services.ActivationService, upgrades *services.UpgradeService, extends *services.ExtendService, withdrawals *services.WithdrawalService, logger *zap.Logger) *AdminController {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AdminController{
		users:       users,
		activations: activations,
		upgrades:    upgrades,
		extends:     extends,
		withdrawals: withdrawals,
		logger:      logger,
	}
}

// ActivateUser marks a paid user active and distributes the activation income.
func (ac *AdminController) ActivateUser(c echo.Context) error {
	ctx, cancel := requestContext(c)
	defer cancel()

	userID, ok := parseObjectID(c, "id")
	if !ok {
		return badRequest(c, "Invalid user ID")
	}
	var req models.ActivationRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if !req.PaymentVerified {
		return c.JSON(http.StatusPaymentRequired, models.Response{
			Status:  http.StatusPaymentRequired,
			Message: "Payment has not been verified",
		})
	}

	result, err := ac.activations.Activate(ctx, userID, req.ReferredBy)
	if err != nil {
		// The user is active even though the distribution stopped part way.
		if errors.Is(err, services.ErrDistributionFailure) && result != nil {
			requestLogger(ac.logger, c).Error("activation distribution failed",
				zap.String("userId", userID.Hex()), zap.Error(err))
			return c.JSON(http.StatusAccepted, models.Response{
				Status:  http.StatusAccepted,
				Message: "User activated but commission distribution failed, retry the distribution",
				Data:    result,
			})
		}
		return errorResponse(c, ac.logger, err, "Failed to activate user")
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "User activated and income distributed",
		Data:    result,
	})
}

// UpgradeUser promotes a user one tier on their behalf.
func (ac *AdminController) UpgradeUser(c echo.Context) error {
	ctx, cancel := requestContext(c)
	defer cancel()

	userID, ok := parseObjectID(c, "id")
	if !ok {
		return badRequest(c, "Invalid user ID")
	}
	user, err := ac.upgrades.Upgrade(ctx, userID)
	if err != nil {
		return errorResponse(c, ac.logger, err, "Failed to upgrade role")
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Role upgraded to " + string(user.Role),
		Data:    user,
	})
}

func (ac *AdminController) RetryDistribution(c echo.Context) error {
	ctx, cancel := requestContext(c)
	defer cancel()

	userID, ok := parseObjectID(c, "id")
	if !ok {
		return badRequest(c, "Invalid user ID")
	}
	result, err := ac.activations.RetryDistribution(ctx, userID)
	if err != nil {
		return errorResponse(c, ac.logger, err, "Failed to retry distribution")
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Distribution completed",
		Data:    result,
	})
}

func (ac *AdminController) ListExtends(c echo.Context) error {
	ctx, cancel := requestContext(c)
	defer cancel()

	extends, err := ac.extends.List(ctx, c.QueryParam("status"))
	if err != nil {
		return errorResponse(c, ac.logger, err, "Failed to fetch limit extension requests")
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Limit extension requests fetched successfully",
		Data:    extends,
	})
}

func (ac *AdminController) DecideExtend(c echo.Context) error {
	ctx, cancel := requestContext(c)
	defer cancel()

	id, ok := parseObjectID(c, "id")
	if !ok {
		return badRequest(c, "Invalid request ID")
	}
	adminID, err := middleware.ExtractUserID(c)
	if err != nil {
		return badRequest(c, "Invalid admin ID in token")
	}
	var req models.DecisionRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	extend, err := ac.extends.Decide(ctx, id, adminID, req)
	if err != nil {
		return errorResponse(c, ac.logger, err, "Failed to process limit extension request")
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Limit extension request " + extend.Status,
		Data:    extend,
	})
}

func (ac *AdminController) ListWithdrawals(c echo.Context) error {
	ctx, cancel := requestContext(c)
	defer cancel()

	withdrawals, err := ac.withdrawals.List(ctx, nil, c.QueryParam("status"))
	if err != nil {
		return errorResponse(c, ac.logger, err, "Failed to fetch withdrawals")
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Withdrawals fetched successfully",
		Data:    withdrawals,
	})
}

func (ac *AdminController) DecideWithdrawal(c echo.Context) error {
	ctx, cancel := requestContext(c)
	defer cancel()

	id, ok := parseObjectID(c, "id")
	if !ok {
		return badRequest(c, "Invalid withdrawal ID")
	}
	adminID, err := middleware.ExtractUserID(c)
	if err != nil {
		return badRequest(c, "Invalid admin ID in token")
	}
	var req models.DecisionRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	withdrawal, err := ac.withdrawals.Decide(ctx, id, adminID, req)
	if err != nil {
		return errorResponse(c, ac.logger, err, "Failed to process withdrawal")
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Withdrawal " + withdrawal.Status,
		Data:    withdrawal,
	})
}

func (ac *AdminController) GetStats(c echo.Context) error {
	ctx, cancel := requestContext(c)
	defer cancel()

	stats, err := ac.users.Stats(ctx)
	if err != nil {
		return errorResponse(c, ac.logger, err, "Failed to fetch stats")
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Stats fetched successfully",
		Data:    stats,
	})
}
