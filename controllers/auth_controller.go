// controllers/auth_controller.go
package controllers

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/rmhse/rmhse_backend/middleware"
	"github.com/rmhse/rmhse_backend/models"
	"github.com/rmhse/rmhse_backend/services"
	"github.com/rmhse/rmhse_backend/utils"
)

// AuthController handles signup and token issuance
type AuthController struct {
	users     *services.UserService
	jwtSecret string
	logger    *zap.Logger
}

func NewAuthController(users *services.UserService, jwtSecret string, logger *zap.Logger) *AuthController {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthController{users: users, jwtSecret: jwtSecret, logger: logger}
}

// Signup creates a pending account. It is activated by an admin once paid.
func (ac *AuthController) Signup(c echo.Context) error {
	ctx, cancel := requestContext(c)
	defer cancel()

	var req models.SignupRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return badRequest(c, err.Error())
	}
	if err := utils.SanitizeSignup(&req.Name, &req.Email, &req.PhoneNumber); err != nil {
		return badRequest(c, err.Error())
	}

	user, err := ac.users.Register(ctx, req)
	if err != nil {
		return errorResponse(c, ac.logger, err, "Failed to create user")
	}

	return c.JSON(http.StatusCreated, models.Response{
		Status:  http.StatusCreated,
		Message: "User created successfully, awaiting payment confirmation",
		Data:    user,
	})
}

func (ac *AuthController) Login(c echo.Context) error {
	ctx, cancel := requestContext(c)
	defer cancel()

	var req models.LoginRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return badRequest(c, err.Error())
	}

	user, err := ac.users.Authenticate(ctx, req.Email, req.Password)
	if err != nil {
		if statusFor(err) == http.StatusBadRequest {
			return c.JSON(http.StatusUnauthorized, models.Response{
				Status:  http.StatusUnauthorized,
				Message: "Invalid email or password",
			})
		}
		return errorResponse(c, ac.logger, err, "Failed to log in")
	}

	token, err := middleware.GenerateJWT(ac.jwtSecret, user.ID.Hex(), user.Email, string(user.Role))
	if err != nil {
		return errorResponse(c, ac.logger, err, "Failed to generate token")
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Login successful",
		Data:    models.LoginResponse{Token: token, User: user},
	})
}
