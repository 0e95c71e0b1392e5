package routes

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rmhse/rmhse_backend/controllers"
	"github.com/rmhse/rmhse_backend/middleware"
	"github.com/rmhse/rmhse_backend/models"
	"github.com/rmhse/rmhse_backend/websocket"
)

// Controllers bundles the handlers the router needs.
type Controllers struct {
	Auth  *controllers.AuthController
	User  *controllers.UserController
	Admin *controllers.AdminController
}

// SetupRoutes configures all API routes by calling individual route registration functions
func SetupRoutes(e *echo.Echo, jwtSecret string, hub *websocket.Hub, ctrl Controllers) {
	e.Match([]string{http.MethodGet, http.MethodHead}, "/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status": "healthy",
		})
	})
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	RegisterAuthRoutes(e, ctrl.Auth)

	authenticated := e.Group("/api")
	authenticated.Use(middleware.JWTMiddleware(jwtSecret))
	RegisterUserRoutes(authenticated, ctrl.User, hub)

	admin := authenticated.Group("/admin")
	admin.Use(middleware.RequireRole(models.RoleAdmin))
	RegisterAdminRoutes(admin, ctrl.Admin)
}
