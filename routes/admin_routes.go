package routes

import (
	"github.com/labstack/echo/v4"

	"github.com/rmhse/rmhse_backend/controllers"
)

// RegisterAdminRoutes sets up all admin routes. g already requires the admin role.
func RegisterAdminRoutes(g *echo.Group, adminController *controllers.AdminController) {
	g.POST("/users/:id/activate", adminController.ActivateUser)
	g.POST("/users/:id/upgrade", adminController.UpgradeUser)
	g.POST("/users/:id/distribution/retry", adminController.RetryDistribution)

	g.GET("/extends", adminController.ListExtends)
	g.PUT("/extends/:id", adminController.DecideExtend)

	g.GET("/withdrawals", adminController.ListWithdrawals)
	g.PUT("/withdrawals/:id", adminController.DecideWithdrawal)

	g.GET("/stats", adminController.GetStats)
}
