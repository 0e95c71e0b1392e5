package routes

import (
	"github.com/labstack/echo/v4"

	"github.com/rmhse/rmhse_backend/controllers"
	"github.com/rmhse/rmhse_backend/middleware"
	"github.com/rmhse/rmhse_backend/websocket"
)

// RegisterUserRoutes sets up the member routes. g already requires a valid JWT.
func RegisterUserRoutes(g *echo.Group, userController *controllers.UserController, hub *websocket.Hub) {
	me := g.Group("/users/me")
	me.GET("", userController.GetProfile)
	me.GET("/referrals", userController.GetReferrals)
	me.GET("/referrals/count", userController.GetReferralCount)
	me.GET("/commissions", userController.GetCommissions)
	me.POST("/upgrade", userController.Upgrade)
	me.POST("/extends", userController.CreateExtend)
	me.POST("/withdrawals", userController.CreateWithdrawal)
	me.GET("/withdrawals", userController.GetWithdrawals)

	// payout notifications
	g.GET("/ws", func(c echo.Context) error {
		userID, err := middleware.ExtractUserID(c)
		if err != nil {
			return echo.ErrUnauthorized
		}
		return websocket.HandleWebSocket(c, hub, userID)
	})
}
