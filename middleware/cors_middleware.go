package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"
	echoMiddleware "github.com/labstack/echo/v4/middleware"
)

// defaultOrigins are the local front-end dev servers.
var defaultOrigins = []string{
	"http://localhost:3000",
	"http://localhost:5173",
}

// GlobalCORS creates a global CORS middleware for the default origins plus extra.
func GlobalCORS(extra []string) echo.MiddlewareFunc {
	origins := append(append([]string{}, defaultOrigins...), extra...)
	return echoMiddleware.CORSWithConfig(echoMiddleware.CORSConfig{
		AllowOrigins:     origins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowHeaders:     []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
		AllowCredentials: true,
		MaxAge:           86400, // 24 hours
	})
}
