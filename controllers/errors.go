package controllers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/rmhse/rmhse_backend/models"
	"github.com/rmhse/rmhse_backend/services"
)

const requestTimeout = 10 * time.Second

func requestContext(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), requestTimeout)
}

// statusFor maps a service error to the HTTP status returned to the client.
func statusFor(err error) int {
	switch {
	case errors.Is(err, services.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrInvalidState):
		return http.StatusUnprocessableEntity
	case errors.Is(err, services.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// requestLogger tags log lines with the route being served.
func requestLogger(log *zap.Logger, c echo.Context) *zap.Logger {
	return log.With(zap.String("method", c.Request().Method), zap.String("path", c.Path()))
}

// errorResponse writes the failure envelope. Internal errors keep their detail out
// of the response and in the log.
func errorResponse(c echo.Context, log *zap.Logger, err error, fallback string) error {
	status := statusFor(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		requestLogger(log, c).Error(fallback, zap.Error(err))
		message = fallback
	}
	return c.JSON(status, models.Response{
		Status:  status,
		Message: message,
	})
}

func badRequest(c echo.Context, message string) error {
	return c.JSON(http.StatusBadRequest, models.Response{
		Status:  http.StatusBadRequest,
		Message: message,
	})
}

func parseObjectID(c echo.Context, param string) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(c.Param(param))
	return id, err == nil
}
