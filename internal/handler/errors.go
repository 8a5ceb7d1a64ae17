package handler

import (
	"context"
	"errors"
	"net/http"

	"storefront/internal/usecase"

	"github.com/labstack/echo/v4"
)

type ErrorResponse struct {
	Error string `json:"error"`
}

func writeError(c echo.Context, err error) error {
	if err == nil {
		return nil
	}
	if he, ok := usecase.AsHTTPError(err); ok {
		return c.JSON(he.Status, ErrorResponse{Error: he.Message})
	}
	if errors.Is(err, usecase.ErrBusy) || errors.Is(err, usecase.ErrSessionInUse) {
		return c.JSON(http.StatusConflict, ErrorResponse{Error: err.Error()})
	}
	if errors.Is(err, usecase.ErrNoSession) {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}
	//順番待ちの間にクライアントが切った
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "request canceled"})
	}

	//500
	return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
}
