package handler

import (
	"errors"
	"net/http"
	"strings"

	"storefront/internal/usecase"

	"github.com/labstack/echo/v4"
)

// /admin/sessions：BFFが持っているカートセッションの確認と破棄
type AdminSessionHandler struct {
	sessions *usecase.SessionRegistry
}

// DI
func NewAdminSessionHandler(sessions *usecase.SessionRegistry) *AdminSessionHandler {
	return &AdminSessionHandler{sessions: sessions}
}

type SessionListResponse struct {
	Sessions []usecase.SessionInfo `json:"sessions"`
	Total    int                   `json:"total"`
}

// ADMINのみ
func (h *AdminSessionHandler) RegisterRoutes(e *echo.Echo, auth echo.MiddlewareFunc, adminOnly echo.MiddlewareFunc) {
	g := e.Group("/admin/sessions")
	g.Use(auth)
	g.Use(adminOnly)

	g.GET("", h.list)
	g.DELETE("/:id", h.forget)
}

func (h *AdminSessionHandler) list(c echo.Context) error {
	items := h.sessions.List()
	return c.JSON(http.StatusOK, SessionListResponse{Sessions: items, Total: len(items)})
}

// メモリ上のストアだけ捨てる。次のアクセスでキャッシュから作り直す。
// 使用中なら409。
func (h *AdminSessionHandler) forget(c echo.Context) error {
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid id"})
	}
	switch err := h.sessions.Forget(id); {
	case errors.Is(err, usecase.ErrUnknownSession):
		return c.JSON(http.StatusNotFound, ErrorResponse{Error: "not found"})
	case err != nil:
		return writeError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
