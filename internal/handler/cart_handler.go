package handler

import (
	"context"
	"net/http"

	"storefront/internal/domain/model"
	"storefront/internal/middleware"
	"storefront/internal/usecase"
	"storefront/internal/validator"

	"github.com/labstack/echo/v4"
)

// /cartのHTTP
type CartHandler struct {
	sessions *usecase.SessionRegistry
}

// DI
func NewCartHandler(sessions *usecase.SessionRegistry) *CartHandler {
	return &CartHandler{sessions: sessions}
}

type CartItemRequest struct {
	ProductID string `json:"productId"`
}

// カートの状態と金額
type StateResponse struct {
	model.State
	Totals model.Totals `json:"totals"`
}

func newStateResponse(st model.State) StateResponse {
	return StateResponse{State: st, Totals: model.ComputeTotals(st.Cart)}
}

// /cart を登録。mutate は追加・削除・クリアにだけ掛ける（レート制限など）
func (h *CartHandler) RegisterRoutes(e *echo.Echo, auth echo.MiddlewareFunc, mutate ...echo.MiddlewareFunc) {
	g := e.Group("/cart")
	g.Use(auth)

	g.GET("", h.getCart)
	g.POST("/fetch", h.fetch)
	g.POST("/add", h.add, mutate...)
	g.POST("/remove", h.remove, mutate...)
	g.POST("/clear", h.clear, mutate...)
}

// 初回はキャッシュの内容を返し、サーバーとの突き合わせは裏で進む
func (h *CartHandler) getCart(c echo.Context) error {
	return h.run(c, func(_ context.Context, s *usecase.CartStore) (model.State, error) {
		return s.Snapshot(), nil
	})
}

func (h *CartHandler) fetch(c echo.Context) error {
	return h.run(c, func(ctx context.Context, s *usecase.CartStore) (model.State, error) {
		return s.Fetch(ctx)
	})
}

func (h *CartHandler) add(c echo.Context) error {
	var req CartItemRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid json"})
	}
	productID, err := validator.ProductID(req.ProductID)
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid productId"})
	}
	return h.run(c, func(ctx context.Context, s *usecase.CartStore) (model.State, error) {
		return s.Add(ctx, productID)
	})
}

func (h *CartHandler) remove(c echo.Context) error {
	var req CartItemRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid json"})
	}
	productID, err := validator.ProductID(req.ProductID)
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid productId"})
	}
	return h.run(c, func(ctx context.Context, s *usecase.CartStore) (model.State, error) {
		return s.Remove(ctx, productID)
	})
}

func (h *CartHandler) clear(c echo.Context) error {
	return h.run(c, func(ctx context.Context, s *usecase.CartStore) (model.State, error) {
		return s.Clear(ctx)
	})
}

// リモートの失敗は200でerrorに入れて返す。409はゲートを取れなかったとき。
// ストアは応答を作り終えるまで借りておく。
func (h *CartHandler) run(c echo.Context, op func(ctx context.Context, s *usecase.CartStore) (model.State, error)) error {
	sess, ok := middleware.SessionFrom(c)
	if !ok {
		return writeError(c, usecase.ErrNoSession)
	}
	ctx := c.Request().Context()

	var st model.State
	err := h.sessions.Use(ctx, sess, func(store *usecase.CartStore) error {
		var err error
		st, err = op(ctx, store)
		return err
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, newStateResponse(st))
}
