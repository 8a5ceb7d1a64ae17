package server

import (
	"storefront/internal/config"
	"storefront/internal/handler"
	"storefront/internal/middleware"

	"github.com/labstack/echo/v4"
)

type Handlers struct {
	Cart         *handler.CartHandler
	Checkout     *handler.CheckoutHandler
	AdminSession *handler.AdminSessionHandler
	Order        *handler.OrderHandler
	AdminOrder   *handler.AdminOrderHandler
	Health       *handler.HealthHandler

	// カート変更系に掛ける（nilなら無し）
	CartMutate []echo.MiddlewareFunc
}

func RegisterRoutes(e *echo.Echo, cfg config.Config, h Handlers) {
	auth := middleware.AuthJWT(cfg)

	h.Health.RegisterRoutes(e)
	h.Cart.RegisterRoutes(e, auth, h.CartMutate...)
	h.Checkout.RegisterRoutes(e, auth)
	adminOnly := middleware.AdminRoleGuard()
	h.AdminSession.RegisterRoutes(e, auth, adminOnly)
	if h.Order != nil {
		h.Order.RegisterRoutes(e, auth)
	}
	if h.AdminOrder != nil {
		h.AdminOrder.RegisterRoutes(e, auth, adminOnly)
	}
}
