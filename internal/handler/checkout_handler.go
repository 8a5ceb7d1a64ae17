package handler

import (
	"net/http"

	"storefront/internal/domain/model"
	"storefront/internal/middleware"
	"storefront/internal/usecase"
	"storefront/internal/validator"

	"github.com/labstack/echo/v4"
)

// /checkoutのHTTP
type CheckoutHandler struct {
	uc *usecase.CheckoutUsecase
}

// DI
func NewCheckoutHandler(uc *usecase.CheckoutUsecase) *CheckoutHandler {
	return &CheckoutHandler{uc: uc}
}

type VerifyOTPRequest struct {
	OTP string `json:"otp"`
}

type VerifyOTPResponse struct {
	PaymentID string `json:"paymentId"`
}

type PlaceOrderRequest struct {
	ShippingAddress model.ShippingAddress `json:"shippingAddress"`
	PaymentMethod   string                `json:"paymentMethod"`
	PaymentID       string                `json:"paymentId"`
}

// 決済失敗で作られた注文も返す（注文履歴で確認できるように）
type FailedOrderResponse struct {
	Error string      `json:"error"`
	Order model.Order `json:"order"`
}

func (h *CheckoutHandler) RegisterRoutes(e *echo.Echo, auth echo.MiddlewareFunc) {
	g := e.Group("/checkout")
	g.Use(auth)

	g.POST("/test-card", h.testCard)
	g.POST("/verify-otp", h.verifyOTP)
	g.POST("/orders", h.placeOrder)
}

func (h *CheckoutHandler) testCard(c echo.Context) error {
	sess, ok := middleware.SessionFrom(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	grant, err := h.uc.IssueTestCard(c.Request().Context(), sess)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, grant)
}

func (h *CheckoutHandler) verifyOTP(c echo.Context) error {
	sess, ok := middleware.SessionFrom(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	var req VerifyOTPRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid json"})
	}

	paymentID, err := h.uc.VerifyOTP(c.Request().Context(), sess, req.OTP)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, VerifyOTPResponse{PaymentID: paymentID})
}

func (h *CheckoutHandler) placeOrder(c echo.Context) error {
	sess, ok := middleware.SessionFrom(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	var req PlaceOrderRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid json"})
	}
	method, err := validator.PaymentMethod(req.PaymentMethod)
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
	}

	out, err := h.uc.PlaceOrder(c.Request().Context(), sess, usecase.PlaceOrderInput{
		ShippingAddress: req.ShippingAddress,
		PaymentMethod:   method,
		PaymentID:       req.PaymentID,
	})
	if err != nil {
		if he, ok := usecase.AsHTTPError(err); ok && out.Order.ID != "" {
			return c.JSON(he.Status, FailedOrderResponse{Error: he.Message, Order: out.Order})
		}
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, out)
}
