package cartapi

import (
	"context"
	"net/http"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"
)

type verifyOTPBody struct {
	OTP string `json:"otp"`
}

type verifyOTPResponse struct {
	PaymentID string `json:"paymentId"`
}

type orderResponse struct {
	Order model.Order `json:"order"`
}

// テストカードとOTPを発行してもらう（決済はモック）
func (c *Client) GenerateTestCard(ctx context.Context, sess model.Session) (model.TestCardGrant, error) {
	var out model.TestCardGrant
	if err := c.do(ctx, http.MethodPost, "/payments/generate-test-card", sess, struct{}{}, &out); err != nil {
		return model.TestCardGrant{}, err
	}
	if out.Card.CardNumber == "" {
		return model.TestCardGrant{}, &repo.RemoteError{
			Kind:    repo.KindRejected,
			Status:  http.StatusOK,
			Message: "missing card details",
		}
	}
	return out, nil
}

// OTPを検証してpaymentIdを受け取る
func (c *Client) VerifyOTP(ctx context.Context, sess model.Session, otp string) (string, error) {
	var out verifyOTPResponse
	if err := c.do(ctx, http.MethodPost, "/payments/verify-otp", sess, verifyOTPBody{OTP: otp}, &out); err != nil {
		return "", err
	}
	if out.PaymentID == "" {
		return "", &repo.RemoteError{
			Kind:    repo.KindRejected,
			Status:  http.StatusOK,
			Message: "missing paymentId",
		}
	}
	return out.PaymentID, nil
}

// 注文作成
func (c *Client) PlaceOrder(ctx context.Context, sess model.Session, req model.OrderRequest) (model.Order, error) {
	var out orderResponse
	if err := c.do(ctx, http.MethodPost, "/orders", sess, req, &out); err != nil {
		return model.Order{}, err
	}
	return out.Order, nil
}

var (
	_ repo.CartRemote     = (*Client)(nil)
	_ repo.CheckoutRemote = (*Client)(nil)
)
