package repository

import (
	"context"

	"storefront/internal/domain/model"
)

// 決済（テストカード/OTP）と注文作成はバックエンドに任せる。
type CheckoutRemote interface {
	GenerateTestCard(ctx context.Context, sess model.Session) (model.TestCardGrant, error)
	VerifyOTP(ctx context.Context, sess model.Session, otp string) (string, error)
	PlaceOrder(ctx context.Context, sess model.Session, req model.OrderRequest) (model.Order, error)
}
