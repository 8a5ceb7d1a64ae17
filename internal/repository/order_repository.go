package repository

import (
	"context"

	"storefront/internal/domain/model"
)

// 注文履歴・キャンセル・管理者のステータス変更。注文の正はバックエンド。
type OrderRemote interface {
	ListOrders(ctx context.Context, sess model.Session) ([]model.Order, error)
	GetOrder(ctx context.Context, sess model.Session, orderID string) (model.Order, error)
	CancelOrder(ctx context.Context, sess model.Session, orderID string) error

	// ADMIN
	ListAllOrders(ctx context.Context, sess model.Session) ([]model.Order, error)
	UpdateOrderStatus(ctx context.Context, sess model.Session, orderID string, status string) error
}
