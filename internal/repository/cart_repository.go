package repository

import (
	"context"

	"storefront/internal/domain/model"
)

// リモートの正カート（外部REST）への操作だけを約束。
// どの呼び出しもサーバーが返したカート全体を返す。
type CartRemote interface {
	Fetch(ctx context.Context, sess model.Session) (model.Cart, error)
	Add(ctx context.Context, sess model.Session, productID string) (model.Cart, error)
	Remove(ctx context.Context, sess model.Session, productID string) (model.Cart, error)
	Clear(ctx context.Context, sess model.Session) error
}
