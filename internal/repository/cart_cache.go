package repository

import (
	"context"
	"errors"

	"storefront/internal/domain/model"
)

var ErrNotFound = errors.New("not found")

// 最後に確認できたカートを保持するローカルキャッシュ。
// スロットが空なら Load は ErrNotFound を返す。
type CartCache interface {
	Load(ctx context.Context, key string) (model.Cart, error)
	Save(ctx context.Context, key string, cart model.Cart) error
	Clear(ctx context.Context, key string) error
}

// キャッシュのスロット名
func CartSlot(sessionKey string) string {
	return "cart:" + sessionKey
}
