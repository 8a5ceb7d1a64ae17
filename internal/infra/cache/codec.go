package cache

import (
	"encoding/json"

	"storefront/internal/domain/model"

	"github.com/pkg/errors"
)

// 保存形式は CartLine のJSON配列そのもの（バージョン無し）
func decode(data []byte) (model.Cart, error) {
	var cart model.Cart
	if err := json.Unmarshal(data, &cart); err != nil {
		return nil, errors.Wrap(err, "cache: decode cart")
	}
	return cart, nil
}

func encode(cart model.Cart) ([]byte, error) {
	data, err := json.Marshal(cart)
	if err != nil {
		return nil, errors.Wrap(err, "cache: encode cart")
	}
	return data, nil
}
