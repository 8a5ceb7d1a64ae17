package cache

import (
	"context"
	"sync"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"
)

// メモリ上のキャッシュ。JSONで持つのでシリアライズ経路は他のドライバと同じ。
type MemoryCache struct {
	mu    sync.RWMutex
	slots map[string][]byte
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{slots: make(map[string][]byte)}
}

func (m *MemoryCache) Load(ctx context.Context, key string) (model.Cart, error) {
	m.mu.RLock()
	data, ok := m.slots[key]
	m.mu.RUnlock()
	if !ok {
		return nil, repo.ErrNotFound
	}
	return decode(data)
}

func (m *MemoryCache) Save(ctx context.Context, key string, cart model.Cart) error {
	data, err := encode(cart)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.slots[key] = data
	m.mu.Unlock()
	return nil
}

func (m *MemoryCache) Clear(ctx context.Context, key string) error {
	m.mu.Lock()
	delete(m.slots, key)
	m.mu.Unlock()
	return nil
}

// テストで中身を確認する用
func (m *MemoryCache) Raw(key string) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.slots[key]
	return data, ok
}

var _ repo.CartCache = (*MemoryCache)(nil)
