package cache

import (
	"context"
	"errors"
	"time"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"

	pkgerrors "github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// postgresの cache_slots テーブルにカートを置く
type GormCache struct {
	db *gorm.DB
}

// DI
func NewGormCache(db *gorm.DB) *GormCache {
	return &GormCache{db: db}
}

func (g *GormCache) Load(ctx context.Context, key string) (model.Cart, error) {
	var slot model.CacheSlot

	err := g.db.WithContext(ctx).
		Where("slot_key = ?", key).
		First(&slot).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, repo.ErrNotFound
	}
	if err != nil {
		return nil, pkgerrors.Wrap(err, "cache: select slot")
	}
	return decode(slot.Payload)
}

// 同じkeyは上書き
func (g *GormCache) Save(ctx context.Context, key string, cart model.Cart) error {
	data, err := encode(cart)
	if err != nil {
		return err
	}

	slot := model.CacheSlot{Key: key, Payload: data, UpdatedAt: time.Now()}
	err = g.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "slot_key"}},
			DoUpdates: clause.AssignmentColumns([]string{"payload", "updated_at"}),
		}).
		Create(&slot).Error
	if err != nil {
		return pkgerrors.Wrap(err, "cache: upsert slot")
	}
	return nil
}

func (g *GormCache) Clear(ctx context.Context, key string) error {
	err := g.db.WithContext(ctx).
		Where("slot_key = ?", key).
		Delete(&model.CacheSlot{}).Error
	if err != nil {
		return pkgerrors.Wrap(err, "cache: delete slot")
	}
	return nil
}

var _ repo.CartCache = (*GormCache)(nil)
