package model

import "time"

// ローカルキャッシュ（postgres）の1スロット
type CacheSlot struct {
	Key       string    `gorm:"primaryKey;column:slot_key;type:varchar(191)" json:"key"`
	Payload   []byte    `gorm:"type:bytea;not null" json:"payload"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

func (CacheSlot) TableName() string {
	return "cache_slots"
}
