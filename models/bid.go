package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Bid 代表一筆被接受的出價紀錄。
type Bid struct {
	gorm.Model

	PeriodID uint64    `gorm:"index;not null;<-:create"`
	ItemID   uint64    `gorm:"not null;<-:create"`
	Bidder   uuid.UUID `gorm:"type:uuid;not null;<-:create"`
	Amount   uint64    `gorm:"not null;<-:create"`
	PlacedAt time.Time `gorm:"type:timestamp with time zone;not null;<-:create"`
}
