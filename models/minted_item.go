package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// MintedItem 是鑄造閘門發行商品的封存紀錄。
// Winner 與 WinningAmount 由結標事件恰好寫入一次。
type MintedItem struct {
	gorm.Model

	ItemID        uint64     `gorm:"uniqueIndex;not null;<-:create"`
	Owner         uuid.UUID  `gorm:"type:uuid;not null"`
	MintedAt      time.Time  `gorm:"type:timestamp with time zone;not null;<-:create"`
	Deadline      time.Time  `gorm:"type:timestamp with time zone;not null;<-:create"`
	Winner        *uuid.UUID `gorm:"type:uuid"`
	WinningAmount uint64     `gorm:"not null;default:0"`
}
