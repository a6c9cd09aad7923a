package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AuctionPeriod 是一期拍賣的封存紀錄，由同步 worker 依事件串流寫入。
// 狀態機本身的權威狀態在記憶體中，這裡的資料供查詢與對外索引使用。
type AuctionPeriod struct {
	gorm.Model

	PeriodID      uint64     `gorm:"uniqueIndex;not null;<-:create"`
	ItemID        uint64     `gorm:"not null;<-:create"`
	StartTime     time.Time  `gorm:"type:timestamp with time zone;not null;<-:create"`
	EndTime       time.Time  `gorm:"type:timestamp with time zone;not null;<-:create"`
	StartingPrice uint64     `gorm:"not null;<-:create"`
	HighestBid    uint64     `gorm:"not null;default:0"`
	HighestBidder *uuid.UUID `gorm:"type:uuid"`
	Ended         bool       `gorm:"not null;default:false"`
	Claimed       bool       `gorm:"not null;default:false"`
}
