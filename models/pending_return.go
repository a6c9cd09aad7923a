package models

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PendingReturn 是每個位址可領回退款餘額的封存快照。
// 餘額跨期累積，提領時一次歸零。
type PendingReturn struct {
	gorm.Model

	Address uuid.UUID `gorm:"type:uuid;uniqueIndex;not null;<-:create"`
	Balance uint64    `gorm:"not null;default:0"`
}
