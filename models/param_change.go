package models

import (
	"time"

	"gorm.io/gorm"
)

// ParamChange 是一次參數調整的稽核紀錄。
type ParamChange struct {
	gorm.Model

	Param     string    `gorm:"type:varchar(64);not null;<-:create"`
	Value     string    `gorm:"type:text;not null;<-:create"`
	ChangedAt time.Time `gorm:"type:timestamp with time zone;not null;<-:create"`
}
