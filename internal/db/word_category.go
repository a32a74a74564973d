package db

import (
	"time"

	"gorm.io/datatypes"
)

type WordCategory struct {
	ID        uint           `gorm:"primaryKey"`
	Name      string         `gorm:"size:64;uniqueIndex;not null"`
	Words     datatypes.JSON `gorm:"type:jsonb;not null"`
	CreatedAt time.Time      `gorm:"not null"`
	UpdatedAt time.Time      `gorm:"not null"`
}
