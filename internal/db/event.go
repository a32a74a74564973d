package db

import (
	"time"

	"gorm.io/datatypes"
)

type Event struct {
	ID            uint           `gorm:"primaryKey"`
	RoomID        string         `gorm:"type:uuid;index;not null"`
	Round         int            `gorm:"not null;default:0"`
	ParticipantID *string        `gorm:"type:uuid;index"`
	Type          string         `gorm:"size:64;not null"`
	Payload       datatypes.JSON `gorm:"type:jsonb;not null"`
	CreatedAt     time.Time      `gorm:"not null"`
}
