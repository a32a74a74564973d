package db

import "time"

type Participant struct {
	ID         string    `gorm:"type:uuid;primaryKey"`
	RoomID     string    `gorm:"type:uuid;index;not null;uniqueIndex:idx_participants_room_user"`
	UserID     string    `gorm:"size:64;not null;uniqueIndex:idx_participants_room_user"`
	Name       string    `gorm:"size:64;not null"`
	IsImpostor bool      `gorm:"not null;default:false"`
	Eliminated bool      `gorm:"not null;default:false"`
	Ready      bool      `gorm:"not null;default:false"`
	IsBot      bool      `gorm:"not null;default:false"`
	Points     int       `gorm:"not null;default:0"`
	JoinedAt   time.Time `gorm:"not null"`
	CreatedAt  time.Time `gorm:"not null"`
	UpdatedAt  time.Time `gorm:"not null"`
}
