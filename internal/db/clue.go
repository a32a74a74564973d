package db

import "time"

type Clue struct {
	ID            uint      `gorm:"primaryKey"`
	RoomID        string    `gorm:"type:uuid;not null;uniqueIndex:idx_clues_room_round_author"`
	Round         int       `gorm:"not null;uniqueIndex:idx_clues_room_round_author"`
	ParticipantID string    `gorm:"type:uuid;not null;uniqueIndex:idx_clues_room_round_author"`
	Text          string    `gorm:"size:280;not null"`
	CreatedAt     time.Time `gorm:"not null"`
}
