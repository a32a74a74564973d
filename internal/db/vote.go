package db

import "time"

type Vote struct {
	ID        uint      `gorm:"primaryKey"`
	RoomID    string    `gorm:"type:uuid;not null;uniqueIndex:idx_votes_room_round_voter"`
	Round     int       `gorm:"not null;uniqueIndex:idx_votes_room_round_voter"`
	VoterID   string    `gorm:"type:uuid;not null;uniqueIndex:idx_votes_room_round_voter"`
	TargetID  string    `gorm:"type:uuid;not null;index"`
	CreatedAt time.Time `gorm:"not null"`
}
