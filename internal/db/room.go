package db

import (
	"time"

	"gorm.io/datatypes"
)

type Room struct {
	ID            string         `gorm:"type:uuid;primaryKey"`
	Code          string         `gorm:"size:12;uniqueIndex;not null"`
	HostUserID    string         `gorm:"size:64;not null"`
	Status        string         `gorm:"size:16;not null;index"`
	Round         int            `gorm:"not null;default:0"`
	MinPlayers    int            `gorm:"not null;default:3"`
	MaxPlayers    int            `gorm:"not null;default:10"`
	ImpostorCount int            `gorm:"not null;default:1"`
	PointsToWin   int            `gorm:"not null;default:10"`
	SecretWord    string         `gorm:"size:128;not null;default:''"`
	WinnerID      *string        `gorm:"type:uuid"`
	ResolvedRound int            `gorm:"not null;default:0"`
	Outcome       datatypes.JSON `gorm:"type:jsonb"`
	CreatedAt     time.Time      `gorm:"not null"`
	UpdatedAt     time.Time      `gorm:"not null;index"`
	Participants  []Participant  `gorm:"constraint:OnDelete:CASCADE"`
	Clues         []Clue         `gorm:"constraint:OnDelete:CASCADE"`
	Votes         []Vote         `gorm:"constraint:OnDelete:CASCADE"`
	Events        []Event        `gorm:"constraint:OnDelete:CASCADE"`
}
