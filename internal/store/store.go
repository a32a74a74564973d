package store

import (
	"context"
	"errors"
	"time"

	"find-the-impostor/internal/game"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrDuplicate = errors.New("duplicate")
	ErrStale     = errors.New("stale round")
)

// Settings are the host-editable room limits.
type Settings struct {
	MinPlayers    int
	MaxPlayers    int
	ImpostorCount int
	PointsToWin   int
}

type Event struct {
	RoomID    string
	Round     int
	ActorID   string
	Type      string
	Payload   map[string]any
	CreatedAt time.Time
}

// Store is the persistence contract shared by the in-memory and Postgres
// backends. Clues are unique per (room, round, author) and votes per
// (room, round, voter); a second insert returns ErrDuplicate.
type Store interface {
	CreateRoom(ctx context.Context, room game.Room, host game.Participant) (game.Room, game.Participant, error)
	Room(ctx context.Context, roomID string) (game.Room, error)
	RoomByCode(ctx context.Context, code string) (game.Room, error)
	Snapshot(ctx context.Context, roomID string) (game.Snapshot, error)

	AddParticipant(ctx context.Context, participant game.Participant) (game.Participant, error)
	SetReady(ctx context.Context, roomID, participantID string, ready bool) error
	RemoveParticipant(ctx context.Context, roomID, participantID string) error
	MarkEliminated(ctx context.Context, roomID, participantID string) error
	UpdateSettings(ctx context.Context, roomID string, settings Settings) error
	TransferHost(ctx context.Context, roomID, hostUserID string) error

	InsertClue(ctx context.Context, clue game.Clue) error
	InsertVote(ctx context.Context, vote game.Vote) error
	HasClue(ctx context.Context, roomID string, round int, authorID string) (bool, error)
	HasVote(ctx context.Context, roomID string, round int, voterID string) (bool, error)

	// StartRound writes the round number, secret word and impostor flags in
	// one step and clears the previous outcome. Round 1 requires a waiting
	// room; round N+1 requires round N to be resolved. Otherwise it returns
	// ErrStale.
	StartRound(ctx context.Context, roomID string, plan game.RoundPlan) error
	// RecordOutcome stores the outcome and applies its point changes once per
	// round. A repeated call returns the outcome stored first.
	RecordOutcome(ctx context.Context, roomID string, outcome game.Outcome) (game.Outcome, error)
	FinishRoom(ctx context.Context, roomID, winnerID string) error
	DeleteRoom(ctx context.Context, roomID string) error
	ExpireRooms(ctx context.Context, cutoff time.Time) ([]string, error)

	WordCategories(ctx context.Context) ([]game.WordCategory, error)

	AppendEvent(ctx context.Context, event Event) error
	Events(ctx context.Context, roomID string) ([]Event, error)
}
