package feed

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

const (
	TableRooms        = "rooms"
	TableParticipants = "participants"
	TableClues        = "clues"
	TableVotes        = "votes"

	OpInsert = "insert"
	OpUpdate = "update"
	OpDelete = "delete"
)

const subscriptionBuffer = 32

var ErrClosed = errors.New("feed closed")

// Change says that a row belonging to a room was written. Consumers re-read
// the room instead of trusting the payload.
type Change struct {
	RoomID string    `json:"room_id"`
	Table  string    `json:"table"`
	Op     string    `json:"op"`
	At     time.Time `json:"at"`
}

type Subscription interface {
	Changes() <-chan Change
	Close() error
}

// Feed fans room changes out to every subscriber of that room.
type Feed interface {
	Publish(ctx context.Context, change Change) error
	Subscribe(ctx context.Context, roomID string) (Subscription, error)
	Close() error
}

func encodeChange(change Change) ([]byte, error) {
	if change.At.IsZero() {
		change.At = time.Now().UTC()
	}
	return json.Marshal(change)
}

func decodeChange(data []byte) (Change, error) {
	var change Change
	err := json.Unmarshal(data, &change)
	return change, err
}

// deliver hands a change to a subscriber without blocking the publisher. A
// full buffer already guarantees the subscriber will refresh.
func deliver(ch chan Change, change Change) {
	select {
	case ch <- change:
	default:
	}
}
