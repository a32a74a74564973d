package feed

import (
	"context"
	"testing"
	"time"
)

func receive(t *testing.T, sub Subscription) Change {
	t.Helper()
	select {
	case change, ok := <-sub.Changes():
		if !ok {
			t.Fatalf("subscription closed")
		}
		return change
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for change")
	}
	return Change{}
}

func expectQuiet(t *testing.T, sub Subscription, wait time.Duration) {
	t.Helper()
	select {
	case change, ok := <-sub.Changes():
		if ok {
			t.Fatalf("unexpected change %#v", change)
		}
	case <-time.After(wait):
	}
}

// expectClosed drains sub and fails if the channel stays open.
func expectClosed(t *testing.T, sub Subscription) {
	t.Helper()
	deadline := time.After(time.Second)
	for {
		select {
		case _, ok := <-sub.Changes():
			if !ok {
				return
			}
		case <-deadline:
			t.Fatalf("subscription channel not closed")
		}
	}
}

func TestLocalFeedScopesByRoom(t *testing.T) {
	f := NewLocal()
	defer f.Close()
	ctx := context.Background()

	a, err := f.Subscribe(ctx, "room-a")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	b, _ := f.Subscribe(ctx, "room-b")

	if err := f.Publish(ctx, Change{RoomID: "room-a", Table: TableClues, Op: OpInsert}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	change := receive(t, a)
	if change.Table != TableClues || change.At.IsZero() {
		t.Fatalf("unexpected change %#v", change)
	}
	select {
	case change := <-b.Changes():
		t.Fatalf("room-b received %#v", change)
	default:
	}
}

func TestLocalFeedCloseSubscription(t *testing.T) {
	f := NewLocal()
	sub, _ := f.Subscribe(context.Background(), "room-a")
	if err := sub.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, ok := <-sub.Changes(); ok {
		t.Fatalf("expected closed channel")
	}
	if err := f.Publish(context.Background(), Change{RoomID: "room-a"}); err != nil {
		t.Fatalf("publish after unsubscribe: %v", err)
	}
	_ = sub.Close()

	_ = f.Close()
	if err := f.Publish(context.Background(), Change{RoomID: "room-a"}); err != ErrClosed {
		t.Fatalf("expected closed feed, got %v", err)
	}
}

func TestLocalFeedNeverBlocksPublisher(t *testing.T) {
	f := NewLocal()
	defer f.Close()
	sub, _ := f.Subscribe(context.Background(), "room-a")
	for i := 0; i < subscriptionBuffer*3; i++ {
		if err := f.Publish(context.Background(), Change{RoomID: "room-a", Table: TableVotes}); err != nil {
			t.Fatalf("publish: %v", err)
		}
	}
	if len(sub.Changes()) != subscriptionBuffer {
		t.Fatalf("expected buffer to cap at %d, got %d", subscriptionBuffer, len(sub.Changes()))
	}
}

func TestChangeCodec(t *testing.T) {
	data, err := encodeChange(Change{RoomID: "room-a", Table: TableRooms, Op: OpUpdate})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	change, err := decodeChange(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if change.RoomID != "room-a" || change.At.IsZero() {
		t.Fatalf("unexpected change %#v", change)
	}
	if natsSubject("room-a") != "impostor.room.room-a" || redisChannel("room-a") != "impostor:room:room-a" {
		t.Fatalf("unexpected routing keys")
	}
}
