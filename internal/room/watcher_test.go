package room

import (
	"context"
	"sync"
	"testing"

	"find-the-impostor/internal/game"

	"go.uber.org/zap"
)

type recordingListener struct {
	mu     sync.Mutex
	snaps  []game.Snapshot
	closed []string
}

func (l *recordingListener) RoomChanged(snap game.Snapshot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.snaps = append(l.snaps, snap)
}

func (l *recordingListener) RoomClosed(roomID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = append(l.closed, roomID)
}

func (l *recordingListener) last() (game.Snapshot, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.snaps) == 0 {
		return game.Snapshot{}, false
	}
	return l.snaps[len(l.snaps)-1], true
}

func (l *recordingListener) closedCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.closed)
}

func newTestManager(t *testing.T, env *testEnv, sched Scheduler) *Manager {
	t.Helper()
	manager := NewManager(env.service, sched, testBotConfig(), zap.NewNop())
	t.Cleanup(manager.Close)
	return manager
}

func TestManagerDrivesBotsThroughRound(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	sched := &fakeScheduler{}
	manager := newTestManager(t, env, sched)

	room, _, err := env.service.CreateRoom(ctx, "host", "Host")
	if err != nil {
		t.Fatalf("create room: %v", err)
	}
	for i := 0; i < 3; i++ {
		if _, err := env.service.AddBot(ctx, room.ID, "host"); err != nil {
			t.Fatalf("add bot: %v", err)
		}
	}
	listener := &recordingListener{}
	if _, err := manager.Listen(ctx, room.ID, listener); err != nil {
		t.Fatalf("listen: %v", err)
	}
	waitFor(t, "initial snapshot", func() bool {
		_, ok := listener.last()
		return ok
	})

	if err := env.service.StartGame(ctx, room.ID, "host"); err != nil {
		t.Fatalf("start game: %v", err)
	}
	for i := 0; i < 10; i++ {
		snap := env.snapshot(t, room.ID)
		if game.DerivePhase(snap) != game.PhaseClue {
			break
		}
		turn := game.BuildTurnState(snap, "")
		if !turn.Current.IsBot {
			if err := env.service.SubmitClue(ctx, room.ID, "host", "my clue"); err != nil {
				t.Fatalf("host clue: %v", err)
			}
			continue
		}
		waitFor(t, "bot clue scheduled", func() bool { return len(sched.pending()) > 0 })
		sched.runPending()
	}

	waitFor(t, "bot votes scheduled", func() bool { return len(sched.pending()) == 3 })
	sched.runPending()

	snap := env.snapshot(t, room.ID)
	target := ""
	for _, p := range game.ActiveParticipants(snap.Participants) {
		if p.IsBot {
			target = p.ID
			break
		}
	}
	if err := env.service.SubmitVote(ctx, room.ID, "host", target); err != nil {
		t.Fatalf("host vote: %v", err)
	}
	waitFor(t, "results snapshot", func() bool {
		last, ok := listener.last()
		return ok && game.DerivePhase(last) == game.PhaseResults
	})
	if _, err := env.service.ResolveVotes(ctx, room.ID, "host"); err != nil {
		t.Fatalf("resolve votes: %v", err)
	}
}

func TestManagerSharesWatcherPerRoom(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	manager := newTestManager(t, env, &fakeScheduler{})
	room, _, _ := env.service.CreateRoom(ctx, "host", "Host")

	first, err := manager.Watch(ctx, room.ID)
	if err != nil {
		t.Fatalf("watch: %v", err)
	}
	second, err := manager.Watch(ctx, room.ID)
	if err != nil {
		t.Fatalf("watch: %v", err)
	}
	if first != second || manager.Watching() != 1 {
		t.Fatalf("expected one watcher per room")
	}

	manager.Forget(room.ID)
	<-first.Done()
	if manager.Watching() != 0 {
		t.Fatalf("expected forgotten watcher to be dropped")
	}
}

func TestWatcherClosesWhenRoomDeleted(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	manager := newTestManager(t, env, &fakeScheduler{})
	room, _, _ := env.service.CreateRoom(ctx, "host", "Host")

	listener := &recordingListener{}
	if _, err := manager.Listen(ctx, room.ID, listener); err != nil {
		t.Fatalf("listen: %v", err)
	}
	waitFor(t, "initial snapshot", func() bool {
		_, ok := listener.last()
		return ok
	})

	if err := env.service.Leave(ctx, room.ID, "host"); err != nil {
		t.Fatalf("leave: %v", err)
	}
	waitFor(t, "room closed", func() bool { return listener.closedCount() == 1 })
	waitFor(t, "watcher dropped", func() bool { return manager.Watching() == 0 })
}

func TestRemovedListenerStopsReceiving(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	manager := newTestManager(t, env, &fakeScheduler{})
	room, _, _ := env.service.CreateRoom(ctx, "host", "Host")

	listener := &recordingListener{}
	remove, err := manager.Listen(ctx, room.ID, listener)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	waitFor(t, "initial snapshot", func() bool {
		_, ok := listener.last()
		return ok
	})
	remove()
	listener.mu.Lock()
	seen := len(listener.snaps)
	listener.mu.Unlock()

	other := &recordingListener{}
	if _, err := manager.Listen(ctx, room.ID, other); err != nil {
		t.Fatalf("listen: %v", err)
	}
	if _, _, err := env.service.Join(ctx, room.Code, "u2", "Two"); err != nil {
		t.Fatalf("join: %v", err)
	}
	waitFor(t, "join snapshot", func() bool {
		last, ok := other.last()
		return ok && len(last.Participants) == 2
	})
	listener.mu.Lock()
	defer listener.mu.Unlock()
	if len(listener.snaps) != seen {
		t.Fatalf("expected removed listener to receive nothing more")
	}
}
