package room

import (
	"context"
	"sync"
	"testing"
	"time"

	"find-the-impostor/internal/feed"
	"find-the-impostor/internal/game"
	"find-the-impostor/internal/store"

	"go.uber.org/zap"
)

var testWords = []game.WordCategory{
	{Name: "animals", Words: []string{"Cat", "Dog", "Horse"}},
	{Name: "food", Words: []string{"Pizza"}},
}

type fakeTimer struct {
	mu      sync.Mutex
	stopped bool
}

func (t *fakeTimer) Stop() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	wasActive := !t.stopped
	t.stopped = true
	return wasActive
}

func (t *fakeTimer) isStopped() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopped
}

type fakeTask struct {
	delay time.Duration
	fn    func()
	timer *fakeTimer
	ran   bool
}

// fakeScheduler records scheduled work; tests fire it explicitly.
type fakeScheduler struct {
	mu    sync.Mutex
	tasks []*fakeTask
}

func (s *fakeScheduler) AfterFunc(d time.Duration, fn func()) Timer {
	s.mu.Lock()
	defer s.mu.Unlock()
	task := &fakeTask{delay: d, fn: fn, timer: &fakeTimer{}}
	s.tasks = append(s.tasks, task)
	return task.timer
}

func (s *fakeScheduler) pending() []*fakeTask {
	s.mu.Lock()
	defer s.mu.Unlock()
	pending := make([]*fakeTask, 0)
	for _, task := range s.tasks {
		if !task.ran && !task.timer.isStopped() {
			pending = append(pending, task)
		}
	}
	return pending
}

func (s *fakeScheduler) runPending() int {
	tasks := s.pending()
	for _, task := range tasks {
		s.mu.Lock()
		task.ran = true
		s.mu.Unlock()
		task.fn()
	}
	return len(tasks)
}

type testEnv struct {
	store   *store.Memory
	feed    *feed.Local
	service *Service
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	st := store.NewMemory(testWords)
	return newTestEnvWithStore(t, st, st)
}

// newTestEnvWithStore runs the service against wrapped while tests inspect
// the underlying memory store directly.
func newTestEnvWithStore(t *testing.T, mem *store.Memory, wrapped store.Store) *testEnv {
	t.Helper()
	changes := feed.NewLocal()
	t.Cleanup(func() {
		_ = changes.Close()
	})
	cfg := DefaultConfig()
	cfg.SnapshotBackoff = time.Millisecond
	return &testEnv{
		store:   mem,
		feed:    changes,
		service: NewService(wrapped, changes, game.NewSeededRand(42), zap.NewNop(), cfg),
	}
}

func testBotConfig() BotConfig {
	return BotConfig{
		ClueDelayMin: 100 * time.Millisecond,
		ClueDelayMax: 300 * time.Millisecond,
		VoteDelayMin: 200 * time.Millisecond,
		VoteDelayMax: 400 * time.Millisecond,
	}
}

// createRoomWithPlayers seats a host plus the given human users, all ready.
func (e *testEnv) createRoomWithPlayers(t *testing.T, users ...string) game.Room {
	t.Helper()
	ctx := context.Background()
	room, _, err := e.service.CreateRoom(ctx, "host", "Host")
	if err != nil {
		t.Fatalf("create room: %v", err)
	}
	for _, user := range users {
		if _, _, err := e.service.Join(ctx, room.Code, user, user); err != nil {
			t.Fatalf("join %s: %v", user, err)
		}
		if ready, err := e.service.ToggleReady(ctx, room.ID, user); err != nil || !ready {
			t.Fatalf("ready %s: %v", user, err)
		}
	}
	return room
}

func (e *testEnv) snapshot(t *testing.T, roomID string) game.Snapshot {
	t.Helper()
	snap, err := e.service.Snapshot(context.Background(), roomID)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	return snap
}

func (e *testEnv) submitAllClues(t *testing.T, roomID string) {
	t.Helper()
	for {
		snap := e.snapshot(t, roomID)
		turn := game.BuildTurnState(snap, "")
		if turn.AllCluesSubmitted {
			return
		}
		if err := e.service.SubmitClue(context.Background(), roomID, turn.Current.UserID, "clue from "+turn.Current.Name); err != nil {
			t.Fatalf("submit clue for %s: %v", turn.Current.Name, err)
		}
	}
}

func impostorAndCrew(t *testing.T, snap game.Snapshot) (game.Participant, []game.Participant) {
	t.Helper()
	var impostor game.Participant
	crew := make([]game.Participant, 0)
	found := 0
	for _, p := range game.ActiveParticipants(snap.Participants) {
		if p.IsImpostor {
			impostor = p
			found++
			continue
		}
		crew = append(crew, p)
	}
	if found != 1 {
		t.Fatalf("expected exactly one impostor, got %d", found)
	}
	return impostor, crew
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}
