package room

import (
	"context"
	"slices"
	"testing"

	"find-the-impostor/internal/game"

	"go.uber.org/zap"
)

func createBotRoom(t *testing.T, env *testEnv, bots int) game.Room {
	t.Helper()
	ctx := context.Background()
	room, _, err := env.service.CreateRoom(ctx, "host", "Host")
	if err != nil {
		t.Fatalf("create room: %v", err)
	}
	for i := 0; i < bots; i++ {
		if _, err := env.service.AddBot(ctx, room.ID, "host"); err != nil {
			t.Fatalf("add bot: %v", err)
		}
	}
	if err := env.service.StartGame(ctx, room.ID, "host"); err != nil {
		t.Fatalf("start game: %v", err)
	}
	return room
}

func cluesBy(snap game.Snapshot, authorID string) []game.Clue {
	clues := make([]game.Clue, 0)
	for _, clue := range snap.Clues {
		if clue.AuthorID == authorID {
			clues = append(clues, clue)
		}
	}
	return clues
}

// botTurnSnapshot advances the clue phase until a bot holds the turn.
func botTurnSnapshot(t *testing.T, env *testEnv, roomID string) (game.Snapshot, game.Participant) {
	t.Helper()
	snap := env.snapshot(t, roomID)
	turn := game.BuildTurnState(snap, "")
	if turn.Current == nil {
		t.Fatalf("expected a current turn")
	}
	if !turn.Current.IsBot {
		if err := env.service.SubmitClue(context.Background(), roomID, "host", "mine"); err != nil {
			t.Fatalf("host clue: %v", err)
		}
		snap = env.snapshot(t, roomID)
		turn = game.BuildTurnState(snap, "")
	}
	if turn.Current == nil || !turn.Current.IsBot {
		t.Fatalf("expected a bot to hold the turn")
	}
	return snap, *turn.Current
}

func TestBotDriverClueFiresOnce(t *testing.T) {
	env := newTestEnv(t)
	room := createBotRoom(t, env, 3)
	snap, bot := botTurnSnapshot(t, env, room.ID)

	sched := &fakeScheduler{}
	cfg := testBotConfig()
	driver := NewBotDriver(room.ID, env.service, sched, cfg, zap.NewNop())
	driver.Observe(snap)
	driver.Observe(snap)

	tasks := sched.pending()
	if len(tasks) != 1 || driver.Pending() != 1 {
		t.Fatalf("expected exactly one scheduled clue, got %d", len(tasks))
	}
	if tasks[0].delay < cfg.ClueDelayMin || tasks[0].delay > cfg.ClueDelayMax {
		t.Fatalf("expected delay within clue bounds, got %s", tasks[0].delay)
	}

	if ran := sched.runPending(); ran != 1 {
		t.Fatalf("expected one task to run, got %d", ran)
	}
	after := env.snapshot(t, room.ID)
	clues := cluesBy(after, bot.ID)
	if len(clues) != 1 {
		t.Fatalf("expected one bot clue, got %d", len(clues))
	}
	if !slices.Contains(game.BotVocabulary(bot.IsImpostor), clues[0].Text) {
		t.Fatalf("expected clue from the bot vocabulary, got %q", clues[0].Text)
	}

	tasks[0].fn()
	if got := len(cluesBy(env.snapshot(t, room.ID), bot.ID)); got != 1 {
		t.Fatalf("expected refire to be a no-op, got %d clues", got)
	}
	driver.Observe(snap)
	if len(sched.pending()) != 0 || driver.Pending() != 0 {
		t.Fatalf("expected no rescheduling for a triggered action")
	}
}

func TestBotDriverVotesForEveryPendingBot(t *testing.T) {
	env := newTestEnv(t)
	room := createBotRoom(t, env, 3)
	env.submitAllClues(t, room.ID)
	snap := env.snapshot(t, room.ID)
	if game.DerivePhase(snap) != game.PhaseVoting {
		t.Fatalf("expected voting phase, got %s", game.DerivePhase(snap))
	}

	sched := &fakeScheduler{}
	cfg := testBotConfig()
	driver := NewBotDriver(room.ID, env.service, sched, cfg, zap.NewNop())
	driver.Observe(snap)
	tasks := sched.pending()
	if len(tasks) != 3 {
		t.Fatalf("expected one vote per bot, got %d", len(tasks))
	}
	for _, task := range tasks {
		if task.delay < cfg.VoteDelayMin || task.delay > cfg.VoteDelayMax {
			t.Fatalf("expected delay within vote bounds, got %s", task.delay)
		}
	}
	sched.runPending()

	snap = env.snapshot(t, room.ID)
	if len(snap.Votes) != 3 {
		t.Fatalf("expected three bot votes, got %d", len(snap.Votes))
	}
	for _, vote := range snap.Votes {
		if vote.VoterID == vote.TargetID {
			t.Fatalf("bot voted for itself")
		}
		voter, _ := snap.Participant(vote.VoterID)
		if !voter.IsBot {
			t.Fatalf("expected only bots to have voted")
		}
	}
	pending := game.PendingVoters(snap)
	if len(pending) != 1 || pending[0].UserID != "host" {
		t.Fatalf("expected only the host to be pending, got %d", len(pending))
	}
}

func TestBotDriverSkipsEliminatedBots(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	room := createBotRoom(t, env, 3)
	env.submitAllClues(t, room.ID)
	snap := env.snapshot(t, room.ID)
	var kicked game.Participant
	for _, p := range game.ActiveParticipants(snap.Participants) {
		if p.IsBot {
			kicked = p
			break
		}
	}
	if err := env.service.Kick(ctx, room.ID, "host", kicked.ID); err != nil {
		t.Fatalf("kick: %v", err)
	}

	sched := &fakeScheduler{}
	driver := NewBotDriver(room.ID, env.service, sched, testBotConfig(), zap.NewNop())
	driver.Observe(env.snapshot(t, room.ID))
	if got := len(sched.pending()); got != 2 {
		t.Fatalf("expected two remaining bots to vote, got %d", got)
	}
}

func TestBotDriverDropsStaleRound(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	room := createBotRoom(t, env, 3)
	snap, bot := botTurnSnapshot(t, env, room.ID)

	sched := &fakeScheduler{}
	driver := NewBotDriver(room.ID, env.service, sched, testBotConfig(), zap.NewNop())
	driver.Observe(snap)
	tasks := sched.pending()
	if len(tasks) != 1 {
		t.Fatalf("expected one scheduled clue, got %d", len(tasks))
	}

	if _, err := env.store.RecordOutcome(ctx, room.ID, game.Outcome{Round: 1, Voided: true}); err != nil {
		t.Fatalf("record outcome: %v", err)
	}
	if err := env.store.StartRound(ctx, room.ID, game.RoundPlan{Round: 2, SecretWord: "Pizza", ImpostorIDs: []string{bot.ID}}); err != nil {
		t.Fatalf("start round: %v", err)
	}
	tasks[0].fn()

	exists, err := env.store.HasClue(ctx, room.ID, 1, bot.ID)
	if err != nil || exists {
		t.Fatalf("expected no round 1 clue after the round moved on, got %v %v", exists, err)
	}
	if clues := env.snapshot(t, room.ID).Clues; len(clues) != 0 {
		t.Fatalf("expected no round 2 clues, got %d", len(clues))
	}
}

func TestBotDriverCloseStopsTimers(t *testing.T) {
	env := newTestEnv(t)
	room := createBotRoom(t, env, 3)
	snap, _ := botTurnSnapshot(t, env, room.ID)

	sched := &fakeScheduler{}
	driver := NewBotDriver(room.ID, env.service, sched, testBotConfig(), zap.NewNop())
	driver.Observe(snap)
	driver.Close()
	if len(sched.pending()) != 0 || driver.Pending() != 0 {
		t.Fatalf("expected close to stop scheduled actions")
	}
	driver.Observe(snap)
	if len(sched.pending()) != 0 {
		t.Fatalf("expected a closed driver to ignore snapshots")
	}
}
