package room

import (
	"context"
	"sync"
	"time"

	"find-the-impostor/internal/game"

	"go.uber.org/zap"
)

const botActionTimeout = 5 * time.Second

type BotConfig struct {
	ClueDelayMin time.Duration
	ClueDelayMax time.Duration
	VoteDelayMin time.Duration
	VoteDelayMax time.Duration
}

func DefaultBotConfig() BotConfig {
	return BotConfig{
		ClueDelayMin: time.Second,
		ClueDelayMax: 3 * time.Second,
		VoteDelayMin: time.Second,
		VoteDelayMax: 4 * time.Second,
	}
}

// Timer is the handle returned by a Scheduler.
type Timer interface {
	Stop() bool
}

// Scheduler runs fn once after d. Production uses time.AfterFunc.
type Scheduler interface {
	AfterFunc(d time.Duration, fn func()) Timer
}

type clockScheduler struct{}

func (clockScheduler) AfterFunc(d time.Duration, fn func()) Timer {
	return time.AfterFunc(d, fn)
}

func NewClockScheduler() Scheduler {
	return clockScheduler{}
}

type botAction string

const (
	botActionClue botAction = "clue"
	botActionVote botAction = "vote"
)

type triggerKey struct {
	botID  string
	round  int
	action botAction
}

// BotDriver schedules bot clues and votes for one room. Each (bot, round,
// action) is triggered at most once; the persisted existence check at fire
// time covers other driver instances.
type BotDriver struct {
	roomID    string
	service   *Service
	scheduler Scheduler
	cfg       BotConfig
	logger    *zap.Logger

	mu        sync.Mutex
	round     int
	triggered map[triggerKey]struct{}
	timers    map[triggerKey]Timer
	closed    bool
}

func NewBotDriver(roomID string, service *Service, scheduler Scheduler, cfg BotConfig, logger *zap.Logger) *BotDriver {
	if scheduler == nil {
		scheduler = NewClockScheduler()
	}
	return &BotDriver{
		roomID:    roomID,
		service:   service,
		scheduler: scheduler,
		cfg:       cfg,
		logger:    logger,
		triggered: make(map[triggerKey]struct{}),
		timers:    make(map[triggerKey]Timer),
	}
}

// Observe inspects a fresh snapshot and schedules whatever bot actions it
// calls for.
func (d *BotDriver) Observe(snap game.Snapshot) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	if snap.Room.Round != d.round {
		d.resetLocked(snap.Room.Round)
	}
	if snap.Room.Status != game.StatusPlaying {
		return
	}

	switch game.DerivePhase(snap) {
	case game.PhaseClue:
		turn := game.BuildTurnState(snap, "")
		if turn.Current != nil && turn.Current.IsBot {
			d.triggerLocked(triggerKey{botID: turn.Current.ID, round: snap.Room.Round, action: botActionClue},
				game.BotDelay(d.service.rng, d.cfg.ClueDelayMin, d.cfg.ClueDelayMax))
		}
	case game.PhaseVoting:
		for _, p := range game.PendingVoters(snap) {
			if !p.IsBot {
				continue
			}
			d.triggerLocked(triggerKey{botID: p.ID, round: snap.Room.Round, action: botActionVote},
				game.BotDelay(d.service.rng, d.cfg.VoteDelayMin, d.cfg.VoteDelayMax))
		}
	}
}

// Pending reports how many bot actions are scheduled and not yet fired.
func (d *BotDriver) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.timers)
}

func (d *BotDriver) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	for key, timer := range d.timers {
		timer.Stop()
		delete(d.timers, key)
	}
}

func (d *BotDriver) resetLocked(round int) {
	d.round = round
	d.triggered = make(map[triggerKey]struct{})
	for key, timer := range d.timers {
		timer.Stop()
		delete(d.timers, key)
	}
}

func (d *BotDriver) triggerLocked(key triggerKey, delay time.Duration) {
	if _, seen := d.triggered[key]; seen {
		return
	}
	d.triggered[key] = struct{}{}
	d.logger.Debug("bot action scheduled",
		zap.String("room_id", d.roomID),
		zap.String("bot_id", key.botID),
		zap.String("action", string(key.action)),
		zap.Duration("delay", delay),
	)
	d.timers[key] = d.scheduler.AfterFunc(delay, func() {
		d.fire(key)
	})
}

func (d *BotDriver) fire(key triggerKey) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	delete(d.timers, key)
	d.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), botActionTimeout)
	defer cancel()
	var err error
	switch key.action {
	case botActionClue:
		err = d.service.botClue(ctx, d.roomID, key.botID, key.round)
	case botActionVote:
		err = d.service.botVote(ctx, d.roomID, key.botID, key.round)
	}
	if err != nil {
		d.logger.Warn("bot action failed",
			zap.String("room_id", d.roomID),
			zap.String("bot_id", key.botID),
			zap.String("action", string(key.action)),
			zap.Error(err),
		)
		// allow the next refresh to retry
		d.mu.Lock()
		if d.round == key.round {
			delete(d.triggered, key)
		}
		d.mu.Unlock()
	}
}

// botSnapshot reloads the room and returns the bot if the action scheduled
// for round is still meaningful.
func (s *Service) botSnapshot(ctx context.Context, roomID, botID string, round int) (game.Snapshot, game.Participant, bool, error) {
	snap, err := s.Snapshot(ctx, roomID)
	if err != nil {
		return game.Snapshot{}, game.Participant{}, false, err
	}
	if snap.Room.Status != game.StatusPlaying || snap.Room.Round != round {
		return snap, game.Participant{}, false, nil
	}
	bot, ok := snap.Participant(botID)
	if !ok || !bot.IsBot || !bot.Active() {
		return snap, game.Participant{}, false, nil
	}
	return snap, bot, true, nil
}

func (s *Service) botClue(ctx context.Context, roomID, botID string, round int) error {
	snap, bot, ok, err := s.botSnapshot(ctx, roomID, botID, round)
	if err != nil || !ok {
		return err
	}
	if game.DerivePhase(snap) != game.PhaseClue || !game.BuildTurnState(snap, bot.ID).IsMyTurn {
		return nil
	}
	exists, err := s.store.HasClue(ctx, roomID, round, bot.ID)
	if err != nil || exists {
		return err
	}
	return s.insertClue(ctx, game.Clue{
		RoomID:   roomID,
		Round:    round,
		AuthorID: bot.ID,
		Text:     game.BotClue(s.rng, bot.IsImpostor),
	})
}

func (s *Service) botVote(ctx context.Context, roomID, botID string, round int) error {
	snap, bot, ok, err := s.botSnapshot(ctx, roomID, botID, round)
	if err != nil || !ok {
		return err
	}
	if game.DerivePhase(snap) != game.PhaseVoting {
		return nil
	}
	exists, err := s.store.HasVote(ctx, roomID, round, bot.ID)
	if err != nil || exists {
		return err
	}
	target, ok := game.BotVoteTarget(s.rng, bot, snap.Participants)
	if !ok {
		return nil
	}
	return s.insertVote(ctx, game.Vote{
		RoomID:   roomID,
		Round:    round,
		VoterID:  bot.ID,
		TargetID: target.ID,
	})
}
