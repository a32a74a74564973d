package room

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"find-the-impostor/internal/feed"
	"find-the-impostor/internal/game"
	"find-the-impostor/internal/store"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	joinCodeAttempts = 5
	maxNameLength    = 32
)

type Config struct {
	SnapshotAttempts int
	SnapshotBackoff  time.Duration
}

func DefaultConfig() Config {
	return Config{
		SnapshotAttempts: 3,
		SnapshotBackoff:  50 * time.Millisecond,
	}
}

// Service applies player and host actions to rooms. Every write is validated
// against a fresh snapshot and announced on the feed afterwards.
type Service struct {
	store  store.Store
	feed   feed.Feed
	rng    game.Rand
	codes  func() (string, error)
	logger *zap.Logger
	cfg    Config
}

func NewService(st store.Store, changes feed.Feed, rng game.Rand, logger *zap.Logger, cfg Config) *Service {
	if cfg.SnapshotAttempts <= 0 {
		cfg.SnapshotAttempts = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:  st,
		feed:   changes,
		rng:    rng,
		codes:  game.NewJoinCode,
		logger: logger,
		cfg:    cfg,
	}
}

func (s *Service) Feed() feed.Feed {
	return s.feed
}

// Snapshot reads the room in one consistent read, retrying transient
// failures a bounded number of times.
func (s *Service) Snapshot(ctx context.Context, roomID string) (game.Snapshot, error) {
	var lastErr error
	for attempt := 1; attempt <= s.cfg.SnapshotAttempts; attempt++ {
		snap, err := s.store.Snapshot(ctx, roomID)
		if err == nil {
			return snap, nil
		}
		if errors.Is(err, store.ErrNotFound) {
			return game.Snapshot{}, game.ErrRoomNotFound
		}
		if ctx.Err() != nil {
			return game.Snapshot{}, ctx.Err()
		}
		lastErr = err
		s.logger.Warn("snapshot read failed",
			zap.String("room_id", roomID),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
		if attempt == s.cfg.SnapshotAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return game.Snapshot{}, ctx.Err()
		case <-time.After(s.cfg.SnapshotBackoff * time.Duration(attempt)):
		}
	}
	return game.Snapshot{}, fmt.Errorf("snapshot room %s: %w", roomID, lastErr)
}

// RoomByCode resolves a user-entered join code.
func (s *Service) RoomByCode(ctx context.Context, code string) (game.Room, error) {
	normalized, ok := game.NormalizeJoinCode(code)
	if !ok {
		return game.Room{}, game.ErrRoomNotFound
	}
	room, err := s.store.RoomByCode(ctx, normalized)
	if errors.Is(err, store.ErrNotFound) {
		return game.Room{}, game.ErrRoomNotFound
	}
	return room, err
}

func (s *Service) CreateRoom(ctx context.Context, userID, name string) (game.Room, game.Participant, error) {
	name = normalizeName(name)
	host := game.Participant{
		UserID: userID,
		Name:   name,
		Ready:  true,
	}
	var lastErr error
	for attempt := 0; attempt < joinCodeAttempts; attempt++ {
		code, err := s.codes()
		if err != nil {
			s.logger.Warn("join code generation failed", zap.Int("attempt", attempt+1), zap.Error(err))
			lastErr = err
			continue
		}
		room, created, err := s.store.CreateRoom(ctx, game.Room{
			Code:          code,
			HostID:        userID,
			Status:        game.StatusWaiting,
			MinPlayers:    game.DefaultMinPlayers,
			MaxPlayers:    game.DefaultMaxPlayers,
			ImpostorCount: game.DefaultImpostorCount,
			PointsToWin:   game.DefaultPointsToWin,
		}, host)
		if errors.Is(err, store.ErrDuplicate) {
			lastErr = err
			continue
		}
		if err != nil {
			return game.Room{}, game.Participant{}, err
		}
		s.logger.Info("room created", zap.String("room_id", room.ID), zap.String("code", room.Code))
		s.record(ctx, room.ID, 0, created.ID, "room_created", map[string]any{"code": room.Code})
		s.publish(ctx, room.ID, feed.TableRooms, feed.OpInsert)
		return room, created, nil
	}
	return game.Room{}, game.Participant{}, fmt.Errorf("could not allocate a join code: %w", lastErr)
}

// Join seats the user in the room behind code. Joining again returns the
// existing seat.
func (s *Service) Join(ctx context.Context, code, userID, name string) (game.Room, game.Participant, error) {
	room, err := s.RoomByCode(ctx, code)
	if err != nil {
		return game.Room{}, game.Participant{}, err
	}
	snap, err := s.Snapshot(ctx, room.ID)
	if err != nil {
		return game.Room{}, game.Participant{}, err
	}
	if existing, ok := snap.ParticipantByUser(userID); ok {
		return snap.Room, existing, nil
	}
	if snap.Room.Status != game.StatusWaiting {
		return game.Room{}, game.Participant{}, game.ErrGameStarted
	}
	if snap.Room.MaxPlayers > 0 && len(snap.Participants) >= snap.Room.MaxPlayers {
		return game.Room{}, game.Participant{}, game.ErrRoomFull
	}
	participant, err := s.store.AddParticipant(ctx, game.Participant{
		RoomID: room.ID,
		UserID: userID,
		Name:   normalizeName(name),
	})
	if errors.Is(err, store.ErrDuplicate) {
		return snap.Room, participant, nil
	}
	if err != nil {
		return game.Room{}, game.Participant{}, err
	}
	s.logger.Info("participant joined", zap.String("room_id", room.ID), zap.String("participant_id", participant.ID))
	s.record(ctx, room.ID, 0, participant.ID, "participant_joined", map[string]any{"name": participant.Name})
	s.publish(ctx, room.ID, feed.TableParticipants, feed.OpInsert)
	return snap.Room, participant, nil
}

func (s *Service) ToggleReady(ctx context.Context, roomID, userID string) (bool, error) {
	snap, participant, err := s.participantSnapshot(ctx, roomID, userID)
	if err != nil {
		return false, err
	}
	if snap.Room.Status != game.StatusWaiting {
		return false, game.ErrGameStarted
	}
	ready := !participant.Ready
	if err := s.store.SetReady(ctx, roomID, participant.ID, ready); err != nil {
		return false, s.translate(err)
	}
	s.publish(ctx, roomID, feed.TableParticipants, feed.OpUpdate)
	return ready, nil
}

func (s *Service) UpdateSettings(ctx context.Context, roomID, userID string, settings store.Settings) error {
	snap, err := s.hostSnapshot(ctx, roomID, userID)
	if err != nil {
		return err
	}
	if snap.Room.Status != game.StatusWaiting {
		return game.ErrGameStarted
	}
	if err := game.ValidateSettings(settings.MinPlayers, settings.MaxPlayers, settings.ImpostorCount, settings.PointsToWin); err != nil {
		return err
	}
	if settings.MaxPlayers < len(snap.Participants) {
		return fmt.Errorf("%w: %d participants already seated", game.ErrInvalidSettings, len(snap.Participants))
	}
	if err := s.store.UpdateSettings(ctx, roomID, settings); err != nil {
		return s.translate(err)
	}
	s.record(ctx, roomID, 0, "", "settings_updated", map[string]any{
		"min_players":    settings.MinPlayers,
		"max_players":    settings.MaxPlayers,
		"impostor_count": settings.ImpostorCount,
		"points_to_win":  settings.PointsToWin,
	})
	s.publish(ctx, roomID, feed.TableRooms, feed.OpUpdate)
	return nil
}

func (s *Service) AddBot(ctx context.Context, roomID, userID string) (game.Participant, error) {
	snap, err := s.hostSnapshot(ctx, roomID, userID)
	if err != nil {
		return game.Participant{}, err
	}
	if snap.Room.Status != game.StatusWaiting {
		return game.Participant{}, game.ErrGameStarted
	}
	if snap.Room.MaxPlayers > 0 && len(snap.Participants) >= snap.Room.MaxPlayers {
		return game.Participant{}, game.ErrRoomFull
	}
	bot, err := s.store.AddParticipant(ctx, game.Participant{
		RoomID: roomID,
		UserID: "bot-" + uuid.NewString(),
		Name:   game.BotName(s.rng, snap.Participants),
		Ready:  true,
		IsBot:  true,
	})
	if err != nil {
		return game.Participant{}, s.translate(err)
	}
	s.logger.Info("bot added", zap.String("room_id", roomID), zap.String("bot", bot.Name))
	s.record(ctx, roomID, 0, bot.ID, "bot_added", map[string]any{"name": bot.Name})
	s.publish(ctx, roomID, feed.TableParticipants, feed.OpInsert)
	return bot, nil
}

// RemoveBot removes the bot with the lowest participant ID.
func (s *Service) RemoveBot(ctx context.Context, roomID, userID string) error {
	snap, err := s.hostSnapshot(ctx, roomID, userID)
	if err != nil {
		return err
	}
	if snap.Room.Status != game.StatusWaiting {
		return game.ErrGameStarted
	}
	bots := make([]game.Participant, 0)
	for _, p := range snap.Participants {
		if p.IsBot {
			bots = append(bots, p)
		}
	}
	if len(bots) == 0 {
		return game.ErrNoBots
	}
	sort.Slice(bots, func(i, j int) bool { return bots[i].ID < bots[j].ID })
	if err := s.store.RemoveParticipant(ctx, roomID, bots[0].ID); err != nil {
		return s.translate(err)
	}
	s.record(ctx, roomID, 0, "", "bot_removed", map[string]any{"name": bots[0].Name})
	s.publish(ctx, roomID, feed.TableParticipants, feed.OpDelete)
	return nil
}

func (s *Service) Leave(ctx context.Context, roomID, userID string) error {
	snap, participant, err := s.participantSnapshot(ctx, roomID, userID)
	if err != nil {
		return err
	}
	return s.removeSeat(ctx, snap, participant, "participant_left")
}

func (s *Service) Kick(ctx context.Context, roomID, userID, participantID string) error {
	snap, err := s.hostSnapshot(ctx, roomID, userID)
	if err != nil {
		return err
	}
	target, ok := snap.Participant(participantID)
	if !ok {
		return game.ErrNotParticipant
	}
	if target.UserID == snap.Room.HostID {
		return game.ErrCannotKickHost
	}
	return s.removeSeat(ctx, snap, target, "participant_kicked")
}

// removeSeat deletes the seat while waiting and eliminates it once play has
// started so clues, votes and points stay attached. A departing host hands
// over to the lowest-ID remaining human; without humans the room is deleted.
func (s *Service) removeSeat(ctx context.Context, snap game.Snapshot, participant game.Participant, eventType string) error {
	roomID := snap.Room.ID
	var err error
	if snap.Room.Status == game.StatusWaiting {
		err = s.store.RemoveParticipant(ctx, roomID, participant.ID)
	} else {
		err = s.store.MarkEliminated(ctx, roomID, participant.ID)
	}
	if err != nil {
		return s.translate(err)
	}
	s.logger.Info("participant removed",
		zap.String("room_id", roomID),
		zap.String("participant_id", participant.ID),
		zap.String("reason", eventType),
	)

	remaining := make([]game.Participant, 0, len(snap.Participants))
	for _, p := range snap.Participants {
		if p.ID == participant.ID || p.IsBot || p.Eliminated {
			continue
		}
		remaining = append(remaining, p)
	}
	if len(remaining) == 0 {
		if err := s.store.DeleteRoom(ctx, roomID); err != nil && !errors.Is(err, store.ErrNotFound) {
			return err
		}
		s.logger.Info("room closed", zap.String("room_id", roomID))
		s.publish(ctx, roomID, feed.TableRooms, feed.OpDelete)
		return nil
	}

	s.record(ctx, roomID, snap.Room.Round, participant.ID, eventType, map[string]any{"name": participant.Name})
	if participant.UserID == snap.Room.HostID {
		sort.Slice(remaining, func(i, j int) bool { return remaining[i].ID < remaining[j].ID })
		next := remaining[0]
		if err := s.store.TransferHost(ctx, roomID, next.UserID); err != nil {
			return s.translate(err)
		}
		s.record(ctx, roomID, snap.Room.Round, next.ID, "host_transferred", map[string]any{"name": next.Name})
		s.publish(ctx, roomID, feed.TableRooms, feed.OpUpdate)
	}
	op := feed.OpUpdate
	if snap.Room.Status == game.StatusWaiting {
		op = feed.OpDelete
	}
	s.publish(ctx, roomID, feed.TableParticipants, op)
	return nil
}

func (s *Service) StartGame(ctx context.Context, roomID, userID string) error {
	snap, err := s.hostSnapshot(ctx, roomID, userID)
	if err != nil {
		return err
	}
	if snap.Room.Status != game.StatusWaiting {
		return game.ErrGameStarted
	}
	ready := len(game.ActiveParticipants(snap.Participants))
	if ready < snap.Room.MinPlayers {
		return fmt.Errorf("%w: %d ready, %d required", game.ErrNotEnoughPlayers, ready, snap.Room.MinPlayers)
	}
	if err := s.beginRound(ctx, snap, 1); err != nil {
		return err
	}
	s.logger.Info("game started", zap.String("room_id", roomID), zap.Int("players", ready))
	return nil
}

func (s *Service) beginRound(ctx context.Context, snap game.Snapshot, round int) error {
	words, err := s.store.WordCategories(ctx)
	if err != nil {
		return err
	}
	plan, err := game.PlanRound(s.rng, snap.Participants, words, snap.Room.ImpostorCount, round)
	if err != nil {
		return err
	}
	if err := s.store.StartRound(ctx, snap.Room.ID, plan); err != nil {
		if errors.Is(err, store.ErrStale) {
			return game.ErrWrongPhase
		}
		return s.translate(err)
	}
	s.record(ctx, snap.Room.ID, round, "", "round_started", map[string]any{
		"round":          round,
		"impostor_count": len(plan.ImpostorIDs),
	})
	s.publish(ctx, snap.Room.ID, feed.TableRooms, feed.OpUpdate)
	return nil
}

func (s *Service) SubmitClue(ctx context.Context, roomID, userID, text string) error {
	clue, err := game.NormalizeClue(text)
	if err != nil {
		return err
	}
	snap, participant, err := s.participantSnapshot(ctx, roomID, userID)
	if err != nil {
		return err
	}
	if game.DerivePhase(snap) != game.PhaseClue {
		return game.ErrWrongPhase
	}
	if !participant.Active() {
		return game.ErrInactiveParticipant
	}
	if snap.HasClue(participant.ID) {
		return game.ErrAlreadySubmitted
	}
	if !game.BuildTurnState(snap, participant.ID).IsMyTurn {
		return game.ErrNotYourTurn
	}
	return s.insertClue(ctx, game.Clue{
		RoomID:   roomID,
		Round:    snap.Room.Round,
		AuthorID: participant.ID,
		Text:     clue,
	})
}

func (s *Service) insertClue(ctx context.Context, clue game.Clue) error {
	err := s.store.InsertClue(ctx, clue)
	if errors.Is(err, store.ErrDuplicate) {
		s.logger.Debug("duplicate clue ignored", zap.String("room_id", clue.RoomID), zap.String("author_id", clue.AuthorID))
		return nil
	}
	if err != nil {
		return s.translate(err)
	}
	s.record(ctx, clue.RoomID, clue.Round, clue.AuthorID, "clue_submitted", map[string]any{"text": clue.Text})
	s.publish(ctx, clue.RoomID, feed.TableClues, feed.OpInsert)
	return nil
}

func (s *Service) SubmitVote(ctx context.Context, roomID, userID, targetID string) error {
	snap, participant, err := s.participantSnapshot(ctx, roomID, userID)
	if err != nil {
		return err
	}
	if game.DerivePhase(snap) != game.PhaseVoting {
		return game.ErrWrongPhase
	}
	if !participant.Active() {
		return game.ErrInactiveParticipant
	}
	if snap.HasVote(participant.ID) {
		return game.ErrAlreadyVoted
	}
	target, ok := snap.Participant(targetID)
	if !ok || !target.Active() || target.ID == participant.ID {
		return game.ErrInvalidTarget
	}
	return s.insertVote(ctx, game.Vote{
		RoomID:   roomID,
		Round:    snap.Room.Round,
		VoterID:  participant.ID,
		TargetID: target.ID,
	})
}

func (s *Service) insertVote(ctx context.Context, vote game.Vote) error {
	err := s.store.InsertVote(ctx, vote)
	if errors.Is(err, store.ErrDuplicate) {
		s.logger.Debug("duplicate vote ignored", zap.String("room_id", vote.RoomID), zap.String("voter_id", vote.VoterID))
		return nil
	}
	if err != nil {
		return s.translate(err)
	}
	s.record(ctx, vote.RoomID, vote.Round, vote.VoterID, "vote_submitted", map[string]any{"target_id": vote.TargetID})
	s.publish(ctx, vote.RoomID, feed.TableVotes, feed.OpInsert)
	return nil
}

// ResolveVotes tallies the round once every active participant has voted.
// Calling it again for the same round returns the recorded outcome.
func (s *Service) ResolveVotes(ctx context.Context, roomID, userID string) (game.Outcome, error) {
	snap, err := s.hostSnapshot(ctx, roomID, userID)
	if err != nil {
		return game.Outcome{}, err
	}
	if game.Resolved(snap.Room) {
		return *snap.Room.Outcome, nil
	}
	if game.DerivePhase(snap) != game.PhaseResults {
		return game.Outcome{}, game.ErrWrongPhase
	}
	outcome := game.Tally(snap.Participants, snap.Votes)
	outcome.Round = snap.Room.Round
	stored, err := s.store.RecordOutcome(ctx, roomID, outcome)
	if err != nil {
		if errors.Is(err, store.ErrStale) {
			return game.Outcome{}, game.ErrWrongPhase
		}
		return game.Outcome{}, s.translate(err)
	}
	s.logger.Info("votes resolved",
		zap.String("room_id", roomID),
		zap.Int("round", stored.Round),
		zap.Bool("impostor_caught", stored.ImpostorCaught),
		zap.Bool("voided", stored.Voided),
	)
	s.record(ctx, roomID, stored.Round, "", "votes_resolved", map[string]any{
		"top_voted_id":    stored.TopVotedID,
		"impostor_caught": stored.ImpostorCaught,
		"voided":          stored.Voided,
		"point_changes":   len(stored.PointChanges),
	})
	s.publish(ctx, roomID, feed.TableRooms, feed.OpUpdate)
	return stored, nil
}

// NextRound finishes the game when someone reached the points threshold or
// too few players remain, and otherwise starts the following round.
func (s *Service) NextRound(ctx context.Context, roomID, userID string) error {
	snap, err := s.hostSnapshot(ctx, roomID, userID)
	if err != nil {
		return err
	}
	if snap.Room.Status != game.StatusPlaying {
		return game.ErrWrongPhase
	}
	if !game.Resolved(snap.Room) {
		return game.ErrVotesNotResolved
	}
	if winner, ok := game.FindWinner(snap.Participants, snap.Room.PointsToWin); ok {
		return s.finish(ctx, snap, winner.ID)
	}
	if len(game.ActiveParticipants(snap.Participants)) <= snap.Room.ImpostorCount {
		return s.finish(ctx, snap, "")
	}
	if err := s.beginRound(ctx, snap, snap.Room.Round+1); err != nil {
		return err
	}
	s.logger.Info("round advanced", zap.String("room_id", roomID), zap.Int("round", snap.Room.Round+1))
	return nil
}

func (s *Service) finish(ctx context.Context, snap game.Snapshot, winnerID string) error {
	if err := s.store.FinishRoom(ctx, snap.Room.ID, winnerID); err != nil {
		return s.translate(err)
	}
	s.logger.Info("game finished", zap.String("room_id", snap.Room.ID), zap.String("winner_id", winnerID))
	s.record(ctx, snap.Room.ID, snap.Room.Round, winnerID, "game_finished", map[string]any{"winner_id": winnerID})
	s.publish(ctx, snap.Room.ID, feed.TableRooms, feed.OpUpdate)
	return nil
}

func (s *Service) Events(ctx context.Context, roomID, userID string) ([]store.Event, error) {
	if _, err := s.hostSnapshot(ctx, roomID, userID); err != nil {
		return nil, err
	}
	events, err := s.store.Events(ctx, roomID)
	if err != nil {
		return nil, s.translate(err)
	}
	return events, nil
}

// ExpireRooms deletes rooms untouched since cutoff and returns their IDs.
func (s *Service) ExpireRooms(ctx context.Context, cutoff time.Time) ([]string, error) {
	ids, err := s.store.ExpireRooms(ctx, cutoff)
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		s.publish(ctx, id, feed.TableRooms, feed.OpDelete)
	}
	return ids, nil
}

func (s *Service) participantSnapshot(ctx context.Context, roomID, userID string) (game.Snapshot, game.Participant, error) {
	snap, err := s.Snapshot(ctx, roomID)
	if err != nil {
		return game.Snapshot{}, game.Participant{}, err
	}
	participant, ok := snap.ParticipantByUser(userID)
	if !ok {
		return game.Snapshot{}, game.Participant{}, game.ErrNotParticipant
	}
	return snap, participant, nil
}

func (s *Service) hostSnapshot(ctx context.Context, roomID, userID string) (game.Snapshot, error) {
	snap, err := s.Snapshot(ctx, roomID)
	if err != nil {
		return game.Snapshot{}, err
	}
	if userID == "" || snap.Room.HostID != userID {
		return game.Snapshot{}, game.ErrNotHost
	}
	return snap, nil
}

func (s *Service) translate(err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return game.ErrRoomNotFound
	}
	return err
}

func (s *Service) publish(ctx context.Context, roomID, table, op string) {
	if s.feed == nil {
		return
	}
	change := feed.Change{RoomID: roomID, Table: table, Op: op, At: time.Now().UTC()}
	if err := s.feed.Publish(ctx, change); err != nil {
		s.logger.Warn("publish change failed", zap.String("room_id", roomID), zap.String("table", table), zap.Error(err))
	}
}

func (s *Service) record(ctx context.Context, roomID string, round int, actorID, eventType string, payload map[string]any) {
	err := s.store.AppendEvent(ctx, store.Event{
		RoomID:  roomID,
		Round:   round,
		ActorID: actorID,
		Type:    eventType,
		Payload: payload,
	})
	if err != nil {
		s.logger.Warn("record event failed", zap.String("room_id", roomID), zap.String("type", eventType), zap.Error(err))
	}
}

func normalizeName(name string) string {
	name = strings.Join(strings.Fields(name), " ")
	if name == "" {
		return "Player"
	}
	runes := []rune(name)
	if len(runes) > maxNameLength {
		name = string(runes[:maxNameLength])
	}
	return name
}
