package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"find-the-impostor/internal/db"
	"find-the-impostor/internal/game"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Postgres persists rooms through gorm. Uniqueness of clues and votes is
// enforced by the database indexes.
type Postgres struct {
	db *gorm.DB
}

func NewPostgres(conn *gorm.DB) *Postgres {
	return &Postgres{db: conn}
}

func (s *Postgres) CreateRoom(ctx context.Context, room game.Room, host game.Participant) (game.Room, game.Participant, error) {
	now := timeNowUTC()
	if room.ID == "" {
		room.ID = uuid.NewString()
	}
	if room.Status == "" {
		room.Status = game.StatusWaiting
	}
	if room.HostID == "" {
		room.HostID = host.UserID
	}
	if host.ID == "" {
		host.ID = uuid.NewString()
	}
	host.RoomID = room.ID
	host.JoinedAt = now

	roomRecord := roomToRecord(room)
	hostRecord := participantToRecord(host)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&roomRecord).Error; err != nil {
			return err
		}
		return tx.Create(&hostRecord).Error
	})
	if err != nil {
		if isUniqueViolation(err) {
			return game.Room{}, game.Participant{}, ErrDuplicate
		}
		return game.Room{}, game.Participant{}, err
	}
	created, err := recordToRoom(roomRecord)
	if err != nil {
		return game.Room{}, game.Participant{}, err
	}
	return created, recordToParticipant(hostRecord), nil
}

func (s *Postgres) Room(ctx context.Context, roomID string) (game.Room, error) {
	var record db.Room
	if err := s.db.WithContext(ctx).Where("id = ?", roomID).First(&record).Error; err != nil {
		return game.Room{}, translateError(err)
	}
	return recordToRoom(record)
}

func (s *Postgres) RoomByCode(ctx context.Context, code string) (game.Room, error) {
	var record db.Room
	if err := s.db.WithContext(ctx).Where("code = ?", code).First(&record).Error; err != nil {
		return game.Room{}, translateError(err)
	}
	return recordToRoom(record)
}

// Snapshot reads the room and its current-round rows inside one read-only
// repeatable-read transaction so the parts agree with each other.
func (s *Postgres) Snapshot(ctx context.Context, roomID string) (game.Snapshot, error) {
	var snap game.Snapshot
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var roomRecord db.Room
		if err := tx.Where("id = ?", roomID).First(&roomRecord).Error; err != nil {
			return translateError(err)
		}
		room, err := recordToRoom(roomRecord)
		if err != nil {
			return err
		}
		var participants []db.Participant
		if err := tx.Where("room_id = ?", roomID).Order("id").Find(&participants).Error; err != nil {
			return err
		}
		var clues []db.Clue
		if err := tx.Where("room_id = ? AND round = ?", roomID, room.Round).Order("id").Find(&clues).Error; err != nil {
			return err
		}
		var votes []db.Vote
		if err := tx.Where("room_id = ? AND round = ?", roomID, room.Round).Order("id").Find(&votes).Error; err != nil {
			return err
		}

		snap = game.Snapshot{
			Room:         room,
			Participants: make([]game.Participant, 0, len(participants)),
			Clues:        make([]game.Clue, 0, len(clues)),
			Votes:        make([]game.Vote, 0, len(votes)),
		}
		for _, record := range participants {
			snap.Participants = append(snap.Participants, recordToParticipant(record))
		}
		for _, record := range clues {
			snap.Clues = append(snap.Clues, game.Clue{
				RoomID:    record.RoomID,
				Round:     record.Round,
				AuthorID:  record.ParticipantID,
				Text:      record.Text,
				CreatedAt: record.CreatedAt,
			})
		}
		for _, record := range votes {
			snap.Votes = append(snap.Votes, game.Vote{
				RoomID:    record.RoomID,
				Round:     record.Round,
				VoterID:   record.VoterID,
				TargetID:  record.TargetID,
				CreatedAt: record.CreatedAt,
			})
		}
		return nil
	}, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
	return snap, err
}

func (s *Postgres) AddParticipant(ctx context.Context, participant game.Participant) (game.Participant, error) {
	if participant.ID == "" {
		participant.ID = uuid.NewString()
	}
	participant.JoinedAt = timeNowUTC()
	record := participantToRecord(participant)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := touchRoom(tx, participant.RoomID); err != nil {
			return err
		}
		return tx.Create(&record).Error
	})
	if err != nil {
		if isUniqueViolation(err) {
			var existing db.Participant
			lookup := s.db.WithContext(ctx).
				Where("room_id = ? AND user_id = ?", participant.RoomID, participant.UserID).
				First(&existing).Error
			if lookup == nil {
				return recordToParticipant(existing), ErrDuplicate
			}
			return game.Participant{}, ErrDuplicate
		}
		return game.Participant{}, err
	}
	return recordToParticipant(record), nil
}

func (s *Postgres) SetReady(ctx context.Context, roomID, participantID string, ready bool) error {
	return s.updateParticipant(ctx, roomID, participantID, map[string]any{"ready": ready})
}

func (s *Postgres) MarkEliminated(ctx context.Context, roomID, participantID string) error {
	return s.updateParticipant(ctx, roomID, participantID, map[string]any{"eliminated": true})
}

func (s *Postgres) RemoveParticipant(ctx context.Context, roomID, participantID string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Where("room_id = ? AND id = ?", roomID, participantID).Delete(&db.Participant{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrNotFound
		}
		return touchRoom(tx, roomID)
	})
}

func (s *Postgres) UpdateSettings(ctx context.Context, roomID string, settings Settings) error {
	return s.updateRoom(ctx, roomID, map[string]any{
		"min_players":    settings.MinPlayers,
		"max_players":    settings.MaxPlayers,
		"impostor_count": settings.ImpostorCount,
		"points_to_win":  settings.PointsToWin,
	})
}

func (s *Postgres) TransferHost(ctx context.Context, roomID, hostUserID string) error {
	return s.updateRoom(ctx, roomID, map[string]any{"host_user_id": hostUserID})
}

func (s *Postgres) InsertClue(ctx context.Context, clue game.Clue) error {
	record := db.Clue{
		RoomID:        clue.RoomID,
		Round:         clue.Round,
		ParticipantID: clue.AuthorID,
		Text:          clue.Text,
	}
	return s.insertRoundRow(ctx, clue.RoomID, &record)
}

func (s *Postgres) InsertVote(ctx context.Context, vote game.Vote) error {
	record := db.Vote{
		RoomID:   vote.RoomID,
		Round:    vote.Round,
		VoterID:  vote.VoterID,
		TargetID: vote.TargetID,
	}
	return s.insertRoundRow(ctx, vote.RoomID, &record)
}

func (s *Postgres) HasClue(ctx context.Context, roomID string, round int, authorID string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&db.Clue{}).
		Where("room_id = ? AND round = ? AND participant_id = ?", roomID, round, authorID).
		Count(&count).Error
	return count > 0, err
}

func (s *Postgres) HasVote(ctx context.Context, roomID string, round int, voterID string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&db.Vote{}).
		Where("room_id = ? AND round = ? AND voter_id = ?", roomID, round, voterID).
		Count(&count).Error
	return count > 0, err
}

func (s *Postgres) StartRound(ctx context.Context, roomID string, plan game.RoundPlan) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		query := tx.Model(&db.Room{})
		if plan.Round == 1 {
			query = query.Where("id = ? AND status = ? AND round = 0", roomID, string(game.StatusWaiting))
		} else {
			prev := plan.Round - 1
			query = query.Where("id = ? AND status = ? AND round = ? AND resolved_round = ?",
				roomID, string(game.StatusPlaying), prev, prev)
		}
		result := query.Updates(map[string]any{
			"status":      string(game.StatusPlaying),
			"round":       plan.Round,
			"secret_word": plan.SecretWord,
			"outcome":     gorm.Expr("NULL"),
			"updated_at":  timeNowUTC(),
		})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			if err := tx.Where("id = ?", roomID).First(&db.Room{}).Error; err != nil {
				return translateError(err)
			}
			return ErrStale
		}
		if err := tx.Model(&db.Participant{}).
			Where("room_id = ?", roomID).
			Update("is_impostor", false).Error; err != nil {
			return err
		}
		if len(plan.ImpostorIDs) == 0 {
			return nil
		}
		return tx.Model(&db.Participant{}).
			Where("room_id = ? AND id IN ?", roomID, plan.ImpostorIDs).
			Update("is_impostor", true).Error
	})
}

func (s *Postgres) RecordOutcome(ctx context.Context, roomID string, outcome game.Outcome) (game.Outcome, error) {
	var stored game.Outcome
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var record db.Room
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", roomID).First(&record).Error; err != nil {
			return translateError(err)
		}
		if record.Round != outcome.Round {
			return ErrStale
		}
		if record.ResolvedRound == record.Round && len(record.Outcome) > 0 {
			return json.Unmarshal(record.Outcome, &stored)
		}
		for _, change := range outcome.PointChanges {
			if err := tx.Model(&db.Participant{}).
				Where("room_id = ? AND id = ?", roomID, change.ParticipantID).
				Update("points", gorm.Expr("points + ?", change.Points)).Error; err != nil {
				return err
			}
		}
		data, err := json.Marshal(outcome)
		if err != nil {
			return err
		}
		stored = outcome
		return tx.Model(&db.Room{}).Where("id = ?", roomID).Updates(map[string]any{
			"outcome":        datatypes.JSON(data),
			"resolved_round": outcome.Round,
			"updated_at":     timeNowUTC(),
		}).Error
	})
	return stored, err
}

func (s *Postgres) FinishRoom(ctx context.Context, roomID, winnerID string) error {
	var winner any
	if winnerID != "" {
		winner = winnerID
	}
	return s.updateRoom(ctx, roomID, map[string]any{
		"status":    string(game.StatusFinished),
		"winner_id": winner,
	})
}

func (s *Postgres) DeleteRoom(ctx context.Context, roomID string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return deleteRoom(tx, roomID)
	})
}

func (s *Postgres) ExpireRooms(ctx context.Context, cutoff time.Time) ([]string, error) {
	var ids []string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&db.Room{}).Where("updated_at < ?", cutoff).Order("id").Pluck("id", &ids).Error; err != nil {
			return err
		}
		for _, id := range ids {
			if err := deleteRoom(tx, id); err != nil && !errors.Is(err, ErrNotFound) {
				return err
			}
		}
		return nil
	})
	return ids, err
}

func (s *Postgres) WordCategories(ctx context.Context) ([]game.WordCategory, error) {
	var records []db.WordCategory
	if err := s.db.WithContext(ctx).Order("name").Find(&records).Error; err != nil {
		return nil, err
	}
	categories := make([]game.WordCategory, 0, len(records))
	for _, record := range records {
		category, err := db.DecodeWords(record)
		if err != nil {
			return nil, err
		}
		categories = append(categories, category)
	}
	return categories, nil
}

func (s *Postgres) AppendEvent(ctx context.Context, event Event) error {
	payload := event.Payload
	if payload == nil {
		payload = map[string]any{}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	record := db.Event{
		RoomID:  event.RoomID,
		Round:   event.Round,
		Type:    event.Type,
		Payload: datatypes.JSON(data),
	}
	if event.ActorID != "" {
		actor := event.ActorID
		record.ParticipantID = &actor
	}
	return s.db.WithContext(ctx).Create(&record).Error
}

func (s *Postgres) Events(ctx context.Context, roomID string) ([]Event, error) {
	var records []db.Event
	if err := s.db.WithContext(ctx).Where("room_id = ?", roomID).Order("id").Find(&records).Error; err != nil {
		return nil, err
	}
	events := make([]Event, 0, len(records))
	for _, record := range records {
		event := Event{
			RoomID:    record.RoomID,
			Round:     record.Round,
			Type:      record.Type,
			CreatedAt: record.CreatedAt,
		}
		if record.ParticipantID != nil {
			event.ActorID = *record.ParticipantID
		}
		if len(record.Payload) > 0 {
			if err := json.Unmarshal(record.Payload, &event.Payload); err != nil {
				return nil, fmt.Errorf("decode event %d: %w", record.ID, err)
			}
		}
		events = append(events, event)
	}
	return events, nil
}

func (s *Postgres) insertRoundRow(ctx context.Context, roomID string, record any) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := touchRoom(tx, roomID); err != nil {
			return err
		}
		return tx.Create(record).Error
	})
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

func (s *Postgres) updateRoom(ctx context.Context, roomID string, updates map[string]any) error {
	updates["updated_at"] = timeNowUTC()
	result := s.db.WithContext(ctx).Model(&db.Room{}).Where("id = ?", roomID).Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Postgres) updateParticipant(ctx context.Context, roomID, participantID string, updates map[string]any) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&db.Participant{}).Where("room_id = ? AND id = ?", roomID, participantID).Updates(updates)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrNotFound
		}
		return touchRoom(tx, roomID)
	})
}

func touchRoom(tx *gorm.DB, roomID string) error {
	result := tx.Model(&db.Room{}).Where("id = ?", roomID).Update("updated_at", timeNowUTC())
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func deleteRoom(tx *gorm.DB, roomID string) error {
	for _, model := range []any{&db.Event{}, &db.Vote{}, &db.Clue{}, &db.Participant{}} {
		if err := tx.Where("room_id = ?", roomID).Delete(model).Error; err != nil {
			return err
		}
	}
	result := tx.Where("id = ?", roomID).Delete(&db.Room{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func roomToRecord(room game.Room) db.Room {
	record := db.Room{
		ID:            room.ID,
		Code:          room.Code,
		HostUserID:    room.HostID,
		Status:        string(room.Status),
		Round:         room.Round,
		MinPlayers:    room.MinPlayers,
		MaxPlayers:    room.MaxPlayers,
		ImpostorCount: room.ImpostorCount,
		PointsToWin:   room.PointsToWin,
		SecretWord:    room.SecretWord,
		ResolvedRound: room.ResolvedRound,
	}
	if room.WinnerID != "" {
		winner := room.WinnerID
		record.WinnerID = &winner
	}
	return record
}

func recordToRoom(record db.Room) (game.Room, error) {
	room := game.Room{
		ID:            record.ID,
		Code:          record.Code,
		HostID:        record.HostUserID,
		Status:        game.Status(record.Status),
		Round:         record.Round,
		MinPlayers:    record.MinPlayers,
		MaxPlayers:    record.MaxPlayers,
		ImpostorCount: record.ImpostorCount,
		PointsToWin:   record.PointsToWin,
		SecretWord:    record.SecretWord,
		ResolvedRound: record.ResolvedRound,
		CreatedAt:     record.CreatedAt,
		UpdatedAt:     record.UpdatedAt,
	}
	if record.WinnerID != nil {
		room.WinnerID = *record.WinnerID
	}
	if len(record.Outcome) > 0 && string(record.Outcome) != "null" {
		var outcome game.Outcome
		if err := json.Unmarshal(record.Outcome, &outcome); err != nil {
			return game.Room{}, fmt.Errorf("decode outcome for room %s: %w", record.ID, err)
		}
		room.Outcome = &outcome
	}
	return room, nil
}

func participantToRecord(p game.Participant) db.Participant {
	return db.Participant{
		ID:         p.ID,
		RoomID:     p.RoomID,
		UserID:     p.UserID,
		Name:       p.Name,
		IsImpostor: p.IsImpostor,
		Eliminated: p.Eliminated,
		Ready:      p.Ready,
		IsBot:      p.IsBot,
		Points:     p.Points,
		JoinedAt:   p.JoinedAt,
	}
}

func recordToParticipant(record db.Participant) game.Participant {
	return game.Participant{
		ID:         record.ID,
		RoomID:     record.RoomID,
		UserID:     record.UserID,
		Name:       record.Name,
		IsImpostor: record.IsImpostor,
		Eliminated: record.Eliminated,
		Ready:      record.Ready,
		IsBot:      record.IsBot,
		Points:     record.Points,
		JoinedAt:   record.JoinedAt,
	}
}

func translateError(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
