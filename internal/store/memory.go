package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"find-the-impostor/internal/game"

	"github.com/google/uuid"
)

type roomState struct {
	room         game.Room
	participants []game.Participant
	clues        []game.Clue
	votes        []game.Vote
	events       []Event
}

// Memory keeps every room in process. It backs tests and single-node
// deployments without a database.
type Memory struct {
	mu    sync.Mutex
	rooms map[string]*roomState
	words []game.WordCategory
	now   func() time.Time
}

func NewMemory(words []game.WordCategory) *Memory {
	return &Memory{
		rooms: make(map[string]*roomState),
		words: copyCategories(words),
		now:   timeNowUTC,
	}
}

// SetClock replaces the time source used for timestamps.
func (m *Memory) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

func (m *Memory) SetWordCategories(words []game.WordCategory) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.words = copyCategories(words)
}

func (m *Memory) CreateRoom(ctx context.Context, room game.Room, host game.Participant) (game.Room, game.Participant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.rooms {
		if existing.room.Code == room.Code {
			return game.Room{}, game.Participant{}, ErrDuplicate
		}
	}
	now := m.now()
	if room.ID == "" {
		room.ID = uuid.NewString()
	}
	if room.Status == "" {
		room.Status = game.StatusWaiting
	}
	if room.HostID == "" {
		room.HostID = host.UserID
	}
	room.CreatedAt = now
	room.UpdatedAt = now

	if host.ID == "" {
		host.ID = uuid.NewString()
	}
	host.RoomID = room.ID
	host.JoinedAt = now

	m.rooms[room.ID] = &roomState{
		room:         room,
		participants: []game.Participant{host},
	}
	return copyRoom(room), host, nil
}

func (m *Memory) Room(ctx context.Context, roomID string) (game.Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	state, ok := m.rooms[roomID]
	if !ok {
		return game.Room{}, ErrNotFound
	}
	return copyRoom(state.room), nil
}

func (m *Memory) RoomByCode(ctx context.Context, code string) (game.Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, state := range m.rooms {
		if state.room.Code == code {
			return copyRoom(state.room), nil
		}
	}
	return game.Room{}, ErrNotFound
}

func (m *Memory) Snapshot(ctx context.Context, roomID string) (game.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	state, ok := m.rooms[roomID]
	if !ok {
		return game.Snapshot{}, ErrNotFound
	}
	snap := game.Snapshot{
		Room:         copyRoom(state.room),
		Participants: append([]game.Participant(nil), state.participants...),
		Clues:        make([]game.Clue, 0),
		Votes:        make([]game.Vote, 0),
	}
	for _, clue := range state.clues {
		if clue.Round == state.room.Round {
			snap.Clues = append(snap.Clues, clue)
		}
	}
	for _, vote := range state.votes {
		if vote.Round == state.room.Round {
			snap.Votes = append(snap.Votes, vote)
		}
	}
	return snap, nil
}

func (m *Memory) AddParticipant(ctx context.Context, participant game.Participant) (game.Participant, error) {
	var added game.Participant
	err := m.updateRoom(participant.RoomID, func(state *roomState, now time.Time) error {
		for _, existing := range state.participants {
			if existing.UserID == participant.UserID {
				added = existing
				return ErrDuplicate
			}
		}
		if participant.ID == "" {
			participant.ID = uuid.NewString()
		}
		participant.JoinedAt = now
		state.participants = append(state.participants, participant)
		added = participant
		return nil
	})
	return added, err
}

func (m *Memory) SetReady(ctx context.Context, roomID, participantID string, ready bool) error {
	return m.updateParticipant(roomID, participantID, func(p *game.Participant) {
		p.Ready = ready
	})
}

func (m *Memory) MarkEliminated(ctx context.Context, roomID, participantID string) error {
	return m.updateParticipant(roomID, participantID, func(p *game.Participant) {
		p.Eliminated = true
	})
}

func (m *Memory) RemoveParticipant(ctx context.Context, roomID, participantID string) error {
	return m.updateRoom(roomID, func(state *roomState, now time.Time) error {
		for i := range state.participants {
			if state.participants[i].ID == participantID {
				state.participants = append(state.participants[:i], state.participants[i+1:]...)
				return nil
			}
		}
		return ErrNotFound
	})
}

func (m *Memory) UpdateSettings(ctx context.Context, roomID string, settings Settings) error {
	return m.updateRoom(roomID, func(state *roomState, now time.Time) error {
		state.room.MinPlayers = settings.MinPlayers
		state.room.MaxPlayers = settings.MaxPlayers
		state.room.ImpostorCount = settings.ImpostorCount
		state.room.PointsToWin = settings.PointsToWin
		return nil
	})
}

func (m *Memory) TransferHost(ctx context.Context, roomID, hostUserID string) error {
	return m.updateRoom(roomID, func(state *roomState, now time.Time) error {
		state.room.HostID = hostUserID
		return nil
	})
}

func (m *Memory) InsertClue(ctx context.Context, clue game.Clue) error {
	return m.updateRoom(clue.RoomID, func(state *roomState, now time.Time) error {
		for _, existing := range state.clues {
			if existing.Round == clue.Round && existing.AuthorID == clue.AuthorID {
				return ErrDuplicate
			}
		}
		clue.CreatedAt = now
		state.clues = append(state.clues, clue)
		return nil
	})
}

func (m *Memory) InsertVote(ctx context.Context, vote game.Vote) error {
	return m.updateRoom(vote.RoomID, func(state *roomState, now time.Time) error {
		for _, existing := range state.votes {
			if existing.Round == vote.Round && existing.VoterID == vote.VoterID {
				return ErrDuplicate
			}
		}
		vote.CreatedAt = now
		state.votes = append(state.votes, vote)
		return nil
	})
}

func (m *Memory) HasClue(ctx context.Context, roomID string, round int, authorID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	state, ok := m.rooms[roomID]
	if !ok {
		return false, ErrNotFound
	}
	for _, clue := range state.clues {
		if clue.Round == round && clue.AuthorID == authorID {
			return true, nil
		}
	}
	return false, nil
}

func (m *Memory) HasVote(ctx context.Context, roomID string, round int, voterID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	state, ok := m.rooms[roomID]
	if !ok {
		return false, ErrNotFound
	}
	for _, vote := range state.votes {
		if vote.Round == round && vote.VoterID == voterID {
			return true, nil
		}
	}
	return false, nil
}

func (m *Memory) StartRound(ctx context.Context, roomID string, plan game.RoundPlan) error {
	return m.updateRoom(roomID, func(state *roomState, now time.Time) error {
		if !canStartRound(state.room, plan.Round) {
			return ErrStale
		}
		state.room.Status = game.StatusPlaying
		state.room.Round = plan.Round
		state.room.SecretWord = plan.SecretWord
		state.room.Outcome = nil
		for i := range state.participants {
			state.participants[i].IsImpostor = plan.IsImpostor(state.participants[i].ID)
		}
		return nil
	})
}

// canStartRound reports whether round may follow the room's current state:
// round 1 only from the lobby, round N+1 only once round N is resolved.
func canStartRound(room game.Room, round int) bool {
	if round == 1 {
		return room.Status == game.StatusWaiting && room.Round == 0
	}
	prev := round - 1
	return room.Status == game.StatusPlaying && room.Round == prev && room.ResolvedRound == prev
}

func (m *Memory) RecordOutcome(ctx context.Context, roomID string, outcome game.Outcome) (game.Outcome, error) {
	var stored game.Outcome
	err := m.updateRoom(roomID, func(state *roomState, now time.Time) error {
		if state.room.Round != outcome.Round {
			return ErrStale
		}
		if game.Resolved(state.room) {
			stored = copyOutcome(*state.room.Outcome)
			return nil
		}
		state.participants = game.ApplyPoints(state.participants, outcome)
		saved := copyOutcome(outcome)
		state.room.Outcome = &saved
		state.room.ResolvedRound = outcome.Round
		stored = copyOutcome(outcome)
		return nil
	})
	return stored, err
}

func (m *Memory) FinishRoom(ctx context.Context, roomID, winnerID string) error {
	return m.updateRoom(roomID, func(state *roomState, now time.Time) error {
		state.room.Status = game.StatusFinished
		state.room.WinnerID = winnerID
		return nil
	})
}

func (m *Memory) DeleteRoom(ctx context.Context, roomID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rooms[roomID]; !ok {
		return ErrNotFound
	}
	delete(m.rooms, roomID)
	return nil
}

func (m *Memory) ExpireRooms(ctx context.Context, cutoff time.Time) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	expired := make([]string, 0)
	for id, state := range m.rooms {
		if state.room.UpdatedAt.Before(cutoff) {
			expired = append(expired, id)
			delete(m.rooms, id)
		}
	}
	sort.Strings(expired)
	return expired, nil
}

func (m *Memory) WordCategories(ctx context.Context) ([]game.WordCategory, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return copyCategories(m.words), nil
}

func (m *Memory) AppendEvent(ctx context.Context, event Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	state, ok := m.rooms[event.RoomID]
	if !ok {
		return ErrNotFound
	}
	event.CreatedAt = m.now()
	state.events = append(state.events, event)
	return nil
}

func (m *Memory) Events(ctx context.Context, roomID string) ([]Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	state, ok := m.rooms[roomID]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]Event(nil), state.events...), nil
}

func (m *Memory) updateRoom(roomID string, update func(state *roomState, now time.Time) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	state, ok := m.rooms[roomID]
	if !ok {
		return ErrNotFound
	}
	now := m.now()
	if err := update(state, now); err != nil {
		return err
	}
	state.room.UpdatedAt = now
	return nil
}

func (m *Memory) updateParticipant(roomID, participantID string, update func(p *game.Participant)) error {
	return m.updateRoom(roomID, func(state *roomState, now time.Time) error {
		for i := range state.participants {
			if state.participants[i].ID == participantID {
				update(&state.participants[i])
				return nil
			}
		}
		return ErrNotFound
	})
}

func copyRoom(room game.Room) game.Room {
	if room.Outcome != nil {
		outcome := copyOutcome(*room.Outcome)
		room.Outcome = &outcome
	}
	return room
}

func copyOutcome(outcome game.Outcome) game.Outcome {
	counts := make(map[string]int, len(outcome.VoteCounts))
	for id, count := range outcome.VoteCounts {
		counts[id] = count
	}
	outcome.VoteCounts = counts
	outcome.PointChanges = append([]game.PointChange{}, outcome.PointChanges...)
	return outcome
}

func copyCategories(categories []game.WordCategory) []game.WordCategory {
	copied := make([]game.WordCategory, 0, len(categories))
	for _, category := range categories {
		copied = append(copied, game.WordCategory{
			Name:  category.Name,
			Words: append([]string(nil), category.Words...),
		})
	}
	return copied
}

func timeNowUTC() time.Time {
	return time.Now().UTC()
}
