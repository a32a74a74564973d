package game

import "sort"

type TurnEntry struct {
	Participant   Participant
	Number        int
	HasSubmitted  bool
	Clue          string
	IsCurrentTurn bool
	IsViewer      bool
}

type TurnState struct {
	Order             []TurnEntry
	Current           *Participant
	IsMyTurn          bool
	AllCluesSubmitted bool
}

// ActiveParticipants returns the non-eliminated, ready participants in turn
// order. The order depends only on participant IDs so every reader agrees.
func ActiveParticipants(participants []Participant) []Participant {
	active := make([]Participant, 0, len(participants))
	for _, p := range participants {
		if p.Active() {
			active = append(active, p)
		}
	}
	sort.Slice(active, func(i, j int) bool {
		return active[i].ID < active[j].ID
	})
	return active
}

func cluesByAuthor(clues []Clue, round int) map[string]string {
	byAuthor := make(map[string]string, len(clues))
	for _, clue := range clues {
		if clue.Round != round {
			continue
		}
		if _, seen := byAuthor[clue.AuthorID]; seen {
			continue
		}
		byAuthor[clue.AuthorID] = clue.Text
	}
	return byAuthor
}

// BuildTurnState projects the clue turn order of the current round for the
// given viewer participant ID. An empty viewer matches nobody.
func BuildTurnState(snap Snapshot, viewerID string) TurnState {
	active := ActiveParticipants(snap.Participants)
	submitted := cluesByAuthor(snap.Clues, snap.Room.Round)

	state := TurnState{
		Order:             make([]TurnEntry, 0, len(active)),
		AllCluesSubmitted: true,
	}
	for i := range active {
		if _, ok := submitted[active[i].ID]; ok {
			continue
		}
		current := active[i]
		state.Current = &current
		state.AllCluesSubmitted = false
		break
	}
	for i, p := range active {
		text, ok := submitted[p.ID]
		state.Order = append(state.Order, TurnEntry{
			Participant:   p,
			Number:        i + 1,
			HasSubmitted:  ok,
			Clue:          text,
			IsCurrentTurn: state.Current != nil && state.Current.ID == p.ID,
			IsViewer:      viewerID != "" && p.ID == viewerID,
		})
	}
	state.IsMyTurn = state.Current != nil && viewerID != "" && state.Current.ID == viewerID
	return state
}

func activeCluesSubmitted(snap Snapshot) int {
	submitted := cluesByAuthor(snap.Clues, snap.Room.Round)
	count := 0
	for _, p := range ActiveParticipants(snap.Participants) {
		if _, ok := submitted[p.ID]; ok {
			count++
		}
	}
	return count
}

func activeVotesSubmitted(snap Snapshot) int {
	voted := make(map[string]struct{}, len(snap.Votes))
	for _, vote := range snap.Votes {
		if vote.Round == snap.Room.Round {
			voted[vote.VoterID] = struct{}{}
		}
	}
	count := 0
	for _, p := range ActiveParticipants(snap.Participants) {
		if _, ok := voted[p.ID]; ok {
			count++
		}
	}
	return count
}

// PendingVoters lists active participants that have not voted this round, in
// turn order.
func PendingVoters(snap Snapshot) []Participant {
	pending := make([]Participant, 0)
	for _, p := range ActiveParticipants(snap.Participants) {
		if !snap.HasVote(p.ID) {
			pending = append(pending, p)
		}
	}
	return pending
}
