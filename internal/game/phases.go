package game

// DerivePhase is the only place the sub-phase of a playing room is computed.
// The stored status is coarse (waiting/playing/finished); clue, voting and
// results are inferred from how many active participants have submitted.
func DerivePhase(snap Snapshot) Phase {
	switch snap.Room.Status {
	case StatusWaiting:
		return PhaseWaiting
	case StatusFinished:
		return PhaseFinished
	}
	if snap.Room.Round <= 0 {
		return PhaseWaiting
	}
	active := len(ActiveParticipants(snap.Participants))
	if activeCluesSubmitted(snap) < active {
		return PhaseClue
	}
	if activeVotesSubmitted(snap) < active {
		return PhaseVoting
	}
	return PhaseResults
}

// Resolved reports whether the current round already has a recorded outcome.
func Resolved(room Room) bool {
	return room.Round > 0 && room.ResolvedRound == room.Round && room.Outcome != nil
}

// RevealRoles reports whether impostor flags may be shown to every viewer.
func RevealRoles(phase Phase) bool {
	return phase == PhaseResults || phase == PhaseFinished
}
