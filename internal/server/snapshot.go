package server

import (
	"find-the-impostor/internal/game"
)

// roomView renders a snapshot for one viewer. The secret word is withheld
// from impostors while the round is live, and other participants' roles stay
// hidden until results.
func roomView(snap game.Snapshot, viewerUserID string) map[string]any {
	phase := game.DerivePhase(snap)
	reveal := game.RevealRoles(phase)
	viewer, seated := snap.ParticipantByUser(viewerUserID)
	viewerID := ""
	if seated {
		viewerID = viewer.ID
	}

	hostParticipantID := ""
	if host, ok := snap.ParticipantByUser(snap.Room.HostID); ok {
		hostParticipantID = host.ID
	}

	participants := make([]map[string]any, 0, len(snap.Participants))
	for _, p := range snap.Participants {
		participants = append(participants, participantPayload(p, snap.Room.HostID, viewerID, reveal))
	}

	secretWord := ""
	if snap.Room.Status != game.StatusWaiting && seated && (reveal || !viewer.IsImpostor) {
		secretWord = snap.Room.SecretWord
	}
	if reveal && !seated {
		secretWord = snap.Room.SecretWord
	}

	return map[string]any{
		"room_id":             snap.Room.ID,
		"code":                snap.Room.Code,
		"status":              snap.Room.Status,
		"phase":               phase,
		"round":               snap.Room.Round,
		"host_participant_id": hostParticipantID,
		"settings": map[string]any{
			"min_players":    snap.Room.MinPlayers,
			"max_players":    snap.Room.MaxPlayers,
			"impostor_count": snap.Room.ImpostorCount,
			"points_to_win":  snap.Room.PointsToWin,
		},
		"secret_word":  secretWord,
		"participants": participants,
		"turn":         turnPayload(game.BuildTurnState(snap, viewerID)),
		"votes":        votesPayload(snap, viewerID, reveal),
		"outcome":      outcomePayload(snap.Room),
		"scoreboard":   scoreboardPayload(snap.Participants),
		"winner_id":    snap.Room.WinnerID,
		"viewer":       viewerPayload(snap, viewer, seated),
	}
}

func participantPayload(p game.Participant, hostUserID, viewerID string, reveal bool) map[string]any {
	payload := map[string]any{
		"id":         p.ID,
		"name":       p.Name,
		"is_bot":     p.IsBot,
		"is_host":    p.UserID == hostUserID,
		"is_you":     viewerID != "" && p.ID == viewerID,
		"ready":      p.Ready,
		"eliminated": p.Eliminated,
		"points":     p.Points,
	}
	if reveal || (viewerID != "" && p.ID == viewerID) {
		payload["is_impostor"] = p.IsImpostor
	}
	return payload
}

func turnPayload(state game.TurnState) map[string]any {
	order := make([]map[string]any, 0, len(state.Order))
	for _, entry := range state.Order {
		order = append(order, map[string]any{
			"participant_id":  entry.Participant.ID,
			"name":            entry.Participant.Name,
			"number":          entry.Number,
			"has_submitted":   entry.HasSubmitted,
			"clue":            entry.Clue,
			"is_current_turn": entry.IsCurrentTurn,
			"is_viewer":       entry.IsViewer,
		})
	}
	currentID := ""
	if state.Current != nil {
		currentID = state.Current.ID
	}
	return map[string]any{
		"order":               order,
		"current_id":          currentID,
		"is_my_turn":          state.IsMyTurn,
		"all_clues_submitted": state.AllCluesSubmitted,
	}
}

// votesPayload lists who has voted; targets are only shown once roles are
// revealed, apart from the viewer's own vote.
func votesPayload(snap game.Snapshot, viewerID string, reveal bool) map[string]any {
	voted := make([]string, 0, len(snap.Votes))
	ballots := make([]map[string]any, 0, len(snap.Votes))
	for _, vote := range snap.Votes {
		if vote.Round != snap.Room.Round {
			continue
		}
		voted = append(voted, vote.VoterID)
		if reveal {
			ballots = append(ballots, map[string]any{
				"voter_id":  vote.VoterID,
				"target_id": vote.TargetID,
			})
		}
	}
	payload := map[string]any{
		"voted":   voted,
		"pending": len(game.PendingVoters(snap)),
	}
	if reveal {
		payload["ballots"] = ballots
	}
	if vote, ok := snap.VoteBy(viewerID); ok && viewerID != "" {
		payload["my_vote"] = vote.TargetID
	}
	return payload
}

func outcomePayload(room game.Room) any {
	if !game.Resolved(room) {
		return nil
	}
	return room.Outcome
}

func scoreboardPayload(participants []game.Participant) []map[string]any {
	board := game.Scoreboard(participants)
	payload := make([]map[string]any, 0, len(board))
	for i, p := range board {
		payload = append(payload, map[string]any{
			"rank":           i + 1,
			"participant_id": p.ID,
			"name":           p.Name,
			"points":         p.Points,
		})
	}
	return payload
}

func viewerPayload(snap game.Snapshot, viewer game.Participant, seated bool) map[string]any {
	if !seated {
		return map[string]any{"seated": false}
	}
	payload := map[string]any{
		"seated":         true,
		"participant_id": viewer.ID,
		"is_host":        viewer.UserID == snap.Room.HostID,
		"active":         viewer.Active(),
	}
	if snap.Room.Status != game.StatusWaiting {
		payload["is_impostor"] = viewer.IsImpostor
	}
	return payload
}
