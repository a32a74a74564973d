package game

import "testing"

type seqRand struct {
	values []int
	next   int
}

func (r *seqRand) IntN(n int) int {
	if n <= 0 || len(r.values) == 0 {
		return 0
	}
	value := r.values[r.next%len(r.values)]
	r.next++
	if value < 0 {
		value = -value
	}
	return value % n
}

func fourPlayerSnapshot(impostorID string) Snapshot {
	room := Room{ID: "room-1", Code: "ABCDEF", HostID: "u-a", Status: StatusPlaying, Round: 1, ImpostorCount: 1, PointsToWin: 10}
	ids := []string{"p-d", "p-b", "p-a", "p-c"}
	participants := make([]Participant, 0, len(ids))
	for _, id := range ids {
		participants = append(participants, Participant{
			ID:         id,
			RoomID:     room.ID,
			UserID:     "u" + id[1:],
			Name:       id,
			Ready:      true,
			IsImpostor: id == impostorID,
		})
	}
	return Snapshot{Room: room, Participants: participants}
}

func addClue(snap *Snapshot, authorID, text string) {
	snap.Clues = append(snap.Clues, Clue{RoomID: snap.Room.ID, Round: snap.Room.Round, AuthorID: authorID, Text: text})
}

func addVote(snap *Snapshot, voterID, targetID string) {
	snap.Votes = append(snap.Votes, Vote{RoomID: snap.Room.ID, Round: snap.Room.Round, VoterID: voterID, TargetID: targetID})
}

func mustParticipant(t *testing.T, snap Snapshot, id string) Participant {
	t.Helper()
	p, ok := snap.Participant(id)
	if !ok {
		t.Fatalf("participant %s not found", id)
	}
	return p
}
