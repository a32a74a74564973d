package game

import "sort"

// Tally counts the round's votes and computes the outcome. Only ballots cast
// by participants still active count, the same set that decides when voting
// is over. The plurality candidate is the participant with the most votes;
// ties go to the lowest participant ID. A round without any countable vote is
// void: nobody scores.
func Tally(participants []Participant, votes []Vote) Outcome {
	known := make(map[string]Participant, len(participants))
	for _, p := range participants {
		known[p.ID] = p
	}
	outcome := Outcome{
		VoteCounts:   make(map[string]int),
		PointChanges: []PointChange{},
	}
	for _, vote := range votes {
		if voter, ok := known[vote.VoterID]; !ok || !voter.Active() {
			continue
		}
		if _, ok := known[vote.TargetID]; !ok {
			continue
		}
		outcome.VoteCounts[vote.TargetID]++
		if vote.Round > outcome.Round {
			outcome.Round = vote.Round
		}
	}
	if len(outcome.VoteCounts) == 0 {
		outcome.Voided = true
		return outcome
	}

	candidates := make([]string, 0, len(outcome.VoteCounts))
	for id := range outcome.VoteCounts {
		candidates = append(candidates, id)
	}
	sort.Strings(candidates)
	top := candidates[0]
	for _, id := range candidates[1:] {
		if outcome.VoteCounts[id] > outcome.VoteCounts[top] {
			top = id
		}
	}
	outcome.TopVotedID = top

	ordered := make([]Participant, len(participants))
	copy(ordered, participants)
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].ID < ordered[j].ID
	})

	if known[top].IsImpostor {
		outcome.ImpostorCaught = true
		outcome.CaughtImpostorID = top
		for _, p := range ordered {
			if p.IsImpostor || !p.Active() {
				continue
			}
			outcome.PointChanges = append(outcome.PointChanges, PointChange{
				ParticipantID: p.ID,
				Points:        1,
				Reason:        ReasonCaughtImpostor,
			})
		}
		return outcome
	}
	for _, p := range ordered {
		if !p.IsImpostor || p.Eliminated {
			continue
		}
		outcome.PointChanges = append(outcome.PointChanges, PointChange{
			ParticipantID: p.ID,
			Points:        1,
			Reason:        ReasonSurvivedRound,
		})
	}
	return outcome
}

// ApplyPoints returns a copy of participants with the outcome's point changes
// added.
func ApplyPoints(participants []Participant, outcome Outcome) []Participant {
	gained := make(map[string]int, len(outcome.PointChanges))
	for _, change := range outcome.PointChanges {
		gained[change.ParticipantID] += change.Points
	}
	updated := make([]Participant, len(participants))
	for i, p := range participants {
		p.Points += gained[p.ID]
		updated[i] = p
	}
	return updated
}
