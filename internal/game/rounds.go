package game

import (
	"fmt"
	"sort"
	"strings"
)

// RoundPlan is everything written atomically when a round begins.
type RoundPlan struct {
	Round       int
	SecretWord  string
	ImpostorIDs []string
}

func (p RoundPlan) IsImpostor(participantID string) bool {
	for _, id := range p.ImpostorIDs {
		if id == participantID {
			return true
		}
	}
	return false
}

// FlattenWords joins every category into one candidate list, skipping blanks.
func FlattenWords(categories []WordCategory) []string {
	words := make([]string, 0)
	for _, category := range categories {
		for _, word := range category.Words {
			word = strings.TrimSpace(word)
			if word == "" {
				continue
			}
			words = append(words, word)
		}
	}
	return words
}

// DrawWord picks one word uniformly from all categories.
func DrawWord(rng Rand, categories []WordCategory) (string, error) {
	word, ok := pick(rng, FlattenWords(categories))
	if !ok {
		return "", ErrNoWords
	}
	return word, nil
}

// SelectImpostors shuffles the candidates and takes the first count. Each
// call is independent of earlier rounds.
func SelectImpostors(rng Rand, candidates []Participant, count int) ([]string, error) {
	if count <= 0 || count >= len(candidates) {
		return nil, ErrTooManyImpostors
	}
	ids := make([]string, len(candidates))
	for i, p := range candidates {
		ids[i] = p.ID
	}
	sort.Strings(ids)
	Shuffle(rng, len(ids), func(i, j int) {
		ids[i], ids[j] = ids[j], ids[i]
	})
	chosen := append([]string(nil), ids[:count]...)
	sort.Strings(chosen)
	return chosen, nil
}

// PlanRound draws the secret word and impostors for round number round among
// the active participants.
func PlanRound(rng Rand, participants []Participant, categories []WordCategory, impostorCount, round int) (RoundPlan, error) {
	active := ActiveParticipants(participants)
	if len(active) <= impostorCount {
		return RoundPlan{}, fmt.Errorf("%w: %d active, %d impostors", ErrNotEnoughPlayers, len(active), impostorCount)
	}
	word, err := DrawWord(rng, categories)
	if err != nil {
		return RoundPlan{}, err
	}
	impostors, err := SelectImpostors(rng, active, impostorCount)
	if err != nil {
		return RoundPlan{}, err
	}
	return RoundPlan{
		Round:       round,
		SecretWord:  word,
		ImpostorIDs: impostors,
	}, nil
}

// FindWinner returns the participant with the most points among those at or
// above the threshold. Equal points go to the lowest participant ID.
func FindWinner(participants []Participant, pointsToWin int) (Participant, bool) {
	if pointsToWin <= 0 {
		return Participant{}, false
	}
	var winner Participant
	found := false
	for _, p := range participants {
		if p.Points < pointsToWin {
			continue
		}
		if !found || p.Points > winner.Points || (p.Points == winner.Points && p.ID < winner.ID) {
			winner = p
			found = true
		}
	}
	return winner, found
}

// Scoreboard orders participants by points, highest first, then by ID.
func Scoreboard(participants []Participant) []Participant {
	board := make([]Participant, len(participants))
	copy(board, participants)
	sort.SliceStable(board, func(i, j int) bool {
		if board[i].Points != board[j].Points {
			return board[i].Points > board[j].Points
		}
		return board[i].ID < board[j].ID
	})
	return board
}

// ValidateSettings checks the host-editable room limits.
func ValidateSettings(minPlayers, maxPlayers, impostorCount, pointsToWin int) error {
	switch {
	case minPlayers < 2:
		return fmt.Errorf("%w: min players must be at least 2", ErrInvalidSettings)
	case maxPlayers < minPlayers:
		return fmt.Errorf("%w: max players must be at least min players", ErrInvalidSettings)
	case maxPlayers > 20:
		return fmt.Errorf("%w: max players must be 20 or fewer", ErrInvalidSettings)
	case impostorCount < 1 || impostorCount >= minPlayers:
		return fmt.Errorf("%w: impostor count must be between 1 and min players - 1", ErrInvalidSettings)
	case pointsToWin < 1:
		return fmt.Errorf("%w: points to win must be positive", ErrInvalidSettings)
	}
	return nil
}
