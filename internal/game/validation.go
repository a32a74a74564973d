package game

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

const MaxClueLength = 60

// NormalizeClue collapses whitespace and enforces the clue length limit.
func NormalizeClue(text string) (string, error) {
	clue := strings.Join(strings.Fields(text), " ")
	if clue == "" {
		return "", ErrEmptyClue
	}
	if utf8.RuneCountInString(clue) > MaxClueLength {
		return "", fmt.Errorf("%w: %d characters or fewer", ErrClueTooLong, MaxClueLength)
	}
	return clue, nil
}
