package game

import (
	"crypto/rand"
	"fmt"
	"io"
	"strings"
)

const (
	joinCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	joinCodeLength   = 6
)

// NewJoinCode draws a join code from crypto/rand.
func NewJoinCode() (string, error) {
	return ReadJoinCode(rand.Reader)
}

func ReadJoinCode(r io.Reader) (string, error) {
	buf := make([]byte, joinCodeLength)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", fmt.Errorf("read join code: %w", err)
	}
	for i := range buf {
		buf[i] = joinCodeAlphabet[int(buf[i])%len(joinCodeAlphabet)]
	}
	return string(buf), nil
}

// NormalizeJoinCode upper-cases user input and reports whether it can be a
// join code at all.
func NormalizeJoinCode(code string) (string, bool) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if len(code) != joinCodeLength {
		return "", false
	}
	for _, r := range code {
		if !strings.ContainsRune(joinCodeAlphabet, r) {
			return "", false
		}
	}
	return code, true
}
