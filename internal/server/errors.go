package server

import (
	"context"
	"errors"
	"net/http"

	"find-the-impostor/internal/game"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const retryMessage = "temporarily unavailable, please retry"

func statusForError(err error) int {
	switch {
	case errors.Is(err, game.ErrRoomNotFound):
		return http.StatusNotFound
	case errors.Is(err, game.ErrNotHost),
		errors.Is(err, game.ErrNotParticipant),
		errors.Is(err, game.ErrCannotKickHost):
		return http.StatusForbidden
	case errors.Is(err, game.ErrEmptyClue),
		errors.Is(err, game.ErrClueTooLong),
		errors.Is(err, game.ErrInvalidTarget),
		errors.Is(err, game.ErrInvalidSettings),
		errors.Is(err, game.ErrTooManyImpostors):
		return http.StatusBadRequest
	case errors.Is(err, game.ErrNotYourTurn),
		errors.Is(err, game.ErrAlreadySubmitted),
		errors.Is(err, game.ErrAlreadyVoted),
		errors.Is(err, game.ErrWrongPhase),
		errors.Is(err, game.ErrGameStarted),
		errors.Is(err, game.ErrRoomFull),
		errors.Is(err, game.ErrNotEnoughPlayers),
		errors.Is(err, game.ErrVotesNotResolved),
		errors.Is(err, game.ErrNoWords),
		errors.Is(err, game.ErrNoBots),
		errors.Is(err, game.ErrInactiveParticipant):
		return http.StatusConflict
	case errors.Is(err, context.Canceled):
		return 499
	default:
		return http.StatusServiceUnavailable
	}
}

// writeError maps service errors onto HTTP. Anything unrecognised is treated
// as transient and logged.
func (s *Server) writeError(c *gin.Context, err error) {
	status := statusForError(err)
	message := err.Error()
	if status == http.StatusServiceUnavailable {
		s.logger.Error("request failed",
			zap.String("path", c.Request.URL.Path),
			zap.Error(err),
		)
		message = retryMessage
	}
	_ = c.Error(err)
	c.JSON(status, gin.H{"error": message})
}
