package game

import "errors"

var (
	ErrRoomNotFound        = errors.New("room not found")
	ErrNotParticipant      = errors.New("not a participant in this room")
	ErrNotHost             = errors.New("only host can perform this action")
	ErrGameStarted         = errors.New("game already started")
	ErrRoomFull            = errors.New("room is full")
	ErrWrongPhase          = errors.New("action not allowed in current phase")
	ErrNotEnoughPlayers    = errors.New("not enough ready players")
	ErrTooManyImpostors    = errors.New("impostor count must be lower than player count")
	ErrNoWords             = errors.New("word corpus is empty")
	ErrEmptyClue           = errors.New("clue is required")
	ErrClueTooLong         = errors.New("clue is too long")
	ErrNotYourTurn         = errors.New("not your turn")
	ErrAlreadySubmitted    = errors.New("clue already submitted this round")
	ErrAlreadyVoted        = errors.New("already voted this round")
	ErrInvalidTarget       = errors.New("invalid vote target")
	ErrVotesNotResolved    = errors.New("votes have not been resolved")
	ErrInvalidSettings     = errors.New("invalid room settings")
	ErrNoBots              = errors.New("no bots to remove")
	ErrCannotKickHost      = errors.New("host cannot be kicked")
	ErrInactiveParticipant = errors.New("participant is not active this round")
)
