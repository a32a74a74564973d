package game

import "time"

type Status string

const (
	StatusWaiting  Status = "waiting"
	StatusPlaying  Status = "playing"
	StatusFinished Status = "finished"
)

type Phase string

const (
	PhaseWaiting  Phase = "waiting"
	PhaseClue     Phase = "clue"
	PhaseVoting   Phase = "voting"
	PhaseResults  Phase = "results"
	PhaseFinished Phase = "finished"
)

const (
	DefaultMinPlayers    = 3
	DefaultMaxPlayers    = 10
	DefaultImpostorCount = 1
	DefaultPointsToWin   = 10
)

const (
	ReasonCaughtImpostor = "caught the impostor"
	ReasonSurvivedRound  = "survived the round"
)

type Room struct {
	ID            string
	Code          string
	HostID        string
	Status        Status
	Round         int
	MinPlayers    int
	MaxPlayers    int
	ImpostorCount int
	SecretWord    string
	PointsToWin   int
	WinnerID      string
	ResolvedRound int
	Outcome       *Outcome
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Participant is a seat in a room. UserID is the session user for humans and a
// synthetic identifier for bots.
type Participant struct {
	ID         string
	RoomID     string
	UserID     string
	Name       string
	IsImpostor bool
	Eliminated bool
	Ready      bool
	IsBot      bool
	Points     int
	JoinedAt   time.Time
}

func (p Participant) Active() bool {
	return !p.Eliminated && p.Ready
}

type Clue struct {
	RoomID    string
	Round     int
	AuthorID  string
	Text      string
	CreatedAt time.Time
}

type Vote struct {
	RoomID    string
	Round     int
	VoterID   string
	TargetID  string
	CreatedAt time.Time
}

type PointChange struct {
	ParticipantID string `json:"participant_id"`
	Points        int    `json:"points"`
	Reason        string `json:"reason"`
}

type Outcome struct {
	Round            int            `json:"round"`
	VoteCounts       map[string]int `json:"vote_counts"`
	TopVotedID       string         `json:"top_voted_id,omitempty"`
	ImpostorCaught   bool           `json:"impostor_caught"`
	CaughtImpostorID string         `json:"caught_impostor_id,omitempty"`
	Voided           bool           `json:"voided,omitempty"`
	PointChanges     []PointChange  `json:"point_changes"`
}

type WordCategory struct {
	Name  string
	Words []string
}

// Snapshot is one consistent read of a room: the room row, every participant,
// and the clues and votes of the current round.
type Snapshot struct {
	Room         Room
	Participants []Participant
	Clues        []Clue
	Votes        []Vote
}

func (s Snapshot) Participant(id string) (Participant, bool) {
	for _, p := range s.Participants {
		if p.ID == id {
			return p, true
		}
	}
	return Participant{}, false
}

func (s Snapshot) ParticipantByUser(userID string) (Participant, bool) {
	for _, p := range s.Participants {
		if p.UserID == userID {
			return p, true
		}
	}
	return Participant{}, false
}

func (s Snapshot) HasClue(authorID string) bool {
	for _, clue := range s.Clues {
		if clue.Round == s.Room.Round && clue.AuthorID == authorID {
			return true
		}
	}
	return false
}

func (s Snapshot) HasVote(voterID string) bool {
	for _, vote := range s.Votes {
		if vote.Round == s.Room.Round && vote.VoterID == voterID {
			return true
		}
	}
	return false
}

func (s Snapshot) VoteBy(voterID string) (Vote, bool) {
	for _, vote := range s.Votes {
		if vote.Round == s.Room.Round && vote.VoterID == voterID {
			return vote, true
		}
	}
	return Vote{}, false
}
