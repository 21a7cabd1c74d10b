package game

import (
	"github.com/kiliankoe/chaosdash/internal/chaos"
	"github.com/kiliankoe/chaosdash/internal/prompt"
)

const (
	EventGameStarted     = "game-started"
	EventAnswersProgress = "answers-progress"
	EventVotingBallot    = "voting-ballot"
	EventVoteSubmitted   = "vote-submitted"
	EventRoundResults    = "round-results"
	EventNewRound        = "new-round"
	EventRosterUpdated   = "roster-updated"
	EventCommandRejected = "command-rejected"
)

// Broadcaster delivers events to connected clients. Implementations must not
// block on slow clients and must not call back into the registry.
type Broadcaster interface {
	Broadcast(roomID, event string, payload any)
	SendTo(roomID, playerID, event string, payload any)
}

type GameStartedPayload struct {
	Prompt  prompt.Template `json:"prompt"`
	Players []Player        `json:"players"`
	Round   int             `json:"round"`
}

type NewRoundPayload struct {
	Prompt  prompt.Template `json:"prompt"`
	Players []Player        `json:"players"`
	Round   int             `json:"round"`
	Rule    *chaos.Rule     `json:"chaosRule,omitempty"`
}

type AnswersProgressPayload struct {
	Count int `json:"count"`
	Total int `json:"total"`
}

type VotingBallotPayload struct {
	Round   int           `json:"round"`
	Entries []BallotEntry `json:"entries"`
}

type VoteSubmittedPayload struct {
	VoterID    string `json:"voterId"`
	VotedForID string `json:"votedForId"`
}

type RosterPayload struct {
	Players []Player `json:"players"`
	HostID  string   `json:"hostId"`
	Phase   Phase    `json:"phase"`
}

type RejectedPayload struct {
	Command string `json:"command"`
	Reason  string `json:"reason"`
	Message string `json:"message"`
}

// Discard drops every event.
type Discard struct{}

func (Discard) Broadcast(string, string, any)      {}
func (Discard) SendTo(string, string, string, any) {}
