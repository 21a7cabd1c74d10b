package game

import (
	"time"

	"github.com/kiliankoe/chaosdash/internal/chaos"
	"github.com/kiliankoe/chaosdash/internal/prompt"
)

type Phase string

const (
	PhaseWaiting   Phase = "waiting"
	PhaseAnswering Phase = "answering"
	PhaseVoting    Phase = "voting"
	PhaseResults   Phase = "results"
)

// Settings are the tunables shared by the registry and the round machine.
type Settings struct {
	MinPlayers       int           // players needed to start; values below 1 mean 1
	MaxPlayers       int           // 0 means unbounded
	GraceDelay       time.Duration // pause before auto-advancing a finished phase
	PromptTimeout    time.Duration
	EmptyRoomTTL     time.Duration // how long a room nobody joined is kept
	MaxAnswerLen     int           // in runes, 0 means unbounded
	VotersMustAnswer bool
}

func DefaultSettings() Settings {
	return Settings{
		MinPlayers:       2,
		GraceDelay:       1500 * time.Millisecond,
		PromptTimeout:    2 * time.Second,
		EmptyRoomTTL:     2 * time.Minute,
		MaxAnswerLen:     140,
		VotersMustAnswer: true,
	}
}

type Player struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Score    int       `json:"score"`
	Currency int       `json:"currency"`
	Avatar   string    `json:"avatar"`
	IsHost   bool      `json:"isHost"`
	JoinedAt time.Time `json:"joinedAt"`
}

type Answer struct {
	PlayerID    string    `json:"playerId"`
	Original    string    `json:"original"`
	Text        string    `json:"text"`
	SubmittedAt time.Time `json:"submittedAt"`
}

// BallotEntry is one votable answer. Author identity is part of the ballot:
// votes are addressed by player id.
type BallotEntry struct {
	PlayerID string `json:"playerId"`
	Name     string `json:"name"`
	Text     string `json:"text"`
}

// Snapshot is a copy of a room that is safe to hand out of the actor.
type Snapshot struct {
	ID      string           `json:"id"`
	Theme   string           `json:"theme"`
	Phase   Phase            `json:"phase"`
	Round   int              `json:"round"`
	HostID  string           `json:"hostId"`
	Players []Player         `json:"players"`
	Prompt  *prompt.Template `json:"prompt,omitempty"`
	Rule    *chaos.Rule      `json:"chaosRule,omitempty"`
	Ballot  []BallotEntry    `json:"ballot,omitempty"`

	AnswerCount int               `json:"answerCount"`
	VoteCount   int               `json:"voteCount"`
	Answers     []Answer          `json:"answers,omitempty"` // results phase only
	Votes       map[string]string `json:"votes,omitempty"`   // results phase only
}

// Player looks up a player in the snapshot.
func (s Snapshot) Player(id string) (Player, bool) {
	for _, p := range s.Players {
		if p.ID == id {
			return p, true
		}
	}
	return Player{}, false
}

// Summary is the admin view of a room.
type Summary struct {
	ID        string    `json:"id"`
	Theme     string    `json:"theme"`
	Phase     Phase     `json:"phase"`
	Round     int       `json:"round"`
	Players   int       `json:"players"`
	CreatedAt time.Time `json:"createdAt"`
}

// RoundResults is everything revealed once a round is scored.
type RoundResults struct {
	RoomID   string            `json:"roomId"`
	Round    int               `json:"round"`
	Prompt   string            `json:"prompt"`
	Winner   string            `json:"winner,omitempty"`
	Tallies  map[string]int    `json:"tallies"`
	Deltas   map[string]int    `json:"deltas"`
	Answers  []Answer          `json:"answers"`
	Votes    map[string]string `json:"votes"`
	Scores   map[string]int    `json:"scores"`
	Currency map[string]int    `json:"currency"`
	Rule     *chaos.Rule       `json:"chaosRule,omitempty"`
	Players  []Player          `json:"players"`
}
