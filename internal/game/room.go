package game

import (
	"hash/fnv"
	"time"

	"github.com/kiliankoe/chaosdash/internal/chaos"
	"github.com/kiliankoe/chaosdash/internal/prompt"
)

// Room is the authoritative record of one game session. It is owned by the
// room's actor goroutine and must never be touched from anywhere else.
type Room struct {
	ID        string
	Theme     string
	CreatedAt time.Time

	Players map[string]*Player
	order   []string // player ids in join order
	HostID  string

	Phase  Phase
	Round  int
	Prompt *prompt.Template
	Rule   *chaos.Rule

	// per round state
	Answers []Answer          // one per player, in first-submission order
	Votes   map[string]string // voterID -> votedForID
	Ballot  []BallotEntry
}

func newRoom(id, theme string, now time.Time) *Room {
	return &Room{
		ID:        id,
		Theme:     theme,
		CreatedAt: now,
		Players:   make(map[string]*Player),
		Phase:     PhaseWaiting,
		Votes:     make(map[string]string),
	}
}

var avatars = []string{"🦊", "🐼", "🐸", "🦉", "🐙", "🦄", "🐢", "🦁", "🐧", "🦖", "🐝", "🦩", "🐨", "🦔", "🐳", "🦜"}

// avatarFor derives a stable avatar from a display name.
func avatarFor(name string) string {
	h := fnv.New32a()
	_, _ = h.Write([]byte(name))
	return avatars[h.Sum32()%uint32(len(avatars))]
}

func (r *Room) addPlayer(id, name string, now time.Time) *Player {
	p := &Player{ID: id, Name: name, Avatar: avatarFor(name), JoinedAt: now}
	r.Players[id] = p
	r.order = append(r.order, id)
	if r.HostID == "" {
		r.HostID = id
	}
	return p
}

// removal describes what a departing player took with them.
type removal struct {
	playerID   string
	wasHost    bool
	hadAnswer  bool
	voidVoters []string // voters whose vote pointed at the departed player
}

// removePlayer drops a player and every round obligation tied to them. The
// host passes to the earliest-joined remaining player.
func (r *Room) removePlayer(id string) removal {
	rm := removal{playerID: id, wasHost: r.HostID == id}
	delete(r.Players, id)
	for i, pid := range r.order {
		if pid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	if i := r.answerIndex(id); i >= 0 {
		r.Answers = append(r.Answers[:i], r.Answers[i+1:]...)
		rm.hadAnswer = true
	}
	for i, e := range r.Ballot {
		if e.PlayerID == id {
			r.Ballot = append(r.Ballot[:i], r.Ballot[i+1:]...)
			break
		}
	}
	delete(r.Votes, id)
	for voter, target := range r.Votes {
		if target == id {
			delete(r.Votes, voter)
			rm.voidVoters = append(rm.voidVoters, voter)
		}
	}
	if rm.wasHost {
		r.HostID = ""
		if len(r.order) > 0 {
			r.HostID = r.order[0]
		}
	}
	return rm
}

func (r *Room) answerIndex(playerID string) int {
	for i, a := range r.Answers {
		if a.PlayerID == playerID {
			return i
		}
	}
	return -1
}

// upsertAnswer replaces a player's earlier answer in place.
func (r *Room) upsertAnswer(a Answer) {
	if i := r.answerIndex(a.PlayerID); i >= 0 {
		r.Answers[i] = a
		return
	}
	r.Answers = append(r.Answers, a)
}

func (r *Room) resetRound() {
	r.Answers = nil
	r.Votes = make(map[string]string)
	r.Ballot = nil
}

func (r *Room) onBallot(playerID string) bool {
	for _, e := range r.Ballot {
		if e.PlayerID == playerID {
			return true
		}
	}
	return false
}

// buildBallot lists stored answers in join order.
func (r *Room) buildBallot() []BallotEntry {
	out := make([]BallotEntry, 0, len(r.Answers))
	for _, id := range r.order {
		i := r.answerIndex(id)
		if i < 0 {
			continue
		}
		out = append(out, BallotEntry{PlayerID: id, Name: r.Players[id].Name, Text: r.Answers[i].Text})
	}
	return out
}

func (r *Room) players() []Player {
	out := make([]Player, 0, len(r.order))
	for _, id := range r.order {
		p := *r.Players[id]
		p.IsHost = id == r.HostID
		out = append(out, p)
	}
	return out
}

// snapshot is the view handed out of the actor. Answers and votes only show
// up once the round is scored; before that clients get counts, and during
// voting the ballot carries the answer texts.
func (r *Room) snapshot() Snapshot {
	s := Snapshot{
		ID:          r.ID,
		Theme:       r.Theme,
		Phase:       r.Phase,
		Round:       r.Round,
		HostID:      r.HostID,
		Players:     r.players(),
		AnswerCount: len(r.Answers),
		VoteCount:   len(r.Votes),
		Ballot:      append([]BallotEntry(nil), r.Ballot...),
	}
	if r.Phase == PhaseResults {
		s.Answers = append([]Answer{}, r.Answers...)
		s.Votes = make(map[string]string, len(r.Votes))
		for k, v := range r.Votes {
			s.Votes[k] = v
		}
	}
	if r.Prompt != nil {
		p := *r.Prompt
		s.Prompt = &p
	}
	if r.Rule != nil {
		rule := *r.Rule
		s.Rule = &rule
	}
	return s
}

func (r *Room) summary() Summary {
	return Summary{ID: r.ID, Theme: r.Theme, Phase: r.Phase, Round: r.Round, Players: len(r.Players), CreatedAt: r.CreatedAt}
}

// checkVote validates a ballot without touching the room. The self-voting
// checks run before the duplicate check.
func checkVote(r *Room, voterID, votedForID string, votersMustAnswer bool) error {
	if _, ok := r.Players[voterID]; !ok {
		return ErrNotInRoom
	}
	if votersMustAnswer && !r.onBallot(voterID) {
		return ErrNotEligible
	}
	self := voterID == votedForID
	policy := r.Rule.SelfVoting()
	if self && policy == chaos.SelfVoteForbidden {
		return ErrSelfVoteForbidden
	}
	if !self && policy == chaos.SelfVoteRequired {
		return ErrSelfVoteRequired
	}
	if _, voted := r.Votes[voterID]; voted {
		return ErrAlreadyVoted
	}
	if _, ok := r.Players[votedForID]; !ok || !r.onBallot(votedForID) {
		return ErrInvalidTarget
	}
	return nil
}

// canVote reports whether voterID has at least one valid target left.
func canVote(r *Room, voterID string) bool {
	for _, e := range r.Ballot {
		self := e.PlayerID == voterID
		switch r.Rule.SelfVoting() {
		case chaos.SelfVoteForbidden:
			if !self {
				return true
			}
		case chaos.SelfVoteRequired:
			if self {
				return true
			}
		}
	}
	return false
}

// roundComplete is the single completion predicate for the current phase:
// answering is done when every present player answered, voting when every
// answerer who still has a valid target has voted.
func roundComplete(r *Room) bool {
	switch r.Phase {
	case PhaseAnswering:
		if len(r.Players) == 0 {
			return false
		}
		for id := range r.Players {
			if r.answerIndex(id) < 0 {
				return false
			}
		}
		return true
	case PhaseVoting:
		for _, e := range r.Ballot {
			if _, voted := r.Votes[e.PlayerID]; voted {
				continue
			}
			if canVote(r, e.PlayerID) {
				return false
			}
		}
		return true
	}
	return false
}
