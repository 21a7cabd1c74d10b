// Package chaos picks round-scoped rule mutations ("chaos rules") for a room.
//
// A Modifier only proposes a Rule. The round machine stores it on the room and
// applies it; nothing here touches room or player state.
package chaos

import (
	"math/rand"
	"sync"
)

type Kind string

const (
	KindReverseVoting  Kind = "reverse-voting"
	KindDoublePoints   Kind = "double-points"
	KindTriplePoints   Kind = "triple-points"
	KindForcedSelfVote Kind = "forced-self-vote"
	KindNoSelfVote     Kind = "no-self-vote"
	KindBackwards      Kind = "backwards-answers"
	KindEmojiOnly      Kind = "emoji-only"
)

type Polarity string

const (
	PolarityNormal   Polarity = "normal"   // highest tally wins
	PolarityReversed Polarity = "reversed" // lowest tally wins
)

type Transform string

const (
	TransformIdentity  Transform = "identity"
	TransformReverse   Transform = "reverse"
	TransformEmojiOnly Transform = "emoji-only"
)

type SelfVote string

const (
	SelfVoteForbidden SelfVote = "forbidden"
	SelfVoteRequired  SelfVote = "required"
)

// Rule is a single tagged modifier. A nil *Rule is the normal rule set and
// every accessor is safe to call on it.
type Rule struct {
	Kind         Kind      `json:"kind"`
	Polarity     Polarity  `json:"polarity"`
	Multiplier   int       `json:"multiplier"`
	Transform    Transform `json:"transform"`
	SelfVote     SelfVote  `json:"selfVote"`
	Announcement string    `json:"announcement"`
}

func (r *Rule) VotingPolarity() Polarity {
	if r == nil || r.Polarity == "" {
		return PolarityNormal
	}
	return r.Polarity
}

func (r *Rule) PointMultiplier() int {
	if r == nil || r.Multiplier < 1 {
		return 1
	}
	return r.Multiplier
}

func (r *Rule) SelfVoting() SelfVote {
	if r == nil || r.SelfVote == "" {
		return SelfVoteForbidden
	}
	return r.SelfVote
}

func (r *Rule) TextTransform() Transform {
	if r == nil || r.Transform == "" {
		return TransformIdentity
	}
	return r.Transform
}

// Apply runs the rule's answer transform over text.
func (r *Rule) Apply(text string) string {
	switch r.TextTransform() {
	case TransformReverse:
		return Reverse(text)
	case TransformEmojiOnly:
		return EmojiOnly(text)
	default:
		return text
	}
}

func base(kind Kind, announcement string) Rule {
	return Rule{
		Kind:         kind,
		Polarity:     PolarityNormal,
		Multiplier:   1,
		Transform:    TransformIdentity,
		SelfVote:     SelfVoteForbidden,
		Announcement: announcement,
	}
}

// Catalog returns a fresh copy of every rule the modifier can pick from.
func Catalog() []Rule {
	reverse := base(KindReverseVoting, "Upside down! The answer with the FEWEST votes wins this round.")
	reverse.Polarity = PolarityReversed

	double := base(KindDoublePoints, "Double points! Every vote counts twice.")
	double.Multiplier = 2

	triple := base(KindTriplePoints, "Triple points! Every vote counts three times.")
	triple.Multiplier = 3

	forced := base(KindForcedSelfVote, "Narcissist round: you MUST vote for your own answer.")
	forced.SelfVote = SelfVoteRequired

	noSelf := base(KindNoSelfVote, "Modesty round: voting for yourself is strictly forbidden.")

	backwards := base(KindBackwards, "Backwards day! Every answer will be reversed.")
	backwards.Transform = TransformReverse

	emoji := base(KindEmojiOnly, "Emoji only! Anything that isn't an emoji gets stripped.")
	emoji.Transform = TransformEmojiOnly

	return []Rule{reverse, double, triple, forced, noSelf, backwards, emoji}
}

// State is what the modifier may look at when choosing.
type State struct {
	Round   int
	Players int
}

type Modifier struct {
	probability float64
	catalog     []Rule

	mu  sync.Mutex
	rng *rand.Rand
}

// NewModifier builds a modifier that fires with the given probability
// (clamped to [0,1]) using rng as its only source of randomness.
func NewModifier(probability float64, rng *rand.Rand) *Modifier {
	if probability < 0 {
		probability = 0
	}
	if probability > 1 {
		probability = 1
	}
	return &Modifier{probability: probability, catalog: Catalog(), rng: rng}
}

// Pick returns the rule for the round, or nil for a normal round.
// Round 1 never gets a rule.
func (m *Modifier) Pick(s State) *Rule {
	if s.Round < 2 || m.probability == 0 {
		return nil
	}
	candidates := make([]Rule, 0, len(m.catalog))
	for _, r := range m.catalog {
		// a lone player could never cast a valid vote with self-voting forbidden
		if r.Kind == KindNoSelfVote && s.Players < 2 {
			continue
		}
		candidates = append(candidates, r)
	}
	if len(candidates) == 0 {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.rng.Float64() >= m.probability {
		return nil
	}
	picked := candidates[m.rng.Intn(len(candidates))]
	return &picked
}
