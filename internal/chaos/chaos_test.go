package chaos

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilRuleDefaults(t *testing.T) {
	var r *Rule
	assert.Equal(t, PolarityNormal, r.VotingPolarity())
	assert.Equal(t, 1, r.PointMultiplier())
	assert.Equal(t, SelfVoteForbidden, r.SelfVoting())
	assert.Equal(t, TransformIdentity, r.TextTransform())
	assert.Equal(t, "banana", r.Apply("banana"))
}

func TestCatalogCoversEveryKind(t *testing.T) {
	kinds := map[Kind]*Rule{}
	for _, r := range Catalog() {
		require.NotEmpty(t, r.Announcement, "rule %s needs an announcement", r.Kind)
		rule := r
		kinds[r.Kind] = &rule
	}
	require.Len(t, kinds, 7)

	assert.Equal(t, PolarityReversed, kinds[KindReverseVoting].VotingPolarity())
	assert.Equal(t, 2, kinds[KindDoublePoints].PointMultiplier())
	assert.Equal(t, 3, kinds[KindTriplePoints].PointMultiplier())
	assert.Equal(t, SelfVoteRequired, kinds[KindForcedSelfVote].SelfVoting())
	assert.Equal(t, SelfVoteForbidden, kinds[KindNoSelfVote].SelfVoting())
	assert.Equal(t, TransformReverse, kinds[KindBackwards].TextTransform())
	assert.Equal(t, TransformEmojiOnly, kinds[KindEmojiOnly].TextTransform())
}

func TestCatalogReturnsCopies(t *testing.T) {
	a := Catalog()
	a[0].Multiplier = 99
	b := Catalog()
	assert.NotEqual(t, 99, b[0].Multiplier)
}

func TestPickNeverFiresInFirstRound(t *testing.T) {
	m := NewModifier(1, rand.New(rand.NewSource(1)))
	for i := 0; i < 50; i++ {
		assert.Nil(t, m.Pick(State{Round: 1, Players: 4}))
	}
}

func TestPickProbabilityBounds(t *testing.T) {
	never := NewModifier(0, rand.New(rand.NewSource(1)))
	always := NewModifier(1, rand.New(rand.NewSource(1)))
	for round := 2; round < 40; round++ {
		assert.Nil(t, never.Pick(State{Round: round, Players: 3}))
		assert.NotNil(t, always.Pick(State{Round: round, Players: 3}))
	}
}

func TestPickClampsProbability(t *testing.T) {
	m := NewModifier(7, rand.New(rand.NewSource(3)))
	assert.NotNil(t, m.Pick(State{Round: 2, Players: 2}))

	m = NewModifier(-1, rand.New(rand.NewSource(3)))
	assert.Nil(t, m.Pick(State{Round: 2, Players: 2}))
}

func TestPickIsDeterministicForSeed(t *testing.T) {
	a := NewModifier(0.5, rand.New(rand.NewSource(42)))
	b := NewModifier(0.5, rand.New(rand.NewSource(42)))
	for round := 2; round < 30; round++ {
		assert.Equal(t, a.Pick(State{Round: round, Players: 3}), b.Pick(State{Round: round, Players: 3}))
	}
}

func TestPickSkipsNoSelfVoteForSoloRoom(t *testing.T) {
	m := NewModifier(1, rand.New(rand.NewSource(9)))
	for i := 0; i < 200; i++ {
		r := m.Pick(State{Round: 2, Players: 1})
		require.NotNil(t, r)
		assert.NotEqual(t, KindNoSelfVote, r.Kind)
	}
}

func TestPickedRuleIsIndependent(t *testing.T) {
	m := NewModifier(1, rand.New(rand.NewSource(5)))
	r := m.Pick(State{Round: 3, Players: 3})
	require.NotNil(t, r)
	r.Announcement = "changed"
	for i := 0; i < 50; i++ {
		next := m.Pick(State{Round: 3, Players: 3})
		assert.NotEqual(t, "changed", next.Announcement)
	}
}

func TestReverse(t *testing.T) {
	assert.Equal(t, "ananab", Reverse("banana"))
	assert.Equal(t, "", Reverse(""))
	// "e" + combining acute composes to a single rune before reversing
	assert.Equal(t, "\u00e9fac", Reverse("cafe\u0301"))
	assert.Equal(t, "🍌 ih", Reverse("hi 🍌"))
}

func TestEmojiOnly(t *testing.T) {
	assert.Equal(t, "🍌🥄", EmojiOnly("banana 🍌 and spoon 🥄"))
	assert.Equal(t, EmptyEmojiAnswer, EmojiOnly("no emoji here"))
	assert.Equal(t, "👍🏽", EmojiOnly("ok 👍🏽!"))
	assert.Equal(t, "❤️", EmojiOnly("love ❤️"))
}

func TestApplyUsesTransform(t *testing.T) {
	backwards := &Rule{Transform: TransformReverse}
	emoji := &Rule{Transform: TransformEmojiOnly}
	assert.Equal(t, "noops", backwards.Apply("spoon"))
	assert.Equal(t, "🥄", emoji.Apply("spoon 🥄"))
}

func TestNewRand(t *testing.T) {
	a, err := NewRand(11)
	require.NoError(t, err)
	b, err := NewRand(11)
	require.NoError(t, err)
	assert.Equal(t, a.Int63(), b.Int63())

	c, err := NewRand(0)
	require.NoError(t, err)
	assert.NotNil(t, c)
}
