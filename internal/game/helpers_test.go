package game

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kiliankoe/chaosdash/internal/chaos"
	"github.com/kiliankoe/chaosdash/internal/prompt"
)

type sent struct {
	room    string
	to      string // empty for room broadcasts
	event   string
	payload any
}

// recorder is a Broadcaster that keeps everything it was asked to send.
type recorder struct {
	mu     sync.Mutex
	events []sent
}

func (r *recorder) Broadcast(roomID, event string, payload any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, sent{room: roomID, event: event, payload: payload})
}

func (r *recorder) SendTo(roomID, playerID, event string, payload any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, sent{room: roomID, to: playerID, event: event, payload: payload})
}

func (r *recorder) count(event string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.event == event {
			n++
		}
	}
	return n
}

func (r *recorder) last(event string) (sent, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.events) - 1; i >= 0; i-- {
		if r.events[i].event == event {
			return r.events[i], true
		}
	}
	return sent{}, false
}

type staticPrompts struct{ text string }

func (p staticPrompts) Prompt(ctx context.Context, theme string) (prompt.Template, error) {
	return prompt.Template{Text: p.text, Theme: theme}, nil
}

// rulesByRound hands out a fixed rule per round.
type rulesByRound map[int]*chaos.Rule

func (m rulesByRound) Pick(s chaos.State) *chaos.Rule {
	r := m[s.Round]
	if r == nil {
		return nil
	}
	c := *r
	return &c
}

func ruleOf(t *testing.T, kind chaos.Kind) *chaos.Rule {
	t.Helper()
	for _, r := range chaos.Catalog() {
		if r.Kind == kind {
			r := r
			return &r
		}
	}
	require.FailNow(t, "no catalog rule", "kind %s", kind)
	return nil
}

func testSettings() Settings {
	s := DefaultSettings()
	s.GraceDelay = 0
	s.EmptyRoomTTL = 0
	s.PromptTimeout = time.Second
	return s
}

type fixture struct {
	reg *Registry
	m   *Machine
	out *recorder
}

func newFixture(t *testing.T, s Settings, picker RulePicker) fixture {
	t.Helper()
	out := &recorder{}
	reg := NewRegistry(s, out)
	t.Cleanup(reg.Close)
	m := NewMachine(reg, staticPrompts{text: "The worst thing to bring to a picnic: ____"}, picker)
	return fixture{reg: reg, m: m, out: out}
}

// room creates roomID and joins the given players in order.
func (f fixture) room(t *testing.T, roomID string, players ...string) {
	t.Helper()
	for _, p := range players {
		_, err := f.reg.Enter(context.Background(), roomID, "classic", p, "name-"+p)
		require.NoError(t, err, "join %s", p)
	}
}

func (f fixture) snap(t *testing.T, roomID string) Snapshot {
	t.Helper()
	s, err := f.reg.GetRoom(context.Background(), roomID)
	require.NoError(t, err, "get room %s", roomID)
	return s
}

// state is a snapshot that also carries the answers and votes of the round
// in progress, which client snapshots leave out.
func (f fixture) state(t *testing.T, roomID string) Snapshot {
	t.Helper()
	var s Snapshot
	err := f.reg.do(context.Background(), roomID, func(_ *roomActor, r *Room) error {
		s = r.snapshot()
		s.Answers = append([]Answer{}, r.Answers...)
		s.Votes = make(map[string]string, len(r.Votes))
		for k, v := range r.Votes {
			s.Votes[k] = v
		}
		return nil
	})
	require.NoError(t, err, "get room %s", roomID)
	return s
}

func (f fixture) start(t *testing.T, roomID, hostID string) {
	t.Helper()
	require.NoError(t, f.m.StartGame(context.Background(), roomID, hostID))
}

func (f fixture) answer(t *testing.T, roomID, playerID, text string) {
	t.Helper()
	err := f.m.SubmitAnswer(context.Background(), roomID, playerID, text)
	require.NoError(t, err, "answer from %s", playerID)
}

func (f fixture) vote(t *testing.T, roomID, voterID, target string) {
	t.Helper()
	err := f.m.SubmitVote(context.Background(), roomID, voterID, target)
	require.NoError(t, err, "vote %s -> %s", voterID, target)
}

// phase is safe to call from require.Eventually conditions.
func (f fixture) phase(roomID string) Phase {
	s, _ := f.reg.GetRoom(context.Background(), roomID)
	return s.Phase
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	require.Eventually(t, cond, 2*time.Second, 5*time.Millisecond, "timed out waiting for %s", what)
}

// checkInvariants asserts the structural guarantees every room keeps.
func checkInvariants(t *testing.T, s Snapshot) {
	t.Helper()
	require.LessOrEqual(t, len(s.Answers), len(s.Players), "more answers than players")
	seen := map[string]bool{}
	for _, a := range s.Answers {
		require.False(t, seen[a.PlayerID], "duplicate answer from %s", a.PlayerID)
		seen[a.PlayerID] = true
		_, ok := s.Player(a.PlayerID)
		require.True(t, ok, "answer from %s who is not in the room", a.PlayerID)
	}
	if len(s.Players) > 0 {
		_, ok := s.Player(s.HostID)
		require.True(t, ok, "host %q is not in the room", s.HostID)
	}
	for voter, target := range s.Votes {
		_, ok := s.Player(voter)
		require.True(t, ok, "vote from %s who is not in the room", voter)
		_, ok = s.Player(target)
		require.True(t, ok, "vote for %s who is not in the room", target)
	}
	for _, p := range s.Players {
		assert.GreaterOrEqual(t, p.Score, 0, "negative score for %s", p.ID)
	}
}
