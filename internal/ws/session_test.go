package ws

import (
	"context"
	"encoding/json"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kiliankoe/chaosdash/internal/game"
	"github.com/kiliankoe/chaosdash/internal/prompt"
)

func newDispatcher(t *testing.T, limits Limits) (*Dispatcher, *game.Registry) {
	t.Helper()
	settings := game.DefaultSettings()
	settings.GraceDelay = 0
	settings.EmptyRoomTTL = 0
	hub := NewHub()
	reg := game.NewRegistry(settings, hub)
	t.Cleanup(reg.Close)
	m := game.NewMachine(reg, prompt.NewCatalog(rand.New(rand.NewSource(1))), nil)
	return NewDispatcher(reg, m, hub, limits), reg
}

// drain returns the events queued for a session so far.
func drain(s *Session) []outbound {
	var out []outbound
	for {
		select {
		case m := <-s.out.ch:
			out = append(out, m)
		default:
			return out
		}
	}
}

func eventNames(ms []outbound) []string {
	names := make([]string, 0, len(ms))
	for _, m := range ms {
		names = append(names, m.event)
	}
	return names
}

func TestJoinAndStart(t *testing.T) {
	d, reg := newDispatcher(t, Limits{})
	ctx := context.Background()
	s1, s2 := d.NewSession("s1"), d.NewSession("s2")

	ack := d.Join(ctx, s1, JoinPayload{RoomID: " r1 ", Name: "Alice", ThemeID: "food"})
	require.True(t, ack.OK, ack.Error)
	assert.Equal(t, "R1", ack.RoomID)
	assert.NotEmpty(t, ack.PlayerID)
	require.NotNil(t, ack.Room)
	assert.Equal(t, "food", ack.Room.Theme)
	assert.Equal(t, ack.PlayerID, ack.Room.HostID)

	ack2 := d.Join(ctx, s2, JoinPayload{RoomID: "R1", Name: "Bob"})
	require.True(t, ack2.OK, ack2.Error)
	assert.Contains(t, eventNames(drain(s1)), game.EventRosterUpdated)

	ack = d.Start(ctx, s1)
	assert.True(t, ack.OK, ack.Error)
	assert.Contains(t, eventNames(drain(s1)), game.EventGameStarted)
	assert.Contains(t, eventNames(drain(s2)), game.EventGameStarted)

	snap, err := reg.GetRoom(ctx, "R1")
	require.NoError(t, err)
	assert.Equal(t, game.PhaseAnswering, snap.Phase)
}

func TestCommandBeforeJoin(t *testing.T) {
	d, _ := newDispatcher(t, Limits{})
	s := d.NewSession("s1")

	ack := d.Answer(context.Background(), s, AnswerPayload{Text: "hi"})
	assert.False(t, ack.OK)
	assert.Equal(t, "not_joined", ack.Reason)

	events := drain(s)
	require.Len(t, events, 1)
	assert.Equal(t, game.EventCommandRejected, events[0].event)
	assert.Equal(t, game.CmdAnswer, events[0].payload.(game.RejectedPayload).Command)
}

func TestRejectionsReachOnlyTheSender(t *testing.T) {
	d, _ := newDispatcher(t, Limits{})
	ctx := context.Background()
	host, guest := d.NewSession("host"), d.NewSession("guest")
	require.True(t, d.Join(ctx, host, JoinPayload{RoomID: "R1", Name: "Alice"}).OK)
	require.True(t, d.Join(ctx, guest, JoinPayload{RoomID: "R1", Name: "Bob"}).OK)
	drain(host)
	drain(guest)

	ack := d.Start(ctx, guest)
	assert.Equal(t, "not_host", ack.Reason)
	assert.Equal(t, []string{game.EventCommandRejected}, eventNames(drain(guest)))
	assert.Empty(t, drain(host))
}

func TestRateLimit(t *testing.T) {
	d, _ := newDispatcher(t, Limits{Rate: 0.001, Burst: 2})
	ctx := context.Background()
	s := d.NewSession("s1")

	require.True(t, d.Join(ctx, s, JoinPayload{RoomID: "R1", Name: "Alice"}).OK)
	assert.Equal(t, "not_enough_players", d.Start(ctx, s).Reason)
	assert.Equal(t, "rate_limited", d.Start(ctx, s).Reason)
}

func TestDisconnectLeavesRoom(t *testing.T) {
	d, reg := newDispatcher(t, Limits{})
	ctx := context.Background()
	s1, s2 := d.NewSession("s1"), d.NewSession("s2")
	a1 := d.Join(ctx, s1, JoinPayload{RoomID: "R1", Name: "Alice"})
	require.True(t, d.Join(ctx, s2, JoinPayload{RoomID: "R1", Name: "Bob"}).OK)

	d.Disconnect(s1)
	snap, err := reg.GetRoom(ctx, "R1")
	require.NoError(t, err)
	assert.Len(t, snap.Players, 1)
	assert.NotEqual(t, a1.PlayerID, snap.HostID)

	d.Disconnect(s2)
	_, err = reg.GetRoom(ctx, "R1")
	assert.ErrorIs(t, err, game.ErrRoomNotFound)
}

func TestSecondConnectionKeepsPlayer(t *testing.T) {
	d, reg := newDispatcher(t, Limits{})
	ctx := context.Background()
	tab1, tab2 := d.NewSession("tab1"), d.NewSession("tab2")
	ack := d.Join(ctx, tab1, JoinPayload{RoomID: "R1", Name: "Alice"})
	require.True(t, ack.OK)
	rejoin := d.Join(ctx, tab2, JoinPayload{RoomID: "R1", Name: "Alice", PlayerID: ack.PlayerID})
	require.True(t, rejoin.OK)
	assert.Equal(t, ack.PlayerID, rejoin.PlayerID)

	d.Disconnect(tab1)
	snap, err := reg.GetRoom(ctx, "R1")
	require.NoError(t, err)
	assert.Len(t, snap.Players, 1)
}

func TestLeaveCommand(t *testing.T) {
	d, reg := newDispatcher(t, Limits{})
	ctx := context.Background()
	s1, s2 := d.NewSession("s1"), d.NewSession("s2")
	require.True(t, d.Join(ctx, s1, JoinPayload{RoomID: "R1", Name: "Alice"}).OK)
	require.True(t, d.Join(ctx, s2, JoinPayload{RoomID: "R1", Name: "Bob"}).OK)

	assert.True(t, d.Leave(ctx, s2).OK)
	roomID, _ := s2.Member()
	assert.Empty(t, roomID)
	snap, err := reg.GetRoom(ctx, "R1")
	require.NoError(t, err)
	assert.Len(t, snap.Players, 1)
	assert.Equal(t, "not_joined", d.Leave(ctx, s2).Reason)
}

func TestDispatch(t *testing.T) {
	d, reg := newDispatcher(t, Limits{})
	ctx := context.Background()
	s1, s2 := d.NewSession("s1"), d.NewSession("s2")

	raw := func(v any) json.RawMessage {
		b, err := json.Marshal(v)
		require.NoError(t, err)
		return b
	}
	a1 := d.Dispatch(ctx, s1, game.CmdJoin, raw(JoinPayload{RoomID: "R1", Name: "Alice"}))
	require.True(t, a1.OK, a1.Error)
	a2 := d.Dispatch(ctx, s2, game.CmdJoin, raw(JoinPayload{RoomID: "R1", Name: "Bob"}))
	require.True(t, a2.OK, a2.Error)
	require.True(t, d.Dispatch(ctx, s1, game.CmdStart, nil).OK)
	require.True(t, d.Dispatch(ctx, s1, game.CmdAnswer, raw(AnswerPayload{Text: "banana"})).OK)
	require.True(t, d.Dispatch(ctx, s2, game.CmdAnswer, raw(AnswerPayload{Text: "spoon"})).OK)
	require.True(t, d.Dispatch(ctx, s1, game.CmdVote, raw(VotePayload{VotedForID: a2.PlayerID})).OK)
	require.True(t, d.Dispatch(ctx, s2, game.CmdVote, raw(VotePayload{VotedForID: a1.PlayerID})).OK)

	snap, err := reg.GetRoom(ctx, "R1")
	require.NoError(t, err)
	assert.Equal(t, game.PhaseResults, snap.Phase)

	require.True(t, d.Dispatch(ctx, s1, game.CmdNextRound, nil).OK)
	require.True(t, d.Dispatch(ctx, s1, game.CmdForceAdvance, nil).OK)

	assert.Equal(t, "bad_request", d.Dispatch(ctx, s1, game.CmdAnswer, json.RawMessage(`{"text": 5}`)).Reason)
	assert.Equal(t, "unknown_command", d.Dispatch(ctx, s1, "game:dance", nil).Reason)
}
