package ws

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/kiliankoe/chaosdash/internal/game"
	"github.com/kiliankoe/chaosdash/internal/prompt"
)

const (
	commandTimeout = 10 * time.Second
	outboxSize     = 64
)

type JoinPayload struct {
	RoomID   string `json:"roomId"`
	Name     string `json:"name"`
	ThemeID  string `json:"themeId"`
	PlayerID string `json:"playerId,omitempty"`
}

type AnswerPayload struct {
	Text string `json:"text"`
}

type VotePayload struct {
	VotedForID string `json:"votedForId"`
}

// Ack is the direct reply to a command.
type Ack struct {
	Command  string         `json:"command,omitempty"`
	OK       bool           `json:"ok"`
	Reason   string         `json:"reason,omitempty"`
	Error    string         `json:"error,omitempty"`
	RoomID   string         `json:"roomId,omitempty"`
	PlayerID string         `json:"playerId,omitempty"`
	Room     *game.Snapshot `json:"room,omitempty"`
}

// Session is the per-connection state shared by both transports.
type Session struct {
	out     *outbox
	limiter *rate.Limiter

	mu          sync.Mutex
	roomID      string
	playerID    string
	defaultRoom string
}

func (s *Session) ID() string { return s.out.id }

// Member reports the room and player this connection joined as.
func (s *Session) Member() (roomID, playerID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.roomID, s.playerID
}

func (s *Session) setMember(roomID, playerID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.roomID, s.playerID = roomID, playerID
}

// Limits configures the per-connection command token bucket.
type Limits struct {
	Rate  float64 // commands per second, 0 disables limiting
	Burst int
}

// Dispatcher turns client commands into registry and machine calls.
type Dispatcher struct {
	reg     *game.Registry
	machine *game.Machine
	hub     *Hub
	limits  Limits
}

func NewDispatcher(reg *game.Registry, m *game.Machine, hub *Hub, limits Limits) *Dispatcher {
	if limits.Burst < 1 {
		limits.Burst = 1
	}
	return &Dispatcher{reg: reg, machine: m, hub: hub, limits: limits}
}

func (d *Dispatcher) NewSession(id string) *Session {
	limit := rate.Inf
	if d.limits.Rate > 0 {
		limit = rate.Limit(d.limits.Rate)
	}
	return &Session{
		out:     newOutbox(id, outboxSize),
		limiter: rate.NewLimiter(limit, d.limits.Burst),
	}
}

func commandContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), commandTimeout)
}

// refuse rejects a command before it reaches the game.
func (d *Dispatcher) refuse(s *Session, command, reason, message string) Ack {
	s.out.Emit(game.EventCommandRejected, game.RejectedPayload{Command: command, Reason: reason, Message: message})
	return Ack{Command: command, Reason: reason, Error: message}
}

func result(command string, err error) Ack {
	if err != nil {
		return Ack{Command: command, Reason: game.Reason(err), Error: err.Error()}
	}
	return Ack{Command: command, OK: true}
}

// admit applies the rate limit and membership check shared by all game
// commands.
func (d *Dispatcher) admit(s *Session, command string) (string, string, *Ack) {
	if !s.limiter.Allow() {
		ack := d.refuse(s, command, "rate_limited", "slow down")
		return "", "", &ack
	}
	roomID, playerID := s.Member()
	if roomID == "" {
		ack := d.refuse(s, command, "not_joined", "join a room first")
		return "", "", &ack
	}
	return roomID, playerID, nil
}

func (d *Dispatcher) Join(ctx context.Context, s *Session, p JoinPayload) Ack {
	if !s.limiter.Allow() {
		return d.refuse(s, game.CmdJoin, "rate_limited", "slow down")
	}
	roomID := p.RoomID
	if strings.TrimSpace(roomID) == "" {
		s.mu.Lock()
		roomID = s.defaultRoom
		s.mu.Unlock()
	}
	roomID = strings.ToUpper(strings.TrimSpace(roomID))
	if roomID == "" {
		return d.refuse(s, game.CmdJoin, "bad_request", "roomId is required")
	}
	curRoom, curPlayer := s.Member()
	if curRoom != "" && (curRoom != roomID || (p.PlayerID != "" && p.PlayerID != curPlayer)) {
		d.leave(ctx, s)
		curRoom, curPlayer = "", ""
	}
	playerID := curPlayer
	if playerID == "" {
		playerID = p.PlayerID
	}
	if playerID == "" {
		playerID = game.NewPlayerID()
	}
	theme := strings.TrimSpace(p.ThemeID)
	if theme == "" {
		theme = prompt.DefaultTheme
	}

	// register first so the joiner sees its own roster update
	d.hub.Add(roomID, playerID, s.out)
	snap, err := d.reg.Enter(ctx, roomID, theme, playerID, p.Name)
	if err != nil {
		if curRoom == "" {
			d.hub.Remove(roomID, playerID, s.out)
		}
		return d.refuse(s, game.CmdJoin, game.Reason(err), err.Error())
	}
	s.setMember(roomID, playerID)
	log.Info().Str("sid", s.ID()).Str("room", roomID).Str("player", playerID).Msg(game.CmdJoin)
	return Ack{Command: game.CmdJoin, OK: true, RoomID: roomID, PlayerID: playerID, Room: &snap}
}

func (d *Dispatcher) Leave(ctx context.Context, s *Session) Ack {
	if _, _, ack := d.admit(s, game.CmdLeave); ack != nil {
		return *ack
	}
	d.leave(ctx, s)
	return Ack{Command: game.CmdLeave, OK: true}
}

// leave detaches the connection and removes the player once their last
// connection is gone.
func (d *Dispatcher) leave(ctx context.Context, s *Session) {
	roomID, playerID := s.Member()
	if roomID == "" {
		return
	}
	s.setMember("", "")
	if d.hub.Remove(roomID, playerID, s.out) > 0 {
		return
	}
	err := d.reg.LeaveRoom(ctx, roomID, playerID)
	if err != nil && !errors.Is(err, game.ErrRoomNotFound) && !errors.Is(err, game.ErrNotInRoom) {
		log.Warn().Err(err).Str("room", roomID).Str("player", playerID).Msg("leave failed")
	}
}

// Disconnect cleans up after a closed connection.
func (d *Dispatcher) Disconnect(s *Session) {
	s.out.close()
	ctx, cancel := commandContext()
	defer cancel()
	d.leave(ctx, s)
}

func (d *Dispatcher) Start(ctx context.Context, s *Session) Ack {
	roomID, playerID, ack := d.admit(s, game.CmdStart)
	if ack != nil {
		return *ack
	}
	return result(game.CmdStart, d.machine.StartGame(ctx, roomID, playerID))
}

func (d *Dispatcher) Answer(ctx context.Context, s *Session, p AnswerPayload) Ack {
	roomID, playerID, ack := d.admit(s, game.CmdAnswer)
	if ack != nil {
		return *ack
	}
	return result(game.CmdAnswer, d.machine.SubmitAnswer(ctx, roomID, playerID, p.Text))
}

func (d *Dispatcher) Vote(ctx context.Context, s *Session, p VotePayload) Ack {
	roomID, playerID, ack := d.admit(s, game.CmdVote)
	if ack != nil {
		return *ack
	}
	return result(game.CmdVote, d.machine.SubmitVote(ctx, roomID, playerID, p.VotedForID))
}

func (d *Dispatcher) NextRound(ctx context.Context, s *Session) Ack {
	roomID, playerID, ack := d.admit(s, game.CmdNextRound)
	if ack != nil {
		return *ack
	}
	return result(game.CmdNextRound, d.machine.StartNextRound(ctx, roomID, playerID))
}

func (d *Dispatcher) ForceAdvance(ctx context.Context, s *Session) Ack {
	roomID, playerID, ack := d.admit(s, game.CmdForceAdvance)
	if ack != nil {
		return *ack
	}
	return result(game.CmdForceAdvance, d.machine.ForceAdvance(ctx, roomID, playerID))
}

// Dispatch decodes and runs a command arriving as a typed JSON message.
func (d *Dispatcher) Dispatch(ctx context.Context, s *Session, command string, data json.RawMessage) Ack {
	decode := func(v any) bool {
		if len(data) == 0 {
			return true
		}
		return json.Unmarshal(data, v) == nil
	}
	switch command {
	case game.CmdJoin:
		var p JoinPayload
		if !decode(&p) {
			return d.refuse(s, command, "bad_request", "invalid payload")
		}
		return d.Join(ctx, s, p)
	case game.CmdLeave:
		return d.Leave(ctx, s)
	case game.CmdStart:
		return d.Start(ctx, s)
	case game.CmdAnswer:
		var p AnswerPayload
		if !decode(&p) {
			return d.refuse(s, command, "bad_request", "invalid payload")
		}
		return d.Answer(ctx, s, p)
	case game.CmdVote:
		var p VotePayload
		if !decode(&p) {
			return d.refuse(s, command, "bad_request", "invalid payload")
		}
		return d.Vote(ctx, s, p)
	case game.CmdNextRound:
		return d.NextRound(ctx, s)
	case game.CmdForceAdvance:
		return d.ForceAdvance(ctx, s)
	default:
		return d.refuse(s, command, "unknown_command", "unknown command "+command)
	}
}
