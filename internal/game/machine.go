package game

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog/log"

	"github.com/kiliankoe/chaosdash/internal/chaos"
	"github.com/kiliankoe/chaosdash/internal/prompt"
)

// Command names used in command-rejected events.
const (
	CmdJoin         = "room:join"
	CmdLeave        = "room:leave"
	CmdStart        = "game:start"
	CmdAnswer       = "game:answer"
	CmdVote         = "game:vote"
	CmdNextRound    = "game:advance-round"
	CmdForceAdvance = "game:force-advance"
)

// RulePicker proposes the chaos rule for a new round.
type RulePicker interface {
	Pick(s chaos.State) *chaos.Rule
}

// Exporter receives every scored round. It is called off the room actor.
type Exporter interface {
	ExportRound(res RoundResults) error
}

// Machine drives rooms through waiting, answering, voting and results. All
// state changes run on the room's actor; prompts are fetched before a command
// is queued so a slow provider never stalls a room.
type Machine struct {
	reg      *Registry
	prompts  prompt.Provider
	chaos    RulePicker
	exporter Exporter
	settings Settings
	out      Broadcaster
}

func NewMachine(reg *Registry, prompts prompt.Provider, picker RulePicker) *Machine {
	m := &Machine{
		reg:      reg,
		prompts:  prompts,
		chaos:    picker,
		settings: reg.settings,
		out:      reg.out,
	}
	reg.afterLeave = m.afterLeave
	return m
}

// SetExporter enables round export. Call before serving traffic.
func (m *Machine) SetExporter(e Exporter) { m.exporter = e }

func (m *Machine) reject(roomID, playerID, command string, err error) error {
	if err == nil {
		return nil
	}
	log.Debug().Err(err).Str("room", roomID).Str("player", playerID).Str("command", command).Msg("command rejected")
	m.out.SendTo(roomID, playerID, EventCommandRejected, RejectedPayload{
		Command: command,
		Reason:  Reason(err),
		Message: err.Error(),
	})
	return err
}

func checkHost(r *Room, playerID string) error {
	if _, ok := r.Players[playerID]; !ok {
		return ErrNotInRoom
	}
	if r.HostID != playerID {
		return ErrNotHost
	}
	return nil
}

func (m *Machine) checkStart(r *Room, playerID string) error {
	if err := checkHost(r, playerID); err != nil {
		return err
	}
	if r.Phase != PhaseWaiting {
		return ErrInvalidPhase
	}
	if len(r.Players) < m.settings.MinPlayers {
		return ErrNotEnoughPlayers
	}
	return nil
}

func checkNextRound(r *Room, playerID string) error {
	if err := checkHost(r, playerID); err != nil {
		return err
	}
	if r.Phase != PhaseResults {
		return ErrInvalidPhase
	}
	return nil
}

// precheck validates a command on the actor and reports the room theme, so
// that no prompt is fetched for a command that would be rejected anyway.
func (m *Machine) precheck(ctx context.Context, roomID string, check func(r *Room) error) (string, error) {
	var theme string
	err := m.reg.do(ctx, roomID, func(_ *roomActor, r *Room) error {
		theme = r.Theme
		return check(r)
	})
	return theme, err
}

// fetchPrompt asks the provider for a prompt, bounded by PromptTimeout. Any
// failure yields prompt.Default.
func (m *Machine) fetchPrompt(ctx context.Context, roomID, theme string) prompt.Template {
	if m.prompts == nil {
		return m.fallback(theme)
	}
	if d := m.settings.PromptTimeout; d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}
	type result struct {
		t   prompt.Template
		err error
	}
	ch := make(chan result, 1)
	go func() {
		t, err := m.prompts.Prompt(ctx, theme)
		if err == nil {
			err = prompt.Validate(t)
		}
		ch <- result{t, err}
	}()
	select {
	case res := <-ch:
		if res.err == nil {
			return res.t
		}
		log.Warn().Err(res.err).Str("room", roomID).Str("theme", theme).Msg("prompt provider failed, using default")
	case <-ctx.Done():
		log.Warn().Err(ctx.Err()).Str("room", roomID).Str("theme", theme).Msg("prompt provider timed out, using default")
	}
	return m.fallback(theme)
}

func (m *Machine) fallback(theme string) prompt.Template {
	t := prompt.Default
	if theme != "" {
		t.Theme = theme
	}
	return t
}

// StartGame moves a waiting room into round one.
func (m *Machine) StartGame(ctx context.Context, roomID, playerID string) error {
	theme, err := m.precheck(ctx, roomID, func(r *Room) error { return m.checkStart(r, playerID) })
	if err != nil {
		return m.reject(roomID, playerID, CmdStart, err)
	}
	tpl := m.fetchPrompt(ctx, roomID, theme)
	err = m.reg.do(ctx, roomID, func(_ *roomActor, r *Room) error {
		if err := m.checkStart(r, playerID); err != nil {
			return err
		}
		r.Round = 1
		r.resetRound()
		r.Rule = nil
		r.Prompt = &tpl
		r.Phase = PhaseAnswering
		log.Info().Str("room", r.ID).Int("players", len(r.Players)).Msg("game started")
		m.out.Broadcast(r.ID, EventGameStarted, GameStartedPayload{Prompt: tpl, Players: r.players(), Round: r.Round})
		return nil
	})
	return m.reject(roomID, playerID, CmdStart, err)
}

// SubmitAnswer stores or replaces a player's answer for the current round.
func (m *Machine) SubmitAnswer(ctx context.Context, roomID, playerID, text string) error {
	text = strings.TrimSpace(text)
	if n := m.settings.MaxAnswerLen; n > 0 && utf8.RuneCountInString(text) > n {
		text = strings.TrimSpace(string([]rune(text)[:n]))
	}
	err := m.reg.do(ctx, roomID, func(a *roomActor, r *Room) error {
		if r.Phase != PhaseAnswering {
			return ErrInvalidPhase
		}
		if _, ok := r.Players[playerID]; !ok {
			return ErrNotInRoom
		}
		if text == "" {
			return ErrEmptyAnswer
		}
		r.upsertAnswer(Answer{
			PlayerID:    playerID,
			Original:    text,
			Text:        r.Rule.Apply(text),
			SubmittedAt: m.reg.now(),
		})
		m.broadcastProgress(r)
		m.checkCompletion(a, r)
		return nil
	})
	return m.reject(roomID, playerID, CmdAnswer, err)
}

// SubmitVote records one vote per voter per round.
func (m *Machine) SubmitVote(ctx context.Context, roomID, voterID, votedForID string) error {
	err := m.reg.do(ctx, roomID, func(a *roomActor, r *Room) error {
		if r.Phase != PhaseVoting {
			return ErrInvalidPhase
		}
		if err := checkVote(r, voterID, votedForID, m.settings.VotersMustAnswer); err != nil {
			return err
		}
		r.Votes[voterID] = votedForID
		m.out.Broadcast(r.ID, EventVoteSubmitted, VoteSubmittedPayload{VoterID: voterID, VotedForID: votedForID})
		m.checkCompletion(a, r)
		return nil
	})
	return m.reject(roomID, voterID, CmdVote, err)
}

// StartNextRound begins a new round from the results screen.
func (m *Machine) StartNextRound(ctx context.Context, roomID, playerID string) error {
	theme, err := m.precheck(ctx, roomID, func(r *Room) error { return checkNextRound(r, playerID) })
	if err != nil {
		return m.reject(roomID, playerID, CmdNextRound, err)
	}
	return m.reject(roomID, playerID, CmdNextRound, m.nextRound(ctx, roomID, playerID, theme))
}

func (m *Machine) nextRound(ctx context.Context, roomID, playerID, theme string) error {
	tpl := m.fetchPrompt(ctx, roomID, theme)
	return m.reg.do(ctx, roomID, func(_ *roomActor, r *Room) error {
		if err := checkNextRound(r, playerID); err != nil {
			return err
		}
		r.Round++
		r.resetRound()
		r.Rule = nil
		if m.chaos != nil {
			r.Rule = m.chaos.Pick(chaos.State{Round: r.Round, Players: len(r.Players)})
		}
		r.Prompt = &tpl
		r.Phase = PhaseAnswering
		ev := log.Info().Str("room", r.ID).Int("round", r.Round)
		if r.Rule != nil {
			ev = ev.Str("chaos", string(r.Rule.Kind))
		}
		ev.Msg("round started")
		m.out.Broadcast(r.ID, EventNewRound, NewRoundPayload{Prompt: tpl, Players: r.players(), Round: r.Round, Rule: r.Rule})
		return nil
	})
}

// ForceAdvance lets the host skip waiting on idle players.
func (m *Machine) ForceAdvance(ctx context.Context, roomID, playerID string) error {
	var phase Phase
	theme, err := m.precheck(ctx, roomID, func(r *Room) error {
		phase = r.Phase
		return checkHost(r, playerID)
	})
	if err != nil {
		return m.reject(roomID, playerID, CmdForceAdvance, err)
	}
	if phase == PhaseResults {
		return m.reject(roomID, playerID, CmdForceAdvance, m.nextRound(ctx, roomID, playerID, theme))
	}
	err = m.reg.do(ctx, roomID, func(a *roomActor, r *Room) error {
		if err := checkHost(r, playerID); err != nil {
			return err
		}
		switch r.Phase {
		case PhaseAnswering:
			m.toVoting(a, r)
		case PhaseVoting:
			m.toResults(r)
		default:
			return ErrInvalidPhase
		}
		return nil
	})
	return m.reject(roomID, playerID, CmdForceAdvance, err)
}

func (m *Machine) broadcastProgress(r *Room) {
	m.out.Broadcast(r.ID, EventAnswersProgress, AnswersProgressPayload{Count: len(r.Answers), Total: len(r.Players)})
}

// checkCompletion schedules the next phase once the current one is done.
// Must run on the actor.
func (m *Machine) checkCompletion(a *roomActor, r *Room) {
	if !roundComplete(r) {
		return
	}
	var next func()
	switch r.Phase {
	case PhaseAnswering:
		next = func() { m.toVoting(a, a.room) }
	case PhaseVoting:
		next = func() { m.toResults(a.room) }
	default:
		return
	}
	delay := m.settings.GraceDelay
	if delay <= 0 {
		next()
		return
	}
	phase, round := r.Phase, r.Round
	time.AfterFunc(delay, func() {
		a.post(func() {
			// stale once the room moved on or someone new showed up
			if a.room.Phase != phase || a.room.Round != round || !roundComplete(a.room) {
				return
			}
			next()
		})
	})
}

func (m *Machine) toVoting(a *roomActor, r *Room) {
	r.Ballot = r.buildBallot()
	r.Votes = make(map[string]string)
	if len(r.Ballot) == 0 {
		m.toResults(r)
		return
	}
	r.Phase = PhaseVoting
	log.Info().Str("room", r.ID).Int("round", r.Round).Int("answers", len(r.Ballot)).Msg("voting opened")
	m.broadcastBallot(r)
	m.checkCompletion(a, r)
}

func (m *Machine) broadcastBallot(r *Room) {
	m.out.Broadcast(r.ID, EventVotingBallot, VotingBallotPayload{Round: r.Round, Entries: append([]BallotEntry(nil), r.Ballot...)})
}

func (m *Machine) toResults(r *Room) {
	res := scoreRound(r)
	r.Phase = PhaseResults
	log.Info().Str("room", r.ID).Int("round", r.Round).Str("winner", res.Winner).Int("votes", len(res.Votes)).Msg("round scored")
	m.out.Broadcast(r.ID, EventRoundResults, res)
	if m.exporter != nil {
		go func() {
			if err := m.exporter.ExportRound(res); err != nil {
				log.Error().Err(err).Str("room", res.RoomID).Int("round", res.Round).Msg("round export failed")
			}
		}()
	}
}

// afterLeave keeps the round consistent after a departure: the ballot is
// re-sent when it lost an entry, then completion is re-checked.
func (m *Machine) afterLeave(a *roomActor, r *Room, rm removal) {
	switch r.Phase {
	case PhaseAnswering:
		m.broadcastProgress(r)
	case PhaseVoting:
		if rm.hadAnswer {
			m.broadcastBallot(r)
		}
	}
	m.checkCompletion(a, r)
}
