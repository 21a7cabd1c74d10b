package game

import (
	"context"
	"errors"
	"math/rand"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const maxNameLen = 24

// Registry owns every live room. The map is only guarded long enough to look
// up or swap an actor; all room work happens on the room's own goroutine.
type Registry struct {
	settings Settings
	out      Broadcaster
	now      func() time.Time

	// afterLeave runs on the actor after a player left a room that still has
	// players. The round machine uses it to re-check completion.
	afterLeave func(a *roomActor, r *Room, rm removal)

	mu     sync.Mutex
	rooms  map[string]*roomActor
	closed bool
}

func NewRegistry(settings Settings, out Broadcaster) *Registry {
	if out == nil {
		out = Discard{}
	}
	if settings.MinPlayers < 1 {
		settings.MinPlayers = 1
	}
	return &Registry{
		settings: settings,
		out:      out,
		now:      func() time.Time { return time.Now().UTC() },
		rooms:    make(map[string]*roomActor),
	}
}

// NewPlayerID returns a fresh server-assigned player id.
func NewPlayerID() string { return uuid.NewString() }

func (g *Registry) lookup(roomID string) (*roomActor, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	a := g.rooms[roomID]
	if a == nil {
		return nil, ErrRoomNotFound
	}
	return a, nil
}

// ensure returns the live actor for roomID, starting one when needed.
func (g *Registry) ensure(roomID, theme string) (*roomActor, bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return nil, false, ErrRoomNotFound
	}
	if a := g.rooms[roomID]; a != nil {
		return a, false, nil
	}
	a := newRoomActor(newRoom(roomID, theme, g.now()))
	g.rooms[roomID] = a
	go a.run()
	if ttl := g.settings.EmptyRoomTTL; ttl > 0 {
		time.AfterFunc(ttl, func() {
			a.post(func() {
				if len(a.room.Players) == 0 {
					g.retire(a, "expired")
				}
			})
		})
	}
	return a, true, nil
}

// retire removes a from the table and stops it. Must run on a's goroutine.
func (g *Registry) retire(a *roomActor, why string) {
	a.stop()
	g.mu.Lock()
	if g.rooms[a.room.ID] == a {
		delete(g.rooms, a.room.ID)
	}
	g.mu.Unlock()
	log.Info().Str("room", a.room.ID).Str("reason", why).Msg("room closed")
}

// do runs fn on the room's actor.
func (g *Registry) do(ctx context.Context, roomID string, fn func(a *roomActor, r *Room) error) error {
	a, err := g.lookup(roomID)
	if err != nil {
		return err
	}
	return a.call(ctx, func(r *Room) error { return fn(a, r) })
}

// CreateOrGetRoom returns the room, creating it in the waiting phase when it
// does not exist yet. The theme of an existing room is left alone.
func (g *Registry) CreateOrGetRoom(ctx context.Context, roomID, themeID string) (Snapshot, error) {
	for attempt := 0; ; attempt++ {
		a, created, err := g.ensure(roomID, themeID)
		if err != nil {
			return Snapshot{}, err
		}
		if created {
			log.Info().Str("room", roomID).Str("theme", themeID).Msg("room created")
		}
		var snap Snapshot
		err = a.call(ctx, func(r *Room) error {
			snap = r.snapshot()
			return nil
		})
		if errors.Is(err, ErrRoomNotFound) && attempt == 0 {
			continue
		}
		return snap, err
	}
}

// CreateRoom picks an unused short room code and creates the room.
func (g *Registry) CreateRoom(ctx context.Context, themeID string) (Snapshot, error) {
	g.mu.Lock()
	code := randomCode(5)
	for g.rooms[code] != nil {
		code = randomCode(5)
	}
	g.mu.Unlock()
	return g.CreateOrGetRoom(ctx, code, themeID)
}

// JoinRoom adds a player to an existing room. Joining twice with the same id
// is a no-op. When the room closes while the join is queued, the join is
// retried once against a fresh room.
func (g *Registry) JoinRoom(ctx context.Context, roomID, playerID, name string) (Snapshot, error) {
	if playerID == "" {
		return Snapshot{}, ErrMissingPlayer
	}
	name = cleanName(name)
	a, err := g.lookup(roomID)
	if err != nil {
		return Snapshot{}, err
	}
	snap, err := g.join(ctx, a, playerID, name)
	if !errors.Is(err, ErrRoomNotFound) {
		return snap, err
	}
	a, _, err = g.ensure(roomID, a.room.Theme)
	if err != nil {
		return Snapshot{}, err
	}
	return g.join(ctx, a, playerID, name)
}

func (g *Registry) join(ctx context.Context, a *roomActor, playerID, name string) (Snapshot, error) {
	var snap Snapshot
	err := a.call(ctx, func(r *Room) error {
		if _, ok := r.Players[playerID]; ok {
			snap = r.snapshot()
			return nil
		}
		if limit := g.settings.MaxPlayers; limit > 0 && len(r.Players) >= limit {
			return ErrRoomFull
		}
		r.addPlayer(playerID, name, g.now())
		snap = r.snapshot()
		log.Info().Str("room", r.ID).Str("player", playerID).Str("name", name).Msg("player joined")
		g.broadcastRoster(r)
		return nil
	})
	return snap, err
}

// Enter creates the room when needed and joins it.
func (g *Registry) Enter(ctx context.Context, roomID, themeID, playerID, name string) (Snapshot, error) {
	var err error
	for attempt := 0; attempt < 2; attempt++ {
		if _, err = g.CreateOrGetRoom(ctx, roomID, themeID); err != nil {
			return Snapshot{}, err
		}
		var snap Snapshot
		snap, err = g.JoinRoom(ctx, roomID, playerID, name)
		if !errors.Is(err, ErrRoomNotFound) {
			return snap, err
		}
	}
	return Snapshot{}, err
}

// LeaveRoom removes a player. The last player out closes the room.
func (g *Registry) LeaveRoom(ctx context.Context, roomID, playerID string) error {
	return g.do(ctx, roomID, func(a *roomActor, r *Room) error {
		if _, ok := r.Players[playerID]; !ok {
			return ErrNotInRoom
		}
		rm := r.removePlayer(playerID)
		log.Info().Str("room", r.ID).Str("player", playerID).Bool("wasHost", rm.wasHost).Msg("player left")
		if len(r.Players) == 0 {
			g.retire(a, "empty")
			return nil
		}
		g.broadcastRoster(r)
		if g.afterLeave != nil {
			g.afterLeave(a, r, rm)
		}
		return nil
	})
}

func (g *Registry) GetRoom(ctx context.Context, roomID string) (Snapshot, error) {
	var snap Snapshot
	err := g.do(ctx, roomID, func(_ *roomActor, r *Room) error {
		snap = r.snapshot()
		return nil
	})
	return snap, err
}

// List summarizes every live room, oldest first. Rooms that close while
// being listed are skipped.
func (g *Registry) List() []Summary {
	g.mu.Lock()
	actors := make([]*roomActor, 0, len(g.rooms))
	for _, a := range g.rooms {
		actors = append(actors, a)
	}
	g.mu.Unlock()

	out := make([]Summary, 0, len(actors))
	for _, a := range actors {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		var s Summary
		err := a.call(ctx, func(r *Room) error {
			s = r.summary()
			return nil
		})
		cancel()
		if err == nil {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Close stops every room. Later creates fail with ErrRoomNotFound.
func (g *Registry) Close() {
	g.mu.Lock()
	g.closed = true
	actors := g.rooms
	g.rooms = make(map[string]*roomActor)
	g.mu.Unlock()
	for _, a := range actors {
		a := a
		a.post(func() { a.stop() })
	}
}

func (g *Registry) broadcastRoster(r *Room) {
	g.out.Broadcast(r.ID, EventRosterUpdated, RosterPayload{Players: r.players(), HostID: r.HostID, Phase: r.Phase})
}

func cleanName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "Player"
	}
	if utf8.RuneCountInString(name) > maxNameLen {
		name = string([]rune(name)[:maxNameLen])
	}
	return name
}

func randomCode(n int) string {
	letters := []rune("ABCDEFGHJKLMNPQRSTUVWXYZ23456789")
	b := make([]rune, n)
	for i := range b {
		b[i] = letters[rand.Intn(len(letters))]
	}
	return string(b)
}
