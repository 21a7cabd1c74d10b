package ws

import (
	"sync"

	"github.com/rs/zerolog/log"
)

// Emitter is one client connection as seen by the hub. Emit must not block.
type Emitter interface {
	ID() string
	Emit(event string, payload any)
}

// Hub fans room events out to every connection of every player in a room.
// Both transports register their connections here, so one room can mix
// Socket.IO and raw WebSocket clients.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]map[string]map[string]Emitter // room -> player -> conn id -> conn
}

func NewHub() *Hub {
	return &Hub{rooms: make(map[string]map[string]map[string]Emitter)}
}

func (h *Hub) Add(roomID, playerID string, e Emitter) {
	h.mu.Lock()
	defer h.mu.Unlock()
	players := h.rooms[roomID]
	if players == nil {
		players = make(map[string]map[string]Emitter)
		h.rooms[roomID] = players
	}
	conns := players[playerID]
	if conns == nil {
		conns = make(map[string]Emitter)
		players[playerID] = conns
	}
	conns[e.ID()] = e
}

// Remove drops a connection and reports how many connections the player
// still has in the room.
func (h *Hub) Remove(roomID, playerID string, e Emitter) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	players := h.rooms[roomID]
	if players == nil {
		return 0
	}
	conns := players[playerID]
	delete(conns, e.ID())
	left := len(conns)
	if left == 0 {
		delete(players, playerID)
	}
	if len(players) == 0 {
		delete(h.rooms, roomID)
	}
	return left
}

// Connections counts live connections in a room.
func (h *Hub) Connections(roomID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, conns := range h.rooms[roomID] {
		n += len(conns)
	}
	return n
}

func (h *Hub) Broadcast(roomID, event string, payload any) {
	h.mu.RLock()
	var targets []Emitter
	for _, conns := range h.rooms[roomID] {
		for _, e := range conns {
			targets = append(targets, e)
		}
	}
	h.mu.RUnlock()
	for _, e := range targets {
		e.Emit(event, payload)
	}
}

func (h *Hub) SendTo(roomID, playerID, event string, payload any) {
	h.mu.RLock()
	var targets []Emitter
	for _, e := range h.rooms[roomID][playerID] {
		targets = append(targets, e)
	}
	h.mu.RUnlock()
	for _, e := range targets {
		e.Emit(event, payload)
	}
}

type outbound struct {
	event   string
	payload any
}

// outbox buffers events for one connection so the hub never waits on a slow
// client. Events that do not fit are dropped.
type outbox struct {
	id   string
	ch   chan outbound
	done chan struct{}
	once sync.Once
}

func newOutbox(id string, size int) *outbox {
	return &outbox{id: id, ch: make(chan outbound, size), done: make(chan struct{})}
}

func (o *outbox) ID() string { return o.id }

func (o *outbox) Emit(event string, payload any) {
	select {
	case <-o.done:
		return
	default:
	}
	select {
	case o.ch <- outbound{event: event, payload: payload}:
	default:
		log.Warn().Str("sid", o.id).Str("event", event).Msg("outbox full, dropping event")
	}
}

func (o *outbox) close() { o.once.Do(func() { close(o.done) }) }

// pump hands queued events to write until the outbox is closed or write fails.
func (o *outbox) pump(write func(outbound) error) {
	for {
		select {
		case m := <-o.ch:
			if err := write(m); err != nil {
				log.Debug().Err(err).Str("sid", o.id).Msg("write failed")
				return
			}
		case <-o.done:
			return
		}
	}
}
