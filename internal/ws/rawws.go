package ws

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = time.Minute
	pingPeriod     = pongWait * 9 / 10
	maxMessageSize = 4096
)

// Message is the raw WebSocket envelope in both directions. Commands use the
// Socket.IO event names as Type; replies to commands arrive as type "ack".
type Message struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

type outMessage struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// RawServer serves the game over plain WebSockets for clients without a
// Socket.IO library.
type RawServer struct {
	d        *Dispatcher
	upgrader websocket.Upgrader
}

// NewRawServer builds the handler. A nil checkOrigin accepts every origin.
func NewRawServer(d *Dispatcher, checkOrigin func(r *http.Request) bool) *RawServer {
	if checkOrigin == nil {
		checkOrigin = func(r *http.Request) bool { return true }
	}
	return &RawServer{
		d: d,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin,
		},
	}
}

// Handle upgrades GET /ws/:roomId. The path room is used when room:join
// leaves roomId empty.
func (rs *RawServer) Handle(c *gin.Context) {
	conn, err := rs.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	sess := rs.d.NewSession(uuid.NewString())
	sess.defaultRoom = c.Param("roomId")
	log.Info().Str("sid", sess.ID()).Str("room", sess.defaultRoom).Msg("websocket connected")

	go rs.writePump(conn, sess)
	rs.readPump(conn, sess)
}

func (rs *RawServer) readPump(conn *websocket.Conn, sess *Session) {
	defer func() {
		rs.d.Disconnect(sess)
		conn.Close()
		log.Info().Str("sid", sess.ID()).Msg("websocket disconnected")
	}()

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug().Err(err).Str("sid", sess.ID()).Msg("websocket read error")
			}
			return
		}
		var msg Message
		var ack Ack
		if err := json.Unmarshal(data, &msg); err != nil || msg.Type == "" {
			ack = rs.d.refuse(sess, "", "bad_request", "expected {\"type\": ..., \"data\": ...}")
		} else {
			ctx, cancel := commandContext()
			ack = rs.d.Dispatch(ctx, sess, msg.Type, msg.Data)
			cancel()
		}
		sess.out.Emit("ack", ack)
	}
}

func (rs *RawServer) writePump(conn *websocket.Conn, sess *Session) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()
	for {
		select {
		case m := <-sess.out.ch:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(outMessage{Type: m.event, Data: m.payload}); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-sess.out.done:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}
