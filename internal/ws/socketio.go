package ws

import (
	"context"

	"github.com/gin-gonic/gin"
	socketio "github.com/googollee/go-socket.io"
	"github.com/rs/zerolog/log"
)

// Mount attaches a Socket.IO server with the game handlers to the router.
// The caller owns the returned server and should Close it on shutdown.
func Mount(r gin.IRoutes, d *Dispatcher) *socketio.Server {
	io := socketio.NewServer(nil)

	io.OnConnect("/", func(s socketio.Conn) error {
		sess := d.NewSession(s.ID())
		s.SetContext(sess)
		go sess.out.pump(func(m outbound) error {
			s.Emit(m.event, m.payload)
			return nil
		})
		log.Info().Str("sid", s.ID()).Msg("socket connected")
		return nil
	})

	io.OnEvent("/", "room:join", func(s socketio.Conn, p JoinPayload) Ack {
		sess, ok := session(s)
		if !ok {
			return Ack{Reason: "not_connected"}
		}
		ctx, cancel := commandContext()
		defer cancel()
		return d.Join(ctx, sess, p)
	})

	io.OnEvent("/", "room:leave", func(s socketio.Conn) Ack {
		return run(s, d.Leave)
	})

	io.OnEvent("/", "game:start", func(s socketio.Conn) Ack {
		return run(s, d.Start)
	})

	io.OnEvent("/", "game:answer", func(s socketio.Conn, p AnswerPayload) Ack {
		sess, ok := session(s)
		if !ok {
			return Ack{Reason: "not_connected"}
		}
		ctx, cancel := commandContext()
		defer cancel()
		return d.Answer(ctx, sess, p)
	})

	io.OnEvent("/", "game:vote", func(s socketio.Conn, p VotePayload) Ack {
		sess, ok := session(s)
		if !ok {
			return Ack{Reason: "not_connected"}
		}
		ctx, cancel := commandContext()
		defer cancel()
		return d.Vote(ctx, sess, p)
	})

	io.OnEvent("/", "game:advance-round", func(s socketio.Conn) Ack {
		return run(s, d.NextRound)
	})

	io.OnEvent("/", "game:force-advance", func(s socketio.Conn) Ack {
		return run(s, d.ForceAdvance)
	})

	io.OnError("/", func(s socketio.Conn, e error) {
		if s == nil {
			log.Error().Err(e).Msg("socket error")
			return
		}
		log.Error().Str("sid", s.ID()).Err(e).Msg("socket error")
	})

	io.OnDisconnect("/", func(s socketio.Conn, reason string) {
		if sess, ok := session(s); ok {
			d.Disconnect(sess)
		}
		log.Info().Str("sid", s.ID()).Str("reason", reason).Msg("socket disconnected")
	})

	go func() {
		if err := io.Serve(); err != nil {
			log.Error().Err(err).Msg("socket.io server stopped")
		}
	}()

	r.GET("/socket.io/*any", gin.WrapH(io))
	r.POST("/socket.io/*any", gin.WrapH(io))
	return io
}

func session(s socketio.Conn) (*Session, bool) {
	sess, ok := s.Context().(*Session)
	return sess, ok
}

func run(s socketio.Conn, cmd func(ctx context.Context, sess *Session) Ack) Ack {
	sess, ok := session(s)
	if !ok {
		return Ack{Reason: "not_connected"}
	}
	ctx, cancel := commandContext()
	defer cancel()
	return cmd(ctx, sess)
}
