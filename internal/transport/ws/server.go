package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"stationworks.ai/internal/protocol"
	"stationworks.ai/internal/sim/catalogs"
	"stationworks.ai/internal/sim/company"
	"stationworks.ai/internal/sim/game"
	"stationworks.ai/internal/sim/tuning"
)

// Engine is the part of the game a session needs.
type Engine interface {
	Submit(ctx context.Context, env game.CommandEnvelope) (game.CommandResponse, error)
	CompanyName(id company.ID) (string, bool)
	Catalogs() *catalogs.Catalogs
	Tuning() tuning.Tuning
}

type Server struct {
	engine Engine
	log    *log.Logger

	upgrader websocket.Upgrader

	// How long a command may wait for room in the game inbox. A command
	// that got in always gets its RESULT.
	SubmitTimeout time.Duration

	sessions atomic.Int64
	accepted atomic.Uint64
}

func NewServer(e Engine, logger *log.Logger) *Server {
	return &Server{
		engine: e,
		log:    logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 16 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
		SubmitTimeout: 5 * time.Second,
	}
}

// ActiveSessions is the number of connections past the handshake.
func (s *Server) ActiveSessions() int64 { return s.sessions.Load() }

// SessionsTotal counts every accepted handshake.
func (s *Server) SessionsTotal() uint64 { return s.accepted.Load() }

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		sess, ok := s.handshake(conn)
		if !ok {
			return
		}
		s.sessions.Add(1)
		s.accepted.Add(1)
		defer s.sessions.Add(-1)
		s.logf("session %s company=%d client=%q connected", sess.id, sess.company, sess.client)

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		out := make(chan any, 16)
		writerDone := make(chan struct{})
		go func() {
			defer close(writerDone)
			for {
				select {
				case <-ctx.Done():
					return
				case v := <-out:
					if err := writeJSON(conn, v); err != nil {
						cancel()
						return
					}
				}
			}
		}()

		send := func(v any) {
			select {
			case out <- v:
			case <-ctx.Done():
			}
		}

		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				break
			}
			if v := s.handle(ctx, sess, msg); v != nil {
				send(v)
			}
			if ctx.Err() != nil {
				break
			}
		}
		cancel()
		<-writerDone
		s.logf("session %s closed", sess.id)
	}
}

type session struct {
	id      string
	company company.ID
	client  string
}

// handle turns one inbound frame into the reply to send back.
func (s *Server) handle(ctx context.Context, sess session, msg []byte) any {
	base, err := protocol.DecodeBase(msg)
	if err != nil {
		return protocol.NewError("", protocol.ErrProtoBadRequest, "malformed json")
	}
	if base.Type != protocol.TypePlaceStation {
		return protocol.NewError("", protocol.ErrProtoBadRequest, "unsupported message type "+base.Type)
	}
	if base.ProtocolVersion != protocol.Version {
		return protocol.NewError("", protocol.ErrProtoVersion, "protocol_version must be "+protocol.Version)
	}
	place, err := protocol.DecodePlaceStation(msg)
	if err != nil {
		return protocol.NewError(place.RequestID, protocol.ErrProtoBadRequest, err.Error())
	}
	flags, err := place.CommandFlags()
	if err != nil {
		return protocol.NewError(place.RequestID, protocol.ErrProtoBadRequest, err.Error())
	}

	sctx, cancel := context.WithTimeout(ctx, s.SubmitTimeout)
	defer cancel()
	resp, err := s.engine.Submit(sctx, game.CommandEnvelope{
		ID:      place.RequestID,
		Company: sess.company,
		Request: place.Request(),
		Flags:   flags,
	})
	if err != nil {
		// Both cases mean the game never saw the command.
		code := protocol.ErrInternal
		if errors.Is(err, context.DeadlineExceeded) {
			code = protocol.ErrBusy
		}
		return protocol.NewError(place.RequestID, code, err.Error())
	}
	return protocol.NewResult(resp)
}

func (s *Server) handshake(conn *websocket.Conn) (session, bool) {
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return session{}, false
	}

	base, err := protocol.DecodeBase(msg)
	if err != nil || base.Type != protocol.TypeHello {
		closeWith(conn, websocket.ClosePolicyViolation, "expected HELLO")
		return session{}, false
	}
	hello, err := protocol.DecodeHello(msg)
	if err != nil {
		_ = writeJSON(conn, protocol.NewError("", protocol.ErrProtoBadRequest, err.Error()))
		closeWith(conn, websocket.ClosePolicyViolation, "bad HELLO")
		return session{}, false
	}
	if protocol.Negotiate(hello) == "" {
		_ = writeJSON(conn, protocol.NewError("", protocol.ErrProtoVersion, "supported protocol_version: "+protocol.Version))
		closeWith(conn, websocket.ClosePolicyViolation, "bad protocol_version")
		return session{}, false
	}
	name, ok := s.engine.CompanyName(hello.Company)
	if !ok {
		_ = writeJSON(conn, protocol.NewError("", protocol.ErrUnknownCompany, "unknown company"))
		closeWith(conn, websocket.ClosePolicyViolation, "unknown company")
		return session{}, false
	}

	sess := session{id: uuid.NewString(), company: hello.Company, client: hello.ClientName}
	welcome := protocol.NewWelcome(sess.id, &company.Company{ID: hello.Company, Name: name}, s.engine.Catalogs(), s.engine.Tuning())
	if err := writeJSON(conn, welcome); err != nil {
		return session{}, false
	}
	return sess, true
}

func (s *Server) logf(format string, args ...any) {
	if s.log != nil {
		s.log.Printf(format, args...)
	}
}

func closeWith(conn *websocket.Conn, code int, text string) {
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, text), time.Now().Add(time.Second))
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, b)
}
