package ws

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"regionhooks.ai/internal/protocol"
	"regionhooks.ai/internal/query"
)

// Server answers region queries over websocket. Each text frame is one
// protocol.QueryMsg; each reply is one protocol.ResultMsg.
type Server struct {
	loop  *query.Loop
	log   *log.Logger
	admin bool

	// Queries still waiting on the loop after this long are answered E_BUSY.
	QueryTimeout time.Duration

	upgrader websocket.Upgrader
}

func NewServer(loop *query.Loop, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	s := &Server{
		loop:         loop,
		log:          logger,
		QueryTimeout: 2 * time.Second,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 16 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
	return s
}

// NewAdminServer is NewServer that also accepts land administration
// messages. Mount it only where remote peers cannot reach it.
func NewAdminServer(loop *query.Loop, logger *log.Logger) *Server {
	s := NewServer(loop, logger)
	s.admin = true
	return s
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()
		out := make(chan protocol.ResultMsg, 32)

		// Writer goroutine.
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case res := <-out:
					if err := writeJSON(conn, res); err != nil {
						cancel()
						return
					}
				}
			}
		}()

		// Reader loop.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				break
			}
			res, ok := s.serve(ctx, msg)
			if !ok {
				break
			}
			select {
			case out <- res:
			case <-ctx.Done():
				return
			}
		}
	}
}

// serve decodes one frame and runs it on the query loop. ok is false when
// the loop is gone and the connection should close.
func (s *Server) serve(ctx context.Context, msg []byte) (protocol.ResultMsg, bool) {
	base, err := protocol.DecodeBase(msg)
	if err != nil {
		return badRequest(base, "malformed json"), true
	}
	var q protocol.QueryMsg
	if err := json.Unmarshal(msg, &q); err != nil {
		return badRequest(base, err.Error()), true
	}
	if protocol.IsAdminType(q.Type) && !s.admin {
		return errorResult(base, protocol.ErrForbidden, "admin endpoint required"), true
	}
	qctx, cancel := context.WithTimeout(ctx, s.QueryTimeout)
	defer cancel()
	res, err := s.loop.Do(qctx, q)
	switch {
	case err == nil:
		return res, true
	case errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil:
		return errorResult(base, protocol.ErrBusy, "query loop busy"), true
	default:
		s.log.Printf("ws: %s %s: %v", q.Type, q.ReqID, err)
		return protocol.ResultMsg{}, false
	}
}

func badRequest(base protocol.BaseMessage, message string) protocol.ResultMsg {
	return errorResult(base, protocol.ErrProtoBadRequest, message)
}

func errorResult(base protocol.BaseMessage, code, message string) protocol.ResultMsg {
	return protocol.ResultMsg{
		Type:            protocol.TypeResult,
		ProtocolVersion: protocol.Version,
		ResultFor:       base.Type,
		ReqID:           base.ReqID,
		Code:            code,
		Message:         message,
	}
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, b)
}
