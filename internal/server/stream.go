package server

import (
	"context"
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/leonardotrapani/factstream/internal/model"
	"github.com/leonardotrapani/factstream/internal/notify"
	"github.com/leonardotrapani/factstream/internal/pipeline"
	"github.com/leonardotrapani/factstream/internal/session"
	"github.com/leonardotrapani/factstream/internal/sink"
	"github.com/leonardotrapani/factstream/internal/wire"
)

var errConnClosed = errors.New("connection closed")

// connSink writes session messages as JSON text frames
type connSink struct {
	conn         *websocket.Conn
	writeTimeout time.Duration

	mu     sync.Mutex
	closed bool
}

func (c *connSink) Send(ctx context.Context, v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errConnClosed
	}
	deadline := time.Now().Add(c.writeTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = c.conn.SetWriteDeadline(deadline)
	return c.conn.WriteJSON(v)
}

// Close sends a normal close frame and closes the socket. Safe to call twice.
func (c *connSink) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	return c.conn.Close()
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	if s.ctx.Err() != nil {
		http.Error(w, "server shutting down", http.StatusServiceUnavailable)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("Server: websocket upgrade failed: %v", err)
		return
	}
	s.conns.Add(1)
	defer s.conns.Done()

	conn.SetReadLimit(s.cfg.ReadLimit)
	out := &connSink{conn: conn, writeTimeout: s.cfg.WriteTimeout}
	defer out.Close()

	sess, err := s.sessions.Accept(s.ctx, out)
	if err != nil {
		log.Printf("Server: cannot accept session from %s: %v", r.RemoteAddr, err)
		return
	}
	defer sess.Close()

	// unblock the read loop when the session ends from the server side
	stop := context.AfterFunc(sess.Context(), func() { _ = out.Close() })
	defer stop()

	s.attach(sess)
	log.Printf("session %s: client %s connected", sess.ID(), r.RemoteAddr)
	s.readLoop(sess, conn)
}

// attach wires claim detection, verification and the optional session log
// into a new session
func (s *Server) attach(sess *session.Session) {
	engine, detector, jsonlDir := s.current()
	id := sess.ID()

	var sessLog *sink.SessionLog
	if jsonlDir != "" {
		l, err := sink.NewSessionLog(jsonlDir, id, time.Now())
		if err != nil {
			log.Printf("session %s: session log disabled: %v", id, err)
		} else {
			sessLog = l
			_ = sessLog.LogStart(id, sess.Mock(), time.Now())
			sess.Transcripts().AddFunc(sessLog.Transcripts(id))
			// registered first so it runs after the pipeline has stopped
			sess.OnClose(func() {
				_ = sessLog.LogEnd(id, "closed")
				_ = sessLog.Close()
			})
		}
	}

	p := pipeline.New(sess.Context(), id, detector, engine, sess)
	if sessLog != nil {
		p.OnClaim(notify.Func[model.Claim](func(_ context.Context, c model.Claim) error {
			return sessLog.LogClaim(id, c)
		}))
		p.OnResult(notify.Func[model.FactCheckResult](sessLog.Results(id)))
	}
	sess.Transcripts().Add(p)
	sess.OnClose(p.Stop)
}

func (s *Server) readLoop(sess *session.Session, conn *websocket.Conn) {
	ctx := sess.Context()
	for {
		mt, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) && ctx.Err() == nil {
				log.Printf("session %s: read error: %v", sess.ID(), err)
			} else {
				log.Printf("session %s: client disconnected", sess.ID())
			}
			return
		}

		switch mt {
		case websocket.TextMessage:
			cmd, perr := wire.ParseCommand(data)
			if perr != nil {
				log.Printf("session %s: ignoring message: %v", sess.ID(), perr)
				continue
			}
			err = sess.HandleCommand(ctx, cmd)
		case websocket.BinaryMessage:
			err = sess.HandleAudio(ctx, data)
		default:
			continue
		}

		if errors.Is(err, session.ErrSessionClosed) {
			return
		}
		if err != nil {
			log.Printf("session %s: %v", sess.ID(), err)
			if errors.Is(err, errConnClosed) || errors.Is(err, websocket.ErrCloseSent) {
				return
			}
		}
	}
}
