package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/coder/websocket"
)

// session is the shared connection machinery for listener and provider
// sessions: serialized writes, request/ack correlation and disconnect
// signalling.
type session struct {
	id   string
	conn *websocket.Conn
	log  *slog.Logger

	writeMu sync.Mutex

	pendingMu sync.Mutex
	pending   map[int64]chan json.RawMessage
	nextID    atomic.Int64

	done     chan struct{}
	doneOnce sync.Once
}

func newSession(id string, conn *websocket.Conn, log *slog.Logger) *session {
	return &session{
		id:      id,
		conn:    conn,
		log:     log,
		pending: map[int64]chan json.RawMessage{},
		done:    make(chan struct{}),
	}
}

func (s *session) ID() string { return s.id }

// Done is closed when the connection goes away.
func (s *session) Done() <-chan struct{} { return s.done }

// send writes a fire-and-forget envelope.
func (s *session) send(ctx context.Context, typ string, payload json.RawMessage) error {
	return s.write(ctx, Envelope{Type: typ, Payload: payload})
}

// request writes an acknowledged envelope and blocks until the matching ack
// arrives, the peer disconnects or ctx expires.
func (s *session) request(ctx context.Context, typ string, payload json.RawMessage) (json.RawMessage, error) {
	id := s.nextID.Add(1)
	ch := make(chan json.RawMessage, 1)

	s.pendingMu.Lock()
	s.pending[id] = ch
	s.pendingMu.Unlock()
	defer func() {
		s.pendingMu.Lock()
		delete(s.pending, id)
		s.pendingMu.Unlock()
	}()

	if err := s.write(ctx, Envelope{ID: id, Type: typ, Ack: true, Payload: payload}); err != nil {
		return nil, err
	}

	select {
	case reply := <-ch:
		return reply, nil
	case <-s.done:
		return nil, fmt.Errorf("ws: %s: connection closed awaiting ack", typ)
	case <-ctx.Done():
		return nil, fmt.Errorf("ws: %s: %w", typ, ctx.Err())
	}
}

// resolveAck delivers an ack frame to the waiting request, if any.
func (s *session) resolveAck(env Envelope) {
	s.pendingMu.Lock()
	ch, ok := s.pending[env.ID]
	s.pendingMu.Unlock()
	if !ok {
		s.log.Debug("ack for unknown request", "id", env.ID)
		return
	}
	select {
	case ch <- env.Payload:
	default:
	}
}

// ack replies to an inbound acknowledged envelope.
func (s *session) ack(ctx context.Context, id int64, payload json.RawMessage) error {
	return s.write(ctx, Envelope{ID: id, Type: TypeAck, Payload: payload})
}

func (s *session) write(ctx context.Context, env Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("ws: marshal %s: %w", env.Type, err)
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.conn.Write(ctx, websocket.MessageText, data); err != nil {
		return fmt.Errorf("ws: write %s: %w", env.Type, err)
	}
	return nil
}

// markDone signals disconnection to everyone selecting on Done.
func (s *session) markDone() {
	s.doneOnce.Do(func() { close(s.done) })
}
