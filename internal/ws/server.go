package ws

import (
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"

	"github.com/coder/websocket"

	"github.com/OdraBelfegor/novel-reader-t/internal/player"
)

// Server accepts listener and provider WebSocket connections and wires them
// into the listener registry and the session controller.
type Server struct {
	users   *player.Users
	control *player.Control
	log     *slog.Logger

	nextListener atomic.Int64
	nextProvider atomic.Int64
}

// NewServer creates the WebSocket endpoint handler.
func NewServer(users *player.Users, control *player.Control) *Server {
	return &Server{
		users:   users,
		control: control,
		log:     slog.Default().With("component", "ws-server"),
	}
}

// Register adds the listener and provider endpoints to mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /ws", s.HandleListener)
	mux.HandleFunc("GET /ws/provider", s.HandleProvider)
}

// HandleListener upgrades a listener connection, registers it, pushes the
// current session view and serves it until disconnect.
func (s *Server) HandleListener(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		s.log.Warn("listener accept failed", "error", err)
		return
	}

	id := fmt.Sprintf("listener-%d", s.nextListener.Add(1))
	sess := NewListenerSession(id, conn, s.users, s.control)
	s.users.Add(sess)
	s.log.Info("listener connected", "id", id, "remote", r.RemoteAddr)

	// Late joiners see the session as it stands.
	sess.NotifyState(s.control.Snapshot())
	if content := s.control.ClientContent(); content != nil {
		sess.NotifyContent(content)
		sess.NotifyHighlight(s.control.Index())
	}

	sess.ReadLoop(r.Context())

	s.users.Remove(id)
	s.log.Info("listener disconnected", "id", id)
	conn.Close(websocket.StatusNormalClosure, "bye")
}

// HandleProvider upgrades a provider connection and binds it as the content
// source. A second provider is turned away with a going-away close.
func (s *Server) HandleProvider(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		s.log.Warn("provider accept failed", "error", err)
		return
	}

	id := fmt.Sprintf("provider-%d", s.nextProvider.Add(1))
	sess := NewProviderSession(id, conn)
	if err := s.control.SetProvider(sess); err != nil {
		s.log.Warn("provider rejected", "id", id, "error", err)
		conn.Close(websocket.StatusTryAgainLater, "provider slot taken")
		return
	}
	s.log.Info("provider connected", "id", id, "remote", r.RemoteAddr)

	sess.ReadLoop(r.Context())

	s.control.RemoveProvider(id)
	s.log.Info("provider disconnected", "id", id)
	conn.Close(websocket.StatusNormalClosure, "bye")
}
