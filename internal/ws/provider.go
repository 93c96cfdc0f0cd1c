package ws

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/coder/websocket"

	"github.com/OdraBelfegor/novel-reader-t/internal/player"
)

// Compile-time interface assertion.
var _ player.Provider = (*ProviderSession)(nil)

// ProviderSession adapts a content-provider WebSocket connection onto
// [player.Provider]: chapter fetches become acknowledged get-content
// requests answered by the remote side.
type ProviderSession struct {
	*session
}

// NewProviderSession wraps an accepted provider connection. The caller must
// run [ProviderSession.ReadLoop].
func NewProviderSession(id string, conn *websocket.Conn) *ProviderSession {
	log := slog.Default().With("component", "ws-provider", "id", id)
	return &ProviderSession{session: newSession(id, conn, log)}
}

// RequestContent asks the provider for the chapter at offset relative to its
// cursor. An empty slice means the provider has nothing in that direction.
func (p *ProviderSession) RequestContent(ctx context.Context, offset int) ([]string, error) {
	reply, err := p.request(ctx, TypeGetContent, mustMarshal(offsetPayload{Offset: offset}))
	if err != nil {
		return nil, err
	}
	var c contentPayload
	if err := json.Unmarshal(reply, &c); err != nil {
		return nil, err
	}
	return c.Content, nil
}

// ReadLoop consumes inbound frames until the connection fails. Providers
// only ever send acks; anything else is logged and dropped.
func (p *ProviderSession) ReadLoop(ctx context.Context) {
	defer p.markDone()
	for {
		_, data, err := p.conn.Read(ctx)
		if err != nil {
			p.log.Debug("read loop ended", "error", err)
			return
		}
		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			p.log.Warn("malformed frame", "error", err)
			continue
		}
		if env.Type == TypeAck {
			p.resolveAck(env)
			continue
		}
		p.log.Warn("unexpected frame from provider", "type", env.Type)
	}
}
