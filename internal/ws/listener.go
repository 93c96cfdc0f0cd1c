package ws

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/coder/websocket"

	"github.com/OdraBelfegor/novel-reader-t/internal/player"
)

// Compile-time interface assertion.
var _ player.Listener = (*ListenerSession)(nil)

// ListenerSession adapts one listener WebSocket connection onto
// [player.Listener] and routes the client's playback commands into the
// session controller. Interacting with the player promotes the listener to
// the front of the registry, so audio follows whoever drove last.
type ListenerSession struct {
	*session
	users   *player.Users
	control *player.Control

	ended chan player.EndReason
}

// NewListenerSession wraps an accepted connection. The caller owns the
// connection lifecycle and must run [ListenerSession.ReadLoop].
func NewListenerSession(id string, conn *websocket.Conn, users *player.Users, control *player.Control) *ListenerSession {
	log := slog.Default().With("component", "ws-listener", "id", id)
	return &ListenerSession{
		session: newSession(id, conn, log),
		users:   users,
		control: control,
		ended:   make(chan player.EndReason, 1),
	}
}

// SendPlay ships a clip and waits for the client's handoff ack.
func (l *ListenerSession) SendPlay(ctx context.Context, audio []byte) error {
	_, err := l.request(ctx, TypeAudioPlay, mustMarshal(audioPayload{Audio: audio}))
	return err
}

// SendStop tells the client to halt its current clip.
func (l *ListenerSession) SendStop(ctx context.Context) error {
	_, err := l.request(ctx, TypeAudioStop, nil)
	return err
}

// SendAlert plays an alert sound on the client.
func (l *ListenerSession) SendAlert(ctx context.Context, kind player.AlertKind) error {
	_, err := l.request(ctx, TypeAlertPlay, mustMarshal(alertPayload{Kind: string(kind)}))
	return err
}

// Ended delivers client-reported clip terminations.
func (l *ListenerSession) Ended() <-chan player.EndReason { return l.ended }

func (l *ListenerSession) NotifyState(snap player.StateSnapshot) {
	l.notify(TypeViewState, mustMarshal(snap))
}

func (l *ListenerSession) NotifyContent(content any) {
	l.notify(TypeViewContent, mustMarshal(content))
}

func (l *ListenerSession) NotifyHighlight(index int) {
	l.notify(TypeViewHighlight, mustMarshal(highlightPayload{Index: index}))
}

func (l *ListenerSession) NotifyAlert(kind player.AlertKind) {
	l.notify(TypeAlertShow, mustMarshal(alertPayload{Kind: string(kind)}))
}

// notify is fire-and-forget; failures are logged, the registry drops the
// listener once the read loop notices the dead connection.
func (l *ListenerSession) notify(typ string, payload json.RawMessage) {
	if err := l.send(context.Background(), typ, payload); err != nil {
		l.log.Debug("notify failed", "type", typ, "error", err)
	}
}

// ReadLoop consumes inbound frames until the connection fails, dispatching
// acks to waiting requests, termination reports to the Ended channel and
// commands to the controller. It returns after marking the session done.
func (l *ListenerSession) ReadLoop(ctx context.Context) {
	defer l.markDone()
	for {
		_, data, err := l.conn.Read(ctx)
		if err != nil {
			l.log.Debug("read loop ended", "error", err)
			return
		}
		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			l.log.Warn("malformed frame", "error", err)
			continue
		}
		l.dispatch(ctx, env)
	}
}

func (l *ListenerSession) dispatch(ctx context.Context, env Envelope) {
	switch env.Type {
	case TypeAck:
		l.resolveAck(env)
	case TypeAudioEnded:
		var p endedPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			l.log.Warn("malformed ended report", "error", err)
			return
		}
		reason := player.ReasonEnded
		if p.Reason == string(player.ReasonStopped) {
			reason = player.ReasonStopped
		}
		select {
		case l.ended <- reason:
		default:
		}
	default:
		// Commands may block on renders and fetches; keep the read loop
		// free so acks and ended reports still flow.
		go l.handleCommand(ctx, env)
	}
}

// handleCommand executes one playback command from this listener.
func (l *ListenerSession) handleCommand(ctx context.Context, env Envelope) {
	l.users.Prioritize(l.id)

	var err error
	switch env.Type {
	case TypePlayerReadThis:
		var p readThisPayload
		if err = json.Unmarshal(env.Payload, &p); err == nil {
			err = l.control.ReadThis(ctx, p.Content)
		}
	case TypePlayerPlay:
		err = l.control.Play(ctx)
	case TypePlayerStop:
		l.control.Stop(ctx)
	case TypePlayerForward:
		l.control.Forward(ctx)
	case TypePlayerBackward:
		l.control.Backward(ctx)
	case TypePlayerSeek:
		var p seekPayload
		if err = json.Unmarshal(env.Payload, &p); err == nil {
			l.control.Seek(ctx, p.Index)
		}
	case TypePlayerStopAudio:
		l.control.StopAudio(ctx)
	case TypeLoopToggle:
		l.control.ToggleLoop()
		l.users.BroadcastState(l.control.Snapshot())
	case TypeLoopSetLimit:
		var p limitPayload
		if err = json.Unmarshal(env.Payload, &p); err == nil {
			l.control.SetLoopLimit(p.Limit)
			l.users.BroadcastState(l.control.Snapshot())
		}
	case TypeLoopRemoveLimit:
		l.control.RemoveLoopLimit()
		l.users.BroadcastState(l.control.Snapshot())
	case TypeRequestProvider:
		// Passthrough: the provider's current page goes back in the ack,
		// playback is untouched.
		raw, cerr := l.control.ContentFromProvider(ctx)
		if cerr != nil {
			l.log.Info("command failed", "type", env.Type, "error", cerr)
			l.NotifyAlert(player.AlertPing)
		}
		if env.Ack {
			if ackErr := l.ack(ctx, env.ID, mustMarshal(contentPayload{Content: raw})); ackErr != nil {
				l.log.Debug("command ack failed", "type", env.Type, "error", ackErr)
			}
		}
		return
	default:
		l.log.Warn("unknown command", "type", env.Type)
		return
	}

	if err != nil {
		l.log.Info("command failed", "type", env.Type, "error", err)
		l.NotifyAlert(player.AlertPing)
	}
	if env.Ack {
		if ackErr := l.ack(ctx, env.ID, nil); ackErr != nil {
			l.log.Debug("command ack failed", "type", env.Type, "error", ackErr)
		}
	}
}
