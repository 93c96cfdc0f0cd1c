package player

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/OdraBelfegor/novel-reader-t/internal/observe"
)

// defaultAckTimeout bounds the initial play handoff. Waiting for the clip to
// finish afterwards is unbounded: clip length is unknown to the server.
const defaultAckTimeout = 10 * time.Second

// AudioControl renders one audio clip at a time on the priority listener and
// maps the remote lifecycle onto an [Outcome]. It enforces the single-render
// invariant: starting a new render while one is in flight stops the old one
// first.
type AudioControl struct {
	users      *Users
	ackTimeout time.Duration
	metrics    *observe.Metrics
	log        *slog.Logger

	mu        sync.Mutex
	rendering bool
	bound     Listener
}

// AudioControlOption configures an [AudioControl].
type AudioControlOption func(*AudioControl)

// WithAckTimeout overrides the initial play-acknowledgement timeout.
func WithAckTimeout(d time.Duration) AudioControlOption {
	return func(a *AudioControl) {
		if d > 0 {
			a.ackTimeout = d
		}
	}
}

// WithAudioMetrics wires render metrics. Nil disables recording.
func WithAudioMetrics(m *observe.Metrics) AudioControlOption {
	return func(a *AudioControl) { a.metrics = m }
}

// NewAudioControl creates an AudioControl rendering on the priority listener
// of users.
func NewAudioControl(users *Users, opts ...AudioControlOption) *AudioControl {
	a := &AudioControl{
		users:      users,
		ackTimeout: defaultAckTimeout,
		log:        slog.Default().With("component", "audio-control"),
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Play ships audio to the priority listener and blocks until the clip
// terminates. The returned outcome is one of:
//
//   - [OutcomeEnded]        — the client reported natural completion
//   - [OutcomeStopped]      — a stop command interrupted the clip
//   - [OutcomeDisconnected] — the bound listener went away mid-render
//   - [OutcomeNoConnection] — no listener, or the initial handoff failed
//
// A render already in flight is stopped before the new one starts.
func (a *AudioControl) Play(ctx context.Context, audio []byte) Outcome {
	if ctx.Err() != nil {
		return OutcomeStopped
	}
	a.mu.Lock()
	if a.rendering {
		a.mu.Unlock()
		a.Stop(ctx)
		a.mu.Lock()
	}

	target := a.users.ByIndex(0)
	if target == nil {
		a.mu.Unlock()
		a.metrics.RecordRenderOutcome(ctx, OutcomeNoConnection.String(), 0)
		return OutcomeNoConnection
	}

	// Drop any stale termination left over from a previous clip so the wait
	// below only sees reports for this render.
	drain(target.Ended())

	a.rendering = true
	a.bound = target
	a.mu.Unlock()

	start := time.Now()
	ackCtx, cancel := context.WithTimeout(ctx, a.ackTimeout)
	err := target.SendPlay(ackCtx, audio)
	cancel()
	if err != nil {
		a.clear()
		if ctx.Err() != nil {
			return OutcomeStopped
		}
		a.log.Warn("play handoff failed", "listener", target.ID(), "error", err)
		a.metrics.RecordRenderOutcome(ctx, OutcomeNoConnection.String(), time.Since(start).Seconds())
		return OutcomeNoConnection
	}

	var out Outcome
	select {
	case reason := <-target.Ended():
		if reason == ReasonStopped {
			out = OutcomeStopped
		} else {
			out = OutcomeEnded
		}
	case <-target.Done():
		out = OutcomeDisconnected
	case <-ctx.Done():
		out = OutcomeStopped
	}

	a.clear()
	a.metrics.RecordRenderOutcome(ctx, out.String(), time.Since(start).Seconds())
	return out
}

// Stop interrupts the render in flight, if any. The bound listener reports
// the interruption through its Ended channel, which resolves the blocked
// Play call with [OutcomeStopped].
func (a *AudioControl) Stop(ctx context.Context) {
	a.mu.Lock()
	target := a.bound
	rendering := a.rendering
	a.mu.Unlock()

	if !rendering || target == nil {
		return
	}
	if err := target.SendStop(ctx); err != nil {
		a.log.Warn("stop command failed", "listener", target.ID(), "error", err)
	}
}

// Alert plays an alert sound on the bound listener, falling back to the
// priority listener when no render is in flight. With no listeners at all it
// is a no-op.
func (a *AudioControl) Alert(ctx context.Context, kind AlertKind) {
	a.mu.Lock()
	target := a.bound
	a.mu.Unlock()

	if target == nil {
		target = a.users.ByIndex(0)
	}
	if target == nil {
		return
	}
	if err := target.SendAlert(ctx, kind); err != nil {
		a.log.Warn("alert failed", "listener", target.ID(), "kind", kind, "error", err)
	}
}

// Rendering reports whether a clip is currently in flight.
func (a *AudioControl) Rendering() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.rendering
}

func (a *AudioControl) clear() {
	a.mu.Lock()
	a.rendering = false
	a.bound = nil
	a.mu.Unlock()
}

func drain(ch <-chan EndReason) {
	for {
		select {
		case <-ch:
		default:
			return
		}
	}
}
