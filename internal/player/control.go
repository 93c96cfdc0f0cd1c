package player

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/OdraBelfegor/novel-reader-t/internal/content"
	"github.com/OdraBelfegor/novel-reader-t/internal/observe"
	"github.com/OdraBelfegor/novel-reader-t/pkg/tts"
)

// defaultFetchTimeout bounds a single provider content fetch.
const defaultFetchTimeout = 10 * time.Second

// ErrSessionActive is returned when a command needs the player slot but a
// session already occupies it.
var ErrSessionActive = errors.New("player: a reading session is already active")

// ErrNoProvider is returned when loop playback is requested without a
// connected content provider.
var ErrNoProvider = errors.New("player: no content provider connected")

// Provider supplies reading content on demand. Offset selects the chapter
// relative to the provider's cursor: -1 previous, 0 current, +1 next. An
// empty slice means no content is available in that direction.
type Provider interface {
	ID() string
	RequestContent(ctx context.Context, offset int) ([]string, error)
}

// Control orchestrates one reading session at a time: it owns the single
// player slot, the loop-continuation policy and the provider binding, and it
// mirrors every session change to the listener registry.
type Control struct {
	users   *Users
	audio   *AudioControl
	synth   tts.Synthesizer
	metrics *observe.Metrics
	log     *slog.Logger

	fetchTimeout time.Duration

	mu          sync.Mutex
	player      *Player
	provider    Provider
	loop        bool
	loopActive  bool
	loopLimit   *int
	loopCounter *int

	// fetch deduplicates concurrent provider reads for the same offset.
	fetch singleflight.Group
}

// ControlOption configures a [Control].
type ControlOption func(*Control)

// WithFetchTimeout overrides the provider fetch timeout.
func WithFetchTimeout(d time.Duration) ControlOption {
	return func(c *Control) {
		if d > 0 {
			c.fetchTimeout = d
		}
	}
}

// WithControlMetrics wires session metrics. Nil disables recording.
func WithControlMetrics(m *observe.Metrics) ControlOption {
	return func(c *Control) { c.metrics = m }
}

// NewControl creates a session controller rendering through audio and
// synthesizing with synth.
func NewControl(users *Users, audio *AudioControl, synth tts.Synthesizer, opts ...ControlOption) *Control {
	c := &Control{
		users:        users,
		audio:        audio,
		synth:        synth,
		fetchTimeout: defaultFetchTimeout,
		log:          slog.Default().With("component", "player-control"),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// SetProvider binds a content provider. Only one provider is held at a time;
// a second connection is rejected.
func (c *Control) SetProvider(p Provider) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.provider != nil {
		return errors.New("player: a content provider is already connected")
	}
	c.provider = p
	c.log.Info("provider connected", "id", p.ID())
	return nil
}

// RemoveProvider unbinds the provider with the given ID. Other IDs are
// ignored so a stale disconnect cannot evict a newer provider.
func (c *Control) RemoveProvider(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.provider != nil && c.provider.ID() == id {
		c.provider = nil
		c.log.Info("provider disconnected", "id", id)
	}
}

// HasProvider reports whether a content provider is bound.
func (c *Control) HasProvider() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.provider != nil
}

// ReadThis starts a one-shot session over raw, with loop continuation
// disabled. Fails with [ErrSessionActive] when the slot is taken.
func (c *Control) ReadThis(ctx context.Context, raw []string) error {
	batch := content.Segment(raw)
	if batch.Len() == 0 {
		return errors.New("player: content is empty")
	}

	c.mu.Lock()
	if c.player != nil {
		c.mu.Unlock()
		return ErrSessionActive
	}
	c.resetLoopLocked()
	p := New(batch, c.audio, c.synth, c.observer())
	c.player = p
	c.mu.Unlock()

	c.metrics.AddSessions(ctx, 1)
	c.users.BroadcastContent(batch.Client)
	p.Play(ctx)
	return nil
}

// Play resumes or pauses the active session. With no session it starts a
// loop session from the provider's current chapter; without a provider the
// requesting listener hears a ping alert and [ErrNoProvider] is returned.
func (c *Control) Play(ctx context.Context) error {
	c.mu.Lock()
	p := c.player
	c.mu.Unlock()

	if p != nil {
		p.Play(ctx)
		return nil
	}
	return c.readFromProvider(ctx)
}

// Stop ends the active session. With no session it is a logged no-op.
func (c *Control) Stop(ctx context.Context) {
	c.mu.Lock()
	p := c.player
	c.mu.Unlock()
	if p == nil {
		c.log.Debug("stop ignored, no active session")
		return
	}
	p.Stop(ctx)
}

// Forward skips to the next unit. No-op without a session.
func (c *Control) Forward(ctx context.Context) {
	if p := c.active(); p != nil {
		p.Forward(ctx)
	}
}

// Backward skips to the previous readable unit. No-op without a session.
func (c *Control) Backward(ctx context.Context) {
	if p := c.active(); p != nil {
		p.Backward(ctx)
	}
}

// Seek jumps to the given unit index. No-op without a session.
func (c *Control) Seek(ctx context.Context, index int) {
	if p := c.active(); p != nil {
		p.Seek(ctx, index)
	}
}

// StopAudio interrupts the render in flight without ending the session.
func (c *Control) StopAudio(ctx context.Context) {
	c.audio.Stop(ctx)
}

// ToggleLoop flips whether the current loop session keeps chaining chapters
// when a batch ends, and reports the new value.
func (c *Control) ToggleLoop() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.loopActive = !c.loopActive
	return c.loopActive
}

// SetLoopLimit caps how many chapters a loop session may chain. The counter
// starts at zero when the limit is first set.
func (c *Control) SetLoopLimit(limit int) {
	if limit <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.loopLimit = &limit
	if c.loopCounter == nil {
		zero := 0
		c.loopCounter = &zero
	}
}

// RemoveLoopLimit clears the chapter cap and counter.
func (c *Control) RemoveLoopLimit() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.loopLimit = nil
	c.loopCounter = nil
}

// ContentFromProvider fetches the provider's current page for the requester
// without touching playback. Fails with [ErrNoProvider] when none is bound.
func (c *Control) ContentFromProvider(ctx context.Context) ([]string, error) {
	c.mu.Lock()
	provider := c.provider
	c.mu.Unlock()
	if provider == nil {
		return nil, ErrNoProvider
	}
	return c.requestContent(ctx, provider, 0)
}

// Snapshot returns the externally visible session state.
func (c *Control) Snapshot() StateSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Control) snapshotLocked() StateSnapshot {
	snap := StateSnapshot{
		State:      StateInactive,
		Loop:       c.loop,
		LoopActive: c.loopActive,
	}
	if c.loopLimit != nil {
		v := *c.loopLimit
		snap.LoopLimit = &v
	}
	if c.loopCounter != nil {
		v := *c.loopCounter
		snap.LoopCounter = &v
	}
	if c.player != nil {
		snap.State = c.player.State().String()
	}
	return snap
}

// ClientContent returns the client view of the active batch, or nil when no
// session exists.
func (c *Control) ClientContent() []content.Paragraph {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.player == nil {
		return nil
	}
	return c.player.Batch().Client
}

// Index returns the active cursor position, or -1 without a session.
func (c *Control) Index() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.player == nil {
		return -1
	}
	return c.player.Index()
}

// resetLoopLocked restores the loop configuration to its inactive defaults.
// Callers must hold c.mu.
func (c *Control) resetLoopLocked() {
	c.loop = false
	c.loopActive = false
	c.loopLimit = nil
	c.loopCounter = nil
}

func (c *Control) active() *Player {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.player == nil {
		c.log.Debug("player command ignored, no active session")
	}
	return c.player
}

// readFromProvider fetches the provider's current chapter and starts a loop
// session over it, with continuation active and no limit. Concurrent calls
// share one fetch.
func (c *Control) readFromProvider(ctx context.Context) error {
	c.mu.Lock()
	if c.player != nil {
		c.mu.Unlock()
		return ErrSessionActive
	}
	provider := c.provider
	c.mu.Unlock()

	if provider == nil {
		c.audio.Alert(ctx, AlertPing)
		return ErrNoProvider
	}

	raw, err := c.requestContent(ctx, provider, 0)
	if err != nil {
		c.metrics.RecordProviderFetch(ctx, "error")
		c.audio.Alert(ctx, AlertPing)
		return err
	}
	c.metrics.RecordProviderFetch(ctx, "ok")

	batch := content.Segment(raw)
	if batch.Len() == 0 {
		c.audio.Alert(ctx, AlertPing)
		return errors.New("player: provider returned no content")
	}

	c.mu.Lock()
	if c.player != nil {
		c.mu.Unlock()
		return ErrSessionActive
	}
	c.resetLoopLocked()
	c.loop = true
	c.loopActive = true
	p := New(batch, c.audio, c.synth, c.observer())
	c.player = p
	c.mu.Unlock()

	c.metrics.AddSessions(ctx, 1)
	c.users.BroadcastContent(batch.Client)
	p.Play(ctx)
	return nil
}

// requestContent performs the provider fetch with the configured timeout,
// collapsing concurrent identical requests.
func (c *Control) requestContent(ctx context.Context, p Provider, offset int) ([]string, error) {
	key := p.ID() + "/" + strconv.Itoa(offset)
	v, err, _ := c.fetch.Do(key, func() (any, error) {
		fctx, cancel := context.WithTimeout(ctx, c.fetchTimeout)
		defer cancel()
		return p.RequestContent(fctx, offset)
	})
	if err != nil {
		return nil, err
	}
	return v.([]string), nil
}
