// Package mock provides recording test doubles for the player package: a
// scriptable [player.Listener], a channel-backed [player.Observer] and a
// canned [player.Provider].
package mock

import (
	"context"
	"sync"

	"github.com/OdraBelfegor/novel-reader-t/internal/player"
)

// Listener is a test double for [player.Listener]. Played clips are recorded
// and announced on PlayStarted; tests drive clip termination through
// ReportEnded and Disconnect.
type Listener struct {
	Ident string

	// PlayFunc, when set, handles SendPlay instead of the default record.
	PlayFunc func(ctx context.Context, audio []byte) error
	// StopFunc, when set, handles SendStop. The default reports a stopped
	// clip, mimicking a well-behaved client.
	StopFunc func(ctx context.Context) error

	mu         sync.Mutex
	played     [][]byte
	alerts     []player.AlertKind
	states     []player.StateSnapshot
	highlights []int
	contents   []any

	playStarted chan struct{}
	ended       chan player.EndReason
	done        chan struct{}
	doneOnce    sync.Once
}

// NewListener creates a Listener with the given ID.
func NewListener(id string) *Listener {
	return &Listener{
		Ident:       id,
		playStarted: make(chan struct{}, 16),
		ended:       make(chan player.EndReason, 1),
		done:        make(chan struct{}),
	}
}

func (l *Listener) ID() string { return l.Ident }

func (l *Listener) SendPlay(ctx context.Context, audio []byte) error {
	if l.PlayFunc != nil {
		if err := l.PlayFunc(ctx, audio); err != nil {
			return err
		}
	}
	l.mu.Lock()
	l.played = append(l.played, audio)
	l.mu.Unlock()
	select {
	case l.playStarted <- struct{}{}:
	default:
	}
	return nil
}

func (l *Listener) SendStop(ctx context.Context) error {
	if l.StopFunc != nil {
		return l.StopFunc(ctx)
	}
	l.ReportEnded(player.ReasonStopped)
	return nil
}

func (l *Listener) SendAlert(_ context.Context, kind player.AlertKind) error {
	l.mu.Lock()
	l.alerts = append(l.alerts, kind)
	l.mu.Unlock()
	return nil
}

func (l *Listener) Ended() <-chan player.EndReason { return l.ended }
func (l *Listener) Done() <-chan struct{}          { return l.done }

func (l *Listener) NotifyState(snap player.StateSnapshot) {
	l.mu.Lock()
	l.states = append(l.states, snap)
	l.mu.Unlock()
}

func (l *Listener) NotifyContent(content any) {
	l.mu.Lock()
	l.contents = append(l.contents, content)
	l.mu.Unlock()
}

func (l *Listener) NotifyHighlight(index int) {
	l.mu.Lock()
	l.highlights = append(l.highlights, index)
	l.mu.Unlock()
}

func (l *Listener) NotifyAlert(kind player.AlertKind) {
	l.mu.Lock()
	l.alerts = append(l.alerts, kind)
	l.mu.Unlock()
}

// PlayStarted signals each time a clip handoff arrived.
func (l *Listener) PlayStarted() <-chan struct{} { return l.playStarted }

// ReportEnded delivers a clip termination as the remote client would.
func (l *Listener) ReportEnded(reason player.EndReason) {
	select {
	case l.ended <- reason:
	default:
	}
}

// Disconnect closes the Done channel. Safe to call more than once.
func (l *Listener) Disconnect() {
	l.doneOnce.Do(func() { close(l.done) })
}

// Played returns a copy of every clip handed to this listener.
func (l *Listener) Played() [][]byte {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([][]byte, len(l.played))
	copy(out, l.played)
	return out
}

// Alerts returns every alert received, command and broadcast alike.
func (l *Listener) Alerts() []player.AlertKind {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]player.AlertKind, len(l.alerts))
	copy(out, l.alerts)
	return out
}

// States returns every state snapshot pushed to this listener.
func (l *Listener) States() []player.StateSnapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]player.StateSnapshot, len(l.states))
	copy(out, l.states)
	return out
}

// Highlights returns every highlight index pushed to this listener.
func (l *Listener) Highlights() []int {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]int, len(l.highlights))
	copy(out, l.highlights)
	return out
}

// Contents returns every content payload pushed to this listener.
func (l *Listener) Contents() []any {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]any, len(l.contents))
	copy(out, l.contents)
	return out
}

// Observer is a channel-backed [player.Observer] for tests.
type Observer struct {
	PlayedCh       chan int
	ActedCh        chan struct{}
	EndedCh        chan player.EndCause
	DisconnectedCh chan struct{}
}

// NewObserver creates an Observer with buffered channels large enough for
// typical test runs.
func NewObserver() *Observer {
	return &Observer{
		PlayedCh:       make(chan int, 64),
		ActedCh:        make(chan struct{}, 64),
		EndedCh:        make(chan player.EndCause, 8),
		DisconnectedCh: make(chan struct{}, 8),
	}
}

func (o *Observer) Played(index int)            { o.PlayedCh <- index }
func (o *Observer) Acted()                      { o.ActedCh <- struct{}{} }
func (o *Observer) Ended(cause player.EndCause) { o.EndedCh <- cause }
func (o *Observer) Disconnected()               { o.DisconnectedCh <- struct{}{} }

// Provider is a canned [player.Provider]. Chapters maps offsets to content;
// a missing offset yields an empty chapter.
type Provider struct {
	Ident    string
	Chapters map[int][]string
	// RequestFunc, when set, overrides the canned lookup.
	RequestFunc func(ctx context.Context, offset int) ([]string, error)

	mu       sync.Mutex
	requests []int
}

func (p *Provider) ID() string {
	if p.Ident == "" {
		return "mock-provider"
	}
	return p.Ident
}

func (p *Provider) RequestContent(ctx context.Context, offset int) ([]string, error) {
	p.mu.Lock()
	p.requests = append(p.requests, offset)
	p.mu.Unlock()

	if p.RequestFunc != nil {
		return p.RequestFunc(ctx, offset)
	}
	return p.Chapters[offset], nil
}

// Requests returns every offset requested so far.
func (p *Provider) Requests() []int {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]int, len(p.requests))
	copy(out, p.requests)
	return out
}
