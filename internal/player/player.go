package player

import (
	"context"
	"log/slog"
	"sync"

	"github.com/OdraBelfegor/novel-reader-t/internal/content"
	"github.com/OdraBelfegor/novel-reader-t/pkg/tts"
)

// Player walks a segmented batch sentence by sentence: synthesize the unit
// under the cursor, render it through the [AudioControl], advance, repeat.
// Unreadable units are skipped without rendering. Synthesized audio is cached
// on the unit, and the unit after the one being rendered is prefetched
// concurrently so playback does not stall between sentences.
//
// All exported methods are safe for concurrent use; actions are serialized
// so overlapping commands cannot interleave state changes mid-transition.
type Player struct {
	batch *content.Batch
	audio *AudioControl
	synth tts.Synthesizer
	obs   Observer
	log   *slog.Logger

	// actMu serializes Play/Stop/Forward/Backward/Seek.
	actMu sync.Mutex
	// mu guards state, cursor, stopped and renderCancel.
	mu      sync.Mutex
	state   State
	cursor  int
	stopped bool
	// renderCancel aborts the render in flight. It is created under mu in
	// the same critical section as the state check, so a pre-emption that
	// lands between the check and the render start still cancels it.
	renderCancel context.CancelFunc

	// inflight counts the running pipeline goroutine; prefetch counts
	// outstanding look-ahead syntheses.
	inflight sync.WaitGroup
	prefetch sync.WaitGroup

	ctx    context.Context
	cancel context.CancelFunc
}

// PlayerOption configures a [Player] at construction.
type PlayerOption func(*Player)

// StartAtEnd places the initial cursor after the last unit instead of at the
// first. Used when a loop continues backward: the first Backward then lands
// on the last readable sentence of the previous batch.
func StartAtEnd() PlayerOption {
	return func(p *Player) { p.cursor = p.batch.Len() }
}

// New creates a Player over batch. The observer must be non-nil.
func New(batch *content.Batch, audio *AudioControl, synth tts.Synthesizer, obs Observer, opts ...PlayerOption) *Player {
	ctx, cancel := context.WithCancel(context.Background())
	p := &Player{
		batch:  batch,
		audio:  audio,
		synth:  synth,
		obs:    obs,
		log:    slog.Default().With("component", "player"),
		ctx:    ctx,
		cancel: cancel,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// State returns the current playback state.
func (p *Player) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Index returns the cursor position.
func (p *Player) Index() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cursor
}

// Batch returns the content batch this player reads.
func (p *Player) Batch() *content.Batch {
	return p.batch
}

// Play toggles playback: from IDLE it starts the pipeline, from PLAYING it
// pauses, from PAUSED it resumes at the cursor.
func (p *Player) Play(ctx context.Context) {
	p.actMu.Lock()
	defer p.actMu.Unlock()

	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	switch p.state {
	case StatePlaying:
		p.state = StatePaused
		p.mu.Unlock()
		p.preempt(ctx)
		p.inflight.Wait()
	case StatePaused:
		p.state = StateIdle
		p.mu.Unlock()
		p.start()
	default:
		p.mu.Unlock()
		p.start()
	}
	p.obs.Acted()
}

// Stop terminates the player permanently. A stopped player ignores every
// further action. Safe to call more than once; the Ended callback fires only
// for the first call.
func (p *Player) Stop(ctx context.Context) {
	p.actMu.Lock()
	defer p.actMu.Unlock()

	p.mu.Lock()
	already := p.stopped
	p.stopped = true
	wasPlaying := p.state == StatePlaying
	p.mu.Unlock()

	if wasPlaying {
		p.preempt(ctx)
	}
	p.inflight.Wait()

	p.mu.Lock()
	p.state = StateIdle
	p.mu.Unlock()

	if !already {
		p.obs.Ended(EndStopped)
	}
}

// Forward moves the cursor one unit ahead, clamped to one past the last
// unit. If the player was playing it resumes from the new position; off the
// end the pipeline reports forward completion.
func (p *Player) Forward(ctx context.Context) {
	p.skip(ctx, func() {
		if p.cursor < p.batch.Len() {
			p.cursor++
		}
	})
}

// Backward moves the cursor to the previous readable unit, skipping
// unreadable ones. Running off the front of the batch ends the player run
// with [EndBackward].
func (p *Player) Backward(ctx context.Context) {
	p.actMu.Lock()
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		p.actMu.Unlock()
		return
	}
	prior := p.state
	if prior == StatePlaying {
		p.state = StatePaused
		p.mu.Unlock()
		p.preempt(ctx)
		p.inflight.Wait()
		p.mu.Lock()
	}

	target := p.cursor - 1
	for target >= 0 && !p.batch.Server[target].Readable {
		target--
	}
	if target < 0 {
		p.stopped = true
		p.state = StateIdle
		p.mu.Unlock()
		p.actMu.Unlock()
		p.obs.Ended(EndBackward)
		return
	}
	p.cursor = target

	if prior == StatePlaying {
		p.state = StateIdle
		p.mu.Unlock()
		p.start()
	} else {
		p.mu.Unlock()
	}
	p.actMu.Unlock()
	p.obs.Acted()
}

// Seek moves the cursor to index. Out-of-range indices are a silent no-op
// that does not disturb a render in flight.
func (p *Player) Seek(ctx context.Context, index int) {
	p.actMu.Lock()
	p.mu.Lock()
	if p.stopped || index < 0 || index >= p.batch.Len() {
		p.mu.Unlock()
		p.actMu.Unlock()
		return
	}
	p.mu.Unlock()
	p.actMu.Unlock()

	p.skip(ctx, func() { p.cursor = index })
}

// skip pre-empts any render in flight, applies move to the cursor and
// resumes if the player was playing.
func (p *Player) skip(ctx context.Context, move func()) {
	p.actMu.Lock()
	defer p.actMu.Unlock()

	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	prior := p.state
	if prior == StatePlaying {
		p.state = StatePaused
		p.mu.Unlock()
		p.preempt(ctx)
		p.inflight.Wait()
		p.mu.Lock()
	}
	move()

	if prior == StatePlaying {
		p.state = StateIdle
		p.mu.Unlock()
		p.start()
	} else {
		p.mu.Unlock()
	}
	p.obs.Acted()
}

// preempt interrupts the render in flight: the client is told to halt its
// clip and the render context is cancelled in case the clip had not reached
// the renderer yet.
func (p *Player) preempt(ctx context.Context) {
	p.mu.Lock()
	cancel := p.renderCancel
	p.mu.Unlock()

	p.audio.Stop(ctx)
	if cancel != nil {
		cancel()
	}
}

// Close stops the player and releases its pipeline resources.
func (p *Player) Close() {
	p.Stop(context.Background())
	p.cancel()
	p.prefetch.Wait()
}

// start launches the playback pipeline. Callers must not hold p.mu.
func (p *Player) start() {
	p.mu.Lock()
	if p.stopped || p.state != StateIdle {
		p.mu.Unlock()
		return
	}
	if p.cursor >= p.batch.Len() {
		p.stopped = true
		p.mu.Unlock()
		p.obs.Ended(EndForward)
		return
	}
	p.state = StatePlaying
	p.mu.Unlock()

	p.inflight.Add(1)
	go p.pipeline(p.ctx)
}

// pipeline renders units until the batch ends, playback is pre-empted or the
// player stops. It runs as the single playback goroutine; pre-emption works
// by flipping state to PAUSED and stopping the audio control, which resolves
// the blocking render.
func (p *Player) pipeline(ctx context.Context) {
	defer p.inflight.Done()

	for {
		p.mu.Lock()
		if p.stopped || p.state != StatePlaying {
			p.mu.Unlock()
			return
		}
		if p.cursor >= p.batch.Len() {
			p.stopped = true
			p.state = StateIdle
			p.mu.Unlock()
			p.obs.Ended(EndForward)
			return
		}
		idx := p.cursor
		unit := &p.batch.Server[idx]
		if !unit.Readable {
			p.cursor++
			p.mu.Unlock()
			continue
		}
		p.mu.Unlock()

		// Look ahead one unit so the next clip is usually ready when this
		// one ends. The prefetch never gates playback.
		if next := p.nextReadable(idx + 1); next >= 0 {
			p.prefetch.Add(1)
			go func(i int) {
				defer p.prefetch.Done()
				if err := p.ensureAudio(ctx, i); err != nil {
					p.log.Debug("prefetch failed", "index", i, "error", err)
				}
			}(next)
		}

		if err := p.ensureAudio(ctx, idx); err != nil {
			p.log.Error("synthesis failed", "index", idx, "error", err)
			p.audio.Alert(ctx, AlertPing)
			p.mu.Lock()
			if p.state == StatePlaying {
				p.state = StatePaused
			}
			p.mu.Unlock()
			p.obs.Acted()
			return
		}

		p.mu.Lock()
		if p.stopped || p.state != StatePlaying {
			p.mu.Unlock()
			return
		}
		audio := unit.Audio
		renderCtx, cancel := context.WithCancel(ctx)
		p.renderCancel = cancel
		p.mu.Unlock()

		p.obs.Played(idx)
		out := p.audio.Play(renderCtx, audio)
		cancel()

		p.mu.Lock()
		p.renderCancel = nil
		if p.stopped {
			p.mu.Unlock()
			return
		}
		if p.state == StatePaused {
			// Pre-empted by pause or a skip; the action owns the follow-up.
			p.mu.Unlock()
			return
		}
		switch out {
		case OutcomeEnded:
			p.cursor++
			p.mu.Unlock()
		case OutcomeDisconnected:
			p.stopped = true
			p.state = StateIdle
			p.mu.Unlock()
			p.obs.Disconnected()
			return
		default:
			p.state = StateIdle
			p.mu.Unlock()
			return
		}
	}
}

// nextReadable returns the index of the first readable unit at or after
// from, or -1 when none remains.
func (p *Player) nextReadable(from int) int {
	for i := from; i < p.batch.Len(); i++ {
		if p.batch.Server[i].Readable {
			return i
		}
	}
	return -1
}

// ensureAudio synthesizes the unit at idx unless its audio is already
// cached. Concurrent calls for the same unit may both synthesize; the second
// result simply overwrites the first, which is harmless.
func (p *Player) ensureAudio(ctx context.Context, idx int) error {
	p.mu.Lock()
	unit := &p.batch.Server[idx]
	if unit.Audio != nil {
		p.mu.Unlock()
		return nil
	}
	text := unit.Text
	p.mu.Unlock()

	audio, err := p.synth.Synthesize(ctx, text)
	if err != nil {
		return err
	}

	p.mu.Lock()
	unit.Audio = audio
	p.mu.Unlock()
	return nil
}
