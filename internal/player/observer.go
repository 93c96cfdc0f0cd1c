package player

import (
	"context"

	"github.com/OdraBelfegor/novel-reader-t/internal/content"
)

// sessionObserver wires player lifecycle callbacks back into the [Control]:
// highlights and state pushes fan out to the listeners, and terminal causes
// drive the loop-continuation policy.
type sessionObserver struct {
	c *Control
}

func (c *Control) observer() Observer {
	return &sessionObserver{c: c}
}

func (o *sessionObserver) Played(index int) {
	o.c.users.BroadcastHighlight(index)
}

func (o *sessionObserver) Acted() {
	o.c.users.BroadcastState(o.c.Snapshot())
}

func (o *sessionObserver) Disconnected() {
	o.c.log.Info("listener lost mid-render, ending session")
	o.c.clearPlayer()
	o.c.endSession(context.Background(), false)
}

// Ended handles a terminal player run. A stopped run or an inactive loop
// ends the session; otherwise the loop policy decides whether the next
// chapter is fetched and chained.
func (o *sessionObserver) Ended(cause EndCause) {
	c := o.c
	ctx := context.Background()
	c.clearPlayer()

	c.mu.Lock()
	canLoop := cause != EndStopped && c.loopActive && c.provider != nil
	if canLoop && c.loopLimit != nil && c.loopCounter != nil && *c.loopCounter >= *c.loopLimit {
		canLoop = false
	}
	c.mu.Unlock()

	if !canLoop {
		c.log.Info("session ended", "cause", cause.String())
		c.endSession(ctx, true)
		return
	}
	c.continueLoop(ctx, cause)
}

// clearPlayer empties the player slot and updates the session gauge.
func (c *Control) clearPlayer() {
	c.mu.Lock()
	old := c.player
	c.player = nil
	c.mu.Unlock()

	if old != nil {
		c.metrics.AddSessions(context.Background(), -1)
		// Close waits on the pipeline, which may be the calling goroutine.
		go old.Close()
	}
}

// endSession resets the loop configuration and tells every listener the
// session is over. withAlert plays the primary alert on the priority listener
// first.
func (c *Control) endSession(ctx context.Context, withAlert bool) {
	c.mu.Lock()
	c.resetLoopLocked()
	snap := c.snapshotLocked()
	c.mu.Unlock()

	if withAlert {
		c.audio.Alert(ctx, AlertPrimary)
	}
	c.users.BroadcastState(snap)
	c.users.BroadcastContent([]content.Paragraph{})
	c.users.BroadcastHighlight(-1)
}

// continueLoop fetches the adjacent chapter and chains a new player over it.
// Forward completion reads the next chapter, backward the previous one; the
// chapter counter moves the same direction. A failed or empty fetch ends the
// session instead.
func (c *Control) continueLoop(ctx context.Context, cause EndCause) {
	offset := 1
	direction := "forward"
	if cause == EndBackward {
		offset = -1
		direction = "backward"
	}

	c.mu.Lock()
	provider := c.provider
	if c.loopCounter != nil {
		next := *c.loopCounter + offset
		c.loopCounter = &next
	}
	c.mu.Unlock()

	if provider == nil {
		c.endSession(ctx, true)
		return
	}

	c.audio.Alert(ctx, AlertSecondary)
	c.metrics.RecordLoopContinuation(ctx, direction)
	c.log.Info("loop continuing", "direction", direction)

	raw, err := c.requestContent(ctx, provider, offset)
	if err != nil {
		c.metrics.RecordProviderFetch(ctx, "error")
		c.log.Error("loop fetch failed", "direction", direction, "error", err)
		c.endSession(ctx, true)
		return
	}
	c.metrics.RecordProviderFetch(ctx, "ok")

	batch := content.Segment(raw)
	if batch.Len() == 0 {
		c.log.Info("provider exhausted", "direction", direction)
		c.endSession(ctx, true)
		return
	}

	c.mu.Lock()
	if c.player != nil {
		// A new session raced the continuation; let it win.
		c.mu.Unlock()
		return
	}
	var opts []PlayerOption
	if cause == EndBackward {
		opts = append(opts, StartAtEnd())
	}
	p := New(batch, c.audio, c.synth, c.observer(), opts...)
	c.player = p
	c.mu.Unlock()

	c.metrics.AddSessions(ctx, 1)
	c.users.BroadcastContent(batch.Client)
	if cause == EndBackward {
		// Land on the last readable sentence before resuming.
		p.Backward(ctx)
		p.Play(ctx)
	} else {
		p.Play(ctx)
	}
}
