package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/OdraBelfegor/novel-reader-t/pkg/tts"
)

// ErrAllBackendsFailed is returned when every synthesizer in a [Chain] fails
// or has an open circuit breaker.
var ErrAllBackendsFailed = errors.New("all tts backends failed")

// Compile-time check that *Chain satisfies [tts.Synthesizer].
var _ tts.Synthesizer = (*Chain)(nil)

// chainEntry pairs a synthesizer with its dedicated circuit breaker.
type chainEntry struct {
	name    string
	synth   tts.Synthesizer
	breaker *CircuitBreaker
}

// Chain is a [tts.Synthesizer] that tries a primary backend and zero or more
// fallbacks in registration order. Each entry gets its own circuit breaker,
// so a backend that keeps failing is skipped without paying its retry ladder.
//
// Chain is safe for concurrent use.
type Chain struct {
	entries []chainEntry
	cbCfg   CircuitBreakerConfig
}

// NewChain creates a [Chain] with primary as the first entry. cbCfg.Name is
// overridden per entry.
func NewChain(primary tts.Synthesizer, primaryName string, cbCfg CircuitBreakerConfig) *Chain {
	c := &Chain{cbCfg: cbCfg}
	c.add(primaryName, primary)
	return c
}

// AddFallback appends a fallback backend. Fallbacks are tried in the order
// they are added, after the primary.
func (c *Chain) AddFallback(name string, synth tts.Synthesizer) {
	c.add(name, synth)
}

func (c *Chain) add(name string, synth tts.Synthesizer) {
	cfg := c.cbCfg
	cfg.Name = name
	c.entries = append(c.entries, chainEntry{
		name:    name,
		synth:   synth,
		breaker: NewCircuitBreaker(cfg),
	})
}

// Synthesize tries each backend in order until one returns audio. Entries
// with an open breaker are skipped. Returns [ErrAllBackendsFailed] wrapped
// with the last error when every entry fails.
func (c *Chain) Synthesize(ctx context.Context, text string) ([]byte, error) {
	var lastErr error
	for i := range c.entries {
		entry := &c.entries[i]

		var audio []byte
		err := entry.breaker.Execute(func() error {
			var innerErr error
			audio, innerErr = entry.synth.Synthesize(ctx, text)
			return innerErr
		})
		if err == nil {
			return audio, nil
		}
		lastErr = err
		if errors.Is(err, ErrCircuitOpen) {
			slog.Debug("skipping tts backend (circuit open)", "backend", entry.name)
		} else {
			slog.Warn("tts backend failed, trying next", "backend", entry.name, "error", err)
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}
	return nil, fmt.Errorf("%w: %v", ErrAllBackendsFailed, lastErr)
}

// Ping probes the first backend whose breaker is not open. A chain is
// considered reachable when any entry is.
func (c *Chain) Ping(ctx context.Context) error {
	var lastErr error
	for i := range c.entries {
		entry := &c.entries[i]
		if entry.breaker.State() == StateOpen {
			continue
		}
		if err := entry.synth.Ping(ctx); err != nil {
			lastErr = err
			continue
		}
		return nil
	}
	if lastErr != nil {
		return lastErr
	}
	return ErrAllBackendsFailed
}
