// Package mock provides a recording, scriptable [tts.Synthesizer] for tests.
package mock

import (
	"context"
	"sync"

	"github.com/OdraBelfegor/novel-reader-t/pkg/tts"
)

// Compile-time interface assertion.
var _ tts.Synthesizer = (*Synthesizer)(nil)

// Synthesizer is a test double for [tts.Synthesizer]. The zero value returns
// a deterministic clip derived from the input text. Set SynthesizeFunc or
// PingFunc to script behavior per call.
type Synthesizer struct {
	mu sync.Mutex

	// SynthesizeFunc, when set, handles Synthesize calls.
	SynthesizeFunc func(ctx context.Context, text string) ([]byte, error)
	// PingFunc, when set, handles Ping calls.
	PingFunc func(ctx context.Context) error

	synthesized []string
	pings       int
}

func (s *Synthesizer) Synthesize(ctx context.Context, text string) ([]byte, error) {
	s.mu.Lock()
	s.synthesized = append(s.synthesized, text)
	fn := s.SynthesizeFunc
	s.mu.Unlock()

	if fn != nil {
		return fn(ctx, text)
	}
	return []byte("audio:" + text), nil
}

func (s *Synthesizer) Ping(ctx context.Context) error {
	s.mu.Lock()
	s.pings++
	fn := s.PingFunc
	s.mu.Unlock()

	if fn != nil {
		return fn(ctx)
	}
	return nil
}

// Synthesized returns a copy of all texts passed to Synthesize so far.
func (s *Synthesizer) Synthesized() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.synthesized))
	copy(out, s.synthesized)
	return out
}

// Pings returns how many times Ping was called.
func (s *Synthesizer) Pings() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pings
}
