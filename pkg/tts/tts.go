// Package tts defines the Synthesizer interface the player speaks through.
//
// A Synthesizer wraps a speech synthesis backend and turns one sanitized
// sentence into a single encoded audio clip. Streaming synthesis is
// deliberately out of scope: the player renders whole sentences and caches
// the result on the content unit, so a batch request per sentence is the
// right shape.
//
// Implementations must be safe for concurrent use; the player fetches the
// current and the next sentence concurrently.
package tts

import "context"

// Synthesizer is the abstraction over any TTS backend.
type Synthesizer interface {
	// Synthesize converts text into one complete audio clip. Implementations
	// retry transient failures internally; a returned error means the text
	// could not be synthesized at all.
	Synthesize(ctx context.Context, text string) ([]byte, error)

	// Ping reports whether the backend is reachable. Used by readiness
	// checks; it must be cheap and respect ctx cancellation.
	Ping(ctx context.Context) error
}
