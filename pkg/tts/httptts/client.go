// Package httptts provides a [tts.Synthesizer] backed by a plain HTTP TTS
// service: POST /tts with a text/plain body returns the encoded audio clip,
// GET /ping answers liveness probes.
//
// Transient failures are retried with a fixed backoff; a returned error means
// the retry ladder was exhausted.
package httptts

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/OdraBelfegor/novel-reader-t/internal/observe"
	"github.com/OdraBelfegor/novel-reader-t/pkg/tts"
)

const (
	defaultRetries        = 5
	defaultBackoff        = 800 * time.Millisecond
	defaultAttemptTimeout = 20 * time.Second
	defaultPingTimeout    = 5 * time.Second
)

// Compile-time interface assertion.
var _ tts.Synthesizer = (*Client)(nil)

// Option is a functional option for configuring a [Client].
type Option func(*Client)

// WithRetries sets the number of synthesis attempts per sentence (≥1).
func WithRetries(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.retries = n
		}
	}
}

// WithBackoff sets the delay between synthesis attempts.
func WithBackoff(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.backoff = d
		}
	}
}

// WithAttemptTimeout sets the per-attempt HTTP timeout.
func WithAttemptTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.attemptTimeout = d
		}
	}
}

// WithHTTPClient replaces the underlying [http.Client].
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithMetrics wires synthesis metrics. Pass nil to disable (the default).
func WithMetrics(m *observe.Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// Client implements [tts.Synthesizer] against an HTTP TTS service.
type Client struct {
	baseURL        string
	httpClient     *http.Client
	retries        int
	backoff        time.Duration
	attemptTimeout time.Duration
	metrics        *observe.Metrics
}

// New creates a Client for the service at baseURL. baseURL must be non-empty;
// a trailing slash is tolerated.
func New(baseURL string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, errors.New("httptts: baseURL must not be empty")
	}
	c := &Client{
		baseURL:        strings.TrimRight(baseURL, "/"),
		httpClient:     &http.Client{},
		retries:        defaultRetries,
		backoff:        defaultBackoff,
		attemptTimeout: defaultAttemptTimeout,
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// Synthesize posts text to the /tts endpoint and returns the audio bytes.
// Attempts are retried with backoff until the ladder is exhausted or ctx is
// cancelled.
func (c *Client) Synthesize(ctx context.Context, text string) ([]byte, error) {
	ctx, span := observe.StartSpan(ctx, "tts.synthesize",
		trace.WithAttributes(attribute.Int("text.length", len(text))))
	defer span.End()

	start := time.Now()
	var lastErr error
	for attempt := 1; attempt <= c.retries; attempt++ {
		audio, err := c.attempt(ctx, text)
		if err == nil {
			c.metrics.RecordSynthesis(ctx, "ok", time.Since(start).Seconds())
			return audio, nil
		}
		lastErr = err

		if attempt == c.retries || ctx.Err() != nil {
			break
		}
		select {
		case <-time.After(c.backoff):
		case <-ctx.Done():
			c.metrics.RecordSynthesis(ctx, "error", time.Since(start).Seconds())
			return nil, ctx.Err()
		}
	}
	c.metrics.RecordSynthesis(ctx, "error", time.Since(start).Seconds())
	return nil, fmt.Errorf("httptts: synthesize after %d attempts: %w", c.retries, lastErr)
}

// attempt performs a single POST /tts round trip.
func (c *Client) attempt(ctx context.Context, text string) ([]byte, error) {
	actx, cancel := context.WithTimeout(ctx, c.attemptTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(actx, http.MethodPost, c.baseURL+"/tts", strings.NewReader(text))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "text/plain")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if len(audio) == 0 {
		return nil, errors.New("empty audio response")
	}
	return audio, nil
}

// Ping probes GET /ping. Any 2xx answer counts as reachable.
func (c *Client) Ping(ctx context.Context) error {
	pctx, cancel := context.WithTimeout(ctx, defaultPingTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(pctx, http.MethodGet, c.baseURL+"/ping", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("httptts: ping: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("httptts: ping: unexpected status %d", resp.StatusCode)
	}
	return nil
}
