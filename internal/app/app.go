// Package app wires all novel-reader subsystems into a running application.
//
// The App struct owns the full lifecycle: New creates and connects all
// subsystems, Run serves HTTP until the context is cancelled, and Shutdown
// tears everything down in order.
//
// For testing, inject mock implementations via functional options
// (WithSynthesizer, WithMetrics). When an option is not provided, New
// creates real implementations from the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/OdraBelfegor/novel-reader-t/internal/config"
	"github.com/OdraBelfegor/novel-reader-t/internal/health"
	"github.com/OdraBelfegor/novel-reader-t/internal/observe"
	"github.com/OdraBelfegor/novel-reader-t/internal/player"
	"github.com/OdraBelfegor/novel-reader-t/internal/resilience"
	"github.com/OdraBelfegor/novel-reader-t/internal/ws"
	"github.com/OdraBelfegor/novel-reader-t/pkg/tts"
	"github.com/OdraBelfegor/novel-reader-t/pkg/tts/httptts"
)

// App owns all subsystem lifetimes: the listener registry, the session
// controller, the speech backend chain and the HTTP server.
type App struct {
	cfg     *config.Config
	metrics *observe.Metrics

	synth   tts.Synthesizer
	users   *player.Users
	audio   *player.AudioControl
	control *player.Control
	wsrv    *ws.Server
	server  *http.Server

	// closers are called in order during Shutdown.
	closers []func() error

	// stopOnce guards the Shutdown path.
	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithSynthesizer injects a speech backend instead of building the HTTP
// client chain from config.
func WithSynthesizer(s tts.Synthesizer) Option {
	return func(a *App) { a.synth = s }
}

// WithMetrics injects a metrics handle instead of creating one from the
// global meter provider.
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// New creates an App by wiring all subsystems together. Use Option functions
// to inject test doubles for any subsystem.
func New(cfg *config.Config, opts ...Option) (*App, error) {
	a := &App{cfg: cfg}
	for _, o := range opts {
		o(a)
	}

	if a.metrics == nil {
		m, err := observe.NewMetrics(nil)
		if err != nil {
			return nil, fmt.Errorf("app: init metrics: %w", err)
		}
		a.metrics = m
	}

	if err := a.initSynthesizer(); err != nil {
		return nil, fmt.Errorf("app: init synthesizer: %w", err)
	}
	a.initPlayer()
	a.initHTTP()

	return a, nil
}

// initSynthesizer builds the primary TTS client plus fallbacks behind
// circuit breakers, unless a synthesizer was injected.
func (a *App) initSynthesizer() error {
	if a.synth != nil {
		return nil
	}

	clientOpts := []httptts.Option{
		httptts.WithRetries(a.cfg.TTS.Retries),
		httptts.WithBackoff(a.cfg.TTS.Backoff),
		httptts.WithAttemptTimeout(a.cfg.TTS.AttemptTimeout),
		httptts.WithMetrics(a.metrics),
	}

	primary, err := httptts.New(a.cfg.TTS.BaseURL, clientOpts...)
	if err != nil {
		return err
	}

	chain := resilience.NewChain(primary, "primary", resilience.CircuitBreakerConfig{
		Name: "tts-primary",
	})
	for i, url := range a.cfg.TTS.FallbackURLs {
		fb, err := httptts.New(url, clientOpts...)
		if err != nil {
			return fmt.Errorf("fallback %d: %w", i, err)
		}
		chain.AddFallback(fmt.Sprintf("fallback-%d", i), fb)
	}
	a.synth = chain
	return nil
}

// initPlayer wires the listener registry, the audio control and the session
// controller.
func (a *App) initPlayer() {
	a.users = player.NewUsers(func(delta int) {
		a.metrics.AddListeners(context.Background(), int64(delta))
	})
	a.audio = player.NewAudioControl(a.users,
		player.WithAckTimeout(a.cfg.Player.AckTimeout),
		player.WithAudioMetrics(a.metrics),
	)
	a.control = player.NewControl(a.users, a.audio, a.synth,
		player.WithFetchTimeout(a.cfg.Player.ProviderTimeout),
		player.WithControlMetrics(a.metrics),
	)
}

// initHTTP assembles the mux: WebSocket endpoints, health probes and the
// Prometheus scrape endpoint, all behind the observability middleware.
func (a *App) initHTTP() {
	a.wsrv = ws.NewServer(a.users, a.control)

	mux := http.NewServeMux()
	a.wsrv.Register(mux)
	health.New(health.Checker{
		Name:  "tts",
		Check: a.synth.Ping,
	}).Register(mux)
	mux.Handle("GET /metrics", promhttp.Handler())

	a.server = &http.Server{
		Addr:              a.cfg.Server.ListenAddr,
		Handler:           observe.Middleware(a.metrics)(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}
	a.closers = append(a.closers, func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return a.server.Shutdown(ctx)
	})
}

// Handler exposes the assembled HTTP handler, mainly for tests.
func (a *App) Handler() http.Handler {
	return a.server.Handler
}

// Control exposes the session controller, mainly for tests.
func (a *App) Control() *player.Control {
	return a.control
}

// Run serves HTTP until ctx is cancelled, then shuts the server down. It
// returns nil on graceful exit and the serve error otherwise.
func (a *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("server listening", "addr", a.cfg.Server.ListenAddr)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("app: serve: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return a.server.Shutdown(sctx)
	})

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Shutdown tears down all subsystems in order. It respects the context
// deadline: if ctx expires before all closers finish, remaining closers are
// skipped and the context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("shutting down", "closers", len(a.closers))

		a.control.Stop(ctx)

		for i, closer := range a.closers {
			select {
			case <-ctx.Done():
				slog.Warn("shutdown deadline exceeded", "remaining", len(a.closers)-i)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := closer(); err != nil {
				slog.Warn("closer error", "index", i, "err", err)
			}
		}

		slog.Info("shutdown complete")
	})
	return shutdownErr
}
