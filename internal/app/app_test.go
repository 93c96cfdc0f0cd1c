package app_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/OdraBelfegor/novel-reader-t/internal/app"
	"github.com/OdraBelfegor/novel-reader-t/internal/config"
	"github.com/OdraBelfegor/novel-reader-t/internal/observe"
	ttsmock "github.com/OdraBelfegor/novel-reader-t/pkg/tts/mock"
)

func newTestApp(t *testing.T, synth *ttsmock.Synthesizer) *app.App {
	t.Helper()

	metrics, err := observe.NewMetrics(sdkmetric.NewMeterProvider())
	if err != nil {
		t.Fatalf("new metrics: %v", err)
	}

	a, err := app.New(config.Default(),
		app.WithSynthesizer(synth),
		app.WithMetrics(metrics),
	)
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.Shutdown(ctx); err != nil {
			t.Errorf("shutdown: %v", err)
		}
	})
	return a
}

func TestApp_Healthz(t *testing.T) {
	a := newTestApp(t, &ttsmock.Synthesizer{})

	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestApp_ReadyzProbesSynthesizer(t *testing.T) {
	synth := &ttsmock.Synthesizer{}
	a := newTestApp(t, synth)

	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if synth.Pings() == 0 {
		t.Fatal("readyz did not probe the synthesizer")
	}
}

func TestApp_ReadyzFailsWhenSynthesizerDown(t *testing.T) {
	synth := &ttsmock.Synthesizer{
		PingFunc: func(ctx context.Context) error { return io.ErrUnexpectedEOF },
	}
	a := newTestApp(t, synth)

	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}
}

func TestApp_MetricsEndpoint(t *testing.T) {
	a := newTestApp(t, &ttsmock.Synthesizer{})

	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), "go_") {
		t.Fatalf("metrics body missing runtime collectors: %.80s", body)
	}
}

func TestApp_ControlStartsInactive(t *testing.T) {
	a := newTestApp(t, &ttsmock.Synthesizer{})

	snap := a.Control().Snapshot()
	if snap.State != "INACTIVE" {
		t.Fatalf("state = %q, want INACTIVE", snap.State)
	}
	if a.Control().HasProvider() {
		t.Fatal("fresh app should have no provider")
	}
}

func TestApp_ShutdownIsIdempotent(t *testing.T) {
	a := newTestApp(t, &ttsmock.Synthesizer{})

	ctx := context.Background()
	if err := a.Shutdown(ctx); err != nil {
		t.Fatalf("first shutdown: %v", err)
	}
	if err := a.Shutdown(ctx); err != nil {
		t.Fatalf("second shutdown: %v", err)
	}
}
