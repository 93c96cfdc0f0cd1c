package player_test

import (
	"context"
	"errors"
	"reflect"
	"sync/atomic"
	"testing"
	"time"

	"github.com/OdraBelfegor/novel-reader-t/internal/content"
	"github.com/OdraBelfegor/novel-reader-t/internal/player"
	"github.com/OdraBelfegor/novel-reader-t/internal/player/mock"
	ttsmock "github.com/OdraBelfegor/novel-reader-t/pkg/tts/mock"
)

const testTimeout = 2 * time.Second

// fixture bundles a player with its collaborators and an optional
// auto-responder that acknowledges every clip like a well-behaved client.
type fixture struct {
	p        *player.Player
	listener *mock.Listener
	obs      *mock.Observer
	synth    *ttsmock.Synthesizer
	stopAuto chan struct{}
}

func newFixture(t *testing.T, paragraphs []string, autoEnd bool, opts ...player.PlayerOption) *fixture {
	t.Helper()

	f := &fixture{
		listener: mock.NewListener("test"),
		obs:      mock.NewObserver(),
		synth:    &ttsmock.Synthesizer{},
		stopAuto: make(chan struct{}),
	}
	users := player.NewUsers(nil)
	users.Add(f.listener)
	audio := player.NewAudioControl(users)
	f.p = player.New(content.Segment(paragraphs), audio, f.synth, f.obs, opts...)

	if autoEnd {
		go func() {
			for {
				select {
				case <-f.listener.PlayStarted():
					f.listener.ReportEnded(player.ReasonEnded)
				case <-f.stopAuto:
					return
				}
			}
		}()
	}
	t.Cleanup(func() {
		close(f.stopAuto)
		f.p.Close()
	})
	return f
}

func waitEnded(t *testing.T, f *fixture) player.EndCause {
	t.Helper()
	select {
	case cause := <-f.obs.EndedCh:
		return cause
	case <-time.After(testTimeout):
		t.Fatal("timed out waiting for the player run to end")
		return 0
	}
}

func waitPlayed(t *testing.T, f *fixture) int {
	t.Helper()
	select {
	case idx := <-f.obs.PlayedCh:
		return idx
	case <-time.After(testTimeout):
		t.Fatal("timed out waiting for a unit to play")
		return -1
	}
}

func waitPlayStarted(t *testing.T, f *fixture) {
	t.Helper()
	select {
	case <-f.listener.PlayStarted():
	case <-time.After(testTimeout):
		t.Fatal("timed out waiting for a play handoff")
	}
}

func waitState(t *testing.T, f *fixture, want player.State) {
	t.Helper()
	deadline := time.Now().Add(testTimeout)
	for time.Now().Before(deadline) {
		if f.p.State() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("state = %v, want %v", f.p.State(), want)
}

func TestPlayer_PlaysBatchInOrder(t *testing.T) {
	f := newFixture(t, []string{"One.", "Two.", "Three."}, true)

	f.p.Play(context.Background())

	var played []int
	for range 3 {
		played = append(played, waitPlayed(t, f))
	}
	if !reflect.DeepEqual(played, []int{0, 1, 2}) {
		t.Fatalf("played order = %v, want [0 1 2]", played)
	}
	if cause := waitEnded(t, f); cause != player.EndForward {
		t.Fatalf("end cause = %v, want %v", cause, player.EndForward)
	}
	if got := f.p.State(); got != player.StateIdle {
		t.Fatalf("state after end = %v, want IDLE", got)
	}
}

func TestPlayer_SkipsUnreadableUnits(t *testing.T) {
	f := newFixture(t, []string{"Hello.", "...", "World 42!"}, true)

	f.p.Play(context.Background())

	var played []int
	for range 2 {
		played = append(played, waitPlayed(t, f))
	}
	if !reflect.DeepEqual(played, []int{0, 2}) {
		t.Fatalf("played order = %v, want [0 2]", played)
	}
	waitEnded(t, f)

	// The unreadable unit never reached the synthesizer.
	for _, text := range f.synth.Synthesized() {
		if text == "..." {
			t.Fatal("unreadable unit was synthesized")
		}
	}
}

func TestPlayer_PauseAndResume(t *testing.T) {
	f := newFixture(t, []string{"One.", "Two."}, false)
	ctx := context.Background()

	f.p.Play(ctx)
	if idx := waitPlayed(t, f); idx != 0 {
		t.Fatalf("first played = %d, want 0", idx)
	}
	waitPlayStarted(t, f)

	// Second toggle pauses mid-clip.
	f.p.Play(ctx)
	waitState(t, f, player.StatePaused)
	if got := f.p.Index(); got != 0 {
		t.Fatalf("paused cursor = %d, want 0", got)
	}

	// Third toggle resumes from the same unit.
	f.p.Play(ctx)
	if idx := waitPlayed(t, f); idx != 0 {
		t.Fatalf("resumed played = %d, want 0", idx)
	}
	waitPlayStarted(t, f)
	f.listener.ReportEnded(player.ReasonEnded)
	if idx := waitPlayed(t, f); idx != 1 {
		t.Fatalf("next played = %d, want 1", idx)
	}
	waitPlayStarted(t, f)
	f.listener.ReportEnded(player.ReasonEnded)
	if cause := waitEnded(t, f); cause != player.EndForward {
		t.Fatalf("end cause = %v, want %v", cause, player.EndForward)
	}
}

func TestPlayer_StopIsIdempotent(t *testing.T) {
	f := newFixture(t, []string{"One.", "Two."}, false)
	ctx := context.Background()

	f.p.Play(ctx)
	waitPlayed(t, f)

	f.p.Stop(ctx)
	f.p.Stop(ctx)

	if cause := waitEnded(t, f); cause != player.EndStopped {
		t.Fatalf("end cause = %v, want %v", cause, player.EndStopped)
	}
	select {
	case cause := <-f.obs.EndedCh:
		t.Fatalf("second Ended callback fired with cause %v", cause)
	case <-time.After(100 * time.Millisecond):
	}

	// A stopped player ignores every further action.
	f.p.Play(ctx)
	f.p.Forward(ctx)
	if got := f.p.State(); got != player.StateIdle {
		t.Fatalf("state = %v, want IDLE", got)
	}
}

func TestPlayer_SynthesisFailurePausesWithPing(t *testing.T) {
	f := newFixture(t, []string{"One.", "Two."}, true)
	f.synth.SynthesizeFunc = func(context.Context, string) ([]byte, error) {
		return nil, errors.New("backend down")
	}

	f.p.Play(context.Background())
	waitState(t, f, player.StatePaused)

	deadline := time.Now().Add(testTimeout)
	for time.Now().Before(deadline) {
		for _, kind := range f.listener.Alerts() {
			if kind == player.AlertPing {
				return
			}
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("no ping alert after synthesis failure, alerts = %v", f.listener.Alerts())
}

func TestPlayer_SeekOutOfRangeIsNoOp(t *testing.T) {
	f := newFixture(t, []string{"One.", "Two."}, false)
	ctx := context.Background()

	f.p.Seek(ctx, 99)
	f.p.Seek(ctx, -1)
	if got := f.p.Index(); got != 0 {
		t.Fatalf("cursor = %d, want 0", got)
	}
	if got := f.p.State(); got != player.StateIdle {
		t.Fatalf("state = %v, want IDLE", got)
	}
}

func TestPlayer_SeekWhileIdleMovesCursorOnly(t *testing.T) {
	f := newFixture(t, []string{"One.", "Two.", "Three."}, false)

	f.p.Seek(context.Background(), 2)
	if got := f.p.Index(); got != 2 {
		t.Fatalf("cursor = %d, want 2", got)
	}
	if got := f.p.State(); got != player.StateIdle {
		t.Fatalf("state = %v, want IDLE", got)
	}
}

func TestPlayer_BackwardSkipsUnreadable(t *testing.T) {
	f := newFixture(t, []string{"One.", "...", "Three."}, false)
	ctx := context.Background()

	f.p.Seek(ctx, 2)
	f.p.Backward(ctx)
	// Unit 1 is unreadable, so backward lands on unit 0.
	if got := f.p.Index(); got != 0 {
		t.Fatalf("cursor = %d, want 0", got)
	}
}

func TestPlayer_BackwardOffStartEndsRun(t *testing.T) {
	f := newFixture(t, []string{"One.", "Two."}, false)

	f.p.Backward(context.Background())
	if cause := waitEnded(t, f); cause != player.EndBackward {
		t.Fatalf("end cause = %v, want %v", cause, player.EndBackward)
	}
}

func TestPlayer_ForwardPastEndEndsRun(t *testing.T) {
	f := newFixture(t, []string{"One."}, true)
	ctx := context.Background()

	f.p.Play(ctx)
	waitPlayed(t, f)
	if cause := waitEnded(t, f); cause != player.EndForward {
		t.Fatalf("end cause = %v, want %v", cause, player.EndForward)
	}
}

func TestPlayer_ForwardWhileIdleClampsAtEnd(t *testing.T) {
	f := newFixture(t, []string{"One.", "Two."}, false)
	ctx := context.Background()

	// Not playing: each Forward only moves the cursor, and the cursor never
	// leaves the valid range.
	f.p.Forward(ctx)
	f.p.Forward(ctx)
	f.p.Forward(ctx)
	f.p.Forward(ctx)

	if got := f.p.Index(); got != 2 {
		t.Fatalf("cursor = %d, want 2", got)
	}
}

func TestPlayer_SingleRenderInFlight(t *testing.T) {
	f := newFixture(t, []string{"One.", "Two.", "Three."}, false)
	ctx := context.Background()

	// Count clips unresolved at the listener: a handoff raises the count, a
	// stop command resolves the clip and lowers it. A second handoff while
	// one clip is unresolved means two renders overlapped.
	var inFlight, maxSeen atomic.Int32
	f.listener.PlayFunc = func(context.Context, []byte) error {
		if n := inFlight.Add(1); n > maxSeen.Load() {
			maxSeen.Store(n)
		}
		return nil
	}
	f.listener.StopFunc = func(context.Context) error {
		inFlight.Add(-1)
		f.listener.ReportEnded(player.ReasonStopped)
		return nil
	}

	f.p.Play(ctx)
	f.p.Forward(ctx)

	waitPlayStarted(t, f)
	f.p.Stop(ctx)

	if got := maxSeen.Load(); got > 1 {
		t.Fatalf("renders in flight concurrently = %d, want at most 1", got)
	}
}

func TestPlayer_DisconnectEndsSession(t *testing.T) {
	f := newFixture(t, []string{"One.", "Two."}, false)

	f.p.Play(context.Background())
	waitPlayed(t, f)
	waitPlayStarted(t, f)
	f.listener.Disconnect()

	select {
	case <-f.obs.DisconnectedCh:
	case <-time.After(testTimeout):
		t.Fatal("Disconnected callback never fired")
	}
}

func TestPlayer_StartAtEnd(t *testing.T) {
	f := newFixture(t, []string{"One.", "Two."}, false, player.StartAtEnd())

	if got := f.p.Index(); got != 2 {
		t.Fatalf("initial cursor = %d, want 2", got)
	}
	f.p.Backward(context.Background())
	if got := f.p.Index(); got != 1 {
		t.Fatalf("cursor after backward = %d, want 1", got)
	}
}

func TestPlayer_AudioIsCached(t *testing.T) {
	f := newFixture(t, []string{"Only sentence."}, true)
	ctx := context.Background()

	f.p.Play(ctx)
	waitPlayed(t, f)
	waitEnded(t, f)

	if got := f.p.Batch().Server[0].Audio; got == nil {
		t.Fatal("unit audio was not cached after playback")
	}
}
