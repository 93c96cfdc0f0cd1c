// Package player implements sentence-by-sentence playback of segmented text:
// a [Player] walks a batch of sentences, synthesizing each readable one and
// shipping the audio to a remote listener through an [AudioControl]; a
// [Control] owns the session, the listener registry and the loop-continuation
// policy that fetches follow-up content from a connected provider.
package player

import "context"

// State is the playback state of a [Player].
type State int

const (
	// StateIdle means no sentence is being rendered and no pipeline runs.
	StateIdle State = iota
	// StatePlaying means the playback pipeline is advancing through units.
	StatePlaying
	// StatePaused means playback was pre-empted and the cursor holds the
	// unit to resume from.
	StatePaused
)

// String returns the wire spelling of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StatePlaying:
		return "PLAYING"
	case StatePaused:
		return "PAUSED"
	default:
		return "UNKNOWN"
	}
}

// StateInactive is the snapshot state reported when no player exists at all.
const StateInactive = "INACTIVE"

// EndCause says why a player run finished.
type EndCause int

const (
	// EndStopped means Stop was called before the batch completed.
	EndStopped EndCause = iota
	// EndForward means the cursor ran past the last unit.
	EndForward
	// EndBackward means a backward skip ran off the front of the batch.
	EndBackward
)

func (c EndCause) String() string {
	switch c {
	case EndStopped:
		return "stopped"
	case EndForward:
		return "forward"
	case EndBackward:
		return "backward"
	default:
		return "unknown"
	}
}

// Outcome is the terminal result of a single render on the audio control.
type Outcome int

const (
	// OutcomeEnded means the listener reported natural end of the clip.
	OutcomeEnded Outcome = iota
	// OutcomeStopped means the render was interrupted by a stop command.
	OutcomeStopped
	// OutcomeDisconnected means the bound listener went away mid-render.
	OutcomeDisconnected
	// OutcomeNoConnection means no listener was available or the initial
	// handoff failed.
	OutcomeNoConnection
)

func (o Outcome) String() string {
	switch o {
	case OutcomeEnded:
		return "ended"
	case OutcomeStopped:
		return "stopped"
	case OutcomeDisconnected:
		return "disconnected"
	case OutcomeNoConnection:
		return "no-connection"
	default:
		return "unknown"
	}
}

// EndReason is the listener-reported reason a clip finished.
type EndReason string

const (
	// ReasonEnded means the clip played to completion on the client.
	ReasonEnded EndReason = "ended"
	// ReasonStopped means the client acknowledged a stop command.
	ReasonStopped EndReason = "stopped"
)

// AlertKind selects a client-side alert sound.
type AlertKind string

const (
	// AlertPrimary marks a session ending.
	AlertPrimary AlertKind = "primary"
	// AlertSecondary marks a loop continuation between batches.
	AlertSecondary AlertKind = "secondary"
	// AlertPing marks a recoverable fault such as a failed synthesis.
	AlertPing AlertKind = "ping"
)

// StateSnapshot is the externally visible session state pushed to listeners.
type StateSnapshot struct {
	State       string `json:"state"`
	Loop        bool   `json:"loop"`
	LoopActive  bool   `json:"loopActive"`
	LoopLimit   *int   `json:"loopLimit"`
	LoopCounter *int   `json:"loopCounter"`
}

// Listener is a connected playback client. SendPlay, SendStop and SendAlert
// are acknowledged commands; the Notify methods are fire-and-forget view
// updates. Ended delivers client-reported clip terminations and Done is
// closed when the client disconnects.
type Listener interface {
	ID() string

	SendPlay(ctx context.Context, audio []byte) error
	SendStop(ctx context.Context) error
	SendAlert(ctx context.Context, kind AlertKind) error

	Ended() <-chan EndReason
	Done() <-chan struct{}

	NotifyState(snap StateSnapshot)
	NotifyContent(content any)
	NotifyHighlight(index int)
	NotifyAlert(kind AlertKind)
}

// Observer receives player lifecycle callbacks. Implementations must not
// call back into the player from Played or Acted; Ended and Disconnected
// are delivered after the player has gone idle.
type Observer interface {
	// Played fires when a unit's audio has been handed to the renderer.
	Played(index int)
	// Acted fires after a control action (play, pause, skip, seek) settled.
	Acted()
	// Ended fires exactly once per terminal player run.
	Ended(cause EndCause)
	// Disconnected fires when the bound listener vanished mid-render.
	Disconnected()
}
