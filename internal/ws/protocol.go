// Package ws is the WebSocket transport: it speaks a small JSON envelope
// protocol with listener clients (playback commands in, audio and view
// updates out) and with the content provider (chapter fetches out, content
// in), and adapts both connection kinds onto the player package interfaces.
package ws

import "encoding/json"

// Envelope is the wire frame for every message in both directions. Messages
// expecting a reply carry a non-zero ID and Ack set; the reply is an
// envelope of type [TypeAck] with the same ID.
type Envelope struct {
	ID      int64           `json:"id,omitempty"`
	Type    string          `json:"type"`
	Ack     bool            `json:"ack,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Message types. The audio and view families flow server→listener, the
// player and loop families listener→server, and the provider family
// server→provider.
const (
	TypeAck = "ack"

	// Acknowledged listener commands.
	TypeAudioPlay = "audio:play"
	TypeAudioStop = "audio:stop"
	TypeAlertPlay = "alert:play"

	// Fire-and-forget view updates.
	TypeViewState     = "view:update-state"
	TypeViewContent   = "view:load-content"
	TypeViewHighlight = "view:highlight-sentence"
	TypeAlertShow     = "alert:show"

	// Listener events and commands.
	TypeAudioEnded      = "audio:ended"
	TypePlayerReadThis  = "player:read-this"
	TypePlayerPlay      = "player:play"
	TypePlayerStop      = "player:stop"
	TypePlayerForward   = "player:forward"
	TypePlayerBackward  = "player:backward"
	TypePlayerSeek      = "player:seek"
	TypePlayerStopAudio = "player:stop-audio"
	TypeLoopToggle      = "loop:toggle"
	TypeLoopSetLimit    = "loop:set-limit"
	TypeLoopRemoveLimit = "loop:remove-limit"
	TypeRequestProvider = "player:request-provider"

	// Provider requests.
	TypeGetContent = "provider:get-content"
)

// audioPayload carries an encoded clip. The byte slice marshals to base64.
type audioPayload struct {
	Audio []byte `json:"audio"`
}

// alertPayload selects a client alert sound.
type alertPayload struct {
	Kind string `json:"kind"`
}

// highlightPayload points at the sentence being read, -1 for none.
type highlightPayload struct {
	Index int `json:"index"`
}

// endedPayload is the listener's clip-termination report.
type endedPayload struct {
	Reason string `json:"reason"`
}

// readThisPayload is the raw text for a one-shot session.
type readThisPayload struct {
	Content []string `json:"content"`
}

// seekPayload targets a unit index.
type seekPayload struct {
	Index int `json:"index"`
}

// limitPayload caps loop chaining.
type limitPayload struct {
	Limit int `json:"limit"`
}

// offsetPayload selects a chapter relative to the provider cursor.
type offsetPayload struct {
	Offset int `json:"offset"`
}

// contentPayload is the provider's chapter reply.
type contentPayload struct {
	Content []string `json:"content"`
}

func mustMarshal(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}
