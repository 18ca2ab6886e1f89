// Package live defines the provider-neutral surface for real-time duplex
// speech sessions.
//
// A [Session] carries microphone audio, camera frames, typed text and tool
// results upstream, and surfaces everything the model sends back as a single
// ordered stream of [Event] values. Implementations live in subpackages
// (gemini for the production transport, mock for tests).
package live

import (
	"context"
	"fmt"

	"github.com/novalabs/nova/pkg/memory"
)

// DecodeError reports one malformed inbound frame. It is never fatal: the
// transport drops the frame, counts it, and keeps reading.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string { return fmt.Sprintf("live: decode frame: %v", e.Err) }
func (e *DecodeError) Unwrap() error { return e.Err }

// ToolDefinition describes one function the model may call during a session.
type ToolDefinition struct {
	// Name is the function name the model invokes.
	Name string

	// Description tells the model when to call the function.
	Description string

	// Parameters is a JSON-schema object describing the arguments.
	Parameters map[string]any
}

// SessionConfig carries everything a provider needs to open a session.
type SessionConfig struct {
	// Voice selects the prebuilt synthesis voice. Empty uses the provider
	// default.
	Voice string

	// Instructions is the system instruction establishing the assistant's
	// identity and personality.
	Instructions string

	// Tools are the function declarations offered to the model.
	// Ignored when SearchGrounding is set: the protocol does not allow
	// function declarations and search grounding in the same session.
	Tools []ToolDefinition

	// SearchGrounding enables web search grounding for the session.
	SearchGrounding bool
}

// Provider opens live sessions against one backend.
type Provider interface {
	// Connect establishes a session. The returned Session is ready to accept
	// audio as soon as Connect returns.
	Connect(ctx context.Context, cfg SessionConfig) (Session, error)
}

// Session is one bidirectional conversation. Input methods enqueue without
// blocking on the network; everything inbound arrives on Events in the order
// the provider sent it.
type Session interface {
	// SendAudio enqueues one chunk of 16 kHz mono s16le microphone audio.
	SendAudio(pcm []byte) error

	// SendImage enqueues one camera frame for multimodal context.
	// mimeType is the frame encoding, e.g. "image/jpeg".
	SendImage(mimeType string, data []byte) error

	// SendText submits a typed user turn and asks the model to respond.
	SendText(text string) error

	// SendToolResult delivers the outcome of a tool invocation surfaced via a
	// [ToolCall] event. callID and name must echo the event's values.
	SendToolResult(callID, name string, result map[string]any) error

	// Events returns the ordered inbound event stream. The channel is closed
	// when the session ends; Err reports why.
	Events() <-chan Event

	// Err returns the first error that terminated the session, or nil after a
	// clean Close.
	Err() error

	// Close terminates the session and releases all resources. Idempotent.
	Close() error
}

// Event is one inbound occurrence on a session. The concrete types are
// [AudioDelta], [TranscriptDelta], [ToolCall], [TurnComplete] and
// [Interrupted].
type Event interface {
	isEvent()
}

// AudioDelta is a chunk of synthesised speech: 24 kHz mono s16le PCM, already
// decoded from the transport encoding.
type AudioDelta struct {
	PCM []byte
}

// TranscriptDelta is a streamed transcript fragment. Fragments accumulate
// until a [TurnComplete] finalizes the turn.
type TranscriptDelta struct {
	Speaker memory.Speaker
	Text    string
}

// ToolCall asks the application to run a declared function and reply with
// [Session.SendToolResult].
type ToolCall struct {
	ID   string
	Name string
	Args map[string]any
}

// TurnComplete marks the end of a model turn. Sources carries grounding
// citations collected during the turn, if any.
type TurnComplete struct {
	Sources []memory.GroundingSource
}

// Interrupted signals that the model abandoned its current turn because the
// user started speaking over it. Queued playback should be flushed.
type Interrupted struct{}

func (AudioDelta) isEvent()      {}
func (TranscriptDelta) isEvent() {}
func (ToolCall) isEvent()        {}
func (TurnComplete) isEvent()    {}
func (Interrupted) isEvent()     {}
