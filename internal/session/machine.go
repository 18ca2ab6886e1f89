// Package session drives one live conversation: it owns the state machine
// the rest of the application observes and the event loop that serialises
// everything the transport, capture and playback components report.
package session

import "sync"

// State is what the assistant is doing right now. Exactly one State is
// current per session.
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateListening
	StateSpeaking
	StateThinking
	StateError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateListening:
		return "listening"
	case StateSpeaking:
		return "speaking"
	case StateThinking:
		return "thinking"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// Event is an occurrence that may drive a state transition.
type Event int

const (
	// EventStartRequested is the caller asking to open a session.
	EventStartRequested Event = iota

	// EventConnected is the transport reporting an open connection.
	EventConnected

	// EventOpenFailed is the transport reporting a failed open.
	EventOpenFailed

	// EventAudioDelta is an inbound chunk of synthesised speech.
	EventAudioDelta

	// EventTranscriptDelta is an inbound transcript fragment.
	EventTranscriptDelta

	// EventPlaybackDrained is the playback active set becoming empty.
	EventPlaybackDrained

	// EventTextSubmitted is the user sending a typed message.
	EventTextSubmitted

	// EventFatalError is a mid-session failure that forces teardown.
	EventFatalError

	// EventTeardownComplete is the end of teardown, returning to Idle.
	EventTeardownComplete
)

// Machine is the serialized session state machine. Events that are illegal
// in the current state are no-ops, never errors. Safe for concurrent use.
type Machine struct {
	mu       sync.Mutex
	state    State
	onChange func(State)
}

// NewMachine returns a machine in [StateIdle].
func NewMachine() *Machine {
	return &Machine{state: StateIdle}
}

// OnChange registers f to run after every state change, outside the machine
// lock but in transition order.
func (m *Machine) OnChange(f func(State)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onChange = f
}

// State returns the current state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Apply attempts a transition and reports whether one occurred.
func (m *Machine) Apply(ev Event) bool {
	m.mu.Lock()
	next, ok := transition(m.state, ev)
	if !ok || next == m.state {
		m.mu.Unlock()
		return ok && next == m.state
	}
	m.state = next
	f := m.onChange
	m.mu.Unlock()

	if f != nil {
		f(next)
	}
	return true
}

// transition encodes the legal transition table. The second return value
// reports whether the event is legal in the given state at all; a legal
// event may still leave the state unchanged.
func transition(s State, ev Event) (State, bool) {
	switch ev {
	case EventStartRequested:
		if s == StateIdle {
			return StateConnecting, true
		}
	case EventConnected:
		if s == StateConnecting {
			return StateListening, true
		}
	case EventOpenFailed:
		if s == StateConnecting {
			return StateIdle, true
		}
	case EventAudioDelta:
		switch s {
		case StateListening, StateThinking:
			return StateSpeaking, true
		case StateSpeaking:
			return StateSpeaking, true
		}
	case EventTranscriptDelta:
		switch s {
		case StateThinking:
			return StateListening, true
		case StateListening, StateSpeaking:
			return s, true
		}
	case EventPlaybackDrained:
		if s == StateSpeaking {
			return StateListening, true
		}
	case EventTextSubmitted:
		switch s {
		case StateListening, StateSpeaking:
			return StateThinking, true
		}
	case EventFatalError:
		if s != StateIdle {
			return StateError, true
		}
	case EventTeardownComplete:
		return StateIdle, true
	}
	return s, false
}
