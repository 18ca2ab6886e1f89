package session

import "fmt"

// DeviceError reports that the microphone or output device could not be
// acquired, or was revoked. Terminal for the start attempt; the caller
// decides whether to retry.
type DeviceError struct {
	Err error
}

func (e *DeviceError) Error() string { return fmt.Sprintf("session: audio device: %v", e.Err) }
func (e *DeviceError) Unwrap() error { return e.Err }

// TransportOpenError reports that the remote connection could not be
// established, including auth failures. Terminal for the start attempt.
type TransportOpenError struct {
	Err error
}

func (e *TransportOpenError) Error() string { return fmt.Sprintf("session: open transport: %v", e.Err) }
func (e *TransportOpenError) Unwrap() error { return e.Err }

// TransportError reports that an established connection dropped mid-session.
// It triggers full teardown and is surfaced once.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string { return fmt.Sprintf("session: transport: %v", e.Err) }
func (e *TransportError) Unwrap() error { return e.Err }

// ToolError reports a tool invocation that failed or named an unknown tool.
// Never fatal: the failure is answered to the model as an error payload and
// the conversation continues.
type ToolError struct {
	Tool string
	Err  error
}

func (e *ToolError) Error() string { return fmt.Sprintf("session: tool %s: %v", e.Tool, e.Err) }
func (e *ToolError) Unwrap() error { return e.Err }
