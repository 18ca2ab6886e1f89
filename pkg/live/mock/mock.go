// Package mock provides scriptable in-memory implementations of the live
// interfaces for tests.
package mock

import (
	"context"
	"fmt"
	"sync"

	"github.com/novalabs/nova/pkg/live"
)

var _ live.Provider = (*Provider)(nil)
var _ live.Session = (*Session)(nil)

// Provider hands out pre-built sessions in order. When the script of sessions
// is exhausted, or DialErr is set, Connect fails.
type Provider struct {
	mu       sync.Mutex
	sessions []*Session
	next     int

	// DialErr, when non-nil, is returned by every Connect call.
	DialErr error

	// LastConfig records the config of the most recent Connect call.
	LastConfig live.SessionConfig
}

// NewProvider returns a Provider that will serve the given sessions in order.
func NewProvider(sessions ...*Session) *Provider {
	return &Provider{sessions: sessions}
}

// Connect implements [live.Provider].
func (p *Provider) Connect(_ context.Context, cfg live.SessionConfig) (live.Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.LastConfig = cfg
	if p.DialErr != nil {
		return nil, p.DialErr
	}
	if p.next >= len(p.sessions) {
		return nil, fmt.Errorf("mock: no session scripted for connect %d", p.next)
	}
	s := p.sessions[p.next]
	p.next++
	return s, nil
}

// SentMessage records one outbound call on a mock session.
type SentMessage struct {
	// Kind is "audio", "image", "text" or "tool_result".
	Kind string

	// Audio holds the PCM chunk for Kind "audio" and the frame bytes for
	// Kind "image".
	Audio []byte

	// MIMEType is set for Kind "image".
	MIMEType string

	// Text is set for Kind "text".
	Text string

	// CallID, Name and Result are set for Kind "tool_result".
	CallID string
	Name   string
	Result map[string]any
}

// Session is a scriptable [live.Session]. Tests feed inbound events through
// [Session.Emit] and inspect outbound traffic via [Session.Sent].
type Session struct {
	mu     sync.Mutex
	sent   []SentMessage
	closed bool
	errVal error

	events    chan live.Event
	closeOnce sync.Once
}

// NewSession returns an open mock session.
func NewSession() *Session {
	return &Session{events: make(chan live.Event, 64)}
}

// Emit queues ev on the session's event channel.
func (s *Session) Emit(ev live.Event) {
	s.events <- ev
}

// Fail records err as the terminal session error and closes the event
// channel, as a transport failure would.
func (s *Session) Fail(err error) {
	s.mu.Lock()
	s.errVal = err
	s.mu.Unlock()
	s.closeOnce.Do(func() { close(s.events) })
}

// Sent returns a copy of all outbound messages recorded so far.
func (s *Session) Sent() []SentMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]SentMessage, len(s.sent))
	copy(out, s.sent)
	return out
}

// Closed reports whether Close has been called.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Session) record(msg SentMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("mock: session closed")
	}
	s.sent = append(s.sent, msg)
	return nil
}

// SendAudio implements [live.Session].
func (s *Session) SendAudio(pcm []byte) error {
	return s.record(SentMessage{Kind: "audio", Audio: pcm})
}

// SendImage implements [live.Session].
func (s *Session) SendImage(mimeType string, data []byte) error {
	return s.record(SentMessage{Kind: "image", MIMEType: mimeType, Audio: data})
}

// SendText implements [live.Session].
func (s *Session) SendText(text string) error {
	return s.record(SentMessage{Kind: "text", Text: text})
}

// SendToolResult implements [live.Session].
func (s *Session) SendToolResult(callID, name string, result map[string]any) error {
	return s.record(SentMessage{Kind: "tool_result", CallID: callID, Name: name, Result: result})
}

// Events implements [live.Session].
func (s *Session) Events() <-chan live.Event { return s.events }

// Err implements [live.Session].
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.errVal
}

// Close implements [live.Session]. Idempotent.
func (s *Session) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.closeOnce.Do(func() { close(s.events) })
	return nil
}
