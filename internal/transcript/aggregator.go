// Package transcript turns streamed transcript fragments into finalized
// conversation records.
//
// Providers stream recognition results in small deltas, often mid-word. The
// [Aggregator] buffers those deltas per speaker and only produces
// [memory.TranscriptRecord] values at turn boundaries, so downstream storage
// never sees partial text.
package transcript

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/novalabs/nova/pkg/live"
	"github.com/novalabs/nova/pkg/memory"
)

// Aggregator accumulates transcript deltas for the turn in flight.
//
// Not safe for concurrent use: it is owned by the session event loop, which
// already serialises all inbound events.
type Aggregator struct {
	user      strings.Builder
	assistant strings.Builder

	now   func() time.Time
	newID func() string
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithClock overrides the timestamp source. Used in tests.
func WithClock(now func() time.Time) Option {
	return func(a *Aggregator) { a.now = now }
}

// WithIDFunc overrides the record ID generator. Used in tests.
func WithIDFunc(newID func() string) Option {
	return func(a *Aggregator) { a.newID = newID }
}

// New returns an empty Aggregator.
func New(opts ...Option) *Aggregator {
	a := &Aggregator{
		now:   time.Now,
		newID: uuid.NewString,
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Add appends a streamed fragment to the in-flight turn of its speaker.
func (a *Aggregator) Add(delta live.TranscriptDelta) {
	switch delta.Speaker {
	case memory.SpeakerAssistant:
		a.assistant.WriteString(delta.Text)
	default:
		a.user.WriteString(delta.Text)
	}
}

// Pending reports whether any un-finalized text is buffered.
func (a *Aggregator) Pending() bool {
	return a.user.Len() > 0 || a.assistant.Len() > 0
}

// Finalize closes the turn in flight and returns its records, user first.
// Speakers with no buffered text produce no record. sources is attached to
// the assistant record only.
func (a *Aggregator) Finalize(sources []memory.GroundingSource) []memory.TranscriptRecord {
	var out []memory.TranscriptRecord
	ts := a.now()

	if a.user.Len() > 0 {
		out = append(out, memory.TranscriptRecord{
			ID:        a.newID(),
			Speaker:   memory.SpeakerUser,
			Text:      a.user.String(),
			Timestamp: ts,
		})
	}
	if a.assistant.Len() > 0 {
		out = append(out, memory.TranscriptRecord{
			ID:        a.newID(),
			Speaker:   memory.SpeakerAssistant,
			Text:      a.assistant.String(),
			Timestamp: ts,
			Sources:   sources,
		})
	}

	a.user.Reset()
	a.assistant.Reset()
	return out
}
