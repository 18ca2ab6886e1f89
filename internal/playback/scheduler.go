// Package playback schedules synthesised speech for gapless output.
//
// Audio arrives from the model in bursts much faster than real time. The
// [Scheduler] tracks a monotonic play cursor so each chunk is slotted directly
// behind the previous one, and reports when the last scheduled chunk has
// finished playing.
package playback

import (
	"fmt"
	"sync"
	"time"

	"github.com/novalabs/nova/pkg/audio"
)

// Sink consumes scheduled PCM for audible output. Implementations buffer
// internally; Write must not block for the duration of the audio.
type Sink interface {
	// Write queues one chunk of 24 kHz mono s16le PCM.
	Write(pcm []byte) error

	// Reset discards any queued audio immediately.
	Reset()

	// Close releases the output device.
	Close() error
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithNowFunc overrides the time source. Used in tests.
func WithNowFunc(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// WithAfterFunc overrides the timer used to detect chunk completion. The
// returned function cancels the timer. Used in tests.
func WithAfterFunc(after func(d time.Duration, f func()) (cancel func())) Option {
	return func(s *Scheduler) { s.after = after }
}

// Scheduler slots chunks behind a monotonic play cursor and tracks the set of
// chunks still audible. Safe for concurrent use.
type Scheduler struct {
	sink  Sink
	now   func() time.Time
	after func(d time.Duration, f func()) (cancel func())

	mu        sync.Mutex
	cursor    time.Time
	active    map[int]func()
	nextID    int
	gen       int
	onDrained func()
}

// New returns a Scheduler writing to sink.
func New(sink Sink, opts ...Option) *Scheduler {
	s := &Scheduler{
		sink:   sink,
		now:    time.Now,
		active: make(map[int]func()),
		after: func(d time.Duration, f func()) func() {
			t := time.AfterFunc(d, f)
			return func() { t.Stop() }
		},
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// OnDrained registers f to run whenever the active set becomes empty, i.e.
// the assistant has finished speaking. Must be set before the first Enqueue.
func (s *Scheduler) OnDrained(f func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onDrained = f
}

// Enqueue schedules one chunk of 24 kHz mono s16le PCM. The chunk starts at
// the later of now and the current cursor; the cursor advances by exactly the
// chunk's duration, so back-to-back chunks play gaplessly.
func (s *Scheduler) Enqueue(pcm []byte) error {
	dur := audio.PCM16Duration(pcm, audio.OutputRate)
	if dur == 0 {
		return nil
	}

	s.mu.Lock()
	now := s.now()
	start := s.cursor
	if start.Before(now) {
		start = now
	}
	end := start.Add(dur)
	s.cursor = end

	id := s.nextID
	s.nextID++
	gen := s.gen
	s.active[id] = s.after(end.Sub(now), func() { s.finish(gen, id) })
	s.mu.Unlock()

	if err := s.sink.Write(pcm); err != nil {
		return fmt.Errorf("playback: %w", err)
	}
	return nil
}

// finish removes one chunk from the active set. Timers from a superseded
// generation (cleared by Stop) are ignored.
func (s *Scheduler) finish(gen, id int) {
	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return
	}
	delete(s.active, id)
	drained := len(s.active) == 0
	f := s.onDrained
	s.mu.Unlock()

	if drained && f != nil {
		f()
	}
}

// Playing reports whether any scheduled chunk is still audible.
func (s *Scheduler) Playing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.active) > 0
}

// Stop cancels everything in flight: pending timers are stopped, the active
// set is cleared without firing OnDrained, the cursor is reset, and the sink
// is flushed. The next Enqueue starts a fresh utterance.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.gen++
	for _, cancel := range s.active {
		cancel()
	}
	s.active = make(map[int]func())
	s.cursor = time.Time{}
	s.mu.Unlock()

	s.sink.Reset()
}
