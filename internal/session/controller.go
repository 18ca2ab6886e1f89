package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/novalabs/nova/internal/capture"
	"github.com/novalabs/nova/internal/observe"
	"github.com/novalabs/nova/internal/playback"
	"github.com/novalabs/nova/internal/tools"
	"github.com/novalabs/nova/internal/transcript"
	"github.com/novalabs/nova/pkg/live"
	"github.com/novalabs/nova/pkg/memory"
)

// ControllerOption configures a Controller.
type ControllerOption func(*Controller)

// WithLogger sets the controller logger. Defaults to slog.Default.
func WithLogger(logger *slog.Logger) ControllerOption {
	return func(c *Controller) { c.logger = logger }
}

// WithStore enables transcript persistence. Without a store, finalized turns
// are dropped after logging.
func WithStore(store memory.TranscriptStore) ControllerOption {
	return func(c *Controller) { c.store = store }
}

// WithLevelHandler forwards per-block microphone RMS levels, e.g. for a UI
// meter.
func WithLevelHandler(f func(level float64)) ControllerOption {
	return func(c *Controller) { c.levelHandler = f }
}

// WithStateHandler registers f to run on every state change, in transition
// order.
func WithStateHandler(f func(State)) ControllerOption {
	return func(c *Controller) { c.stateHandler = f }
}

// WithErrorHandler registers f to receive the terminal error of a session
// that ended abnormally. Defaults to logging.
func WithErrorHandler(f func(error)) ControllerOption {
	return func(c *Controller) { c.errHandler = f }
}

// Controller wires one conversation together: it opens the transport, runs
// the capture pipeline into it, schedules inbound speech for playback, routes
// tool calls, persists finalized transcripts, and drives the [Machine]
// through it all.
//
// All inbound session events are consumed by a single goroutine, so event
// handling needs no further synchronisation. Safe for concurrent use by
// callers.
type Controller struct {
	provider live.Provider
	cfg      live.SessionConfig
	pipeline *capture.Pipeline
	sched    *playback.Scheduler
	registry *tools.Registry
	machine  *Machine

	store        memory.TranscriptStore
	metrics      *observe.Metrics
	logger       *slog.Logger
	levelHandler func(float64)
	stateHandler func(State)
	errHandler   func(error)

	frames capture.FrameSlot

	// playbackDone carries at most one pending drain notification; the event
	// loop coalesces the rest.
	playbackDone chan struct{}

	mu       sync.Mutex
	sess     live.Session
	stopCh   chan struct{}
	stopOnce *sync.Once
	done     chan struct{}
}

// NewController assembles a controller over the given transport, microphone
// and playback scheduler. The scheduler must not have been used yet: the
// controller claims its drain notification.
func NewController(provider live.Provider, cfg live.SessionConfig, mic capture.Device, sched *playback.Scheduler, registry *tools.Registry, opts ...ControllerOption) *Controller {
	c := &Controller{
		provider:     provider,
		cfg:          cfg,
		sched:        sched,
		registry:     registry,
		machine:      NewMachine(),
		metrics:      observe.DefaultMetrics(),
		logger:       slog.Default(),
		playbackDone: make(chan struct{}, 1),
	}
	for _, o := range opts {
		o(c)
	}
	if c.errHandler == nil {
		c.errHandler = func(err error) { c.logger.Error("session ended", "error", err) }
	}

	pipelineOpts := []capture.Option{capture.WithChunkHandler(c.handleChunk)}
	if c.levelHandler != nil {
		pipelineOpts = append(pipelineOpts, capture.WithLevelHandler(c.levelHandler))
	}
	c.pipeline = capture.NewPipeline(mic, pipelineOpts...)

	c.machine.OnChange(func(s State) {
		c.metrics.RecordTransition(context.Background(), s.String())
		if c.stateHandler != nil {
			c.stateHandler(s)
		}
	})
	sched.OnDrained(func() {
		select {
		case c.playbackDone <- struct{}{}:
		default:
		}
	})
	return c
}

// State returns the current session state.
func (c *Controller) State() State {
	return c.machine.State()
}

// Start opens a session: transport first, then the microphone. On success the
// controller is Listening and the event loop is running. Both failure modes
// leave the controller Idle with nothing to clean up.
func (c *Controller) Start(ctx context.Context) error {
	if !c.machine.Apply(EventStartRequested) {
		return fmt.Errorf("session: already active")
	}

	cfg := c.cfg
	if !cfg.SearchGrounding && c.registry != nil {
		cfg.Tools = c.registry.Definitions()
	}

	sess, err := c.provider.Connect(ctx, cfg)
	if err != nil {
		c.machine.Apply(EventOpenFailed)
		return &TransportOpenError{Err: err}
	}
	if err := c.pipeline.Start(); err != nil {
		sess.Close()
		c.machine.Apply(EventOpenFailed)
		return &DeviceError{Err: err}
	}

	c.mu.Lock()
	c.sess = sess
	c.stopCh = make(chan struct{})
	c.stopOnce = &sync.Once{}
	c.done = make(chan struct{})
	stopCh, done := c.stopCh, c.done
	c.mu.Unlock()

	c.metrics.ActiveSessions.Add(ctx, 1)
	c.machine.Apply(EventConnected)
	go c.run(ctx, sess, stopCh, done)
	return nil
}

// Stop ends the session and blocks until teardown completes. Idempotent; a
// no-op when no session is active.
func (c *Controller) Stop() {
	c.mu.Lock()
	stopOnce, stopCh, done := c.stopOnce, c.stopCh, c.done
	c.mu.Unlock()
	if stopCh == nil {
		return
	}
	stopOnce.Do(func() { close(stopCh) })
	<-done
}

// SubmitText sends a typed user message into the active session. Typed turns
// have no input transcription, so the user line is recorded right away.
func (c *Controller) SubmitText(ctx context.Context, text string) error {
	c.mu.Lock()
	sess := c.sess
	c.mu.Unlock()
	if sess == nil {
		return fmt.Errorf("session: not active")
	}
	if err := sess.SendText(text); err != nil {
		return err
	}
	c.machine.Apply(EventTextSubmitted)
	c.persist(ctx, []memory.TranscriptRecord{{
		ID:        uuid.NewString(),
		Speaker:   memory.SpeakerUser,
		Text:      text,
		Timestamp: time.Now(),
	}})
	return nil
}

// SubmitFrame offers a camera frame for multimodal context. Only the newest
// un-sent frame is kept; it rides along with the next microphone chunk.
func (c *Controller) SubmitFrame(f capture.Frame) {
	c.frames.Put(f)
}

// handleChunk is the capture pipeline consumer: one encoded microphone chunk
// per full block, with any pending visual frame piggybacked after it.
func (c *Controller) handleChunk(pcm []byte) {
	c.mu.Lock()
	sess := c.sess
	c.mu.Unlock()
	if sess == nil {
		return
	}
	if err := sess.SendAudio(pcm); err != nil {
		c.logger.Warn("drop microphone chunk", "error", err)
		return
	}
	c.metrics.CaptureChunks.Add(context.Background(), 1)
	if f, ok := c.frames.Take(); ok {
		if err := sess.SendImage(f.MIMEType, f.Data); err != nil {
			c.logger.Warn("drop visual frame", "error", err)
		}
	}
}

// run is the single consumer of the session's inbound events. It exits on
// user stop or when the transport closes the event stream, then tears
// everything down in order: microphone, playback, transport, transcripts.
func (c *Controller) run(ctx context.Context, sess live.Session, stopCh <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	agg := transcript.New()
	var fatal error

loop:
	for {
		select {
		case <-stopCh:
			break loop
		case <-c.playbackDone:
			c.machine.Apply(EventPlaybackDrained)
		case ev, ok := <-sess.Events():
			if !ok {
				if err := sess.Err(); err != nil {
					fatal = &TransportError{Err: err}
				}
				break loop
			}
			c.handleEvent(ctx, sess, agg, ev)
		}
	}

	if err := c.pipeline.Stop(); err != nil {
		c.logger.Warn("stop capture", "error", err)
	}
	c.sched.Stop()
	if err := sess.Close(); err != nil {
		c.logger.Warn("close session", "error", err)
	}

	if agg.Pending() {
		c.persist(ctx, agg.Finalize(nil))
	}

	c.mu.Lock()
	c.sess = nil
	c.stopCh = nil
	c.stopOnce = nil
	c.done = nil
	c.mu.Unlock()

	c.metrics.ActiveSessions.Add(context.Background(), -1)

	if fatal != nil {
		c.machine.Apply(EventFatalError)
		c.errHandler(fatal)
	}
	c.machine.Apply(EventTeardownComplete)
}

func (c *Controller) handleEvent(ctx context.Context, sess live.Session, agg *transcript.Aggregator, ev live.Event) {
	switch ev := ev.(type) {
	case live.AudioDelta:
		c.metrics.InboundAudio.Add(ctx, 1)
		c.machine.Apply(EventAudioDelta)
		if err := c.sched.Enqueue(ev.PCM); err != nil {
			c.logger.Warn("drop audio delta", "error", err)
		}

	case live.TranscriptDelta:
		agg.Add(ev)
		c.machine.Apply(EventTranscriptDelta)

	case live.Interrupted:
		c.sched.Stop()
		c.machine.Apply(EventPlaybackDrained)

	case live.TurnComplete:
		c.persist(ctx, agg.Finalize(ev.Sources))

	case live.ToolCall:
		// Tools run off the event loop so a slow handler cannot stall
		// inbound audio. The conversation state is unaffected.
		go func() {
			result := map[string]any{"error": "no tools registered"}
			if c.registry != nil {
				result = c.registry.Dispatch(ctx, ev)
			}
			if msg, ok := result["error"].(string); ok {
				c.logger.Warn("tool answered with error payload",
					"error", &ToolError{Tool: ev.Name, Err: errors.New(msg)})
			}
			if err := sess.SendToolResult(ev.ID, ev.Name, result); err != nil {
				c.logger.Warn("send tool result", "tool", ev.Name, "error", err)
			}
		}()
	}
}

func (c *Controller) persist(ctx context.Context, records []memory.TranscriptRecord) {
	for _, rec := range records {
		c.logger.Info("turn finalized", "speaker", rec.Speaker, "chars", len(rec.Text))
		c.metrics.RecordTurn(ctx, string(rec.Speaker))
		if c.store == nil {
			continue
		}
		if err := c.store.AppendRecord(ctx, rec); err != nil {
			c.logger.Error("persist transcript", "error", err)
		}
	}
}
