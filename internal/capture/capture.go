// Package capture runs the microphone input pipeline: fixed-size blocks of
// native-rate samples are levelled, resampled to the model's 16 kHz input
// rate, and encoded to s16le PCM chunks ready for the wire.
package capture

import (
	"fmt"
	"sync"

	"github.com/novalabs/nova/pkg/audio"
)

// blockSize is the number of native-rate samples processed per chunk.
const blockSize = 4096

// Device is a microphone producing normalised float samples at its native
// rate. Implementations invoke the callback from their own capture thread.
type Device interface {
	// Start opens the stream and begins delivering sample blocks to cb.
	Start(cb func(samples []float32, rate int)) error

	// Stop halts delivery. The device may be started again.
	Stop() error

	// Close releases the device.
	Close() error
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithChunkHandler sets the consumer of encoded 16 kHz PCM chunks.
func WithChunkHandler(f func(pcm []byte)) Option {
	return func(p *Pipeline) { p.onChunk = f }
}

// WithLevelHandler sets the consumer of per-block RMS input levels.
func WithLevelHandler(f func(level float64)) Option {
	return func(p *Pipeline) { p.onLevel = f }
}

// Pipeline accumulates device samples into fixed blocks and converts each
// block for transport. Safe for concurrent use.
type Pipeline struct {
	device  Device
	onChunk func([]byte)
	onLevel func(float64)

	mu      sync.Mutex
	buf     []float32
	started bool
}

// NewPipeline returns a pipeline reading from device.
func NewPipeline(device Device, opts ...Option) *Pipeline {
	p := &Pipeline{device: device}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Start opens the device. A device failure is reported before any chunk is
// produced.
func (p *Pipeline) Start() error {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return nil
	}
	p.started = true
	p.buf = nil
	p.mu.Unlock()

	if err := p.device.Start(p.handleSamples); err != nil {
		p.mu.Lock()
		p.started = false
		p.mu.Unlock()
		return fmt.Errorf("capture: start device: %w", err)
	}
	return nil
}

// Stop halts capture and discards any partial block. Idempotent.
func (p *Pipeline) Stop() error {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return nil
	}
	p.started = false
	p.buf = nil
	p.mu.Unlock()

	if err := p.device.Stop(); err != nil {
		return fmt.Errorf("capture: stop device: %w", err)
	}
	return nil
}

// handleSamples buffers incoming samples and emits one chunk per full block.
func (p *Pipeline) handleSamples(samples []float32, rate int) {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}
	p.buf = append(p.buf, samples...)

	var blocks [][]float32
	for len(p.buf) >= blockSize {
		block := make([]float32, blockSize)
		copy(block, p.buf[:blockSize])
		p.buf = p.buf[blockSize:]
		blocks = append(blocks, block)
	}
	onChunk, onLevel := p.onChunk, p.onLevel
	p.mu.Unlock()

	for _, block := range blocks {
		if onLevel != nil {
			onLevel(audio.Level(block))
		}
		if onChunk != nil {
			resampled := audio.Resample(block, rate, audio.TargetRate)
			onChunk(audio.FloatsToPCM16(resampled))
		}
	}
}
