package capture

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync"

	"github.com/gen2brain/malgo"
)

var _ Device = (*MalgoDevice)(nil)

// captureRate is the native rate requested from the OS. Blocks are resampled
// down to the model rate by the pipeline.
const captureRate = 48000

// MalgoDevice captures mono float32 audio from the default input device.
type MalgoDevice struct {
	ctx *malgo.AllocatedContext

	mu     sync.Mutex
	device *malgo.Device
}

// NewMalgoDevice initialises the audio backend. The capture stream itself is
// opened on Start, so a missing microphone surfaces there.
func NewMalgoDevice() (*MalgoDevice, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("capture: init context: %w", err)
	}
	return &MalgoDevice{ctx: ctx}, nil
}

// Start implements [Device].
func (d *MalgoDevice) Start(cb func(samples []float32, rate int)) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.device != nil {
		return fmt.Errorf("capture: device already started")
	}

	cfg := malgo.DefaultDeviceConfig(malgo.Capture)
	cfg.Capture.Format = malgo.FormatF32
	cfg.Capture.Channels = 1
	cfg.SampleRate = captureRate

	callbacks := malgo.DeviceCallbacks{
		Data: func(_, data []byte, frameCount uint32) {
			cb(decodeF32(data, frameCount), captureRate)
		},
	}

	device, err := malgo.InitDevice(d.ctx.Context, cfg, callbacks)
	if err != nil {
		return fmt.Errorf("capture: init device: %w", err)
	}
	if err := device.Start(); err != nil {
		device.Uninit()
		return fmt.Errorf("capture: start device: %w", err)
	}
	d.device = device
	return nil
}

// Stop implements [Device].
func (d *MalgoDevice) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.device == nil {
		return nil
	}
	d.device.Uninit()
	d.device = nil
	return nil
}

// Close implements [Device].
func (d *MalgoDevice) Close() error {
	if err := d.Stop(); err != nil {
		return err
	}
	d.ctx.Uninit()
	d.ctx.Free()
	return nil
}

// decodeF32 converts a little-endian float32 byte stream into samples.
func decodeF32(data []byte, frameCount uint32) []float32 {
	n := int(frameCount)
	if limit := len(data) / 4; n > limit {
		n = limit
	}
	out := make([]float32, n)
	for i := range n {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return out
}
