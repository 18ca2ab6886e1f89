package playback

import (
	"fmt"
	"sync"

	"github.com/gen2brain/malgo"

	"github.com/novalabs/nova/pkg/audio"
)

var _ Sink = (*DeviceSink)(nil)

// DeviceSink plays PCM through the default output device via malgo. The
// device pulls from an internal buffer; underruns play silence.
type DeviceSink struct {
	ctx    *malgo.AllocatedContext
	device *malgo.Device

	mu  sync.Mutex
	buf []byte
}

// NewDeviceSink opens the default playback device at 24 kHz mono s16le and
// starts it.
func NewDeviceSink() (*DeviceSink, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("playback: init context: %w", err)
	}

	s := &DeviceSink{ctx: ctx}

	cfg := malgo.DefaultDeviceConfig(malgo.Playback)
	cfg.Playback.Format = malgo.FormatS16
	cfg.Playback.Channels = 1
	cfg.SampleRate = audio.OutputRate

	callbacks := malgo.DeviceCallbacks{
		Data: func(out, _ []byte, _ uint32) {
			s.fill(out)
		},
	}

	device, err := malgo.InitDevice(ctx.Context, cfg, callbacks)
	if err != nil {
		ctx.Uninit()
		ctx.Free()
		return nil, fmt.Errorf("playback: init device: %w", err)
	}
	if err := device.Start(); err != nil {
		device.Uninit()
		ctx.Uninit()
		ctx.Free()
		return nil, fmt.Errorf("playback: start device: %w", err)
	}

	s.device = device
	return s, nil
}

// fill copies buffered PCM into the device's output block, zero-filling any
// remainder.
func (s *DeviceSink) fill(out []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := copy(out, s.buf)
	s.buf = s.buf[n:]
	for i := n; i < len(out); i++ {
		out[i] = 0
	}
}

// Write implements [Sink].
func (s *DeviceSink) Write(pcm []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buf = append(s.buf, pcm...)
	return nil
}

// Reset implements [Sink].
func (s *DeviceSink) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buf = nil
}

// Close implements [Sink].
func (s *DeviceSink) Close() error {
	s.device.Uninit()
	s.ctx.Uninit()
	s.ctx.Free()
	return nil
}
