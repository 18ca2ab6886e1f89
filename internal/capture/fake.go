package capture

import (
	"fmt"
	"sync"
)

var _ Device = (*FakeDevice)(nil)

// FakeDevice is an in-process [Device] for tests. Sample blocks are fed
// manually through [FakeDevice.Feed].
type FakeDevice struct {
	// StartErr, when non-nil, is returned by Start to simulate a denied or
	// missing microphone.
	StartErr error

	mu      sync.Mutex
	cb      func(samples []float32, rate int)
	started bool
	closed  bool
}

// Start implements [Device].
func (f *FakeDevice) Start(cb func(samples []float32, rate int)) error {
	if f.StartErr != nil {
		return f.StartErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return fmt.Errorf("fake device closed")
	}
	f.cb = cb
	f.started = true
	return nil
}

// Stop implements [Device].
func (f *FakeDevice) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started = false
	f.cb = nil
	return nil
}

// Close implements [Device].
func (f *FakeDevice) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	f.started = false
	f.cb = nil
	return nil
}

// Started reports whether the device is currently delivering samples.
func (f *FakeDevice) Started() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.started
}

// Feed delivers one block of native-rate samples as the OS capture thread
// would. Blocks fed while stopped are discarded.
func (f *FakeDevice) Feed(samples []float32, rate int) {
	f.mu.Lock()
	cb := f.cb
	f.mu.Unlock()
	if cb != nil {
		cb(samples, rate)
	}
}
