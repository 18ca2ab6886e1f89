package capture

import "sync/atomic"

// Frame is one encoded camera image awaiting transmission.
type Frame struct {
	MIMEType string
	Data     []byte
}

// FrameSlot holds at most one pending visual frame. A new frame overwrites
// the old one: when the consumer is slower than the camera, only the freshest
// frame is worth sending. Safe for concurrent use.
type FrameSlot struct {
	v atomic.Pointer[Frame]
}

// Put stores f, replacing any frame already pending.
func (s *FrameSlot) Put(f Frame) {
	s.v.Store(&f)
}

// Take removes and returns the pending frame, if any. Each stored frame is
// returned at most once.
func (s *FrameSlot) Take() (Frame, bool) {
	f := s.v.Swap(nil)
	if f == nil {
		return Frame{}, false
	}
	return *f, true
}
