// Package audio provides the pure audio-processing primitives of the nova
// voice pipeline: sample-rate conversion, float/PCM16 codec conversion, and
// the base64 transport codec used on the wire.
//
// All functions are allocation-bounded, free of I/O, and safe for concurrent
// use. They sit on the real-time capture path and must complete in small,
// predictable time per block.
package audio

import "time"

const (
	// TargetRate is the sample rate (Hz) the remote speech engine expects for
	// microphone input.
	TargetRate = 16000

	// OutputRate is the sample rate (Hz) of the audio the remote speech engine
	// synthesises.
	OutputRate = 24000

	// InputMIME tags outbound microphone chunks on the wire.
	InputMIME = "audio/pcm;rate=16000"
)

// PCM16Duration returns the play time of a little-endian 16-bit mono PCM byte
// sequence at the given rate.
func PCM16Duration(b []byte, rate int) time.Duration {
	if rate <= 0 {
		return 0
	}
	return time.Duration(len(b)/2) * time.Second / time.Duration(rate)
}
