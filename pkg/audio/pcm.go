package audio

import "math"

// FloatsToPCM16 converts normalised float samples to little-endian 16-bit
// signed PCM bytes. Each sample is clamped to [-1, 1], scaled by 32768, and
// rounded to nearest; the single overflowing code for exactly +1.0 is clamped
// to 32767. The symmetric scale keeps the pair with [PCM16ToFloats] (which
// divides by 32768) within ±1/32768 per sample on a round trip.
func FloatsToPCM16(samples []float32) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		if s > 1 {
			s = 1
		} else if s < -1 {
			s = -1
		}
		v := int32(math.Round(float64(s) * 32768))
		if v > 32767 {
			v = 32767
		}
		out[i*2] = byte(v)
		out[i*2+1] = byte(v >> 8)
	}
	return out
}

// PCM16ToFloats converts little-endian 16-bit signed PCM bytes to normalised
// float samples by dividing each sample by 32768. A trailing odd byte is
// ignored.
func PCM16ToFloats(b []byte) []float32 {
	n := len(b) / 2
	out := make([]float32, n)
	for i := range n {
		v := int16(b[i*2]) | int16(b[i*2+1])<<8
		out[i] = float32(v) / 32768
	}
	return out
}

// Level returns the RMS level of the block in [0, 1]. Used by the capture
// pipeline's metering tap; an empty block has level 0.
func Level(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(len(samples)))
}
