package audio

// Resample converts a block of float samples from srcRate to dstRate using
// nearest-sample selection: output sample i takes input sample
// floor(i * srcRate / dstRate). The output length is
// floor(len(samples) * dstRate / srcRate).
//
// Nearest-sample decimation is deliberately cheap — this is a control channel
// for a speech model, not a hi-fi path — and keeps the per-callback cost
// constant per sample with a single allocation.
//
// When srcRate == dstRate the input slice is returned unchanged (no copy).
// Empty input yields empty output. Non-positive rates return the input as-is.
func Resample(samples []float32, srcRate, dstRate int) []float32 {
	if srcRate <= 0 || dstRate <= 0 {
		return samples
	}
	if srcRate == dstRate || len(samples) == 0 {
		return samples
	}

	dstLen := int(int64(len(samples)) * int64(dstRate) / int64(srcRate))
	if dstLen == 0 {
		return nil
	}

	out := make([]float32, dstLen)
	ratio := float64(srcRate) / float64(dstRate)
	for i := range out {
		out[i] = samples[int(float64(i)*ratio)]
	}
	return out
}
