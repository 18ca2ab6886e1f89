package audio_test

import (
	"math"
	"testing"

	"github.com/novalabs/nova/pkg/audio"
)

func TestResample_IdentityWhenRatesMatch(t *testing.T) {
	t.Parallel()
	in := []float32{0.1, -0.2, 0.3, -0.4}
	out := audio.Resample(in, 16000, 16000)
	if len(out) != len(in) {
		t.Fatalf("len = %d; want %d", len(out), len(in))
	}
	for i := range in {
		if out[i] != in[i] {
			t.Errorf("out[%d] = %v; want %v", i, out[i], in[i])
		}
	}
}

func TestResample_EmptyInput(t *testing.T) {
	t.Parallel()
	if out := audio.Resample(nil, 48000, 16000); len(out) != 0 {
		t.Errorf("resampling empty input produced %d samples", len(out))
	}
}

func TestResample_OutputLength(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		inLen   int
		src     int
		dst     int
		wantLen int
	}{
		{"48k to 16k block", 4096, 48000, 16000, 1365},
		{"44.1k to 16k block", 4096, 44100, 16000, 1486},
		{"24k to 16k block", 3000, 24000, 16000, 2000},
		{"upsample 16k to 24k", 1600, 16000, 24000, 2400},
		{"single sample down", 1, 48000, 16000, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			in := make([]float32, tt.inLen)
			got := audio.Resample(in, tt.src, tt.dst)
			if d := len(got) - tt.wantLen; d < -1 || d > 1 {
				t.Errorf("len = %d; want %d (±1)", len(got), tt.wantLen)
			}
		})
	}
}

func TestResample_PreservesConstantSignal(t *testing.T) {
	t.Parallel()
	in := make([]float32, 480)
	for i := range in {
		in[i] = 0.5
	}
	out := audio.Resample(in, 48000, 16000)
	for i, s := range out {
		if s != 0.5 {
			t.Fatalf("out[%d] = %v; want 0.5", i, s)
		}
	}
}

func TestResample_NearestSampleSelection(t *testing.T) {
	t.Parallel()

	// 3:1 decimation picks every third input sample starting at index 0.
	in := []float32{0, 1, 2, 3, 4, 5, 6, 7, 8}
	out := audio.Resample(in, 48000, 16000)
	want := []float32{0, 3, 6}
	if len(out) != len(want) {
		t.Fatalf("len = %d; want %d", len(out), len(want))
	}
	for i := range want {
		if out[i] != want[i] {
			t.Errorf("out[%d] = %v; want %v", i, out[i], want[i])
		}
	}
}

func TestResample_SineTracksFrequency(t *testing.T) {
	t.Parallel()

	// A 440 Hz sine at 48 kHz decimated to 16 kHz should stay within the
	// nearest-sample error bound of a 440 Hz sine generated at 16 kHz.
	const freq = 440.0
	in := make([]float32, 4800)
	for i := range in {
		in[i] = float32(math.Sin(2 * math.Pi * freq * float64(i) / 48000))
	}
	out := audio.Resample(in, 48000, 16000)

	// Nearest-sample selection can be off by up to one source sample, which
	// for a 440 Hz tone bounds the amplitude error well below 0.06.
	for i, s := range out {
		ref := math.Sin(2 * math.Pi * freq * float64(i) / 16000)
		if diff := math.Abs(float64(s) - ref); diff > 0.06 {
			t.Fatalf("sample %d diverges by %v", i, diff)
		}
	}
}
