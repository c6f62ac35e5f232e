package audio_test

import (
	"errors"
	"math"
	"testing"

	"github.com/nferro/voxloom/pkg/audio"
)

func TestNormalize_MonoCanonicalPassthrough(t *testing.T) {
	in := []float32{0.1, 0.2, 0.3, 0.4}
	out, err := audio.Normalize(in, audio.CanonicalRate, 1)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if len(out) != len(in) {
		t.Fatalf("length mismatch: got %d, want %d", len(out), len(in))
	}
	for i := range in {
		if out[i] != in[i] {
			t.Errorf("sample %d: got %f, want %f", i, out[i], in[i])
		}
	}
	// Input must not be aliased: mutating the output leaves the input alone.
	out[0] = -1
	if in[0] != 0.1 {
		t.Error("Normalize aliased the input buffer")
	}
}

func TestNormalize_StereoDownmix(t *testing.T) {
	// Two stereo frames: (0.2, 0.4) and (-0.2, -0.4).
	in := []float32{0.2, 0.4, -0.2, -0.4}
	out, err := audio.Normalize(in, audio.CanonicalRate, 2)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	want := []float32{0.3, -0.3}
	if len(out) != len(want) {
		t.Fatalf("length mismatch: got %d, want %d", len(out), len(want))
	}
	for i := range want {
		if math.Abs(float64(out[i]-want[i])) > 1e-6 {
			t.Errorf("sample %d: got %f, want %f", i, out[i], want[i])
		}
	}
}

func TestNormalize_InvalidRate(t *testing.T) {
	if _, err := audio.Normalize([]float32{0}, 0, 1); err == nil {
		t.Error("expected error for zero sample rate")
	}
	if _, err := audio.Normalize([]float32{0}, 16000, 0); err == nil {
		t.Error("expected error for zero channels")
	}
}

func TestResample_Upsample(t *testing.T) {
	in := []float32{0.0, 1.0}
	out := audio.Resample(in, 8000, 16000)
	if len(out) != 4 {
		t.Fatalf("expected 4 samples, got %d", len(out))
	}
	if out[0] != 0.0 {
		t.Errorf("first sample: got %f, want 0", out[0])
	}
	// Midpoint should be interpolated.
	if out[1] != 0.5 {
		t.Errorf("interpolated sample: got %f, want 0.5", out[1])
	}
}

func TestResample_Downsample(t *testing.T) {
	in := make([]float32, 480) // 10 ms at 48 kHz
	for i := range in {
		in[i] = float32(i) / 480
	}
	out := audio.Resample(in, 48000, 16000)
	if len(out) != 160 {
		t.Fatalf("expected 160 samples, got %d", len(out))
	}
}

func TestResample_SameRate(t *testing.T) {
	in := []float32{0.1, 0.2}
	out := audio.Resample(in, 16000, 16000)
	if len(out) != 2 || out[0] != 0.1 {
		t.Fatalf("same-rate resample changed data: %v", out)
	}
}

func TestWaveformDuration(t *testing.T) {
	w := make(audio.Waveform, audio.CanonicalRate) // exactly one second
	if got := w.Duration().Seconds(); got != 1.0 {
		t.Errorf("duration: got %fs, want 1s", got)
	}
}

func TestDecodeWAV_RoundTrip(t *testing.T) {
	pcm := make([]byte, 8) // 4 samples of silence-ish values
	pcm[0], pcm[1] = 0x00, 0x10
	pcm[2], pcm[3] = 0x00, 0xF0
	wav := audio.EncodeWAV(pcm, 44100, 2)

	samples, rate, channels, err := audio.DecodeWAV(wav)
	if err != nil {
		t.Fatalf("DecodeWAV: %v", err)
	}
	if rate != 44100 || channels != 2 {
		t.Errorf("got %d Hz / %d ch, want 44100 Hz / 2 ch", rate, channels)
	}
	if len(samples) != 4 {
		t.Fatalf("expected 4 samples, got %d", len(samples))
	}
}

func TestDecodeWAV_Malformed(t *testing.T) {
	cases := map[string][]byte{
		"empty":       nil,
		"too short":   []byte("RIFF"),
		"not riff":    []byte("OggS0000000000000000000000000000000000000000"),
		"no data":     append([]byte("RIFF\x04\x00\x00\x00WAVE"), make([]byte, 8)...),
		"bad overrun": append(audio.EncodeWAV(make([]byte, 4), 16000, 1)[:20], 0xFF, 0xFF, 0xFF, 0x7F),
	}
	for name, data := range cases {
		if _, _, _, err := audio.DecodeWAV(data); err == nil {
			t.Errorf("%s: expected decode error", name)
		} else if !errors.Is(err, audio.ErrBadFormat) {
			t.Errorf("%s: error %v does not wrap ErrBadFormat", name, err)
		}
	}
}

func TestDecodeAndNormalize(t *testing.T) {
	// 100 stereo int16 frames at 48 kHz.
	pcm := make([]byte, 100*4)
	wav := audio.EncodeWAV(pcm, 48000, 2)

	w, err := audio.DecodeAndNormalize(wav)
	if err != nil {
		t.Fatalf("DecodeAndNormalize: %v", err)
	}
	// 100 frames at 48 kHz → 33 samples at 16 kHz.
	if len(w) != 33 {
		t.Errorf("expected 33 canonical samples, got %d", len(w))
	}
}

func TestEncodeWaveformWAV_Clamps(t *testing.T) {
	w := audio.Waveform{2.0, -2.0}
	data := audio.EncodeWaveformWAV(w)
	samples, rate, channels, err := audio.DecodeWAV(data)
	if err != nil {
		t.Fatalf("DecodeWAV: %v", err)
	}
	if rate != audio.CanonicalRate || channels != 1 {
		t.Errorf("got %d Hz / %d ch, want canonical mono", rate, channels)
	}
	if samples[0] < 0.99 || samples[1] > -0.99 {
		t.Errorf("expected clamped full-scale samples, got %v", samples)
	}
}
