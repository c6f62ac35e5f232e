// Package audio decodes captured utterance audio and normalizes it into the
// canonical waveform consumed by the local transcriber: mono float32 samples
// at 16 kHz.
//
// Capture hardware delivers WAV data at arbitrary sample rates and channel
// counts. [Normalize] downmixes multi-channel input by averaging and resamples
// to [CanonicalRate] with linear interpolation. The original buffer is never
// modified; a failed decode is reported as an error wrapping [ErrBadFormat]
// so callers can distinguish malformed audio from I/O failures.
package audio

import (
	"fmt"
	"time"
)

// CanonicalRate is the sample rate of a normalized [Waveform] in Hz.
const CanonicalRate = 16000

// Waveform is a mono float32 sample sequence at [CanonicalRate], with sample
// values in [-1.0, 1.0].
type Waveform []float32

// Duration returns the playback length of the waveform.
func (w Waveform) Duration() time.Duration {
	return time.Duration(len(w)) * time.Second / CanonicalRate
}

// Normalize converts interleaved float32 samples at the given source rate and
// channel count into a canonical [Waveform]. Multi-channel input is downmixed
// by averaging all channels per frame; input at a rate other than
// [CanonicalRate] is resampled with linear interpolation. When the input is
// already mono 16 kHz it is copied, not aliased, so the caller's buffer stays
// untouched either way.
func Normalize(samples []float32, sampleRate, channels int) (Waveform, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("audio: sample rate must be positive, got %d", sampleRate)
	}
	if channels <= 0 {
		return nil, fmt.Errorf("audio: channel count must be positive, got %d", channels)
	}

	mono := downmix(samples, channels)
	if sampleRate == CanonicalRate {
		out := make([]float32, len(mono))
		copy(out, mono)
		return Waveform(out), nil
	}
	return Waveform(Resample(mono, sampleRate, CanonicalRate)), nil
}

// DecodeAndNormalize decodes WAV data and normalizes it in one step. It is
// the entry point used by the reconciliation pipeline; any decode failure
// wraps [ErrBadFormat].
func DecodeAndNormalize(data []byte) (Waveform, error) {
	samples, rate, channels, err := DecodeWAV(data)
	if err != nil {
		return nil, err
	}
	return Normalize(samples, rate, channels)
}

// downmix averages interleaved multi-channel samples into mono. For channels
// <= 1 the input is returned unchanged (no copy; Normalize copies afterwards
// when needed).
func downmix(samples []float32, channels int) []float32 {
	if channels <= 1 {
		return samples
	}
	frames := len(samples) / channels
	mono := make([]float32, frames)
	for i := range frames {
		var sum float32
		for ch := range channels {
			sum += samples[i*channels+ch]
		}
		mono[i] = sum / float32(channels)
	}
	return mono
}

// Resample converts mono float32 samples from srcRate to dstRate using linear
// interpolation. If srcRate == dstRate or the input is shorter than two
// samples, the input is returned unchanged.
func Resample(samples []float32, srcRate, dstRate int) []float32 {
	if srcRate <= 0 || dstRate <= 0 {
		return samples
	}
	if srcRate == dstRate || len(samples) < 2 {
		return samples
	}
	dstLen := int(int64(len(samples)) * int64(dstRate) / int64(srcRate))
	if dstLen == 0 {
		return nil
	}

	out := make([]float32, dstLen)
	ratio := float64(srcRate) / float64(dstRate)

	for i := range dstLen {
		srcPos := float64(i) * ratio
		srcIdx := int(srcPos)
		frac := float32(srcPos - float64(srcIdx))

		s0 := samples[srcIdx]
		s1 := s0
		if srcIdx+1 < len(samples) {
			s1 = samples[srcIdx+1]
		}
		out[i] = s0*(1-frac) + s1*frac
	}
	return out
}
