package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// ErrBadFormat is returned (wrapped) when audio bytes cannot be parsed as a
// RIFF/WAV container with a supported sample format. The reconciliation
// pipeline treats it as "no input": the exchange is abandoned without a
// transcript.
var ErrBadFormat = errors.New("audio: malformed or unsupported WAV data")

const (
	wavFormatPCM       = 1
	wavFormatIEEEFloat = 3

	wavHeaderSize = 44
)

// DecodeWAV parses a RIFF/WAV container and returns its interleaved samples
// as float32 in [-1.0, 1.0] together with the declared sample rate and
// channel count. 16-bit PCM and 32-bit IEEE float sample formats are
// supported; anything else fails with an error wrapping [ErrBadFormat].
//
// The fmt and data chunks may appear after other chunks (LIST, fact, …);
// unknown chunks are skipped.
func DecodeWAV(data []byte) (samples []float32, sampleRate, channels int, err error) {
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return nil, 0, 0, fmt.Errorf("%w: missing RIFF/WAVE header", ErrBadFormat)
	}

	var (
		format        uint16
		bitsPerSample uint16
		haveFmt       bool
		pcm           []byte
	)

	// Walk the chunk list after the 12-byte RIFF descriptor.
	off := 12
	for off+8 <= len(data) {
		id := string(data[off : off+4])
		size := int(binary.LittleEndian.Uint32(data[off+4 : off+8]))
		body := off + 8
		if size < 0 || body+size > len(data) {
			return nil, 0, 0, fmt.Errorf("%w: chunk %q overruns buffer", ErrBadFormat, id)
		}

		switch id {
		case "fmt ":
			if size < 16 {
				return nil, 0, 0, fmt.Errorf("%w: fmt chunk too short (%d bytes)", ErrBadFormat, size)
			}
			format = binary.LittleEndian.Uint16(data[body : body+2])
			channels = int(binary.LittleEndian.Uint16(data[body+2 : body+4]))
			sampleRate = int(binary.LittleEndian.Uint32(data[body+4 : body+8]))
			bitsPerSample = binary.LittleEndian.Uint16(data[body+14 : body+16])
			haveFmt = true
		case "data":
			pcm = data[body : body+size]
		}

		// Chunks are word-aligned; odd sizes carry a pad byte.
		off = body + size + size%2
	}

	if !haveFmt || pcm == nil {
		return nil, 0, 0, fmt.Errorf("%w: missing fmt or data chunk", ErrBadFormat)
	}
	if channels <= 0 || sampleRate <= 0 {
		return nil, 0, 0, fmt.Errorf("%w: fmt declares %d channels at %d Hz", ErrBadFormat, channels, sampleRate)
	}

	switch {
	case format == wavFormatPCM && bitsPerSample == 16:
		n := len(pcm) / 2
		samples = make([]float32, n)
		for i := range n {
			s := int16(binary.LittleEndian.Uint16(pcm[i*2 : i*2+2]))
			samples[i] = float32(s) / 32768.0
		}
	case format == wavFormatIEEEFloat && bitsPerSample == 32:
		n := len(pcm) / 4
		samples = make([]float32, n)
		for i := range n {
			bits := binary.LittleEndian.Uint32(pcm[i*4 : i*4+4])
			samples[i] = math.Float32frombits(bits)
		}
	default:
		return nil, 0, 0, fmt.Errorf("%w: format %d with %d bits per sample", ErrBadFormat, format, bitsPerSample)
	}

	return samples, sampleRate, channels, nil
}

// EncodeWAV wraps raw 16-bit signed little-endian PCM data in a standard
// RIFF/WAV container.
func EncodeWAV(pcm []byte, sampleRate, channels int) []byte {
	const bps = 16
	byteRate := sampleRate * channels * bps / 8
	blockAlign := channels * bps / 8
	dataSize := len(pcm)

	buf := make([]byte, wavHeaderSize+dataSize)

	// RIFF chunk descriptor
	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(36+dataSize)) // file size − 8
	copy(buf[8:12], "WAVE")

	// fmt sub-chunk
	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16) // sub-chunk size (PCM)
	binary.LittleEndian.PutUint16(buf[20:22], wavFormatPCM)
	binary.LittleEndian.PutUint16(buf[22:24], uint16(channels))
	binary.LittleEndian.PutUint32(buf[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(buf[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(buf[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(buf[34:36], bps)

	// data sub-chunk
	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(dataSize))
	copy(buf[44:], pcm)

	return buf
}

// EncodeWaveformWAV converts a canonical waveform back into a 16-bit PCM WAV
// container at [CanonicalRate]. Samples outside [-1.0, 1.0] are clamped.
func EncodeWaveformWAV(w Waveform) []byte {
	pcm := make([]byte, len(w)*2)
	for i, s := range w {
		if s > 1 {
			s = 1
		} else if s < -1 {
			s = -1
		}
		v := int16(s * 32767)
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(v))
	}
	return EncodeWAV(pcm, CanonicalRate, 1)
}
