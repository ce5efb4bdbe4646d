// Canonical RIFF/WAVE framing for the renderer.
// The mixer knows the full data length before the first byte goes out, so
// the 44-byte header is emitted once up front instead of seeking back to
// patch sizes afterwards.
// See http://soundfile.sapp.org/doc/WaveFormat/ for format documentation.

package wav

import (
	"encoding/binary"
	"errors"
	"math"
)

const (
	// PCM identifies 16-bit integer samples, Float 32-bit IEEE float.
	PCM   = 1
	Float = 3

	// HeaderSize is the size of the canonical header in bytes.
	HeaderSize = 44
)

// ErrTooLarge reports sample data longer than the 32-bit data chunk size
// field can hold (more than 2^32-1 bytes).
var ErrTooLarge = errors.New("output exceeds WAV 4GB limit")

type Format struct {
	AudioFormat   uint16
	Channels      uint16
	SampleRate    uint32
	BitsPerSample uint16
}

// EncodeHeader renders the canonical header for dataLen bytes of sample
// data following it.
func EncodeHeader(f Format, dataLen uint64) ([]byte, error) {
	if dataLen > math.MaxUint32 {
		return nil, ErrTooLarge
	}

	blockAlign := f.Channels * f.BitsPerSample / 8
	byteRate := f.SampleRate * uint32(blockAlign)

	h := make([]byte, 0, HeaderSize)
	h = append(h, "RIFF"...)
	h = binary.LittleEndian.AppendUint32(h, 36+uint32(dataLen))
	h = append(h, "WAVE"...)
	h = append(h, "fmt "...)
	h = binary.LittleEndian.AppendUint32(h, 16)
	h = binary.LittleEndian.AppendUint16(h, f.AudioFormat)
	h = binary.LittleEndian.AppendUint16(h, f.Channels)
	h = binary.LittleEndian.AppendUint32(h, f.SampleRate)
	h = binary.LittleEndian.AppendUint32(h, byteRate)
	h = binary.LittleEndian.AppendUint16(h, blockAlign)
	h = binary.LittleEndian.AppendUint16(h, f.BitsPerSample)
	h = append(h, "data"...)
	h = binary.LittleEndian.AppendUint32(h, uint32(dataLen))
	return h, nil
}

// AppendInt16LE converts samples to PCM i16 little-endian bytes, rounding
// and clamping, and appends them to dst.
func AppendInt16LE(dst []byte, samples []float32) []byte {
	for _, s := range samples {
		v := math.Round(float64(s) * 32767)
		if v > 32767 {
			v = 32767
		} else if v < -32768 {
			v = -32768
		}
		dst = binary.LittleEndian.AppendUint16(dst, uint16(int16(v)))
	}
	return dst
}

// AppendFloat32LE appends samples as raw IEEE f32 little-endian bytes.
func AppendFloat32LE(dst []byte, samples []float32) []byte {
	for _, s := range samples {
		dst = binary.LittleEndian.AppendUint32(dst, math.Float32bits(s))
	}
	return dst
}
