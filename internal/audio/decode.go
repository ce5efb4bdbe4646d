// Package audio decodes keysound blobs into the renderer's mix format:
// interleaved stereo f32 at 44.1 kHz. Containers are sniffed from the bytes
// themselves since chart references routinely lie about the extension.
package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	mp3 "github.com/hajimehoshi/go-mp3"
	"github.com/jfreymuth/oggvorbis"
	"github.com/mewkiz/flac"
)

const (
	// MixRate and MixChannels match the renderer's fixed mix target.
	MixRate     = 44100
	MixChannels = 2
)

var ErrUnknownFormat = errors.New("unrecognized audio format")

// Decode turns an encoded audio blob into interleaved stereo f32 at the mix
// rate, returning the samples and frame count.
func Decode(data []byte) ([]float32, int, error) {
	switch {
	case isRIFFWave(data):
		return decodeWave(data)
	case len(data) >= 4 && string(data[:4]) == "OggS":
		return decodeOgg(data)
	case len(data) >= 4 && string(data[:4]) == "fLaC":
		return decodeFLAC(data)
	case sniffMP3(data):
		return decodeMP3(data)
	}

	// Last resort: try each decoder until one accepts the data.
	for _, dec := range []func([]byte) ([]float32, int, error){decodeOgg, decodeFLAC, decodeMP3} {
		if samples, frames, err := dec(data); err == nil {
			return samples, frames, nil
		}
	}
	return nil, 0, ErrUnknownFormat
}

func isRIFFWave(data []byte) bool {
	return len(data) >= 12 && string(data[0:4]) == "RIFF" && string(data[8:12]) == "WAVE"
}

// sniffMP3 recognizes an ID3 tag or a bare MPEG audio sync word.
func sniffMP3(data []byte) bool {
	if len(data) >= 3 && string(data[:3]) == "ID3" {
		return true
	}
	return len(data) >= 2 && data[0] == 0xFF && data[1]&0xE0 == 0xE0
}

// Wave format tags seen in BMS packages.
const (
	waveFormatPCM   = 0x0001
	waveFormatFloat = 0x0003
	waveFormatMP3   = 0x0055
)

type waveInfo struct {
	formatTag  uint16
	channels   int
	sampleRate int
	bits       int
	dataOff    int
	dataLen    int
}

// scanWave walks the RIFF chunk list for the fmt and data chunks.
func scanWave(data []byte) (waveInfo, error) {
	info := waveInfo{}
	haveFmt := false
	off := 12
	for off+8 <= len(data) {
		id := string(data[off : off+4])
		size := int(binary.LittleEndian.Uint32(data[off+4 : off+8]))
		payload := off + 8
		if size < 0 || payload+size > len(data) {
			break
		}
		switch id {
		case "fmt ":
			if size >= 16 {
				info.formatTag = binary.LittleEndian.Uint16(data[payload:])
				info.channels = int(binary.LittleEndian.Uint16(data[payload+2:]))
				info.sampleRate = int(binary.LittleEndian.Uint32(data[payload+4:]))
				info.bits = int(binary.LittleEndian.Uint16(data[payload+14:]))
				haveFmt = true
			}
		case "data":
			info.dataOff = payload
			info.dataLen = size
		}
		off = payload + size + (size & 1) // chunks are word aligned
		if haveFmt && info.dataLen > 0 {
			break
		}
	}
	if !haveFmt || info.dataLen == 0 {
		return info, fmt.Errorf("%w: missing WAV fmt or data chunk", ErrUnknownFormat)
	}
	return info, nil
}

func decodeWave(data []byte) ([]float32, int, error) {
	info, err := scanWave(data)
	if err != nil {
		return nil, 0, err
	}
	payload := data[info.dataOff : info.dataOff+info.dataLen]

	switch info.formatTag {
	case waveFormatPCM, waveFormatFloat:
		return decodeWavePCM(info, payload)
	case waveFormatMP3:
		// MP3 payload inside a WAV container: hand the data chunk to the
		// MP3 decoder directly.
		return decodeMP3(payload)
	}
	return nil, 0, fmt.Errorf("%w: WAV format tag 0x%04x", ErrUnknownFormat, info.formatTag)
}

// decodeWavePCM reads integer PCM (8/16/24/32 bit) and IEEE float (32/64
// bit) frames, keeping the first two channels.
func decodeWavePCM(info waveInfo, payload []byte) ([]float32, int, error) {
	if info.channels < 1 {
		return nil, 0, fmt.Errorf("%w: WAV with no channels", ErrUnknownFormat)
	}
	bytesPer := info.bits / 8
	if bytesPer == 0 {
		return nil, 0, fmt.Errorf("%w: WAV with %d bits per sample", ErrUnknownFormat, info.bits)
	}

	read, err := waveSampleReader(info.formatTag, info.bits)
	if err != nil {
		return nil, 0, err
	}

	frameBytes := bytesPer * info.channels
	frames := len(payload) / frameBytes
	stereo := make([]float32, 0, frames*MixChannels)
	for f := 0; f < frames; f++ {
		base := f * frameBytes
		l := read(payload[base:])
		r := l
		if info.channels > 1 {
			r = read(payload[base+bytesPer:])
		}
		stereo = append(stereo, l, r)
	}
	return normalize(stereo, info.sampleRate)
}

// waveSampleReader selects the sample conversion for one of the six PCM
// layouts: unsigned 8, signed 16/24/32, float 32/64.
func waveSampleReader(tag uint16, bits int) (func([]byte) float32, error) {
	if tag == waveFormatFloat {
		switch bits {
		case 32:
			return func(b []byte) float32 {
				return math.Float32frombits(binary.LittleEndian.Uint32(b))
			}, nil
		case 64:
			return func(b []byte) float32 {
				return float32(math.Float64frombits(binary.LittleEndian.Uint64(b)))
			}, nil
		}
		return nil, fmt.Errorf("%w: %d-bit float WAV", ErrUnknownFormat, bits)
	}
	switch bits {
	case 8:
		return func(b []byte) float32 {
			return float32(b[0])/255.0*2.0 - 1.0
		}, nil
	case 16:
		return func(b []byte) float32 {
			return float32(int16(binary.LittleEndian.Uint16(b))) / 32767.0
		}, nil
	case 24:
		return func(b []byte) float32 {
			v := int32(b[0]) | int32(b[1])<<8 | int32(b[2])<<16
			v = v << 8 >> 8 // sign extend
			return float32(v) / 8388607.0
		}, nil
	case 32:
		return func(b []byte) float32 {
			return float32(int32(binary.LittleEndian.Uint32(b))) / 2147483647.0
		}, nil
	}
	return nil, fmt.Errorf("%w: %d-bit PCM WAV", ErrUnknownFormat, bits)
}

func decodeMP3(data []byte) ([]float32, int, error) {
	dec, err := mp3.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return nil, 0, fmt.Errorf("mp3 decode: %w", err)
	}
	raw, err := io.ReadAll(dec)
	if err != nil {
		return nil, 0, fmt.Errorf("mp3 decode: %w", err)
	}
	// go-mp3 always yields interleaved stereo i16.
	stereo := make([]float32, 0, len(raw)/2)
	for i := 0; i+2 <= len(raw); i += 2 {
		v := int16(binary.LittleEndian.Uint16(raw[i:]))
		stereo = append(stereo, float32(v)/32767.0)
	}
	if len(stereo)&1 == 1 {
		stereo = stereo[:len(stereo)-1]
	}
	return normalize(stereo, dec.SampleRate())
}

func decodeOgg(data []byte) ([]float32, int, error) {
	samples, format, err := oggvorbis.ReadAll(bytes.NewReader(data))
	if err != nil {
		return nil, 0, fmt.Errorf("ogg decode: %w", err)
	}
	return normalize(toStereo(samples, format.Channels), format.SampleRate)
}

func decodeFLAC(data []byte) ([]float32, int, error) {
	stream, err := flac.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, 0, fmt.Errorf("flac decode: %w", err)
	}
	info := stream.Info
	scale := float32(int64(1)<<(info.BitsPerSample-1) - 1)

	var stereo []float32
	for {
		frame, err := stream.ParseNext()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, 0, fmt.Errorf("flac decode: %w", err)
		}
		if len(frame.Subframes) == 0 {
			continue
		}
		left := frame.Subframes[0].Samples
		right := left
		if len(frame.Subframes) > 1 {
			right = frame.Subframes[1].Samples
		}
		n := len(left)
		if len(right) < n {
			n = len(right)
		}
		for i := 0; i < n; i++ {
			stereo = append(stereo, float32(left[i])/scale, float32(right[i])/scale)
		}
	}
	return normalize(stereo, int(info.SampleRate))
}

// toStereo reduces or widens interleaved frames to two channels: mono is
// duplicated, extra channels beyond the first two are dropped.
func toStereo(samples []float32, channels int) []float32 {
	switch channels {
	case MixChannels:
		return samples
	case 1:
		out := make([]float32, 0, len(samples)*2)
		for _, s := range samples {
			out = append(out, s, s)
		}
		return out
	}
	if channels < 1 {
		return nil
	}
	frames := len(samples) / channels
	out := make([]float32, 0, frames*MixChannels)
	for f := 0; f < frames; f++ {
		out = append(out, samples[f*channels], samples[f*channels+1])
	}
	return out
}

// normalize resamples interleaved stereo data to the mix rate and returns it
// with its frame count.
func normalize(stereo []float32, srcRate int) ([]float32, int, error) {
	if srcRate <= 0 {
		return nil, 0, fmt.Errorf("%w: source rate %d", ErrUnknownFormat, srcRate)
	}
	out := Resample(stereo, srcRate)
	return out, len(out) / MixChannels, nil
}
