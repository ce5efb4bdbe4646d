package wav

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math"
	"testing"
)

func TestEncodeHeaderPCM(t *testing.T) {
	f := Format{AudioFormat: PCM, Channels: 2, SampleRate: 44100, BitsPerSample: 16}
	h, err := EncodeHeader(f, 8)
	if err != nil {
		t.Fatal(err)
	}
	if len(h) != HeaderSize {
		t.Fatalf("header length = %d, want %d", len(h), HeaderSize)
	}

	want := []byte{
		'R', 'I', 'F', 'F',
		44, 0, 0, 0,
		'W', 'A', 'V', 'E',
		'f', 'm', 't', ' ',
		16, 0, 0, 0,
		1, 0, // PCM
		2, 0, // stereo
		0x44, 0xAC, 0, 0, // 44100
		0x10, 0xB1, 2, 0, // 176400
		4, 0, // block align
		16, 0, // bits
		'd', 'a', 't', 'a',
		8, 0, 0, 0,
	}
	if !bytes.Equal(h, want) {
		t.Errorf("header bytes\n got %v\nwant %v", h, want)
	}
}

func TestEncodeHeaderFloat(t *testing.T) {
	f := Format{AudioFormat: Float, Channels: 2, SampleRate: 44100, BitsPerSample: 32}
	h, err := EncodeHeader(f, 1024)
	if err != nil {
		t.Fatal(err)
	}
	if got := binary.LittleEndian.Uint16(h[20:22]); got != Float {
		t.Errorf("format = %d, want %d", got, Float)
	}
	if got := binary.LittleEndian.Uint16(h[32:34]); got != 8 {
		t.Errorf("block align = %d, want 8", got)
	}
	if got := binary.LittleEndian.Uint32(h[28:32]); got != 44100*8 {
		t.Errorf("byte rate = %d, want %d", got, 44100*8)
	}
}

func TestEncodeHeaderTooLarge(t *testing.T) {
	f := Format{AudioFormat: PCM, Channels: 2, SampleRate: 44100, BitsPerSample: 16}
	if _, err := EncodeHeader(f, math.MaxUint32+1); !errors.Is(err, ErrTooLarge) {
		t.Errorf("err = %v, want ErrTooLarge", err)
	}
	if _, err := EncodeHeader(f, math.MaxUint32); err != nil {
		t.Errorf("exactly 2^32-1 bytes should be allowed, got %v", err)
	}
}

func TestAppendInt16LE(t *testing.T) {
	got := AppendInt16LE(nil, []float32{0, 0.5, -0.5, 1.0, -1.0, 1.5, -1.5})
	want := []int16{0, 16384, -16384, 32767, -32767, 32767, -32768}

	if len(got) != len(want)*2 {
		t.Fatalf("byte length = %d, want %d", len(got), len(want)*2)
	}
	for i, w := range want {
		if v := int16(binary.LittleEndian.Uint16(got[i*2:])); v != w {
			t.Errorf("sample %d = %d, want %d", i, v, w)
		}
	}
}

func TestAppendFloat32LE(t *testing.T) {
	in := []float32{0.25, -1.75, 3.5}
	got := AppendFloat32LE(nil, in)
	if len(got) != len(in)*4 {
		t.Fatalf("byte length = %d, want %d", len(got), len(in)*4)
	}
	for i, w := range in {
		if v := math.Float32frombits(binary.LittleEndian.Uint32(got[i*4:])); v != w {
			t.Errorf("sample %d = %v, want %v", i, v, w)
		}
	}
}
