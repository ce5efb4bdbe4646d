package comb

import (
	"math"
	"testing"
)

func TestCombAddEcho(t *testing.T) {
	// 10ms delay at 1000 Hz = 10 frames = 20 samples
	c := NewCombAdd(1024, 0.5, 10, 1000)

	in := make([]float32, 100)
	in[0] = 1.0 // left impulse
	in[1] = 1.0 // right impulse
	c.InputSamples(in)

	out := make([]float32, 100)
	n := c.GetAudio(out)
	if n != 100 {
		t.Fatalf("expected 100 samples, got %d", n)
	}

	if out[0] != 1.0 || out[1] != 1.0 {
		t.Errorf("dry impulse missing, got %v %v", out[0], out[1])
	}
	if math.Abs(float64(out[20]-0.5)) > 1e-6 || math.Abs(float64(out[21]-0.5)) > 1e-6 {
		t.Errorf("expected echo of 0.5 at offset 20, got %v %v", out[20], out[21])
	}
}

func TestCombAddFillThreshold(t *testing.T) {
	c := NewCombAdd(1024, 0.3, 10, 1000) // needs 20 samples before output

	rem := c.InputSamples(make([]float32, 8))
	if rem != 12 {
		t.Errorf("expected 12 samples still required, got %d", rem)
	}
	rem = c.InputSamples(make([]float32, 12))
	if rem != 0 {
		t.Errorf("expected filter to be primed, got %d remaining", rem)
	}
}

func TestPassThroughRoundTrip(t *testing.T) {
	p := NewPassThrough(16)

	in := []float32{1, 2, 3, 4, 5, 6}
	if n := p.InputSamples(in); n != 6 {
		t.Fatalf("expected 6 samples accepted, got %d", n)
	}

	out := make([]float32, 6)
	if n := p.GetAudio(out); n != 6 {
		t.Fatalf("expected 6 samples out, got %d", n)
	}
	for i := range in {
		if out[i] != in[i] {
			t.Errorf("sample %d: got %v, want %v", i, out[i], in[i])
		}
	}
}

func TestPassThroughWraps(t *testing.T) {
	p := NewPassThrough(8)

	// Fill, drain partially, then write across the wrap point.
	p.InputSamples([]float32{1, 2, 3, 4, 5, 6})
	out := make([]float32, 4)
	p.GetAudio(out)
	if n := p.InputSamples([]float32{7, 8, 9, 10}); n != 4 {
		t.Fatalf("expected 4 accepted after drain, got %d", n)
	}

	got := make([]float32, 6)
	if n := p.GetAudio(got); n != 6 {
		t.Fatalf("expected 6 samples out, got %d", n)
	}
	want := []float32{5, 6, 7, 8, 9, 10}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sample %d: got %v, want %v", i, got[i], want[i])
		}
	}
}
