package bmxtract

import (
	"strings"
	"testing"

	clone "github.com/huandu/go-clone/generic"
)

var testBms = Bms{
	Header: Header{
		BPM: 120,
		AudioFiles: map[string]string{
			"01": "kick.wav",
			"02": "snare.wav",
		},
		BPMTable:  map[string]float64{},
		StopTable: map[string]float64{},
	},
	MeasureMultipliers: map[uint16]float64{},
}

// newTestBms clones the shared fixture so a test can mutate it freely.
func newTestBms() *Bms {
	return clone.Clone(&testBms)
}

// chartText assembles a chart document from header and data lines.
func chartText(header, data []string) string {
	var sb strings.Builder
	sb.WriteString("*---------------------- HEADER FIELD\n\n")
	for _, l := range header {
		sb.WriteString(l)
		sb.WriteByte('\n')
	}
	sb.WriteString("\n*---------------------- MAIN DATA FIELD\n\n")
	for _, l := range data {
		sb.WriteString(l)
		sb.WriteByte('\n')
	}
	return sb.String()
}

func mustParse(t *testing.T, text string) *Bms {
	t.Helper()
	bms, err := Parse(text)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return bms
}

func message(measure uint16, channel uint8, objects ...string) Message {
	return Message{Measure: measure, Channel: channel, Objects: objects}
}

// makeSource builds a decoded source of frames stereo frames, every sample
// set to v.
func makeSource(frames int, v float32) Source {
	s := make([]float32, frames*MixChannels)
	for i := range s {
		s[i] = v
	}
	return Source{Samples: s, Frames: frames}
}

func approxEqual(a, b, tol float64) bool {
	d := a - b
	if d < 0 {
		d = -d
	}
	return d <= tol
}
