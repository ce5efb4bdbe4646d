package bmxtract

import (
	"fmt"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// tempoFixture builds a chart with one BPM-table change per measure, the
// given per-measure multipliers, and optional stops at measure starts.
func tempoFixture(bpms, mults, stops []float64) *Bms {
	bms := newTestBms()
	for i, b := range bpms {
		id := fmt.Sprintf("T%d", i)
		bms.Header.BPMTable[id] = b
		bms.Messages = append(bms.Messages, message(uint16(i), 8, "00", id))
	}
	for i, m := range mults {
		bms.MeasureMultipliers[uint16(i)] = m
	}
	for i, s := range stops {
		id := fmt.Sprintf("S%d", i)
		bms.Header.StopTable[id] = s
		bms.Messages = append(bms.Messages, message(uint16(i), 9, id))
	}
	return bms
}

func TestTempoMapOrderingProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("anchors stay ordered with non-decreasing timestamps", prop.ForAll(
		func(bpms, mults, stops []float64) bool {
			tm := NewTempoMap(tempoFixture(bpms, mults, stops))
			for i := 1; i < len(tm.Events); i++ {
				a, b := tm.Events[i-1], tm.Events[i]
				if a.Measure > b.Measure || (a.Measure == b.Measure && a.Position > b.Position) {
					return false
				}
				if a.Timestamp > b.Timestamp {
					return false
				}
			}
			return true
		},
		gen.SliceOfN(6, gen.Float64Range(30, 300)),
		gen.SliceOfN(6, gen.Float64Range(0.25, 4)),
		gen.SliceOfN(3, gen.Float64Range(0, 192)),
	))

	properties.TestingRun(t)
}

func TestMultiplierScalingProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("doubling every multiplier doubles every anchor timestamp", prop.ForAll(
		func(bpms, mults []float64) bool {
			doubled := make([]float64, len(mults))
			for i, m := range mults {
				doubled[i] = m * 2
			}
			tm1 := NewTempoMap(tempoFixture(bpms, mults, nil))
			tm2 := NewTempoMap(tempoFixture(bpms, doubled, nil))
			if len(tm1.Events) != len(tm2.Events) {
				return false
			}
			for i := range tm1.Events {
				if !approxEqual(tm2.Events[i].Timestamp, 2*tm1.Events[i].Timestamp, 1e-9*(1+tm1.Events[i].Timestamp)) {
					return false
				}
			}
			return true
		},
		gen.SliceOfN(6, gen.Float64Range(30, 300)),
		gen.SliceOfN(6, gen.Float64Range(0.25, 4)),
	))

	properties.TestingRun(t)
}

func TestStopDurationProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("a stop advances time by duration/48*60/bpm", prop.ForAll(
		func(bpm, duration float64) bool {
			base := newTestBms()
			base.Header.BPM = bpm
			base.Messages = []Message{
				message(0, 9, "00", "00"),
				message(1, 1, "01"),
			}
			plain := NewTempoMap(base)

			stopped := newTestBms()
			stopped.Header.BPM = bpm
			stopped.Header.StopTable["01"] = duration
			stopped.Messages = []Message{
				message(0, 9, "00", "01"),
				message(1, 1, "01"),
			}
			withStop := NewTempoMap(stopped)

			want := duration / 48.0 * 60.0 / bpm
			got := withStop.Timestamp(1, 0) - plain.Timestamp(1, 0)
			return approxEqual(got, want, 1e-9*(1+want))
		},
		gen.Float64Range(30, 300),
		gen.Float64Range(0, 384),
	))

	properties.TestingRun(t)
}
