package bmxtract

import (
	"math"
	"sort"
	"strconv"
)

// TempoEvent is an anchor on the integrated timeline. BPM is the tempo in
// effect at and after the anchor; Timestamp is the absolute time in seconds
// at (Measure, Position).
type TempoEvent struct {
	Measure   uint16
	Position  float64
	BPM       float64
	Timestamp float64
}

// TempoMap answers "when does musical position (measure, position) happen"
// for a chart with measure-length multipliers, mid-measure BPM changes and
// STOP pauses folded in.
type TempoMap struct {
	BaseMeasure uint16
	Events      []TempoEvent

	multVec []float64 // per-measure length multiplier, dense from BaseMeasure
	cumMult []float64 // prefix sums of multVec, cumMult[k] = sum multVec[0..k)
}

type rawTempoChange struct {
	measure  uint16
	position float64
	bpm      float64
}

type stopEvent struct {
	measure  uint16
	position float64
	duration float64 // in 1/192ths of a 4/4 measure
}

// NewTempoMap integrates a chart's tempo information into an ordered anchor
// list with absolute timestamps.
func NewTempoMap(bms *Bms) *TempoMap {
	baseMeasure := uint16(0)
	maxMeasure := uint16(0)
	for i, msg := range bms.Messages {
		if i == 0 || msg.Measure < baseMeasure {
			baseMeasure = msg.Measure
		}
		if msg.Measure > maxMeasure {
			maxMeasure = msg.Measure
		}
	}
	if len(bms.Messages) == 0 {
		maxMeasure = baseMeasure
	}
	for m := range bms.MeasureMultipliers {
		if m > maxMeasure {
			maxMeasure = m
		}
	}

	tm := &TempoMap{BaseMeasure: baseMeasure}
	n := int(maxMeasure-baseMeasure) + 1
	tm.multVec = make([]float64, n)
	tm.cumMult = make([]float64, n+1)
	for i := range tm.multVec {
		mult := 1.0
		if v, ok := bms.MeasureMultipliers[baseMeasure+uint16(i)]; ok {
			mult = v
		}
		tm.multVec[i] = mult
		tm.cumMult[i+1] = tm.cumMult[i] + mult
	}

	changes := collectTempoChanges(bms, baseMeasure)
	stops := collectStops(bms)
	tm.Events = tm.integrate(changes, stops)
	return tm
}

// collectTempoChanges gathers channel 3 (inline hex BPM) and channel 8 (BPM
// table reference) events, seeded with the chart's base BPM, in timeline
// order.
func collectTempoChanges(bms *Bms, baseMeasure uint16) []rawTempoChange {
	changes := make([]rawTempoChange, 0, len(bms.Messages)+1)
	changes = append(changes, rawTempoChange{measure: baseMeasure, position: 0, bpm: bms.Header.BPM})

	for _, msg := range bms.Messages {
		if msg.Channel != 3 && msg.Channel != 8 {
			continue
		}
		n := float64(len(msg.Objects))
		for i, obj := range msg.Objects {
			if obj == "00" {
				continue
			}
			pos := float64(i) / n
			switch msg.Channel {
			case 3:
				// Inline BPM as a hex byte, 01-FF. A token that fails to
				// parse produces no tempo change, same as "00".
				if v, err := strconv.ParseUint(obj, 16, 8); err == nil && v > 0 {
					changes = append(changes, rawTempoChange{msg.Measure, pos, float64(v)})
				}
			case 8:
				if bpm, ok := bms.Header.BPMTable[obj]; ok {
					changes = append(changes, rawTempoChange{msg.Measure, pos, bpm})
				}
			}
		}
	}

	sort.SliceStable(changes, func(i, j int) bool {
		if changes[i].measure != changes[j].measure {
			return changes[i].measure < changes[j].measure
		}
		return changes[i].position < changes[j].position
	})
	return changes
}

func collectStops(bms *Bms) []stopEvent {
	var stops []stopEvent
	for _, msg := range bms.Messages {
		if msg.Channel != 9 {
			continue
		}
		n := float64(len(msg.Objects))
		for i, obj := range msg.Objects {
			if obj == "00" {
				continue
			}
			if dur, ok := bms.Header.StopTable[obj]; ok {
				stops = append(stops, stopEvent{msg.Measure, float64(i) / n, dur})
			}
		}
	}
	sort.SliceStable(stops, func(i, j int) bool {
		if stops[i].measure != stops[j].measure {
			return stops[i].measure < stops[j].measure
		}
		return stops[i].position < stops[j].position
	})
	return stops
}

// integrate walks tempo changes and stops in timeline order, accumulating
// absolute time. Stops emit an anchor carrying the unchanged BPM but a
// timestamp that includes the pause.
func (tm *TempoMap) integrate(changes []rawTempoChange, stops []stopEvent) []TempoEvent {
	if len(changes) == 0 {
		return nil
	}

	events := make([]TempoEvent, 0, len(changes)+len(stops))
	curTime := 0.0
	curMeasure := tm.BaseMeasure
	curPos := 0.0
	curBPM := changes[0].bpm
	stopIdx := 0

	for _, tc := range changes {
		if tc.measure > curMeasure || (tc.measure == curMeasure && tc.position > curPos) {
			for stopIdx < len(stops) {
				s := stops[stopIdx]
				if s.measure > tc.measure || (s.measure == tc.measure && s.position >= tc.position) {
					break
				}
				curTime += tm.timeBetween(curMeasure, curPos, s.measure, s.position, curBPM)
				curTime += stopSeconds(s.duration, curBPM)
				curMeasure, curPos = s.measure, s.position
				events = append(events, TempoEvent{s.measure, s.position, curBPM, curTime})
				stopIdx++
			}
			curTime += tm.timeBetween(curMeasure, curPos, tc.measure, tc.position, curBPM)
		}
		events = append(events, TempoEvent{tc.measure, tc.position, tc.bpm, curTime})
		curMeasure, curPos, curBPM = tc.measure, tc.position, tc.bpm
	}

	// Stops at or after the final tempo change still pause the timeline.
	for ; stopIdx < len(stops); stopIdx++ {
		s := stops[stopIdx]
		curTime += tm.timeBetween(curMeasure, curPos, s.measure, s.position, curBPM)
		curTime += stopSeconds(s.duration, curBPM)
		curMeasure, curPos = s.measure, s.position
		events = append(events, TempoEvent{s.measure, s.position, curBPM, curTime})
	}

	return events
}

// stopSeconds converts a STOP duration to seconds at the prevailing BPM.
// Durations are in 1/192ths of a 4/4 measure, so 48 units make one beat.
func stopSeconds(duration192nds, bpm float64) float64 {
	return (duration192nds / 48.0) * (60.0 / bpm)
}

// Timestamp returns the absolute time in seconds of a musical position.
// Positions before the first covered measure map to 0.
func (tm *TempoMap) Timestamp(measure uint16, position float64) float64 {
	if measure < tm.BaseMeasure || len(tm.Events) == 0 {
		return 0
	}

	// Greatest anchor at or before the queried position, index 0 when every
	// anchor is later.
	idx := sort.Search(len(tm.Events), func(i int) bool {
		e := &tm.Events[i]
		if e.Measure != measure {
			return e.Measure > measure
		}
		return e.Position > position
	})
	if idx > 0 {
		idx--
	}

	e := tm.Events[idx]
	if e.Measure == measure && e.Position == position {
		// Several anchors can share a position when a stop lands on top of
		// a tempo change. A note exactly there sounds before the pause, so
		// the earliest anchor wins.
		for idx > 0 && tm.Events[idx-1].Measure == measure && tm.Events[idx-1].Position == position {
			idx--
		}
		return tm.Events[idx].Timestamp
	}
	return e.Timestamp + tm.timeBetween(e.Measure, e.Position, measure, position, e.BPM)
}

// TimestampSamples returns the position's time as a frame index at the given
// sample rate.
func (tm *TempoMap) TimestampSamples(measure uint16, position float64, sampleRate int) int {
	return int(math.Round(tm.Timestamp(measure, position) * float64(sampleRate)))
}

// timeBetween measures the seconds from one musical position to a later one
// at a constant BPM, honoring per-measure length multipliers.
func (tm *TempoMap) timeBetween(fromM uint16, fromPos float64, toM uint16, toPos, bpm float64) float64 {
	secPerBeat := 60.0 / bpm
	baseMeasureSec := 4.0 * secPerBeat

	if fromM == toM {
		return (toPos - fromPos) * baseMeasureSec * tm.mult(fromM)
	}

	idxFrom := tm.denseIndex(fromM)
	idxTo := tm.denseIndex(toM)
	delta := (1.0-fromPos)*tm.mult(fromM) + tm.measureSpan(idxFrom+1, idxTo) + toPos*tm.mult(toM)
	return delta * baseMeasureSec
}

func (tm *TempoMap) denseIndex(measure uint16) int {
	if measure < tm.BaseMeasure {
		return 0
	}
	return int(measure - tm.BaseMeasure)
}

// mult returns the length multiplier of a measure, 1.0 outside the mapped
// range.
func (tm *TempoMap) mult(measure uint16) float64 {
	idx := tm.denseIndex(measure)
	if measure < tm.BaseMeasure || idx >= len(tm.multVec) {
		return 1.0
	}
	return tm.multVec[idx]
}

// measureSpan sums multipliers over the dense index range [lo, hi). Indices
// past the mapped range count as 1.0 so queries beyond the last message
// stay well defined.
func (tm *TempoMap) measureSpan(lo, hi int) float64 {
	if hi <= lo {
		return 0
	}
	n := len(tm.multVec)
	cl, ch := lo, hi
	if cl > n {
		cl = n
	}
	if ch > n {
		ch = n
	}
	span := tm.cumMult[ch] - tm.cumMult[cl]
	if hi > n {
		over := lo
		if over < n {
			over = n
		}
		span += float64(hi - over)
	}
	return span
}
