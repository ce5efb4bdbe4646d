package bmxtract

import "strings"

// SoundEvent schedules one decoded source on the output timeline. Start and
// End are in interleaved-sample units (frame index times channel count).
// End < 0 means the source plays out to its natural length.
type SoundEvent struct {
	KeyID int
	Start int
	End   int
}

// Note-bearing channel ranges, inclusive. 01 is the BGM lane, 11-19 and
// 21-29 (base 36) are the playable lanes, 51-59 and 61-69 carry long notes.
var (
	noteChannelRanges = [][2]uint16{{1, 1}, {37, 45}, {73, 81}, {181, 189}, {217, 225}}
	longNoteRanges    = [][2]uint16{{181, 189}, {217, 225}}
)

func channelIn(ch uint16, ranges [][2]uint16) bool {
	for _, r := range ranges {
		if ch >= r[0] && ch <= r[1] {
			return true
		}
	}
	return false
}

// longNoteState tracks open long notes per channel. Type 2 keeps at most one
// active note per channel, closed by the LNOBJ terminator; type 1 keeps a set
// of open object ids, closed by the paired repeat of the same id.
type longNoteState struct {
	active  map[uint16]string
	openIDs map[uint16]map[string]struct{}
}

func newLongNoteState() *longNoteState {
	return &longNoteState{
		active:  make(map[uint16]string),
		openIDs: make(map[uint16]map[string]struct{}),
	}
}

// ExtractSoundEvents walks the note-bearing channels of a chart and emits
// sample-accurate events keyed into the decoded source table. Tokens whose
// audio file or decoded source is missing are silently skipped.
func ExtractSoundEvents(bms *Bms, tm *TempoMap, filenameToID map[string]int, sampleRate, channels int) []SoundEvent {
	var events []SoundEvent
	ln := newLongNoteState()
	audio := bms.Header.AudioFiles

	emit := func(obj string, start int) {
		if filename, ok := audio[obj]; ok {
			if kid, ok := filenameToID[filename]; ok {
				events = append(events, SoundEvent{KeyID: kid, Start: start, End: -1})
			}
		}
	}

	for _, msg := range bms.Messages {
		ch := uint16(msg.Channel)
		if !channelIn(ch, noteChannelRanges) {
			continue
		}
		n := float64(len(msg.Objects))
		if n == 0 {
			continue
		}

		for i, obj := range msg.Objects {
			pos := float64(i) / n
			start := tm.TimestampSamples(msg.Measure, pos, sampleRate) * channels

			if !channelIn(ch, longNoteRanges) {
				emit(obj, start)
				continue
			}

			if bms.Header.LNType == 2 {
				ln.applyType2(bms, ch, obj, start, emit)
			} else {
				ln.applyType1(ch, obj, start, emit)
			}
		}
	}
	return events
}

// applyType2 handles LNOBJ-terminated long notes: every opening token also
// sounds, the terminator closes silently, and "00" clears the channel.
func (ln *longNoteState) applyType2(bms *Bms, ch uint16, obj string, start int, emit func(string, int)) {
	if bms.Header.LNObj != "" && obj != "00" && strings.EqualFold(obj, bms.Header.LNObj) {
		delete(ln.active, ch)
		return
	}
	if obj == "00" {
		delete(ln.active, ch)
		return
	}
	filename, ok := bms.Header.AudioFiles[obj]
	if !ok {
		return
	}
	if _, open := ln.active[ch]; !open {
		ln.active[ch] = filename
	}
	emit(obj, start)
}

// applyType1 handles paired long notes: the first occurrence of an id opens
// the note and sounds, the repeat closes it without a new sound.
func (ln *longNoteState) applyType1(ch uint16, obj string, start int, emit func(string, int)) {
	if obj == "00" {
		return
	}
	open := ln.openIDs[ch]
	if open == nil {
		open = make(map[string]struct{})
		ln.openIDs[ch] = open
	}
	id := strings.ToUpper(obj)
	if _, dup := open[id]; dup {
		delete(open, id)
		return
	}
	emit(obj, start)
	open[id] = struct{}{}
}
