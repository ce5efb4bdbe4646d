package bmxtract

import (
	"slices"
	"sort"
)

const (
	// Fixed mix target: interleaved stereo f32 at 44.1 kHz.
	MixRate     = 44100
	MixChannels = 2

	chunkSeconds = 1

	// ChunkSamples is the size of one mixing chunk in interleaved samples.
	ChunkSamples = MixRate * MixChannels * chunkSeconds
)

// Source is one decoded audio asset: interleaved stereo f32 at the mix rate.
// A zero Source stands in for assets that failed to fetch or decode.
type Source struct {
	Samples []float32
	Frames  int
}

// EventRef is a validated event with an explicit exclusive end.
type EventRef struct {
	KeyID int
	Start int
	End   int
}

// Prepared holds the validated, sorted events and the output length needed
// to fit them all.
type Prepared struct {
	Events   []EventRef
	TotalLen int
}

// PrepareEvents validates timeline events against their decoded sources and
// arranges them for mixing: empty events are dropped, events are sorted by
// start, and a later event of the same source truncates the earlier one so
// intervals per source never overlap.
func PrepareEvents(events []SoundEvent, decoded []Source) Prepared {
	pre := make([]EventRef, 0, len(events))
	totalLen := 0
	for _, ev := range events {
		naturalEnd := ev.Start + decoded[ev.KeyID].Frames*MixChannels
		end := ev.End
		if end < 0 {
			end = naturalEnd
		}
		if end <= ev.Start {
			continue
		}
		pre = append(pre, EventRef{KeyID: ev.KeyID, Start: ev.Start, End: end})
		if end > totalLen {
			totalLen = end
		}
	}
	sort.SliceStable(pre, func(i, j int) bool { return pre[i].Start < pre[j].Start })

	// Walk backwards so each event sees the start of the next event with the
	// same source and can truncate itself against it.
	final := make([]EventRef, 0, len(pre))
	nextStartForKey := make(map[int]int, len(pre))
	for i := len(pre) - 1; i >= 0; i-- {
		ev := pre[i]
		end := ev.End
		if next, ok := nextStartForKey[ev.KeyID]; ok && next < end {
			end = next
		}
		nextStartForKey[ev.KeyID] = ev.Start
		if end > ev.Start {
			final = append(final, EventRef{KeyID: ev.KeyID, Start: ev.Start, End: end})
		}
	}
	slices.Reverse(final)

	if totalLen&1 == 1 {
		totalLen++ // whole stereo frames only
	}
	return Prepared{Events: final, TotalLen: totalLen}
}

// BucketizeEvents groups event indices into fixed-size time chunks. An event
// appears in every chunk its [Start, End) interval touches.
func BucketizeEvents(events []EventRef, totalLen int) [][]int {
	chunkCount := (totalLen + ChunkSamples - 1) / ChunkSamples
	buckets := make([][]int, chunkCount)
	for idx, ev := range events {
		startChunk := ev.Start / ChunkSamples
		endChunk := (ev.End - 1) / ChunkSamples
		for ci := startChunk; ci <= endChunk && ci < chunkCount; ci++ {
			buckets[ci] = append(buckets[ci], idx)
		}
	}
	return buckets
}

// OverlapSlice describes how one event contributes to one chunk, all offsets
// in interleaved samples.
type OverlapSlice struct {
	Ev     int // index into the prepared events
	SrcOff int
	DstOff int
	Len    int
}

// PrecomputeOverlaps intersects every bucketed event with its chunk window
// and the source buffer, in parallel across chunks.
func PrecomputeOverlaps(events []EventRef, decoded []Source, buckets [][]int, totalLen int) [][]OverlapSlice {
	out := make([][]OverlapSlice, len(buckets))
	forEachIndex(len(buckets), func(ci int) {
		out[ci] = chunkOverlaps(ci, events, decoded, buckets[ci], totalLen)
	})
	return out
}

func chunkOverlaps(ci int, events []EventRef, decoded []Source, bucket []int, totalLen int) []OverlapSlice {
	chunkStart := ci * ChunkSamples
	chunkEnd := chunkStart + ChunkSamples
	if chunkEnd > totalLen {
		chunkEnd = totalLen
	}

	out := make([]OverlapSlice, 0, len(bucket))
	for _, evIdx := range bucket {
		ev := events[evIdx]
		srcLen := len(decoded[ev.KeyID].Samples)

		overlapStart := max(chunkStart, ev.Start)
		overlapEnd := min(chunkEnd, min(ev.End, ev.Start+srcLen))
		if overlapStart >= overlapEnd {
			continue
		}
		out = append(out, OverlapSlice{
			Ev:     evIdx,
			SrcOff: overlapStart - ev.Start,
			DstOff: overlapStart - chunkStart,
			Len:    overlapEnd - overlapStart,
		})
	}
	return out
}

// MixChunk sums every precomputed slice of a chunk into a fresh buffer. No
// clipping or normalization is applied; the output is the linear sum.
func MixChunk(ci int, events []EventRef, decoded []Source, precomputed [][]OverlapSlice, totalLen int) []float32 {
	chunkStart := ci * ChunkSamples
	chunkEnd := chunkStart + ChunkSamples
	if chunkEnd > totalLen {
		chunkEnd = totalLen
	}

	buf := make([]float32, chunkEnd-chunkStart)
	for _, sl := range precomputed[ci] {
		ev := events[sl.Ev]
		src := decoded[ev.KeyID].Samples
		addSamples(buf[sl.DstOff:sl.DstOff+sl.Len], src[sl.SrcOff:sl.SrcOff+sl.Len])
	}
	return buf
}
