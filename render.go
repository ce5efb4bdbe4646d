package bmxtract

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/holybaechu/bmxtract/internal/audio"
	"github.com/holybaechu/bmxtract/wav"
)

// FetchFunc looks up the byte blobs for the given asset paths, one entry per
// path in order. A nil entry marks an asset as unavailable; the render
// continues without it.
type FetchFunc func(ctx context.Context, paths []string) ([][]byte, error)

// DecodeFunc turns an encoded audio blob into interleaved stereo f32 at the
// mix rate, returning the samples and the frame count.
type DecodeFunc func(data []byte) ([]float32, int, error)

// ProgressFunc receives coarse pipeline progress as a percent in 0..100 and
// a stage label.
type ProgressFunc func(percent int, stage string)

// RenderOptions configures a render. Fetch and OnChunk are required.
type RenderOptions struct {
	// Float32 selects IEEE float output instead of PCM i16.
	Float32 bool

	Fetch FetchFunc

	// OnChunk receives the WAV header and then each run of sample bytes in
	// order. The slice is reused between calls; copy it to retain it.
	OnChunk func([]byte) error

	OnProgress ProgressFunc
	Decode     DecodeFunc // defaults to the built-in decoder
	Logger     *slog.Logger
}

var (
	ErrNoSoundEvents = errors.New("no sound events found")
	ErrNothingToMix  = errors.New("nothing to mix")
)

// RenderBMS renders a chart to a WAV byte stream: the 44-byte header
// followed by mixed sample data, delivered in order through OnChunk.
// Per-asset fetch and decode failures degrade to silence; fatal conditions
// (no events, empty mix, WAV size overflow) abort with an error.
func RenderBMS(ctx context.Context, bmsText string, opts RenderOptions) error {
	if opts.Fetch == nil || opts.OnChunk == nil {
		return errors.New("render: Fetch and OnChunk are required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	progress := opts.OnProgress
	if progress == nil {
		progress = func(int, string) {}
	}
	decode := opts.Decode
	if decode == nil {
		decode = audio.Decode
	}

	progress(5, "Parsing BMS")
	bms, err := Parse(bmsText)
	if err != nil {
		return fmt.Errorf("BMS parse error: %w", err)
	}
	tm := NewTempoMap(bms)
	progress(10, "Building tempo map")

	filenames := make([]string, 0, len(bms.Header.AudioFiles))
	for _, f := range bms.Header.AudioFiles {
		filenames = append(filenames, f)
	}
	sort.Strings(filenames)
	filenames = dedupSorted(filenames)
	filenameToID := make(map[string]int, len(filenames))
	for i, f := range filenames {
		filenameToID[f] = i
	}

	events := ExtractSoundEvents(bms, tm, filenameToID, MixRate, MixChannels)
	if len(events) == 0 {
		return ErrNoSoundEvents
	}

	// Only fetch sources an event actually references.
	used := make(map[int]struct{}, len(events))
	for _, ev := range events {
		used[ev.KeyID] = struct{}{}
	}
	orderedIDs := make([]int, 0, len(used))
	for id := range used {
		orderedIDs = append(orderedIDs, id)
	}
	sort.Ints(orderedIDs)
	paths := make([]string, len(orderedIDs))
	for i, id := range orderedIDs {
		paths[i] = filenames[id]
	}

	progress(15, "Loading audio files")
	blobs, err := opts.Fetch(ctx, paths)
	if err != nil {
		return fmt.Errorf("fetch assets: %w", err)
	}

	progress(20, "Decoding audio files")
	decoded := make([]Source, len(filenames))
	forEachIndex(min(len(blobs), len(paths)), func(i int) {
		blob := blobs[i]
		if blob == nil {
			logger.Warn("audio file missing", "path", paths[i])
			return
		}
		samples, frames, err := decode(blob)
		if err != nil {
			logger.Warn("audio decode failed", "path", paths[i], "err", err)
			return
		}
		decoded[orderedIDs[i]] = Source{Samples: samples, Frames: frames}
	})
	progress(50, "Audio decoded")

	if err := ctx.Err(); err != nil {
		return err
	}

	progress(55, "Preparing events")
	prepared := PrepareEvents(events, decoded)
	if prepared.TotalLen == 0 {
		return ErrNothingToMix
	}
	buckets := BucketizeEvents(prepared.Events, prepared.TotalLen)
	precomputed := PrecomputeOverlaps(prepared.Events, decoded, buckets, prepared.TotalLen)
	progress(60, "Mixing audio")

	format := wav.Format{AudioFormat: wav.PCM, Channels: MixChannels, SampleRate: MixRate, BitsPerSample: 16}
	if opts.Float32 {
		format.AudioFormat = wav.Float
		format.BitsPerSample = 32
	}
	bytesPerSample := uint64(format.BitsPerSample / 8)
	header, err := wav.EncodeHeader(format, uint64(prepared.TotalLen)*bytesPerSample)
	if err != nil {
		return err
	}
	if err := opts.OnChunk(header); err != nil {
		return fmt.Errorf("emit WAV header: %w", err)
	}
	progress(65, "Writing WAV header")

	logger.Debug("mixing", "chunks", len(buckets), "events", len(prepared.Events), "samples", prepared.TotalLen)
	return emitChunks(prepared, decoded, precomputed, len(buckets), opts, progress)
}

type mixedChunk struct {
	ci      int
	samples []float32
}

// emitChunks mixes chunks on a worker pool and re-sequences them so OnChunk
// always sees ascending, gap-free chunk indices.
func emitChunks(prepared Prepared, decoded []Source, precomputed [][]OverlapSlice, chunkCount int, opts RenderOptions, progress ProgressFunc) error {
	workers := poolSize(chunkCount)
	results := make(chan mixedChunk, workers)
	var aborted atomic.Bool
	var next atomic.Int64
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				ci := int(next.Add(1)) - 1
				if ci >= chunkCount || aborted.Load() {
					return
				}
				buf := MixChunk(ci, prepared.Events, decoded, precomputed, prepared.TotalLen)
				results <- mixedChunk{ci: ci, samples: buf}
			}
		}()
	}
	go func() {
		wg.Wait()
		close(results)
	}()

	pending := make(map[int][]float32)
	nextCI, emitted := 0, 0
	var emitErr error
	var scratch []byte
	for mc := range results {
		if emitErr != nil {
			continue // drain so the workers can finish
		}
		pending[mc.ci] = mc.samples
		for {
			samples, ok := pending[nextCI]
			if !ok {
				break
			}
			delete(pending, nextCI)

			scratch = scratch[:0]
			if opts.Float32 {
				scratch = wav.AppendFloat32LE(scratch, samples)
			} else {
				scratch = wav.AppendInt16LE(scratch, samples)
			}
			if err := opts.OnChunk(scratch); err != nil {
				emitErr = fmt.Errorf("emit chunk %d: %w", nextCI, err)
				aborted.Store(true)
				break
			}
			nextCI++
			emitted++
			if emitted%10 == 0 || emitted == chunkCount {
				pct := 65 + int(float64(emitted)/float64(chunkCount)*30.0)
				progress(pct, "Mixing audio")
			}
		}
	}
	return emitErr
}

func poolSize(n int) int {
	workers := maxWorkers()
	if workers > n {
		workers = n
	}
	if workers < 1 {
		workers = 1
	}
	return workers
}

func dedupSorted(s []string) []string {
	out := s[:0]
	for _, v := range s {
		if len(out) == 0 || v != out[len(out)-1] {
			out = append(out, v)
		}
	}
	return out
}
