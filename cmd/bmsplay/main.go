// BMS player in Go
// Renders a chart and its keysounds up front, then plays the mix through
// portaudio with simple keyboard transport.

package main

import (
	"context"
	"encoding/binary"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"math"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/holybaechu/bmxtract"
	"github.com/holybaechu/bmxtract/cmd/internal/assets"
	"github.com/holybaechu/bmxtract/internal/comb"
)

var (
	flagReverb  = flag.String("reverb", "none", "reverb amount: none, light, medium or silly")
	flagDir     = flag.String("dir", "", "keysound directory, defaults to the chart's directory")
	flagVerbose = flag.Bool("v", false, "verbose logging")
)

func main() {
	log.SetFlags(0)
	log.SetPrefix("bmsplay: ")
	flag.Parse()

	if flag.NArg() == 0 {
		log.Fatal("Missing BMS filename")
	}

	raw, err := os.ReadFile(flag.Arg(0))
	if err != nil {
		log.Fatal(err)
	}
	text, err := bmxtract.DecodeChartText(raw)
	if err != nil {
		log.Fatal(err)
	}

	reverb, err := reverbFromFlag(*flagReverb, bmxtract.MixRate)
	if err != nil {
		log.Fatal(err)
	}

	level := slog.LevelWarn
	if *flagVerbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	dir := *flagDir
	if dir == "" {
		dir = filepath.Dir(flag.Arg(0))
	}
	loader, err := assets.NewLoader(dir, logger)
	if err != nil {
		log.Fatal(err)
	}

	if bms, err := bmxtract.Parse(text); err == nil {
		white := color.New(color.FgWhite).SprintFunc()
		cyan := color.New(color.FgCyan).SprintFunc()
		fmt.Printf("%s  %s\n", white(bms.Header.Title), cyan(bms.Header.Artist))
	}

	samples, err := render(text, loader, logger)
	if err != nil {
		log.Fatal(err)
	}

	if err := play(samples, reverb); err != nil {
		log.Fatal(err)
	}
}

// render runs the pipeline with float output and collects the raw samples,
// dropping the leading WAV header chunk.
func render(text string, loader *assets.Loader, logger *slog.Logger) ([]float32, error) {
	var samples []float32
	first := true
	err := bmxtract.RenderBMS(context.Background(), text, bmxtract.RenderOptions{
		Float32: true,
		Fetch:   loader.Fetch,
		OnChunk: func(b []byte) error {
			if first {
				first = false // WAV header
				return nil
			}
			for i := 0; i+4 <= len(b); i += 4 {
				samples = append(samples, math.Float32frombits(binary.LittleEndian.Uint32(b[i:])))
			}
			return nil
		},
		OnProgress: func(pct int, stage string) {
			fmt.Printf("\r%3d%% %-24s", pct, stage)
		},
		Logger: logger,
	})
	fmt.Println()
	return samples, err
}

// reverbFromFlag maps the command line flag to a Reverber.
func reverbFromFlag(reverb string, sampleRate int) (comb.Reverber, error) {
	rf := float32(0.2)
	rd := 150
	switch reverb {
	case "medium":
		rf = 0.3
		rd = 250
	case "silly":
		rf = 0.5
		rd = 2500
	case "none":
		rf = 0
		rd = 0
	case "light":
	default:
		return nil, fmt.Errorf("unrecognized reverb setting %q", reverb)
	}

	if rf == 0 {
		return comb.NewPassThrough(10 * 1024), nil
	}
	return comb.NewCombAdd(10*1024, rf, rd, sampleRate), nil
}
