// BMS renderer in Go
// Renders a chart and its keysounds to a WAV file (16-bit PCM or 32-bit
// float, stereo, 44.1 kHz).

package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/holybaechu/bmxtract"
	"github.com/holybaechu/bmxtract/cmd/internal/assets"
)

var (
	flagWav     = flag.String("wav", "", "output WAV file")
	flagF32     = flag.Bool("f32", false, "write 32-bit float samples instead of 16-bit PCM")
	flagDir     = flag.String("dir", "", "keysound directory, defaults to the chart's directory")
	flagVerbose = flag.Bool("v", false, "verbose logging")
)

func main() {
	log.SetFlags(0)
	log.SetPrefix("bmswav: ")
	flag.Parse()

	if flag.NArg() == 0 {
		log.Fatal("Missing BMS filename")
	}
	if *flagWav == "" {
		log.Fatal("No -wav option provided")
	}

	raw, err := os.ReadFile(flag.Arg(0))
	if err != nil {
		log.Fatal(err)
	}
	text, err := bmxtract.DecodeChartText(raw)
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

	out, err := os.Create(*flagWav)
	if err != nil {
		log.Fatal(err)
	}
	defer out.Close()

	err = bmxtract.RenderBMS(context.Background(), text, bmxtract.RenderOptions{
		Float32: *flagF32,
		Fetch:   loader.Fetch,
		OnChunk: func(b []byte) error {
			_, werr := out.Write(b)
			return werr
		},
		OnProgress: func(pct int, stage string) {
			fmt.Printf("\r%3d%% %-24s", pct, stage)
		},
		Logger: logger,
	})
	fmt.Println()
	if err != nil {
		out.Close()
		log.Fatal(err)
	}
}
