package main

import (
	"fmt"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"atomicgo.dev/keyboard"
	"atomicgo.dev/keyboard/keys"
	"github.com/fatih/color"
	"github.com/gordonklaus/portaudio"
	"github.com/holybaechu/bmxtract"
	"github.com/holybaechu/bmxtract/internal/comb"
)

const audioBufferSize = 1024

// playback streams a fully rendered mix through the reverb into portaudio.
type playback struct {
	samples []float32
	reverb  comb.Reverber

	pos     int
	paused  atomic.Bool
	played  atomic.Int64
	scratch []float32
	wet     []float32

	doneCh chan struct{}
	once   sync.Once
}

func newPlayback(samples []float32, reverb comb.Reverber) *playback {
	return &playback{
		samples: samples,
		reverb:  reverb,
		scratch: make([]float32, audioBufferSize*bmxtract.MixChannels),
		wet:     make([]float32, audioBufferSize*bmxtract.MixChannels),
		doneCh:  make(chan struct{}),
	}
}

// callback feeds the next block through the reverb and converts to i16 for
// the device. Once the source runs dry and the reverb is drained the done
// channel closes.
func (p *playback) callback(out []int16) {
	if p.paused.Load() {
		for i := range out {
			out[i] = 0
		}
		return
	}

	sc := p.scratch[:len(out)]
	n := copy(sc, p.samples[p.pos:])
	p.pos += n
	if n > 0 {
		p.reverb.InputSamples(sc[:n])
	}

	wet := p.wet[:len(out)]
	got := p.reverb.GetAudio(wet)
	for i := range out {
		if i < got {
			out[i] = clampToI16(wet[i])
		} else {
			out[i] = 0
		}
	}
	p.played.Add(int64(got))

	if n == 0 && got == 0 {
		p.finish()
	}
}

func (p *playback) finish() {
	p.once.Do(func() { close(p.doneCh) })
}

func clampToI16(v float32) int16 {
	s := v * 32767
	if s > 32767 {
		s = 32767
	} else if s < -32768 {
		s = -32768
	}
	return int16(s)
}

// play opens the default output device and runs until the mix finishes or
// the user quits. Space pauses, escape or q stops.
func play(samples []float32, reverb comb.Reverber) error {
	if err := portaudio.Initialize(); err != nil {
		return err
	}
	defer portaudio.Terminate()

	p := newPlayback(samples, reverb)

	stream, err := portaudio.OpenDefaultStream(
		0, bmxtract.MixChannels,
		float64(bmxtract.MixRate),
		audioBufferSize,
		p.callback,
	)
	if err != nil {
		return err
	}
	defer stream.Close()

	if err := stream.Start(); err != nil {
		return err
	}
	defer stream.Stop()

	sigch := make(chan os.Signal, 1)
	signal.Notify(sigch, syscall.SIGINT)
	go func() {
		<-sigch
		p.finish()
	}()

	keyboardDone := make(chan struct{})
	go func() {
		keyboard.Listen(func(key keys.Key) (bool, error) {
			switch key.Code {
			case keys.CtrlC, keys.Escape:
				p.finish()
				return true, nil
			case keys.Space:
				p.paused.Store(!p.paused.Load())
			case keys.RuneKey:
				if len(key.Runes) > 0 && key.Runes[0] == 'q' {
					p.finish()
					return true, nil
				}
			}
			return false, nil
		})
		close(keyboardDone)
	}()

	green := color.New(color.FgGreen).SprintfFunc()
	total := float64(len(samples)) / float64(bmxtract.MixRate*bmxtract.MixChannels)
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-p.doneCh:
			fmt.Println()
			select {
			case <-keyboardDone:
			case <-time.After(500 * time.Millisecond):
			}
			return nil
		case <-ticker.C:
			pos := float64(p.played.Load()) / float64(bmxtract.MixRate*bmxtract.MixChannels)
			state := "playing"
			if p.paused.Load() {
				state = "paused "
			}
			fmt.Printf("\r%s %s", green("%6.1fs/%6.1fs", pos, total), state)
		}
	}
}
