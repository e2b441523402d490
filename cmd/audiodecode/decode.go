package main

import (
	"bufio"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/term"

	audiodecoder "github.com/wippyai/audio-decoder"
)

type decodeCmd struct {
	File         string  `arg:"" name:"file" help:"Audio file to decode." type:"existingfile"`
	Start        float64 `help:"Start offset in seconds." default:"0"`
	Duration     float64 `help:"Seconds to decode; -1 decodes to the end." default:"-1"`
	MultiChannel bool    `name:"multi-channel" short:"m" help:"Keep channels interleaved instead of averaging them."`
	Segment      float64 `help:"Decode in segments of this many seconds, several in flight at once." default:"0"`
	Jobs         int     `help:"Segments in flight." default:"4"`
	Out          string  `short:"o" help:"Output file: .wav writes 16-bit PCM, anything else raw float32 LE. Defaults to stdout when it is not a terminal." type:"path"`
}

func (c *decodeCmd) Run(g *Globals) error {
	ctx := context.Background()
	a, err := newApp(ctx, g)
	if err != nil {
		return err
	}
	defer a.close(ctx)

	data, err := os.ReadFile(c.File)
	if err != nil {
		return fmt.Errorf("read input: %w", err)
	}
	s, err := a.open(ctx, data)
	if err != nil {
		return err
	}
	defer s.Dispose(ctx)

	props, err := s.Properties()
	if err != nil {
		return err
	}

	began := time.Now()
	opts := audiodecoder.Options{MultiChannel: c.MultiChannel}
	spans := splitRange(c.Start, c.Duration, props, c.Segment)
	samples, err := decodeSpans(ctx, s, spans, opts, c.Jobs)
	if err != nil {
		return err
	}

	channels := 1
	if c.MultiChannel {
		channels = int(props.ChannelCount)
	}
	a.logger.Debug("decoded",
		zap.Int("samples", len(samples)),
		zap.Int("segments", len(spans)),
		zap.Duration("elapsed", time.Since(began)))

	switch {
	case strings.EqualFold(filepath.Ext(c.Out), ".wav"):
		return writeWAV(c.Out, samples, int(props.SampleRate), channels)
	case c.Out != "":
		f, err := os.Create(c.Out)
		if err != nil {
			return err
		}
		if err := writeRaw(f, samples); err != nil {
			f.Close()
			return err
		}
		return f.Close()
	case !term.IsTerminal(int(os.Stdout.Fd())):
		return writeRaw(os.Stdout, samples)
	default:
		printSummary(os.Stdout, samples, channels, props)
		return nil
	}
}

// span is a decode request in seconds.
type span struct {
	start    float64
	duration float64
}

// splitRange cuts [start, start+duration) into segments of seg seconds.
// Boundaries are computed in whole frames so segments neither overlap nor
// leave gaps.
func splitRange(start, duration float64, props audiodecoder.Properties, seg float64) []span {
	rate := float64(props.SampleRate)
	if seg <= 0 || rate == 0 {
		return []span{{start, duration}}
	}

	first := int64(math.Floor(start*rate + 1e-9))
	total := props.Frames()
	last := total
	if duration != audiodecoder.ToEnd {
		last = min(total, first+int64(math.Ceil(duration*rate-1e-9)))
	}
	step := max(int64(math.Round(seg*rate)), 1)
	if last-first <= step {
		return []span{{start, duration}}
	}

	var spans []span
	for f := first; f < last; f += step {
		n := min(step, last-f)
		spans = append(spans, span{float64(f) / rate, float64(n) / rate})
	}
	if duration == audiodecoder.ToEnd {
		// the probed duration may be short of the real stream
		spans[len(spans)-1].duration = audiodecoder.ToEnd
	}
	return spans
}

func decodeSpans(ctx context.Context, s audioSession, spans []span, opts audiodecoder.Options, jobs int) ([]float32, error) {
	results := make([][]float32, len(spans))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(jobs, 1))
	for i, sp := range spans {
		i, sp := i, sp
		g.Go(func() error {
			samples, err := s.DecodeAudioData(gctx, sp.start, sp.duration, opts)
			if err != nil {
				return fmt.Errorf("segment %d at %.3fs: %w", i, sp.start, err)
			}
			results[i] = samples
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var n int
	for _, r := range results {
		n += len(r)
	}
	out := make([]float32, 0, n)
	for _, r := range results {
		out = append(out, r...)
	}
	return out, nil
}

// toPCM16 scales [-1, 1] floats to 16-bit integers, clipping.
func toPCM16(samples []float32) []int {
	maxVal := float64(audio.IntMaxSignedValue(16))
	out := make([]int, len(samples))
	for i, v := range samples {
		x := math.Round(float64(v) * maxVal)
		out[i] = int(max(-maxVal-1, min(maxVal, x)))
	}
	return out
}

func writeWAV(path string, samples []float32, rate, channels int) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := wav.NewEncoder(f, rate, 16, channels, 1)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: channels, SampleRate: rate},
		Data:           toPCM16(samples),
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("write wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("finish wav: %w", err)
	}
	return f.Close()
}

func writeRaw(w io.Writer, samples []float32) error {
	bw := bufio.NewWriter(w)
	if err := binary.Write(bw, binary.LittleEndian, samples); err != nil {
		return err
	}
	return bw.Flush()
}

// levels returns the peak and RMS of samples.
func levels(samples []float32) (peak, rms float64) {
	if len(samples) == 0 {
		return 0, 0
	}
	var sum float64
	for _, v := range samples {
		x := float64(v)
		peak = max(peak, math.Abs(x))
		sum += x * x
	}
	return peak, math.Sqrt(sum / float64(len(samples)))
}

func printSummary(w io.Writer, samples []float32, channels int, props audiodecoder.Properties) {
	peak, rms := levels(samples)
	frames := len(samples) / max(channels, 1)
	fmt.Fprintln(w, titleStyle.Render("Decoded"))
	fmt.Fprintf(w, "%s %d frames × %d ch (%.3fs of %s @ %d Hz)\n",
		resultStyle.Render("samples"), frames, channels,
		float64(frames)/float64(max(props.SampleRate, 1)), props.Encoding, props.SampleRate)
	fmt.Fprintf(w, "%s peak %.4f  rms %.4f\n", resultStyle.Render("levels "), peak, rms)
	fmt.Fprintln(w, helpStyle.Render("pipe stdout or pass --out to keep the samples"))
}
