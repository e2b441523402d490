package main

import (
	"bytes"
	"context"
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-audio/wav"

	audiodecoder "github.com/wippyai/audio-decoder"
	"github.com/wippyai/audio-decoder/runtime"
	"github.com/wippyai/audio-decoder/testbed"
)

func TestSplitRange(t *testing.T) {
	props := audiodecoder.Properties{SampleRate: 100, ChannelCount: 2, Duration: 10}

	tests := []struct {
		name     string
		start    float64
		duration float64
		seg      float64
		want     int // segments
		frames   int // total frames covered, -1 when the last runs to the end
	}{
		{"no segmenting", 1, 2, 0, 1, 200},
		{"short range", 1, 0.5, 1, 1, 50},
		{"even split", 0, 4, 1, 4, 400},
		{"ragged tail", 0.5, 2.25, 1, 3, 225},
		{"to end", 7, audiodecoder.ToEnd, 1, 3, -1},
		{"clamped to length", 9, 5, 0.5, 2, 100},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			spans := splitRange(tc.start, tc.duration, props, tc.seg)
			if len(spans) != tc.want {
				t.Fatalf("got %d spans %+v, want %d", len(spans), spans, tc.want)
			}

			frames := 0
			next := spans[0].start
			for i, sp := range spans {
				if math.Abs(sp.start-next) > 1e-9 {
					t.Fatalf("span %d starts at %v, want %v", i, sp.start, next)
				}
				if sp.duration == audiodecoder.ToEnd {
					frames = -1
					break
				}
				frames += int(math.Round(sp.duration * 100))
				next = sp.start + sp.duration
			}
			if frames != tc.frames {
				t.Fatalf("frames = %d, want %d", frames, tc.frames)
			}
		})
	}
}

func TestToPCM16(t *testing.T) {
	got := toPCM16([]float32{0, 1, -1, 2, -2, 0.5})
	want := []int{0, 32767, -32767, 32767, -32768, 16384}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("sample %d = %d, want %d", i, got[i], want[i])
		}
	}
}

func TestWriteWAV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.wav")
	samples := []float32{0, 0.5, -0.5, 1}
	if err := writeWAV(path, samples, 8000, 2); err != nil {
		t.Fatalf("writeWAV: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if dec.SampleRate != 8000 || dec.NumChans != 2 || dec.BitDepth != 16 {
		t.Fatalf("header = %d Hz %d ch %d bit", dec.SampleRate, dec.NumChans, dec.BitDepth)
	}
	want := toPCM16(samples)
	if len(buf.Data) != len(want) {
		t.Fatalf("len = %d", len(buf.Data))
	}
	for i := range want {
		if buf.Data[i] != want[i] {
			t.Fatalf("sample %d = %d, want %d", i, buf.Data[i], want[i])
		}
	}
}

func TestWriteRaw(t *testing.T) {
	var buf bytes.Buffer
	if err := writeRaw(&buf, []float32{0.25, -1}); err != nil {
		t.Fatal(err)
	}
	if buf.Len() != 8 {
		t.Fatalf("len = %d", buf.Len())
	}
	if v := math.Float32frombits(binary.LittleEndian.Uint32(buf.Bytes()[4:])); v != -1 {
		t.Fatalf("second sample = %v", v)
	}
}

func TestLevels(t *testing.T) {
	peak, rms := levels([]float32{0.5, -1, 0.5, 0})
	if peak != 1 {
		t.Fatalf("peak = %v", peak)
	}
	if math.Abs(rms-math.Sqrt(1.5/4)) > 1e-9 {
		t.Fatalf("rms = %v", rms)
	}
	if p, r := levels(nil); p != 0 || r != 0 {
		t.Fatal("levels(nil) should be zero")
	}
}

func TestDecodeSpans_MatchesSingleDecode(t *testing.T) {
	ctx := context.Background()
	rt, err := runtime.New(ctx)
	if err != nil {
		t.Fatal(err)
	}
	defer rt.Close(ctx)

	data, err := testbed.WAV(testbed.StereoCD)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		offload bool
	}{
		{"in process", false},
		{"offloaded", true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var s audioSession
			if tc.offload {
				s, err = asSession(rt.Offload(ctx, data, ""))
			} else {
				s, err = asSession(rt.Open(ctx, data, ""))
			}
			if err != nil {
				t.Fatal(err)
			}
			defer s.Dispose(ctx)

			props, _ := s.Properties()
			opts := audiodecoder.Options{MultiChannel: true}
			whole, err := s.DecodeAudioData(ctx, 0.25, 1.5, opts)
			if err != nil {
				t.Fatal(err)
			}
			split, err := decodeSpans(ctx, s, splitRange(0.25, 1.5, props, 0.1), opts, 4)
			if err != nil {
				t.Fatal(err)
			}
			if len(split) != len(whole) {
				t.Fatalf("segmented len = %d, whole = %d", len(split), len(whole))
			}
			for i := range whole {
				if split[i] != whole[i] {
					t.Fatalf("sample %d differs: %v vs %v", i, split[i], whole[i])
				}
			}
		})
	}
}
