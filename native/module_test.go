package native

import (
	"context"
	"errors"
	"io/fs"
	"math"
	"testing"

	"go.uber.org/zap/zaptest"

	audiodecoder "github.com/wippyai/audio-decoder"
	"github.com/wippyai/audio-decoder/testbed"
)

const name = audiodecoder.DefaultFileName

func newLoaded(t *testing.T, spec testbed.WAVSpec) *Module {
	t.Helper()
	data, err := testbed.WAV(spec)
	if err != nil {
		t.Fatalf("fixture: %v", err)
	}
	m := New(WithLogger(zaptest.NewLogger(t)))
	if err := m.WriteFile(context.Background(), name, data); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return m
}

func decode(t *testing.T, m *Module, start, duration float64, opts audiodecoder.Options) []float32 {
	t.Helper()
	buf, st := m.DecodeAudio(context.Background(), name, start, duration, opts)
	defer buf.Release()
	if st.Failed() {
		t.Fatalf("DecodeAudio(%v, %v): %+v", start, duration, st)
	}
	out := make([]float32, buf.Len())
	buf.CopyTo(out)
	return out
}

func TestModule_Properties(t *testing.T) {
	m := newLoaded(t, testbed.StereoCD)
	defer m.Close(context.Background())

	props, st := m.Properties(context.Background(), name)
	if st.Failed() {
		t.Fatalf("Properties: %+v", st)
	}
	want := audiodecoder.Properties{SampleRate: 44100, ChannelCount: 2, Encoding: "pcm_s16le", Duration: 2}
	if props != want {
		t.Fatalf("Properties = %+v, want %+v", props, want)
	}
}

func TestModule_DecodeCounts(t *testing.T) {
	m := newLoaded(t, testbed.StereoCD)
	defer m.Close(context.Background())

	tests := []struct {
		name     string
		start    float64
		duration float64
		multi    bool
		want     int
	}{
		{"one second mono", 0.5, 1.0, false, 44100},
		{"one second interleaved", 0.5, 1.0, true, 88200},
		{"to end", 0, audiodecoder.ToEnd, false, 88200},
		{"to end from middle", 1.5, audiodecoder.ToEnd, true, 44100},
		{"tenth of a second", 0, 0.1, false, 4410},
		{"fractional frame rounds up", 0, 1.5 / 44100, false, 2},
		{"truncated at end", 1.9, 1.0, false, 4410},
		{"start past end clamps", 10, 1, false, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := decode(t, m, tt.start, tt.duration, audiodecoder.Options{MultiChannel: tt.multi})
			if len(got) != tt.want {
				t.Fatalf("len = %d, want %d", len(got), tt.want)
			}
		})
	}

	if n := m.LiveBuffers(); n != 0 {
		t.Fatalf("LiveBuffers = %d after releases", n)
	}
}

func TestModule_DecodeValues(t *testing.T) {
	m := newLoaded(t, testbed.StereoCD)
	defer m.Close(context.Background())

	first := 22050
	multi := decode(t, m, 0.5, 0.01, audiodecoder.Options{MultiChannel: true})
	mono := decode(t, m, 0.5, 0.01, audiodecoder.Options{})

	for i := 0; i < len(mono); i++ {
		l, r := testbed.Float(first+i, 0), testbed.Float(first+i, 1)
		if !near(multi[i*2], l) || !near(multi[i*2+1], r) {
			t.Fatalf("frame %d interleaved = (%v, %v), want (%v, %v)", i, multi[i*2], multi[i*2+1], l, r)
		}
		if !near(mono[i], (l+r)/2) {
			t.Fatalf("frame %d mono = %v, want %v", i, mono[i], (l+r)/2)
		}
	}
}

func TestModule_DecodeIsRepeatable(t *testing.T) {
	m := newLoaded(t, testbed.StereoCD)
	defer m.Close(context.Background())

	a := decode(t, m, 0.25, 0.5, audiodecoder.Options{})
	b := decode(t, m, 0.25, 0.5, audiodecoder.Options{})
	if len(a) != len(b) {
		t.Fatalf("lengths differ: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("sample %d differs: %v vs %v", i, a[i], b[i])
		}
	}
}

func TestModule_Failures(t *testing.T) {
	ctx := context.Background()
	m := New()
	defer m.Close(ctx)

	if _, st := m.Properties(ctx, name); st.Code != audiodecoder.StatusNotFound {
		t.Fatalf("Properties on missing file: %+v", st)
	}

	if err := m.WriteFile(ctx, name, testbed.Garbage()); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, st := m.Properties(ctx, name); st.Code != audiodecoder.StatusInvalidData {
		t.Fatalf("Properties on garbage: %+v", st)
	}

	buf, st := m.DecodeAudio(ctx, name, 0, 1, audiodecoder.Options{})
	if !st.Failed() {
		t.Fatal("DecodeAudio on garbage should fail")
	}
	if buf == nil {
		t.Fatal("DecodeAudio must return a buffer on failure")
	}
	if m.LiveBuffers() != 1 {
		t.Fatalf("LiveBuffers = %d before release", m.LiveBuffers())
	}
	buf.Release()
	buf.Release()
	if m.LiveBuffers() != 0 {
		t.Fatalf("LiveBuffers = %d after release", m.LiveBuffers())
	}

	buf, st = m.DecodeAudio(ctx, name, -1, 1, audiodecoder.Options{})
	buf.Release()
	if st.Code != audiodecoder.StatusInvalidArgument {
		t.Fatalf("negative start: %+v", st)
	}
}

func TestModule_FileSystem(t *testing.T) {
	ctx := context.Background()
	m := New()

	if err := m.Unlink(ctx, name); !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("Unlink missing = %v, want fs.ErrNotExist", err)
	}

	m.WriteFile(ctx, name, []byte("a"))
	m.WriteFile(ctx, name, []byte("b"))
	if m.Files() != 1 {
		t.Fatalf("overwrite should keep one file, have %d", m.Files())
	}
	if data, _ := m.file(name); string(data) != "b" {
		t.Fatalf("file = %q, want overwritten contents", data)
	}

	if err := m.Unlink(ctx, name); err != nil {
		t.Fatalf("Unlink: %v", err)
	}
	if m.Files() != 0 {
		t.Fatal("file still present after Unlink")
	}

	if err := m.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := m.WriteFile(ctx, name, []byte("c")); !errors.Is(err, fs.ErrClosed) {
		t.Fatalf("WriteFile after Close = %v", err)
	}
}

func TestModule_CloseReleasesBuffers(t *testing.T) {
	m := newLoaded(t, testbed.StereoCD)
	buf, _ := m.DecodeAudio(context.Background(), name, 0, 0.1, audiodecoder.Options{})
	if m.LiveBuffers() != 1 {
		t.Fatal("expected one live buffer")
	}
	m.Close(context.Background())
	if m.LiveBuffers() != 0 {
		t.Fatalf("LiveBuffers = %d after Close", m.LiveBuffers())
	}
	buf.Release()
}

func near(a, b float32) bool {
	return math.Abs(float64(a-b)) < 1e-4
}
