package runtime

import (
	"context"
	stderrors "errors"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	audiodecoder "github.com/wippyai/audio-decoder"
	"github.com/wippyai/audio-decoder/engine"
	"github.com/wippyai/audio-decoder/errors"
	"github.com/wippyai/audio-decoder/native"
	"github.com/wippyai/audio-decoder/testbed"
)

func newRuntime(t *testing.T, opts ...Option) *Runtime {
	t.Helper()
	ctx := context.Background()
	rt, err := New(ctx, append([]Option{WithLogger(zaptest.NewLogger(t))}, opts...)...)
	if err != nil {
		t.Fatalf("create runtime: %v", err)
	}
	t.Cleanup(func() { rt.Close(ctx) })
	return rt
}

func guestPath(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "guest.wasm")
	if err := os.WriteFile(path, testbed.GuestModule(), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func fixture(t *testing.T) []byte {
	t.Helper()
	data, err := testbed.WAV(testbed.StereoCD)
	if err != nil {
		t.Fatal(err)
	}
	return data
}

func TestRuntime_Load(t *testing.T) {
	ctx := context.Background()
	rt := newRuntime(t)
	guest := guestPath(t)

	tests := []struct {
		locator string
		native  bool
	}{
		{"", true},
		{"native", true},
		{"builtin", true},
		{guest, false},
		{"file://" + guest, false},
	}

	for _, tc := range tests {
		t.Run(tc.locator, func(t *testing.T) {
			mod, err := rt.Load(ctx, tc.locator)
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			defer mod.Close(ctx)

			switch mod.(type) {
			case *native.Module:
				if !tc.native {
					t.Fatal("got native module for a wasm locator")
				}
			case *engine.WazeroInstance:
				if tc.native {
					t.Fatal("got wasm instance for a native locator")
				}
			default:
				t.Fatalf("unexpected module %T", mod)
			}
		})
	}

	if _, err := rt.Load(ctx, filepath.Join(t.TempDir(), "missing.wasm")); !stderrors.Is(err, errors.ErrInitialization) {
		t.Fatalf("missing module: %v", err)
	}
}

func TestRuntime_Open(t *testing.T) {
	ctx := context.Background()
	rt := newRuntime(t)

	s, err := rt.Open(ctx, fixture(t), "")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Dispose(ctx)

	props, err := s.Properties()
	if err != nil {
		t.Fatal(err)
	}
	if props.SampleRate != 44100 || props.ChannelCount != 2 || props.Encoding != "pcm_s16le" {
		t.Fatalf("props = %+v", props)
	}

	mono, err := s.DecodeAudioData(ctx, 0.5, 1.0, audiodecoder.Options{})
	if err != nil || len(mono) != 44100 {
		t.Fatalf("mono: len %d, %v", len(mono), err)
	}
	multi, err := s.DecodeAudioData(ctx, 0.5, 1.0, audiodecoder.Options{MultiChannel: true})
	if err != nil || len(multi) != 88200 {
		t.Fatalf("multi: len %d, %v", len(multi), err)
	}
}

func TestRuntime_OpenFile(t *testing.T) {
	ctx := context.Background()
	rt := newRuntime(t)

	path := filepath.Join(t.TempDir(), "in.wav")
	if err := testbed.WriteWAV(path, testbed.StereoCD); err != nil {
		t.Fatal(err)
	}
	s, err := rt.OpenFile(ctx, path, "native")
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	s.Dispose(ctx)

	if _, err := rt.OpenFile(ctx, filepath.Join(t.TempDir(), "missing.wav"), ""); !stderrors.Is(err, errors.ErrInitialization) {
		t.Fatalf("missing file: %v", err)
	}
}

func TestRuntime_OpenWASM(t *testing.T) {
	ctx := context.Background()
	rt := newRuntime(t)

	s, err := rt.Open(ctx, []byte("opaque"), guestPath(t))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Dispose(ctx)

	props, err := s.Properties()
	if err != nil || props.Encoding != testbed.GuestEncoding {
		t.Fatalf("props = %+v, %v", props, err)
	}
	samples, err := s.DecodeAudioData(ctx, 0, audiodecoder.ToEnd, audiodecoder.Options{MultiChannel: true})
	if err != nil || len(samples) != len(testbed.GuestSamples) {
		t.Fatalf("samples = %v, %v", samples, err)
	}
}

func TestRuntime_Offload(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	rt := newRuntime(t)

	s, err := rt.Offload(ctx, fixture(t), "")
	if err != nil {
		t.Fatalf("Offload: %v", err)
	}
	defer s.Dispose(ctx)

	a := s.DecodeAsync(ctx, 0.5, 1.0, audiodecoder.Options{})
	b := s.DecodeAsync(ctx, 0.5, 1.0, audiodecoder.Options{MultiChannel: true})
	multi, err := b.Wait(ctx)
	if err != nil || len(multi) != 88200 {
		t.Fatalf("multi: len %d, %v", len(multi), err)
	}
	mono, err := a.Wait(ctx)
	if err != nil || len(mono) != 44100 {
		t.Fatalf("mono: len %d, %v", len(mono), err)
	}

	if _, err := rt.Offload(ctx, testbed.Garbage(), ""); !stderrors.Is(err, errors.ErrInitialization) {
		t.Fatalf("garbage: %v", err)
	}
}

func TestRuntime_ConnectHandler(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	rt := newRuntime(t)

	srv := httptest.NewServer(rt.Handler())
	defer srv.Close()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")

	s, err := rt.Connect(ctx, url, fixture(t), "")
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer s.Dispose(ctx)

	props, err := s.Properties()
	if err != nil || props.SampleRate != 44100 {
		t.Fatalf("props = %+v, %v", props, err)
	}
	samples, err := s.DecodeAudioData(ctx, 0.5, 1.0, audiodecoder.Options{MultiChannel: true})
	if err != nil {
		t.Fatalf("DecodeAudioData: %v", err)
	}
	if len(samples) != 88200 {
		t.Fatalf("len = %d", len(samples))
	}
	if samples[0] != testbed.Float(22050, 0) {
		t.Fatalf("first sample = %v, want %v", samples[0], testbed.Float(22050, 0))
	}
}

func TestRuntime_HandlerRemoteModules(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	guest := guestPath(t)

	tests := []struct {
		name  string
		allow bool
	}{
		{"disabled", false},
		{"enabled", true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rt := newRuntime(t, WithRemoteModules(tc.allow))
			srv := httptest.NewServer(rt.Handler())
			defer srv.Close()

			s, err := rt.Connect(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"), []byte("x"), guest)
			if !tc.allow {
				if !stderrors.Is(err, errors.ErrInitialization) {
					t.Fatalf("err = %v, want initialization error", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Connect: %v", err)
			}
			s.Dispose(ctx)
		})
	}
}

func TestRuntime_ConnectRefused(t *testing.T) {
	rt := newRuntime(t)
	srv := httptest.NewServer(nil)
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	srv.Close()

	if _, err := rt.Connect(context.Background(), url, []byte("x"), ""); !stderrors.Is(err, errors.ErrInitialization) {
		t.Fatalf("err = %v", err)
	}
}
