// Package testbed holds fixtures shared by the module's tests and its
// end-to-end suites: synthetic WAV files and a minimal decoder guest module.
package testbed

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// WAVSpec describes a synthetic PCM file.
type WAVSpec struct {
	SampleRate int
	Channels   int
	BitDepth   int
	Frames     int
}

// StereoCD is 2 s of 16-bit stereo at 44100 Hz.
var StereoCD = WAVSpec{SampleRate: 44100, Channels: 2, BitDepth: 16, Frames: 88200}

// Value is the integer sample written at (frame, channel) for 16-bit files:
// a 256-step ramp on channel 0 and its negation offset by 512 on the others.
func Value(frame, channel int) int {
	v := (frame%256)*64 - 8192
	if channel == 0 {
		return v
	}
	return -v + 512*channel
}

// Float is Value normalised the way 16-bit decoders normalise it.
func Float(frame, channel int) float32 {
	return float32(Value(frame, channel)) / float32(audio.IntMaxSignedValue(16))
}

// WAV encodes spec with go-audio's encoder. Only 16-bit output uses Value
// verbatim; other depths scale it.
func WAV(spec WAVSpec) ([]byte, error) {
	dir, err := os.MkdirTemp("", "testbed-wav")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, "fixture.wav")
	if err := WriteWAV(path, spec); err != nil {
		return nil, err
	}
	return os.ReadFile(path)
}

// WriteWAV writes spec to path.
func WriteWAV(path string, spec WAVSpec) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := wav.NewEncoder(f, spec.SampleRate, spec.BitDepth, spec.Channels, 1)
	buf := &audio.IntBuffer{
		Format: &audio.Format{
			NumChannels: spec.Channels,
			SampleRate:  spec.SampleRate,
		},
		Data:           make([]int, spec.Frames*spec.Channels),
		SourceBitDepth: spec.BitDepth,
	}
	shift := spec.BitDepth - 16
	for i := 0; i < spec.Frames; i++ {
		for c := 0; c < spec.Channels; c++ {
			v := Value(i, c)
			switch {
			case spec.BitDepth == 8:
				v = v/256 + 128
			case shift > 0:
				v <<= shift
			}
			buf.Data[i*spec.Channels+c] = v
		}
	}
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("encode wav: %w", err)
	}
	return enc.Close()
}

// Garbage is input no decoder recognises.
func Garbage() []byte {
	return bytes.Repeat([]byte("not audio "), 64)
}
