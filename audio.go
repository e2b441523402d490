package audiodecoder

import (
	"context"
	"math"
)

// DefaultFileName is the memory-file path a binding loads its input under.
const DefaultFileName = "audio"

// ToEnd is the duration that decodes from start to the end of the stream.
const ToEnd = -1

// Properties describes a loaded audio file.
type Properties struct {
	SampleRate   uint32  `json:"sampleRate"`
	ChannelCount uint32  `json:"channelCount"`
	Encoding     string  `json:"encoding"`
	Duration     float64 `json:"duration"`
}

// Frames returns the number of sample frames the file holds.
func (p Properties) Frames() int64 {
	return int64(math.Round(p.Duration * float64(p.SampleRate)))
}

// Options tune a single decode call.
type Options struct {
	// MultiChannel keeps every channel, interleaved as
	// samples[frame*channelCount+channel]. Otherwise channels are averaged.
	MultiChannel bool `json:"multiChannel"`
}

// Native status codes. Negative values are failures.
const (
	StatusOK              = 0
	StatusError           = -1
	StatusNotFound        = -2
	StatusInvalidArgument = -22
	StatusUnsupported     = -40
	StatusInvalidData     = -1094995529
)

// Status is the result code of a native decoder call.
type Status struct {
	Code    int
	Message string
}

// OK is the successful status.
var OK = Status{Code: StatusOK}

// Failed reports whether the call failed.
func (s Status) Failed() bool {
	return s.Code < 0
}

// Module is the native decoder surface: a memory filesystem plus the probe
// and decode routines that read from it. Implementations are not safe for
// concurrent use; a binding serialises calls.
type Module interface {
	// WriteFile binds data to name, replacing any previous file.
	WriteFile(ctx context.Context, name string, data []byte) error

	// Unlink removes name. Missing files yield an fs.ErrNotExist error.
	Unlink(ctx context.Context, name string) error

	// Properties probes name.
	Properties(ctx context.Context, name string) (Properties, Status)

	// DecodeAudio decodes [start, start+duration) seconds of name. The
	// returned buffer may be non-nil even when the status failed and must be
	// released on every path.
	DecodeAudio(ctx context.Context, name string, start, duration float64, opts Options) (SampleBuffer, Status)

	// Close tears down the module instance.
	Close(ctx context.Context) error
}

// SampleBuffer is decoder-owned staging memory holding float32 samples.
type SampleBuffer interface {
	Len() int
	CopyTo(dst []float32) int
	// Release returns the memory to the decoder. Calls after the first are
	// no-ops.
	Release()
}

// ValidRange reports whether start and duration form a decodable range:
// start finite and non-negative, duration ToEnd or finite and positive.
func ValidRange(start, duration float64) bool {
	if math.IsNaN(start) || math.IsInf(start, 0) || start < 0 {
		return false
	}
	if duration == ToEnd {
		return true
	}
	return !math.IsNaN(duration) && !math.IsInf(duration, 0) && duration > 0
}
