// Package decoder binds a native decoder module to one loaded audio file.
//
// A Binding translates the module's negative status codes into structured
// errors and owns the release of every staging buffer the module hands back.
package decoder

import (
	"context"
	"sync"

	"go.uber.org/zap"

	audiodecoder "github.com/wippyai/audio-decoder"
	"github.com/wippyai/audio-decoder/errors"
)

// Decoder is the capability a session drives.
type Decoder interface {
	LoadFile(ctx context.Context, data []byte) (audiodecoder.Properties, error)
	Decode(ctx context.Context, start, duration float64, opts audiodecoder.Options) ([]float32, error)
	Unload(ctx context.Context) error
}

// Binding is a Decoder over an audiodecoder.Module. It is bound to at most
// one memory file at a time.
type Binding struct {
	module audiodecoder.Module
	name   string
	logger *zap.Logger

	mu     sync.Mutex
	loaded bool
	closed bool
}

var _ Decoder = (*Binding)(nil)

// Option configures a Binding.
type Option func(*Binding)

// WithLogger sets the binding's logger.
func WithLogger(l *zap.Logger) Option {
	return func(b *Binding) {
		b.logger = l
	}
}

// WithFileName overrides the memory-file path the input is bound to.
func WithFileName(name string) Option {
	return func(b *Binding) {
		b.name = name
	}
}

// New creates an unbound Binding over module.
func New(module audiodecoder.Module, opts ...Option) *Binding {
	b := &Binding{
		module: module,
		name:   audiodecoder.DefaultFileName,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// LoadFile binds data to the memory file and probes it. The binding takes
// ownership of data. On failure nothing stays bound.
func (b *Binding) LoadFile(ctx context.Context, data []byte) (audiodecoder.Properties, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch {
	case b.closed:
		return audiodecoder.Properties{}, errors.Resource(errors.PhaseBinding, "binding is closed")
	case b.loaded:
		return audiodecoder.Properties{}, errors.Initialization(errors.PhaseBinding, "a file is already loaded", nil)
	case len(data) == 0:
		return audiodecoder.Properties{}, errors.Initialization(errors.PhaseBinding, "empty input", nil)
	}

	if err := b.module.WriteFile(ctx, b.name, data); err != nil {
		return audiodecoder.Properties{}, errors.Initialization(errors.PhaseBinding, "write memory file", err)
	}

	props, st := b.module.Properties(ctx, b.name)
	if st.Failed() {
		if err := b.module.Unlink(ctx, b.name); err != nil {
			b.logger.Warn("unlink after failed probe", zap.String("file", b.name), zap.Error(err))
		}
		return audiodecoder.Properties{}, errors.FromStatus(errors.PhaseBinding, errors.KindInitialization, st.Code, st.Message)
	}

	b.loaded = true
	b.logger.Debug("file loaded",
		zap.String("encoding", props.Encoding),
		zap.Uint32("sample_rate", props.SampleRate),
		zap.Uint32("channels", props.ChannelCount),
		zap.Float64("duration", props.Duration),
	)
	return props, nil
}

// Decode returns a caller-owned copy of the requested range.
func (b *Binding) Decode(ctx context.Context, start, duration float64, opts audiodecoder.Options) ([]float32, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.loaded {
		return nil, errors.Resource(errors.PhaseBinding, "no file loaded")
	}
	if !audiodecoder.ValidRange(start, duration) {
		return nil, errors.New(errors.PhaseBinding, errors.KindDecode).
			Status(audiodecoder.StatusInvalidArgument).
			Detail("invalid range start=%v duration=%v", start, duration).
			Build()
	}

	buf, st := b.module.DecodeAudio(ctx, b.name, start, duration, opts)
	if buf != nil {
		defer buf.Release()
	}
	if st.Failed() {
		return nil, errors.FromStatus(errors.PhaseBinding, errors.KindDecode, st.Code, st.Message)
	}
	if buf == nil {
		return []float32{}, nil
	}

	samples := make([]float32, buf.Len())
	if n := buf.CopyTo(samples); n != len(samples) {
		return nil, errors.New(errors.PhaseBinding, errors.KindDecode).
			Status(audiodecoder.StatusInvalidData).
			Detail("staging buffer short: %d of %d samples", n, len(samples)).
			Build()
	}
	return samples, nil
}

// Unload releases the memory file. Unloading an unbound binding is a no-op.
// The binding is unbound afterwards even if the module reports an error.
func (b *Binding) Unload(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.unload(ctx)
}

func (b *Binding) unload(ctx context.Context) error {
	if !b.loaded {
		return nil
	}
	b.loaded = false
	if err := b.module.Unlink(ctx, b.name); err != nil {
		return errors.Wrap(errors.PhaseBinding, errors.KindResource, err, "unlink memory file")
	}
	return nil
}

// Loaded reports whether a file is bound.
func (b *Binding) Loaded() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.loaded
}

// Close unloads and tears down the module. Failures are logged; the first
// is returned. Later calls are no-ops.
func (b *Binding) Close(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true

	first := b.unload(ctx)
	if first != nil {
		b.logger.Warn("unload on close", zap.Error(first))
	}
	if err := b.module.Close(ctx); err != nil {
		b.logger.Warn("close decoder module", zap.Error(err))
		if first == nil {
			first = err
		}
	}
	return first
}
