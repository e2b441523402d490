package native

import (
	"context"
	"fmt"
	"io/fs"
	"sync"

	"go.uber.org/zap"

	audiodecoder "github.com/wippyai/audio-decoder"
	"github.com/wippyai/audio-decoder/resource"
)

// Module is a pure-Go decoder module. It is safe for concurrent use, though
// a binding only ever drives it from one goroutine at a time.
type Module struct {
	table   *resource.Table
	counter *resource.Counter
	logger  *zap.Logger

	mu    sync.Mutex
	files map[string]resource.Handle
}

// Option configures a Module.
type Option func(*Module)

// WithLogger overrides the package logger for one module.
func WithLogger(l *zap.Logger) Option {
	return func(m *Module) {
		m.logger = l
	}
}

// New creates an empty module.
func New(opts ...Option) *Module {
	m := &Module{
		table:   resource.NewTable(),
		counter: resource.NewCounter(),
		logger:  Logger(),
		files:   make(map[string]resource.Handle),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.table.Subscribe(m.counter)
	return m
}

var _ audiodecoder.Module = (*Module)(nil)

// WriteFile binds data to name, replacing any previous file.
// The module keeps a reference to data; callers hand over ownership.
func (m *Module) WriteFile(_ context.Context, name string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if old, ok := m.files[name]; ok {
		m.table.Remove(old)
		delete(m.files, name)
	}

	h := m.table.Insert(resource.TypeMemoryFile, data)
	if h == 0 {
		return &fs.PathError{Op: "write", Path: name, Err: fs.ErrClosed}
	}
	m.files[name] = h
	m.logger.Debug("file written", zap.String("name", name), zap.Int("bytes", len(data)))
	return nil
}

// Unlink removes name.
func (m *Module) Unlink(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	h, ok := m.files[name]
	if !ok {
		return &fs.PathError{Op: "unlink", Path: name, Err: fs.ErrNotExist}
	}
	delete(m.files, name)
	m.table.Remove(h)
	return nil
}

func (m *Module) file(name string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	h, ok := m.files[name]
	if !ok {
		return nil, false
	}
	return resource.Lookup[[]byte](m.table, h, resource.TypeMemoryFile)
}

// Properties probes name.
func (m *Module) Properties(_ context.Context, name string) (audiodecoder.Properties, audiodecoder.Status) {
	data, ok := m.file(name)
	if !ok {
		return audiodecoder.Properties{}, notFound(name)
	}

	m.logger.Debug("analyzing file", zap.String("name", name))
	s, st := open(data)
	if st.Failed() {
		return audiodecoder.Properties{}, st
	}
	defer s.close()

	return s.properties(), audiodecoder.OK
}

// DecodeAudio decodes a time range of name into a staging buffer. A buffer
// is returned on every path, including failures.
func (m *Module) DecodeAudio(_ context.Context, name string, start, duration float64, opts audiodecoder.Options) (audiodecoder.SampleBuffer, audiodecoder.Status) {
	buf := m.newStagingBuffer()

	if !audiodecoder.ValidRange(start, duration) {
		return buf, audiodecoder.Status{
			Code:    audiodecoder.StatusInvalidArgument,
			Message: fmt.Sprintf("invalid range start=%v duration=%v", start, duration),
		}
	}

	data, ok := m.file(name)
	if !ok {
		return buf, notFound(name)
	}

	s, st := open(data)
	if st.Failed() {
		return buf, st
	}
	defer s.close()

	samples, err := decodeRange(s, start, duration, opts)
	if err != nil {
		return buf, audiodecoder.Status{
			Code:    audiodecoder.StatusInvalidData,
			Message: fmt.Sprintf("decode %s: %v", name, err),
		}
	}
	buf.samples = samples
	return buf, audiodecoder.OK
}

// LiveBuffers returns the number of staging buffers not yet released.
func (m *Module) LiveBuffers() int {
	return m.counter.Live(resource.TypeStagingBuffer)
}

// Files returns the number of files in the memory filesystem.
func (m *Module) Files() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.files)
}

// Close drops every file and staging buffer still held.
func (m *Module) Close(_ context.Context) error {
	m.mu.Lock()
	m.files = make(map[string]resource.Handle)
	m.mu.Unlock()

	if n := m.LiveBuffers(); n > 0 {
		m.logger.Warn("closing module with unreleased staging buffers", zap.Int("count", n))
	}
	return m.table.Close()
}

func notFound(name string) audiodecoder.Status {
	return audiodecoder.Status{
		Code:    audiodecoder.StatusNotFound,
		Message: fmt.Sprintf("%s: no such file", name),
	}
}
