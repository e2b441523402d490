package session

import (
	"context"
	"sync"

	"go.uber.org/zap"

	audiodecoder "github.com/wippyai/audio-decoder"
	"github.com/wippyai/audio-decoder/decoder"
	"github.com/wippyai/audio-decoder/errors"
)

// State is the lifecycle position of a Session.
type State int

const (
	StateUninitialized State = iota
	StateReady
	StateDisposed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateReady:
		return "ready"
	case StateDisposed:
		return "disposed"
	default:
		return "unknown"
	}
}

// Loader resolves a module locator to a fresh decoder module.
type Loader interface {
	Load(ctx context.Context, locator string) (audiodecoder.Module, error)
}

// LoaderFunc adapts a function to Loader.
type LoaderFunc func(ctx context.Context, locator string) (audiodecoder.Module, error)

// Load implements Loader.
func (f LoaderFunc) Load(ctx context.Context, locator string) (audiodecoder.Module, error) {
	return f(ctx, locator)
}

// Session owns one decoder binding for one audio file. All methods are safe
// for concurrent use; decodes run one at a time.
type Session struct {
	loader   Loader
	logger   *zap.Logger
	fileName string

	mu      sync.Mutex
	state   State
	binding *decoder.Binding
	props   audiodecoder.Properties
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the session's logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Session) {
		s.logger = l
	}
}

// WithFileName overrides the memory-file path used by the binding.
func WithFileName(name string) Option {
	return func(s *Session) {
		s.fileName = name
	}
}

// New creates an uninitialized session.
func New(loader Loader, opts ...Option) *Session {
	s := &Session{
		loader:   loader,
		logger:   Logger(),
		fileName: audiodecoder.DefaultFileName,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open creates a session and initializes it. On failure nothing is held.
func Open(ctx context.Context, loader Loader, data []byte, locator string, opts ...Option) (*Session, error) {
	s := New(loader, opts...)
	if _, err := s.Initialize(ctx, data, locator); err != nil {
		s.Dispose(ctx)
		return nil, err
	}
	return s, nil
}

// Initialize loads a fresh decoder module from locator and binds data to it.
// It is only valid once; a failed attempt leaves the session uninitialized.
func (s *Session) Initialize(ctx context.Context, data []byte, locator string) (audiodecoder.Properties, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateUninitialized {
		return audiodecoder.Properties{}, errors.Initialization(errors.PhaseSession, "session is "+s.state.String(), nil)
	}

	module, err := s.loader.Load(ctx, locator)
	if err != nil {
		return audiodecoder.Properties{}, errors.Initialization(errors.PhaseSession, "load decoder module", err)
	}

	binding := decoder.New(module, decoder.WithLogger(s.logger), decoder.WithFileName(s.fileName))
	props, err := binding.LoadFile(ctx, data)
	if err != nil {
		if cerr := binding.Close(ctx); cerr != nil {
			s.logger.Warn("close binding after failed load", zap.Error(cerr))
		}
		return audiodecoder.Properties{}, err
	}

	s.binding = binding
	s.props = props
	s.state = StateReady
	s.logger.Debug("session ready", zap.String("locator", locator), zap.String("encoding", props.Encoding))
	return props, nil
}

// Properties returns the cached properties of the loaded file.
func (s *Session) Properties() (audiodecoder.Properties, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateReady {
		return audiodecoder.Properties{}, errors.Resource(errors.PhaseSession, "session is %s", s.state)
	}
	return s.props, nil
}

// DecodeAudioData decodes [start, start+duration) seconds. A duration of
// audiodecoder.ToEnd decodes to the end of the file.
func (s *Session) DecodeAudioData(ctx context.Context, start, duration float64, opts audiodecoder.Options) ([]float32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateReady {
		return nil, errors.Resource(errors.PhaseSession, "session is %s", s.state)
	}
	return s.binding.Decode(ctx, start, duration, opts)
}

// Dispose releases the decoder and moves to StateDisposed. It waits for an
// in-flight decode. Calling it again is a no-op.
func (s *Session) Dispose(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateDisposed {
		s.logger.Debug("dispose on disposed session")
		return
	}
	s.state = StateDisposed

	if s.binding != nil {
		if err := s.binding.Close(ctx); err != nil {
			s.logger.Warn("release decoder", zap.Error(err))
		}
		s.binding = nil
	}
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}
