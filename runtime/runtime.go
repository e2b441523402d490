package runtime

import (
	"context"
	"net/http"
	"os"

	"go.uber.org/zap"

	audiodecoder "github.com/wippyai/audio-decoder"
	"github.com/wippyai/audio-decoder/engine"
	"github.com/wippyai/audio-decoder/errors"
	"github.com/wippyai/audio-decoder/native"
	"github.com/wippyai/audio-decoder/offload"
	"github.com/wippyai/audio-decoder/session"
	"github.com/wippyai/audio-decoder/worker"
)

// Locators that select the built-in decoder.
const (
	LocatorDefault = ""
	LocatorNative  = "native"
	LocatorBuiltin = "builtin"
)

// Runtime creates decoder sessions. Every session gets a fresh decoder
// module; WebAssembly modules are compiled once per locator and shared.
type Runtime struct {
	engine *engine.WazeroEngine
	opts   *options
}

type options struct {
	logger           *zap.Logger
	memoryLimitPages uint32
	remoteModules    bool
	wsOpts           []worker.WebSocketOption
}

// Option configures a Runtime.
type Option func(*options)

// WithLogger sets the logger passed to every layer the runtime creates.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithMemoryLimitPages caps guest memory per WebAssembly decoder, in 64KB
// pages.
func WithMemoryLimitPages(pages uint32) Option {
	return func(o *options) {
		o.memoryLimitPages = pages
	}
}

// WithRemoteModules lets controllers connected through Handler pick a
// WebAssembly module by path. Otherwise they get the built-in decoder only.
func WithRemoteModules(allow bool) Option {
	return func(o *options) {
		o.remoteModules = allow
	}
}

// WithWebSocketOptions configures Connect and Handler channels.
func WithWebSocketOptions(opts ...worker.WebSocketOption) Option {
	return func(o *options) {
		o.wsOpts = append(o.wsOpts, opts...)
	}
}

// New creates a runtime.
func New(ctx context.Context, opts ...Option) (*Runtime, error) {
	o := &options{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(o)
	}

	eng, err := engine.NewWazeroEngineWithConfig(ctx, &engine.Config{
		MemoryLimitPages: o.memoryLimitPages,
		Logger:           o.logger.Named("engine"),
	})
	if err != nil {
		return nil, errors.Load("create engine", err)
	}

	return &Runtime{engine: eng, opts: o}, nil
}

// Close releases all runtime resources.
// All sessions must be disposed before calling this.
func (r *Runtime) Close(ctx context.Context) error {
	return r.engine.Close(ctx)
}

// Load implements session.Loader. The built-in locators yield a native
// decoder; anything else is a WebAssembly module path or file:// URL.
func (r *Runtime) Load(ctx context.Context, locator string) (audiodecoder.Module, error) {
	if IsNative(locator) {
		return native.New(native.WithLogger(r.opts.logger.Named("native"))), nil
	}
	inst, err := r.engine.Instantiate(ctx, locator)
	if err != nil {
		return nil, err
	}
	return inst, nil
}

// IsNative reports whether locator selects the built-in decoder.
func IsNative(locator string) bool {
	switch locator {
	case LocatorDefault, LocatorNative, LocatorBuiltin:
		return true
	}
	return false
}

// Open creates an in-process session over data.
func (r *Runtime) Open(ctx context.Context, data []byte, locator string) (*session.Session, error) {
	return session.Open(ctx, r, data, locator, session.WithLogger(r.opts.logger.Named("session")))
}

// OpenFile is Open on the contents of path.
func (r *Runtime) OpenFile(ctx context.Context, path, locator string) (*session.Session, error) {
	data, err := readAudio(path)
	if err != nil {
		return nil, err
	}
	return r.Open(ctx, data, locator)
}

// Offload creates a session whose decoder runs in its own worker goroutine.
func (r *Runtime) Offload(ctx context.Context, data []byte, locator string) (*offload.Session, error) {
	return offload.Spawn(ctx, r, data, locator, offload.WithLogger(r.opts.logger.Named("offload")))
}

// OffloadFile is Offload on the contents of path.
func (r *Runtime) OffloadFile(ctx context.Context, path, locator string) (*offload.Session, error) {
	data, err := readAudio(path)
	if err != nil {
		return nil, err
	}
	return r.Offload(ctx, data, locator)
}

// Connect dials a worker served by Handler and opens a session on it.
func (r *Runtime) Connect(ctx context.Context, url string, data []byte, locator string) (*offload.Session, error) {
	ch, err := worker.Dial(ctx, url, r.wsOptions()...)
	if err != nil {
		return nil, errors.Initialization(errors.PhaseController, "connect to worker", err)
	}
	return offload.Open(ctx, ch, data, locator, offload.WithLogger(r.opts.logger.Named("offload")))
}

// Handler serves one offloaded session per websocket connection.
func (r *Runtime) Handler() http.Handler {
	log := r.opts.logger.Named("worker")
	return worker.Handler(func(ctx context.Context, ch worker.Channel) {
		if err := offload.Serve(ctx, ch, remoteLoader{r}, offload.WithLogger(log)); err != nil {
			log.Warn("worker session ended", zap.String("channel", ch.ID()), zap.Error(err))
		}
	}, r.wsOptions()...)
}

func (r *Runtime) wsOptions() []worker.WebSocketOption {
	return append([]worker.WebSocketOption{worker.WithLogger(r.opts.logger.Named("channel"))}, r.opts.wsOpts...)
}

// remoteLoader guards module paths chosen by a remote controller.
type remoteLoader struct {
	r *Runtime
}

func (l remoteLoader) Load(ctx context.Context, locator string) (audiodecoder.Module, error) {
	if !IsNative(locator) && !l.r.opts.remoteModules {
		return nil, errors.Load("remote module locators are disabled: "+locator, nil)
	}
	return l.r.Load(ctx, locator)
}

func readAudio(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Initialization(errors.PhaseSession, "read audio file", err)
	}
	return data, nil
}

var _ session.Loader = (*Runtime)(nil)
