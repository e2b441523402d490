package engine

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
	"go.uber.org/zap"

	"github.com/wippyai/audio-decoder/errors"
)

// WazeroEngine compiles and instantiates decoder modules on one wazero
// runtime. Compiled modules are cached by key.
type WazeroEngine struct {
	runtime      wazero.Runtime
	logger       *zap.Logger
	wasiInitMu   sync.Mutex
	wasiInitDone atomic.Bool

	mu       sync.Mutex
	compiled map[string]*WazeroModule
}

// Config holds configuration for engine creation
type Config struct {
	// MemoryLimitPages sets the maximum memory per instance in pages (64KB each).
	// 0 means default (65536 pages = 4GB).
	// 256 = 16MB, 1024 = 64MB, 4096 = 256MB
	MemoryLimitPages uint32

	// Logger receives engine events and guest stdout/stderr. Defaults to
	// the package logger.
	Logger *zap.Logger
}

// NewWazeroEngine creates a new wazero-based engine
func NewWazeroEngine(ctx context.Context) (*WazeroEngine, error) {
	return NewWazeroEngineWithConfig(ctx, nil)
}

// NewWazeroEngineWithConfig creates a new engine with custom configuration
func NewWazeroEngineWithConfig(ctx context.Context, cfg *Config) (*WazeroEngine, error) {
	runtimeCfg := wazero.NewRuntimeConfig()
	log := Logger()

	if cfg != nil {
		if cfg.MemoryLimitPages > 0 {
			runtimeCfg = runtimeCfg.WithMemoryLimitPages(cfg.MemoryLimitPages)
		}
		if cfg.Logger != nil {
			log = cfg.Logger
		}
	}

	return &WazeroEngine{
		runtime:  wazero.NewRuntimeWithConfig(ctx, runtimeCfg),
		logger:   log,
		compiled: make(map[string]*WazeroModule),
	}, nil
}

// Load compiles the module at locator, a file path or file:// URL. Repeated
// loads of the same locator share one compiled module.
func (e *WazeroEngine) Load(ctx context.Context, locator string) (*WazeroModule, error) {
	if m := e.cached(locator); m != nil {
		return m, nil
	}

	path := strings.TrimPrefix(locator, "file://")
	wasmBytes, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Load(fmt.Sprintf("read decoder module %q", locator), err)
	}
	return e.LoadModule(ctx, locator, wasmBytes)
}

// LoadModule compiles wasmBytes and caches the result under key. An empty
// key disables caching.
func (e *WazeroEngine) LoadModule(ctx context.Context, key string, wasmBytes []byte) (*WazeroModule, error) {
	if key != "" {
		if m := e.cached(key); m != nil {
			return m, nil
		}
	}

	compiled, err := e.runtime.CompileModule(ctx, wasmBytes)
	if err != nil {
		return nil, errors.Load("compile decoder module", err)
	}

	m := &WazeroModule{
		engine:   e,
		key:      key,
		compiled: compiled,
		needWASI: importsModule(compiled, wasiModuleName),
	}

	if key == "" {
		return m, nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if existing, ok := e.compiled[key]; ok {
		// lost a race with another loader
		if err := compiled.Close(ctx); err != nil {
			e.logger.Debug("close duplicate compiled module", zap.Error(err))
		}
		return existing, nil
	}
	e.compiled[key] = m
	e.logger.Debug("compiled decoder module", zap.String("key", key), zap.Bool("wasi", m.needWASI))
	return m, nil
}

// Instantiate loads locator and returns a fresh instance of it.
func (e *WazeroEngine) Instantiate(ctx context.Context, locator string) (*WazeroInstance, error) {
	m, err := e.Load(ctx, locator)
	if err != nil {
		return nil, err
	}
	return m.Instantiate(ctx)
}

// InstantiateBytes compiles wasmBytes without caching and returns a fresh
// instance of it.
func (e *WazeroEngine) InstantiateBytes(ctx context.Context, wasmBytes []byte) (*WazeroInstance, error) {
	m, err := e.LoadModule(ctx, "", wasmBytes)
	if err != nil {
		return nil, err
	}
	return m.Instantiate(ctx)
}

// Cached returns the number of compiled modules held.
func (e *WazeroEngine) Cached() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.compiled)
}

func (e *WazeroEngine) cached(key string) *WazeroModule {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.compiled[key]
}

// Close closes the runtime and every instance created from it.
func (e *WazeroEngine) Close(ctx context.Context) error {
	e.mu.Lock()
	e.compiled = make(map[string]*WazeroModule)
	e.mu.Unlock()
	return e.runtime.Close(ctx)
}

// InitWASI instantiates the WASI singleton for this engine's runtime.
// Safe to call more than once.
func (e *WazeroEngine) InitWASI(ctx context.Context) error {
	if e.wasiInitDone.Load() {
		return nil
	}

	e.wasiInitMu.Lock()
	defer e.wasiInitMu.Unlock()

	if e.wasiInitDone.Load() {
		return nil
	}

	if e.runtime.Module(wasiModuleName) != nil {
		e.wasiInitDone.Store(true)
		return nil
	}

	builder := e.runtime.NewHostModuleBuilder(wasiModuleName)
	wasi_snapshot_preview1.NewFunctionExporter().ExportFunctions(builder)
	if _, err := builder.Instantiate(ctx); err != nil {
		if e.runtime.Module(wasiModuleName) == nil {
			return fmt.Errorf("instantiate WASI: %w", err)
		}
	}

	e.wasiInitDone.Store(true)
	return nil
}

func importsModule(compiled wazero.CompiledModule, name string) bool {
	for _, def := range compiled.ImportedFunctions() {
		if mod, _, ok := def.Import(); ok && mod == name {
			return true
		}
	}
	for _, def := range compiled.ImportedMemories() {
		if mod, _, ok := def.Import(); ok && mod == name {
			return true
		}
	}
	return false
}

// WazeroModule is a compiled decoder module. It is safe for concurrent use.
type WazeroModule struct {
	engine   *WazeroEngine
	key      string
	compiled wazero.CompiledModule
	needWASI bool
}

// Instantiate creates an anonymous instance with its own linear memory.
// Missing ABI exports are reported as initialization errors.
func (m *WazeroModule) Instantiate(ctx context.Context) (*WazeroInstance, error) {
	if m.needWASI {
		if err := m.engine.InitWASI(ctx); err != nil {
			return nil, errors.Load("link WASI", err)
		}
	}

	log := m.engine.logger.With(zap.String("module", m.key))
	stdout := newGuestWriter(log, "stdout", zap.InfoLevel)
	stderr := newGuestWriter(log, "stderr", zap.WarnLevel)

	modConfig := wazero.NewModuleConfig().
		WithName(""). // anonymous for parallel instantiation
		WithStdout(stdout).
		WithStderr(stderr).
		WithStartFunctions(initializeFunc)

	instance, err := m.engine.runtime.InstantiateModule(ctx, m.compiled, modConfig)
	if err != nil {
		return nil, errors.Load("instantiate decoder module", err)
	}

	fail := func(detail string) (*WazeroInstance, error) {
		if cerr := instance.Close(ctx); cerr != nil {
			log.Debug("close rejected instance", zap.Error(cerr))
		}
		return nil, errors.Load(detail, nil)
	}

	mem := instance.ExportedMemory(ExportMemory)
	if mem == nil {
		return fail("decoder module exports no " + ExportMemory)
	}
	fns, missing := lookupExports(instance)
	if missing != "" {
		return fail(fmt.Sprintf("decoder module does not export %q", missing))
	}

	return &WazeroInstance{
		instance: instance,
		memory:   mem,
		fns:      fns,
		logger:   log,
		stdout:   stdout,
		stderr:   stderr,
	}, nil
}
