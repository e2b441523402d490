package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	audiodecoder "github.com/wippyai/audio-decoder"
	"github.com/wippyai/audio-decoder/runtime"
)

// audioSession is what commands need from a session, in process or
// offloaded.
type audioSession interface {
	Properties() (audiodecoder.Properties, error)
	DecodeAudioData(ctx context.Context, start, duration float64, opts audiodecoder.Options) ([]float32, error)
	Dispose(ctx context.Context)
}

type app struct {
	cfg    settings
	logger *zap.Logger
	rt     *runtime.Runtime
}

func newApp(ctx context.Context, g *Globals, opts ...runtime.Option) (*app, error) {
	fc, err := loadConfig(g.Config)
	if err != nil {
		return nil, err
	}
	cfg := resolve(g, fc)

	logger, err := newLogger(cfg.LogLevel, cfg.LogJSON)
	if err != nil {
		return nil, err
	}

	rt, err := runtime.New(ctx, append([]runtime.Option{runtime.WithLogger(logger)}, opts...)...)
	if err != nil {
		logger.Sync()
		return nil, fmt.Errorf("create runtime: %w", err)
	}
	return &app{cfg: cfg, logger: logger, rt: rt}, nil
}

func newLogger(level string, json bool) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	cfg := zap.NewDevelopmentConfig()
	if json {
		cfg = zap.NewProductionConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	return cfg.Build()
}

func (a *app) close(ctx context.Context) {
	if err := a.rt.Close(ctx); err != nil {
		a.logger.Warn("close runtime", zap.Error(err))
	}
	_ = a.logger.Sync()
}

// open starts a session the way the config asks: on a remote worker, on a
// local worker goroutine, or in process.
func (a *app) open(ctx context.Context, data []byte) (audioSession, error) {
	var (
		s   audioSession
		err error
	)
	switch {
	case a.cfg.Remote != "":
		s, err = asSession(a.rt.Connect(ctx, a.cfg.Remote, data, a.cfg.Module))
	case a.cfg.Offload:
		s, err = asSession(a.rt.Offload(ctx, data, a.cfg.Module))
	default:
		s, err = asSession(a.rt.Open(ctx, data, a.cfg.Module))
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

// asSession keeps a failed open from yielding a non-nil interface.
func asSession[S audioSession](s S, err error) (audioSession, error) {
	if err != nil {
		return nil, err
	}
	return s, nil
}
