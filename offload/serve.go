package offload

import (
	"context"
	stderrors "errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/wippyai/audio-decoder/errors"
	"github.com/wippyai/audio-decoder/session"
	"github.com/wippyai/audio-decoder/worker"
)

// Serve runs the worker side of an offloaded session on ch until the
// controller disposes it, the channel closes, or ctx ends. Requests are
// handled one at a time in arrival order. The session is always disposed on
// return; a closed channel is not an error.
func Serve(ctx context.Context, ch worker.Channel, loader session.Loader, opts ...Option) error {
	cfg := newConfig(opts)
	log := cfg.logger.With(zap.String("channel", ch.ID()))
	w := &server{
		ch:   ch,
		log:  log,
		sess: session.New(loader, append([]session.Option{session.WithLogger(log)}, cfg.sessionOpts...)...),
	}
	defer w.sess.Dispose(context.Background())

	for {
		msg, err := ch.Receive(ctx)
		if err != nil {
			if stderrors.Is(err, worker.ErrClosed) {
				log.Debug("channel closed, releasing session")
				return nil
			}
			return err
		}

		reply, stop := w.handle(ctx, msg)
		if stop {
			log.Debug("disposed by controller")
			return nil
		}
		if reply == nil {
			continue
		}
		if err := ch.Send(ctx, *reply); err != nil {
			if stderrors.Is(err, worker.ErrClosed) {
				return nil
			}
			return err
		}
	}
}

type server struct {
	ch          worker.Channel
	log         *zap.Logger
	sess        *session.Session
	initialized bool
}

func (w *server) handle(ctx context.Context, msg worker.Message) (*worker.Message, bool) {
	switch msg.Type {
	case worker.TypeInitialize:
		reply := w.initialize(ctx, msg)
		return &reply, false

	case worker.TypeDecode:
		reply := w.decode(ctx, msg)
		return &reply, false

	case worker.TypeDispose:
		return nil, true

	default:
		err := errors.Protocol(errors.PhaseWorker, "unexpected %q message", msg.Type)
		w.log.Error("protocol violation", zap.Error(err))
		if msg.ID == 0 {
			return nil, false
		}
		reply := worker.DecodeError(msg.ID, errors.ToWire(err, errors.PhaseWorker, errors.KindProtocol))
		return &reply, false
	}
}

func (w *server) initialize(ctx context.Context, msg worker.Message) (reply worker.Message) {
	if w.initialized {
		err := errors.Initialization(errors.PhaseWorker, "worker already initialized", nil)
		return worker.InitializeFailed(errors.ToWire(err, errors.PhaseWorker, errors.KindInitialization))
	}
	w.initialized = true

	defer func() {
		if r := recover(); r != nil {
			w.log.Error("initialize panicked", zap.Any("panic", r))
			err := errors.Initialization(errors.PhaseWorker, fmt.Sprintf("panic: %v", r), nil)
			reply = worker.InitializeFailed(errors.ToWire(err, errors.PhaseWorker, errors.KindInitialization))
		}
	}()

	props, err := w.sess.Initialize(ctx, msg.Payload, msg.Locator)
	if err != nil {
		w.log.Debug("initialize failed", zap.Error(err))
		return worker.InitializeFailed(errors.ToWire(err, errors.PhaseWorker, errors.KindInitialization))
	}
	return worker.InitializeAck(props)
}

func (w *server) decode(ctx context.Context, msg worker.Message) (reply worker.Message) {
	defer func() {
		if r := recover(); r != nil {
			w.log.Error("decode panicked", zap.Uint64("id", msg.ID), zap.Any("panic", r))
			err := errors.Decode(errors.PhaseWorker, fmt.Sprintf("panic: %v", r), nil)
			reply = worker.DecodeError(msg.ID, errors.ToWire(err, errors.PhaseWorker, errors.KindDecode))
		}
	}()

	samples, err := w.sess.DecodeAudioData(ctx, msg.Start, msg.Duration, msg.DecodeOptions())
	if err != nil {
		return worker.DecodeError(msg.ID, errors.ToWire(err, errors.PhaseWorker, errors.KindDecode))
	}
	return worker.DecodeResult(msg.ID, samples)
}

// Spawn starts a worker in a new goroutine, connected to the returned
// session by an in-process pipe. The worker exits when the session is
// disposed.
func Spawn(ctx context.Context, loader session.Loader, data []byte, locator string, opts ...Option) (*Session, error) {
	ctrl, remote := worker.Pipe()
	log := newConfig(opts).logger
	go func() {
		if err := Serve(context.Background(), remote, loader, opts...); err != nil {
			log.Warn("worker exited", zap.Error(err))
		}
	}()
	return Open(ctx, ctrl, data, locator, opts...)
}

