package offload

import (
	"context"
	stderrors "errors"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	audiodecoder "github.com/wippyai/audio-decoder"
	"github.com/wippyai/audio-decoder/errors"
	"github.com/wippyai/audio-decoder/session"
	"github.com/wippyai/audio-decoder/worker"
)

// Session is the controller side of an offloaded decoder session. Decodes
// are pipelined: any number may be in flight, and each response is matched
// to its request by id.
type Session struct {
	ch          worker.Channel
	logger      *zap.Logger
	onViolation func(error)

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	ack    chan worker.Message

	nextID     atomic.Uint64
	violations atomic.Int64

	mu        sync.Mutex
	state     session.State
	props     audiodecoder.Properties
	acked     bool
	failure   *errors.Error
	pending   map[uint64]*Pending
	abandoned map[uint64]struct{}
}

// Open hands data to the worker at the far end of ch and waits for it to
// acknowledge. On failure the channel is closed and an initialization error
// is returned. The session owns ch from here on.
func Open(ctx context.Context, ch worker.Channel, data []byte, locator string, opts ...Option) (*Session, error) {
	cfg := newConfig(opts)
	loopCtx, cancel := context.WithCancel(context.Background())
	s := &Session{
		ch:          ch,
		logger:      cfg.logger.With(zap.String("channel", ch.ID())),
		onViolation: cfg.onViolation,
		ctx:         loopCtx,
		cancel:      cancel,
		done:        make(chan struct{}),
		ack:         make(chan worker.Message, 1),
		pending:     make(map[uint64]*Pending),
		abandoned:   make(map[uint64]struct{}),
	}

	if err := ch.Send(ctx, worker.Initialize(data, locator)); err != nil {
		s.teardown()
		return nil, errors.Initialization(errors.PhaseController, "send initialize", err)
	}
	go s.readLoop()

	select {
	case msg := <-s.ack:
		return s.ready(msg)

	case <-s.done:
		// an ack read just before the channel closed still counts
		select {
		case msg := <-s.ack:
			return s.ready(msg)
		default:
		}
		s.shutdown()
		return nil, errors.Initialization(errors.PhaseController, "channel closed before initialize ack", s.failureCause())

	case <-ctx.Done():
		s.shutdown()
		return nil, errors.Initialization(errors.PhaseController, "await initialize ack", ctx.Err())
	}
}

// ready completes Open from the worker's initialize ack.
func (s *Session) ready(msg worker.Message) (*Session, error) {
	if msg.Error != nil {
		s.shutdown()
		return nil, initFailure(msg.Error.Err(0))
	}
	if msg.Properties == nil {
		s.shutdown()
		return nil, errors.Initialization(errors.PhaseController, "initialize ack without properties", nil)
	}
	s.mu.Lock()
	s.props = *msg.Properties
	s.state = session.StateReady
	s.mu.Unlock()
	s.logger.Debug("offloaded session ready", zap.String("encoding", s.props.Encoding))
	return s, nil
}

func initFailure(remote *errors.Error) error {
	if remote.Kind == errors.KindInitialization {
		return remote
	}
	return errors.Initialization(errors.PhaseController, "worker rejected initialize", remote)
}

// Properties returns the properties the worker reported.
func (s *Session) Properties() (audiodecoder.Properties, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != session.StateReady {
		return audiodecoder.Properties{}, errors.Resource(errors.PhaseController, "session is %s", s.state)
	}
	return s.props, nil
}

// DecodeAsync sends a decode request and returns without waiting for the
// result. ctx bounds only the send.
func (s *Session) DecodeAsync(ctx context.Context, start, duration float64, opts audiodecoder.Options) *Pending {
	p := newPending(s, start, duration)

	s.mu.Lock()
	switch {
	case s.state != session.StateReady:
		s.mu.Unlock()
		p.resolve(nil, errors.Resource(errors.PhaseController, "session is %s", s.state))
		return p
	case s.failure != nil:
		err := *s.failure
		s.mu.Unlock()
		p.resolve(nil, &err)
		return p
	}
	p.id = s.nextID.Add(1)
	s.pending[p.id] = p
	s.mu.Unlock()

	if err := s.ch.Send(ctx, worker.Decode(p.id, start, duration, opts)); err != nil {
		if s.take(p.id) {
			p.resolve(nil, errors.New(errors.PhaseController, errors.KindProtocol).
				Detail("send decode request").
				Cause(err).
				RequestID(p.id).
				Build())
		}
	}
	return p
}

// DecodeAudioData decodes [start, start+duration) seconds on the worker and
// waits for the result.
func (s *Session) DecodeAudioData(ctx context.Context, start, duration float64, opts audiodecoder.Options) ([]float32, error) {
	return s.DecodeAsync(ctx, start, duration, opts).Wait(ctx)
}

// Dispose rejects every pending request with a resource error, notifies the
// worker without waiting for a reply and closes the channel. Calling it
// again is a no-op.
func (s *Session) Dispose(ctx context.Context) {
	s.mu.Lock()
	if s.state == session.StateDisposed {
		s.mu.Unlock()
		s.logger.Debug("dispose on disposed session")
		return
	}
	s.state = session.StateDisposed
	pending := s.pending
	s.pending = make(map[uint64]*Pending)
	s.abandoned = make(map[uint64]struct{})
	s.mu.Unlock()

	for id, p := range pending {
		p.resolve(nil, errors.New(errors.PhaseController, errors.KindResource).
			Detail("session disposed").
			RequestID(id).
			Build())
	}

	if err := s.ch.Send(ctx, worker.Dispose()); err != nil {
		s.logger.Debug("send dispose", zap.Error(err))
	}
	s.shutdown()
}

// State returns the controller's lifecycle state.
func (s *Session) State() session.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// InFlight returns the number of requests awaiting a response.
func (s *Session) InFlight() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// abandonedCount returns the number of abandoned requests still awaiting
// a late response.
func (s *Session) abandonedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.abandoned)
}

// Violations returns the number of protocol violations seen so far.
func (s *Session) Violations() int64 {
	return s.violations.Load()
}

func (s *Session) readLoop() {
	defer close(s.done)
	for {
		msg, err := s.ch.Receive(s.ctx)
		if err != nil {
			s.fail(err)
			return
		}
		s.dispatch(msg)
	}
}

func (s *Session) dispatch(msg worker.Message) {
	switch msg.Type {
	case worker.TypeInitialize:
		s.mu.Lock()
		dup := s.acked
		s.acked = true
		s.mu.Unlock()
		if dup {
			s.violation(errors.Protocol(errors.PhaseController, "duplicate initialize ack"))
			return
		}
		s.ack <- msg

	case worker.TypeDecode, worker.TypeDecodeError:
		s.mu.Lock()
		if s.state == session.StateDisposed {
			s.mu.Unlock()
			s.logger.Debug("response after dispose", zap.Uint64("id", msg.ID))
			return
		}
		p, ok := s.pending[msg.ID]
		if ok {
			delete(s.pending, msg.ID)
		} else if _, gone := s.abandoned[msg.ID]; gone {
			delete(s.abandoned, msg.ID)
			s.mu.Unlock()
			s.logger.Debug("response for abandoned request", zap.Uint64("id", msg.ID))
			return
		}
		s.mu.Unlock()

		if !ok {
			s.violation(errors.Unmatched(errors.PhaseController, string(msg.Type), msg.ID))
			return
		}
		if msg.Type == worker.TypeDecode {
			samples := msg.Samples
			if samples == nil {
				samples = []float32{}
			}
			p.resolve(samples, nil)
			return
		}
		p.resolve(nil, remoteDecodeError(msg))

	default:
		s.violation(errors.Protocol(errors.PhaseController, "unexpected %q message", msg.Type))
	}
}

func remoteDecodeError(msg worker.Message) error {
	if msg.Error == nil {
		return errors.New(errors.PhaseWorker, errors.KindDecode).
			Detail("decode failed").
			RequestID(msg.ID).
			Build()
	}
	return msg.Error.Err(msg.ID)
}

// fail runs when the channel stops delivering. Unless the session was
// disposed, every pending request is rejected with a protocol error.
func (s *Session) fail(cause error) {
	s.mu.Lock()
	if s.state == session.StateDisposed {
		s.mu.Unlock()
		return
	}
	s.failure = errors.Wrap(errors.PhaseController, errors.KindProtocol, cause, "channel closed")
	pending := s.pending
	s.pending = make(map[uint64]*Pending)
	s.abandoned = make(map[uint64]struct{})
	s.mu.Unlock()

	if !stderrors.Is(cause, worker.ErrClosed) && !stderrors.Is(cause, context.Canceled) {
		s.logger.Warn("worker channel failed", zap.Error(cause))
	}
	for id, p := range pending {
		err := *s.failure
		err.RequestID = id
		p.resolve(nil, &err)
	}
}

func (s *Session) failureCause() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failure == nil {
		return nil
	}
	return s.failure
}

func (s *Session) violation(err *errors.Error) {
	s.violations.Add(1)
	s.logger.Error("protocol violation", zap.Error(err))
	if s.onViolation != nil {
		s.onViolation(err)
	}
}

// take removes id from the pending table, reporting whether it was there.
func (s *Session) take(id uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.pending[id]; !ok {
		return false
	}
	delete(s.pending, id)
	return true
}

// abandon removes p from the pending table so its response is dropped
// quietly. It reports false if p already resolved or is resolving.
func (s *Session) abandon(p *Pending) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.pending[p.id]; !ok {
		return false
	}
	delete(s.pending, p.id)
	s.abandoned[p.id] = struct{}{}
	return true
}

// shutdown closes the channel and waits for the read loop.
func (s *Session) shutdown() {
	s.teardown()
	<-s.done
}

func (s *Session) teardown() {
	s.cancel()
	if err := s.ch.Close(); err != nil {
		s.logger.Debug("close channel", zap.Error(err))
	}
}
