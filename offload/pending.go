package offload

import (
	"context"
)

// Pending is one in-flight decode request. It resolves exactly once.
type Pending struct {
	s        *Session
	id       uint64
	start    float64
	duration float64
	done     chan struct{}
	samples  []float32
	err      error
}

func newPending(s *Session, start, duration float64) *Pending {
	return &Pending{
		s:        s,
		start:    start,
		duration: duration,
		done:     make(chan struct{}),
	}
}

// ID returns the request id, or 0 if the request was rejected before it was
// sent.
func (p *Pending) ID() uint64 {
	return p.id
}

// Done is closed once the request resolves.
func (p *Pending) Done() <-chan struct{} {
	return p.done
}

// Wait blocks until the request resolves or ctx ends. When ctx ends first the
// request is abandoned: its eventual response is dropped without being
// reported as a protocol violation.
func (p *Pending) Wait(ctx context.Context) ([]float32, error) {
	select {
	case <-p.done:
		return p.samples, p.err
	case <-ctx.Done():
	}

	if !p.s.abandon(p) {
		// resolved while we were giving up
		<-p.done
		return p.samples, p.err
	}
	return nil, ctx.Err()
}

// resolve must be called at most once, by whoever removed p from the
// pending table.
func (p *Pending) resolve(samples []float32, err error) {
	p.samples = samples
	p.err = err
	close(p.done)
}
