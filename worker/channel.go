package worker

import (
	"context"
	stderrors "errors"
	"sync"
)

// ErrClosed is returned by Send and Receive once a channel is closed.
var ErrClosed = stderrors.New("worker channel closed")

// ErrMalformed ends a channel whose peer sent a frame that could not be
// decoded. Receive returns it, wrapped with the details, after the messages
// queued before it.
var ErrMalformed = stderrors.New("malformed worker message")

// Channel is a bidirectional, per-direction FIFO message transport between a
// controller and a worker. Send never waits for the peer to receive.
// Receive must be called from one goroutine at a time.
type Channel interface {
	// ID identifies the channel in logs.
	ID() string
	Send(ctx context.Context, msg Message) error
	Receive(ctx context.Context) (Message, error)
	Close() error
}

// queue is an unbounded FIFO. Messages pushed before close are still
// delivered; afterwards pop returns ErrClosed.
type queue struct {
	mu     sync.Mutex
	items  []Message
	closed bool
	err    error
	ready  chan struct{}
	done   chan struct{}
	once   sync.Once
}

func newQueue() *queue {
	return &queue{
		ready: make(chan struct{}, 1),
		done:  make(chan struct{}),
	}
}

func (q *queue) push(m Message) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrClosed
	}
	q.items = append(q.items, m)
	select {
	case q.ready <- struct{}{}:
	default:
	}
	return nil
}

func (q *queue) pop(ctx context.Context) (Message, error) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			m := q.items[0]
			q.items[0] = Message{}
			q.items = q.items[1:]
			q.mu.Unlock()
			return m, nil
		}
		closed, err := q.closed, q.err
		q.mu.Unlock()

		if closed {
			if err != nil {
				return Message{}, err
			}
			return Message{}, ErrClosed
		}

		select {
		case <-q.ready:
		case <-q.done:
		case <-ctx.Done():
			return Message{}, ctx.Err()
		}
	}
}

func (q *queue) close() {
	q.fail(nil)
}

// fail closes q so that pop reports err instead of ErrClosed. Only the first
// close or fail counts.
func (q *queue) fail(err error) {
	q.once.Do(func() {
		q.mu.Lock()
		q.closed = true
		q.err = err
		q.mu.Unlock()
		close(q.done)
	})
}
