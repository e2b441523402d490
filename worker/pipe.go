package worker

import (
	"context"

	"github.com/google/uuid"
)

// Pipe returns the two ends of an in-process channel. Messages move by
// reference, so transferred buffers are never copied. Closing either end
// closes both directions.
func Pipe() (controller, remote Channel) {
	id := uuid.NewString()
	toRemote := newQueue()
	toController := newQueue()
	controller = &pipeEnd{id: id, in: toController, out: toRemote}
	remote = &pipeEnd{id: id, in: toRemote, out: toController}
	return controller, remote
}

type pipeEnd struct {
	id  string
	in  *queue
	out *queue
}

func (p *pipeEnd) ID() string {
	return p.id
}

func (p *pipeEnd) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return p.out.push(msg)
}

func (p *pipeEnd) Receive(ctx context.Context) (Message, error) {
	return p.in.pop(ctx)
}

func (p *pipeEnd) Close() error {
	p.in.close()
	p.out.close()
	return nil
}
