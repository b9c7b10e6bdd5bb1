package bridge

import (
	"context"
	"sync"
)

const defaultPipeBuffer = 64

// Pipe is an in-memory Channel. The host uses Send/Events; the remote side
// reads Commands and calls Emit.
type Pipe struct {
	cmds   chan Command
	events chan Event

	closeOnce sync.Once
	closed    chan struct{}
}

// NewPipe returns a pipe buffering up to buf commands and buf events
// (a default when buf <= 0).
func NewPipe(buf int) *Pipe {
	if buf <= 0 {
		buf = defaultPipeBuffer
	}
	return &Pipe{
		cmds:   make(chan Command, buf),
		events: make(chan Event, buf),
		closed: make(chan struct{}),
	}
}

// Send queues cmd for the remote side.
func (p *Pipe) Send(ctx context.Context, cmd Command) error {
	select {
	case <-p.closed:
		return ErrClosed
	default:
	}
	select {
	case p.cmds <- cmd:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-p.closed:
		return ErrClosed
	}
}

// Events returns the host-side event stream.
func (p *Pipe) Events() <-chan Event { return p.events }

// Commands returns the remote-side command stream.
func (p *Pipe) Commands() <-chan Command { return p.cmds }

// Emit delivers ev to the host.
func (p *Pipe) Emit(ctx context.Context, ev Event) error {
	select {
	case <-p.closed:
		return ErrClosed
	default:
	}
	select {
	case p.events <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-p.closed:
		return ErrClosed
	}
}

// Close makes further Send and Emit calls fail. Pending items stay readable.
func (p *Pipe) Close() {
	p.closeOnce.Do(func() { close(p.closed) })
}

// Done is closed by Close.
func (p *Pipe) Done() <-chan struct{} { return p.closed }
