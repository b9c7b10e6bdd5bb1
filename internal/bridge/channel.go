package bridge

import (
	"context"
	"errors"
)

// Channel is the host end of the bridge. Send delivers one command; Events
// yields remote events in the order the remote produced them. Events may be
// lost when the transport fails, so callers bound every wait with their own
// timeout. The events channel is never closed; stop reading via a context.
type Channel interface {
	Send(ctx context.Context, cmd Command) error
	Events() <-chan Event
}

// Observer is implemented by channels that can report remote attachment.
type Observer interface {
	Connected() bool
	// OnConnection registers f to be called whenever the remote attaches
	// or detaches. Only the last registered callback is kept.
	OnConnection(f func(connected bool))
}

var (
	// ErrDisconnected is returned by Send when no remote is attached.
	ErrDisconnected = errors.New("bridge: no engine host attached")
	// ErrClosed is returned after the channel has been closed.
	ErrClosed = errors.New("bridge: channel closed")
)
