package core

import (
	"context"
	"errors"
)

var (
	ErrBackpressure = errors.New("backpressure")
	ErrLinkClosed   = errors.New("link closed")
)

// Frame is a raw text payload of one transport message.
type Frame []byte

// Link is one duplex connection to the lobby or a room.
// Owned by whoever dialed it; that owner must Close() it.
type Link interface {
	// TrySend queues a frame without blocking.
	TrySend(Frame) error
	// Recv blocks until the next inbound frame, in arrival order.
	Recv(ctx context.Context) (Frame, error)
	// Done is closed once the link is gone for any reason.
	Done() <-chan struct{}
	Close()
}

// Dialer opens links. Implemented by adapters/ws.
type Dialer interface {
	Dial(ctx context.Context, url string) (Link, error)
}
