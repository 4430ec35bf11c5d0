// Package transport carries opaque protocol messages between peers. The
// replication engine only sees Links; whether a link is an in-process pipe
// or a websocket hop through the relay is invisible to it.
package transport

import (
	"context"
	"errors"
)

var (
	// ErrAddressTaken means the address (a room code, usually) is already
	// claimed. Retryable with a fresh code.
	ErrAddressTaken = errors.New("transport: address already taken")
	// ErrPeerNotFound means nobody is listening under the dialed address.
	ErrPeerNotFound = errors.New("transport: peer not found")
	ErrLinkClosed   = errors.New("transport: link closed")
)

// Link is one bidirectional connection to a single peer. Messages arrive
// in order per link; nothing is guaranteed across links.
type Link interface {
	// RemoteAddr is the transport address of the other side.
	RemoteAddr() string
	// Send queues a message for the peer. Fails once the link is closed.
	Send(payload []byte) error
	// Recv delivers inbound messages. Consumers must also watch Done.
	Recv() <-chan []byte
	// Done is closed when the link is gone, whichever side closed it.
	Done() <-chan struct{}
	Close() error
}

// Listener accepts inbound links on a claimed address.
type Listener interface {
	Addr() string
	Accept() <-chan Link
	Close() error
}

// Transport establishes links. The host listens under the room code as its
// address; followers connect to that address.
type Transport interface {
	Listen(ctx context.Context, addr string) (Listener, error)
	Connect(ctx context.Context, addr string) (Link, error)
}
