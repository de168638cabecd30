package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
)

var (
	// ErrClosed is returned by every operation on a closed endpoint.
	ErrClosed = errors.New("transport: endpoint closed")

	// ErrReplyPending is returned by Receive while the previous request is
	// still unanswered, and by a Requester's Send while a reply is owed.
	ErrReplyPending = errors.New("transport: reply pending")

	// ErrNoRequest is returned by Send when no request is outstanding.
	ErrNoRequest = errors.New("transport: no outstanding request")

	// ErrPeerGone is returned by Send when the requesting peer disconnected
	// before the reply could be delivered.
	ErrPeerGone = errors.New("transport: peer disconnected")

	// ErrFrameTooLarge is returned when a frame exceeds the configured limit.
	ErrFrameTooLarge = errors.New("transport: frame too large")

	// ErrBind is the errors.Is target for every *BindError.
	ErrBind = errors.New("transport: bind failed")
)

// Endpoint is one bound responder socket.
type Endpoint interface {
	// Receive blocks until one whole request frame is available.
	Receive(ctx context.Context) ([]byte, error)

	// Send delivers the reply to the most recently received request and
	// blocks until it has been written.
	Send(ctx context.Context, frame []byte) error

	// Addr returns the bound local address.
	Addr() net.Addr

	// Close releases the endpoint. Blocked Receive and Send calls return
	// ErrClosed. Close is idempotent.
	Close() error
}

// Binder reserves responder endpoints.
type Binder interface {
	Bind(ctx context.Context, address string) (Endpoint, error)
}

// BindError reports an endpoint that could not be reserved.
type BindError struct {
	Address string
	Err     error
}

func (e *BindError) Error() string {
	return fmt.Sprintf("transport: bind %s: %v", e.Address, e.Err)
}

func (e *BindError) Unwrap() error { return e.Err }

func (e *BindError) Is(target error) bool { return target == ErrBind }
