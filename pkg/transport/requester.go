package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/bft-labs/tictoc/pkg/log"
)

// RequesterConfig tunes a Requester.
type RequesterConfig struct {
	// RetryInitial and RetryMax bound the backoff between dial attempts.
	RetryInitial time.Duration
	RetryMax     time.Duration

	MaxFrameBytes int

	Logger log.Logger
}

// DefaultRequesterConfig returns a RequesterConfig with sensible defaults.
func DefaultRequesterConfig() RequesterConfig {
	return RequesterConfig{
		RetryInitial:  100 * time.Millisecond,
		RetryMax:      2 * time.Second,
		MaxFrameBytes: DefaultMaxFrameBytes,
	}
}

// Requester is the client side of the request-reply pattern. Each Send must
// be followed by a Receive before the next Send. Safe for concurrent use;
// calls are serialised.
type Requester struct {
	mu       sync.Mutex
	conn     net.Conn
	fc       *frameConn
	maxFrame int
	awaiting bool
	closed   bool
}

// Dial connects to a responder, retrying with backoff until ctx is done.
func Dial(ctx context.Context, address string, cfg RequesterConfig) (*Requester, error) {
	def := DefaultRequesterConfig()
	if cfg.RetryInitial <= 0 {
		cfg.RetryInitial = def.RetryInitial
	}
	if cfg.RetryMax <= 0 {
		cfg.RetryMax = def.RetryMax
	}
	if cfg.MaxFrameBytes <= 0 {
		cfg.MaxFrameBytes = def.MaxFrameBytes
	}
	if cfg.Logger == nil {
		cfg.Logger = log.NewNoopLogger()
	}

	hostport, err := ParseAddress(address, true)
	if err != nil {
		return nil, err
	}

	backoff := NewBackoff(cfg.RetryInitial, cfg.RetryMax)
	var d net.Dialer
	for attempt := 1; ; attempt++ {
		conn, err := d.DialContext(ctx, "tcp", hostport)
		if err == nil {
			cfg.Logger.Debug("connected", log.String("addr", hostport), log.Int("attempt", attempt))
			return &Requester{
				conn:     conn,
				fc:       newFrameConn(conn, cfg.MaxFrameBytes),
				maxFrame: cfg.MaxFrameBytes,
			}, nil
		}
		cfg.Logger.Debug("dial failed",
			log.String("addr", hostport),
			log.Int("attempt", attempt),
			log.Err(err),
		)
		if werr := backoff.Wait(ctx); werr != nil {
			return nil, fmt.Errorf("transport: dial %s: %w", hostport, err)
		}
	}
}

// Send writes one request frame.
func (r *Requester) Send(ctx context.Context, frame []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch {
	case r.closed:
		return ErrClosed
	case r.awaiting:
		return ErrReplyPending
	case len(frame) > r.maxFrame:
		return fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, len(frame))
	}

	err := r.withDeadline(ctx, func() error {
		return r.fc.WriteFrame(frame)
	})
	if err != nil {
		return err
	}
	r.awaiting = true
	return nil
}

// Receive blocks for the reply to the last Send.
func (r *Requester) Receive(ctx context.Context) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch {
	case r.closed:
		return nil, ErrClosed
	case !r.awaiting:
		return nil, ErrNoRequest
	}

	var frame []byte
	err := r.withDeadline(ctx, func() error {
		var err error
		frame, err = r.fc.ReadFrame()
		return err
	})
	if err != nil {
		return nil, err
	}
	r.awaiting = false
	return frame, nil
}

// Request sends frame and waits for the reply.
func (r *Requester) Request(ctx context.Context, frame []byte) ([]byte, error) {
	if err := r.Send(ctx, frame); err != nil {
		return nil, err
	}
	return r.Receive(ctx)
}

// Close releases the connection. Close is idempotent.
func (r *Requester) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	return r.conn.Close()
}

// withDeadline runs op with the socket deadline following ctx. A cancelled
// context interrupts a blocked op by moving the deadline into the past.
func (r *Requester) withDeadline(ctx context.Context, op func() error) error {
	dl, _ := ctx.Deadline()
	if err := r.conn.SetDeadline(dl); err != nil {
		return err
	}
	stop := context.AfterFunc(ctx, func() {
		_ = r.conn.SetDeadline(time.Unix(1, 0))
	})
	defer stop()

	err := op()
	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return fmt.Errorf("transport: %w", context.DeadlineExceeded)
	}
	return err
}
