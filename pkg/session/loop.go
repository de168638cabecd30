package session

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"

	"github.com/bft-labs/tictoc/pkg/codec"
	"github.com/bft-labs/tictoc/pkg/diag"
	"github.com/bft-labs/tictoc/pkg/log"
	"github.com/bft-labs/tictoc/pkg/transport"
)

// Common loop errors.
var (
	ErrAlreadyBound   = errors.New("session: already bound")
	ErrNotBound       = errors.New("session: not bound")
	ErrAlreadyRunning = errors.New("session: already running")
	ErrReceiveTimeout = errors.New("session: receive timeout")
)

// Loop is the responder session. The zero value is not usable; create one
// with New.
type Loop struct {
	cfg    Config
	binder transport.Binder
	logger log.Logger
	events EventHandler

	tocFrame []byte
	errFrame []byte
	strict   atomic.Bool

	mu      sync.Mutex
	state   State
	ep      transport.Endpoint
	running bool
}

// New creates an unbound Loop.
func New(cfg Config, binder transport.Binder, opts ...Option) (*Loop, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if binder == nil {
		return nil, errors.New("session: binder is required")
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	toc, err := codec.EncodeText(ReplyToc, cfg.Mode)
	if err != nil {
		return nil, fmt.Errorf("session: encode reply: %w", err)
	}
	errReply, err := codec.EncodeText(ReplyError, cfg.Mode)
	if err != nil {
		return nil, fmt.Errorf("session: encode reply: %w", err)
	}

	l := &Loop{
		cfg:      cfg,
		binder:   binder,
		logger:   o.logger,
		events:   o.eventHandler,
		tocFrame: toc,
		errFrame: errReply,
		state:    StateUnbound,
	}
	l.strict.Store(cfg.Strict)
	return l, nil
}

// Bind reserves the configured endpoint and moves the loop to Listening.
// On failure the loop stays Unbound and the *transport.BindError is
// returned.
func (l *Loop) Bind(ctx context.Context) error {
	l.mu.Lock()
	switch l.state {
	case StateListening:
		l.mu.Unlock()
		return ErrAlreadyBound
	case StateClosed:
		l.mu.Unlock()
		return transport.ErrClosed
	}
	l.mu.Unlock()

	ep, err := l.binder.Bind(ctx, l.cfg.Address)
	if err != nil {
		l.logger.Error("bind failed", log.String("address", l.cfg.Address), log.Err(err))
		return err
	}

	l.mu.Lock()
	if l.state != StateUnbound {
		// Closed or bound concurrently while we were binding.
		prev := l.state
		l.mu.Unlock()
		ep.Close()
		if prev == StateClosed {
			return transport.ErrClosed
		}
		return ErrAlreadyBound
	}
	l.ep = ep
	l.state = StateListening
	l.mu.Unlock()

	l.logger.Info("listening",
		log.String("addr", ep.Addr().String()),
		log.String("mode", l.cfg.Mode.String()),
		log.Bool("strict", l.Strict()),
	)
	l.events.OnStateChange(StateUnbound, StateListening)
	return nil
}

// Run serves requests until STOP arrives, ctx is done, the loop is closed
// or the transport fails. It returns nil only for STOP. The endpoint is
// released on every exit path and the loop ends Closed.
func (l *Loop) Run(ctx context.Context) error {
	ep, err := l.start()
	if err != nil {
		return err
	}
	defer l.release()

	for {
		frame, err := l.receive(ctx, ep)
		if err != nil {
			return err
		}

		token, err := codec.DecodeText(frame, l.cfg.Mode)
		if err != nil {
			l.logger.Warn("malformed frame",
				log.Int("bytes", len(frame)),
				log.String("dump", diag.Format(frame)),
				log.Err(err),
			)
			l.events.OnMalformedFrame(frame, err)
			if err := l.reply(ctx, ep, l.rejectFrame()); err != nil {
				return err
			}
			continue
		}

		switch token {
		case CommandStop:
			l.logger.Info("stop received")
			return nil
		case CommandTic:
			l.logger.Debug("tic received")
			if err := l.reply(ctx, ep, l.tocFrame); err != nil {
				return err
			}
		default:
			l.logger.Warn("unexpected command",
				log.String("command", token),
				log.String("dump", diag.Format(frame)),
			)
			l.events.OnUnexpectedCommand(token, frame)
			if err := l.reply(ctx, ep, l.rejectFrame()); err != nil {
				return err
			}
		}
	}
}

// SetStrict switches strict replies on or off. Safe to call while Run is
// active; the next request observes the new value.
func (l *Loop) SetStrict(strict bool) {
	if l.strict.Swap(strict) != strict {
		l.logger.Info("strict mode changed", log.Bool("strict", strict))
	}
}

// Strict reports whether strict replies are enabled.
func (l *Loop) Strict() bool {
	return l.strict.Load()
}

// State returns the current lifecycle state.
func (l *Loop) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Addr returns the bound address, or nil before Bind.
func (l *Loop) Addr() net.Addr {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.ep == nil {
		return nil
	}
	return l.ep.Addr()
}

// Close releases the endpoint. A running Run returns transport.ErrClosed.
// Close is idempotent.
func (l *Loop) Close() error {
	return l.release()
}

func (l *Loop) start() (transport.Endpoint, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	switch {
	case l.state == StateUnbound:
		return nil, ErrNotBound
	case l.state == StateClosed:
		return nil, transport.ErrClosed
	case l.running:
		return nil, ErrAlreadyRunning
	}
	l.running = true
	return l.ep, nil
}

// release closes the endpoint exactly once and moves the loop to Closed.
func (l *Loop) release() error {
	l.mu.Lock()
	if l.state == StateClosed {
		l.mu.Unlock()
		return nil
	}
	prev := l.state
	ep := l.ep
	l.state = StateClosed
	l.mu.Unlock()

	var err error
	if ep != nil {
		err = ep.Close()
		l.logger.Info("endpoint released", log.String("addr", ep.Addr().String()))
	}
	l.events.OnStateChange(prev, StateClosed)
	return err
}

func (l *Loop) receive(ctx context.Context, ep transport.Endpoint) ([]byte, error) {
	rctx := ctx
	if l.cfg.ReceiveTimeout > 0 {
		var cancel context.CancelFunc
		rctx, cancel = context.WithTimeout(ctx, l.cfg.ReceiveTimeout)
		defer cancel()
	}

	frame, err := ep.Receive(rctx)
	switch {
	case err == nil:
		return frame, nil
	case ctx.Err() != nil:
		return nil, ctx.Err()
	case errors.Is(err, context.DeadlineExceeded):
		l.logger.Warn("no request received", log.Duration("timeout", l.cfg.ReceiveTimeout))
		return nil, fmt.Errorf("%w after %s", ErrReceiveTimeout, l.cfg.ReceiveTimeout)
	case errors.Is(err, transport.ErrClosed):
		return nil, err
	default:
		l.logger.Error("receive failed", log.Err(err))
		return nil, fmt.Errorf("session: receive: %w", err)
	}
}

func (l *Loop) reply(ctx context.Context, ep transport.Endpoint, frame []byte) error {
	err := ep.Send(ctx, frame)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, transport.ErrPeerGone):
		// The requester hung up; the next one is still owed service.
		l.logger.Warn("reply not delivered", log.Err(err))
		return nil
	case ctx.Err() != nil:
		return ctx.Err()
	case errors.Is(err, transport.ErrClosed):
		return err
	default:
		l.logger.Error("send failed", log.Err(err))
		return fmt.Errorf("session: send: %w", err)
	}
}

func (l *Loop) rejectFrame() []byte {
	if l.Strict() {
		return l.errFrame
	}
	return l.tocFrame
}
