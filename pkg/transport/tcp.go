package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/panjf2000/ants"
	"golang.org/x/net/netutil"

	"github.com/bft-labs/tictoc/pkg/log"
)

// TCPConfig tunes a TCP responder endpoint.
type TCPConfig struct {
	// MaxPeers caps concurrently connected requesters. Further connections
	// wait in the kernel backlog until a slot frees up.
	MaxPeers int

	// MaxFrameBytes bounds request and reply frames.
	MaxFrameBytes int

	Logger log.Logger
}

// DefaultTCPConfig returns a TCPConfig with sensible defaults.
func DefaultTCPConfig() TCPConfig {
	return TCPConfig{
		MaxPeers:      64,
		MaxFrameBytes: DefaultMaxFrameBytes,
	}
}

// TCPBinder binds responder endpoints on TCP.
type TCPBinder struct {
	cfg TCPConfig
}

// NewTCPBinder creates a binder; zero config fields take their defaults.
func NewTCPBinder(cfg TCPConfig) *TCPBinder {
	def := DefaultTCPConfig()
	if cfg.MaxPeers <= 0 {
		cfg.MaxPeers = def.MaxPeers
	}
	if cfg.MaxFrameBytes <= 0 {
		cfg.MaxFrameBytes = def.MaxFrameBytes
	}
	if cfg.Logger == nil {
		cfg.Logger = log.NewNoopLogger()
	}
	return &TCPBinder{cfg: cfg}
}

// Bind listens on address and starts accepting requesters.
func (b *TCPBinder) Bind(ctx context.Context, address string) (Endpoint, error) {
	hostport, err := ParseAddress(address, false)
	if err != nil {
		return nil, &BindError{Address: address, Err: err}
	}

	var lc net.ListenConfig
	l, err := lc.Listen(ctx, "tcp", hostport)
	if err != nil {
		return nil, &BindError{Address: address, Err: err}
	}

	// Workers outlive their connection slot briefly while unwinding, so the
	// pool is sized above the listener limit.
	pool, err := ants.NewPool(2 * b.cfg.MaxPeers)
	if err != nil {
		l.Close()
		return nil, &BindError{Address: address, Err: err}
	}

	ep := &tcpEndpoint{
		listener: netutil.LimitListener(l, b.cfg.MaxPeers),
		pool:     pool,
		maxFrame: b.cfg.MaxFrameBytes,
		logger:   b.cfg.Logger,
		inbox:    make(chan *request),
		done:     make(chan struct{}),
		conns:    make(map[net.Conn]struct{}),
	}
	ep.acceptWG.Add(1)
	go ep.acceptLoop()

	b.cfg.Logger.Debug("endpoint bound", log.String("addr", l.Addr().String()))
	return ep, nil
}

// request is one frame waiting for its reply.
type request struct {
	frame []byte
	peer  string
	reply chan []byte
	sent  chan error
	gone  <-chan struct{}
}

// result reports a failed reply write as ErrPeerGone.
func (r *request) result(err error) error {
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrPeerGone, r.peer, err)
	}
	return nil
}

type tcpEndpoint struct {
	listener net.Listener
	pool     *ants.Pool
	maxFrame int
	logger   log.Logger

	inbox chan *request
	done  chan struct{}

	mu      sync.Mutex
	closed  bool
	pending *request
	conns   map[net.Conn]struct{}

	closeOnce sync.Once
	closeErr  error
	acceptWG  sync.WaitGroup
}

func (e *tcpEndpoint) Addr() net.Addr {
	return e.listener.Addr()
}

func (e *tcpEndpoint) Receive(ctx context.Context) ([]byte, error) {
	e.mu.Lock()
	switch {
	case e.closed:
		e.mu.Unlock()
		return nil, ErrClosed
	case e.pending != nil:
		e.mu.Unlock()
		return nil, ErrReplyPending
	}
	e.mu.Unlock()

	select {
	case <-e.done:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	case req := <-e.inbox:
		e.mu.Lock()
		e.pending = req
		e.mu.Unlock()
		return req.frame, nil
	}
}

func (e *tcpEndpoint) Send(ctx context.Context, frame []byte) error {
	if len(frame) > e.maxFrame {
		return fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, len(frame))
	}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrClosed
	}
	req := e.pending
	if req == nil {
		e.mu.Unlock()
		return ErrNoRequest
	}
	e.pending = nil
	e.mu.Unlock()

	out := make([]byte, len(frame))
	copy(out, frame)
	req.reply <- out

	select {
	case err := <-req.sent:
		return req.result(err)
	case <-req.gone:
		// The write may have completed just before the peer hung up.
		select {
		case err := <-req.sent:
			return req.result(err)
		default:
		}
		return fmt.Errorf("%w: %s", ErrPeerGone, req.peer)
	case <-e.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *tcpEndpoint) Close() error {
	e.closeOnce.Do(func() {
		e.mu.Lock()
		e.closed = true
		e.pending = nil
		conns := make([]net.Conn, 0, len(e.conns))
		for c := range e.conns {
			conns = append(conns, c)
		}
		e.mu.Unlock()

		close(e.done)
		e.closeErr = e.listener.Close()
		for _, c := range conns {
			c.Close()
		}
		e.acceptWG.Wait()
		e.pool.Release()
		e.logger.Debug("endpoint closed", log.String("addr", e.listener.Addr().String()))
	})
	return e.closeErr
}

func (e *tcpEndpoint) acceptLoop() {
	defer e.acceptWG.Done()
	for {
		conn, err := e.listener.Accept()
		if err != nil {
			select {
			case <-e.done:
				return
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return
			}
			e.logger.Warn("accept failed", log.Err(err))
			time.Sleep(50 * time.Millisecond)
			continue
		}

		if !e.track(conn) {
			conn.Close()
			return
		}
		if err := e.pool.Submit(func() { e.serveConn(conn) }); err != nil {
			e.logger.Warn("peer rejected", log.String("peer", conn.RemoteAddr().String()), log.Err(err))
			e.untrack(conn)
		}
	}
}

func (e *tcpEndpoint) track(conn net.Conn) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return false
	}
	e.conns[conn] = struct{}{}
	return true
}

func (e *tcpEndpoint) untrack(conn net.Conn) {
	e.mu.Lock()
	delete(e.conns, conn)
	e.mu.Unlock()
	conn.Close()
}

// serveConn reads one request at a time from a peer and writes back the
// reply handed over by Send.
func (e *tcpEndpoint) serveConn(conn net.Conn) {
	gone := make(chan struct{})
	defer close(gone)
	defer e.untrack(conn)

	peer := conn.RemoteAddr().String()
	fc := newFrameConn(conn, e.maxFrame)
	e.logger.Debug("peer connected", log.String("peer", peer))

	for {
		frame, err := fc.ReadFrame()
		switch {
		case err == nil:
		case errors.Is(err, ErrFrameTooLarge):
			e.logger.Warn("oversized frame, dropping peer",
				log.String("peer", peer),
				log.Err(err),
			)
			return
		default:
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				e.logger.Debug("peer read failed", log.String("peer", peer), log.Err(err))
			}
			return
		}

		req := &request{
			frame: frame,
			peer:  peer,
			reply: make(chan []byte, 1),
			sent:  make(chan error, 1),
			gone:  gone,
		}
		select {
		case e.inbox <- req:
		case <-e.done:
			return
		}

		select {
		case out := <-req.reply:
			err := fc.WriteFrame(out)
			req.sent <- err
			if err != nil {
				return
			}
		case <-e.done:
			return
		}
	}
}
