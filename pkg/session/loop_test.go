package session

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bft-labs/tictoc/pkg/codec"
	"github.com/bft-labs/tictoc/pkg/log"
	"github.com/bft-labs/tictoc/pkg/transport"
)

// fakeEndpoint is an in-memory transport.Endpoint fed by the test.
type fakeEndpoint struct {
	requests chan []byte
	replies  chan []byte
	done     chan struct{}

	mu         sync.Mutex
	closeCalls int
	pending    bool
}

func newFakeEndpoint() *fakeEndpoint {
	return &fakeEndpoint{
		requests: make(chan []byte, 16),
		replies:  make(chan []byte, 16),
		done:     make(chan struct{}),
	}
}

func (e *fakeEndpoint) Receive(ctx context.Context) ([]byte, error) {
	e.mu.Lock()
	if e.closeCalls > 0 {
		e.mu.Unlock()
		return nil, transport.ErrClosed
	}
	if e.pending {
		e.mu.Unlock()
		return nil, transport.ErrReplyPending
	}
	e.mu.Unlock()

	select {
	case <-e.done:
		return nil, transport.ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	case frame := <-e.requests:
		e.mu.Lock()
		e.pending = true
		e.mu.Unlock()
		return frame, nil
	}
}

func (e *fakeEndpoint) Send(ctx context.Context, frame []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closeCalls > 0 {
		return transport.ErrClosed
	}
	if !e.pending {
		return transport.ErrNoRequest
	}
	e.pending = false
	e.replies <- append([]byte(nil), frame...)
	return nil
}

func (e *fakeEndpoint) Addr() net.Addr {
	return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 5555}
}

func (e *fakeEndpoint) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closeCalls++
	if e.closeCalls == 1 {
		close(e.done)
	}
	return nil
}

func (e *fakeEndpoint) CloseCalls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closeCalls
}

type fakeBinder struct {
	ep    *fakeEndpoint
	err   error
	calls int
}

func (b *fakeBinder) Bind(ctx context.Context, address string) (transport.Endpoint, error) {
	b.calls++
	if b.err != nil {
		return nil, &transport.BindError{Address: address, Err: b.err}
	}
	return b.ep, nil
}

// testLogger records log lines for assertions.
type testLogger struct {
	mu    sync.Mutex
	lines []string
}

func (l *testLogger) Debug(msg string, fields ...log.Field) { l.log("DEBUG", msg, fields) }
func (l *testLogger) Info(msg string, fields ...log.Field)  { l.log("INFO", msg, fields) }
func (l *testLogger) Warn(msg string, fields ...log.Field)  { l.log("WARN", msg, fields) }
func (l *testLogger) Error(msg string, fields ...log.Field) { l.log("ERROR", msg, fields) }

func (l *testLogger) log(level, msg string, fields []log.Field) {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s", level, msg)
	for _, f := range fields {
		fmt.Fprintf(&b, " %s=%v", f.Key, f.Value)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = append(l.lines, b.String())
}

func (l *testLogger) Find(prefix string) []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []string
	for _, line := range l.lines {
		if strings.HasPrefix(line, prefix) {
			out = append(out, line)
		}
	}
	return out
}

// recorder captures loop events.
type recorder struct {
	mu          sync.Mutex
	transitions []string
	unexpected  []string
	malformed   int
}

func (r *recorder) OnStateChange(previous, current State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transitions = append(r.transitions, previous.String()+"->"+current.String())
}

func (r *recorder) OnUnexpectedCommand(token string, frame []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.unexpected = append(r.unexpected, token)
}

func (r *recorder) OnMalformedFrame(frame []byte, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.malformed++
}

func (r *recorder) snapshot() (transitions, unexpected []string, malformed int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.transitions...), append([]string(nil), r.unexpected...), r.malformed
}

type harness struct {
	loop   *Loop
	ep     *fakeEndpoint
	logger *testLogger
	events *recorder
	mode   codec.Mode
	runErr chan error
}

func newHarness(t *testing.T, cfg Config) *harness {
	t.Helper()
	h := &harness{
		ep:     newFakeEndpoint(),
		logger: &testLogger{},
		events: &recorder{},
		mode:   cfg.Mode,
		runErr: make(chan error, 1),
	}
	loop, err := New(cfg, &fakeBinder{ep: h.ep}, WithLogger(h.logger), WithEventHandler(h.events))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	h.loop = loop
	if err := loop.Bind(context.Background()); err != nil {
		t.Fatalf("Bind() error = %v", err)
	}
	return h
}

func (h *harness) start(ctx context.Context) {
	go func() { h.runErr <- h.loop.Run(ctx) }()
}

func (h *harness) send(t *testing.T, token string) {
	t.Helper()
	frame, err := codec.EncodeText(token, h.mode)
	if err != nil {
		t.Fatalf("EncodeText(%q) error = %v", token, err)
	}
	h.ep.requests <- frame
}

func (h *harness) reply(t *testing.T) string {
	t.Helper()
	select {
	case frame := <-h.ep.replies:
		s, err := codec.DecodeText(frame, h.mode)
		if err != nil {
			t.Fatalf("DecodeText(reply) error = %v", err)
		}
		return s
	case <-time.After(2 * time.Second):
		t.Fatal("no reply")
		return ""
	}
}

func (h *harness) wait(t *testing.T) error {
	t.Helper()
	select {
	case err := <-h.runErr:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("Run() did not return")
		return nil
	}
}

func TestLoop_TicGetsToc(t *testing.T) {
	for _, mode := range []codec.Mode{codec.Narrow, codec.Wide} {
		t.Run(mode.String(), func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Mode = mode
			h := newHarness(t, cfg)
			h.start(context.Background())

			for i := 0; i < 3; i++ {
				h.send(t, "TIC")
				if got := h.reply(t); got != ReplyToc {
					t.Fatalf("reply #%d = %q, want TOC", i, got)
				}
			}

			h.send(t, "STOP")
			if err := h.wait(t); err != nil {
				t.Errorf("Run() error = %v, want nil", err)
			}
		})
	}
}

func TestLoop_StopEndsWithoutReply(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	h.start(context.Background())

	h.send(t, "STOP")
	if err := h.wait(t); err != nil {
		t.Fatalf("Run() error = %v, want nil", err)
	}

	select {
	case frame := <-h.ep.replies:
		t.Errorf("unexpected reply %q to STOP", frame)
	default:
	}
	if got := h.loop.State(); got != StateClosed {
		t.Errorf("State() = %v, want Closed", got)
	}
	if got := h.ep.CloseCalls(); got != 1 {
		t.Errorf("endpoint closed %d times, want 1", got)
	}
	if _, err := h.ep.Receive(context.Background()); !errors.Is(err, transport.ErrClosed) {
		t.Errorf("Receive() after STOP error = %v, want ErrClosed", err)
	}

	transitions, _, _ := h.events.snapshot()
	want := []string{"Unbound->Listening", "Listening->Closed"}
	if strings.Join(transitions, ",") != strings.Join(want, ",") {
		t.Errorf("transitions = %v, want %v", transitions, want)
	}
}

func TestLoop_UnexpectedCommand(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	h.start(context.Background())

	h.send(t, "XYZ")
	if got := h.reply(t); got != ReplyToc {
		t.Errorf("reply = %q, want TOC", got)
	}
	h.send(t, "STOP")
	if err := h.wait(t); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	_, unexpected, _ := h.events.snapshot()
	if len(unexpected) != 1 || unexpected[0] != "XYZ" {
		t.Errorf("unexpected commands = %v, want [XYZ]", unexpected)
	}
	warns := h.logger.Find("[WARN] unexpected command")
	if len(warns) != 1 {
		t.Fatalf("warnings = %v, want one", warns)
	}
	if !strings.Contains(warns[0], "command=XYZ") || !strings.Contains(warns[0], "|#58(X)|#59(Y)|#5A(Z)|") {
		t.Errorf("warning %q lacks token or dump", warns[0])
	}
}

func TestLoop_StrictReplies(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Mode = codec.Wide
	cfg.Strict = true
	h := newHarness(t, cfg)
	h.start(context.Background())

	h.send(t, "XYZ")
	if got := h.reply(t); got != ReplyError {
		t.Errorf("strict reply to XYZ = %q, want ERR", got)
	}

	// Odd length is not decodable as wide text.
	h.ep.requests <- []byte{0x00, 0x54, 0x00}
	if got := h.reply(t); got != ReplyError {
		t.Errorf("strict reply to malformed frame = %q, want ERR", got)
	}

	h.send(t, "TIC")
	if got := h.reply(t); got != ReplyToc {
		t.Errorf("strict reply to TIC = %q, want TOC", got)
	}

	h.loop.SetStrict(false)
	h.send(t, "XYZ")
	if got := h.reply(t); got != ReplyToc {
		t.Errorf("lenient reply to XYZ = %q, want TOC", got)
	}

	h.send(t, "STOP")
	if err := h.wait(t); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	_, unexpected, malformed := h.events.snapshot()
	if len(unexpected) != 2 || malformed != 1 {
		t.Errorf("events: unexpected=%v malformed=%d, want 2 and 1", unexpected, malformed)
	}
}

func TestLoop_MalformedFrameGetsTocByDefault(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Mode = codec.Wide
	h := newHarness(t, cfg)
	h.start(context.Background())

	h.ep.requests <- []byte{0x41}
	if got := h.reply(t); got != ReplyToc {
		t.Errorf("reply = %q, want TOC", got)
	}
	h.send(t, "STOP")
	if err := h.wait(t); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(h.logger.Find("[WARN] malformed frame")) != 1 {
		t.Error("malformed frame not logged")
	}
}

func TestLoop_ContextCancel(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	ctx, cancel := context.WithCancel(context.Background())
	h.start(ctx)

	h.send(t, "TIC")
	h.reply(t)
	cancel()

	if err := h.wait(t); !errors.Is(err, context.Canceled) {
		t.Errorf("Run() error = %v, want context.Canceled", err)
	}
	if got := h.ep.CloseCalls(); got != 1 {
		t.Errorf("endpoint closed %d times, want 1", got)
	}
	if got := h.loop.State(); got != StateClosed {
		t.Errorf("State() = %v, want Closed", got)
	}
}

func TestLoop_ExternalClose(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	h.start(context.Background())

	h.send(t, "TIC")
	h.reply(t)
	if err := h.loop.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	if err := h.wait(t); !errors.Is(err, transport.ErrClosed) {
		t.Errorf("Run() error = %v, want ErrClosed", err)
	}
	if err := h.loop.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
	if got := h.ep.CloseCalls(); got != 1 {
		t.Errorf("endpoint closed %d times, want 1", got)
	}
}

func TestLoop_ReceiveTimeout(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ReceiveTimeout = 30 * time.Millisecond
	h := newHarness(t, cfg)
	h.start(context.Background())

	if err := h.wait(t); !errors.Is(err, ErrReceiveTimeout) {
		t.Errorf("Run() error = %v, want ErrReceiveTimeout", err)
	}
	if got := h.ep.CloseCalls(); got != 1 {
		t.Errorf("endpoint closed %d times, want 1", got)
	}
}

func TestLoop_BindFailure(t *testing.T) {
	binder := &fakeBinder{err: errors.New("address already in use")}
	loop, err := New(DefaultConfig(), binder)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	err = loop.Bind(context.Background())
	var bindErr *transport.BindError
	if !errors.As(err, &bindErr) {
		t.Fatalf("Bind() error = %v, want *BindError", err)
	}
	if bindErr.Address != DefaultAddress {
		t.Errorf("BindError.Address = %q, want %q", bindErr.Address, DefaultAddress)
	}
	if loop.State() != StateUnbound {
		t.Errorf("State() = %v, want Unbound", loop.State())
	}
	if loop.Addr() != nil {
		t.Errorf("Addr() = %v, want nil", loop.Addr())
	}
}

func TestLoop_LifecycleErrors(t *testing.T) {
	binder := &fakeBinder{ep: newFakeEndpoint()}
	loop, err := New(DefaultConfig(), binder)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if err := loop.Run(context.Background()); !errors.Is(err, ErrNotBound) {
		t.Errorf("Run() before Bind error = %v, want ErrNotBound", err)
	}
	if err := loop.Bind(context.Background()); err != nil {
		t.Fatalf("Bind() error = %v", err)
	}
	if err := loop.Bind(context.Background()); !errors.Is(err, ErrAlreadyBound) {
		t.Errorf("second Bind() error = %v, want ErrAlreadyBound", err)
	}
	if binder.calls != 1 {
		t.Errorf("binder called %d times, want 1", binder.calls)
	}
	if loop.Addr() == nil {
		t.Error("Addr() = nil after Bind")
	}

	loop.Close()
	if err := loop.Run(context.Background()); !errors.Is(err, transport.ErrClosed) {
		t.Errorf("Run() after Close error = %v, want ErrClosed", err)
	}
	if err := loop.Bind(context.Background()); !errors.Is(err, transport.ErrClosed) {
		t.Errorf("Bind() after Close error = %v, want ErrClosed", err)
	}
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name   string
		cfg    Config
		binder transport.Binder
	}{
		{"empty address", Config{Mode: codec.Narrow}, &fakeBinder{}},
		{"bad mode", Config{Address: DefaultAddress, Mode: codec.Mode(9)}, &fakeBinder{}},
		{"negative timeout", Config{Address: DefaultAddress, ReceiveTimeout: -time.Second}, &fakeBinder{}},
		{"nil binder", DefaultConfig(), nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.cfg, tt.binder); err == nil {
				t.Error("New() error = nil, want error")
			}
		})
	}
}

func TestState_String(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateUnbound, "Unbound"},
		{StateListening, "Listening"},
		{StateClosed, "Closed"},
		{State(42), "Unknown"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", tt.state, got, tt.want)
		}
	}
}
