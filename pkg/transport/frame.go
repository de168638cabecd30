package transport

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"net"

	"github.com/smallnest/goframe"
)

// frameHeaderLen is the size of the length prefix on the wire.
const frameHeaderLen = 4

// DefaultMaxFrameBytes bounds frames when no limit is configured.
const DefaultMaxFrameBytes = 1 << 20

var (
	encoderConfig = goframe.EncoderConfig{
		ByteOrder:                       binary.BigEndian,
		LengthFieldLength:               frameHeaderLen,
		LengthAdjustment:                0,
		LengthIncludesLengthFieldLength: false,
	}

	// goframe requires a decoder config, but frames are read by frameConn.
	decoderConfig = goframe.DecoderConfig{
		ByteOrder:           binary.BigEndian,
		LengthFieldOffset:   0,
		LengthFieldLength:   frameHeaderLen,
		LengthAdjustment:    0,
		InitialBytesToStrip: frameHeaderLen,
	}
)

// frameConn reads and writes length-prefixed frames on one connection.
// Writes go through goframe's length-field encoder. Reads are done here so
// that a header split across segments is reassembled and an oversized
// declared length is rejected before anything is allocated.
type frameConn struct {
	r        *bufio.Reader
	w        *recordingConn
	enc      goframe.FrameConn
	maxFrame int
}

func newFrameConn(conn net.Conn, maxFrame int) *frameConn {
	if maxFrame <= 0 {
		maxFrame = DefaultMaxFrameBytes
	}
	w := &recordingConn{Conn: conn}
	return &frameConn{
		r:        bufio.NewReader(conn),
		w:        w,
		enc:      goframe.NewLengthFieldBasedFrameConn(encoderConfig, decoderConfig, w),
		maxFrame: maxFrame,
	}
}

// ReadFrame blocks for one whole frame. A declared length above the limit
// fails with ErrFrameTooLarge and leaves the stream unusable.
func (c *frameConn) ReadFrame() ([]byte, error) {
	var hdr [frameHeaderLen]byte
	if _, err := io.ReadFull(c.r, hdr[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(hdr[:])
	if uint64(n) > uint64(c.maxFrame) {
		return nil, fmt.Errorf("%w: peer declared %d bytes", ErrFrameTooLarge, n)
	}
	frame := make([]byte, n)
	if _, err := io.ReadFull(c.r, frame); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, err
	}
	return frame, nil
}

// WriteFrame writes one frame and reports any error from the underlying
// connection, including the one raised by the final flush.
func (c *frameConn) WriteFrame(p []byte) error {
	if len(p) > c.maxFrame {
		return fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, len(p))
	}
	c.w.err = nil
	if err := c.enc.WriteFrame(p); err != nil {
		return err
	}
	return c.w.err
}

// recordingConn keeps the first write error, which goframe drops when it
// flushes.
type recordingConn struct {
	net.Conn
	err error
}

func (c *recordingConn) Write(p []byte) (int, error) {
	n, err := c.Conn.Write(p)
	if err != nil && c.err == nil {
		c.err = err
	}
	return n, err
}
