// Package tictoc embeds the TIC/TOC control protocol in an application.
//
// A responder:
//
//	cfg := tictoc.DefaultConfig()
//	cfg.Session.Address = "tcp://*:5555"
//	if err := tictoc.Serve(ctx, cfg); err != nil {
//	    log.Fatal(err)
//	}
//
// A requester:
//
//	c, err := tictoc.Dial(ctx, "tcp://localhost:5555", codec.Narrow)
//	reply, err := c.Do(ctx, "TIC") // "TOC"
//	_, err = c.Do(ctx, "STOP")     // no reply, responder exits
package tictoc

import (
	"context"
	"fmt"

	"github.com/bft-labs/tictoc/pkg/codec"
	"github.com/bft-labs/tictoc/pkg/session"
	"github.com/bft-labs/tictoc/pkg/transport"
)

// Config combines the session settings with the TCP endpoint tuning.
type Config struct {
	Session session.Config
	TCP     transport.TCPConfig
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return Config{
		Session: session.DefaultConfig(),
		TCP:     transport.DefaultTCPConfig(),
	}
}

// Listen creates a session over TCP and binds it. The caller runs it with
// Run and releases it with Close.
func Listen(ctx context.Context, cfg Config, opts ...session.Option) (*session.Loop, error) {
	loop, err := session.New(cfg.Session, transport.NewTCPBinder(cfg.TCP), opts...)
	if err != nil {
		return nil, err
	}
	if err := loop.Bind(ctx); err != nil {
		return nil, err
	}
	return loop, nil
}

// Serve binds the responder and serves until STOP arrives or ctx is done.
func Serve(ctx context.Context, cfg Config, opts ...session.Option) error {
	loop, err := Listen(ctx, cfg, opts...)
	if err != nil {
		return err
	}
	defer loop.Close()
	return loop.Run(ctx)
}

// Client sends text commands to a responder.
type Client struct {
	req  *transport.Requester
	mode codec.Mode
}

// Dial connects to the responder at address, retrying until ctx is done.
func Dial(ctx context.Context, address string, mode codec.Mode) (*Client, error) {
	return DialWithConfig(ctx, address, mode, transport.DefaultRequesterConfig())
}

// DialWithConfig is Dial with explicit requester settings.
func DialWithConfig(ctx context.Context, address string, mode codec.Mode, cfg transport.RequesterConfig) (*Client, error) {
	req, err := transport.Dial(ctx, address, cfg)
	if err != nil {
		return nil, err
	}
	return &Client{req: req, mode: mode}, nil
}

// Do sends command and returns the decoded reply. STOP returns as soon as
// it is sent, with an empty reply.
func (c *Client) Do(ctx context.Context, command string) (string, error) {
	_, reply, err := c.Exchange(ctx, command)
	if err != nil || reply == nil {
		return "", err
	}
	return codec.DecodeText(reply, c.mode)
}

// Exchange is Do returning the raw request and reply frames. The reply is
// nil for STOP.
func (c *Client) Exchange(ctx context.Context, command string) (request, reply []byte, err error) {
	request, err = codec.EncodeText(command, c.mode)
	if err != nil {
		return nil, nil, err
	}
	if command == session.CommandStop {
		if err := c.req.Send(ctx, request); err != nil {
			return request, nil, fmt.Errorf("send %s: %w", command, err)
		}
		return request, nil, nil
	}
	reply, err = c.req.Request(ctx, request)
	if err != nil {
		return request, nil, fmt.Errorf("request %s: %w", command, err)
	}
	if reply == nil {
		reply = []byte{}
	}
	return request, reply, nil
}

// Close releases the connection.
func (c *Client) Close() error {
	return c.req.Close()
}
