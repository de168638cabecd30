package session

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bft-labs/tictoc/pkg/codec"
)

// Protocol tokens.
const (
	CommandTic  = "TIC"
	CommandStop = "STOP"
	ReplyToc    = "TOC"
	ReplyError  = "ERR"
)

// DefaultAddress binds all interfaces on the conventional port.
const DefaultAddress = "tcp://*:5555"

// Config holds the settings of a Loop.
type Config struct {
	// Address is handed to the Binder, e.g. "tcp://*:5555".
	Address string

	// Mode selects the text encoding of commands and replies.
	Mode codec.Mode

	// Strict answers malformed frames and unrecognised commands with ERR
	// instead of TOC.
	Strict bool

	// ReceiveTimeout ends Run with ErrReceiveTimeout when no request arrives
	// in time. Zero waits forever.
	ReceiveTimeout time.Duration
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return Config{
		Address: DefaultAddress,
		Mode:    codec.Narrow,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Address) == "" {
		return errors.New("session: address is required")
	}
	if c.Mode != codec.Narrow && c.Mode != codec.Wide {
		return fmt.Errorf("session: invalid mode %d", int(c.Mode))
	}
	if c.ReceiveTimeout < 0 {
		return fmt.Errorf("session: receive timeout must not be negative, got %s", c.ReceiveTimeout)
	}
	return nil
}
