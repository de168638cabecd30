package cliconfig

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bft-labs/tictoc/pkg/codec"
	"github.com/bft-labs/tictoc/pkg/log"
)

// Default endpoints.
const (
	DefaultAddress = "tcp://*:5555"
	DefaultTarget  = "tcp://localhost:5555"
)

// Config holds CLI configuration for tictoc.
type Config struct {
	// Responder side.
	Address        string
	Mode           string
	Strict         bool
	ReceiveTimeout time.Duration
	MaxPeers       int
	MaxFrameBytes  int
	Watch          bool

	// Requester side.
	Target         string
	RequestTimeout time.Duration
	DialTimeout    time.Duration
	Count          int
	Dump           bool

	LogLevel  string
	LogFormat string

	// TextMode is derived from Mode by Validate.
	TextMode codec.Mode
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		Address:        DefaultAddress,
		Mode:           codec.Narrow.String(),
		MaxPeers:       64,
		MaxFrameBytes:  1 << 20, // 1MB
		Watch:          true,
		Target:         DefaultTarget,
		RequestTimeout: 5 * time.Second,
		DialTimeout:    10 * time.Second,
		Count:          1,
		LogLevel:       "info",
		LogFormat:      log.FormatConsole,
	}
}

// Validate checks the configuration for errors and sets derived values.
func (c *Config) Validate() error {
	c.Address = strings.TrimSpace(c.Address)
	if c.Address == "" {
		return fmt.Errorf("address is required")
	}
	c.Target = strings.TrimSpace(c.Target)
	if c.Target == "" {
		return fmt.Errorf("target is required")
	}

	mode, err := codec.ParseMode(c.Mode)
	if err != nil {
		return err
	}
	c.Mode = mode.String()
	c.TextMode = mode

	if c.MaxPeers <= 0 {
		return fmt.Errorf("max peers must be positive")
	}
	if c.MaxFrameBytes <= 0 {
		return fmt.Errorf("max frame bytes must be positive")
	}
	if c.Count <= 0 {
		return fmt.Errorf("count must be positive")
	}
	if c.ReceiveTimeout < 0 {
		return fmt.Errorf("receive timeout must not be negative")
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request timeout must be positive")
	}
	if c.DialTimeout <= 0 {
		return fmt.Errorf("dial timeout must be positive")
	}

	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		return err
	}
	c.LogFormat = strings.ToLower(strings.TrimSpace(c.LogFormat))
	switch c.LogFormat {
	case "":
		c.LogFormat = log.FormatConsole
	case log.FormatConsole, log.FormatJSON:
	default:
		return fmt.Errorf("unknown log format %q", c.LogFormat)
	}

	return nil
}

// configSetter helps apply configuration values while respecting flag precedence.
// It only applies values if the corresponding flag hasn't been explicitly set.
type configSetter struct {
	changed map[string]bool
}

func newConfigSetter(changed map[string]bool) *configSetter {
	return &configSetter{changed: changed}
}

// setString sets a string value if not empty and flag not changed.
func (s *configSetter) setString(flag, value string, dst *string) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value
}

// setInt sets an int value if positive and flag not changed.
func (s *configSetter) setInt(flag string, value int, dst *int) {
	if value <= 0 || s.changed[flag] {
		return
	}
	*dst = value
}

// setDuration parses and sets a duration from string if valid and flag not changed.
func (s *configSetter) setDuration(flag, value string, dst *time.Duration) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	*dst = d
	return nil
}

// setBool sets a bool value from a pointer if not nil and flag not changed.
func (s *configSetter) setBool(flag string, value *bool, dst *bool) {
	if value == nil || s.changed[flag] {
		return
	}
	*dst = *value
}

// setIntFromString parses a string to int and sets the destination if valid.
// Used for environment variables that come as strings.
func (s *configSetter) setIntFromString(flag, value string, dst *int) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	if i <= 0 {
		return nil
	}
	*dst = i
	return nil
}

// setBoolFromString parses a string to bool and sets the destination.
// Accepts "true", "1" as true, anything else as false.
func (s *configSetter) setBoolFromString(flag, value string, dst *bool) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value == "true" || value == "1"
}
