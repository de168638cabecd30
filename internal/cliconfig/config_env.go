package cliconfig

import "os"

// ApplyEnvConfig applies configuration from environment variables (TICTOC_*).
// It respects flags that have been explicitly set (changed map).
// Returns error if any environment variable has an invalid format.
func ApplyEnvConfig(cfg *Config, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("address", os.Getenv("TICTOC_ADDRESS"), &cfg.Address)
	s.setString("mode", os.Getenv("TICTOC_MODE"), &cfg.Mode)
	s.setString("target", os.Getenv("TICTOC_TARGET"), &cfg.Target)
	s.setString("log-level", os.Getenv("TICTOC_LOG_LEVEL"), &cfg.LogLevel)
	s.setString("log-format", os.Getenv("TICTOC_LOG_FORMAT"), &cfg.LogFormat)

	if err := s.setDuration("receive-timeout", os.Getenv("TICTOC_RECEIVE_TIMEOUT"), &cfg.ReceiveTimeout); err != nil {
		return err
	}
	if err := s.setDuration("request-timeout", os.Getenv("TICTOC_REQUEST_TIMEOUT"), &cfg.RequestTimeout); err != nil {
		return err
	}
	if err := s.setDuration("dial-timeout", os.Getenv("TICTOC_DIAL_TIMEOUT"), &cfg.DialTimeout); err != nil {
		return err
	}

	if err := s.setIntFromString("max-peers", os.Getenv("TICTOC_MAX_PEERS"), &cfg.MaxPeers); err != nil {
		return err
	}
	if err := s.setIntFromString("max-frame-bytes", os.Getenv("TICTOC_MAX_FRAME_BYTES"), &cfg.MaxFrameBytes); err != nil {
		return err
	}
	if err := s.setIntFromString("count", os.Getenv("TICTOC_COUNT"), &cfg.Count); err != nil {
		return err
	}

	s.setBoolFromString("strict", os.Getenv("TICTOC_STRICT"), &cfg.Strict)
	s.setBoolFromString("watch", os.Getenv("TICTOC_WATCH"), &cfg.Watch)
	s.setBoolFromString("dump", os.Getenv("TICTOC_DUMP"), &cfg.Dump)

	return nil
}
