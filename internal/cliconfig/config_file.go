package cliconfig

import (
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// FileConfig mirrors Config but uses strings for durations to make TOML friendly.
type FileConfig struct {
	Address        string `toml:"address" yaml:"address"`
	Mode           string `toml:"mode" yaml:"mode"`
	Strict         *bool  `toml:"strict" yaml:"strict"`
	ReceiveTimeout string `toml:"receive_timeout" yaml:"receive_timeout"`
	MaxPeers       int    `toml:"max_peers" yaml:"max_peers"`
	MaxFrameBytes  int    `toml:"max_frame_bytes" yaml:"max_frame_bytes"`
	Watch          *bool  `toml:"watch" yaml:"watch"`
	Target         string `toml:"target" yaml:"target"`
	RequestTimeout string `toml:"request_timeout" yaml:"request_timeout"`
	DialTimeout    string `toml:"dial_timeout" yaml:"dial_timeout"`
	LogLevel       string `toml:"log_level" yaml:"log_level"`
	LogFormat      string `toml:"log_format" yaml:"log_format"`
}

// LoadFileConfig reads and parses a config file from the given path.
// Files ending in .yaml or .yml are YAML; everything else is TOML.
func LoadFileConfig(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(b, &fc)
	default:
		err = toml.Unmarshal(b, &fc)
	}
	if err != nil {
		return fc, err
	}
	return fc, nil
}

// DefaultConfigPath returns ~/.tictoc/config.toml, or "" when the home
// directory is unknown.
func DefaultConfigPath() string {
	if h, err := os.UserHomeDir(); err == nil {
		return filepath.Join(h, ".tictoc", "config.toml")
	}
	return ""
}

// ApplyFileConfig applies configuration from a file to the Config struct.
// It respects flags that have been explicitly set (changed map).
func ApplyFileConfig(cfg *Config, fc FileConfig, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("address", fc.Address, &cfg.Address)
	s.setString("mode", fc.Mode, &cfg.Mode)
	s.setString("target", fc.Target, &cfg.Target)
	s.setString("log-level", fc.LogLevel, &cfg.LogLevel)
	s.setString("log-format", fc.LogFormat, &cfg.LogFormat)

	if err := s.setDuration("receive-timeout", fc.ReceiveTimeout, &cfg.ReceiveTimeout); err != nil {
		return err
	}
	if err := s.setDuration("request-timeout", fc.RequestTimeout, &cfg.RequestTimeout); err != nil {
		return err
	}
	if err := s.setDuration("dial-timeout", fc.DialTimeout, &cfg.DialTimeout); err != nil {
		return err
	}

	s.setInt("max-peers", fc.MaxPeers, &cfg.MaxPeers)
	s.setInt("max-frame-bytes", fc.MaxFrameBytes, &cfg.MaxFrameBytes)

	s.setBool("strict", fc.Strict, &cfg.Strict)
	s.setBool("watch", fc.Watch, &cfg.Watch)

	return nil
}

// FileExists checks if a file exists at the given path.
func FileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}
