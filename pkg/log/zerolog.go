package log

import (
	"fmt"
	"io"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// Output formats accepted by New.
const (
	FormatConsole = "console"
	FormatJSON    = "json"
)

// ZerologAdapter implements Logger using zerolog. Its level can be changed
// while other goroutines log.
type ZerologAdapter struct {
	logger zerolog.Logger
	level  atomic.Int32
}

// New builds a timestamped zerolog logger writing to out.
// format is FormatConsole or FormatJSON; level is a zerolog level name.
func New(out io.Writer, format, level string) (*ZerologAdapter, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}
	switch strings.ToLower(format) {
	case "", FormatConsole:
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	case FormatJSON:
	default:
		return nil, fmt.Errorf("log: unknown format %q", format)
	}
	z := &ZerologAdapter{logger: zerolog.New(out).With().Timestamp().Logger()}
	z.SetLevel(lvl)
	return z, nil
}

// NewZerologAdapterWithLogger wraps an existing zerolog.Logger, keeping its
// level.
func NewZerologAdapterWithLogger(logger zerolog.Logger) *ZerologAdapter {
	z := &ZerologAdapter{logger: logger}
	z.SetLevel(logger.GetLevel())
	return z
}

// ParseLevel maps a level name to a zerolog level. Empty means info.
func ParseLevel(level string) (zerolog.Level, error) {
	if strings.TrimSpace(level) == "" {
		return zerolog.InfoLevel, nil
	}
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		return zerolog.NoLevel, fmt.Errorf("log: %w", err)
	}
	return lvl, nil
}

// SetLevel changes the minimum level of subsequent log lines.
func (z *ZerologAdapter) SetLevel(level zerolog.Level) {
	z.level.Store(int32(level))
}

// Level returns the current minimum level.
func (z *ZerologAdapter) Level() zerolog.Level {
	return zerolog.Level(z.level.Load())
}

func (z *ZerologAdapter) Debug(msg string, fields ...Field) {
	z.emit(zerolog.DebugLevel, msg, fields)
}

func (z *ZerologAdapter) Info(msg string, fields ...Field) {
	z.emit(zerolog.InfoLevel, msg, fields)
}

func (z *ZerologAdapter) Warn(msg string, fields ...Field) {
	z.emit(zerolog.WarnLevel, msg, fields)
}

func (z *ZerologAdapter) Error(msg string, fields ...Field) {
	z.emit(zerolog.ErrorLevel, msg, fields)
}

// Logger returns the underlying zerolog.Logger at the current level.
func (z *ZerologAdapter) Logger() zerolog.Logger {
	return z.logger.Level(z.Level())
}

func (z *ZerologAdapter) emit(level zerolog.Level, msg string, fields []Field) {
	if level < z.Level() {
		return
	}
	event := z.logger.WithLevel(level)
	for _, f := range fields {
		event = addField(event, f)
	}
	event.Msg(msg)
}

// addField adds a Field to a zerolog.Event.
func addField(event *zerolog.Event, f Field) *zerolog.Event {
	switch v := f.Value.(type) {
	case string:
		return event.Str(f.Key, v)
	case int:
		return event.Int(f.Key, v)
	case uint64:
		return event.Uint64(f.Key, v)
	case bool:
		return event.Bool(f.Key, v)
	case time.Duration:
		return event.Dur(f.Key, v)
	case []byte:
		return event.Hex(f.Key, v)
	case error:
		return event.Err(v)
	case fmt.Stringer:
		return event.Stringer(f.Key, v)
	default:
		return event.Interface(f.Key, v)
	}
}
