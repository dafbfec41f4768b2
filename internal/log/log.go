// Package log builds the root zerolog logger of the commands.
package log

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// ParseLevel parses a zerolog level name. The empty string is info.
func ParseLevel(s string) (zerolog.Level, error) {
	if s == "" {
		return zerolog.InfoLevel, nil
	}
	lvl, err := zerolog.ParseLevel(s)
	if err != nil {
		return zerolog.NoLevel, fmt.Errorf("log: invalid log level: '%s'", s)
	}
	return lvl, nil
}

// NewLogger returns a logger writing to w in the given format, with timestamps.
func NewLogger(w io.Writer, format Format, lvl zerolog.Level) zerolog.Logger {
	if format == FmtConsole {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	return zerolog.New(w).Level(lvl).With().Timestamp().Logger()
}

// NewRootLogger parses format and level, and returns a logger writing to stderr.
func NewRootLogger(format, level string) (zerolog.Logger, error) {
	var f Format
	if err := f.Set(format); err != nil {
		return zerolog.Nop(), err
	}
	lvl, err := ParseLevel(level)
	if err != nil {
		return zerolog.Nop(), err
	}
	return NewLogger(os.Stderr, f, lvl), nil
}
