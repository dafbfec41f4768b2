package log

import (
	"fmt"
	"strings"
)

// Format is a logging format. It implements the pflag.Value interface.
type Format uint

const (
	// FmtJSON writes one JSON object per line.
	FmtJSON Format = iota
	// FmtConsole is the human readable zerolog console format.
	FmtConsole
)

// String returns the string representation of a Format.
func (f *Format) String() string {
	switch *f {
	case FmtJSON:
		return "json"
	case FmtConsole:
		return "console"
	default:
		panic("log: unsupported format")
	}
}

// Set sets the Format to the value specified by the provided string.
func (f *Format) Set(s string) error {
	switch strings.ToLower(s) {
	case "json", "":
		*f = FmtJSON
	case "console":
		*f = FmtConsole
	default:
		return fmt.Errorf("log: invalid log format: '%s'", s)
	}
	return nil
}

// Type returns the list of supported Formats.
func (f *Format) Type() string {
	return "[json,console]"
}
