// Package logging builds the zerolog logger shared by the recorder.
//
//	TRACE (-1) → DEBUG (0) → INFO (1) → WARN (2) → ERROR (3)
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Options controls logger construction.
type Options struct {
	// Level is the minimum level: trace, debug, info, warn, error.
	// Empty or unknown values mean info.
	Level string
	// Pretty switches the primary output to zerolog's console format.
	Pretty bool
	// Output defaults to os.Stderr.
	Output io.Writer
	// Tee receives a plain console copy of every event (the web log view).
	Tee io.Writer
}

func New(opts Options) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339Nano

	out := opts.Output
	if out == nil {
		out = os.Stderr
	}
	if opts.Pretty {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}
	if opts.Tee != nil {
		tee := zerolog.ConsoleWriter{Out: opts.Tee, NoColor: true, TimeFormat: time.RFC3339}
		out = zerolog.MultiLevelWriter(out, tee)
	}

	return zerolog.New(out).
		Level(ParseLevel(opts.Level)).
		With().
		Timestamp().
		Logger()
}

// Nop is a logger that discards everything; used where no logger was wired.
func Nop() zerolog.Logger { return zerolog.Nop() }

func ParseLevel(s string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
