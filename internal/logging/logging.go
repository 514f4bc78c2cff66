// Package logging builds the zerolog logger injected into every batchd
// component. The process ID travels as a structured field on each record,
// which replaces ad-hoc PID printing for debugging worker behavior.
package logging

import (
	"os"
	"time"

	"github.com/rs/zerolog"
)

// New returns a configured logger. level is a zerolog level name and
// defaults to info when unparsable. format is "console" for human-readable
// output or anything else for JSON.
func New(level, format string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}

	var logger zerolog.Logger
	if format == "console" {
		writer := zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: time.RFC3339,
		}
		logger = zerolog.New(writer)
	} else {
		logger = zerolog.New(os.Stderr)
	}

	return logger.Level(lvl).
		With().
		Timestamp().
		Int("pid", os.Getpid()).
		Logger()
}
