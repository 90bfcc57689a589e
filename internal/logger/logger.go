// Package logger provides a configured zerolog logger.
package logger

import (
	"io"
	"os"
	"sync"

	pkgerrors "github.com/pkg/errors"
	"github.com/rs/zerolog"
	zpkgerrors "github.com/rs/zerolog/pkgerrors"
)

var configureOnce sync.Once

// configure installs the pkg/errors stack marshallers once per process.
func configure() {
	configureOnce.Do(func() {
		// Configure zerolog to work with github.com/pkg/errors:
		// - Automatically marshal pkg/errors stack traces when present
		// - Ensure a stack is present even for std errors when .Stack() is used
		zerolog.ErrorStackMarshaler = func(err error) interface{} {
			type stackTracer interface{ StackTrace() pkgerrors.StackTrace }
			if _, ok := err.(stackTracer); !ok {
				err = pkgerrors.WithStack(err)
			}
			return zpkgerrors.MarshalStack(err)
		}
	})
}

// New returns a JSON logger on stdout for serviceName.
// Call sites should use .Stack() on error events to include stacks.
func New(serviceName string) zerolog.Logger {
	return NewWithWriter(serviceName, os.Stdout, "info")
}

// NewWithWriter returns a JSON logger writing to w at the given level
// ("debug", "info", "warn", "error"; anything else means info).
func NewWithWriter(serviceName string, w io.Writer, level string) zerolog.Logger {
	configure()
	return zerolog.New(w).Level(ParseLevel(level)).With().
		Str("service", serviceName).
		Timestamp().
		Logger()
}

// Console returns a human-readable logger for interactive CLI use.
func Console(w io.Writer, level string) zerolog.Logger {
	configure()
	return zerolog.New(zerolog.ConsoleWriter{
		Out:        w,
		TimeFormat: "15:04:05",
		NoColor:    true,
	}).Level(ParseLevel(level)).With().Timestamp().Logger()
}

// ParseLevel maps a config level name to a zerolog level.
func ParseLevel(level string) zerolog.Level {
	switch level {
	case "debug":
		return zerolog.DebugLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
