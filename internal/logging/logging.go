// Package logging wires the structured logging facade
// (github.com/joeycumines/logiface) to github.com/rs/zerolog via
// github.com/joeycumines/izerolog, exactly as izerolog's own
// WithZerolog/example_test.go pattern demonstrates. One Logger is built at
// startup and passed explicitly into every component; there is no
// package-level default or other implicit module-level mutable state.
package logging

import (
	"io"
	"os"

	"github.com/joeycumines/izerolog"
	"github.com/joeycumines/logiface"
	"github.com/rs/zerolog"
)

// Logger is the concrete logger type threaded through the relay.
type Logger = logiface.Logger[*izerolog.Event]

// New builds a Logger writing newline-delimited JSON to w at the given
// minimum level. Pass os.Stdout for production use.
func New(w io.Writer, level logiface.Level) *Logger {
	zl := zerolog.New(w).With().Timestamp().Logger()
	return logiface.New[*izerolog.Event](
		izerolog.WithZerolog(zl),
		logiface.WithLevel[*izerolog.Event](level),
	)
}

// Default builds a production Logger writing to stdout at Info level.
func Default() *Logger {
	return New(os.Stdout, logiface.LevelInformational)
}
