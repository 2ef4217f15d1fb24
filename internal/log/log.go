// Package log builds the zerolog logger used across the module.
// There is no package-level global logger; every component receives
// one by constructor injection from internal/runtime.
package log

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// New builds a console-friendly logger when w is a terminal-like
// writer (os.Stderr in dev), otherwise plain JSON. Grounded on the
// zerolog setup convention used throughout isqad-livelook-sfu.
func New(level zerolog.Level, w io.Writer) zerolog.Logger {
	if w == nil {
		w = os.Stderr
	}
	zerolog.TimeFieldFormat = time.RFC3339
	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}

// Component returns a child logger tagged with a component name, the
// convention used for every subsystem logger handed out by Runtime.
func Component(base zerolog.Logger, name string) zerolog.Logger {
	return base.With().Str("component", name).Logger()
}
