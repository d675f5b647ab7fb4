package plandb

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// NewLogger builds the structured logger DbClient and the partial-plan
// writer take as a constructor argument. component names
// the subsystem ("dbclient", "solver", "writer", ...) and is attached to
// every event so a mixed-component log stream stays greppable.
func NewLogger(component string, w io.Writer) zerolog.Logger {
	if w == nil {
		w = os.Stderr
	}
	return zerolog.New(w).With().
		Timestamp().
		Str("component", component).
		Logger()
}

// NewConsoleLogger is NewLogger with zerolog's human-readable console
// writer, for interactive CLI use.
func NewConsoleLogger(component string) zerolog.Logger {
	cw := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	return zerolog.New(cw).With().
		Timestamp().
		Str("component", component).
		Logger()
}
