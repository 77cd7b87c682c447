// Package rflog wires up the engine-wide structured logger. Everything off
// the audio thread logs through this; the audio callback never does
// (spec.md section 7: "never via the audio thread").
package rflog

import (
	"os"
	"sync"

	"github.com/charmbracelet/log"
)

var (
	once   sync.Once
	logger *log.Logger
)

// Get returns the process-wide logger, initializing it on first use with
// timestamps enabled and caller reporting off — the same defaults
// doismellburning-samoyed reaches for via charmbracelet/log.
func Get() *log.Logger {
	once.Do(func() {
		logger = log.NewWithOptions(os.Stderr, log.Options{
			ReportTimestamp: true,
			ReportCaller:    false,
			Level:           log.InfoLevel,
		})
	})
	return logger
}

// SetLevel adjusts the minimum log level, e.g. from a --verbose CLI flag.
func SetLevel(level log.Level) {
	Get().SetLevel(level)
}

// With returns a sub-logger tagged with the given component name, mirroring
// the `logger.With().Str("component", ...)` convention already used in the
// pack (see grimnir_radio's playout session logger).
func With(component string) *log.Logger {
	return Get().With("component", component)
}
