// Package obs wires up the kernel's structured logging: a single
// zerolog.Logger configuration shared by every component, with a helper to
// derive a per-run child logger carrying the candidate hash and trial index
// so every log line from a given trial can be filtered out of a busy
// parallel sweep.
package obs

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// New builds the base logger. When pretty is true, output is a
// human-readable console writer (for local `run` invocations); otherwise
// it's newline-delimited JSON (for sweep output piped to a log collector).
func New(w io.Writer, level zerolog.Level, pretty bool) zerolog.Logger {
	if w == nil {
		w = os.Stderr
	}
	out := w
	if pretty {
		out = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}

// ForTrial derives a child logger scoped to one candidate trial.
func ForTrial(base zerolog.Logger, candidateHash string, trialIndex int64) zerolog.Logger {
	return base.With().
		Str("candidate_hash", candidateHash).
		Int64("trial_index", trialIndex).
		Logger()
}

// ForLevel further scopes a trial logger to the ladder level currently
// running against it.
func ForLevel(base zerolog.Logger, level string) zerolog.Logger {
	return base.With().Str("level", level).Logger()
}
