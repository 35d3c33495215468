// Package signal defines the portfolio-agnostic boundary between strategy
// logic and order generation: a Signal emits an Intent expressing desired
// exposure, never an order directly, and an OrderPolicy translates that
// intent — together with a read-only portfolio snapshot and risk
// configuration — into concrete order intents.
package signal

import (
	"time"

	"github.com/avalytics/btkernel/internal/bar"
)

// Intent is a signal's desired exposure for one instrument as of one bar.
// It carries no quantity or order type — those are an OrderPolicy's
// responsibility. Family-specific price levels (a breakout trigger, a
// mean-reversion limit) travel in Metadata for the OrderPolicy to read.
type Intent struct {
	Instrument string
	BarIndex   int64
	Timestamp  time.Time

	// Exposure is the desired fraction of risk capital directed at this
	// instrument, signed by direction: -1 (full short) to +1 (full long).
	Exposure float64

	// Confidence scales how strongly the signal holds its view, 0 to 1. An
	// OrderPolicy may use it to size positions or gate weak signals.
	Confidence float64

	Tags     []string
	Metadata map[string]any
}

// Signal evaluates one bar of one instrument and optionally emits an
// Intent. It never sees portfolio state or the order book.
type Signal interface {
	Evaluate(b bar.Bar, barIdx int64) (Intent, bool)
}

// ClampExposure constrains a raw exposure value to [-1, 1].
func ClampExposure(e float64) float64 {
	if e > 1 {
		return 1
	}
	if e < -1 {
		return -1
	}
	return e
}

// ClampConfidence constrains a raw confidence value to [0, 1].
func ClampConfidence(c float64) float64 {
	if c > 1 {
		return 1
	}
	if c < 0 {
		return 0
	}
	return c
}
