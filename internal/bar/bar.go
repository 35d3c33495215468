// Package bar defines the kernel's domain types: the canonical bar, the
// instrument metadata that governs price rounding, and the integer tick
// representation prices use once they cross the execution boundary.
package bar

import (
	"fmt"
	"time"
)

// Ticks is an integer-tick price or price delta. Every price that crosses
// the execution boundary is a Ticks value, never a float64 — see the
// floating-point determinism note in the design notes.
type Ticks int64

// Bar is one immutable OHLCV observation for one instrument at one
// timestamp, plus any precomputed feature values attached by the (external)
// feature layer.
type Bar struct {
	Symbol    string
	Timestamp time.Time
	Open      Ticks
	High      Ticks
	Low       Ticks
	Close     Ticks
	Volume    int64

	// Features holds precomputed indicator values (e.g. ATR) keyed by name.
	// Populated once, never mutated after construction.
	Features map[string]float64
}

// Validate checks the bar's OHLC invariant and non-negative volume.
func (b Bar) Validate() error {
	lo, hi := b.Low, b.High
	mn, mx := b.Open, b.Close
	if mn > mx {
		mn, mx = mx, mn
	}
	if !(lo <= mn && mn <= mx && mx <= hi) {
		return &InvalidOHLCError{Symbol: b.Symbol, Timestamp: b.Timestamp, Open: b.Open, High: b.High, Low: b.Low, Close: b.Close}
	}
	if b.Volume < 0 {
		return fmt.Errorf("bar %s@%s: negative volume %d", b.Symbol, b.Timestamp, b.Volume)
	}
	return nil
}

// Feature returns a precomputed feature value, or (0, false) if absent.
func (b Bar) Feature(name string) (float64, bool) {
	v, ok := b.Features[name]
	return v, ok
}

// InvalidOHLCError reports a bar whose OHLC quadruple violates
// low <= min(open,close) <= max(open,close) <= high.
type InvalidOHLCError struct {
	Symbol             string
	Timestamp          time.Time
	Open, High, Low, Close Ticks
}

func (e *InvalidOHLCError) Error() string {
	return fmt.Sprintf("invalid OHLC for %s@%s: O=%d H=%d L=%d C=%d",
		e.Symbol, e.Timestamp, e.Open, e.High, e.Low, e.Close)
}

// LogFields exposes structured fields for boundary logging.
func (e *InvalidOHLCError) LogFields() map[string]any {
	return map[string]any{
		"symbol": e.Symbol, "timestamp": e.Timestamp,
		"open": e.Open, "high": e.High, "low": e.Low, "close": e.Close,
	}
}

// Series is a strictly timestamp-increasing sequence of bars for one symbol.
// Gaps (missing timestamps in the unified multi-symbol index) are
// represented explicitly by the caller via MissingBar, never silently
// forward-filled.
type Series struct {
	Symbol string
	Bars   []Bar
}

// Validate checks strictly increasing timestamps and per-bar OHLC invariants.
func (s Series) Validate() error {
	var prev time.Time
	for i, b := range s.Bars {
		if i > 0 && !b.Timestamp.After(prev) {
			return fmt.Errorf("series %s: timestamp out of order at index %d (%s <= %s)", s.Symbol, i, b.Timestamp, prev)
		}
		if err := b.Validate(); err != nil {
			return err
		}
		prev = b.Timestamp
	}
	return nil
}

// MissingBar marks an explicit gap in a unified multi-symbol timestamp axis.
type MissingBar struct {
	Symbol    string
	Timestamp time.Time
}
