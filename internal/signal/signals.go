package signal

import "github.com/avalytics/btkernel/internal/bar"

// Family names the closed set of signal families internal/signal ships a
// concrete implementation of. An OrderPolicy dispatches on Intent.Tags
// rather than on the concrete Signal type, so a new implementation of an
// existing family needs no OrderPolicy change.
type Family string

const (
	// FamilyTrend signals want to hold a directional position as long as
	// the trend persists; an OrderPolicy translates them to immediate
	// market entries.
	FamilyTrend Family = "trend"
	// FamilyBreakout signals want to enter only once price confirms a
	// level has been breached; an OrderPolicy translates them to
	// stop-entry orders resting at that level.
	FamilyBreakout Family = "breakout"
	// FamilyMeanRevert signals want to enter at a better price than the
	// current one, betting on reversion toward a mean; an OrderPolicy
	// translates them to resting limit orders.
	FamilyMeanRevert Family = "mean-revert"
)

// Metadata keys concrete signals in this package write and OrderPolicy
// implementations in this package read, for the price level a
// family-specific order type triggers or rests at.
const (
	MetaTriggerPrice = "trigger_price"
	MetaLimitPrice   = "limit_price"
)

// TrendCrossover is a FamilyTrend signal: long when the fast moving average
// is above the slow one, short when below, flat when they are equal or
// either has not yet warmed up.
type TrendCrossover struct {
	FastFeature string
	SlowFeature string
}

func (s TrendCrossover) Evaluate(b bar.Bar, barIdx int64) (Intent, bool) {
	fast, ok := b.Feature(s.FastFeature)
	if !ok {
		return Intent{}, false
	}
	slow, ok := b.Feature(s.SlowFeature)
	if !ok {
		return Intent{}, false
	}
	if fast == slow {
		return Intent{}, false
	}
	exposure := 1.0
	if fast < slow {
		exposure = -1.0
	}
	return Intent{
		Instrument: b.Symbol, BarIndex: barIdx, Timestamp: b.Timestamp,
		Exposure: ClampExposure(exposure), Confidence: 1.0,
		Tags: []string{string(FamilyTrend)},
	}, true
}

// Breakout is a FamilyBreakout signal: it watches a precomputed rolling
// channel (e.g. a Donchian high/low) and emits an intent to enter on a
// stop once price breaches the channel in either direction. The channel
// level itself, not the current close, is the entry trigger — resolved
// into a concrete StopMarket order by an OrderPolicy reading
// MetaTriggerPrice from the returned intent's Metadata.
type Breakout struct {
	UpperFeature string
	LowerFeature string
}

func (s Breakout) Evaluate(b bar.Bar, barIdx int64) (Intent, bool) {
	upper, ok := b.Feature(s.UpperFeature)
	if !ok {
		return Intent{}, false
	}
	lower, ok := b.Feature(s.LowerFeature)
	if !ok {
		return Intent{}, false
	}

	closeF := float64(b.Close)
	var exposure, trigger float64
	switch {
	case closeF >= upper:
		exposure, trigger = 1.0, upper
	case closeF <= lower:
		exposure, trigger = -1.0, lower
	default:
		return Intent{}, false
	}

	return Intent{
		Instrument: b.Symbol, BarIndex: barIdx, Timestamp: b.Timestamp,
		Exposure: ClampExposure(exposure), Confidence: 1.0,
		Tags:     []string{string(FamilyBreakout)},
		Metadata: map[string]any{MetaTriggerPrice: trigger},
	}, true
}

// MeanRevert is a FamilyMeanRevert signal: it compares price's distance
// from a mean (in multiples of a dispersion feature, e.g. ATR) against
// ZThreshold, and on a breach emits an intent to fade the move back toward
// the mean via a resting limit order at a fraction (LimitOffset) of the
// way back, resolved by an OrderPolicy reading MetaLimitPrice.
type MeanRevert struct {
	MeanFeature       string
	DispersionFeature string
	ZThreshold        float64
	// LimitOffset is how far back toward the mean, as a fraction of the
	// distance from the current close (1 = at the mean itself), the resting
	// limit order is placed. Values <= 0 select the default of 0.5.
	LimitOffset float64
}

func (s MeanRevert) Evaluate(b bar.Bar, barIdx int64) (Intent, bool) {
	mean, ok := b.Feature(s.MeanFeature)
	if !ok {
		return Intent{}, false
	}
	dispersion, ok := b.Feature(s.DispersionFeature)
	if !ok || dispersion == 0 {
		return Intent{}, false
	}

	closeF := float64(b.Close)
	z := (closeF - mean) / dispersion
	if z > -s.ZThreshold && z < s.ZThreshold {
		return Intent{}, false
	}

	// A price far above the mean reverts down (short), and vice versa.
	exposure := -1.0
	if z < 0 {
		exposure = 1.0
	}
	offset := s.LimitOffset
	if offset <= 0 {
		offset = 0.5
	}
	limit := closeF + (mean-closeF)*offset

	return Intent{
		Instrument: b.Symbol, BarIndex: barIdx, Timestamp: b.Timestamp,
		Exposure: ClampExposure(exposure), Confidence: ClampConfidence(absF(z) / (s.ZThreshold * 2)),
		Tags:     []string{string(FamilyMeanRevert)},
		Metadata: map[string]any{MetaLimitPrice: limit},
	}, true
}

func absF(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
