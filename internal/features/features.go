// Package features computes the precomputed indicator values attached to
// bar.Bar.Features — the volatility and trend measures internal/signal's
// filters and internal/posmgr's ATR-based stop strategies read by name.
package features

import "github.com/avalytics/btkernel/internal/bar"

// SMA computes the simple moving average of closes over period bars,
// writing the result into each bar's Features map under name. Bars before
// the period has accumulated are left unset rather than zero-filled, so a
// strategy reading the feature can detect "not yet warmed up" via the
// ok return of bar.Bar.Feature.
func SMA(bars []bar.Bar, period int, name string) {
	for i := range bars {
		if i+1 < period {
			continue
		}
		var sum float64
		for j := i + 1 - period; j <= i; j++ {
			sum += float64(bars[j].Close)
		}
		setFeature(&bars[i], name, sum/float64(period))
	}
}

// EMA computes the exponential moving average of closes over period bars,
// seeded by the period's SMA, writing the result into each bar's Features
// map under name.
func EMA(bars []bar.Bar, period int, name string) {
	if len(bars) == 0 {
		return
	}
	multiplier := 2.0 / float64(period+1)
	var ema float64
	for i := range bars {
		switch {
		case i+1 < period:
			continue
		case i+1 == period:
			var sum float64
			for j := 0; j < period; j++ {
				sum += float64(bars[j].Close)
			}
			ema = sum / float64(period)
		default:
			ema = (float64(bars[i].Close)-ema)*multiplier + ema
		}
		setFeature(&bars[i], name, ema)
	}
}

// ATR computes Wilder's average true range over period bars, writing the
// result into each bar's Features map under name. True range for the first
// bar is just its high-low range, since there is no prior close.
func ATR(bars []bar.Bar, period int, name string) {
	if len(bars) == 0 {
		return
	}
	trueRanges := make([]float64, len(bars))
	for i := range bars {
		trueRanges[i] = trueRange(bars, i)
	}

	var atr float64
	for i := range bars {
		switch {
		case i+1 < period:
			continue
		case i+1 == period:
			var sum float64
			for j := 0; j < period; j++ {
				sum += trueRanges[j]
			}
			atr = sum / float64(period)
		default:
			atr = (atr*float64(period-1) + trueRanges[i]) / float64(period)
		}
		setFeature(&bars[i], name, atr)
	}
}

// Donchian computes the rolling highest-high and lowest-low over period
// bars (excluding the current bar, so a breakout signal reading it compares
// the current close against the prior channel rather than a channel that
// already includes today), writing them into upperName and lowerName.
func Donchian(bars []bar.Bar, period int, upperName, lowerName string) {
	for i := range bars {
		if i < period {
			continue
		}
		hi, lo := float64(bars[i-period].High), float64(bars[i-period].Low)
		for j := i - period + 1; j < i; j++ {
			if h := float64(bars[j].High); h > hi {
				hi = h
			}
			if l := float64(bars[j].Low); l < lo {
				lo = l
			}
		}
		setFeature(&bars[i], upperName, hi)
		setFeature(&bars[i], lowerName, lo)
	}
}

func trueRange(bars []bar.Bar, i int) float64 {
	high, low := float64(bars[i].High), float64(bars[i].Low)
	if i == 0 {
		return high - low
	}
	prevClose := float64(bars[i-1].Close)
	tr := high - low
	if d := high - prevClose; d > tr {
		tr = d
	}
	if d := prevClose - low; d > tr {
		tr = d
	}
	return tr
}

func setFeature(b *bar.Bar, name string, v float64) {
	if b.Features == nil {
		b.Features = make(map[string]float64)
	}
	b.Features[name] = v
}
