// Package aggregate computes per-trial performance metrics and reduces a
// trial population into the percentile, stability, and uncertainty
// statistics the robustness ladder's promotion gates read.
package aggregate

import (
	"math"
	"sort"

	"github.com/avalytics/btkernel/internal/bar"
	"github.com/avalytics/btkernel/internal/portfolio"
)

// TrialMetrics is the fixed set of summary statistics computed from one
// trial's equity curve and trade ledger.
type TrialMetrics struct {
	Sharpe         float64
	MaxDrawdown    float64
	Exposure       float64
	TerminalEquity bar.Ticks
	TradeCount     int
	WinRate        float64
	// NetReturn is the fractional change from the first to the last equity
	// point, independent of Sharpe — a walk-forward window counts as
	// "profitable" by this sign, not by its Sharpe ratio.
	NetReturn float64
	// Degradation is the fractional in-sample/out-of-sample Sharpe falloff.
	// Only L1's cheap pass populates this field; every other level leaves it
	// at zero.
	Degradation float64
}

// FromPortfolio computes TrialMetrics from a completed run's portfolio.
// periodsPerYear annualizes the Sharpe ratio (e.g. 252 for daily bars).
func FromPortfolio(p *portfolio.Portfolio, periodsPerYear float64) TrialMetrics {
	m := TrialMetrics{}
	if len(p.Equity) == 0 {
		return m
	}
	m.TerminalEquity = p.Equity[len(p.Equity)-1].Equity

	first := float64(p.Equity[0].Equity)
	if first != 0 {
		m.NetReturn = (float64(m.TerminalEquity) - first) / first
	}

	var maxDD float64
	var sumExposure float64
	for _, e := range p.Equity {
		if e.Drawdown > maxDD {
			maxDD = e.Drawdown
		}
		sumExposure += e.Exposure
	}
	m.MaxDrawdown = maxDD
	m.Exposure = sumExposure / float64(len(p.Equity))

	rets := periodReturns(p.Equity)
	m.Sharpe = sharpe(rets, periodsPerYear)

	m.TradeCount = len(p.Trades)
	if m.TradeCount > 0 {
		wins := 0
		for _, t := range p.Trades {
			if t.RealizedPnL > 0 {
				wins++
			}
		}
		m.WinRate = float64(wins) / float64(m.TradeCount)
	}
	return m
}

func periodReturns(curve []portfolio.EquityPoint) []float64 {
	if len(curve) < 2 {
		return nil
	}
	rets := make([]float64, 0, len(curve)-1)
	for i := 1; i < len(curve); i++ {
		prev := float64(curve[i-1].Equity)
		if prev == 0 {
			rets = append(rets, 0)
			continue
		}
		rets = append(rets, (float64(curve[i].Equity)-prev)/prev)
	}
	return rets
}

func sharpe(rets []float64, periodsPerYear float64) float64 {
	if len(rets) == 0 {
		return 0
	}
	mean := 0.0
	for _, r := range rets {
		mean += r
	}
	mean /= float64(len(rets))

	var variance float64
	for _, r := range rets {
		d := r - mean
		variance += d * d
	}
	variance /= float64(len(rets))
	std := math.Sqrt(variance)
	if std == 0 {
		return 0
	}
	return (mean / std) * math.Sqrt(periodsPerYear)
}

// Percentiles holds the pinned P10/P50/P90 of one metric across a trial
// population.
type Percentiles struct {
	P10, P50, P90 float64
}

// Percentile reduces values with a fixed, deterministic sort-then-index
// reduction — the same population always yields the same percentiles
// regardless of the order trials completed in.
func Percentile(values []float64, pct float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	idx := int(pct / 100 * float64(len(sorted)-1))
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

// ComputePercentiles computes P10/P50/P90 for one metric across trials.
func ComputePercentiles(values []float64) Percentiles {
	return Percentiles{
		P10: Percentile(values, 10),
		P50: Percentile(values, 50),
		P90: Percentile(values, 90),
	}
}

// StabilityScore penalizes dispersion around the median: median minus a
// penalty multiple of the interquartile range. A candidate whose metric is
// both high and tightly clustered across trials scores higher than one with
// the same median but a wide spread.
func StabilityScore(values []float64, penalty float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	q1 := Percentile(sorted, 25)
	q3 := Percentile(sorted, 75)
	median := Percentile(sorted, 50)
	iqr := q3 - q1
	return median - penalty*iqr
}

// UncertaintySpread is the P90-P10 spread normalized by the median, a
// scale-free width-of-distribution diagnostic promotion gates can bound
// directly regardless of the metric's typical magnitude. Zero median
// (degenerate or all-zero population) reports the raw spread rather than
// dividing by zero.
func UncertaintySpread(p Percentiles) float64 {
	if p.P50 == 0 {
		return p.P90 - p.P10
	}
	return (p.P90 - p.P10) / p.P50
}
