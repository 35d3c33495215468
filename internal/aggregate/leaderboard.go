package aggregate

import "sort"

// CandidateSummary is one candidate's aggregated statistics across its
// trial population, ready for ranking.
type CandidateSummary struct {
	CandidateHash string
	Sharpe        Percentiles
	Stability     float64
	Uncertainty   float64
	// MinTradeCount is the fewest trades any single trial produced — a
	// candidate that only traded once in its worst trial is statistically
	// unsupported regardless of how good that one trade looked.
	MinTradeCount int
	// MaxDrawdown is the worst drawdown observed across the whole
	// population, not an average — a gate bounds the worst case.
	MaxDrawdown float64
	// Degradation is the mean in-sample/out-of-sample Sharpe falloff across
	// whichever trials populated TrialMetrics.Degradation (zero elsewhere).
	Degradation float64
	// ProfitableFraction is the fraction of trials whose NetReturn was
	// positive.
	ProfitableFraction float64
}

// Summarize reduces a trial population into a CandidateSummary: Sharpe
// percentiles and stability as before, plus the minimum trade count, worst
// drawdown, mean degradation, and profitable-trial fraction the ladder's
// gates need to enforce §4.7's promotion thresholds.
func Summarize(candidateHash string, metrics []TrialMetrics, stabilityPenalty float64) CandidateSummary {
	sharpes := make([]float64, len(metrics))
	for i, m := range metrics {
		sharpes[i] = m.Sharpe
	}

	s := CandidateSummary{
		CandidateHash: candidateHash,
		Sharpe:        ComputePercentiles(sharpes),
		Stability:     StabilityScore(sharpes, stabilityPenalty),
	}
	s.Uncertainty = UncertaintySpread(s.Sharpe)

	if len(metrics) == 0 {
		return s
	}

	minTrades := metrics[0].TradeCount
	var maxDD, degradationSum float64
	degradationCount := 0
	profitable := 0
	for _, m := range metrics {
		if m.TradeCount < minTrades {
			minTrades = m.TradeCount
		}
		if m.MaxDrawdown > maxDD {
			maxDD = m.MaxDrawdown
		}
		if m.Degradation != 0 {
			degradationSum += m.Degradation
			degradationCount++
		}
		if m.NetReturn > 0 {
			profitable++
		}
	}
	s.MinTradeCount = minTrades
	s.MaxDrawdown = maxDD
	if degradationCount > 0 {
		s.Degradation = degradationSum / float64(degradationCount)
	}
	s.ProfitableFraction = float64(profitable) / float64(len(metrics))
	return s
}

// Leaderboard ranks candidate summaries by stability score descending,
// breaking ties by median Sharpe descending and then by candidate hash for
// a fully deterministic order.
func Leaderboard(summaries []CandidateSummary) []CandidateSummary {
	ranked := append([]CandidateSummary(nil), summaries...)
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Stability != ranked[j].Stability {
			return ranked[i].Stability > ranked[j].Stability
		}
		if ranked[i].Sharpe.P50 != ranked[j].Sharpe.P50 {
			return ranked[i].Sharpe.P50 > ranked[j].Sharpe.P50
		}
		return ranked[i].CandidateHash < ranked[j].CandidateHash
	})
	return ranked
}
