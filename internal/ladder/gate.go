package ladder

import (
	"fmt"

	"github.com/avalytics/btkernel/internal/aggregate"
)

// Gate declares the promotion thresholds a level's aggregated statistics
// must clear before the ladder advances a candidate to the next level.
// Zero-value fields mean "no floor/ceiling on this statistic".
type Gate struct {
	MinP10Sharpe   float64
	MinP50Sharpe   float64
	MinStability   float64
	MaxUncertainty float64
	// MinTradeCount rejects a candidate whose worst trial traded fewer
	// times than this — too few trades for its statistics to mean anything.
	MinTradeCount int
	// MaxDrawdown rejects a candidate whose worst observed drawdown exceeds
	// this fraction of equity.
	MaxDrawdown float64
	// MaxDegradation rejects a candidate whose in-sample/out-of-sample
	// Sharpe falloff exceeds this fraction (e.g. 0.4 for "degradation must
	// not exceed 40%").
	MaxDegradation float64
	// MinProfitableFraction rejects a candidate whose fraction of
	// profitable trials (by NetReturn) falls below this floor — L2's
	// walk-forward windows use this to require a majority of OOS windows
	// to have made money, not just a high median Sharpe.
	MinProfitableFraction float64
}

// Evaluate reports whether summary clears every configured threshold, and
// the structured reasons for each threshold it failed (empty on success).
func (g Gate) Evaluate(summary aggregate.CandidateSummary) (bool, []string) {
	var reasons []string

	if g.MinP10Sharpe != 0 && summary.Sharpe.P10 < g.MinP10Sharpe {
		reasons = append(reasons, fmt.Sprintf("p10 sharpe %.4f below floor %.4f", summary.Sharpe.P10, g.MinP10Sharpe))
	}
	if g.MinP50Sharpe != 0 && summary.Sharpe.P50 < g.MinP50Sharpe {
		reasons = append(reasons, fmt.Sprintf("p50 sharpe %.4f below floor %.4f", summary.Sharpe.P50, g.MinP50Sharpe))
	}
	if g.MinStability != 0 && summary.Stability < g.MinStability {
		reasons = append(reasons, fmt.Sprintf("stability score %.4f below floor %.4f", summary.Stability, g.MinStability))
	}
	if g.MaxUncertainty != 0 && summary.Uncertainty > g.MaxUncertainty {
		reasons = append(reasons, fmt.Sprintf("uncertainty spread %.4f above ceiling %.4f", summary.Uncertainty, g.MaxUncertainty))
	}
	if g.MinTradeCount != 0 && summary.MinTradeCount < g.MinTradeCount {
		reasons = append(reasons, fmt.Sprintf("minimum trade count %d below floor %d", summary.MinTradeCount, g.MinTradeCount))
	}
	if g.MaxDrawdown != 0 && summary.MaxDrawdown > g.MaxDrawdown {
		reasons = append(reasons, fmt.Sprintf("max drawdown %.4f above ceiling %.4f", summary.MaxDrawdown, g.MaxDrawdown))
	}
	if g.MaxDegradation != 0 && summary.Degradation > g.MaxDegradation {
		reasons = append(reasons, fmt.Sprintf("in-sample/out-of-sample degradation %.4f above ceiling %.4f", summary.Degradation, g.MaxDegradation))
	}
	if g.MinProfitableFraction != 0 && summary.ProfitableFraction < g.MinProfitableFraction {
		reasons = append(reasons, fmt.Sprintf("profitable-trial fraction %.4f below floor %.4f", summary.ProfitableFraction, g.MinProfitableFraction))
	}
	return len(reasons) == 0, reasons
}
