// Package friction implements the execution simulator's configurable
// friction models: slippage distributions and the limit-order
// adverse-selection bias.
package friction

import (
	"math"
	"math/rand/v2"

	"github.com/avalytics/btkernel/internal/bar"
)

// Model samples slippage, in ticks, adverse to the order's side, given a
// reference price and an optional contextual volatility feature (for
// regime-conditional models).
type Model interface {
	Name() string
	Sample(rng *rand.Rand, reference bar.Ticks, contextFeature float64) bar.Ticks
}

// FixedBps applies a fixed basis-points-of-price slippage, deterministic
// given the reference price.
type FixedBps struct {
	Bps float64
}

func (f FixedBps) Name() string { return "fixed-bps" }

func (f FixedBps) Sample(_ *rand.Rand, reference bar.Ticks, _ float64) bar.Ticks {
	return bar.Ticks(math.Round(float64(reference) * f.Bps / 10000.0))
}

// Gaussian samples slippage from a normal distribution with the given mean
// and standard deviation, expressed in ticks.
type Gaussian struct {
	MeanTicks   float64
	StdDevTicks float64
}

func (g Gaussian) Name() string { return "gaussian" }

func (g Gaussian) Sample(rng *rand.Rand, _ bar.Ticks, _ float64) bar.Ticks {
	if rng == nil {
		rng = rand.New(rand.NewPCG(1, 1))
	}
	v := g.MeanTicks + rng.NormFloat64()*g.StdDevTicks
	if v < 0 {
		v = 0
	}
	return bar.Ticks(math.Round(v))
}

// Uniform samples slippage uniformly from [MinTicks, MaxTicks].
type Uniform struct {
	MinTicks, MaxTicks float64
}

func (u Uniform) Name() string { return "uniform" }

func (u Uniform) Sample(rng *rand.Rand, _ bar.Ticks, _ float64) bar.Ticks {
	if rng == nil {
		rng = rand.New(rand.NewPCG(1, 1))
	}
	lo, hi := u.MinTicks, u.MaxTicks
	if hi < lo {
		lo, hi = hi, lo
	}
	return bar.Ticks(math.Round(lo + rng.Float64()*(hi-lo)))
}

// HistoricalBootstrap resamples slippage, with replacement, from a fixed
// pool of previously observed slippage samples (in ticks).
type HistoricalBootstrap struct {
	Pool []float64
}

func (h HistoricalBootstrap) Name() string { return "historical-bootstrap" }

func (h HistoricalBootstrap) Sample(rng *rand.Rand, _ bar.Ticks, _ float64) bar.Ticks {
	if len(h.Pool) == 0 {
		return 0
	}
	if rng == nil {
		rng = rand.New(rand.NewPCG(1, 1))
	}
	idx := rng.IntN(len(h.Pool))
	return bar.Ticks(math.Round(h.Pool[idx]))
}

// RegimeConditional samples slippage from one of several Gaussian regimes,
// keyed on a contextual volatility feature value (e.g. ATR) crossing
// configured thresholds.
type RegimeConditional struct {
	// Thresholds must be sorted ascending. Regimes has len(Thresholds)+1
	// entries: Regimes[i] applies when the feature is below Thresholds[i],
	// and the last entry applies above the final threshold.
	Thresholds []float64
	Regimes    []Gaussian
}

func (r RegimeConditional) Name() string { return "regime-conditional" }

func (r RegimeConditional) Sample(rng *rand.Rand, reference bar.Ticks, contextFeature float64) bar.Ticks {
	if len(r.Regimes) == 0 {
		return 0
	}
	idx := len(r.Regimes) - 1
	for i, t := range r.Thresholds {
		if contextFeature < t {
			idx = i
			break
		}
	}
	return r.Regimes[idx].Sample(rng, reference, contextFeature)
}

// Apply moves reference by sampled slippage in the adverse direction for
// side: a buy slips the price up, a sell slips it down.
func Apply(m Model, rng *rand.Rand, reference bar.Ticks, side bar.Side, contextFeature float64) (filled bar.Ticks, slippage bar.Ticks) {
	s := m.Sample(rng, reference, contextFeature)
	if s < 0 {
		s = -s
	}
	if side == bar.Long {
		return reference + s, s
	}
	return reference - s, s
}
