// Package ladder drives the robustness ladder: a sequence of levels of
// increasing trial count and perturbation, each gated by the previous
// level's aggregated statistics before a candidate is allowed to spend the
// computation of the next. Trials within a level run concurrently; levels
// themselves run strictly in sequence.
package ladder

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/avalytics/btkernel/internal/aggregate"
	"github.com/avalytics/btkernel/internal/determinism"
)

// BarRange is a half-open [Start, End) slice of bar indices a trial should
// evaluate over. The zero value means "the caller's full series" — most
// levels other than L1/L2/L5 leave it unset.
type BarRange struct {
	Start, End int
}

// Empty reports whether r carries no explicit sub-range.
func (r BarRange) Empty() bool { return r.Start == 0 && r.End == 0 }

// TrialSpec fully describes one trial for a TrialFunc to execute against:
// which slice of the dataset to run over (train/test splits, walk-forward
// windows, regime-subsample windows), which bar indices to visit in place
// of the natural 0..N-1 sequence (block-bootstrap resampling — nil means
// visit Range, or the whole series, unresampled), which instruments a
// universe trial should exclude, and enough path/execution indexing for
// L4 to hold a sampled micro-path fixed across several friction draws.
type TrialSpec struct {
	TrialIndex int64
	Label      string

	Range           BarRange
	ResampleIndices []int

	ExcludeInstruments []string

	// PathIndex groups trials that should share the same sampled intrabar
	// path; ExecutionIndex distinguishes trials within that group that vary
	// only in friction/slippage sampling. Both are zero outside L4.
	PathIndex      int
	ExecutionIndex int
}

// TrialFunc runs one trial of a candidate against the dataset slice and
// perturbation spec carries, and returns its metrics. Callers build this by
// closing over an internal/engine.Engine constructed with a seeded RNG
// derived from (candidateHash, trialIndex) — the ladder package itself has
// no engine or bar-series dependency, only the contract.
type TrialFunc func(ctx context.Context, spec TrialSpec) (aggregate.TrialMetrics, error)

// Level is one rung of the robustness ladder.
type Level interface {
	// Name identifies the level for logging and cache keys (e.g.
	// "L1-cheap-pass", "L2-walk-forward").
	Name() string
	// Trials returns how many independent trials this level runs.
	Trials() int
	// Run executes the trial at the given index.
	Run(ctx context.Context, trialIndex int64) (aggregate.TrialMetrics, error)
}

// funcLevel adapts a name, trial count, and per-trial-index closure into a
// Level. The closure already has whatever TrialSpec a given trial index
// maps to baked in by the constructor that built it.
type funcLevel struct {
	name   string
	trials int
	run    func(ctx context.Context, trialIndex int64) (aggregate.TrialMetrics, error)
}

func (f funcLevel) Name() string    { return f.name }
func (f funcLevel) Trials() int     { return f.trials }
func (f funcLevel) Run(ctx context.Context, trialIndex int64) (aggregate.TrialMetrics, error) {
	return f.run(ctx, trialIndex)
}

// NewCheapPass builds L1: a single deterministic run over a train/test
// split of the dataset (trainFrac of totalBars is in-sample, the remainder
// out-of-sample). The in-sample segment establishes a baseline Sharpe; the
// returned TrialMetrics carries the out-of-sample segment's own statistics
// with Degradation set to the fractional falloff from the in-sample
// baseline, so L1's gate can enforce both an OOS Sharpe floor and an
// in-sample/out-of-sample degradation ceiling in the same predicate pass.
func NewCheapPass(totalBars int, trainFrac float64, run TrialFunc) Level {
	split := int(float64(totalBars) * trainFrac)
	if split < 0 {
		split = 0
	}
	if split > totalBars {
		split = totalBars
	}
	inSample := BarRange{Start: 0, End: split}
	outOfSample := BarRange{Start: split, End: totalBars}

	return funcLevel{
		name: "L1-cheap-pass", trials: 1,
		run: func(ctx context.Context, trialIndex int64) (aggregate.TrialMetrics, error) {
			is, err := run(ctx, TrialSpec{TrialIndex: trialIndex, Range: inSample, Label: "in-sample"})
			if err != nil {
				return aggregate.TrialMetrics{}, err
			}
			oos, err := run(ctx, TrialSpec{TrialIndex: trialIndex, Range: outOfSample, Label: "out-of-sample"})
			if err != nil {
				return aggregate.TrialMetrics{}, err
			}
			oos.Degradation = degradation(is.Sharpe, oos.Sharpe)
			return oos, nil
		},
	}
}

// degradation is the fractional falloff from an in-sample baseline to its
// out-of-sample counterpart; a baseline of exactly zero (nothing to
// degrade from) reports no degradation rather than dividing by zero.
func degradation(inSample, outOfSample float64) float64 {
	if inSample == 0 {
		return 0
	}
	return (inSample - outOfSample) / math.Abs(inSample)
}

// NewWalkForward builds L2: a sequence of out-of-sample test windows
// sliding across the full date range, each preceded by its own trainBars-
// wide training window. Only the out-of-sample segment of each window is
// evaluated — the aggregate statistics the driver computes over these
// per-window trials (percentiles, stability, and the profitable-window
// fraction) are L2's walk-forward stability scorecard.
func NewWalkForward(totalBars, trainBars, windowBars int, run TrialFunc) Level {
	var windows []BarRange
	for start := 0; start+trainBars+windowBars <= totalBars; start += windowBars {
		windows = append(windows, BarRange{Start: start + trainBars, End: start + trainBars + windowBars})
	}
	if len(windows) == 0 {
		windows = []BarRange{{Start: 0, End: totalBars}}
	}

	return funcLevel{
		name: "L2-walk-forward", trials: len(windows),
		run: func(ctx context.Context, trialIndex int64) (aggregate.TrialMetrics, error) {
			w := windows[trialIndex]
			return run(ctx, TrialSpec{TrialIndex: trialIndex, Range: w, Label: fmt.Sprintf("window-%d-oos", trialIndex)})
		},
	}
}

// NewExecutionMonteCarlo builds L3: repeated trials over the same price
// path, each with its own RNG stream, so friction that draws from the RNG
// (sampled slippage, adverse-selection fill placement) varies per trial.
// There is no queue-depth fill-probability model, so fill probability does
// not vary between trials. Each trial's TrialSpec carries no range
// or resampling of its own — the perturbation here lives entirely in the
// distinct RNG stream the caller derives per trial index.
func NewExecutionMonteCarlo(trials int, run TrialFunc) Level {
	return funcLevel{
		name: "L3-execution-monte-carlo", trials: trials,
		run: func(ctx context.Context, trialIndex int64) (aggregate.TrialMetrics, error) {
			return run(ctx, TrialSpec{TrialIndex: trialIndex, Label: "execution-monte-carlo"})
		},
	}
}

// NewPathMonteCarlo builds L4: paths micro-paths, each re-executed
// execTrialsPerPath times with independently re-sampled friction. Trials
// are flattened into one index space (pathIndex = trialIndex /
// execTrialsPerPath); the caller is expected to derive the path RNG from
// (candidateHash, PathIndex) only, so every execution trial sharing a path
// index reproduces the identical sampled micro-path, and the execution RNG
// from (candidateHash, TrialIndex), so friction still varies trial to
// trial — capturing path uncertainty and execution uncertainty as two
// independent axes within the same trial grid.
func NewPathMonteCarlo(paths, execTrialsPerPath int, run TrialFunc) Level {
	if execTrialsPerPath < 1 {
		execTrialsPerPath = 1
	}
	total := paths * execTrialsPerPath
	return funcLevel{
		name: "L4-path-monte-carlo", trials: total,
		run: func(ctx context.Context, trialIndex int64) (aggregate.TrialMetrics, error) {
			pathIdx := int(trialIndex) / execTrialsPerPath
			execIdx := int(trialIndex) % execTrialsPerPath
			return run(ctx, TrialSpec{
				TrialIndex: trialIndex, PathIndex: pathIdx, ExecutionIndex: execIdx,
				Label: fmt.Sprintf("path-%d-exec-%d", pathIdx, execIdx),
			})
		},
	}
}

// NewResampling builds L5: trials alternating between block-bootstrap
// resampling of the full date range (contiguous blocks of blockSize bars
// drawn with replacement, preserving local autocorrelation within a block)
// and regime subsampling (a single random contiguous window between
// regimeMinBars and regimeMaxBars wide). Each trial's resampling is seeded
// deterministically from (candidateHash, trialIndex), so it reproduces
// exactly without any RNG state shared across the concurrent trial
// goroutines the driver runs this level's trials in.
//
// Universe Monte Carlo (dropping a random subset of instruments) is not
// implemented here: internal/engine.Engine runs a single instrument per
// trial, so there is no universe to subsample within one trial's scope —
// TrialSpec.ExcludeInstruments exists for a multi-instrument driver built
// on top of this level, should one ever compose several single-instrument
// engines into a portfolio-level trial.
func NewResampling(candidateHash string, totalBars, blockSize, regimeMinBars, regimeMaxBars, trials int, run TrialFunc) Level {
	return funcLevel{
		name: "L5-resampling", trials: trials,
		run: func(ctx context.Context, trialIndex int64) (aggregate.TrialMetrics, error) {
			rng := determinism.SubStream(candidateHash, trialIndex, "l5-resample")
			if trialIndex%2 == 0 {
				idx := blockBootstrapIndices(rng, totalBars, blockSize)
				return run(ctx, TrialSpec{TrialIndex: trialIndex, ResampleIndices: idx, Label: "block-bootstrap"})
			}
			start, end := regimeWindow(rng, totalBars, regimeMinBars, regimeMaxBars)
			return run(ctx, TrialSpec{TrialIndex: trialIndex, Range: BarRange{Start: start, End: end}, Label: "regime-subsample"})
		},
	}
}

// blockBootstrapIndices draws contiguous blocks of blockSize source indices
// with replacement until it has assembled a resampled index sequence of
// length totalBars, preserving each block's internal autocorrelation while
// randomizing the order blocks appear in.
func blockBootstrapIndices(rng *rand.Rand, totalBars, blockSize int) []int {
	if totalBars <= 0 {
		return nil
	}
	if blockSize <= 0 {
		blockSize = 1
	}
	maxStart := totalBars - blockSize
	if maxStart < 0 {
		maxStart = 0
	}
	out := make([]int, 0, totalBars)
	for len(out) < totalBars {
		start := 0
		if maxStart > 0 {
			start = rng.IntN(maxStart + 1)
		}
		for i := 0; i < blockSize && len(out) < totalBars; i++ {
			out = append(out, start+i)
		}
	}
	return out
}

// regimeWindow picks a random contiguous [start, end) window between
// minBars and maxBars wide within [0, totalBars).
func regimeWindow(rng *rand.Rand, totalBars, minBars, maxBars int) (int, int) {
	if maxBars <= 0 || maxBars > totalBars {
		maxBars = totalBars
	}
	if minBars <= 0 || minBars > maxBars {
		minBars = maxBars
	}
	width := minBars
	if maxBars > minBars {
		width = minBars + rng.IntN(maxBars-minBars+1)
	}
	maxStart := totalBars - width
	start := 0
	if maxStart > 0 {
		start = rng.IntN(maxStart + 1)
	}
	return start, start + width
}
