package ladder

import (
	"context"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/avalytics/btkernel/internal/aggregate"
)

// LevelResult is one level's outcome: every trial's metrics (indexed by
// trial index, not completion order, so the result is identical regardless
// of worker scheduling), the aggregated summary, and the promotion
// decision.
type LevelResult struct {
	Level         string
	CandidateHash string
	Metrics       []aggregate.TrialMetrics
	Summary       aggregate.CandidateSummary
	Promoted      bool
	RejectReasons []string
}

// Driver runs a candidate through a sequence of levels, stopping at the
// first level whose gate rejects it.
type Driver struct {
	MaxWorkers     int64
	PeriodsPerYear float64
}

// Run executes levels in order against candidateHash, gating advancement
// on gates[i] after levels[i] completes. len(gates) must equal len(levels).
// Trials within a level run concurrently, capped at MaxWorkers; the ladder
// itself runs levels strictly one at a time.
func (d *Driver) Run(ctx context.Context, candidateHash string, levels []Level, gates []Gate) ([]LevelResult, error) {
	var results []LevelResult

	for i, level := range levels {
		metrics, err := d.runLevel(ctx, level)
		if err != nil {
			return results, err
		}

		summary := aggregate.Summarize(candidateHash, metrics, 1.0)

		promoted, reasons := gates[i].Evaluate(summary)
		results = append(results, LevelResult{
			Level: level.Name(), CandidateHash: candidateHash,
			Metrics: metrics, Summary: summary,
			Promoted: promoted, RejectReasons: reasons,
		})
		if !promoted {
			break
		}
	}
	return results, nil
}

func (d *Driver) runLevel(ctx context.Context, level Level) ([]aggregate.TrialMetrics, error) {
	n := level.Trials()
	metrics := make([]aggregate.TrialMetrics, n)

	workers := d.MaxWorkers
	if workers <= 0 {
		workers = 1
	}
	sem := semaphore.NewWeighted(workers)
	g, gctx := errgroup.WithContext(ctx)

	for i := 0; i < n; i++ {
		i := i
		if err := sem.Acquire(gctx, 1); err != nil {
			return nil, err
		}
		g.Go(func() error {
			defer sem.Release(1)
			m, err := level.Run(gctx, int64(i))
			if err != nil {
				return err
			}
			metrics[i] = m
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return metrics, nil
}
