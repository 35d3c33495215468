package ladder

import (
	"context"
	"errors"
	"testing"

	"github.com/avalytics/btkernel/internal/aggregate"
)

func TestDriver_StopsAtFirstFailedGate(t *testing.T) {
	l1 := NewCheapPass(100, 0.7, func(ctx context.Context, spec TrialSpec) (aggregate.TrialMetrics, error) {
		return aggregate.TrialMetrics{Sharpe: 2.0}, nil
	})
	l2 := NewWalkForward(100, 20, 20, func(ctx context.Context, spec TrialSpec) (aggregate.TrialMetrics, error) {
		return aggregate.TrialMetrics{Sharpe: -1.0}, nil
	})
	l3 := NewExecutionMonteCarlo(4, func(ctx context.Context, spec TrialSpec) (aggregate.TrialMetrics, error) {
		t.Fatal("L3 should never run once L2's gate rejects the candidate")
		return aggregate.TrialMetrics{}, nil
	})

	d := &Driver{MaxWorkers: 4}
	results, err := d.Run(context.Background(), "hash1", []Level{l1, l2, l3}, []Gate{
		{MinP50Sharpe: 0.5},
		{MinP50Sharpe: 0.5},
		{},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fatalf("expected the ladder to stop after 2 levels, got %d", len(results))
	}
	if !results[0].Promoted {
		t.Fatal("expected L1 to pass its gate")
	}
	if results[1].Promoted {
		t.Fatal("expected L2 to fail its gate")
	}
	if len(results[1].RejectReasons) == 0 {
		t.Fatal("expected a structured rejection reason")
	}
}

func TestDriver_TrialOrderIsIndexStableRegardlessOfCompletion(t *testing.T) {
	run := func(ctx context.Context, spec TrialSpec) (aggregate.TrialMetrics, error) {
		return aggregate.TrialMetrics{Sharpe: float64(spec.TrialIndex)}, nil
	}
	l := NewExecutionMonteCarlo(8, run)
	d := &Driver{MaxWorkers: 4}

	results, err := d.Run(context.Background(), "hash2", []Level{l}, []Gate{{}})
	if err != nil {
		t.Fatal(err)
	}
	for i, m := range results[0].Metrics {
		if m.Sharpe != float64(i) {
			t.Fatalf("expected metrics[%d].Sharpe == %d, got %v", i, i, m.Sharpe)
		}
	}
}

func TestDriver_PropagatesTrialError(t *testing.T) {
	boom := errors.New("boom")
	l := NewCheapPass(100, 0.7, func(ctx context.Context, spec TrialSpec) (aggregate.TrialMetrics, error) {
		return aggregate.TrialMetrics{}, boom
	})
	d := &Driver{MaxWorkers: 1}
	_, err := d.Run(context.Background(), "hash3", []Level{l}, []Gate{{}})
	if err == nil {
		t.Fatal("expected the trial error to propagate")
	}
}

func TestCheapPass_ComputesDegradationFromInAndOutOfSampleSharpe(t *testing.T) {
	run := func(ctx context.Context, spec TrialSpec) (aggregate.TrialMetrics, error) {
		if spec.Label == "in-sample" {
			return aggregate.TrialMetrics{Sharpe: 2.0}, nil
		}
		return aggregate.TrialMetrics{Sharpe: 1.0}, nil
	}
	l := NewCheapPass(100, 0.7, run)
	m, err := l.Run(context.Background(), 0)
	if err != nil {
		t.Fatal(err)
	}
	if got, want := m.Degradation, 0.5; got != want {
		t.Fatalf("expected degradation %.4f, got %.4f", want, got)
	}
}

func TestWalkForward_GeneratesSlidingOutOfSampleWindows(t *testing.T) {
	var seen []BarRange
	run := func(ctx context.Context, spec TrialSpec) (aggregate.TrialMetrics, error) {
		seen = append(seen, spec.Range)
		return aggregate.TrialMetrics{}, nil
	}
	l := NewWalkForward(100, 20, 20, run)
	for i := int64(0); i < int64(l.Trials()); i++ {
		if _, err := l.Run(context.Background(), i); err != nil {
			t.Fatal(err)
		}
	}
	if len(seen) < 2 {
		t.Fatalf("expected multiple walk-forward windows, got %d", len(seen))
	}
	for i := 1; i < len(seen); i++ {
		if seen[i].Start <= seen[i-1].Start {
			t.Fatalf("expected windows to slide forward, got %v then %v", seen[i-1], seen[i])
		}
	}
}

func TestPathMonteCarlo_FlattensPathAndExecutionIndices(t *testing.T) {
	var paths, execs []int
	run := func(ctx context.Context, spec TrialSpec) (aggregate.TrialMetrics, error) {
		paths = append(paths, spec.PathIndex)
		execs = append(execs, spec.ExecutionIndex)
		return aggregate.TrialMetrics{}, nil
	}
	l := NewPathMonteCarlo(3, 4, run)
	if l.Trials() != 12 {
		t.Fatalf("expected 12 flattened trials, got %d", l.Trials())
	}
	for i := int64(0); i < int64(l.Trials()); i++ {
		if _, err := l.Run(context.Background(), i); err != nil {
			t.Fatal(err)
		}
	}
	if paths[0] != 0 || paths[4] != 1 || paths[8] != 2 {
		t.Fatalf("expected path index to advance every 4 trials, got %v", paths)
	}
	if execs[0] != 0 || execs[1] != 1 || execs[4] != 0 {
		t.Fatalf("expected execution index to cycle within a path, got %v", execs)
	}
}

func TestResampling_AlternatesBlockBootstrapAndRegimeSubsample(t *testing.T) {
	var labels []string
	run := func(ctx context.Context, spec TrialSpec) (aggregate.TrialMetrics, error) {
		labels = append(labels, spec.Label)
		if spec.Label == "block-bootstrap" && len(spec.ResampleIndices) != 200 {
			t.Fatalf("expected block-bootstrap to resample to the full length, got %d indices", len(spec.ResampleIndices))
		}
		if spec.Label == "regime-subsample" && spec.Range.Empty() {
			t.Fatal("expected regime-subsample to carry a non-empty range")
		}
		return aggregate.TrialMetrics{}, nil
	}
	l := NewResampling("hash4", 200, 10, 30, 60, 4, run)
	for i := int64(0); i < int64(l.Trials()); i++ {
		if _, err := l.Run(context.Background(), i); err != nil {
			t.Fatal(err)
		}
	}
	if labels[0] != "block-bootstrap" || labels[1] != "regime-subsample" {
		t.Fatalf("expected alternating labels, got %v", labels)
	}
}

func TestResampling_IsDeterministicAcrossRuns(t *testing.T) {
	var capturedA, capturedB []int
	runA := func(ctx context.Context, spec TrialSpec) (aggregate.TrialMetrics, error) {
		capturedA = append(capturedA, spec.ResampleIndices...)
		return aggregate.TrialMetrics{}, nil
	}
	runB := func(ctx context.Context, spec TrialSpec) (aggregate.TrialMetrics, error) {
		capturedB = append(capturedB, spec.ResampleIndices...)
		return aggregate.TrialMetrics{}, nil
	}
	la := NewResampling("hash5", 100, 10, 20, 40, 1, runA)
	lb := NewResampling("hash5", 100, 10, 20, 40, 1, runB)
	if _, err := la.Run(context.Background(), 0); err != nil {
		t.Fatal(err)
	}
	if _, err := lb.Run(context.Background(), 0); err != nil {
		t.Fatal(err)
	}
	if len(capturedA) != len(capturedB) {
		t.Fatalf("expected identical resample length, got %d vs %d", len(capturedA), len(capturedB))
	}
	for i := range capturedA {
		if capturedA[i] != capturedB[i] {
			t.Fatalf("expected identical resample indices at %d, got %d vs %d", i, capturedA[i], capturedB[i])
		}
	}
}

func TestGate_EvaluatesDegradationTradeCountAndDrawdown(t *testing.T) {
	g := Gate{MaxDegradation: 0.4, MinTradeCount: 10, MaxDrawdown: 0.2}
	ok, reasons := g.Evaluate(aggregate.CandidateSummary{Degradation: 0.5, MinTradeCount: 3, MaxDrawdown: 0.3})
	if ok {
		t.Fatal("expected summary failing all three predicates to be rejected")
	}
	if len(reasons) != 3 {
		t.Fatalf("expected 3 rejection reasons, got %d: %v", len(reasons), reasons)
	}

	ok, reasons = g.Evaluate(aggregate.CandidateSummary{Degradation: 0.3, MinTradeCount: 20, MaxDrawdown: 0.1})
	if !ok {
		t.Fatalf("expected summary clearing all thresholds to pass, got reasons %v", reasons)
	}
}
