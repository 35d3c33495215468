package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/avalytics/btkernel/internal/aggregate"
	"github.com/avalytics/btkernel/internal/bar"
	"github.com/avalytics/btkernel/internal/cache"
	"github.com/avalytics/btkernel/internal/config"
	"github.com/avalytics/btkernel/internal/determinism"
	"github.com/avalytics/btkernel/internal/engine"
	"github.com/avalytics/btkernel/internal/execsim"
	"github.com/avalytics/btkernel/internal/execsim/friction"
	"github.com/avalytics/btkernel/internal/ladder"
	"github.com/avalytics/btkernel/internal/obs"
	"github.com/avalytics/btkernel/internal/posmgr"
	"github.com/avalytics/btkernel/internal/portfolio"
	"github.com/avalytics/btkernel/internal/signal"
)

// Exit codes: 0 a candidate ran to completion and cleared every configured
// gate; 2 it ran cleanly but was rejected by a gate at some level; 1 a
// config, data, or simulation error prevented the run from completing at
// all.
const (
	exitOK       = 0
	exitError    = 1
	exitRejected = 2
)

func newRunCmd() *cobra.Command {
	var configPath, dataPath, levelName string
	var trials int

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a single candidate through one level of the robustness ladder",
		RunE: func(cmd *cobra.Command, args []string) error {
			code, err := runCandidate(configPath, dataPath, levelName, trials)
			if err != nil {
				return err
			}
			if code != exitOK {
				fmt.Fprintf(cmd.ErrOrStderr(), "candidate rejected (exit %d)\n", code)
				os.Exit(code)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "candidate config file (required)")
	cmd.Flags().StringVar(&dataPath, "data", "", "bar data CSV file (required)")
	cmd.Flags().StringVar(&levelName, "level", "l1", "ladder level to run: l1, l2, l3, l4, or l5")
	cmd.Flags().IntVar(&trials, "trials", 1, "trial count (L3 trial count; L4 path count; L5 trial count; ignored by L1/L2)")
	cmd.MarkFlagRequired("config")
	cmd.MarkFlagRequired("data")
	return cmd
}

func runCandidate(configPath, dataPath, levelName string, trials int) (int, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return exitError, err
	}
	series, err := loadSeries(cfg.Backtest.Symbol, dataPath)
	if err != nil {
		return exitError, err
	}
	rows, err := datasetRows(dataPath)
	if err != nil {
		return exitError, err
	}
	datasetHash := determinism.DatasetHash(rows, determinism.DatasetHashFast)

	canonical := determinism.Canonicalize(map[string]any{
		"symbol":          cfg.Backtest.Symbol,
		"initial_capital": cfg.Backtest.InitialCapital,
		"signal_kind":     cfg.Signal.Kind,
		"seed":            cfg.Seed,
	})
	candidateHash := determinism.CandidateHash(canonical)
	logger := obs.ForTrial(baseLogger, candidateHash, 0)

	store, err := cache.NewStore(cacheDir)
	if err != nil {
		return exitError, err
	}

	ins := bar.Instrument{Symbol: cfg.Backtest.Symbol, TickSize: bar.Ticks(cfg.Backtest.TickSize), LotSize: cfg.Backtest.LotSize}
	if ins.LotSize == 0 {
		ins.LotSize = 1
	}

	sig, err := buildSignal(cfg.Signal)
	if err != nil {
		return exitError, err
	}
	filter, err := buildFilter(cfg.Signal)
	if err != nil {
		return exitError, err
	}
	policy := signal.TargetExposurePolicy{}
	allocation := execsim.TimePriority
	if cfg.Execution.Allocation == config.AllocationProRata {
		allocation = execsim.ProRata
	}

	runTrial := func(ctx context.Context, spec ladder.TrialSpec) (aggregate.TrialMetrics, error) {
		trialSeries := sliceSeries(series, spec)
		rng := determinism.NewStream(candidateHash, spec.TrialIndex)
		sim := &execsim.Simulator{
			Instrument:        ins,
			Path:              execsim.DeterministicOHLC{},
			Slippage:          friction.FixedBps{Bps: cfg.Execution.SlippageBps},
			Adverse:           friction.AdverseSelection{Skew: cfg.Execution.AdverseSkew},
			Participation:     execsim.ParticipationCap{ParticipationRate: cfg.Execution.ParticipationRate, Allocation: allocation},
			CommissionPerUnit: bar.Ticks(cfg.Execution.CommissionPerUnit),
		}
		if levelName == "l4" {
			sim.Path = execsim.Random{}
			sim.PathRNG = determinism.SubStream(candidateHash, int64(spec.PathIndex), "l4-path")
		}
		var posManager *posmgr.Manager
		if cfg.Stop.Kind != "" {
			posManager = posmgr.NewManager(buildStrategy(cfg.Stop))
		}
		eng := engine.New(engine.Config{
			Instrument:      ins,
			Simulator:       sim,
			Portfolio:       portfolio.Settings{InitialCapital: bar.Ticks(cfg.Backtest.InitialCapital), AllowMargin: cfg.Backtest.AllowMargin},
			Signal:          sig,
			OrderPolicy:     policy,
			Filter:          filter,
			Risk:            signalRisk(cfg),
			PositionManager: posManager,
		}, rng)

		res, err := eng.Run(ctx, trialSeries)
		if err != nil {
			return aggregate.TrialMetrics{}, err
		}
		return aggregate.FromPortfolio(res.Portfolio, 252), nil
	}

	level, err := buildLevel(levelName, len(series.Bars), trials, candidateHash, runTrial)
	if err != nil {
		return exitError, err
	}

	gate := buildGate(cfg.Gate)
	driver := &ladder.Driver{MaxWorkers: 4}
	results, err := driver.Run(context.Background(), candidateHash, []ladder.Level{level}, []ladder.Gate{gate})
	if err != nil {
		return exitError, err
	}

	result := results[0]
	logger.Info().
		Str("level", result.Level).
		Float64("sharpe_p50", result.Summary.Sharpe.P50).
		Bool("promoted", result.Promoted).
		Msg("candidate level complete")

	entryManifest := cache.Manifest{CandidateHash: candidateHash, DatasetHash: datasetHash, Level: result.Level, Diagnostics: map[string]any{
		"sharpe_p50": result.Summary.Sharpe.P50,
		"allocation": string(cfg.Execution.Allocation),
		"hash_mode":  "fast",
	}}
	_ = store.Put(cache.Key{CandidateHash: candidateHash, Level: result.Level, DatasetHash: datasetHash}, cache.Entry{Manifest: entryManifest})

	if !result.Promoted {
		return exitRejected, nil
	}
	return exitOK, nil
}

// sliceSeries applies a ladder.TrialSpec's range and resample indices to a
// full bar series, in that order: a resample is drawn from within the
// range (or the full series if the range is empty), which is how L5's
// regime-subsample-then-bootstrap composition would work if the two were
// ever combined, even though no current level sets both at once.
func sliceSeries(series bar.Series, spec ladder.TrialSpec) bar.Series {
	bars := series.Bars
	if !spec.Range.Empty() {
		start, end := spec.Range.Start, spec.Range.End
		if start < 0 {
			start = 0
		}
		if end > len(bars) {
			end = len(bars)
		}
		if start > end {
			start = end
		}
		bars = bars[start:end]
	}
	if len(spec.ResampleIndices) > 0 {
		resampled := make([]bar.Bar, 0, len(spec.ResampleIndices))
		for _, idx := range spec.ResampleIndices {
			if idx < 0 || idx >= len(bars) {
				continue
			}
			resampled = append(resampled, bars[idx])
		}
		bars = resampled
	}
	return bar.Series{Symbol: series.Symbol, Bars: bars}
}

// buildLevel constructs the requested ladder level, sizing its trials and
// windows from the dataset length and the --trials flag. L4 samples
// --trials micro-paths and runs three execution re-draws on each.
func buildLevel(levelName string, totalBars, trials int, candidateHash string, run ladder.TrialFunc) (ladder.Level, error) {
	switch levelName {
	case "l1":
		return ladder.NewCheapPass(totalBars, 0.7, run), nil
	case "l2":
		trainBars := totalBars / 4
		windowBars := totalBars / 8
		if windowBars < 1 {
			windowBars = totalBars
		}
		return ladder.NewWalkForward(totalBars, trainBars, windowBars, run), nil
	case "l3":
		if trials < 1 {
			trials = 1
		}
		return ladder.NewExecutionMonteCarlo(trials, run), nil
	case "l4":
		paths := trials
		if paths < 1 {
			paths = 1
		}
		return ladder.NewPathMonteCarlo(paths, 3, run), nil
	case "l5":
		if trials < 1 {
			trials = 1
		}
		return ladder.NewResampling(candidateHash, totalBars, totalBars/20, totalBars/10, totalBars/4, trials, run), nil
	default:
		return nil, fmt.Errorf("level: unknown value %q", levelName)
	}
}

func buildSignal(cfg config.SignalConfig) (signal.Signal, error) {
	switch cfg.Kind {
	case config.SignalBreakout:
		return signal.Breakout{UpperFeature: cfg.UpperFeature, LowerFeature: cfg.LowerFeature}, nil
	case config.SignalMeanRevert:
		return signal.MeanRevert{
			MeanFeature: cfg.MeanFeature, DispersionFeature: cfg.DispersionFeature,
			ZThreshold: cfg.ZThreshold, LimitOffset: cfg.LimitOffset,
		}, nil
	case config.SignalTrendCrossover, "":
		return signal.TrendCrossover{FastFeature: cfg.FastFeature, SlowFeature: cfg.SlowFeature}, nil
	default:
		return nil, fmt.Errorf("signal.kind: unknown value %q", cfg.Kind)
	}
}

// buildFilter selects the signal filter ahead of order generation.
// RegimeGate has no config-file representation yet since its Allowed set
// is a map rather than a scalar threshold; select it via a future config
// extension once a candidate needs it.
func buildFilter(cfg config.SignalConfig) (signal.Filter, error) {
	switch cfg.Filter {
	case config.SignalFilterVolatilityGate:
		return signal.VolatilityGate{Feature: cfg.VolatilityFeature, MaxValue: cfg.VolatilityMax}, nil
	case config.SignalFilterConfidenceThreshold:
		return signal.ConfidenceThreshold{Min: cfg.ConfidenceThreshold}, nil
	case config.SignalFilterRegimeGate:
		return nil, fmt.Errorf("signal.filter: regime-gate is not yet configurable from a config file")
	case config.SignalFilterNone, "":
		return nil, nil
	default:
		return nil, fmt.Errorf("signal.filter: unknown value %q", cfg.Filter)
	}
}

func buildGate(cfg config.GateConfig) ladder.Gate {
	return ladder.Gate{
		MinP10Sharpe:          cfg.MinP10Sharpe,
		MinP50Sharpe:          cfg.MinP50Sharpe,
		MinStability:          cfg.MinStability,
		MaxUncertainty:        cfg.MaxUncertainty,
		MinTradeCount:         cfg.MinTradeCount,
		MaxDrawdown:           cfg.MaxDrawdown,
		MaxDegradation:        cfg.MaxDegradation,
		MinProfitableFraction: cfg.MinProfitableFraction,
	}
}

func signalRisk(cfg *config.Config) signal.RiskConfig {
	return signal.RiskConfig{MaxExposure: cfg.Risk.MaxExposure}
}

func buildStrategy(s config.StopStrategyConfig) posmgr.Strategy {
	switch s.Kind {
	case config.StopFixedPercent:
		return posmgr.FixedPercent{Percent: s.Percent}
	case config.StopATR:
		return posmgr.ATRStop{ATRFeature: s.ATRFeature, Multiplier: s.Multiplier}
	case config.StopChandelier:
		return posmgr.NewChandelier(s.ATRFeature, s.Multiplier)
	case config.StopTime:
		return posmgr.TimeStop{MaxBarsHeld: s.MaxBarsHeld}
	default:
		return posmgr.FixedPercent{Percent: 0.05}
	}
}
