// Package config defines the kernel's typed configuration schema and loads
// it strictly — via spf13/viper — rejecting any key present in a config
// file that the schema does not recognize, so a typo in a candidate
// definition fails loudly rather than silently falling back to a default.
package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// ExecutionPreset names a closed set of execution-friction presets. Load
// validates the name; the run and sweep commands do not read it, and the
// simulator is configured from the explicit ExecutionConfig friction fields
// only.
type ExecutionPreset string

const (
	PresetIdeal     ExecutionPreset = "ideal"
	PresetRealistic ExecutionPreset = "realistic"
	PresetHostile   ExecutionPreset = "hostile"
)

// PathPolicyKind is the closed set of intrabar path policies.
type PathPolicyKind string

const (
	PathDeterministicOHLC PathPolicyKind = "deterministic-ohlc"
	PathDeterministicOLHC PathPolicyKind = "deterministic-olhc"
	PathWorstCase         PathPolicyKind = "worst-case"
	PathBestCase          PathPolicyKind = "best-case"
	PathRandom            PathPolicyKind = "random"
)

// AllocationKind is the closed set of participation-cap allocation rules.
type AllocationKind string

const (
	AllocationTimePriority AllocationKind = "time-priority"
	AllocationProRata      AllocationKind = "pro-rata"
)

// StopStrategyKind is the closed set of position-manager stop strategies.
type StopStrategyKind string

const (
	StopFixedPercent StopStrategyKind = "fixed-percent"
	StopATR          StopStrategyKind = "atr"
	StopChandelier   StopStrategyKind = "chandelier"
	StopTime         StopStrategyKind = "time"
	StopComposite    StopStrategyKind = "composite"
)

// SignalFilterKind is the closed set of signal filters, mirroring
// internal/signal.FilterKind as config-file-facing strings.
type SignalFilterKind string

const (
	SignalFilterNone                SignalFilterKind = "none"
	SignalFilterVolatilityGate      SignalFilterKind = "volatility-gate"
	SignalFilterRegimeGate          SignalFilterKind = "regime-gate"
	SignalFilterConfidenceThreshold SignalFilterKind = "confidence-threshold"
)

// SignalKind is the closed set of signal families, mirroring
// internal/signal's concrete Signal implementations as config-file-facing
// strings.
type SignalKind string

const (
	SignalTrendCrossover SignalKind = "trend-crossover"
	SignalBreakout       SignalKind = "breakout"
	SignalMeanRevert     SignalKind = "mean-revert"
)

// BacktestParams are the candidate's core run parameters.
type BacktestParams struct {
	Symbol         string  `mapstructure:"symbol"`
	InitialCapital float64 `mapstructure:"initial_capital"`
	AllowMargin    bool    `mapstructure:"allow_margin"`
	TickSize       float64 `mapstructure:"tick_size"`
	LotSize        int64   `mapstructure:"lot_size"`
}

// ExecutionConfig configures the execution simulator for one candidate.
// Preset and Path are validated at load but not applied: the run and sweep
// commands always use a deterministic OHLC path (a random path at L4).
type ExecutionConfig struct {
	Preset            ExecutionPreset `mapstructure:"preset"`
	Path              PathPolicyKind  `mapstructure:"path_policy"`
	Allocation        AllocationKind  `mapstructure:"allocation"`
	ParticipationRate float64         `mapstructure:"participation_rate"`
	CommissionPerUnit float64         `mapstructure:"commission_per_unit"`
	SlippageBps       float64         `mapstructure:"slippage_bps"`
	AdverseSkew       float64         `mapstructure:"adverse_skew"`
}

// StopStrategyConfig configures one position-manager stop strategy.
type StopStrategyConfig struct {
	Kind        StopStrategyKind `mapstructure:"kind"`
	Percent     float64          `mapstructure:"percent"`
	ATRFeature  string           `mapstructure:"atr_feature"`
	Multiplier  float64          `mapstructure:"multiplier"`
	MaxBarsHeld int64            `mapstructure:"max_bars_held"`
}

// SignalConfig selects and parameterizes one candidate's signal and the
// filter applied ahead of order generation. Filter SignalFilterNone means no
// filter is applied.
type SignalConfig struct {
	Kind SignalKind `mapstructure:"kind"`

	// FastFeature/SlowFeature parameterize SignalTrendCrossover.
	FastFeature string `mapstructure:"fast_feature"`
	SlowFeature string `mapstructure:"slow_feature"`

	// UpperFeature/LowerFeature parameterize SignalBreakout.
	UpperFeature string `mapstructure:"upper_feature"`
	LowerFeature string `mapstructure:"lower_feature"`

	// MeanFeature/DispersionFeature/ZThreshold/LimitOffset parameterize
	// SignalMeanRevert.
	MeanFeature       string  `mapstructure:"mean_feature"`
	DispersionFeature string  `mapstructure:"dispersion_feature"`
	ZThreshold        float64 `mapstructure:"z_threshold"`
	LimitOffset       float64 `mapstructure:"limit_offset"`

	Filter              SignalFilterKind `mapstructure:"filter"`
	VolatilityFeature   string           `mapstructure:"volatility_feature"`
	VolatilityMax       float64          `mapstructure:"volatility_max"`
	ConfidenceThreshold float64          `mapstructure:"confidence_threshold"`
}

// RiskConfig bounds position sizing.
type RiskConfig struct {
	MaxExposure float64 `mapstructure:"max_exposure"`
}

// GateConfig mirrors internal/ladder.Gate as config-file-facing
// thresholds, applied to every level the run/sweep commands drive.
type GateConfig struct {
	MinP10Sharpe          float64 `mapstructure:"min_p10_sharpe"`
	MinP50Sharpe          float64 `mapstructure:"min_p50_sharpe"`
	MinStability          float64 `mapstructure:"min_stability"`
	MaxUncertainty        float64 `mapstructure:"max_uncertainty"`
	MinTradeCount         int     `mapstructure:"min_trade_count"`
	MaxDrawdown           float64 `mapstructure:"max_drawdown"`
	MaxDegradation        float64 `mapstructure:"max_degradation"`
	MinProfitableFraction float64 `mapstructure:"min_profitable_fraction"`
}

// Config is the full typed configuration tree for one candidate.
type Config struct {
	Backtest  BacktestParams     `mapstructure:"backtest"`
	Execution ExecutionConfig    `mapstructure:"execution"`
	Stop      StopStrategyConfig `mapstructure:"stop"`
	Signal    SignalConfig       `mapstructure:"signal"`
	Risk      RiskConfig         `mapstructure:"risk"`
	Gate      GateConfig         `mapstructure:"gate"`
	Seed      int64              `mapstructure:"seed"`
}

// ConfigError wraps a load or validation failure with the config file path
// that produced it.
type ConfigError struct {
	Path  string
	Cause error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config %s: %v", e.Path, e.Cause)
}

func (e *ConfigError) Unwrap() error { return e.Cause }

// Load reads and strictly decodes a candidate config file: any key in the
// file not matching the schema above is a load error, not a silently
// ignored field.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetDefault("execution.preset", PresetRealistic)
	v.SetDefault("execution.allocation", AllocationTimePriority)
	v.SetDefault("execution.path_policy", PathDeterministicOHLC)
	v.SetDefault("signal.filter", SignalFilterNone)
	v.SetDefault("signal.kind", SignalTrendCrossover)
	v.SetDefault("signal.fast_feature", "ema20")
	v.SetDefault("signal.slow_feature", "sma50")
	v.SetDefault("signal.upper_feature", "donchian_high")
	v.SetDefault("signal.lower_feature", "donchian_low")
	v.SetDefault("signal.mean_feature", "sma20")
	v.SetDefault("signal.dispersion_feature", "atr14")
	v.SetDefault("signal.z_threshold", 2.0)
	v.SetDefault("risk.max_exposure", 1.0)

	if err := v.ReadInConfig(); err != nil {
		return nil, &ConfigError{Path: path, Cause: err}
	}

	var cfg Config
	if err := v.UnmarshalExact(&cfg); err != nil {
		return nil, &ConfigError{Path: path, Cause: err}
	}
	if err := cfg.Validate(); err != nil {
		return nil, &ConfigError{Path: path, Cause: err}
	}
	return &cfg, nil
}

// Validate checks the closed enums and cross-field constraints the
// mapstructure decode alone cannot.
func (c *Config) Validate() error {
	switch c.Execution.Preset {
	case PresetIdeal, PresetRealistic, PresetHostile:
	default:
		return fmt.Errorf("execution.preset: unknown value %q", c.Execution.Preset)
	}
	switch c.Execution.Path {
	case PathDeterministicOHLC, PathDeterministicOLHC, PathWorstCase, PathBestCase, PathRandom:
	default:
		return fmt.Errorf("execution.path_policy: unknown value %q", c.Execution.Path)
	}
	switch c.Execution.Allocation {
	case AllocationTimePriority, AllocationProRata:
	default:
		return fmt.Errorf("execution.allocation: unknown value %q", c.Execution.Allocation)
	}
	switch c.Stop.Kind {
	case "", StopFixedPercent, StopATR, StopChandelier, StopTime, StopComposite:
	default:
		return fmt.Errorf("stop.kind: unknown value %q", c.Stop.Kind)
	}
	switch c.Signal.Filter {
	case SignalFilterNone, SignalFilterVolatilityGate, SignalFilterRegimeGate, SignalFilterConfidenceThreshold:
	default:
		return fmt.Errorf("signal.filter: unknown value %q", c.Signal.Filter)
	}
	switch c.Signal.Kind {
	case SignalTrendCrossover, SignalBreakout, SignalMeanRevert:
	default:
		return fmt.Errorf("signal.kind: unknown value %q", c.Signal.Kind)
	}
	if c.Backtest.InitialCapital <= 0 {
		return fmt.Errorf("backtest.initial_capital must be positive, got %v", c.Backtest.InitialCapital)
	}
	return nil
}
