package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "candidate.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_ValidConfig(t *testing.T) {
	path := writeConfig(t, `
backtest:
  symbol: AAA
  initial_capital: 100000
  tick_size: 0.01
  lot_size: 1
execution:
  preset: realistic
  path_policy: worst-case
  allocation: pro-rata
  participation_rate: 0.1
stop:
  kind: atr
  atr_feature: atr14
  multiplier: 2.5
signal:
  filter: confidence-threshold
  confidence_threshold: 0.6
risk:
  max_exposure: 0.5
seed: 42
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("expected a valid config to load, got %v", err)
	}
	if cfg.Backtest.Symbol != "AAA" || cfg.Execution.Path != PathWorstCase {
		t.Fatalf("unexpected decode: %+v", cfg)
	}
}

func TestLoad_RejectsUnknownKey(t *testing.T) {
	path := writeConfig(t, `
backtest:
  symbol: AAA
  initial_capital: 100000
typo_field: true
`)
	_, err := Load(path)
	if err == nil {
		t.Fatal("expected an unknown-key config to fail strict decoding")
	}
	if _, ok := err.(*ConfigError); !ok {
		t.Fatalf("expected *ConfigError, got %T", err)
	}
}

func TestLoad_RejectsUnknownEnumValue(t *testing.T) {
	path := writeConfig(t, `
backtest:
  symbol: AAA
  initial_capital: 100000
execution:
  path_policy: teleport
`)
	_, err := Load(path)
	if err == nil {
		t.Fatal("expected an unknown path_policy value to fail validation")
	}
}

func TestLoad_RejectsNonPositiveCapital(t *testing.T) {
	path := writeConfig(t, `
backtest:
  symbol: AAA
  initial_capital: 0
`)
	_, err := Load(path)
	if err == nil {
		t.Fatal("expected non-positive initial_capital to fail validation")
	}
}
