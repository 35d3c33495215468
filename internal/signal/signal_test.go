package signal

import (
	"testing"

	"github.com/avalytics/btkernel/internal/bar"
	"github.com/avalytics/btkernel/internal/order"
)

func TestConfidenceThreshold_BlocksWeakSignals(t *testing.T) {
	f := ConfidenceThreshold{Min: 0.5}
	if f.Allow(Intent{Confidence: 0.4}, bar.Bar{}) {
		t.Fatal("expected weak-confidence intent to be blocked")
	}
	if !f.Allow(Intent{Confidence: 0.6}, bar.Bar{}) {
		t.Fatal("expected strong-confidence intent to pass")
	}
}

func TestVolatilityGate_BlocksOverThreshold(t *testing.T) {
	f := VolatilityGate{Feature: "atr", MaxValue: 2.0}
	b := bar.Bar{Features: map[string]float64{"atr": 3.0}}
	if f.Allow(Intent{}, b) {
		t.Fatal("expected high-volatility bar to be blocked")
	}
	b.Features["atr"] = 1.0
	if !f.Allow(Intent{}, b) {
		t.Fatal("expected low-volatility bar to pass")
	}
}

func TestTargetExposurePolicy_SizesFromFlat(t *testing.T) {
	ins := bar.Instrument{Symbol: "AAA", TickSize: 1, LotSize: 1}
	policy := TargetExposurePolicy{}
	view := PortfolioView{Equity: 100000}
	risk := RiskConfig{MaxExposure: 0.5}

	intents, err := policy.Translate(Intent{Exposure: 1.0}, ins, 100, view, risk)
	if err != nil {
		t.Fatal(err)
	}
	if len(intents) != 1 {
		t.Fatalf("expected one order intent, got %d", len(intents))
	}
	want := int64(100000 * 0.5 / 100)
	if intents[0].Quantity != want || intents[0].Side != bar.Long {
		t.Fatalf("expected long %d, got side=%v qty=%d", want, intents[0].Side, intents[0].Quantity)
	}
}

func TestTargetExposurePolicy_ReversesPosition(t *testing.T) {
	ins := bar.Instrument{Symbol: "AAA", TickSize: 1, LotSize: 1}
	policy := TargetExposurePolicy{}
	view := PortfolioView{Equity: 100000, Position: &PositionView{Side: bar.Long, Quantity: 500}}
	risk := RiskConfig{MaxExposure: 0.5}

	intents, err := policy.Translate(Intent{Exposure: -1.0}, ins, 100, view, risk)
	if err != nil {
		t.Fatal(err)
	}
	if len(intents) != 1 || intents[0].Side != bar.Short {
		t.Fatalf("expected a short order reversing the long position, got %+v", intents)
	}
	if intents[0].Kind != order.MarketNow {
		t.Fatalf("expected MarketNow kind, got %v", intents[0].Kind)
	}
}

func TestTargetExposurePolicy_NoOpWhenAtTarget(t *testing.T) {
	ins := bar.Instrument{Symbol: "AAA", TickSize: 1, LotSize: 1}
	policy := TargetExposurePolicy{}
	view := PortfolioView{Equity: 100000, Position: &PositionView{Side: bar.Long, Quantity: 500}}
	risk := RiskConfig{MaxExposure: 0.5}

	intents, err := policy.Translate(Intent{Exposure: 1.0}, ins, 100, view, risk)
	if err != nil {
		t.Fatal(err)
	}
	if len(intents) != 0 {
		t.Fatalf("expected no-op at target exposure, got %+v", intents)
	}
}

func TestTargetExposurePolicy_BreakoutFamilyBecomesStopEntry(t *testing.T) {
	ins := bar.Instrument{Symbol: "AAA", TickSize: 1, LotSize: 1}
	policy := TargetExposurePolicy{}
	view := PortfolioView{Equity: 100000}
	risk := RiskConfig{MaxExposure: 0.5}

	intent := Intent{Exposure: 1.0, Tags: []string{string(FamilyBreakout)}, Metadata: map[string]any{MetaTriggerPrice: 105.0}}
	intents, err := policy.Translate(intent, ins, 100, view, risk)
	if err != nil {
		t.Fatal(err)
	}
	if len(intents) != 1 || intents[0].Kind != order.StopMarket {
		t.Fatalf("expected a StopMarket entry, got %+v", intents)
	}
	if intents[0].TriggerTick != 105 {
		t.Fatalf("expected trigger at 105, got %v", intents[0].TriggerTick)
	}
}

func TestTargetExposurePolicy_MeanRevertFamilyBecomesLimitEntry(t *testing.T) {
	ins := bar.Instrument{Symbol: "AAA", TickSize: 1, LotSize: 1}
	policy := TargetExposurePolicy{}
	view := PortfolioView{Equity: 100000}
	risk := RiskConfig{MaxExposure: 0.5}

	intent := Intent{Exposure: -1.0, Tags: []string{string(FamilyMeanRevert)}, Metadata: map[string]any{MetaLimitPrice: 95.0}}
	intents, err := policy.Translate(intent, ins, 100, view, risk)
	if err != nil {
		t.Fatal(err)
	}
	if len(intents) != 1 || intents[0].Kind != order.Limit {
		t.Fatalf("expected a Limit entry, got %+v", intents)
	}
	if intents[0].LimitTick != 95 {
		t.Fatalf("expected limit at 95, got %v", intents[0].LimitTick)
	}
}

func TestTrendCrossover_EmitsDirectionalExposure(t *testing.T) {
	s := TrendCrossover{FastFeature: "sma10", SlowFeature: "sma50"}
	b := bar.Bar{Symbol: "AAA", Features: map[string]float64{"sma10": 110, "sma50": 100}}
	intent, ok := s.Evaluate(b, 0)
	if !ok {
		t.Fatal("expected an intent when the features have warmed up")
	}
	if intent.Exposure != 1.0 || intent.Tags[0] != string(FamilyTrend) {
		t.Fatalf("expected long trend intent, got %+v", intent)
	}
}

func TestTrendCrossover_NoIntentBeforeWarmup(t *testing.T) {
	s := TrendCrossover{FastFeature: "sma10", SlowFeature: "sma50"}
	if _, ok := s.Evaluate(bar.Bar{}, 0); ok {
		t.Fatal("expected no intent with missing features")
	}
}

func TestBreakout_TriggersOnChannelBreach(t *testing.T) {
	s := Breakout{UpperFeature: "donchian_high", LowerFeature: "donchian_low"}
	b := bar.Bar{Symbol: "AAA", Close: 110, Features: map[string]float64{"donchian_high": 105, "donchian_low": 90}}
	intent, ok := s.Evaluate(b, 0)
	if !ok {
		t.Fatal("expected a breakout intent above the upper channel")
	}
	if intent.Exposure != 1.0 || intent.Metadata[MetaTriggerPrice] != 105.0 {
		t.Fatalf("expected long breakout triggering at 105, got %+v", intent)
	}
}

func TestBreakout_NoIntentInsideChannel(t *testing.T) {
	s := Breakout{UpperFeature: "donchian_high", LowerFeature: "donchian_low"}
	b := bar.Bar{Close: 95, Features: map[string]float64{"donchian_high": 105, "donchian_low": 90}}
	if _, ok := s.Evaluate(b, 0); ok {
		t.Fatal("expected no intent inside the channel")
	}
}

func TestMeanRevert_FadesExtensionPastThreshold(t *testing.T) {
	s := MeanRevert{MeanFeature: "sma20", DispersionFeature: "atr", ZThreshold: 2.0}
	b := bar.Bar{Symbol: "AAA", Close: 120, Features: map[string]float64{"sma20": 100, "atr": 5}}
	intent, ok := s.Evaluate(b, 0)
	if !ok {
		t.Fatal("expected a mean-revert intent far above the mean")
	}
	if intent.Exposure != -1.0 {
		t.Fatalf("expected a short fade, got exposure %v", intent.Exposure)
	}
	if limit := intent.Metadata[MetaLimitPrice].(float64); limit >= 120 || limit <= 100 {
		t.Fatalf("expected limit price between the mean and close, got %v", limit)
	}
}

func TestMeanRevert_NoIntentWithinThreshold(t *testing.T) {
	s := MeanRevert{MeanFeature: "sma20", DispersionFeature: "atr", ZThreshold: 2.0}
	b := bar.Bar{Close: 103, Features: map[string]float64{"sma20": 100, "atr": 5}}
	if _, ok := s.Evaluate(b, 0); ok {
		t.Fatal("expected no intent within the z-score threshold")
	}
}
