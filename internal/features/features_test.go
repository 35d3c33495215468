package features

import (
	"testing"
	"time"

	"github.com/avalytics/btkernel/internal/bar"
)

func mkBars(closes []bar.Ticks) []bar.Bar {
	bars := make([]bar.Bar, len(closes))
	now := time.Now()
	for i, c := range closes {
		bars[i] = bar.Bar{Symbol: "AAA", Timestamp: now.Add(time.Duration(i) * time.Minute), Open: c, High: c, Low: c, Close: c}
	}
	return bars
}

func TestSMA_InsufficientDataLeavesFeatureUnset(t *testing.T) {
	bars := mkBars([]bar.Ticks{10, 20, 30})
	SMA(bars, 5, "sma5")
	for i, b := range bars {
		if _, ok := b.Feature("sma5"); ok {
			t.Fatalf("bar %d: expected sma5 unset with insufficient data", i)
		}
	}
}

func TestSMA_ComputesMeanOverWindow(t *testing.T) {
	bars := mkBars([]bar.Ticks{10, 20, 30, 40, 50})
	SMA(bars, 3, "sma3")
	v, ok := bars[2].Feature("sma3")
	if !ok || v != 20 {
		t.Fatalf("expected sma3[2] == 20, got %v/%v", v, ok)
	}
	v, ok = bars[4].Feature("sma3")
	if !ok || v != 40 {
		t.Fatalf("expected sma3[4] == 40, got %v/%v", v, ok)
	}
}

func TestEMA_SeedsFromSMAThenRecurses(t *testing.T) {
	bars := mkBars([]bar.Ticks{10, 20, 30, 40, 50})
	EMA(bars, 3, "ema3")
	seed, ok := bars[2].Feature("ema3")
	if !ok || seed != 20 {
		t.Fatalf("expected ema3 seeded at SMA(3)=20, got %v/%v", seed, ok)
	}
	next, _ := bars[3].Feature("ema3")
	wantNext := (40.0-20.0)*0.5 + 20.0
	if next != wantNext {
		t.Fatalf("expected ema3[3] == %v, got %v", wantNext, next)
	}
}

func TestATR_FirstBarIsHighLowRange(t *testing.T) {
	bars := []bar.Bar{
		{Symbol: "AAA", Open: 100, High: 110, Low: 95, Close: 105},
		{Symbol: "AAA", Open: 105, High: 115, Low: 100, Close: 112},
	}
	ATR(bars, 1, "atr1")
	v, ok := bars[0].Feature("atr1")
	if !ok || v != 15 {
		t.Fatalf("expected atr1[0] == 15 (110-95), got %v/%v", v, ok)
	}
}
