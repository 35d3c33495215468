// Package portfolio maintains cash and positions, applies fills, marks
// positions to market at each bar close, and appends to the equity curve
// and trade ledger.
package portfolio

import (
	"fmt"
	"time"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/avalytics/btkernel/internal/bar"
	"github.com/avalytics/btkernel/internal/order"
)

// Settings configures the accounting rules a Portfolio enforces.
type Settings struct {
	InitialCapital   bar.Ticks
	AllowMargin      bool
	CommissionPerFill bar.Ticks
}

// Portfolio holds cash, open positions (in symbol-submission order, via an
// ordered map so iteration — which feeds the equity sum — is deterministic),
// and the append-only equity curve and trade ledger; a closed position is
// removed and survives only as its TradeRecord.
type Portfolio struct {
	settings Settings
	cash     bar.Ticks

	positions *orderedmap.OrderedMap[string, *Position]

	Equity []EquityPoint
	Trades []TradeRecord

	peakEquity bar.Ticks
}

// New creates a portfolio seeded with InitialCapital.
func New(settings Settings) *Portfolio {
	return &Portfolio{
		settings:  settings,
		cash:      settings.InitialCapital,
		positions: orderedmap.New[string, *Position](),
		peakEquity: settings.InitialCapital,
	}
}

// Cash returns the current cash balance.
func (p *Portfolio) Cash() bar.Ticks { return p.cash }

// Position returns the open position for an instrument, if any.
func (p *Portfolio) Position(instrument string) (*Position, bool) {
	return p.positions.Get(instrument)
}

// InsufficientCashError is returned when a fill would drive cash negative
// and margin is not configured.
type InsufficientCashError struct {
	Instrument string
	Have, Need bar.Ticks
}

func (e *InsufficientCashError) Error() string {
	return fmt.Sprintf("%s: insufficient cash: have %d, need %d", e.Instrument, e.Have, e.Need)
}

func (e *InsufficientCashError) LogFields() map[string]any {
	return map[string]any{"instrument": e.Instrument, "have": e.Have, "need": e.Need}
}

// ApplyFill adjusts cash and positions for one fill. side is the side
// of the order generating the fill (bar.Long to buy, bar.Short to sell);
// whether it opens, adds to, or reduces a position is derived from the
// existing position's side, if any.
func (p *Portfolio) ApplyFill(f order.Fill, instrument string, side bar.Side, barIdx int64, at time.Time) error {
	notional := f.Price * bar.Ticks(f.Quantity)
	cost := notional + f.Commission

	pos, exists := p.positions.Get(instrument)

	closing := exists && pos.Side != side
	if !closing {
		// Opening or adding to a position of the same side: cash always
		// decreases by the purchase cost plus commission, regardless of
		// long/short — a short sale's margin mechanics are out of scope
		// for this accounting layer; shorts are funded from existing cash.
		if !p.settings.AllowMargin && p.cash-cost < 0 {
			return &InsufficientCashError{Instrument: instrument, Have: p.cash, Need: cost}
		}
		p.cash -= cost
		if !exists {
			p.positions.Set(instrument, NewPosition(instrument, side, f.Quantity, f.Price, barIdx, at))
		} else {
			pos.AddToPosition(f.Quantity, f.Price)
		}
		return nil
	}

	// Closing or reducing an existing position.
	qty := f.Quantity
	if qty > pos.Quantity {
		qty = pos.Quantity
	}
	realized, mae, mfe := pos.ReduceForExit(qty, f.Price)
	proceeds := pos.AvgEntry*bar.Ticks(qty) + realized - f.Commission
	p.cash += proceeds

	p.Trades = append(p.Trades, TradeRecord{
		Instrument: instrument, Side: pos.Side, Quantity: qty,
		EntryPrice: pos.AvgEntry, ExitPrice: f.Price,
		EntryTime: pos.EntryTime, ExitTime: at,
		EntryBar: pos.EntryBar, ExitBar: barIdx,
		RealizedPnL: realized, Commission: f.Commission,
		MAE: mae, MFE: mfe,
	})

	if pos.Flat() {
		p.positions.Delete(instrument)
	}
	return nil
}

// MarkToMarket updates every open position's unrealized PnL from the
// supplied close prices and appends one equity-curve point.
func (p *Portfolio) MarkToMarket(prices map[string]bar.Ticks, at time.Time) {
	for pair := p.positions.Oldest(); pair != nil; pair = pair.Next() {
		if price, ok := prices[pair.Key]; ok {
			pair.Value.MarkToMarket(price)
		}
	}
	eq := p.equity()
	if eq > p.peakEquity {
		p.peakEquity = eq
	}
	var dd float64
	if p.peakEquity > 0 {
		dd = float64(p.peakEquity-eq) / float64(p.peakEquity)
	}
	exposure := p.exposure(eq)
	p.Equity = append(p.Equity, EquityPoint{Timestamp: at, Equity: eq, Cash: p.cash, Drawdown: dd, Exposure: exposure})
}

// equity computes cash + sum(position value), iterating positions in their
// deterministic insertion order so the reduction is reproducible.
func (p *Portfolio) equity() bar.Ticks {
	total := p.cash
	for pair := p.positions.Oldest(); pair != nil; pair = pair.Next() {
		total += pair.Value.AvgEntry*bar.Ticks(pair.Value.Quantity) + pair.Value.UnrealizedPnL
	}
	return total
}

// CurrentEquity exposes the current total equity (cash plus mark-to-market
// position value) without appending a curve point.
func (p *Portfolio) CurrentEquity() bar.Ticks { return p.equity() }

func (p *Portfolio) exposure(equity bar.Ticks) float64 {
	if equity == 0 {
		return 0
	}
	var gross bar.Ticks
	for pair := p.positions.Oldest(); pair != nil; pair = pair.Next() {
		v := pair.Value.AvgEntry * bar.Ticks(pair.Value.Quantity)
		if v < 0 {
			v = -v
		}
		gross += v
	}
	return float64(gross) / float64(equity)
}

// OpenPositions returns the count of currently open positions.
func (p *Portfolio) OpenPositions() int { return p.positions.Len() }
