package portfolio

import (
	"time"

	"github.com/avalytics/btkernel/internal/bar"
	"github.com/avalytics/btkernel/internal/order"
)

// Position is an open or closed holding in one instrument. The order book
// remains the single owner of Order records; a position only ever refers to
// its protective orders by ID, never by pointer — the cyclic-reference
// resolution from the design notes.
type Position struct {
	Instrument string
	Side       bar.Side
	Quantity   int64
	AvgEntry   bar.Ticks

	RealizedPnL   bar.Ticks
	UnrealizedPnL bar.Ticks

	EntryBar  int64
	EntryTime time.Time

	// ProtectiveOrders holds the IDs of this position's live protective
	// orders (stops, brackets), not the orders themselves.
	ProtectiveOrders []order.ID

	// bars-held excursion tracking, for MAE/MFE on the eventual closing trade.
	highestSinceEntry bar.Ticks
	lowestSinceEntry  bar.Ticks
}

// NewPosition opens a position from an entry fill.
func NewPosition(instrument string, side bar.Side, qty int64, price bar.Ticks, barIdx int64, at time.Time) *Position {
	return &Position{
		Instrument: instrument, Side: side, Quantity: qty, AvgEntry: price,
		EntryBar: barIdx, EntryTime: at,
		highestSinceEntry: price, lowestSinceEntry: price,
	}
}

// AddToPosition folds an additional same-side entry fill into the
// volume-weighted average entry price.
func (p *Position) AddToPosition(qty int64, price bar.Ticks) {
	totalValue := int64(p.AvgEntry)*p.Quantity + int64(price)*qty
	p.Quantity += qty
	if p.Quantity != 0 {
		p.AvgEntry = bar.Ticks(totalValue / p.Quantity)
	}
}

// MarkToMarket updates unrealized PnL and the excursion tracking used for
// MAE/MFE at eventual close.
func (p *Position) MarkToMarket(price bar.Ticks) {
	if price > p.highestSinceEntry {
		p.highestSinceEntry = price
	}
	if price < p.lowestSinceEntry || p.lowestSinceEntry == 0 {
		p.lowestSinceEntry = price
	}
	p.UnrealizedPnL = p.unrealizedAt(price)
}

func (p *Position) unrealizedAt(price bar.Ticks) bar.Ticks {
	delta := price - p.AvgEntry
	if p.Side == bar.Short {
		delta = -delta
	}
	return delta * bar.Ticks(p.Quantity)
}

// ReduceForExit reduces quantity on a closing (or partially closing) fill
// and returns the realized PnL and excursion figures for the trade ledger
// entry this fill produces.
func (p *Position) ReduceForExit(qty int64, price bar.Ticks) (realized, mae, mfe bar.Ticks) {
	delta := price - p.AvgEntry
	if p.Side == bar.Short {
		delta = -delta
	}
	realized = delta * bar.Ticks(qty)
	p.RealizedPnL += realized
	p.Quantity -= qty

	if p.Side == bar.Long {
		mae = p.AvgEntry - p.lowestSinceEntry
		mfe = p.highestSinceEntry - p.AvgEntry
	} else {
		mae = p.highestSinceEntry - p.AvgEntry
		mfe = p.AvgEntry - p.lowestSinceEntry
	}
	if mae < 0 {
		mae = 0
	}
	if mfe < 0 {
		mfe = 0
	}
	return realized, mae, mfe
}

// Value returns the mark-to-market notional value of the position at price.
func (p *Position) Value(price bar.Ticks) bar.Ticks {
	return price * bar.Ticks(p.Quantity)
}

// Flat reports whether the position has no remaining quantity.
func (p *Position) Flat() bool { return p.Quantity == 0 }
