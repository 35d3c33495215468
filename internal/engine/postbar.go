package engine

import (
	"github.com/avalytics/btkernel/internal/bar"
	"github.com/avalytics/btkernel/internal/order"
	"github.com/avalytics/btkernel/internal/posmgr"
	"github.com/avalytics/btkernel/internal/signal"
)

// postBar runs the signal layer and the position manager. Both only ever
// run at the post-bar phase boundary — the one point in the loop where
// cancel-replace is legal — so entries and protective-stop tightening are
// always decided from the same, fully-settled end-of-bar state.
func (e *Engine) postBar(barIdx int64, b bar.Bar) error {
	if err := e.runSignal(barIdx, b); err != nil {
		return err
	}
	if e.cfg.PositionManager != nil {
		if err := e.runPositionManager(barIdx, b); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) runSignal(barIdx int64, b bar.Bar) error {
	if e.cfg.Signal == nil || e.cfg.OrderPolicy == nil {
		return nil
	}
	intent, ok := e.cfg.Signal.Evaluate(b, barIdx)
	if !ok {
		return nil
	}
	if e.cfg.Filter != nil && !e.cfg.Filter.Allow(intent, b) {
		return nil
	}

	view := signal.PortfolioView{Equity: e.portfolio.CurrentEquity()}
	if pos, ok := e.portfolio.Position(e.cfg.Instrument.Symbol); ok {
		view.Position = &signal.PositionView{Side: pos.Side, Quantity: pos.Quantity}
	}

	orderIntents, err := e.cfg.OrderPolicy.Translate(intent, e.cfg.Instrument, b.Close, view, e.cfg.Risk)
	if err != nil {
		return err
	}
	for _, oi := range orderIntents {
		if _, err := e.book.Submit(oi, e.cfg.Instrument, barIdx, b.Timestamp); err != nil {
			return err
		}
		if e.ghostActive() {
			if _, err := e.ghostBook.Submit(oi, e.cfg.Instrument, barIdx, b.Timestamp); err != nil {
				return err
			}
		}
	}
	return nil
}

func (e *Engine) runPositionManager(barIdx int64, b bar.Bar) error {
	pos, ok := e.portfolio.Position(e.cfg.Instrument.Symbol)
	if !ok {
		return nil
	}
	snap := posmgr.Snapshot{
		Instrument: e.cfg.Instrument.Symbol, Side: pos.Side, Quantity: pos.Quantity,
		AvgEntry: pos.AvgEntry, EntryBar: pos.EntryBar, EntryTime: pos.EntryTime,
	}
	update := e.cfg.PositionManager.Evaluate(snap, b, barIdx)

	if update.ForceExit {
		return e.forceExit(pos.Side, pos.Quantity, barIdx, b)
	}
	if !update.HasLevel || !update.Changed {
		return nil
	}

	exitSide := pos.Side.Opposite()
	stopIntent := order.Intent{
		Instrument: e.cfg.Instrument.Symbol, Kind: order.StopMarket,
		Side: exitSide, Quantity: pos.Quantity, TriggerTick: update.Level,
		TIF: order.GoodTilCancelled, AlwaysActive: true,
	}

	if e.protectiveStop == 0 {
		id, err := e.book.Submit(stopIntent, e.cfg.Instrument, barIdx, b.Timestamp)
		if err != nil {
			return err
		}
		e.protectiveStop = id
	} else {
		id, err := e.book.CancelReplace(e.protectiveStop, stopIntent, e.cfg.Instrument, barIdx, b.Timestamp, "ratchet-tighten")
		if err != nil {
			return err
		}
		e.protectiveStop = id
	}

	if e.ghostActive() {
		if e.ghostProtectiveStop == 0 {
			id, err := e.ghostBook.Submit(stopIntent, e.cfg.Instrument, barIdx, b.Timestamp)
			if err != nil {
				return err
			}
			e.ghostProtectiveStop = id
		} else {
			id, err := e.ghostBook.CancelReplace(e.ghostProtectiveStop, stopIntent, e.cfg.Instrument, barIdx, b.Timestamp, "ratchet-tighten")
			if err != nil {
				return err
			}
			e.ghostProtectiveStop = id
		}
	}
	return nil
}

func (e *Engine) forceExit(side bar.Side, qty int64, barIdx int64, b bar.Bar) error {
	exitIntent := order.Intent{
		Instrument: e.cfg.Instrument.Symbol, Kind: order.MarketOnClose,
		Side: side.Opposite(), Quantity: qty, TIF: order.GoodForDay, AlwaysActive: true,
	}
	if e.protectiveStop != 0 {
		_ = e.book.Cancel(e.protectiveStop, "time-stop-exit")
		e.protectiveStop = 0
	}
	if _, err := e.book.Submit(exitIntent, e.cfg.Instrument, barIdx, b.Timestamp); err != nil {
		return err
	}

	if e.ghostActive() {
		if e.ghostProtectiveStop != 0 {
			_ = e.ghostBook.Cancel(e.ghostProtectiveStop, "time-stop-exit")
			e.ghostProtectiveStop = 0
		}
		if _, err := e.ghostBook.Submit(exitIntent, e.cfg.Instrument, barIdx, b.Timestamp); err != nil {
			return err
		}
	}
	return nil
}
