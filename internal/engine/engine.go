// Package engine drives the single-threaded, four-phase per-bar event loop
// that ties together the order book, execution simulator, portfolio, signal
// layer, and position manager for one instrument's run against one bar
// series. Parallelism across trials lives one layer up, in internal/ladder;
// an Engine value itself is sequential and single-use.
package engine

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/avalytics/btkernel/internal/bar"
	"github.com/avalytics/btkernel/internal/execsim"
	"github.com/avalytics/btkernel/internal/order"
	"github.com/avalytics/btkernel/internal/portfolio"
	"github.com/avalytics/btkernel/internal/posmgr"
	"github.com/avalytics/btkernel/internal/signal"
)

// Config assembles the components one Engine run wires together. All of
// them are read-only or single-owner as documented on their own types; the
// Engine itself owns the order book and the two portfolios (live and
// ghost) it creates in New.
type Config struct {
	Instrument     bar.Instrument
	Simulator      *execsim.Simulator
	GhostSimulator *execsim.Simulator // nil disables the ghost diagnostic
	Portfolio      portfolio.Settings

	Signal      signal.Signal
	Filter      signal.Filter // nil means allow everything through
	OrderPolicy signal.OrderPolicy
	Risk        signal.RiskConfig

	PositionManager *posmgr.Manager // nil disables protective-stop management
}

// Result is everything one Run produces: the live portfolio's final state
// and, when a ghost simulator was configured, the frictionless shadow
// portfolio used to measure execution cost.
type Result struct {
	Portfolio      *portfolio.Portfolio
	GhostPortfolio *portfolio.Portfolio
}

// SimError wraps an invariant violation surfaced mid-run — a duplicate
// fill, a replace against a missing order, a mid-intrabar cancel-replace —
// with the bar index it occurred on. Every such error is fatal to the run
// it occurred in and is not retried; ladder.Driver.Run returns it as an
// error rather than as a rejection record, so the invocation fails.
type SimError struct {
	BarIndex int64
	Instrument string
	Cause    error
}

func (e *SimError) Error() string {
	return fmt.Sprintf("%s: bar %d: %v", e.Instrument, e.BarIndex, e.Cause)
}

func (e *SimError) Unwrap() error { return e.Cause }

// Engine runs the event loop for one instrument against one bar series,
// using one RNG stream for every intrabar and friction draw it makes.
type Engine struct {
	cfg Config
	rng *rand.Rand

	book      *order.Book
	portfolio *portfolio.Portfolio

	ghostBook      *order.Book
	ghostPortfolio *portfolio.Portfolio

	// protectiveStop tracks the order ID of the live protective stop for
	// the instrument, so the post-bar phase can cancel-replace it rather
	// than submitting an unbounded stack of stale stops. ghostProtectiveStop
	// is the equivalent for the frictionless shadow book.
	protectiveStop      order.ID
	ghostProtectiveStop order.ID
	heldSide            *bar.Side
	ghostHeldSide       *bar.Side
}

// New builds an Engine ready to Run against a bar series. rng is the single
// stream the whole run draws from — callers derive it from
// internal/determinism.NewStream keyed on the candidate hash and trial
// index so repeated runs reproduce exactly.
func New(cfg Config, rng *rand.Rand) *Engine {
	e := &Engine{
		cfg:       cfg,
		rng:       rng,
		book:      order.NewBook(),
		portfolio: portfolio.New(cfg.Portfolio),
	}
	if cfg.GhostSimulator != nil {
		e.ghostBook = order.NewBook()
		e.ghostPortfolio = portfolio.New(cfg.Portfolio)
	}
	return e
}

// Run drives the four-phase loop across every bar in series, returning on
// the first invariant violation or on ctx cancellation observed at a bar
// boundary.
func (e *Engine) Run(ctx context.Context, series bar.Series) (*Result, error) {
	for i, b := range series.Bars {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		if err := e.runBar(int64(i), b); err != nil {
			return nil, &SimError{BarIndex: int64(i), Instrument: series.Symbol, Cause: err}
		}
	}
	return &Result{Portfolio: e.portfolio, GhostPortfolio: e.ghostPortfolio}, nil
}

func (e *Engine) runBar(barIdx int64, b bar.Bar) error {
	if err := b.Validate(); err != nil {
		return err
	}

	e.book.SetPhase(order.PhaseStartOfBar)
	e.book.ActivateEligible(barIdx)
	startFills := e.cfg.Simulator.FillStartOfBar(e.book, b, barIdx, e.rng)
	if err := e.applyFills(e.book, e.portfolio, startFills, b.Timestamp, barIdx); err != nil {
		return err
	}

	intrabarFills := e.cfg.Simulator.FillIntrabar(e.book, b, barIdx, e.heldSide, e.rng)
	if err := e.applyFills(e.book, e.portfolio, intrabarFills, b.Timestamp, barIdx); err != nil {
		return err
	}

	endFills := e.cfg.Simulator.FillEndOfBar(e.book, b, barIdx, e.rng)
	if err := e.applyFills(e.book, e.portfolio, endFills, b.Timestamp, barIdx); err != nil {
		return err
	}

	e.portfolio.MarkToMarket(map[string]bar.Ticks{e.cfg.Instrument.Symbol: b.Close}, b.Timestamp)
	e.syncHeldSide()

	if e.ghostActive() {
		e.ghostBook.SetPhase(order.PhaseStartOfBar)
		e.ghostBook.ActivateEligible(barIdx)
		gStart := e.cfg.GhostSimulator.FillStartOfBar(e.ghostBook, b, barIdx, e.rng)
		if err := e.applyFills(e.ghostBook, e.ghostPortfolio, gStart, b.Timestamp, barIdx); err != nil {
			return err
		}
		gIntra := e.cfg.GhostSimulator.FillIntrabar(e.ghostBook, b, barIdx, e.ghostHeldSide, e.rng)
		if err := e.applyFills(e.ghostBook, e.ghostPortfolio, gIntra, b.Timestamp, barIdx); err != nil {
			return err
		}
		gEnd := e.cfg.GhostSimulator.FillEndOfBar(e.ghostBook, b, barIdx, e.rng)
		if err := e.applyFills(e.ghostBook, e.ghostPortfolio, gEnd, b.Timestamp, barIdx); err != nil {
			return err
		}
		e.ghostPortfolio.MarkToMarket(map[string]bar.Ticks{e.cfg.Instrument.Symbol: b.Close}, b.Timestamp)
		e.syncGhostHeldSide()
		e.ghostBook.SetPhase(order.PhasePostBar)
	}

	e.book.SetPhase(order.PhasePostBar)
	if err := e.postBar(barIdx, b); err != nil {
		return err
	}
	return nil
}

func (e *Engine) applyFills(book *order.Book, p *portfolio.Portfolio, fills []order.Fill, at time.Time, barIdx int64) error {
	for _, f := range fills {
		o, ok := book.Get(f.OrderID)
		if !ok {
			continue
		}
		if err := p.ApplyFill(f, e.cfg.Instrument.Symbol, o.Intent.Side, barIdx, at); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) syncHeldSide() {
	pos, ok := e.portfolio.Position(e.cfg.Instrument.Symbol)
	if !ok {
		e.heldSide = nil
		e.protectiveStop = 0
		if e.cfg.PositionManager != nil {
			e.cfg.PositionManager.Reset(e.cfg.Instrument.Symbol)
		}
		return
	}
	side := pos.Side
	e.heldSide = &side
}

func (e *Engine) syncGhostHeldSide() {
	pos, ok := e.ghostPortfolio.Position(e.cfg.Instrument.Symbol)
	if !ok {
		e.ghostHeldSide = nil
		e.ghostProtectiveStop = 0
		return
	}
	side := pos.Side
	e.ghostHeldSide = &side
}

func (e *Engine) ghostActive() bool {
	return e.cfg.GhostSimulator != nil && e.ghostBook != nil && e.ghostPortfolio != nil
}
