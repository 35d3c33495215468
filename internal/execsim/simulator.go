// Package execsim is the execution simulator: it converts the book's Active
// orders plus one bar's OHLCV into Fills, in strict phase order, under a
// configurable path policy and friction model.
package execsim

import (
	"math/rand/v2"
	"sort"

	"github.com/avalytics/btkernel/internal/bar"
	"github.com/avalytics/btkernel/internal/execsim/friction"
	"github.com/avalytics/btkernel/internal/order"
)

// Simulator resolves one instrument's fills for one bar at a time. With
// PathRNG nil it holds no per-run mutable state of its own — all state lives
// in the order.Book passed to each call — so such a Simulator value may be
// shared (read-only) across concurrent trials. A set PathRNG is consumed by
// intrabar path sampling, so a Simulator carrying one belongs to one trial.
type Simulator struct {
	Instrument    bar.Instrument
	Path          PathPolicy
	Slippage      friction.Model
	Adverse       friction.AdverseSelection
	Participation ParticipationCap
	// CommissionPerUnit is a flat per-unit commission applied to every fill.
	CommissionPerUnit bar.Ticks
	// ContextFeature names the bar feature (e.g. "ATR") fed to a
	// regime-conditional slippage model as its contextual volatility input.
	ContextFeature string
	// PathRNG, when set, overrides the per-call rng for intrabar path
	// waypoint sampling only; friction and allocation draws keep using the
	// rng passed to each Fill* call. This lets a caller hold the sampled
	// micro-path fixed across several independently-seeded execution trials
	// (internal/ladder's path Monte Carlo level runs K friction trials per
	// sampled path) without sharing mutable RNG state across goroutines —
	// each trial derives its own *rand.Rand from the same (hash, path index)
	// seed, so they all reproduce the identical sequence independently.
	PathRNG *rand.Rand
}

func (s *Simulator) commission(qty int64) bar.Ticks {
	return s.CommissionPerUnit * bar.Ticks(qty)
}

func (s *Simulator) context(b bar.Bar) float64 {
	if s.ContextFeature == "" {
		return 0
	}
	v, _ := b.Feature(s.ContextFeature)
	return v
}

// FillStartOfBar fills market-on-open and market-now orders at
// open + slippage.
func (s *Simulator) FillStartOfBar(book *order.Book, b bar.Bar, barIdx int64, rng *rand.Rand) []order.Fill {
	book.SetPhase(order.PhaseStartOfBar)
	var candidates []candidateFill
	byID := map[order.ID]order.Order{}
	for _, o := range book.Active() {
		if o.Intent.Kind == order.MarketOnOpen || o.Intent.Kind == order.MarketNow {
			candidates = append(candidates, candidateFill{id: o.ID, quantity: o.Remaining()})
			byID[o.ID] = o
		}
	}
	if len(candidates) == 0 {
		return nil
	}
	alloc := s.Participation.Allocate(b.Volume, candidates)

	var fills []order.Fill
	for _, c := range candidates {
		qty := alloc[c.id]
		if qty <= 0 {
			continue
		}
		o := byID[c.id]
		price, slip := friction.Apply(s.Slippage, rng, b.Open, o.Intent.Side, s.context(b))
		f := order.Fill{OrderID: c.id, BarIndex: barIdx, Phase: order.PhaseStartOfBar, Price: price, Quantity: qty, Slippage: slip, Commission: s.commission(qty)}
		if err := book.OnFill(f); err != nil {
			continue
		}
		fills = append(fills, f)
	}
	book.ActivateEligible(barIdx)
	return fills
}

// FillEndOfBar fills market-on-close orders at close + slippage.
func (s *Simulator) FillEndOfBar(book *order.Book, b bar.Bar, barIdx int64, rng *rand.Rand) []order.Fill {
	book.SetPhase(order.PhaseEndOfBar)
	var candidates []candidateFill
	byID := map[order.ID]order.Order{}
	for _, o := range book.Active() {
		if o.Intent.Kind == order.MarketOnClose {
			candidates = append(candidates, candidateFill{id: o.ID, quantity: o.Remaining()})
			byID[o.ID] = o
		}
	}
	if len(candidates) == 0 {
		return nil
	}
	alloc := s.Participation.Allocate(b.Volume, candidates)

	var fills []order.Fill
	for _, c := range candidates {
		qty := alloc[c.id]
		if qty <= 0 {
			continue
		}
		o := byID[c.id]
		price, slip := friction.Apply(s.Slippage, rng, b.Close, o.Intent.Side, s.context(b))
		f := order.Fill{OrderID: c.id, BarIndex: barIdx, Phase: order.PhaseEndOfBar, Price: price, Quantity: qty, Slippage: slip, Commission: s.commission(qty)}
		if err := book.OnFill(f); err != nil {
			continue
		}
		fills = append(fills, f)
	}
	return fills
}

// FillIntrabar traverses the bar according to the path policy, resolving
// stop-market, limit, and stop-limit orders as the micro-timeline crosses
// their trigger or limit prices. After every fill it runs an activation
// step so a just-filled bracket parent's children can trigger within the
// same bar's remaining path.
func (s *Simulator) FillIntrabar(book *order.Book, b bar.Bar, barIdx int64, heldSide *bar.Side, rng *rand.Rand) []order.Fill {
	book.SetPhase(order.PhaseIntrabar)
	var fills []order.Fill

	// Gap resolution: a stop whose trigger the bar's open has already
	// passed fills at open (the worse price), not at its trigger. This
	// happens once, before any path walking, in submission order.
	for _, o := range book.Active() {
		if o.Intent.Kind != order.StopMarket && o.Intent.Kind != order.StopLimit {
			continue
		}
		gapped := (o.Intent.Side == bar.Long && b.Open >= o.Intent.TriggerTick) ||
			(o.Intent.Side == bar.Short && b.Open <= o.Intent.TriggerTick)
		if !gapped {
			continue
		}
		if o.Intent.Kind == order.StopLimit {
			book.Trigger(o.ID)
			continue
		}
		qty := s.capQuantity(o, b.Volume)
		if qty <= 0 {
			continue
		}
		price, slip := friction.Apply(s.Slippage, rng, b.Open, o.Intent.Side, s.context(b))
		f := order.Fill{OrderID: o.ID, BarIndex: barIdx, Phase: order.PhaseIntrabar, Price: price, Quantity: qty, Slippage: slip, Commission: s.commission(qty)}
		if err := book.OnFill(f); err == nil {
			fills = append(fills, f)
		}
	}
	book.ActivateEligible(barIdx)

	pathRNG := rng
	if s.PathRNG != nil {
		pathRNG = s.PathRNG
	}
	waypoints := s.Path.Waypoints(b, heldSide, pathRNG)
	pos := waypoints[0]
	for wi := 1; wi < len(waypoints); wi++ {
		target := waypoints[wi]
		for {
			id, crossPrice, found := s.earliestCross(book.Active(), pos, target)
			if !found {
				break
			}
			o, _ := book.Get(id)

			if o.Intent.Kind == order.StopLimit && o.State == order.Active {
				book.Trigger(id)
				pos = crossPrice
				continue
			}

			qty := s.capQuantity(o, b.Volume)
			if qty <= 0 {
				// Nothing left to allocate this bar; stop resolving further
				// crossings in this segment.
				pos = target
				break
			}
			fillPrice := s.resolveFillPrice(o, b, crossPrice, rng)
			f := order.Fill{OrderID: id, BarIndex: barIdx, Phase: order.PhaseIntrabar, Price: fillPrice.price, Quantity: qty, Slippage: fillPrice.slippage, Commission: s.commission(qty)}
			if err := book.OnFill(f); err != nil {
				pos = crossPrice
				continue
			}
			fills = append(fills, f)
			book.ActivateEligible(barIdx)
			pos = crossPrice
		}
		pos = target
	}
	return fills
}

// capQuantity applies the participation cap to one order in isolation. The
// cap is evaluated per resolution event against the bar's total volume —
// the source left cross-event bar-wide accounting unpinned (§9 open
// question); this kernel applies it at the point of each fill decision,
// which is the conservative reading.
func (s *Simulator) capQuantity(o order.Order, barVolume int64) int64 {
	remaining := o.Remaining()
	if s.Participation.ParticipationRate <= 0 {
		return remaining
	}
	cap64 := int64(float64(barVolume) * s.Participation.ParticipationRate)
	if cap64 < 0 {
		cap64 = 0
	}
	if remaining > cap64 {
		return cap64
	}
	return remaining
}

type resolvedPrice struct {
	price    bar.Ticks
	slippage bar.Ticks
}

// resolveFillPrice applies the fill rule for the order's kind at the price
// level crossPrice where its trigger/limit was hit.
func (s *Simulator) resolveFillPrice(o order.Order, b bar.Bar, crossPrice bar.Ticks, rng *rand.Rand) resolvedPrice {
	switch {
	case o.Intent.Kind == order.StopMarket:
		price, slip := friction.Apply(s.Slippage, rng, crossPrice, o.Intent.Side, s.context(b))
		return resolvedPrice{price: price, slippage: slip}
	case o.Intent.Kind == order.Limit || o.State == order.Triggered:
		through := b.High
		if o.Intent.Side == bar.Long {
			through = b.Low
		}
		price := s.Adverse.Fill(rng, o.Intent.LimitTick, through, o.Intent.Side)
		return resolvedPrice{price: price, slippage: 0}
	default:
		return resolvedPrice{price: crossPrice, slippage: 0}
	}
}

// earliestCross scans the active set for the order whose trigger/limit
// price is crossed first along the path segment [from,to], breaking ties by
// submission order (active is already submission-ordered; the sort below is
// stable).
func (s *Simulator) earliestCross(active []order.Order, from, to bar.Ticks) (order.ID, bar.Ticks, bool) {
	if from == to {
		return 0, 0, false
	}
	up := to > from
	type candidate struct {
		id    order.ID
		level bar.Ticks
		dist  bar.Ticks
	}
	var cands []candidate
	for _, o := range active {
		level, ok := s.triggerLevel(o)
		if !ok {
			continue
		}
		if up {
			if level >= from && level <= to {
				cands = append(cands, candidate{id: o.ID, level: level, dist: level - from})
			}
		} else {
			if level <= from && level >= to {
				cands = append(cands, candidate{id: o.ID, level: level, dist: from - level})
			}
		}
	}
	if len(cands) == 0 {
		return 0, 0, false
	}
	sort.SliceStable(cands, func(i, j int) bool { return cands[i].dist < cands[j].dist })
	return cands[0].id, cands[0].level, true
}

// triggerLevel returns the price level at which o would trigger or fill,
// and whether o participates in intrabar resolution at all (market orders
// resolved in the start/end-of-bar phases do not).
func (s *Simulator) triggerLevel(o order.Order) (bar.Ticks, bool) {
	switch {
	case o.Intent.Kind == order.StopMarket && o.State == order.Active:
		return o.Intent.TriggerTick, true
	case o.Intent.Kind == order.StopLimit && o.State == order.Active:
		return o.Intent.TriggerTick, true
	case o.Intent.Kind == order.Limit && o.State == order.Active:
		return o.Intent.LimitTick, true
	case o.State == order.Triggered: // a triggered stop-limit, now behaving as a limit
		return o.Intent.LimitTick, true
	default:
		return 0, false
	}
}
