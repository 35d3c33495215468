package posmgr

import "github.com/avalytics/btkernel/internal/bar"

// Proposal is a stop strategy's recommendation for the current bar. HasStop
// is false when the strategy has nothing to propose this bar (e.g. an ATR
// feature not yet warmed up). ForceExit marks a strategy that wants the
// position closed outright (the time-stop) rather than tightened.
type Proposal struct {
	StopLevel bar.Ticks
	HasStop   bool
	ForceExit bool
}

// Strategy proposes a protective-stop level for a position, given the new
// bar. It never applies the level itself — a Ratchet decides whether the
// proposal tightens the existing level and the caller is responsible for
// turning an accepted proposal into a cancel-replace order intent.
type Strategy interface {
	Propose(snap Snapshot, b bar.Bar, barIdx int64) Proposal
}

// FixedPercent proposes a stop a constant percentage away from the current
// bar's close.
type FixedPercent struct {
	Percent float64
}

func (f FixedPercent) Propose(snap Snapshot, b bar.Bar, barIdx int64) Proposal {
	offset := bar.Ticks(float64(b.Close) * f.Percent)
	if snap.Side == bar.Long {
		return Proposal{StopLevel: b.Close - offset, HasStop: true}
	}
	return Proposal{StopLevel: b.Close + offset, HasStop: true}
}

// ATRStop proposes a stop a multiple of an ATR-like feature away from the
// current bar's close. It does not itself track a running extreme; see
// Chandelier for that variant.
type ATRStop struct {
	ATRFeature string
	Multiplier float64
}

func (a ATRStop) Propose(snap Snapshot, b bar.Bar, barIdx int64) Proposal {
	atr, ok := b.Feature(a.ATRFeature)
	if !ok {
		return Proposal{}
	}
	offset := bar.Ticks(atr * a.Multiplier)
	if snap.Side == bar.Long {
		return Proposal{StopLevel: b.Close - offset, HasStop: true}
	}
	return Proposal{StopLevel: b.Close + offset, HasStop: true}
}

// Chandelier proposes a stop offset from the highest close since entry (for
// longs; lowest close for shorts). It guards against stickiness: the
// reference extreme only advances to a newly touched extreme when the stop
// computed from it is tighter than the tightest stop this strategy has
// already proposed; otherwise the prior reference is kept and the stop is
// recomputed from it with the current ATR, so a widening ATR cannot drag a
// newly touched extreme into the reference at a looser level.
type Chandelier struct {
	ATRFeature string
	Multiplier float64

	refExtreme map[string]bar.Ticks
	bestStop   map[string]bar.Ticks
}

// NewChandelier builds a Chandelier strategy with its per-instrument
// reference-extreme and tightest-stop tracking initialized.
func NewChandelier(atrFeature string, multiplier float64) *Chandelier {
	return &Chandelier{ATRFeature: atrFeature, Multiplier: multiplier, refExtreme: make(map[string]bar.Ticks), bestStop: make(map[string]bar.Ticks)}
}

func (c *Chandelier) Propose(snap Snapshot, b bar.Bar, barIdx int64) Proposal {
	atr, ok := b.Feature(c.ATRFeature)
	if !ok {
		return Proposal{}
	}
	offset := bar.Ticks(atr * c.Multiplier)

	prevRef, seen := c.refExtreme[snap.Instrument]
	if !seen {
		prevRef = snap.AvgEntry
	}

	candidateExtreme := b.Close
	if snap.Side == bar.Long && prevRef > candidateExtreme {
		candidateExtreme = prevRef
	}
	if snap.Side == bar.Short && prevRef < candidateExtreme {
		candidateExtreme = prevRef
	}

	stopFromCandidate := chandelierLevel(snap.Side, candidateExtreme, offset)
	stopFromPrevRef := chandelierLevel(snap.Side, prevRef, offset)

	ref, stop := prevRef, stopFromPrevRef
	best, hasBest := c.bestStop[snap.Instrument]
	if !hasBest || tighter(snap.Side, stopFromCandidate, best) {
		ref, stop = candidateExtreme, stopFromCandidate
	}
	c.refExtreme[snap.Instrument] = ref
	if !hasBest || tighter(snap.Side, stop, best) {
		c.bestStop[snap.Instrument] = stop
	}

	return Proposal{StopLevel: stop, HasStop: true}
}

func chandelierLevel(side bar.Side, extreme, offset bar.Ticks) bar.Ticks {
	if side == bar.Long {
		return extreme - offset
	}
	return extreme + offset
}

func tighter(side bar.Side, candidate, current bar.Ticks) bool {
	if side == bar.Long {
		return candidate > current
	}
	return candidate < current
}

// TimeStop forces an exit once a position has been held for MaxBarsHeld
// bars or more.
type TimeStop struct {
	MaxBarsHeld int64
}

func (t TimeStop) Propose(snap Snapshot, b bar.Bar, barIdx int64) Proposal {
	if snap.BarsHeld(barIdx) >= t.MaxBarsHeld {
		return Proposal{ForceExit: true}
	}
	return Proposal{}
}

// Composite proposes the tightest stop among its sub-strategies and forces
// exit if any sub-strategy does.
type Composite struct {
	Strategies []Strategy
}

func (c Composite) Propose(snap Snapshot, b bar.Bar, barIdx int64) Proposal {
	var best Proposal
	for _, s := range c.Strategies {
		p := s.Propose(snap, b, barIdx)
		if p.ForceExit {
			return Proposal{ForceExit: true}
		}
		if !p.HasStop {
			continue
		}
		if !best.HasStop || tighter(snap.Side, p.StopLevel, best.StopLevel) {
			best = p
		}
	}
	return best
}
