package execsim

import (
	"math"
	"math/rand/v2"

	"github.com/avalytics/btkernel/internal/bar"
)

// PathPolicy selects the intrabar order in which a bar's extremes are
// visited, resolving same-bar ambiguity between a stop and a target that
// both lie within [low, high]. Every policy satisfies start=open,
// end=close, visit=high and visit=low.
type PathPolicy interface {
	Name() string
	// Waypoints returns the ordered price points the intrabar micro-timeline
	// passes through. The first element is always b.Open and the last is
	// always b.Close. heldSide is the side of the position currently open in
	// this instrument, or nil if flat.
	Waypoints(b bar.Bar, heldSide *bar.Side, rng *rand.Rand) []bar.Ticks
}

// DeterministicOHLC visits Open, High, Low, Close in that fixed order.
type DeterministicOHLC struct{}

func (DeterministicOHLC) Name() string { return "O->H->L->C" }

func (DeterministicOHLC) Waypoints(b bar.Bar, _ *bar.Side, _ *rand.Rand) []bar.Ticks {
	return []bar.Ticks{b.Open, b.High, b.Low, b.Close}
}

// DeterministicOLHC visits Open, Low, High, Close in that fixed order.
type DeterministicOLHC struct{}

func (DeterministicOLHC) Name() string { return "O->L->H->C" }

func (DeterministicOLHC) Waypoints(b bar.Bar, _ *bar.Side, _ *rand.Rand) []bar.Ticks {
	return []bar.Ticks{b.Open, b.Low, b.High, b.Close}
}

// WorstCase resolves ambiguous bars adversely for the held position: for a
// long holder, low is visited before high (the stop, if any, is reached
// first); for a short holder, high before low. A flat book defaults to
// visiting low first — an arbitrary but deterministic choice, since there
// is no position for "adverse" to be relative to.
type WorstCase struct{}

func (WorstCase) Name() string { return "worst-case" }

func (WorstCase) Waypoints(b bar.Bar, heldSide *bar.Side, _ *rand.Rand) []bar.Ticks {
	side := bar.Long
	if heldSide != nil {
		side = *heldSide
	}
	if side == bar.Long {
		return []bar.Ticks{b.Open, b.Low, b.High, b.Close}
	}
	return []bar.Ticks{b.Open, b.High, b.Low, b.Close}
}

// BestCase is the debugging-baseline opposite of WorstCase.
type BestCase struct{}

func (BestCase) Name() string { return "best-case" }

func (BestCase) Waypoints(b bar.Bar, heldSide *bar.Side, rng *rand.Rand) []bar.Ticks {
	wp := WorstCase{}.Waypoints(b, heldSide, rng)
	// swap the two interior waypoints (low/high) to invert the resolution.
	wp[1], wp[2] = wp[2], wp[1]
	return wp
}

// Random is a Brownian-bridge micro-path: start and end pinned to Open and
// Close, constrained to touch High and Low exactly, stepped at a
// configurable tick resolution with bounded per-step volatility so the path
// never contains an impossible jump.
type Random struct {
	// ResolutionTicks is the target size of one micro-step, in ticks.
	ResolutionTicks bar.Ticks
	// MaxStepTicks bounds how far a single step may move, preventing
	// impossible jumps even under high sampled volatility.
	MaxStepTicks bar.Ticks
}

func (Random) Name() string { return "random" }

func (r Random) Waypoints(b bar.Bar, heldSide *bar.Side, rng *rand.Rand) []bar.Ticks {
	resolution := r.ResolutionTicks
	if resolution <= 0 {
		resolution = 1
	}
	maxStep := r.MaxStepTicks
	if maxStep <= 0 {
		maxStep = resolution * 4
	}
	if rng == nil {
		rng = rand.New(rand.NewPCG(1, 1))
	}

	// Decide extreme visiting order with a fair coin so that, unlike
	// WorstCase/BestCase, the outcome is genuinely sampled rather than
	// policy-pinned — but still reproducible for a fixed seed.
	first, second := b.Low, b.High
	if rng.Float64() < 0.5 {
		first, second = b.High, b.Low
	}
	legs := [][2]bar.Ticks{{b.Open, first}, {first, second}, {second, b.Close}}

	path := []bar.Ticks{b.Open}
	for _, leg := range legs {
		path = append(path, bridge(leg[0], leg[1], resolution, maxStep, rng)...)
	}
	return path
}

// bridge generates intermediate ticks between from and to, each step no
// larger than maxStep, resolved at approximately resolution-tick
// granularity, ending exactly at "to".
func bridge(from, to, resolution, maxStep bar.Ticks, rng *rand.Rand) []bar.Ticks {
	delta := to - from
	if delta == 0 {
		return []bar.Ticks{to}
	}
	dist := delta
	if dist < 0 {
		dist = -dist
	}
	steps := int(math.Ceil(float64(dist) / float64(resolution)))
	if steps < 1 {
		steps = 1
	}
	out := make([]bar.Ticks, 0, steps)
	pos := from
	for i := 0; i < steps-1; i++ {
		remaining := to - pos
		stepMax := maxStep
		if stepMax > absTicks(remaining) {
			stepMax = absTicks(remaining)
		}
		if stepMax <= 0 {
			break
		}
		// a small random perturbation around the straight-line step, clamped
		// to stepMax and to not overshoot past "to".
		straight := remaining / bar.Ticks(steps-i)
		jitter := bar.Ticks((rng.Float64()*2 - 1) * float64(stepMax) * 0.25)
		step := straight + jitter
		if step == 0 {
			step = straight
		}
		pos += step
		out = append(out, pos)
	}
	out = append(out, to)
	return out
}

func absTicks(t bar.Ticks) bar.Ticks {
	if t < 0 {
		return -t
	}
	return t
}
