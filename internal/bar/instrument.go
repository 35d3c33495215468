package bar

import "fmt"

// RoundingPolicy governs how a price that does not land on a tick boundary
// is resolved when submitted against an Instrument.
type RoundingPolicy int

const (
	// RoundingReject rejects any intent whose price is not tick-aligned.
	RoundingReject RoundingPolicy = iota
	// RoundingNearest rounds to the nearest tick.
	RoundingNearest
	// RoundingDown always rounds toward negative infinity in tick units.
	RoundingDown
	// RoundingUp always rounds toward positive infinity in tick units.
	RoundingUp
	// RoundingSideAware rounds buy limits down and sell limits up — the
	// conservative direction for a resting limit order of that side.
	RoundingSideAware
)

func (p RoundingPolicy) String() string {
	switch p {
	case RoundingReject:
		return "reject-if-misaligned"
	case RoundingNearest:
		return "round-nearest"
	case RoundingDown:
		return "round-down"
	case RoundingUp:
		return "round-up"
	case RoundingSideAware:
		return "side-aware"
	default:
		return fmt.Sprintf("RoundingPolicy(%d)", int(p))
	}
}

// Instrument carries the metadata needed to move a price across the
// execution boundary: tick size, lot size, and the rounding policy applied
// to misaligned order prices.
type Instrument struct {
	Symbol   string
	TickSize Ticks // smallest price increment, in the same integer units as Ticks
	LotSize  int64
	Rounding RoundingPolicy
}

// MisalignedPriceError reports a price intent rejected by RoundingReject.
type MisalignedPriceError struct {
	Symbol string
	Price  Ticks
	Tick   Ticks
}

func (e *MisalignedPriceError) Error() string {
	return fmt.Sprintf("%s: price %d is not aligned to tick size %d", e.Symbol, e.Price, e.Tick)
}

// AlignBuyLimit rounds a buy-limit price according to the instrument's
// policy. Buy limits round down under side-aware policy: a conservative buy
// never pays more than requested.
func (ins Instrument) AlignBuyLimit(p Ticks) (Ticks, error) {
	return ins.align(p, true)
}

// AlignSellLimit rounds a sell-limit price according to the instrument's
// policy. Sell limits round up under side-aware policy: a conservative sell
// never asks for less than requested.
func (ins Instrument) AlignSellLimit(p Ticks) (Ticks, error) {
	return ins.align(p, false)
}

func (ins Instrument) align(p Ticks, isBuy bool) (Ticks, error) {
	if ins.TickSize <= 0 {
		return p, nil
	}
	rem := p % ins.TickSize
	if rem == 0 {
		return p, nil
	}
	floor := p - rem
	if rem < 0 {
		floor -= ins.TickSize
	}
	ceil := floor + ins.TickSize

	switch ins.Rounding {
	case RoundingReject:
		return 0, &MisalignedPriceError{Symbol: ins.Symbol, Price: p, Tick: ins.TickSize}
	case RoundingDown:
		return floor, nil
	case RoundingUp:
		return ceil, nil
	case RoundingNearest:
		if p-floor <= ceil-p {
			return floor, nil
		}
		return ceil, nil
	case RoundingSideAware:
		if isBuy {
			return floor, nil
		}
		return ceil, nil
	default:
		return 0, fmt.Errorf("%s: unknown rounding policy %v", ins.Symbol, ins.Rounding)
	}
}

// ToTicks converts a decimal price (e.g. parsed from config) into integer
// tick units of unitsPerTick price units each, truncating toward zero. The
// instrument's own TickSize is not consulted; a zero unitsPerTick returns
// the price truncated as is.
func (ins Instrument) ToTicks(priceUnits float64, unitsPerTick float64) Ticks {
	if unitsPerTick == 0 {
		return Ticks(priceUnits)
	}
	return Ticks(priceUnits / unitsPerTick)
}
