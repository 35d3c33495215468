package order

import "github.com/avalytics/btkernel/internal/bar"

// Phase names the four strict per-bar execution phases. Fills and
// cancel-replace requests carry the phase they occurred in so that
// downstream diagnostics and the cancel-replace boundary check can reason
// about ordering.
type Phase int

const (
	PhaseStartOfBar Phase = iota
	PhaseIntrabar
	PhaseEndOfBar
	PhasePostBar
)

func (p Phase) String() string {
	switch p {
	case PhaseStartOfBar:
		return "start-of-bar"
	case PhaseIntrabar:
		return "intrabar"
	case PhaseEndOfBar:
		return "end-of-bar"
	case PhasePostBar:
		return "post-bar"
	default:
		return "unknown-phase"
	}
}

// Fill is an append-only record of one (possibly partial) execution against
// an order.
type Fill struct {
	OrderID    ID
	BarIndex   int64
	Phase      Phase
	Price      bar.Ticks
	Quantity   int64
	Commission bar.Ticks
	Slippage   bar.Ticks
}
