package execsim

import (
	"github.com/avalytics/btkernel/internal/order"
)

// AllocationRule names the declared rule used to split capped bar volume
// across orders competing for it in the same bar. Time-priority by
// submission index is the spec's default; pro-rata is the permitted
// alternative, recorded in the run manifest when selected.
type AllocationRule int

const (
	TimePriority AllocationRule = iota
	ProRata
)

// ParticipationCap limits the quantity the simulator fills in one
// fill-resolution step of a bar to ParticipationRate * bar.Volume, and
// declares how that capped volume is split among competing orders. Allocate
// splits it among the market orders of the start-of-bar or end-of-bar
// phase; intrabar fills are capped one order at a time. No budget is carried
// between phases, so a bar's total filled quantity can exceed the cap.
type ParticipationCap struct {
	ParticipationRate float64
	Allocation        AllocationRule
}

// candidateFill pairs an order with the quantity it wants filled this bar,
// in submission order.
type candidateFill struct {
	id       order.ID
	quantity int64
}

// Allocate splits the bar's available capped volume across candidates
// according to the configured allocation rule, returning the filled
// quantity per order ID. Unfilled remainder is left to the caller to
// reconcile with each order's time-in-force.
func (p ParticipationCap) Allocate(barVolume int64, candidates []candidateFill) map[order.ID]int64 {
	out := make(map[order.ID]int64, len(candidates))
	if p.ParticipationRate <= 0 {
		for _, c := range candidates {
			out[c.id] = c.quantity
		}
		return out
	}

	cap64 := int64(float64(barVolume) * p.ParticipationRate)
	var total int64
	for _, c := range candidates {
		total += c.quantity
	}
	if total <= cap64 || cap64 <= 0 && total == 0 {
		for _, c := range candidates {
			out[c.id] = c.quantity
		}
		return out
	}
	if cap64 < 0 {
		cap64 = 0
	}

	switch p.Allocation {
	case ProRata:
		var allocated int64
		for i, c := range candidates {
			var share int64
			if i == len(candidates)-1 {
				share = cap64 - allocated
			} else {
				share = int64(float64(c.quantity) / float64(total) * float64(cap64))
			}
			if share < 0 {
				share = 0
			}
			if share > c.quantity {
				share = c.quantity
			}
			out[c.id] = share
			allocated += share
		}
	default: // TimePriority
		remaining := cap64
		for _, c := range candidates {
			fill := c.quantity
			if fill > remaining {
				fill = remaining
			}
			if fill < 0 {
				fill = 0
			}
			out[c.id] = fill
			remaining -= fill
		}
	}
	return out
}
