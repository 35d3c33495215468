package posmgr

import (
	"time"

	"github.com/avalytics/btkernel/internal/bar"
)

// Snapshot is the read-only view of a position a stop strategy evaluates
// against. Strategies never see the live *portfolio.Position nor the order
// book directly; they only ever see this value and a bar.
type Snapshot struct {
	Instrument string
	Side       bar.Side
	Quantity   int64
	AvgEntry   bar.Ticks
	EntryBar   int64
	EntryTime  time.Time
}

// BarsHeld returns how many bars the position has been open as of barIdx.
func (s Snapshot) BarsHeld(barIdx int64) int64 {
	held := barIdx - s.EntryBar
	if held < 0 {
		return 0
	}
	return held
}
