// Package posmgr implements ratchet-enforced protective-stop management:
// the monotone invariant that a position's protective level may tighten but
// never loosen while the ratchet is enabled, plus the stop-strategy
// variants (fixed-percent, ATR, chandelier anti-stickiness, time-stop, and
// tightest-of composites) that propose levels for it to accept or reject.
package posmgr

import "github.com/avalytics/btkernel/internal/bar"

// Ratchet tracks the current protective level for one position and enforces
// the monotone tighten-only contract: for a long position the level is
// non-decreasing, for a short position non-increasing, for as long as the
// ratchet is enabled.
type Ratchet struct {
	Level       bar.Ticks
	Side        bar.Side
	Enabled     bool
	initialized bool
}

// NewRatchet creates a ratchet for a position on the given side, enabled by
// default.
func NewRatchet(side bar.Side) *Ratchet {
	return &Ratchet{Side: side, Enabled: true}
}

// Propose offers a new protective level. It returns the level actually in
// effect after the proposal (which may be the prior level, if rejected) and
// whether the proposal was accepted. When the ratchet is disabled, or has
// not yet been initialized with a first level, the proposal is always
// accepted.
func (r *Ratchet) Propose(level bar.Ticks) (effective bar.Ticks, accepted bool) {
	if !r.initialized {
		r.Level = level
		r.initialized = true
		return r.Level, true
	}
	if !r.Enabled {
		r.Level = level
		return r.Level, true
	}
	switch r.Side {
	case bar.Long:
		if level >= r.Level {
			r.Level = level
			return r.Level, true
		}
	case bar.Short:
		if level <= r.Level {
			r.Level = level
			return r.Level, true
		}
	}
	return r.Level, false
}
