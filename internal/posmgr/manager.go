package posmgr

import "github.com/avalytics/btkernel/internal/bar"

// Update is the outcome of evaluating a position's protective stop for one
// bar. The manager never touches the order book itself — ownership of
// orders stays with the engine, which turns an accepted Update into a
// post-bar cancel-replace (or a market-on-close exit) against the
// protective order it is tracking for this position.
type Update struct {
	Instrument string
	// Level is the new protective level, valid when HasLevel is true. It is
	// the ratchet's effective level, not necessarily the strategy's raw
	// proposal — if the ratchet rejected a loosening proposal, Level is the
	// unchanged existing level and Changed is false. A proposal equal to the
	// existing level is accepted and reports Changed true.
	Level     bar.Ticks
	HasLevel  bool
	Changed   bool
	ForceExit bool
}

// Manager runs one Strategy per instrument against a Ratchet that enforces
// the tighten-only invariant on its output.
type Manager struct {
	strategy Strategy
	ratchets map[string]*Ratchet
}

// NewManager builds a Manager that applies the given strategy uniformly
// across every position it's asked to evaluate.
func NewManager(strategy Strategy) *Manager {
	return &Manager{strategy: strategy, ratchets: make(map[string]*Ratchet)}
}

// Evaluate runs the configured strategy for one position's snapshot against
// the new bar and feeds any proposed level through that instrument's
// ratchet.
func (m *Manager) Evaluate(snap Snapshot, b bar.Bar, barIdx int64) Update {
	proposal := m.strategy.Propose(snap, b, barIdx)
	if proposal.ForceExit {
		return Update{Instrument: snap.Instrument, ForceExit: true}
	}
	if !proposal.HasStop {
		return Update{Instrument: snap.Instrument}
	}

	r, ok := m.ratchets[snap.Instrument]
	if !ok {
		r = NewRatchet(snap.Side)
		m.ratchets[snap.Instrument] = r
	}
	effective, accepted := r.Propose(proposal.StopLevel)
	return Update{Instrument: snap.Instrument, Level: effective, HasLevel: true, Changed: accepted}
}

// Reset drops ratchet state for an instrument, called when a position is
// closed so a subsequent re-entry starts its ratchet fresh.
func (m *Manager) Reset(instrument string) {
	delete(m.ratchets, instrument)
}

// DisableRatchet turns off the tighten-only enforcement for an instrument,
// letting every proposal through unchanged until re-enabled.
func (m *Manager) DisableRatchet(instrument string, side bar.Side) {
	r, ok := m.ratchets[instrument]
	if !ok {
		r = NewRatchet(side)
		m.ratchets[instrument] = r
	}
	r.Enabled = false
}
