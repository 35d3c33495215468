package order

import (
	"fmt"
	"time"

	"github.com/avalytics/btkernel/internal/bar"
)

// Book maintains the set of live orders for one simulation run. It is the
// single owner of the order table; the position manager and the signal
// layer only ever see read-only Snapshot copies.
type Book struct {
	nextID ID
	orders map[ID]*Order
	// sequence is the deterministic submission-order iteration list —
	// orders are always visited in this order, never map/hash order.
	sequence []ID

	children map[ID][]ID   // parent ID -> child IDs, submission order
	ocoGroup map[int64][]ID // OCO group key -> member IDs, submission order

	phase Phase
}

// NewBook creates an empty order book.
func NewBook() *Book {
	return &Book{
		orders:   make(map[ID]*Order),
		children: make(map[ID][]ID),
		ocoGroup: make(map[int64][]ID),
	}
}

// SetPhase records the current per-bar execution phase. The event loop
// driver calls this once per phase transition; CancelReplace consults it to
// enforce the post-bar-only boundary.
func (b *Book) SetPhase(p Phase) {
	b.phase = p
}

// Submit creates a new Pending order from intent, rejecting or rounding a
// misaligned limit price of a Limit or StopLimit order per the instrument's
// policy; trigger prices are accepted as given. It returns the assigned
// deterministic submission-order identifier.
func (b *Book) Submit(intent Intent, ins bar.Instrument, barIndex int64, now time.Time) (ID, error) {
	aligned := intent
	var err error
	switch intent.Kind {
	case Limit, StopLimit:
		if intent.Side == bar.Long {
			aligned.LimitTick, err = ins.AlignBuyLimit(intent.LimitTick)
		} else {
			aligned.LimitTick, err = ins.AlignSellLimit(intent.LimitTick)
		}
		if err != nil {
			return 0, err
		}
	}

	b.nextID++
	id := b.nextID
	o := &Order{
		ID:            id,
		Intent:        aligned,
		State:         Pending,
		SubmissionBar: barIndex,
		SubmittedAt:   now,
	}
	b.orders[id] = o
	b.sequence = append(b.sequence, id)

	if intent.ParentID != 0 {
		b.children[intent.ParentID] = append(b.children[intent.ParentID], id)
	}
	if intent.OCOGroup != 0 {
		b.ocoGroup[intent.OCOGroup] = append(b.ocoGroup[intent.OCOGroup], id)
	}
	return id, nil
}

// ActivateEligible promotes Pending orders whose activation predicate is
// satisfied to Active. It is called at start-of-bar (the spec's
// activate_day_orders) and again after every parent fill within the
// intrabar phase, so bracket children can trigger within the same bar their
// parent filled.
func (b *Book) ActivateEligible(barIndex int64) {
	for _, id := range b.sequence {
		o := b.orders[id]
		if o.State != Pending {
			continue
		}
		if o.Intent.ParentID != 0 {
			parent, ok := b.orders[o.Intent.ParentID]
			if !ok || parent.State != Filled {
				continue
			}
		}
		if !o.Intent.AlwaysActive && o.Intent.ActivateOnBarIndex > barIndex {
			continue
		}
		o.State = Active
	}
}

// Cancel transitions an Active/Triggered order to Cancelled. Cancelling an
// already-terminal order is a no-op, per §4.1 failure semantics.
func (b *Book) Cancel(id ID, reason string) error {
	o, ok := b.orders[id]
	if !ok {
		return fmt.Errorf("cancel: order %d does not exist", id)
	}
	if o.State.Terminal() {
		return nil
	}
	o.State = Cancelled
	o.CancelReason = reason
	return nil
}

// Trigger transitions an Active stop-limit order to Triggered once its
// stop condition has been crossed; it now behaves as a resting limit order
// at its LimitTick for the remainder of its lifetime.
func (b *Book) Trigger(id ID) error {
	o, ok := b.orders[id]
	if !ok {
		return fmt.Errorf("trigger: order %d does not exist", id)
	}
	if o.State != Active {
		return nil
	}
	o.State = Triggered
	return nil
}

// Expire transitions an Active order whose time-in-force has lapsed to
// Expired.
func (b *Book) Expire(id ID) error {
	o, ok := b.orders[id]
	if !ok {
		return fmt.Errorf("expire: order %d does not exist", id)
	}
	if o.State.Terminal() {
		return nil
	}
	o.State = Expired
	return nil
}

// CancelReplace atomically cancels oldID and submits newSpec. Either both
// take effect or neither does; there is no observable window in which the
// position is unprotected. This operation is only permitted at the
// post-bar phase boundary — a mid-intrabar request is rejected rather than
// guessed at.
func (b *Book) CancelReplace(oldID ID, newSpec Intent, ins bar.Instrument, barIndex int64, now time.Time, reason string) (ID, error) {
	if b.phase != PhasePostBar {
		return 0, &MidIntrabarCancelReplaceError{OrderID: oldID, Phase: b.phase.String()}
	}
	old, ok := b.orders[oldID]
	if !ok || old.State.Terminal() {
		return 0, &ReplaceTargetNotFoundError{OrderID: oldID}
	}

	// Validate the replacement before mutating anything, so a rejected
	// replacement never cancels the old order either.
	aligned := newSpec
	var err error
	switch newSpec.Kind {
	case Limit, StopLimit:
		if newSpec.Side == bar.Long {
			aligned.LimitTick, err = ins.AlignBuyLimit(newSpec.LimitTick)
		} else {
			aligned.LimitTick, err = ins.AlignSellLimit(newSpec.LimitTick)
		}
		if err != nil {
			return 0, err
		}
	}

	old.State = Cancelled
	old.CancelReason = reason

	b.nextID++
	id := b.nextID
	o := &Order{
		ID:            id,
		Intent:        aligned,
		State:         Active,
		SubmissionBar: barIndex,
		SubmittedAt:   now,
	}
	b.orders[id] = o
	b.sequence = append(b.sequence, id)
	if aligned.OCOGroup != 0 {
		b.ocoGroup[aligned.OCOGroup] = append(b.ocoGroup[aligned.OCOGroup], id)
	}
	return id, nil
}

// OnFill applies a fill to the order it references, advancing its state and
// resolving bracket/OCO consequences. A fill that would exceed the order's
// requested quantity indicates a simulator bug and is fatal.
func (b *Book) OnFill(f Fill) error {
	o, ok := b.orders[f.OrderID]
	if !ok {
		return fmt.Errorf("on_fill: order %d does not exist", f.OrderID)
	}
	if o.Remaining() < f.Quantity {
		return &DuplicateFillError{
			OrderID: f.OrderID, Requested: o.Intent.Quantity,
			AlreadyFilled: o.FilledQty, Attempted: f.Quantity,
		}
	}
	o.FilledQty += f.Quantity
	if o.FilledQty == o.Intent.Quantity {
		o.State = Filled
	} else {
		o.State = PartiallyFilled
	}

	if o.State == Filled && o.Intent.OCOGroup != 0 {
		for _, sibID := range b.ocoGroup[o.Intent.OCOGroup] {
			if sibID == o.ID {
				continue
			}
			sib := b.orders[sibID]
			if !sib.State.Terminal() {
				sib.State = Cancelled
				sib.CancelReason = "sibling-filled"
			}
		}
	}
	return nil
}

// Get returns a copy of the order for the given ID.
func (b *Book) Get(id ID) (Order, bool) {
	o, ok := b.orders[id]
	if !ok {
		return Order{}, false
	}
	return *o, true
}

// Snapshot returns a read-only, submission-ordered copy of every order in
// the book. Callers (position manager, signal/order-policy layer) cannot
// mutate book state through it.
func (b *Book) Snapshot() []Order {
	out := make([]Order, 0, len(b.sequence))
	for _, id := range b.sequence {
		out = append(out, *b.orders[id])
	}
	return out
}

// Active returns, in submission order, every order currently in the Active
// or Triggered state — the set the execution simulator resolves fills
// against. Triggered stop-limit orders are included because they still
// behave as live (resting limit) orders for the remainder of the bar.
func (b *Book) Active() []Order {
	out := make([]Order, 0)
	for _, id := range b.sequence {
		o := b.orders[id]
		if o.State == Active || o.State == Triggered {
			out = append(out, *o)
		}
	}
	return out
}

// Pending returns, in submission order, every order currently Pending
// activation.
func (b *Book) Pending() []Order {
	out := make([]Order, 0)
	for _, id := range b.sequence {
		o := b.orders[id]
		if o.State == Pending {
			out = append(out, *o)
		}
	}
	return out
}
