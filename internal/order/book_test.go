package order

import (
	"testing"
	"time"

	"github.com/avalytics/btkernel/internal/bar"
)

func testInstrument() bar.Instrument {
	return bar.Instrument{Symbol: "TEST", TickSize: 1, LotSize: 1, Rounding: bar.RoundingNearest}
}

func TestBook_OCOSingleFill(t *testing.T) {
	b := NewBook()
	ins := testInstrument()
	now := time.Now()

	stopID, err := b.Submit(Intent{Instrument: "TEST", Kind: StopMarket, Side: bar.Short, Quantity: 1, TriggerTick: 98, OCOGroup: 1, AlwaysActive: true}, ins, 0, now)
	if err != nil {
		t.Fatal(err)
	}
	targetID, err := b.Submit(Intent{Instrument: "TEST", Kind: Limit, Side: bar.Short, Quantity: 1, LimitTick: 104, OCOGroup: 1, AlwaysActive: true}, ins, 0, now)
	if err != nil {
		t.Fatal(err)
	}
	b.ActivateEligible(0)

	if err := b.OnFill(Fill{OrderID: stopID, BarIndex: 0, Phase: PhaseIntrabar, Price: 98, Quantity: 1}); err != nil {
		t.Fatal(err)
	}

	stop, _ := b.Get(stopID)
	target, _ := b.Get(targetID)
	if stop.State != Filled {
		t.Fatalf("expected stop filled, got %v", stop.State)
	}
	if target.State != Cancelled || target.CancelReason != "sibling-filled" {
		t.Fatalf("expected target cancelled with sibling-filled, got state=%v reason=%q", target.State, target.CancelReason)
	}
}

func TestBook_BracketChildInactiveUntilParentFilled(t *testing.T) {
	b := NewBook()
	ins := testInstrument()
	now := time.Now()

	parentID, _ := b.Submit(Intent{Instrument: "TEST", Kind: StopMarket, Side: bar.Long, Quantity: 1, TriggerTick: 101, AlwaysActive: true}, ins, 0, now)
	childID, _ := b.Submit(Intent{Instrument: "TEST", Kind: StopMarket, Side: bar.Short, Quantity: 1, TriggerTick: 95, ParentID: parentID, AlwaysActive: true}, ins, 0, now)

	b.ActivateEligible(0)
	child, _ := b.Get(childID)
	if child.State != Pending {
		t.Fatalf("expected child pending before parent fill, got %v", child.State)
	}

	if err := b.OnFill(Fill{OrderID: parentID, BarIndex: 0, Phase: PhaseIntrabar, Price: 101, Quantity: 1}); err != nil {
		t.Fatal(err)
	}
	b.ActivateEligible(0)
	child, _ = b.Get(childID)
	if child.State != Active {
		t.Fatalf("expected child active after parent fill, got %v", child.State)
	}
}

func TestBook_DuplicateFillIsFatal(t *testing.T) {
	b := NewBook()
	ins := testInstrument()
	id, _ := b.Submit(Intent{Instrument: "TEST", Kind: MarketNow, Side: bar.Long, Quantity: 1, AlwaysActive: true}, ins, 0, time.Now())
	b.ActivateEligible(0)

	if err := b.OnFill(Fill{OrderID: id, Quantity: 1}); err != nil {
		t.Fatal(err)
	}
	if err := b.OnFill(Fill{OrderID: id, Quantity: 1}); err == nil {
		t.Fatal("expected duplicate fill error")
	} else if _, ok := err.(*DuplicateFillError); !ok {
		t.Fatalf("expected *DuplicateFillError, got %T", err)
	}
}

func TestBook_CancelReplaceOnlyAtPostBar(t *testing.T) {
	b := NewBook()
	ins := testInstrument()
	now := time.Now()
	id, _ := b.Submit(Intent{Instrument: "TEST", Kind: StopMarket, Side: bar.Short, Quantity: 1, TriggerTick: 95, AlwaysActive: true}, ins, 0, now)
	b.ActivateEligible(0)

	b.SetPhase(PhaseIntrabar)
	_, err := b.CancelReplace(id, Intent{Instrument: "TEST", Kind: StopMarket, Side: bar.Short, Quantity: 1, TriggerTick: 97, AlwaysActive: true}, ins, 0, now, "ratchet")
	if err == nil {
		t.Fatal("expected rejection of mid-intrabar cancel-replace")
	}
	orig, _ := b.Get(id)
	if orig.State != Active {
		t.Fatalf("original order must remain untouched on rejected cancel-replace, got %v", orig.State)
	}

	b.SetPhase(PhasePostBar)
	newID, err := b.CancelReplace(id, Intent{Instrument: "TEST", Kind: StopMarket, Side: bar.Short, Quantity: 1, TriggerTick: 97, AlwaysActive: true}, ins, 0, now, "ratchet")
	if err != nil {
		t.Fatal(err)
	}
	orig, _ = b.Get(id)
	replacement, _ := b.Get(newID)
	if orig.State != Cancelled {
		t.Fatalf("expected original cancelled, got %v", orig.State)
	}
	if replacement.State != Active {
		t.Fatalf("expected replacement active, got %v", replacement.State)
	}
}

func TestBook_CancelReplaceMissingOrderFailsRun(t *testing.T) {
	b := NewBook()
	b.SetPhase(PhasePostBar)
	_, err := b.CancelReplace(999, Intent{}, testInstrument(), 0, time.Now(), "x")
	if err == nil {
		t.Fatal("expected error replacing non-existent order")
	}
}

func TestBook_CancelIsNoOpOnTerminal(t *testing.T) {
	b := NewBook()
	ins := testInstrument()
	id, _ := b.Submit(Intent{Instrument: "TEST", Kind: MarketNow, Side: bar.Long, Quantity: 1, AlwaysActive: true}, ins, 0, time.Now())
	b.ActivateEligible(0)
	if err := b.OnFill(Fill{OrderID: id, Quantity: 1}); err != nil {
		t.Fatal(err)
	}
	if err := b.Cancel(id, "late"); err != nil {
		t.Fatalf("cancelling a terminal order must be a no-op, not an error: %v", err)
	}
	o, _ := b.Get(id)
	if o.State != Filled {
		t.Fatalf("cancel must not change a terminal order's state, got %v", o.State)
	}
}

func TestBook_DeterministicIterationOrder(t *testing.T) {
	b := NewBook()
	ins := testInstrument()
	var ids []ID
	for i := 0; i < 10; i++ {
		id, _ := b.Submit(Intent{Instrument: "TEST", Kind: MarketNow, Side: bar.Long, Quantity: 1, AlwaysActive: true}, ins, 0, time.Now())
		ids = append(ids, id)
	}
	snap := b.Snapshot()
	for i, o := range snap {
		if o.ID != ids[i] {
			t.Fatalf("expected submission order at index %d to be %d, got %d", i, ids[i], o.ID)
		}
	}
}
