package execsim

import (
	"math/rand/v2"
	"testing"
	"time"

	"github.com/avalytics/btkernel/internal/bar"
	"github.com/avalytics/btkernel/internal/execsim/friction"
	"github.com/avalytics/btkernel/internal/order"
)

func ins() bar.Instrument {
	return bar.Instrument{Symbol: "TEST", TickSize: 1, LotSize: 1, Rounding: bar.RoundingNearest}
}

func newSim(path PathPolicy) *Simulator {
	return &Simulator{
		Instrument: ins(),
		Path:       path,
		Slippage:   friction.FixedBps{Bps: 0},
		Adverse:    friction.AdverseSelection{Skew: 0},
	}
}

func TestGapThroughStop(t *testing.T) {
	sim := newSim(WorstCase{})
	b := order.NewBook()
	b.Submit(order.Intent{Instrument: "TEST", Kind: order.StopMarket, Side: bar.Short, Quantity: 1, TriggerTick: 95, AlwaysActive: true}, ins(), 0, time.Now())
	b.ActivateEligible(0)

	bb := bar.Bar{Symbol: "TEST", Open: 93, High: 96, Low: 92, Close: 94, Volume: 1000}
	long := bar.Long
	fills := sim.FillIntrabar(b, bb, 0, &long, rand.New(rand.NewPCG(1, 2)))
	if len(fills) != 1 {
		t.Fatalf("expected 1 fill, got %d", len(fills))
	}
	if fills[0].Price != 93 {
		t.Fatalf("expected gapped fill at open=93, got %d", fills[0].Price)
	}
}

func TestAmbiguousBar_WorstCase(t *testing.T) {
	sim := newSim(WorstCase{})
	b := order.NewBook()
	stopID, _ := b.Submit(order.Intent{Instrument: "TEST", Kind: order.StopMarket, Side: bar.Short, Quantity: 1, TriggerTick: 99, OCOGroup: 1, AlwaysActive: true}, ins(), 0, time.Now())
	targetID, _ := b.Submit(order.Intent{Instrument: "TEST", Kind: order.Limit, Side: bar.Short, Quantity: 1, LimitTick: 104, OCOGroup: 1, AlwaysActive: true}, ins(), 0, time.Now())
	b.ActivateEligible(0)

	bb := bar.Bar{Symbol: "TEST", Open: 100, High: 105, Low: 98, Close: 102, Volume: 1000}
	long := bar.Long
	sim.FillIntrabar(b, bb, 0, &long, rand.New(rand.NewPCG(1, 2)))

	stop, _ := b.Get(stopID)
	target, _ := b.Get(targetID)
	if stop.State != order.Filled {
		t.Fatalf("expected stop filled under WorstCase, got %v", stop.State)
	}
	if stop.FilledQty > 0 {
		// confirm fill recorded at trigger price via fills list indirectly through book state only;
	}
	if target.State != order.Cancelled || target.CancelReason != "sibling-filled" {
		t.Fatalf("expected target cancelled sibling-filled, got %v/%s", target.State, target.CancelReason)
	}
}

func TestAmbiguousBar_BestCase(t *testing.T) {
	sim := newSim(BestCase{})
	b := order.NewBook()
	stopID, _ := b.Submit(order.Intent{Instrument: "TEST", Kind: order.StopMarket, Side: bar.Short, Quantity: 1, TriggerTick: 99, OCOGroup: 1, AlwaysActive: true}, ins(), 0, time.Now())
	targetID, _ := b.Submit(order.Intent{Instrument: "TEST", Kind: order.Limit, Side: bar.Short, Quantity: 1, LimitTick: 104, OCOGroup: 1, AlwaysActive: true}, ins(), 0, time.Now())
	b.ActivateEligible(0)

	bb := bar.Bar{Symbol: "TEST", Open: 100, High: 105, Low: 98, Close: 102, Volume: 1000}
	long := bar.Long
	sim.FillIntrabar(b, bb, 0, &long, rand.New(rand.NewPCG(1, 2)))

	stop, _ := b.Get(stopID)
	target, _ := b.Get(targetID)
	if target.State != order.Filled {
		t.Fatalf("expected target filled under BestCase, got %v", target.State)
	}
	if stop.State != order.Cancelled {
		t.Fatalf("expected stop cancelled under BestCase, got %v", stop.State)
	}
}

func TestParticipationCapTimePriority(t *testing.T) {
	p := ParticipationCap{ParticipationRate: 0.1, Allocation: TimePriority}
	alloc := p.Allocate(1000, []candidateFill{{id: 1, quantity: 60}, {id: 2, quantity: 60}})
	if alloc[1] != 60 || alloc[2] != 40 {
		t.Fatalf("expected time-priority allocation 60/40, got %v", alloc)
	}
}

func TestParticipationCapProRata(t *testing.T) {
	p := ParticipationCap{ParticipationRate: 0.1, Allocation: ProRata}
	alloc := p.Allocate(1000, []candidateFill{{id: 1, quantity: 50}, {id: 2, quantity: 50}})
	if alloc[1]+alloc[2] != 100 {
		t.Fatalf("expected total allocation of 100, got %d", alloc[1]+alloc[2])
	}
}
