package signal

import (
	"github.com/avalytics/btkernel/internal/bar"
	"github.com/avalytics/btkernel/internal/order"
)

// PositionView is the minimal read-only view of an existing position an
// OrderPolicy needs to size a delta order. It is decoupled from
// *portfolio.Position so this package never depends on portfolio
// accounting internals.
type PositionView struct {
	Side     bar.Side
	Quantity int64
}

// signedQuantity returns Quantity signed by Side (negative for shorts), or
// zero for a nil (flat) view.
func (p *PositionView) signedQuantity() int64 {
	if p == nil {
		return 0
	}
	if p.Side == bar.Short {
		return -p.Quantity
	}
	return p.Quantity
}

// PortfolioView is the read-only snapshot an OrderPolicy sizes against.
type PortfolioView struct {
	Equity   bar.Ticks
	Position *PositionView
}

// RiskConfig bounds how much of the portfolio an OrderPolicy is allowed to
// commit to a single instrument.
type RiskConfig struct {
	MaxExposure float64
}

// OrderPolicy turns a signal Intent, the current price, and a portfolio
// snapshot into the order intents needed to move the position toward the
// signal's desired exposure.
type OrderPolicy interface {
	Translate(intent Intent, instrument bar.Instrument, price bar.Ticks, view PortfolioView, risk RiskConfig) ([]order.Intent, error)
}

// TargetExposurePolicy sizes the order needed to move the current position
// to the target signed quantity implied by the signal's exposure, rounded
// down to whole lots, and translates it into a family-appropriate order
// type: FamilyBreakout becomes a stop-entry resting at the intent's
// MetaTriggerPrice, FamilyMeanRevert becomes a limit order resting at
// MetaLimitPrice, and everything else — including FamilyTrend and any
// intent carrying no recognized family tag — becomes an immediate market
// order, the policy's original behavior.
type TargetExposurePolicy struct{}

func (TargetExposurePolicy) Translate(intent Intent, instrument bar.Instrument, price bar.Ticks, view PortfolioView, risk RiskConfig) ([]order.Intent, error) {
	if price <= 0 {
		return nil, nil
	}
	exposure := ClampExposure(intent.Exposure)
	budget := float64(view.Equity) * risk.MaxExposure * exposure
	targetQty := int64(budget / float64(price))
	if instrument.LotSize > 1 {
		targetQty -= targetQty % instrument.LotSize
	}

	current := view.Position.signedQuantity()
	delta := targetQty - current
	if delta == 0 {
		return nil, nil
	}

	side := bar.Long
	qty := delta
	if delta < 0 {
		side = bar.Short
		qty = -delta
	}

	base := order.Intent{
		Instrument:   instrument.Symbol,
		Side:         side,
		Quantity:     qty,
		TIF:          order.GoodForDay,
		AlwaysActive: true,
	}

	switch intentFamily(intent) {
	case FamilyBreakout:
		trigger, ok := metaTicks(intent.Metadata, MetaTriggerPrice)
		if !ok {
			base.Kind = order.MarketNow
			break
		}
		base.Kind = order.StopMarket
		base.TriggerTick = trigger
	case FamilyMeanRevert:
		limit, ok := metaTicks(intent.Metadata, MetaLimitPrice)
		if !ok {
			base.Kind = order.MarketNow
			break
		}
		base.Kind = order.Limit
		base.LimitTick = limit
	default:
		base.Kind = order.MarketNow
	}

	return []order.Intent{base}, nil
}

// intentFamily reads the first recognized family tag off intent.Tags,
// defaulting to FamilyTrend (an immediate market order) for an intent
// carrying none — the original, pre-family-dispatch behavior.
func intentFamily(intent Intent) Family {
	for _, tag := range intent.Tags {
		switch Family(tag) {
		case FamilyBreakout:
			return FamilyBreakout
		case FamilyMeanRevert:
			return FamilyMeanRevert
		case FamilyTrend:
			return FamilyTrend
		}
	}
	return FamilyTrend
}

// metaTicks reads a float64 price level out of an intent's Metadata and
// rounds it to the nearest tick.
func metaTicks(meta map[string]any, key string) (bar.Ticks, bool) {
	v, ok := meta[key]
	if !ok {
		return 0, false
	}
	f, ok := v.(float64)
	if !ok {
		return 0, false
	}
	return bar.Ticks(int64(f + 0.5)), true
}
