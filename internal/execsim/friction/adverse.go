package friction

import (
	"math/rand/v2"

	"github.com/avalytics/btkernel/internal/bar"
)

// AdverseSelection biases a limit fill's price between the neutral limit
// price and the bar extreme the price travelled through to reach it —
// modeling that a resting limit is more likely to be picked off the deeper
// the market moves past it. Skew in [0,1]: 0 always fills at the neutral
// limit price, 1 allows the fill to reach all the way to that extreme.
type AdverseSelection struct {
	Skew float64
}

// Fill samples a fill price for a limit order at limitPrice. throughExtreme
// is the bar extreme on the far side of the limit in the direction price
// travelled to trigger it: the bar's low for a buy limit, the bar's high
// for a sell limit. The result always stays within the leg between
// limitPrice and throughExtreme, so the limit's price guarantee — a buy
// never fills above its limit, a sell never below — is never violated.
func (a AdverseSelection) Fill(rng *rand.Rand, limitPrice, throughExtreme bar.Ticks, side bar.Side) bar.Ticks {
	skew := a.Skew
	if skew <= 0 {
		return limitPrice
	}
	if skew > 1 {
		skew = 1
	}
	if rng == nil {
		rng = rand.New(rand.NewPCG(1, 1))
	}
	span := float64(throughExtreme-limitPrice) * skew
	draw := rng.Float64() * span
	return limitPrice + bar.Ticks(draw)
}
