package portfolio

import (
	"time"

	"github.com/avalytics/btkernel/internal/bar"
)

// TradeRecord is one closing (or partially closing) fill's entry in the
// append-only trade ledger, including the maximum adverse and favorable
// excursion computed from the bars the position was held.
type TradeRecord struct {
	Instrument  string
	Side        bar.Side
	Quantity    int64
	EntryPrice  bar.Ticks
	ExitPrice   bar.Ticks
	EntryTime   time.Time
	ExitTime    time.Time
	EntryBar    int64
	ExitBar     int64
	RealizedPnL bar.Ticks
	Commission  bar.Ticks
	MAE         bar.Ticks
	MFE         bar.Ticks
}

// EquityPoint is one bar-close snapshot of the portfolio's equity curve.
type EquityPoint struct {
	Timestamp time.Time
	Equity    bar.Ticks
	Cash      bar.Ticks
	Drawdown  float64
	Exposure  float64
}
