package cli

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/avalytics/btkernel/internal/bar"
	"github.com/avalytics/btkernel/internal/features"
)

// loadSeries reads a bar series from a CSV file with header
// timestamp,open,high,low,close,volume. Timestamps are RFC3339. This is
// the one piece of the CLI that touches the outside filesystem directly;
// everything past this point works against bar.Series values.
func loadSeries(symbol, path string) (bar.Series, error) {
	f, err := os.Open(path)
	if err != nil {
		return bar.Series{}, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	rows, err := r.ReadAll()
	if err != nil {
		return bar.Series{}, err
	}
	if len(rows) < 2 {
		return bar.Series{}, fmt.Errorf("%s: no data rows", path)
	}

	series := bar.Series{Symbol: symbol, Bars: make([]bar.Bar, 0, len(rows)-1)}
	for i, row := range rows[1:] {
		if len(row) < 6 {
			return bar.Series{}, fmt.Errorf("%s: row %d: expected 6 columns, got %d", path, i+1, len(row))
		}
		ts, err := time.Parse(time.RFC3339, row[0])
		if err != nil {
			return bar.Series{}, fmt.Errorf("%s: row %d: %w", path, i+1, err)
		}
		o, err1 := strconv.ParseInt(row[1], 10, 64)
		h, err2 := strconv.ParseInt(row[2], 10, 64)
		l, err3 := strconv.ParseInt(row[3], 10, 64)
		c, err4 := strconv.ParseInt(row[4], 10, 64)
		v, err5 := strconv.ParseInt(row[5], 10, 64)
		if err := firstErr(err1, err2, err3, err4, err5); err != nil {
			return bar.Series{}, fmt.Errorf("%s: row %d: %w", path, i+1, err)
		}
		series.Bars = append(series.Bars, bar.Bar{
			Symbol: symbol, Timestamp: ts,
			Open: bar.Ticks(o), High: bar.Ticks(h), Low: bar.Ticks(l), Close: bar.Ticks(c),
			Volume: v,
		})
	}
	if err := series.Validate(); err != nil {
		return bar.Series{}, err
	}
	features.ATR(series.Bars, 14, "atr14")
	features.SMA(series.Bars, 20, "sma20")
	features.SMA(series.Bars, 50, "sma50")
	features.EMA(series.Bars, 20, "ema20")
	features.Donchian(series.Bars, 20, "donchian_high", "donchian_low")
	return series, nil
}

// datasetRows reads path's raw lines (including the header) for
// determinism.DatasetHash to hash, independent of how loadSeries parses
// and validates the rows into bar.Bar values.
func datasetRows(path string) ([][]byte, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return bytes.Split(bytes.TrimRight(content, "\n"), []byte("\n")), nil
}

func firstErr(errs ...error) error {
	for _, e := range errs {
		if e != nil {
			return e
		}
	}
	return nil
}
