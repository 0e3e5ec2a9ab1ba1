// Package marketdata defines the bar source abstraction used by the
// backtest and forward drivers, with provider implementations in
// subpackages.
package marketdata

import (
	"context"
	"sort"
	"time"

	"github.com/quantblocks/quantblocks/internal/core"
)

// Source fetches OHLCV bars for a symbol. Implementations return bars
// in ascending time order and skip bars with missing price data.
type Source interface {
	// Name identifies the provider.
	Name() string
	// HistoricalBars fetches bars between start and end inclusive.
	HistoricalBars(ctx context.Context, symbol string, start, end time.Time, interval string) ([]core.Bar, error)
	// RecentBars fetches the bars covering the trailing period up to now.
	RecentBars(ctx context.Context, symbol string, period time.Duration, interval string) ([]core.Bar, error)
}

// MergeBars appends fresh bars onto window, deduplicating by bar time
// with the fresh bar winning, and returns the last keep bars sorted
// ascending. Used by the forward driver to maintain its rolling window.
func MergeBars(window, fresh []core.Bar, keep int) []core.Bar {
	byTime := make(map[int64]core.Bar, len(window)+len(fresh))
	order := make([]int64, 0, len(window)+len(fresh))
	for _, b := range window {
		key := b.Time.Unix()
		if _, seen := byTime[key]; !seen {
			order = append(order, key)
		}
		byTime[key] = b
	}
	for _, b := range fresh {
		key := b.Time.Unix()
		if _, seen := byTime[key]; !seen {
			order = append(order, key)
		}
		byTime[key] = b
	}

	sort.Slice(order, func(i, j int) bool { return order[i] < order[j] })
	if len(order) > keep && keep > 0 {
		order = order[len(order)-keep:]
	}

	out := make([]core.Bar, len(order))
	for i, key := range order {
		out[i] = byTime[key]
	}
	return out
}
