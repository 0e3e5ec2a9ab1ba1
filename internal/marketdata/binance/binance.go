// Package binance fetches OHLCV bars from the Binance klines API.
package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/quantblocks/quantblocks/internal/core"
)

const defaultBaseURL = "https://api.binance.com"

// Source is a Binance spot-market bar source.
type Source struct {
	client  *http.Client
	baseURL string
}

// New creates a Binance source.
func New() *Source {
	return &Source{
		client:  &http.Client{Timeout: 10 * time.Second},
		baseURL: defaultBaseURL,
	}
}

// NewWithBaseURL creates a Binance source with a custom base URL (for testing).
func NewWithBaseURL(url string) *Source {
	s := New()
	s.baseURL = url
	return s
}

func (s *Source) Name() string {
	return "binance"
}

// HistoricalBars fetches klines between start and end.
func (s *Source) HistoricalBars(ctx context.Context, symbol string, start, end time.Time, interval string) ([]core.Bar, error) {
	url := fmt.Sprintf("%s/api/v3/klines?symbol=%s&interval=%s&startTime=%d&endTime=%d&limit=1000",
		s.baseURL, symbol, toInterval(interval), start.UnixMilli(), end.UnixMilli())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching klines: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusNotFound {
		return nil, core.WrapError(core.ErrSymbolNotFound, fmt.Errorf("symbol %s: status %d", symbol, resp.StatusCode))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	var klines [][]any
	if err := json.NewDecoder(resp.Body).Decode(&klines); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	if len(klines) == 0 {
		return nil, core.WrapError(core.ErrNoData, fmt.Errorf("symbol %s", symbol))
	}

	bars := make([]core.Bar, 0, len(klines))
	for _, k := range klines {
		if len(k) < 6 {
			continue
		}
		openTime, _ := k[0].(float64)
		open := parseField(k[1])
		high := parseField(k[2])
		low := parseField(k[3])
		close := parseField(k[4])
		volume := parseField(k[5])
		if close <= 0 {
			continue
		}
		bars = append(bars, core.Bar{
			Symbol:   symbol,
			Interval: interval,
			Open:     open,
			High:     high,
			Low:      low,
			Close:    close,
			Volume:   volume,
			Time:     time.UnixMilli(int64(openTime)).UTC(),
		})
	}
	return bars, nil
}

// RecentBars fetches klines covering the trailing period.
func (s *Source) RecentBars(ctx context.Context, symbol string, period time.Duration, interval string) ([]core.Bar, error) {
	end := time.Now()
	return s.HistoricalBars(ctx, symbol, end.Add(-period), end, interval)
}

func parseField(v any) float64 {
	str, ok := v.(string)
	if !ok {
		return 0
	}
	f, _ := strconv.ParseFloat(str, 64)
	return f
}

func toInterval(interval string) string {
	switch interval {
	case "1m", "5m", "15m", "30m", "1h", "2h", "4h", "1d", "1w":
		return interval
	default:
		return "1d"
	}
}
