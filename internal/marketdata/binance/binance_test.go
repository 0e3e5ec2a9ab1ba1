package binance

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/quantblocks/quantblocks/internal/core"
)

func TestName(t *testing.T) {
	if got := New().Name(); got != "binance" {
		t.Errorf("expected 'binance', got '%s'", got)
	}
}

func TestToInterval(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"1m", "1m"},
		{"5m", "5m"},
		{"15m", "15m"},
		{"1h", "1h"},
		{"4h", "4h"},
		{"1d", "1d"},
		{"unknown", "1d"},
	}
	for _, tc := range tests {
		if got := toInterval(tc.input); got != tc.expected {
			t.Errorf("toInterval(%s) = %s, want %s", tc.input, got, tc.expected)
		}
	}
}

const klinesBody = `[
	[1717200000000, "68000.0", "68500.0", "67800.0", "68200.0", "120.5", 1717286399999],
	[1717286400000, "68200.0", "69000.0", "68100.0", "68900.0", "98.2", 1717372799999]
]`

func TestHistoricalBars(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("symbol") != "BTCUSDT" {
			t.Errorf("unexpected symbol query: %s", r.URL.RawQuery)
		}
		w.Write([]byte(klinesBody))
	}))
	defer srv.Close()

	s := NewWithBaseURL(srv.URL)
	bars, err := s.HistoricalBars(context.Background(), "BTCUSDT",
		time.Now().AddDate(0, 0, -2), time.Now(), "1d")
	if err != nil {
		t.Fatalf("HistoricalBars failed: %v", err)
	}

	if len(bars) != 2 {
		t.Fatalf("len = %d, want 2", len(bars))
	}
	if bars[0].Open != 68000 || bars[0].Close != 68200 {
		t.Errorf("unexpected first bar: %+v", bars[0])
	}
	if bars[1].Volume != 98.2 {
		t.Errorf("volume = %v, want 98.2", bars[1].Volume)
	}
	if !bars[0].Time.Equal(time.UnixMilli(1717200000000).UTC()) {
		t.Errorf("unexpected bar time: %v", bars[0].Time)
	}
}

func TestHistoricalBars_UnknownSymbol(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	s := NewWithBaseURL(srv.URL)
	_, err := s.HistoricalBars(context.Background(), "NOPE",
		time.Now().AddDate(0, 0, -2), time.Now(), "1d")
	if !errors.Is(err, core.ErrSymbolNotFound) {
		t.Fatalf("expected ErrSymbolNotFound, got %v", err)
	}
}

func TestHistoricalBars_Empty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	s := NewWithBaseURL(srv.URL)
	_, err := s.HistoricalBars(context.Background(), "BTCUSDT",
		time.Now().AddDate(0, 0, -2), time.Now(), "1d")
	if !errors.Is(err, core.ErrNoData) {
		t.Fatalf("expected ErrNoData, got %v", err)
	}
}
