package indicator

import (
	"math"
	"testing"
	"time"

	"github.com/quantblocks/quantblocks/internal/core"
)

func barsFromCloses(closes ...float64) []core.Bar {
	bars := make([]core.Bar, len(closes))
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, c := range closes {
		bars[i] = core.Bar{
			Symbol: "TEST",
			Open:   c,
			High:   c + 1,
			Low:    c - 1,
			Close:  c,
			Volume: 1000,
			Time:   base.AddDate(0, 0, i),
		}
	}
	return bars
}

func almostEqual(a, b, tolerance float64) bool {
	return math.Abs(a-b) < tolerance
}

func TestSMA_WarmupAndValues(t *testing.T) {
	sma := SMA([]float64{10, 11, 12, 13, 14, 15}, 3)

	if len(sma) != 6 {
		t.Fatalf("expected 6 values, got %d", len(sma))
	}
	for i := 0; i < 2; i++ {
		if !math.IsNaN(sma[i]) {
			t.Errorf("sma[%d] should be undefined, got %f", i, sma[i])
		}
	}

	expected := []float64{11, 12, 13, 14}
	for i, want := range expected {
		if sma[i+2] != want {
			t.Errorf("sma[%d] = %f, want %f", i+2, sma[i+2], want)
		}
	}
}

func TestSMA_NotEnoughData(t *testing.T) {
	sma := SMA([]float64{10, 11}, 5)

	for i, v := range sma {
		if !math.IsNaN(v) {
			t.Errorf("sma[%d] should be undefined, got %f", i, v)
		}
	}
}

func TestEMA_Recurrence(t *testing.T) {
	values := []float64{10, 11, 12, 13, 14, 15}
	period := 3
	ema := EMA(values, period)

	// ema[0] = close[0], ema[t] = ema[t-1] + alpha*(close[t]-ema[t-1])
	alpha := 2.0 / float64(period+1)
	want := values[0]
	if ema[0] != want {
		t.Fatalf("ema[0] = %f, want %f", ema[0], want)
	}
	for i := 1; i < len(values); i++ {
		want += alpha * (values[i] - want)
		if !almostEqual(ema[i], want, 1e-9) {
			t.Errorf("ema[%d] = %f, want %f", i, ema[i], want)
		}
	}
}

func TestRSI_AllGainsSaturates(t *testing.T) {
	rsi := RSI([]float64{10, 11, 12, 13, 14, 15}, 3)

	// Warm-up: first delta exists at index 1, window fills at index 3.
	for i := 0; i < 3; i++ {
		if !math.IsNaN(rsi[i]) {
			t.Errorf("rsi[%d] should be undefined, got %f", i, rsi[i])
		}
	}
	// Monotonic rise has zero losses: saturate at 100.
	for i := 3; i < len(rsi); i++ {
		if rsi[i] != 100 {
			t.Errorf("rsi[%d] = %f, want 100", i, rsi[i])
		}
	}
}

func TestRSI_MixedMoves(t *testing.T) {
	// Deltas: +2, -1, +2, -1 → window 2: avgGain 1, avgLoss 0.5 at idx 2.
	rsi := RSI([]float64{10, 12, 11, 13, 12}, 2)

	// rs = (2/2)/(1/2)... recompute at idx 2: deltas idx1..2 = (+2,-1)
	// avgGain = 1, avgLoss = 0.5, rs = 2, rsi = 100 - 100/3 = 66.666...
	if !almostEqual(rsi[2], 100-100.0/3, 1e-9) {
		t.Errorf("rsi[2] = %f, want %f", rsi[2], 100-100.0/3)
	}
}

func TestMACD_Components(t *testing.T) {
	values := []float64{10, 11, 12, 13, 14, 15, 14, 13, 12, 11}
	macd, signal, hist := MACD(values, 3, 6, 4)

	fast := EMA(values, 3)
	slow := EMA(values, 6)
	for i := range values {
		if !almostEqual(macd[i], fast[i]-slow[i], 1e-9) {
			t.Errorf("macd[%d] = %f, want %f", i, macd[i], fast[i]-slow[i])
		}
		if !almostEqual(hist[i], macd[i]-signal[i], 1e-9) {
			t.Errorf("hist[%d] = %f, want %f", i, hist[i], macd[i]-signal[i])
		}
	}

	// Signal line follows the EMA recurrence over the MACD line.
	if signal[0] != macd[0] {
		t.Errorf("signal[0] = %f, want %f", signal[0], macd[0])
	}
}

func TestBollinger_Bands(t *testing.T) {
	values := []float64{10, 12, 14, 16, 18}
	upper, middle, lower := Bollinger(values, 3, 2)

	// Window [10,12,14]: mean 12, sample std 2.
	if middle[2] != 12 {
		t.Errorf("middle[2] = %f, want 12", middle[2])
	}
	if !almostEqual(upper[2], 16, 1e-9) {
		t.Errorf("upper[2] = %f, want 16", upper[2])
	}
	if !almostEqual(lower[2], 8, 1e-9) {
		t.Errorf("lower[2] = %f, want 8", lower[2])
	}
	if !math.IsNaN(upper[1]) {
		t.Errorf("upper[1] should be undefined")
	}
}

func TestVWAP_Cumulative(t *testing.T) {
	bars := []core.Bar{
		{High: 12, Low: 8, Close: 10, Volume: 100},
		{High: 22, Low: 18, Close: 20, Volume: 300},
	}
	vwap := VWAP(bars)

	// Typical prices 10 and 20; (10*100 + 20*300) / 400 = 17.5
	if vwap[0] != 10 {
		t.Errorf("vwap[0] = %f, want 10", vwap[0])
	}
	if vwap[1] != 17.5 {
		t.Errorf("vwap[1] = %f, want 17.5", vwap[1])
	}
}

func TestVWAP_ZeroVolume(t *testing.T) {
	bars := []core.Bar{{High: 12, Low: 8, Close: 10, Volume: 0}}
	vwap := VWAP(bars)
	if !math.IsNaN(vwap[0]) {
		t.Errorf("vwap with zero volume should be undefined, got %f", vwap[0])
	}
}

func TestATR_TrueRange(t *testing.T) {
	bars := []core.Bar{
		{High: 12, Low: 10, Close: 11},
		{High: 15, Low: 11, Close: 14}, // TR = max(4, |15-11|, |11-11|) = 4
		{High: 14, Low: 9, Close: 10},  // TR = max(5, 0, 5) = 5
	}
	atr := ATR(bars, 2)

	if !math.IsNaN(atr[0]) {
		t.Errorf("atr[0] should be undefined")
	}
	// atr[1] = mean(TR0=2, TR1=4) = 3
	if atr[1] != 3 {
		t.Errorf("atr[1] = %f, want 3", atr[1])
	}
	// atr[2] = mean(4, 5) = 4.5
	if atr[2] != 4.5 {
		t.Errorf("atr[2] = %f, want 4.5", atr[2])
	}
}

func TestCompute_UnknownIndicator(t *testing.T) {
	_, err := Compute(barsFromCloses(10, 11, 12), "SUPERTREND", nil)
	if err == nil {
		t.Fatal("expected error for unknown indicator")
	}
}

func TestCompute_Defaults(t *testing.T) {
	bars := barsFromCloses(10, 11, 12, 13, 14)

	got, err := Compute(bars, "sma", map[string]float64{"period": 2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got.Primary) != len(bars) {
		t.Fatalf("series length %d, want %d", len(got.Primary), len(bars))
	}
	if got.Named != nil {
		t.Error("single-series indicator should not return named set")
	}
}

func TestCompute_MultiSeries(t *testing.T) {
	bars := barsFromCloses(10, 11, 12, 13, 14, 15, 16, 17)

	got, err := Compute(bars, "MACD", map[string]float64{"fast": 3, "slow": 5, "signal": 2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, name := range []string{"macd", "signal", "histogram"} {
		if _, ok := got.Named[name]; !ok {
			t.Errorf("missing named series %q", name)
		}
	}
	if got.Primary.At(3) != got.Named["macd"].At(3) {
		t.Error("primary should alias the macd line")
	}
}

func TestSeries_Defined(t *testing.T) {
	s := Series{math.NaN(), 1.5}

	if s.Defined(0) {
		t.Error("NaN should not be defined")
	}
	if !s.Defined(1) {
		t.Error("1.5 should be defined")
	}
	if s.Defined(5) || s.Defined(-1) {
		t.Error("out of range should not be defined")
	}
	if !math.IsNaN(s.At(9)) {
		t.Error("At out of range should be NaN")
	}
}
