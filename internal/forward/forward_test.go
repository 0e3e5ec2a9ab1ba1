package forward

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantblocks/quantblocks/internal/core"
	"github.com/quantblocks/quantblocks/internal/portfolio"
	"github.com/quantblocks/quantblocks/internal/strategy"
)

// fakeSource serves fixed bars and counts fetches.
type fakeSource struct {
	bars  []core.Bar
	err   error
	calls atomic.Int64
}

func (f *fakeSource) Name() string { return "fake" }

func (f *fakeSource) HistoricalBars(ctx context.Context, symbol string, start, end time.Time, interval string) ([]core.Bar, error) {
	f.calls.Add(1)
	return f.bars, f.err
}

func (f *fakeSource) RecentBars(ctx context.Context, symbol string, period time.Duration, interval string) ([]core.Bar, error) {
	f.calls.Add(1)
	return f.bars, f.err
}

func fixedBars(closes ...float64) []core.Bar {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]core.Bar, len(closes))
	for i, c := range closes {
		bars[i] = core.Bar{
			Symbol: "TEST", Interval: "1d",
			Open: c, High: c, Low: c, Close: c, Volume: 1,
			Time: base.AddDate(0, 0, i),
		}
	}
	return bars
}

func compiledBuyBelow(t *testing.T, threshold string) *strategy.Compiled {
	t.Helper()
	c, err := strategy.Compile(&strategy.Strategy{
		Name:      "dip-buy",
		Symbols:   []string{"TEST"},
		Timeframe: "1d",
		Blocks: []strategy.Block{
			{ID: "b1", Type: strategy.BlockIndicator, Indicator: "SMA",
				Params: map[string]float64{"period": 1}},
			{ID: "b2", Type: strategy.BlockCondition, Expr: "b1 < " + threshold},
			{ID: "b3", Type: strategy.BlockAction, Action: core.ActionBuy,
				Params: map[string]float64{"stopLossPct": 0, "takeProfitPct": 0}},
		},
	})
	require.NoError(t, err)
	return c
}

func testConfig(src *fakeSource) Config {
	return Config{
		Source:       src,
		WindowSize:   10,
		ErrorBackoff: 2 * time.Millisecond,
		PollOverride: 2 * time.Millisecond,
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition not met within deadline")
}

func TestPollInterval(t *testing.T) {
	tests := []struct {
		timeframe string
		expected  time.Duration
	}{
		{"1m", 60 * time.Second},
		{"5m", 300 * time.Second},
		{"15m", 900 * time.Second},
		{"1h", 3600 * time.Second},
		{"1d", 300 * time.Second},
		{"weird", 300 * time.Second},
	}
	for _, tc := range tests {
		if got := PollInterval(tc.timeframe); got != tc.expected {
			t.Errorf("PollInterval(%s) = %v, want %v", tc.timeframe, got, tc.expected)
		}
	}
}

func TestRunner_OpensPositionOnCondition(t *testing.T) {
	src := &fakeSource{bars: fixedBars(10, 11, 9)}
	pf := portfolio.New("paper", 10000)
	r := NewRunner("dep-1", compiledBuyBelow(t, "100"), pf, testConfig(src))
	r.Start()
	defer r.Stop()

	waitFor(t, func() bool { return pf.Ledger.HasPosition("TEST") })

	pos, ok := pf.Ledger.Position("TEST")
	require.True(t, ok)
	// Entry at the latest window close.
	assert.Equal(t, 9.0, pos.AvgPrice)

	// Equity is sampled every cycle.
	waitFor(t, func() bool { return len(pf.EquityCurve()) > 0 })
}

func TestRunner_SurvivesSourceErrors(t *testing.T) {
	src := &fakeSource{err: errors.New("upstream down")}
	pf := portfolio.New("paper", 10000)
	r := NewRunner("dep-1", compiledBuyBelow(t, "100"), pf, testConfig(src))
	r.Start()
	defer r.Stop()

	// The worker keeps cycling through repeated failures.
	waitFor(t, func() bool { return r.Cycles() >= 3 })
	assert.False(t, pf.Ledger.HasPosition("TEST"))
	assert.False(t, r.LastCycle().IsZero())
}

func TestRunner_StopIsCooperativeAndPrompt(t *testing.T) {
	src := &fakeSource{bars: fixedBars(10, 11, 12)}
	pf := portfolio.New("paper", 10000)
	r := NewRunner("dep-1", compiledBuyBelow(t, "0"), pf, testConfig(src))
	r.Start()

	waitFor(t, func() bool { return r.Cycles() >= 1 })

	done := make(chan struct{})
	go func() {
		r.Stop()
		r.Stop() // second stop must not panic or block
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return promptly")
	}

	// No cycles after stop.
	stopped := r.Cycles()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, stopped, r.Cycles())
}

func TestRegistry_DeployAndStop(t *testing.T) {
	src := &fakeSource{bars: fixedBars(10, 11, 12)}
	reg := NewRegistry(testConfig(src))
	pf := portfolio.New("paper", 10000)
	compiled := compiledBuyBelow(t, "0")

	_, err := reg.Deploy("dep-1", compiled, pf)
	require.NoError(t, err)

	_, err = reg.Deploy("dep-1", compiled, pf)
	assert.True(t, errors.Is(err, core.ErrDeploymentExists))

	dep, err := reg.Get("dep-1")
	require.NoError(t, err)
	assert.Equal(t, "dip-buy", dep.Strategy)
	assert.Equal(t, pf.ID, dep.PortfolioID)
	assert.Len(t, reg.List(), 1)

	reg.Stop("dep-1")
	reg.Stop("dep-1") // idempotent

	_, err = reg.Get("dep-1")
	assert.True(t, errors.Is(err, core.ErrDeploymentNotFound))
	assert.Empty(t, reg.List())
}

func TestRegistry_StopAll(t *testing.T) {
	src := &fakeSource{bars: fixedBars(10)}
	reg := NewRegistry(testConfig(src))
	compiled := compiledBuyBelow(t, "0")

	for _, id := range []string{"a", "b", "c"} {
		_, err := reg.Deploy(id, compiled, portfolio.New(id, 1000))
		require.NoError(t, err)
	}
	require.Len(t, reg.List(), 3)

	reg.StopAll()
	assert.Empty(t, reg.List())
}
