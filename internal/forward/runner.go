// Package forward runs deployed strategies against live market data.
// One runner polls per deployment, maintaining a rolling bar window per
// symbol and trading into a shared portfolio ledger.
package forward

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/quantblocks/quantblocks/internal/core"
	"github.com/quantblocks/quantblocks/internal/ledger"
	"github.com/quantblocks/quantblocks/internal/marketdata"
	"github.com/quantblocks/quantblocks/internal/metrics"
	"github.com/quantblocks/quantblocks/internal/notifier"
	"github.com/quantblocks/quantblocks/internal/portfolio"
	"github.com/quantblocks/quantblocks/internal/strategy"
)

const (
	// DefaultWindowSize is the rolling bar window kept per symbol.
	DefaultWindowSize = 100
	// DefaultErrorBackoff is the fixed delay after a failed cycle.
	DefaultErrorBackoff = 60 * time.Second
	// stopGrace bounds how long Stop waits for an in-flight cycle.
	stopGrace = 5 * time.Second
)

// PollInterval returns the polling cadence for a strategy timeframe.
// Daily strategies still poll every five minutes so intraday stop-loss
// and take-profit levels are enforced promptly.
func PollInterval(timeframe string) time.Duration {
	switch timeframe {
	case core.Timeframe1m:
		return 60 * time.Second
	case core.Timeframe5m:
		return 300 * time.Second
	case core.Timeframe15m:
		return 900 * time.Second
	case core.Timeframe1h:
		return 3600 * time.Second
	case core.Timeframe1d:
		return 300 * time.Second
	default:
		return 300 * time.Second
	}
}

// barDuration maps a timeframe to the span of one bar, used to size
// the lookback window for fetches.
func barDuration(timeframe string) time.Duration {
	switch timeframe {
	case core.Timeframe1m:
		return time.Minute
	case core.Timeframe5m:
		return 5 * time.Minute
	case core.Timeframe15m:
		return 15 * time.Minute
	case core.Timeframe1h:
		return time.Hour
	default:
		return 24 * time.Hour
	}
}

// Config carries the collaborators and tuning shared by runners.
type Config struct {
	Source    marketdata.Source
	Notifiers *notifier.Registry
	Metrics   *metrics.Registry
	Logger    *zap.Logger

	WindowSize   int
	ErrorBackoff time.Duration
	// PollOverride forces the cycle interval regardless of timeframe.
	// Zero means use PollInterval(timeframe).
	PollOverride time.Duration
}

func (c Config) withDefaults() Config {
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
	if c.WindowSize <= 0 {
		c.WindowSize = DefaultWindowSize
	}
	if c.ErrorBackoff <= 0 {
		c.ErrorBackoff = DefaultErrorBackoff
	}
	return c
}

// Runner is one forward-test worker. It owns its rolling windows and
// shares only the portfolio ledger, which serializes access internally.
type Runner struct {
	id        string
	compiled  *strategy.Compiled
	portfolio *portfolio.Portfolio
	cfg       Config
	interval  time.Duration

	windows   map[string][]core.Bar
	startedAt time.Time
	cycles    atomic.Int64
	lastCycle atomic.Int64 // unix nanos of the last completed cycle

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewRunner builds a runner for one deployment. Call Start to begin
// polling.
func NewRunner(id string, compiled *strategy.Compiled, pf *portfolio.Portfolio, cfg Config) *Runner {
	cfg = cfg.withDefaults()
	interval := cfg.PollOverride
	if interval <= 0 {
		interval = PollInterval(compiled.Timeframe())
	}
	return &Runner{
		id:        id,
		compiled:  compiled,
		portfolio: pf,
		cfg:       cfg,
		interval:  interval,
		windows:   make(map[string][]core.Bar),
		startedAt: time.Now().UTC(),
	}
}

// ID returns the deployment id.
func (r *Runner) ID() string { return r.id }

// StrategyName returns the deployed strategy's name.
func (r *Runner) StrategyName() string { return r.compiled.Strategy.Name }

// PortfolioID returns the target portfolio id.
func (r *Runner) PortfolioID() string { return r.portfolio.ID }

// StartedAt returns when the runner was created.
func (r *Runner) StartedAt() time.Time { return r.startedAt }

// Cycles returns the number of completed polling cycles.
func (r *Runner) Cycles() int64 { return r.cycles.Load() }

// LastCycle returns the completion time of the most recent cycle.
func (r *Runner) LastCycle() time.Time {
	ns := r.lastCycle.Load()
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}

// Start launches the polling loop in its own goroutine.
func (r *Runner) Start() {
	r.stopCh = make(chan struct{})
	r.doneCh = make(chan struct{})
	go r.loop()
}

// Stop requests a cooperative shutdown and waits, within a bounded
// grace period, for the in-flight cycle to finish. Safe to call more
// than once.
func (r *Runner) Stop() {
	if r.stopCh == nil {
		return
	}
	r.stopOnce.Do(func() { close(r.stopCh) })
	select {
	case <-r.doneCh:
	case <-time.After(stopGrace):
		r.cfg.Logger.Warn("forward runner stop grace expired",
			zap.String("deployment", r.id))
	}
}

// loop runs cycles until stopped. A failed cycle logs and backs off
// with a fixed delay; it never terminates the worker.
func (r *Runner) loop() {
	defer close(r.doneCh)

	for {
		select {
		case <-r.stopCh:
			return
		default:
		}

		delay := r.interval
		if err := r.cycle(); err != nil {
			r.cfg.Logger.Error("forward cycle failed",
				zap.String("deployment", r.id),
				zap.Error(err))
			r.cfg.Metrics.RecordForwardCycle(r.id, "error")
			delay = r.cfg.ErrorBackoff
		} else {
			r.cfg.Metrics.RecordForwardCycle(r.id, "ok")
		}
		r.cycles.Add(1)
		r.lastCycle.Store(time.Now().UnixNano())

		select {
		case <-r.stopCh:
			return
		case <-time.After(delay):
		}
	}
}

// cycle refreshes every symbol's window, enforces exits, and evaluates
// conditions at the latest bar.
func (r *Runner) cycle() error {
	ctx, cancel := context.WithTimeout(context.Background(), r.interval)
	defer cancel()

	tf := r.compiled.Timeframe()
	lookback := barDuration(tf) * time.Duration(r.cfg.WindowSize)
	marks := make(map[string]float64)

	symbols := r.compiled.Strategy.Symbols
	if len(symbols) == 0 {
		return core.WrapError(core.ErrSimulation, fmt.Errorf("deployment %s has no symbols", r.id))
	}

	for _, symbol := range symbols {
		fresh, err := r.cfg.Source.RecentBars(ctx, symbol, lookback, tf)
		if err != nil {
			return err
		}

		window := marketdata.MergeBars(r.windows[symbol], fresh, r.cfg.WindowSize)
		if len(window) == 0 {
			return core.WrapError(core.ErrNoData, fmt.Errorf("symbol %s", symbol))
		}
		r.windows[symbol] = window

		series, err := r.compiled.ComputeIndicators(window)
		if err != nil {
			return err
		}

		last := window[len(window)-1]
		price := last.Close
		now := time.Now().UTC()
		marks[symbol] = price

		book := r.portfolio.Ledger
		if trade, closed := book.ExitOnPrice(symbol, price, now); closed {
			r.publish(notifier.EventTradeClosed, trade)
			continue
		}

		idx := len(window) - 1
		for _, cond := range r.compiled.Conditions {
			if !cond.Expr.Eval(series, idx) {
				continue
			}
			r.executeActions(book, symbol, price, now)
			break
		}
	}

	equity := r.portfolio.Ledger.Equity(marks)
	r.portfolio.SampleEquity(time.Now().UTC(), equity)
	r.cfg.Metrics.SetPortfolioEquity(r.portfolio.ID, equity)
	return nil
}

func (r *Runner) executeActions(book *ledger.Ledger, symbol string, price float64, now time.Time) {
	for _, action := range r.compiled.Actions {
		switch action.Action {
		case core.ActionBuy:
			if trade, ok := book.OpenLong(symbol, price, now, ledger.ParamsFromMap(action.Params)); ok {
				r.publish(notifier.EventTradeOpened, trade)
			}
		case core.ActionSell:
			if trade, ok := book.Close(symbol, price, now, core.ExitLogic); ok {
				r.publish(notifier.EventTradeClosed, trade)
			}
		case core.ActionExitAll:
			if trade, ok := book.Close(symbol, price, now, core.ExitAll); ok {
				r.publish(notifier.EventTradeClosed, trade)
			}
		}
	}
}

// publish reports a trade to the notifier registry. Delivery failures
// are logged and never interrupt trading.
func (r *Runner) publish(eventType string, trade ledger.Trade) {
	r.cfg.Metrics.RecordTrade("forward", string(trade.Side))
	r.cfg.Logger.Info("forward trade",
		zap.String("deployment", r.id),
		zap.String("event", eventType),
		zap.String("symbol", trade.Symbol),
		zap.Float64("price", trade.EntryPrice),
		zap.Float64("pnl", trade.PnL))

	if r.cfg.Notifiers == nil {
		return
	}
	event := notifier.Event{
		Type:         eventType,
		DeploymentID: r.id,
		Strategy:     r.compiled.Strategy.Name,
		Symbol:       trade.Symbol,
		Trade:        trade,
		At:           time.Now().UTC(),
	}
	for name, err := range r.cfg.Notifiers.NotifyAll(event) {
		r.cfg.Logger.Warn("notifier delivery failed",
			zap.String("notifier", name),
			zap.Error(err))
	}
}
