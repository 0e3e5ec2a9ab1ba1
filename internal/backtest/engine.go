// Package backtest replays a strategy over historical bars against a
// fresh simulated ledger and reports the equity curve, trades, and
// summary metrics.
package backtest

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/quantblocks/quantblocks/internal/core"
	"github.com/quantblocks/quantblocks/internal/ledger"
	"github.com/quantblocks/quantblocks/internal/marketdata"
	"github.com/quantblocks/quantblocks/internal/strategy"
)

// Engine runs backtests against a bar source. Each run is synchronous
// and owns all state it mutates, so one Engine can serve concurrent
// callers.
type Engine struct {
	source marketdata.Source
	logger *zap.Logger
}

// New creates a backtest engine.
func New(source marketdata.Source, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{source: source, logger: logger}
}

// Run executes the request to completion. It never returns an error:
// setup and data failures produce a Result with Status "failed" and a
// message. Identical inputs always yield identical outputs.
func (e *Engine) Run(ctx context.Context, req Request) *Result {
	res := &Result{
		Symbol:         req.Symbol,
		Start:          req.Start,
		End:            req.End,
		InitialCapital: req.InitialCapital,
		Status:         StatusFailed,
	}
	if req.Strategy != nil {
		res.Strategy = req.Strategy.Name
	}

	compiled, err := strategy.Compile(req.Strategy)
	if err != nil {
		res.Error = err.Error()
		return res
	}

	interval := compiled.Timeframe()
	bars, err := e.source.HistoricalBars(ctx, req.Symbol, req.Start, req.End, interval)
	if err != nil {
		res.Error = err.Error()
		return res
	}
	if len(bars) == 0 {
		res.Error = core.ErrNoData.Error()
		return res
	}

	series, err := compiled.ComputeIndicators(bars)
	if err != nil {
		res.Error = err.Error()
		return res
	}

	e.logger.Info("backtest started",
		zap.String("strategy", res.Strategy),
		zap.String("symbol", req.Symbol),
		zap.Int("bars", len(bars)))

	book := ledger.New(req.InitialCapital)
	equity := make([]core.EquityPoint, 0, len(bars))

	for i, bar := range bars {
		select {
		case <-ctx.Done():
			res.Error = fmt.Sprintf("backtest cancelled: %v", ctx.Err())
			return res
		default:
		}

		equity = append(equity, core.EquityPoint{
			Time:  bar.Time,
			Value: book.Equity(map[string]float64{req.Symbol: bar.Close}),
		})

		if _, closed := book.ExitOnBar(req.Symbol, bar, bar.Time); closed {
			continue
		}

		for _, cond := range compiled.Conditions {
			if !cond.Expr.Eval(series, i) {
				continue
			}
			e.executeActions(compiled, book, req.Symbol, bar)
			break
		}
	}

	last := bars[len(bars)-1]
	book.Close(req.Symbol, last.Close, last.Time, core.ExitEndOfBacktest)

	res.EquityCurve = equity
	res.Trades = book.Trades()
	res.Metrics = Calculate(equity, res.Trades, req.InitialCapital, len(bars))
	res.Status = StatusCompleted
	res.Error = ""

	e.logger.Info("backtest completed",
		zap.String("strategy", res.Strategy),
		zap.String("symbol", req.Symbol),
		zap.Int("trades", len(res.Trades)),
		zap.Float64("finalValue", res.Metrics.FinalValue))
	return res
}

// executeActions applies every action block at the bar's close price.
func (e *Engine) executeActions(compiled *strategy.Compiled, book *ledger.Ledger, symbol string, bar core.Bar) {
	for _, action := range compiled.Actions {
		switch action.Action {
		case core.ActionBuy:
			book.OpenLong(symbol, bar.Close, bar.Time, ledger.ParamsFromMap(action.Params))
		case core.ActionSell:
			book.Close(symbol, bar.Close, bar.Time, core.ExitLogic)
		case core.ActionExitAll:
			book.Close(symbol, bar.Close, bar.Time, core.ExitAll)
		}
	}
}
