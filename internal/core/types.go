package core

import "time"

// Timeframe identifiers accepted in strategy definitions.
const (
	Timeframe1m  = "1m"
	Timeframe5m  = "5m"
	Timeframe15m = "15m"
	Timeframe1h  = "1h"
	Timeframe1d  = "1d"
)

// Bar represents a single OHLCV candlestick.
type Bar struct {
	Symbol   string    `json:"symbol"`
	Interval string    `json:"interval"` // "1m", "5m", "1d"
	Open     float64   `json:"open"`
	High     float64   `json:"high"`
	Low      float64   `json:"low"`
	Close    float64   `json:"close"`
	Volume   float64   `json:"volume"`
	Time     time.Time `json:"time"`
}

// IsValid checks if the bar has usable price data.
func (b Bar) IsValid() bool {
	return b.Symbol != "" && b.Close > 0 && !b.Time.IsZero()
}

// TypicalPrice returns (high + low + close) / 3.
func (b Bar) TypicalPrice() float64 {
	return (b.High + b.Low + b.Close) / 3
}

// Action represents a trading action emitted by a strategy block.
type Action string

const (
	ActionBuy     Action = "BUY"
	ActionSell    Action = "SELL"
	ActionExitAll Action = "EXIT_ALL"
)

// IsValid reports whether the action is one the engine recognizes.
func (a Action) IsValid() bool {
	switch a {
	case ActionBuy, ActionSell, ActionExitAll:
		return true
	}
	return false
}

// ExitReason records why a position was closed.
type ExitReason string

const (
	ExitStopLoss      ExitReason = "stop-loss"
	ExitTakeProfit    ExitReason = "take-profit"
	ExitLogic         ExitReason = "logic"
	ExitAll           ExitReason = "exit-all"
	ExitEndOfBacktest ExitReason = "end-of-backtest"
	ExitManual        ExitReason = "manual"
)

// EquityPoint is one sample of total portfolio value over time.
type EquityPoint struct {
	Time  time.Time `json:"timestamp"`
	Value float64   `json:"value"`
}
