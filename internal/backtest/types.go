package backtest

import (
	"time"

	"github.com/quantblocks/quantblocks/internal/core"
	"github.com/quantblocks/quantblocks/internal/ledger"
	"github.com/quantblocks/quantblocks/internal/strategy"
)

// Status of a finished backtest run.
const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Request describes one backtest run.
type Request struct {
	Strategy       *strategy.Strategy `json:"strategy"`
	Symbol         string             `json:"symbol"`
	Start          time.Time          `json:"startDate"`
	End            time.Time          `json:"endDate"`
	InitialCapital float64            `json:"initialCapital"`
}

// Result is the terminal outcome of a run. Failures never propagate as
// errors; they surface as Status "failed" with a message.
type Result struct {
	Strategy       string             `json:"strategy"`
	Symbol         string             `json:"symbol"`
	Start          time.Time          `json:"startDate"`
	End            time.Time          `json:"endDate"`
	InitialCapital float64            `json:"initialCapital"`
	EquityCurve    []core.EquityPoint `json:"equityCurve"`
	Trades         []ledger.Trade     `json:"trades"`
	Metrics        Metrics            `json:"metrics"`
	Status         string             `json:"status"`
	Error          string             `json:"error,omitempty"`
}
