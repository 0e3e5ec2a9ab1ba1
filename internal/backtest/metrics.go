package backtest

import (
	"math"

	"github.com/quantblocks/quantblocks/internal/core"
	"github.com/quantblocks/quantblocks/internal/ledger"
)

// tradingDaysPerYear annualizes bar counts and period returns.
const tradingDaysPerYear = 252

// Metrics summarizes a completed run. Every field degrades to zero on
// empty input.
type Metrics struct {
	TotalReturnPct float64 `json:"totalReturnPct"`
	CAGR           float64 `json:"cagr"`
	SharpeRatio    float64 `json:"sharpeRatio"`
	MaxDrawdown    float64 `json:"maxDrawdown"`
	WinRate        float64 `json:"winRate"`
	ProfitFactor   float64 `json:"profitFactor"`
	TotalTrades    int     `json:"totalTrades"`
	WinningTrades  int     `json:"winningTrades"`
	LosingTrades   int     `json:"losingTrades"`
	AvgWin         float64 `json:"avgWin"`
	AvgLoss        float64 `json:"avgLoss"`
	FinalValue     float64 `json:"finalValue"`
}

// Calculate computes summary statistics from the equity curve and the
// closed trade list. barCount stands in for elapsed trading days when
// annualizing.
func Calculate(equity []core.EquityPoint, trades []ledger.Trade, initialCapital float64, barCount int) Metrics {
	var m Metrics

	finalValue := initialCapital
	if len(equity) > 0 {
		finalValue = equity[len(equity)-1].Value
	}
	m.FinalValue = round2(finalValue)

	if initialCapital > 0 {
		m.TotalReturnPct = round2((finalValue - initialCapital) / initialCapital * 100)
	}

	years := float64(barCount) / tradingDaysPerYear
	if years > 0 && initialCapital > 0 && finalValue > 0 {
		m.CAGR = round2((math.Pow(finalValue/initialCapital, 1/years) - 1) * 100)
	}

	m.SharpeRatio = round2(sharpe(equity))
	m.MaxDrawdown = round2(maxDrawdown(equity))

	var (
		grossProfit, grossLoss float64
		wins, losses           int
	)
	closed := 0
	for _, t := range trades {
		if t.Status != ledger.TradeClosed {
			continue
		}
		closed++
		if t.PnL > 0 {
			wins++
			grossProfit += t.PnL
		} else if t.PnL < 0 {
			losses++
			grossLoss += -t.PnL
		}
	}

	m.TotalTrades = closed
	m.WinningTrades = wins
	m.LosingTrades = losses
	if closed > 0 {
		m.WinRate = round2(float64(wins) / float64(closed) * 100)
	}
	if grossLoss > 0 {
		m.ProfitFactor = round2(grossProfit / grossLoss)
	} else if grossProfit > 0 {
		m.ProfitFactor = round2(grossProfit)
	}
	if wins > 0 {
		m.AvgWin = round2(grossProfit / float64(wins))
	}
	if losses > 0 {
		m.AvgLoss = round2(-grossLoss / float64(losses))
	}

	return m
}

// sharpe annualizes the mean/stddev ratio of simple period returns.
func sharpe(equity []core.EquityPoint) float64 {
	if len(equity) < 2 {
		return 0
	}

	returns := make([]float64, 0, len(equity)-1)
	for i := 1; i < len(equity); i++ {
		prev := equity[i-1].Value
		if prev == 0 {
			continue
		}
		returns = append(returns, (equity[i].Value-prev)/prev)
	}
	if len(returns) < 2 {
		return 0
	}

	var sum float64
	for _, r := range returns {
		sum += r
	}
	mean := sum / float64(len(returns))

	var sq float64
	for _, r := range returns {
		sq += (r - mean) * (r - mean)
	}
	std := math.Sqrt(sq / float64(len(returns)-1))
	if std == 0 {
		return 0
	}
	return mean / std * math.Sqrt(tradingDaysPerYear)
}

// maxDrawdown returns the largest peak-to-trough decline as a
// non-positive percentage of the running peak.
func maxDrawdown(equity []core.EquityPoint) float64 {
	if len(equity) == 0 {
		return 0
	}

	peak := equity[0].Value
	worst := 0.0
	for _, p := range equity {
		if p.Value > peak {
			peak = p.Value
		}
		if peak > 0 {
			dd := (p.Value - peak) / peak * 100
			if dd < worst {
				worst = dd
			}
		}
	}
	return worst
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
