// Package ledger tracks positions, cash, and completed trades for a
// simulated account. At most one open position exists per symbol; a
// Position exists iff the symbol has an open Trade.
package ledger

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/quantblocks/quantblocks/internal/core"
)

// Position is an open long holding in a single symbol.
type Position struct {
	Symbol     string    `json:"symbol"`
	Qty        float64   `json:"qty"`
	AvgPrice   float64   `json:"avgPrice"`
	EntryTime  time.Time `json:"entryTime"`
	StopLoss   float64   `json:"stopLoss,omitempty"`   // 0 disables
	TakeProfit float64   `json:"takeProfit,omitempty"` // 0 disables
}

// TradeStatus is the lifecycle state of a trade record.
type TradeStatus string

const (
	TradeOpen   TradeStatus = "open"
	TradeClosed TradeStatus = "closed"
)

// Trade records one position lifecycle from entry to exit. Exit fields
// are zero while the trade is open; a trade closes exactly once.
type Trade struct {
	ID         string          `json:"id"`
	Symbol     string          `json:"symbol"`
	Side       core.Action     `json:"side"`
	Qty        float64         `json:"qty"`
	EntryPrice float64         `json:"entryPrice"`
	EntryTime  time.Time       `json:"entryTime"`
	ExitPrice  float64         `json:"exitPrice,omitempty"`
	ExitTime   time.Time       `json:"exitTime,omitempty"`
	StopLoss   float64         `json:"stopLoss,omitempty"`
	TakeProfit float64         `json:"takeProfit,omitempty"`
	Status     TradeStatus     `json:"status"`
	ExitReason core.ExitReason `json:"exitReason,omitempty"`
	PnL        float64         `json:"pnl"`
	PnLPct     float64         `json:"pnlPct"`
}

// IsWin reports whether the closed trade was profitable.
func (t Trade) IsWin() bool {
	return t.Status == TradeClosed && t.PnL > 0
}

// OpenParams controls position sizing and risk levels for a BUY.
// A zero StopLossPct or TakeProfitPct disables that trigger.
type OpenParams struct {
	SizePct       float64
	StopLossPct   float64
	TakeProfitPct float64
}

// DefaultOpenParams returns the conventional sizing defaults.
func DefaultOpenParams() OpenParams {
	return OpenParams{SizePct: 0.25, StopLossPct: 0.05, TakeProfitPct: 0.10}
}

// ParamsFromMap builds OpenParams from an action block's params,
// falling back to defaults for absent keys. An explicit zero value
// stays zero, which disables the corresponding trigger.
func ParamsFromMap(m map[string]float64) OpenParams {
	p := DefaultOpenParams()
	if v, ok := m["sizePct"]; ok {
		p.SizePct = v
	}
	if v, ok := m["stopLossPct"]; ok {
		p.StopLossPct = v
	}
	if v, ok := m["takeProfitPct"]; ok {
		p.TakeProfitPct = v
	}
	return p
}

// Ledger is a mutex-guarded account: cash, open positions by symbol,
// and the append-only trade history. Every operation is atomic, so
// concurrent forward-test workers sharing a portfolio cannot lose
// updates or double-open a position.
type Ledger struct {
	mu        sync.Mutex
	cash      float64
	positions map[string]*Position
	trades    []*Trade
}

// New creates a ledger with the given starting cash.
func New(initialCash float64) *Ledger {
	return &Ledger{
		cash:      initialCash,
		positions: make(map[string]*Position),
	}
}

// Cash returns the current cash balance.
func (l *Ledger) Cash() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cash
}

// Position returns a copy of the open position for symbol.
func (l *Ledger) Position(symbol string) (Position, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	pos, ok := l.positions[symbol]
	if !ok {
		return Position{}, false
	}
	return *pos, true
}

// HasPosition reports whether symbol currently has an open position.
func (l *Ledger) HasPosition(symbol string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.positions[symbol]
	return ok
}

// OpenLong opens a long position: qty = cash×sizePct/price. No-op
// while a position is already open for symbol, or when the computed
// quantity is not positive. Returns the open trade record.
func (l *Ledger) OpenLong(symbol string, price float64, at time.Time, p OpenParams) (Trade, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, open := l.positions[symbol]; open || price <= 0 {
		return Trade{}, false
	}

	value := l.cash * p.SizePct
	qty := value / price
	if qty <= 0 {
		return Trade{}, false
	}

	pos := &Position{
		Symbol:    symbol,
		Qty:       qty,
		AvgPrice:  price,
		EntryTime: at,
	}
	if p.StopLossPct > 0 {
		pos.StopLoss = price * (1 - p.StopLossPct)
	}
	if p.TakeProfitPct > 0 {
		pos.TakeProfit = price * (1 + p.TakeProfitPct)
	}

	trade := &Trade{
		ID:         uuid.NewString(),
		Symbol:     symbol,
		Side:       core.ActionBuy,
		Qty:        qty,
		EntryPrice: price,
		EntryTime:  at,
		StopLoss:   pos.StopLoss,
		TakeProfit: pos.TakeProfit,
		Status:     TradeOpen,
	}

	l.cash -= value
	l.positions[symbol] = pos
	l.trades = append(l.trades, trade)
	return *trade, true
}

// Close closes the open position for symbol at price, realizing P&L
// and crediting qty×price back to cash. No-op while flat.
func (l *Ledger) Close(symbol string, price float64, at time.Time, reason core.ExitReason) (Trade, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closeLocked(symbol, price, at, reason)
}

func (l *Ledger) closeLocked(symbol string, price float64, at time.Time, reason core.ExitReason) (Trade, bool) {
	pos, ok := l.positions[symbol]
	if !ok {
		return Trade{}, false
	}

	value := pos.Qty * price
	cost := pos.Qty * pos.AvgPrice
	pnl := value - cost

	l.cash += value
	delete(l.positions, symbol)

	for i := len(l.trades) - 1; i >= 0; i-- {
		t := l.trades[i]
		if t.Symbol != symbol || t.Status != TradeOpen {
			continue
		}
		t.Status = TradeClosed
		t.ExitPrice = price
		t.ExitTime = at
		t.ExitReason = reason
		t.PnL = pnl
		t.PnLPct = pnl / cost * 100
		return *t, true
	}
	return Trade{}, false
}

// ExitOnBar checks the bar's full range against the position's risk
// levels: stop-loss first (low ≤ stop, closed at the stop price), then
// take-profit (high ≥ target, closed at the target price). The first
// trigger wins; callers skip condition evaluation for that bar.
func (l *Ledger) ExitOnBar(symbol string, bar core.Bar, at time.Time) (Trade, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	pos, ok := l.positions[symbol]
	if !ok {
		return Trade{}, false
	}
	if pos.StopLoss > 0 && bar.Low <= pos.StopLoss {
		return l.closeLocked(symbol, pos.StopLoss, at, core.ExitStopLoss)
	}
	if pos.TakeProfit > 0 && bar.High >= pos.TakeProfit {
		return l.closeLocked(symbol, pos.TakeProfit, at, core.ExitTakeProfit)
	}
	return Trade{}, false
}

// ExitOnPrice checks a single live price against the position's risk
// levels, closing at that price. Used by the forward driver, which
// only observes the latest close of each polling cycle.
func (l *Ledger) ExitOnPrice(symbol string, price float64, at time.Time) (Trade, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	pos, ok := l.positions[symbol]
	if !ok {
		return Trade{}, false
	}
	if pos.StopLoss > 0 && price <= pos.StopLoss {
		return l.closeLocked(symbol, price, at, core.ExitStopLoss)
	}
	if pos.TakeProfit > 0 && price >= pos.TakeProfit {
		return l.closeLocked(symbol, price, at, core.ExitTakeProfit)
	}
	return Trade{}, false
}

// Equity returns cash plus the mark-to-market value of every open
// position, priced from marks (symbol → price). Positions without a
// mark are valued at entry.
func (l *Ledger) Equity(marks map[string]float64) float64 {
	l.mu.Lock()
	defer l.mu.Unlock()

	total := l.cash
	for symbol, pos := range l.positions {
		price, ok := marks[symbol]
		if !ok {
			price = pos.AvgPrice
		}
		total += pos.Qty * price
	}
	return total
}

// Positions returns copies of all open positions.
func (l *Ledger) Positions() []Position {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]Position, 0, len(l.positions))
	for _, pos := range l.positions {
		out = append(out, *pos)
	}
	return out
}

// Trades returns copies of all trade records, open and closed, in
// entry order.
func (l *Ledger) Trades() []Trade {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]Trade, len(l.trades))
	for i, t := range l.trades {
		out[i] = *t
	}
	return out
}
