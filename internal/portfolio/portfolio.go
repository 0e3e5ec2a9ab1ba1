// Package portfolio holds simulated accounts shared across backtests
// and forward-test deployments, with an in-memory store keyed by id.
package portfolio

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/quantblocks/quantblocks/internal/core"
	"github.com/quantblocks/quantblocks/internal/ledger"
)

// Portfolio is a named simulated account. The embedded ledger guards
// its own state; the equity curve has a separate lock so samplers and
// readers do not contend with trading operations.
type Portfolio struct {
	ID             string    `json:"portfolioId"`
	Name           string    `json:"name"`
	InitialCapital float64   `json:"initialCapital"`
	CreatedAt      time.Time `json:"createdAt"`

	Ledger *ledger.Ledger `json:"-"`

	mu     sync.Mutex
	equity []core.EquityPoint
}

// New creates a portfolio with a fresh ledger funded at initialCapital.
func New(name string, initialCapital float64) *Portfolio {
	return &Portfolio{
		ID:             uuid.NewString(),
		Name:           name,
		InitialCapital: initialCapital,
		CreatedAt:      time.Now().UTC(),
		Ledger:         ledger.New(initialCapital),
	}
}

// SampleEquity appends one equity observation at the given time.
func (p *Portfolio) SampleEquity(at time.Time, value float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.equity = append(p.equity, core.EquityPoint{Time: at, Value: value})
}

// EquityCurve returns a copy of the recorded equity samples.
func (p *Portfolio) EquityCurve() []core.EquityPoint {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]core.EquityPoint, len(p.equity))
	copy(out, p.equity)
	return out
}

// Store is an in-memory portfolio registry.
type Store struct {
	mu         sync.RWMutex
	portfolios map[string]*Portfolio
}

// NewStore creates an empty portfolio store.
func NewStore() *Store {
	return &Store{portfolios: make(map[string]*Portfolio)}
}

// Create builds and registers a new portfolio.
func (s *Store) Create(name string, initialCapital float64) *Portfolio {
	p := New(name, initialCapital)
	s.mu.Lock()
	s.portfolios[p.ID] = p
	s.mu.Unlock()
	return p
}

// Get looks up a portfolio by id.
func (s *Store) Get(id string) (*Portfolio, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.portfolios[id]
	if !ok {
		return nil, core.ErrPortfolioNotFound
	}
	return p, nil
}

// List returns all portfolios ordered by creation time.
func (s *Store) List() []*Portfolio {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Portfolio, 0, len(s.portfolios))
	for _, p := range s.portfolios {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Delete removes a portfolio from the store.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.portfolios[id]; !ok {
		return core.ErrPortfolioNotFound
	}
	delete(s.portfolios, id)
	return nil
}
