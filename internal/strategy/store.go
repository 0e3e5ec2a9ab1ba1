package strategy

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/quantblocks/quantblocks/internal/core"
)

// Store is an in-memory strategy registry. Saving compiles the
// strategy first, so every stored definition is known-valid.
type Store struct {
	mu         sync.RWMutex
	strategies map[string]*Strategy
}

// NewStore creates an empty strategy store.
func NewStore() *Store {
	return &Store{strategies: make(map[string]*Strategy)}
}

// Save validates and registers a strategy, assigning an id when the
// definition carries none.
func (s *Store) Save(def *Strategy) (*Strategy, error) {
	if _, err := Compile(def); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	if def.ID == "" {
		def.ID = uuid.NewString()
		def.CreatedAt = now
	}
	def.UpdatedAt = now
	s.strategies[def.ID] = def
	return def, nil
}

// Get looks up a strategy by id.
func (s *Store) Get(id string) (*Strategy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	def, ok := s.strategies[id]
	if !ok {
		return nil, core.ErrStrategyNotFound
	}
	return def, nil
}

// List returns all stored strategies ordered by creation time.
func (s *Store) List() []*Strategy {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Strategy, 0, len(s.strategies))
	for _, def := range s.strategies {
		out = append(out, def)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Delete removes a strategy from the store.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.strategies[id]; !ok {
		return core.ErrStrategyNotFound
	}
	delete(s.strategies, id)
	return nil
}
