package forward

import (
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/quantblocks/quantblocks/internal/core"
	"github.com/quantblocks/quantblocks/internal/portfolio"
	"github.com/quantblocks/quantblocks/internal/strategy"
)

// Deployment is a point-in-time view of one running deployment.
type Deployment struct {
	ID          string    `json:"deploymentId"`
	Strategy    string    `json:"strategy"`
	PortfolioID string    `json:"portfolioId"`
	StartedAt   time.Time `json:"startedAt"`
	Cycles      int64     `json:"cycles"`
	LastCycle   time.Time `json:"lastCycle,omitempty"`
}

// Registry owns the lifecycle of forward-test runners: register on
// deploy, deregister on stop.
type Registry struct {
	cfg Config

	mu      sync.Mutex
	runners map[string]*Runner
}

// NewRegistry creates a deployment registry whose runners share cfg.
func NewRegistry(cfg Config) *Registry {
	return &Registry{
		cfg:     cfg.withDefaults(),
		runners: make(map[string]*Runner),
	}
}

// Deploy starts a runner for the compiled strategy under the given
// deployment id and registers it. A second deploy under a live id
// fails with ErrDeploymentExists.
func (g *Registry) Deploy(id string, compiled *strategy.Compiled, pf *portfolio.Portfolio) (*Runner, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, exists := g.runners[id]; exists {
		return nil, core.ErrDeploymentExists
	}

	r := NewRunner(id, compiled, pf, g.cfg)
	r.Start()
	g.runners[id] = r
	g.cfg.Metrics.SetDeploymentsActive(len(g.runners))
	g.cfg.Logger.Info("deployment started",
		zap.String("deployment", id),
		zap.String("strategy", compiled.Strategy.Name),
		zap.String("portfolio", pf.ID))
	return r, nil
}

// Stop halts the runner and deregisters it. Stopping an id that is not
// running is a no-op, so repeated stops are idempotent.
func (g *Registry) Stop(id string) {
	g.mu.Lock()
	r, ok := g.runners[id]
	if ok {
		delete(g.runners, id)
		g.cfg.Metrics.SetDeploymentsActive(len(g.runners))
	}
	g.mu.Unlock()

	if !ok {
		return
	}
	r.Stop()
	g.cfg.Logger.Info("deployment stopped", zap.String("deployment", id))
}

// Get returns the running deployment's view.
func (g *Registry) Get(id string) (Deployment, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	r, ok := g.runners[id]
	if !ok {
		return Deployment{}, core.ErrDeploymentNotFound
	}
	return snapshot(r), nil
}

// List returns all running deployments ordered by start time.
func (g *Registry) List() []Deployment {
	g.mu.Lock()
	defer g.mu.Unlock()

	out := make([]Deployment, 0, len(g.runners))
	for _, r := range g.runners {
		out = append(out, snapshot(r))
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].StartedAt.Before(out[j].StartedAt)
	})
	return out
}

// StopAll halts every runner, used during service shutdown.
func (g *Registry) StopAll() {
	g.mu.Lock()
	runners := make([]*Runner, 0, len(g.runners))
	for id, r := range g.runners {
		runners = append(runners, r)
		delete(g.runners, id)
	}
	g.cfg.Metrics.SetDeploymentsActive(0)
	g.mu.Unlock()

	for _, r := range runners {
		r.Stop()
	}
}

func snapshot(r *Runner) Deployment {
	return Deployment{
		ID:          r.ID(),
		Strategy:    r.StrategyName(),
		PortfolioID: r.PortfolioID(),
		StartedAt:   r.StartedAt(),
		Cycles:      r.Cycles(),
		LastCycle:   r.LastCycle(),
	}
}
