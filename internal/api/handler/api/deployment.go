package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"github.com/quantblocks/quantblocks/internal/api/response"
	"github.com/quantblocks/quantblocks/internal/core"
	"github.com/quantblocks/quantblocks/internal/forward"
	"github.com/quantblocks/quantblocks/internal/portfolio"
	"github.com/quantblocks/quantblocks/internal/strategy"
)

// DeploymentHandler manages forward-test deployments.
type DeploymentHandler struct {
	registry   *forward.Registry
	strategies *strategy.Store
	portfolios *portfolio.Store
}

// NewDeploymentHandler creates a deployment handler.
func NewDeploymentHandler(registry *forward.Registry, strategies *strategy.Store, portfolios *portfolio.Store) *DeploymentHandler {
	return &DeploymentHandler{
		registry:   registry,
		strategies: strategies,
		portfolios: portfolios,
	}
}

type deployRequest struct {
	StrategyID  string `json:"strategyId"`
	PortfolioID string `json:"portfolioId"`
}

// Create deploys a stored strategy against a portfolio and starts its
// forward-test worker.
func (h *DeploymentHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req deployRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, core.WrapError(core.ErrConfigInvalid, err))
		return
	}
	if req.StrategyID == "" || req.PortfolioID == "" {
		response.Error(w, http.StatusBadRequest,
			core.WrapError(core.ErrConfigMissing, fmt.Errorf("strategyId and portfolioId are required")))
		return
	}

	def, err := h.strategies.Get(req.StrategyID)
	if err != nil {
		response.Error(w, response.StatusFor(err), err)
		return
	}
	pf, err := h.portfolios.Get(req.PortfolioID)
	if err != nil {
		response.Error(w, response.StatusFor(err), err)
		return
	}

	compiled, err := strategy.Compile(def)
	if err != nil {
		response.Error(w, response.StatusFor(err), err)
		return
	}

	id := uuid.NewString()
	if _, err := h.registry.Deploy(id, compiled, pf); err != nil {
		response.Error(w, response.StatusFor(err), err)
		return
	}

	dep, err := h.registry.Get(id)
	if err != nil {
		response.Error(w, response.StatusFor(err), err)
		return
	}
	response.JSON(w, http.StatusCreated, dep)
}

// Get returns one running deployment.
func (h *DeploymentHandler) Get(w http.ResponseWriter, r *http.Request) {
	dep, err := h.registry.Get(r.PathValue("id"))
	if err != nil {
		response.Error(w, response.StatusFor(err), err)
		return
	}
	response.JSON(w, http.StatusOK, dep)
}

// List returns all running deployments.
func (h *DeploymentHandler) List(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, http.StatusOK, h.registry.List())
}

// Stop halts a deployment's worker. Stopping an already-stopped
// deployment succeeds.
func (h *DeploymentHandler) Stop(w http.ResponseWriter, r *http.Request) {
	h.registry.Stop(r.PathValue("id"))
	response.JSON(w, http.StatusOK, map[string]any{"stopped": true})
}
