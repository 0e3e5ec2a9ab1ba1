// Package api implements the JSON API handlers.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/quantblocks/quantblocks/internal/api/job"
	"github.com/quantblocks/quantblocks/internal/api/response"
	"github.com/quantblocks/quantblocks/internal/backtest"
	"github.com/quantblocks/quantblocks/internal/core"
	"github.com/quantblocks/quantblocks/internal/metrics"
	"github.com/quantblocks/quantblocks/internal/strategy"
)

const backtestTimeout = 5 * time.Minute

// BacktestRequest is the request body for starting a backtest. The
// strategy arrives inline or by reference to a stored definition.
type BacktestRequest struct {
	StrategyID     string             `json:"strategyId,omitempty"`
	Strategy       *strategy.Strategy `json:"strategy,omitempty"`
	Symbol         string             `json:"symbol"`
	Start          string             `json:"startDate"`
	End            string             `json:"endDate"`
	InitialCapital float64            `json:"initialCapital,omitempty"`
}

// BacktestHandler runs backtests as async jobs.
type BacktestHandler struct {
	jobs           *job.Store
	engine         *backtest.Engine
	strategies     *strategy.Store
	metrics        *metrics.Registry
	initialCapital float64
}

// NewBacktestHandler creates a backtest handler.
func NewBacktestHandler(jobs *job.Store, engine *backtest.Engine, strategies *strategy.Store, reg *metrics.Registry, initialCapital float64) *BacktestHandler {
	return &BacktestHandler{
		jobs:           jobs,
		engine:         engine,
		strategies:     strategies,
		metrics:        reg,
		initialCapital: initialCapital,
	}
}

// Create starts a new backtest job and returns its id.
func (h *BacktestHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req BacktestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, core.WrapError(core.ErrConfigInvalid, err))
		return
	}
	if req.Symbol == "" {
		response.Error(w, http.StatusBadRequest,
			core.WrapError(core.ErrConfigMissing, fmt.Errorf("symbol is required")))
		return
	}

	def := req.Strategy
	if def == nil {
		if req.StrategyID == "" {
			response.Error(w, http.StatusBadRequest,
				core.WrapError(core.ErrConfigMissing, fmt.Errorf("strategy or strategyId is required")))
			return
		}
		stored, err := h.strategies.Get(req.StrategyID)
		if err != nil {
			response.Error(w, response.StatusFor(err), err)
			return
		}
		def = stored
	}

	// Fail bad definitions here, before a job is created.
	if _, err := strategy.Compile(def); err != nil {
		response.Error(w, response.StatusFor(err), err)
		return
	}

	start, err := time.Parse("2006-01-02", req.Start)
	if err != nil {
		response.Error(w, http.StatusBadRequest, core.WrapError(core.ErrConfigInvalid, err))
		return
	}
	end, err := time.Parse("2006-01-02", req.End)
	if err != nil {
		response.Error(w, http.StatusBadRequest, core.WrapError(core.ErrConfigInvalid, err))
		return
	}

	capital := req.InitialCapital
	if capital <= 0 {
		capital = h.initialCapital
	}

	j := h.jobs.Create("backtest")
	go h.run(j.ID, backtest.Request{
		Strategy:       def,
		Symbol:         req.Symbol,
		Start:          start,
		End:            end,
		InitialCapital: capital,
	})

	response.JSON(w, http.StatusAccepted, map[string]any{
		"jobId":  j.ID,
		"status": j.Status,
	})
}

// run executes the backtest and updates job state.
func (h *BacktestHandler) run(jobID string, req backtest.Request) {
	h.jobs.Update(jobID, func(j *job.Job) {
		j.Status = job.StatusRunning
	})

	ctx, cancel := context.WithTimeout(context.Background(), backtestTimeout)
	defer cancel()

	started := time.Now()
	result := h.engine.Run(ctx, req)
	h.metrics.RecordBacktest(result.Status, time.Since(started).Seconds())

	h.jobs.Update(jobID, func(j *job.Job) {
		if result.Status == backtest.StatusFailed {
			j.Status = job.StatusFailed
			j.Error = core.WrapError(core.ErrSimulation, fmt.Errorf("%s", result.Error))
			return
		}
		j.Status = job.StatusComplete
		j.Result = result
	})
}

// Get returns the status of a backtest job, including the result once
// complete.
func (h *BacktestHandler) Get(w http.ResponseWriter, r *http.Request) {
	j, err := h.jobs.Get(r.PathValue("id"))
	if err != nil {
		response.Error(w, response.StatusFor(err), err)
		return
	}

	resp := map[string]any{
		"jobId":  j.ID,
		"status": j.Status,
	}
	if j.Status == job.StatusComplete {
		resp["result"] = j.Result
	}
	if j.Status == job.StatusFailed && j.Error != nil {
		resp["error"] = map[string]string{
			"code":    j.Error.Code,
			"message": j.Error.Message,
		}
	}
	response.JSON(w, http.StatusOK, resp)
}
