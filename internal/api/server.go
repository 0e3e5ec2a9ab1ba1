// Package api wires the HTTP server and routes.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	apihandler "github.com/quantblocks/quantblocks/internal/api/handler/api"
	"github.com/quantblocks/quantblocks/internal/api/job"
	"github.com/quantblocks/quantblocks/internal/api/middleware"
	"github.com/quantblocks/quantblocks/internal/backtest"
	"github.com/quantblocks/quantblocks/internal/config"
	"github.com/quantblocks/quantblocks/internal/forward"
	"github.com/quantblocks/quantblocks/internal/metrics"
	"github.com/quantblocks/quantblocks/internal/portfolio"
	"github.com/quantblocks/quantblocks/internal/strategy"
)

// Deps carries the collaborators the server routes to.
type Deps struct {
	Engine     *backtest.Engine
	Strategies *strategy.Store
	Portfolios *portfolio.Store
	Registry   *forward.Registry
	Metrics    *metrics.Registry
	Logger     *zap.Logger
}

// Server is the HTTP front end.
type Server struct {
	httpServer *http.Server
	logger     *zap.Logger
}

// NewServer builds the server and its route table.
func NewServer(cfg *config.Config, deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	mux := http.NewServeMux()

	jobs := job.NewStore(cfg.Server.MaxJobs, time.Duration(cfg.Server.JobTTLHours)*time.Hour)
	backtests := apihandler.NewBacktestHandler(jobs, deps.Engine, deps.Strategies, deps.Metrics, cfg.Backtest.InitialCapital)
	strategies := apihandler.NewStrategyHandler(deps.Strategies)
	portfolios := apihandler.NewPortfolioHandler(deps.Portfolios, cfg.Backtest.InitialCapital)
	deployments := apihandler.NewDeploymentHandler(deps.Registry, deps.Strategies, deps.Portfolios)

	mux.HandleFunc("GET /api/health", handleHealth)

	mux.HandleFunc("POST /api/backtests", backtests.Create)
	mux.HandleFunc("GET /api/backtests/{id}", backtests.Get)

	mux.HandleFunc("POST /api/strategies", strategies.Create)
	mux.HandleFunc("POST /api/strategies/validate", strategies.Validate)
	mux.HandleFunc("GET /api/strategies", strategies.List)
	mux.HandleFunc("GET /api/strategies/{id}", strategies.Get)
	mux.HandleFunc("DELETE /api/strategies/{id}", strategies.Delete)

	mux.HandleFunc("POST /api/portfolios", portfolios.Create)
	mux.HandleFunc("GET /api/portfolios", portfolios.List)
	mux.HandleFunc("GET /api/portfolios/{id}", portfolios.Get)
	mux.HandleFunc("DELETE /api/portfolios/{id}", portfolios.Delete)

	mux.HandleFunc("POST /api/deployments", deployments.Create)
	mux.HandleFunc("GET /api/deployments", deployments.List)
	mux.HandleFunc("GET /api/deployments/{id}", deployments.Get)
	mux.HandleFunc("DELETE /api/deployments/{id}", deployments.Stop)

	var handler http.Handler = mux
	handler = middleware.APIKeyAuth(cfg.Server.APIKey)(handler)
	if deps.Metrics != nil {
		handler = metrics.HTTPMiddleware(deps.Metrics)(handler)
	}

	// The metrics endpoint sits outside auth and instrumentation.
	root := http.NewServeMux()
	root.Handle("/", handler)
	if cfg.Metrics.Enabled && deps.Metrics != nil {
		root.Handle("GET "+cfg.Metrics.Path,
			promhttp.HandlerFor(deps.Metrics.Registry, promhttp.HandlerOpts{}))
	}

	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
			Handler:      root,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		logger: deps.Logger,
	}
}

// Handler exposes the route table, used by tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start serves until Shutdown.
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}
