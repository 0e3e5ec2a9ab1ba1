package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/quantblocks/quantblocks/internal/api/response"
	"github.com/quantblocks/quantblocks/internal/core"
	"github.com/quantblocks/quantblocks/internal/portfolio"
)

// PortfolioHandler manages simulated portfolios.
type PortfolioHandler struct {
	store          *portfolio.Store
	initialCapital float64
}

// NewPortfolioHandler creates a portfolio handler. initialCapital is
// the default funding when the request does not name one.
func NewPortfolioHandler(store *portfolio.Store, initialCapital float64) *PortfolioHandler {
	return &PortfolioHandler{store: store, initialCapital: initialCapital}
}

type createPortfolioRequest struct {
	Name           string  `json:"name"`
	InitialCapital float64 `json:"initialCapital,omitempty"`
}

// Create funds a new portfolio.
func (h *PortfolioHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createPortfolioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, core.WrapError(core.ErrConfigInvalid, err))
		return
	}
	if req.Name == "" {
		response.Error(w, http.StatusBadRequest,
			core.WrapError(core.ErrConfigMissing, fmt.Errorf("name is required")))
		return
	}

	capital := req.InitialCapital
	if capital <= 0 {
		capital = h.initialCapital
	}

	p := h.store.Create(req.Name, capital)
	response.JSON(w, http.StatusCreated, h.view(p))
}

// Get returns one portfolio with its positions, trades, and equity
// curve.
func (h *PortfolioHandler) Get(w http.ResponseWriter, r *http.Request) {
	p, err := h.store.Get(r.PathValue("id"))
	if err != nil {
		response.Error(w, response.StatusFor(err), err)
		return
	}
	response.JSON(w, http.StatusOK, h.view(p))
}

// List returns all portfolios.
func (h *PortfolioHandler) List(w http.ResponseWriter, r *http.Request) {
	portfolios := h.store.List()
	out := make([]map[string]any, len(portfolios))
	for i, p := range portfolios {
		out[i] = h.view(p)
	}
	response.JSON(w, http.StatusOK, out)
}

// Delete removes a portfolio.
func (h *PortfolioHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Delete(r.PathValue("id")); err != nil {
		response.Error(w, response.StatusFor(err), err)
		return
	}
	response.JSON(w, http.StatusOK, map[string]any{"deleted": true})
}

func (h *PortfolioHandler) view(p *portfolio.Portfolio) map[string]any {
	return map[string]any{
		"portfolioId":    p.ID,
		"name":           p.Name,
		"initialCapital": p.InitialCapital,
		"createdAt":      p.CreatedAt,
		"cash":           p.Ledger.Cash(),
		"positions":      p.Ledger.Positions(),
		"trades":         p.Ledger.Trades(),
		"equityCurve":    p.EquityCurve(),
	}
}
