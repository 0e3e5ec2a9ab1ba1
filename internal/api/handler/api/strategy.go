package api

import (
	"io"
	"net/http"

	"github.com/quantblocks/quantblocks/internal/api/response"
	"github.com/quantblocks/quantblocks/internal/core"
	"github.com/quantblocks/quantblocks/internal/strategy"
)

// StrategyHandler manages stored strategy definitions.
type StrategyHandler struct {
	store *strategy.Store
}

// NewStrategyHandler creates a strategy handler.
func NewStrategyHandler(store *strategy.Store) *StrategyHandler {
	return &StrategyHandler{store: store}
}

// Create validates and stores a strategy definition.
func (h *StrategyHandler) Create(w http.ResponseWriter, r *http.Request) {
	def, ok := decodeStrategy(w, r)
	if !ok {
		return
	}

	saved, err := h.store.Save(def)
	if err != nil {
		response.Error(w, response.StatusFor(err), err)
		return
	}
	response.JSON(w, http.StatusCreated, saved)
}

// Validate compiles a definition without storing it.
func (h *StrategyHandler) Validate(w http.ResponseWriter, r *http.Request) {
	def, ok := decodeStrategy(w, r)
	if !ok {
		return
	}

	if _, err := strategy.Compile(def); err != nil {
		response.Error(w, response.StatusFor(err), err)
		return
	}
	response.JSON(w, http.StatusOK, map[string]any{"valid": true})
}

// Get returns a stored strategy by id.
func (h *StrategyHandler) Get(w http.ResponseWriter, r *http.Request) {
	def, err := h.store.Get(r.PathValue("id"))
	if err != nil {
		response.Error(w, response.StatusFor(err), err)
		return
	}
	response.JSON(w, http.StatusOK, def)
}

// List returns all stored strategies.
func (h *StrategyHandler) List(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, http.StatusOK, h.store.List())
}

// Delete removes a stored strategy.
func (h *StrategyHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Delete(r.PathValue("id")); err != nil {
		response.Error(w, response.StatusFor(err), err)
		return
	}
	response.JSON(w, http.StatusOK, map[string]any{"deleted": true})
}

func decodeStrategy(w http.ResponseWriter, r *http.Request) (*strategy.Strategy, bool) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		response.Error(w, http.StatusBadRequest, core.WrapError(core.ErrStrategyInvalid, err))
		return nil, false
	}
	def, err := strategy.ParseJSON(body)
	if err != nil {
		response.Error(w, response.StatusFor(err), err)
		return nil, false
	}
	return def, true
}
