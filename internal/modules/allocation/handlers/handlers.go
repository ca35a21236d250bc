// Package handlers provides HTTP handlers for unit allocation.
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/aristath/lookthrough/internal/modules/allocation"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Handler handles allocation HTTP requests
type Handler struct {
	log zerolog.Logger
}

// NewHandler creates a new allocation handler
func NewHandler(log zerolog.Logger) *Handler {
	return &Handler{
		log: log.With().Str("handler", "allocation").Logger(),
	}
}

// FreshRequest is the body of POST /allocation/fresh
type FreshRequest struct {
	Entries []allocation.FreshEntry `json:"entries"`
	Budget  decimal.Decimal         `json:"budget"`
}

// RebalanceRequest is the body of POST /allocation/rebalance
type RebalanceRequest struct {
	Entries  []allocation.RebalanceEntry `json:"entries"`
	Budget   decimal.Decimal             `json:"budget"`
	Optimize bool                        `json:"optimize"`
}

// HandleFreshInvestment splits a new investment into whole units per instrument
func (h *Handler) HandleFreshInvestment(w http.ResponseWriter, r *http.Request) {
	var req FreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}
	if err := allocation.ValidateFresh(req.Entries, req.Budget); err != nil {
		h.writeValidationError(w, err)
		return
	}

	units := allocation.AllocateFreshInvestment(req.Entries, req.Budget)

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{
			"units":  units,
			"budget": req.Budget,
		},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// HandleRebalance scales a rebalance down to the available cash.
// When the cash covers every buy, the response says so and carries no allocations.
func (h *Handler) HandleRebalance(w http.ResponseWriter, r *http.Request) {
	var req RebalanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}
	if err := allocation.ValidateRebalance(req.Entries, req.Budget); err != nil {
		h.writeValidationError(w, err)
		return
	}

	result := allocation.RebalanceWithBudget(req.Entries, req.Budget, req.Optimize)

	data := map[string]interface{}{
		"constrained": result != nil,
	}
	if result != nil {
		data["allocations"] = result.Allocations
		data["total_remaining"] = result.TotalRemaining
		data["available_budget"] = result.AvailableBudget
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": data,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
			"optimize":  req.Optimize,
		},
	})
}

func (h *Handler) writeValidationError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, allocation.ErrInvalidBudget),
		errors.Is(err, allocation.ErrNoEntries),
		errors.Is(err, allocation.ErrInvalidEntry),
		errors.Is(err, allocation.ErrTooManyUnits):
		h.writeError(w, http.StatusBadRequest, err.Error())
	default:
		h.log.Error().Err(err).Msg("Unexpected validation failure")
		h.writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
