// Package handlers provides HTTP handlers for the diversification calculator.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/aristath/lookthrough/internal/modules/diversification"
	"github.com/rs/zerolog"
)

// Calculator is the subset of diversification.Service the handlers need
type Calculator interface {
	AvailableEtfs(ctx context.Context) ([]diversification.EtfDetail, error)
	Calculate(ctx context.Context, allocations []diversification.Allocation) (*diversification.Result, error)
}

// Handler handles diversification HTTP requests
type Handler struct {
	service Calculator
	log     zerolog.Logger
}

// NewHandler creates a new diversification handler
func NewHandler(service Calculator, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "diversification").Logger(),
	}
}

// CalculateRequest is the body of POST /diversification/calculate
type CalculateRequest struct {
	Allocations []diversification.Allocation `json:"allocations"`
}

// HandleGetAvailableEtfs lists the ETFs that can be part of a hypothetical mix
func (h *Handler) HandleGetAvailableEtfs(w http.ResponseWriter, r *http.Request) {
	etfs, err := h.service.AvailableEtfs(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list available ETFs")
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{
			"etfs":  etfs,
			"count": len(etfs),
		},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// HandleCalculate looks through a hypothetical ETF mix
func (h *Handler) HandleCalculate(w http.ResponseWriter, r *http.Request) {
	var req CalculateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}

	result, err := h.service.Calculate(r.Context(), req.Allocations)
	if err != nil {
		if errors.Is(err, diversification.ErrInvalidAllocation) {
			h.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.log.Error().Err(err).Msg("Failed to calculate diversification")
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": result,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
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
