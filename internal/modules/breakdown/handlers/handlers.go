// Package handlers provides HTTP handlers for the look-through breakdown.
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/aristath/lookthrough/internal/modules/breakdown"
	"github.com/aristath/lookthrough/internal/utils"
	"github.com/rs/zerolog"
)

// BreakdownService is the subset of breakdown.Service the handlers need
type BreakdownService interface {
	ComputeBreakdown(ctx context.Context, etfSymbols, platforms []string) ([]breakdown.HoldingBreakdown, error)
	ComputeExposure(ctx context.Context, etfSymbols, platforms []string) (breakdown.Exposure, error)
	ComputeDiagnostics(ctx context.Context) ([]breakdown.Diagnostic, error)
}

// Handler handles breakdown HTTP requests
type Handler struct {
	service BreakdownService
	log     zerolog.Logger
}

// NewHandler creates a new breakdown handler
func NewHandler(service BreakdownService, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "breakdown").Logger(),
	}
}

// HandleGetBreakdown returns the look-through holdings.
// Optional query parameters: etfs=VWCE,SPYL and platforms=IBKR,LHV
func (h *Handler) HandleGetBreakdown(w http.ResponseWriter, r *http.Request) {
	etfs, platforms := filters(r)

	rows, err := h.service.ComputeBreakdown(r.Context(), etfs, platforms)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to compute breakdown")
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{
			"holdings": rows,
			"count":    len(rows),
		},
		"metadata": metadata(etfs, platforms),
	})
}

// HandleGetExposure returns sector and country exposure with concentration metrics
func (h *Handler) HandleGetExposure(w http.ResponseWriter, r *http.Request) {
	etfs, platforms := filters(r)

	exposure, err := h.service.ComputeExposure(r.Context(), etfs, platforms)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to compute exposure")
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data":     exposure,
		"metadata": metadata(etfs, platforms),
	})
}

// HandleGetDiagnostics returns raw per-fund statistics
func (h *Handler) HandleGetDiagnostics(w http.ResponseWriter, r *http.Request) {
	diagnostics, err := h.service.ComputeDiagnostics(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to compute diagnostics")
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{
			"funds": diagnostics,
			"count": len(diagnostics),
		},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

func filters(r *http.Request) (etfs, platforms []string) {
	query := r.URL.Query()
	return utils.ParseCSV(query.Get("etfs")), utils.ParseCSV(query.Get("platforms"))
}

func metadata(etfs, platforms []string) map[string]interface{} {
	return map[string]interface{}{
		"timestamp": time.Now().Format(time.RFC3339),
		"etfs":      etfs,
		"platforms": platforms,
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
