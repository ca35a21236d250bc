package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/aristath/lookthrough/internal/database"
)

// DatabaseStatus reports the portfolio database's health
type DatabaseStatus struct {
	Name    string `json:"name"`
	Path    string `json:"path"`
	Healthy bool   `json:"healthy"`
	Error   string `json:"error,omitempty"`
}

// SystemStatusResponse is the body of GET /api/system/status
type SystemStatusResponse struct {
	Status        string         `json:"status"`
	CPUPercent    float64        `json:"cpu_percent"`
	MemoryPercent float64        `json:"memory_percent"`
	Uptime        string         `json:"uptime"`
	Database      DatabaseStatus `json:"database"`
	Timestamp     string         `json:"timestamp"`
}

// SystemHandlers serves process and database status
type SystemHandlers struct {
	db        *database.DB
	log       zerolog.Logger
	startedAt time.Time

	// sampled through a field so tests do not block on CPU sampling
	sampleStats func(ctx context.Context) (float64, float64, error)
}

// NewSystemHandlers creates the system status handlers
func NewSystemHandlers(db *database.DB, log zerolog.Logger) *SystemHandlers {
	return &SystemHandlers{
		db:          db,
		log:         log.With().Str("handler", "system").Logger(),
		startedAt:   time.Now(),
		sampleStats: getSystemStats,
	}
}

// HandleSystemStatus returns CPU/RAM usage and database health
func (h *SystemHandlers) HandleSystemStatus(w http.ResponseWriter, r *http.Request) {
	h.log.Debug().Msg("Getting system status")

	response := SystemStatusResponse{
		Status:    "healthy",
		Uptime:    time.Since(h.startedAt).Round(time.Second).String(),
		Timestamp: time.Now().Format(time.RFC3339),
		Database: DatabaseStatus{
			Name:    h.db.Name(),
			Path:    h.db.Path(),
			Healthy: true,
		},
	}

	cpuPercent, memPercent, err := h.sampleStats(r.Context())
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to sample system statistics")
	}
	response.CPUPercent = cpuPercent
	response.MemoryPercent = memPercent

	if err := h.db.HealthCheck(r.Context()); err != nil {
		h.log.Error().Err(err).Msg("Database health check failed")
		response.Status = "degraded"
		response.Database.Healthy = false
		response.Database.Error = err.Error()
	}

	writeJSON(w, http.StatusOK, response, h.log)
}

// HandleDatabaseStats returns size and page statistics of the portfolio database
func (h *SystemHandlers) HandleDatabaseStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.db.GetStats(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to get database stats")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()}, h.log)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{
			"name":  h.db.Name(),
			"stats": stats,
		},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	}, h.log)
}

// getSystemStats samples CPU over 100ms and reads RAM usage
func getSystemStats(ctx context.Context) (float64, float64, error) {
	cpuPercent, err := cpu.PercentWithContext(ctx, 100*time.Millisecond, false)
	if err != nil {
		return 0, 0, err
	}

	memStat, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return 0, 0, err
	}

	cpuAvg := 0.0
	if len(cpuPercent) > 0 {
		cpuAvg = cpuPercent[0]
	}
	return cpuAvg, memStat.UsedPercent, nil
}

// writeJSON writes a JSON response
func writeJSON(w http.ResponseWriter, status int, data interface{}, log zerolog.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
