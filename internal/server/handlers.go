package server

import (
	"net/http"
)

// handleHealth handles liveness requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	code := http.StatusOK
	if err := s.db.QuickCheck(r.Context()); err != nil {
		s.log.Warn().Err(err).Msg("Database ping failed")
		status = "unhealthy"
		code = http.StatusServiceUnavailable
	}

	writeJSON(w, code, map[string]interface{}{
		"status":  status,
		"version": "1.0.0",
		"service": "lookthrough",
	}, s.log)
}
