package api

import "net/http"

// handleStats serves GET /stats with runtime counters of the service.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if s.stats == nil {
		writeJSON(w, http.StatusOK, map[string]any{})
		return
	}
	writeJSON(w, http.StatusOK, s.stats.GetStats())
}
