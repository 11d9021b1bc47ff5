package api

import "net/http"

type healthResponse struct {
	Status string `json:"status"`
}

// handleHealth serves GET /healthz. Prometheus metrics live at /metrics.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok"})
}
