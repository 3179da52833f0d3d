package api

import (
	"net/http"
)

// handleStats handles GET /stats requests.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	stats := map[string]interface{}{}
	if s.deps.Stats != nil {
		stats = s.deps.Stats.GetStats()
	}
	writeJSON(w, http.StatusOK, stats)
}
