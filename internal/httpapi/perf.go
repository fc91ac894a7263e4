package httpapi

import "net/http"

// handlePerfLatency reports rolling stage latencies and input outcomes.
func (s *Server) handlePerfLatency(w http.ResponseWriter, _ *http.Request) {
	if s.metrics == nil {
		respondJSON(w, http.StatusOK, map[string]any{
			"generated_at": "",
			"window_size":  0,
			"stages":       []any{},
		})
		return
	}
	respondJSON(w, http.StatusOK, s.metrics.SnapshotLatency())
}

// handlePerfReset clears the latency window, typically between load runs.
func (s *Server) handlePerfReset(w http.ResponseWriter, _ *http.Request) {
	if s.metrics != nil {
		s.metrics.ResetLatency()
	}
	w.WriteHeader(http.StatusNoContent)
}
