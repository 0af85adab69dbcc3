package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

type healthResponse struct {
	Status string            `json:"status"`
	Time   string            `json:"time"`
	Uptime string            `json:"uptime"`
	Checks map[string]string `json:"checks,omitempty"`
}

func writeHealth(w http.ResponseWriter, status int, body healthResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// handleHealth answers as long as the process serves requests.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeHealth(w, http.StatusOK, healthResponse{
		Status: "ok",
		Time:   s.now().UTC().Format(time.RFC3339),
		Uptime: time.Since(s.started).Round(time.Second).String(),
	})
}

// handleReady fails while the database does not answer a ping.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	body := healthResponse{
		Status: "ready",
		Time:   s.now().UTC().Format(time.RFC3339),
		Uptime: time.Since(s.started).Round(time.Second).String(),
		Checks: map[string]string{"database": "ok"},
	}
	status := http.StatusOK
	if err := s.store.Ping(ctx); err != nil {
		body.Status = "not_ready"
		body.Checks["database"] = err.Error()
		status = http.StatusServiceUnavailable
	}
	writeHealth(w, status, body)
}
