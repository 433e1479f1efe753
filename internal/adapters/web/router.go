package web

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SetupRoutes builds the router for s.
func SetupRoutes(s *Server) http.Handler {
	r := mux.NewRouter()
	limit := rateLimitMiddleware(newRateLimiter(120, time.Minute))

	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/healthz", handleHealth).Methods(http.MethodGet)
	r.Handle("/session", limit(http.HandlerFunc(s.handleSession))).Methods(http.MethodGet)
	r.Handle("/ws", limit(http.HandlerFunc(s.WSManager.HandleWebSocket)))

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte("ok\n"))
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	if s.Status == nil {
		http.Error(w, "no session", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.Status.Status()); err != nil {
		s.logger.Warn("Encode session status", "error", err)
	}
}
