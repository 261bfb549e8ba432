package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter exposes the live simulation over HTTP.
//
//	GET  /ws       frame stream; accepts set_density and set_mode messages
//	GET  /frame    latest frame as JSON
//	POST /inputs   a Command as JSON
//	GET  /metrics  Prometheus metrics
//	GET  /healthz  liveness
func NewRouter(loop *Loop, hub *Hub, metrics *Metrics) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry(), promhttp.HandlerOpts{}))
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	r.Get("/ws", hub.ServeWS)
	r.Get("/frame", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, loop.Frame())
	})
	r.Post("/inputs", func(w http.ResponseWriter, r *http.Request) {
		var cmd Command
		if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		if err := loop.Submit(cmd); err != nil {
			status := http.StatusBadRequest
			if errors.Is(err, ErrBacklog) {
				status = http.StatusServiceUnavailable
			}
			writeJSON(w, status, map[string]string{"error": err.Error()})
			return
		}
		w.WriteHeader(http.StatusAccepted)
	})
	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
