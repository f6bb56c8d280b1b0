package web

import (
	"encoding/json"
	"net/http"
	"time"
)

// Handler builds the HTTP mux: status under /api/status, Prometheus
// metrics under /metrics when a metrics handler is supplied.
func Handler(status *Status, metricsHandler http.Handler) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/status", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", http.MethodGet)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		snap := status.Snapshot(time.Now().UTC())
		b, err := json.MarshalIndent(snap, "", "  ")
		if err != nil {
			http.Error(w, "marshal failed", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(b)
		_, _ = w.Write([]byte("\n"))
	})

	if metricsHandler != nil {
		mux.Handle("/metrics", metricsHandler)
	}

	return mux
}
