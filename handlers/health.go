package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/upb/llm-chat-relay/app"
)

// HealthCheck returns a simple liveness handler
func HealthCheck(deps *app.Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}
}

// ReadinessCheck reports whether the relay can serve chat requests. The relay
// holds no connections open, so readiness is a check of its wiring.
func ReadinessCheck(deps *app.Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := map[string]string{}
		status := "ready"

		if deps.Catalog == nil || deps.Catalog.Len() == 0 {
			status = "not_ready"
			checks["catalog"] = "empty"
		} else {
			checks["catalog"] = "loaded"
		}

		if deps.Provider == nil {
			status = "not_ready"
			checks["upstream"] = "not_configured"
		} else {
			checks["upstream"] = "configured"
		}

		response := map[string]interface{}{
			"status": status,
			"checks": checks,
		}

		w.Header().Set("Content-Type", "application/json")
		if status == "ready" {
			w.WriteHeader(http.StatusOK)
		} else {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(response)
	}
}
