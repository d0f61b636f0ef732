package health

import (
	"encoding/json"
	"net/http"
)

// Paths registered by Routes.
const (
	LivePath   = "/health/live"
	ReadyPath  = "/health/ready"
	HealthPath = "/health"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// Headers are already sent, so an encoding failure leaves an empty body.
	_ = json.NewEncoder(w).Encode(v)
}

func statusCode(result *HealthResult) int {
	if result.Status == StatusHealthy {
		return http.StatusOK
	}
	return http.StatusServiceUnavailable
}

// LivenessHandler returns a handler that always answers 200 without running
// any checkers. A cache outage must not restart the process.
func (h *Health) LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
	}
}

// ReadinessHandler returns a handler that runs the registered checkers and
// answers 200 when all pass or 503 otherwise, with per-component detail.
//
// Example:
//
//	h := health.New()
//	h.RegisterChecker("cache", cacheClient)
//	http.HandleFunc(health.ReadyPath, h.ReadinessHandler())
func (h *Health) ReadinessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		result := h.Check(r.Context())
		writeJSON(w, statusCode(result), result)
	}
}

// HealthHandler combines liveness and readiness in one response.
func (h *Health) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		result := h.Check(r.Context())
		writeJSON(w, statusCode(result), map[string]any{
			"liveness":  "alive",
			"readiness": result,
		})
	}
}

// Routes registers the liveness, readiness and combined handlers on mux.
func (h *Health) Routes(mux *http.ServeMux) {
	mux.HandleFunc(LivePath, h.LivenessHandler())
	mux.HandleFunc(ReadyPath, h.ReadinessHandler())
	mux.HandleFunc(HealthPath, h.HealthHandler())
}
