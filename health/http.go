package health

import (
	"encoding/json"
	"net/http"
	"time"
)

// LivenessHandler returns an HTTP handler for liveness probes.
// This is a simple check that the process is running.
func LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	}
}

// ReadinessResponse is the JSON body of the readiness endpoint.
type ReadinessResponse struct {
	Ready     bool            `json:"ready"`
	Timestamp string          `json:"timestamp"`
	Checks    []CheckResponse `json:"checks,omitempty"`
}

// CheckResponse is the JSON projection of a single check snapshot.
type CheckResponse struct {
	Name                 string `json:"name"`
	Status               string `json:"status"`
	Passing              bool   `json:"passing"`
	AffectsReadiness     bool   `json:"affects_readiness"`
	ReadinessThreshold   string `json:"readiness_threshold"`
	LastCheckedAt        string `json:"last_checked_at,omitempty"`
	Duration             string `json:"duration,omitempty"`
	ConsecutiveFailures  int    `json:"consecutive_failures,omitempty"`
	ConsecutiveSuccesses int    `json:"consecutive_successes,omitempty"`
	Error                string `json:"error,omitempty"`
}

func checkResponse(s Snapshot) CheckResponse {
	resp := CheckResponse{
		Name:                 s.Name,
		Status:               s.Status.String(),
		Passing:              s.Passing,
		AffectsReadiness:     s.AffectsReadiness,
		ReadinessThreshold:   s.ReadinessThreshold.String(),
		Duration:             s.Duration.String(),
		ConsecutiveFailures:  s.ConsecutiveFailures,
		ConsecutiveSuccesses: s.ConsecutiveSuccesses,
		Error:                s.Err,
	}
	if !s.LastCheckedAt.IsZero() {
		resp.LastCheckedAt = s.LastCheckedAt.UTC().Format(time.RFC3339)
	}
	return resp
}

// ReadinessHandler returns an HTTP handler for readiness probes. It
// reads the latest published snapshots; it never triggers evaluations
// of its own.
func ReadinessHandler(provider StateProvider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snapshots := provider.Snapshots()
		ready := Ready(snapshots)

		response := ReadinessResponse{
			Ready:     ready,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Checks:    make([]CheckResponse, 0, len(snapshots)),
		}
		for _, s := range snapshots {
			response.Checks = append(response.Checks, checkResponse(s))
		}

		w.Header().Set("Content-Type", "application/json")
		if ready {
			w.WriteHeader(http.StatusOK)
		} else {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(response)
	}
}

// SingleCheckHandler returns an HTTP handler exposing one named check.
func SingleCheckHandler(provider StateProvider, name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		for _, s := range provider.Snapshots() {
			if s.Name != name {
				continue
			}
			if s.Passing {
				w.WriteHeader(http.StatusOK)
			} else {
				w.WriteHeader(http.StatusServiceUnavailable)
			}
			_ = json.NewEncoder(w).Encode(checkResponse(s))
			return
		}

		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"error": ErrCheckerNotFound.Error(),
		})
	}
}

// RegisterHandlers registers the probe handlers on the given mux.
func RegisterHandlers(mux *http.ServeMux, provider StateProvider) {
	mux.HandleFunc("/healthz", LivenessHandler())
	mux.HandleFunc("/readyz", ReadinessHandler(provider))
}
