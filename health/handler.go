package health

import (
	"encoding/json"
	"net/http"
)

// Handler serves the monitor's aggregate status as JSON. Unhealthy systems
// answer 503 so load balancers and orchestrators can act on the status code;
// degraded still answers 200.
func Handler(m *Monitor, system string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			w.Header().Set("Allow", "GET, HEAD")
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		status := m.AggregateHealth(system)
		code := http.StatusOK
		if status.IsUnhealthy() {
			code = http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-store")
		w.WriteHeader(code)
		if r.Method == http.MethodHead {
			return
		}
		_ = json.NewEncoder(w).Encode(status)
	})
}
