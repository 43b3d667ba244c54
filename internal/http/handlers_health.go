package httpx

import (
	"net/http"

	"github.com/target/learnhub/internal/service"
)

// healthStatus is the /healthz body.
type healthStatus struct {
	Status string `json:"status"`
	service.RegistryStats
}

// healthHandler reports whether the session registry still accepts clients.
// It runs outside the client scope so health checks never allocate a store.
type healthHandler struct {
	registry *service.SessionRegistry
}

func (h *healthHandler) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	body := healthStatus{Status: "ok", RegistryStats: h.registry.Stats()}
	status := http.StatusOK
	if body.Closed {
		body.Status = "shutting_down"
		status = http.StatusServiceUnavailable
	}
	w.Header().Set("Cache-Control", "no-store")
	WriteJSON(w, status, body)
}
