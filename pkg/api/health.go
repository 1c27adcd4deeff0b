package api

import (
	"context"
	"net/http"
	"time"

	"github.com/cuemby/zoneweaver-core/pkg/health"
	"github.com/cuemby/zoneweaver-core/pkg/metrics"
)

// healthResponse is the liveness probe body: the process is up and serving.
type healthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// readyResponse is the readiness probe body: dependencies (the task store)
// are reachable.
type readyResponse struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Checks    map[string]string `json:"checks"`
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	h := metrics.GetHealth()
	status := http.StatusOK
	if h.Status == "unhealthy" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, healthResponse{Status: h.Status, Timestamp: time.Now().UTC()})
}

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]string)
	ready := true

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.store.Ping(ctx); err != nil {
		checks["store"] = "error: " + err.Error()
		metrics.RegisterComponent("store", false, err.Error())
		ready = false
	} else {
		checks["store"] = "ok"
		metrics.RegisterComponent("store", true, "reachable")
	}

	// zoneadm reachability is informational only: it never flips readiness,
	// since a host with zero zones (or running this in a non-global zone
	// without zoneadm) is still a perfectly ready task queue.
	zoneadmCheck := health.NewExecChecker([]string{"zoneadm", "list"}).Check(ctx)
	if zoneadmCheck.Healthy {
		checks["zoneadm"] = "ok"
	} else {
		checks["zoneadm"] = "unavailable: " + zoneadmCheck.Message
	}

	status := http.StatusOK
	statusText := "ready"
	if !ready {
		status = http.StatusServiceUnavailable
		statusText = "not ready"
	}

	writeJSON(w, status, readyResponse{Status: statusText, Timestamp: time.Now().UTC(), Checks: checks})
}
