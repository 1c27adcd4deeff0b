package api

import (
	"net/http"
	"sync"
	"time"

	"github.com/cuemby/zoneweaver-core/pkg/orchestrator"
	"github.com/cuemby/zoneweaver-core/pkg/types"
)

// orchestrationControl holds the runtime toggle and pacing policy for the
// zone-shutdown orchestrator. It lives in the API layer, not pkg/orchestrator
// itself, because "is orchestration currently enabled" is an operator
// decision surfaced over HTTP, not part of running a single Plan.
type orchestrationControl struct {
	mu            sync.Mutex
	enabled       bool
	priorityDelay time.Duration
	failureAction orchestrator.FailureAction
}

func (c *orchestrationControl) snapshot() (bool, time.Duration, orchestrator.FailureAction) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.enabled, c.priorityDelay, c.failureAction
}

func (c *orchestrationControl) setEnabled(v bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.enabled = v
}

func bucketPriorities(zones []types.ZoneInfo) []types.ZonePriorityGroup {
	byRange := map[int][]types.ZoneInfo{}
	for _, z := range zones {
		r := ((z.Priority + 9) / 10) * 10
		if z.Priority <= 0 {
			r = 10
		}
		byRange[r] = append(byRange[r], z)
	}

	groups := make([]types.ZonePriorityGroup, 0, len(byRange))
	for r, zs := range byRange {
		groups = append(groups, types.ZonePriorityGroup{PriorityRange: r, Zones: zs})
	}
	for i := 1; i < len(groups); i++ {
		for j := i; j > 0 && groups[j].PriorityRange < groups[j-1].PriorityRange; j-- {
			groups[j], groups[j-1] = groups[j-1], groups[j]
		}
	}
	return groups
}

func (s *Server) zonePriorities(w http.ResponseWriter, r *http.Request) {
	if s.zones == nil {
		writeError(w, http.StatusServiceUnavailable, "zone inventory is not available")
		return
	}
	zones, err := s.zones(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list zones: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"groups": bucketPriorities(zones)})
}

func (s *Server) orchestrationStatus(w http.ResponseWriter, r *http.Request) {
	enabled, delay, action := s.orchestration.snapshot()
	writeJSON(w, http.StatusOK, map[string]any{
		"enabled":             enabled,
		"priority_delay_secs": int(delay / time.Second),
		"failure_action":      action,
	})
}

func (s *Server) orchestrationEnable(w http.ResponseWriter, r *http.Request) {
	s.orchestration.setEnabled(true)
	writeJSON(w, http.StatusOK, map[string]string{"status": "enabled"})
}

func (s *Server) orchestrationDisable(w http.ResponseWriter, r *http.Request) {
	s.orchestration.setEnabled(false)
	writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
}

// orchestrationTest computes the bucketed shutdown plan against the
// current zone inventory without stopping anything: it exists so an
// operator can validate bucketing, pacing, and failure policy before a
// real host-shutdown task composes the same orchestrator against live
// zones.
func (s *Server) orchestrationTest(w http.ResponseWriter, r *http.Request) {
	if s.zones == nil {
		writeError(w, http.StatusServiceUnavailable, "zone inventory is not available")
		return
	}
	enabled, delay, action := s.orchestration.snapshot()
	if !enabled {
		writeError(w, http.StatusConflict, "orchestration is disabled")
		return
	}

	zones, err := s.zones(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list zones: "+err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"groups":              bucketPriorities(zones),
		"priority_delay_secs": int(delay / time.Second),
		"failure_action":      action,
	})
}
