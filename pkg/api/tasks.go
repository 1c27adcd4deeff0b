package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/cuemby/zoneweaver-core/pkg/metrics"
	"github.com/cuemby/zoneweaver-core/pkg/store"
	"github.com/cuemby/zoneweaver-core/pkg/types"
)

// createTaskRequest is the body of POST /tasks.
type createTaskRequest struct {
	Operation string          `json:"operation"`
	ZoneName  string          `json:"zone_name,omitempty"`
	Priority  int             `json:"priority,omitempty"`
	DependsOn string          `json:"depends_on,omitempty"`
	Metadata  json.RawMessage `json:"metadata,omitempty"`
	CreatedBy string          `json:"created_by,omitempty"`
}

func (s *Server) createTask(w http.ResponseWriter, r *http.Request) {
	var req createTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Operation == "" {
		writeError(w, http.StatusBadRequest, "operation is required")
		return
	}
	if _, ok := s.registry.Lookup(req.Operation); !ok {
		writeError(w, http.StatusBadRequest, "unknown operation: "+req.Operation)
		return
	}

	task := &types.Task{
		Operation: req.Operation,
		ZoneName:  req.ZoneName,
		Priority:  req.Priority,
		DependsOn: req.DependsOn,
		Metadata:  req.Metadata,
		CreatedBy: req.CreatedBy,
	}
	if err := s.store.Create(r.Context(), task); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create task: "+err.Error())
		return
	}
	metrics.TasksCreatedTotal.WithLabelValues(task.Operation).Inc()

	writeJSON(w, http.StatusCreated, task)
}

func (s *Server) listTasks(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := types.TaskFilter{
		Status:      types.Status(q.Get("status")),
		ZoneName:    q.Get("zone_name"),
		Operation:   q.Get("operation"),
		OperationNe: q.Get("operation_ne"),
		Limit:       s.paginationLimit,
	}
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			filter.Limit = n
		}
	}
	if v := q.Get("since"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			filter.Since = &t
		}
	}
	if v := q.Get("include_count"); v == "true" {
		filter.IncludeCount = true
	}

	tasks, total, err := s.store.List(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list tasks: "+err.Error())
		return
	}

	resp := map[string]any{"tasks": tasks}
	if filter.IncludeCount {
		resp["total"] = total
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) getTask(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	task, err := s.store.Get(r.Context(), id)
	if err == store.ErrNotFound {
		writeError(w, http.StatusNotFound, "task not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get task: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (s *Server) cancelTask(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	err := s.store.CancelPending(r.Context(), id)
	switch err {
	case nil:
		writeJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
	case store.ErrNotFound:
		writeError(w, http.StatusNotFound, "task not found")
	case store.ErrNotPending:
		writeError(w, http.StatusBadRequest, "task is not pending")
	default:
		writeError(w, http.StatusInternalServerError, "failed to cancel task: "+err.Error())
	}
}

func (s *Server) taskStats(w http.ResponseWriter, r *http.Request) {
	counts, err := s.store.CountByStatus(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get task stats: "+err.Error())
		return
	}

	byStatus := make(map[string]int, len(counts))
	for _, c := range counts {
		byStatus[string(c.Status)] = c.Count
	}

	running := 0
	if s.scheduler != nil {
		running = s.scheduler.RunningCount()
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"by_status":          byStatus,
		"running_in_process": running,
	})
}
