package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/zoneweaver-core/pkg/registry"
	"github.com/cuemby/zoneweaver-core/pkg/store"
	"github.com/cuemby/zoneweaver-core/pkg/types"
)

type fakeScheduler struct{ running int }

func (f *fakeScheduler) RunningCount() int { return f.running }

func newTestServer(t *testing.T) (*Server, store.Store) {
	t.Helper()
	st, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	reg := registry.New(map[string]registry.Handler{
		"discover": func(ctx context.Context, metadata []byte, task registry.TaskRef) registry.Result {
			return registry.Result{OK: true}
		},
	}, map[string]types.Category{})

	zones := func(ctx context.Context) ([]types.ZoneInfo, error) {
		return []types.ZoneInfo{
			{Name: "web1", Priority: 15, Running: true},
			{Name: "db1", Priority: 85, Running: true},
		}, nil
	}

	srv := NewServer(Config{ListenAddr: ":0"}, st, reg, &fakeScheduler{running: 1}, nil, zones)
	return srv, st
}

func (s *Server) testRouter() http.Handler {
	return s.httpServer.Handler
}

func TestCreateTask_UnknownOperationRejected(t *testing.T) {
	srv, _ := newTestServer(t)

	body, _ := json.Marshal(createTaskRequest{Operation: "not_a_real_operation"})
	req := httptest.NewRequest(http.MethodPost, "/tasks/", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	srv.testRouter().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateTask_ThenGetTask(t *testing.T) {
	srv, _ := newTestServer(t)

	body, _ := json.Marshal(createTaskRequest{Operation: "discover", Priority: 10})
	req := httptest.NewRequest(http.MethodPost, "/tasks/", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	srv.testRouter().ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)

	var created types.Task
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&created))
	require.NotEmpty(t, created.ID)

	rec2 := httptest.NewRecorder()
	req2 := httptest.NewRequest(http.MethodGet, "/tasks/"+created.ID, nil)
	srv.testRouter().ServeHTTP(rec2, req2)
	assert.Equal(t, http.StatusOK, rec2.Code)
}

func TestGetTask_NotFound(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/tasks/does-not-exist", nil)
	srv.testRouter().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCancelTask_RejectsNonPending(t *testing.T) {
	srv, st := newTestServer(t)

	task := &types.Task{Operation: "discover", Status: types.StatusRunning}
	require.NoError(t, st.Create(context.Background(), task))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodDelete, "/tasks/"+task.ID, nil)
	srv.testRouter().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTaskStats_ReportsRunningInProcess(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/tasks/stats", nil)
	srv.testRouter().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, float64(1), resp["running_in_process"])
}

func TestZonePriorities_BucketsByRange(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/zones/priorities", nil)
	srv.testRouter().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Groups []types.ZonePriorityGroup `json:"groups"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Groups, 2)
	assert.Equal(t, 20, resp.Groups[0].PriorityRange)
	assert.Equal(t, 90, resp.Groups[1].PriorityRange)
}

func TestOrchestration_DisableThenTestConflicts(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/zones/orchestration/disable", nil)
	srv.testRouter().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	rec2 := httptest.NewRecorder()
	req2 := httptest.NewRequest(http.MethodPost, "/zones/orchestration/test", nil)
	srv.testRouter().ServeHTTP(rec2, req2)
	assert.Equal(t, http.StatusConflict, rec2.Code)
}

func TestReadyz_ReportsStoreOK(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	srv.testRouter().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}
