package apiclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/zoneweaver-core/pkg/types"
)

func TestListTasks_SendsFilters(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		json.NewEncoder(w).Encode(map[string]any{
			"tasks": []*types.Task{{ID: "t1", Operation: "zone_stop"}},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	tasks, err := c.ListTasks(context.Background(), ListTasksOptions{Status: "pending", Limit: 10})
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "t1", tasks[0].ID)
	assert.Contains(t, gotQuery, "status=pending")
	assert.Contains(t, gotQuery, "limit=10")
}

func TestGetTask_ReturnsTask(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/tasks/abc", r.URL.Path)
		json.NewEncoder(w).Encode(types.Task{ID: "abc", Operation: "zone_start"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	task, err := c.GetTask(context.Background(), "abc")
	require.NoError(t, err)
	assert.Equal(t, "abc", task.ID)
}

func TestGetTask_NotFoundSurfacesAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{"error": "task not found"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	_, err := c.GetTask(context.Background(), "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "task not found")
}

func TestCancelTask_SendsDelete(t *testing.T) {
	var gotMethod string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	err := c.CancelTask(context.Background(), "abc")
	require.NoError(t, err)
	assert.Equal(t, http.MethodDelete, gotMethod)
}

func TestCreateTask_SendsBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "zone_stop", body["operation"])
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(types.Task{ID: "new1", Operation: "zone_stop"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	task, err := c.CreateTask(context.Background(), "zone_stop", "web1", 50, nil)
	require.NoError(t, err)
	assert.Equal(t, "new1", task.ID)
}
