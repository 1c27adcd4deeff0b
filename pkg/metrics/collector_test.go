package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/cuemby/zoneweaver-core/pkg/store"
	"github.com/cuemby/zoneweaver-core/pkg/types"
)

func TestCollector_CollectUpdatesTasksTotal(t *testing.T) {
	st, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer st.Close()

	task := &types.Task{Operation: "discover", Status: types.StatusPending}
	if err := st.Create(context.Background(), task); err != nil {
		t.Fatalf("create task: %v", err)
	}

	c := NewCollector(st, time.Hour)
	c.collect()

	got := testutil.ToFloat64(TasksTotal.WithLabelValues(string(types.StatusPending)))
	if got < 1 {
		t.Errorf("expected at least 1 pending task counted, got %v", got)
	}
}

func TestCollector_StopBeforeStartNeverPanics(t *testing.T) {
	st, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer st.Close()

	c := NewCollector(st, time.Hour)
	c.Start()
	c.Stop()
}
