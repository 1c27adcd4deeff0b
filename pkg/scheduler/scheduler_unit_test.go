package scheduler

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/zoneweaver-core/pkg/registry"
	"github.com/cuemby/zoneweaver-core/pkg/store"
	"github.com/cuemby/zoneweaver-core/pkg/types"
)

func newTestScheduler(t *testing.T, handlers map[string]registry.Handler, categories map[string]types.Category, maxConcurrent int) (*Scheduler, store.Store) {
	t.Helper()
	st, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	reg := registry.New(handlers, categories)
	return New(st, reg, nil, maxConcurrent, 20*time.Millisecond), st
}

func blockingHandler(release <-chan struct{}, ok bool) registry.Handler {
	return func(ctx context.Context, metadata json.RawMessage, task registry.TaskRef) registry.Result {
		<-release
		return registry.Result{OK: ok}
	}
}

func TestDispatch_UnknownOperationFailsImmediately(t *testing.T) {
	s, st := newTestScheduler(t, map[string]registry.Handler{}, nil, 5)

	task := &types.Task{Operation: "nonexistent_op", Status: types.StatusPending}
	require.NoError(t, st.Create(context.Background(), task))

	s.tick()

	got, err := st.Get(context.Background(), task.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusFailed, got.Status)
	assert.Contains(t, got.ErrorMessage, "unknown operation")
}

func TestDispatch_RunsHandlerAndRecordsCompletion(t *testing.T) {
	release := make(chan struct{})
	close(release)

	s, st := newTestScheduler(t, map[string]registry.Handler{
		"noop": blockingHandler(release, true),
	}, nil, 5)

	task := &types.Task{Operation: "noop", Status: types.StatusPending}
	require.NoError(t, st.Create(context.Background(), task))

	s.tick()
	s.wg.Wait()

	got, err := st.Get(context.Background(), task.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusCompleted, got.Status)
}

func TestDispatch_FailedHandlerRecordsErrorMessage(t *testing.T) {
	release := make(chan struct{})
	close(release)

	s, st := newTestScheduler(t, map[string]registry.Handler{
		"noop": func(ctx context.Context, metadata json.RawMessage, task registry.TaskRef) registry.Result {
			return registry.Result{OK: false, Message: "boom"}
		},
	}, nil, 5)

	task := &types.Task{Operation: "noop", Status: types.StatusPending}
	require.NoError(t, st.Create(context.Background(), task))

	s.tick()
	s.wg.Wait()

	got, err := st.Get(context.Background(), task.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusFailed, got.Status)
	assert.Equal(t, "boom", got.ErrorMessage)
}

func TestDispatch_PanicIsRecoveredAsFailure(t *testing.T) {
	s, st := newTestScheduler(t, map[string]registry.Handler{
		"panics": func(ctx context.Context, metadata json.RawMessage, task registry.TaskRef) registry.Result {
			panic("handler exploded")
		},
	}, nil, 5)

	task := &types.Task{Operation: "panics", Status: types.StatusPending}
	require.NoError(t, st.Create(context.Background(), task))

	require.NotPanics(t, func() {
		s.tick()
		s.wg.Wait()
	})

	got, err := st.Get(context.Background(), task.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusFailed, got.Status)
	assert.Contains(t, got.ErrorMessage, "handler panicked")
}

func TestDispatch_RespectsCategoryExclusion(t *testing.T) {
	release := make(chan struct{})
	handlers := map[string]registry.Handler{
		"op_a": blockingHandler(release, true),
		"op_b": blockingHandler(release, true),
	}
	categories := map[string]types.Category{
		"op_a": types.CategoryPackageManagement,
		"op_b": types.CategoryPackageManagement,
	}
	s, st := newTestScheduler(t, handlers, categories, 5)

	taskA := &types.Task{Operation: "op_a", Status: types.StatusPending, Priority: 10}
	require.NoError(t, st.Create(context.Background(), taskA))
	taskB := &types.Task{Operation: "op_b", Status: types.StatusPending, Priority: 5}
	require.NoError(t, st.Create(context.Background(), taskB))

	s.tick() // dispatches taskA, locking package_management
	s.tick() // taskB is pending but category is locked, should not dispatch

	s.mu.Lock()
	running := len(s.runningTasks)
	s.mu.Unlock()
	assert.Equal(t, 1, running, "only one task in a locked category should run at a time")

	close(release)
	s.wg.Wait()
}

func TestDispatch_RespectsConcurrencyCap(t *testing.T) {
	release := make(chan struct{})
	handlers := map[string]registry.Handler{
		"noop": blockingHandler(release, true),
	}
	s, st := newTestScheduler(t, handlers, nil, 1)

	for i := 0; i < 3; i++ {
		task := &types.Task{Operation: "noop", Status: types.StatusPending}
		require.NoError(t, st.Create(context.Background(), task))
	}

	s.tick()
	s.tick() // at cap, should be a no-op
	s.tick()

	s.mu.Lock()
	running := len(s.runningTasks)
	s.mu.Unlock()
	assert.Equal(t, 1, running)

	close(release)
	s.wg.Wait()
}

func TestRecoverOrphans_MarksRunningTasksFailed(t *testing.T) {
	s, st := newTestScheduler(t, nil, nil, 5)

	task := &types.Task{Operation: "zone_start", Status: types.StatusRunning}
	require.NoError(t, st.Create(context.Background(), task))

	require.NoError(t, s.recoverOrphans(context.Background()))

	got, err := st.Get(context.Background(), task.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusFailed, got.Status)
	assert.Equal(t, "interrupted by process restart", got.ErrorMessage)
}

func TestDependsOn_GatesUntilPredecessorCompletes(t *testing.T) {
	release := make(chan struct{})
	close(release)
	s, st := newTestScheduler(t, map[string]registry.Handler{
		"noop": blockingHandler(release, true),
	}, nil, 5)

	predecessor := &types.Task{Operation: "noop", Status: types.StatusPending}
	require.NoError(t, st.Create(context.Background(), predecessor))

	dependent := &types.Task{Operation: "noop", Status: types.StatusPending, DependsOn: predecessor.ID, Priority: 100}
	require.NoError(t, st.Create(context.Background(), dependent))

	// First tick dispatches whichever is eligible; the predecessor has no
	// dependency so it is eligible even though the dependent has higher
	// priority.
	s.tick()
	s.wg.Wait()

	got, err := st.Get(context.Background(), predecessor.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusCompleted, got.Status)

	s.tick()
	s.wg.Wait()

	gotDependent, err := st.Get(context.Background(), dependent.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusCompleted, gotDependent.Status)
}
