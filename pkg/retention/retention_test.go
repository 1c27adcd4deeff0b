package retention

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cuemby/zoneweaver-core/pkg/store"
	"github.com/cuemby/zoneweaver-core/pkg/types"
)

func TestSweep_DeletesOldTerminalTasks(t *testing.T) {
	st, err := store.Open(":memory:")
	require.NoError(t, err)
	defer st.Close()

	// created_at is 40 days in the past; Create stamps updated_at to "now"
	// regardless, so this reproduces a task whose row was last touched
	// recently but whose created_at is well past the retention window.
	old := &types.Task{
		Operation: "pkg_install",
		Status:    types.StatusCompleted,
		CreatedAt: time.Now().UTC().Add(-40 * 24 * time.Hour),
	}
	require.NoError(t, st.Create(context.Background(), old))

	c := New(st, time.Hour, 30*24*time.Hour)
	c.sweep()

	_, err = st.Get(context.Background(), old.ID)
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestSweep_KeepsRecentTasks(t *testing.T) {
	st, err := store.Open(":memory:")
	require.NoError(t, err)
	defer st.Close()

	recent := &types.Task{Operation: "pkg_install", Status: types.StatusCompleted}
	require.NoError(t, st.Create(context.Background(), recent))

	c := New(st, time.Hour, 24*time.Hour)
	c.sweep()

	_, err = st.Get(context.Background(), recent.ID)
	require.NoError(t, err)
}
