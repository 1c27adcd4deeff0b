// Package store defines the Task Record Store contract and its SQLite-backed
// implementation.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/cuemby/zoneweaver-core/pkg/types"
)

// ErrNotFound is returned when a task lookup by ID finds no row.
var ErrNotFound = errors.New("store: task not found")

// Store is the persistence contract the scheduler, API, and periodic drivers
// depend on. There is exactly one production implementation (sqlite.go); the
// interface exists in its own file so callers depend on behavior, not on
// *DB.
type Store interface {
	// Create inserts a new task. It fills in ID (a new UUID) when empty,
	// CreatedAt when zero, Status (pending) and Metadata ("{}") when empty,
	// and always sets UpdatedAt to now.
	Create(ctx context.Context, task *types.Task) error

	// Get returns the task with the given ID, or ErrNotFound.
	Get(ctx context.Context, id string) (*types.Task, error)

	// Update applies a partial patch to a task row, bumping UpdatedAt.
	Update(ctx context.Context, id string, patch types.TaskPatch) error

	// CancelPending transitions a pending task to cancelled. Returns
	// ErrNotFound if missing and ErrNotPending if not currently pending.
	CancelPending(ctx context.Context, id string) error

	// List returns tasks matching filter, newest (by CreatedAt) first, along
	// with the total match count when filter.IncludeCount is set (otherwise -1).
	List(ctx context.Context, filter types.TaskFilter) ([]*types.Task, int, error)

	// FindOneEligible returns the single highest-priority pending task whose
	// category (if any) is not in excludedCategories and whose depends_on
	// predecessor (if any) is completed. Returns nil, nil if none qualify.
	FindOneEligible(ctx context.Context, excludedCategories map[string]struct{}, categoryOf func(operation string) (string, bool)) (*types.Task, error)

	// ListRunning returns every task currently persisted as running, used by
	// the scheduler at startup to recover from a crash.
	ListRunning(ctx context.Context) ([]*types.Task, error)

	// CountByStatus returns the number of tasks grouped by status.
	CountByStatus(ctx context.Context) ([]types.StatusCount, error)

	// DeleteOlderThan removes terminal (completed/failed/cancelled) tasks
	// whose CreatedAt is older than cutoff, returning the number removed.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error)

	// Ping verifies the store is reachable, used by the readiness handler.
	Ping(ctx context.Context) error

	// Close releases underlying resources.
	Close() error
}

// ErrNotPending is returned by CancelPending when the task is not pending.
var ErrNotPending = errors.New("store: task is not pending")
