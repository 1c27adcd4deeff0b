package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/cuemby/zoneweaver-core/pkg/types"
)

const schema = `
CREATE TABLE IF NOT EXISTS tasks (
	id               TEXT PRIMARY KEY,
	operation        TEXT NOT NULL,
	zone_name        TEXT NOT NULL DEFAULT '',
	priority         INTEGER NOT NULL DEFAULT 50,
	status           TEXT NOT NULL,
	depends_on       TEXT NOT NULL DEFAULT '',
	metadata         TEXT NOT NULL DEFAULT '{}',
	progress_percent INTEGER NOT NULL DEFAULT 0,
	progress_info    TEXT NOT NULL DEFAULT '',
	error_message    TEXT NOT NULL DEFAULT '',
	created_at       DATETIME NOT NULL,
	updated_at       DATETIME NOT NULL,
	started_at       DATETIME,
	completed_at     DATETIME,
	created_by       TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_tasks_eligibility ON tasks (status, priority DESC, created_at ASC);
CREATE INDEX IF NOT EXISTS idx_tasks_zone_name ON tasks (zone_name);
CREATE INDEX IF NOT EXISTS idx_tasks_operation ON tasks (operation);
CREATE INDEX IF NOT EXISTS idx_tasks_updated_at ON tasks (updated_at);
`

// SQLiteStore implements Store over a single tasks table in a pure-Go
// SQLite database, keeping the zoneweaverd binary cgo-free.
type SQLiteStore struct {
	db *sqlx.DB
}

// Open creates (if needed) and opens the SQLite database at path, applying
// the schema. path may be ":memory:" for tests.
func Open(path string) (*SQLiteStore, error) {
	db, err := sqlx.Connect("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	db.SetMaxOpenConns(1) // modernc.org/sqlite serializes writers; avoid "database is locked"

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Ping verifies the database file is reachable.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Create inserts a new task.
func (s *SQLiteStore) Create(ctx context.Context, task *types.Task) error {
	if task.ID == "" {
		task.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if task.CreatedAt.IsZero() {
		task.CreatedAt = now
	}
	task.UpdatedAt = now
	if task.Status == "" {
		task.Status = types.StatusPending
	}
	if len(task.Metadata) == 0 {
		task.Metadata = []byte("{}")
	}

	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO tasks (
			id, operation, zone_name, priority, status, depends_on, metadata,
			progress_percent, progress_info, error_message,
			created_at, updated_at, started_at, completed_at, created_by
		) VALUES (
			:id, :operation, :zone_name, :priority, :status, :depends_on, :metadata,
			:progress_percent, :progress_info, :error_message,
			:created_at, :updated_at, :started_at, :completed_at, :created_by
		)`, task)
	if err != nil {
		return fmt.Errorf("insert task: %w", err)
	}
	return nil
}

// Get returns the task with the given ID.
func (s *SQLiteStore) Get(ctx context.Context, id string) (*types.Task, error) {
	var task types.Task
	err := s.db.GetContext(ctx, &task, `SELECT * FROM tasks WHERE id = ?`, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get task %s: %w", id, err)
	}
	return &task, nil
}

// Update applies a partial patch to a task row.
func (s *SQLiteStore) Update(ctx context.Context, id string, patch types.TaskPatch) error {
	sets := []string{"status = :status", "updated_at = :updated_at"}
	args := map[string]any{
		"id":         id,
		"status":     patch.Status,
		"updated_at": time.Now().UTC(),
	}

	if patch.ProgressPercent != nil {
		sets = append(sets, "progress_percent = :progress_percent")
		args["progress_percent"] = *patch.ProgressPercent
	}
	if patch.ProgressInfo != nil {
		sets = append(sets, "progress_info = :progress_info")
		args["progress_info"] = *patch.ProgressInfo
	}
	if patch.ErrorMessage != nil {
		sets = append(sets, "error_message = :error_message")
		args["error_message"] = *patch.ErrorMessage
	}
	if patch.StartedAt != nil {
		sets = append(sets, "started_at = :started_at")
		args["started_at"] = *patch.StartedAt
	}
	if patch.CompletedAt != nil {
		sets = append(sets, "completed_at = :completed_at")
		args["completed_at"] = *patch.CompletedAt
	}

	query := fmt.Sprintf("UPDATE tasks SET %s WHERE id = :id", strings.Join(sets, ", "))
	res, err := s.db.NamedExecContext(ctx, query, args)
	if err != nil {
		return fmt.Errorf("update task %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// CancelPending transitions a pending task to cancelled.
func (s *SQLiteStore) CancelPending(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE tasks SET status = ?, updated_at = ?
		WHERE id = ? AND status = ?`,
		types.StatusCancelled, time.Now().UTC(), id, types.StatusPending)
	if err != nil {
		return fmt.Errorf("cancel task %s: %w", id, err)
	}
	n, _ := res.RowsAffected()
	if n > 0 {
		return nil
	}

	// Distinguish "not found" from "found but not pending" for the caller.
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	return ErrNotPending
}

// List returns tasks matching filter.
func (s *SQLiteStore) List(ctx context.Context, filter types.TaskFilter) ([]*types.Task, int, error) {
	var where []string
	args := map[string]any{}

	if filter.Status != "" {
		where = append(where, "status = :status")
		args["status"] = filter.Status
	}
	if filter.ZoneName != "" {
		where = append(where, "zone_name = :zone_name")
		args["zone_name"] = filter.ZoneName
	}
	if filter.Operation != "" {
		where = append(where, "operation = :operation")
		args["operation"] = filter.Operation
	}
	if filter.OperationNe != "" {
		where = append(where, "operation != :operation_ne")
		args["operation_ne"] = filter.OperationNe
	}
	if filter.Since != nil {
		where = append(where, "updated_at >= :since")
		args["since"] = *filter.Since
	}

	whereClause := ""
	if len(where) > 0 {
		whereClause = "WHERE " + strings.Join(where, " AND ")
	}

	total := -1
	if filter.IncludeCount {
		countQuery, countArgs, err := sqlx.Named(
			fmt.Sprintf("SELECT COUNT(*) FROM tasks %s", whereClause), args)
		if err != nil {
			return nil, 0, fmt.Errorf("build count query: %w", err)
		}
		countQuery = s.db.Rebind(countQuery)
		if err := s.db.GetContext(ctx, &total, countQuery, countArgs...); err != nil {
			return nil, 0, fmt.Errorf("count tasks: %w", err)
		}
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	args["limit"] = limit

	query := fmt.Sprintf(
		"SELECT * FROM tasks %s ORDER BY created_at DESC LIMIT :limit",
		whereClause)
	namedQuery, namedArgs, err := sqlx.Named(query, args)
	if err != nil {
		return nil, 0, fmt.Errorf("build list query: %w", err)
	}
	namedQuery = s.db.Rebind(namedQuery)

	var tasks []*types.Task
	if err := s.db.SelectContext(ctx, &tasks, namedQuery, namedArgs...); err != nil {
		return nil, 0, fmt.Errorf("list tasks: %w", err)
	}
	return tasks, total, nil
}

// FindOneEligible returns the single highest-priority pending task whose
// category is not excluded and whose predecessor (if any) is completed.
//
// SQLite has no notion of the in-process category map, so this scans
// candidates in priority order and evaluates the category/dependency
// predicates in Go; in practice the pending set is small (bounded by how
// fast operators enqueue work relative to the 2s scheduler tick) so this
// never needs to become a single SQL predicate.
func (s *SQLiteStore) FindOneEligible(ctx context.Context, excludedCategories map[string]struct{}, categoryOf func(operation string) (string, bool)) (*types.Task, error) {
	var candidates []*types.Task
	err := s.db.SelectContext(ctx, &candidates, `
		SELECT * FROM tasks WHERE status = ?
		ORDER BY priority DESC, created_at ASC`, types.StatusPending)
	if err != nil {
		return nil, fmt.Errorf("query eligible candidates: %w", err)
	}

	for _, task := range candidates {
		if category, ok := categoryOf(task.Operation); ok {
			if _, locked := excludedCategories[category]; locked {
				continue
			}
		}

		if task.DependsOn != "" {
			predecessor, err := s.Get(ctx, task.DependsOn)
			if err != nil {
				if err == ErrNotFound {
					continue // dangling dependency, never eligible
				}
				return nil, fmt.Errorf("look up dependency %s: %w", task.DependsOn, err)
			}
			if predecessor.Status != types.StatusCompleted {
				continue
			}
		}

		return task, nil
	}
	return nil, nil
}

// ListRunning returns every task currently persisted as running.
func (s *SQLiteStore) ListRunning(ctx context.Context) ([]*types.Task, error) {
	var tasks []*types.Task
	err := s.db.SelectContext(ctx, &tasks, `SELECT * FROM tasks WHERE status = ?`, types.StatusRunning)
	if err != nil {
		return nil, fmt.Errorf("list running tasks: %w", err)
	}
	return tasks, nil
}

// CountByStatus returns the number of tasks grouped by status.
func (s *SQLiteStore) CountByStatus(ctx context.Context) ([]types.StatusCount, error) {
	var counts []types.StatusCount
	err := s.db.SelectContext(ctx, &counts, `
		SELECT status, COUNT(*) AS count FROM tasks GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("count tasks by status: %w", err)
	}
	return counts, nil
}

// DeleteOlderThan removes terminal tasks whose created_at predates cutoff.
func (s *SQLiteStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM tasks
		WHERE created_at < ?
		AND status IN (?, ?, ?)`,
		cutoff, types.StatusCompleted, types.StatusFailed, types.StatusCancelled)
	if err != nil {
		return 0, fmt.Errorf("delete old tasks: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}
