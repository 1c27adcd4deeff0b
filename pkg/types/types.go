package types

import (
	"encoding/json"
	"time"
)

// Task is the durable unit of work scheduled against a host. Every mutating
// administrative action (zone lifecycle, networking, packaging, users, host
// config) enters the system as a Task row.
type Task struct {
	ID              string          `db:"id" json:"id"`
	Operation       string          `db:"operation" json:"operation"`
	ZoneName        string          `db:"zone_name" json:"zone_name,omitempty"`
	Priority        int             `db:"priority" json:"priority"`
	Status          Status          `db:"status" json:"status"`
	DependsOn       string          `db:"depends_on" json:"depends_on,omitempty"`
	Metadata        json.RawMessage `db:"metadata" json:"metadata,omitempty"`
	ProgressPercent int             `db:"progress_percent" json:"progress_percent"`
	ProgressInfo    string          `db:"progress_info" json:"progress_info,omitempty"`
	ErrorMessage    string          `db:"error_message" json:"error_message,omitempty"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time       `db:"updated_at" json:"updated_at"`
	StartedAt       *time.Time      `db:"started_at" json:"started_at,omitempty"`
	CompletedAt     *time.Time      `db:"completed_at" json:"completed_at,omitempty"`
	CreatedBy       string          `db:"created_by" json:"created_by,omitempty"`
}

// Status is the lifecycle state of a Task. Valid transitions:
// pending -> running -> (completed | failed); pending -> cancelled.
// No other transition is legal; the scheduler and store enforce this at the
// boundaries that mutate status.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// IsTerminal reports whether no further transition out of this status is legal.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	default:
		return false
	}
}

// Category is the static operation-category a task belongs to. At most one
// task per category may be running at a time; tasks with no category never
// contend with anything but the overall concurrency cap.
type Category string

const (
	CategoryPackageManagement Category = "package_management"
	CategoryNetworkDatalink   Category = "network_datalink"
	CategoryNetworkIP         Category = "network_ip"
	CategorySystemConfig      Category = "system_config"
	CategoryUserManagement    Category = "user_management"
)

// TaskFilter narrows a listing query. Zero-value fields are not applied.
type TaskFilter struct {
	Status       Status
	ZoneName     string
	Operation    string
	OperationNe  string
	Since        *time.Time
	Limit        int
	IncludeCount bool
}

// TaskPatch is a partial update applied to a task row. Pointer/zero-value
// fields left nil/empty are not applied; Status is always required.
type TaskPatch struct {
	Status          Status
	ProgressPercent *int
	ProgressInfo    *string
	ErrorMessage    *string
	StartedAt       *time.Time
	CompletedAt     *time.Time
}

// StatusCount is one row of a grouped count-by-status query.
type StatusCount struct {
	Status Status `db:"status"`
	Count  int    `db:"count"`
}

// RebootStatus is a flat view of the reboot-required flag. It is not the
// on-disk shape: pkg/reboot writes its own per-reason record to the file.
type RebootStatus struct {
	Timestamp time.Time `json:"timestamp"`
	Reasons   []string  `json:"reasons"`
	CreatedBy string    `json:"created_by,omitempty"`
}

// ZonePriorityGroup is an in-memory bucket of zones sharing a priority range,
// derived by the Zone-Shutdown Orchestrator. It has no persisted analogue.
type ZonePriorityGroup struct {
	PriorityRange int        `json:"priority_range"`
	Zones         []ZoneInfo `json:"zones"`
}

// ZoneInfo is the minimal inventory record the orchestrator needs about a
// zone: enough to decide shutdown order, nothing about its workload.
type ZoneInfo struct {
	Name     string `json:"name"`
	Priority int    `json:"priority"`
	Running  bool   `json:"running"`
}

// Event is a task-lifecycle notification published on the event bus.
type Event struct {
	ID        string
	Type      EventType
	Timestamp time.Time
	TaskID    string
	ZoneName  string
	Message   string
	Metadata  map[string]string
}

// EventType enumerates the kinds of events the broker carries.
type EventType string

const (
	EventTaskCreated       EventType = "task.created"
	EventTaskStarted       EventType = "task.started"
	EventTaskCompleted     EventType = "task.completed"
	EventTaskFailed        EventType = "task.failed"
	EventTaskCancelled     EventType = "task.cancelled"
	EventRebootFlagSet     EventType = "reboot_flag.set"
	EventRebootFlagCleared EventType = "reboot_flag.cleared"
)
