// Package registry is the closed, static mapping from operation name to
// handler function and operation category. It replaces what a distillation
// of this system would otherwise implement as a cascade of string-prefix
// checks ("if strings.HasPrefix(op, \"zone_\")...") with one map built once
// at startup.
package registry

import (
	"context"
	"encoding/json"

	"github.com/cuemby/zoneweaver-core/pkg/types"
)

// TaskRef is the narrow view of a running task a handler is allowed to
// mutate: its own identity, and a way to report incremental progress.
type TaskRef interface {
	ID() string
	UpdateProgress(ctx context.Context, percent int, info string) error
}

// Result is what a handler returns to the scheduler. OK distinguishes
// success from failure explicitly rather than relying on err != nil alone,
// since a handler may want to report a structured failure without an error
// object (e.g. a non-zero exit code it has already formatted into Message).
type Result struct {
	OK      bool
	Message string
	Extras  map[string]any
	Err     error
}

// Handler executes one task to completion (or failure) and returns a Result.
// Handlers are not expected to panic; the scheduler recovers panics at its
// own boundary and converts them to a failed Result, but a well-behaved
// handler reports failure through the return value.
type Handler func(ctx context.Context, metadata json.RawMessage, task TaskRef) Result

// Registry is the closed map from operation name to Handler, plus the
// operation -> category lookup the scheduler uses for mutual exclusion.
type Registry struct {
	handlers   map[string]Handler
	categories map[string]types.Category
}

// New builds a closed Registry from caller-supplied handler and category
// tables (see pkg/handlers.All/Categories). It is built once at startup and
// never mutated afterward.
func New(handlers map[string]Handler, categories map[string]types.Category) *Registry {
	return &Registry{
		handlers:   handlers,
		categories: categories,
	}
}

// Lookup returns the handler registered for operation, or ok=false if the
// operation is unknown.
func (r *Registry) Lookup(operation string) (Handler, bool) {
	h, ok := r.handlers[operation]
	return h, ok
}

// CategoryOf returns the category operation belongs to, or ok=false if the
// operation has no category (and therefore never contends for a category
// lock).
func (r *Registry) CategoryOf(operation string) (string, bool) {
	c, ok := r.categories[operation]
	if !ok {
		return "", false
	}
	return string(c), true
}

// Operations returns the registered operation names, in no particular order.
func (r *Registry) Operations() []string {
	ops := make([]string, 0, len(r.handlers))
	for op := range r.handlers {
		ops = append(ops, op)
	}
	return ops
}
