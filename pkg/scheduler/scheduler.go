// Package scheduler runs the task queue: a ticker-driven loop that pulls one
// eligible pending task at a time, respecting the concurrency cap and
// per-category mutual exclusion, and dispatches it to the registered
// handler.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/cuemby/zoneweaver-core/pkg/events"
	"github.com/cuemby/zoneweaver-core/pkg/log"
	"github.com/cuemby/zoneweaver-core/pkg/metrics"
	"github.com/cuemby/zoneweaver-core/pkg/registry"
	"github.com/cuemby/zoneweaver-core/pkg/store"
	"github.com/cuemby/zoneweaver-core/pkg/types"
)

const defaultTickEvery = 2 * time.Second

// runningTask snapshots a dispatched task together with the category it
// locked at dispatch time, so completion can release exactly that category
// even if the task's stored row changes underneath it.
type runningTask struct {
	task     *types.Task
	category string
	cancel   context.CancelFunc
}

// Scheduler assigns pending tasks to handler goroutines.
type Scheduler struct {
	store    store.Store
	registry *registry.Registry
	broker   *events.Broker
	logger   zerolog.Logger

	maxConcurrent int
	tickEvery     time.Duration

	mu                sync.Mutex
	runningTasks      map[string]*runningTask
	runningCategories map[string]struct{}

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// New creates a Scheduler. broker may be nil to disable event publishing.
func New(st store.Store, reg *registry.Registry, broker *events.Broker, maxConcurrent int, tickEvery time.Duration) *Scheduler {
	if maxConcurrent <= 0 {
		maxConcurrent = 5
	}
	if tickEvery <= 0 {
		tickEvery = defaultTickEvery
	}
	return &Scheduler{
		store:             st,
		registry:          reg,
		broker:            broker,
		logger:            log.WithComponent("scheduler"),
		maxConcurrent:     maxConcurrent,
		tickEvery:         tickEvery,
		runningTasks:      make(map[string]*runningTask),
		runningCategories: make(map[string]struct{}),
		stopCh:            make(chan struct{}),
	}
}

// Start recovers any tasks left running by a crashed prior process, then
// begins the scheduling loop.
func (s *Scheduler) Start(ctx context.Context) error {
	if err := s.recoverOrphans(ctx); err != nil {
		return fmt.Errorf("recover orphaned tasks: %w", err)
	}
	go s.run()
	return nil
}

// Stop halts the scheduling loop. In-flight handler goroutines are not
// cancelled; they run to completion and update the store themselves.
func (s *Scheduler) Stop() {
	close(s.stopCh)
}

// RunningCount returns the number of tasks this process currently has
// dispatched, for the API's process-local running count.
func (s *Scheduler) RunningCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.runningTasks)
}

// recoverOrphans marks every task persisted as running as failed. A task
// still "running" at process start can only mean the previous process died
// mid-execution; there is no handle to resume it by, so it is recorded as
// failed rather than silently re-dispatched (which could double-run a
// non-idempotent operation like pkg_install).
func (s *Scheduler) recoverOrphans(ctx context.Context) error {
	orphans, err := s.store.ListRunning(ctx)
	if err != nil {
		return fmt.Errorf("list running tasks: %w", err)
	}

	for _, t := range orphans {
		errMsg := "interrupted by process restart"
		now := time.Now().UTC()
		err := s.store.Update(ctx, t.ID, types.TaskPatch{
			Status:       types.StatusFailed,
			ErrorMessage: &errMsg,
			CompletedAt:  &now,
		})
		if err != nil {
			s.logger.Error().Err(err).Str("task_id", t.ID).Msg("failed to mark orphaned task as failed")
			continue
		}
		s.publish(types.EventTaskFailed, t, errMsg)
		s.logger.Warn().Str("task_id", t.ID).Str("operation", t.Operation).Msg("recovered orphaned running task as failed")
	}
	return nil
}

func (s *Scheduler) run() {
	ticker := time.NewTicker(s.tickEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.tick()
		case <-s.stopCh:
			return
		}
	}
}

// tick runs one scheduling cycle: if there is capacity, find the single
// highest-priority eligible task and dispatch it. At most one task is
// dispatched per tick, which keeps the category-lock bookkeeping trivial;
// at the default 2s tick this is not a meaningful throughput ceiling for a
// host control plane.
func (s *Scheduler) tick() {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.SchedulerTickDuration)

	s.mu.Lock()
	if len(s.runningTasks) >= s.maxConcurrent {
		s.mu.Unlock()
		return
	}
	excluded := make(map[string]struct{}, len(s.runningCategories))
	for c := range s.runningCategories {
		excluded[c] = struct{}{}
	}
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	task, err := s.store.FindOneEligible(ctx, excluded, s.registry.CategoryOf)
	cancel()
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to query eligible task")
		return
	}
	if task == nil {
		return
	}

	s.dispatch(task)
}

// dispatch marks task running, reserves its category (if any), and runs its
// handler in its own goroutine.
func (s *Scheduler) dispatch(task *types.Task) {
	handler, ok := s.registry.Lookup(task.Operation)
	if !ok {
		s.failImmediately(task, fmt.Sprintf("unknown operation: %s", task.Operation))
		return
	}

	category, hasCategory := s.registry.CategoryOf(task.Operation)

	s.mu.Lock()
	if hasCategory {
		if _, locked := s.runningCategories[category]; locked {
			// Lost the race between FindOneEligible and here; leave the task
			// pending, the next tick will pick it (or another) back up.
			s.mu.Unlock()
			return
		}
		s.runningCategories[category] = struct{}{}
	}
	handlerCtx, cancel := context.WithCancel(context.Background())
	s.runningTasks[task.ID] = &runningTask{task: task, category: category, cancel: cancel}
	metrics.TasksRunning.Set(float64(len(s.runningTasks)))
	s.mu.Unlock()

	now := time.Now().UTC()
	if err := s.store.Update(context.Background(), task.ID, types.TaskPatch{
		Status:    types.StatusRunning,
		StartedAt: &now,
	}); err != nil {
		s.logger.Error().Err(err).Str("task_id", task.ID).Msg("failed to mark task running")
	}
	s.publish(types.EventTaskStarted, task, "")

	s.wg.Add(1)
	go s.runHandler(handlerCtx, task, handler)
}

func (s *Scheduler) failImmediately(task *types.Task, message string) {
	now := time.Now().UTC()
	if err := s.store.Update(context.Background(), task.ID, types.TaskPatch{
		Status:       types.StatusFailed,
		ErrorMessage: &message,
		CompletedAt:  &now,
	}); err != nil {
		s.logger.Error().Err(err).Str("task_id", task.ID).Msg("failed to record unknown-operation failure")
	}
	s.publish(types.EventTaskFailed, task, message)
}

// runHandler executes handler and records its outcome. Panics are recovered
// here, at a single boundary, rather than inside every handler.
func (s *Scheduler) runHandler(ctx context.Context, task *types.Task, handler registry.Handler) {
	defer s.wg.Done()
	defer s.release(task)

	timer := metrics.NewTimer()
	result := s.invoke(ctx, task, handler)
	timer.ObserveDurationVec(metrics.HandlerDuration, task.Operation)

	now := time.Now().UTC()
	patch := types.TaskPatch{CompletedAt: &now}
	if result.OK {
		patch.Status = types.StatusCompleted
		percent := 100
		patch.ProgressPercent = &percent
		metrics.TasksCompletedTotal.WithLabelValues(task.Operation, "success").Inc()
		s.publish(types.EventTaskCompleted, task, result.Message)
	} else {
		patch.Status = types.StatusFailed
		msg := result.Message
		if msg == "" && result.Err != nil {
			msg = result.Err.Error()
		}
		patch.ErrorMessage = &msg
		metrics.TasksCompletedTotal.WithLabelValues(task.Operation, "failure").Inc()
		s.publish(types.EventTaskFailed, task, msg)
	}

	if err := s.store.Update(context.Background(), task.ID, patch); err != nil {
		s.logger.Error().Err(err).Str("task_id", task.ID).Msg("failed to record task completion")
	}
}

// invoke calls handler, converting a panic into a failed Result instead of
// crashing the scheduler goroutine.
func (s *Scheduler) invoke(ctx context.Context, task *types.Task, handler registry.Handler) (result registry.Result) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().Interface("panic", r).Str("task_id", task.ID).Str("operation", task.Operation).Msg("handler panicked")
			result = registry.Result{OK: false, Message: fmt.Sprintf("handler panicked: %v", r)}
		}
	}()
	return handler(ctx, task.Metadata, &taskRef{id: task.ID, store: s.store})
}

func (s *Scheduler) release(task *types.Task) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rt, ok := s.runningTasks[task.ID]; ok {
		if rt.category != "" {
			delete(s.runningCategories, rt.category)
		}
		delete(s.runningTasks, task.ID)
		metrics.TasksRunning.Set(float64(len(s.runningTasks)))
	}
}

func (s *Scheduler) publish(eventType types.EventType, task *types.Task, message string) {
	if s.broker == nil {
		return
	}
	s.broker.Publish(&types.Event{
		Type:     eventType,
		TaskID:   task.ID,
		ZoneName: task.ZoneName,
		Message:  message,
	})
}

// taskRef is the registry.TaskRef a handler sees: its own ID and a way to
// report progress back through the store.
type taskRef struct {
	id    string
	store store.Store
}

func (t *taskRef) ID() string { return t.id }

// UpdateProgress is best-effort: a store error here is logged at debug and
// swallowed rather than propagated, since a progress-reporting failure
// should never fail the task the progress belongs to.
func (t *taskRef) UpdateProgress(ctx context.Context, percent int, info string) error {
	err := t.store.Update(ctx, t.id, types.TaskPatch{
		Status:          types.StatusRunning,
		ProgressPercent: &percent,
		ProgressInfo:    &info,
	})
	if err != nil {
		log.WithComponent("scheduler").Debug().Err(err).Str("task_id", t.id).Msg("failed to persist progress update")
	}
	return nil
}
