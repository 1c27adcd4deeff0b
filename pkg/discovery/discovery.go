// Package discovery periodically enqueues a discover task so zoneweaverd's
// task store stays in sync with the zones actually present on the host,
// even if no operator-driven task ever touched them.
package discovery

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/cuemby/zoneweaver-core/pkg/log"
	"github.com/cuemby/zoneweaver-core/pkg/metrics"
	"github.com/cuemby/zoneweaver-core/pkg/store"
	"github.com/cuemby/zoneweaver-core/pkg/types"
)

const initialDelay = 5 * time.Second

// Driver schedules discover tasks on a ticker.
type Driver struct {
	store    store.Store
	logger   zerolog.Logger
	interval time.Duration
	auto     bool
	stopCh   chan struct{}
}

// New creates a Driver. If auto is false, only the one-shot task scheduled
// ~5s after Start runs; no recurring discovery is scheduled.
func New(st store.Store, interval time.Duration, auto bool) *Driver {
	return &Driver{
		store:    st,
		logger:   log.WithComponent("discovery"),
		interval: interval,
		auto:     auto,
		stopCh:   make(chan struct{}),
	}
}

// Start schedules the initial discover task and, if configured, the
// recurring ticker.
func (d *Driver) Start() {
	go d.run()
}

// Stop halts the driver.
func (d *Driver) Stop() {
	close(d.stopCh)
}

func (d *Driver) run() {
	initial := time.NewTimer(initialDelay)
	defer initial.Stop()

	select {
	case <-initial.C:
		d.enqueue()
	case <-d.stopCh:
		return
	}

	if !d.auto || d.interval <= 0 {
		return
	}

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			d.enqueue()
		case <-d.stopCh:
			return
		}
	}
}

func (d *Driver) enqueue() {
	task := &types.Task{
		Operation: "discover",
		Priority:  10,
		CreatedBy: "discovery-driver",
	}
	if err := d.store.Create(context.Background(), task); err != nil {
		d.logger.Error().Err(err).Msg("failed to enqueue discover task")
		return
	}
	metrics.DiscoveryRunsTotal.Inc()
	metrics.TasksCreatedTotal.WithLabelValues(task.Operation).Inc()
	d.logger.Debug().Str("task_id", task.ID).Msg("enqueued discover task")
}
