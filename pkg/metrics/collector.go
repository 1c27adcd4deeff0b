package metrics

import (
	"context"
	"time"

	"github.com/cuemby/zoneweaver-core/pkg/store"
)

// Collector polls the task store on a fixed interval to keep TasksTotal
// current. Per-event counters (TasksCreatedTotal, TasksCompletedTotal, ...)
// are incremented directly at the point of occurrence; this only covers the
// gauge that reflects a point-in-time snapshot of the whole table.
type Collector struct {
	store    store.Store
	interval time.Duration
	stopCh   chan struct{}
}

// NewCollector creates a metrics collector polling store every interval.
func NewCollector(st store.Store, interval time.Duration) *Collector {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &Collector{
		store:    st,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start begins collecting metrics in the background.
func (c *Collector) Start() {
	ticker := time.NewTicker(c.interval)
	go func() {
		c.collect()
		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop stops the collector.
func (c *Collector) Stop() {
	close(c.stopCh)
}

func (c *Collector) collect() {
	counts, err := c.store.CountByStatus(context.Background())
	if err != nil {
		return
	}
	for _, sc := range counts {
		TasksTotal.WithLabelValues(string(sc.Status)).Set(float64(sc.Count))
	}
}
