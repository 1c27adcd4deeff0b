// Package retention periodically deletes terminal tasks older than a
// configured age, keeping the task store from growing without bound on a
// host that runs zone operations continuously.
package retention

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/cuemby/zoneweaver-core/pkg/log"
	"github.com/cuemby/zoneweaver-core/pkg/metrics"
	"github.com/cuemby/zoneweaver-core/pkg/store"
)

// Cleaner runs the retention sweep on a ticker.
type Cleaner struct {
	store    store.Store
	logger   zerolog.Logger
	interval time.Duration
	maxAge   time.Duration
	stopCh   chan struct{}
}

// New creates a Cleaner. interval is how often the sweep runs; maxAge is
// how old a terminal task must be before it is deleted.
func New(st store.Store, interval, maxAge time.Duration) *Cleaner {
	return &Cleaner{
		store:    st,
		logger:   log.WithComponent("retention"),
		interval: interval,
		maxAge:   maxAge,
		stopCh:   make(chan struct{}),
	}
}

// Start begins the sweep loop.
func (c *Cleaner) Start() {
	go c.run()
}

// Stop halts the sweep loop.
func (c *Cleaner) Stop() {
	close(c.stopCh)
}

func (c *Cleaner) run() {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.sweep()
		case <-c.stopCh:
			return
		}
	}
}

func (c *Cleaner) sweep() {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.RetentionCycleDuration)

	cutoff := time.Now().UTC().Add(-c.maxAge)
	n, err := c.store.DeleteOlderThan(context.Background(), cutoff)
	if err != nil {
		c.logger.Error().Err(err).Msg("retention sweep failed")
		return
	}

	metrics.RetentionDeletedTotal.Add(float64(n))
	if n > 0 {
		c.logger.Info().Int("deleted", n).Dur("duration", timer.Duration()).Msg("retention sweep removed old tasks")
	}
}
