// Package orchestrator sequences zone shutdown across a whole host: zones
// are stopped bucketed by priority, highest priority last, with a pause
// between buckets so dependent services (the application zones, then the
// database zone they talk to) get a chance to settle. Three
// strategies control pacing within that priority ordering:
// parallel_by_priority (default, a whole bucket at once), staggered (a
// bucket's zones launched a fixed interval apart), and sequential (one
// zone, host-wide, at a time).
package orchestrator

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/cuemby/zoneweaver-core/pkg/metrics"
	"github.com/cuemby/zoneweaver-core/pkg/types"
)

// ZoneStopper stops a single zone. It is the narrow surface the orchestrator
// needs from the zone-lifecycle handlers; it does not depend on pkg/handlers
// directly to avoid a cycle (pkg/handlers composes *Orchestrator).
type ZoneStopper func(ctx context.Context, zoneName string) error

// FailureAction controls what happens when a zone fails to stop.
type FailureAction string

const (
	FailureActionContinue FailureAction = "continue"
	FailureActionAbort    FailureAction = "abort"
)

// Strategy controls how zones within and across priority buckets are
// stopped.
type Strategy string

const (
	// StrategyParallelByPriority stops every zone in a bucket at once, then
	// waits PriorityDelay before advancing to the next bucket. The default.
	StrategyParallelByPriority Strategy = "parallel_by_priority"
	// StrategySequential stops zones one at a time, in ascending priority
	// order, waiting for each to finish (or time out) before starting the
	// next. No bucket is ever run concurrently with itself.
	StrategySequential Strategy = "sequential"
	// StrategyStaggered stops every zone in a bucket, like
	// StrategyParallelByPriority, but launches each zone's stop a fixed
	// interval after the previous one instead of all at once, so a bucket
	// of many zones doesn't hit the host with simultaneous shutdown load.
	StrategyStaggered Strategy = "staggered"
)

// staggerInterval is the pause between launching successive zone stops
// within a bucket under StrategyStaggered.
const staggerInterval = 2 * time.Second

// Plan is one shutdown run: the zones to stop, in priority order, plus the
// pacing and failure-handling policy.
type Plan struct {
	Zones         []types.ZoneInfo
	Strategy      Strategy
	PriorityDelay time.Duration
	// ZoneTimeout bounds how long a single zone's stop is allowed to run;
	// zero means no per-zone timeout beyond ctx's own deadline.
	ZoneTimeout   time.Duration
	FailureAction FailureAction
}

// ZoneResult is the outcome of stopping one zone.
type ZoneResult struct {
	ZoneName string
	OK       bool
	Err      error
}

// Orchestrator runs shutdown plans against an injected ZoneStopper.
type Orchestrator struct {
	stop ZoneStopper
}

// New creates an Orchestrator. stop is called once per zone, concurrently
// with other zones in the same priority bucket.
func New(stop ZoneStopper) *Orchestrator {
	return &Orchestrator{stop: stop}
}

// bucket groups a priority into a multiple-of-ten bucket, rounding up, so
// priorities 1-10 land in bucket 10, 11-20 in bucket 20, and so on. Buckets
// are stopped in ascending order: low-priority (bucket 10) zones first,
// high-priority (critical) zones last.
func bucket(priority int) int {
	if priority <= 0 {
		return 10
	}
	return ((priority + 9) / 10) * 10
}

// Run executes plan, stopping zones bucket by bucket. Within a bucket,
// zones stop per Strategy: concurrently (parallel_by_priority), staggered
// by staggerInterval (staggered), or one at a time host-wide
// (sequential, which ignores bucket boundaries for pacing purposes since
// it never runs two zones at once regardless). If FailureAction is abort,
// the first zone failure prevents any further zone from starting (zones
// already dispatched in the failing bucket still finish).
func (o *Orchestrator) Run(ctx context.Context, plan Plan) ([]ZoneResult, error) {
	start := time.Now()

	strategy := plan.Strategy
	if strategy == "" {
		strategy = StrategyParallelByPriority
	}

	var all []ZoneResult
	var err error
	aborted := false

	if strategy == StrategySequential {
		all, aborted = o.runSequential(ctx, plan)
	} else {
		all, aborted, err = o.runBuckets(ctx, plan, strategy)
		if err != nil {
			metrics.OrchestrationRunsTotal.WithLabelValues("aborted").Inc()
			metrics.OrchestrationDuration.Observe(time.Since(start).Seconds())
			return all, err
		}
	}

	outcome := "success"
	if aborted {
		outcome = "aborted"
		err = fmt.Errorf("orchestration aborted: a zone failed to stop and failure_action is abort")
	} else {
		for _, r := range all {
			if !r.OK {
				outcome = "partial_failure"
				break
			}
		}
	}

	metrics.OrchestrationRunsTotal.WithLabelValues(outcome).Inc()
	metrics.OrchestrationDuration.Observe(time.Since(start).Seconds())
	return all, err
}

// runBuckets drives parallel_by_priority and staggered: buckets run in
// ascending priority order, paced by PriorityDelay between buckets.
func (o *Orchestrator) runBuckets(ctx context.Context, plan Plan, strategy Strategy) ([]ZoneResult, bool, error) {
	buckets := groupByBucket(plan.Zones)

	var all []ZoneResult
	aborted := false

	for i, b := range buckets {
		if i > 0 && plan.PriorityDelay > 0 {
			select {
			case <-time.After(plan.PriorityDelay):
			case <-ctx.Done():
				return all, false, ctx.Err()
			}
		}

		var results []ZoneResult
		if strategy == StrategyStaggered {
			results = o.runBucketStaggered(ctx, b.zones, plan.ZoneTimeout)
		} else {
			results = o.runBucket(ctx, b.zones, plan.ZoneTimeout)
		}
		all = append(all, results...)

		for _, r := range results {
			if !r.OK && plan.FailureAction == FailureActionAbort {
				aborted = true
			}
		}
		if aborted {
			break
		}
	}

	return all, aborted, nil
}

// runSequential stops zones one at a time, host-wide, in ascending
// priority order (ties broken by name), waiting for each to finish before
// starting the next.
func (o *Orchestrator) runSequential(ctx context.Context, plan Plan) ([]ZoneResult, bool) {
	zones := make([]types.ZoneInfo, len(plan.Zones))
	copy(zones, plan.Zones)
	sort.Slice(zones, func(i, j int) bool {
		if zones[i].Priority != zones[j].Priority {
			return zones[i].Priority < zones[j].Priority
		}
		return zones[i].Name < zones[j].Name
	})

	var all []ZoneResult
	for _, zone := range zones {
		result := o.runZone(ctx, zone, plan.ZoneTimeout)
		all = append(all, result)
		if !result.OK && plan.FailureAction == FailureActionAbort {
			return all, true
		}
	}
	return all, false
}

type priorityBucket struct {
	priority int
	zones    []types.ZoneInfo
}

func groupByBucket(zones []types.ZoneInfo) []priorityBucket {
	byBucket := map[int][]types.ZoneInfo{}
	for _, z := range zones {
		b := bucket(z.Priority)
		byBucket[b] = append(byBucket[b], z)
	}

	var buckets []priorityBucket
	for b, zs := range byBucket {
		buckets = append(buckets, priorityBucket{priority: b, zones: zs})
	}
	sort.Slice(buckets, func(i, j int) bool { return buckets[i].priority < buckets[j].priority })
	return buckets
}

func (o *Orchestrator) runBucket(ctx context.Context, zones []types.ZoneInfo, zoneTimeout time.Duration) []ZoneResult {
	results := make([]ZoneResult, len(zones))
	var wg sync.WaitGroup

	for i, zone := range zones {
		wg.Add(1)
		go func(i int, zone types.ZoneInfo) {
			defer wg.Done()
			results[i] = o.runZone(ctx, zone, zoneTimeout)
		}(i, zone)
	}

	wg.Wait()
	return results
}

// runBucketStaggered launches each zone's stop staggerInterval after the
// previous one, but does not wait for one to finish before launching the
// next: it is still concurrent, just spread out in start time.
func (o *Orchestrator) runBucketStaggered(ctx context.Context, zones []types.ZoneInfo, zoneTimeout time.Duration) []ZoneResult {
	results := make([]ZoneResult, len(zones))
	var wg sync.WaitGroup

	for i, zone := range zones {
		wg.Add(1)
		go func(i int, zone types.ZoneInfo) {
			defer wg.Done()
			results[i] = o.runZone(ctx, zone, zoneTimeout)
		}(i, zone)

		if i < len(zones)-1 {
			select {
			case <-time.After(staggerInterval):
			case <-ctx.Done():
			}
		}
	}

	wg.Wait()
	return results
}

// runZone stops a single zone, bounding it by zoneTimeout if set.
func (o *Orchestrator) runZone(ctx context.Context, zone types.ZoneInfo, zoneTimeout time.Duration) ZoneResult {
	zctx := ctx
	if zoneTimeout > 0 {
		var cancel context.CancelFunc
		zctx, cancel = context.WithTimeout(ctx, zoneTimeout)
		defer cancel()
	}
	err := o.stop(zctx, zone.Name)
	return ZoneResult{ZoneName: zone.Name, OK: err == nil, Err: err}
}
