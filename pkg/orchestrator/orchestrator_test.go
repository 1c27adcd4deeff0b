package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/cuemby/zoneweaver-core/pkg/types"
)

func TestRun_StopsLowPriorityBucketFirst(t *testing.T) {
	var mu sync.Mutex
	var order []string

	stop := func(ctx context.Context, zoneName string) error {
		mu.Lock()
		order = append(order, zoneName)
		mu.Unlock()
		return nil
	}

	o := New(stop)
	plan := Plan{
		Zones: []types.ZoneInfo{
			{Name: "critical-db", Priority: 90},
			{Name: "web-1", Priority: 10},
			{Name: "web-2", Priority: 10},
		},
		FailureAction: FailureActionContinue,
	}

	results, err := o.Run(context.Background(), plan)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}

	mu.Lock()
	defer mu.Unlock()
	if order[2] != "critical-db" {
		t.Errorf("expected critical-db to stop last, got order %v", order)
	}
}

func TestRun_AbortStopsShortOfLaterBuckets(t *testing.T) {
	stop := func(ctx context.Context, zoneName string) error {
		if zoneName == "web-1" {
			return fmt.Errorf("zoneadm halt failed")
		}
		return nil
	}

	o := New(stop)
	plan := Plan{
		Zones: []types.ZoneInfo{
			{Name: "web-1", Priority: 10},
			{Name: "critical-db", Priority: 90},
		},
		FailureAction: FailureActionAbort,
	}

	results, err := o.Run(context.Background(), plan)
	if err == nil {
		t.Fatal("expected Run to return an error when a zone fails with FailureActionAbort")
	}
	for _, r := range results {
		if r.ZoneName == "critical-db" {
			t.Error("critical-db should never have been dispatched after web-1 aborted")
		}
	}
}

func TestRun_ContinuePastFailure(t *testing.T) {
	stop := func(ctx context.Context, zoneName string) error {
		if zoneName == "web-1" {
			return fmt.Errorf("zoneadm halt failed")
		}
		return nil
	}

	o := New(stop)
	plan := Plan{
		Zones: []types.ZoneInfo{
			{Name: "web-1", Priority: 10},
			{Name: "critical-db", Priority: 90},
		},
		FailureAction: FailureActionContinue,
	}

	results, err := o.Run(context.Background(), plan)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	found := false
	for _, r := range results {
		if r.ZoneName == "critical-db" {
			found = true
			if !r.OK {
				t.Error("critical-db should have stopped successfully")
			}
		}
	}
	if !found {
		t.Error("expected critical-db to be dispatched despite web-1's failure")
	}
}

func TestRun_PriorityDelayBetweenBuckets(t *testing.T) {
	var mu sync.Mutex
	var timestamps []time.Time

	stop := func(ctx context.Context, zoneName string) error {
		mu.Lock()
		timestamps = append(timestamps, time.Now())
		mu.Unlock()
		return nil
	}

	o := New(stop)
	plan := Plan{
		Zones: []types.ZoneInfo{
			{Name: "web-1", Priority: 10},
			{Name: "critical-db", Priority: 90},
		},
		PriorityDelay: 50 * time.Millisecond,
		FailureAction: FailureActionContinue,
	}

	if _, err := o.Run(context.Background(), plan); err != nil {
		t.Fatalf("Run: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(timestamps) != 2 {
		t.Fatalf("expected 2 timestamps, got %d", len(timestamps))
	}
	if timestamps[1].Sub(timestamps[0]) < 40*time.Millisecond {
		t.Errorf("expected at least ~50ms between buckets, got %v", timestamps[1].Sub(timestamps[0]))
	}
}

func TestRun_SequentialStrategyStopsOneAtATime(t *testing.T) {
	var mu sync.Mutex
	inFlight := 0
	maxInFlight := 0
	var order []string

	stop := func(ctx context.Context, zoneName string) error {
		mu.Lock()
		inFlight++
		if inFlight > maxInFlight {
			maxInFlight = inFlight
		}
		order = append(order, zoneName)
		mu.Unlock()

		time.Sleep(10 * time.Millisecond)

		mu.Lock()
		inFlight--
		mu.Unlock()
		return nil
	}

	o := New(stop)
	plan := Plan{
		Zones: []types.ZoneInfo{
			{Name: "critical-db", Priority: 90},
			{Name: "web-1", Priority: 10},
		},
		Strategy:      StrategySequential,
		FailureAction: FailureActionContinue,
	}

	if _, err := o.Run(context.Background(), plan); err != nil {
		t.Fatalf("Run: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if maxInFlight != 1 {
		t.Errorf("expected sequential strategy to never run more than 1 zone at a time, got %d", maxInFlight)
	}
	if len(order) != 2 || order[0] != "web-1" || order[1] != "critical-db" {
		t.Errorf("expected web-1 then critical-db, got %v", order)
	}
}

func TestRun_ZoneTimeoutCancelsSlowStop(t *testing.T) {
	stop := func(ctx context.Context, zoneName string) error {
		select {
		case <-time.After(time.Second):
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	o := New(stop)
	plan := Plan{
		Zones:         []types.ZoneInfo{{Name: "web-1", Priority: 10}},
		ZoneTimeout:   20 * time.Millisecond,
		FailureAction: FailureActionContinue,
	}

	results, err := o.Run(context.Background(), plan)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(results) != 1 || results[0].OK {
		t.Fatalf("expected the slow zone to fail its timeout, got %+v", results)
	}
}
