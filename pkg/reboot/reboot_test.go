package reboot

import (
	"path/filepath"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "reboot-required.json")
	return New(path, func() (time.Duration, error) { return time.Hour, nil }, nil)
}

func TestSet_SetsRequired(t *testing.T) {
	s := newTestStore(t)

	if err := s.Set("kernel zone resize", "zone_modify"); err != nil {
		t.Fatalf("Set: %v", err)
	}

	status, err := s.Get()
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !status.Required {
		t.Error("expected Required to be true after Set")
	}
	if len(status.Reasons) != 1 {
		t.Errorf("expected 1 reason, got %d", len(status.Reasons))
	}
}

func TestSet_Idempotent(t *testing.T) {
	s := newTestStore(t)

	if err := s.Set("tunable change", "file_write"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := s.Set("tunable change", "file_write"); err != nil {
		t.Fatalf("Set (second): %v", err)
	}

	status, err := s.Get()
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(status.Reasons) != 1 {
		t.Errorf("expected duplicate Set to not add a second reason, got %d", len(status.Reasons))
	}
}

func TestClear(t *testing.T) {
	s := newTestStore(t)

	if err := s.Set("reason", "component"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := s.Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}

	status, err := s.Get()
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if status.Required {
		t.Error("expected Required to be false after Clear")
	}
}

func TestRemoveReason_OnlyRemovesMatching(t *testing.T) {
	s := newTestStore(t)

	if err := s.Set("reason-a", "component-a"); err != nil {
		t.Fatalf("Set a: %v", err)
	}
	if err := s.Set("reason-b", "component-b"); err != nil {
		t.Fatalf("Set b: %v", err)
	}

	if err := s.RemoveReason("reason-a"); err != nil {
		t.Fatalf("RemoveReason: %v", err)
	}

	status, err := s.Get()
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !status.Required {
		t.Error("expected Required to remain true, reason-b still pending")
	}
	if len(status.Reasons) != 1 {
		t.Errorf("expected 1 remaining reason, got %d", len(status.Reasons))
	}
}

func TestCheckAndClearAfterReboot_BootAfterFlagSet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reboot-required.json")
	// Flag was set an hour ago; kernel has only been up 10 minutes, so the
	// reboot the flag was waiting for has already happened.
	setAt := time.Now().UTC().Add(-time.Hour)
	s := New(path, func() (time.Duration, error) { return 10 * time.Minute, nil }, nil)
	if err := s.write(fileState{
		Reasons:   []reasonEntry{{Component: "zone_modify", Reason: "reason", SetAt: setAt}},
		Timestamp: setAt,
	}); err != nil {
		t.Fatalf("seed write: %v", err)
	}

	cleared, err := s.CheckAndClearAfterReboot()
	if err != nil {
		t.Fatalf("CheckAndClearAfterReboot: %v", err)
	}
	if !cleared {
		t.Error("expected flag to be cleared when uptime is shorter than time since Set")
	}

	status, err := s.Get()
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if status.Required {
		t.Error("expected Required to be false after reboot detected")
	}
}

func TestCheckAndClearAfterReboot_NoRebootYet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reboot-required.json")
	s := New(path, func() (time.Duration, error) { return 24 * time.Hour, nil }, nil)

	if err := s.Set("reason", "component"); err != nil {
		t.Fatalf("Set: %v", err)
	}

	cleared, err := s.CheckAndClearAfterReboot()
	if err != nil {
		t.Fatalf("CheckAndClearAfterReboot: %v", err)
	}
	if cleared {
		t.Error("expected flag to remain set when kernel uptime predates the flag")
	}
}

// TestCheckAndClearAfterReboot_LaterReasonSurvivesEarlierReboot reproduces
// the scenario where reason A was satisfied by a reboot, but reason B was
// set afterward and is still pending: a naive "oldest reason" comparison
// would see the stale reboot and wipe out B too.
func TestCheckAndClearAfterReboot_LaterReasonSurvivesEarlierReboot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reboot-required.json")
	now := time.Now().UTC()

	s := New(path, func() (time.Duration, error) { return 20 * time.Minute, nil }, nil)
	if err := s.write(fileState{
		Reasons: []reasonEntry{
			{Component: "component-a", Reason: "reason-a", SetAt: now.Add(-2 * time.Hour)},
			{Component: "component-b", Reason: "reason-b", SetAt: now.Add(-5 * time.Minute)},
		},
		// The kernel rebooted 20 minutes ago, satisfying reason-a, but
		// reason-b was set 5 minutes ago, after that reboot, so the
		// file's Timestamp reflects reason-b and the flag must survive.
		Timestamp: now.Add(-5 * time.Minute),
	}); err != nil {
		t.Fatalf("seed write: %v", err)
	}

	cleared, err := s.CheckAndClearAfterReboot()
	if err != nil {
		t.Fatalf("CheckAndClearAfterReboot: %v", err)
	}
	if cleared {
		t.Error("expected flag to remain set: reason-b was set after the last reboot")
	}

	status, err := s.Get()
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !status.Required {
		t.Error("expected Required to remain true, reason-b still pending")
	}
}

func TestGet_EmptyStoreIsNotRequired(t *testing.T) {
	s := newTestStore(t)

	status, err := s.Get()
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if status.Required {
		t.Error("expected a fresh store to not require reboot")
	}
}
