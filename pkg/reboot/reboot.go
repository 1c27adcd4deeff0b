// Package reboot tracks whether the host has pending changes that require a
// reboot to take effect (e.g. a kernel zone resize, an /etc/system tunable),
// and which component last asked for one. State is a single JSON file so it
// survives a zoneweaverd restart; it is cleared automatically once the host
// actually reboots past the point the flag was set.
package reboot

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cuemby/zoneweaver-core/pkg/events"
	"github.com/cuemby/zoneweaver-core/pkg/types"
)

// DefaultUptime reads the kernel's boot time from kstat, the illumos source
// of truth for this, and returns how long ago that was. It shells out
// directly rather than through pkg/executor: this is a one-shot, unmetadata'd
// read at startup, not a task handler invocation.
func DefaultUptime() (time.Duration, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	out, err := exec.CommandContext(ctx, "sh", "-c", "kstat -p unix:0:system_misc:boot_time").Output()
	if err != nil {
		return 0, fmt.Errorf("run kstat: %w", err)
	}

	fields := strings.Fields(string(out))
	if len(fields) != 2 {
		return 0, fmt.Errorf("unexpected kstat output: %q", string(out))
	}
	epoch, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse boot_time %q: %w", fields[1], err)
	}

	bootTime := time.Unix(epoch, 0)
	return time.Since(bootTime), nil
}

// Status is the on-disk and API-facing representation of the reboot flag.
type Status struct {
	Required  bool      `json:"required"`
	Reasons   []string  `json:"reasons"`
	SetAt     time.Time `json:"set_at"`
	CreatedBy string    `json:"created_by"`
}

// UptimeFunc returns how long the kernel has been up. It is injectable so
// tests can simulate a reboot without actually rebooting the test host.
type UptimeFunc func() (time.Duration, error)

// Store persists the reboot-required flag to a JSON file at path.
type Store struct {
	path   string
	uptime UptimeFunc
	broker *events.Broker
	mu     sync.Mutex
}

// reasonEntry is the internal per-reason record, kept distinct from the
// public Status.Reasons []string so Component/Reason can be tracked
// separately from the file-level Timestamp.
type reasonEntry struct {
	Component string    `json:"component"`
	Reason    string    `json:"reason"`
	SetAt     time.Time `json:"set_at"`
}

// fileState.Timestamp is the single record timestamp, refreshed on every
// Set call regardless of whether the reason was already present. It is
// what CheckAndClearAfterReboot compares against the kernel boot time, so a
// reason added after the host's last real reboot is never wiped out by an
// earlier reboot that only satisfied an older reason.
type fileState struct {
	Reasons   []reasonEntry `json:"reasons"`
	Timestamp time.Time     `json:"timestamp"`
}

// New creates a Store backed by the JSON file at path. broker may be nil, in
// which case Set/Clear/RemoveReason do not publish events.
func New(path string, uptime UptimeFunc, broker *events.Broker) *Store {
	return &Store{path: path, uptime: uptime, broker: broker}
}

// Set records that component requires a reboot for reason. Idempotent:
// setting the same component/reason pair twice does not duplicate the entry.
func (s *Store) Set(reason, component string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := s.read()
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	state.Timestamp = now

	for _, r := range state.Reasons {
		if r.Component == component && r.Reason == reason {
			if err := s.write(state); err != nil {
				return err
			}
			return nil
		}
	}
	state.Reasons = append(state.Reasons, reasonEntry{
		Component: component,
		Reason:    reason,
		SetAt:     now,
	})

	if err := s.write(state); err != nil {
		return err
	}

	s.publish(types.EventRebootFlagSet, fmt.Sprintf("%s: %s", component, reason))
	return nil
}

// Get returns the current reboot status.
func (s *Store) Get() (Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := s.read()
	if err != nil {
		return Status{}, err
	}
	return toStatus(state), nil
}

// Clear removes every pending reboot reason.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.write(fileState{}); err != nil {
		return err
	}
	s.publish(types.EventRebootFlagCleared, "all reasons cleared")
	return nil
}

// RemoveReason removes a single reason (from any component). If it was the
// last remaining reason, the flag becomes unset.
func (s *Store) RemoveReason(reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := s.read()
	if err != nil {
		return err
	}

	kept := state.Reasons[:0]
	for _, r := range state.Reasons {
		if r.Reason != reason {
			kept = append(kept, r)
		}
	}
	state.Reasons = kept

	if err := s.write(state); err != nil {
		return err
	}
	if len(state.Reasons) == 0 {
		s.publish(types.EventRebootFlagCleared, "last reason removed: "+reason)
	}
	return nil
}

// CheckAndClearAfterReboot compares the file's Timestamp (refreshed on every
// Set, not the oldest reason's) against the current kernel uptime. If the
// kernel booted after the flag was last set, the reboot the flag was
// waiting for has already happened, so the flag is cleared. Returns
// cleared=true if it took action.
func (s *Store) CheckAndClearAfterReboot() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := s.read()
	if err != nil {
		return false, err
	}
	if len(state.Reasons) == 0 {
		return false, nil
	}

	uptime, err := s.uptime()
	if err != nil {
		return false, fmt.Errorf("read kernel uptime: %w", err)
	}
	bootTime := time.Now().UTC().Add(-uptime)

	if bootTime.Before(state.Timestamp) {
		return false, nil
	}

	if err := s.write(fileState{}); err != nil {
		return false, err
	}
	s.publish(types.EventRebootFlagCleared, "host rebooted")
	return true, nil
}

func (s *Store) publish(eventType types.EventType, message string) {
	if s.broker == nil {
		return
	}
	s.broker.Publish(&types.Event{
		Type:    eventType,
		Message: message,
	})
}

func toStatus(state fileState) Status {
	status := Status{Required: len(state.Reasons) > 0, SetAt: state.Timestamp}
	for _, r := range state.Reasons {
		status.Reasons = append(status.Reasons, fmt.Sprintf("%s: %s", r.Component, r.Reason))
		status.CreatedBy = r.Component
	}
	return status
}

func (s *Store) read() (fileState, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return fileState{}, nil
	}
	if err != nil {
		return fileState{}, fmt.Errorf("read reboot flag file: %w", err)
	}
	if len(data) == 0 {
		return fileState{}, nil
	}

	var state fileState
	if err := json.Unmarshal(data, &state); err != nil {
		return fileState{}, fmt.Errorf("parse reboot flag file: %w", err)
	}
	return state, nil
}

// write persists state atomically: write to a temp file in the same
// directory, then rename over the target, so a crash mid-write never leaves
// a half-written flag file behind.
func (s *Store) write(state fileState) error {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal reboot flag state: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".reboot-flag-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp reboot flag file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write temp reboot flag file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close temp reboot flag file: %w", err)
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename reboot flag file into place: %w", err)
	}
	return nil
}
