// Package executor runs privileged host commands on behalf of task handlers.
// Every handler that needs to shell out (zonecfg, dladm, pkg, useradd, ...)
// goes through Execute rather than calling os/exec directly, so timeout,
// process-group cleanup, and slow-command logging are applied uniformly.
package executor

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/cuemby/zoneweaver-core/pkg/log"
)

// Result is the structured outcome of running a shell command. Execute never
// panics; every failure mode (non-zero exit, timeout, spawn failure) is
// reported through this struct.
type Result struct {
	OK       bool
	Stdout   string
	Stderr   string
	Err      error
	Duration time.Duration
}

// Executor runs commands with a default timeout and a slow-command
// threshold for logging. The timeout is overridable per call; the threshold
// is fixed at construction.
type Executor struct {
	logger                   zerolog.Logger
	defaultTimeout           time.Duration
	performanceThresholdMs   int64
}

// New creates an Executor. defaultTimeout applies when a caller passes
// timeout <= 0 to Execute. performanceThresholdMs controls when a "slow
// command" warning is logged.
func New(defaultTimeout time.Duration, performanceThresholdMs int64) *Executor {
	return &Executor{
		logger:                 log.WithComponent("executor"),
		defaultTimeout:         defaultTimeout,
		performanceThresholdMs: performanceThresholdMs,
	}
}

// Execute runs commandLine as `sh -c <commandLine>`, never as a parsed
// argv — handlers rely on shell redirection, pipes, heredocs, and pfexec
// prefixes, so a single shell invocation is the only contract that supports
// all of them. The subprocess runs in its own process group so a timeout
// kills the whole tree, not just the immediate sh process.
func (e *Executor) Execute(ctx context.Context, commandLine string, timeout time.Duration) Result {
	start := time.Now()
	if timeout <= 0 {
		timeout = e.defaultTimeout
	}

	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(execCtx, "sh", "-c", commandLine)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	// On timeout, kill the whole group so a descendant still holding the
	// output pipes cannot keep Run from returning.
	cmd.Cancel = func() error { return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL) }

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	duration := time.Since(start)

	result := Result{
		Stdout:   strings.TrimSpace(stdout.String()),
		Stderr:   strings.TrimSpace(stderr.String()),
		Duration: duration,
	}

	if execCtx.Err() == context.DeadlineExceeded {
		e.killProcessGroup(cmd)
		result.OK = false
		result.Err = fmt.Errorf("command timed out after %dms", timeout.Milliseconds())
	} else if runErr != nil {
		result.OK = false
		if result.Stderr != "" {
			result.Err = fmt.Errorf("%s", result.Stderr)
		} else {
			result.Err = runErr
		}
	} else {
		result.OK = true
	}

	if e.performanceThresholdMs > 0 && duration.Milliseconds() > e.performanceThresholdMs {
		e.logger.Warn().
			Str("command", commandLine).
			Dur("duration", duration).
			Msg("slow command")
	}

	return result
}

// killProcessGroup sends SIGKILL to the negative PID (the process group),
// so descendants spawned by the shell (e.g. a backgrounded pipeline) die
// with the timed-out command rather than being orphaned.
func (e *Executor) killProcessGroup(cmd *exec.Cmd) {
	if cmd.Process == nil {
		return
	}
	if err := syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL); err != nil {
		e.logger.Debug().Err(err).Int("pid", cmd.Process.Pid).Msg("failed to kill process group")
	}
}
