package handlers

import (
	"context"
	"fmt"
	"time"

	"github.com/kballard/go-shellquote"

	"github.com/cuemby/zoneweaver-core/pkg/orchestrator"
	"github.com/cuemby/zoneweaver-core/pkg/registry"
	"github.com/cuemby/zoneweaver-core/pkg/types"
)

type systemHostMetadata struct {
	ZoneOrchestration *zoneOrchestrationMetadata `json:"zone_orchestration"`
}

type zoneOrchestrationMetadata struct {
	Zones             []types.ZoneInfo `json:"zones"`
	Strategy          string           `json:"strategy"`
	PriorityDelaySecs int              `json:"priority_delay_seconds"`
	ZoneTimeoutSecs   int              `json:"zone_timeout_seconds"`
	FailureAction     string           `json:"failure_action"`
}

func (h *Handlers) systemHostShutdown(ctx context.Context, metadata []byte, task registry.TaskRef) registry.Result {
	return h.systemHostPowerChange(ctx, metadata, task, "shutdown", "-i5", "-g0", "-y")
}

func (h *Handlers) systemHostReboot(ctx context.Context, metadata []byte, task registry.TaskRef) registry.Result {
	return h.systemHostPowerChange(ctx, metadata, task, "shutdown", "-i6", "-g0", "-y")
}

func (h *Handlers) systemHostPoweroff(ctx context.Context, metadata []byte, task registry.TaskRef) registry.Result {
	return h.systemHostPowerChange(ctx, metadata, task, "shutdown", "-i5", "-g0", "-y")
}

// systemHostPowerChange runs zone orchestration first, if requested, then
// issues the host-level power command. A failed orchestration (when
// failure_action is abort) prevents the power command from running at all,
// since the whole point of orchestration is to stop zones cleanly before
// the kernel goes away under them.
func (h *Handlers) systemHostPowerChange(ctx context.Context, metadata []byte, task registry.TaskRef, command string, args ...string) registry.Result {
	var m systemHostMetadata
	if len(metadata) > 0 {
		if res, ok := decodeMetadata(metadata, &m); !ok {
			return res
		}
	}

	if m.ZoneOrchestration != nil && h.orchestrator != nil {
		failureAction := orchestrator.FailureActionContinue
		if m.ZoneOrchestration.FailureAction == string(orchestrator.FailureActionAbort) {
			failureAction = orchestrator.FailureActionAbort
		}
		plan := orchestrator.Plan{
			Zones:         m.ZoneOrchestration.Zones,
			Strategy:      orchestrator.Strategy(m.ZoneOrchestration.Strategy),
			PriorityDelay: time.Duration(m.ZoneOrchestration.PriorityDelaySecs) * time.Second,
			ZoneTimeout:   time.Duration(m.ZoneOrchestration.ZoneTimeoutSecs) * time.Second,
			FailureAction: failureAction,
		}
		results, err := h.orchestrator.Run(ctx, plan)
		stopped := 0
		for _, r := range results {
			if r.OK {
				stopped++
			}
		}
		_ = task.UpdateProgress(ctx, 50, fmt.Sprintf("stopped %d zones before host power change", stopped))
		if err != nil {
			return registry.Result{OK: false, Message: "zone orchestration failed", Err: err}
		}
	}

	cmd := shellquote.Join(append([]string{command}, args...)...)
	return fromCommandResult(h.exec.Execute(ctx, cmd, 0))
}
