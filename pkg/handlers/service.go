package handlers

import (
	"context"
	"fmt"

	"github.com/kballard/go-shellquote"

	"github.com/cuemby/zoneweaver-core/pkg/registry"
)

// serviceMetadata is the metadata shape for every service_* operation: the
// SMF FMRI to act on, e.g. "svc:/network/ssh:default".
type serviceMetadata struct {
	FMRI string `json:"fmri"`
}

func (h *Handlers) serviceStart(ctx context.Context, metadata []byte, task registry.TaskRef) registry.Result {
	return h.runSvcadm(ctx, metadata, "enable", "-t")
}

func (h *Handlers) serviceStop(ctx context.Context, metadata []byte, task registry.TaskRef) registry.Result {
	return h.runSvcadm(ctx, metadata, "disable", "-t")
}

func (h *Handlers) serviceRestart(ctx context.Context, metadata []byte, task registry.TaskRef) registry.Result {
	return h.runSvcadm(ctx, metadata, "restart")
}

func (h *Handlers) serviceEnable(ctx context.Context, metadata []byte, task registry.TaskRef) registry.Result {
	return h.runSvcadm(ctx, metadata, "enable")
}

func (h *Handlers) serviceDisable(ctx context.Context, metadata []byte, task registry.TaskRef) registry.Result {
	return h.runSvcadm(ctx, metadata, "disable")
}

func (h *Handlers) runSvcadm(ctx context.Context, metadata []byte, subcommand string, extraFlags ...string) registry.Result {
	var m serviceMetadata
	if res, ok := decodeMetadata(metadata, &m); !ok {
		return res
	}
	if m.FMRI == "" {
		return registry.Result{OK: false, Message: "fmri is required", Err: fmt.Errorf("missing fmri")}
	}
	if err := validateIdentifier("fmri", m.FMRI); err != nil {
		return registry.Result{OK: false, Message: "invalid fmri", Err: err}
	}

	args := append([]string{"svcadm", subcommand}, extraFlags...)
	args = append(args, m.FMRI)
	cmd := shellquote.Join(args...)

	res := h.exec.Execute(ctx, cmd, 0)
	return fromCommandResult(res)
}
