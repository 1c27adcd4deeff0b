package handlers

import (
	"context"
	"fmt"

	"github.com/kballard/go-shellquote"

	"github.com/cuemby/zoneweaver-core/pkg/registry"
)

type pkgMetadata struct {
	Packages []string `json:"packages"`
}

func (h *Handlers) pkgInstall(ctx context.Context, metadata []byte, task registry.TaskRef) registry.Result {
	return h.runPkg(ctx, metadata, task, "install")
}

func (h *Handlers) pkgUpdate(ctx context.Context, metadata []byte, task registry.TaskRef) registry.Result {
	return h.runPkg(ctx, metadata, task, "update")
}

func (h *Handlers) pkgUninstall(ctx context.Context, metadata []byte, task registry.TaskRef) registry.Result {
	return h.runPkg(ctx, metadata, task, "uninstall")
}

func (h *Handlers) runPkg(ctx context.Context, metadata []byte, task registry.TaskRef, subcommand string) registry.Result {
	var m pkgMetadata
	if res, ok := decodeMetadata(metadata, &m); !ok {
		return res
	}
	args := append([]string{"pkg", subcommand}, m.Packages...)
	cmd := shellquote.Join(args...)

	res := h.exec.Execute(ctx, cmd, 0)
	result := fromCommandResult(res)
	if result.OK {
		_ = task.UpdateProgress(ctx, 100, result.Message)
	}
	return result
}

type beadmMetadata struct {
	BEName string `json:"be_name"`
}

func (h *Handlers) beadmCreate(ctx context.Context, metadata []byte, task registry.TaskRef) registry.Result {
	var m beadmMetadata
	if res, ok := decodeMetadata(metadata, &m); !ok {
		return res
	}
	if m.BEName == "" {
		return registry.Result{OK: false, Err: fmt.Errorf("be_name is required")}
	}
	if err := validateIdentifier("be_name", m.BEName); err != nil {
		return registry.Result{OK: false, Err: err}
	}
	cmd := shellquote.Join("beadm", "create", m.BEName)
	return fromCommandResult(h.exec.Execute(ctx, cmd, 0))
}

func (h *Handlers) beadmActivate(ctx context.Context, metadata []byte, task registry.TaskRef) registry.Result {
	var m beadmMetadata
	if res, ok := decodeMetadata(metadata, &m); !ok {
		return res
	}
	if m.BEName == "" {
		return registry.Result{OK: false, Err: fmt.Errorf("be_name is required")}
	}
	if err := validateIdentifier("be_name", m.BEName); err != nil {
		return registry.Result{OK: false, Err: err}
	}
	cmd := shellquote.Join("beadm", "activate", m.BEName)
	result := fromCommandResult(h.exec.Execute(ctx, cmd, 0))
	if result.OK && h.rebootFlag != nil {
		if err := h.rebootFlag.Set("boot environment activated: "+m.BEName, "beadm_activate"); err != nil {
			result.Message += " (warning: failed to record reboot-required flag: " + err.Error() + ")"
		}
	}
	return result
}

type repositoryMetadata struct {
	Name string `json:"name"`
	URI  string `json:"uri"`
}

func (h *Handlers) repositoryAdd(ctx context.Context, metadata []byte, task registry.TaskRef) registry.Result {
	var m repositoryMetadata
	if res, ok := decodeMetadata(metadata, &m); !ok {
		return res
	}
	if m.Name == "" || m.URI == "" {
		return registry.Result{OK: false, Err: fmt.Errorf("name and uri are required")}
	}
	if err := validateIdentifier("name", m.Name); err != nil {
		return registry.Result{OK: false, Err: err}
	}
	cmd := shellquote.Join("pkg", "set-publisher", "-g", m.URI, m.Name)
	return fromCommandResult(h.exec.Execute(ctx, cmd, 0))
}

func (h *Handlers) repositoryRemove(ctx context.Context, metadata []byte, task registry.TaskRef) registry.Result {
	var m repositoryMetadata
	if res, ok := decodeMetadata(metadata, &m); !ok {
		return res
	}
	if m.Name == "" {
		return registry.Result{OK: false, Err: fmt.Errorf("name is required")}
	}
	if err := validateIdentifier("name", m.Name); err != nil {
		return registry.Result{OK: false, Err: err}
	}
	cmd := shellquote.Join("pkg", "unset-publisher", m.Name)
	return fromCommandResult(h.exec.Execute(ctx, cmd, 0))
}
