package handlers

import (
	"context"
	"fmt"

	"github.com/kballard/go-shellquote"

	"github.com/cuemby/zoneweaver-core/pkg/registry"
)

type userMetadata struct {
	Username string `json:"username"`
	HomeDir  string `json:"home_dir"`
	Shell    string `json:"shell"`
	Groups   string `json:"groups"`
}

func (h *Handlers) userCreate(ctx context.Context, metadata []byte, task registry.TaskRef) registry.Result {
	var m userMetadata
	if res, ok := decodeMetadata(metadata, &m); !ok {
		return res
	}
	if m.Username == "" {
		return registry.Result{OK: false, Err: fmt.Errorf("username is required")}
	}
	if err := validateUserIdentifiers(m); err != nil {
		return registry.Result{OK: false, Err: err}
	}

	args := []string{"useradd", "-m"}
	if m.HomeDir != "" {
		args = append(args, "-d", m.HomeDir)
	}
	if m.Shell != "" {
		args = append(args, "-s", m.Shell)
	}
	if m.Groups != "" {
		args = append(args, "-G", m.Groups)
	}
	args = append(args, m.Username)

	return fromCommandResult(h.exec.Execute(ctx, shellquote.Join(args...), 0))
}

// validateUserIdentifiers checks every identifier field of a userMetadata
// against the conservative charset: username, home_dir, shell (paths), and
// groups (a comma-separated list, already within the allowed charset).
func validateUserIdentifiers(m userMetadata) error {
	if err := validateIdentifier("username", m.Username); err != nil {
		return err
	}
	if err := validateIdentifier("home_dir", m.HomeDir); err != nil {
		return err
	}
	if err := validateIdentifier("shell", m.Shell); err != nil {
		return err
	}
	if err := validateIdentifier("groups", m.Groups); err != nil {
		return err
	}
	return nil
}

func (h *Handlers) userDelete(ctx context.Context, metadata []byte, task registry.TaskRef) registry.Result {
	var m userMetadata
	if res, ok := decodeMetadata(metadata, &m); !ok {
		return res
	}
	if m.Username == "" {
		return registry.Result{OK: false, Err: fmt.Errorf("username is required")}
	}
	if err := validateIdentifier("username", m.Username); err != nil {
		return registry.Result{OK: false, Err: err}
	}
	cmd := shellquote.Join("userdel", "-r", m.Username)
	return fromCommandResult(h.exec.Execute(ctx, cmd, 0))
}

type groupMetadata struct {
	Name string `json:"name"`
}

func (h *Handlers) groupCreate(ctx context.Context, metadata []byte, task registry.TaskRef) registry.Result {
	var m groupMetadata
	if res, ok := decodeMetadata(metadata, &m); !ok {
		return res
	}
	if m.Name == "" {
		return registry.Result{OK: false, Err: fmt.Errorf("name is required")}
	}
	if err := validateIdentifier("name", m.Name); err != nil {
		return registry.Result{OK: false, Err: err}
	}
	cmd := shellquote.Join("groupadd", m.Name)
	return fromCommandResult(h.exec.Execute(ctx, cmd, 0))
}

type roleMetadata struct {
	Name        string `json:"name"`
	AuthProfile string `json:"auth_profile"`
}

func (h *Handlers) roleCreate(ctx context.Context, metadata []byte, task registry.TaskRef) registry.Result {
	var m roleMetadata
	if res, ok := decodeMetadata(metadata, &m); !ok {
		return res
	}
	if m.Name == "" {
		return registry.Result{OK: false, Err: fmt.Errorf("name is required")}
	}
	if err := validateIdentifier("name", m.Name); err != nil {
		return registry.Result{OK: false, Err: err}
	}
	if err := validateIdentifier("auth_profile", m.AuthProfile); err != nil {
		return registry.Result{OK: false, Err: err}
	}

	args := []string{"roleadd", "-m"}
	if m.AuthProfile != "" {
		args = append(args, "-P", m.AuthProfile)
	}
	args = append(args, m.Name)

	return fromCommandResult(h.exec.Execute(ctx, shellquote.Join(args...), 0))
}
