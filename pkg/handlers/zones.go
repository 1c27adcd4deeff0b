package handlers

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/kballard/go-shellquote"

	"github.com/cuemby/zoneweaver-core/pkg/registry"
	"github.com/cuemby/zoneweaver-core/pkg/types"
)

// defaultZonePriority is used when a zone carries no parseable
// boot_priority/shutdown_priority attribute, per the orchestrator's
// inventory algorithm.
const defaultZonePriority = 95

type zoneMetadata struct {
	ZoneName   string            `json:"zone_name"`
	Brand      string            `json:"brand"`
	Properties map[string]string `json:"properties"`
}

func (h *Handlers) zoneCreate(ctx context.Context, metadata []byte, task registry.TaskRef) registry.Result {
	var m zoneMetadata
	if res, ok := decodeMetadata(metadata, &m); !ok {
		return res
	}
	if m.ZoneName == "" {
		return registry.Result{OK: false, Err: fmt.Errorf("zone_name is required")}
	}
	if err := validateIdentifier("zone_name", m.ZoneName); err != nil {
		return registry.Result{OK: false, Err: err}
	}
	if err := validateIdentifier("brand", m.Brand); err != nil {
		return registry.Result{OK: false, Err: err}
	}
	if !h.lockZone(m.ZoneName) {
		return registry.Result{OK: false, Err: fmt.Errorf("another operation is already in progress for zone %s", m.ZoneName)}
	}
	defer h.unlockZone(m.ZoneName)

	brand := m.Brand
	if brand == "" {
		brand = "bhyve"
	}
	create := fmt.Sprintf("create -b; set brand=%s; set zonepath=/zones/%s; verify; commit", brand, m.ZoneName)
	cmd := shellquote.Join("zonecfg", "-z", m.ZoneName, create)

	return fromCommandResult(h.exec.Execute(ctx, cmd, 0))
}

func (h *Handlers) zoneModify(ctx context.Context, metadata []byte, task registry.TaskRef) registry.Result {
	var m zoneMetadata
	if res, ok := decodeMetadata(metadata, &m); !ok {
		return res
	}
	if m.ZoneName == "" {
		return registry.Result{OK: false, Err: fmt.Errorf("zone_name is required")}
	}
	if err := validateIdentifier("zone_name", m.ZoneName); err != nil {
		return registry.Result{OK: false, Err: err}
	}
	if !h.lockZone(m.ZoneName) {
		return registry.Result{OK: false, Err: fmt.Errorf("another operation is already in progress for zone %s", m.ZoneName)}
	}
	defer h.unlockZone(m.ZoneName)

	if len(m.Properties) == 0 {
		return registry.Result{OK: true, Message: "no properties to modify"}
	}

	batch := ""
	for k, v := range m.Properties {
		if err := validateIdentifier("properties key", k); err != nil {
			return registry.Result{OK: false, Err: err}
		}
		if err := validateIdentifier("properties value", v); err != nil {
			return registry.Result{OK: false, Err: err}
		}
		batch += fmt.Sprintf("set %s=%s; ", k, v)
	}
	batch += "verify; commit"
	cmd := shellquote.Join("zonecfg", "-z", m.ZoneName, batch)

	return fromCommandResult(h.exec.Execute(ctx, cmd, 0))
}

func (h *Handlers) zoneDelete(ctx context.Context, metadata []byte, task registry.TaskRef) registry.Result {
	var m zoneMetadata
	if res, ok := decodeMetadata(metadata, &m); !ok {
		return res
	}
	if m.ZoneName == "" {
		return registry.Result{OK: false, Err: fmt.Errorf("zone_name is required")}
	}
	if err := validateIdentifier("zone_name", m.ZoneName); err != nil {
		return registry.Result{OK: false, Err: err}
	}
	if !h.lockZone(m.ZoneName) {
		return registry.Result{OK: false, Err: fmt.Errorf("another operation is already in progress for zone %s", m.ZoneName)}
	}
	defer h.unlockZone(m.ZoneName)

	cmd := shellquote.Join("zonecfg", "-z", m.ZoneName, "delete -F")
	return fromCommandResult(h.exec.Execute(ctx, cmd, 0))
}

func (h *Handlers) zoneStart(ctx context.Context, metadata []byte, task registry.TaskRef) registry.Result {
	var m zoneMetadata
	if res, ok := decodeMetadata(metadata, &m); !ok {
		return res
	}
	if m.ZoneName == "" {
		return registry.Result{OK: false, Err: fmt.Errorf("zone_name is required")}
	}
	if err := validateIdentifier("zone_name", m.ZoneName); err != nil {
		return registry.Result{OK: false, Err: err}
	}
	if !h.lockZone(m.ZoneName) {
		return registry.Result{OK: false, Err: fmt.Errorf("another operation is already in progress for zone %s", m.ZoneName)}
	}
	defer h.unlockZone(m.ZoneName)

	cmd := shellquote.Join("zoneadm", "-z", m.ZoneName, "boot")
	return fromCommandResult(h.exec.Execute(ctx, cmd, 0))
}

func (h *Handlers) zoneStop(ctx context.Context, metadata []byte, task registry.TaskRef) registry.Result {
	var m zoneMetadata
	if res, ok := decodeMetadata(metadata, &m); !ok {
		return res
	}
	if m.ZoneName == "" {
		return registry.Result{OK: false, Err: fmt.Errorf("zone_name is required")}
	}
	if err := validateIdentifier("zone_name", m.ZoneName); err != nil {
		return registry.Result{OK: false, Err: err}
	}
	if !h.lockZone(m.ZoneName) {
		return registry.Result{OK: false, Err: fmt.Errorf("another operation is already in progress for zone %s", m.ZoneName)}
	}
	defer h.unlockZone(m.ZoneName)

	cmd := shellquote.Join("zoneadm", "-z", m.ZoneName, "halt")
	return fromCommandResult(h.exec.Execute(ctx, cmd, 0))
}

func (h *Handlers) zoneRestart(ctx context.Context, metadata []byte, task registry.TaskRef) registry.Result {
	var m zoneMetadata
	if res, ok := decodeMetadata(metadata, &m); !ok {
		return res
	}
	if m.ZoneName == "" {
		return registry.Result{OK: false, Err: fmt.Errorf("zone_name is required")}
	}
	if err := validateIdentifier("zone_name", m.ZoneName); err != nil {
		return registry.Result{OK: false, Err: err}
	}
	if !h.lockZone(m.ZoneName) {
		return registry.Result{OK: false, Err: fmt.Errorf("another operation is already in progress for zone %s", m.ZoneName)}
	}
	defer h.unlockZone(m.ZoneName)

	cmd := shellquote.Join("zoneadm", "-z", m.ZoneName, "reboot")
	return fromCommandResult(h.exec.Execute(ctx, cmd, 0))
}

// discover lists every zone known to zoneadm along with its current state,
// run periodically by pkg/discovery and once on demand via the API. It
// takes no zone-specific lock since it touches no single zone's
// configuration.
func (h *Handlers) discover(ctx context.Context, metadata []byte, task registry.TaskRef) registry.Result {
	cmd := shellquote.Join("zoneadm", "list", "-cp")
	res := h.exec.Execute(ctx, cmd, 0)
	if !res.OK {
		return fromCommandResult(res)
	}
	return registry.Result{OK: true, Message: res.Stdout}
}

// ZoneInventory lists every non-global zone known to zoneadm, running or
// not, with its shutdown priority. pkg/api's /zones/priorities and
// orchestration test endpoints read it; the system_host_* handlers do not,
// and stop only the zones listed in their task metadata.
func (h *Handlers) ZoneInventory(ctx context.Context) ([]types.ZoneInfo, error) {
	cmd := shellquote.Join("zoneadm", "list", "-cp")
	res := h.exec.Execute(ctx, cmd, 0)
	if !res.OK {
		if res.Err != nil {
			return nil, res.Err
		}
		return nil, fmt.Errorf("zoneadm list failed: %s", res.Stderr)
	}

	var zones []types.ZoneInfo
	for _, line := range strings.Split(strings.TrimSpace(res.Stdout), "\n") {
		if line == "" {
			continue
		}
		// zoneid:zonename:state:zonepath:uuid:brand:ip-type
		fields := strings.Split(line, ":")
		if len(fields) < 3 || fields[1] == "global" {
			continue
		}
		zones = append(zones, types.ZoneInfo{
			Name:     fields[1],
			Priority: h.zonePriority(ctx, fields[1]),
			Running:  fields[2] == "running",
		})
	}
	return zones, nil
}

// zonePriority reads the shutdown_priority (falling back to boot_priority)
// generic attribute configured on a zone, defaulting when neither is set
// or parseable in [1,100].
func (h *Handlers) zonePriority(ctx context.Context, zoneName string) int {
	for _, attr := range []string{"shutdown_priority", "boot_priority"} {
		cmd := shellquote.Join("zonecfg", "-z", zoneName, fmt.Sprintf("info attr name=%s", attr))
		res := h.exec.Execute(ctx, cmd, 0)
		if !res.OK {
			continue
		}
		if p, ok := parseAttrValue(res.Stdout); ok && p >= 1 && p <= 100 {
			return p
		}
	}
	return defaultZonePriority
}

// parseAttrValue extracts the integer "value: N" line from zonecfg's
// "info attr" output.
func parseAttrValue(output string) (int, bool) {
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "value:") {
			continue
		}
		v := strings.TrimSpace(strings.TrimPrefix(line, "value:"))
		n, err := strconv.Atoi(v)
		if err != nil {
			return 0, false
		}
		return n, true
	}
	return 0, false
}
