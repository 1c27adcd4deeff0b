// Package handlers implements the registry.Handler functions for every
// operation zoneweaverd knows how to run. Handlers are grouped into files by
// family (service, network, packaging, identity, files, system, zone) but
// are assembled into the two closed tables the registry needs, All and
// Categories, in this file.
package handlers

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sync"

	"github.com/cuemby/zoneweaver-core/pkg/executor"
	"github.com/cuemby/zoneweaver-core/pkg/orchestrator"
	"github.com/cuemby/zoneweaver-core/pkg/reboot"
	"github.com/cuemby/zoneweaver-core/pkg/registry"
	"github.com/cuemby/zoneweaver-core/pkg/types"
)

// Handlers holds the shared collaborators every handler family needs: a
// command executor and the reboot flag store (some operations, like kernel
// tunable changes, must flag that a reboot is now required). The shutdown
// orchestrator is injected separately; it stops zones through its own
// ZoneStopper, built on the executor, not through this table's handlers.
type Handlers struct {
	exec         *executor.Executor
	rebootFlag   *reboot.Store
	orchestrator *orchestrator.Orchestrator

	zoneLocksMu sync.Mutex
	zoneLocks   map[string]struct{}
}

// New creates the handler table. orchestrator may be nil if shutdown
// composition is not wired (e.g. in a unit test exercising a single family).
func New(exec *executor.Executor, rebootFlag *reboot.Store, orch *orchestrator.Orchestrator) *Handlers {
	return &Handlers{
		exec:         exec,
		rebootFlag:   rebootFlag,
		orchestrator: orch,
		zoneLocks:    make(map[string]struct{}),
	}
}

// lockZone prevents two zone_* operations from running concurrently against
// the same zone. Zone lifecycle operations deliberately have no Category (a
// category lock would serialize unrelated zones too), so this finer-grained
// per-zone-name lock is the mechanism that actually prevents races.
func (h *Handlers) lockZone(zoneName string) bool {
	h.zoneLocksMu.Lock()
	defer h.zoneLocksMu.Unlock()
	if _, busy := h.zoneLocks[zoneName]; busy {
		return false
	}
	h.zoneLocks[zoneName] = struct{}{}
	return true
}

func (h *Handlers) unlockZone(zoneName string) {
	h.zoneLocksMu.Lock()
	defer h.zoneLocksMu.Unlock()
	delete(h.zoneLocks, zoneName)
}

// All returns the closed operation -> Handler map the registry is built
// from.
func (h *Handlers) All() map[string]registry.Handler {
	m := map[string]registry.Handler{
		"service_start":   h.serviceStart,
		"service_stop":    h.serviceStop,
		"service_restart": h.serviceRestart,
		"service_enable":  h.serviceEnable,
		"service_disable": h.serviceDisable,

		"create_vnic":            h.createVnic,
		"delete_vnic":            h.deleteVnic,
		"create_aggregate":       h.createAggregate,
		"modify_aggregate_links": h.modifyAggregateLinks,

		"create_ip_address": h.createIPAddress,
		"delete_ip_address": h.deleteIPAddress,
		"configure_routing": h.configureRouting,

		"pkg_install":   h.pkgInstall,
		"pkg_update":    h.pkgUpdate,
		"pkg_uninstall": h.pkgUninstall,
		"beadm_create":  h.beadmCreate,
		"beadm_activate": h.beadmActivate,
		"repository_add":    h.repositoryAdd,
		"repository_remove": h.repositoryRemove,

		"user_create":  h.userCreate,
		"user_delete":  h.userDelete,
		"group_create": h.groupCreate,
		"role_create":  h.roleCreate,

		"file_write":            h.fileWrite,
		"file_template_render":  h.fileTemplateRender,
		"artifact_download_url": h.artifactDownloadURL,
		"template_apply":        h.templateApply,

		"system_host_shutdown": h.systemHostShutdown,
		"system_host_reboot":   h.systemHostReboot,
		"system_host_poweroff": h.systemHostPoweroff,

		"dhcp_host_add":    h.dhcpHostAdd,
		"dhcp_host_remove": h.dhcpHostRemove,
		"nat_rule_add":     h.natRuleAdd,
		"nat_rule_remove":  h.natRuleRemove,

		"zone_create":  h.zoneCreate,
		"zone_modify":  h.zoneModify,
		"zone_delete":  h.zoneDelete,
		"zone_start":   h.zoneStart,
		"zone_stop":    h.zoneStop,
		"zone_restart": h.zoneRestart,
		"discover":     h.discover,
	}
	return m
}

// Categories returns the closed operation -> Category map the registry uses
// for mutual exclusion. Operations not present here run with no exclusion
// (they may run concurrently with anything, including same-named
// operations); zone lifecycle operations deliberately have no category here
// because contention is scoped to a single zone name, not a class of
// resource, and each zone handler enforces that itself.
func (h *Handlers) Categories() map[string]types.Category {
	return map[string]types.Category{
		"create_vnic":            types.CategoryNetworkDatalink,
		"delete_vnic":            types.CategoryNetworkDatalink,
		"create_aggregate":       types.CategoryNetworkDatalink,
		"modify_aggregate_links": types.CategoryNetworkDatalink,

		"create_ip_address": types.CategoryNetworkIP,
		"delete_ip_address": types.CategoryNetworkIP,
		"configure_routing": types.CategoryNetworkIP,

		"pkg_install":        types.CategoryPackageManagement,
		"pkg_update":         types.CategoryPackageManagement,
		"pkg_uninstall":      types.CategoryPackageManagement,
		"beadm_create":       types.CategoryPackageManagement,
		"beadm_activate":     types.CategoryPackageManagement,
		"repository_add":     types.CategoryPackageManagement,
		"repository_remove":  types.CategoryPackageManagement,

		"user_create":  types.CategoryUserManagement,
		"user_delete":  types.CategoryUserManagement,
		"group_create": types.CategoryUserManagement,
		"role_create":  types.CategoryUserManagement,

		"file_write":           types.CategorySystemConfig,
		"file_template_render": types.CategorySystemConfig,
		"system_host_shutdown": types.CategorySystemConfig,
		"system_host_reboot":   types.CategorySystemConfig,
		"system_host_poweroff": types.CategorySystemConfig,
		"dhcp_host_add":        types.CategorySystemConfig,
		"dhcp_host_remove":     types.CategorySystemConfig,
		"nat_rule_add":         types.CategorySystemConfig,
		"nat_rule_remove":      types.CategorySystemConfig,
	}
}

// identifierCharset is the conservative charset every zone name, device
// name, FMRI, UID/username, and zonecfg property key/value must match
// before it is interpolated into a shell-string or zonecfg batch command.
// It excludes shell metacharacters (;, |, &, $, `, quotes, parens,
// whitespace) and the semicolons zonecfg itself uses to separate
// subcommands within a single quoted argument, so shellquote.Join's outer
// shell-boundary escaping can't be defeated by a crafted value that
// smuggles extra subcommands into a batch string.
var identifierCharset = regexp.MustCompile(`^[A-Za-z0-9._:/,=-]+$`)

// validateIdentifier rejects value if it contains anything outside
// identifierCharset. An empty value is left to the caller's own
// required-field check, so this only guards non-empty, user-sourced
// identifiers.
func validateIdentifier(field, value string) error {
	if value == "" {
		return nil
	}
	if !identifierCharset.MatchString(value) {
		return fmt.Errorf("%s contains characters outside the allowed identifier charset: %q", field, value)
	}
	return nil
}

// decodeMetadata unmarshals a task's metadata into dst, returning a failed
// Result (never an error the caller must additionally wrap) on malformed
// input. Every handler starts with this.
func decodeMetadata(metadata json.RawMessage, dst any) (registry.Result, bool) {
	if len(metadata) == 0 {
		return registry.Result{OK: false, Message: "missing metadata", Err: fmt.Errorf("empty metadata")}, false
	}
	if err := json.Unmarshal(metadata, dst); err != nil {
		return registry.Result{OK: false, Message: "invalid metadata", Err: fmt.Errorf("decode metadata: %w", err)}, false
	}
	return registry.Result{}, true
}

// fromCommandResult converts an executor.Result into a registry.Result.
func fromCommandResult(res executor.Result) registry.Result {
	if res.OK {
		return registry.Result{OK: true, Message: res.Stdout}
	}
	msg := res.Stderr
	if msg == "" {
		msg = res.Err.Error()
	}
	return registry.Result{OK: false, Message: msg, Err: res.Err}
}
