package handlers

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/kballard/go-shellquote"

	"github.com/cuemby/zoneweaver-core/pkg/registry"
)

const (
	dhcpConfPath = "/etc/dhcpd.conf"
	natConfPath  = "/etc/ipf/ipnat.conf"
)

type dhcpHostMetadata struct {
	Hostname  string `json:"hostname"`
	MAC       string `json:"mac"`
	IPAddress string `json:"ip_address"`
}

// dhcpHostAdd appends a static host reservation line to dhcpd.conf and
// restarts the dhcp server so the new lease takes effect immediately.
func (h *Handlers) dhcpHostAdd(ctx context.Context, metadata []byte, task registry.TaskRef) registry.Result {
	var m dhcpHostMetadata
	if res, ok := decodeMetadata(metadata, &m); !ok {
		return res
	}
	if m.Hostname == "" || m.MAC == "" || m.IPAddress == "" {
		return registry.Result{OK: false, Err: fmt.Errorf("hostname, mac, and ip_address are required")}
	}
	if err := validateDHCPIdentifiers(m); err != nil {
		return registry.Result{OK: false, Err: err}
	}

	entry := fmt.Sprintf("host %s { hardware ethernet %s; fixed-address %s; }\n", m.Hostname, m.MAC, m.IPAddress)
	if err := appendUniqueLine(dhcpConfPath, entry, m.Hostname); err != nil {
		return registry.Result{OK: false, Err: err}
	}

	return fromCommandResult(h.exec.Execute(ctx, shellquote.Join("svcadm", "restart", "svc:/network/dhcp/server:ipv4"), 0))
}

// dhcpHostRemove removes any reservation line mentioning hostname and
// restarts the dhcp server.
func (h *Handlers) dhcpHostRemove(ctx context.Context, metadata []byte, task registry.TaskRef) registry.Result {
	var m dhcpHostMetadata
	if res, ok := decodeMetadata(metadata, &m); !ok {
		return res
	}
	if m.Hostname == "" {
		return registry.Result{OK: false, Err: fmt.Errorf("hostname is required")}
	}
	if err := validateIdentifier("hostname", m.Hostname); err != nil {
		return registry.Result{OK: false, Err: err}
	}

	if err := removeLinesContaining(dhcpConfPath, "host "+m.Hostname+" "); err != nil {
		return registry.Result{OK: false, Err: err}
	}

	return fromCommandResult(h.exec.Execute(ctx, shellquote.Join("svcadm", "restart", "svc:/network/dhcp/server:ipv4"), 0))
}

// validateDHCPIdentifiers checks every field of a dhcpHostMetadata against
// the conservative identifier charset: a crafted hostname, mac, or
// ip_address containing a newline could otherwise inject an extra line
// into dhcpd.conf.
func validateDHCPIdentifiers(m dhcpHostMetadata) error {
	if err := validateIdentifier("hostname", m.Hostname); err != nil {
		return err
	}
	if err := validateIdentifier("mac", m.MAC); err != nil {
		return err
	}
	if err := validateIdentifier("ip_address", m.IPAddress); err != nil {
		return err
	}
	return nil
}

type natRuleMetadata struct {
	RuleID     string `json:"rule_id"`
	InternalIf string `json:"internal_if"`
	ExternalIf string `json:"external_if"`
}

// natRuleAdd appends an ipnat rule and reloads ipfilter's NAT table.
func (h *Handlers) natRuleAdd(ctx context.Context, metadata []byte, task registry.TaskRef) registry.Result {
	var m natRuleMetadata
	if res, ok := decodeMetadata(metadata, &m); !ok {
		return res
	}
	if m.RuleID == "" || m.InternalIf == "" || m.ExternalIf == "" {
		return registry.Result{OK: false, Err: fmt.Errorf("rule_id, internal_if, and external_if are required")}
	}
	if err := validateNATIdentifiers(m); err != nil {
		return registry.Result{OK: false, Err: err}
	}

	entry := fmt.Sprintf("# rule %s\nmap %s %s/24 -> 0/32\n", m.RuleID, m.ExternalIf, m.InternalIf)
	if err := appendUniqueLine(natConfPath, entry, "# rule "+m.RuleID); err != nil {
		return registry.Result{OK: false, Err: err}
	}

	return fromCommandResult(h.exec.Execute(ctx, shellquote.Join("ipnat", "-CF", "-f", natConfPath), 0))
}

// natRuleRemove removes the rule block tagged with rule_id and reloads.
func (h *Handlers) natRuleRemove(ctx context.Context, metadata []byte, task registry.TaskRef) registry.Result {
	var m natRuleMetadata
	if res, ok := decodeMetadata(metadata, &m); !ok {
		return res
	}
	if m.RuleID == "" {
		return registry.Result{OK: false, Err: fmt.Errorf("rule_id is required")}
	}
	if err := validateIdentifier("rule_id", m.RuleID); err != nil {
		return registry.Result{OK: false, Err: err}
	}

	data, err := os.ReadFile(natConfPath)
	if err != nil && !os.IsNotExist(err) {
		return registry.Result{OK: false, Err: err}
	}
	if err == nil {
		lines := strings.Split(string(data), "\n")
		var kept []string
		for i := 0; i < len(lines); i++ {
			if lines[i] == "# rule "+m.RuleID {
				i++ // also drop the map line natRuleAdd writes right after the tag
				continue
			}
			kept = append(kept, lines[i])
		}
		if err := atomicWriteFile(natConfPath, []byte(strings.Join(kept, "\n")), 0644); err != nil {
			return registry.Result{OK: false, Err: err}
		}
	}

	return fromCommandResult(h.exec.Execute(ctx, shellquote.Join("ipnat", "-CF", "-f", natConfPath), 0))
}

// validateNATIdentifiers checks every field of a natRuleMetadata against
// the conservative identifier charset, for the same config-injection
// reason as validateDHCPIdentifiers.
func validateNATIdentifiers(m natRuleMetadata) error {
	if err := validateIdentifier("rule_id", m.RuleID); err != nil {
		return err
	}
	if err := validateIdentifier("internal_if", m.InternalIf); err != nil {
		return err
	}
	if err := validateIdentifier("external_if", m.ExternalIf); err != nil {
		return err
	}
	return nil
}

// appendUniqueLine appends entry to path unless a line already contains
// marker, in which case it is left untouched (idempotent re-application).
func appendUniqueLine(path, entry, marker string) error {
	existing, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if strings.Contains(string(existing), marker) {
		return nil
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	if _, err := f.WriteString(entry); err != nil {
		return fmt.Errorf("append to %s: %w", path, err)
	}
	return nil
}

// removeLinesContaining rewrites path atomically, dropping every line that
// contains marker.
func removeLinesContaining(path, marker string) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("open %s: %w", path, err)
	}

	var kept strings.Builder
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.Contains(line, marker) {
			continue
		}
		kept.WriteString(line)
		kept.WriteString("\n")
	}
	scanErr := scanner.Err()
	f.Close()
	if scanErr != nil {
		return fmt.Errorf("scan %s: %w", path, scanErr)
	}

	return atomicWriteFile(path, []byte(kept.String()), 0644)
}
