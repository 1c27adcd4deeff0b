package handlers

import (
	"context"
	"fmt"
	"strings"

	"github.com/kballard/go-shellquote"

	"github.com/cuemby/zoneweaver-core/pkg/health"
	"github.com/cuemby/zoneweaver-core/pkg/registry"
)

type vnicMetadata struct {
	Link     string `json:"link"`
	OverLink string `json:"over_link"`
	VLANID   int    `json:"vlan_id"`
}

func (h *Handlers) createVnic(ctx context.Context, metadata []byte, task registry.TaskRef) registry.Result {
	var m vnicMetadata
	if res, ok := decodeMetadata(metadata, &m); !ok {
		return res
	}
	if m.Link == "" || m.OverLink == "" {
		return registry.Result{OK: false, Err: fmt.Errorf("link and over_link are required")}
	}
	if err := validateIdentifier("link", m.Link); err != nil {
		return registry.Result{OK: false, Err: err}
	}
	if err := validateIdentifier("over_link", m.OverLink); err != nil {
		return registry.Result{OK: false, Err: err}
	}

	args := []string{"dladm", "create-vnic", "-l", m.OverLink}
	if m.VLANID > 0 {
		args = append(args, "-v", fmt.Sprintf("%d", m.VLANID))
	}
	args = append(args, m.Link)

	return fromCommandResult(h.exec.Execute(ctx, shellquote.Join(args...), 0))
}

func (h *Handlers) deleteVnic(ctx context.Context, metadata []byte, task registry.TaskRef) registry.Result {
	var m vnicMetadata
	if res, ok := decodeMetadata(metadata, &m); !ok {
		return res
	}
	if m.Link == "" {
		return registry.Result{OK: false, Err: fmt.Errorf("link is required")}
	}
	if err := validateIdentifier("link", m.Link); err != nil {
		return registry.Result{OK: false, Err: err}
	}
	cmd := shellquote.Join("dladm", "delete-vnic", m.Link)
	return fromCommandResult(h.exec.Execute(ctx, cmd, 0))
}

type aggregateMetadata struct {
	Aggregate string   `json:"aggregate"`
	Links     []string `json:"links"`
	Policy    string   `json:"policy"`
}

func (h *Handlers) createAggregate(ctx context.Context, metadata []byte, task registry.TaskRef) registry.Result {
	var m aggregateMetadata
	if res, ok := decodeMetadata(metadata, &m); !ok {
		return res
	}
	if m.Aggregate == "" || len(m.Links) == 0 {
		return registry.Result{OK: false, Err: fmt.Errorf("aggregate and links are required")}
	}
	if err := validateAggregateIdentifiers(m); err != nil {
		return registry.Result{OK: false, Err: err}
	}

	args := []string{"dladm", "create-aggr"}
	if m.Policy != "" {
		args = append(args, "-P", m.Policy)
	}
	for _, l := range m.Links {
		args = append(args, "-l", l)
	}
	args = append(args, m.Aggregate)

	return fromCommandResult(h.exec.Execute(ctx, shellquote.Join(args...), 0))
}

// validateAggregateIdentifiers checks an aggregateMetadata's aggregate name
// and every link name against the conservative identifier charset.
func validateAggregateIdentifiers(m aggregateMetadata) error {
	if err := validateIdentifier("aggregate", m.Aggregate); err != nil {
		return err
	}
	for _, l := range m.Links {
		if err := validateIdentifier("links", l); err != nil {
			return err
		}
	}
	return nil
}

func (h *Handlers) modifyAggregateLinks(ctx context.Context, metadata []byte, task registry.TaskRef) registry.Result {
	var m aggregateMetadata
	if res, ok := decodeMetadata(metadata, &m); !ok {
		return res
	}
	if m.Aggregate == "" || len(m.Links) == 0 {
		return registry.Result{OK: false, Err: fmt.Errorf("aggregate and links are required")}
	}
	if err := validateAggregateIdentifiers(m); err != nil {
		return registry.Result{OK: false, Err: err}
	}

	args := []string{"dladm", "modify-aggr"}
	for _, l := range m.Links {
		args = append(args, "-l", l)
	}
	args = append(args, m.Aggregate)

	return fromCommandResult(h.exec.Execute(ctx, shellquote.Join(args...), 0))
}

type ipAddressMetadata struct {
	Address         string `json:"address"`
	AddrObj         string `json:"addrobj"`
	Interface       string `json:"interface"`
	// VerifyReachable is an optional reachability probe run after the
	// address is up: a "host:port" pair for a TCP dial, or an http:// /
	// https:// URL for an HTTP GET checked against a 2xx/3xx status.
	VerifyReachable string `json:"verify_reachable"`
}

// reachabilityChecker picks a TCP or HTTP checker for target based on
// whether it looks like a URL.
func reachabilityChecker(target string) health.Checker {
	if strings.HasPrefix(target, "http://") || strings.HasPrefix(target, "https://") {
		return health.NewHTTPChecker(target)
	}
	return health.NewTCPChecker(target)
}

func (h *Handlers) createIPAddress(ctx context.Context, metadata []byte, task registry.TaskRef) registry.Result {
	var m ipAddressMetadata
	if res, ok := decodeMetadata(metadata, &m); !ok {
		return res
	}
	if m.Address == "" || m.AddrObj == "" {
		return registry.Result{OK: false, Err: fmt.Errorf("address and addrobj are required")}
	}
	if err := validateIdentifier("address", m.Address); err != nil {
		return registry.Result{OK: false, Err: err}
	}
	if err := validateIdentifier("addrobj", m.AddrObj); err != nil {
		return registry.Result{OK: false, Err: err}
	}
	cmd := shellquote.Join("ipadm", "create-addr", "-T", "static", "-a", m.Address, m.AddrObj)
	res := fromCommandResult(h.exec.Execute(ctx, cmd, 0))
	if !res.OK || m.VerifyReachable == "" {
		return res
	}

	check := reachabilityChecker(m.VerifyReachable).Check(ctx)
	_ = task.UpdateProgress(ctx, 90, check.Message)
	if !check.Healthy {
		return registry.Result{OK: false, Message: "address created but reachability check failed: " + check.Message}
	}
	return res
}

func (h *Handlers) deleteIPAddress(ctx context.Context, metadata []byte, task registry.TaskRef) registry.Result {
	var m ipAddressMetadata
	if res, ok := decodeMetadata(metadata, &m); !ok {
		return res
	}
	if m.AddrObj == "" {
		return registry.Result{OK: false, Err: fmt.Errorf("addrobj is required")}
	}
	if err := validateIdentifier("addrobj", m.AddrObj); err != nil {
		return registry.Result{OK: false, Err: err}
	}
	cmd := shellquote.Join("ipadm", "delete-addr", m.AddrObj)
	return fromCommandResult(h.exec.Execute(ctx, cmd, 0))
}

type routingMetadata struct {
	Enable bool `json:"enable"`
}

func (h *Handlers) configureRouting(ctx context.Context, metadata []byte, task registry.TaskRef) registry.Result {
	var m routingMetadata
	if res, ok := decodeMetadata(metadata, &m); !ok {
		return res
	}
	flag := "-d"
	if m.Enable {
		flag = "-e"
	}
	cmd := shellquote.Join("routeadm", flag, "ipv4-forwarding", "-u")
	return fromCommandResult(h.exec.Execute(ctx, cmd, 0))
}
