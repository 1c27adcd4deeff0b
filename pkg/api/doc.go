/*
Package api serves zoneweaverd's HTTP admin surface over chi: task listing,
creation, and cancellation; the zone-shutdown orchestrator's enable/disable/
test/status endpoints; Prometheus metrics; and liveness/readiness probes.

It has no authentication or TLS layer: this is a single-host admin API
meant to sit behind an operator's own reverse proxy or bastion, not a
multi-tenant cluster control plane.
*/
package api
