/*
Package metrics provides Prometheus metrics collection and exposition for
zoneweaverd: task throughput and status gauges, scheduling/handler/command
latency histograms, category-lock wait time, and orchestration/retention/
discovery counters, all registered once via init() and served by Handler().

Collector polls the task store on a fixed interval to keep the gauge-shaped
metrics (tasks by status) current without every store write needing to touch
Prometheus directly. Timer is a small helper for the common
"start a clock, observe the duration on a histogram" pattern used by the
scheduler and the retention cleaner.

HealthChecker (health.go) is a separate, smaller concern: it aggregates named
component health (currently just "store") into the status pkg/api reports at
/healthz, independent of the Prometheus metric registry. pkg/api builds its
/readyz body itself and does not mount HealthHandler or ReadyHandler.
*/
package metrics
