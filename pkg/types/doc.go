/*
Package types defines the core data structures shared across zoneweaver-core.

It holds the Task record (the durable unit of work the scheduler drives),
the static operation-category enumeration, a flat reboot-flag view, and
the in-memory structures the Zone-Shutdown Orchestrator derives from zone
inventory. Nothing in this package performs I/O; it is pure data shared by
pkg/store, pkg/scheduler, pkg/registry, pkg/orchestrator, and pkg/api.
*/
package types
