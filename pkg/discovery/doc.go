/*
Package discovery periodically enqueues a "discover" task via the ordinary
task queue rather than talking to zoneadm directly, so zone inventory
refreshes go through the same category locking, logging, and progress
reporting as any other operation.

Grounded on pkg/reconciler's Start/Stop/run ticker shape, generalized from
"reconcile cluster state every 10s" to "enqueue a discover task ~5s after
startup, then every discovery_interval if auto_discovery is enabled."
*/
package discovery
