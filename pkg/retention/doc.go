/*
Package retention runs a ticker-driven sweep that deletes completed, failed,
and cancelled tasks older than a configured age via store.DeleteOlderThan.

Grounded on pkg/reconciler's Start/Stop/run ticker shape, same as
pkg/discovery; the two packages share that shape but not a base type
because each has only an interval plus one setting of its own (a maximum
age here, an auto-discovery switch there) and wiring a shared driver would
obscure more than it would save.
*/
package retention
