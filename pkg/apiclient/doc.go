/*
Package apiclient is a thin net/http + encoding/json client over
zoneweaverd's admin API, used by cmd/zoneweaverd's CLI subcommands for
task listing, inspection, cancellation, and creation.

There is no certificate bootstrap here, since the admin API carries no
auth layer of its own.
*/
package apiclient
