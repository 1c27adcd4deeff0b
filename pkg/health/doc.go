/*
Package health provides pluggable health checkers: HTTP, TCP, and exec.

Checker is the common interface (Check(ctx) Result, Type() CheckType); HTTPChecker,
TCPChecker, and ExecChecker are the three implementations. Status accumulates
consecutive successes/failures against a Config (interval, timeout, retries,
start period) to decide whether a dependency should currently be considered
healthy, the same retry/start-period bookkeeping a container health check
would use even though nothing here is container-specific.

zoneweaverd uses this package two ways: pkg/api's /readyz handler runs an
ExecChecker or a direct store ping to decide readiness, and a network_ip
handler can optionally probe reachability after applying an address with a
TCPChecker or HTTPChecker before reporting success.

	checker := health.NewExecChecker([]string{"zoneadm", "-z", "web01", "list"})
	result := checker.Check(ctx)
	if !result.Healthy {
		log.Warn(result.Message)
	}
*/
package health
