/*
Package log provides structured logging for zoneweaverd using zerolog.

It wraps zerolog with a package-level Logger, a Config for level/format/output
selection, and helper constructors for component- and request-scoped child
loggers (WithComponent, WithZoneName, WithOperation, WithCategory, WithTaskID).

# Usage

	log.Init(log.Config{Level: log.InfoLevel, JSONOutput: true, Output: os.Stdout})

	schedulerLog := log.WithComponent("scheduler")
	schedulerLog.Info().Str("task_id", id).Msg("task scheduled")

	taskLog := log.WithTaskID(task.ID).With().Str("operation", task.Operation).Logger()
	taskLog.Error().Err(err).Msg("handler returned error")

# Levels

Debug is for local troubleshooting only; Info is the default production level;
Warn/Error cover degraded operation and failed operations respectively. Fatal
logs and calls os.Exit(1), reserved for unrecoverable startup errors (e.g. the
task store cannot be opened).

# Log rotation and shipping

This package has no opinion on where logs end up. It writes structured events
to an io.Writer; rotation (logrotate, systemd-journald) and shipping (Loki,
CloudWatch) are an operator concern outside this repository.
*/
package log
