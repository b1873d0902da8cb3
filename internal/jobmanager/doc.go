// Package jobmanager provides functionality for running and supervising
// agent worker processes as Jobs.
//
// A Job represents one submitted worker run. The Manager creates Jobs,
// identified by UUID, spawns the worker process with its task and config
// materialized as temporary input files, captures the process output to a
// per-job log file, and tracks the Job through its lifecycle:
//
//	pending -> running -> {completed, failed, cancelled}
//
// Terminal states are absorbing. A running Job whose process disappears
// without an exit notification is lazily reconciled to completed via a
// liveness probe; a clean exit, a crash that left no marker, and a pid
// reused by an unrelated process are indistinguishable to the probe, so
// completed is assumed.
package jobmanager
