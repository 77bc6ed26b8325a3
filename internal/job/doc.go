// Package job provides background processing: a database-backed runner
// with a worker pool, retry accounting, and recovery of unfinished work,
// plus the concrete jobs for task notifications, bulk task updates, and
// report generation.
package job
