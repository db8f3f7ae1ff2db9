// Package taskqueue tracks in-flight tasks for queue position and ETA
// reporting.
//
// It is deliberately not a scheduler: execution order is decided by the
// worker pool, and this queue only answers "where is my task" questions.
// Entries are identified by their sequence number and removed exactly once
// via the Ticket returned at enqueue time.
package taskqueue
