// Package sequence issues the process-wide task sequence numbers used for
// queue ordering and user-visible position reporting.
package sequence

import "sync/atomic"

// Allocator hands out strictly increasing sequence numbers. The zero value is
// ready to use and the first call returns 1. A number, once issued, is never
// reused for the lifetime of the process.
type Allocator struct {
	last atomic.Int64
}

// Next returns the next sequence number. Safe for concurrent use; never fails.
func (a *Allocator) Next() int64 {
	return a.last.Add(1)
}

// Current returns the most recently issued sequence number.
func (a *Allocator) Current() int64 {
	return a.last.Load()
}
