package taskqueue

import "sync"

type entry struct {
	accountID int64
	seq       int64
}

// Queue is the ordered multiset of in-flight tasks, FIFO by enqueue time.
// All operations serialize on one mutex; the queue is bounded by concurrent
// load so linear scans are fine.
type Queue struct {
	mu      sync.Mutex
	entries []entry
}

// New returns an empty queue.
func New() *Queue {
	return &Queue{}
}

// Enqueue appends the task to the back of the queue and returns a Ticket
// whose Release removes it again. Callers defer Release so every exit path
// out of an execution run dequeues exactly once.
func (q *Queue) Enqueue(accountID, seq int64) *Ticket {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.entries = append(q.entries, entry{accountID: accountID, seq: seq})
	return &Ticket{queue: q, seq: seq}
}

// Remove deletes the entry with the given sequence number. Removing an absent
// entry is a no-op so racing success/failure paths may both call it.
func (q *Queue) Remove(seq int64) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, e := range q.entries {
		if e.seq == seq {
			q.entries = append(q.entries[:i], q.entries[i+1:]...)
			return
		}
	}
}

// Position reports the 1-based rank of the task by insertion order, the
// number of tasks ahead of it, and the current queue length. A task that has
// already been removed reports position 0 with the live length; callers must
// tolerate that, since the task may finish between two reads.
func (q *Queue) Position(seq int64) (position, ahead, total int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, e := range q.entries {
		if e.seq == seq {
			return i + 1, i, len(q.entries)
		}
	}
	return 0, 0, len(q.entries)
}

// Tasks returns the sequence numbers queued for one account, in queue order.
func (q *Queue) Tasks(accountID int64) []int64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	var seqs []int64
	for _, e := range q.entries {
		if e.accountID == accountID {
			seqs = append(seqs, e.seq)
		}
	}
	return seqs
}

// Positions returns (seq, position) pairs for one account against the current
// queue, for task-status reporting.
func (q *Queue) Positions(accountID int64) ([]TaskPosition, int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	var out []TaskPosition
	for i, e := range q.entries {
		if e.accountID == accountID {
			out = append(out, TaskPosition{Seq: e.seq, Position: i + 1})
		}
	}
	return out, len(q.entries)
}

// Len returns the current queue length.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

// TaskPosition pairs a queued sequence number with its current 1-based rank.
type TaskPosition struct {
	Seq      int64
	Position int
}

// Ticket represents a queued task. Release dequeues it and is idempotent.
type Ticket struct {
	queue *Queue
	seq   int64
}

// Seq returns the ticket's sequence number.
func (t *Ticket) Seq() int64 {
	return t.seq
}

// Release removes the task from the queue. Safe to call more than once.
func (t *Ticket) Release() {
	if t == nil || t.queue == nil {
		return
	}
	t.queue.Remove(t.seq)
}
