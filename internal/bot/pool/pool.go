// Package pool runs queued task executions on a fixed set of workers so a
// burst of submissions cannot spawn unbounded goroutines.
package pool

import (
	"context"
	"sync"
)

// Runner is one unit of work executed by a pool worker.
type Runner func(ctx context.Context)

// Pool executes runners on a bounded number of workers with a bounded
// backlog. Submit never blocks; a full backlog is reported to the caller.
type Pool struct {
	workers int
	jobs    chan Runner

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool
}

// New sizes a pool. Non-positive values fall back to a single worker and a
// backlog of one.
func New(workers, depth int) *Pool {
	if workers < 1 {
		workers = 1
	}
	if depth < 1 {
		depth = 1
	}
	return &Pool{
		workers: workers,
		jobs:    make(chan Runner, depth),
	}
}

// Start launches the workers. Calling Start twice is a no-op.
func (p *Pool) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return
	}
	p.started = true

	ctx, p.cancel = context.WithCancel(ctx)
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.work(ctx)
	}
}

func (p *Pool) work(ctx context.Context) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case run, ok := <-p.jobs:
			if !ok {
				return
			}
			run(ctx)
		}
	}
}

// Submit hands a runner to the pool. It returns false when the backlog is
// full or the pool is not running; the caller rejects the task rather than
// waiting.
func (p *Pool) Submit(run Runner) bool {
	p.mu.Lock()
	started := p.started
	p.mu.Unlock()
	if !started || run == nil {
		return false
	}
	select {
	case p.jobs <- run:
		return true
	default:
		return false
	}
}

// Stop cancels in-flight work and waits for the workers to exit.
func (p *Pool) Stop() {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}
	p.started = false
	cancel := p.cancel
	p.mu.Unlock()

	cancel()
	p.wg.Wait()
}
