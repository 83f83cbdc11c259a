// Package jobs fans data-parallel work out over a bounded set of reusable goroutines.
// Every call blocks until all of its tasks finish, which gives each pipeline stage
// an explicit barrier instead of a dependency graph.
package jobs

import (
	"runtime"
	"sync"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
)

// DefaultQueueSize is the task queue capacity of a pool.
const DefaultQueueSize = 256

// Pool runs batches of work and waits for them to complete.
type Pool interface {
	// Workers returns the number of worker goroutines backing the pool.
	//
	// Returns:
	//   - int: the worker count (at least 1)
	Workers() int

	// ForEachBatch splits [0, n) into at most batches contiguous ranges and runs fn once per range.
	// Each range receives a distinct batch index in [0, batches), so callers can give each
	// batch exclusively owned scratch state.
	//
	// Parameters:
	//   - n: the number of items
	//   - batches: the maximum number of ranges; values < 1 use Workers()
	//   - fn: callback receiving the batch index and the half-open item range
	ForEachBatch(n, batches int, fn func(batch, start, end int))

	// Run executes every function concurrently and waits for all of them.
	//
	// Parameters:
	//   - fns: the functions to run
	Run(fns ...func())

	// Release stops the worker goroutines.
	Release()
}

type pool struct {
	workers int
	inner   worker.DynamicWorkerPool
}

var _ Pool = (*pool)(nil)

// NewPool creates a pool backed by a dynamic worker pool.
// A worker count < 1 defaults to runtime.NumCPU()-1 (minimum 1).
//
// Parameters:
//   - workers: the number of worker goroutines
//
// Returns:
//   - Pool: the new pool
func NewPool(workers int) Pool {
	if workers < 1 {
		workers = max(runtime.NumCPU()-1, 1)
	}
	return &pool{
		workers: workers,
		inner:   worker.NewDynamicWorkerPool(workers, DefaultQueueSize, 1*time.Second),
	}
}

func (p *pool) Workers() int {
	return p.workers
}

func (p *pool) ForEachBatch(n, batches int, fn func(batch, start, end int)) {
	if n <= 0 {
		return
	}
	if batches < 1 {
		batches = p.workers
	}
	ranges := split(n, batches)
	if len(ranges) == 1 {
		fn(0, ranges[0][0], ranges[0][1])
		return
	}

	// A WaitGroup gives a per-call barrier; pool.Wait() would block until workers idle-exit.
	var wg sync.WaitGroup
	wg.Add(len(ranges))
	for i, r := range ranges {
		batch, start, end := i, r[0], r[1]
		p.inner.SubmitTask(worker.Task{
			ID: batch,
			Do: func() (any, error) {
				defer wg.Done()
				fn(batch, start, end)
				return nil, nil
			},
		})
	}
	wg.Wait()
}

func (p *pool) Run(fns ...func()) {
	switch len(fns) {
	case 0:
		return
	case 1:
		fns[0]()
		return
	}
	var wg sync.WaitGroup
	wg.Add(len(fns))
	for i, f := range fns {
		p.inner.SubmitTask(worker.Task{
			ID: i,
			Do: func() (any, error) {
				defer wg.Done()
				f()
				return nil, nil
			},
		})
	}
	wg.Wait()
}

func (p *pool) Release() {
	p.inner.Stop()
}

// serial runs everything on the calling goroutine.
type serial struct{}

// Serial returns a Pool that executes all work inline. Useful for tests and tiny frames.
func Serial() Pool { return serial{} }

func (serial) Workers() int { return 1 }

func (serial) ForEachBatch(n, batches int, fn func(batch, start, end int)) {
	if n <= 0 {
		return
	}
	if batches < 1 {
		batches = 1
	}
	for i, r := range split(n, batches) {
		fn(i, r[0], r[1])
	}
}

func (serial) Run(fns ...func()) {
	for _, f := range fns {
		f()
	}
}

func (serial) Release() {}

// split divides [0, n) into at most parts near-equal contiguous ranges.
func split(n, parts int) [][2]int {
	parts = min(parts, n)
	out := make([][2]int, 0, parts)
	base, rem := n/parts, n%parts
	start := 0
	for i := range parts {
		size := base
		if i < rem {
			size++
		}
		out = append(out, [2]int{start, start + size})
		start += size
	}
	return out
}
