package parallel

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// WorkerPool is a pool of goroutines pulling work from a shared queue.
//
// Submit never blocks. ExecuteAll submits a batch and waits for it.
// Close stops accepting work, runs everything already queued and waits
// for the workers to exit.
type WorkerPool struct {
	// workers is the number of worker goroutines.
	workers int

	mu    sync.Mutex
	cond  *sync.Cond
	queue []func()

	// closing is set under mu when Close starts.
	closing bool

	// running mirrors !closing for lock-free reads.
	running atomic.Bool

	// active counts work items currently executing.
	active atomic.Int64

	wg sync.WaitGroup
}

// NewWorkerPool creates a pool with the given number of workers.
// If workers is 0 or negative, GOMAXPROCS is used.
// The workers start immediately.
func NewWorkerPool(workers int) *WorkerPool {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	p := &WorkerPool{workers: workers}
	p.cond = sync.NewCond(&p.mu)
	p.running.Store(true)

	p.wg.Add(workers)
	for range workers {
		go p.worker()
	}
	return p
}

// worker is the main loop of each worker goroutine.
func (p *WorkerPool) worker() {
	defer p.wg.Done()

	for {
		p.mu.Lock()
		for len(p.queue) == 0 && !p.closing {
			p.cond.Wait()
		}
		if len(p.queue) == 0 {
			// Closing and drained
			p.mu.Unlock()
			return
		}
		work := p.queue[0]
		p.queue[0] = nil
		p.queue = p.queue[1:]
		p.mu.Unlock()

		p.active.Add(1)
		work()
		p.active.Add(-1)
	}
}

// Submit queues fn and returns immediately.
// If fn is nil or the pool is closed, this is a no-op.
func (p *WorkerPool) Submit(fn func()) {
	if fn == nil {
		return
	}

	p.mu.Lock()
	if p.closing {
		p.mu.Unlock()
		return
	}
	p.queue = append(p.queue, fn)
	p.mu.Unlock()

	p.cond.Signal()
}

// ExecuteAll runs every item of work on the pool and waits for all of them.
// If the pool is closed, this is a no-op.
func (p *WorkerPool) ExecuteAll(work []func()) {
	if len(work) == 0 {
		return
	}

	var wg sync.WaitGroup

	p.mu.Lock()
	if p.closing {
		p.mu.Unlock()
		return
	}
	wg.Add(len(work))
	for _, fn := range work {
		workFn := fn
		p.queue = append(p.queue, func() {
			defer wg.Done()
			if workFn != nil {
				workFn()
			}
		})
	}
	p.mu.Unlock()

	p.cond.Broadcast()
	wg.Wait()
}

// Close gracefully shuts the pool down. Queued work still runs.
// Close is safe to call multiple times.
func (p *WorkerPool) Close() {
	p.mu.Lock()
	if p.closing {
		p.mu.Unlock()
		return
	}
	p.closing = true
	p.running.Store(false)
	p.mu.Unlock()

	p.cond.Broadcast()
	p.wg.Wait()
}

// Workers returns the number of workers in the pool.
func (p *WorkerPool) Workers() int {
	return p.workers
}

// IsRunning reports whether the pool still accepts work.
func (p *WorkerPool) IsRunning() bool {
	return p.running.Load()
}

// QueuedWork returns the number of items waiting for a worker.
func (p *WorkerPool) QueuedWork() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.queue)
}

// ActiveWork returns the number of items currently executing.
func (p *WorkerPool) ActiveWork() int {
	return int(p.active.Load())
}
