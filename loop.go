package tiledoc

import (
	"sync"
)

// Dispatcher runs functions on a controller's logical thread.
// Tile load results are delivered through it.
type Dispatcher interface {
	// Post schedules fn. It reports false if fn will never run.
	Post(fn func()) bool
}

// Executor runs blocking tile loads away from the logical thread.
// parallel.WorkerPool satisfies Executor.
type Executor interface {
	Submit(fn func())
}

// InlineDispatcher runs posted functions immediately on the caller's
// goroutine. Pair it with InlineExecutor, or use it only when every load
// completes on the logical thread.
type InlineDispatcher struct{}

// Post runs fn and reports true.
func (InlineDispatcher) Post(fn func()) bool {
	fn()
	return true
}

// InlineExecutor runs submitted loads synchronously on the caller's goroutine.
type InlineExecutor struct{}

// Submit runs fn.
func (InlineExecutor) Submit(fn func()) {
	fn()
}

// Loop is a single goroutine that runs posted functions in FIFO order.
// It is the logical thread Controllers, the Bridge and the Scene live on.
//
// Post never blocks, so loader goroutines can deliver results while the
// loop is busy. Loop is safe for concurrent use.
type Loop struct {
	mu      sync.Mutex
	pending []func()
	closed  bool

	// wake has capacity 1 and signals that pending is non-empty.
	wake chan struct{}
	done chan struct{}
	wg   sync.WaitGroup
}

// NewLoop starts a loop goroutine.
func NewLoop() *Loop {
	l := &Loop{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
	l.wg.Add(1)
	go l.run()
	return l
}

func (l *Loop) run() {
	defer l.wg.Done()

	for {
		select {
		case <-l.wake:
			l.drain()
		case <-l.done:
			// Run whatever was posted before Close
			l.drain()
			return
		}
	}
}

// drain runs queued functions until the queue is empty.
func (l *Loop) drain() {
	for {
		l.mu.Lock()
		batch := l.pending
		l.pending = nil
		l.mu.Unlock()

		if len(batch) == 0 {
			return
		}
		for _, fn := range batch {
			fn()
		}
	}
}

// Post queues fn for execution on the loop goroutine.
// It reports false if the loop is closed.
func (l *Loop) Post(fn func()) bool {
	if fn == nil {
		return false
	}

	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return false
	}
	l.pending = append(l.pending, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
		// Already signalled
	}
	return true
}

// Do runs fn on the loop goroutine and waits for it to return.
// It reports false if the loop is closed. Calling Do from the loop
// goroutine itself deadlocks.
func (l *Loop) Do(fn func()) bool {
	finished := make(chan struct{})
	if !l.Post(func() {
		defer close(finished)
		fn()
	}) {
		return false
	}
	<-finished
	return true
}

// Close stops accepting work, runs everything already queued and waits
// for the loop goroutine to exit. Close is safe to call multiple times.
func (l *Loop) Close() {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.closed = true
	l.mu.Unlock()

	close(l.done)
	l.wg.Wait()
}
