// Package queue provides the in-order execution queue behind each software
// graphics device.
//
// A Queue runs submitted work items one at a time, in submission order, on a
// single goroutine. Submission never blocks: a work item that waits on a
// fence stalls the queue, not the caller, which is how device-side waits are
// modeled.
package queue

import (
	"errors"
	"sync"
	"sync/atomic"
)

// ErrClosed is returned by Submit after Close.
var ErrClosed = errors.New("queue: closed")

// Queue is a single-worker FIFO of work items.
//
// Thread safety: Queue is safe for concurrent use.
type Queue struct {
	label string

	mu      sync.Mutex
	cond    *sync.Cond
	items   []func()
	closing bool

	// done is closed when the worker goroutine exits.
	done chan struct{}

	// executed counts completed work items.
	executed atomic.Uint64
}

// New creates a queue and starts its worker.
func New(label string) *Queue {
	q := &Queue{
		label: label,
		done:  make(chan struct{}),
	}
	q.cond = sync.NewCond(&q.mu)
	go q.worker()
	return q
}

// worker executes items until the queue is closed and drained.
func (q *Queue) worker() {
	defer close(q.done)

	for {
		q.mu.Lock()
		for len(q.items) == 0 && !q.closing {
			q.cond.Wait()
		}
		if len(q.items) == 0 {
			// Closing and drained.
			q.mu.Unlock()
			return
		}
		fn := q.items[0]
		q.items[0] = nil
		q.items = q.items[1:]
		q.mu.Unlock()

		fn()
		q.executed.Add(1)
	}
}

// Submit appends fn to the queue. It never blocks on queued work.
// A nil fn is ignored.
func (q *Queue) Submit(fn func()) error {
	if fn == nil {
		return nil
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closing {
		return ErrClosed
	}
	q.items = append(q.items, fn)
	q.cond.Signal()
	return nil
}

// Flush blocks until every item submitted before the call has executed.
func (q *Queue) Flush() error {
	ch := make(chan struct{})
	if err := q.Submit(func() { close(ch) }); err != nil {
		return err
	}
	<-ch
	return nil
}

// Close stops accepting work, runs whatever is still queued, and waits for
// the worker to exit. Close is safe to call multiple times.
func (q *Queue) Close() {
	q.mu.Lock()
	if !q.closing {
		q.closing = true
		q.cond.Broadcast()
	}
	q.mu.Unlock()

	<-q.done
}

// Label returns the debug label given to New.
func (q *Queue) Label() string { return q.label }

// IsRunning reports whether the queue still accepts work.
func (q *Queue) IsRunning() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return !q.closing
}

// Pending returns the number of items not yet started.
func (q *Queue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Executed returns the number of items that have finished.
func (q *Queue) Executed() uint64 { return q.executed.Load() }
