// Package pool provides a bounded pool of reusable execution slots.
// Callers acquire a slot before running one task attempt and release it when
// the attempt ends. Saturated acquires queue in strict FIFO order, capacity
// can be resized live, and shutdown drains in-flight work before returning.
package pool

import (
	"context"
	"errors"
	"sync"
)

// ErrPoolShutdown is returned by Acquire once Shutdown has been initiated.
var ErrPoolShutdown = errors.New("worker pool is shutting down")

// waiter represents one queued Acquire call. The ready channel is buffered so
// the pool can hand over a slot (nil) or a rejection without blocking.
type waiter struct {
	ready chan error
}

// WorkerPool is a bounded set of execution slots. All state is serialized
// under a single mutex so the FIFO fairness guarantee stays simple to verify.
type WorkerPool struct {
	mu sync.Mutex
	// capacity is the configured maximum of concurrently held slots.
	capacity int
	// active is the number of slots currently held.
	active int
	// waiters holds queued acquire requests, oldest first.
	waiters []*waiter
	// shuttingDown rejects new acquires once set.
	shuttingDown bool

	// drained is closed once shutdown has begun and all slots are back.
	drained   chan struct{}
	drainOnce sync.Once
}

// New creates a WorkerPool with the given capacity.
// A capacity below 1 is clamped to 1.
func New(capacity int) *WorkerPool {
	if capacity < 1 {
		capacity = 1
	}
	return &WorkerPool{
		capacity: capacity,
		drained:  make(chan struct{}),
	}
}

// Acquire obtains an execution slot, blocking while the pool is saturated.
// Queued callers are served strictly in arrival order. Returns ctx.Err() if
// the context ends first, or ErrPoolShutdown once shutdown has started.
// Every successful Acquire must be paired with exactly one Release.
func (p *WorkerPool) Acquire(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	p.mu.Lock()
	if p.shuttingDown {
		p.mu.Unlock()
		return ErrPoolShutdown
	}
	if p.active < p.capacity {
		p.active++
		p.mu.Unlock()
		return nil
	}

	w := &waiter{ready: make(chan error, 1)}
	p.waiters = append(p.waiters, w)
	p.mu.Unlock()

	select {
	case err := <-w.ready:
		return err
	case <-ctx.Done():
		p.mu.Lock()
		removed := false
		for i, q := range p.waiters {
			if q == w {
				p.waiters = append(p.waiters[:i], p.waiters[i+1:]...)
				removed = true
				break
			}
		}
		p.mu.Unlock()
		if !removed {
			// A grant raced with cancellation: take it and give it back.
			if err := <-w.ready; err == nil {
				p.Release()
			}
		}
		return ctx.Err()
	}
}

// Release returns a slot to the pool. If the wait queue is non-empty and
// capacity allows, the slot is handed directly to the longest-waiting caller
// with no idle gap. Calling Release without a matching Acquire is a bug.
func (p *WorkerPool) Release() {
	p.mu.Lock()
	p.active--
	if p.active < 0 {
		p.active = 0
	}
	p.wakeLocked()
	if p.shuttingDown && p.active == 0 {
		p.closeDrained()
	}
	p.mu.Unlock()
}

// wakeLocked grants slots to queued waiters while capacity allows.
// Caller must hold p.mu.
func (p *WorkerPool) wakeLocked() {
	for len(p.waiters) > 0 && p.active < p.capacity && !p.shuttingDown {
		w := p.waiters[0]
		p.waiters = p.waiters[1:]
		p.active++
		w.ready <- nil
	}
}

// Resize updates the pool capacity. Growing wakes queued waiters immediately;
// shrinking takes effect passively as held slots are released, so running
// work is never preempted. A capacity below 1 is clamped to 1.
func (p *WorkerPool) Resize(capacity int) {
	if capacity < 1 {
		capacity = 1
	}
	p.mu.Lock()
	p.capacity = capacity
	p.wakeLocked()
	p.mu.Unlock()
}

// Shutdown stops the pool: queued and future Acquire calls fail with
// ErrPoolShutdown immediately, then Shutdown blocks until every held slot
// has been released or ctx ends. Safe to call more than once.
func (p *WorkerPool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	if !p.shuttingDown {
		p.shuttingDown = true
		for _, w := range p.waiters {
			w.ready <- ErrPoolShutdown
		}
		p.waiters = nil
	}
	if p.active == 0 {
		p.closeDrained()
	}
	p.mu.Unlock()

	select {
	case <-p.drained:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *WorkerPool) closeDrained() {
	p.drainOnce.Do(func() { close(p.drained) })
}

// Capacity returns the configured maximum of concurrent slots.
func (p *WorkerPool) Capacity() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.capacity
}

// Active returns the number of slots currently held.
func (p *WorkerPool) Active() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.active
}

// Waiting returns the number of queued Acquire calls.
func (p *WorkerPool) Waiting() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.waiters)
}
