// Package coalesce turns bursts of events into single delayed calls.
//
// Each key owns at most one pending task. Scheduling a key again cancels its
// pending task and arms a new one, so a burst of edits to one record produces
// one save. Tasks of the same key never run concurrently.
package coalesce

import (
	"sync"
	"time"
)

type task struct {
	timer     *time.Timer
	fn        func()
	cancelled bool
}

// keyLock serializes tasks of one key; refs counts tasks holding or waiting on it.
type keyLock struct {
	mu   sync.Mutex
	refs int
}

// Coalescer schedules per-key cancellable tasks.
type Coalescer[K comparable] struct {
	mu      sync.Mutex
	pending map[K]*task
	running map[K]*keyLock
	stopped bool
	wg      sync.WaitGroup
}

// New returns an empty Coalescer.
func New[K comparable]() *Coalescer[K] {
	return &Coalescer[K]{
		pending: make(map[K]*task),
		running: make(map[K]*keyLock),
	}
}

// Schedule arms fn to run after delay, replacing any pending task for key.
// A zero delay means "run now" and still supersedes the pending task.
func (c *Coalescer[K]) Schedule(key K, delay time.Duration, fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return
	}
	c.cancelLocked(key)

	t := &task{fn: fn}
	c.wg.Add(1)
	t.timer = time.AfterFunc(delay, func() { c.fire(key, t) })
	c.pending[key] = t
}

// Cancel drops the pending task for key and reports whether there was one.
func (c *Coalescer[K]) Cancel(key K) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cancelLocked(key)
}

// Pending reports whether key has a task waiting to fire.
func (c *Coalescer[K]) Pending(key K) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.pending[key]
	return ok
}

// Len returns the number of pending tasks.
func (c *Coalescer[K]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// Flush fires every pending task immediately and waits for all tasks,
// including ones already running, to finish.
func (c *Coalescer[K]) Flush() {
	c.mu.Lock()
	for _, t := range c.pending {
		if t.timer.Stop() {
			t.timer.Reset(0)
		}
	}
	c.mu.Unlock()
	c.wg.Wait()
}

// Stop cancels every pending task, waits for running ones, and rejects
// further scheduling.
func (c *Coalescer[K]) Stop() {
	c.mu.Lock()
	c.stopped = true
	for key := range c.pending {
		c.cancelLocked(key)
	}
	c.mu.Unlock()
	c.wg.Wait()
}

func (c *Coalescer[K]) cancelLocked(key K) bool {
	t, ok := c.pending[key]
	if !ok {
		return false
	}
	delete(c.pending, key)
	t.cancelled = true
	if t.timer.Stop() {
		c.wg.Done()
	}
	return true
}

func (c *Coalescer[K]) fire(key K, t *task) {
	defer c.wg.Done()

	c.mu.Lock()
	if t.cancelled {
		// superseded after the timer fired
		c.mu.Unlock()
		return
	}
	if c.pending[key] == t {
		delete(c.pending, key)
	}
	lock, ok := c.running[key]
	if !ok {
		lock = &keyLock{}
		c.running[key] = lock
	}
	lock.refs++
	c.mu.Unlock()

	defer c.release(key, lock)
	lock.mu.Lock()
	defer lock.mu.Unlock()
	t.fn()
}

func (c *Coalescer[K]) release(key K, lock *keyLock) {
	c.mu.Lock()
	defer c.mu.Unlock()
	lock.refs--
	if lock.refs == 0 && c.running[key] == lock {
		delete(c.running, key)
	}
}
