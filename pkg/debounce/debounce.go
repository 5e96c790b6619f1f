// Package debounce coalesces bursts of calls.
//
// Debouncer delays a keyed callback until no newer call for the same key arrived
// within the delay. Latest runs lookups where only the most recent call may
// deliver a result.
package debounce

import (
	"sync"
	"time"
)

type entry struct {
	timer *time.Timer
	fn    func()
}

// Debouncer runs at most one callback per key after the key has been quiet for delay.
// Scheduling again before the timer fires replaces the callback and restarts the timer.
type Debouncer struct {
	delay time.Duration

	mu      sync.Mutex
	idle    *sync.Cond
	pending map[string]*entry
	running int
	stopped bool
}

func New(delay time.Duration) *Debouncer {
	d := &Debouncer{
		delay:   delay,
		pending: make(map[string]*entry),
	}
	d.idle = sync.NewCond(&d.mu)
	return d
}

// Schedule arms fn for key. It returns false once the debouncer has been stopped.
func (d *Debouncer) Schedule(key string, fn func()) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return false
	}
	if prev, ok := d.pending[key]; ok {
		prev.timer.Stop()
	}
	e := &entry{fn: fn}
	e.timer = time.AfterFunc(d.delay, func() { d.fire(key, e) })
	d.pending[key] = e
	return true
}

func (d *Debouncer) fire(key string, e *entry) {
	d.mu.Lock()
	if d.pending[key] != e {
		// replaced, flushed or stopped since the timer was armed
		d.mu.Unlock()
		return
	}
	delete(d.pending, key)
	d.running++
	d.mu.Unlock()

	d.run(e.fn)
}

func (d *Debouncer) run(fn func()) {
	defer func() {
		d.mu.Lock()
		d.running--
		if d.running == 0 {
			d.idle.Broadcast()
		}
		d.mu.Unlock()
	}()
	fn()
}

// Keys returns the keys with armed callbacks.
func (d *Debouncer) Keys() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	keys := make([]string, 0, len(d.pending))
	for key := range d.pending {
		keys = append(keys, key)
	}
	return keys
}

// Cancel drops the armed callback for key without running it.
func (d *Debouncer) Cancel(key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	e, ok := d.pending[key]
	if ok {
		e.timer.Stop()
		delete(d.pending, key)
	}
	return ok
}

// Wait blocks until no callback is executing.
func (d *Debouncer) Wait() {
	d.mu.Lock()
	for d.running > 0 {
		d.idle.Wait()
	}
	d.mu.Unlock()
}

// Stop drops all armed callbacks and rejects new ones. Callbacks already running
// are not interrupted; use Wait to block on them.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	for key, e := range d.pending {
		e.timer.Stop()
		delete(d.pending, key)
	}
}
