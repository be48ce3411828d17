package watcher

import (
	"sync"
	"time"
)

// Debouncer delays a callback until events for a path stop arriving.
// Rapid events for the same path are coalesced into one callback.
type Debouncer struct {
	delay    time.Duration
	callback func(path string)

	mu      sync.Mutex
	pending map[string]*time.Timer
	stopped bool
	running sync.WaitGroup
}

// NewDebouncer creates a Debouncer that calls callback delay after the last
// Add for a path.
func NewDebouncer(delay time.Duration, callback func(path string)) *Debouncer {
	return &Debouncer{
		delay:    delay,
		callback: callback,
		pending:  make(map[string]*time.Timer),
	}
}

// Add schedules path, restarting its timer if it is already pending.
// Adds after Stop are ignored.
func (d *Debouncer) Add(path string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}
	if timer, ok := d.pending[path]; ok {
		timer.Stop()
	}

	var timer *time.Timer
	timer = time.AfterFunc(d.delay, func() {
		d.mu.Lock()
		// A newer Add replaced this timer, or Stop ran.
		if d.stopped || d.pending[path] != timer {
			d.mu.Unlock()
			return
		}
		delete(d.pending, path)
		d.running.Add(1)
		d.mu.Unlock()

		defer d.running.Done()
		d.callback(path)
	})
	d.pending[path] = timer
}

// Cancel drops a pending path. It is a no-op if path is not pending.
func (d *Debouncer) Cancel(path string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if timer, ok := d.pending[path]; ok {
		timer.Stop()
		delete(d.pending, path)
	}
}

// Stop cancels every pending path and waits for callbacks already running.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	d.stopped = true
	for path, timer := range d.pending {
		timer.Stop()
		delete(d.pending, path)
	}
	d.mu.Unlock()

	d.running.Wait()
}

// PendingCount returns the number of paths waiting for their delay.
func (d *Debouncer) PendingCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}
