// Package search collapses bursts of search keystrokes into one backend query.
package search

import (
	"strings"
	"sync"
	"time"
)

// DefaultQuiet is the pause after the last keystroke before a query fires.
const DefaultQuiet = 300 * time.Millisecond

// Debouncer runs fn once per burst of Submit calls, with the last query of
// the burst, after the input has been quiet for the configured window.
type Debouncer struct {
	quiet time.Duration
	fn    func(query string)

	mu      sync.Mutex
	timer   *time.Timer
	gen     uint64
	stopped bool
}

func NewDebouncer(quiet time.Duration, fn func(query string)) *Debouncer {
	if quiet <= 0 {
		quiet = DefaultQuiet
	}
	return &Debouncer{quiet: quiet, fn: fn}
}

// Submit restarts the quiet window with query. A blank query only cancels
// the pending one.
func (d *Debouncer) Submit(query string) {
	query = strings.TrimSpace(query)

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	d.gen++
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	if query == "" {
		return
	}

	gen := d.gen
	d.timer = time.AfterFunc(d.quiet, func() { d.fire(gen, query) })
}

// Stop cancels any pending query; later Submits are ignored.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	d.gen++
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}

func (d *Debouncer) fire(gen uint64, query string) {
	d.mu.Lock()
	current := gen == d.gen && !d.stopped
	if current {
		d.timer = nil
	}
	d.mu.Unlock()

	if current {
		d.fn(query)
	}
}
