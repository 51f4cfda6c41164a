// Package touch filters a raw capacitive pad signal into a stable
// touched/untouched state with a press-event counter.
//
// Debouncing uses a consecutive-sample counter rather than a wall-clock
// timer: a flip must persist for a configured number of samples in a row
// before it is believed, so any return to the prior state resets
// confidence. This rejects chatter bursts shorter than the debounce
// window instead of latching onto the first flip.
package touch

import "sync"

// DefaultThreshold is the number of consecutive mismatched samples that
// confirm a new state: 5 samples at a 10ms poll rate, roughly 50ms.
const DefaultThreshold = 5

// State is a copy-out snapshot of the debouncer.
type State struct {
	Touched    bool
	EventCount uint32
}

// Debouncer decodes one digital input into a confirmed touch state.
// Poll is expected to run from a single sampling goroutine; accessors
// are safe from any goroutine.
type Debouncer struct {
	mu sync.Mutex

	threshold int
	confirmed bool
	mismatch  int
	events    uint32
}

// New creates a Debouncer. A threshold <= 0 selects DefaultThreshold.
func New(threshold int) *Debouncer {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Debouncer{threshold: threshold}
}

// Poll feeds one raw sample. A sample agreeing with the confirmed state
// resets the mismatch counter; `threshold` consecutive disagreeing
// samples confirm the new state. Only a confirmed untouched-to-touched
// transition increments the event counter; presses are counted,
// releases are not.
func (d *Debouncer) Poll(raw bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if raw == d.confirmed {
		d.mismatch = 0
		return
	}

	d.mismatch++
	if d.mismatch < d.threshold {
		return
	}

	d.confirmed = raw
	d.mismatch = 0
	if raw {
		d.events++
	}
}

// Touched reports the confirmed pad state.
func (d *Debouncer) Touched() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.confirmed
}

// EventCount returns the number of confirmed press events.
func (d *Debouncer) EventCount() uint32 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.events
}

// ResetCount clears the press-event counter.
func (d *Debouncer) ResetCount() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = 0
}

// State returns a copy-out snapshot of the debouncer state.
func (d *Debouncer) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return State{Touched: d.confirmed, EventCount: d.events}
}
