// Package persist coalesces LED state changes into rate-limited durable
// writes. An arbitrarily long burst of save requests inside one quiet
// window produces at most one physical write carrying the most recent
// value, which bounds flash wear no matter how fast the encoder turns.
package persist

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/urisala1996/led-mixer/internal/store"
)

// Store keys, shared with whatever wrote the state previously.
const (
	KeyEnabled = "pwm_en"
	KeyValue   = "pwm_val"
)

// DefaultWindowMillis is the quiet period a queued change must survive
// unreplaced before it is committed.
const DefaultWindowMillis = 5000

// LedState is the durable snapshot: whether the LEDs are on and at what
// brightness.
type LedState struct {
	Enabled bool
	Value   uint8
}

// DefaultState is what a device reports on first boot, before anything
// has ever been saved.
var DefaultState = LedState{Enabled: true, Value: 155}

// Clock returns a monotonic millisecond counter. It is uint32 on
// purpose: elapsed time is computed with modular subtraction, so a
// quiet window straddling the counter rollover still elapses correctly.
type Clock func() uint32

var clockBase = time.Now()

// Millis is the default Clock, derived from the runtime monotonic clock.
func Millis() uint32 {
	return uint32(time.Since(clockBase).Milliseconds())
}

// Saver queues candidate snapshots and commits at most one per quiet
// window. All methods are safe for concurrent use; the reference
// firmware ran this from a single task, but nothing here depends on
// that.
type Saver struct {
	mu     sync.Mutex
	store  store.Store
	now    Clock
	window uint32

	last   LedState // what durable storage currently holds
	cached bool

	pending    LedState
	queuedAt   uint32 // meaningful only while hasPending
	hasPending bool
}

// New creates a Saver. windowMillis <= 0 selects DefaultWindowMillis;
// a nil clock selects Millis.
func New(st store.Store, windowMillis int, now Clock) *Saver {
	if windowMillis <= 0 {
		windowMillis = DefaultWindowMillis
	}
	if now == nil {
		now = Millis
	}
	return &Saver{
		store:  st,
		now:    now,
		window: uint32(windowMillis),
		last:   DefaultState,
	}
}

// Load reads the persisted snapshot. A key that has never been written
// ("first boot", or freshly erased storage) is not an error: the
// default for that field is substituted and Load succeeds. Any other
// store failure is returned, with defaults populated, so the caller
// always gets a usable state.
func (s *Saver) Load() (LedState, error) {
	state := DefaultState

	h, err := s.store.OpenReadOnly()
	if err != nil {
		return state, fmt.Errorf("open store: %w", err)
	}
	defer h.Close()

	enabled, err := h.GetU8(KeyEnabled)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return state, fmt.Errorf("read %s: %w", KeyEnabled, err)
	}
	if err == nil {
		state.Enabled = enabled != 0
	}

	value, err := h.GetU32(KeyValue)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return state, fmt.Errorf("read %s: %w", KeyValue, err)
	}
	if err == nil {
		if value > 255 {
			value = 255
		}
		state.Value = uint8(value)
	}

	s.mu.Lock()
	s.last = state
	s.cached = true
	s.mu.Unlock()

	return state, nil
}

// RequestSave queues a candidate snapshot for a debounced write.
// A candidate equal to what storage already holds is a no-op, as is one
// equal to an already-queued snapshot. Anything else replaces the
// pending snapshot and restarts the quiet-period timer: a fresh
// request always gets a full window, even if a write was already
// queued.
func (s *Saver) RequestSave(candidate LedState) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cached && candidate == s.last {
		return // already durable
	}
	if s.hasPending && candidate == s.pending {
		return // already queued with this value
	}

	s.pending = candidate
	s.queuedAt = s.now()
	s.hasPending = true
}

// CheckPendingWrite commits the queued snapshot once its quiet window
// has elapsed. Call periodically (the driving loop checks every
// ~200ms). A commit failure is returned to the caller and the queued
// change is dropped rather than retried; the change stays applied in
// RAM and is simply not durable; the next state change queues a fresh
// write.
func (s *Saver) CheckPendingWrite() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.hasPending {
		return nil
	}
	if s.now()-s.queuedAt < s.window {
		return nil
	}
	return s.commitLocked()
}

// Flush commits any queued snapshot immediately, ignoring the quiet
// window. Used on shutdown so a recent change is not lost.
func (s *Saver) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.hasPending {
		return nil
	}
	return s.commitLocked()
}

// commitLocked performs the durable write. The pending flag clears on
// failure as well as success; callers own the retry policy.
func (s *Saver) commitLocked() error {
	snapshot := s.pending
	s.hasPending = false

	h, err := s.store.OpenReadWrite()
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer h.Close()

	var enabled uint8
	if snapshot.Enabled {
		enabled = 1
	}
	if err := h.SetU8(KeyEnabled, enabled); err != nil {
		return fmt.Errorf("write %s: %w", KeyEnabled, err)
	}
	if err := h.SetU32(KeyValue, uint32(snapshot.Value)); err != nil {
		return fmt.Errorf("write %s: %w", KeyValue, err)
	}
	if err := h.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	s.last = snapshot
	s.cached = true
	return nil
}

// LastCommitted returns the cached durable snapshot without touching
// storage.
func (s *Saver) LastCommitted() LedState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// Pending reports whether a write is queued, for status display.
func (s *Saver) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hasPending
}
