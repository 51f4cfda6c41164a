// Package status provides a thread-safe snapshot store for the
// led-mixer daemon. The driving loop publishes here; HTTP handlers, the
// websocket hub, and MQTT system events read from here.
package status

import (
	"sync"
	"time"

	"github.com/urisala1996/led-mixer/internal/persist"
)

// Config contains daemon configuration for display.
type Config struct {
	SensorPollMs int64
	LoopMs       int64
	FlashMs      int64
	TouchSamples int
	HeartbeatMs  int64
	Broker       string
	HTTPAddr     string
	StorePath    string
}

// Counts groups the daemon's event counters.
type Counts struct {
	TouchEvents  uint32
	ButtonPress  uint32
	InvalidSteps uint32
	FlashWrites  uint64
	FlashErrors  uint64
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type, safe to use after the lock is released.
type Snapshot struct {
	Enabled       bool
	Brightness    uint8
	ScaleFactor   int
	ButtonHeld    bool
	Touched       bool
	Counts        Counts
	Committed     persist.LedState
	SavePending   bool
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Config:    cfg,
		},
	}
}

// Update sets the live mixer state. Called from the driving loop on
// every tick.
func (t *Tracker) Update(enabled bool, brightness uint8, scale int, buttonHeld, touched bool, counts Counts) {
	t.mu.Lock()
	t.snap.Enabled = enabled
	t.snap.Brightness = brightness
	t.snap.ScaleFactor = scale
	t.snap.ButtonHeld = buttonHeld
	t.snap.Touched = touched
	t.snap.Counts = counts
	t.mu.Unlock()
}

// SetPersistence records the committed snapshot and whether a write is
// queued.
func (t *Tracker) SetPersistence(committed persist.LedState, pending bool) {
	t.mu.Lock()
	t.snap.Committed = committed
	t.snap.SavePending = pending
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}
