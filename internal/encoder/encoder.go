// Package encoder decodes a quadrature rotary encoder into a bounded
// position with an accelerating scale factor.
// This package has NO hardware dependencies: raw line states are fed in
// by the caller's polling loop, so all behavior is testable without GPIO.
package encoder

import "sync"

// Position bounds. The position doubles as the 8-bit PWM duty, so it
// saturates rather than wraps at either end.
const (
	PosMin = 0
	PosMax = 255
)

// DefaultInitialPosition matches the factory brightness before any state
// has been persisted.
const DefaultInitialPosition = 155

// DefaultScaleFactors is the cyclic list of step multipliers the button
// advances through.
var DefaultScaleFactors = []int{1, 2, 5}

// quadTable maps (prev<<2)|curr to a rotation direction.
// Legal full-step Gray-code transitions:
//
//	CW:  00->01->11->10->00
//	CCW: 00->10->11->01->00
//
// Every other pair (including no-change, which Poll filters out first)
// is an invalid transition and decodes to 0.
var quadTable = [16]int8{
	0<<2 | 1: +1,
	1<<2 | 3: +1,
	3<<2 | 2: +1,
	2<<2 | 0: +1,
	0<<2 | 2: -1,
	2<<2 | 3: -1,
	3<<2 | 1: -1,
	1<<2 | 0: -1,
}

// State is a copy-out snapshot of the decoder.
type State struct {
	Position      int
	ScaleFactor   int
	ButtonPressed bool
	PressCount    uint32
}

// Config controls initial decoder state.
type Config struct {
	// InitialPosition is clamped to [PosMin, PosMax]. Zero means zero;
	// use DefaultInitialPosition for the factory value.
	InitialPosition int

	// ScaleFactors is the cyclic multiplier list. Empty means
	// DefaultScaleFactors.
	ScaleFactors []int
}

// Decoder tracks quadrature phase, position, and the button-driven scale
// factor. All exported methods are safe for concurrent use; the polling
// methods are expected to be called from a single sampling goroutine
// while accessors run from others.
type Decoder struct {
	mu sync.Mutex

	position   int
	scales     []int
	scaleIdx   int
	pressCount uint32
	pressed    bool

	prevPhase   uint8
	phasePrimed bool
	lastButton  bool

	invalidCount uint32
}

// New creates a Decoder. The first Poll call establishes the phase
// baseline and never moves the position.
func New(cfg Config) *Decoder {
	scales := cfg.ScaleFactors
	if len(scales) == 0 {
		scales = DefaultScaleFactors
	}
	return &Decoder{
		position: clamp(cfg.InitialPosition),
		scales:   scales,
	}
}

// Poll feeds one sample of the CLK and DT lines. Call at a fixed short
// interval (~10ms). On a legal Gray-code transition the position moves
// by the current scale factor, saturating at the bounds. Illegal
// transitions leave the position unchanged but still advance the phase.
func (d *Decoder) Poll(clk, dt bool) {
	curr := phase(clk, dt)

	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.phasePrimed {
		d.prevPhase = curr
		d.phasePrimed = true
		return
	}

	if curr == d.prevPhase {
		return
	}

	dir := int(quadTable[d.prevPhase<<2|curr])
	d.prevPhase = curr

	if dir == 0 {
		d.invalidCount++
		return
	}

	d.position = clamp(d.position + dir*d.scales[d.scaleIdx])
}

// PollButton feeds the debounced button level. On a press edge the press
// count increments and the scale factor advances to the next entry in
// the cyclic list; on release the pressed flag clears. Button edges are
// human-speed, so no additional debouncing happens here.
func (d *Decoder) PollButton(pressed bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if pressed && !d.lastButton {
		d.pressCount++
		d.pressed = true
		d.scaleIdx = (d.scaleIdx + 1) % len(d.scales)
	} else if !pressed && d.lastButton {
		d.pressed = false
	}
	d.lastButton = pressed
}

// Position returns the current clamped position.
func (d *Decoder) Position() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.position
}

// SetPosition sets the position directly. Out-of-range values are
// silently clamped, not rejected.
func (d *Decoder) SetPosition(pos int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.position = clamp(pos)
}

// ResetPosition sets the position to zero.
func (d *Decoder) ResetPosition() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.position = PosMin
}

// ScaleFactor returns the current step multiplier.
func (d *Decoder) ScaleFactor() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.scales[d.scaleIdx]
}

// CycleScaleFactor advances the scale factor without a button press.
func (d *Decoder) CycleScaleFactor() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.scaleIdx = (d.scaleIdx + 1) % len(d.scales)
}

// PressCount returns the number of confirmed button-press edges.
func (d *Decoder) PressCount() uint32 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pressCount
}

// ResetPressCount clears the press counter.
func (d *Decoder) ResetPressCount() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pressCount = 0
}

// ButtonPressed reports whether the button is currently held.
func (d *Decoder) ButtonPressed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pressed
}

// InvalidTransitions returns how many illegal phase pairs were observed.
// Useful for diagnostics; chatter on the lines shows up here.
func (d *Decoder) InvalidTransitions() uint32 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.invalidCount
}

// State returns a copy-out snapshot of the full decoder state.
func (d *Decoder) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return State{
		Position:      d.position,
		ScaleFactor:   d.scales[d.scaleIdx],
		ButtonPressed: d.pressed,
		PressCount:    d.pressCount,
	}
}

func phase(clk, dt bool) uint8 {
	var p uint8
	if clk {
		p |= 2
	}
	if dt {
		p |= 1
	}
	return p
}

func clamp(pos int) int {
	if pos < PosMin {
		return PosMin
	}
	if pos > PosMax {
		return PosMax
	}
	return pos
}
