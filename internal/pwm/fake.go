package pwm

import "fmt"

// FakeOutput records duty changes for test assertions.
type FakeOutput struct {
	// History records every duty applied via SetBrightness.
	History []uint8

	// SetError, if set, is returned by SetBrightness and SetChannel.
	SetError error

	// Closed tracks if Close was called.
	Closed bool

	duty [NumChannels]uint8
}

// NewFakeOutput creates a FakeOutput at duty 0.
func NewFakeOutput() *FakeOutput {
	return &FakeOutput{}
}

// SetBrightness records the duty and applies it to both channels.
func (f *FakeOutput) SetBrightness(duty uint8) error {
	if f.SetError != nil {
		return f.SetError
	}
	f.History = append(f.History, duty)
	for i := range f.duty {
		f.duty[i] = duty
	}
	return nil
}

// SetChannel applies a duty to one channel without recording history.
func (f *FakeOutput) SetChannel(ch int, duty uint8) error {
	if f.SetError != nil {
		return f.SetError
	}
	if ch < 0 || ch >= NumChannels {
		return fmt.Errorf("pwm: channel %d out of range", ch)
	}
	f.duty[ch] = duty
	return nil
}

// Brightness returns the current duty of both channels.
func (f *FakeOutput) Brightness() (uint8, uint8) {
	return f.duty[0], f.duty[1]
}

// Close marks the output as closed.
func (f *FakeOutput) Close() error {
	f.Closed = true
	return nil
}

// Last returns the most recently applied duty, or 0 if none.
func (f *FakeOutput) Last() uint8 {
	if len(f.History) == 0 {
		return 0
	}
	return f.History[len(f.History)-1]
}
