// Package pwm drives the two LED channels at an 8-bit duty cycle.
// The real implementation uses the Linux sysfs PWM interface; the fake
// implementation records duty changes for tests.
package pwm

// NumChannels is fixed: the mixer drives two LED strings in step.
const NumChannels = 2

// DefaultFreqHz is the PWM carrier frequency.
const DefaultFreqHz = 5000

// Output sets LED brightness as an 8-bit duty (0-255). Both channels
// normally move together; per-channel control exists for diagnostics.
type Output interface {
	// SetBrightness sets both channels to the same duty.
	SetBrightness(duty uint8) error

	// SetChannel sets one channel (0 or 1).
	SetChannel(ch int, duty uint8) error

	// Brightness returns the current duty of both channels.
	Brightness() (uint8, uint8)

	// Close releases the hardware, leaving the outputs dark.
	Close() error
}
