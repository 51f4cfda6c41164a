// Package gpio provides digital input sampling with hardware abstraction.
// The real implementation uses the Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

// Sample is one reading of all four input lines, in logical form.
// Button is true when the encoder switch is pressed (the raw pin is
// active-low; the real sampler inverts it).
type Sample struct {
	Clk    bool // encoder clock line
	Dt     bool // encoder data line
	Button bool // encoder push switch, true = pressed
	Touch  bool // capacitive touch pad, true = pad high
}

// Sampler reads the input lines the mixer polls.
type Sampler interface {
	// Read returns the logical states of all input lines.
	Read() (Sample, error)

	// Close releases GPIO resources.
	Close() error
}

// Default pin assignments (BCM numbering).
const (
	DefaultPinClk    = 17
	DefaultPinDt     = 27
	DefaultPinButton = 22
	DefaultPinTouch  = 23
)

// Pins names the four input lines by BCM number.
type Pins struct {
	Clk    int
	Dt     int
	Button int
	Touch  int
}

// DefaultPins returns the stock pin assignment.
func DefaultPins() Pins {
	return Pins{
		Clk:    DefaultPinClk,
		Dt:     DefaultPinDt,
		Button: DefaultPinButton,
		Touch:  DefaultPinTouch,
	}
}
