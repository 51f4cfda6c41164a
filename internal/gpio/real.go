//go:build linux

package gpio

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"
)

// RealSampler reads the input lines from actual hardware using the Linux
// GPIO character device.
type RealSampler struct {
	chip   *gpiocdev.Chip
	clk    *gpiocdev.Line
	dt     *gpiocdev.Line
	button *gpiocdev.Line
	touch  *gpiocdev.Line
}

// NewRealSampler requests the four input lines from the given chip
// (e.g. "gpiochip0").
func NewRealSampler(chipName string, pins Pins) (*RealSampler, error) {
	chip, err := gpiocdev.NewChip(chipName)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}

	s := &RealSampler{chip: chip}

	// The encoder CLK/DT/SW lines idle high and are switched to ground,
	// matching the module's onboard pull-ups.
	s.clk, err = chip.RequestLine(pins.Clk, gpiocdev.AsInput, gpiocdev.WithPullUp)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("request clk pin %d: %w", pins.Clk, err)
	}
	s.dt, err = chip.RequestLine(pins.Dt, gpiocdev.AsInput, gpiocdev.WithPullUp)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("request dt pin %d: %w", pins.Dt, err)
	}
	s.button, err = chip.RequestLine(pins.Button, gpiocdev.AsInput, gpiocdev.WithPullUp)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("request button pin %d: %w", pins.Button, err)
	}

	// The touch pad module drives its output high on touch; no pull needed.
	s.touch, err = chip.RequestLine(pins.Touch, gpiocdev.AsInput)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("request touch pin %d: %w", pins.Touch, err)
	}

	return s, nil
}

// Read returns the logical states of all four lines.
// The encoder switch is active-low: raw 0 = pressed.
func (s *RealSampler) Read() (Sample, error) {
	clk, err := s.clk.Value()
	if err != nil {
		return Sample{}, fmt.Errorf("read clk pin: %w", err)
	}
	dt, err := s.dt.Value()
	if err != nil {
		return Sample{}, fmt.Errorf("read dt pin: %w", err)
	}
	btn, err := s.button.Value()
	if err != nil {
		return Sample{}, fmt.Errorf("read button pin: %w", err)
	}
	tch, err := s.touch.Value()
	if err != nil {
		return Sample{}, fmt.Errorf("read touch pin: %w", err)
	}

	return Sample{
		Clk:    clk != 0,
		Dt:     dt != 0,
		Button: btn == 0,
		Touch:  tch != 0,
	}, nil
}

// Close releases all requested lines and the chip. Safe to call with
// partially initialized state.
func (s *RealSampler) Close() error {
	var errs []error

	for _, line := range []*gpiocdev.Line{s.clk, s.dt, s.button, s.touch} {
		if line == nil {
			continue
		}
		if err := line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close line: %w", err))
		}
	}
	if s.chip != nil {
		if err := s.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
