package pwm

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// SysfsOutput drives two channels of a Linux sysfs PWM chip
// (/sys/class/pwm/pwmchipN). Duty 0-255 is scaled onto the period in
// nanoseconds.
type SysfsOutput struct {
	chipPath string
	channels [NumChannels]int
	periodNs int
	duty     [NumChannels]uint8
}

// NewSysfsOutput exports both channels on the given chip (e.g.
// "/sys/class/pwm/pwmchip0"), programs the period from freqHz, and
// enables the outputs at duty 0.
func NewSysfsOutput(chipPath string, channels [NumChannels]int, freqHz int) (*SysfsOutput, error) {
	if freqHz <= 0 {
		freqHz = DefaultFreqHz
	}

	o := &SysfsOutput{
		chipPath: chipPath,
		channels: channels,
		periodNs: int(1e9) / freqHz,
	}

	for i, ch := range channels {
		if err := o.exportChannel(ch); err != nil {
			o.Close()
			return nil, fmt.Errorf("export channel %d: %w", ch, err)
		}
		if err := o.writeChannelAttr(ch, "period", o.periodNs); err != nil {
			o.Close()
			return nil, fmt.Errorf("set period on channel %d: %w", ch, err)
		}
		if err := o.writeChannelAttr(ch, "duty_cycle", 0); err != nil {
			o.Close()
			return nil, fmt.Errorf("zero duty on channel %d: %w", ch, err)
		}
		if err := o.writeChannelAttr(ch, "enable", 1); err != nil {
			o.Close()
			return nil, fmt.Errorf("enable channel %d: %w", ch, err)
		}
		o.duty[i] = 0
	}

	return o, nil
}

// SetBrightness sets both channels to the same duty.
func (o *SysfsOutput) SetBrightness(duty uint8) error {
	for i := range o.channels {
		if err := o.SetChannel(i, duty); err != nil {
			return err
		}
	}
	return nil
}

// SetChannel sets one channel's duty.
func (o *SysfsOutput) SetChannel(ch int, duty uint8) error {
	if ch < 0 || ch >= NumChannels {
		return fmt.Errorf("pwm: channel %d out of range", ch)
	}
	ns := o.periodNs * int(duty) / 255
	if err := o.writeChannelAttr(o.channels[ch], "duty_cycle", ns); err != nil {
		return fmt.Errorf("set duty on channel %d: %w", o.channels[ch], err)
	}
	o.duty[ch] = duty
	return nil
}

// Brightness returns the current duty of both channels.
func (o *SysfsOutput) Brightness() (uint8, uint8) {
	return o.duty[0], o.duty[1]
}

// Close darkens and disables both channels, best effort.
func (o *SysfsOutput) Close() error {
	var firstErr error
	for _, ch := range o.channels {
		if err := o.writeChannelAttr(ch, "duty_cycle", 0); err != nil && firstErr == nil {
			firstErr = err
		}
		if err := o.writeChannelAttr(ch, "enable", 0); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (o *SysfsOutput) exportChannel(ch int) error {
	dir := filepath.Join(o.chipPath, fmt.Sprintf("pwm%d", ch))
	if _, err := os.Stat(dir); err == nil {
		return nil // already exported
	}
	return writeAttr(filepath.Join(o.chipPath, "export"), ch)
}

func (o *SysfsOutput) writeChannelAttr(ch int, attr string, value int) error {
	return writeAttr(filepath.Join(o.chipPath, fmt.Sprintf("pwm%d", ch), attr), value)
}

func writeAttr(path string, value int) error {
	return os.WriteFile(path, []byte(strconv.Itoa(value)), 0o644)
}
