package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "led-mixer.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
gpio:
  pin_clk: 5
  pin_dt: 6
flash:
  path: /tmp/test-state.db
  debounce_ms: 2000
mqtt:
  broker: tcp://broker.local:1883
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.GPIO.PinClk != 5 || cfg.GPIO.PinDt != 6 {
		t.Errorf("encoder pins: got %d/%d, want 5/6", cfg.GPIO.PinClk, cfg.GPIO.PinDt)
	}
	// Untouched fields keep their defaults.
	if cfg.GPIO.PinButton != 22 {
		t.Errorf("pin_button default: got %d, want 22", cfg.GPIO.PinButton)
	}
	if cfg.Flash.DebounceMs != 2000 {
		t.Errorf("debounce_ms: got %d, want 2000", cfg.Flash.DebounceMs)
	}
	if cfg.MQTT.Broker != "tcp://broker.local:1883" {
		t.Errorf("broker: got %q", cfg.MQTT.Broker)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("loaded config should validate: %v", err)
	}
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	path := writeConfig(t, "gpio:\n  pin_clkk: 5\n")
	if _, err := Load(path); err == nil {
		t.Error("expected error for unknown field")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestValidateFailures(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"duplicate pins", func(c *Config) { c.GPIO.PinDt = c.GPIO.PinClk }, "both use line"},
		{"zero poll", func(c *Config) { c.Encoder.SensorPollMs = 0 }, "sensor_poll_ms"},
		{"loop faster than poll", func(c *Config) { c.Encoder.LoopMs = 5 }, "loop_ms"},
		{"zero scale factor", func(c *Config) { c.Encoder.ScaleFactors = []int{1, 0} }, "scale_factors"},
		{"zero touch samples", func(c *Config) { c.Touch.Samples = 0 }, "touch.samples"},
		{"empty flash path", func(c *Config) { c.Flash.Path = "" }, "flash.path"},
		{"zero debounce", func(c *Config) { c.Flash.DebounceMs = 0 }, "debounce_ms"},
		{"zero pwm freq", func(c *Config) { c.PWM.FreqHz = 0 }, "freq_hz"},
		{"negative pwm channel", func(c *Config) { c.PWM.Channels = []int{-1} }, "pwm.channels"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Errorf("error %q does not mention %q", err, tc.want)
			}
		})
	}
}

func TestPins(t *testing.T) {
	cfg := Default()
	cfg.GPIO.PinTouch = 24
	pins := cfg.Pins()
	if pins.Clk != 17 || pins.Dt != 27 || pins.Button != 22 || pins.Touch != 24 {
		t.Errorf("pins: got %+v", pins)
	}
}
