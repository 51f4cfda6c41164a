// Package config loads the led-mixer daemon configuration from a YAML
// file, applying defaults and validating the result.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/urisala1996/led-mixer/internal/gpio"
	"github.com/urisala1996/led-mixer/internal/persist"
	"github.com/urisala1996/led-mixer/internal/pwm"
	"github.com/urisala1996/led-mixer/internal/touch"
)

// Config is the top-level YAML configuration. Defaults and validation
// are centralized here so the rest of the daemon can assume a
// well-formed config.
type Config struct {
	GPIO    GPIOConfig    `yaml:"gpio"`
	Encoder EncoderConfig `yaml:"encoder"`
	Touch   TouchConfig   `yaml:"touch"`
	PWM     PWMConfig     `yaml:"pwm"`
	Flash   FlashConfig   `yaml:"flash"`
	MQTT    MQTTConfig    `yaml:"mqtt"`
	HTTP    HTTPConfig    `yaml:"http"`
}

// GPIOConfig selects the gpiochip and the input lines (BCM numbering).
type GPIOConfig struct {
	Chip      string `yaml:"chip"`
	PinClk    int    `yaml:"pin_clk"`
	PinDt     int    `yaml:"pin_dt"`
	PinButton int    `yaml:"pin_button"`
	PinTouch  int    `yaml:"pin_touch"`
}

// EncoderConfig tunes the polling cadence of the sensor loop and the
// driving loop.
type EncoderConfig struct {
	SensorPollMs int64 `yaml:"sensor_poll_ms"`
	LoopMs       int64 `yaml:"loop_ms"`
	ScaleFactors []int `yaml:"scale_factors,omitempty"`
}

// TouchConfig tunes the capacitive touch debouncer.
type TouchConfig struct {
	// Samples is the number of consecutive agreeing reads required
	// before a level change is accepted.
	Samples int `yaml:"samples"`
}

// PWMConfig selects the sysfs PWM chip and carrier frequency.
type PWMConfig struct {
	Chip     string `yaml:"chip"`
	Channels []int  `yaml:"channels,omitempty"`
	FreqHz   int64  `yaml:"freq_hz"`
}

// FlashConfig controls state persistence.
type FlashConfig struct {
	Path string `yaml:"path"`

	// DebounceMs is the quiet window a queued change must survive
	// before it is committed.
	DebounceMs int64 `yaml:"debounce_ms"`
}

// MQTTConfig configures event publishing. An empty broker disables MQTT.
type MQTTConfig struct {
	Broker      string `yaml:"broker"`
	HeartbeatMs int64  `yaml:"heartbeat_ms"`
}

// HTTPConfig configures the status web server. An empty addr disables it.
type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// Default returns a fully-populated Config.
func Default() Config {
	return Config{
		GPIO: GPIOConfig{
			Chip:      "gpiochip0",
			PinClk:    gpio.DefaultPinClk,
			PinDt:     gpio.DefaultPinDt,
			PinButton: gpio.DefaultPinButton,
			PinTouch:  gpio.DefaultPinTouch,
		},
		Encoder: EncoderConfig{
			SensorPollMs: 10,
			LoopMs:       50,
		},
		Touch: TouchConfig{
			Samples: touch.DefaultThreshold,
		},
		PWM: PWMConfig{
			Chip:   "pwmchip0",
			FreqHz: pwm.DefaultFreqHz,
		},
		Flash: FlashConfig{
			Path:       "/var/lib/led-mixer/state.db",
			DebounceMs: persist.DefaultWindowMillis,
		},
		MQTT: MQTTConfig{
			Broker:      "",
			HeartbeatMs: 60000,
		},
		HTTP: HTTPConfig{
			Addr: ":8080",
		},
	}
}

// Load reads and parses a YAML config file on top of defaults.
// Unknown fields are rejected to catch typos.
func Load(path string) (Config, error) {
	if path == "" {
		return Config{}, errors.New("config path is empty")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}

	cfg := Default()

	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config yaml: %w", err)
	}

	return cfg, nil
}

// Pins returns the configured GPIO line assignment.
func (c *Config) Pins() gpio.Pins {
	return gpio.Pins{
		Clk:    c.GPIO.PinClk,
		Dt:     c.GPIO.PinDt,
		Button: c.GPIO.PinButton,
		Touch:  c.GPIO.PinTouch,
	}
}

// Validate checks config invariants. Call after defaults and any flag
// overrides are applied.
func (c *Config) Validate() error {
	if c.GPIO.Chip == "" {
		return errors.New("gpio.chip must not be empty")
	}
	pins := []struct {
		name string
		v    int
	}{
		{"gpio.pin_clk", c.GPIO.PinClk},
		{"gpio.pin_dt", c.GPIO.PinDt},
		{"gpio.pin_button", c.GPIO.PinButton},
		{"gpio.pin_touch", c.GPIO.PinTouch},
	}
	seen := map[int]string{}
	for _, p := range pins {
		if p.v < 0 {
			return fmt.Errorf("%s must be >= 0", p.name)
		}
		if other, dup := seen[p.v]; dup {
			return fmt.Errorf("%s and %s both use line %d", other, p.name, p.v)
		}
		seen[p.v] = p.name
	}

	if c.Encoder.SensorPollMs <= 0 {
		return errors.New("encoder.sensor_poll_ms must be > 0")
	}
	if c.Encoder.LoopMs <= 0 {
		return errors.New("encoder.loop_ms must be > 0")
	}
	if c.Encoder.LoopMs < c.Encoder.SensorPollMs {
		return errors.New("encoder.loop_ms must be >= encoder.sensor_poll_ms")
	}
	for i, s := range c.Encoder.ScaleFactors {
		if s <= 0 {
			return fmt.Errorf("encoder.scale_factors[%d] must be > 0", i)
		}
	}

	if c.Touch.Samples <= 0 {
		return errors.New("touch.samples must be > 0")
	}

	if c.PWM.Chip == "" {
		return errors.New("pwm.chip must not be empty")
	}
	if c.PWM.FreqHz <= 0 {
		return errors.New("pwm.freq_hz must be > 0")
	}
	for i, ch := range c.PWM.Channels {
		if ch < 0 {
			return fmt.Errorf("pwm.channels[%d] must be >= 0", i)
		}
	}

	if c.Flash.Path == "" {
		return errors.New("flash.path must not be empty")
	}
	if c.Flash.DebounceMs <= 0 {
		return errors.New("flash.debounce_ms must be > 0")
	}

	if c.MQTT.HeartbeatMs < 0 {
		return errors.New("mqtt.heartbeat_ms must be >= 0")
	}

	return nil
}
