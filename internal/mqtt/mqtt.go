// Package mqtt provides MQTT publishing with abstraction for testing.
package mqtt

import (
	"encoding/json"
	"time"
)

// Topic is the MQTT topic for mixer state events.
const Topic = "home/led-mixer/events"

// TopicSystem is the MQTT topic for system lifecycle events.
const TopicSystem = "home/led-mixer/system"

// EventType labels a mixer state transition.
type EventType string

const (
	EventLedOn      EventType = "LED_ON"
	EventLedOff     EventType = "LED_OFF"
	EventBrightness EventType = "BRIGHTNESS"
	EventScale      EventType = "SCALE"
)

// Event represents a mixer state change to be published.
type Event struct {
	Timestamp  time.Time
	Type       EventType
	Enabled    bool
	Brightness uint8
	Scale      int
}

// Publisher publishes events to MQTT.
type Publisher interface {
	// Publish sends a mixer event to the broker.
	// Returns error if publishing fails (should not crash the process).
	Publish(event Event) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown, heartbeat).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "HEARTBEAT"
	Reason     string // e.g., "SIGTERM", "SIGINT" (shutdown only)
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// Payload represents the MQTT message payload structure.
type Payload struct {
	Mixer MixerPayload `json:"mixer"`
}

// MixerPayload contains the mixer event details.
type MixerPayload struct {
	Timestamp string   `json:"timestamp"`
	Event     string   `json:"event"`
	Led       LedState `json:"led"`
	Scale     int      `json:"scale"`
}

// LedState represents the LED output in a payload.
type LedState struct {
	State      string `json:"state"`
	Brightness uint8  `json:"brightness"`
}

// FormatPayload creates the JSON payload for a mixer event.
func FormatPayload(event Event) ([]byte, error) {
	state := "OFF"
	if event.Enabled {
		state = "ON"
	}
	payload := Payload{
		Mixer: MixerPayload{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     string(event.Type),
			Led: LedState{
				State:      state,
				Brightness: event.Brightness,
			},
			Scale: event.Scale,
		},
	}
	return json.Marshal(payload)
}

// SystemPayload represents the MQTT message payload for system events.
// Used for simple events that don't carry a full status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly (used for full status snapshots).
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}

	payload := SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
		},
	}
	return json.Marshal(payload)
}
