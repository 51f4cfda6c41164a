package status

import (
	"encoding/json"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string     `json:"event,omitempty"`
	Reason        string     `json:"reason,omitempty"`
	Led           LedJSON    `json:"led"`
	ScaleFactor   int        `json:"scale_factor"`
	ButtonHeld    bool       `json:"button_held"`
	Touched       bool       `json:"touched"`
	UptimeSeconds int64      `json:"uptime_seconds"`
	StartTime     string     `json:"start_time"`
	Timestamp     string     `json:"timestamp"`
	MQTT          MQTTStatus `json:"mqtt"`
	Counts        CountsJSON `json:"event_counts"`
	Flash         FlashJSON  `json:"flash"`
	Config        ConfigJSON `json:"config"`
}

// LedJSON is the live LED state.
type LedJSON struct {
	State      string `json:"state"` // "ON" or "OFF"
	Brightness uint8  `json:"brightness"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// CountsJSON is the JSON representation of event counts.
type CountsJSON struct {
	TouchEvents  uint32 `json:"touch_events"`
	ButtonPress  uint32 `json:"button_presses"`
	InvalidSteps uint32 `json:"invalid_steps"`
}

// FlashJSON reports the persistence layer's view.
type FlashJSON struct {
	CommittedState      string `json:"committed_state"`
	CommittedBrightness uint8  `json:"committed_brightness"`
	SavePending         bool   `json:"save_pending"`
	Writes              uint64 `json:"writes"`
	Errors              uint64 `json:"errors"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	SensorPollMs int64  `json:"sensor_poll_ms"`
	LoopMs       int64  `json:"loop_ms"`
	FlashMs      int64  `json:"flash_debounce_ms"`
	TouchSamples int    `json:"touch_debounce_samples"`
	HeartbeatMs  int64  `json:"heartbeat_ms"`
	Broker       string `json:"broker"`
	HTTPAddr     string `json:"http_addr"`
	StorePath    string `json:"store_path"`
}

func onOff(on bool) string {
	if on {
		return "ON"
	}
	return "OFF"
}

func buildInner(snap Snapshot) StatusInner {
	return StatusInner{
		Led: LedJSON{
			State:      onOff(snap.Enabled),
			Brightness: snap.Brightness,
		},
		ScaleFactor:   snap.ScaleFactor,
		ButtonHeld:    snap.ButtonHeld,
		Touched:       snap.Touched,
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Counts: CountsJSON{
			TouchEvents:  snap.Counts.TouchEvents,
			ButtonPress:  snap.Counts.ButtonPress,
			InvalidSteps: snap.Counts.InvalidSteps,
		},
		Flash: FlashJSON{
			CommittedState:      onOff(snap.Committed.Enabled),
			CommittedBrightness: snap.Committed.Value,
			SavePending:         snap.SavePending,
			Writes:              snap.Counts.FlashWrites,
			Errors:              snap.Counts.FlashErrors,
		},
		Config: ConfigJSON{
			SensorPollMs: snap.Config.SensorPollMs,
			LoopMs:       snap.Config.LoopMs,
			FlashMs:      snap.Config.FlashMs,
			TouchSamples: snap.Config.TouchSamples,
			HeartbeatMs:  snap.Config.HeartbeatMs,
			Broker:       snap.Config.Broker,
			HTTPAddr:     snap.Config.HTTPAddr,
			StorePath:    snap.Config.StorePath,
		},
	}
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(StatusJSON{Status: buildInner(snap)}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason
	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
