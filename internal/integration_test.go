package internal

import (
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/urisala1996/led-mixer/internal/encoder"
	"github.com/urisala1996/led-mixer/internal/gpio"
	"github.com/urisala1996/led-mixer/internal/mqtt"
	"github.com/urisala1996/led-mixer/internal/persist"
	"github.com/urisala1996/led-mixer/internal/store"
	"github.com/urisala1996/led-mixer/internal/touch"
)

// sample builds a quiescent GPIO sample for the given encoder phase.
// Phase bit 1 is CLK, bit 0 is DT.
func sample(phase uint8, button, touched bool) gpio.Sample {
	return gpio.Sample{
		Clk:    phase&2 != 0,
		Dt:     phase&1 != 0,
		Button: button,
		Touch:  touched,
	}
}

// TestIntegrationEncoderToPersistence runs GPIO samples through the
// decoder and persistence layers: a clockwise turn raises the stored
// brightness, which commits after the quiet window.
func TestIntegrationEncoderToPersistence(t *testing.T) {
	// Rest, one full CW detent cycle, then rest again.
	samples := []gpio.Sample{
		sample(0, false, false),
		sample(1, false, false),
		sample(3, false, false),
		sample(2, false, false),
		sample(0, false, false),
		sample(0, false, false),
	}

	sampler := gpio.NewFakeSampler(samples)
	dec := encoder.New(encoder.Config{InitialPosition: 155})
	deb := touch.New(0)

	fs := store.NewFakeStore()
	var ms uint32
	saver := persist.New(fs, 100, func() uint32 { return ms })

	for range samples {
		s, err := sampler.Read()
		if err != nil {
			t.Fatalf("gpio read: %v", err)
		}
		dec.Poll(s.Clk, s.Dt)
		dec.PollButton(s.Button)
		deb.Poll(s.Touch)
		ms += 10
	}

	if got := dec.Position(); got != 159 {
		t.Fatalf("position: got %d, want 159", got)
	}

	saver.RequestSave(persist.LedState{Enabled: true, Value: uint8(dec.Position())})
	ms += 100
	if err := saver.CheckPendingWrite(); err != nil {
		t.Fatalf("CheckPendingWrite: %v", err)
	}

	if fs.CommitCount != 1 {
		t.Errorf("commits: got %d, want 1", fs.CommitCount)
	}
	if got := fs.Values[persist.KeyValue]; len(got) != 4 || got[0] != 159 {
		t.Errorf("persisted value: got %v, want u32 159", got)
	}
	if got := fs.Values[persist.KeyEnabled]; len(got) != 1 || got[0] != 1 {
		t.Errorf("persisted enabled: got %v, want [1]", got)
	}
}

// TestIntegrationTouchToggleAndEvents feeds a debounced touch through
// the chain and checks the published payload.
func TestIntegrationTouchToggleAndEvents(t *testing.T) {
	// Five agreeing samples confirm the touch; the short blip before
	// them must be rejected.
	samples := []gpio.Sample{
		sample(0, false, false),
		sample(0, false, true), // blip
		sample(0, false, false),
		sample(0, false, true),
		sample(0, false, true),
		sample(0, false, true),
		sample(0, false, true),
		sample(0, false, true), // confirmed here
	}

	sampler := gpio.NewFakeSampler(samples)
	deb := touch.New(0)
	publisher := mqtt.NewFakePublisher()

	enabled := true
	lastCount := deb.EventCount()

	for i := range samples {
		s, err := sampler.Read()
		if err != nil {
			t.Fatalf("sample %d: gpio read: %v", i, err)
		}
		deb.Poll(s.Touch)

		if c := deb.EventCount(); c != lastCount {
			lastCount = c
			enabled = !enabled
			evType := mqtt.EventLedOff
			if enabled {
				evType = mqtt.EventLedOn
			}
			publisher.Publish(mqtt.Event{
				Timestamp:  time.Date(2026, 2, 2, 22, 18, 12, 0, time.UTC),
				Type:       evType,
				Enabled:    enabled,
				Brightness: 155,
				Scale:      1,
			})
		}
	}

	if len(publisher.Events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(publisher.Events))
	}
	if publisher.Events[0].Type != mqtt.EventLedOff {
		t.Errorf("expected LED_OFF, got %s", publisher.Events[0].Type)
	}

	expected := `{"mixer":{"timestamp":"2026-02-02T22:18:12Z","event":"LED_OFF","led":{"state":"OFF","brightness":155},"scale":1}}`
	if string(publisher.Payloads[0]) != expected {
		t.Errorf("unexpected payload:\ngot:  %s\nwant: %s", publisher.Payloads[0], expected)
	}
}

// TestIntegrationStateSurvivesRestart persists through a real bolt
// database and loads it back the way a reboot would.
func TestIntegrationStateSurvivesRestart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")

	st, err := store.OpenBolt(path, "led_ctrl")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}

	var ms uint32
	saver := persist.New(st, 100, func() uint32 { return ms })
	if _, err := saver.Load(); err != nil {
		t.Fatalf("first load: %v", err)
	}

	saver.RequestSave(persist.LedState{Enabled: false, Value: 42})
	ms += 100
	if err := saver.CheckPendingWrite(); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if err := st.Close(); err != nil {
		t.Fatalf("close store: %v", err)
	}

	// "Reboot": reopen and load.
	st2, err := store.OpenBolt(path, "led_ctrl")
	if err != nil {
		t.Fatalf("reopen store: %v", err)
	}
	defer st2.Close()

	saver2 := persist.New(st2, 100, func() uint32 { return 0 })
	state, err := saver2.Load()
	if err != nil {
		t.Fatalf("second load: %v", err)
	}

	if state.Enabled {
		t.Error("expected led disabled after restart")
	}
	if state.Value != 42 {
		t.Errorf("value after restart: got %d, want 42", state.Value)
	}
}

// TestIntegrationShutdownPayloadFormat verifies the exact JSON
// structure for shutdown events.
func TestIntegrationShutdownPayloadFormat(t *testing.T) {
	publisher := mqtt.NewFakePublisher()

	event := mqtt.SystemEvent{
		Timestamp: time.Date(2026, 2, 3, 10, 30, 45, 0, time.UTC),
		Event:     "SHUTDOWN",
		Reason:    "SIGTERM",
	}
	publisher.PublishSystem(event)

	expected := `{"system":{"timestamp":"2026-02-03T10:30:45Z","event":"SHUTDOWN","reason":"SIGTERM"}}`
	if string(publisher.SystemPayloads[0]) != expected {
		t.Errorf("unexpected payload:\ngot:  %s\nwant: %s", publisher.SystemPayloads[0], expected)
	}
}

// TestIntegrationScaleAffectsStep runs button and rotation samples
// together: a press doubles the step of the following detent cycle.
func TestIntegrationScaleAffectsStep(t *testing.T) {
	samples := []gpio.Sample{
		sample(0, false, false),
		sample(0, true, false), // press: scale 1 -> 2
		sample(0, false, false),
		sample(1, false, false),
		sample(3, false, false),
		sample(2, false, false),
		sample(0, false, false),
	}

	sampler := gpio.NewFakeSampler(samples)
	dec := encoder.New(encoder.Config{InitialPosition: 100})

	for range samples {
		s, err := sampler.Read()
		if err != nil {
			t.Fatalf("gpio read: %v", err)
		}
		dec.Poll(s.Clk, s.Dt)
		dec.PollButton(s.Button)
	}

	if got := dec.ScaleFactor(); got != 2 {
		t.Errorf("scale: got %d, want 2", got)
	}
	// 4 transitions at scale 2.
	if got := dec.Position(); got != 108 {
		t.Errorf("position: got %d, want 108", got)
	}
	if got := dec.PressCount(); got != 1 {
		t.Errorf("press count: got %d, want 1", got)
	}
}

// TestIntegrationEventPayloadsParse round-trips every event type
// through the publisher's JSON encoding.
func TestIntegrationEventPayloadsParse(t *testing.T) {
	publisher := mqtt.NewFakePublisher()
	for _, evType := range []mqtt.EventType{
		mqtt.EventLedOn, mqtt.EventLedOff, mqtt.EventBrightness, mqtt.EventScale,
	} {
		publisher.Publish(mqtt.Event{
			Timestamp:  time.Now(),
			Type:       evType,
			Enabled:    true,
			Brightness: 128,
			Scale:      5,
		})
	}

	for i, payload := range publisher.Payloads {
		var parsed mqtt.Payload
		if err := json.Unmarshal(payload, &parsed); err != nil {
			t.Errorf("payload %d: invalid JSON: %v", i, err)
			continue
		}
		if parsed.Mixer.Timestamp == "" {
			t.Errorf("payload %d: missing timestamp", i)
		}
		if parsed.Mixer.Event == "" {
			t.Errorf("payload %d: missing event", i)
		}
	}
}
