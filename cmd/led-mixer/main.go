// Command led-mixer drives a dual-channel LED from a rotary encoder and
// a capacitive touch sensor, persisting state to flash and publishing
// changes to MQTT.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/urisala1996/led-mixer/internal/config"
	"github.com/urisala1996/led-mixer/internal/encoder"
	"github.com/urisala1996/led-mixer/internal/gpio"
	"github.com/urisala1996/led-mixer/internal/mqtt"
	"github.com/urisala1996/led-mixer/internal/persist"
	"github.com/urisala1996/led-mixer/internal/pwm"
	"github.com/urisala1996/led-mixer/internal/status"
	"github.com/urisala1996/led-mixer/internal/store"
	"github.com/urisala1996/led-mixer/internal/touch"
	"github.com/urisala1996/led-mixer/internal/web"
)

// storeNamespace is the bucket all persisted keys live under.
const storeNamespace = "led_ctrl"

// persistCheckEvery is how many driving-loop ticks pass between flash
// debounce checks (~200ms at the default 50ms loop).
const persistCheckEvery = 4

func main() {
	configPath := flag.String("config", "", "YAML config file (defaults apply if empty)")
	broker := flag.String("broker", "", "MQTT broker address (overrides config, empty disables)")
	httpAddr := flag.String("http", "", "HTTP status address (overrides config, empty disables)")
	storePath := flag.String("store", "", "Flash state database path (overrides config)")
	printState := flag.Bool("print-state", false, "Print persisted state and exit")

	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		var err error
		cfg, err = config.Load(*configPath)
		if err != nil {
			log.Fatalf("fatal: %v", err)
		}
	}

	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "broker":
			cfg.MQTT.Broker = *broker
		case "http":
			cfg.HTTP.Addr = *httpAddr
		case "store":
			cfg.Flash.Path = *storePath
		}
	})

	if err := cfg.Validate(); err != nil {
		log.Fatalf("fatal: invalid config: %v", err)
	}

	if *printState {
		if err := runPrintState(cfg); err != nil {
			log.Fatalf("fatal: %v", err)
		}
		return
	}

	if err := run(cfg); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

// runPrintState loads the persisted state and prints it.
func runPrintState(cfg config.Config) error {
	st, err := store.OpenBolt(cfg.Flash.Path, storeNamespace)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	saver := persist.New(st, int(cfg.Flash.DebounceMs), nil)
	state, err := saver.Load()
	if err != nil {
		return fmt.Errorf("load state: %w", err)
	}
	fmt.Printf("LED: %s, brightness: %d\n", onOff(state.Enabled), state.Value)
	return nil
}

func run(cfg config.Config) error {
	sampler, err := gpio.NewRealSampler(cfg.GPIO.Chip, cfg.Pins())
	if err != nil {
		return fmt.Errorf("init gpio: %w", err)
	}
	defer sampler.Close()

	st, err := store.OpenBolt(cfg.Flash.Path, storeNamespace)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	saver := persist.New(st, int(cfg.Flash.DebounceMs), nil)
	state, err := saver.Load()
	if err != nil {
		log.Printf("flash load failed, using defaults: %v", err)
	}
	log.Printf("loaded state: led=%s brightness=%d", onOff(state.Enabled), state.Value)

	dec := encoder.New(encoder.Config{
		InitialPosition: int(state.Value),
		ScaleFactors:    cfg.Encoder.ScaleFactors,
	})
	deb := touch.New(cfg.Touch.Samples)

	channels := [pwm.NumChannels]int{0, 1}
	for i, ch := range cfg.PWM.Channels {
		if i < pwm.NumChannels {
			channels[i] = ch
		}
	}
	out, err := pwm.NewSysfsOutput(filepath.Join("/sys/class/pwm", cfg.PWM.Chip), channels, int(cfg.PWM.FreqHz))
	if err != nil {
		return fmt.Errorf("init pwm: %w", err)
	}
	defer out.Close()
	applyOutput(out, state.Enabled, state.Value)

	var publisher mqtt.Publisher
	var mqttStatus mqtt.ConnectionStatus
	if cfg.MQTT.Broker != "" {
		pub, err := mqtt.NewRealPublisher(cfg.MQTT.Broker)
		if err != nil {
			return fmt.Errorf("init mqtt: %w", err)
		}
		defer pub.Close()
		publisher = pub
		mqttStatus = pub
	}

	tracker := status.NewTracker(time.Now(), status.Config{
		SensorPollMs: cfg.Encoder.SensorPollMs,
		LoopMs:       cfg.Encoder.LoopMs,
		FlashMs:      cfg.Flash.DebounceMs,
		TouchSamples: cfg.Touch.Samples,
		HeartbeatMs:  cfg.MQTT.HeartbeatMs,
		Broker:       cfg.MQTT.Broker,
		HTTPAddr:     cfg.HTTP.Addr,
		StorePath:    cfg.Flash.Path,
	})
	tracker.Update(state.Enabled, state.Value, dec.ScaleFactor(), false, false, status.Counts{})
	tracker.SetPersistence(saver.LastCommitted(), saver.Pending())

	if publisher != nil {
		snap := tracker.Snapshot()
		startupEvent := mqtt.SystemEvent{
			Timestamp:  snap.Now,
			Event:      "STARTUP",
			Retained:   true,
			RawPayload: status.FormatStatusEvent(snap, "STARTUP", ""),
		}
		if err := publisher.PublishSystem(startupEvent); err != nil {
			log.Printf("failed to publish startup event: %v", err)
		} else {
			log.Printf("published startup event")
		}
	}

	broadcast := func() {}
	if cfg.HTTP.Addr != "" {
		srv := web.New(cfg.HTTP.Addr, tracker)
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("http server error: %v", err)
			}
		}()
		defer srv.Shutdown(context.Background())
		broadcast = srv.Broadcast
		log.Printf("http status server listening on %s", cfg.HTTP.Addr)
	}

	log.Printf("started: sensor_poll=%dms loop=%dms flash_debounce=%dms broker=%s",
		cfg.Encoder.SensorPollMs, cfg.Encoder.LoopMs, cfg.Flash.DebounceMs, cfg.MQTT.Broker)

	stop := make(chan struct{})
	defer close(stop)
	go pollSensors(sampler, dec, deb, time.Duration(cfg.Encoder.SensorPollMs)*time.Millisecond, stop)

	ticker := time.NewTicker(time.Duration(cfg.Encoder.LoopMs) * time.Millisecond)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	heartbeat := time.Duration(cfg.MQTT.HeartbeatMs) * time.Millisecond
	deps := loopDeps{
		dec:        dec,
		deb:        deb,
		saver:      saver,
		out:        out,
		publisher:  publisher,
		mqttStatus: mqttStatus,
		tracker:    tracker,
		broadcast:  broadcast,
	}
	return runLoop(deps, state, heartbeat, time.Now, ticker.C, sigCh)
}

// pollSensors reads the GPIO lines at a short fixed interval and feeds
// the decoder and debouncer. Runs in its own goroutine so the driving
// loop's cadence never affects quadrature timing.
func pollSensors(sampler gpio.Sampler, dec *encoder.Decoder, deb *touch.Debouncer, interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			s, err := sampler.Read()
			if err != nil {
				log.Printf("gpio read error: %v", err)
				continue
			}
			dec.Poll(s.Clk, s.Dt)
			dec.PollButton(s.Button)
			deb.Poll(s.Touch)
		}
	}
}

// loopDeps bundles what runLoop needs. publisher, mqttStatus, tracker,
// and broadcast may be nil.
type loopDeps struct {
	dec        *encoder.Decoder
	deb        *touch.Debouncer
	saver      *persist.Saver
	out        pwm.Output
	publisher  mqtt.Publisher
	mqttStatus mqtt.ConnectionStatus
	tracker    *status.Tracker
	broadcast  func()
}

// mixer holds the driving loop's state between ticks.
type mixer struct {
	deps      loopDeps
	heartbeat time.Duration
	now       func() time.Time

	startTime     time.Time
	lastHeartbeat time.Time

	enabled        bool
	lastPosition   int
	lastTouchCount uint32
	lastScale      int

	flashWrites uint64
	flashErrors uint64
	iteration   uint64
}

func newMixer(deps loopDeps, initial persist.LedState, heartbeat time.Duration, now func() time.Time) *mixer {
	startTime := now()
	return &mixer{
		deps:           deps,
		heartbeat:      heartbeat,
		now:            now,
		startTime:      startTime,
		lastHeartbeat:  startTime,
		enabled:        initial.Enabled,
		lastPosition:   int(initial.Value),
		lastTouchCount: deps.deb.EventCount(),
		lastScale:      deps.dec.ScaleFactor(),
	}
}

// tick runs one driving-loop iteration: react to decoder and debouncer
// state, apply PWM output, queue flash saves, publish MQTT events.
func (m *mixer) tick() {
	t := m.now()
	m.iteration++
	changed := false

	pos := m.deps.dec.Position()
	touchCount := m.deps.deb.EventCount()
	scale := m.deps.dec.ScaleFactor()

	// Touch toggle. Each debounced touch event flips the LED.
	if touchCount != m.lastTouchCount {
		m.lastTouchCount = touchCount
		m.enabled = !m.enabled
		applyOutput(m.deps.out, m.enabled, uint8(m.lastPosition))
		m.deps.saver.RequestSave(persist.LedState{Enabled: m.enabled, Value: uint8(m.lastPosition)})
		changed = true

		evType := mqtt.EventLedOff
		if m.enabled {
			evType = mqtt.EventLedOn
		}
		log.Printf("event: %s (brightness=%d)", evType, m.lastPosition)
		m.publish(t, evType)
	}

	// Brightness. The stored setting only tracks the encoder while the
	// LED is on; rotation while off is ignored.
	if m.enabled && pos != m.lastPosition {
		m.lastPosition = pos
		applyOutput(m.deps.out, m.enabled, uint8(m.lastPosition))
		m.deps.saver.RequestSave(persist.LedState{Enabled: m.enabled, Value: uint8(m.lastPosition)})
		changed = true

		log.Printf("event: %s (brightness=%d)", mqtt.EventBrightness, m.lastPosition)
		m.publish(t, mqtt.EventBrightness)
	}

	if scale != m.lastScale {
		m.lastScale = scale
		changed = true
		log.Printf("event: %s (scale=%d)", mqtt.EventScale, scale)
		m.publish(t, mqtt.EventScale)
	}

	if m.iteration%persistCheckEvery == 0 {
		wasPending := m.deps.saver.Pending()
		if err := m.deps.saver.CheckPendingWrite(); err != nil {
			log.Printf("flash write failed: %v", err)
			m.flashErrors++
			changed = true
		} else if wasPending && !m.deps.saver.Pending() {
			m.flashWrites++
			changed = true
		}
	}

	m.updateTracker(touchCount)

	if changed && m.deps.broadcast != nil {
		m.deps.broadcast()
	}

	if m.heartbeat > 0 && t.Sub(m.lastHeartbeat) >= m.heartbeat {
		m.lastHeartbeat = t
		hbEvent := mqtt.SystemEvent{
			Timestamp: t,
			Event:     "HEARTBEAT",
		}
		if m.deps.tracker != nil {
			snap := m.deps.tracker.Snapshot()
			hbEvent.RawPayload = status.FormatStatusEvent(snap, "HEARTBEAT", "")
			log.Printf("heartbeat: uptime=%v led=%s brightness=%d touches=%d",
				snap.Uptime().Truncate(time.Second), onOff(m.enabled), m.lastPosition, touchCount)
		}
		if m.deps.publisher != nil {
			if err := m.deps.publisher.PublishSystem(hbEvent); err != nil {
				log.Printf("heartbeat publish error: %v", err)
			}
		}
	}
}

// shutdown flushes any queued flash write and publishes the retained
// SHUTDOWN event.
func (m *mixer) shutdown(signalName string) {
	wasPending := m.deps.saver.Pending()
	if err := m.deps.saver.Flush(); err != nil {
		log.Printf("final flash write failed: %v", err)
		m.flashErrors++
	} else if wasPending {
		m.flashWrites++
	}

	if m.deps.publisher == nil {
		return
	}
	event := mqtt.SystemEvent{
		Timestamp: m.now(),
		Event:     "SHUTDOWN",
		Reason:    signalName,
		Retained:  true,
	}
	if m.deps.tracker != nil {
		m.updateTracker(m.lastTouchCount)
		snap := m.deps.tracker.Snapshot()
		event.RawPayload = status.FormatStatusEvent(snap, "SHUTDOWN", signalName)
	}
	if err := m.deps.publisher.PublishSystem(event); err != nil {
		log.Printf("failed to publish shutdown event: %v", err)
	} else {
		log.Printf("published shutdown event")
	}
}

func (m *mixer) publish(t time.Time, evType mqtt.EventType) {
	if m.deps.publisher == nil {
		return
	}
	if err := m.deps.publisher.Publish(mqtt.Event{
		Timestamp:  t,
		Type:       evType,
		Enabled:    m.enabled,
		Brightness: uint8(m.lastPosition),
		Scale:      m.deps.dec.ScaleFactor(),
	}); err != nil {
		log.Printf("publish error: %v", err)
	}
}

func (m *mixer) updateTracker(touchCount uint32) {
	if m.deps.tracker == nil {
		return
	}
	if m.deps.mqttStatus != nil {
		m.deps.tracker.SetMQTTConnected(m.deps.mqttStatus.IsConnected())
	}
	m.deps.tracker.Update(m.enabled, uint8(m.lastPosition), m.deps.dec.ScaleFactor(),
		m.deps.dec.ButtonPressed(), m.deps.deb.Touched(), status.Counts{
			TouchEvents:  touchCount,
			ButtonPress:  m.deps.dec.PressCount(),
			InvalidSteps: m.deps.dec.InvalidTransitions(),
			FlashWrites:  m.flashWrites,
			FlashErrors:  m.flashErrors,
		})
	m.deps.tracker.SetPersistence(m.deps.saver.LastCommitted(), m.deps.saver.Pending())
}

// runLoop drives the mixer until a shutdown signal arrives.
func runLoop(deps loopDeps, initial persist.LedState, heartbeat time.Duration, now func() time.Time, tick <-chan time.Time, sig <-chan os.Signal) error {
	m := newMixer(deps, initial, heartbeat, now)

	for {
		select {
		case s := <-sig:
			log.Printf("received %v, shutting down", s)
			signalName := "UNKNOWN"
			if s == syscall.SIGINT {
				signalName = "SIGINT"
			} else if s == syscall.SIGTERM {
				signalName = "SIGTERM"
			}
			m.shutdown(signalName)
			return nil

		case <-tick:
			m.tick()
		}
	}
}

// applyOutput drives both PWM channels: the stored brightness while
// enabled, dark otherwise.
func applyOutput(out pwm.Output, enabled bool, value uint8) {
	duty := uint8(0)
	if enabled {
		duty = value
	}
	if err := out.SetBrightness(duty); err != nil {
		log.Printf("pwm write error: %v", err)
	}
}

func onOff(on bool) string {
	if on {
		return "ON"
	}
	return "OFF"
}
