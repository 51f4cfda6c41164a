package web

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/urisala1996/led-mixer/internal/persist"
	"github.com/urisala1996/led-mixer/internal/status"
)

func newTestServer(t *testing.T) (*httptest.Server, *Server, *status.Tracker) {
	t.Helper()
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cfg := status.Config{
		SensorPollMs: 10,
		LoopMs:       50,
		FlashMs:      5000,
		TouchSamples: 5,
		HeartbeatMs:  60000,
		Broker:       "tcp://192.168.1.200:1883",
		HTTPAddr:     ":8080",
		StorePath:    "/var/lib/led-mixer/state.db",
	}
	tr := status.NewTracker(start, cfg)
	srv := New(":0", tr)
	go srv.hub.Run()
	t.Cleanup(srv.hub.Stop)
	ts := httptest.NewServer(srv.httpServer.Handler)
	t.Cleanup(ts.Close)
	return ts, srv, tr
}

func TestJSONEndpoint(t *testing.T) {
	ts, _, tr := newTestServer(t)
	tr.Update(true, 200, 2, false, true, status.Counts{TouchEvents: 3, ButtonPress: 1})
	tr.SetPersistence(persist.LedState{Enabled: true, Value: 155}, true)
	tr.SetMQTTConnected(true)

	resp, err := http.Get(ts.URL + "/index.json")
	if err != nil {
		t.Fatalf("GET /index.json: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Errorf("status: got %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type: got %q, want application/json", ct)
	}

	var sj status.StatusJSON
	if err := json.NewDecoder(resp.Body).Decode(&sj); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}

	if sj.Status.Led.State != "ON" {
		t.Errorf("led state: got %q, want ON", sj.Status.Led.State)
	}
	if sj.Status.Led.Brightness != 200 {
		t.Errorf("brightness: got %d, want 200", sj.Status.Led.Brightness)
	}
	if sj.Status.ScaleFactor != 2 {
		t.Errorf("scale factor: got %d, want 2", sj.Status.ScaleFactor)
	}
	if !sj.Status.Flash.SavePending {
		t.Error("expected save_pending=true")
	}
	if sj.Status.Flash.CommittedBrightness != 155 {
		t.Errorf("committed brightness: got %d, want 155", sj.Status.Flash.CommittedBrightness)
	}
	if !sj.Status.MQTT.Connected {
		t.Error("expected MQTT.Connected=true")
	}
	if sj.Status.Counts.TouchEvents != 3 {
		t.Errorf("touch events: got %d, want 3", sj.Status.Counts.TouchEvents)
	}
	if sj.Status.Config.SensorPollMs != 10 {
		t.Errorf("sensor_poll_ms: got %d, want 10", sj.Status.Config.SensorPollMs)
	}
}

func TestHTMLEndpointRoot(t *testing.T) {
	ts, _, tr := newTestServer(t)
	tr.Update(true, 155, 1, false, false, status.Counts{})

	resp, err := http.Get(ts.URL + "/")
	if err != nil {
		t.Fatalf("GET /: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Errorf("status: got %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Content-Type: got %q, want text/html", ct)
	}
}

func TestHTMLEndpointIndexHTML(t *testing.T) {
	ts, _, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/index.html")
	if err != nil {
		t.Fatalf("GET /index.html: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Errorf("status: got %d, want 200", resp.StatusCode)
	}
}

func TestNotFoundForUnknownPath(t *testing.T) {
	ts, _, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/nonexistent")
	if err != nil {
		t.Fatalf("GET /nonexistent: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 404 {
		t.Errorf("status: got %d, want 404", resp.StatusCode)
	}
}

func dialWS(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", url, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readStatusFrame(t *testing.T, conn *websocket.Conn) status.StatusJSON {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read frame: %v", err)
	}
	var sj status.StatusJSON
	if err := json.Unmarshal(data, &sj); err != nil {
		t.Fatalf("unmarshal frame: %v", err)
	}
	return sj
}

func TestWebsocketInitialSnapshot(t *testing.T) {
	ts, _, tr := newTestServer(t)
	tr.Update(false, 42, 5, false, false, status.Counts{})

	conn := dialWS(t, ts)
	sj := readStatusFrame(t, conn)

	if sj.Status.Led.State != "OFF" {
		t.Errorf("led state: got %q, want OFF", sj.Status.Led.State)
	}
	if sj.Status.Led.Brightness != 42 {
		t.Errorf("brightness: got %d, want 42", sj.Status.Led.Brightness)
	}
}

// waitForClient polls until the hub has registered a client.
func waitForClient(t *testing.T, h *Hub) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for h.ClientCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("client never registered with hub")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestWebsocketBroadcast(t *testing.T) {
	ts, srv, tr := newTestServer(t)

	conn := dialWS(t, ts)
	readStatusFrame(t, conn) // initial snapshot

	// Broadcast skips the work when no clients are connected, so wait
	// for the hub to finish registering first.
	waitForClient(t, srv.hub)

	tr.Update(true, 210, 1, false, false, status.Counts{TouchEvents: 1})
	srv.Broadcast()

	sj := readStatusFrame(t, conn)
	if sj.Status.Led.Brightness != 210 {
		t.Errorf("brightness: got %d, want 210", sj.Status.Led.Brightness)
	}
	if sj.Status.Counts.TouchEvents != 1 {
		t.Errorf("touch events: got %d, want 1", sj.Status.Counts.TouchEvents)
	}
}

func TestHubStopDisconnectsClients(t *testing.T) {
	ts, srv, _ := newTestServer(t)

	conn := dialWS(t, ts)
	readStatusFrame(t, conn) // initial snapshot
	waitForClient(t, srv.hub)

	srv.hub.Stop()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Fatal("expected the connection to be closed after Stop")
	}
	if n := srv.hub.ClientCount(); n != 0 {
		t.Errorf("clients after Stop: got %d, want 0", n)
	}
}

func TestWebsocketAfterStopDisconnects(t *testing.T) {
	ts, srv, _ := newTestServer(t)
	srv.hub.Stop()

	// Connections arriving after shutdown must be torn down instead
	// of panicking the handler or lingering.
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		// The server may already refuse the upgrade outright.
		return
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}

func TestHubStopTwice(t *testing.T) {
	h := NewHub()
	go h.Run()
	h.Stop()
	h.Stop()
}
