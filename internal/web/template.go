package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/urisala1996/led-mixer/internal/status"
)

var indexTmpl = template.Must(template.New("index").Funcs(template.FuncMap{
	"uptime": func(d time.Duration) string {
		d = d.Truncate(time.Second)
		days := int(d.Hours()) / 24
		h := int(d.Hours()) % 24
		m := int(d.Minutes()) % 60
		s := int(d.Seconds()) % 60
		if days > 0 {
			return fmt.Sprintf("%dd %dh %dm %ds", days, h, m, s)
		}
		if h > 0 {
			return fmt.Sprintf("%dh %dm %ds", h, m, s)
		}
		if m > 0 {
			return fmt.Sprintf("%dm %ds", m, s)
		}
		return fmt.Sprintf("%ds", s)
	},
	"onOff": func(b bool) string {
		if b {
			return "ON"
		}
		return "OFF"
	},
	"pct": func(v uint8) int {
		return int(v) * 100 / 255
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>LED Mixer</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.on { color: green; font-weight: bold; }
.off { color: #888; }
.connected { color: green; }
.disconnected { color: red; }
.bar { background: #eee; height: 12px; border-radius: 6px; overflow: hidden; }
.bar > div { background: #f5a623; height: 100%; }
.live-dot { display: inline-block; width: 8px; height: 8px; border-radius: 50%; margin-left: 6px; vertical-align: middle; }
.live-dot.ok { background: green; }
.live-dot.err { background: red; }
.live-dot.pending { background: orange; }
</style>
</head>
<body>
<h1>LED Mixer<span id="live-dot" class="live-dot pending" title="connecting"></span></h1>

<h2>State</h2>
<table>
<tr><th>LED</th><td id="led-state" class="{{if .Enabled}}on{{else}}off{{end}}">{{onOff .Enabled}}</td></tr>
<tr><th>Brightness</th><td id="brightness">{{.Brightness}} / 255</td></tr>
<tr><th></th><td><div class="bar"><div id="brightness-bar" style="width: {{pct .Brightness}}%"></div></div></td></tr>
<tr><th>Scale Factor</th><td id="scale">{{.ScaleFactor}}</td></tr>
</table>

<h2>Flash</h2>
<table>
<tr><th>Committed</th><td id="flash-committed">{{onOff .Committed.Enabled}} @ {{.Committed.Value}}</td></tr>
<tr><th>Save Pending</th><td id="flash-pending">{{if .SavePending}}yes{{else}}no{{end}}</td></tr>
<tr><th>Writes</th><td id="flash-writes">{{.Counts.FlashWrites}}</td></tr>
<tr><th>Errors</th><td id="flash-errors">{{.Counts.FlashErrors}}</td></tr>
</table>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{if .Config.Broker}}{{.Config.Broker}}{{else}}disabled{{end}}</td></tr>
</table>

<h2>Event Counts</h2>
<table>
<tr><th>Touch Events</th><td id="count-touch">{{.Counts.TouchEvents}}</td></tr>
<tr><th>Button Presses</th><td id="count-button">{{.Counts.ButtonPress}}</td></tr>
<tr><th>Invalid Steps</th><td id="count-invalid">{{.Counts.InvalidSteps}}</td></tr>
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Sensor Poll</th><td>{{.Config.SensorPollMs}}ms</td></tr>
<tr><th>Loop</th><td>{{.Config.LoopMs}}ms</td></tr>
<tr><th>Flash Debounce</th><td>{{.Config.FlashMs}}ms</td></tr>
<tr><th>Touch Samples</th><td>{{.Config.TouchSamples}}</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Config.HeartbeatMs 0}}disabled{{else}}{{.Config.HeartbeatMs}}ms{{end}}</td></tr>
<tr><th>Store</th><td>{{.Config.StorePath}}</td></tr>
</table>

<p><a href="/index.json">JSON</a></p>
<script>
(function() {
  var dot = document.getElementById("live-dot");

  function setDot(cls, title) {
    dot.className = "live-dot " + cls;
    dot.title = title;
  }

  function setText(id, text) {
    document.getElementById(id).textContent = text;
  }

  function apply(msg) {
    var s = msg.status;
    if (!s) return;
    var led = document.getElementById("led-state");
    led.textContent = s.led.state;
    led.className = s.led.state === "ON" ? "on" : "off";
    setText("brightness", s.led.brightness + " / 255");
    document.getElementById("brightness-bar").style.width =
      Math.round(s.led.brightness * 100 / 255) + "%";
    setText("scale", s.scale_factor);
    setText("flash-committed", s.flash.committed_state + " @ " + s.flash.committed_brightness);
    setText("flash-pending", s.flash.save_pending ? "yes" : "no");
    setText("flash-writes", s.flash.writes);
    setText("flash-errors", s.flash.errors);
    setText("count-touch", s.event_counts.touch_events);
    setText("count-button", s.event_counts.button_presses);
    setText("count-invalid", s.event_counts.invalid_steps);
  }

  function connect() {
    var proto = location.protocol === "https:" ? "wss:" : "ws:";
    var ws = new WebSocket(proto + "//" + location.host + "/ws");

    ws.onopen = function() { setDot("ok", "live"); };
    ws.onclose = function() {
      setDot("err", "disconnected");
      setTimeout(connect, 5000);
    };
    ws.onmessage = function(ev) {
      try { apply(JSON.parse(ev.data)); } catch (e) {}
    };
  }

  connect();
})();
</script>
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot) {
	// Snapshot has Uptime() method but the template needs a field.
	data := struct {
		status.Snapshot
		Uptime time.Duration
	}{
		Snapshot: snap,
		Uptime:   snap.Uptime(),
	}
	indexTmpl.Execute(w, data)
}
