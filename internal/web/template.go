package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/tickdemo/internal/status"
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
	"modeOrUnknown": func(s string) string {
		if s == "" {
			return "UNKNOWN"
		}
		return s
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>tickdemo</title>
<style>
body { font-family: monospace; max-width: 700px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.SUSPENDED { color: #888; }
.RUNNING { color: green; font-weight: bold; }
.DELETED { color: red; }
.connected { color: green; }
.disconnected { color: red; }
.live-dot { display: inline-block; width: 8px; height: 8px; border-radius: 50%; margin-left: 6px; vertical-align: middle; background: orange; }
.live-dot.ok { background: green; }
.live-dot.err { background: red; }
img { border: 1px solid #ddd; max-width: 100%; }
</style>
</head>
<body>
<h1>tickdemo<span id="live-dot" class="live-dot" title="connecting"></span></h1>

<h2>State</h2>
<table>
<tr><th>Mode</th><td id="mode">{{modeOrUnknown .Mode}}</td></tr>
<tr><th>Counter</th><td id="counter">{{.Counter}}</td></tr>
<tr><th>Tick</th><td id="tick">{{.Tick}}</td></tr>
<tr><th>FPS</th><td id="fps">{{.FPS}}</td></tr>
<tr><th>Transitions</th><td id="transitions">{{.Counts.Transitions}}</td></tr>
<tr><th>Resets</th><td id="resets">{{.Counts.Resets}}</td></tr>
</table>

{{if .HasFrame}}<img id="frame" src="/frame.png" width="640" height="480" alt="screen">{{end}}

<h2>Tasks</h2>
<table id="tasks">
{{range .Tasks}}<tr><th>{{.Name}} ({{.Priority}})</th><td class="{{.State}}">{{.State}}</td></tr>
{{end}}</table>

<h2>Ticks</h2>
<pre id="rows">{{range .Rows}}{{.}}
{{end}}</pre>

<h2>System</h2>
<table>
<tr><th>Run</th><td>{{.RunID}}</td></tr>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>
<tr><th>Policy</th><td>{{.Config.Policy}}</td></tr>
<tr><th>Debounce</th><td>{{.Config.DebounceTicks}} ticks{{if .Config.SharedDebounce}} (shared){{end}}</td></tr>
<tr><th>Reset period</th><td>{{.Config.ResetPeriodTicks}} ticks</td></tr>
<tr><th>Producers</th><td>{{.Config.Periods}} / {{.Config.HorizonTicks}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPAddr}}</td></tr>
</table>

<p><a href="/index.json">JSON</a> <a href="/metrics">metrics</a></p>
<script>
(function() {
  var dot = document.getElementById("live-dot");
  var frame = document.getElementById("frame");

  function text(id, v) {
    document.getElementById(id).textContent = v;
  }

  function connect() {
    var proto = location.protocol === "https:" ? "wss://" : "ws://";
    var ws = new WebSocket(proto + location.host + "/ws");
    ws.onopen = function() { dot.className = "live-dot ok"; dot.title = "live"; };
    ws.onclose = function() {
      dot.className = "live-dot err"; dot.title = "offline";
      setTimeout(connect, 5000);
    };
    ws.onmessage = function(ev) {
      try {
        var s = JSON.parse(ev.data).status;
        text("mode", s.mode);
        text("counter", s.counter);
        text("tick", s.tick);
        text("fps", s.fps);
        text("transitions", s.counts.transitions);
        text("resets", s.counts.resets);
        text("rows", s.rows.join("\n"));
        var html = "";
        s.tasks.forEach(function(t) {
          html += "<tr><th>" + t.name + " (" + t.priority + ")</th><td class=\"" + t.state + "\">" + t.state + "</td></tr>";
        });
        document.getElementById("tasks").innerHTML = html;
        if (frame) { frame.src = "/frame.png?t=" + s.tick; }
      } catch (e) {}
    };
  }
  connect();
})();
</script>
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot, hasFrame bool) error {
	// Snapshot has Uptime() method but template needs a Duration field.
	data := struct {
		status.Snapshot
		Uptime   time.Duration
		HasFrame bool
	}{
		Snapshot: snap,
		Uptime:   snap.Uptime(),
		HasFrame: hasFrame,
	}
	return indexTmpl.Execute(w, data)
}
