package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/ppd42-sensor/internal/status"
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
	"f2": func(v float64) string {
		return fmt.Sprintf("%.2f", v)
	},
	"f3": func(v float64) string {
		return fmt.Sprintf("%.3f", v)
	},
	"ms": func(us uint64) string {
		return fmt.Sprintf("%.1f", float64(us)/1000)
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<meta http-equiv="refresh" content="10">
<title>PPD42 Dust Sensor</title>
<style>
body { font-family: monospace; max-width: 640px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.warn { color: orange; }
.connected { color: green; }
.disconnected { color: red; }
</style>
</head>
<body>
<h1>PPD42 Dust Sensor</h1>

<h2>Latest Reading</h2>
{{with .Last}}
<table>
<tr><th></th><th>PM1.0</th><th>PM2.5</th></tr>
<tr><th>Concentration (pcs/0.01cf)</th><td>{{f2 .PM10.Concentration}}</td><td>{{f2 .PM25.Concentration}}</td></tr>
<tr><th>Mass (µg/m³)</th><td>{{f3 .PM10.UGM3}}</td><td>{{f3 .PM25.UGM3}}</td></tr>
<tr><th>Low pulse occupancy (%)</th><td{{if .PM10.Clamped}} class="warn"{{end}}>{{f3 .PM10.Ratio}}</td><td{{if .PM25.Clamped}} class="warn"{{end}}>{{f3 .PM25.Ratio}}</td></tr>
<tr><th>Low time (ms)</th><td>{{ms .PM10.LowMicros}}</td><td>{{ms .PM25.LowMicros}}</td></tr>
<tr><th>Pulses</th><td>{{.PM10.Pulses}}</td><td>{{.PM25.Pulses}}</td></tr>
<tr><th>Spurious edges</th><td>{{.PM10.Spurious}}</td><td>{{.PM25.Spurious}}</td></tr>
</table>
<table>
<tr><th>PM1.0-2.5 (µg/m³)</th><td>{{f3 .BandUGM3}}</td></tr>
<tr><th>Window</th><td>#{{.Seq}} closed {{.Timestamp.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
</table>
{{else}}
<p>Waiting for the first sampling window.</p>
{{end}}

<h2>Connectivity</h2>
<table>
{{if .Config.Broker}}<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>{{else}}<tr><th>MQTT</th><td>disabled</td></tr>{{end}}
{{if .Config.SerialPort}}<tr><th>Serial</th><td>{{.Config.SerialPort}}</td></tr>{{end}}
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Windows</th><td>{{.Windows}}</td></tr>
<tr><th>Next reading</th><td>{{uptime .NextReading}}</td></tr>
<tr><th>Window</th><td>{{.Config.WindowMs}}ms</td></tr>
<tr><th>Poll</th><td>{{.Config.PollMs}}ms</td></tr>
<tr><th>Zero policy</th><td>{{.Config.ZeroPolicy}}</td></tr>
<tr><th>GPIO</th><td>{{.Config.Backend}} PM1.0={{.Config.PinPM10}} PM2.5={{.Config.PinPM25}}</td></tr>
</table>

<p><a href="/index.json">JSON</a></p>
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot) error {
	// Snapshot has Uptime() method but template needs a Duration field.
	data := struct {
		status.Snapshot
		Uptime time.Duration
	}{
		Snapshot: snap,
		Uptime:   snap.Uptime(),
	}
	return indexTmpl.Execute(w, data)
}
