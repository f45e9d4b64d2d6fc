package web

import (
	"html/template"
	"io"
	"time"

	"github.com/sweeney/phase-dimmer/internal/status"
)

var pageTemplate = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta http-equiv="refresh" content="5">
<title>phase-dimmer</title>
<style>
body { font-family: monospace; margin: 2em; background: #111; color: #ddd; }
h1 { font-size: 1.2em; }
table { border-collapse: collapse; margin: 1em 0; }
th, td { border: 1px solid #444; padding: 0.4em 0.8em; text-align: right; }
th { background: #222; }
.bar { display: inline-block; height: 0.8em; background: #e90; vertical-align: middle; }
.dim { color: #888; }
</style>
</head>
<body>
<h1>phase-dimmer</h1>
<table>
<tr><th>device</th><th>power %</th><th>threshold tick</th><th></th></tr>
{{range .Devices}}<tr>
<td>{{.ID}}</td><td>{{.PowerPercent}}</td><td>{{.ThresholdTick}}</td>
<td style="text-align:left;width:120px"><span class="bar" style="width:{{.PowerPercent}}px"></span></td>
</tr>
{{else}}<tr><td colspan="4" class="dim">no devices</td></tr>
{{end}}</table>
<p>mains: {{.FrequencyHz}} Hz, {{.TicksPerHalfCycle}} ticks/half-cycle ({{.TickIntervalUs}} µs/tick)</p>
<p>zero crossings: {{.ZeroCrossings}} | faults: {{.Faults}}{{if .FaultsDropped}} ({{.FaultsDropped}} dropped){{end}}</p>
<p>mqtt: {{if .MQTTConnected}}connected{{else}}<b>disconnected</b>{{end}} ({{.Broker}})</p>
<p class="dim">up {{.Uptime}} since {{.StartTime}}</p>
</body>
</html>
`))

// pageData flattens a snapshot for the template.
type pageData struct {
	Devices           []status.DeviceStatus
	FrequencyHz       int
	TicksPerHalfCycle int
	TickIntervalUs    int64
	ZeroCrossings     uint64
	Faults            uint64
	FaultsDropped     uint64
	MQTTConnected     bool
	Broker            string
	Uptime            time.Duration
	StartTime         string
}

func renderHTML(w io.Writer, snap status.Snapshot) {
	data := pageData{
		Devices:           snap.Devices,
		FrequencyHz:       snap.Config.FrequencyHz,
		TicksPerHalfCycle: snap.Config.TicksPerHalfCycle,
		TickIntervalUs:    snap.Config.TickIntervalUs,
		ZeroCrossings:     snap.ZeroCrossings,
		Faults:            snap.Faults,
		FaultsDropped:     snap.FaultsDropped,
		MQTTConnected:     snap.MQTTConnected,
		Broker:            snap.Config.Broker,
		Uptime:            snap.Uptime().Truncate(time.Second),
		StartTime:         snap.StartTime.UTC().Format(time.RFC3339),
	}
	// Template execution on a fixed template cannot fail in a way worth
	// surfacing to the client mid-response.
	_ = pageTemplate.Execute(w, data)
}
