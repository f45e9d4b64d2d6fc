package web

import (
	"encoding/json"
	"time"

	"github.com/sweeney/phase-dimmer/internal/status"
)

// StatusJSON is the JSON representation of the daemon status.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Devices       []DeviceJSON `json:"devices"`
	ZeroCrossings uint64       `json:"zero_crossings"`
	Faults        uint64       `json:"faults"`
	FaultsDropped uint64       `json:"faults_dropped"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	StartTime     string       `json:"start_time"`
	Timestamp     string       `json:"timestamp"`
	MQTT          MQTTStatus   `json:"mqtt"`
	Config        ConfigJSON   `json:"config"`
}

// DeviceJSON is the JSON representation of one managed device.
type DeviceJSON struct {
	ID            uint8  `json:"id"`
	PowerPercent  uint8  `json:"power_percent"`
	ThresholdTick uint32 `json:"threshold_tick"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	FrequencyHz       int    `json:"frequency_hz"`
	TicksPerHalfCycle int    `json:"ticks_per_half_cycle"`
	TickIntervalUs    int64  `json:"tick_interval_us"`
	HeartbeatMs       int64  `json:"heartbeat_ms"`
	HTTPAddr          string `json:"http_addr"`
}

func formatJSON(snap status.Snapshot) []byte {
	devices := make([]DeviceJSON, 0, len(snap.Devices))
	for _, d := range snap.Devices {
		devices = append(devices, DeviceJSON{
			ID:            d.ID,
			PowerPercent:  d.PowerPercent,
			ThresholdTick: d.ThresholdTick,
		})
	}

	sj := StatusJSON{
		Status: StatusInner{
			Devices:       devices,
			ZeroCrossings: snap.ZeroCrossings,
			Faults:        snap.Faults,
			FaultsDropped: snap.FaultsDropped,
			UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
			StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
			Timestamp:     snap.Now.UTC().Format(time.RFC3339),
			MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
			Config: ConfigJSON{
				FrequencyHz:       snap.Config.FrequencyHz,
				TicksPerHalfCycle: snap.Config.TicksPerHalfCycle,
				TickIntervalUs:    snap.Config.TickIntervalUs,
				HeartbeatMs:       snap.Config.HeartbeatMs,
				HTTPAddr:          snap.Config.HTTPAddr,
			},
		},
	}

	data, _ := json.MarshalIndent(sj, "", "  ")
	return data
}
