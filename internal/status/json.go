package status

import (
	"encoding/json"
	"time"
)

// statusEvent is the payload for MQTT system events that carry a full
// status snapshot (STARTUP, SHUTDOWN, HEARTBEAT).
type statusEvent struct {
	System systemInner `json:"system"`
}

type systemInner struct {
	Timestamp string      `json:"timestamp"`
	Event     string      `json:"event"`
	Reason    string      `json:"reason,omitempty"`
	Status    statusInner `json:"status"`
}

type statusInner struct {
	UptimeSeconds int64        `json:"uptime_seconds"`
	StartTime     string       `json:"start_time"`
	Devices       []deviceJSON `json:"devices"`
	ZeroCrossings uint64       `json:"zero_crossings"`
	Faults        uint64       `json:"faults"`
	FaultsDropped uint64       `json:"faults_dropped"`
	MQTTConnected bool         `json:"mqtt_connected"`
	Config        configJSON   `json:"config"`
}

type deviceJSON struct {
	ID            uint8  `json:"id"`
	PowerPercent  uint8  `json:"power_percent"`
	ThresholdTick uint32 `json:"threshold_tick"`
}

type configJSON struct {
	FrequencyHz       int    `json:"frequency_hz"`
	TicksPerHalfCycle int    `json:"ticks_per_half_cycle"`
	TickIntervalUs    int64  `json:"tick_interval_us"`
	HeartbeatMs       int64  `json:"heartbeat_ms"`
	Broker            string `json:"broker"`
	HTTPAddr          string `json:"http_addr"`
}

// FormatStatusEvent creates the JSON payload for a system event carrying a
// full status snapshot.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	devices := make([]deviceJSON, 0, len(snap.Devices))
	for _, d := range snap.Devices {
		devices = append(devices, deviceJSON{
			ID:            d.ID,
			PowerPercent:  d.PowerPercent,
			ThresholdTick: d.ThresholdTick,
		})
	}

	se := statusEvent{
		System: systemInner{
			Timestamp: snap.Now.UTC().Format(time.RFC3339),
			Event:     event,
			Reason:    reason,
			Status: statusInner{
				UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
				StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
				Devices:       devices,
				ZeroCrossings: snap.ZeroCrossings,
				Faults:        snap.Faults,
				FaultsDropped: snap.FaultsDropped,
				MQTTConnected: snap.MQTTConnected,
				Config: configJSON{
					FrequencyHz:       snap.Config.FrequencyHz,
					TicksPerHalfCycle: snap.Config.TicksPerHalfCycle,
					TickIntervalUs:    snap.Config.TickIntervalUs,
					HeartbeatMs:       snap.Config.HeartbeatMs,
					Broker:            snap.Config.Broker,
					HTTPAddr:          snap.Config.HTTPAddr,
				},
			},
		},
	}

	data, _ := json.Marshal(se)
	return data
}
