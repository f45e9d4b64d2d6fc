package status

import (
	"encoding/json"
	"testing"
	"time"
)

func testTracker(startTime time.Time) *Tracker {
	return NewTracker(startTime, Config{
		FrequencyHz:       50,
		TicksPerHalfCycle: 100,
		TickIntervalUs:    100,
		HeartbeatMs:       900000,
		Broker:            "tcp://broker:1883",
		HTTPAddr:          ":8080",
	})
}

func TestTrackerSnapshot(t *testing.T) {
	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	tr := testTracker(start)
	tr.now = func() time.Time { return start.Add(90 * time.Second) }

	tr.Update([]DeviceStatus{
		{ID: 0, PowerPercent: 50, ThresholdTick: 50},
		{ID: 1, PowerPercent: 75, ThresholdTick: 75},
	}, 4500, 2, 0)
	tr.SetMQTTConnected(true)

	snap := tr.Snapshot()
	if len(snap.Devices) != 2 {
		t.Fatalf("expected 2 devices, got %d", len(snap.Devices))
	}
	if snap.Devices[1].ThresholdTick != 75 {
		t.Errorf("device 1 threshold: got %d", snap.Devices[1].ThresholdTick)
	}
	if snap.ZeroCrossings != 4500 {
		t.Errorf("zero crossings: got %d", snap.ZeroCrossings)
	}
	if !snap.MQTTConnected {
		t.Error("expected MQTT connected")
	}
	if got := snap.Uptime(); got != 90*time.Second {
		t.Errorf("uptime: expected 90s, got %v", got)
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	tr := testTracker(start)
	tr.Update([]DeviceStatus{{ID: 0, PowerPercent: 10, ThresholdTick: 10}}, 0, 0, 0)

	snap := tr.Snapshot()
	snap.Devices[0].PowerPercent = 99

	again := tr.Snapshot()
	if again.Devices[0].PowerPercent != 10 {
		t.Errorf("snapshot mutation leaked into tracker: got %d", again.Devices[0].PowerPercent)
	}
}

func TestFormatStatusEvent(t *testing.T) {
	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	tr := testTracker(start)
	tr.now = func() time.Time { return start.Add(time.Hour) }
	tr.Update([]DeviceStatus{{ID: 0, PowerPercent: 55, ThresholdTick: 55}}, 180000, 0, 0)

	payload := FormatStatusEvent(tr.Snapshot(), "HEARTBEAT", "")

	var decoded struct {
		System struct {
			Timestamp string `json:"timestamp"`
			Event     string `json:"event"`
			Status    struct {
				UptimeSeconds int64 `json:"uptime_seconds"`
				Devices       []struct {
					ID           uint8 `json:"id"`
					PowerPercent uint8 `json:"power_percent"`
				} `json:"devices"`
				ZeroCrossings uint64 `json:"zero_crossings"`
				Config        struct {
					FrequencyHz int `json:"frequency_hz"`
				} `json:"config"`
			} `json:"status"`
		} `json:"system"`
	}
	if err := json.Unmarshal(payload, &decoded); err != nil {
		t.Fatalf("payload is not valid JSON: %v", err)
	}

	if decoded.System.Event != "HEARTBEAT" {
		t.Errorf("event: got %s", decoded.System.Event)
	}
	if decoded.System.Timestamp != "2026-01-01T13:00:00Z" {
		t.Errorf("timestamp: got %s", decoded.System.Timestamp)
	}
	if decoded.System.Status.UptimeSeconds != 3600 {
		t.Errorf("uptime: got %d", decoded.System.Status.UptimeSeconds)
	}
	if len(decoded.System.Status.Devices) != 1 || decoded.System.Status.Devices[0].PowerPercent != 55 {
		t.Errorf("devices: got %+v", decoded.System.Status.Devices)
	}
	if decoded.System.Status.ZeroCrossings != 180000 {
		t.Errorf("zero crossings: got %d", decoded.System.Status.ZeroCrossings)
	}
	if decoded.System.Status.Config.FrequencyHz != 50 {
		t.Errorf("frequency: got %d", decoded.System.Status.Config.FrequencyHz)
	}
}

func TestFormatStatusEventReason(t *testing.T) {
	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	tr := testTracker(start)
	payload := FormatStatusEvent(tr.Snapshot(), "SHUTDOWN", "SIGTERM")

	var decoded struct {
		System struct {
			Reason string `json:"reason"`
		} `json:"system"`
	}
	if err := json.Unmarshal(payload, &decoded); err != nil {
		t.Fatalf("payload is not valid JSON: %v", err)
	}
	if decoded.System.Reason != "SIGTERM" {
		t.Errorf("reason: got %s", decoded.System.Reason)
	}
}
