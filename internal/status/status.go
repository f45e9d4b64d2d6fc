// Package status provides a thread-safe status tracker for the phase-dimmer
// daemon. It is read by the HTTP status server and by the MQTT heartbeat
// publisher.
package status

import (
	"sync"
	"time"
)

// DeviceStatus is one device's requested power and derived threshold.
type DeviceStatus struct {
	ID            uint8
	PowerPercent  uint8
	ThresholdTick uint32
}

// Config contains daemon configuration for display.
type Config struct {
	FrequencyHz       int
	TicksPerHalfCycle int
	TickIntervalUs    int64
	HeartbeatMs       int64
	Broker            string
	HTTPAddr          string
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type — safe to use after the lock is released.
type Snapshot struct {
	Devices       []DeviceStatus
	ZeroCrossings uint64
	Faults        uint64
	FaultsDropped uint64
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
	now  func() time.Time
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Config:    cfg,
		},
		now: time.Now,
	}
}

// Update sets device states and counters. Called by the daemon loop.
func (t *Tracker) Update(devices []DeviceStatus, zeroCrossings, faults, faultsDropped uint64) {
	t.mu.Lock()
	t.snap.Devices = devices
	t.snap.ZeroCrossings = zeroCrossings
	t.snap.Faults = faults
	t.snap.FaultsDropped = faultsDropped
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// Snapshot returns a copy of the current state with Now filled in.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	snap := t.snap
	devices := make([]DeviceStatus, len(t.snap.Devices))
	copy(devices, t.snap.Devices)
	t.mu.RUnlock()

	snap.Devices = devices
	snap.Now = t.now()
	return snap
}
