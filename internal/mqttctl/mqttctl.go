// Package mqttctl bridges the dimmer manager to an MQTT broker: inbound
// power-set commands are fed into the manager's update channel, outbound
// state and lifecycle events are published for other systems to consume.
package mqttctl

import (
	"encoding/json"
	"fmt"
	"time"
)

// TopicPowerSet receives power commands for managed devices.
const TopicPowerSet = "energy/dimmer/power/set"

// TopicPowerState carries applied power state, one message per change.
const TopicPowerState = "energy/dimmer/power/state"

// TopicSystem carries system lifecycle events.
const TopicSystem = "energy/dimmer/system"

// TopicMeter carries AC line telemetry from the metering head.
const TopicMeter = "energy/dimmer/meter"

// Submitter accepts power updates. Satisfied by dim.Sender.
type Submitter interface {
	Submit(deviceID, percent uint8) error
}

// Client publishes dimmer events to MQTT.
type Client interface {
	// PublishState sends the applied power state of one device.
	PublishState(event StateEvent) error

	// PublishSystem sends a system lifecycle event.
	PublishSystem(event SystemEvent) error

	// PublishMeter sends one AC line telemetry reading.
	PublishMeter(event MeterEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// Command is a power request received on TopicPowerSet.
type Command struct {
	DeviceID     uint8
	PowerPercent uint8
}

// ParseCommand decodes a power-set payload. Both fields are required;
// values that do not fit the wire types are rejected. Power percentages
// above 100 pass through here — range validation belongs to the manager.
func ParseCommand(payload []byte) (Command, error) {
	var raw struct {
		DeviceID     *int `json:"device_id"`
		PowerPercent *int `json:"power_percent"`
	}
	if err := json.Unmarshal(payload, &raw); err != nil {
		return Command{}, fmt.Errorf("decode command: %w", err)
	}
	if raw.DeviceID == nil {
		return Command{}, fmt.Errorf("command missing device_id")
	}
	if raw.PowerPercent == nil {
		return Command{}, fmt.Errorf("command missing power_percent")
	}
	if *raw.DeviceID < 0 || *raw.DeviceID > 255 {
		return Command{}, fmt.Errorf("device_id %d out of range", *raw.DeviceID)
	}
	if *raw.PowerPercent < 0 || *raw.PowerPercent > 255 {
		return Command{}, fmt.Errorf("power_percent %d out of range", *raw.PowerPercent)
	}
	return Command{
		DeviceID:     uint8(*raw.DeviceID),
		PowerPercent: uint8(*raw.PowerPercent),
	}, nil
}

// SubmitCommand parses one inbound power-set payload and hands it to the
// submitter. Used by the real client's subscription handler.
func SubmitCommand(payload []byte, submitter Submitter) error {
	cmd, err := ParseCommand(payload)
	if err != nil {
		return err
	}
	if err := submitter.Submit(cmd.DeviceID, cmd.PowerPercent); err != nil {
		return fmt.Errorf("submit device %d power %d: %w", cmd.DeviceID, cmd.PowerPercent, err)
	}
	return nil
}

// StateEvent reports the applied power state of one device.
type StateEvent struct {
	Timestamp     time.Time
	DeviceID      uint8
	PowerPercent  uint8
	ThresholdTick uint32
}

// StatePayload is the wire representation of a StateEvent.
type StatePayload struct {
	Dimmer StateInner `json:"dimmer"`
}

// StateInner contains the state details.
type StateInner struct {
	Timestamp     string `json:"timestamp"`
	DeviceID      uint8  `json:"device_id"`
	PowerPercent  uint8  `json:"power_percent"`
	ThresholdTick uint32 `json:"threshold_tick"`
}

// FormatStatePayload creates the JSON payload for a state event.
func FormatStatePayload(event StateEvent) ([]byte, error) {
	payload := StatePayload{
		Dimmer: StateInner{
			Timestamp:     event.Timestamp.UTC().Format(time.RFC3339),
			DeviceID:      event.DeviceID,
			PowerPercent:  event.PowerPercent,
			ThresholdTick: event.ThresholdTick,
		},
	}
	return json.Marshal(payload)
}

// MeterEvent is one AC line telemetry reading from the metering head.
type MeterEvent struct {
	Timestamp time.Time
	Channel   uint8
	Voltage   float64
	Frequency float64
}

// MeterPayload is the wire representation of a MeterEvent.
type MeterPayload struct {
	Meter MeterInner `json:"meter"`
}

// MeterInner contains the reading details.
type MeterInner struct {
	Timestamp string  `json:"timestamp"`
	Channel   uint8   `json:"channel"`
	Voltage   float64 `json:"voltage"`
	Frequency float64 `json:"frequency"`
}

// FormatMeterPayload creates the JSON payload for a meter event.
func FormatMeterPayload(event MeterEvent) ([]byte, error) {
	payload := MeterPayload{
		Meter: MeterInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Channel:   event.Channel,
			Voltage:   event.Voltage,
			Frequency: event.Frequency,
		},
	}
	return json.Marshal(payload)
}

// SystemEvent represents a system lifecycle event (startup, shutdown,
// heartbeat).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g. "STARTUP", "SHUTDOWN", "HEARTBEAT"
	Reason     string // e.g. "SIGTERM" (shutdown only)
	RawPayload []byte // Pre-formatted JSON payload; if set, used directly
	Retained   bool   // Whether the broker should retain the message
}

// SystemPayload is the wire representation of a simple SystemEvent.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly (used for full
// status snapshots).
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}
	payload := SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
		},
	}
	return json.Marshal(payload)
}
