package internal

import (
	"errors"
	"testing"
	"time"

	"github.com/sweeney/phase-dimmer/internal/dim"
	"github.com/sweeney/phase-dimmer/internal/hw"
	"github.com/sweeney/phase-dimmer/internal/mqttctl"
	"github.com/sweeney/phase-dimmer/internal/status"
)

// TestIntegrationCommandToOutput drives the complete pipeline on fakes: an
// MQTT power command feeds the manager's update channel, the zero-crossing
// monitor applies it and rebases the tick counter, and the tick passes
// produce the phase-cut output pattern.
func TestIntegrationCommandToOutput(t *testing.T) {
	zc := hw.NewFakeZeroCrossing()
	out0 := hw.NewFakeOutput()
	out1 := hw.NewFakeOutput()

	mgr, err := dim.NewManager(dim.Config{Frequency: dim.Freq50Hz, TicksPerHalfCycle: 100}, zc)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	if err := mgr.Register(0, out0); err != nil {
		t.Fatalf("register 0: %v", err)
	}
	if err := mgr.Register(1, out1); err != nil {
		t.Fatalf("register 1: %v", err)
	}
	if err := mgr.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}

	// A power command arrives over the wire and is routed through the
	// bridge into the manager's sender, exactly as the MQTT subscription
	// handler would do it.
	payload := []byte(`{"device_id":0,"power_percent":30}`)
	if err := mqttctl.SubmitCommand(payload, mgr.Sender()); err != nil {
		t.Fatalf("submit command: %v", err)
	}

	// First half-cycle: the monitor drains the command, then the edge
	// rebases the counter.
	zc.Pulse()
	if err := mgr.WaitZeroCrossing(); err != nil {
		t.Fatalf("wait zero crossing: %v", err)
	}

	if got := mgr.Device(0).Power(); got != 30 {
		t.Fatalf("device 0 power: expected 30, got %d", got)
	}

	// Run one full half-cycle of tick passes.
	out0.Reset()
	out1.Reset()
	for i := 0; i < 100; i++ {
		mgr.TickPass()
	}

	history0 := out0.History()
	if len(history0) != 100 {
		t.Fatalf("device 0: expected 100 drives, got %d", len(history0))
	}
	for tick, high := range history0 {
		want := tick < 30
		if high != want {
			t.Errorf("device 0 tick %d: expected high=%v, got %v", tick, want, high)
		}
	}

	// Device 1 was never commanded: 0% power, low for the whole cycle.
	for tick, high := range out1.History() {
		if high {
			t.Errorf("device 1 tick %d: expected low at 0%%", tick)
		}
	}
}

// TestIntegrationStatePublishing verifies that applied power flows through
// the status tracker into the published heartbeat snapshot and the state
// events a broker would see.
func TestIntegrationStatePublishing(t *testing.T) {
	zc := hw.NewFakeZeroCrossing()
	mgr, err := dim.NewManager(dim.Config{}, zc)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	if err := mgr.Register(4, hw.NewFakeOutput()); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := mgr.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}

	if err := mgr.Sender().Submit(4, 66); err != nil {
		t.Fatalf("submit: %v", err)
	}
	zc.Pulse()
	if err := mgr.WaitZeroCrossing(); err != nil {
		t.Fatalf("wait zero crossing: %v", err)
	}

	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	tracker := status.NewTracker(start, status.Config{FrequencyHz: 50, TicksPerHalfCycle: 100})

	states := mgr.DeviceStates()
	devices := make([]status.DeviceStatus, 0, len(states))
	for _, s := range states {
		devices = append(devices, status.DeviceStatus{
			ID:            s.ID,
			PowerPercent:  s.Percent,
			ThresholdTick: s.Threshold,
		})
	}
	tracker.Update(devices, mgr.ZeroCrossings(), 0, mgr.FaultsDropped())

	client := mqttctl.NewFakeClient()
	hb := mqttctl.SystemEvent{
		Timestamp:  start,
		Event:      "HEARTBEAT",
		RawPayload: status.FormatStatusEvent(tracker.Snapshot(), "HEARTBEAT", ""),
	}
	if err := client.PublishSystem(hb); err != nil {
		t.Fatalf("publish system: %v", err)
	}
	for _, s := range states {
		err := client.PublishState(mqttctl.StateEvent{
			Timestamp:     start,
			DeviceID:      s.ID,
			PowerPercent:  s.Percent,
			ThresholdTick: s.Threshold,
		})
		if err != nil {
			t.Fatalf("publish state: %v", err)
		}
	}

	if len(client.SystemEvents) != 1 {
		t.Fatalf("expected 1 system event, got %d", len(client.SystemEvents))
	}
	if len(client.StateEvents) != 1 {
		t.Fatalf("expected 1 state event, got %d", len(client.StateEvents))
	}
	if got := client.StateEvents[0]; got.DeviceID != 4 || got.PowerPercent != 66 || got.ThresholdTick != 66 {
		t.Errorf("state event: got %+v", got)
	}
}

// TestIntegrationFaultyOutputKeepsSystemRunning simulates a wiring failure
// on one channel: its faults are reported while the other channel and the
// zero-crossing phase tracking keep working.
func TestIntegrationFaultyOutputKeepsSystemRunning(t *testing.T) {
	zc := hw.NewFakeZeroCrossing()
	broken := hw.NewFakeOutput()
	broken.LowError = errors.New("optocoupler dead")
	healthy := hw.NewFakeOutput()

	mgr, err := dim.NewManager(dim.Config{}, zc)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	if err := mgr.Register(0, broken); err != nil {
		t.Fatalf("register 0: %v", err)
	}
	if err := mgr.Register(1, healthy); err != nil {
		t.Fatalf("register 1: %v", err)
	}
	if err := mgr.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}

	if err := mgr.Sender().Submit(1, 100); err != nil {
		t.Fatalf("submit: %v", err)
	}

	for halfCycle := 0; halfCycle < 2; halfCycle++ {
		zc.Pulse()
		if err := mgr.WaitZeroCrossing(); err != nil {
			t.Fatalf("half-cycle %d: %v", halfCycle, err)
		}
		for i := 0; i < 100; i++ {
			mgr.TickPass()
		}
	}

	// Device 0 at 0% keeps failing its drive-low calls; at least one
	// fault must have been reported (the channel bounds how many).
	faults := 0
	for {
		select {
		case err := <-mgr.Faults():
			var oe *dim.OutputError
			if !errors.As(err, &oe) {
				t.Fatalf("expected OutputError, got %v", err)
			}
			if oe.DeviceID != 0 {
				t.Errorf("expected faults from device 0, got device %d", oe.DeviceID)
			}
			faults++
			continue
		default:
		}
		break
	}
	if faults == 0 && mgr.FaultsDropped() == 0 {
		t.Error("expected faults from the broken output")
	}

	// The healthy channel ran at 100%: driven high on every tick.
	for tick, high := range healthy.History() {
		if !high {
			t.Errorf("device 1 drive %d: expected high at 100%%", tick)
		}
	}

	if got := mgr.ZeroCrossings(); got != 2 {
		t.Errorf("expected 2 zero crossings, got %d", got)
	}
}
