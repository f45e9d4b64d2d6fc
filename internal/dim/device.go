// Package dim implements the phase-cut dimming engine: per-device power
// thresholds, the interrupt-driven tick pass that switches triac outputs,
// and the zero-crossing monitor that keeps the tick counter phased to the
// mains. Everything touched by the tick pass is a single-word atomic — the
// pass never allocates, locks, or blocks. This package deliberately has no
// dependencies beyond the hw capability contracts; faults are surfaced over
// a channel for the caller to log.
package dim

import (
	"sync/atomic"

	"github.com/sweeney/phase-dimmer/internal/hw"
)

// Level is the desired state of a device's output for the current tick.
type Level uint8

const (
	Low Level = iota
	High
)

// Device is one managed dimmer channel: an id, a requested power percentage
// and the derived switch-on threshold, plus ownership of the output that
// gates its triac.
type Device struct {
	id           uint8
	out          hw.Output
	ticksPerHalf uint32

	// power and threshold are written by the manager (monitor context)
	// and read by the tick pass, hence atomics.
	power     atomic.Uint32
	threshold atomic.Uint32
}

func newDevice(id uint8, out hw.Output, ticksPerHalf int) *Device {
	return &Device{
		id:           id,
		out:          out,
		ticksPerHalf: uint32(ticksPerHalf),
	}
}

// ID returns the device's registration id.
func (d *Device) ID() uint8 { return d.id }

// Power returns the currently requested power percentage.
func (d *Device) Power() uint8 { return uint8(d.power.Load()) }

// Threshold returns the tick index at which the output turns off.
func (d *Device) Threshold() uint32 { return d.threshold.Load() }

// SetPower stores the requested percentage and recomputes the threshold.
// percent maps to threshold linearly: 0 → 0, 100 → TicksPerHalfCycle.
// Returns ErrInvalidPower for percentages above 100, leaving state untouched.
func (d *Device) SetPower(percent uint8) error {
	if percent > 100 {
		return ErrInvalidPower
	}
	d.power.Store(uint32(percent))
	d.threshold.Store(uint32(percent) * d.ticksPerHalf / 100)
	return nil
}

// Evaluate returns the level the output should hold at the given tick.
// Pure decision, no side effects.
func (d *Device) Evaluate(tick uint32) Level {
	if tick < d.threshold.Load() {
		return High
	}
	return Low
}

// Apply drives the output to the given level. Failures are wrapped in an
// OutputError identifying the device and the operation that failed.
func (d *Device) Apply(level Level) error {
	if level == High {
		if err := d.out.DriveHigh(); err != nil {
			return &OutputError{DeviceID: d.id, Op: OpDriveHigh, Err: err}
		}
		return nil
	}
	if err := d.out.DriveLow(); err != nil {
		return &OutputError{DeviceID: d.id, Op: OpDriveLow, Err: err}
	}
	return nil
}
