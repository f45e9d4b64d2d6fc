package dim

import (
	"fmt"
	"time"
)

// Frequency is the mains frequency in hertz.
type Frequency int

const (
	Freq50Hz Frequency = 50
	Freq60Hz Frequency = 60
)

// DefaultTicksPerHalfCycle divides each half-cycle into 100 switching slots:
// 100 µs per tick at 50 Hz, ~83 µs at 60 Hz. The minimum tick that actually
// conducts depends on the triac driver and should be verified on hardware.
const DefaultTicksPerHalfCycle = 100

// Config fixes the manager's timing. Immutable once the manager starts.
type Config struct {
	// Frequency is the mains frequency, 50 or 60 Hz.
	Frequency Frequency

	// TicksPerHalfCycle is the switching resolution. Zero selects
	// DefaultTicksPerHalfCycle.
	TicksPerHalfCycle int
}

// withDefaults returns the config with zero fields filled in.
func (c Config) withDefaults() Config {
	if c.Frequency == 0 {
		c.Frequency = Freq50Hz
	}
	if c.TicksPerHalfCycle == 0 {
		c.TicksPerHalfCycle = DefaultTicksPerHalfCycle
	}
	return c
}

// Validate checks that the config describes a usable timing grid.
func (c Config) Validate() error {
	c = c.withDefaults()
	if c.Frequency != Freq50Hz && c.Frequency != Freq60Hz {
		return fmt.Errorf("dim: unsupported mains frequency %d Hz", c.Frequency)
	}
	if c.TicksPerHalfCycle < 2 {
		return fmt.Errorf("dim: ticks per half-cycle must be at least 2, got %d", c.TicksPerHalfCycle)
	}
	return nil
}

// HalfCycle returns the duration of one AC half-cycle.
func (c Config) HalfCycle() time.Duration {
	c = c.withDefaults()
	return time.Second / time.Duration(2*c.Frequency)
}

// TickInterval returns the period at which the tick pass must be driven.
func (c Config) TickInterval() time.Duration {
	c = c.withDefaults()
	return c.HalfCycle() / time.Duration(c.TicksPerHalfCycle)
}
