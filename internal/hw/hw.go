// Package hw provides the hardware capability contracts for the dimmer core.
// The real implementations use the Linux GPIO character device.
// The fake implementations allow testing without hardware.
package hw

// Output drives a single triac gate pin.
type Output interface {
	// DriveHigh turns the output on.
	DriveHigh() error

	// DriveLow turns the output off.
	DriveLow() error
}

// ZeroCrossing waits for rising edges of the mains zero-crossing detector.
type ZeroCrossing interface {
	// WaitForRisingEdge blocks until the next rising edge of the
	// zero-crossing signal. This is the only core call allowed to block.
	WaitForRisingEdge() error
}

// Default line offsets (BCM numbering) for the RobotDyn dimmer board wiring.
const (
	DefaultZeroCrossingLine = 18
	DefaultOutputLine       = 23
)

// DefaultChip is the GPIO character device used on a Raspberry Pi.
const DefaultChip = "gpiochip0"
