package dim

import (
	"errors"
	"fmt"
)

// Validation and lifecycle errors.
var (
	// ErrInvalidPower is returned when a requested power percentage
	// exceeds 100.
	ErrInvalidPower = errors.New("dim: power percent out of range")

	// ErrDuplicateID is returned when registering a device id that is
	// already present.
	ErrDuplicateID = errors.New("dim: duplicate device id")

	// ErrUnknownDevice is returned when a power update names a device
	// that was never registered.
	ErrUnknownDevice = errors.New("dim: unknown device id")

	// ErrNotArmed is returned by Start unless at least one device has
	// been registered and the manager has not run before.
	ErrNotArmed = errors.New("dim: manager not armed")

	// ErrNotRunning is returned by operations that require a running
	// manager, including submissions after Stop.
	ErrNotRunning = errors.New("dim: manager not running")

	// ErrQueueFull is returned by Sender.Submit when the power update
	// channel is at capacity.
	ErrQueueFull = errors.New("dim: power update queue full")
)

// OutputOp identifies which output operation failed.
type OutputOp string

const (
	OpDriveHigh OutputOp = "drive-high"
	OpDriveLow  OutputOp = "drive-low"
)

// OutputError reports a failed drive call on one device's output.
type OutputError struct {
	DeviceID uint8
	Op       OutputOp
	Err      error
}

func (e *OutputError) Error() string {
	return fmt.Sprintf("dim: device %d %s: %v", e.DeviceID, e.Op, e.Err)
}

func (e *OutputError) Unwrap() error { return e.Err }

// ZeroCrossingError reports a failed wait on the zero-crossing capability.
type ZeroCrossingError struct {
	Err error
}

func (e *ZeroCrossingError) Error() string {
	return fmt.Sprintf("dim: zero-crossing wait: %v", e.Err)
}

func (e *ZeroCrossingError) Unwrap() error { return e.Err }
