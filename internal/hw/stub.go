//go:build !linux

package hw

import "errors"

// RealOutput is not available on non-Linux platforms.
type RealOutput struct{}

// NewRealOutput returns an error on non-Linux platforms.
func NewRealOutput(chipName string, offset int) (*RealOutput, error) {
	return nil, errors.New("hw: not supported on this platform (requires Linux)")
}

// DriveHigh is not implemented on non-Linux platforms.
func (o *RealOutput) DriveHigh() error {
	return errors.New("hw: not supported")
}

// DriveLow is not implemented on non-Linux platforms.
func (o *RealOutput) DriveLow() error {
	return errors.New("hw: not supported")
}

// Close is not implemented on non-Linux platforms.
func (o *RealOutput) Close() error {
	return nil
}

// RealZeroCrossing is not available on non-Linux platforms.
type RealZeroCrossing struct{}

// NewRealZeroCrossing returns an error on non-Linux platforms.
func NewRealZeroCrossing(chipName string, offset int) (*RealZeroCrossing, error) {
	return nil, errors.New("hw: not supported on this platform (requires Linux)")
}

// WaitForRisingEdge is not implemented on non-Linux platforms.
func (z *RealZeroCrossing) WaitForRisingEdge() error {
	return errors.New("hw: not supported")
}

// Close is not implemented on non-Linux platforms.
func (z *RealZeroCrossing) Close() error {
	return nil
}
