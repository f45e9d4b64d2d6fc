package hw

import (
	"errors"
	"sync"
)

// FakeOutput is a test double that records every level it is driven to.
type FakeOutput struct {
	mu sync.Mutex

	// history records each drive call, true = high.
	history []bool

	// HighError, if set, will be returned by DriveHigh.
	HighError error

	// LowError, if set, will be returned by DriveLow.
	LowError error
}

// NewFakeOutput creates a FakeOutput with no recorded history.
func NewFakeOutput() *FakeOutput {
	return &FakeOutput{}
}

// DriveHigh records a high level.
func (f *FakeOutput) DriveHigh() error {
	if f.HighError != nil {
		return f.HighError
	}
	f.mu.Lock()
	f.history = append(f.history, true)
	f.mu.Unlock()
	return nil
}

// DriveLow records a low level.
func (f *FakeOutput) DriveLow() error {
	if f.LowError != nil {
		return f.LowError
	}
	f.mu.Lock()
	f.history = append(f.history, false)
	f.mu.Unlock()
	return nil
}

// Level returns the most recent driven level. ok is false if the output
// has never been driven.
func (f *FakeOutput) Level() (high bool, ok bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.history) == 0 {
		return false, false
	}
	return f.history[len(f.history)-1], true
}

// History returns a copy of all recorded drive calls.
func (f *FakeOutput) History() []bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]bool, len(f.history))
	copy(out, f.history)
	return out
}

// Reset clears recorded history.
func (f *FakeOutput) Reset() {
	f.mu.Lock()
	f.history = nil
	f.mu.Unlock()
}

// FakeZeroCrossing is a test double whose edges are injected by the test.
// Each Pulse releases exactly one WaitForRisingEdge call.
type FakeZeroCrossing struct {
	edges chan error
}

// NewFakeZeroCrossing creates a FakeZeroCrossing with room for buffered edges.
func NewFakeZeroCrossing() *FakeZeroCrossing {
	return &FakeZeroCrossing{edges: make(chan error, 64)}
}

// Pulse injects one successful rising edge.
func (f *FakeZeroCrossing) Pulse() {
	f.edges <- nil
}

// Fail injects one failed wait. If err is nil a generic error is used.
func (f *FakeZeroCrossing) Fail(err error) {
	if err == nil {
		err = errors.New("edge detect failed")
	}
	f.edges <- err
}

// WaitForRisingEdge blocks until the next injected edge or failure.
func (f *FakeZeroCrossing) WaitForRisingEdge() error {
	return <-f.edges
}
