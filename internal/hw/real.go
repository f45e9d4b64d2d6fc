//go:build linux

package hw

import (
	"errors"
	"fmt"
	"sync"

	"github.com/warthog618/go-gpiocdev"
)

// RealOutput drives a triac gate through a GPIO line.
type RealOutput struct {
	chip *gpiocdev.Chip
	line *gpiocdev.Line
}

// NewRealOutput requests the given line as an output, initially low.
func NewRealOutput(chipName string, offset int) (*RealOutput, error) {
	chip, err := gpiocdev.NewChip(chipName)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}

	line, err := chip.RequestLine(offset, gpiocdev.AsOutput(0))
	if err != nil {
		chip.Close()
		return nil, fmt.Errorf("request output line %d: %w", offset, err)
	}

	return &RealOutput{chip: chip, line: line}, nil
}

// DriveHigh sets the line active.
func (o *RealOutput) DriveHigh() error {
	if err := o.line.SetValue(1); err != nil {
		return fmt.Errorf("set line high: %w", err)
	}
	return nil
}

// DriveLow sets the line inactive.
func (o *RealOutput) DriveLow() error {
	if err := o.line.SetValue(0); err != nil {
		return fmt.Errorf("set line low: %w", err)
	}
	return nil
}

// Close drives the line low, reconfigures it to an input with pull-down
// (matching Pi boot defaults) and releases it. The triac must never be left
// gated after the daemon exits.
func (o *RealOutput) Close() error {
	var errs []error

	if o.line != nil {
		if err := o.line.SetValue(0); err != nil {
			errs = append(errs, fmt.Errorf("drive low on close: %w", err))
		}
		if err := o.line.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure output line: %w", err))
		}
		if err := o.line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close output line: %w", err))
		}
	}
	if o.chip != nil {
		if err := o.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}

// ErrZeroCrossingClosed is returned by WaitForRisingEdge after Close.
var ErrZeroCrossingClosed = errors.New("hw: zero-crossing line closed")

// RealZeroCrossing watches the zero-crossing detector line for rising edges.
// The kernel delivers edge events to a handler; WaitForRisingEdge consumes
// them one at a time.
type RealZeroCrossing struct {
	chip      *gpiocdev.Chip
	line      *gpiocdev.Line
	edges     chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// NewRealZeroCrossing requests the given line as an input with rising edge
// detection enabled.
func NewRealZeroCrossing(chipName string, offset int) (*RealZeroCrossing, error) {
	chip, err := gpiocdev.NewChip(chipName)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}

	z := &RealZeroCrossing{
		chip: chip,
		// Capacity 1: a pending edge is kept, older ones are redundant
		// since the counter reset is idempotent.
		edges: make(chan struct{}, 1),
		done:  make(chan struct{}),
	}

	line, err := chip.RequestLine(offset,
		gpiocdev.AsInput,
		gpiocdev.WithPullDown,
		gpiocdev.WithRisingEdge,
		gpiocdev.WithEventHandler(z.handleEvent))
	if err != nil {
		chip.Close()
		return nil, fmt.Errorf("request zero-crossing line %d: %w", offset, err)
	}
	z.line = line

	return z, nil
}

func (z *RealZeroCrossing) handleEvent(evt gpiocdev.LineEvent) {
	if evt.Type != gpiocdev.LineEventRisingEdge {
		return
	}
	select {
	case z.edges <- struct{}{}:
	default:
		// An edge is already pending; dropping this one loses nothing.
	}
}

// WaitForRisingEdge blocks until the next rising edge or until Close.
func (z *RealZeroCrossing) WaitForRisingEdge() error {
	select {
	case <-z.edges:
		return nil
	case <-z.done:
		return ErrZeroCrossingClosed
	}
}

// Close releases the line and unblocks any pending wait. Safe to call more
// than once.
func (z *RealZeroCrossing) Close() error {
	var errs []error
	z.closeOnce.Do(func() {
		close(z.done)
		errs = z.release()
	})
	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}

func (z *RealZeroCrossing) release() []error {
	var errs []error
	if z.line != nil {
		if err := z.line.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure zero-crossing line: %w", err))
		}
		if err := z.line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close zero-crossing line: %w", err))
		}
	}
	if z.chip != nil {
		if err := z.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}
	return errs
}
