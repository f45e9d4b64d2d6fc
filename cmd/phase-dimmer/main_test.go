package main

import (
	"syscall"
	"testing"

	"github.com/sweeney/phase-dimmer/internal/dim"
)

func TestChangedStates(t *testing.T) {
	prev := []dim.DeviceState{
		{ID: 0, Percent: 50, Threshold: 50},
		{ID: 1, Percent: 0, Threshold: 0},
	}
	curr := []dim.DeviceState{
		{ID: 0, Percent: 50, Threshold: 50},
		{ID: 1, Percent: 75, Threshold: 75},
	}

	changed := changedStates(prev, curr)
	if len(changed) != 1 {
		t.Fatalf("expected 1 changed device, got %d", len(changed))
	}
	if changed[0].ID != 1 || changed[0].Percent != 75 {
		t.Errorf("changed: got %+v", changed[0])
	}
}

func TestChangedStatesNoChange(t *testing.T) {
	states := []dim.DeviceState{{ID: 0, Percent: 20, Threshold: 20}}
	if got := changedStates(states, states); len(got) != 0 {
		t.Errorf("expected no changes, got %v", got)
	}
}

func TestChangedStatesFirstObservation(t *testing.T) {
	curr := []dim.DeviceState{{ID: 0, Percent: 0, Threshold: 0}}
	// With no previous snapshot every device counts as changed.
	if got := changedStates(nil, curr); len(got) != 1 {
		t.Errorf("expected 1 change against empty prev, got %v", got)
	}
}

func TestSignalName(t *testing.T) {
	if got := signalName(syscall.SIGINT); got != "SIGINT" {
		t.Errorf("SIGINT: got %s", got)
	}
	if got := signalName(syscall.SIGTERM); got != "SIGTERM" {
		t.Errorf("SIGTERM: got %s", got)
	}
	if got := signalName(syscall.SIGHUP); got != "UNKNOWN" {
		t.Errorf("SIGHUP: got %s", got)
	}
}
