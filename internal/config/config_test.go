package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

const validConfig = `
mains:
  frequency: 60
  ticks_per_half_cycle: 100
gpio:
  chip: gpiochip0
  zero_crossing_line: 18
devices:
  - id: 0
    output_line: 23
  - id: 1
    output_line: 24
mqtt:
  broker: tcp://192.168.1.200:1883
http:
  addr: ":8080"
heartbeat: 15m
log:
  level: debug
`

func TestLoadValid(t *testing.T) {
	cfg, err := Load(writeConfig(t, validConfig))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Mains.Frequency != 60 {
		t.Errorf("frequency: got %d", cfg.Mains.Frequency)
	}
	if len(cfg.Devices) != 2 {
		t.Fatalf("expected 2 devices, got %d", len(cfg.Devices))
	}
	if cfg.Devices[1].OutputLine != 24 {
		t.Errorf("device 1 output line: got %d", cfg.Devices[1].OutputLine)
	}
	if cfg.Heartbeat.AsDuration() != 15*time.Minute {
		t.Errorf("heartbeat: got %v", cfg.Heartbeat.AsDuration())
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("log level: got %s", cfg.Log.Level)
	}
	if got := cfg.Dim().TickInterval(); got != 83333*time.Nanosecond {
		t.Errorf("tick interval at 60 Hz: got %v", got)
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
devices:
  - id: 0
    output_line: 23
`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Mains.Frequency != 50 {
		t.Errorf("default frequency: got %d", cfg.Mains.Frequency)
	}
	if cfg.Mains.TicksPerHalfCycle != 100 {
		t.Errorf("default ticks: got %d", cfg.Mains.TicksPerHalfCycle)
	}
	if cfg.GPIO.Chip != "gpiochip0" {
		t.Errorf("default chip: got %s", cfg.GPIO.Chip)
	}
	if cfg.MQTT.ClientID != "phase-dimmer" {
		t.Errorf("default client id: got %s", cfg.MQTT.ClientID)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("default log level: got %s", cfg.Log.Level)
	}
}

func TestLoadRejectsBadConfigs(t *testing.T) {
	cases := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			"no devices",
			`mains: {frequency: 50}`,
			"no devices",
		},
		{
			"duplicate device id",
			"devices:\n  - {id: 0, output_line: 23}\n  - {id: 0, output_line: 24}\n",
			"duplicate device id",
		},
		{
			"shared output line",
			"devices:\n  - {id: 0, output_line: 23}\n  - {id: 1, output_line: 23}\n",
			"used twice",
		},
		{
			"output collides with zero crossing",
			"gpio: {zero_crossing_line: 23}\ndevices:\n  - {id: 0, output_line: 23}\n",
			"collides",
		},
		{
			"bad frequency",
			"mains: {frequency: 42}\ndevices:\n  - {id: 0, output_line: 23}\n",
			"frequency",
		},
		{
			"device id out of range",
			"devices:\n  - {id: 300, output_line: 23}\n",
			"out of range",
		},
		{
			"bad heartbeat",
			"heartbeat: soon\ndevices:\n  - {id: 0, output_line: 23}\n",
			"parse duration",
		},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, c.content))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), c.wantErr) {
				t.Errorf("expected error containing %q, got %v", c.wantErr, err)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
