// Package config loads and validates the phase-dimmer daemon configuration
// from a YAML file.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sweeney/phase-dimmer/internal/dim"
	"github.com/sweeney/phase-dimmer/internal/hw"
)

// Config represents the daemon configuration.
type Config struct {
	Mains     MainsConfig    `yaml:"mains"`
	GPIO      GPIOConfig     `yaml:"gpio"`
	Devices   []DeviceConfig `yaml:"devices"`
	MQTT      MQTTConfig     `yaml:"mqtt"`
	HTTP      HTTPConfig     `yaml:"http"`
	Heartbeat Duration       `yaml:"heartbeat"` // 0 disables heartbeats
	Log       LogConfig      `yaml:"log"`
}

// MainsConfig fixes the timing grid.
type MainsConfig struct {
	Frequency         int `yaml:"frequency"`            // 50 or 60
	TicksPerHalfCycle int `yaml:"ticks_per_half_cycle"` // default 100
}

// GPIOConfig names the GPIO chip and the zero-crossing detector line.
type GPIOConfig struct {
	Chip             string `yaml:"chip"`
	ZeroCrossingLine int    `yaml:"zero_crossing_line"`
}

// DeviceConfig maps one dimmer device to its output line.
type DeviceConfig struct {
	ID         int `yaml:"id"`
	OutputLine int `yaml:"output_line"`
}

// MQTTConfig contains broker connection settings. An empty broker disables
// the MQTT bridge.
type MQTTConfig struct {
	Broker   string `yaml:"broker"`
	ClientID string `yaml:"client_id"`
}

// HTTPConfig contains the status server settings. An empty addr disables it.
type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level string `yaml:"level"` // zerolog level name, default "info"
}

// Duration wraps time.Duration for YAML strings like "15m".
type Duration time.Duration

// UnmarshalYAML parses a duration string.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// AsDuration returns the wrapped time.Duration.
func (d Duration) AsDuration() time.Duration {
	return time.Duration(d)
}

// Load reads, defaults, and validates the config at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Mains.Frequency == 0 {
		c.Mains.Frequency = int(dim.Freq50Hz)
	}
	if c.Mains.TicksPerHalfCycle == 0 {
		c.Mains.TicksPerHalfCycle = dim.DefaultTicksPerHalfCycle
	}
	if c.GPIO.Chip == "" {
		c.GPIO.Chip = hw.DefaultChip
	}
	if c.MQTT.ClientID == "" {
		c.MQTT.ClientID = "phase-dimmer"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

// Validate checks the configuration for internal consistency.
func (c *Config) Validate() error {
	if err := c.Dim().Validate(); err != nil {
		return err
	}

	if len(c.Devices) == 0 {
		return fmt.Errorf("config: no devices defined")
	}
	seenIDs := make(map[int]bool)
	seenLines := make(map[int]bool)
	for _, d := range c.Devices {
		if d.ID < 0 || d.ID > 255 {
			return fmt.Errorf("config: device id %d out of range", d.ID)
		}
		if seenIDs[d.ID] {
			return fmt.Errorf("config: duplicate device id %d", d.ID)
		}
		seenIDs[d.ID] = true
		if seenLines[d.OutputLine] {
			return fmt.Errorf("config: output line %d used twice", d.OutputLine)
		}
		seenLines[d.OutputLine] = true
		if d.OutputLine == c.GPIO.ZeroCrossingLine {
			return fmt.Errorf("config: device %d output line collides with zero-crossing line %d",
				d.ID, c.GPIO.ZeroCrossingLine)
		}
	}

	if c.Heartbeat < 0 {
		return fmt.Errorf("config: negative heartbeat interval")
	}
	return nil
}

// Dim returns the core timing configuration.
func (c *Config) Dim() dim.Config {
	return dim.Config{
		Frequency:         dim.Frequency(c.Mains.Frequency),
		TicksPerHalfCycle: c.Mains.TicksPerHalfCycle,
	}
}
