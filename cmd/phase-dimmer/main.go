// Command phase-dimmer drives triac dimmer channels phase-locked to the
// mains zero crossing, with power commands arriving over MQTT.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/sweeney/phase-dimmer/internal/config"
	"github.com/sweeney/phase-dimmer/internal/dim"
	"github.com/sweeney/phase-dimmer/internal/hw"
	"github.com/sweeney/phase-dimmer/internal/mqttctl"
	"github.com/sweeney/phase-dimmer/internal/status"
	"github.com/sweeney/phase-dimmer/internal/web"
)

func main() {
	// Support both -c and --config for config path
	var configPath string
	flag.StringVar(&configPath, "config", "config.yaml", "Path to configuration file")
	flag.StringVar(&configPath, "c", "config.yaml", "Path to configuration file (shorthand)")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	setupLogging(cfg.Log.Level)

	log.Info().Str("config", configPath).Msg("starting phase-dimmer")

	if err := run(cfg); err != nil {
		log.Fatal().Err(err).Msg("fatal")
	}
}

func run(cfg *config.Config) error {
	// Zero-crossing detector line.
	zc, err := hw.NewRealZeroCrossing(cfg.GPIO.Chip, cfg.GPIO.ZeroCrossingLine)
	if err != nil {
		return fmt.Errorf("init zero-crossing line: %w", err)
	}
	defer zc.Close()

	// Manager and one output line per device.
	mgr, err := dim.NewManager(cfg.Dim(), zc)
	if err != nil {
		return fmt.Errorf("init manager: %w", err)
	}

	outputs := make([]*hw.RealOutput, 0, len(cfg.Devices))
	defer func() {
		for _, out := range outputs {
			out.Close()
		}
	}()
	for _, dev := range cfg.Devices {
		out, err := hw.NewRealOutput(cfg.GPIO.Chip, dev.OutputLine)
		if err != nil {
			return fmt.Errorf("init output line %d: %w", dev.OutputLine, err)
		}
		outputs = append(outputs, out)
		if err := mgr.Register(uint8(dev.ID), out); err != nil {
			return fmt.Errorf("register device %d: %w", dev.ID, err)
		}
		log.Info().Int("device", dev.ID).Int("line", dev.OutputLine).Msg("registered device")
	}

	// Status tracker, before STARTUP so the snapshot is available.
	startTime := time.Now()
	tracker := status.NewTracker(startTime, status.Config{
		FrequencyHz:       cfg.Mains.Frequency,
		TicksPerHalfCycle: cfg.Mains.TicksPerHalfCycle,
		TickIntervalUs:    cfg.Dim().TickInterval().Microseconds(),
		HeartbeatMs:       cfg.Heartbeat.AsDuration().Milliseconds(),
		Broker:            cfg.MQTT.Broker,
		HTTPAddr:          cfg.HTTP.Addr,
	})
	tracker.Update(deviceStatuses(mgr), 0, 0, 0)

	// MQTT bridge feeding the manager's update channel.
	var client mqttctl.Client
	var connStatus mqttctl.ConnectionStatus
	if cfg.MQTT.Broker != "" {
		real, err := mqttctl.NewRealClient(cfg.MQTT.Broker, cfg.MQTT.ClientID, mgr.Sender())
		if err != nil {
			return fmt.Errorf("init mqtt: %w", err)
		}
		defer real.Close()
		client = real
		connStatus = real

		startup := mqttctl.SystemEvent{
			Timestamp:  startTime,
			Event:      "STARTUP",
			Retained:   true,
			RawPayload: status.FormatStatusEvent(tracker.Snapshot(), "STARTUP", ""),
		}
		if err := client.PublishSystem(startup); err != nil {
			log.Warn().Err(err).Msg("failed to publish startup event")
		}
	}

	// HTTP status server.
	if cfg.HTTP.Addr != "" {
		srv := web.New(cfg.HTTP.Addr, tracker)
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error().Err(err).Msg("http server error")
			}
		}()
		defer srv.Shutdown(context.Background())
		log.Info().Str("addr", cfg.HTTP.Addr).Msg("http status server listening")
	}

	if err := mgr.Start(); err != nil {
		return fmt.Errorf("start manager: %w", err)
	}

	// The tick goroutine is the host-side stand-in for the hardware timer
	// interrupt: it must only ever call TickPass.
	tickDone := make(chan struct{})
	tickStopped := make(chan struct{})
	go runTickLoop(mgr, cfg.Dim().TickInterval(), tickDone, tickStopped)

	// The monitor goroutine owns the blocking zero-crossing wait.
	monitorStopped := make(chan struct{})
	go runMonitorLoop(mgr, monitorStopped)

	// Fault drain: errors recorded in interrupt/monitor context surface
	// here, where logging is allowed.
	var faultCount atomic.Uint64
	go func() {
		for err := range mgr.Faults() {
			faultCount.Add(1)
			log.Warn().Err(err).Msg("dimmer fault")
		}
	}()

	log.Info().
		Int("frequency_hz", cfg.Mains.Frequency).
		Int("ticks", cfg.Mains.TicksPerHalfCycle).
		Dur("tick_interval", cfg.Dim().TickInterval()).
		Int("devices", len(cfg.Devices)).
		Msg("running")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	statusTicker := time.NewTicker(time.Second)
	defer statusTicker.Stop()

	var heartbeatCh <-chan time.Time
	if hb := cfg.Heartbeat.AsDuration(); hb > 0 {
		heartbeatTicker := time.NewTicker(hb)
		defer heartbeatTicker.Stop()
		heartbeatCh = heartbeatTicker.C
	}

	lastStates := mgr.DeviceStates()
	for {
		select {
		case s := <-sigCh:
			log.Info().Str("signal", signalName(s)).Msg("shutting down")

			// Disarm the tick source before releasing any output.
			close(tickDone)
			<-tickStopped

			if err := mgr.Stop(); err != nil {
				log.Error().Err(err).Msg("manager stop")
			}
			// Stop unblocks nothing by itself; closing the zc line in
			// the deferred Close releases the monitor goroutine.
			zc.Close()
			<-monitorStopped

			if client != nil {
				refreshTracker(tracker, mgr, connStatus, faultCount.Load())
				shutdown := mqttctl.SystemEvent{
					Timestamp:  time.Now(),
					Event:      "SHUTDOWN",
					Reason:     signalName(s),
					Retained:   true,
					RawPayload: status.FormatStatusEvent(tracker.Snapshot(), "SHUTDOWN", signalName(s)),
				}
				if err := client.PublishSystem(shutdown); err != nil {
					log.Warn().Err(err).Msg("failed to publish shutdown event")
				}
			}
			return nil

		case <-statusTicker.C:
			refreshTracker(tracker, mgr, connStatus, faultCount.Load())

			// Publish a state event for every device whose applied
			// power changed since the last look.
			states := mgr.DeviceStates()
			if client != nil {
				for _, changed := range changedStates(lastStates, states) {
					event := mqttctl.StateEvent{
						Timestamp:     time.Now(),
						DeviceID:      changed.ID,
						PowerPercent:  changed.Percent,
						ThresholdTick: changed.Threshold,
					}
					if err := client.PublishState(event); err != nil {
						log.Warn().Err(err).Uint8("device", changed.ID).Msg("state publish failed")
					}
				}
			}
			lastStates = states

		case <-heartbeatCh:
			refreshTracker(tracker, mgr, connStatus, faultCount.Load())
			log.Info().
				Uint64("zero_crossings", mgr.ZeroCrossings()).
				Uint64("faults", faultCount.Load()).
				Msg("heartbeat")
			if client != nil {
				hb := mqttctl.SystemEvent{
					Timestamp:  time.Now(),
					Event:      "HEARTBEAT",
					RawPayload: status.FormatStatusEvent(tracker.Snapshot(), "HEARTBEAT", ""),
				}
				if err := client.PublishSystem(hb); err != nil {
					log.Warn().Err(err).Msg("heartbeat publish failed")
				}
			}
		}
	}
}

// runTickLoop invokes the tick pass at the configured interval until done is
// closed. On real hardware this is a timer interrupt; here a monotonic
// ticker is the closest a host process gets.
func runTickLoop(mgr *dim.Manager, interval time.Duration, done <-chan struct{}, stopped chan<- struct{}) {
	defer close(stopped)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			mgr.TickPass()
		}
	}
}

// runMonitorLoop drives the zero-crossing monitor, retrying on wait errors
// so a glitching detector degrades phase tracking instead of halting it.
func runMonitorLoop(mgr *dim.Manager, stopped chan<- struct{}) {
	defer close(stopped)

	for {
		err := mgr.WaitZeroCrossing()
		if err == nil {
			continue
		}
		if errors.Is(err, dim.ErrNotRunning) {
			return
		}
		log.Warn().Err(err).Msg("zero-crossing wait failed, retrying")
		time.Sleep(100 * time.Millisecond)
	}
}

func refreshTracker(tracker *status.Tracker, mgr *dim.Manager, conn mqttctl.ConnectionStatus, faults uint64) {
	tracker.Update(deviceStatuses(mgr), mgr.ZeroCrossings(), faults, mgr.FaultsDropped())
	if conn != nil {
		tracker.SetMQTTConnected(conn.IsConnected())
	}
}

func deviceStatuses(mgr *dim.Manager) []status.DeviceStatus {
	states := mgr.DeviceStates()
	out := make([]status.DeviceStatus, 0, len(states))
	for _, s := range states {
		out = append(out, status.DeviceStatus{
			ID:            s.ID,
			PowerPercent:  s.Percent,
			ThresholdTick: s.Threshold,
		})
	}
	return out
}

// changedStates returns the entries of curr that differ from prev.
// Both slices are in registration order.
func changedStates(prev, curr []dim.DeviceState) []dim.DeviceState {
	var changed []dim.DeviceState
	for i, c := range curr {
		if i >= len(prev) || prev[i] != c {
			changed = append(changed, c)
		}
	}
	return changed
}

func signalName(s os.Signal) string {
	switch s {
	case syscall.SIGINT:
		return "SIGINT"
	case syscall.SIGTERM:
		return "SIGTERM"
	default:
		return "UNKNOWN"
	}
}

func setupLogging(level string) {
	zerolog.TimeFieldFormat = time.RFC3339

	parsed, err := zerolog.ParseLevel(level)
	if err != nil {
		parsed = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(parsed)

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
}
