// Command ac-meter streams channel/voltage/frequency readings from the
// dimmer board's metering head over a serial link, optionally publishing
// them to MQTT.
package main

import (
	"errors"
	"flag"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/sweeney/phase-dimmer/internal/meter"
	"github.com/sweeney/phase-dimmer/internal/mqttctl"
)

func main() {
	port := flag.String("port", "/dev/ttyUSB0", "Serial port of the metering head")
	baud := flag.Int("baud", 115200, "Baud rate")
	once := flag.Bool("once", false, "Print a single reading and exit")
	broker := flag.String("broker", "", "MQTT broker URL; empty disables publishing")
	clientID := flag.String("client-id", "ac-meter", "MQTT client id")
	flag.Parse()

	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	src, err := meter.Open(*port, *baud)
	if err != nil {
		log.Fatal().Err(err).Msg("open metering port")
	}
	defer src.Close()

	var client mqttctl.Client
	if *broker != "" {
		real, err := mqttctl.NewRealClient(*broker, *clientID, nil)
		if err != nil {
			log.Fatal().Err(err).Msg("connect to broker")
		}
		defer real.Close()
		client = real
		log.Info().Str("broker", *broker).Str("topic", mqttctl.TopicMeter).Msg("publishing readings")
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		// Closing the port unblocks the reader.
		src.Close()
	}()

	if err := stream(src, client, *once); err != nil {
		log.Fatal().Err(err).Msg("fatal")
	}
}

func stream(src io.Reader, client mqttctl.Client, once bool) error {
	r := meter.NewReader(src)
	for {
		reading, err := r.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if errors.Is(err, meter.ErrBadRecord) {
			log.Warn().Err(err).Msg("bad reading")
			continue
		}
		if err != nil {
			// Port closed or failed; a closed port on shutdown is not
			// an error worth a non-zero exit.
			log.Info().Err(err).Msg("metering stream ended")
			return nil
		}

		log.Info().
			Uint8("channel", reading.Channel).
			Float64("voltage", reading.Voltage).
			Float64("frequency", reading.Frequency).
			Msg("reading")

		if client != nil {
			event := mqttctl.MeterEvent{
				Timestamp: time.Now(),
				Channel:   reading.Channel,
				Voltage:   reading.Voltage,
				Frequency: reading.Frequency,
			}
			if err := client.PublishMeter(event); err != nil {
				log.Warn().Err(err).Msg("meter publish failed")
			}
		}

		if once {
			return nil
		}
	}
}
