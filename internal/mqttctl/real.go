package mqttctl

import (
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog/log"
)

// bufferCap bounds how many publishes are held across a broker outage.
const bufferCap = 256

// RealClient talks to an actual MQTT broker. Inbound power-set commands are
// routed to the submitter; outbound publishes are buffered while the broker
// is unreachable and replayed on reconnect.
type RealClient struct {
	client    paho.Client
	submitter Submitter

	mu     sync.Mutex
	buffer *ringBuffer
}

// NewRealClient connects to the broker and subscribes to the power-set
// topic. The subscription is re-established on every reconnect. A nil
// submitter skips the subscription; publish-only clients (the meter
// utility) use that mode.
func NewRealClient(broker, clientID string, submitter Submitter) (*RealClient, error) {
	c := &RealClient{
		submitter: submitter,
		buffer:    newRingBuffer(bufferCap),
	}

	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetOnConnectHandler(c.onConnect).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			log.Warn().Err(err).Msg("mqtt connection lost")
		})

	c.client = paho.NewClient(opts)
	token := c.client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return nil, fmt.Errorf("connection timeout")
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}

	return c, nil
}

func (c *RealClient) onConnect(client paho.Client) {
	if c.submitter != nil {
		log.Info().Str("topic", TopicPowerSet).Msg("mqtt connected, subscribing")

		token := client.Subscribe(TopicPowerSet, 1, c.handleCommand)
		if !token.WaitTimeout(5 * time.Second) {
			log.Error().Msg("subscribe timeout")
		} else if err := token.Error(); err != nil {
			log.Error().Err(err).Msg("subscribe failed")
		}
	}

	c.replayBuffered(client)
}

func (c *RealClient) handleCommand(_ paho.Client, msg paho.Message) {
	if err := SubmitCommand(msg.Payload(), c.submitter); err != nil {
		// Malformed or rejected commands are dropped; the producer gets
		// no reply over QoS-less MQTT anyway.
		log.Warn().Err(err).Str("topic", msg.Topic()).Msg("dropping power command")
		return
	}
	log.Debug().Str("topic", msg.Topic()).Msg("accepted power command")
}

func (c *RealClient) replayBuffered(client paho.Client) {
	c.mu.Lock()
	msgs := c.buffer.drainAll()
	c.mu.Unlock()

	if len(msgs) == 0 {
		return
	}
	log.Info().Int("count", len(msgs)).Msg("replaying buffered publishes")
	for _, m := range msgs {
		token := client.Publish(m.topic, m.qos, m.retained, m.payload)
		if !token.WaitTimeout(5 * time.Second) {
			log.Warn().Str("topic", m.topic).Msg("replay publish timeout")
		} else if err := token.Error(); err != nil {
			log.Warn().Err(err).Str("topic", m.topic).Msg("replay publish failed")
		}
	}
}

// publish sends a message now if connected, otherwise buffers it for the
// next reconnect.
func (c *RealClient) publish(topic string, qos byte, retained bool, payload []byte) error {
	if !c.client.IsConnected() {
		c.mu.Lock()
		c.buffer.push(bufferedMsg{topic: topic, payload: payload, qos: qos, retained: retained})
		c.mu.Unlock()
		return nil
	}

	token := c.client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("publish timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	return nil
}

// PublishState sends the applied power state of one device.
// QoS 0: state events are frequent and superseded by the next one.
func (c *RealClient) PublishState(event StateEvent) error {
	payload, err := FormatStatePayload(event)
	if err != nil {
		return fmt.Errorf("format state payload: %w", err)
	}
	return c.publish(TopicPowerState, 0, false, payload)
}

// PublishSystem sends a system lifecycle event.
// QoS 1: startup and shutdown events should survive a flaky link.
func (c *RealClient) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}
	return c.publish(TopicSystem, 1, event.Retained, payload)
}

// PublishMeter sends one AC line telemetry reading.
// QoS 0: readings stream continuously and the latest one is the only one
// that matters.
func (c *RealClient) PublishMeter(event MeterEvent) error {
	payload, err := FormatMeterPayload(event)
	if err != nil {
		return fmt.Errorf("format meter payload: %w", err)
	}
	return c.publish(TopicMeter, 0, false, payload)
}

// IsConnected reports whether the broker connection is up.
func (c *RealClient) IsConnected() bool {
	return c.client.IsConnected()
}

// BufferedCount returns how many publishes are waiting for a reconnect.
func (c *RealClient) BufferedCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buffer.len()
}

// Close disconnects from the broker.
func (c *RealClient) Close() error {
	c.client.Disconnect(250)
	return nil
}
