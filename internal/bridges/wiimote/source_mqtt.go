package wiimote

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// defaultStaleAfter is how long a slot may go without a raw sample before
// it is treated as disconnected.
const defaultStaleAfter = 2 * time.Second

// MQTTSourceConfig configures an MQTT-fed controller source.
type MQTTSourceConfig struct {
	// Client is the broker connection.
	Client MQTTClient

	// QoS for the raw sample subscription and commands.
	QoS byte

	// StaleAfter disconnects a slot with no samples for this long.
	// Default: 2 seconds.
	StaleAfter time.Duration

	// Now is the clock used for staleness. Defaults to time.Now.
	Now func() time.Time

	// Logger is optional.
	Logger Logger
}

// MQTTSource receives raw controller samples from a hardware helper over
// MQTT and presents them as the slot array.
//
// Samples arriving between polls are buffered per slot; Poll promotes the
// newest one so each tick sees at most one event per slot. A slot without a
// buffered sample is connected but not ready.
//
// Thread Safety: All methods are safe for concurrent use.
type MQTTSource struct {
	client     MQTTClient
	qos        byte
	staleAfter time.Duration
	now        func() time.Time
	logger     Logger

	mu      sync.Mutex
	devices [SlotCount]*mqttDevice

	received atomic.Uint64
	rejected atomic.Uint64
}

type mqttDevice struct {
	src *MQTTSource

	connected bool
	lastSeen  time.Time
	pending   *RawSample

	current RawSample
	ready   bool
}

// NewMQTTSource creates a source. Call Start to subscribe.
func NewMQTTSource(cfg MQTTSourceConfig) (*MQTTSource, error) {
	if cfg.Client == nil {
		return nil, fmt.Errorf("MQTT client is required")
	}
	s := &MQTTSource{
		client:     cfg.Client,
		qos:        cfg.QoS,
		staleAfter: cfg.StaleAfter,
		now:        cfg.Now,
		logger:     cfg.Logger,
	}
	if s.staleAfter <= 0 {
		s.staleAfter = defaultStaleAfter
	}
	if s.now == nil {
		s.now = time.Now
	}
	for i := range s.devices {
		s.devices[i] = &mqttDevice{src: s}
	}
	return s, nil
}

// Start subscribes to raw samples for all slots.
func (s *MQTTSource) Start() error {
	topic := RawSampleSubscribeTopic()
	if err := s.client.Subscribe(topic, s.qos, s.handleMessage); err != nil {
		return fmt.Errorf("subscribe to raw samples: %w", err)
	}
	return nil
}

// Stop unsubscribes from raw samples and disconnects every slot.
func (s *MQTTSource) Stop() error {
	s.mu.Lock()
	for _, d := range s.devices {
		d.connected = false
		d.pending = nil
		d.ready = false
	}
	s.mu.Unlock()

	if err := s.client.Unsubscribe(RawSampleSubscribeTopic()); err != nil {
		return fmt.Errorf("unsubscribe from raw samples: %w", err)
	}
	return nil
}

// Slots returns the slot array backed by this source.
func (s *MQTTSource) Slots() Slots {
	var slots Slots
	for i, d := range s.devices {
		slots[i] = d
	}
	return slots
}

// Stats returns the number of accepted and rejected raw messages.
func (s *MQTTSource) Stats() (received, rejected uint64) {
	return s.received.Load(), s.rejected.Load()
}

// Poll implements Poller.
func (s *MQTTSource) Poll(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !s.client.IsConnected() {
		return fmt.Errorf("%w: broker disconnected", ErrSourceUnavailable)
	}

	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, d := range s.devices {
		if d.connected && now.Sub(d.lastSeen) > s.staleAfter {
			d.connected = false
			d.pending = nil
		}
		if !d.connected || d.pending == nil {
			d.ready = false
			continue
		}
		d.current = *d.pending
		d.pending = nil
		d.ready = true
	}
	return nil
}

// SetLEDs implements Initializer.
func (s *MQTTSource) SetLEDs(_ context.Context, slot int, leds LED) error {
	return s.sendCommand(CommandMessage{Slot: slot, Command: CommandSetLEDs, LEDs: leds})
}

// SetMotionSensing implements Initializer.
func (s *MQTTSource) SetMotionSensing(_ context.Context, slot int, enabled bool) error {
	return s.sendCommand(CommandMessage{Slot: slot, Command: CommandMotionSensing, Enabled: enabled})
}

func (s *MQTTSource) sendCommand(cmd CommandMessage) error {
	if cmd.Slot < 0 || cmd.Slot >= SlotCount {
		return fmt.Errorf("%w: %d", ErrInvalidSlot, cmd.Slot)
	}
	cmd.ID = uuid.NewString()
	cmd.Timestamp = s.now().UTC()

	payload, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("marshal command: %w", err)
	}
	// Retained so a helper that starts after the bridge still applies it.
	return s.client.Publish(CommandTopic(cmd.Slot), payload, s.qos, true)
}

// handleMessage processes one raw sample message.
func (s *MQTTSource) handleMessage(topic string, payload []byte) {
	slot, err := ParseRawSampleTopic(topic)
	if err != nil {
		s.reject("invalid raw sample topic", err, topic)
		return
	}

	var msg RawSampleMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		s.reject("invalid raw sample payload", fmt.Errorf("%w: %w", ErrInvalidSample, err), topic)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.devices[slot]

	if !msg.Connected {
		d.connected = false
		d.pending = nil
		s.received.Add(1)
		return
	}

	sample, err := msg.Sample()
	if err != nil {
		s.reject("invalid raw sample extension", fmt.Errorf("%w: %w", ErrInvalidSample, err), topic)
		return
	}

	d.connected = true
	d.lastSeen = s.now()
	d.pending = &sample
	s.received.Add(1)
}

func (s *MQTTSource) reject(msg string, err error, topic string) {
	s.rejected.Add(1)
	if s.logger != nil {
		s.logger.Warn(msg, "topic", topic, "error", err)
	}
}

func (d *mqttDevice) IsConnected() bool {
	d.src.mu.Lock()
	defer d.src.mu.Unlock()
	return d.connected
}

func (d *mqttDevice) Event() (RawSample, bool) {
	d.src.mu.Lock()
	defer d.src.mu.Unlock()
	return d.current, d.ready
}
