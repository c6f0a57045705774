package wiimote

import (
	"fmt"
	"time"
)

// MQTT message types exchanged by the bridge.
//
// Downstream channels:  wiimote/{bridge}/buttons, /analog, /tracker/{sensor}
// Bridge metadata:      wiimote/{bridge}/health, /descriptor
// Hardware helper:      wiimote/raw/{slot} (in), wiimote/command/{slot} (out)

// ButtonsMessage carries the full button channel for one tick.
type ButtonsMessage struct {
	Bridge    string         `json:"bridge"`
	Timestamp time.Time      `json:"timestamp"`
	Values    ButtonChannels `json:"values"`
}

// AnalogMessage carries the full analog channel for one tick.
type AnalogMessage struct {
	Bridge    string         `json:"bridge"`
	Timestamp time.Time      `json:"timestamp"`
	Values    AnalogChannels `json:"values"`
}

// TrackerMessage carries one tracker orientation update.
// Published retained so subscribers always see the last orientation.
type TrackerMessage struct {
	Bridge      string     `json:"bridge"`
	Timestamp   time.Time  `json:"timestamp"`
	Sensor      int        `json:"sensor"`
	Orientation Quaternion `json:"orientation"`
}

// NewButtonsMessage creates a buttons message stamped with the frame time.
func NewButtonsMessage(bridgeID string, at time.Time, buttons ButtonChannels) ButtonsMessage {
	return ButtonsMessage{
		Bridge:    bridgeID,
		Timestamp: at.UTC(),
		Values:    buttons,
	}
}

// NewAnalogMessage creates an analog message stamped with the frame time.
func NewAnalogMessage(bridgeID string, at time.Time, analog AnalogChannels) AnalogMessage {
	return AnalogMessage{
		Bridge:    bridgeID,
		Timestamp: at.UTC(),
		Values:    analog,
	}
}

// NewTrackerMessage creates a tracker message.
func NewTrackerMessage(bridgeID string, at time.Time, send TrackerSend) TrackerMessage {
	return TrackerMessage{
		Bridge:      bridgeID,
		Timestamp:   at.UTC(),
		Sensor:      send.Sensor,
		Orientation: send.Orientation,
	}
}

// RawSampleMessage is published by the hardware helper for one slot.
// Topic: wiimote/raw/{slot}
type RawSampleMessage struct {
	// Connected is false when the helper lost the controller. A message
	// with connected=false carries no sample.
	Connected bool `json:"connected"`

	Buttons ButtonMask `json:"buttons"`

	Accelerometer bool        `json:"accelerometer"`
	Orientation   EulerAngles `json:"orientation"`

	IR         bool `json:"ir"`
	IRPosition Vec3 `json:"ir_position"`

	Extension *RawExtension `json:"extension,omitempty"`

	Timestamp time.Time `json:"timestamp,omitempty"`
}

// RawExtension is the wire form of an extension payload.
type RawExtension struct {
	Type string `json:"type"`
	NunchukState
}

// Sample converts the wire message into a RawSample.
func (m RawSampleMessage) Sample() (RawSample, error) {
	sample := RawSample{
		Buttons:             m.Buttons,
		AccelerometerActive: m.Accelerometer,
		Orientation:         m.Orientation,
		IRActive:            m.IR,
		IR:                  m.IRPosition,
		Extension:           NoExtension{},
	}
	if m.Extension == nil {
		return sample, nil
	}

	extType, err := ParseExtensionType(m.Extension.Type)
	if err != nil {
		return RawSample{}, fmt.Errorf("%w: %q", err, m.Extension.Type)
	}
	switch extType {
	case ExtensionNunchuk:
		sample.Extension = Nunchuk{NunchukState: m.Extension.NunchukState}
	case ExtensionMotionPlusNunchuk:
		sample.Extension = MotionPlusNunchuk{NunchukState: m.Extension.NunchukState}
	case ExtensionNone:
	}
	return sample, nil
}

// CommandMessage is sent to the hardware helper to configure a controller.
// Topic: wiimote/command/{slot}
type CommandMessage struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Slot      int       `json:"slot"`
	Command   string    `json:"command"`
	LEDs      LED       `json:"leds,omitempty"`
	Enabled   bool      `json:"enabled,omitempty"`
}

// Commands understood by the hardware helper.
const (
	CommandSetLEDs       = "set_leds"
	CommandMotionSensing = "motion_sensing"
)

const defaultTopicNamespace = "wiimote"

// SlotEventKind classifies a slot transition.
type SlotEventKind string

const (
	// SlotConnected is recorded when a slot becomes connected.
	SlotConnected SlotEventKind = "connected"
	// SlotDisconnected is recorded when a slot loses its controller.
	SlotDisconnected SlotEventKind = "disconnected"
	// SlotExtensionChanged is recorded when the attached extension changes.
	SlotExtensionChanged SlotEventKind = "extension_changed"
)

// SlotEvent is a connection or extension transition observed between ticks.
type SlotEvent struct {
	ID        string        `json:"id"`
	Slot      int           `json:"slot"`
	Kind      SlotEventKind `json:"kind"`
	Extension string        `json:"extension"`
	Timestamp time.Time     `json:"timestamp"`
}

// HealthStatus represents the operational status of the bridge.
type HealthStatus string

const (
	// HealthHealthy indicates the bridge is operating normally.
	HealthHealthy HealthStatus = "healthy"

	// HealthDegraded indicates the bridge is running with issues.
	HealthDegraded HealthStatus = "degraded"

	// HealthOffline indicates the bridge is gone (from LWT).
	HealthOffline HealthStatus = "offline"

	// HealthStarting indicates the bridge is starting up.
	HealthStarting HealthStatus = "starting"

	// HealthStopping indicates the bridge is shutting down.
	HealthStopping HealthStatus = "stopping"
)

// HealthMessage reports bridge status.
// Topic: wiimote/{bridge}/health
// QoS: 1, Retained: Yes
type HealthMessage struct {
	Bridge         string       `json:"bridge"`
	Timestamp      time.Time    `json:"timestamp"`
	Status         HealthStatus `json:"status"`
	Version        string       `json:"version"`
	UptimeSeconds  int64        `json:"uptime_seconds"`
	SlotsConnected int          `json:"slots_connected"`
	Statistics     *TickStats   `json:"statistics,omitempty"`
	Reason         string       `json:"reason,omitempty"`
}

// TickStats contains operational counters.
type TickStats struct {
	Ticks        uint64 `json:"ticks"`
	FramesSent   uint64 `json:"frames_sent"`
	TrackerSends uint64 `json:"tracker_sends"`
	Errors       uint64 `json:"errors"`
}

// NewHealthMessage creates a health status message.
func NewHealthMessage(bridgeID, version string, status HealthStatus, stats TickStats, slotsConnected int, startTime time.Time) HealthMessage {
	return HealthMessage{
		Bridge:         bridgeID,
		Timestamp:      time.Now().UTC(),
		Status:         status,
		Version:        version,
		UptimeSeconds:  int64(time.Since(startTime).Seconds()),
		SlotsConnected: slotsConnected,
		Statistics:     &stats,
	}
}

// NewLWTMessage creates the Last Will and Testament health message.
func NewLWTMessage(bridgeID string) HealthMessage {
	return HealthMessage{
		Bridge:    bridgeID,
		Timestamp: time.Now().UTC(),
		Status:    HealthOffline,
		Reason:    "unexpected_disconnect",
	}
}

// Topic helpers

// ButtonsTopic returns the topic for the button channel.
// Example: wiimote/bridge-01/buttons
func ButtonsTopic(bridgeID string) string {
	return fmt.Sprintf("%s/%s/buttons", defaultTopicNamespace, bridgeID)
}

// AnalogTopic returns the topic for the analog channel.
// Example: wiimote/bridge-01/analog
func AnalogTopic(bridgeID string) string {
	return fmt.Sprintf("%s/%s/analog", defaultTopicNamespace, bridgeID)
}

// TrackerTopic returns the topic for one tracker sensor.
// Example: wiimote/bridge-01/tracker/3
func TrackerTopic(bridgeID string, sensor int) string {
	return fmt.Sprintf("%s/%s/tracker/%d", defaultTopicNamespace, bridgeID, sensor)
}

// HealthTopic returns the topic for bridge health.
// Example: wiimote/bridge-01/health
func HealthTopic(bridgeID string) string {
	return fmt.Sprintf("%s/%s/health", defaultTopicNamespace, bridgeID)
}

// DescriptorTopic returns the topic for the device descriptor.
// Example: wiimote/bridge-01/descriptor
func DescriptorTopic(bridgeID string) string {
	return fmt.Sprintf("%s/%s/descriptor", defaultTopicNamespace, bridgeID)
}

// RawSampleTopic returns the topic the hardware helper publishes a slot on.
// Example: wiimote/raw/0
func RawSampleTopic(slot int) string {
	return fmt.Sprintf("%s/raw/%d", defaultTopicNamespace, slot)
}

// RawSampleSubscribeTopic returns the subscription pattern for all slots.
// Example: wiimote/raw/+
func RawSampleSubscribeTopic() string {
	return fmt.Sprintf("%s/raw/+", defaultTopicNamespace)
}

// CommandTopic returns the topic for helper commands addressed to a slot.
// Example: wiimote/command/2
func CommandTopic(slot int) string {
	return fmt.Sprintf("%s/command/%d", defaultTopicNamespace, slot)
}

// ParseRawSampleTopic extracts the slot index from a raw sample topic.
func ParseRawSampleTopic(topic string) (int, error) {
	var slot int
	prefix := defaultTopicNamespace + "/raw/"
	if len(topic) <= len(prefix) || topic[:len(prefix)] != prefix {
		return 0, fmt.Errorf("%w: topic %q", ErrInvalidSlot, topic)
	}
	if _, err := fmt.Sscanf(topic[len(prefix):], "%d", &slot); err != nil {
		return 0, fmt.Errorf("%w: topic %q", ErrInvalidSlot, topic)
	}
	if slot < 0 || slot >= SlotCount || fmt.Sprint(slot) != topic[len(prefix):] {
		return 0, fmt.Errorf("%w: topic %q", ErrInvalidSlot, topic)
	}
	return slot, nil
}
