package wiimote

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// MQTTSink publishes the channels of each tick to the broker.
//
// Buttons and analog arrays are published non-retained because every tick
// carries a complete snapshot. Tracker sends are retained so a late
// subscriber sees the last orientation of each sensor.
type MQTTSink struct {
	client   MQTTClient
	bridgeID string
	qos      byte
}

// NewMQTTSink creates a sink publishing under the given bridge ID.
func NewMQTTSink(client MQTTClient, bridgeID string, qos byte) (*MQTTSink, error) {
	if client == nil {
		return nil, fmt.Errorf("MQTT client is required")
	}
	if bridgeID == "" {
		return nil, fmt.Errorf("bridge ID is required")
	}
	return &MQTTSink{client: client, bridgeID: bridgeID, qos: qos}, nil
}

// SetButtons implements Sink.
func (s *MQTTSink) SetButtons(_ context.Context, at time.Time, buttons ButtonChannels) error {
	return s.publish(ButtonsTopic(s.bridgeID), NewButtonsMessage(s.bridgeID, at, buttons), false)
}

// SetAnalog implements Sink.
func (s *MQTTSink) SetAnalog(_ context.Context, at time.Time, analog AnalogChannels) error {
	return s.publish(AnalogTopic(s.bridgeID), NewAnalogMessage(s.bridgeID, at, analog), false)
}

// SendTracker implements Sink.
func (s *MQTTSink) SendTracker(_ context.Context, at time.Time, send TrackerSend) error {
	if send.Sensor < 0 || send.Sensor >= TrackerChannelCount {
		return fmt.Errorf("tracker sensor %d out of range", send.Sensor)
	}
	return s.publish(TrackerTopic(s.bridgeID, send.Sensor), NewTrackerMessage(s.bridgeID, at, send), true)
}

func (s *MQTTSink) publish(topic string, msg any, retained bool) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", topic, err)
	}
	return s.client.Publish(topic, payload, s.qos, retained)
}
