package wiimote

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"
)

// fakeDevice implements Device for testing.
type fakeDevice struct {
	mu        sync.Mutex
	connected bool
	sample    RawSample
	ready     bool
}

func newFakeDevice(connected bool) *fakeDevice {
	return &fakeDevice{connected: connected}
}

func (d *fakeDevice) IsConnected() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.connected
}

func (d *fakeDevice) Event() (RawSample, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.sample, d.ready
}

func (d *fakeDevice) setSample(s RawSample) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sample = s
	d.ready = true
}

func (d *fakeDevice) setConnected(c bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.connected = c
}

// fakePoller implements Poller for testing.
type fakePoller struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (p *fakePoller) Poll(_ context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	return p.err
}

func (p *fakePoller) getCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

// recordingSink implements Sink for testing.
type recordingSink struct {
	mu       sync.Mutex
	stamps   []time.Time
	buttons  []ButtonChannels
	analog   []AnalogChannels
	trackers []TrackerSend

	buttonsErr error
	trackerErr error
}

func (s *recordingSink) SetButtons(_ context.Context, at time.Time, b ButtonChannels) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stamps = append(s.stamps, at)
	s.buttons = append(s.buttons, b)
	return s.buttonsErr
}

func (s *recordingSink) SetAnalog(_ context.Context, at time.Time, a AnalogChannels) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stamps = append(s.stamps, at)
	s.analog = append(s.analog, a)
	return nil
}

func (s *recordingSink) SendTracker(_ context.Context, at time.Time, send TrackerSend) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stamps = append(s.stamps, at)
	s.trackers = append(s.trackers, send)
	return s.trackerErr
}

func (s *recordingSink) counts() (buttons, analog, trackers int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.buttons), len(s.analog), len(s.trackers)
}

// MockMQTTClient implements MQTTClient for testing.
type MockMQTTClient struct {
	mu            sync.Mutex
	published     []mockPublish
	subscriptions []mockSubscription
	unsubscribed  []string
	connected     bool
	handlers      map[string]func(topic string, payload []byte)
	publishErr    error
}

type mockPublish struct {
	Topic    string
	Payload  []byte
	QoS      byte
	Retained bool
}

type mockSubscription struct {
	Topic string
	QoS   byte
}

func NewMockMQTTClient() *MockMQTTClient {
	return &MockMQTTClient{
		connected: true,
		handlers:  make(map[string]func(topic string, payload []byte)),
	}
}

func (m *MockMQTTClient) Publish(topic string, payload []byte, qos byte, retained bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.publishErr != nil {
		return m.publishErr
	}
	m.published = append(m.published, mockPublish{
		Topic:    topic,
		Payload:  payload,
		QoS:      qos,
		Retained: retained,
	})
	return nil
}

func (m *MockMQTTClient) Subscribe(topic string, qos byte, handler func(topic string, payload []byte)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subscriptions = append(m.subscriptions, mockSubscription{Topic: topic, QoS: qos})
	m.handlers[topic] = handler
	return nil
}

func (m *MockMQTTClient) Unsubscribe(topic string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.handlers, topic)
	m.unsubscribed = append(m.unsubscribed, topic)
	return nil
}

func (m *MockMQTTClient) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

func (m *MockMQTTClient) setConnected(c bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected = c
}

func (m *MockMQTTClient) GetPublished() []mockPublish {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]mockPublish, len(m.published))
	copy(result, m.published)
	return result
}

func (m *MockMQTTClient) GetSubscriptions() []mockSubscription {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.subscriptions
}

// publishedTo returns messages published to topic.
func (m *MockMQTTClient) publishedTo(topic string) []mockPublish {
	var out []mockPublish
	for _, p := range m.GetPublished() {
		if p.Topic == topic {
			out = append(out, p)
		}
	}
	return out
}

// SimulateMessage delivers a message to the handler whose pattern matches topic.
func (m *MockMQTTClient) SimulateMessage(topic string, payload []byte) {
	m.mu.Lock()
	var handler func(string, []byte)
	for pattern, h := range m.handlers {
		if topicMatches(pattern, topic) {
			handler = h
			break
		}
	}
	m.mu.Unlock()
	if handler != nil {
		handler(topic, payload)
	}
}

// topicMatches implements single-level (+) and multi-level (#) wildcards.
func topicMatches(pattern, topic string) bool {
	pp := strings.Split(pattern, "/")
	tp := strings.Split(topic, "/")
	for i, p := range pp {
		if p == "#" {
			return true
		}
		if i >= len(tp) {
			return false
		}
		if p != "+" && p != tp[i] {
			return false
		}
	}
	return len(pp) == len(tp)
}

// mockRecorder implements EventRecorder for testing.
type mockRecorder struct {
	mu     sync.Mutex
	events []SlotEvent
}

func (r *mockRecorder) Record(_ context.Context, ev SlotEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *mockRecorder) getEvents() []SlotEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]SlotEvent, len(r.events))
	copy(out, r.events)
	return out
}

// mockListener implements FrameListener and SlotEventListener for testing.
type mockListener struct {
	mu     sync.Mutex
	frames []*Frame
	events []SlotEvent
}

func (l *mockListener) OnFrame(f *Frame) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.frames = append(l.frames, f)
}

func (l *mockListener) OnSlotEvent(ev SlotEvent) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, ev)
}

func (l *mockListener) counts() (frames, events int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.frames), len(l.events)
}

// mockInitializer implements Initializer for testing.
type mockInitializer struct {
	mu     sync.Mutex
	leds   map[int]LED
	motion map[int]bool
	failOn int
}

func newMockInitializer() *mockInitializer {
	return &mockInitializer{leds: map[int]LED{}, motion: map[int]bool{}, failOn: -1}
}

func (m *mockInitializer) SetLEDs(_ context.Context, slot int, leds LED) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if slot == m.failOn {
		return errors.New("helper unreachable")
	}
	m.leds[slot] = leds
	return nil
}

func (m *mockInitializer) SetMotionSensing(_ context.Context, slot int, enabled bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.motion[slot] = enabled
	return nil
}
