package wiimote

import (
	"context"
	"encoding/json"
	"testing"
	"time"
)

type bridgeFixture struct {
	bridge   *Bridge
	client   *MockMQTTClient
	recorder *mockRecorder
	listener *mockListener
	slots    [SlotCount]*fakeDevice
}

func newBridgeFixture(t *testing.T, initializer Initializer) *bridgeFixture {
	t.Helper()
	f := &bridgeFixture{
		client:   NewMockMQTTClient(),
		recorder: &mockRecorder{},
		listener: &mockListener{},
	}

	var slots Slots
	for i := range f.slots {
		f.slots[i] = newFakeDevice(false)
		slots[i] = f.slots[i]
	}

	sink, err := NewMQTTSink(f.client, "test-bridge", 0)
	if err != nil {
		t.Fatalf("NewMQTTSink() error = %v", err)
	}
	agg, err := NewAggregator(AggregatorOptions{Slots: slots, Poller: &fakePoller{}, Sink: sink})
	if err != nil {
		t.Fatalf("NewAggregator() error = %v", err)
	}

	f.bridge, err = NewBridge(BridgeOptions{
		Config: BridgeConfig{
			ID:                "test-bridge",
			Version:           "test",
			TickInterval:      5 * time.Millisecond,
			HealthInterval:    time.Hour,
			PublishDescriptor: true,
		},
		Aggregator:  agg,
		MQTTClient:  f.client,
		Initializer: initializer,
		Recorder:    f.recorder,
		Listeners:   []FrameListener{f.listener},
	})
	if err != nil {
		t.Fatalf("NewBridge() error = %v", err)
	}
	return f
}

func TestNewBridge_Validation(t *testing.T) {
	agg, _, _ := newTestAggregator(t, Slots{})

	tests := []struct {
		name string
		opts BridgeOptions
	}{
		{"missing ID", BridgeOptions{Aggregator: agg, MQTTClient: NewMockMQTTClient()}},
		{"missing aggregator", BridgeOptions{Config: BridgeConfig{ID: "b"}, MQTTClient: NewMockMQTTClient()}},
		{"missing MQTT", BridgeOptions{Config: BridgeConfig{ID: "b"}, Aggregator: agg}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewBridge(tt.opts); err == nil {
				t.Error("NewBridge() should fail")
			}
		})
	}
}

func TestBridge_IdleTick(t *testing.T) {
	f := newBridgeFixture(t, nil)
	f.bridge.runTick()

	if f.bridge.LatestFrame() != nil {
		t.Error("LatestFrame() should be nil while nothing is connected")
	}
	if len(f.client.publishedTo(ButtonsTopic("test-bridge"))) != 0 {
		t.Error("idle tick should not publish buttons")
	}
	frames, events := f.listener.counts()
	if frames != 0 || events != 0 {
		t.Errorf("listener frames/events = %d/%d, want 0/0", frames, events)
	}
	if stats := f.bridge.TickStats(); stats.Ticks != 1 || stats.FramesSent != 0 {
		t.Errorf("TickStats() = %+v", stats)
	}
}

func TestBridge_TickPublishes(t *testing.T) {
	f := newBridgeFixture(t, nil)
	f.slots[1].setConnected(true)
	f.slots[1].setSample(RawSample{
		Buttons:             ButtonHome,
		AccelerometerActive: true,
		Extension:           Nunchuk{},
	})

	f.bridge.runTick()

	buttons := f.client.publishedTo(ButtonsTopic("test-bridge"))
	if len(buttons) != 1 {
		t.Fatalf("buttons messages = %d, want 1", len(buttons))
	}
	var msg ButtonsMessage
	if err := json.Unmarshal(buttons[0].Payload, &msg); err != nil {
		t.Fatal(err)
	}
	if msg.Values[ButtonIndex(1, OffsetHome)] != ButtonPressed {
		t.Error("slot 1 Home should be pressed")
	}

	for _, sensor := range []int{2, 3} {
		sends := f.client.publishedTo(TrackerTopic("test-bridge", sensor))
		if len(sends) != 1 || !sends[0].Retained {
			t.Errorf("tracker %d sends = %+v, want one retained", sensor, sends)
		}
	}

	frame := f.bridge.LatestFrame()
	if frame == nil || frame.Sequence != 1 {
		t.Fatalf("LatestFrame() = %+v", frame)
	}
	if f.bridge.ConnectedSlots() != 1 {
		t.Errorf("ConnectedSlots() = %d, want 1", f.bridge.ConnectedSlots())
	}
	if stats := f.bridge.TickStats(); stats.FramesSent != 1 || stats.TrackerSends != 2 {
		t.Errorf("TickStats() = %+v", stats)
	}
}

func TestBridge_SlotTransitions(t *testing.T) {
	f := newBridgeFixture(t, nil)
	dev := f.slots[0]

	dev.setConnected(true)
	dev.setSample(RawSample{})
	f.bridge.runTick()

	dev.setSample(RawSample{Extension: MotionPlusNunchuk{}})
	f.bridge.runTick()

	// Unchanged extension: no event.
	f.bridge.runTick()

	dev.setConnected(false)
	f.bridge.runTick()

	events := f.recorder.getEvents()
	want := []struct {
		kind SlotEventKind
		ext  string
	}{
		{SlotConnected, "none"},
		{SlotExtensionChanged, "motionplus_nunchuk"},
		{SlotDisconnected, "motionplus_nunchuk"},
	}
	if len(events) != len(want) {
		t.Fatalf("events = %+v, want %d", events, len(want))
	}
	for i, w := range want {
		if events[i].Kind != w.kind || events[i].Extension != w.ext || events[i].Slot != 0 {
			t.Errorf("event %d = %+v, want %s/%s", i, events[i], w.kind, w.ext)
		}
		if events[i].ID == "" {
			t.Errorf("event %d has no ID", i)
		}
	}

	_, listenerEvents := f.listener.counts()
	if listenerEvents != len(want) {
		t.Errorf("listener events = %d, want %d", listenerEvents, len(want))
	}
	if f.bridge.SlotStatuses()[0].Connected {
		t.Error("slot 0 should read disconnected")
	}
}

func TestBridge_StartStop(t *testing.T) {
	mi := newMockInitializer()
	f := newBridgeFixture(t, mi)
	f.slots[0].setConnected(true)
	f.slots[0].setSample(RawSample{})

	if err := f.bridge.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	deadline := time.Now().Add(time.Second)
	for f.bridge.LatestFrame() == nil && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if f.bridge.LatestFrame() == nil {
		t.Error("tick loop did not produce a frame")
	}
	if m := f.bridge.GetMetrics(); !m.Running || m.Ticks == 0 {
		t.Errorf("GetMetrics() = %+v", m)
	}

	f.bridge.Stop()
	f.bridge.Stop()

	if f.bridge.GetMetrics().Running {
		t.Error("bridge should not be running after Stop")
	}

	if len(f.client.publishedTo(DescriptorTopic("test-bridge"))) != 1 {
		t.Error("descriptor should be published once at start")
	}

	mi.mu.Lock()
	leds := mi.leds[2]
	mi.mu.Unlock()
	if leds != LED3 {
		t.Errorf("slot 2 LEDs = %#x, want LED3", leds)
	}

	health := f.client.publishedTo(HealthTopic("test-bridge"))
	if len(health) < 2 {
		t.Fatalf("health messages = %d, want starting through stopping", len(health))
	}
	if first := decodeHealth(t, health[0].Payload); first.Status != HealthStarting {
		t.Errorf("first health = %v, want starting", first.Status)
	}
	if last := decodeHealth(t, health[len(health)-1].Payload); last.Status != HealthStopping {
		t.Errorf("last health = %v, want stopping", last.Status)
	}
}
