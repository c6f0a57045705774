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

// Bridge operation constants.
const (
	// defaultTickInterval is used when no tick interval is configured.
	defaultTickInterval = 10 * time.Millisecond

	// recordTimeout bounds a single history write.
	recordTimeout = 2 * time.Second
)

// Logger is the structured logging interface used by the bridge.
// *logging.Logger satisfies it.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// MQTTClient is the interface for MQTT operations.
// This allows mocking in tests and flexibility in implementation.
type MQTTClient interface {
	// Publish sends a message to a topic.
	Publish(topic string, payload []byte, qos byte, retained bool) error

	// Subscribe registers a handler for a topic pattern.
	Subscribe(topic string, qos byte, handler func(topic string, payload []byte)) error

	// Unsubscribe removes a subscription made with Subscribe.
	Unsubscribe(topic string) error

	// IsConnected returns true if connected to the broker.
	IsConnected() bool
}

// EventRecorder persists slot transitions. Optional.
type EventRecorder interface {
	Record(ctx context.Context, event SlotEvent) error
}

// FrameListener receives every emitted frame. OnFrame runs on the tick
// goroutine and must not block; the frame must not be modified.
type FrameListener interface {
	OnFrame(frame *Frame)
}

// SlotEventListener is implemented by listeners that also want slot
// transitions.
type SlotEventListener interface {
	OnSlotEvent(event SlotEvent)
}

// BridgeConfig holds the bridge's runtime settings.
type BridgeConfig struct {
	// ID names the bridge in topics and health messages.
	ID string

	// Version is reported in health messages.
	Version string

	// TickInterval is the aggregation period. Default: 10ms.
	TickInterval time.Duration

	// HealthInterval is the health publish period. Default: 30s.
	HealthInterval time.Duration

	// PublishDescriptor publishes the device descriptor at start.
	PublishDescriptor bool
}

// BridgeOptions holds configuration for creating a bridge.
type BridgeOptions struct {
	Config BridgeConfig

	// Aggregator performs each tick.
	Aggregator *Aggregator

	// MQTTClient publishes health and the descriptor.
	MQTTClient MQTTClient

	// Initializer configures controllers at start. Optional.
	Initializer Initializer

	// Recorder persists slot transitions. Optional.
	Recorder EventRecorder

	// Listeners receive frames, and slot events if they implement
	// SlotEventListener.
	Listeners []FrameListener

	// Logger is optional structured logger.
	Logger Logger
}

// Bridge drives the aggregator on a fixed tick and publishes around it:
//   - caches the latest frame and per-slot state
//   - records connection and extension transitions
//   - fans frames out to listeners
//   - reports health over MQTT
//
// Thread Safety: All exported methods are safe for concurrent use.
type Bridge struct {
	cfg         BridgeConfig
	agg         *Aggregator
	mqtt        MQTTClient
	initializer Initializer
	recorder    EventRecorder
	listeners   []FrameListener
	health      *HealthReporter

	// Latest tick state
	stateMu   sync.RWMutex
	latest    *Frame
	slots     [SlotCount]DeviceSlot
	lastTick  time.Time
	extension [SlotCount]ExtensionType

	// Counters
	ticks        atomic.Uint64
	framesSent   atomic.Uint64
	trackerSends atomic.Uint64
	errors       atomic.Uint64
	running      atomic.Bool

	// Shutdown coordination
	done      chan struct{}
	wg        sync.WaitGroup
	stopOnce  sync.Once
	ctx       context.Context
	ctxCancel context.CancelFunc

	// Logger
	logger   Logger
	loggerMu sync.RWMutex
}

// NewBridge creates a new bridge instance.
// Call Start() to begin operation.
func NewBridge(opts BridgeOptions) (*Bridge, error) {
	if opts.Config.ID == "" {
		return nil, fmt.Errorf("bridge ID is required")
	}
	if opts.Aggregator == nil {
		return nil, fmt.Errorf("aggregator is required")
	}
	if opts.MQTTClient == nil {
		return nil, fmt.Errorf("MQTT client is required")
	}

	cfg := opts.Config
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = defaultTickInterval
	}

	ctx, ctxCancel := context.WithCancel(context.Background())

	b := &Bridge{
		cfg:         cfg,
		agg:         opts.Aggregator,
		mqtt:        opts.MQTTClient,
		initializer: opts.Initializer,
		recorder:    opts.Recorder,
		listeners:   opts.Listeners,
		done:        make(chan struct{}),
		ctx:         ctx,
		ctxCancel:   ctxCancel,
		logger:      opts.Logger,
	}
	for i := range b.slots {
		b.slots[i].Index = i
	}

	b.health = NewHealthReporter(HealthReporterConfig{
		BridgeID:  cfg.ID,
		Version:   cfg.Version,
		Interval:  cfg.HealthInterval,
		Publisher: opts.MQTTClient,
		Stats:     b,
	})
	if opts.Logger != nil {
		b.health.SetLogger(opts.Logger)
	}

	return b, nil
}

// Start configures the controllers, publishes the descriptor and starts
// the tick loop and health reporting.
func (b *Bridge) Start(ctx context.Context) error {
	if err := b.health.PublishStarting(); err != nil {
		b.logError("failed to publish starting status", err)
	}

	if b.initializer != nil {
		if err := InitializeSlots(ctx, b.initializer); err != nil {
			b.logError("controller setup incomplete", err)
		}
	}

	if b.cfg.PublishDescriptor {
		if err := b.publishDescriptor(); err != nil {
			b.logError("failed to publish descriptor", err)
		}
	}

	b.running.Store(true)
	b.wg.Add(1)
	go b.tickLoop(ctx)

	b.health.Start(ctx)
	if err := b.health.PublishNow(); err != nil {
		b.logError("failed to publish health status", err)
	}

	b.logInfo("bridge started",
		"bridge_id", b.cfg.ID,
		"tick_interval", b.cfg.TickInterval.String())
	return nil
}

// Stop gracefully shuts down the bridge. Safe to call multiple times.
func (b *Bridge) Stop() {
	b.stopOnce.Do(func() {
		close(b.done)
		b.ctxCancel()
		b.wg.Wait()
		b.running.Store(false)

		// Publishes "stopping" status
		b.health.Stop()

		b.logInfo("bridge stopped")
	})
}

// LatestFrame returns the most recently emitted frame, or nil before the
// first emit. The frame must not be modified.
func (b *Bridge) LatestFrame() *Frame {
	b.stateMu.RLock()
	defer b.stateMu.RUnlock()
	return b.latest
}

// SlotStatuses returns the per-slot state observed at the last tick.
func (b *Bridge) SlotStatuses() [SlotCount]DeviceSlot {
	b.stateMu.RLock()
	defer b.stateMu.RUnlock()
	return b.slots
}

// ConnectedSlots implements StatsProvider.
func (b *Bridge) ConnectedSlots() int {
	b.stateMu.RLock()
	defer b.stateMu.RUnlock()
	n := 0
	for _, s := range b.slots {
		if s.Connected {
			n++
		}
	}
	return n
}

// TickStats implements StatsProvider.
func (b *Bridge) TickStats() TickStats {
	return TickStats{
		Ticks:        b.ticks.Load(),
		FramesSent:   b.framesSent.Load(),
		TrackerSends: b.trackerSends.Load(),
		Errors:       b.errors.Load(),
	}
}

// HealthStatus returns the status the next health message will carry.
func (b *Bridge) HealthStatus() (HealthStatus, string) {
	if !b.running.Load() {
		return HealthStopping, "bridge not running"
	}
	return b.health.Status()
}

// tickLoop runs one aggregation pass per tick until stopped.
func (b *Bridge) tickLoop(ctx context.Context) {
	defer b.wg.Done()

	ticker := time.NewTicker(b.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-b.done:
			return
		case <-ticker.C:
			b.runTick()
		}
	}
}

// runTick performs one pass and updates cached state.
func (b *Bridge) runTick() {
	frame, err := b.agg.Tick(b.ctx)
	b.ticks.Add(1)

	if err != nil {
		b.errors.Add(1)
		b.logError("tick failed", err)
		if frame == nil {
			// Poll failed: slot state is unknown, keep the previous view.
			return
		}
	}

	var slots [SlotCount]DeviceSlot
	if frame != nil {
		slots = frame.Slots
	} else {
		for i := range slots {
			slots[i].Index = i
		}
	}

	events := b.updateState(frame, slots)
	for _, ev := range events {
		b.dispatchEvent(ev)
	}

	if frame == nil {
		return
	}
	b.framesSent.Add(1)
	b.trackerSends.Add(uint64(len(frame.Trackers)))
	for _, l := range b.listeners {
		l.OnFrame(frame)
	}
}

// updateState stores the tick's slot view and returns the transitions
// relative to the previous tick.
func (b *Bridge) updateState(frame *Frame, slots [SlotCount]DeviceSlot) []SlotEvent {
	now := time.Now().UTC()

	b.stateMu.Lock()
	defer b.stateMu.Unlock()

	var events []SlotEvent
	for i, cur := range slots {
		prev := b.slots[i]
		switch {
		case cur.Connected && !prev.Connected:
			if cur.Ready {
				b.extension[i] = cur.ExtensionType
			} else {
				b.extension[i] = ExtensionNone
			}
			events = append(events, newSlotEvent(i, SlotConnected, b.extension[i], now))
		case !cur.Connected && prev.Connected:
			events = append(events, newSlotEvent(i, SlotDisconnected, b.extension[i], now))
			b.extension[i] = ExtensionNone
		case cur.Connected && cur.Ready && cur.ExtensionType != b.extension[i]:
			b.extension[i] = cur.ExtensionType
			events = append(events, newSlotEvent(i, SlotExtensionChanged, cur.ExtensionType, now))
		}
	}

	b.slots = slots
	b.lastTick = now
	if frame != nil {
		b.latest = frame
	}
	return events
}

func newSlotEvent(slot int, kind SlotEventKind, ext ExtensionType, at time.Time) SlotEvent {
	return SlotEvent{
		ID:        uuid.NewString(),
		Slot:      slot,
		Kind:      kind,
		Extension: ext.String(),
		Timestamp: at,
	}
}

// dispatchEvent logs, records and forwards one slot transition.
func (b *Bridge) dispatchEvent(ev SlotEvent) {
	b.logInfo("slot transition",
		"slot", ev.Slot,
		"kind", string(ev.Kind),
		"extension", ev.Extension)

	if b.recorder != nil {
		ctx, cancel := context.WithTimeout(b.ctx, recordTimeout)
		if err := b.recorder.Record(ctx, ev); err != nil {
			b.logError("failed to record slot event", err)
		}
		cancel()
	}

	for _, l := range b.listeners {
		if el, ok := l.(SlotEventListener); ok {
			el.OnSlotEvent(ev)
		}
	}
}

// publishDescriptor publishes the device descriptor (QoS 1, retained).
func (b *Bridge) publishDescriptor() error {
	payload, err := json.Marshal(BuildDescriptor())
	if err != nil {
		return fmt.Errorf("marshal descriptor: %w", err)
	}
	return b.mqtt.Publish(DescriptorTopic(b.cfg.ID), payload, 1, true)
}

// SetLogger sets the logger for the bridge.
func (b *Bridge) SetLogger(logger Logger) {
	b.loggerMu.Lock()
	b.logger = logger
	b.loggerMu.Unlock()

	if b.health != nil {
		b.health.SetLogger(logger)
	}
}

// logInfo logs an info message if logger is set.
func (b *Bridge) logInfo(msg string, keysAndValues ...any) {
	b.loggerMu.RLock()
	logger := b.logger
	b.loggerMu.RUnlock()

	if logger != nil {
		logger.Info(msg, keysAndValues...)
	}
}

// logError logs an error message if logger is set.
func (b *Bridge) logError(msg string, err error) {
	b.loggerMu.RLock()
	logger := b.logger
	b.loggerMu.RUnlock()

	if logger != nil {
		logger.Error(msg, "error", err)
	}
}

// BridgeMetrics contains metrics data for the API metrics endpoint.
type BridgeMetrics struct {
	Running        bool
	Status         string
	SlotsConnected int
	Ticks          uint64
	FramesSent     uint64
	TrackerSends   uint64
	Errors         uint64
	LastSequence   uint64
	LastTick       time.Time
}

// GetMetrics returns current bridge metrics for the API metrics endpoint.
func (b *Bridge) GetMetrics() BridgeMetrics {
	status, _ := b.HealthStatus()
	stats := b.TickStats()

	b.stateMu.RLock()
	lastTick := b.lastTick
	b.stateMu.RUnlock()

	return BridgeMetrics{
		Running:        b.running.Load(),
		Status:         string(status),
		SlotsConnected: b.ConnectedSlots(),
		Ticks:          stats.Ticks,
		FramesSent:     stats.FramesSent,
		TrackerSends:   stats.TrackerSends,
		Errors:         stats.Errors,
		LastSequence:   b.agg.LastSequence(),
		LastTick:       lastTick,
	}
}
