package wiimote

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Tick outcomes recorded on the ticks counter.
const (
	outcomeIdle    = "idle"
	outcomeEmitted = "emitted"
	outcomeFailed  = "failed"
)

// AggregatorOptions holds the collaborators of an Aggregator.
type AggregatorOptions struct {
	// Slots is the fixed slot array. Entries may be nil.
	Slots Slots

	// Poller refreshes every slot before the slots are read.
	Poller Poller

	// Sink receives the channels of each tick.
	Sink Sink

	// Now is the clock used to timestamp frames. Defaults to time.Now.
	Now func() time.Time

	// Meter records tick instruments. Defaults to the global meter.
	Meter metric.Meter
}

// Aggregator runs the per-tick read, map and emit pass over the four slots.
//
// Thread Safety: Tick must be called from one goroutine at a time.
// Connections and LastSequence are safe to call concurrently.
type Aggregator struct {
	slots  Slots
	poller Poller
	sink   Sink
	now    func() time.Time

	sequence  atomic.Uint64
	connected atomic.Int64

	// OTEL metrics
	ticks        metric.Int64Counter
	trackerSends metric.Int64Counter
	emitErrors   metric.Int64Counter
	slotsGauge   metric.Int64ObservableGauge
}

// NewAggregator creates an aggregator over the injected slot array.
// Without opts.Meter the global OTel meter is used (no-op if not configured).
func NewAggregator(opts AggregatorOptions) (*Aggregator, error) {
	if opts.Poller == nil {
		return nil, fmt.Errorf("poller is required")
	}
	if opts.Sink == nil {
		return nil, fmt.Errorf("sink is required")
	}

	a := &Aggregator{
		slots:  opts.Slots,
		poller: opts.Poller,
		sink:   opts.Sink,
		now:    opts.Now,
	}
	if a.now == nil {
		a.now = time.Now
	}

	m := opts.Meter
	if m == nil {
		m = meter()
	}
	var err error

	a.ticks, err = m.Int64Counter(
		"wiimote.ticks",
		metric.WithDescription("Total aggregation passes by outcome"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating ticks counter: %w", err)
	}

	a.trackerSends, err = m.Int64Counter(
		"wiimote.tracker.sends",
		metric.WithDescription("Total tracker orientation sends"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating tracker sends counter: %w", err)
	}

	a.emitErrors, err = m.Int64Counter(
		"wiimote.emit.errors",
		metric.WithDescription("Total channel updates rejected by the sink"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating emit errors counter: %w", err)
	}

	a.slotsGauge, err = m.Int64ObservableGauge(
		"wiimote.slots.connected",
		metric.WithDescription("Controllers connected at the last tick"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating connected slots gauge: %w", err)
	}

	_, err = m.RegisterCallback(
		func(_ context.Context, o metric.Observer) error {
			o.ObserveInt64(a.slotsGauge, a.connected.Load())
			return nil
		},
		a.slotsGauge,
	)
	if err != nil {
		return nil, fmt.Errorf("registering connected slots callback: %w", err)
	}

	return a, nil
}

// Connections returns the live connection state of every slot.
func (a *Aggregator) Connections() [SlotCount]bool {
	var out [SlotCount]bool
	for i, dev := range a.slots {
		out[i] = dev != nil && dev.IsConnected()
	}
	return out
}

// LastSequence returns the sequence number of the last emitted frame.
func (a *Aggregator) LastSequence() uint64 {
	return a.sequence.Load()
}

// Tick performs one aggregation pass.
//
// When no slot is connected it does nothing and returns (nil, nil). Otherwise
// it polls once, reads and maps all four slots, then emits one button array,
// one analog array and one tracker send per active orientation source. The
// returned frame describes exactly what was emitted.
//
// A poll may itself disconnect slots (a source dropping stale controllers).
// If none is connected afterwards the tick is idle and nothing is emitted.
func (a *Aggregator) Tick(ctx context.Context) (*Frame, error) {
	count := 0
	for _, c := range a.Connections() {
		if c {
			count++
		}
	}
	a.connected.Store(int64(count))

	if count == 0 {
		a.recordTick(ctx, outcomeIdle)
		return nil, nil
	}

	if err := a.poller.Poll(ctx); err != nil {
		a.recordTick(ctx, outcomeFailed)
		return nil, fmt.Errorf("%w: %w", ErrPollFailed, err)
	}

	frame := &Frame{
		Sequence:  a.sequence.Load() + 1,
		Timestamp: a.now().UTC(),
		Trackers:  make([]TrackerSend, 0, TrackerChannelCount),
	}

	count = 0
	for i, dev := range a.slots {
		slot := ReadSlot(i, dev)
		frame.Slots[i] = slot
		if slot.Connected {
			count++
		}
	}
	a.connected.Store(int64(count))

	if count == 0 {
		a.recordTick(ctx, outcomeIdle)
		return nil, nil
	}

	for _, slot := range frame.Slots {
		frame.Trackers = append(frame.Trackers, MapSlot(slot, &frame.Buttons, &frame.Analog)...)
	}

	err := a.emit(ctx, frame)
	a.sequence.Store(frame.Sequence)

	if err != nil {
		a.recordTick(ctx, outcomeFailed)
		return frame, err
	}
	a.recordTick(ctx, outcomeEmitted)
	return frame, nil
}

// emit hands the frame's channels to the sink. Every update is attempted
// even if an earlier one fails.
func (a *Aggregator) emit(ctx context.Context, frame *Frame) error {
	var errs []error

	if err := a.sink.SetButtons(ctx, frame.Timestamp, frame.Buttons); err != nil {
		errs = append(errs, fmt.Errorf("buttons: %w", err))
	}
	if err := a.sink.SetAnalog(ctx, frame.Timestamp, frame.Analog); err != nil {
		errs = append(errs, fmt.Errorf("analog: %w", err))
	}
	for _, send := range frame.Trackers {
		if err := a.sink.SendTracker(ctx, frame.Timestamp, send); err != nil {
			errs = append(errs, fmt.Errorf("tracker %d: %w", send.Sensor, err))
		}
	}
	a.trackerSends.Add(ctx, int64(len(frame.Trackers)))

	if len(errs) == 0 {
		return nil
	}
	a.emitErrors.Add(ctx, int64(len(errs)))
	return fmt.Errorf("%w: %w", ErrEmitFailed, errors.Join(errs...))
}

func (a *Aggregator) recordTick(ctx context.Context, outcome string) {
	a.ticks.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}
