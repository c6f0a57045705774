package wiimote

import "context"

// Device is one controller handle owned by the aggregator for its lifetime.
type Device interface {
	// IsConnected reports the handle's current connection state.
	IsConnected() bool

	// Event returns the sample delivered by the most recent poll.
	// ok is false when no fresh event is ready this tick.
	Event() (sample RawSample, ok bool)
}

// Poller refreshes every device handle in a single call. It is the only
// blocking operation in a tick.
type Poller interface {
	Poll(ctx context.Context) error
}

// Slots is the fixed-capacity slot array. A nil entry is an empty slot.
type Slots [SlotCount]Device

// DeviceSlot is the state of one slot as derived for the current tick.
type DeviceSlot struct {
	Index               int           `json:"index"`
	Connected           bool          `json:"connected"`
	Ready               bool          `json:"ready"`
	AccelerometerActive bool          `json:"accelerometer_active"`
	IRActive            bool          `json:"ir_active"`
	ExtensionType       ExtensionType `json:"extension_type"`

	sample RawSample
}

// Sample returns the raw sample read for this tick. It is the zero sample
// unless Ready is true.
func (s DeviceSlot) Sample() RawSample {
	return s.sample
}

// ReadSlot derives the tick state of slot index from its device handle.
// Flags from a sample are only taken when the slot is connected and an
// event is ready; otherwise the slot reads as idle.
func ReadSlot(index int, dev Device) DeviceSlot {
	slot := DeviceSlot{Index: index}
	if dev == nil || !dev.IsConnected() {
		return slot
	}
	slot.Connected = true

	sample, ok := dev.Event()
	if !ok {
		return slot
	}
	if sample.Extension == nil {
		sample.Extension = NoExtension{}
	}

	slot.Ready = true
	slot.AccelerometerActive = sample.AccelerometerActive
	slot.IRActive = sample.IRActive
	slot.ExtensionType = sample.Extension.Type()
	slot.sample = sample
	return slot
}
