package wiimote

import (
	"context"
	"time"
)

// Fixed channel geometry.
const (
	// SlotCount is the number of controller slots the bridge owns.
	SlotCount = 4

	// ButtonsPerSlot is the number of button channels per slot.
	ButtonsPerSlot = 13

	// AnalogPerSlot is the number of analog channels per slot.
	AnalogPerSlot = 5

	// TrackersPerSlot is the number of tracker sensors per slot.
	TrackersPerSlot = 2

	// ButtonChannelCount is the total size of the button channel.
	ButtonChannelCount = ButtonsPerSlot * SlotCount

	// AnalogChannelCount is the total size of the analog channel.
	AnalogChannelCount = AnalogPerSlot * SlotCount

	// TrackerChannelCount is the total number of tracker sensors.
	TrackerChannelCount = TrackersPerSlot * SlotCount
)

// Button offsets within a slot's 13-entry block.
const (
	OffsetA = iota
	OffsetB
	OffsetUp
	OffsetDown
	OffsetLeft
	OffsetRight
	OffsetOne
	OffsetTwo
	OffsetMinus
	OffsetPlus
	OffsetHome
	OffsetC
	OffsetZ
)

// Analog offsets within a slot's 5-entry block.
const (
	OffsetIRX = iota
	OffsetIRY
	OffsetIRZ
	OffsetJoystickX
	OffsetJoystickY
)

// ButtonState is the value of one button channel.
type ButtonState uint8

const (
	// ButtonNotPressed is the zero value, so a fresh array is all released.
	ButtonNotPressed ButtonState = 0
	// ButtonPressed marks a held button.
	ButtonPressed ButtonState = 1
)

// buttonState converts a bool into a ButtonState.
func buttonState(pressed bool) ButtonState {
	if pressed {
		return ButtonPressed
	}
	return ButtonNotPressed
}

// ButtonChannels is the full button channel for one tick.
type ButtonChannels [ButtonChannelCount]ButtonState

// AnalogChannels is the full analog channel for one tick.
type AnalogChannels [AnalogChannelCount]float64

// TrackerSend is one orientation update for a tracker sensor.
type TrackerSend struct {
	Sensor      int        `json:"sensor"`
	Orientation Quaternion `json:"orientation"`
}

// ButtonIndex returns the global button channel index for a slot offset.
func ButtonIndex(slot, offset int) int {
	return ButtonsPerSlot*slot + offset
}

// AnalogIndex returns the global analog channel index for a slot offset.
func AnalogIndex(slot, offset int) int {
	return AnalogPerSlot*slot + offset
}

// MainTracker returns the tracker sensor for a slot's controller.
func MainTracker(slot int) int {
	return TrackersPerSlot * slot
}

// ExtensionTracker returns the tracker sensor for a slot's extension.
func ExtensionTracker(slot int) int {
	return TrackersPerSlot*slot + 1
}

// Frame is everything one tick emitted downstream.
type Frame struct {
	Sequence  uint64                `json:"sequence"`
	Timestamp time.Time             `json:"timestamp"`
	Buttons   ButtonChannels        `json:"buttons"`
	Analog    AnalogChannels        `json:"analog"`
	Trackers  []TrackerSend         `json:"trackers"`
	Slots     [SlotCount]DeviceSlot `json:"slots"`
}

// Sink consumes the channels produced by each tick.
//
// For every tick with at least one connected slot the aggregator calls
// SetButtons and SetAnalog exactly once, then SendTracker once per active
// orientation source. Sensors without a send keep their last value.
// at is the frame timestamp and is the same for every call of one tick.
type Sink interface {
	SetButtons(ctx context.Context, at time.Time, buttons ButtonChannels) error
	SetAnalog(ctx context.Context, at time.Time, analog AnalogChannels) error
	SendTracker(ctx context.Context, at time.Time, send TrackerSend) error
}
