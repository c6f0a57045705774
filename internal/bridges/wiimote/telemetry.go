package wiimote

import (
	"sync/atomic"
	"time"
)

// analogFieldNames names the per-slot analog offsets in stored telemetry.
var analogFieldNames = [AnalogPerSlot]string{
	OffsetIRX:       "ir_x",
	OffsetIRY:       "ir_y",
	OffsetIRZ:       "ir_z",
	OffsetJoystickX: "joystick_x",
	OffsetJoystickY: "joystick_y",
}

// TelemetryWriter stores sampled frames. Implemented by influxdb.Client.
type TelemetryWriter interface {
	WriteTrackerPose(bridgeID string, sensor int, x, y, z, w float64, ts time.Time)
	WriteSlotAnalog(bridgeID string, slot int, values map[string]float64, ts time.Time)
	WriteButtonMask(bridgeID string, slot int, mask uint16, pressed int, ts time.Time)
	WriteFrameStats(bridgeID string, sequence uint64, connected, trackerSends int, ts time.Time)
}

// TelemetryRecorder is a FrameListener writing every Nth frame to a
// TelemetryWriter. Only connected slots are written, followed by one
// frame summary.
type TelemetryRecorder struct {
	writer   TelemetryWriter
	bridgeID string
	every    uint64
	frames   atomic.Uint64
}

// NewTelemetryRecorder creates a recorder sampling one frame in every.
// every below 1 records every frame.
func NewTelemetryRecorder(writer TelemetryWriter, bridgeID string, every int) *TelemetryRecorder {
	if every < 1 {
		every = 1
	}
	return &TelemetryRecorder{
		writer:   writer,
		bridgeID: bridgeID,
		every:    uint64(every),
	}
}

// OnFrame implements FrameListener.
func (r *TelemetryRecorder) OnFrame(frame *Frame) {
	if frame == nil {
		return
	}
	if (r.frames.Add(1)-1)%r.every != 0 {
		return
	}

	ts := frame.Timestamp
	connected := 0
	for slot := 0; slot < SlotCount; slot++ {
		if !frame.Slots[slot].Connected {
			continue
		}
		connected++

		var mask uint16
		pressed := 0
		for off := 0; off < ButtonsPerSlot; off++ {
			if frame.Buttons[ButtonIndex(slot, off)] == ButtonPressed {
				mask |= 1 << off
				pressed++
			}
		}
		r.writer.WriteButtonMask(r.bridgeID, slot, mask, pressed, ts)

		values := make(map[string]float64, AnalogPerSlot)
		for off, name := range analogFieldNames {
			values[name] = frame.Analog[AnalogIndex(slot, off)]
		}
		r.writer.WriteSlotAnalog(r.bridgeID, slot, values, ts)
	}

	for _, send := range frame.Trackers {
		q := send.Orientation
		r.writer.WriteTrackerPose(r.bridgeID, send.Sensor, q.X, q.Y, q.Z, q.W, ts)
	}

	r.writer.WriteFrameStats(r.bridgeID, frame.Sequence, connected, len(frame.Trackers), ts)
}
