package influxdb

import (
	"strconv"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names written by the bridge.
const (
	MeasurementTrackerPose = "tracker_pose"
	MeasurementAnalog      = "analog"
	MeasurementButtons     = "buttons"
	MeasurementFrame       = "frame"
)

// WriteTrackerPose writes one tracker orientation as a quaternion.
//
// The write is non-blocking; data is batched and sent asynchronously.
//
// Example:
//
//	client.WriteTrackerPose("wiimote-01", 2, 0, 0, 0, 1, time.Now())
func (c *Client) WriteTrackerPose(bridgeID string, sensor int, x, y, z, w float64, ts time.Time) {
	c.writePoint(write.NewPoint(
		MeasurementTrackerPose,
		map[string]string{
			"bridge_id": bridgeID,
			"sensor":    strconv.Itoa(sensor),
		},
		map[string]interface{}{
			"x": x,
			"y": y,
			"z": z,
			"w": w,
		},
		ts,
	))
}

// WriteSlotAnalog writes the analog channels of one slot.
//
// Parameters:
//   - bridgeID: Bridge instance identifier
//   - slot: Controller slot (0-3)
//   - values: Field name to value (e.g. "ir_x", "joystick_y")
//   - ts: Frame timestamp
func (c *Client) WriteSlotAnalog(bridgeID string, slot int, values map[string]float64, ts time.Time) {
	if len(values) == 0 {
		return
	}

	fields := make(map[string]interface{}, len(values))
	for name, v := range values {
		fields[name] = v
	}

	c.writePoint(write.NewPoint(
		MeasurementAnalog,
		map[string]string{
			"bridge_id": bridgeID,
			"slot":      strconv.Itoa(slot),
		},
		fields,
		ts,
	))
}

// WriteButtonMask writes the pressed buttons of one slot as a bit mask,
// bit n being the button at offset n, plus the pressed count.
func (c *Client) WriteButtonMask(bridgeID string, slot int, mask uint16, pressed int, ts time.Time) {
	c.writePoint(write.NewPoint(
		MeasurementButtons,
		map[string]string{
			"bridge_id": bridgeID,
			"slot":      strconv.Itoa(slot),
		},
		map[string]interface{}{
			"mask":    int64(mask),
			"pressed": int64(pressed),
		},
		ts,
	))
}

// WriteFrameStats writes a summary of one sampled frame: its sequence
// number, the connected slot count and the number of tracker sends.
func (c *Client) WriteFrameStats(bridgeID string, sequence uint64, connected, trackerSends int, ts time.Time) {
	c.writePoint(write.NewPoint(
		MeasurementFrame,
		map[string]string{"bridge_id": bridgeID},
		map[string]interface{}{
			"sequence":      int64(sequence), // #nosec G115 -- tick counter, never near 2^63
			"connected":     int64(connected),
			"tracker_sends": int64(trackerSends),
		},
		ts,
	))
}

// writePoint hands a point to the batching writer. Dropped silently when
// disconnected.
func (c *Client) writePoint(point *write.Point) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(point)
	c.points.Add(1)
}
