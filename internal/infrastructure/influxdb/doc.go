// Package influxdb provides InfluxDB connectivity for the wiimote bridge.
//
// It wraps the official influxdb-client-go v2 library for connection
// management, telemetry writing and health monitoring.
//
// # Purpose
//
// Sampled controller frames are stored as three measurements:
//   - tracker_pose: quaternion per tracker sensor (tags bridge_id, sensor)
//   - analog: IR position and joystick per slot (tags bridge_id, slot)
//   - buttons: pressed mask and count per slot (tags bridge_id, slot)
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.WriteTrackerPose("wiimote-01", 0, 0, 0, 0, 1, time.Now())
//
// # Thread Safety
//
// All methods are safe for concurrent use from multiple goroutines.
// The underlying write API uses non-blocking batched writes.
//
// # Error Handling
//
// Write operations are non-blocking and batch errors are delivered via the
// SetOnError callback. Connection and health check errors are returned directly.
package influxdb
