// Package wiimote implements the four-slot motion controller bridge.
//
// Each tick the bridge reads the latest raw sample of every controller slot,
// normalises it into three fixed-layout channels and hands them downstream:
//
//	┌──────────────┐  poll   ┌──────────────┐  buttons/analog/tracker  ┌──────────┐
//	│ Raw source   │◄───────►│  Aggregator  │─────────────────────────►│   Sink   │
//	│ (mqtt / sim) │         │ (this pkg)   │                          │  (MQTT)  │
//	└──────────────┘         └──────────────┘                          └──────────┘
//
// # Channel Layout
//
// The slot count is fixed at four. For slot i (0-indexed):
//
//   - Buttons (52): 13i+0..10 are A, B, Up, Down, Left, Right, One, Two,
//     Minus, Plus, Home; 13i+11..12 are the extension C and Z buttons.
//   - Analog (20): 5i+0..2 are IR x, y, z; 5i+3..4 are the extension
//     joystick x and y.
//   - Tracker (8): sensor 2i is the controller orientation, sensor 2i+1 the
//     extension orientation.
//
// Slots that are disconnected, or that produced no fresh sample this tick,
// always report not-pressed buttons and zero analog values.
//
// # Orientation
//
// Orientation arrives as roll, pitch and yaw in degrees and is converted with
// QuaternionFromEuler. The axis mapping is fixed; downstream consumers depend
// on it, so it must not be replaced with a textbook aerospace conversion.
//
// # Thread Safety
//
// Aggregator.Tick must not be called concurrently; Bridge drives it from a
// single goroutine. Bridge, HealthReporter and the sources are safe for
// concurrent use.
package wiimote
