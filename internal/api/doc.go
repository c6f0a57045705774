// Package api implements the HTTP REST API and WebSocket server for the
// wiimote bridge.
//
// This package provides:
//   - Read-only REST endpoints for the latest frame, slot status and descriptor
//   - Slot connection history backed by SQLite
//   - A WebSocket hub streaming frames, slot events and health
//   - Middleware stack (request ID, logging, recovery, CORS, body limit)
//
// # Architecture
//
// The server never drives the tick loop. It reads snapshots from the bridge
// and the hub is registered with the bridge as a frame and slot event
// listener, so clients see exactly what downstream MQTT consumers see.
//
// # Graceful Degradation
//
// MQTT, InfluxDB and the history database are optional. Their metrics are
// omitted when absent and slot history answers 503.
package api
