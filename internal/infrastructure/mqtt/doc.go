// Package mqtt provides MQTT client connectivity for the wiimote bridge.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Message publishing with QoS validation
//   - Topic subscriptions with wildcard support, restored on reconnect
//   - Last Will and Testament (LWT) for offline detection
//   - Traffic counters for the metrics endpoint
//
// # Architecture
//
// The bridge publishes one buttons and one analog frame per tick plus a
// retained pose per tracker sensor. Controller samples arrive from a
// device-side publisher on wiimote/raw/{slot}.
//
//	device publisher → MQTT Broker → wiimote bridge → MQTT Broker → consumers
//
// # Security Considerations
//
//   - TLS is available via cfg.Broker.TLS (minimum TLS 1.2)
//   - Anonymous access is only for local development
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT,
//	    mqtt.WithWill(wiimote.HealthTopic(id), lwtPayload))
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.Publish("wiimote/wiimote-01/buttons", payload, 0, false)
package mqtt
