// Package logging provides structured logging for the wiimote bridge.
//
// It wraps log/slog with JSON or text output, level filtering and the
// default fields service=wiimote-bridge and version on every entry.
//
// Logging is configured via the logging section of config.yaml:
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// Usage:
//
//	logger := logging.New(cfg.Logging, version)
//	logger.Component("bridge").Info("bridge started", "bridge_id", id)
//
// Never log broker passwords or the InfluxDB token.
package logging
