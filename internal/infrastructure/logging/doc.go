// Package logging provides structured logging for the Bluesound bridge.
//
// It wraps log/slog so every entry carries the service and version fields,
// with JSON output for production and text output for development.
//
// Configuration:
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// Usage:
//
//	logger := logging.New(cfg.Logging, version)
//	logger.Component("poller").Info("speaker unreachable", "device_id", id)
//
// Never log MQTT passwords or InfluxDB tokens.
package logging
