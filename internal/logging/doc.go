// Package logging provides structured logging for pqcoap.
//
// This package wraps a zap logger with convenience functions for the logging
// patterns used by the exchange controller and the transport layer.
//
// # Log Levels
//
//   - Debug: CoAP message dumps, poll iterations, handshake internals
//   - Info: Stage progress (connectivity, session, request sent)
//   - Warn: Retries, key-exchange fallback, rejected responses
//   - Error: Setup and transport failures
//
// # Configuration
//
// Logging is silent unless a level is given on the command line or through
// PQCOAP_LOG_LEVEL:
//
//	if err := logging.Initialize(logging.Options{Level: "debug"}); err != nil {
//	    return err
//	}
//	defer logging.Sync()
//
// Console output goes to stderr. An optional rotating JSON file sink is
// available through Options.File.
//
// # pion/dtls
//
// NewPionLoggerFactory adapts zap to pion's LoggerFactory so DTLS handshake
// logging shares the same sinks.
package logging
