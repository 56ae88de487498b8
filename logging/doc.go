// Package logging provides the minimal Logger interface used across a2amesh
// and adapters for the structured loggers found in practice.
//
//   - SlogAdapter / StructuredLogger wrap log/slog
//   - ZapAdapter wraps go.uber.org/zap
//   - ZerologAdapter wraps github.com/rs/zerolog
//   - NoOpLogger discards everything
//
// All adapters take a message plus alternating key/value pairs:
//
//	logger := logging.New(logging.Config{Backend: logging.BackendZap, Level: "debug"})
//	logger.Info("runner.run.start", "session_id", sid, "run_id", rid)
package logging
