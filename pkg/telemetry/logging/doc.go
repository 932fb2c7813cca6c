// Package logging provides structured logging for the governance service.
//
// # Overview
//
// The logging package wraps Go's standard log/slog package to provide:
//   - Structured logging with JSON and text formats
//   - Context-aware logging with request IDs and tenant metadata
//   - Configurable log levels (debug, info, warn, error)
//
// # Usage
//
//	// Create a logger
//	logger, err := logging.New(logging.Config{
//	    Level:  "info",
//	    Format: "json",
//	})
//
//	// Log structured data
//	logger.Info("request governed",
//	    "request_id", "req-123",
//	    "status", 200,
//	    "duration_ms", 12,
//	)
//
//	// Create context-aware logger
//	ctx := logging.WithRequestID(ctx, "req-123")
//	ctxLogger := logger.WithContext(ctx)
//	ctxLogger.Info("processing")  // Includes request_id automatically
package logging
