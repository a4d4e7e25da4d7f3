// Package logger builds slog loggers with context extraction, log rotation and
// optional Sentry reporting.
//
// A Config selects level, format and destination. Records are written to
// stdout unless File is set, in which case the file is rotated by size:
//
//	log := logger.New(logger.Config{Level: "debug", Format: "text"})
//
//	log := logger.New(logger.Config{
//	    Level:     "info",
//	    File:      "/var/log/app.log",
//	    MaxSizeMB: 50,
//	})
//
// A ContextExtractor pulls a request-scoped attribute out of the context on
// every record; the request ID middleware ships one:
//
//	log := logger.New(cfg, middlewares.RequestIDExtractor())
//	log.InfoContext(ctx, "request processed", slog.Int("status", 200))
//	// {"level":"INFO","msg":"request processed","status":200,"request_id":"..."}
//
// NewWithSentry fans records out to Sentry as well. Errors become Sentry
// issues and warnings are kept as breadcrumbs. Without a DSN, or when the SDK
// fails to initialize, it falls back to the plain logger.
//
// NewNope returns a logger that discards everything and is the default for
// applications that do not configure one.
package logger
