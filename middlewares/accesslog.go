package middlewares

import (
	"log/slog"
	"time"

	"github.com/dmitrymomot/keel/internal"
)

// AccessLogConfig configures the access log middleware.
type AccessLogConfig struct {
	Logger *slog.Logger                  // Defaults to the request logger
	Skip   func(c internal.Context) bool // Skips logging when it returns true
}

// AccessLogOption configures AccessLogConfig.
type AccessLogOption func(*AccessLogConfig)

// WithAccessLogger logs to l instead of the request logger.
func WithAccessLogger(l *slog.Logger) AccessLogOption {
	return func(cfg *AccessLogConfig) {
		cfg.Logger = l
	}
}

// WithAccessLogSkip skips requests for which fn returns true, e.g. probes.
func WithAccessLogSkip(fn func(c internal.Context) bool) AccessLogOption {
	return func(cfg *AccessLogConfig) {
		cfg.Skip = fn
	}
}

// AccessLog returns middleware that logs one entry per request with the
// method, route pattern, status, size and duration. Errors are rendered
// after middleware returns, so their status is taken from the error.
// Server errors log at error level, client errors at warn level.
func AccessLog(opts ...AccessLogOption) internal.Middleware {
	cfg := &AccessLogConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	return func(next internal.HandlerFunc) internal.HandlerFunc {
		return func(c internal.Context) error {
			if cfg.Skip != nil && cfg.Skip(c) {
				return next(c)
			}

			start := time.Now()
			err := next(c)

			rw := c.ResponseWriter()
			status := rw.Status()
			if err != nil && !rw.Written() {
				status = internal.StatusOf(err)
			}

			log := cfg.Logger
			if log == nil {
				log = c.Logger()
			}

			attrs := []slog.Attr{
				slog.String("method", c.Request().Method),
				slog.String("path", c.Request().URL.Path),
				slog.Int("status", status),
				slog.Int64("size", rw.Size()),
				slog.Duration("duration", time.Since(start)),
			}
			if pattern := c.RoutePattern(); pattern != "" {
				attrs = append(attrs, slog.String("route", pattern))
			}
			if err != nil {
				attrs = append(attrs, slog.String("error", err.Error()))
			}

			level := slog.LevelInfo
			switch {
			case status >= 500:
				level = slog.LevelError
			case status >= 400:
				level = slog.LevelWarn
			}
			log.LogAttrs(c, level, "request", attrs...)
			return err
		}
	}
}
