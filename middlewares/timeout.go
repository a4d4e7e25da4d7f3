package middlewares

import (
	"context"
	"errors"
	"time"

	"github.com/dmitrymomot/keel/internal"
)

// DefaultTimeout is the default request timeout.
const DefaultTimeout = 30 * time.Second

// TimeoutConfig configures the timeout middleware.
type TimeoutConfig struct {
	Timeout time.Duration
}

// TimeoutOption configures TimeoutConfig.
type TimeoutOption func(*TimeoutConfig)

// Timeout returns middleware that enforces a request timeout.
// The request context carries the deadline, so handlers and providers see it
// through their ctx argument. The pipeline checks the deadline before reading
// the body, before each provider, and around the handler; once it has passed
// a TimeoutError (503) is dispatched to the exception handlers.
//
// Note: The handler runs on the request goroutine and is never abandoned. A
// handler that ignores ctx.Done() delays the 503 until it returns.
func Timeout(timeout time.Duration, opts ...TimeoutOption) internal.Middleware {
	cfg := &TimeoutConfig{
		Timeout: timeout,
	}

	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	return func(next internal.HandlerFunc) internal.HandlerFunc {
		return func(c internal.Context) error {
			timeoutErr := &TimeoutError{Duration: cfg.Timeout}
			ctx, cancel := context.WithTimeoutCause(c.Context(), cfg.Timeout, timeoutErr)
			defer cancel()
			c.SetContext(ctx)

			err := next(c)
			if errors.Is(ctx.Err(), context.DeadlineExceeded) && !c.Written() {
				c.LogWarn("request timeout", "timeout", cfg.Timeout.String())
				return timeoutErr
			}
			return err
		}
	}
}
