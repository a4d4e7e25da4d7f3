package internal

import (
	"time"

	"github.com/dmitrymomot/keel/pkg/health"
)

// Default health check paths.
const (
	defaultLivenessPath  = "/health/live"
	defaultReadinessPath = "/health/ready"
)

// healthConfig holds health check endpoint configuration.
type healthConfig struct {
	checks        health.Checks
	livenessPath  string
	readinessPath string
	timeout       time.Duration
}

// HealthOption configures health check endpoints.
type HealthOption func(*healthConfig)

// WithLivenessPath sets a custom liveness endpoint path.
// Defaults to "/health/live".
func WithLivenessPath(path string) HealthOption {
	return func(c *healthConfig) {
		if path != "" {
			c.livenessPath = path
		}
	}
}

// WithReadinessPath sets a custom readiness endpoint path.
// Defaults to "/health/ready".
func WithReadinessPath(path string) HealthOption {
	return func(c *healthConfig) {
		if path != "" {
			c.readinessPath = path
		}
	}
}

// WithReadinessTimeout bounds every readiness check.
func WithReadinessTimeout(d time.Duration) HealthOption {
	return func(c *healthConfig) {
		c.timeout = d
	}
}

// WithReadinessCheck adds a named readiness check.
// Checks run in parallel during readiness probe.
//
// Example:
//
//	keel.WithReadinessCheck("db", func(ctx context.Context) error {
//	    return pool.Ping(ctx)
//	})
func WithReadinessCheck(name string, fn health.CheckFunc) HealthOption {
	return func(c *healthConfig) {
		if c.checks == nil {
			c.checks = make(health.Checks)
		}
		c.checks[name] = fn
	}
}

// routes returns the probe endpoints. They are ordinary endpoints: the
// application middleware and exception handlers apply to them.
func (h *healthConfig) routes() []Route {
	live := func(c Context) error {
		health.Write(c.Response(), c.Request(), &health.Response{Status: health.StatusHealthy})
		return nil
	}
	ready := func(c Context) error {
		opts := []health.Option{health.WithLogger(c.Logger())}
		if h.timeout > 0 {
			opts = append(opts, health.WithTimeout(h.timeout))
		}
		health.Write(c.Response(), c.Request(), health.Run(c, h.checks, opts...))
		return nil
	}
	return []Route{
		Get(h.livenessPath, HandlerFunc(live), Name("health_live"), Tags("health"), ExcludeFromSchema()),
		Get(h.readinessPath, HandlerFunc(ready), Name("health_ready"), Tags("health"), ExcludeFromSchema()),
	}
}
