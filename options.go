package keel

import (
	"context"
	"log/slog"

	"github.com/dmitrymomot/keel/internal"
	"github.com/dmitrymomot/keel/pkg/config"
)

// App options

// WithName names the application. Names of endpoints inside a mounted
// application are prefixed with it: "admin:users".
func WithName(name string) Option {
	return internal.WithName(name)
}

// WithRoutes adds route nodes to the application tree.
//
// Example:
//
//	keel.New(
//	    keel.WithRoutes(
//	        keel.Get("/users/{id:int}", getUser, keel.Name("user")),
//	        keel.NewGroup("/admin", adminRoutes, keel.Permissions(isAdmin)),
//	        keel.NewMount("/billing", billingApp),
//	    ),
//	)
func WithRoutes(routes ...Route) Option {
	return internal.WithRoutes(routes...)
}

// WithHandlers registers handlers that declare routes.
// Each handler's Routes method is called when the application is built.
func WithHandlers(h ...Handler) Option {
	return internal.WithHandlers(h...)
}

// WithRouteOptions applies route options at the application level.
func WithRouteOptions(opts ...RouteOption) Option {
	return internal.WithRouteOptions(opts...)
}

// WithMiddleware adds application middleware. The first one is outermost.
// Unmatched requests pass through it too.
func WithMiddleware(mw ...Middleware) Option {
	return internal.WithMiddleware(mw...)
}

// WithPermissions adds application-wide permissions.
func WithPermissions(p ...Permission) Option {
	return internal.WithPermissions(p...)
}

// WithInterceptors adds application-wide interceptors.
func WithInterceptors(i ...Interceptor) Option {
	return internal.WithInterceptors(i...)
}

// WithBeforeRequest adds application-wide before-request hooks.
func WithBeforeRequest(h ...Hook) Option {
	return internal.WithBeforeRequest(h...)
}

// WithAfterRequest adds application-wide after-request hooks.
func WithAfterRequest(h ...Hook) Option {
	return internal.WithAfterRequest(h...)
}

// WithExceptionHandler registers an application-level exception handler for kind.
func WithExceptionHandler(kind ErrorKind, h ErrorHandler) Option {
	return internal.WithExceptionHandler(kind, h)
}

// WithDependency registers a provider visible to every endpoint.
func WithDependency(key string, p *Provider) Option {
	return internal.WithDependency(key, p)
}

// WithSecurityScheme registers a named security scheme for every endpoint.
func WithSecurityScheme(name string, s SecurityScheme) Option {
	return internal.WithSecurityScheme(name, s)
}

// WithErrorHandler sets the last handler consulted before the default error
// renderer. Returning nil marks the error as handled.
func WithErrorHandler(h ErrorHandler) Option {
	return internal.WithErrorHandler(h)
}

// WithHealthChecks enables health check endpoints with optional configuration.
// Liveness (/health/live): Always returns OK if process is running.
// Readiness (/health/ready): Runs all configured checks.
//
// Example:
//
//	keel.WithHealthChecks(
//	    keel.WithReadinessCheck("db", db.Ping),
//	)
func WithHealthChecks(opts ...HealthOption) Option {
	return internal.WithHealthChecks(opts...)
}

// WithLogger creates a logger with a component name and optional extractors.
// The component name is added to every log entry for easy filtering.
// Extractors pull values from context (e.g., request_id).
//
// Example:
//
//	keel.New(
//	    keel.WithLogger("api", middlewares.RequestIDExtractor()),
//	)
func WithLogger(component string, extractors ...ContextExtractor) Option {
	return internal.WithLogger(component, extractors...)
}

// WithCustomLogger sets a fully custom logger.
func WithCustomLogger(l *slog.Logger) Option {
	return internal.WithCustomLogger(l)
}

// WithEncoders registers encoders for custom parameter types.
func WithEncoders(enc ...Encoder) Option {
	return internal.WithEncoders(enc...)
}

// WithWorkerPool bounds the number of blocking handlers and providers
// running at once.
func WithWorkerPool(size int) Option {
	return internal.WithWorkerPool(size)
}

// WithDebug includes server error details in rendered responses.
func WithDebug(debug bool) Option {
	return internal.WithDebug(debug)
}

// WithMaxBodyBytes limits request bodies. Larger bodies fail with 413.
func WithMaxBodyBytes(n int64) Option {
	return internal.WithMaxBodyBytes(n)
}

// WithMaxMultipartMemory sets how much of a multipart body is kept in memory.
func WithMaxMultipartMemory(n int64) Option {
	return internal.WithMaxMultipartMemory(n)
}

// WithState seeds the application state.
func WithState(values map[string]any) Option {
	return internal.WithState(values)
}

// WithStartupHook registers a function run before the server listens.
func WithStartupHook(fn func(context.Context) error) Option {
	return internal.WithStartupHook(fn)
}

// WithShutdownHook registers a function run after the server drains.
func WithShutdownHook(fn func(context.Context) error) Option {
	return internal.WithShutdownHook(fn)
}

// WithSettings applies loaded settings.
//
// Example:
//
//	settings, err := config.Load("config.yaml")
//	if err != nil {
//	    return err
//	}
//	app := keel.New(keel.WithSettings(settings), keel.WithHandlers(h))
func WithSettings(s config.Settings, extractors ...ContextExtractor) Option {
	return internal.WithSettings(s, extractors...)
}

// WithRoles configures role-based permission checking.
//
// Example:
//
//	keel.New(
//	    keel.WithRoles(
//	        keel.RolePermissions{
//	            "admin":  {"users.read", "users.write"},
//	            "member": {"users.read"},
//	        },
//	        func(c keel.Context) string {
//	            return keel.ContextValue[string](c, roleKey{})
//	        },
//	    ),
//	)
func WithRoles(permissions RolePermissions, extractor RoleExtractorFunc) Option {
	return internal.WithRoles(permissions, extractor)
}
