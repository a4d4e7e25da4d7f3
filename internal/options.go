package internal

import (
	"context"
	"log/slog"

	"github.com/dmitrymomot/keel/pkg/config"
	"github.com/dmitrymomot/keel/pkg/encoder"
	"github.com/dmitrymomot/keel/pkg/logger"
)

// Option configures the application.
type Option func(*App)

// WithName names the application. Names of endpoints inside a mounted
// application are prefixed with it: "admin:users".
func WithName(name string) Option {
	return func(a *App) {
		a.name = name
	}
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
	return func(a *App) {
		a.routes = append(a.routes, routes...)
	}
}

// WithHandlers registers handlers that declare routes.
// Each handler's Routes method is called when the application is built.
func WithHandlers(h ...Handler) Option {
	return func(a *App) {
		a.handlers = append(a.handlers, h...)
	}
}

// WithRouteOptions applies route options at the application level. They
// become defaults for every endpoint.
func WithRouteOptions(opts ...RouteOption) Option {
	return func(a *App) {
		for _, opt := range opts {
			opt(a.defaults)
		}
	}
}

// WithMiddleware adds application middleware. The first one is outermost.
// Unmatched requests (404 and 405) pass through it too.
func WithMiddleware(mw ...Middleware) Option {
	return WithRouteOptions(Use(mw...))
}

// WithPermissions adds permission checks to every endpoint.
func WithPermissions(p ...Permission) Option {
	return WithRouteOptions(Permissions(p...))
}

// WithInterceptors adds interceptors to every endpoint.
func WithInterceptors(i ...Interceptor) Option {
	return WithRouteOptions(Interceptors(i...))
}

// WithBeforeRequest adds hooks run before every endpoint.
func WithBeforeRequest(h ...Hook) Option {
	return WithRouteOptions(BeforeRequest(h...))
}

// WithAfterRequest adds hooks run after every request, including failed ones.
func WithAfterRequest(h ...Hook) Option {
	return WithRouteOptions(AfterRequest(h...))
}

// WithExceptionHandler registers an application-level exception handler for
// kind. Route, group and mount levels are consulted first.
func WithExceptionHandler(kind ErrorKind, h ErrorHandler) Option {
	return WithRouteOptions(OnError(kind, h))
}

// WithDependency registers an application-wide dependency.
//
// Example:
//
//	keel.WithDependency("db", keel.Value(pool))
func WithDependency(key string, p *Provider) Option {
	return WithRouteOptions(Depends(key, p))
}

// WithSecurityScheme registers an application-wide security scheme.
func WithSecurityScheme(name string, s SecurityScheme) Option {
	return WithRouteOptions(Security(name, s))
}

// WithErrorHandler sets the last handler consulted before the default error
// renderer. Returning nil marks the error as handled.
//
// Example:
//
//	keel.WithErrorHandler(func(c keel.Context, err error) error {
//	    return c.JSON(keel.StatusOf(err), map[string]string{
//	        "error": err.Error(),
//	    })
//	})
func WithErrorHandler(h ErrorHandler) Option {
	return func(a *App) {
		a.errorHandler = h
	}
}

// WithHealthChecks enables health check endpoints with optional configuration.
// Liveness (/health/live): Always returns OK if process is running.
// Readiness (/health/ready): Runs all configured checks.
//
// Example:
//
//	keel.WithHealthChecks(
//	    keel.WithReadinessCheck("db", pingDB),
//	)
func WithHealthChecks(opts ...HealthOption) Option {
	return func(a *App) {
		cfg := &healthConfig{
			livenessPath:  defaultLivenessPath,
			readinessPath: defaultReadinessPath,
		}
		for _, opt := range opts {
			opt(cfg)
		}
		a.healthConfig = cfg
	}
}

// WithLogger creates a logger with a component name and optional extractors.
// The component name is added to every log entry for easy filtering.
// Extractors pull values from context (e.g., request_id, user_id).
//
// Example:
//
//	keel.New(
//	    keel.WithLogger("api", middlewares.RequestIDExtractor()),
//	)
func WithLogger(component string, extractors ...logger.ContextExtractor) Option {
	return func(a *App) {
		a.logger = logger.New(logger.Config{}, extractors...).With("component", component)
	}
}

// WithCustomLogger sets a fully custom logger.
// Use this when you need complete control over logging configuration.
func WithCustomLogger(l *slog.Logger) Option {
	return func(a *App) {
		if l != nil {
			a.logger = l
		}
	}
}

// WithEncoders registers custom encoders. They take precedence over the
// built-in ones for the types they recognize.
func WithEncoders(enc ...encoder.Encoder) Option {
	return func(a *App) {
		a.encoders = append(a.encoders, enc...)
	}
}

// WithWorkerPool bounds how many blocking handlers and providers run at
// once. Defaults to GOMAXPROCS*4.
func WithWorkerPool(size int) Option {
	return func(a *App) {
		a.poolSize = size
	}
}

// WithDebug includes error details in 500 responses.
func WithDebug(debug bool) Option {
	return func(a *App) {
		a.debug = debug
	}
}

// WithMaxBodyBytes limits request bodies. Larger bodies fail with 413.
// Zero disables the limit.
func WithMaxBodyBytes(n int64) Option {
	return func(a *App) {
		a.maxBodyBytes = n
	}
}

// WithMaxMultipartMemory sets how much of a multipart body is kept in
// memory; the rest is spooled to temporary files.
func WithMaxMultipartMemory(n int64) Option {
	return func(a *App) {
		if n > 0 {
			a.maxMultipartMemory = n
		}
	}
}

// WithState seeds the application state.
func WithState(values map[string]any) Option {
	return func(a *App) {
		for k, v := range values {
			a.state.Set(k, v)
		}
	}
}

// WithStartupHook registers a function run by Run before the server listens.
func WithStartupHook(fn func(context.Context) error) Option {
	return func(a *App) {
		if fn != nil {
			a.startupHooks = append(a.startupHooks, fn)
		}
	}
}

// WithShutdownHook registers a function run by Run after the server drains.
func WithShutdownHook(fn func(context.Context) error) Option {
	return func(a *App) {
		if fn != nil {
			a.shutdownHooks = append(a.shutdownHooks, fn)
		}
	}
}

// WithSettings applies loaded settings: server address, limits, worker pool,
// debug mode and a logger built from the log and Sentry sections.
//
// Example:
//
//	settings, err := config.Load("config.yaml")
//	if err != nil {
//	    return err
//	}
//	app := keel.New(keel.WithSettings(settings), keel.WithHandlers(h))
func WithSettings(s config.Settings, extractors ...logger.ContextExtractor) Option {
	return func(a *App) {
		s.SetDefaults()
		if err := s.Validate(); err != nil {
			a.errs = append(a.errs, configErr("settings", "", ErrImproperlyConfigured, "%v", err))
			return
		}
		a.address = s.Address
		a.shutdownTimeout = s.ShutdownTimeout
		a.maxBodyBytes = s.MaxBodyBytes
		a.maxMultipartMemory = s.MaxMultipartMemory
		a.poolSize = s.WorkerPoolSize
		a.debug = s.Debug
		a.logger = logger.NewWithSentry(s.Log, s.Sentry, extractors...)
	}
}

// WithRoles configures role-based permission checking.
// The permissions map defines which permissions each role grants.
// The extractor function determines the current user's role from the request context.
// Roles are extracted lazily (once per request) and cached.
//
// Example:
//
//	keel.New(
//	    keel.WithRoles(
//	        keel.RolePermissions{
//	            "admin":  {"users.read", "users.write", "billing.manage"},
//	            "member": {"users.read"},
//	        },
//	        func(c keel.Context) string {
//	            role, _ := c.Get(roleKey{}).(string)
//	            return role
//	        },
//	    ),
//	)
func WithRoles(permissions RolePermissions, extractor RoleExtractorFunc) Option {
	return func(a *App) {
		a.roles = roleConfig{permissions: permissions, extractor: extractor}
	}
}
