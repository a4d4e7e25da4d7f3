package internal

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrymomot/keel/pkg/encoder"
	"github.com/dmitrymomot/keel/pkg/logger"
)

// Default server timeouts (hardcoded, opinionated).
const (
	defaultReadTimeout        = 15 * time.Second
	defaultWriteTimeout       = 30 * time.Second
	defaultIdleTimeout        = 120 * time.Second
	defaultReadHeaderTimeout  = 5 * time.Second
	defaultMaxHeaderBytes     = 1 << 20 // 1MB
	defaultShutdownTimeout    = 30 * time.Second
	defaultMaxMultipartMemory = 32 << 20
)

// roleConfig holds the role-based access configuration.
type roleConfig struct {
	permissions RolePermissions
	extractor   RoleExtractorFunc
}

// App orchestrates the application lifecycle. It owns the routing tree,
// the application-level policy and the shared runtime (logger, encoders,
// state, worker pool). App is immutable after it is built.
//
// Applications mounted into another application contribute their routes
// and policy; they run on the runtime of the root application.
type App struct {
	router             *chi.Mux
	defaults           *Endpoint
	errorHandler       ErrorHandler
	logger             *slog.Logger
	registry           *encoder.Registry
	state              *State
	pool               *workerPool
	healthConfig       *healthConfig
	names              map[string]*endpoint
	buildErr           error
	roles              roleConfig
	name               string
	address            string
	encoders           []encoder.Encoder
	routes             []Route
	handlers           []Handler
	endpoints          []*endpoint
	fallbacks          []*endpoint
	errs               []error
	startupHooks       []func(context.Context) error
	shutdownHooks      []func(context.Context) error
	shutdownTimeout    time.Duration
	maxBodyBytes       int64
	maxMultipartMemory int64
	poolSize           int
	buildOnce          sync.Once
	debug              bool
}

// Sub creates an application without building it. Use it for applications
// that are only mounted into another one.
func Sub(opts ...Option) *App {
	a := &App{
		defaults:           &Endpoint{},
		logger:             logger.NewNope(), // Default: noop logger (before options)
		state:              NewState(nil),
		shutdownTimeout:    defaultShutdownTimeout,
		maxMultipartMemory: defaultMaxMultipartMemory,
	}
	for _, opt := range opts {
		opt(a)
	}
	a.registry = encoder.New(a.encoders...)
	a.pool = newWorkerPool(a.poolSize)
	return a
}

// Build creates and compiles an application. Registration problems are
// returned joined; every one of them matches ErrImproperlyConfigured.
//
// Example:
//
//	app, err := keel.Build(
//	    keel.WithRoutes(
//	        keel.Get("/users/{id:int}", getUser),
//	    ),
//	)
func Build(opts ...Option) (*App, error) {
	a := Sub(opts...)
	if err := a.build(); err != nil {
		return nil, err
	}
	return a, nil
}

// New is Build that panics on registration errors.
//
// Example:
//
//	app := keel.New(
//	    keel.WithMiddleware(middlewares.Recover()),
//	    keel.WithHandlers(
//	        handlers.NewUsers(repo),
//	    ),
//	)
func New(opts ...Option) *App {
	a, err := Build(opts...)
	if err != nil {
		panic(err)
	}
	return a
}

func (a *App) build() error {
	a.buildOnce.Do(func() {
		a.buildErr = a.compile()
		if a.buildErr == nil {
			a.logger.Debug("application built",
				slog.String("app", a.name),
				slog.Int("endpoints", len(a.endpoints)),
			)
		}
	})
	return a.buildErr
}

// tree returns the top-level routes of a: explicit routes, routes declared
// by handlers, then health endpoints.
func (a *App) tree() []Route {
	routes := slices.Clone(a.routes)
	if len(a.handlers) > 0 {
		b := newRouteBuilder()
		for _, h := range a.handlers {
			h.Routes(b)
		}
		routes = append(routes, b.group("/", nil))
	}
	if a.healthConfig != nil {
		routes = append(routes, a.healthConfig.routes()...)
	}
	return routes
}

// ServeHTTP dispatches the request through the compiled router. An
// application created with Sub is built on first use.
func (a *App) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if err := a.build(); err != nil {
		a.logger.ErrorContext(r.Context(), "application is improperly configured", slog.String("error", err.Error()))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	a.router.ServeHTTP(w, r)
}

// URLPathFor builds the path of the endpoint registered under name.
// Names of mounted applications are namespaced: "admin:users".
func (a *App) URLPathFor(name string, params map[string]string) (string, error) {
	if err := a.build(); err != nil {
		return "", err
	}
	e, ok := a.names[name]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrRouteNotFound, name)
	}
	return e.tmpl.build(params)
}

// Logger returns the application logger.
func (a *App) Logger() *slog.Logger {
	return a.logger
}

// State returns the application-wide state container.
func (a *App) State() *State {
	return a.state
}

// Run starts the HTTP server and blocks until shutdown. Startup hooks run
// before the listener opens; shutdown hooks run after the server drains.
//
// Example:
//
//	app := keel.New(
//	    keel.WithHandlers(handlers.NewLandingHandler()),
//	)
//	err := app.Run(keel.Address(":8080"))
func (a *App) Run(opts ...RunOption) error {
	if err := a.build(); err != nil {
		return err
	}

	cfg := buildRunConfig(opts...)
	if cfg.address == "" {
		cfg.address = cmp.Or(a.address, ":8080")
	}
	if cfg.shutdownTimeout == 0 {
		cfg.shutdownTimeout = cmp.Or(a.shutdownTimeout, defaultShutdownTimeout)
	}
	cfg.startupHooks = slices.Concat(a.startupHooks, cfg.startupHooks)
	cfg.shutdownHooks = slices.Concat(a.shutdownHooks, cfg.shutdownHooks)
	return a.serve(cfg)
}
