// Package keel is a request-pipeline framework for HTTP services in Go.
//
// Applications are declared as a routing tree of endpoints, groups and
// mounted sub-applications. Handlers are plain functions whose input struct
// is bound from the request: path, query, headers, cookies, body, security
// credentials and dependencies. The tree is compiled once, when the
// application is built, so misconfiguration is reported before the first
// request is served.
//
// # Quick Start
//
//	type GetItem struct {
//	    ID    int    `path:"id"`
//	    Limit int    `query:"limit" default:"10" validate:"max:100"`
//	    Store *Store `dep:"store"`
//	}
//
//	func getItem(ctx context.Context, in GetItem) (Item, error) {
//	    return in.Store.Find(ctx, in.ID, in.Limit)
//	}
//
//	app := keel.New(
//	    keel.WithLogger("api", middlewares.RequestIDExtractor()),
//	    keel.WithMiddleware(middlewares.Recover(), middlewares.RequestID()),
//	    keel.WithDependency("store", keel.Value(store)),
//	    keel.WithRoutes(
//	        keel.Get("/items/{id:int}", getItem, keel.Name("item")),
//	    ),
//	)
//
//	if err := app.Run(keel.Address(":8080")); err != nil {
//	    log.Fatal(err)
//	}
//
// # Handlers
//
// Besides typed functions, handlers may implement the [Handler] interface to
// declare routes on a [Router]:
//
//	type ItemsHandler struct{}
//
//	func (h *ItemsHandler) Routes(r keel.Router) {
//	    r.GET("/items/{id:int}", getItem)
//	    r.Route("/admin", func(r keel.Router) {
//	        r.DELETE("/items/{id:int}", deleteItem)
//	    }, keel.Permissions(isAdmin))
//	}
//
// A raw [HandlerFunc] receives the [Context] and writes the response itself.
//
// # Pipeline
//
// For a matched request an endpoint runs middleware, security schemes,
// permissions, interceptors, before-request hooks, input binding, the
// handler and response encoding. After-request hooks always run.
// Errors are dispatched to exception handlers registered with [OnError]
// from the endpoint outwards, then to [WithErrorHandler], and finally
// rendered as a JSON error document.
//
// # Shutdown
//
// Run handles SIGINT/SIGTERM for graceful shutdown.
// Register cleanup functions with WithShutdownHook:
//
//	app := keel.New(
//	    keel.WithShutdownHook(func(ctx context.Context) error {
//	        return pool.Close()
//	    }),
//	)
package keel
