// Package internal provides the core types and implementation for the Keel framework.
//
// This package is internal and should not be used directly. Import "github.com/dmitrymomot/keel"
// instead, which re-exports the public API.
//
// # Core Types
//
//   - App: owns the routing tree, application policy and the shared runtime
//   - Endpoint, Group, Mount: the nodes of the routing tree
//   - Context: request/response access, dependency resolution and RBAC
//   - Router: interface handlers use to declare routes
//   - Provider: a dependency registered under a key
//   - SecurityScheme: authenticates a request and yields credentials
//   - Permission, Interceptor, Hook, Middleware, ErrorHandler: per-level policy
//
// # Routing Tree
//
// Routes form a tree. Groups add a prefix and policy, mounts embed another
// application with its own policy:
//
//	app := internal.New(
//	    internal.WithMiddleware(logRequests),
//	    internal.WithRoutes(
//	        internal.Get("/items/{id:int}", getItem, internal.Name("item")),
//	        internal.NewGroup("/admin", []internal.Route{
//	            internal.Delete("/items/{id:int}", deleteItem),
//	        }, internal.Permissions(isAdmin)),
//	        internal.NewMount("/billing", billing),
//	    ),
//	)
//
// Path parameters take an optional type: {id:int}, {price:float}, {key:uuid},
// {rest:path} and {name:str}, the default. Values that do not match the type
// do not match the route.
//
// # Typed Handlers
//
// Besides raw HandlerFunc handlers, an endpoint accepts a function of the form
// func(ctx, In) (Out, error). Fields of In are bound from the request when the
// endpoint is compiled into a plan:
//
//	type GetItem struct {
//	    ID int    `path:"id"`
//	    Q  string `query:"q" default:"all"`
//	    DB *sql.DB `dep:"db"`
//	}
//
//	func getItem(ctx context.Context, in GetItem) (Item, error)
//
// Untagged fields are resolved by name: a path parameter first, then a
// reserved name (request, socket, headers, cookies, query, state, context,
// data or payload for the body), then a visible dependency, then the query
// string. Ambiguous declarations are rejected when the application is built.
//
// # Dependencies
//
// Providers are registered per tree level with Depends or WithDependency.
// Inner levels shadow outer ones. A provider may take its own input struct,
// bound like a handler's. Each key is evaluated at most once per request and
// cycles are reported when the application is built.
//
// # Request Pipeline
//
// For a matched request the endpoint runs, in order: middleware (outer
// first), security schemes listed by Secured, permissions, interceptors,
// before-request hooks, input binding, the handler and response encoding.
// After-request hooks run inner first, even when the request failed.
// Failures are dispatched to exception handlers from the endpoint outwards,
// then to the application error handler and finally rendered as JSON.
package internal
