package internal

import "net/http"

// Router is the interface handlers use to declare routes.
// It builds the same tree nodes as the explicit constructors.
type Router interface {
	// GET registers a handler for GET requests.
	GET(path string, h any, opts ...RouteOption)

	// POST registers a handler for POST requests.
	POST(path string, h any, opts ...RouteOption)

	// PUT registers a handler for PUT requests.
	PUT(path string, h any, opts ...RouteOption)

	// PATCH registers a handler for PATCH requests.
	PATCH(path string, h any, opts ...RouteOption)

	// DELETE registers a handler for DELETE requests.
	DELETE(path string, h any, opts ...RouteOption)

	// HEAD registers a handler for HEAD requests.
	HEAD(path string, h any, opts ...RouteOption)

	// OPTIONS registers a handler for OPTIONS requests.
	OPTIONS(path string, h any, opts ...RouteOption)

	// TRACE registers a handler for TRACE requests.
	TRACE(path string, h any, opts ...RouteOption)

	// Handle registers a handler for several methods at once.
	Handle(methods []string, path string, h any, opts ...RouteOption)

	// WebSocket registers a websocket endpoint.
	WebSocket(path string, h any, opts ...RouteOption)

	// Group creates an inline route group sharing options but no prefix.
	Group(fn func(r Router), opts ...RouteOption)

	// Route creates a route group with a pattern prefix.
	Route(prefix string, fn func(r Router), opts ...RouteOption)

	// Use appends middleware to the current group.
	Use(mw ...Middleware)

	// Mount attaches a child application under prefix.
	Mount(prefix string, app *App)
}

// routeBuilder collects nodes declared through the Router interface.
type routeBuilder struct {
	defaults *Endpoint
	routes   []Route
}

func newRouteBuilder() *routeBuilder {
	return &routeBuilder{defaults: &Endpoint{}}
}

func (b *routeBuilder) add(method, path string, h any, opts []RouteOption) {
	b.routes = append(b.routes, newMethodEndpoint(method, path, h, opts))
}

func (b *routeBuilder) GET(path string, h any, opts ...RouteOption) {
	b.add(http.MethodGet, path, h, opts)
}

func (b *routeBuilder) POST(path string, h any, opts ...RouteOption) {
	b.add(http.MethodPost, path, h, opts)
}

func (b *routeBuilder) PUT(path string, h any, opts ...RouteOption) {
	b.add(http.MethodPut, path, h, opts)
}

func (b *routeBuilder) PATCH(path string, h any, opts ...RouteOption) {
	b.add(http.MethodPatch, path, h, opts)
}

func (b *routeBuilder) DELETE(path string, h any, opts ...RouteOption) {
	b.add(http.MethodDelete, path, h, opts)
}

func (b *routeBuilder) HEAD(path string, h any, opts ...RouteOption) {
	b.add(http.MethodHead, path, h, opts)
}

func (b *routeBuilder) OPTIONS(path string, h any, opts ...RouteOption) {
	b.add(http.MethodOptions, path, h, opts)
}

func (b *routeBuilder) TRACE(path string, h any, opts ...RouteOption) {
	b.add(http.MethodTrace, path, h, opts)
}

func (b *routeBuilder) Handle(methods []string, path string, h any, opts ...RouteOption) {
	b.routes = append(b.routes, NewEndpoint(path, h, append([]RouteOption{Methods(methods...)}, opts...)...))
}

func (b *routeBuilder) WebSocket(path string, h any, opts ...RouteOption) {
	b.routes = append(b.routes, NewWebSocket(path, h, opts...))
}

func (b *routeBuilder) Group(fn func(Router), opts ...RouteOption) {
	b.Route("/", fn, opts...)
}

func (b *routeBuilder) Route(prefix string, fn func(Router), opts ...RouteOption) {
	child := newRouteBuilder()
	fn(child)
	b.routes = append(b.routes, child.group(prefix, opts))
}

func (b *routeBuilder) Use(mw ...Middleware) {
	Use(mw...)(b.defaults)
}

func (b *routeBuilder) Mount(prefix string, app *App) {
	b.routes = append(b.routes, NewMount(prefix, app))
}

// group turns the collected routes into a Group node.
func (b *routeBuilder) group(prefix string, opts []RouteOption) *Group {
	g := NewGroup(prefix, b.routes, opts...)
	g.defaults.policy.middlewares = append(g.defaults.policy.middlewares, b.defaults.policy.middlewares...)
	return g
}
