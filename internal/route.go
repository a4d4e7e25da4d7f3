package internal

import (
	"fmt"
	"net/http"
	"slices"
	"strings"

	"github.com/coder/websocket"
)

// Route is a node of the routing tree: *Endpoint, *Group or *Mount.
type Route interface {
	route()
}

var allMethods = []string{
	http.MethodGet,
	http.MethodHead,
	http.MethodPost,
	http.MethodPut,
	http.MethodPatch,
	http.MethodDelete,
	http.MethodOptions,
	http.MethodTrace,
}

// policy is what one tree level contributes to the endpoints below it.
type policy struct {
	exceptions   map[ErrorKind]ErrorHandler
	deps         map[string]*Provider
	schemes      map[string]SecurityScheme
	middlewares  []Middleware
	permissions  []Permission
	interceptors []Interceptor
	before       []Hook
	after        []Hook
	secured      []string
}

func (p *policy) setException(kind ErrorKind, h ErrorHandler) {
	if p.exceptions == nil {
		p.exceptions = make(map[ErrorKind]ErrorHandler)
	}
	p.exceptions[kind] = h
}

func (p *policy) setDependency(key string, prov *Provider) {
	if p.deps == nil {
		p.deps = make(map[string]*Provider)
	}
	p.deps[key] = prov
}

func (p *policy) setScheme(name string, s SecurityScheme) {
	if p.schemes == nil {
		p.schemes = make(map[string]SecurityScheme)
	}
	p.schemes[name] = s
}

// Endpoint is a leaf route bound to a handler.
type Endpoint struct {
	handler       any
	acceptOptions *websocket.AcceptOptions
	path          string
	name          string
	summary       string
	description   string
	bodySchema    string
	methods       []string
	tags          []string
	headers       [][2]string
	cookies       []*http.Cookie
	errs          []error
	policy        policy
	status        int
	deprecated    bool
	excluded      bool
	blocking      bool
	websocket     bool
}

func (*Endpoint) route() {}

// RouteOption configures an endpoint. Applied to a group, options become
// defaults for every endpoint below it.
type RouteOption func(*Endpoint)

// NewEndpoint creates an endpoint. Methods default to GET.
func NewEndpoint(path string, h any, opts ...RouteOption) *Endpoint {
	e := &Endpoint{path: path, handler: h}
	for _, opt := range opts {
		opt(e)
	}
	if len(e.methods) == 0 {
		e.methods = []string{http.MethodGet}
	}
	return e
}

func newMethodEndpoint(method, path string, h any, opts []RouteOption) *Endpoint {
	return NewEndpoint(path, h, append([]RouteOption{Methods(method)}, opts...)...)
}

// Get creates a GET endpoint.
func Get(path string, h any, opts ...RouteOption) *Endpoint {
	return newMethodEndpoint(http.MethodGet, path, h, opts)
}

// Post creates a POST endpoint.
func Post(path string, h any, opts ...RouteOption) *Endpoint {
	return newMethodEndpoint(http.MethodPost, path, h, opts)
}

// Put creates a PUT endpoint.
func Put(path string, h any, opts ...RouteOption) *Endpoint {
	return newMethodEndpoint(http.MethodPut, path, h, opts)
}

// Patch creates a PATCH endpoint.
func Patch(path string, h any, opts ...RouteOption) *Endpoint {
	return newMethodEndpoint(http.MethodPatch, path, h, opts)
}

// Delete creates a DELETE endpoint.
func Delete(path string, h any, opts ...RouteOption) *Endpoint {
	return newMethodEndpoint(http.MethodDelete, path, h, opts)
}

// Head creates a HEAD endpoint.
func Head(path string, h any, opts ...RouteOption) *Endpoint {
	return newMethodEndpoint(http.MethodHead, path, h, opts)
}

// Options creates an OPTIONS endpoint.
func Options(path string, h any, opts ...RouteOption) *Endpoint {
	return newMethodEndpoint(http.MethodOptions, path, h, opts)
}

// Trace creates a TRACE endpoint.
func Trace(path string, h any, opts ...RouteOption) *Endpoint {
	return newMethodEndpoint(http.MethodTrace, path, h, opts)
}

// NewWebSocket creates a websocket endpoint. The connection is accepted
// after permissions, interceptors and input binding succeed.
func NewWebSocket(path string, h any, opts ...RouteOption) *Endpoint {
	e := newMethodEndpoint(http.MethodGet, path, h, opts)
	e.methods = []string{http.MethodGet}
	e.websocket = true
	return e
}

// Group is a path prefix with its own policy.
type Group struct {
	defaults *Endpoint
	prefix   string
	routes   []Route
}

func (*Group) route() {}

// NewGroup creates a group. Options apply to every endpoint inside it.
func NewGroup(prefix string, routes []Route, opts ...RouteOption) *Group {
	d := &Endpoint{}
	for _, opt := range opts {
		opt(d)
	}
	return &Group{prefix: prefix, routes: routes, defaults: d}
}

// Mount attaches a child application under a prefix. The child's policy
// nests inside the parent's.
type Mount struct {
	app    *App
	prefix string
}

func (*Mount) route() {}

// NewMount creates a mount node.
func NewMount(prefix string, app *App) *Mount {
	return &Mount{prefix: prefix, app: app}
}

// Methods sets the HTTP methods an endpoint answers.
func Methods(methods ...string) RouteOption {
	return func(e *Endpoint) {
		for _, m := range methods {
			m = strings.ToUpper(strings.TrimSpace(m))
			if !slices.Contains(allMethods, m) {
				e.errs = append(e.errs, fmt.Errorf("%w: unsupported method %q", ErrInvalidHandler, m))
				continue
			}
			if !slices.Contains(e.methods, m) {
				e.methods = append(e.methods, m)
			}
		}
	}
}

// Use adds middleware. Outer levels wrap inner ones.
func Use(mw ...Middleware) RouteOption {
	return func(e *Endpoint) {
		e.policy.middlewares = append(e.policy.middlewares, mw...)
	}
}

// Permissions adds permission checks. All must grant.
func Permissions(p ...Permission) RouteOption {
	return func(e *Endpoint) {
		e.policy.permissions = append(e.policy.permissions, p...)
	}
}

// Interceptors adds interceptors that run before the handler.
func Interceptors(i ...Interceptor) RouteOption {
	return func(e *Endpoint) {
		e.policy.interceptors = append(e.policy.interceptors, i...)
	}
}

// OnError registers an exception handler for a kind. KindAny catches all.
func OnError(kind ErrorKind, h ErrorHandler) RouteOption {
	return func(e *Endpoint) {
		e.policy.setException(kind, h)
	}
}

// BeforeRequest adds hooks run before binding, outer levels first.
func BeforeRequest(h ...Hook) RouteOption {
	return func(e *Endpoint) {
		e.policy.before = append(e.policy.before, h...)
	}
}

// AfterRequest adds hooks run after the response, inner levels first.
// They also run after failures.
func AfterRequest(h ...Hook) RouteOption {
	return func(e *Endpoint) {
		e.policy.after = append(e.policy.after, h...)
	}
}

// Depends makes a provider visible under key, shadowing outer levels.
func Depends(key string, p *Provider) RouteOption {
	return func(e *Endpoint) {
		e.policy.setDependency(key, p)
	}
}

// Security registers a named security scheme.
func Security(name string, s SecurityScheme) RouteOption {
	return func(e *Endpoint) {
		e.policy.setScheme(name, s)
	}
}

// Secured requires the named schemes to authenticate before permissions run.
func Secured(names ...string) RouteOption {
	return func(e *Endpoint) {
		e.policy.secured = append(e.policy.secured, names...)
	}
}

// Name names an endpoint for reverse lookup. On a group it becomes a
// namespace prefix ("admin:users").
func Name(name string) RouteOption {
	return func(e *Endpoint) {
		e.name = name
	}
}

// Status overrides the default success status.
func Status(code int) RouteOption {
	return func(e *Endpoint) {
		e.status = code
	}
}

// ResponseHeader declares a header set on success unless the handler set it.
func ResponseHeader(name, value string) RouteOption {
	return func(e *Endpoint) {
		e.headers = append(e.headers, [2]string{http.CanonicalHeaderKey(name), value})
	}
}

// ResponseCookie declares a cookie set on success unless the handler set it.
func ResponseCookie(c *http.Cookie) RouteOption {
	return func(e *Endpoint) {
		if c != nil {
			e.cookies = append(e.cookies, c)
		}
	}
}

// Tags adds description tags.
func Tags(tags ...string) RouteOption {
	return func(e *Endpoint) {
		e.tags = append(e.tags, tags...)
	}
}

// Summary sets the one-line description.
func Summary(s string) RouteOption {
	return func(e *Endpoint) {
		e.summary = s
	}
}

// Description sets the long description.
func Description(s string) RouteOption {
	return func(e *Endpoint) {
		e.description = s
	}
}

// Deprecated marks the endpoint deprecated in descriptions.
func Deprecated() RouteOption {
	return func(e *Endpoint) {
		e.deprecated = true
	}
}

// ExcludeFromSchema hides the endpoint from Describe.
func ExcludeFromSchema() RouteOption {
	return func(e *Endpoint) {
		e.excluded = true
	}
}

// Blocking runs the handler on the application worker pool.
func Blocking() RouteOption {
	return func(e *Endpoint) {
		e.blocking = true
	}
}

// BodySchema validates JSON bodies against a JSON Schema document before
// they are decoded.
func BodySchema(schema string) RouteOption {
	return func(e *Endpoint) {
		e.bodySchema = schema
	}
}

// AcceptOrigins allows cross-origin websocket handshakes from the given
// host patterns.
func AcceptOrigins(patterns ...string) RouteOption {
	return func(e *Endpoint) {
		if e.acceptOptions == nil {
			e.acceptOptions = &websocket.AcceptOptions{}
		}
		e.acceptOptions.OriginPatterns = append(e.acceptOptions.OriginPatterns, patterns...)
	}
}
