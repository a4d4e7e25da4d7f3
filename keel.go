package keel

import (
	"net/http"

	"github.com/dmitrymomot/keel/internal"
	"github.com/dmitrymomot/keel/pkg/encoder"
	"github.com/dmitrymomot/keel/pkg/logger"
)

// Type aliases - public API
type (
	// App owns the routing tree, application policy and the shared runtime.
	// It is an http.Handler.
	App = internal.App

	// Router is the interface handlers use to declare routes.
	Router = internal.Router

	// Context provides request/response access and helper methods.
	Context = internal.Context

	// Handler declares routes on a router.
	Handler = internal.Handler

	// HandlerFunc is the signature for raw route handlers.
	HandlerFunc = internal.HandlerFunc

	// Middleware wraps a HandlerFunc to add cross-cutting concerns.
	Middleware = internal.Middleware

	// ErrorHandler handles errors. Returning nil marks the error as handled,
	// returning an error passes it to the next level.
	ErrorHandler = internal.ErrorHandler

	// Permission authorizes a request before input binding.
	Permission = internal.Permission

	// Interceptor runs after permissions and may reject a request.
	Interceptor = internal.Interceptor

	// Hook runs before or after a request.
	Hook = internal.Hook

	// Option configures the application.
	Option = internal.Option

	// RouteOption configures an endpoint, a group or the application level.
	RouteOption = internal.RouteOption

	// RunOption configures the server runtime.
	RunOption = internal.RunOption

	// HealthOption configures health check endpoints.
	HealthOption = internal.HealthOption

	// Route is a node of the routing tree.
	Route = internal.Route

	// Endpoint is a leaf of the routing tree.
	Endpoint = internal.Endpoint

	// Group is a path prefix with its own policy.
	Group = internal.Group

	// Mount embeds another application under a prefix.
	Mount = internal.Mount

	// Provider is a dependency registered under a key.
	Provider = internal.Provider

	// SecurityScheme authenticates a request and yields credentials.
	SecurityScheme = internal.SecurityScheme

	// BasicCredentials is what HTTPBasic yields.
	BasicCredentials = internal.BasicCredentials

	// Socket is the connection of a websocket endpoint.
	Socket = internal.Socket

	// State is the application-wide key/value container.
	State = internal.State

	// Cookies holds the request cookies by name.
	Cookies = internal.Cookies

	// UploadFile is a file received in a multipart body.
	UploadFile = internal.UploadFile

	// Reply lets a typed handler set status, headers and cookies.
	Reply = internal.Reply

	// Responder writes its own response.
	Responder = internal.Responder

	// Component is the interface for renderable templates.
	Component = internal.Component

	// ResponseWriter wraps http.ResponseWriter with hooks.
	ResponseWriter = internal.ResponseWriter

	// Extractor reads a value from the first matching source.
	Extractor = internal.Extractor

	// ExtractorSource reads a value from the request.
	ExtractorSource = internal.ExtractorSource

	// RolePermissions maps roles to the permissions they grant.
	RolePermissions = internal.RolePermissions

	// RoleExtractorFunc determines the role of the current request.
	RoleExtractorFunc = internal.RoleExtractorFunc

	// RouteDescription documents one endpoint.
	RouteDescription = internal.RouteDescription

	// ParamDescription documents one bound input.
	ParamDescription = internal.ParamDescription

	// BodyDescription documents the request body.
	BodyDescription = internal.BodyDescription

	// ContextExtractor extracts a slog attribute from context.
	// Used with WithLogger to add request-scoped values to logs.
	ContextExtractor = logger.ContextExtractor

	// Encoder converts values of registered types to and from request text.
	Encoder = encoder.Encoder
)

// Constructors

// New creates and builds an application. It panics when the routing tree
// is improperly configured; use Build to get the error instead.
//
// Example:
//
//	app := keel.New(
//	    keel.WithMiddleware(middlewares.Recover()),
//	    keel.WithRoutes(
//	        keel.Get("/items/{id:int}", getItem),
//	    ),
//	)
//
//	err := app.Run(keel.Address(":8080"))
func New(opts ...Option) *App {
	return internal.New(opts...)
}

// Build creates an application and compiles its routing tree. Every
// registration error is returned, joined.
func Build(opts ...Option) (*App, error) {
	return internal.Build(opts...)
}

// Sub creates an application meant to be mounted. It is compiled as part of
// the application it is mounted into, or on first use when served directly.
func Sub(opts ...Option) *App {
	return internal.Sub(opts...)
}

// Routing tree

// Get creates a GET endpoint. h is a HandlerFunc or a typed handler of the
// form func(context.Context, In) (Out, error).
func Get(path string, h any, opts ...RouteOption) *Endpoint {
	return internal.Get(path, h, opts...)
}

// Post creates a POST endpoint.
func Post(path string, h any, opts ...RouteOption) *Endpoint {
	return internal.Post(path, h, opts...)
}

// Put creates a PUT endpoint.
func Put(path string, h any, opts ...RouteOption) *Endpoint {
	return internal.Put(path, h, opts...)
}

// Patch creates a PATCH endpoint.
func Patch(path string, h any, opts ...RouteOption) *Endpoint {
	return internal.Patch(path, h, opts...)
}

// Delete creates a DELETE endpoint.
func Delete(path string, h any, opts ...RouteOption) *Endpoint {
	return internal.Delete(path, h, opts...)
}

// Head creates a HEAD endpoint.
func Head(path string, h any, opts ...RouteOption) *Endpoint {
	return internal.Head(path, h, opts...)
}

// Options creates an OPTIONS endpoint.
func Options(path string, h any, opts ...RouteOption) *Endpoint {
	return internal.Options(path, h, opts...)
}

// Trace creates a TRACE endpoint.
func Trace(path string, h any, opts ...RouteOption) *Endpoint {
	return internal.Trace(path, h, opts...)
}

// NewEndpoint creates an endpoint for the methods set with Methods, GET when
// none are set.
func NewEndpoint(path string, h any, opts ...RouteOption) *Endpoint {
	return internal.NewEndpoint(path, h, opts...)
}

// NewWebSocket creates a websocket endpoint. The connection is accepted
// after permissions, interceptors and input binding succeed.
func NewWebSocket(path string, h any, opts ...RouteOption) *Endpoint {
	return internal.NewWebSocket(path, h, opts...)
}

// NewGroup creates a group of routes under prefix.
//
// Example:
//
//	keel.NewGroup("/admin", []keel.Route{
//	    keel.Delete("/items/{id:int}", deleteItem),
//	}, keel.Permissions(isAdmin), keel.Name("admin"))
func NewGroup(prefix string, routes []Route, opts ...RouteOption) *Group {
	return internal.NewGroup(prefix, routes, opts...)
}

// NewMount embeds app under prefix. The mounted application keeps its own
// middleware, permissions and error handlers.
func NewMount(prefix string, app *App) *Mount {
	return internal.NewMount(prefix, app)
}

// Route options

// Methods sets the methods of an endpoint created with NewEndpoint.
func Methods(methods ...string) RouteOption {
	return internal.Methods(methods...)
}

// Name names an endpoint for reverse lookup.
func Name(name string) RouteOption {
	return internal.Name(name)
}

// Status overrides the default success status.
func Status(code int) RouteOption {
	return internal.Status(code)
}

// ResponseHeader declares a header set on success unless the handler set it.
func ResponseHeader(name, value string) RouteOption {
	return internal.ResponseHeader(name, value)
}

// ResponseCookie declares a cookie set on success unless the handler set it.
func ResponseCookie(c *http.Cookie) RouteOption {
	return internal.ResponseCookie(c)
}

// Use adds middleware to an endpoint or group.
func Use(mw ...Middleware) RouteOption {
	return internal.Use(mw...)
}

// Permissions adds permissions checked before input binding.
func Permissions(p ...Permission) RouteOption {
	return internal.Permissions(p...)
}

// Interceptors adds interceptors run after permissions.
func Interceptors(i ...Interceptor) RouteOption {
	return internal.Interceptors(i...)
}

// BeforeRequest adds before-request hooks.
func BeforeRequest(h ...Hook) RouteOption {
	return internal.BeforeRequest(h...)
}

// AfterRequest adds after-request hooks. They run even when the request failed.
func AfterRequest(h ...Hook) RouteOption {
	return internal.AfterRequest(h...)
}

// OnError registers an exception handler for kind at this level.
func OnError(kind ErrorKind, h ErrorHandler) RouteOption {
	return internal.OnError(kind, h)
}

// Depends makes a provider visible under key, shadowing outer levels.
func Depends(key string, p *Provider) RouteOption {
	return internal.Depends(key, p)
}

// Security registers a named security scheme.
func Security(name string, s SecurityScheme) RouteOption {
	return internal.Security(name, s)
}

// Secured requires the named schemes to authenticate before permissions run.
func Secured(names ...string) RouteOption {
	return internal.Secured(names...)
}

// Blocking runs the handler on the worker pool.
func Blocking() RouteOption {
	return internal.Blocking()
}

// BodySchema validates JSON bodies against a JSON Schema document.
func BodySchema(schema string) RouteOption {
	return internal.BodySchema(schema)
}

// AcceptOrigins allows cross-origin websocket handshakes from the given
// host patterns.
func AcceptOrigins(patterns ...string) RouteOption {
	return internal.AcceptOrigins(patterns...)
}

// Tags adds description tags.
func Tags(tags ...string) RouteOption {
	return internal.Tags(tags...)
}

// Summary sets the description summary.
func Summary(s string) RouteOption {
	return internal.Summary(s)
}

// Description sets the long description.
func Description(s string) RouteOption {
	return internal.Description(s)
}

// Deprecated marks an endpoint as deprecated in descriptions.
func Deprecated() RouteOption {
	return internal.Deprecated()
}

// ExcludeFromSchema leaves an endpoint out of Describe.
func ExcludeFromSchema() RouteOption {
	return internal.ExcludeFromSchema()
}

// Dependencies

// Provide registers a provider function. fn has the form
// func(context.Context[, In]) (T, error); In is bound like a handler input.
//
// Example:
//
//	keel.WithDependency("db", keel.Provide(func(ctx context.Context) (*sql.DB, error) {
//	    return pool, nil
//	}))
func Provide(fn any) *Provider {
	return internal.Provide(fn)
}

// ProvideBlocking registers a provider run on the worker pool.
func ProvideBlocking(fn any) *Provider {
	return internal.ProvideBlocking(fn)
}

// Value registers a constant dependency.
func Value(v any) *Provider {
	return internal.Value(v)
}

// Security schemes

// HTTPBearer reads a bearer token from the Authorization header.
func HTTPBearer() SecurityScheme {
	return internal.HTTPBearer()
}

// HTTPBasic reads username and password from the Authorization header.
func HTTPBasic(realm string) SecurityScheme {
	return internal.HTTPBasic(realm)
}

// APIKeyHeader reads an API key from a request header.
func APIKeyHeader(name string) SecurityScheme {
	return internal.APIKeyHeader(name)
}

// APIKeyQuery reads an API key from a query parameter.
func APIKeyQuery(name string) SecurityScheme {
	return internal.APIKeyQuery(name)
}

// APIKey reads an API key from the first of several sources.
//
// Example:
//
//	keel.APIKey(keel.FromHeader("X-API-Key"), keel.FromQuery("api_key"))
func APIKey(sources ...ExtractorSource) SecurityScheme {
	return internal.APIKey(sources...)
}

// APIKeyCookie reads an API key from a cookie.
func APIKeyCookie(name string) SecurityScheme {
	return internal.APIKeyCookie(name)
}

// Permissions

// AllowAny grants every request.
func AllowAny() Permission {
	return internal.AllowAny()
}

// DenyAll rejects every request with 403.
func DenyAll() Permission {
	return internal.DenyAll()
}

// Allow grants the request when fn returns true, 403 otherwise.
func Allow(fn func(Context) bool) Permission {
	return internal.Allow(fn)
}

// Authenticated grants the request when fn returns true, 401 otherwise.
func Authenticated(fn func(Context) bool) Permission {
	return internal.Authenticated(fn)
}

// RequirePermission grants the request when the current role holds perm.
func RequirePermission(perm string) Permission {
	return internal.RequirePermission(perm)
}

// Context helpers

// ContextValue retrieves a typed value from the context.
// Returns the zero value of T if the key is not found or type assertion fails.
//
// Example:
//
//	type tenantKey struct{}
//
//	tenant := keel.ContextValue[string](c, tenantKey{})
func ContextValue[T any](c Context, key any) T {
	return internal.ContextValue[T](c, key)
}

// Param reads a path parameter converted to T. Any type the scalar
// encoders recognize works, including uuid.UUID and time.Duration.
func Param[T any](c Context, name string) T {
	return internal.Param[T](c, name)
}

// Query reads a query parameter converted to T.
func Query[T any](c Context, name string) T {
	return internal.Query[T](c, name)
}

// QueryDefault reads a query parameter converted to T, or defaultValue.
func QueryDefault[T any](c Context, name string, defaultValue T) T {
	return internal.QueryDefault(c, name, defaultValue)
}

// StateValue reads a typed value from the application state.
func StateValue[T any](s *State, key string) (T, bool) {
	return internal.StateValue[T](s, key)
}

// NewState creates a state container.
func NewState(initial map[string]any) *State {
	return internal.NewState(initial)
}

// NewExtractor creates an extractor that tries sources in order.
func NewExtractor(sources ...ExtractorSource) Extractor {
	return internal.NewExtractor(sources...)
}

// FromHeader reads a request header.
func FromHeader(name string) ExtractorSource {
	return internal.FromHeader(name)
}

// FromQuery reads a query parameter.
func FromQuery(name string) ExtractorSource {
	return internal.FromQuery(name)
}

// FromCookie reads a cookie.
func FromCookie(name string) ExtractorSource {
	return internal.FromCookie(name)
}

// FromParam reads a path parameter.
func FromParam(name string) ExtractorSource {
	return internal.FromParam(name)
}

// FromForm reads a form value.
func FromForm(name string) ExtractorSource {
	return internal.FromForm(name)
}

// FromBearerToken reads a bearer token from the Authorization header.
func FromBearerToken() ExtractorSource {
	return internal.FromBearerToken()
}

// FromAuthorization reads the credentials of an Authorization scheme.
func FromAuthorization(scheme string) ExtractorSource {
	return internal.FromAuthorization(scheme)
}

// NewResponseWriter wraps w.
func NewResponseWriter(w http.ResponseWriter) *ResponseWriter {
	return internal.NewResponseWriter(w)
}
