package internal

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"net/url"
	"reflect"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
)

// Context provides request/response access and helper methods.
// It embeds context.Context, so it can be passed directly to any function
// that expects a standard library context.
type Context interface {
	context.Context

	// Request returns the underlying *http.Request.
	Request() *http.Request

	// Response returns the underlying http.ResponseWriter.
	Response() http.ResponseWriter

	// ResponseWriter returns the wrapped writer tracking status and size.
	ResponseWriter() *ResponseWriter

	// Context returns the request's context.Context.
	Context() context.Context

	// SetContext replaces the request's context.
	SetContext(ctx context.Context)

	// Param returns the URL parameter value by name.
	Param(name string) string

	// Query returns the query parameter value by name.
	Query(name string) string

	// QueryDefault returns the query parameter value or a default if empty.
	QueryDefault(name, defaultValue string) string

	// Form returns the form value by name.
	Form(name string) string

	// FormFile returns the first file for the given form key.
	FormFile(name string) (multipart.File, *multipart.FileHeader, error)

	// Header returns the request header value by name.
	Header(name string) string

	// SetHeader sets a response header.
	SetHeader(name, value string)

	// Cookie returns a cookie value by name.
	Cookie(name string) (string, error)

	// SetCookie sets an HttpOnly cookie scoped to the whole site.
	SetCookie(name, value string, maxAge int)

	// DeleteCookie removes a cookie.
	DeleteCookie(name string)

	// JSON writes a JSON response with the given status code.
	JSON(code int, v any) error

	// String writes a plain text response with the given status code.
	String(code int, s string) error

	// NoContent writes a response with no body.
	NoContent(code int) error

	// Redirect redirects the client to the given URL.
	Redirect(code int, url string) error

	// Render writes a component as HTML with the given status code.
	Render(code int, component Component) error

	// Error creates an HTTPError with the given code and message.
	Error(code int, message string, opts ...HTTPErrorOption) *HTTPError

	// Bind fills the struct pointed to by v from the request using the same
	// rules as typed handler inputs.
	Bind(v any) error

	// Written returns true if the response has been written.
	Written() bool

	// Logger returns the request logger.
	Logger() *slog.Logger

	// LogDebug logs a debug message with request context.
	LogDebug(msg string, attrs ...any)

	// LogInfo logs an info message with request context.
	LogInfo(msg string, attrs ...any)

	// LogWarn logs a warning message with request context.
	LogWarn(msg string, attrs ...any)

	// LogError logs an error message with request context.
	LogError(msg string, attrs ...any)

	// Set stores a value in the request context.
	Set(key, value any)

	// Get retrieves a value from the request context.
	Get(key any) any

	// State returns the application-wide state container.
	State() *State

	// Resolve returns the value of a dependency visible to the current route.
	// Values are cached for the rest of the request.
	Resolve(key string) (any, error)

	// Credentials returns what the named security scheme produced for this
	// request, if it ran.
	Credentials(scheme string) (any, bool)

	// Socket returns the accepted websocket for websocket routes, or nil.
	Socket() *Socket

	// Can reports whether the current role grants the permission.
	// Roles are configured with WithRoles.
	Can(permission string) bool

	// RouteName returns the matched route name, if any.
	RouteName() string

	// RoutePattern returns the matched route path template.
	RoutePattern() string

	// URLPathFor builds the path of a named route.
	URLPathFor(name string, params map[string]string) (string, error)
}

// requestContext implements the Context interface.
type requestContext struct {
	request     *http.Request
	response    *ResponseWriter
	app         *App
	ep          *endpoint
	logger      *slog.Logger
	query       url.Values
	deps        map[string]any
	credentials map[string]any
	socket      *Socket
	role        *string
	bodyErr     error
	formErr     error
	body        []byte
	bodyRead    bool
	formParsed  bool
}

// newContext creates a new request scope with the response wrapper.
func newContext(w http.ResponseWriter, r *http.Request, app *App, ep *endpoint) *requestContext {
	rw, ok := w.(*ResponseWriter)
	if !ok {
		rw = NewResponseWriter(w)
	}
	return &requestContext{
		request:  r,
		response: rw,
		app:      app,
		ep:       ep,
		logger:   app.logger,
	}
}

// scopeOf returns the request scope behind c. Middleware may pass a
// different Context implementation; in that case a fresh scope is built.
func (e *endpoint) scopeOf(c Context) *requestContext {
	if rc, ok := c.(*requestContext); ok && rc.ep == e {
		return rc
	}
	return newContext(c.Response(), c.Request(), e.app, e)
}

func (c *requestContext) Request() *http.Request {
	return c.request
}

func (c *requestContext) Response() http.ResponseWriter {
	return c.response
}

func (c *requestContext) ResponseWriter() *ResponseWriter {
	return c.response
}

func (c *requestContext) Context() context.Context {
	return c.request.Context()
}

func (c *requestContext) SetContext(ctx context.Context) {
	c.request = c.request.WithContext(ctx)
}

func (c *requestContext) Deadline() (time.Time, bool) {
	return c.request.Context().Deadline()
}

func (c *requestContext) Done() <-chan struct{} {
	return c.request.Context().Done()
}

func (c *requestContext) Err() error {
	return c.request.Context().Err()
}

func (c *requestContext) Value(key any) any {
	return c.request.Context().Value(key)
}

func (c *requestContext) Param(name string) string {
	return chi.URLParam(c.request, name)
}

func (c *requestContext) queryValues() url.Values {
	if c.query == nil {
		c.query = c.request.URL.Query()
	}
	return c.query
}

func (c *requestContext) Query(name string) string {
	return c.queryValues().Get(name)
}

func (c *requestContext) QueryDefault(name, defaultValue string) string {
	v := c.queryValues().Get(name)
	if v == "" {
		return defaultValue
	}
	return v
}

func (c *requestContext) Form(name string) string {
	if err := c.parseForm(); err != nil {
		return ""
	}
	return c.request.Form.Get(name)
}

func (c *requestContext) FormFile(name string) (multipart.File, *multipart.FileHeader, error) {
	if err := c.parseForm(); err != nil {
		return nil, nil, err
	}
	return c.request.FormFile(name)
}

func (c *requestContext) Header(name string) string {
	return c.request.Header.Get(name)
}

func (c *requestContext) SetHeader(name, value string) {
	c.response.Header().Set(name, value)
}

func (c *requestContext) Cookie(name string) (string, error) {
	ck, err := c.request.Cookie(name)
	if err != nil {
		return "", err
	}
	return ck.Value, nil
}

func (c *requestContext) SetCookie(name, value string, maxAge int) {
	http.SetCookie(c.response, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   c.request.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
}

func (c *requestContext) DeleteCookie(name string) {
	c.SetCookie(name, "", -1)
}

func (c *requestContext) JSON(code int, v any) error {
	c.response.Header().Set("Content-Type", "application/json; charset=utf-8")
	c.response.WriteHeader(code)
	return json.NewEncoder(c.response).Encode(v)
}

func (c *requestContext) String(code int, s string) error {
	c.response.Header().Set("Content-Type", "text/plain; charset=utf-8")
	c.response.WriteHeader(code)
	_, err := c.response.Write([]byte(s))
	return err
}

func (c *requestContext) NoContent(code int) error {
	c.response.WriteHeader(code)
	return nil
}

func (c *requestContext) Redirect(code int, url string) error {
	http.Redirect(c.response, c.request, url, code)
	return nil
}

func (c *requestContext) Render(code int, component Component) error {
	c.response.Header().Set("Content-Type", "text/html; charset=utf-8")
	c.response.WriteHeader(code)
	return component.Render(c.request.Context(), c.response)
}

func (c *requestContext) Error(code int, message string, opts ...HTTPErrorOption) *HTTPError {
	return newHTTPError(code, message, opts)
}

func (c *requestContext) Bind(v any) error {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Pointer || rv.IsNil() || rv.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("bind: %w: expected a pointer to a struct, got %T", ErrInvalidHandler, v)
	}
	if c.ep == nil {
		return fmt.Errorf("bind: %w", ErrRouteNotFound)
	}
	p, err := c.ep.planFor(rv.Elem().Type())
	if err != nil {
		return fmt.Errorf("bind: %w", err)
	}
	return c.ep.bind(c, p, rv.Elem(), "")
}

func (c *requestContext) Written() bool {
	return c.response.Written()
}

func (c *requestContext) Logger() *slog.Logger {
	return c.logger
}

func (c *requestContext) LogDebug(msg string, attrs ...any) {
	c.logger.DebugContext(c.request.Context(), msg, attrs...)
}

func (c *requestContext) LogInfo(msg string, attrs ...any) {
	c.logger.InfoContext(c.request.Context(), msg, attrs...)
}

func (c *requestContext) LogWarn(msg string, attrs ...any) {
	c.logger.WarnContext(c.request.Context(), msg, attrs...)
}

func (c *requestContext) LogError(msg string, attrs ...any) {
	c.logger.ErrorContext(c.request.Context(), msg, attrs...)
}

func (c *requestContext) Set(key, value any) {
	ctx := context.WithValue(c.request.Context(), key, value)
	c.request = c.request.WithContext(ctx)
}

func (c *requestContext) Get(key any) any {
	return c.request.Context().Value(key)
}

func (c *requestContext) State() *State {
	return c.app.state
}

func (c *requestContext) Resolve(key string) (any, error) {
	if c.ep == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownDependency, key)
	}
	return c.ep.resolve(c, key)
}

func (c *requestContext) Credentials(scheme string) (any, bool) {
	v, ok := c.credentials[scheme]
	return v, ok
}

func (c *requestContext) Socket() *Socket {
	return c.socket
}

func (c *requestContext) Can(permission string) bool {
	return c.can(permission)
}

func (c *requestContext) RouteName() string {
	if c.ep == nil {
		return ""
	}
	return c.ep.name
}

func (c *requestContext) RoutePattern() string {
	if c.ep == nil {
		return ""
	}
	return c.ep.path
}

func (c *requestContext) URLPathFor(name string, params map[string]string) (string, error) {
	return c.app.URLPathFor(name, params)
}

// checkpoint reports whether the request was abandoned.
func (c *requestContext) checkpoint() error {
	return abandoned(c.request.Context())
}

// abandoned maps a finished request context to the error dispatched for it.
// A passed deadline is a TimeoutError, the context cause when it is one;
// cancellation is a client disconnect.
func abandoned(ctx context.Context) error {
	err := ctx.Err()
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.DeadlineExceeded):
		var te *TimeoutError
		if errors.As(context.Cause(ctx), &te) {
			return te
		}
		return &TimeoutError{}
	}
	return fmt.Errorf("%w: %w", ErrClientDisconnected, err)
}

// readBody reads the request body once, honouring the size limit. The body is
// restored so later form parsing still sees it.
func (c *requestContext) readBody() ([]byte, error) {
	if c.bodyRead {
		return c.body, c.bodyErr
	}
	c.bodyRead = true
	if err := c.checkpoint(); err != nil {
		c.bodyErr = err
		return nil, err
	}
	if c.request.Body == nil || c.request.Body == http.NoBody {
		return nil, nil
	}

	reader := io.Reader(c.request.Body)
	if limit := c.app.maxBodyBytes; limit > 0 {
		reader = http.MaxBytesReader(c.response, c.request.Body, limit)
	}
	c.body, c.bodyErr = io.ReadAll(reader)
	if c.bodyErr != nil {
		var maxErr *http.MaxBytesError
		if errors.As(c.bodyErr, &maxErr) {
			c.bodyErr = newHTTPError(http.StatusRequestEntityTooLarge, "request body too large", []HTTPErrorOption{WithError(c.bodyErr)})
		} else if ctxErr := c.checkpoint(); ctxErr != nil {
			c.bodyErr = ctxErr
		}
		return nil, c.bodyErr
	}
	c.request.Body = io.NopCloser(bytes.NewReader(c.body))
	return c.body, nil
}

// parseForm parses url-encoded and multipart bodies once.
func (c *requestContext) parseForm() error {
	if c.formParsed {
		return c.formErr
	}
	c.formParsed = true
	if _, err := c.readBody(); err != nil {
		c.formErr = err
		return err
	}

	mediaType, _, _ := mime.ParseMediaType(c.request.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		c.formErr = c.request.ParseMultipartForm(c.app.maxMultipartMemory)
	} else {
		c.formErr = c.request.ParseForm()
	}
	return c.formErr
}

// mediaType returns the request's content type without parameters.
func (c *requestContext) mediaType() string {
	mt, _, err := mime.ParseMediaType(c.request.Header.Get("Content-Type"))
	if err != nil {
		return strings.ToLower(strings.TrimSpace(c.request.Header.Get("Content-Type")))
	}
	return mt
}
