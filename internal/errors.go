package internal

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"
	"slices"
	"strings"
	"time"
)

// HTTPError represents an HTTP error with all data needed for rendering.
// It implements the error interface and provides structured data for
// error handlers to render error responses.
type HTTPError struct {
	// Err is the underlying error (for logging, not exposed to users).
	Err error

	// Message is the user-facing error message.
	Message string

	// Title is an optional title for the error (defaults derived from Code).
	Title string

	// Detail is an optional extended description.
	Detail string

	// ErrorCode is an application-specific error code (for i18n, client handling).
	ErrorCode string

	// RequestID is the request tracking ID.
	RequestID string

	// Code is the HTTP status code (e.g., 404, 500).
	Code int
}

func (e *HTTPError) Error() string {
	return e.Message
}

func (e *HTTPError) Unwrap() error {
	return e.Err
}

func (e *HTTPError) StatusCode() int {
	return e.Code
}

func (e *HTTPError) StatusText() string {
	return http.StatusText(e.Code)
}

// Kind derives the error kind from the status code.
func (e *HTTPError) Kind() ErrorKind {
	return kindForStatus(e.Code)
}

// HTTPErrorOption configures an HTTPError.
type HTTPErrorOption func(*HTTPError)

// NewHTTPError creates a new HTTPError with the given status code and message.
func NewHTTPError(code int, message string) *HTTPError {
	return &HTTPError{
		Code:    code,
		Message: message,
	}
}

func WithTitle(title string) HTTPErrorOption {
	return func(e *HTTPError) {
		e.Title = title
	}
}

func WithDetail(detail string) HTTPErrorOption {
	return func(e *HTTPError) {
		e.Detail = detail
	}
}

func WithErrorCode(code string) HTTPErrorOption {
	return func(e *HTTPError) {
		e.ErrorCode = code
	}
}

func WithRequestID(id string) HTTPErrorOption {
	return func(e *HTTPError) {
		e.RequestID = id
	}
}

func WithError(err error) HTTPErrorOption {
	return func(e *HTTPError) {
		e.Err = err
	}
}

func newHTTPError(code int, message string, opts []HTTPErrorOption) *HTTPError {
	e := NewHTTPError(code, message)
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Convenience constructors for common HTTP errors.

func ErrBadRequest(message string, opts ...HTTPErrorOption) *HTTPError {
	return newHTTPError(http.StatusBadRequest, message, opts)
}

func ErrUnauthorized(message string, opts ...HTTPErrorOption) *HTTPError {
	return newHTTPError(http.StatusUnauthorized, message, opts)
}

func ErrForbidden(message string, opts ...HTTPErrorOption) *HTTPError {
	return newHTTPError(http.StatusForbidden, message, opts)
}

func ErrNotFound(message string, opts ...HTTPErrorOption) *HTTPError {
	return newHTTPError(http.StatusNotFound, message, opts)
}

func ErrConflict(message string, opts ...HTTPErrorOption) *HTTPError {
	return newHTTPError(http.StatusConflict, message, opts)
}

func ErrUnprocessable(message string, opts ...HTTPErrorOption) *HTTPError {
	return newHTTPError(http.StatusUnprocessableEntity, message, opts)
}

func ErrInternal(message string, opts ...HTTPErrorOption) *HTTPError {
	return newHTTPError(http.StatusInternalServerError, message, opts)
}

func ErrServiceUnavailable(message string, opts ...HTTPErrorOption) *HTTPError {
	return newHTTPError(http.StatusServiceUnavailable, message, opts)
}

// Helper functions for error inspection.

func IsHTTPError(err error) bool {
	var httpErr *HTTPError
	return errors.As(err, &httpErr)
}

// AsHTTPError extracts the HTTPError from an error chain if present.
// Returns nil if the error is not an HTTPError.
func AsHTTPError(err error) *HTTPError {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr
	}
	return nil
}

// ErrorKind classifies failures for exception handler dispatch.
type ErrorKind string

const (
	KindAny                  ErrorKind = "*"
	KindValidation           ErrorKind = "validation"
	KindNotAuthenticated     ErrorKind = "not_authenticated"
	KindPermissionDenied     ErrorKind = "permission_denied"
	KindNotFound             ErrorKind = "not_found"
	KindMethodNotAllowed     ErrorKind = "method_not_allowed"
	KindImproperlyConfigured ErrorKind = "improperly_configured"
	KindInternal             ErrorKind = "internal"
	KindTimeout              ErrorKind = "timeout"
	KindPanic                ErrorKind = "panic"
	KindDisconnected         ErrorKind = "disconnected"
	KindHTTP                 ErrorKind = "http"
)

// Kinded is implemented by errors that carry their own kind.
type Kinded interface {
	Kind() ErrorKind
}

// StatusCoder is implemented by errors that map to an HTTP status.
type StatusCoder interface {
	StatusCode() int
}

// Challenger is implemented by errors that carry a WWW-Authenticate value.
type Challenger interface {
	Challenge() string
}

// Registration errors. All of them match ErrImproperlyConfigured with errors.Is.
var (
	ErrImproperlyConfigured = errors.New("improperly configured")
	ErrDuplicateRoute       = errors.New("duplicate route")
	ErrInvalidPath          = errors.New("invalid path")
	ErrInvalidHandler       = errors.New("invalid handler")
	ErrInvalidProvider      = errors.New("invalid provider")
	ErrCycleDetected        = errors.New("dependency cycle detected")
	ErrUnknownDependency    = errors.New("unknown dependency")
	ErrUnknownScheme        = errors.New("unknown security scheme")
	ErrUnknownPathParam     = errors.New("unknown path parameter")
	ErrAmbiguousParameter   = errors.New("ambiguous parameter")
	ErrDuplicateParameter   = errors.New("duplicate parameter")
	ErrReservedName         = errors.New("reserved parameter name")
	ErrUnsupportedParam     = errors.New("unsupported parameter type")
	ErrMultipleBodies       = errors.New("more than one body parameter")
	ErrMixedBody            = errors.New("json body mixed with form fields")
	ErrDuplicateName        = errors.New("duplicate route name")
	ErrInterceptorWrote     = errors.New("interceptor wrote a response")
)

// Runtime sentinels.
var (
	ErrClientDisconnected = errors.New("client disconnected")
	ErrRouteNotFound      = errors.New("route not found")
	ErrMissingURLParam    = errors.New("missing url parameter")
)

// ConfigError reports a registration problem for a route or provider.
type ConfigError struct {
	Err   error
	Route string
	Field string
}

func (e *ConfigError) Error() string {
	var b strings.Builder
	b.WriteString("improperly configured")
	if e.Route != "" {
		b.WriteString(": ")
		b.WriteString(e.Route)
	}
	if e.Field != "" {
		b.WriteString(": field ")
		b.WriteString(e.Field)
	}
	b.WriteString(": ")
	b.WriteString(e.Err.Error())
	return b.String()
}

func (e *ConfigError) Unwrap() error { return e.Err }

func (e *ConfigError) Is(target error) bool { return target == ErrImproperlyConfigured }

func (e *ConfigError) Kind() ErrorKind { return KindImproperlyConfigured }

func configErr(route, field string, err error, format string, args ...any) *ConfigError {
	if format != "" {
		err = fmt.Errorf("%w: %s", err, fmt.Sprintf(format, args...))
	}
	return &ConfigError{Route: route, Field: field, Err: err}
}

// FieldError is one failed input. Location names where the value came from,
// e.g. ["query"] or ["dependency", "db", "header"].
type FieldError struct {
	Location []string `json:"location"`
	Field    string   `json:"field"`
	Message  string   `json:"message"`
}

// ValidationError is a client input failure. Status is 400 for parameters
// and 422 for bodies and dependency inputs.
type ValidationError struct {
	Message    string
	Dependency string
	Errors     []FieldError
	Status     int
}

func (e *ValidationError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = "validation failed"
	}
	if len(e.Errors) == 0 {
		return msg
	}
	parts := make([]string, 0, len(e.Errors))
	for _, fe := range e.Errors {
		parts = append(parts, strings.Join(append(slices.Clone(fe.Location), fe.Field), ".")+": "+fe.Message)
	}
	return msg + ": " + strings.Join(parts, "; ")
}

func (e *ValidationError) Kind() ErrorKind { return KindValidation }

func (e *ValidationError) StatusCode() int {
	if e.Status == 0 {
		return http.StatusBadRequest
	}
	return e.Status
}

// NotAuthenticatedError signals missing or invalid credentials (401).
type NotAuthenticatedError struct {
	Err       error
	Message   string
	Scheme    string
	challenge string
}

// NotAuthenticated returns a 401 error. challenge becomes the WWW-Authenticate header.
func NotAuthenticated(message, challenge string) *NotAuthenticatedError {
	return &NotAuthenticatedError{Message: message, challenge: challenge}
}

func (e *NotAuthenticatedError) Error() string {
	if e.Message == "" {
		return "not authenticated"
	}
	return e.Message
}

func (e *NotAuthenticatedError) Unwrap() error     { return e.Err }
func (e *NotAuthenticatedError) Kind() ErrorKind   { return KindNotAuthenticated }
func (e *NotAuthenticatedError) StatusCode() int   { return http.StatusUnauthorized }
func (e *NotAuthenticatedError) Challenge() string { return e.challenge }

// PermissionDeniedError signals an authenticated caller lacking access (403).
type PermissionDeniedError struct {
	Err     error
	Message string
}

// PermissionDenied returns a 403 error.
func PermissionDenied(message string) *PermissionDeniedError {
	return &PermissionDeniedError{Message: message}
}

func (e *PermissionDeniedError) Error() string {
	if e.Message == "" {
		return "permission denied"
	}
	return e.Message
}

func (e *PermissionDeniedError) Unwrap() error   { return e.Err }
func (e *PermissionDeniedError) Kind() ErrorKind { return KindPermissionDenied }
func (e *PermissionDeniedError) StatusCode() int { return http.StatusForbidden }

// MethodNotAllowedError is raised when the path matches under other methods.
type MethodNotAllowedError struct {
	Method  string
	Allowed []string
}

func (e *MethodNotAllowedError) Error() string {
	return fmt.Sprintf("method %s not allowed", e.Method)
}

func (e *MethodNotAllowedError) Kind() ErrorKind { return KindMethodNotAllowed }
func (e *MethodNotAllowedError) StatusCode() int { return http.StatusMethodNotAllowed }

// DependencyError wraps an unexpected provider failure.
type DependencyError struct {
	Err error
	Key string
}

func (e *DependencyError) Error() string {
	return fmt.Sprintf("dependency %q: %v", e.Key, e.Err)
}

func (e *DependencyError) Unwrap() error   { return e.Err }
func (e *DependencyError) Kind() ErrorKind { return KindInternal }
func (e *DependencyError) StatusCode() int { return http.StatusInternalServerError }

// PanicError wraps a recovered panic value together with the stack trace.
type PanicError struct {
	Value any
	Stack []byte
}

// NewPanicError captures the current stack for a recovered value.
func NewPanicError(v any) *PanicError {
	return &PanicError{Value: v, Stack: debug.Stack()}
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

func (e *PanicError) Kind() ErrorKind { return KindPanic }
func (e *PanicError) StatusCode() int { return http.StatusInternalServerError }

// TimeoutError reports a request whose deadline passed. It renders as 503
// and is dispatched to exception handlers registered for KindTimeout.
type TimeoutError struct {
	Duration time.Duration // zero when the deadline came from outside keel
}

func (e *TimeoutError) Error() string {
	if e.Duration > 0 {
		return fmt.Sprintf("request timeout after %s", e.Duration)
	}
	return "request deadline exceeded"
}

func (e *TimeoutError) Unwrap() error   { return context.DeadlineExceeded }
func (e *TimeoutError) Kind() ErrorKind { return KindTimeout }
func (e *TimeoutError) StatusCode() int { return http.StatusServiceUnavailable }

// IsPanicError reports whether err contains a PanicError.
func IsPanicError(err error) bool {
	var pe *PanicError
	return errors.As(err, &pe)
}

// AsPanicError extracts the PanicError from err, or nil.
func AsPanicError(err error) *PanicError {
	var pe *PanicError
	if errors.As(err, &pe) {
		return pe
	}
	return nil
}

// KindOf classifies err. The outermost Kinded error in the chain wins.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	if errors.Is(err, ErrClientDisconnected) {
		return KindDisconnected
	}
	var k Kinded
	if errors.As(err, &k) {
		return k.Kind()
	}
	var sc StatusCoder
	if errors.As(err, &sc) {
		return kindForStatus(sc.StatusCode())
	}
	return KindInternal
}

// StatusOf maps err to an HTTP status code. Unknown errors are 500.
func StatusOf(err error) int {
	var sc StatusCoder
	if errors.As(err, &sc) {
		if code := sc.StatusCode(); code >= 400 && code <= 599 {
			return code
		}
	}
	return http.StatusInternalServerError
}

func kindForStatus(code int) ErrorKind {
	switch {
	case code == http.StatusUnauthorized:
		return KindNotAuthenticated
	case code == http.StatusForbidden:
		return KindPermissionDenied
	case code == http.StatusNotFound:
		return KindNotFound
	case code == http.StatusMethodNotAllowed:
		return KindMethodNotAllowed
	case code == http.StatusUnprocessableEntity || code == http.StatusBadRequest:
		return KindValidation
	case code >= 500:
		return KindInternal
	}
	return KindHTTP
}
