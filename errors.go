package keel

import "github.com/dmitrymomot/keel/internal"

type (
	// HTTPError represents an HTTP error with all data needed for rendering.
	HTTPError = internal.HTTPError

	// HTTPErrorOption configures an HTTPError.
	HTTPErrorOption = internal.HTTPErrorOption

	// ErrorKind classifies failures for exception handler dispatch.
	ErrorKind = internal.ErrorKind

	// ConfigError reports a registration problem for a route or provider.
	ConfigError = internal.ConfigError

	// FieldError is one failed input.
	FieldError = internal.FieldError

	// ValidationError is a client input failure (400 or 422).
	ValidationError = internal.ValidationError

	// NotAuthenticatedError signals missing or invalid credentials (401).
	NotAuthenticatedError = internal.NotAuthenticatedError

	// PermissionDeniedError signals an authenticated caller lacking access (403).
	PermissionDeniedError = internal.PermissionDeniedError

	// MethodNotAllowedError carries the methods the path accepts (405).
	MethodNotAllowedError = internal.MethodNotAllowedError

	// DependencyError wraps a provider failure (500).
	DependencyError = internal.DependencyError

	// PanicError wraps a recovered panic (500).
	PanicError = internal.PanicError

	// TimeoutError reports a request whose deadline passed (503).
	TimeoutError = internal.TimeoutError

	// Kinded is implemented by errors that carry their own kind.
	Kinded = internal.Kinded

	// StatusCoder is implemented by errors that map to an HTTP status.
	StatusCoder = internal.StatusCoder
)

// Error kinds.
const (
	KindAny                  = internal.KindAny
	KindValidation           = internal.KindValidation
	KindNotAuthenticated     = internal.KindNotAuthenticated
	KindPermissionDenied     = internal.KindPermissionDenied
	KindNotFound             = internal.KindNotFound
	KindMethodNotAllowed     = internal.KindMethodNotAllowed
	KindImproperlyConfigured = internal.KindImproperlyConfigured
	KindInternal             = internal.KindInternal
	KindTimeout              = internal.KindTimeout
	KindPanic                = internal.KindPanic
	KindDisconnected         = internal.KindDisconnected
	KindHTTP                 = internal.KindHTTP
)

// Registration errors. All of them match ErrImproperlyConfigured with errors.Is.
var (
	ErrImproperlyConfigured = internal.ErrImproperlyConfigured
	ErrDuplicateRoute       = internal.ErrDuplicateRoute
	ErrInvalidPath          = internal.ErrInvalidPath
	ErrInvalidHandler       = internal.ErrInvalidHandler
	ErrInvalidProvider      = internal.ErrInvalidProvider
	ErrCycleDetected        = internal.ErrCycleDetected
	ErrUnknownDependency    = internal.ErrUnknownDependency
	ErrUnknownScheme        = internal.ErrUnknownScheme
	ErrUnknownPathParam     = internal.ErrUnknownPathParam
	ErrAmbiguousParameter   = internal.ErrAmbiguousParameter
	ErrDuplicateParameter   = internal.ErrDuplicateParameter
	ErrReservedName         = internal.ErrReservedName
	ErrUnsupportedParam     = internal.ErrUnsupportedParam
	ErrMultipleBodies       = internal.ErrMultipleBodies
	ErrMixedBody            = internal.ErrMixedBody
	ErrDuplicateName        = internal.ErrDuplicateName
	ErrInterceptorWrote     = internal.ErrInterceptorWrote
)

// Runtime sentinels.
var (
	ErrClientDisconnected = internal.ErrClientDisconnected
	ErrRouteNotFound      = internal.ErrRouteNotFound
	ErrMissingURLParam    = internal.ErrMissingURLParam
)

// NewHTTPError creates a new HTTPError with the given status code and message.
func NewHTTPError(code int, message string) *HTTPError {
	return internal.NewHTTPError(code, message)
}

// WithTitle sets the error title.
func WithTitle(title string) HTTPErrorOption { return internal.WithTitle(title) }

// WithDetail sets the error detail.
func WithDetail(detail string) HTTPErrorOption { return internal.WithDetail(detail) }

// WithErrorCode sets a machine-readable error code.
func WithErrorCode(code string) HTTPErrorOption { return internal.WithErrorCode(code) }

// WithRequestID sets the request ID rendered with the error.
func WithRequestID(id string) HTTPErrorOption { return internal.WithRequestID(id) }

// WithError sets the wrapped cause.
func WithError(err error) HTTPErrorOption { return internal.WithError(err) }

// Convenience constructors for common HTTP errors.

func ErrBadRequest(message string, opts ...HTTPErrorOption) *HTTPError {
	return internal.ErrBadRequest(message, opts...)
}

func ErrUnauthorized(message string, opts ...HTTPErrorOption) *HTTPError {
	return internal.ErrUnauthorized(message, opts...)
}

func ErrForbidden(message string, opts ...HTTPErrorOption) *HTTPError {
	return internal.ErrForbidden(message, opts...)
}

func ErrNotFound(message string, opts ...HTTPErrorOption) *HTTPError {
	return internal.ErrNotFound(message, opts...)
}

func ErrConflict(message string, opts ...HTTPErrorOption) *HTTPError {
	return internal.ErrConflict(message, opts...)
}

func ErrUnprocessable(message string, opts ...HTTPErrorOption) *HTTPError {
	return internal.ErrUnprocessable(message, opts...)
}

func ErrInternal(message string, opts ...HTTPErrorOption) *HTTPError {
	return internal.ErrInternal(message, opts...)
}

func ErrServiceUnavailable(message string, opts ...HTTPErrorOption) *HTTPError {
	return internal.ErrServiceUnavailable(message, opts...)
}

// NotAuthenticated returns a 401 error. challenge becomes the WWW-Authenticate header.
func NotAuthenticated(message, challenge string) *NotAuthenticatedError {
	return internal.NotAuthenticated(message, challenge)
}

// PermissionDenied returns a 403 error.
func PermissionDenied(message string) *PermissionDeniedError {
	return internal.PermissionDenied(message)
}

// NewPanicError wraps a recovered value.
func NewPanicError(v any) *PanicError {
	return internal.NewPanicError(v)
}

// IsHTTPError reports whether err contains an HTTPError.
func IsHTTPError(err error) bool { return internal.IsHTTPError(err) }

// AsHTTPError extracts the HTTPError from an error chain if present.
func AsHTTPError(err error) *HTTPError { return internal.AsHTTPError(err) }

// IsPanicError reports whether err contains a PanicError.
func IsPanicError(err error) bool { return internal.IsPanicError(err) }

// AsPanicError extracts the PanicError from an error chain if present.
func AsPanicError(err error) *PanicError { return internal.AsPanicError(err) }

// KindOf classifies err for exception handler dispatch.
func KindOf(err error) ErrorKind { return internal.KindOf(err) }

// StatusOf returns the HTTP status err renders with.
func StatusOf(err error) int { return internal.StatusOf(err) }
