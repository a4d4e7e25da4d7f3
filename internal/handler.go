package internal

import (
	"context"
	"io"
)

// Handler declares routes on a router.
//
// Example:
//
//	type UserHandler struct {
//	    repo *repository.Queries
//	}
//
//	func (h *UserHandler) Routes(r keel.Router) {
//	    r.GET("/users/{id:int}", h.getUser)
//	    r.POST("/users", h.createUser)
//	}
type Handler interface {
	Routes(r Router)
}

// HandlerFunc is the signature for raw route handlers.
// It receives a Context and returns an error.
// Returning a non-nil error triggers exception dispatch.
type HandlerFunc func(c Context) error

// Middleware wraps a HandlerFunc to add cross-cutting concerns.
// Middleware can inspect/modify the request, short-circuit processing,
// or wrap the response.
//
// Example:
//
//	func Auth(next keel.HandlerFunc) keel.HandlerFunc {
//	    return func(c keel.Context) error {
//	        if !isAuthenticated(c) {
//	            return c.Redirect(302, "/login")
//	        }
//	        return next(c)
//	    }
//	}
type Middleware func(next HandlerFunc) HandlerFunc

// ErrorHandler handles errors raised while serving a request.
// Returning nil marks the error as handled; returning an error passes it
// (or a replacement) to the next outer level.
type ErrorHandler func(Context, error) error

// Permission grants or denies access to a route. A non-nil error denies.
type Permission func(c Context) error

// Interceptor runs before the handler and may modify request state.
// Interceptors must not write a response.
type Interceptor func(c Context) error

// Hook runs before or after a request.
type Hook func(c Context) error

// Responder is a handler result that writes its own response.
type Responder interface {
	Respond(c Context) error
}

// Component is a renderable view. templ components satisfy it.
type Component interface {
	Render(ctx context.Context, w io.Writer) error
}
