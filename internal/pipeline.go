package internal

import (
	"errors"
	"log/slog"
	"net/http"
	"reflect"
)

// ServeHTTP serves one request matched to e.
func (e *endpoint) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	c := newContext(w, r, e.app, e)
	if err := e.serve(c); err != nil {
		// Raised by middleware outside the pipeline.
		e.handleError(c, err)
	}
}

// run is the innermost handler wrapped by the endpoint's middleware chain.
// Failures are dispatched here; after-request hooks always run.
func (e *endpoint) run(c Context) error {
	rc := e.scopeOf(c)
	defer e.runAfter(rc)
	defer func() {
		if r := recover(); r != nil {
			e.handleError(rc, NewPanicError(r))
		}
	}()

	if err := e.process(rc); err != nil {
		e.handleError(rc, err)
	}
	return nil
}

func (e *endpoint) process(c *requestContext) error {
	if e.fallback {
		if err, ok := c.request.Context().Value(fallbackErrKey{}).(error); ok {
			return err
		}
		return ErrNotFound(http.StatusText(http.StatusNotFound))
	}

	for _, name := range e.secured {
		if _, err := e.authenticate(c, name, false); err != nil {
			return err
		}
	}
	for _, perm := range e.permissions {
		if err := perm(c); err != nil {
			return permissionErr(err)
		}
	}
	for _, ic := range e.interceptors {
		if err := ic(c); err != nil {
			return err
		}
		if c.Written() {
			return configErr(e.route, "", ErrInterceptorWrote, "")
		}
	}
	for _, hook := range e.before {
		if err := hook(c); err != nil {
			return err
		}
		if c.Written() {
			return nil
		}
	}

	if e.websocket {
		c.socket = newSocket(e.acceptOptions)
	}
	if e.shape.raw != nil {
		if err := e.invokeRaw(c); err != nil || c.Written() {
			return err
		}
		return c.checkpoint()
	}

	var in reflect.Value
	if e.plan != nil {
		in = reflect.New(e.plan.typ).Elem()
		if err := e.bind(c, e.plan, in, ""); err != nil {
			return err
		}
	}
	if e.websocket {
		if err := c.socket.accept(c.response, c.request); err != nil {
			return err
		}
	}
	if err := c.checkpoint(); err != nil {
		return err
	}

	out, err := e.invoke(c, in)
	if e.websocket {
		c.socket.finish(err)
		return err
	}
	if err != nil {
		return err
	}
	if err := c.checkpoint(); err != nil {
		return err
	}
	return e.respond(c, out)
}

func (e *endpoint) invokeRaw(c *requestContext) error {
	if e.websocket {
		if err := c.socket.accept(c.response, c.request); err != nil {
			return err
		}
	}
	var err error
	if e.blocking {
		_, err = doBlocking(c, e.app.pool, func() (struct{}, error) {
			return struct{}{}, e.shape.raw(c)
		})
	} else {
		err = e.shape.raw(c)
	}
	if e.websocket {
		c.socket.finish(err)
	}
	return err
}

func (e *endpoint) invoke(c *requestContext, in reflect.Value) (reflect.Value, error) {
	if e.blocking {
		return doBlocking(c, e.app.pool, func() (reflect.Value, error) {
			return e.shape.call(c, in)
		})
	}
	return e.shape.call(c, in)
}

// permissionErr gives a denial without its own kind the permission_denied kind.
func permissionErr(err error) error {
	var (
		k  Kinded
		sc StatusCoder
	)
	if errors.As(err, &k) || errors.As(err, &sc) || errors.Is(err, ErrClientDisconnected) {
		return err
	}
	return &PermissionDeniedError{Err: err}
}

// runAfter runs after-request hooks inner first. Hook failures are logged.
func (e *endpoint) runAfter(c *requestContext) {
	for _, hook := range e.after {
		func() {
			defer func() {
				if r := recover(); r != nil {
					e.logFailure(c, NewPanicError(r), "after request hook panicked")
				}
			}()
			if err := hook(c); err != nil {
				e.logFailure(c, err, "after request hook failed")
			}
		}()
	}
}

// handleError dispatches err through the exception levels, inner first.
// Within a level a handler for the exact kind wins over the catch-all. A
// handler returning nil ends dispatch; returning an error passes that error
// to the next level. Unhandled errors reach the application error handler
// and then the default renderer.
func (e *endpoint) handleError(c *requestContext, err error) {
	if errors.Is(err, ErrClientDisconnected) {
		c.LogDebug("client disconnected", slog.String("route", e.route))
		return
	}
	e.logFailure(c, err, "request failed")
	if c.response.Hijacked() {
		return
	}

	for _, level := range e.levels {
		h := level[KindOf(err)]
		if h == nil {
			h = level[KindAny]
		}
		if h == nil {
			continue
		}
		next := e.callErrorHandler(c, h, err)
		if next == nil || c.Written() {
			return
		}
		err = next
	}

	if c.Written() {
		return
	}
	if h := e.app.errorHandler; h != nil {
		next := e.callErrorHandler(c, h, err)
		if next == nil || c.Written() {
			return
		}
		err = next
	}
	e.app.renderError(c, err)
}

// callErrorHandler runs h, turning a panic into a PanicError.
func (e *endpoint) callErrorHandler(c *requestContext, h ErrorHandler, err error) (next error) {
	defer func() {
		if r := recover(); r != nil {
			next = NewPanicError(r)
			e.logFailure(c, next, "exception handler panicked")
		}
	}()
	return h(c, err)
}

// logFailure logs server errors at error level and client errors at debug.
func (e *endpoint) logFailure(c *requestContext, err error, msg string) {
	status := StatusOf(err)
	attrs := []any{
		slog.String("route", e.route),
		slog.String("kind", string(KindOf(err))),
		slog.Int("status", status),
		slog.String("error", err.Error()),
	}
	if e.name != "" {
		attrs = append(attrs, slog.String("name", e.name))
	}
	var de *DependencyError
	if errors.As(err, &de) {
		attrs = append(attrs, slog.String("dependency", de.Key))
	}
	if pe := AsPanicError(err); pe != nil {
		attrs = append(attrs, slog.String("stack", string(pe.Stack)))
	}

	if status >= http.StatusInternalServerError {
		c.LogError(msg, attrs...)
		return
	}
	c.LogDebug(msg, attrs...)
}
