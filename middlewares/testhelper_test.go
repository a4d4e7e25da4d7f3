package middlewares_test

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/dmitrymomot/keel/internal"
)

var allMethods = []string{
	http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch,
	http.MethodDelete, http.MethodOptions,
}

// errorSink records the errors that reach the exception handlers.
type errorSink struct {
	mu   sync.Mutex
	errs []error
}

func (s *errorSink) option() internal.Option {
	return internal.WithExceptionHandler(internal.KindAny, func(_ internal.Context, err error) error {
		s.mu.Lock()
		s.errs = append(s.errs, err)
		s.mu.Unlock()
		return err
	})
}

func (s *errorSink) last() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.errs) == 0 {
		return nil
	}
	return s.errs[len(s.errs)-1]
}

// newApp mounts h at "/" for every common method behind mw. Middleware
// passed in opts runs inside mw.
func newApp(mw internal.Middleware, h internal.HandlerFunc, opts ...internal.Option) *internal.App {
	all := []internal.Option{
		internal.WithMiddleware(mw),
		internal.WithRoutes(internal.NewEndpoint("/", h, internal.Methods(allMethods...))),
	}
	return internal.New(append(all, opts...)...)
}

// serve sends req through an application built by newApp.
func serve(t *testing.T, mw internal.Middleware, h internal.HandlerFunc, req *http.Request, opts ...internal.Option) *httptest.ResponseRecorder {
	t.Helper()

	rec := httptest.NewRecorder()
	newApp(mw, h, opts...).ServeHTTP(rec, req)
	return rec
}

func ok(c internal.Context) error {
	return c.NoContent(http.StatusOK)
}

// panicking is middleware that panics with v before reaching the handler.
func panicking(v any) internal.Option {
	return internal.WithMiddleware(func(internal.HandlerFunc) internal.HandlerFunc {
		return func(internal.Context) error {
			panic(v)
		}
	})
}
