package internal_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/keel/internal"
)

// requestVia creates an App with the given options, registers a raw handler
// at GET /, executes fn inside that handler, and sends a request. This lets
// tests exercise the real request scope without accessing unexported symbols.
func requestVia(t *testing.T, req *http.Request, opts []internal.Option, fn func(c internal.Context)) *httptest.ResponseRecorder {
	t.Helper()

	h := &captureHandler{fn: fn}
	opts = append(opts, internal.WithHandlers(h))
	app := internal.New(opts...)

	w := httptest.NewRecorder()
	app.ServeHTTP(w, req)
	return w
}

type captureHandler struct {
	fn func(c internal.Context)
}

func (h *captureHandler) Routes(r internal.Router) {
	r.GET("/", func(c internal.Context) error {
		h.fn(c)
		return nil
	}, internal.Name("capture"))
}

// serve builds an app and sends one request through it.
func serve(t *testing.T, app *internal.App, method, target string, body string, headers ...string) *httptest.ResponseRecorder {
	t.Helper()

	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	app.ServeHTTP(w, req)
	return w
}

func TestContextImplementsContextInterface(t *testing.T) {
	t.Parallel()

	t.Run("Deadline delegates to request context", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		req := httptest.NewRequest(http.MethodGet, "/", nil).WithContext(ctx)
		requestVia(t, req, nil, func(c internal.Context) {
			deadline, ok := c.Deadline()
			require.True(t, ok)

			expected, _ := ctx.Deadline()
			require.Equal(t, expected, deadline)
		})
	})

	t.Run("Deadline returns false when no deadline set", func(t *testing.T) {
		t.Parallel()

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		requestVia(t, req, nil, func(c internal.Context) {
			deadline, ok := c.Deadline()
			require.False(t, ok)
			require.True(t, deadline.IsZero())
		})
	})

	t.Run("Done delegates to request context", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		req := httptest.NewRequest(http.MethodGet, "/", nil).WithContext(ctx)
		requestVia(t, req, nil, func(c internal.Context) {
			select {
			case <-c.Done():
				t.Fatal("Done channel should not be closed before cancel")
			default:
			}

			cancel()

			select {
			case <-c.Done():
			case <-time.After(time.Second):
				t.Fatal("Done channel should be closed after cancel")
			}
		})
	})

	t.Run("Err returns Canceled after cancel", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		req := httptest.NewRequest(http.MethodGet, "/", nil).WithContext(ctx)
		requestVia(t, req, nil, func(c internal.Context) {
			cancel()
			require.ErrorIs(t, c.Err(), context.Canceled)
		})
	})

	t.Run("Value reflects Set changes", func(t *testing.T) {
		t.Parallel()

		type testKey struct{}

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		requestVia(t, req, nil, func(c internal.Context) {
			require.Nil(t, c.Value(testKey{}))
			c.Set(testKey{}, 42)
			require.Equal(t, 42, c.Value(testKey{}))
			require.Equal(t, 42, c.Get(testKey{}))
		})
	})

	t.Run("context can be passed to functions accepting context.Context", func(t *testing.T) {
		t.Parallel()

		type testKey struct{}
		ctx := context.WithValue(context.Background(), testKey{}, "world")
		req := httptest.NewRequest(http.MethodGet, "/", nil).WithContext(ctx)
		requestVia(t, req, nil, func(c internal.Context) {
			type childKey struct{}
			derived := context.WithValue(c, childKey{}, "child-val")

			require.Equal(t, "world", derived.Value(testKey{}))
			require.Equal(t, "child-val", derived.Value(childKey{}))
		})
	})
}

func TestContextRouteInfo(t *testing.T) {
	t.Parallel()

	t.Run("route name and pattern", func(t *testing.T) {
		t.Parallel()

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		requestVia(t, req, nil, func(c internal.Context) {
			require.Equal(t, "capture", c.RouteName())
			require.Equal(t, "/", c.RoutePattern())
		})
	})

	t.Run("URLPathFor resolves named routes", func(t *testing.T) {
		t.Parallel()

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		requestVia(t, req, nil, func(c internal.Context) {
			p, err := c.URLPathFor("capture", nil)
			require.NoError(t, err)
			require.Equal(t, "/", p)

			_, err = c.URLPathFor("missing", nil)
			require.ErrorIs(t, err, internal.ErrRouteNotFound)
		})
	})

	t.Run("state is shared by every request", func(t *testing.T) {
		t.Parallel()

		opts := []internal.Option{internal.WithState(map[string]any{"greeting": "hi"})}
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		requestVia(t, req, opts, func(c internal.Context) {
			v, ok := internal.StateValue[string](c.State(), "greeting")
			require.True(t, ok)
			require.Equal(t, "hi", v)
		})
	})
}

func TestRBAC(t *testing.T) {
	t.Parallel()

	t.Run("Can returns false when RBAC not configured", func(t *testing.T) {
		t.Parallel()

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		requestVia(t, req, nil, func(c internal.Context) {
			require.False(t, c.Can("any_permission"))
		})
	})

	t.Run("Can returns true for valid role with permission", func(t *testing.T) {
		t.Parallel()

		perms := internal.RolePermissions{
			"admin":  {"read", "write", "delete"},
			"viewer": {"read"},
		}
		extractor := func(internal.Context) string { return "admin" }

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		opts := []internal.Option{internal.WithRoles(perms, extractor)}
		requestVia(t, req, opts, func(c internal.Context) {
			require.True(t, c.Can("read"))
			require.True(t, c.Can("write"))
			require.True(t, c.Can("delete"))
		})
	})

	t.Run("Can returns false for valid role without permission", func(t *testing.T) {
		t.Parallel()

		perms := internal.RolePermissions{
			"admin":  {"read", "write", "delete"},
			"viewer": {"read"},
		}
		extractor := func(internal.Context) string { return "viewer" }

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		opts := []internal.Option{internal.WithRoles(perms, extractor)}
		requestVia(t, req, opts, func(c internal.Context) {
			require.True(t, c.Can("read"))
			require.False(t, c.Can("write"))
		})
	})

	t.Run("Can returns false for unknown and empty roles", func(t *testing.T) {
		t.Parallel()

		perms := internal.RolePermissions{"admin": {"read"}}
		for _, role := range []string{"unknown-role", ""} {
			extractor := func(internal.Context) string { return role }
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			opts := []internal.Option{internal.WithRoles(perms, extractor)}
			requestVia(t, req, opts, func(c internal.Context) {
				require.False(t, c.Can("read"))
			})
		}
	})

	t.Run("Can with role that has empty permissions slice", func(t *testing.T) {
		t.Parallel()

		perms := internal.RolePermissions{"admin": {}}
		extractor := func(internal.Context) string { return "admin" }

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		opts := []internal.Option{internal.WithRoles(perms, extractor)}
		requestVia(t, req, opts, func(c internal.Context) {
			require.False(t, c.Can("read"))
		})
	})

	t.Run("extractor may call Can without recursing", func(t *testing.T) {
		t.Parallel()

		perms := internal.RolePermissions{"admin": {"read"}}
		extractor := func(c internal.Context) string {
			require.False(t, c.Can("read"))
			return "admin"
		}

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		opts := []internal.Option{internal.WithRoles(perms, extractor)}
		requestVia(t, req, opts, func(c internal.Context) {
			require.True(t, c.Can("read"))
		})
	})
}

func TestCanExtractorCalledOnce(t *testing.T) {
	t.Parallel()

	var extractorCalls atomic.Int32

	perms := internal.RolePermissions{
		"admin": {"read", "write", "delete"},
	}
	extractor := func(internal.Context) string {
		extractorCalls.Add(1)
		return "admin"
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	opts := []internal.Option{internal.WithRoles(perms, extractor)}

	requestVia(t, req, opts, func(c internal.Context) {
		for range 10 {
			require.True(t, c.Can("read"))
		}
		require.True(t, c.Can("write"))
		require.False(t, c.Can("nonexistent"))

		require.Equal(t, int32(1), extractorCalls.Load(), "extractor should be called exactly once")
	})
}

func TestRequirePermission(t *testing.T) {
	t.Parallel()

	app := internal.New(
		internal.WithRoles(
			internal.RolePermissions{"admin": {"users.write"}, "member": {"users.read"}},
			func(c internal.Context) string { return c.Header("X-Role") },
		),
		internal.WithRoutes(
			internal.Post("/users", func(c internal.Context) error {
				return c.NoContent(http.StatusCreated)
			}, internal.Permissions(internal.RequirePermission("users.write"))),
		),
	)

	w := serve(t, app, http.MethodPost, "/users", "", "X-Role", "admin")
	require.Equal(t, http.StatusCreated, w.Code)

	w = serve(t, app, http.MethodPost, "/users", "", "X-Role", "member")
	require.Equal(t, http.StatusForbidden, w.Code)
	require.Contains(t, w.Body.String(), `missing permission \"users.write\"`)
}
