package internal_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/keel/internal"
)

type errorDoc struct {
	Message string                `json:"message"`
	Detail  string                `json:"detail"`
	Errors  []internal.FieldError `json:"errors"`
	Status  int                   `json:"status"`
}

func decodeError(t *testing.T, body string) errorDoc {
	t.Helper()

	var doc errorDoc
	require.NoError(t, json.Unmarshal([]byte(body), &doc), body)
	return doc
}

type itemQuery struct {
	ID int
	Q  string `default:"all"`
}

func TestTypedPathAndQuery(t *testing.T) {
	t.Parallel()

	app := internal.New(internal.WithRoutes(
		internal.Get("/items/{id:int}", func(_ context.Context, in itemQuery) (map[string]any, error) {
			return map[string]any{"id": in.ID, "q": in.Q}, nil
		}),
	))

	t.Run("binds path and query", func(t *testing.T) {
		t.Parallel()

		w := serve(t, app, http.MethodGet, "/items/7?q=foo", "")
		require.Equal(t, http.StatusOK, w.Code)
		require.JSONEq(t, `{"id":7,"q":"foo"}`, w.Body.String())
	})

	t.Run("applies defaults", func(t *testing.T) {
		t.Parallel()

		w := serve(t, app, http.MethodGet, "/items/7", "")
		require.Equal(t, http.StatusOK, w.Code)
		require.JSONEq(t, `{"id":7,"q":"all"}`, w.Body.String())
	})

	t.Run("type mismatch does not match the route", func(t *testing.T) {
		t.Parallel()

		w := serve(t, app, http.MethodGet, "/items/seven", "")
		require.Equal(t, http.StatusNotFound, w.Code)
		require.Equal(t, http.StatusNotFound, decodeError(t, w.Body.String()).Status)
	})

	t.Run("plan is stable across requests", func(t *testing.T) {
		t.Parallel()

		first := serve(t, app, http.MethodGet, "/items/3?q=x", "")
		second := serve(t, app, http.MethodGet, "/items/3?q=x", "")
		require.Equal(t, first.Body.String(), second.Body.String())
	})
}

type newUser struct {
	Name string `json:"name" validate:"min:3"`
	Age  int    `json:"age" validate:"gte:18"`
}

type createUser struct {
	Data newUser
}

func TestBodyValidation(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	app := internal.New(internal.WithRoutes(
		internal.Post("/users", func(_ context.Context, in createUser) (newUser, error) {
			calls.Add(1)
			return in.Data, nil
		}),
	))

	t.Run("reports every failing field", func(t *testing.T) {
		w := serve(t, app, http.MethodPost, "/users", `{"name":"Al","age":17}`, "Content-Type", "application/json")
		require.Equal(t, http.StatusUnprocessableEntity, w.Code)

		doc := decodeError(t, w.Body.String())
		require.Len(t, doc.Errors, 2)
		fields := []string{doc.Errors[0].Field, doc.Errors[1].Field}
		require.ElementsMatch(t, []string{"name", "age"}, fields)
		for _, fe := range doc.Errors {
			require.Equal(t, []string{"body"}, fe.Location)
		}
		require.Zero(t, calls.Load())
	})

	t.Run("valid body reaches the handler", func(t *testing.T) {
		w := serve(t, app, http.MethodPost, "/users", `{"name":"Alice","age":30}`, "Content-Type", "application/json")
		require.Equal(t, http.StatusCreated, w.Code)
		require.JSONEq(t, `{"name":"Alice","age":30}`, w.Body.String())
		require.Equal(t, int32(1), calls.Load())
	})

	t.Run("missing body is required", func(t *testing.T) {
		w := serve(t, app, http.MethodPost, "/users", "")
		require.Equal(t, http.StatusUnprocessableEntity, w.Code)
		require.Equal(t, "field required", decodeError(t, w.Body.String()).Errors[0].Message)
	})

	t.Run("other media types are rejected", func(t *testing.T) {
		w := serve(t, app, http.MethodPost, "/users", `name=Alice`, "Content-Type", "text/plain")
		require.Equal(t, http.StatusUnsupportedMediaType, w.Code)
	})
}

type csrfInput struct {
	Token string `cookie:"csrftoken"`
}

func TestCookieParameter(t *testing.T) {
	t.Parallel()

	app := internal.New(internal.WithRoutes(
		internal.Get("/form", func(_ context.Context, in csrfInput) (string, error) {
			return in.Token, nil
		}),
	))

	w := serve(t, app, http.MethodGet, "/form", "")
	require.Equal(t, http.StatusBadRequest, w.Code)
	doc := decodeError(t, w.Body.String())
	require.Len(t, doc.Errors, 1)
	require.Equal(t, []string{"cookie"}, doc.Errors[0].Location)
	require.Equal(t, "csrftoken", doc.Errors[0].Field)

	w = serve(t, app, http.MethodGet, "/form", "", "Cookie", "csrftoken=abc")
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "abc", w.Body.String())
}

type apiKeyInput struct {
	Key string `header:"X-Api-Key"`
}

type clientInput struct {
	Key string `dep:"b"`
}

type depsInput struct {
	A string `dep:"a"`
	B string `dep:"b"`
}

func TestDependencyGraph(t *testing.T) {
	t.Parallel()

	newApp := func(calls *atomic.Int32) *internal.App {
		return internal.New(
			internal.WithDependency("b", internal.Provide(func(_ context.Context, in apiKeyInput) (string, error) {
				calls.Add(1)
				return "key:" + in.Key, nil
			})),
			internal.WithDependency("a", internal.Provide(func(_ context.Context, in clientInput) (string, error) {
				return "client(" + in.Key + ")", nil
			})),
			internal.WithRoutes(
				internal.Get("/data", func(c internal.Context, in depsInput) (map[string]string, error) {
					again, err := c.Resolve("b")
					if err != nil {
						return nil, err
					}
					return map[string]string{"a": in.A, "b": in.B, "again": again.(string)}, nil
				}),
			),
		)
	}

	t.Run("missing header is reported at the provider", func(t *testing.T) {
		t.Parallel()

		var calls atomic.Int32
		w := serve(t, newApp(&calls), http.MethodGet, "/data", "")
		require.Equal(t, http.StatusUnprocessableEntity, w.Code)

		doc := decodeError(t, w.Body.String())
		require.Len(t, doc.Errors, 1)
		require.Equal(t, []string{"dependency", "b", "header"}, doc.Errors[0].Location)
		require.Equal(t, "X-Api-Key", doc.Errors[0].Field)
		require.Zero(t, calls.Load())
	})

	t.Run("each key resolves once per request", func(t *testing.T) {
		t.Parallel()

		var calls atomic.Int32
		app := newApp(&calls)
		w := serve(t, app, http.MethodGet, "/data", "", "X-Api-Key", "secret")
		require.Equal(t, http.StatusOK, w.Code)
		require.JSONEq(t, `{"a":"client(key:secret)","b":"key:secret","again":"key:secret"}`, w.Body.String())
		require.Equal(t, int32(1), calls.Load())

		serve(t, app, http.MethodGet, "/data", "", "X-Api-Key", "secret")
		require.Equal(t, int32(2), calls.Load(), "no memoization across requests")
	})
}

func TestProviderFailures(t *testing.T) {
	t.Parallel()

	type dbInput struct {
		DB string `dep:"db"`
	}
	handler := func(_ context.Context, in dbInput) (string, error) { return in.DB, nil }

	t.Run("internal failure names the dependency", func(t *testing.T) {
		t.Parallel()

		app := internal.New(
			internal.WithDebug(true),
			internal.WithDependency("db", internal.Provide(func(context.Context) (string, error) {
				return "", errors.New("connection refused")
			})),
			internal.WithRoutes(internal.Get("/", handler)),
		)
		w := serve(t, app, http.MethodGet, "/", "")
		require.Equal(t, http.StatusInternalServerError, w.Code)
		require.Contains(t, decodeError(t, w.Body.String()).Detail, `"db"`)
		require.Contains(t, decodeError(t, w.Body.String()).Detail, "connection refused")
	})

	t.Run("production hides details", func(t *testing.T) {
		t.Parallel()

		app := internal.New(
			internal.WithDependency("db", internal.Provide(func(context.Context) (string, error) {
				return "", errors.New("connection refused")
			})),
			internal.WithRoutes(internal.Get("/", handler)),
		)
		w := serve(t, app, http.MethodGet, "/", "")
		require.Equal(t, http.StatusInternalServerError, w.Code)
		require.Empty(t, decodeError(t, w.Body.String()).Detail)
		require.NotContains(t, w.Body.String(), "connection refused")
	})

	t.Run("client errors become dependency failures", func(t *testing.T) {
		t.Parallel()

		var got error
		app := internal.New(
			internal.WithDependency("db", internal.Provide(func(context.Context) (string, error) {
				return "", internal.ErrConflict("already exists")
			})),
			internal.WithExceptionHandler(internal.KindInternal, func(_ internal.Context, err error) error {
				got = err
				return err
			}),
			internal.WithRoutes(internal.Get("/", handler)),
		)
		w := serve(t, app, http.MethodGet, "/", "")
		require.Equal(t, http.StatusInternalServerError, w.Code)
		require.Equal(t, "Internal Server Error", decodeError(t, w.Body.String()).Message)

		var de *internal.DependencyError
		require.ErrorAs(t, got, &de)
		require.Equal(t, "db", de.Key)
		require.Equal(t, http.StatusConflict, internal.AsHTTPError(got).Code)
	})

	t.Run("auth failures keep their status", func(t *testing.T) {
		t.Parallel()

		app := internal.New(
			internal.WithDependency("db", internal.Provide(func(context.Context) (string, error) {
				return "", internal.PermissionDenied("not yours")
			})),
			internal.WithRoutes(internal.Get("/", handler)),
		)
		w := serve(t, app, http.MethodGet, "/", "")
		require.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("inner levels shadow outer providers", func(t *testing.T) {
		t.Parallel()

		app := internal.New(
			internal.WithDependency("db", internal.Value("outer")),
			internal.WithRoutes(
				internal.Get("/outer", handler),
				internal.NewGroup("/inner", []internal.Route{
					internal.Get("/", handler),
				}, internal.Depends("db", internal.Value("inner"))),
			),
		)
		require.Equal(t, "outer", serve(t, app, http.MethodGet, "/outer", "").Body.String())
		require.Equal(t, "inner", serve(t, app, http.MethodGet, "/inner", "").Body.String())
	})

	t.Run("blocking providers run on the pool", func(t *testing.T) {
		t.Parallel()

		app := internal.New(
			internal.WithWorkerPool(1),
			internal.WithDependency("db", internal.ProvideBlocking(func(context.Context) (string, error) {
				return "pooled", nil
			})),
			internal.WithRoutes(internal.Get("/", handler)),
		)
		require.Equal(t, "pooled", serve(t, app, http.MethodGet, "/", "").Body.String())
	})
}

func TestPermissionDeniesBeforeHandler(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	h := func(c internal.Context) error {
		calls.Add(1)
		return c.NoContent(http.StatusOK)
	}
	app := internal.New(internal.WithRoutes(
		internal.Get("/denied", h, internal.Permissions(internal.DenyAll())),
		internal.Get("/login", h, internal.Permissions(internal.Authenticated(func(internal.Context) bool { return false }))),
		internal.Get("/plain", h, internal.Permissions(func(internal.Context) error { return errors.New("nope") })),
		internal.Get("/open", h, internal.Permissions(internal.AllowAny())),
	))

	require.Equal(t, http.StatusForbidden, serve(t, app, http.MethodGet, "/denied", "").Code)
	require.Equal(t, http.StatusUnauthorized, serve(t, app, http.MethodGet, "/login", "").Code)
	require.Equal(t, http.StatusForbidden, serve(t, app, http.MethodGet, "/plain", "").Code)
	require.Zero(t, calls.Load())

	require.Equal(t, http.StatusOK, serve(t, app, http.MethodGet, "/open", "").Code)
	require.Equal(t, int32(1), calls.Load())
}

func TestMiddlewareNesting(t *testing.T) {
	t.Parallel()

	var log []string
	record := func(name string) internal.Middleware {
		return func(next internal.HandlerFunc) internal.HandlerFunc {
			return func(c internal.Context) error {
				log = append(log, name+"-in")
				err := next(c)
				log = append(log, name+"-out")
				return err
			}
		}
	}

	app := internal.New(
		internal.WithMiddleware(record("app")),
		internal.WithRoutes(
			internal.NewGroup("/grp", []internal.Route{
				internal.Get("/ep", func(c internal.Context) error {
					log = append(log, "handler")
					return c.NoContent(http.StatusOK)
				}, internal.Use(record("ep"))),
			}, internal.Use(record("grp"))),
		),
	)

	w := serve(t, app, http.MethodGet, "/grp/ep", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, []string{"app-in", "grp-in", "ep-in", "handler", "ep-out", "grp-out", "app-out"}, log)
}

func TestDefaultStatus(t *testing.T) {
	t.Parallel()

	ok := func(context.Context) (string, error) { return "ok", nil }
	app := internal.New(internal.WithRoutes(
		internal.Get("/r", ok),
		internal.Post("/r", ok),
		internal.Put("/r", ok),
		internal.Delete("/r", ok),
		internal.Post("/accepted", ok, internal.Status(http.StatusAccepted)),
		internal.Get("/empty", func(context.Context) error { return nil }),
	))

	tests := []struct {
		method string
		path   string
		want   int
	}{
		{http.MethodGet, "/r", http.StatusOK},
		{http.MethodPost, "/r", http.StatusCreated},
		{http.MethodPut, "/r", http.StatusOK},
		{http.MethodDelete, "/r", http.StatusNoContent},
		{http.MethodPost, "/accepted", http.StatusAccepted},
		{http.MethodGet, "/empty", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tt.want, serve(t, app, tt.method, tt.path, "").Code)
		})
	}
}

func TestReplyAndDeclaredHeaders(t *testing.T) {
	t.Parallel()

	app := internal.New(internal.WithRoutes(
		internal.Get("/declared", func(context.Context) (string, error) {
			return "x", nil
		}, internal.ResponseHeader("X-Version", "1"), internal.ResponseCookie(&http.Cookie{Name: "seen", Value: "1"})),
		internal.Get("/override", func(c internal.Context) (string, error) {
			c.SetHeader("X-Version", "2")
			return "x", nil
		}, internal.ResponseHeader("X-Version", "1")),
		internal.Get("/reply", func(context.Context) (internal.Reply, error) {
			return internal.Reply{
				Status: http.StatusAccepted,
				Header: http.Header{"Location": {"/jobs/1"}},
				Body:   map[string]int{"job": 1},
			}, nil
		}),
	))

	w := serve(t, app, http.MethodGet, "/declared", "")
	require.Equal(t, "1", w.Header().Get("X-Version"))
	require.Contains(t, w.Header().Get("Set-Cookie"), "seen=1")

	w = serve(t, app, http.MethodGet, "/override", "")
	require.Equal(t, "2", w.Header().Get("X-Version"))

	w = serve(t, app, http.MethodGet, "/reply", "")
	require.Equal(t, http.StatusAccepted, w.Code)
	require.Equal(t, "/jobs/1", w.Header().Get("Location"))
	require.JSONEq(t, `{"job":1}`, w.Body.String())
}

func TestUnmatchedRequests(t *testing.T) {
	t.Parallel()

	var seen atomic.Int32
	app := internal.New(
		internal.WithMiddleware(func(next internal.HandlerFunc) internal.HandlerFunc {
			return func(c internal.Context) error {
				seen.Add(1)
				return next(c)
			}
		}),
		internal.WithRoutes(
			internal.Get("/items", func(context.Context) (string, error) { return "", nil }),
			internal.Put("/items", func(context.Context) (string, error) { return "", nil }),
		),
	)

	w := serve(t, app, http.MethodDelete, "/items", "")
	require.Equal(t, http.StatusMethodNotAllowed, w.Code)
	require.Equal(t, "GET, PUT", w.Header().Get("Allow"))

	w = serve(t, app, http.MethodGet, "/nothing", "")
	require.Equal(t, http.StatusNotFound, w.Code)
	require.Equal(t, "Not Found", decodeError(t, w.Body.String()).Message)

	require.Equal(t, int32(2), seen.Load(), "application middleware wraps unmatched requests")
}

type fileInput struct {
	ID   int
	Rest string
}

func TestReverseLookupRoundTrip(t *testing.T) {
	t.Parallel()

	app := internal.New(internal.WithRoutes(
		internal.Get("/files/{id:int}/{rest:path}", func(_ context.Context, in fileInput) (fileInput, error) {
			return in, nil
		}, internal.Name("file")),
		internal.Get("/users/{uid:uuid}", func(context.Context) error { return nil }, internal.Name("user")),
	))

	path, err := app.URLPathFor("file", map[string]string{"id": "42", "rest": "docs/read me.txt"})
	require.NoError(t, err)
	require.Equal(t, "/files/42/docs/read%20me.txt", path)

	w := serve(t, app, http.MethodGet, path, "")
	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `{"ID":42,"Rest":"docs/read me.txt"}`, w.Body.String())

	_, err = app.URLPathFor("file", map[string]string{"id": "x", "rest": "a"})
	require.ErrorIs(t, err, internal.ErrInvalidPath)

	_, err = app.URLPathFor("user", nil)
	require.ErrorIs(t, err, internal.ErrMissingURLParam)

	_, err = app.URLPathFor("nope", nil)
	require.ErrorIs(t, err, internal.ErrRouteNotFound)
}

func TestMountedApplication(t *testing.T) {
	t.Parallel()

	var childMW atomic.Int32
	admin := internal.Sub(
		internal.WithName("admin"),
		internal.WithMiddleware(func(next internal.HandlerFunc) internal.HandlerFunc {
			return func(c internal.Context) error {
				childMW.Add(1)
				return next(c)
			}
		}),
		internal.WithErrorHandler(func(c internal.Context, err error) error {
			return c.String(internal.StatusOf(err), "admin: "+err.Error())
		}),
		internal.WithRoutes(
			internal.Get("/users", func(c internal.Context) (string, error) {
				return c.RouteName(), nil
			}, internal.Name("users")),
		),
	)
	app := internal.New(internal.WithRoutes(
		internal.Get("/", func(context.Context) (string, error) { return "root", nil }),
		internal.NewMount("/admin", admin),
	))

	w := serve(t, app, http.MethodGet, "/admin/users", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "admin:users", w.Body.String())

	path, err := app.URLPathFor("admin:users", nil)
	require.NoError(t, err)
	require.Equal(t, "/admin/users", path)

	w = serve(t, app, http.MethodGet, "/admin/missing", "")
	require.Equal(t, http.StatusNotFound, w.Code)
	require.True(t, strings.HasPrefix(w.Body.String(), "admin: "))

	w = serve(t, app, http.MethodGet, "/missing", "")
	require.Equal(t, http.StatusNotFound, w.Code)
	require.False(t, strings.HasPrefix(w.Body.String(), "admin: "))

	require.Equal(t, int32(2), childMW.Load())
}

func TestExceptionHandlerLevels(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	app := internal.New(
		internal.WithExceptionHandler(internal.KindAny, func(c internal.Context, err error) error {
			return c.String(http.StatusTeapot, "app: "+err.Error())
		}),
		internal.WithRoutes(
			internal.NewGroup("/g", []internal.Route{
				internal.Get("/exact", func(context.Context) error { return boom },
					internal.OnError(internal.KindAny, func(c internal.Context, _ error) error {
						return c.String(http.StatusOK, "endpoint any")
					}),
					internal.OnError(internal.KindInternal, func(c internal.Context, _ error) error {
						return c.String(http.StatusOK, "endpoint internal")
					}),
				),
				internal.Get("/reraise", func(context.Context) error { return boom },
					internal.OnError(internal.KindAny, func(_ internal.Context, err error) error {
						return fmt.Errorf("endpoint: %w", err)
					}),
				),
				internal.Get("/skip", func(context.Context) error { return internal.ErrConflict("taken") }),
			}, internal.OnError(internal.KindInternal, func(c internal.Context, err error) error {
				return c.String(http.StatusServiceUnavailable, "group: "+err.Error())
			})),
		),
	)

	w := serve(t, app, http.MethodGet, "/g/exact", "")
	require.Equal(t, "endpoint internal", w.Body.String())

	w = serve(t, app, http.MethodGet, "/g/reraise", "")
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	require.Equal(t, "group: endpoint: boom", w.Body.String())

	w = serve(t, app, http.MethodGet, "/g/skip", "")
	require.Equal(t, http.StatusTeapot, w.Code)
	require.Equal(t, "app: taken", w.Body.String())
}

func TestLifecycleHooks(t *testing.T) {
	t.Parallel()

	type recorder struct {
		log []string
	}
	hook := func(r *recorder, name string, err error) internal.Hook {
		return func(internal.Context) error {
			r.log = append(r.log, name)
			return err
		}
	}

	t.Run("before outer first and after inner first", func(t *testing.T) {
		t.Parallel()

		r := &recorder{}
		app := internal.New(
			internal.WithBeforeRequest(hook(r, "app-before", nil)),
			internal.WithAfterRequest(hook(r, "app-after", nil)),
			internal.WithRoutes(internal.Get("/", func(context.Context) error {
				r.log = append(r.log, "handler")
				return nil
			}, internal.BeforeRequest(hook(r, "ep-before", nil)), internal.AfterRequest(hook(r, "ep-after", nil)))),
		)
		serve(t, app, http.MethodGet, "/", "")
		require.Equal(t, []string{"app-before", "ep-before", "handler", "ep-after", "app-after"}, r.log)
	})

	t.Run("after hooks run when a before hook fails", func(t *testing.T) {
		t.Parallel()

		r := &recorder{}
		app := internal.New(
			internal.WithAfterRequest(hook(r, "after", errors.New("ignored"))),
			internal.WithRoutes(internal.Get("/", func(context.Context) error {
				r.log = append(r.log, "handler")
				return nil
			}, internal.BeforeRequest(hook(r, "before", internal.ErrServiceUnavailable("maintenance"))))),
		)
		w := serve(t, app, http.MethodGet, "/", "")
		require.Equal(t, http.StatusServiceUnavailable, w.Code)
		require.Equal(t, []string{"before", "after"}, r.log)
	})

	t.Run("after hooks run when the handler panics", func(t *testing.T) {
		t.Parallel()

		r := &recorder{}
		app := internal.New(
			internal.WithAfterRequest(hook(r, "after", nil)),
			internal.WithRoutes(internal.Get("/", func(context.Context) error {
				panic("kaboom")
			})),
		)
		w := serve(t, app, http.MethodGet, "/", "")
		require.Equal(t, http.StatusInternalServerError, w.Code)
		require.Equal(t, []string{"after"}, r.log)
	})

	t.Run("after hooks run when the client disconnects", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		var failures atomic.Int32
		r := &recorder{}
		app := internal.New(
			internal.WithAfterRequest(hook(r, "after", nil)),
			internal.WithExceptionHandler(internal.KindAny, func(_ internal.Context, err error) error {
				failures.Add(1)
				return err
			}),
			internal.WithRoutes(internal.Get("/", func(context.Context) (string, error) {
				r.log = append(r.log, "handler")
				cancel()
				return "unsent", nil
			})),
		)
		w := httptest.NewRecorder()
		app.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil).WithContext(ctx))

		require.Equal(t, []string{"handler", "after"}, r.log)
		require.Zero(t, w.Body.Len())
		require.Zero(t, failures.Load())
	})

	t.Run("blocking handler finishes before after hooks", func(t *testing.T) {
		t.Parallel()

		type markKey struct{}
		var seen any
		app := internal.New(
			internal.WithMiddleware(deadline(5*time.Millisecond)),
			internal.WithAfterRequest(func(c internal.Context) error {
				seen = c.Get(markKey{})
				return nil
			}),
			internal.WithRoutes(internal.Get("/", func(c internal.Context) error {
				time.Sleep(30 * time.Millisecond)
				c.Set(markKey{}, 1)
				return nil
			}, internal.Blocking())),
		)
		w := serve(t, app, http.MethodGet, "/", "")
		require.Equal(t, http.StatusServiceUnavailable, w.Code)
		require.Equal(t, 1, seen)
	})
}

// deadline is middleware that puts a deadline on the request context.
func deadline(d time.Duration) internal.Middleware {
	return func(next internal.HandlerFunc) internal.HandlerFunc {
		return func(c internal.Context) error {
			ctx, cancel := context.WithTimeout(c.Context(), d)
			defer cancel()
			c.SetContext(ctx)
			return next(c)
		}
	}
}

func TestRequestDeadline(t *testing.T) {
	t.Parallel()

	var got error
	app := internal.New(
		internal.WithMiddleware(deadline(5*time.Millisecond)),
		internal.WithExceptionHandler(internal.KindTimeout, func(_ internal.Context, err error) error {
			got = err
			return err
		}),
		internal.WithRoutes(internal.Get("/", func(ctx context.Context) (string, error) {
			<-ctx.Done()
			return "late", nil
		})),
	)
	w := serve(t, app, http.MethodGet, "/", "")
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	require.Equal(t, "Service Unavailable", decodeError(t, w.Body.String()).Message)
	require.ErrorIs(t, got, context.DeadlineExceeded)

	var te *internal.TimeoutError
	require.ErrorAs(t, got, &te)
}

func TestInterceptors(t *testing.T) {
	t.Parallel()

	type userKey struct{}
	app := internal.New(internal.WithRoutes(
		internal.Get("/ok", func(c internal.Context) (string, error) {
			return internal.ContextValue[string](c, userKey{}), nil
		}, internal.Interceptors(func(c internal.Context) error {
			c.Set(userKey{}, "alice")
			return nil
		})),
		internal.Get("/writes", func(context.Context) (string, error) {
			return "unreachable", nil
		}, internal.Interceptors(func(c internal.Context) error {
			return c.String(http.StatusOK, "intercepted")
		})),
	))

	require.Equal(t, "alice", serve(t, app, http.MethodGet, "/ok", "").Body.String())

	w := serve(t, app, http.MethodGet, "/writes", "")
	require.Equal(t, "intercepted", w.Body.String())
	require.NotContains(t, w.Body.String(), "unreachable")
}

func TestBlockingHandler(t *testing.T) {
	t.Parallel()

	var running, peak atomic.Int32
	app := internal.New(
		internal.WithWorkerPool(1),
		internal.WithRoutes(internal.Get("/", func(context.Context) (string, error) {
			n := running.Add(1)
			defer running.Add(-1)
			if n > peak.Load() {
				peak.Store(n)
			}
			return "done", nil
		}, internal.Blocking())),
	)

	done := make(chan struct{})
	for range 4 {
		go func() {
			defer func() { done <- struct{}{} }()
			serve(t, app, http.MethodGet, "/", "")
		}()
	}
	for range 4 {
		<-done
	}
	require.Equal(t, int32(1), peak.Load())
}

type reservedInput struct {
	Request *http.Request
	Headers http.Header
	Cookies internal.Cookies
	State   *internal.State
	Context internal.Context
}

func TestReservedParameters(t *testing.T) {
	t.Parallel()

	app := internal.New(
		internal.WithState(map[string]any{"version": "v1"}),
		internal.WithRoutes(internal.Get("/", func(_ context.Context, in reservedInput) (map[string]any, error) {
			version, _ := internal.StateValue[string](in.State, "version")
			return map[string]any{
				"path":    in.Request.URL.Path,
				"agent":   in.Headers.Get("User-Agent"),
				"session": in.Cookies["session"],
				"version": version,
				"route":   in.Context.RoutePattern(),
			}, nil
		})),
	)

	w := serve(t, app, http.MethodGet, "/", "", "User-Agent", "test", "Cookie", "session=s1")
	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `{"path":"/","agent":"test","session":"s1","version":"v1","route":"/"}`, w.Body.String())
}

func TestContextBind(t *testing.T) {
	t.Parallel()

	type filter struct {
		Page  int    `query:"page" default:"1" validate:"gte:1"`
		Token string `header:"X-Token,optional"`
	}
	app := internal.New(internal.WithRoutes(
		internal.Get("/", func(c internal.Context) error {
			var f filter
			if err := c.Bind(&f); err != nil {
				return err
			}
			return c.JSON(http.StatusOK, f)
		}),
	))

	w := serve(t, app, http.MethodGet, "/?page=3", "", "X-Token", "t")
	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `{"Page":3,"Token":"t"}`, w.Body.String())

	w = serve(t, app, http.MethodGet, "/", "")
	require.JSONEq(t, `{"Page":1,"Token":""}`, w.Body.String())

	w = serve(t, app, http.MethodGet, "/?page=0", "")
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, "page", decodeError(t, w.Body.String()).Errors[0].Field)
}

func TestMaxBodyBytes(t *testing.T) {
	t.Parallel()

	app := internal.New(
		internal.WithMaxBodyBytes(8),
		internal.WithRoutes(internal.Post("/", func(_ context.Context, in createUser) (newUser, error) {
			return in.Data, nil
		})),
	)
	w := serve(t, app, http.MethodPost, "/", `{"name":"Alice","age":30}`, "Content-Type", "application/json")
	require.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}
