package internal_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/keel/internal"
)

// inspect serves target on a raw route at pattern and runs fn inside it.
func inspect(t *testing.T, pattern, target string, fn func(c internal.Context)) {
	t.Helper()

	app := internal.New(internal.WithRoutes(internal.Get(pattern, func(c internal.Context) error {
		fn(c)
		return c.NoContent(http.StatusNoContent)
	})))
	rec := httptest.NewRecorder()
	app.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	require.Equal(t, http.StatusNoContent, rec.Code)
}

func TestParam(t *testing.T) {
	t.Parallel()

	id := uuid.New()
	inspect(t, "/p/{name}/{n}/{f}/{b}/{id}", "/p/alice/42/1.5/true/"+id.String(), func(c internal.Context) {
		require.Equal(t, "alice", internal.Param[string](c, "name"))
		require.Equal(t, 42, internal.Param[int](c, "n"))
		require.Equal(t, int64(42), internal.Param[int64](c, "n"))
		require.InDelta(t, 1.5, internal.Param[float64](c, "f"), 0.0001)
		require.True(t, internal.Param[bool](c, "b"))
		require.Equal(t, id, internal.Param[uuid.UUID](c, "id"))

		require.Zero(t, internal.Param[int](c, "name"))
		require.Zero(t, internal.Param[int](c, "missing"))
		require.Empty(t, internal.Param[string](c, "missing"))
	})
}

func TestQuery(t *testing.T) {
	t.Parallel()

	inspect(t, "/", "/?page=3&page=9&q=go&ttl=2m&bad=x", func(c internal.Context) {
		require.Equal(t, 3, internal.Query[int](c, "page"))
		require.Equal(t, "go", internal.Query[string](c, "q"))
		require.Equal(t, 2*time.Minute, internal.Query[time.Duration](c, "ttl"))
		require.Zero(t, internal.Query[int](c, "bad"))
		require.Zero(t, internal.Query[int](c, "missing"))
	})
}

func TestQueryDefault(t *testing.T) {
	t.Parallel()

	inspect(t, "/", "/?limit=25&bad=x&empty=", func(c internal.Context) {
		require.Equal(t, 25, internal.QueryDefault(c, "limit", 10))
		require.Equal(t, 10, internal.QueryDefault(c, "bad", 10))
		require.Equal(t, 10, internal.QueryDefault(c, "empty", 10))
		require.Equal(t, "asc", internal.QueryDefault(c, "sort", "asc"))
	})
}

type ctxKey struct{}

func TestContextValue(t *testing.T) {
	t.Parallel()

	inspect(t, "/", "/", func(c internal.Context) {
		require.Empty(t, internal.ContextValue[string](c, ctxKey{}))

		c.Set(ctxKey{}, "tenant-1")
		require.Equal(t, "tenant-1", internal.ContextValue[string](c, ctxKey{}))
		require.Zero(t, internal.ContextValue[int](c, ctxKey{}))
	})
}
