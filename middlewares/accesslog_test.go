package middlewares_test

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/keel/internal"
	"github.com/dmitrymomot/keel/middlewares"
)

func accessEntry(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()

	var entry map[string]any
	for _, line := range bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n")) {
		var m map[string]any
		require.NoError(t, json.Unmarshal(line, &m))
		if m["msg"] == "request" {
			entry = m
		}
	}
	require.NotNil(t, entry, "no access log entry in %q", buf.String())
	return entry
}

func TestAccessLog(t *testing.T) {
	t.Parallel()

	t.Run("successful request", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		log := slog.New(slog.NewJSONHandler(&buf, nil))
		app := internal.New(
			internal.WithMiddleware(middlewares.AccessLog(middlewares.WithAccessLogger(log))),
			internal.WithRoutes(internal.Get("/items/{id:int}", func(c internal.Context) error {
				return c.String(http.StatusOK, "item")
			})),
		)
		rec := httptest.NewRecorder()
		app.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/items/5", nil))
		require.Equal(t, http.StatusOK, rec.Code)

		entry := accessEntry(t, &buf)
		require.Equal(t, "INFO", entry["level"])
		require.Equal(t, "GET", entry["method"])
		require.Equal(t, "/items/5", entry["path"])
		require.Equal(t, "/items/{id:int}", entry["route"])
		require.EqualValues(t, 200, entry["status"])
		require.EqualValues(t, 4, entry["size"])
	})

	t.Run("handler errors are rendered before logging", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		serve(t, middlewares.AccessLog(), func(internal.Context) error {
			return internal.ErrNotFound("missing")
		}, httptest.NewRequest(http.MethodGet, "/", nil),
			internal.WithCustomLogger(slog.New(slog.NewJSONHandler(&buf, nil))),
		)

		entry := accessEntry(t, &buf)
		require.Equal(t, "WARN", entry["level"])
		require.EqualValues(t, 404, entry["status"])
	})

	t.Run("middleware error status comes from the error", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		rec := serve(t, middlewares.AccessLog(), ok, httptest.NewRequest(http.MethodGet, "/", nil),
			internal.WithCustomLogger(slog.New(slog.NewJSONHandler(&buf, nil))),
			internal.WithMiddleware(func(internal.HandlerFunc) internal.HandlerFunc {
				return func(internal.Context) error {
					return internal.ErrForbidden("nope")
				}
			}),
		)
		require.Equal(t, http.StatusForbidden, rec.Code)

		entry := accessEntry(t, &buf)
		require.Equal(t, "WARN", entry["level"])
		require.EqualValues(t, 403, entry["status"])
		require.Equal(t, "nope", entry["error"])
	})

	t.Run("server errors log at error level", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		serve(t, middlewares.AccessLog(), func(c internal.Context) error {
			return c.NoContent(http.StatusBadGateway)
		}, httptest.NewRequest(http.MethodGet, "/", nil),
			internal.WithCustomLogger(slog.New(slog.NewJSONHandler(&buf, nil))),
		)

		entry := accessEntry(t, &buf)
		require.Equal(t, "ERROR", entry["level"])
		require.EqualValues(t, 502, entry["status"])
	})

	t.Run("skip", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		mw := middlewares.AccessLog(
			middlewares.WithAccessLogger(slog.New(slog.NewJSONHandler(&buf, nil))),
			middlewares.WithAccessLogSkip(func(c internal.Context) bool {
				return c.Request().URL.Path == "/"
			}),
		)
		rec := serve(t, mw, ok, httptest.NewRequest(http.MethodGet, "/", nil))
		require.Equal(t, http.StatusOK, rec.Code)
		require.Empty(t, buf.String())
	})
}
