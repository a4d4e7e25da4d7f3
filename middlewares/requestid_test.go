package middlewares_test

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/keel/internal"
	"github.com/dmitrymomot/keel/middlewares"
	"github.com/dmitrymomot/keel/pkg/logger"
)

func TestRequestID(t *testing.T) {
	t.Parallel()

	t.Run("generates a UUIDv7", func(t *testing.T) {
		t.Parallel()

		var seen string
		rec := serve(t, middlewares.RequestID(), func(c internal.Context) error {
			seen = middlewares.GetRequestID(c)
			return c.NoContent(http.StatusOK)
		}, httptest.NewRequest(http.MethodGet, "/", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		require.Equal(t, seen, rec.Header().Get("X-Request-ID"))

		id, err := uuid.Parse(seen)
		require.NoError(t, err)
		require.Equal(t, uuid.Version(7), id.Version())
	})

	t.Run("preserves upstream IDs in header order", func(t *testing.T) {
		t.Parallel()

		tests := []struct {
			name    string
			headers map[string]string
			want    string
		}{
			{"request id", map[string]string{"X-Request-ID": "req-1"}, "req-1"},
			{"correlation id", map[string]string{"X-Correlation-ID": "corr-1"}, "corr-1"},
			{"request id wins", map[string]string{"X-Request-ID": "req-2", "X-Correlation-ID": "corr-2"}, "req-2"},
			{"oversized id falls through", map[string]string{
				"X-Request-ID":     strings.Repeat("a", 129),
				"X-Correlation-ID": "corr-3",
			}, "corr-3"},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				t.Parallel()

				req := httptest.NewRequest(http.MethodGet, "/", nil)
				for k, v := range tt.headers {
					req.Header.Set(k, v)
				}
				rec := serve(t, middlewares.RequestID(), ok, req)
				require.Equal(t, tt.want, rec.Header().Get("X-Request-ID"))
			})
		}
	})

	t.Run("oversized id is replaced", func(t *testing.T) {
		t.Parallel()

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Request-ID", strings.Repeat("a", 200))
		rec := serve(t, middlewares.RequestID(middlewares.WithRequestIDGenerator(func() string {
			return "generated"
		})), ok, req)
		require.Equal(t, "generated", rec.Header().Get("X-Request-ID"))
	})

	t.Run("custom headers", func(t *testing.T) {
		t.Parallel()

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Trace-ID", "trace-1")
		req.Header.Set("X-Request-ID", "ignored")
		mw := middlewares.RequestID(
			middlewares.WithRequestIDHeaders("X-Trace-ID"),
			middlewares.WithRequestIDResponseHeader("X-Trace-ID"),
		)
		rec := serve(t, mw, ok, req)
		require.Equal(t, "trace-1", rec.Header().Get("X-Trace-ID"))
		require.Empty(t, rec.Header().Get("X-Request-ID"))
	})

	t.Run("error documents carry the id", func(t *testing.T) {
		t.Parallel()

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Request-ID", "req-err")
		rec := serve(t, middlewares.RequestID(), func(internal.Context) error {
			return internal.ErrNotFound("missing")
		}, req)
		require.Equal(t, http.StatusNotFound, rec.Code)
		require.JSONEq(t, `{"message":"missing","request_id":"req-err","status":404}`, rec.Body.String())
	})

	t.Run("unmatched requests get an id", func(t *testing.T) {
		t.Parallel()

		rec := httptest.NewRecorder()
		newApp(middlewares.RequestID(), ok).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/missing", nil))
		require.Equal(t, http.StatusNotFound, rec.Code)
		require.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	})

	t.Run("missing id", func(t *testing.T) {
		t.Parallel()

		var seen string
		serve(t, middlewares.CORS(), func(c internal.Context) error {
			seen = middlewares.GetRequestID(c)
			return nil
		}, httptest.NewRequest(http.MethodGet, "/", nil))
		require.Empty(t, seen)
	})
}

func TestRequestIDExtractor(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "log-1")

	serve(t, middlewares.RequestID(), func(c internal.Context) error {
		c.LogInfo("inside handler")
		return c.NoContent(http.StatusOK)
	}, req,
		internal.WithCustomLogger(slog.New(logger.NewContextHandler(
			slog.NewJSONHandler(&buf, nil),
			middlewares.RequestIDExtractor(),
		))),
	)

	require.Contains(t, buf.String(), `"msg":"inside handler"`)
	require.Contains(t, buf.String(), `"request_id":"log-1"`)
}

func TestNewRequestID(t *testing.T) {
	t.Parallel()

	a, b := middlewares.NewRequestID(), middlewares.NewRequestID()
	require.NotEqual(t, a, b)
	require.Len(t, a, 36)
}
