package internal

import (
	"bufio"
	"net"
	"net/http"
	"sync"
)

// ResponseWriter records what the pipeline sent: the status, the body size
// and whether anything was committed. Hooks registered with OnBeforeWrite
// run once, right before the header is committed. A hijacked connection
// (websockets) counts as written with status 101.
type ResponseWriter struct {
	http.ResponseWriter

	mu          sync.Mutex
	beforeWrite []func()
	status      int
	size        int64
	written     bool
	hijacked    bool
}

// NewResponseWriter wraps w.
func NewResponseWriter(w http.ResponseWriter) *ResponseWriter {
	return &ResponseWriter{ResponseWriter: w, status: http.StatusOK}
}

// OnBeforeWrite registers fn to run before the header is committed. Hooks
// run in registration order. Registering after the commit has no effect.
func (w *ResponseWriter) OnBeforeWrite(fn func()) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.written {
		w.beforeWrite = append(w.beforeWrite, fn)
	}
}

// commit marks the response written with code and runs the hooks. It
// reports false when the response was already committed.
func (w *ResponseWriter) commit(code int) bool {
	w.mu.Lock()
	if w.written {
		w.mu.Unlock()
		return false
	}
	w.written = true
	w.status = code
	hooks := w.beforeWrite
	w.beforeWrite = nil
	w.mu.Unlock()

	for _, fn := range hooks {
		fn()
	}
	w.ResponseWriter.WriteHeader(code)
	return true
}

// WriteHeader commits the status. Only the first call has an effect.
func (w *ResponseWriter) WriteHeader(code int) {
	w.commit(code)
}

// Write commits a 200 status if nothing was committed yet.
func (w *ResponseWriter) Write(b []byte) (int, error) {
	w.commit(http.StatusOK)
	n, err := w.ResponseWriter.Write(b)

	w.mu.Lock()
	w.size += int64(n)
	w.mu.Unlock()
	return n, err
}

// Status is the committed status, 200 before the commit.
func (w *ResponseWriter) Status() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.status
}

// Size is the number of body bytes written.
func (w *ResponseWriter) Size() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.size
}

// Written reports whether the header was committed or the connection
// hijacked.
func (w *ResponseWriter) Written() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.written
}

// Flush implements http.Flusher.
func (w *ResponseWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Hijack implements http.Hijacker for websocket upgrades.
func (w *ResponseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, http.ErrNotSupported
	}
	conn, rw, err := h.Hijack()
	if err != nil {
		return nil, nil, err
	}

	w.mu.Lock()
	w.written = true
	w.hijacked = true
	w.status = http.StatusSwitchingProtocols
	w.beforeWrite = nil
	w.mu.Unlock()
	return conn, rw, nil
}

// Hijacked reports whether the connection was taken over.
func (w *ResponseWriter) Hijacked() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.hijacked
}

// Unwrap returns the underlying writer for http.ResponseController.
func (w *ResponseWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
