package internal

import (
	"errors"
	"net/http"
	"reflect"
	"strings"
)

// Reply is a handler result that overrides the status or adds headers while
// leaving body encoding to the framework.
type Reply struct {
	Body   any
	Header http.Header
	Status int
}

// defaultStatus is the success status of a method when none is declared.
func defaultStatus(method string) int {
	switch method {
	case http.MethodPost:
		return http.StatusCreated
	case http.MethodDelete:
		return http.StatusNoContent
	}
	return http.StatusOK
}

// respond writes the handler result. Responses already written by the
// handler are left alone.
func (e *endpoint) respond(c *requestContext, out reflect.Value) error {
	if c.Written() {
		return nil
	}
	status := e.status
	if status == 0 {
		status = defaultStatus(c.request.Method)
	}

	var result any
	if out.IsValid() {
		result = out.Interface()
		if (out.Kind() == reflect.Pointer || out.Kind() == reflect.Interface) && out.IsNil() {
			result = nil
		}
	} else {
		e.applyDeclared(c)
		return c.NoContent(status)
	}

	if r, ok := result.(*Reply); ok && r != nil {
		result = *r
	}
	if r, ok := result.(Reply); ok {
		if r.Status != 0 {
			status = r.Status
		}
		for k, vs := range r.Header {
			for _, v := range vs {
				c.response.Header().Add(k, v)
			}
		}
		result = r.Body
	}

	if r, ok := result.(Responder); ok {
		e.applyDeclared(c)
		return r.Respond(c)
	}
	e.applyDeclared(c)

	if status == http.StatusNoContent || status == http.StatusNotModified {
		return c.NoContent(status)
	}

	switch v := result.(type) {
	case Component:
		return c.Render(status, v)
	case string:
		return c.String(status, v)
	case []byte:
		if c.response.Header().Get("Content-Type") == "" {
			c.response.Header().Set("Content-Type", "application/octet-stream")
		}
		c.response.WriteHeader(status)
		_, err := c.response.Write(v)
		return err
	case nil:
		return c.JSON(status, nil)
	}

	body, err := e.app.registry.Serialize(result)
	if err != nil {
		return ErrInternal("response serialization failed", WithError(err))
	}
	return c.JSON(status, body)
}

// applyDeclared adds the declared response headers and cookies the handler
// did not set itself.
func (e *endpoint) applyDeclared(c *requestContext) {
	h := c.response.Header()
	for _, kv := range e.headers {
		if h.Get(kv[0]) == "" {
			h.Set(kv[0], kv[1])
		}
	}
	for _, ck := range e.cookies {
		if !hasSetCookie(h, ck.Name) {
			http.SetCookie(c.response, ck)
		}
	}
}

func hasSetCookie(h http.Header, name string) bool {
	for _, line := range h.Values("Set-Cookie") {
		if strings.HasPrefix(line, name+"=") {
			return true
		}
	}
	return false
}

// errorBody is the default JSON error document.
type errorBody struct {
	Message   string       `json:"message"`
	Detail    string       `json:"detail,omitempty"`
	ErrorCode string       `json:"error_code,omitempty"`
	RequestID string       `json:"request_id,omitempty"`
	Errors    []FieldError `json:"errors,omitempty"`
	Status    int          `json:"status"`
}

// renderError writes err as JSON. Server errors only carry details in
// debug mode.
func (a *App) renderError(c *requestContext, err error) {
	status := StatusOf(err)
	body := errorBody{Status: status, Message: http.StatusText(status)}

	if he := AsHTTPError(err); he != nil && he.Code == status {
		if he.Message != "" {
			body.Message = he.Message
		}
		body.Detail = he.Detail
		body.ErrorCode = he.ErrorCode
		body.RequestID = he.RequestID
	} else if status < http.StatusInternalServerError {
		body.Message = err.Error()
	}

	var ve *ValidationError
	if errors.As(err, &ve) {
		body.Message = ve.Message
		if body.Message == "" {
			body.Message = "Validation failed"
		}
		body.Errors = ve.Errors
	}

	if status >= http.StatusInternalServerError {
		body.Detail = ""
		if a.debug {
			body.Detail = err.Error()
		}
	}
	if body.RequestID == "" {
		body.RequestID = c.response.Header().Get(requestIDHeader)
	}

	h := c.response.Header()
	var mna *MethodNotAllowedError
	if errors.As(err, &mna) && len(mna.Allowed) > 0 {
		h.Set("Allow", strings.Join(mna.Allowed, ", "))
	}
	var ch Challenger
	if errors.As(err, &ch) && ch.Challenge() != "" {
		h.Set("WWW-Authenticate", ch.Challenge())
	}

	if werr := c.JSON(status, body); werr != nil {
		c.LogDebug("failed to write error response", "error", werr)
	}
}

const requestIDHeader = "X-Request-ID"
