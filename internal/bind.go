package internal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"reflect"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/santhosh-tekuri/jsonschema/v6"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/dmitrymomot/keel/pkg/encoder"
	"github.com/dmitrymomot/keel/pkg/sanitizer"
	"github.com/dmitrymomot/keel/pkg/validator"
)

const msgRequired = "field required"

// bind fills dst, an addressable struct value, following p. Parameter
// failures yield a 400 ValidationError, body failures a 422 one. When depKey
// is set the input belongs to that provider and failures are reported under it.
func (e *endpoint) bind(c *requestContext, p *plan, dst reflect.Value, depKey string) error {
	err := e.bindInput(c, p, dst)
	if depKey == "" || err == nil {
		return err
	}
	var ve *ValidationError
	if errors.As(err, &ve) && ve.Dependency == "" {
		return tagDependency(ve, depKey)
	}
	return err
}

// tagDependency reports ve as a failure of the provider under key.
func tagDependency(ve *ValidationError, key string) *ValidationError {
	out := &ValidationError{
		Message:    ve.Message,
		Dependency: key,
		Status:     http.StatusUnprocessableEntity,
		Errors:     make([]FieldError, len(ve.Errors)),
	}
	for i, fe := range ve.Errors {
		fe.Location = append([]string{"dependency", key}, fe.Location...)
		out.Errors[i] = fe
	}
	return out
}

func (e *endpoint) bindInput(c *requestContext, p *plan, dst reflect.Value) error {
	for _, prm := range p.reserved {
		dst.FieldByIndex(prm.index).Set(c.reservedValue(prm.alias))
	}

	var errs []FieldError
	errs = e.bindParams(c, p.path, dst, errs)
	errs = e.bindParams(c, p.query, dst, errs)
	errs = e.bindParams(c, p.header, dst, errs)
	errs = e.bindParams(c, p.cookie, dst, errs)
	if len(errs) > 0 {
		return &ValidationError{Errors: errs, Status: http.StatusBadRequest}
	}

	for _, prm := range p.security {
		if err := e.bindSecurity(c, prm, dst); err != nil {
			return err
		}
	}

	for _, prm := range p.deps {
		if _, ok := e.providers[prm.key]; !ok {
			continue
		}
		v, err := e.resolve(c, prm.key)
		if err != nil {
			return err
		}
		if err := assign(dst.FieldByIndex(prm.index), v); err != nil {
			return &DependencyError{Key: prm.key, Err: err}
		}
	}

	if p.body != nil {
		errs, err := e.bindBody(c, p.body, dst)
		if err != nil {
			return err
		}
		if len(errs) > 0 {
			return &ValidationError{Errors: errs, Status: http.StatusUnprocessableEntity}
		}
	}
	return nil
}

// reservedValue returns the framework value behind a reserved name.
func (c *requestContext) reservedValue(name string) reflect.Value {
	switch name {
	case "request":
		return reflect.ValueOf(c.request)
	case "socket":
		return reflect.ValueOf(c.socket)
	case "headers":
		return reflect.ValueOf(c.request.Header)
	case "cookies":
		ck := make(Cookies)
		for _, cookie := range c.request.Cookies() {
			if _, seen := ck[cookie.Name]; !seen {
				ck[cookie.Name] = cookie.Value
			}
		}
		return reflect.ValueOf(ck)
	case "query":
		return reflect.ValueOf(c.queryValues())
	case "state":
		return reflect.ValueOf(c.app.state)
	}
	v := reflect.New(contextType).Elem()
	v.Set(reflect.ValueOf(c))
	return v
}

// rawValue looks up the request value of a scalar or sequence parameter.
func (c *requestContext) rawValue(prm *param) (any, bool) {
	var values []string
	switch prm.source {
	case srcPath:
		rctx := chi.RouteContext(c.request.Context())
		if rctx == nil {
			return nil, false
		}
		v := rctx.URLParam(prm.key)
		if c.request.URL.RawPath != "" {
			if unescaped, err := url.PathUnescape(v); err == nil {
				v = unescaped
			}
		}
		return v, true
	case srcQuery:
		values = c.queryValues()[prm.alias]
	case srcHeader:
		values = c.request.Header.Values(prm.alias)
	case srcCookie:
		ck, err := c.request.Cookie(prm.alias)
		if err != nil {
			return nil, false
		}
		return ck.Value, true
	case srcForm:
		if c.request.PostForm != nil {
			values = c.request.PostForm[prm.alias]
		}
	}
	if len(values) == 0 {
		return nil, false
	}
	if prm.sequence {
		return values, true
	}
	return values[0], true
}

func (e *endpoint) bindParams(c *requestContext, params []*param, dst reflect.Value, errs []FieldError) []FieldError {
	for _, prm := range params {
		raw, ok := c.rawValue(prm)
		if !ok {
			switch {
			case prm.hasDef:
				raw = prm.defaultValue()
			case prm.required:
				errs = append(errs, prm.fieldError(msgRequired))
				continue
			default:
				continue
			}
		}
		raw = sanitizeRaw(raw, prm.sanitize)

		v, err := e.app.registry.Encode(prm.typ, raw)
		if err != nil {
			errs = append(errs, prm.fieldError(encodeMessage(err)))
			continue
		}
		dst.FieldByIndex(prm.index).Set(v)
		for _, ve := range prm.rules.Check(prm.alias, v) {
			errs = append(errs, prm.fieldError(ve.Message))
		}
	}
	return errs
}

func (p *param) fieldError(msg string) FieldError {
	return FieldError{Location: []string{p.location()}, Field: p.alias, Message: msg}
}

// defaultValue is the raw form of the default tag. Sequence defaults are
// comma separated.
func (p *param) defaultValue() any {
	if p.sequence {
		if p.def == "" {
			return []string{}
		}
		return strings.Split(p.def, ",")
	}
	return p.def
}

func sanitizeRaw(raw any, names []string) any {
	if len(names) == 0 {
		return raw
	}
	switch v := raw.(type) {
	case string:
		return sanitizer.Apply(v, names...)
	case []string:
		out := make([]string, len(v))
		for i, s := range v {
			out[i] = sanitizer.Apply(s, names...)
		}
		return out
	}
	return raw
}

func encodeMessage(err error) string {
	if ee, ok := encoder.AsError(err); ok {
		return ee.Message
	}
	return err.Error()
}

func (e *endpoint) bindSecurity(c *requestContext, prm *param, dst reflect.Value) error {
	nullable := prm.typ.Kind() == reflect.Pointer || prm.typ.Kind() == reflect.Interface
	cred, err := e.authenticate(c, prm.key, prm.optional || nullable)
	if err != nil {
		return err
	}
	if cred == nil {
		return nil
	}
	if err := assign(dst.FieldByIndex(prm.index), cred); err != nil {
		return fmt.Errorf("security scheme %q: %w", prm.key, err)
	}
	return nil
}

// assign stores v into field, allocating a pointer when field is *T and v is T.
func assign(field reflect.Value, v any) error {
	if v == nil {
		field.SetZero()
		return nil
	}
	rv := reflect.ValueOf(v)
	switch {
	case rv.Type().AssignableTo(field.Type()):
		field.Set(rv)
	case field.Kind() == reflect.Pointer && rv.Type().AssignableTo(field.Type().Elem()):
		ptr := reflect.New(field.Type().Elem())
		ptr.Elem().Set(rv)
		field.Set(ptr)
	default:
		return fmt.Errorf("cannot assign %s to %s", rv.Type(), field.Type())
	}
	return nil
}

func bodyError(field, msg string) FieldError {
	return FieldError{Location: []string{"body"}, Field: field, Message: msg}
}

func (e *endpoint) bindBody(c *requestContext, b *bodySpec, dst reflect.Value) ([]FieldError, error) {
	if b.whole != nil && b.encoding == bodyJSON {
		return e.bindJSONBody(c, b.whole, dst)
	}

	if err := c.parseForm(); err != nil {
		if IsHTTPError(err) || errors.Is(err, ErrClientDisconnected) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		name := ""
		if b.whole != nil {
			name = b.whole.name
		}
		return []FieldError{bodyError(name, "invalid form body")}, nil
	}

	if b.whole != nil {
		var raw any = c.request.PostForm
		if c.request.MultipartForm != nil {
			raw = c.request.MultipartForm
		}
		return e.decodeAggregate(c, b.whole, raw, dst)
	}

	var errs []FieldError
	for _, prm := range b.fields {
		if prm.source == srcFile {
			errs = bindFile(c, prm, dst, errs)
			continue
		}
		errs = e.bindParams(c, []*param{prm}, dst, errs)
	}
	return errs, nil
}

func bindFile(c *requestContext, prm *param, dst reflect.Value, errs []FieldError) []FieldError {
	var files []*UploadFile
	if mf := c.request.MultipartForm; mf != nil {
		files = mf.File[prm.alias]
	}
	if len(files) == 0 {
		if prm.required {
			errs = append(errs, prm.fieldError(msgRequired))
		}
		return errs
	}
	field := dst.FieldByIndex(prm.index)
	if prm.sequence {
		field.Set(reflect.ValueOf(files))
	} else {
		field.Set(reflect.ValueOf(files[0]))
	}
	return errs
}

func (e *endpoint) bindJSONBody(c *requestContext, prm *param, dst reflect.Value) ([]FieldError, error) {
	body, err := c.readBody()
	if err != nil {
		return nil, err
	}
	if len(body) == 0 {
		if prm.required {
			return []FieldError{bodyError(prm.name, msgRequired)}, nil
		}
		return nil, nil
	}
	if mt := c.mediaType(); mt != "" && mt != "application/json" && !strings.HasSuffix(mt, "+json") {
		return nil, newHTTPError(http.StatusUnsupportedMediaType, "expected a JSON body", []HTTPErrorOption{WithDetail("got " + mt)})
	}

	if e.bodySchema != nil {
		if errs := validateSchema(e.bodySchema, body); len(errs) > 0 {
			return errs, nil
		}
	}

	var raw any = body
	if prm.category == encoder.CategoryScalar {
		var decoded any
		if err := json.Unmarshal(body, &decoded); err != nil {
			return []FieldError{bodyError(prm.name, "invalid JSON")}, nil
		}
		raw = decoded
	}
	return e.decodeAggregate(c, prm, raw, dst)
}

// decodeAggregate encodes raw into the body field, then sanitizes and
// validates the result.
func (e *endpoint) decodeAggregate(_ *requestContext, prm *param, raw any, dst reflect.Value) ([]FieldError, error) {
	v, err := e.app.registry.Encode(prm.typ, raw)
	if err != nil {
		field := prm.name
		if ee, ok := encoder.AsError(err); ok && ee.Field != "" {
			field = ee.Field
		}
		return []FieldError{bodyError(field, encodeMessage(err))}, nil
	}

	field := dst.FieldByIndex(prm.index)
	field.Set(v)

	target := structTarget(field)
	if target == nil {
		return nil, nil
	}
	if err := sanitizer.SanitizeStruct(target); err != nil {
		return nil, fmt.Errorf("sanitize body: %w", err)
	}
	verr := validator.Struct(target)
	if verr == nil {
		return nil, nil
	}
	ves := validator.ExtractValidationErrors(verr)
	if ves == nil {
		return nil, fmt.Errorf("validate body: %w", verr)
	}
	errs := make([]FieldError, 0, len(ves))
	for _, ve := range ves {
		errs = append(errs, bodyError(ve.Field, ve.Message))
	}
	return errs, nil
}

// structTarget returns a pointer to the struct held by field, or nil.
func structTarget(field reflect.Value) any {
	switch {
	case field.Kind() == reflect.Struct:
		return field.Addr().Interface()
	case field.Kind() == reflect.Pointer && !field.IsNil() && field.Elem().Kind() == reflect.Struct:
		return field.Interface()
	}
	return nil
}

var schemaPrinter = message.NewPrinter(language.English)

// compileBodySchema compiles a JSON Schema document.
func compileBodySchema(doc string) (*jsonschema.Schema, error) {
	parsed, err := jsonschema.UnmarshalJSON(strings.NewReader(doc))
	if err != nil {
		return nil, fmt.Errorf("parse body schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("body.json", parsed); err != nil {
		return nil, fmt.Errorf("add body schema: %w", err)
	}
	sch, err := compiler.Compile("body.json")
	if err != nil {
		return nil, fmt.Errorf("compile body schema: %w", err)
	}
	return sch, nil
}

// validateSchema checks body against sch and reports leaf failures.
func validateSchema(sch *jsonschema.Schema, body []byte) []FieldError {
	inst, err := jsonschema.UnmarshalJSON(strings.NewReader(string(body)))
	if err != nil {
		return []FieldError{bodyError("", "invalid JSON")}
	}
	err = sch.Validate(inst)
	if err == nil {
		return nil
	}
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return []FieldError{bodyError("", err.Error())}
	}
	var out []FieldError
	collectSchemaErrors(ve, &out)
	return out
}

func collectSchemaErrors(ve *jsonschema.ValidationError, out *[]FieldError) {
	if ve.ErrorKind != nil && len(ve.Causes) == 0 {
		*out = append(*out, bodyError(strings.Join(ve.InstanceLocation, "."), ve.ErrorKind.LocalizedString(schemaPrinter)))
	}
	for _, cause := range ve.Causes {
		collectSchemaErrors(cause, out)
	}
}
