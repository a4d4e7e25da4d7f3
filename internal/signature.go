package internal

import (
	"context"
	"fmt"
	"net/http"
	"reflect"
	"strings"
	"unicode"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/dmitrymomot/keel/pkg/sanitizer"
	"github.com/dmitrymomot/keel/pkg/validator"
)

var (
	errorType      = reflect.TypeFor[error]()
	stdContextType = reflect.TypeFor[context.Context]()
	contextType    = reflect.TypeFor[Context]()
)

// callShape describes how to invoke a handler or provider.
type callShape struct {
	raw   HandlerFunc
	fn    reflect.Value
	in    reflect.Type // input struct, nil when absent
	out   reflect.Type // result type, nil for error-only functions
	inPtr bool
}

// analyzeHandler accepts raw handlers, http.Handler values and typed
// functions of the form func(ctx[, in]) ([Out, ]error).
func analyzeHandler(h any) (*callShape, error) {
	switch fn := h.(type) {
	case nil:
		return nil, fmt.Errorf("%w: nil handler", ErrInvalidHandler)
	case HandlerFunc:
		return &callShape{raw: fn}, nil
	case func(Context) error:
		return &callShape{raw: fn}, nil
	case http.Handler:
		return &callShape{raw: func(c Context) error {
			fn.ServeHTTP(c.Response(), c.Request())
			return nil
		}}, nil
	case func(http.ResponseWriter, *http.Request):
		return &callShape{raw: func(c Context) error {
			fn(c.Response(), c.Request())
			return nil
		}}, nil
	}
	return analyzeFunc(reflect.ValueOf(h), ErrInvalidHandler, false)
}

// analyzeProvider accepts func(ctx[, in]) (T, error).
func analyzeProvider(fn any) (*callShape, error) {
	if fn == nil {
		return nil, fmt.Errorf("%w: nil provider", ErrInvalidProvider)
	}
	return analyzeFunc(reflect.ValueOf(fn), ErrInvalidProvider, true)
}

func analyzeFunc(v reflect.Value, sentinel error, needResult bool) (*callShape, error) {
	t := v.Type()
	if t.Kind() != reflect.Func || v.IsNil() {
		return nil, fmt.Errorf("%w: %s is not a function", sentinel, t)
	}
	if t.IsVariadic() || t.NumIn() < 1 || t.NumIn() > 2 {
		return nil, fmt.Errorf("%w: %s must take a context and an optional input struct", sentinel, t)
	}
	if first := t.In(0); first != stdContextType && first != contextType {
		return nil, fmt.Errorf("%w: first argument of %s must be context.Context or Context", sentinel, t)
	}

	s := &callShape{fn: v}
	if t.NumIn() == 2 {
		in := t.In(1)
		if in.Kind() == reflect.Pointer {
			s.inPtr = true
			in = in.Elem()
		}
		if in.Kind() != reflect.Struct {
			return nil, fmt.Errorf("%w: input of %s must be a struct or pointer to struct", sentinel, t)
		}
		s.in = in
	}

	switch t.NumOut() {
	case 1:
		if needResult {
			return nil, fmt.Errorf("%w: %s must return (T, error)", sentinel, t)
		}
	case 2:
		s.out = t.Out(0)
	default:
		return nil, fmt.Errorf("%w: %s must return ([T, ]error)", sentinel, t)
	}
	if t.Out(t.NumOut()-1) != errorType {
		return nil, fmt.Errorf("%w: last result of %s must be error", sentinel, t)
	}
	return s, nil
}

// call invokes a typed function. in must be an addressable struct value
// when the function takes an input.
func (s *callShape) call(c Context, in reflect.Value) (reflect.Value, error) {
	args := make([]reflect.Value, 1, 2)
	args[0] = reflect.ValueOf(c)
	if s.in != nil {
		if s.inPtr {
			args = append(args, in.Addr())
		} else {
			args = append(args, in)
		}
	}

	outs := s.fn.Call(args)
	var err error
	if last := outs[len(outs)-1]; !last.IsNil() {
		err = last.Interface().(error)
	}
	if s.out == nil {
		return reflect.Value{}, err
	}
	return outs[0], err
}

// Marker tags selecting a parameter source explicitly.
const (
	tagPath     = "path"
	tagQuery    = "query"
	tagHeader   = "header"
	tagCookie   = "cookie"
	tagBody     = "body"
	tagForm     = "form"
	tagFile     = "file"
	tagDep      = "dep"
	tagSecurity = "security"

	tagDefault = "default"
	tagSkip    = "keel"
)

var markerTags = []string{tagPath, tagQuery, tagHeader, tagCookie, tagBody, tagForm, tagFile, tagDep, tagSecurity}

// fieldSpec is the route-independent description of one input field.
type fieldSpec struct {
	typ      reflect.Type
	rules    *validator.FieldRules
	name     string
	goName   string
	marker   string
	alias    string
	def      string
	index    []int
	sanitize []string
	hasDef   bool
	optional bool
}

const fieldCacheSize = 512

type fieldsEntry struct {
	err    error
	fields []fieldSpec
}

var fieldCache, _ = lru.New[reflect.Type, fieldsEntry](fieldCacheSize)

// inspectFields lists the input fields of struct type t. Results are cached.
func inspectFields(t reflect.Type) ([]fieldSpec, error) {
	if e, ok := fieldCache.Get(t); ok {
		return e.fields, e.err
	}
	fields, err := collectFields(t, nil)
	fieldCache.Add(t, fieldsEntry{fields: fields, err: err})
	return fields, err
}

func collectFields(t reflect.Type, parent []int) ([]fieldSpec, error) {
	var out []fieldSpec
	for i := range t.NumField() {
		sf := t.Field(i)
		if sf.Tag.Get(tagSkip) == "-" {
			continue
		}
		index := append(append([]int(nil), parent...), i)

		marker, value, err := fieldMarker(sf)
		if err != nil {
			return nil, err
		}
		if !sf.IsExported() {
			if marker != "" {
				return nil, fmt.Errorf("%w: unexported field %s has a %s tag", ErrUnsupportedParam, sf.Name, marker)
			}
			continue
		}
		if sf.Anonymous && marker == "" {
			if sf.Type.Kind() == reflect.Struct {
				nested, err := collectFields(sf.Type, index)
				if err != nil {
					return nil, err
				}
				out = append(out, nested...)
				continue
			}
			if sf.Type.Kind() == reflect.Pointer && sf.Type.Elem().Kind() == reflect.Struct {
				return nil, fmt.Errorf("%w: embedded pointer %s", ErrUnsupportedParam, sf.Name)
			}
		}

		spec := fieldSpec{
			typ:    sf.Type,
			name:   snakeCase(sf.Name),
			goName: sf.Name,
			marker: marker,
			index:  index,
		}
		alias, flags, _ := strings.Cut(value, ",")
		spec.alias = strings.TrimSpace(alias)
		for flag := range strings.SplitSeq(flags, ",") {
			if strings.TrimSpace(flag) == "optional" {
				spec.optional = true
			}
		}
		spec.def, spec.hasDef = sf.Tag.Lookup(tagDefault)

		if tag, ok := sf.Tag.Lookup(validator.TagName); ok && tag != "" && tag != "-" {
			rules, err := validator.ParseTag(tag)
			if err != nil {
				return nil, fmt.Errorf("field %s: %w", sf.Name, err)
			}
			spec.rules = rules
		}
		if tag, ok := sf.Tag.Lookup(sanitizer.TagName); ok && tag != "" && tag != "-" {
			names, err := sanitizer.Parse(tag)
			if err != nil {
				return nil, fmt.Errorf("field %s: %w", sf.Name, err)
			}
			spec.sanitize = names
		}
		out = append(out, spec)
	}
	return out, nil
}

// fieldMarker returns the single marker tag on sf, if any.
func fieldMarker(sf reflect.StructField) (string, string, error) {
	var marker, value string
	for _, key := range markerTags {
		v, ok := sf.Tag.Lookup(key)
		if !ok {
			continue
		}
		if marker != "" {
			return "", "", fmt.Errorf("%w: field %s has both %s and %s tags", ErrAmbiguousParameter, sf.Name, marker, key)
		}
		marker, value = key, v
	}
	return marker, value, nil
}

// snakeCase converts a Go identifier to snake_case, keeping acronyms whole:
// UserID -> user_id, HTTPServer -> http_server.
func snakeCase(s string) string {
	runes := []rune(s)
	var b strings.Builder
	for i, r := range runes {
		if unicode.IsUpper(r) {
			if i > 0 {
				prev := runes[i-1]
				nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
				if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower) {
					b.WriteByte('_')
				}
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// headerName turns a declared name into a canonical header: x_api_key -> X-Api-Key.
func headerName(name string) string {
	return http.CanonicalHeaderKey(strings.ReplaceAll(name, "_", "-"))
}
