package internal

import (
	"fmt"
	"mime/multipart"
	"net/http"
	"net/url"
	"reflect"

	"github.com/dmitrymomot/keel/pkg/encoder"
)

// source is where a parameter value comes from.
type source uint8

const (
	srcReserved source = iota
	srcPath
	srcQuery
	srcHeader
	srcCookie
	srcSecurity
	srcDependency
	srcBody
	srcForm
	srcFile
)

func (s source) String() string {
	switch s {
	case srcReserved:
		return "reserved"
	case srcPath:
		return "path"
	case srcQuery:
		return "query"
	case srcHeader:
		return "header"
	case srcCookie:
		return "cookie"
	case srcSecurity:
		return "security"
	case srcDependency:
		return "dependency"
	case srcBody:
		return "body"
	case srcForm:
		return "form"
	case srcFile:
		return "file"
	}
	return "unknown"
}

// bodyEncoding is the wire format of a request body.
type bodyEncoding uint8

const (
	bodyJSON bodyEncoding = iota
	bodyURLEncoded
	bodyMultipart
)

func (b bodyEncoding) String() string {
	switch b {
	case bodyURLEncoded:
		return "application/x-www-form-urlencoded"
	case bodyMultipart:
		return "multipart/form-data"
	}
	return "application/json"
}

// UploadFile is a file received in a multipart body. Open streams its content.
type UploadFile = multipart.FileHeader

// Cookies holds the request cookies by name.
type Cookies map[string]string

var (
	uploadType      = reflect.TypeFor[*UploadFile]()
	uploadSliceType = reflect.TypeFor[[]*UploadFile]()
)

// reservedTypes maps reserved parameter names to the framework type they bind.
var reservedTypes = map[string]reflect.Type{
	"request": reflect.TypeFor[*http.Request](),
	"socket":  reflect.TypeFor[*Socket](),
	"headers": reflect.TypeFor[http.Header](),
	"cookies": reflect.TypeFor[Cookies](),
	"query":   reflect.TypeFor[url.Values](),
	"state":   reflect.TypeFor[*State](),
	"context": contextType,
}

// bodyNames select the request body when left untagged.
var bodyNames = map[string]struct{}{"data": {}, "payload": {}}

// param is one input field bound to a source.
type param struct {
	fieldSpec
	source   source
	key      string // chi URL key, dependency key or scheme name
	category encoder.Category
	required bool
	sequence bool
}

// location is the error location of a parameter.
func (p *param) location() string {
	switch p.source {
	case srcForm, srcFile:
		return "body"
	}
	return p.source.String()
}

// bodySpec describes how the request body is bound.
type bodySpec struct {
	whole    *param
	fields   []*param
	encoding bodyEncoding
}

// plan is the binding recipe for one input struct on one route.
type plan struct {
	typ      reflect.Type
	body     *bodySpec
	reserved []*param
	path     []*param
	query    []*param
	header   []*param
	cookie   []*param
	security []*param
	deps     []*param
}

// all returns every parameter in assignment order.
func (p *plan) all() []*param {
	out := make([]*param, 0, len(p.reserved)+len(p.path)+len(p.query)+len(p.header)+len(p.cookie)+len(p.security)+len(p.deps))
	out = append(out, p.reserved...)
	out = append(out, p.path...)
	out = append(out, p.query...)
	out = append(out, p.header...)
	out = append(out, p.cookie...)
	out = append(out, p.security...)
	out = append(out, p.deps...)
	if p.body != nil {
		if p.body.whole != nil {
			out = append(out, p.body.whole)
		}
		out = append(out, p.body.fields...)
	}
	return out
}

// planEnv is what a route exposes to plan construction.
type planEnv struct {
	registry *encoder.Registry
	path     map[string]pathParam
	deps     map[string]*Provider
	schemes  map[string]SecurityScheme
	route    string
}

// buildPlan resolves every field of t to a source.
func buildPlan(t reflect.Type, env *planEnv) (*plan, error) {
	fields, err := inspectFields(t)
	if err != nil {
		return nil, configErr(env.route, "", fmt.Errorf("%w: input %s: %w", ErrInvalidHandler, t, err), "")
	}

	p := &plan{typ: t}
	external := make(map[string]string)
	for _, f := range fields {
		prm, err := resolveParam(f, env)
		if err != nil {
			return nil, err
		}

		switch prm.source {
		case srcReserved, srcDependency, srcSecurity, srcBody:
		default:
			k := prm.source.String() + ":" + prm.alias
			if other, dup := external[k]; dup {
				return nil, configErr(env.route, f.goName, ErrDuplicateParameter, "%s %q is also bound by %s", prm.source, prm.alias, other)
			}
			external[k] = f.goName
		}

		switch prm.source {
		case srcReserved:
			p.reserved = append(p.reserved, prm)
		case srcPath:
			p.path = append(p.path, prm)
		case srcQuery:
			p.query = append(p.query, prm)
		case srcHeader:
			p.header = append(p.header, prm)
		case srcCookie:
			p.cookie = append(p.cookie, prm)
		case srcSecurity:
			p.security = append(p.security, prm)
		case srcDependency:
			p.deps = append(p.deps, prm)
		case srcBody, srcForm, srcFile:
			if err := p.addBody(prm, env.route); err != nil {
				return nil, err
			}
		}
	}
	return p, nil
}

func (p *plan) addBody(prm *param, route string) error {
	if p.body == nil {
		p.body = &bodySpec{}
	}
	b := p.body
	switch prm.source {
	case srcBody:
		if b.whole != nil {
			return configErr(route, prm.goName, ErrMultipleBodies, "%s and %s", b.whole.goName, prm.goName)
		}
		if len(b.fields) > 0 {
			return configErr(route, prm.goName, ErrMixedBody, "")
		}
		b.whole = prm
		switch prm.alias {
		case "", "json":
			b.encoding = bodyJSON
		case "form", "urlencoded":
			b.encoding = bodyURLEncoded
		case "multipart":
			b.encoding = bodyMultipart
		default:
			return configErr(route, prm.goName, ErrUnsupportedParam, "unknown body encoding %q", prm.alias)
		}
		if b.encoding != bodyJSON && prm.category != encoder.CategoryAggregate {
			return configErr(route, prm.goName, ErrUnsupportedParam, "form bodies bind to structs, got %s", prm.typ)
		}
	default:
		if b.whole != nil {
			return configErr(route, prm.goName, ErrMixedBody, "")
		}
		b.fields = append(b.fields, prm)
		if prm.source == srcFile {
			b.encoding = bodyMultipart
		} else if b.encoding == bodyJSON {
			b.encoding = bodyURLEncoded
		}
	}
	return nil
}

// resolveParam picks the source of one field.
func resolveParam(f fieldSpec, env *planEnv) (*param, error) {
	prm := &param{fieldSpec: f}
	prm.category = env.registry.Category(f.typ)
	fail := func(sentinel error, format string, args ...any) (*param, error) {
		return nil, configErr(env.route, f.goName, sentinel, format, args...)
	}

	name := f.alias
	if name == "" {
		name = f.name
	}

	switch f.marker {
	case tagPath:
		pp, ok := env.path[name]
		if !ok {
			return fail(ErrUnknownPathParam, "%q", name)
		}
		prm.source, prm.alias, prm.key = srcPath, name, pp.key
	case tagQuery:
		if _, clash := env.path[name]; clash {
			return fail(ErrAmbiguousParameter, "query %q shadows a path parameter", name)
		}
		if _, clash := env.deps[name]; clash {
			return fail(ErrAmbiguousParameter, "query %q shadows a dependency", name)
		}
		prm.source, prm.alias = srcQuery, name
	case tagHeader:
		if f.alias == "" {
			name = headerName(f.name)
		}
		prm.source, prm.alias = srcHeader, http.CanonicalHeaderKey(name)
	case tagCookie:
		prm.source, prm.alias = srcCookie, name
	case tagBody:
		prm.source, prm.alias = srcBody, f.alias
	case tagForm:
		prm.source, prm.alias = srcForm, name
	case tagFile:
		if f.typ != uploadType && f.typ != uploadSliceType {
			return fail(ErrUnsupportedParam, "file fields must be *UploadFile or []*UploadFile, got %s", f.typ)
		}
		prm.source, prm.alias = srcFile, name
		prm.sequence = f.typ == uploadSliceType
	case tagDep:
		if _, ok := env.deps[name]; !ok && !f.optional {
			return fail(ErrUnknownDependency, "%q", name)
		}
		prm.source, prm.alias, prm.key = srcDependency, name, name
	case tagSecurity:
		scheme, ok := env.schemes[name]
		if !ok {
			return fail(ErrUnknownScheme, "%q", name)
		}
		if ct := scheme.CredentialType(); ct != nil && !ct.AssignableTo(f.typ) {
			return fail(ErrUnsupportedParam, "scheme %q yields %s, field is %s", name, ct, f.typ)
		}
		prm.source, prm.alias, prm.key = srcSecurity, name, name
	default:
		if err := resolveUntagged(prm, env); err != nil {
			return nil, err
		}
	}

	if err := checkParam(prm); err != nil {
		return nil, configErr(env.route, f.goName, err, "")
	}
	return prm, nil
}

// resolveUntagged applies the precedence path > reserved > dependency > query.
func resolveUntagged(prm *param, env *planEnv) error {
	name := prm.name
	if pp, ok := env.path[name]; ok {
		if _, dep := env.deps[name]; dep {
			return configErr(env.route, prm.goName, ErrAmbiguousParameter, "%q is both a path parameter and a dependency", name)
		}
		prm.source, prm.alias, prm.key = srcPath, name, pp.key
		return nil
	}
	if rt, ok := reservedTypes[name]; ok {
		if prm.typ != rt {
			return configErr(env.route, prm.goName, ErrReservedName, "%q must be %s, got %s", name, rt, prm.typ)
		}
		prm.source, prm.alias = srcReserved, name
		return nil
	}
	if _, ok := bodyNames[name]; ok {
		prm.source = srcBody
		return nil
	}
	if _, ok := env.deps[name]; ok {
		prm.source, prm.alias, prm.key = srcDependency, name, name
		return nil
	}
	prm.source, prm.alias = srcQuery, name
	return nil
}

// checkParam validates the field type against its source and sets the
// required and sequence flags.
func checkParam(prm *param) error {
	nullable := prm.typ.Kind() == reflect.Pointer || prm.typ.Kind() == reflect.Interface
	prm.required = !prm.hasDef && !nullable && !prm.optional

	switch prm.source {
	case srcPath, srcQuery, srcHeader, srcCookie, srcForm:
		switch prm.category {
		case encoder.CategoryScalar:
		case encoder.CategorySequence:
			if prm.source == srcPath || prm.source == srcCookie {
				return fmt.Errorf("%w: %s parameters cannot be sequences", ErrUnsupportedParam, prm.source)
			}
			prm.sequence = true
		default:
			return fmt.Errorf("%w: %s parameter of type %s", ErrUnsupportedParam, prm.source, prm.typ)
		}
	case srcBody:
		if prm.category == encoder.CategoryUnknown {
			return fmt.Errorf("%w: body of type %s", ErrUnsupportedParam, prm.typ)
		}
	case srcDependency, srcSecurity:
		prm.required = false
	}

	if prm.rules != nil && prm.source != srcBody && prm.source != srcFile {
		if err := prm.rules.Supports(prm.typ); err != nil {
			return err
		}
	}
	return nil
}
