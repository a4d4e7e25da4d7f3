package internal

import (
	"reflect"
	"slices"

	"github.com/invopop/jsonschema"
)

// ParamDescription documents one bound input.
type ParamDescription struct {
	Constraints map[string]string `json:"constraints,omitempty"`
	Name        string            `json:"name"`
	Field       string            `json:"field"`
	Location    string            `json:"location"`
	Type        string            `json:"type"`
	Default     string            `json:"default,omitempty"`
	Dependency  string            `json:"dependency,omitempty"`
	Required    bool              `json:"required"`
}

// BodyDescription documents the request body.
type BodyDescription struct {
	Schema    *jsonschema.Schema `json:"schema,omitempty"`
	MediaType string             `json:"media_type"`
	Fields    []ParamDescription `json:"fields,omitempty"`
	Required  bool               `json:"required"`
}

// RouteDescription documents one endpoint.
type RouteDescription struct {
	Body         *BodyDescription   `json:"body,omitempty"`
	Response     *jsonschema.Schema `json:"response,omitempty"`
	Path         string             `json:"path"`
	Name         string             `json:"name,omitempty"`
	Summary      string             `json:"summary,omitempty"`
	Description  string             `json:"description,omitempty"`
	ResponseType string             `json:"response_type,omitempty"`
	Methods      []string           `json:"methods"`
	Params       []ParamDescription `json:"params,omitempty"`
	Tags         []string           `json:"tags,omitempty"`
	Security     []string           `json:"security,omitempty"`
	Dependencies []string           `json:"dependencies,omitempty"`
	Status       int                `json:"status"`
	Deprecated   bool               `json:"deprecated,omitempty"`
	WebSocket    bool               `json:"websocket,omitempty"`
}

var (
	replyType     = reflect.TypeFor[Reply]()
	responderType = reflect.TypeFor[Responder]()
	componentType = reflect.TypeFor[Component]()
)

// Describe lists the endpoints of a built application in registration order.
// Endpoints marked ExcludeFromSchema are left out.
func (a *App) Describe() []RouteDescription {
	out := make([]RouteDescription, 0, len(a.endpoints))
	for _, e := range a.endpoints {
		if e.excluded {
			continue
		}
		out = append(out, e.describe())
	}
	return out
}

func (e *endpoint) describe() RouteDescription {
	d := RouteDescription{
		Methods:    slices.Clone(e.methods),
		Path:       e.path,
		Name:       e.name,
		Tags:       slices.Clone(e.tags),
		Status:     e.status,
		Deprecated: e.deprecated,
		WebSocket:  e.websocket,
		Security:   slices.Clone(e.secured),
	}
	if e.decl != nil {
		d.Summary = e.decl.summary
		d.Description = e.decl.description
	}
	if d.Status == 0 && len(e.methods) > 0 {
		d.Status = defaultStatus(e.methods[0])
	}

	if out := e.shape.out; out != nil {
		d.ResponseType = out.String()
		if describable(out) {
			d.Response = reflectSchema(out)
		}
	}

	if e.plan == nil {
		return d
	}
	seen := make(map[string]bool)
	e.describePlan(&d, e.plan, "", seen)
	return d
}

// describePlan adds the parameters of p and of every provider it reaches.
func (e *endpoint) describePlan(d *RouteDescription, p *plan, dep string, seen map[string]bool) {
	for _, prm := range p.all() {
		switch prm.source {
		case srcReserved:
		case srcDependency:
			if seen["dep:"+prm.key] {
				continue
			}
			seen["dep:"+prm.key] = true
			d.Dependencies = append(d.Dependencies, prm.key)
			if bp, ok := e.providers[prm.key]; ok && bp.plan != nil {
				e.describePlan(d, bp.plan, prm.key, seen)
			}
		case srcSecurity:
			if !slices.Contains(d.Security, prm.key) {
				d.Security = append(d.Security, prm.key)
			}
		case srcBody:
			if d.Body == nil {
				d.Body = &BodyDescription{
					MediaType: p.body.encoding.String(),
					Required:  prm.required,
					Schema:    reflectSchema(prm.typ),
				}
			}
		case srcForm, srcFile:
			if d.Body == nil {
				d.Body = &BodyDescription{MediaType: p.body.encoding.String()}
			}
			d.Body.Fields = append(d.Body.Fields, describeParam(prm, dep))
			d.Body.Required = d.Body.Required || prm.required
		default:
			key := prm.source.String() + ":" + prm.alias
			if seen[key] {
				continue
			}
			seen[key] = true
			d.Params = append(d.Params, describeParam(prm, dep))
		}
	}
}

func describeParam(prm *param, dep string) ParamDescription {
	pd := ParamDescription{
		Name:       prm.alias,
		Field:      prm.goName,
		Location:   prm.location(),
		Type:       schemaType(prm.typ),
		Required:   prm.required,
		Dependency: dep,
	}
	if prm.hasDef {
		pd.Default = prm.def
	}
	if prm.rules != nil {
		pd.Constraints = prm.rules.Constraints()
	}
	return pd
}

func describable(t reflect.Type) bool {
	switch {
	case t == replyType || t == reflect.PointerTo(replyType):
		return false
	case t.Kind() == reflect.Interface:
		return false
	case t.Implements(responderType) || t.Implements(componentType):
		return false
	}
	return true
}

func reflectSchema(t reflect.Type) *jsonschema.Schema {
	r := &jsonschema.Reflector{
		DoNotReference:            true,
		ExpandedStruct:            true,
		AllowAdditionalProperties: true,
	}
	return r.ReflectFromType(t)
}

// schemaType names the JSON type of a parameter.
func schemaType(t reflect.Type) string {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	switch t {
	case uploadType.Elem():
		return "file"
	case uploadSliceType:
		return "array"
	}
	switch t.Kind() {
	case reflect.Bool:
		return "boolean"
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return "integer"
	case reflect.Float32, reflect.Float64:
		return "number"
	case reflect.Slice, reflect.Array:
		if t.Elem().Kind() == reflect.Uint8 {
			return "string"
		}
		return "array"
	case reflect.Map, reflect.Struct:
		if t.Kind() == reflect.Struct && t.PkgPath() == "time" {
			return "string"
		}
		return "object"
	}
	return "string"
}
