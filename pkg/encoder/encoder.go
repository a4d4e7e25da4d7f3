package encoder

import (
	"errors"
	"fmt"
	"reflect"
)

// ErrUnsupportedType is returned when no encoder recognizes a type.
var ErrUnsupportedType = errors.New("encoder: unsupported type")

// Category groups types by how their raw input is shaped.
type Category uint8

const (
	CategoryUnknown Category = iota
	CategoryScalar
	CategoryJSON
	CategorySequence
	CategoryMapping
	CategoryAggregate
)

func (c Category) String() string {
	switch c {
	case CategoryScalar:
		return "scalar"
	case CategoryJSON:
		return "json"
	case CategorySequence:
		return "sequence"
	case CategoryMapping:
		return "mapping"
	case CategoryAggregate:
		return "aggregate"
	default:
		return "unknown"
	}
}

// Encoder converts values of the types it recognizes.
type Encoder interface {
	Recognizes(t reflect.Type) bool
	Encode(r *Registry, t reflect.Type, raw any) (reflect.Value, error)
	Serialize(r *Registry, v reflect.Value) (any, error)
}

// Categorized is implemented by encoders that know the input shape they expect.
// Encoders that do not implement it are treated as scalars.
type Categorized interface {
	Category() Category
}

// Error reports malformed input for a field.
type Error struct {
	Field   string
	Message string
}

func (e *Error) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

// AsError extracts an *Error from err.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

func errorf(format string, args ...any) *Error {
	return &Error{Message: fmt.Sprintf(format, args...)}
}

// Registry is an ordered set of encoders. It must not be modified once it is
// shared between goroutines.
type Registry struct {
	custom   []Encoder
	builtins []Encoder
}

// New returns a registry with the given custom encoders ahead of the built-ins.
func New(custom ...Encoder) *Registry {
	return &Registry{
		custom: append([]Encoder(nil), custom...),
		builtins: []Encoder{
			scalarEncoder{},
			jsonEncoder{},
			sequenceEncoder{},
			mappingEncoder{},
			aggregateEncoder{},
		},
	}
}

// Register adds encoders ahead of the built-ins. Later registrations are
// consulted after earlier custom ones.
func (r *Registry) Register(enc ...Encoder) {
	r.custom = append(r.custom, enc...)
}

// Lookup returns the first encoder recognizing t.
func (r *Registry) Lookup(t reflect.Type) (Encoder, bool) {
	for _, e := range r.custom {
		if e.Recognizes(t) {
			return e, true
		}
	}
	for _, e := range r.builtins {
		if e.Recognizes(t) {
			return e, true
		}
	}
	return nil, false
}

// Category returns the input shape for t, looking through pointers.
func (r *Registry) Category(t reflect.Type) Category {
	t = indirect(t)
	e, ok := r.Lookup(t)
	if !ok {
		return CategoryUnknown
	}
	if c, ok := e.(Categorized); ok {
		return c.Category()
	}
	return CategoryScalar
}

// Recognizes reports whether some encoder handles t.
func (r *Registry) Recognizes(t reflect.Type) bool {
	_, ok := r.Lookup(indirect(t))
	return ok
}

// Encode builds a value of type t from raw. Pointer types are allocated and
// encoded through their element type; a nil raw yields the zero value.
func (r *Registry) Encode(t reflect.Type, raw any) (reflect.Value, error) {
	if raw == nil {
		return reflect.Zero(t), nil
	}
	if rv := reflect.ValueOf(raw); t.Kind() != reflect.Interface && rv.Type().AssignableTo(t) {
		return rv, nil
	}
	if t.Kind() == reflect.Pointer {
		elem, err := r.Encode(t.Elem(), raw)
		if err != nil {
			return reflect.Value{}, err
		}
		ptr := reflect.New(t.Elem())
		ptr.Elem().Set(elem)
		return ptr, nil
	}

	e, ok := r.Lookup(t)
	if !ok {
		return reflect.Value{}, fmt.Errorf("%w: %s", ErrUnsupportedType, t)
	}
	return e.Encode(r, t, raw)
}

// Serialize converts v into a value encoding/json can write.
func (r *Registry) Serialize(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	return r.SerializeValue(reflect.ValueOf(v))
}

// SerializeValue is Serialize for an already reflected value.
func (r *Registry) SerializeValue(v reflect.Value) (any, error) {
	for v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return nil, nil
		}
		v = v.Elem()
	}
	e, ok := r.Lookup(v.Type())
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, v.Type())
	}
	return e.Serialize(r, v)
}

func indirect(t reflect.Type) reflect.Type {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t
}
