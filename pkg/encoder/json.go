package encoder

import (
	"encoding/json"
	"reflect"
)

var (
	rawMessageType = reflect.TypeFor[json.RawMessage]()
	anyMapType     = reflect.TypeFor[map[string]any]()
)

// jsonEncoder handles untyped JSON documents.
type jsonEncoder struct{}

func (jsonEncoder) Category() Category { return CategoryJSON }

func (jsonEncoder) Recognizes(t reflect.Type) bool {
	return (t.Kind() == reflect.Interface && t.NumMethod() == 0) || t == rawMessageType || t == anyMapType
}

func (jsonEncoder) Encode(_ *Registry, t reflect.Type, raw any) (reflect.Value, error) {
	if t == rawMessageType {
		b, err := toJSONBytes(raw)
		if err != nil {
			return reflect.Value{}, err
		}
		return reflect.ValueOf(json.RawMessage(b)), nil
	}

	if b, ok := raw.([]byte); ok {
		out := reflect.New(t)
		if err := json.Unmarshal(b, out.Interface()); err != nil {
			return reflect.Value{}, jsonError(err)
		}
		return out.Elem(), nil
	}

	rv := reflect.ValueOf(raw)
	if rv.Type().AssignableTo(t) {
		out := reflect.New(t).Elem()
		out.Set(rv)
		return out, nil
	}
	return reflect.Value{}, errorf("expected a JSON object, got %T", raw)
}

func (jsonEncoder) Serialize(_ *Registry, v reflect.Value) (any, error) {
	return v.Interface(), nil
}

func toJSONBytes(raw any) ([]byte, error) {
	switch v := raw.(type) {
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	}
	b, err := json.Marshal(raw)
	if err != nil {
		return nil, errorf("value is not JSON encodable")
	}
	return b, nil
}

// jsonError maps encoding/json failures onto field-level errors.
func jsonError(err error) *Error {
	var (
		typeErr   *json.UnmarshalTypeError
		syntaxErr *json.SyntaxError
	)
	switch {
	case asErr(err, &typeErr):
		return &Error{Field: typeErr.Field, Message: "expected " + typeErr.Type.String() + ", got " + typeErr.Value}
	case asErr(err, &syntaxErr):
		return &Error{Message: "invalid JSON: " + syntaxErr.Error()}
	}
	if e, ok := AsError(err); ok {
		return e
	}
	return &Error{Message: "invalid JSON: " + err.Error()}
}
