package encoder

import (
	"encoding/json"
	"errors"
	"net/url"
	"reflect"
	"strconv"
)

func asErr[T error](err error, target *T) bool {
	return errors.As(err, target)
}

// sequenceEncoder handles slices and arrays element by element.
type sequenceEncoder struct{}

func (sequenceEncoder) Category() Category { return CategorySequence }

func (sequenceEncoder) Recognizes(t reflect.Type) bool {
	return t.Kind() == reflect.Slice || t.Kind() == reflect.Array
}

func (sequenceEncoder) Encode(r *Registry, t reflect.Type, raw any) (reflect.Value, error) {
	var items []any
	switch v := raw.(type) {
	case []byte:
		out := reflect.New(t)
		if err := json.Unmarshal(v, out.Interface()); err != nil {
			return reflect.Value{}, jsonError(err)
		}
		return out.Elem(), nil
	case []string:
		items = make([]any, len(v))
		for i, s := range v {
			items[i] = s
		}
	case string:
		items = []any{v}
	default:
		rv := reflect.ValueOf(raw)
		if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
			return reflect.Value{}, errorf("expected a list, got %T", raw)
		}
		items = make([]any, rv.Len())
		for i := range rv.Len() {
			items[i] = rv.Index(i).Interface()
		}
	}

	var out reflect.Value
	if t.Kind() == reflect.Array {
		if len(items) != t.Len() {
			return reflect.Value{}, errorf("expected %d items, got %d", t.Len(), len(items))
		}
		out = reflect.New(t).Elem()
	} else {
		out = reflect.MakeSlice(t, len(items), len(items))
	}

	for i, item := range items {
		ev, err := r.Encode(t.Elem(), item)
		if err != nil {
			return reflect.Value{}, prefixError(err, "["+strconv.Itoa(i)+"]")
		}
		out.Index(i).Set(ev)
	}
	return out, nil
}

func (sequenceEncoder) Serialize(r *Registry, v reflect.Value) (any, error) {
	if v.Kind() == reflect.Slice && v.IsNil() {
		return []any{}, nil
	}
	out := make([]any, v.Len())
	for i := range v.Len() {
		item, err := r.SerializeValue(v.Index(i))
		if err != nil {
			return nil, err
		}
		out[i] = item
	}
	return out, nil
}

// mappingEncoder handles maps keyed by string kinds.
type mappingEncoder struct{}

func (mappingEncoder) Category() Category { return CategoryMapping }

func (mappingEncoder) Recognizes(t reflect.Type) bool {
	return t.Kind() == reflect.Map && t.Key().Kind() == reflect.String
}

func (mappingEncoder) Encode(r *Registry, t reflect.Type, raw any) (reflect.Value, error) {
	entries := map[string]any{}
	switch v := raw.(type) {
	case []byte:
		out := reflect.New(t)
		if err := json.Unmarshal(v, out.Interface()); err != nil {
			return reflect.Value{}, jsonError(err)
		}
		return out.Elem(), nil
	case url.Values:
		for k, vals := range v {
			entries[k] = vals
		}
	case map[string]any:
		entries = v
	default:
		rv := reflect.ValueOf(raw)
		if rv.Kind() != reflect.Map || rv.Type().Key().Kind() != reflect.String {
			return reflect.Value{}, errorf("expected an object, got %T", raw)
		}
		iter := rv.MapRange()
		for iter.Next() {
			entries[iter.Key().String()] = iter.Value().Interface()
		}
	}

	out := reflect.MakeMapWithSize(t, len(entries))
	for k, item := range entries {
		ev, err := r.Encode(t.Elem(), item)
		if err != nil {
			return reflect.Value{}, prefixError(err, k)
		}
		out.SetMapIndex(reflect.ValueOf(k).Convert(t.Key()), ev)
	}
	return out, nil
}

func (mappingEncoder) Serialize(r *Registry, v reflect.Value) (any, error) {
	out := make(map[string]any, v.Len())
	iter := v.MapRange()
	for iter.Next() {
		item, err := r.SerializeValue(iter.Value())
		if err != nil {
			return nil, err
		}
		out[iter.Key().String()] = item
	}
	return out, nil
}

func prefixError(err error, prefix string) error {
	e, ok := AsError(err)
	if !ok {
		return err
	}
	field := prefix
	if e.Field != "" {
		if e.Field[0] == '[' {
			field += e.Field
		} else {
			field += "." + e.Field
		}
	}
	return &Error{Field: field, Message: e.Message}
}
