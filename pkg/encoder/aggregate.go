package encoder

import (
	"encoding/json"
	"mime/multipart"
	"net/url"
	"reflect"
	"strings"
	"sync"
)

var (
	fileHeaderType      = reflect.TypeFor[*multipart.FileHeader]()
	fileHeaderSliceType = reflect.TypeFor[[]*multipart.FileHeader]()
)

// aggregateEncoder builds structs from JSON documents, decoded objects or form
// values.
type aggregateEncoder struct{}

func (aggregateEncoder) Category() Category { return CategoryAggregate }

func (aggregateEncoder) Recognizes(t reflect.Type) bool {
	return t.Kind() == reflect.Struct
}

func (aggregateEncoder) Encode(r *Registry, t reflect.Type, raw any) (reflect.Value, error) {
	switch v := raw.(type) {
	case []byte:
		out := reflect.New(t)
		if err := json.Unmarshal(v, out.Interface()); err != nil {
			return reflect.Value{}, jsonError(err)
		}
		return out.Elem(), nil
	case map[string]any:
		b, err := json.Marshal(v)
		if err != nil {
			return reflect.Value{}, errorf("value is not JSON encodable")
		}
		return aggregateEncoder{}.Encode(r, t, b)
	case url.Values:
		return encodeForm(r, t, v, nil)
	case *multipart.Form:
		return encodeForm(r, t, v.Value, v.File)
	}
	return reflect.Value{}, errorf("expected an object, got %T", raw)
}

func (aggregateEncoder) Serialize(_ *Registry, v reflect.Value) (any, error) {
	return v.Interface(), nil
}

// formField is a struct field bound from form data.
type formField struct {
	typ    reflect.Type
	name   string
	index  []int
	nested bool
}

var formFields sync.Map // reflect.Type -> []formField

func fieldsOf(t reflect.Type) []formField {
	if cached, ok := formFields.Load(t); ok {
		return cached.([]formField)
	}
	var fields []formField
	for i := range t.NumField() {
		sf := t.Field(i)
		if !sf.IsExported() {
			continue
		}
		name := FormName(sf)
		if name == "-" {
			continue
		}
		ft := sf.Type
		nested := indirect(ft).Kind() == reflect.Struct && !reflect.PointerTo(indirect(ft)).Implements(textUnmarshalerType)
		fields = append(fields, formField{typ: ft, name: name, index: sf.Index, nested: nested})
	}
	formFields.Store(t, fields)
	return fields
}

// FormName returns the form key of a struct field: the form tag, then the json
// tag, then the Go field name.
func FormName(sf reflect.StructField) string {
	for _, key := range []string{"form", "json"} {
		if tag, ok := sf.Tag.Lookup(key); ok {
			name, _, _ := strings.Cut(tag, ",")
			if name == "-" {
				return "-"
			}
			if name != "" {
				return name
			}
		}
	}
	return sf.Name
}

func encodeForm(r *Registry, t reflect.Type, values url.Values, files map[string][]*multipart.FileHeader) (reflect.Value, error) {
	return encodeFormPrefix(r, t, values, files, "")
}

func encodeFormPrefix(r *Registry, t reflect.Type, values url.Values, files map[string][]*multipart.FileHeader, prefix string) (reflect.Value, error) {
	out := reflect.New(t).Elem()
	for _, f := range fieldsOf(t) {
		key := f.name
		if prefix != "" {
			key = prefix + "." + f.name
		}
		dst := out.FieldByIndex(f.index)

		switch {
		case f.typ == fileHeaderType:
			if fh := files[key]; len(fh) > 0 {
				dst.Set(reflect.ValueOf(fh[0]))
			}
			continue
		case f.typ == fileHeaderSliceType:
			if fh := files[key]; len(fh) > 0 {
				dst.Set(reflect.ValueOf(fh))
			}
			continue
		case f.nested:
			nested, err := encodeFormPrefix(r, indirect(f.typ), values, files, key)
			if err != nil {
				return reflect.Value{}, err
			}
			if f.typ.Kind() == reflect.Pointer {
				ptr := reflect.New(f.typ.Elem())
				ptr.Elem().Set(nested)
				nested = ptr
			}
			dst.Set(nested)
			continue
		}

		vals, ok := values[key]
		if !ok || len(vals) == 0 {
			continue
		}
		var raw any = vals
		if r.Category(f.typ) != CategorySequence {
			raw = vals[0]
		}
		v, err := r.Encode(f.typ, raw)
		if err != nil {
			return reflect.Value{}, prefixError(err, key)
		}
		dst.Set(v)
	}
	return out, nil
}
