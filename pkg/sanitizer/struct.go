package sanitizer

import (
	"errors"
	"reflect"
)

// ErrNotPointer is returned when SanitizeStruct receives a non-pointer value.
var ErrNotPointer = errors.New("sanitizer: value must be a non-nil pointer to a struct")

// SanitizeStruct applies sanitize tags to string fields in place. It descends
// into nested structs, pointers and slices; []string fields apply the tag to
// every element.
func SanitizeStruct(v any) error {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return ErrNotPointer
	}
	rv = rv.Elem()
	if rv.Kind() != reflect.Struct {
		return ErrNotPointer
	}
	return walk(rv)
}

func walk(rv reflect.Value) error {
	rt := rv.Type()
	for i := range rt.NumField() {
		sf := rt.Field(i)
		if !sf.IsExported() {
			continue
		}
		fv := rv.Field(i)

		var names []string
		if tag, ok := sf.Tag.Lookup(TagName); ok && tag != "-" {
			parsed, err := Parse(tag)
			if err != nil {
				return err
			}
			names = parsed
		}
		if err := apply(fv, names); err != nil {
			return err
		}
	}
	return nil
}

func apply(fv reflect.Value, names []string) error {
	switch fv.Kind() {
	case reflect.String:
		if len(names) > 0 && fv.CanSet() {
			fv.SetString(Apply(fv.String(), names...))
		}
	case reflect.Pointer:
		if !fv.IsNil() {
			return apply(fv.Elem(), names)
		}
	case reflect.Struct:
		return walk(fv)
	case reflect.Slice, reflect.Array:
		for i := range fv.Len() {
			if err := apply(fv.Index(i), names); err != nil {
				return err
			}
		}
	}
	return nil
}
