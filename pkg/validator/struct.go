package validator

import (
	"errors"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// ErrNotStruct is returned by Struct when v is not a struct or pointer to struct.
var ErrNotStruct = errors.New("validator: value is not a struct")

var timeType = reflect.TypeFor[time.Time]()

// Struct validates every field carrying a validate tag, descending into nested
// structs and slices of structs. Field names in errors follow json, then form
// tags, falling back to the Go field name.
func Struct(v any) error {
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return ErrNotStruct
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return ErrNotStruct
	}

	errs, err := walkStruct(rv, "")
	if err != nil {
		return err
	}
	if len(errs) == 0 {
		return nil
	}
	return errs
}

func walkStruct(rv reflect.Value, prefix string) (ValidationErrors, error) {
	var errs ValidationErrors
	rt := rv.Type()
	for i := range rt.NumField() {
		sf := rt.Field(i)
		if !sf.IsExported() {
			continue
		}
		fv := rv.Field(i)

		if sf.Anonymous && sf.Type.Kind() == reflect.Struct {
			nested, err := walkStruct(fv, prefix)
			if err != nil {
				return nil, err
			}
			errs = append(errs, nested...)
			continue
		}

		name := joinField(prefix, FieldName(sf))
		if tag, ok := sf.Tag.Lookup(TagName); ok && tag != "-" {
			rules, err := ParseTag(tag)
			if err != nil {
				return nil, err
			}
			errs = append(errs, rules.Check(name, fv)...)
		}

		nested, err := walkNested(fv, name)
		if err != nil {
			return nil, err
		}
		errs = append(errs, nested...)
	}
	return errs, nil
}

func walkNested(fv reflect.Value, name string) (ValidationErrors, error) {
	for fv.Kind() == reflect.Pointer {
		if fv.IsNil() {
			return nil, nil
		}
		fv = fv.Elem()
	}
	switch fv.Kind() {
	case reflect.Struct:
		if fv.Type() == timeType {
			return nil, nil
		}
		return walkStruct(fv, name)
	case reflect.Slice, reflect.Array:
		var errs ValidationErrors
		for i := range fv.Len() {
			nested, err := walkNested(fv.Index(i), name+"["+strconv.Itoa(i)+"]")
			if err != nil {
				return nil, err
			}
			errs = append(errs, nested...)
		}
		return errs, nil
	}
	return nil, nil
}

// FieldName returns the external name of a struct field: the json tag name,
// then the form tag name, then the Go field name.
func FieldName(sf reflect.StructField) string {
	for _, key := range []string{"json", "form"} {
		if tag := sf.Tag.Get(key); tag != "" {
			if name, _, _ := strings.Cut(tag, ","); name != "" && name != "-" {
				return name
			}
		}
	}
	return sf.Name
}

func joinField(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "." + name
}
