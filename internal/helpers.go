package internal

import (
	"reflect"

	"github.com/dmitrymomot/keel/pkg/encoder"
)

// helperEncoders decodes values for the typed accessors below. Custom
// encoders registered on an App are not consulted.
var helperEncoders = encoder.New()

// ContextValue returns the request-scoped value stored under key, or the
// zero T when it is missing or of another type.
func ContextValue[T any](c Context, key any) T {
	if v, ok := c.Get(key).(T); ok {
		return v
	}
	var zero T
	return zero
}

// Param decodes a path parameter into T with the scalar encoders.
// A missing or malformed value yields the zero T.
func Param[T any](c Context, name string) T {
	v, _ := decodeRaw[T](c.Param(name))
	return v
}

// Query decodes the first value of a query parameter into T.
// A missing or malformed value yields the zero T.
func Query[T any](c Context, name string) T {
	v, _ := decodeRaw[T](c.Query(name))
	return v
}

// QueryDefault is Query with a fallback for missing or malformed values.
func QueryDefault[T any](c Context, name string, defaultValue T) T {
	raw := c.Query(name)
	if raw == "" {
		return defaultValue
	}
	if v, ok := decodeRaw[T](raw); ok {
		return v
	}
	return defaultValue
}

func decodeRaw[T any](raw string) (T, bool) {
	var zero T
	if raw == "" {
		return zero, false
	}
	rv, err := helperEncoders.Encode(reflect.TypeFor[T](), raw)
	if err != nil {
		return zero, false
	}
	v, ok := rv.Interface().(T)
	return v, ok
}
