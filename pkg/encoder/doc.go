// Package encoder converts between decoded transport values and typed Go values.
//
// A Registry is an ordered list of Encoders. For a given reflect.Type the first
// encoder whose Recognizes method returns true owns both directions: Encode
// builds a typed value from raw input (a query string, a slice of strings, a
// JSON document, form values) and Serialize turns a typed value into something
// encoding/json can write. Custom encoders registered with New or Register are
// consulted before the built-in ones:
//
//	reg := encoder.New(moneyEncoder{})
//	v, err := reg.Encode(reflect.TypeFor[Money](), "12.50 EUR")
//
// Built-in encoders, in order: scalars (strings, booleans, numbers,
// time.Duration and encoding.TextUnmarshaler types such as uuid.UUID and
// time.Time), free-form JSON (any, json.RawMessage, map[string]any),
// sequences, string-keyed mappings, and structs.
//
// Encode failures are reported as *Error values so callers can attach the
// failing field to a validation response. For every type the registry
// recognizes, Encode(t, Serialize(v)) reproduces v.
package encoder
