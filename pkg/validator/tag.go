package validator

import (
	"fmt"
	"reflect"
	"regexp"
	"strconv"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
)

// TagName is the struct tag read by Struct and ParseTag callers.
const TagName = "validate"

const tagCacheSize = 1024

// tagCache holds compiled tags; compiling patterns is the expensive part.
var tagCache, _ = lru.New[string, *FieldRules](tagCacheSize)

type tagRule struct {
	re      *regexp.Regexp
	name    string
	arg     string
	choices []string
	num     float64
}

// FieldRules is a compiled validate tag.
type FieldRules struct {
	raw      string
	rules    []tagRule
	required bool
}

// ParseTag compiles a validate tag such as "required;min:3;pattern:^[a-z]+$".
// Results are cached by tag text.
func ParseTag(tag string) (*FieldRules, error) {
	tag = strings.TrimSpace(tag)
	if fr, ok := tagCache.Get(tag); ok {
		return fr, nil
	}

	fr := &FieldRules{raw: tag}
	for part := range strings.SplitSeq(tag, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, arg, _ := strings.Cut(part, ":")
		r := tagRule{name: strings.TrimSpace(name), arg: arg}

		switch r.name {
		case "required":
			fr.required = true
		case "email", "uuid":
		case "min", "max", "len", "gt", "gte", "lt", "lte":
			n, err := strconv.ParseFloat(strings.TrimSpace(arg), 64)
			if err != nil {
				return nil, fmt.Errorf("%w: rule %q needs a numeric argument", ErrInvalidTag, r.name)
			}
			r.num = n
		case "pattern":
			re, err := regexp.Compile(arg)
			if err != nil {
				return nil, fmt.Errorf("%w: pattern %q: %w", ErrInvalidTag, arg, err)
			}
			r.re = re
		case "oneof":
			r.choices = strings.Split(arg, "|")
			if arg == "" {
				return nil, fmt.Errorf("%w: oneof needs at least one value", ErrInvalidTag)
			}
		default:
			return nil, fmt.Errorf("%w: unknown rule %q", ErrInvalidTag, r.name)
		}
		fr.rules = append(fr.rules, r)
	}

	tagCache.Add(tag, fr)
	return fr, nil
}

// Required reports whether the tag contains the required rule.
func (f *FieldRules) Required() bool {
	return f != nil && f.required
}

// String returns the tag text the rules were compiled from.
func (f *FieldRules) String() string {
	if f == nil {
		return ""
	}
	return f.raw
}

// Constraints returns rule names mapped to their raw arguments.
func (f *FieldRules) Constraints() map[string]string {
	if f == nil || len(f.rules) == 0 {
		return nil
	}
	out := make(map[string]string, len(f.rules))
	for _, r := range f.rules {
		out[r.name] = r.arg
	}
	return out
}

// Supports reports an error when a rule cannot apply to values of type t.
func (f *FieldRules) Supports(t reflect.Type) error {
	if f == nil {
		return nil
	}
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	k := t.Kind()
	for _, r := range f.rules {
		var ok bool
		switch r.name {
		case "required":
			ok = true
		case "min", "max", "len":
			ok = isNumberKind(k) || k == reflect.String || k == reflect.Slice || k == reflect.Array || k == reflect.Map
		case "gt", "gte", "lt", "lte":
			ok = isNumberKind(k)
		case "pattern", "email":
			ok = k == reflect.String
		case "uuid":
			ok = k == reflect.String || (k == reflect.Array && t.Len() == 16)
		case "oneof":
			ok = k == reflect.String || isNumberKind(k)
		}
		if !ok {
			return fmt.Errorf("%w: rule %q does not apply to %s", ErrInvalidTag, r.name, t)
		}
	}
	return nil
}

// Check validates v against the rules and reports failures under field.
// A nil pointer fails only the required rule.
func (f *FieldRules) Check(field string, v reflect.Value) ValidationErrors {
	if f == nil || len(f.rules) == 0 {
		return nil
	}
	for v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface {
		if v.IsNil() {
			if f.required {
				return ValidationErrors{RequiredString(field, "").Error}
			}
			return nil
		}
		v = v.Elem()
	}

	rules := make([]Rule, 0, len(f.rules))
	for _, r := range f.rules {
		if rule, ok := r.build(field, v); ok {
			rules = append(rules, rule)
		}
	}
	return ExtractValidationErrors(Apply(rules...))
}

func (r tagRule) build(field string, v reflect.Value) (Rule, bool) {
	k := v.Kind()
	switch r.name {
	case "required":
		switch k {
		case reflect.String:
			return RequiredString(field, v.String()), true
		case reflect.Slice, reflect.Map:
			return newRule(func() bool { return v.Len() > 0 },
				field, "field is required", "validation.required", nil), true
		default:
			return newRule(func() bool { return !v.IsZero() },
				field, "field is required", "validation.required", nil), true
		}
	case "min", "max", "len":
		return r.sized(field, v)
	case "gt", "gte", "lt", "lte":
		return r.bound(field, v)
	case "pattern":
		return MatchString(field, v.String(), r.re), k == reflect.String
	case "oneof":
		s := v.String()
		if k != reflect.String {
			s = fmt.Sprint(v.Interface())
		}
		return OneOf(field, s, r.choices...), true
	case "email":
		return Email(field, v.String()), k == reflect.String
	case "uuid":
		if k == reflect.String {
			return UUID(field, v.String()), true
		}
	}
	return Rule{}, false
}

func (r tagRule) sized(field string, v reflect.Value) (Rule, bool) {
	n := int(r.num)
	switch v.Kind() {
	case reflect.String:
		s := v.String()
		switch r.name {
		case "min":
			return MinLenString(field, s, n), true
		case "max":
			return MaxLenString(field, s, n), true
		default:
			return LenString(field, s, n), true
		}
	case reflect.Slice, reflect.Array, reflect.Map:
		l := v.Len()
		switch r.name {
		case "min":
			return MinLenSlice(field, make([]struct{}, l), n), true
		case "max":
			return MaxLenSlice(field, make([]struct{}, l), n), true
		default:
			return LenSlice(field, make([]struct{}, l), n), true
		}
	}
	if r.name == "len" {
		return Rule{}, false
	}
	name := "gte"
	if r.name == "max" {
		name = "lte"
	}
	return tagRule{name: name, num: r.num}.bound(field, v)
}

func (r tagRule) bound(field string, v reflect.Value) (Rule, bool) {
	switch {
	case isIntKind(v.Kind()):
		return numRule(r.name, field, v.Int(), int64(r.num)), true
	case isUintKind(v.Kind()):
		if r.num < 0 {
			r.num = 0
		}
		return numRule(r.name, field, v.Uint(), uint64(r.num)), true
	case v.Kind() == reflect.Float32 || v.Kind() == reflect.Float64:
		return numRule(r.name, field, v.Float(), r.num), true
	}
	return Rule{}, false
}

func numRule[T Numeric](name, field string, v, n T) Rule {
	switch name {
	case "gt":
		return GreaterThan(field, v, n)
	case "lt":
		return LessThan(field, v, n)
	case "lte":
		return MaxNum(field, v, n)
	default:
		return MinNum(field, v, n)
	}
}

func isIntKind(k reflect.Kind) bool {
	return k >= reflect.Int && k <= reflect.Int64
}

func isUintKind(k reflect.Kind) bool {
	return k >= reflect.Uint && k <= reflect.Uintptr
}

func isNumberKind(k reflect.Kind) bool {
	return isIntKind(k) || isUintKind(k) || k == reflect.Float32 || k == reflect.Float64
}
