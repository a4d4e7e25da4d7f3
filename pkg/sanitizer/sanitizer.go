// Package sanitizer normalizes user input before validation.
//
// Transforms are named and chained with commas, either through Apply or the
// sanitize struct tag consumed by SanitizeStruct:
//
//	type Comment struct {
//	    Author string `json:"author" sanitize:"trim,name"`
//	    Email  string `json:"email"  sanitize:"email"`
//	    Body   string `json:"body"   sanitize:"html"`
//	}
package sanitizer

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// TagName is the struct tag read by SanitizeStruct.
const TagName = "sanitize"

// ErrUnknownTransform is returned for a transform name that is not registered.
var ErrUnknownTransform = errors.New("sanitizer: unknown transform")

// Transform rewrites a single string value.
type Transform func(string) string

var transforms = map[string]Transform{
	"trim":       strings.TrimSpace,
	"lower":      strings.ToLower,
	"upper":      strings.ToUpper,
	"squash":     squash,
	"title":      title,
	"name":       func(s string) string { return title(squash(s)) },
	"email":      func(s string) string { return strings.ToLower(strings.TrimSpace(s)) },
	"html":       SanitizeHTML,
	"strip_html": StripHTML,
	"xss":        StripHTML,
}

// Lookup returns the transform registered under name.
func Lookup(name string) (Transform, bool) {
	fn, ok := transforms[name]
	return fn, ok
}

// Parse splits a comma separated transform list and checks every name.
func Parse(spec string) ([]string, error) {
	if strings.TrimSpace(spec) == "" {
		return nil, nil
	}
	names := strings.Split(spec, ",")
	out := make([]string, 0, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		if _, ok := transforms[n]; !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownTransform, n)
		}
		out = append(out, n)
	}
	return out, nil
}

// Apply runs the named transforms over s in order. Unknown names are skipped.
func Apply(s string, names ...string) string {
	for _, n := range names {
		if fn, ok := transforms[n]; ok {
			s = fn(s)
		}
	}
	return s
}

func squash(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func title(s string) string {
	return cases.Title(language.Und).String(s)
}
