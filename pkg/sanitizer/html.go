package sanitizer

import (
	"fmt"

	"github.com/microcosm-cc/bluemonday"
)

var (
	strictPolicy = bluemonday.StrictPolicy()
	safePolicy   = newSafePolicy()
)

func newSafePolicy() *bluemonday.Policy {
	p := bluemonday.NewPolicy()
	p.AllowStandardURLs()
	p.AllowElements(
		"p", "br",
		"strong", "b", "em", "i",
		"ul", "ol", "li",
		"code", "pre", "blockquote",
	)
	p.AllowAttrs("href").OnElements("a")
	p.RequireNoFollowOnLinks(true)
	return p
}

// StripHTML removes all markup and returns plain text.
func StripHTML(s string) string {
	return strictPolicy.Sanitize(s)
}

// SanitizeHTML keeps basic formatting tags (p, a, strong, em, lists, code)
// and drops scripts, event handlers and javascript: URLs.
func SanitizeHTML(s string) string {
	return safePolicy.Sanitize(s)
}

// RegisterHTMLPolicy makes policy available as the transform name, usable in
// sanitize tags. Register policies before building applications; the
// transform table is not guarded for concurrent writes.
func RegisterHTMLPolicy(name string, policy *bluemonday.Policy) error {
	if policy == nil {
		return fmt.Errorf("sanitizer: nil policy for %q", name)
	}
	if _, exists := transforms[name]; exists {
		return fmt.Errorf("sanitizer: transform %q already registered", name)
	}
	transforms[name] = policy.Sanitize
	return nil
}
