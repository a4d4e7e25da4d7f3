package internal

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// Path parameter types and the chi patterns they compile to.
const (
	paramStr   = "str"
	paramInt   = "int"
	paramFloat = "float"
	paramUUID  = "uuid"
	paramPath  = "path"
)

var paramPatterns = map[string]string{
	paramStr:   "",
	paramInt:   `-?[0-9]+`,
	paramFloat: `-?[0-9]+(?:\.[0-9]+)?`,
	paramUUID:  `[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}`,
}

var (
	paramNameRe     = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
	paramValidators = map[string]*regexp.Regexp{
		paramInt:   regexp.MustCompile(`^` + paramPatterns[paramInt] + `$`),
		paramFloat: regexp.MustCompile(`^` + paramPatterns[paramFloat] + `$`),
		paramUUID:  regexp.MustCompile(`^` + paramPatterns[paramUUID] + `$`),
	}
)

// pathParam is a placeholder in a route template.
type pathParam struct {
	name string
	typ  string
	key  string // chi URL param key
}

// pathTemplate is a parsed route path.
type pathTemplate struct {
	raw      string
	pattern  string
	segments []templateSegment
	params   []pathParam
}

type templateSegment struct {
	literal string
	param   int // index into params, -1 for literals
}

// normalizePath adds a leading slash and drops trailing slashes except for root.
func normalizePath(p string) string {
	p = strings.TrimSpace(p)
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	for len(p) > 1 && strings.HasSuffix(p, "/") {
		p = strings.TrimSuffix(p, "/")
	}
	return p
}

// joinPath joins a normalized prefix with a child path.
func joinPath(prefix, p string) string {
	prefix = normalizePath(prefix)
	p = normalizePath(p)
	switch {
	case prefix == "/":
		return p
	case p == "/":
		return prefix
	}
	return prefix + p
}

// parsePath compiles "/users/{id:int}" into a chi pattern and its parameters.
func parsePath(raw string) (*pathTemplate, error) {
	raw = normalizePath(raw)
	t := &pathTemplate{raw: raw}
	seen := make(map[string]struct{})

	var pattern strings.Builder
	rest := raw
	for rest != "" {
		open := strings.IndexByte(rest, '{')
		if open < 0 {
			if strings.ContainsRune(rest, '}') {
				return nil, fmt.Errorf("%w: unbalanced braces in %q", ErrInvalidPath, raw)
			}
			t.segments = append(t.segments, templateSegment{literal: rest, param: -1})
			pattern.WriteString(rest)
			break
		}
		if open > 0 {
			lit := rest[:open]
			if strings.ContainsRune(lit, '}') {
				return nil, fmt.Errorf("%w: unbalanced braces in %q", ErrInvalidPath, raw)
			}
			t.segments = append(t.segments, templateSegment{literal: lit, param: -1})
			pattern.WriteString(lit)
		}
		end := strings.IndexByte(rest[open:], '}')
		if end < 0 {
			return nil, fmt.Errorf("%w: unbalanced braces in %q", ErrInvalidPath, raw)
		}
		name, typ, _ := strings.Cut(rest[open+1:open+end], ":")
		name, typ = strings.TrimSpace(name), strings.TrimSpace(typ)
		if typ == "" {
			typ = paramStr
		}
		if !paramNameRe.MatchString(name) {
			return nil, fmt.Errorf("%w: bad parameter name %q in %q", ErrInvalidPath, name, raw)
		}
		if _, dup := seen[name]; dup {
			return nil, fmt.Errorf("%w: parameter %q repeated in %q", ErrInvalidPath, name, raw)
		}
		seen[name] = struct{}{}

		rest = rest[open+end+1:]
		p := pathParam{name: name, typ: typ, key: name}
		switch typ {
		case paramPath:
			if rest != "" {
				return nil, fmt.Errorf("%w: path parameter %q must be last in %q", ErrInvalidPath, name, raw)
			}
			p.key = "*"
			pattern.WriteString("*")
		case paramStr:
			pattern.WriteString("{" + name + "}")
		default:
			re, ok := paramPatterns[typ]
			if !ok {
				return nil, fmt.Errorf("%w: unknown parameter type %q in %q", ErrInvalidPath, typ, raw)
			}
			pattern.WriteString("{" + name + ":" + re + "}")
		}
		t.segments = append(t.segments, templateSegment{param: len(t.params)})
		t.params = append(t.params, p)
	}
	t.pattern = pattern.String()
	return t, nil
}

// names returns the declared parameter names.
func (t *pathTemplate) names() map[string]pathParam {
	out := make(map[string]pathParam, len(t.params))
	for _, p := range t.params {
		out[p.name] = p
	}
	return out
}

// build fills the template. Values must match their declared types.
func (t *pathTemplate) build(params map[string]string) (string, error) {
	var b strings.Builder
	for _, seg := range t.segments {
		if seg.param < 0 {
			b.WriteString(seg.literal)
			continue
		}
		p := t.params[seg.param]
		v, ok := params[p.name]
		if !ok || v == "" {
			return "", fmt.Errorf("%w: %s", ErrMissingURLParam, p.name)
		}
		if re, ok := paramValidators[p.typ]; ok && !re.MatchString(v) {
			return "", fmt.Errorf("%w: %s=%q is not a valid %s", ErrInvalidPath, p.name, v, p.typ)
		}
		if p.typ == paramPath {
			parts := strings.Split(strings.TrimPrefix(v, "/"), "/")
			for i, part := range parts {
				parts[i] = url.PathEscape(part)
			}
			b.WriteString(strings.Join(parts, "/"))
			continue
		}
		b.WriteString(url.PathEscape(v))
	}
	return b.String(), nil
}
