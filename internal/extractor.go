package internal

import (
	"slices"
	"strings"
)

// ExtractorSource reads a credential from one request location.
type ExtractorSource struct {
	// Location is header, query, cookie, path, form or authorization.
	Location string
	// Name is the header, parameter or cookie name, or the Authorization
	// scheme.
	Name string
	read func(Context) string
}

// Read returns the value at the source, or ("", false) when it is missing
// or empty.
func (s ExtractorSource) Read(c Context) (string, bool) {
	if s.read == nil {
		return "", false
	}
	v := s.read(c)
	return v, v != ""
}

func (s ExtractorSource) String() string {
	return s.Location + ":" + s.Name
}

// Extractor tries its sources in order and returns the first non-empty value.
type Extractor struct {
	sources []ExtractorSource
}

// NewExtractor creates an Extractor over sources.
func NewExtractor(sources ...ExtractorSource) Extractor {
	return Extractor{sources: slices.Clone(sources)}
}

// Extract returns the first value found, or ("", false) when every source
// misses.
func (e Extractor) Extract(c Context) (string, bool) {
	for _, src := range e.sources {
		if v, ok := src.Read(c); ok {
			return v, true
		}
	}
	return "", false
}

// Sources lists the sources in lookup order.
func (e Extractor) Sources() []ExtractorSource {
	return slices.Clone(e.sources)
}

// FromHeader reads a request header.
func FromHeader(name string) ExtractorSource {
	return ExtractorSource{Location: "header", Name: name, read: func(c Context) string {
		return c.Header(name)
	}}
}

// FromQuery reads a query parameter.
func FromQuery(name string) ExtractorSource {
	return ExtractorSource{Location: "query", Name: name, read: func(c Context) string {
		return c.Query(name)
	}}
}

// FromCookie reads a plain cookie.
func FromCookie(name string) ExtractorSource {
	return ExtractorSource{Location: "cookie", Name: name, read: func(c Context) string {
		v, _ := c.Cookie(name)
		return v
	}}
}

// FromParam reads a path parameter.
func FromParam(name string) ExtractorSource {
	return ExtractorSource{Location: "path", Name: name, read: func(c Context) string {
		return c.Param(name)
	}}
}

// FromForm reads a form field.
func FromForm(name string) ExtractorSource {
	return ExtractorSource{Location: "form", Name: name, read: func(c Context) string {
		return c.Form(name)
	}}
}

// FromAuthorization reads the credentials of an Authorization header using
// scheme. The scheme is matched case-insensitively.
func FromAuthorization(scheme string) ExtractorSource {
	prefix := scheme + " "
	return ExtractorSource{Location: "authorization", Name: scheme, read: func(c Context) string {
		auth := c.Header("Authorization")
		if len(auth) < len(prefix) || !strings.EqualFold(auth[:len(prefix)], prefix) {
			return ""
		}
		return strings.TrimSpace(auth[len(prefix):])
	}}
}

// FromBearerToken reads a Bearer token from the Authorization header.
func FromBearerToken() ExtractorSource {
	return FromAuthorization("Bearer")
}
