package internal

import (
	"errors"
	"fmt"
	"reflect"
	"slices"
)

// SecurityScheme authenticates a request. Authenticate returns (nil, nil)
// when the request carries no credentials for the scheme, and an error when
// it carries invalid ones.
type SecurityScheme interface {
	Authenticate(c Context) (any, error)
	// Type names the scheme in route descriptions: http, apiKey.
	Type() string
	// Challenge is the WWW-Authenticate value sent with a 401.
	Challenge() string
	// CredentialType is the type Authenticate yields, nil when it varies.
	CredentialType() reflect.Type
}

// BasicCredentials is what HTTPBasic yields.
type BasicCredentials struct {
	Username string
	Password string
}

var (
	stringType = reflect.TypeFor[string]()
	basicType  = reflect.TypeFor[BasicCredentials]()
)

type tokenScheme struct {
	extract   Extractor
	typ       string
	challenge string
}

func (s tokenScheme) Authenticate(c Context) (any, error) {
	v, ok := s.extract.Extract(c)
	if !ok {
		return nil, nil
	}
	return v, nil
}

func (s tokenScheme) Type() string                 { return s.typ }
func (s tokenScheme) Challenge() string            { return s.challenge }
func (s tokenScheme) CredentialType() reflect.Type { return stringType }

// HTTPBearer reads a bearer token from the Authorization header.
func HTTPBearer() SecurityScheme {
	return tokenScheme{extract: NewExtractor(FromBearerToken()), typ: "http", challenge: "Bearer"}
}

// APIKeyHeader reads an API key from a request header.
func APIKeyHeader(name string) SecurityScheme {
	return tokenScheme{extract: NewExtractor(FromHeader(name)), typ: "apiKey", challenge: "APIKey"}
}

// APIKeyQuery reads an API key from a query parameter.
func APIKeyQuery(name string) SecurityScheme {
	return tokenScheme{extract: NewExtractor(FromQuery(name)), typ: "apiKey", challenge: "APIKey"}
}

// APIKeyCookie reads an API key from a cookie.
func APIKeyCookie(name string) SecurityScheme {
	return tokenScheme{extract: NewExtractor(FromCookie(name)), typ: "apiKey", challenge: "APIKey"}
}

// APIKey reads an API key from the first source that carries one, e.g.
// a header with a query parameter fallback.
func APIKey(sources ...ExtractorSource) SecurityScheme {
	return tokenScheme{extract: NewExtractor(sources...), typ: "apiKey", challenge: "APIKey"}
}

type basicScheme struct {
	realm string
}

// HTTPBasic reads username and password from the Authorization header.
func HTTPBasic(realm string) SecurityScheme {
	return basicScheme{realm: realm}
}

func (s basicScheme) Authenticate(c Context) (any, error) {
	user, pass, ok := c.Request().BasicAuth()
	if !ok {
		return nil, nil
	}
	return BasicCredentials{Username: user, Password: pass}, nil
}

func (s basicScheme) Type() string { return "http" }

func (s basicScheme) Challenge() string {
	if s.realm == "" {
		return "Basic"
	}
	return fmt.Sprintf("Basic realm=%q", s.realm)
}

func (s basicScheme) CredentialType() reflect.Type { return basicType }

// authenticate runs the named scheme once per request. Missing credentials
// fail with NotAuthenticated unless optional is set.
func (e *endpoint) authenticate(c *requestContext, name string, optional bool) (any, error) {
	if cred, ok := c.credentials[name]; ok {
		if cred == nil && !optional {
			return nil, e.missingCredentials(name)
		}
		return cred, nil
	}
	scheme, ok := e.schemes[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownScheme, name)
	}

	cred, err := scheme.Authenticate(c)
	if err != nil {
		var na *NotAuthenticatedError
		if errors.As(err, &na) {
			if na.Scheme == "" {
				na.Scheme = name
			}
			if na.challenge == "" {
				na.challenge = scheme.Challenge()
			}
			return nil, na
		}
		if k := KindOf(err); k == KindPermissionDenied || k == KindDisconnected {
			return nil, err
		}
		return nil, &NotAuthenticatedError{Err: err, Message: "invalid credentials", Scheme: name, challenge: scheme.Challenge()}
	}

	if c.credentials == nil {
		c.credentials = make(map[string]any)
	}
	c.credentials[name] = cred
	if cred == nil && !optional {
		return nil, e.missingCredentials(name)
	}
	return cred, nil
}

func (e *endpoint) missingCredentials(name string) error {
	challenge := ""
	if s, ok := e.schemes[name]; ok {
		challenge = s.Challenge()
	}
	err := NotAuthenticated("authentication required", challenge)
	err.Scheme = name
	return err
}

// AllowAny grants every request.
func AllowAny() Permission {
	return func(Context) error { return nil }
}

// DenyAll rejects every request with 403.
func DenyAll() Permission {
	return func(Context) error { return PermissionDenied("") }
}

// Allow grants the request when fn returns true, otherwise 403.
func Allow(fn func(Context) bool) Permission {
	return func(c Context) error {
		if fn(c) {
			return nil
		}
		return PermissionDenied("")
	}
}

// Authenticated grants the request when fn returns true, otherwise 401.
func Authenticated(fn func(Context) bool) Permission {
	return func(c Context) error {
		if fn(c) {
			return nil
		}
		return NotAuthenticated("authentication required", "")
	}
}

// RolePermissions maps role names to the permission names they grant.
type RolePermissions = map[string][]string

// RoleExtractorFunc extracts the current user's role from the request.
type RoleExtractorFunc = func(Context) string

// RequirePermission grants the request when the current role holds perm.
// Roles are configured with WithRoles.
func RequirePermission(perm string) Permission {
	return func(c Context) error {
		if c.Can(perm) {
			return nil
		}
		return PermissionDenied(fmt.Sprintf("missing permission %q", perm))
	}
}

// can reports whether the role of the request grants perm. The role is
// extracted once per request.
func (c *requestContext) can(perm string) bool {
	roles := c.app.roles
	if roles.permissions == nil || roles.extractor == nil {
		return false
	}
	if c.role == nil {
		empty := ""
		c.role = &empty
		role := roles.extractor(c)
		c.role = &role
	}
	return slices.Contains(roles.permissions[*c.role], perm)
}
