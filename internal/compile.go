package internal

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"net/http"
	"reflect"
	"slices"
	"strings"
	"sync"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"
	"github.com/santhosh-tekuri/jsonschema/v6"
)

// endpoint is an Endpoint compiled against its position in the tree.
type endpoint struct {
	app           *App
	decl          *Endpoint
	shape         *callShape
	plan          *plan
	env           *planEnv
	tmpl          *pathTemplate
	bodySchema    *jsonschema.Schema
	acceptOptions *websocket.AcceptOptions
	serve         HandlerFunc
	providers     map[string]*boundProvider
	schemes       map[string]SecurityScheme
	plans         sync.Map // reflect.Type -> *plan
	route         string
	path          string
	name          string
	methods       []string
	secured       []string
	permissions   []Permission
	interceptors  []Interceptor
	before        []Hook
	after         []Hook                       // inner first
	levels        []map[ErrorKind]ErrorHandler // inner first
	headers       [][2]string
	cookies       []*http.Cookie
	tags          []string
	status        int
	deprecated    bool
	excluded      bool
	blocking      bool
	websocket     bool
	fallback      bool
}

// planFor returns the binding plan of t on this endpoint.
func (e *endpoint) planFor(t reflect.Type) (*plan, error) {
	if e.plan != nil && e.plan.typ == t {
		return e.plan, nil
	}
	if p, ok := e.plans.Load(t); ok {
		return p.(*plan), nil
	}
	if e.env == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedParam, t)
	}
	p, err := buildPlan(t, e.env)
	if err != nil {
		return nil, err
	}
	if err := checkDependencies(p, e.providers); err != nil {
		return nil, err
	}
	if err := checkDependencyTypes(p, e.env.deps, e.route); err != nil {
		return nil, err
	}
	e.plans.Store(t, p)
	return p, nil
}

// scope is the policy accumulated from the application root down to one
// tree level.
type scope struct {
	app        *App
	policy     policy
	prefix     string
	namespace  string
	levels     []map[ErrorKind]ErrorHandler // outer first
	tags       []string
	headers    [][2]string
	cookies    []*http.Cookie
	status     int
	deprecated bool
	excluded   bool
	blocking   bool
}

// extend returns the scope one level below s, declared by d.
func (s *scope) extend(d *Endpoint, extra map[ErrorKind]ErrorHandler) *scope {
	n := *s
	n.policy = policy{
		middlewares:  slices.Concat(s.policy.middlewares, d.policy.middlewares),
		permissions:  slices.Concat(s.policy.permissions, d.policy.permissions),
		interceptors: slices.Concat(s.policy.interceptors, d.policy.interceptors),
		before:       slices.Concat(s.policy.before, d.policy.before),
		after:        slices.Concat(s.policy.after, d.policy.after),
		secured:      slices.Concat(s.policy.secured, d.policy.secured),
		deps:         mergeMaps(s.policy.deps, d.policy.deps),
		schemes:      mergeMaps(s.policy.schemes, d.policy.schemes),
	}

	level := d.policy.exceptions
	if len(extra) > 0 {
		level = maps.Clone(extra)
		maps.Copy(level, d.policy.exceptions)
	}
	n.levels = slices.Clone(s.levels)
	if len(level) > 0 {
		n.levels = append(n.levels, level)
	}

	n.tags = slices.Concat(s.tags, d.tags)
	n.headers = slices.Concat(s.headers, d.headers)
	n.cookies = slices.Concat(s.cookies, d.cookies)
	if d.status != 0 {
		n.status = d.status
	}
	n.deprecated = s.deprecated || d.deprecated
	n.excluded = s.excluded || d.excluded
	n.blocking = s.blocking || d.blocking
	return &n
}

func mergeMaps[V any](outer, inner map[string]V) map[string]V {
	out := make(map[string]V, len(outer)+len(inner))
	maps.Copy(out, outer)
	maps.Copy(out, inner)
	return out
}

func joinName(ns, name string) string {
	if ns == "" {
		return name
	}
	return ns + ":" + name
}

// compiler walks a routing tree and registers its endpoints on chi.
type compiler struct {
	root      *App
	router    *chi.Mux
	seen      map[string]string
	names     map[string]*endpoint
	mounting  []*App
	endpoints []*endpoint
	fallbacks []*endpoint
	cycles    map[string]bool
	errs      []error
}

// compile builds the router of a. Registration errors are joined.
func (a *App) compile() error {
	cp := &compiler{
		root:   a,
		router: chi.NewRouter(),
		seen:   make(map[string]string),
		names:  make(map[string]*endpoint),
		cycles: make(map[string]bool),
	}

	root := (&scope{app: a, prefix: "/"}).extend(a.defaults, nil)
	cp.errs = append(cp.errs, a.errs...)
	cp.errs = append(cp.errs, a.defaults.errs...)
	cp.fallbacks = append(cp.fallbacks, cp.fallback(root))
	cp.mounting = append(cp.mounting, a)
	cp.walk(root, a.tree())

	if err := errors.Join(cp.errs...); err != nil {
		return err
	}

	cp.router.NotFound(a.serveFallback(http.StatusNotFound))
	cp.router.MethodNotAllowed(a.serveFallback(http.StatusMethodNotAllowed))

	a.router = cp.router
	a.endpoints = cp.endpoints
	a.names = cp.names
	a.fallbacks = cp.fallbacks
	return nil
}

func (cp *compiler) walk(sc *scope, routes []Route) {
	for _, r := range routes {
		switch n := r.(type) {
		case *Endpoint:
			if n != nil {
				cp.endpoint(sc, n)
			}
		case *Group:
			if n == nil {
				continue
			}
			gs := sc.extend(n.defaults, nil)
			gs.prefix = joinPath(sc.prefix, n.prefix)
			if n.defaults.name != "" {
				gs.namespace = joinName(sc.namespace, n.defaults.name)
			}
			for _, err := range n.defaults.errs {
				cp.errs = append(cp.errs, configErr(gs.prefix, "", err, ""))
			}
			cp.walk(gs, n.routes)
		case *Mount:
			if n != nil {
				cp.mount(sc, n)
			}
		default:
			cp.errs = append(cp.errs, configErr(sc.prefix, "", ErrInvalidHandler, "unknown route node %T", r))
		}
	}
}

func (cp *compiler) mount(sc *scope, m *Mount) {
	prefix := joinPath(sc.prefix, m.prefix)
	child := m.app
	if child == nil {
		cp.errs = append(cp.errs, configErr(prefix, "", ErrInvalidHandler, "nil application mounted"))
		return
	}
	if slices.Contains(cp.mounting, child) {
		cp.errs = append(cp.errs, configErr(prefix, "", ErrCycleDetected, "application mounted inside itself"))
		return
	}

	var extra map[ErrorKind]ErrorHandler
	if child.errorHandler != nil {
		extra = map[ErrorKind]ErrorHandler{KindAny: child.errorHandler}
	}
	ms := sc.extend(child.defaults, extra)
	ms.app = child
	ms.prefix = prefix
	if child.name != "" {
		ms.namespace = joinName(sc.namespace, child.name)
	}
	cp.errs = append(cp.errs, child.errs...)
	cp.errs = append(cp.errs, child.defaults.errs...)
	cp.fallbacks = append(cp.fallbacks, cp.fallback(ms))

	cp.mounting = append(cp.mounting, child)
	cp.walk(ms, child.tree())
	cp.mounting = cp.mounting[:len(cp.mounting)-1]
}

// fallback builds the pseudo endpoint that renders 404 and 405 responses
// under the policy of sc.
func (cp *compiler) fallback(sc *scope) *endpoint {
	e := &endpoint{
		app:      cp.root,
		path:     sc.prefix,
		route:    "fallback " + sc.prefix,
		levels:   reversed(sc.levels),
		fallback: true,
	}
	e.serve = chain(sc.policy.middlewares, e.run)
	cp.reportCycles(e.route, bindProviders(sc.policy.deps, &planEnv{
		registry: cp.root.registry,
		deps:     sc.policy.deps,
		schemes:  sc.policy.schemes,
		route:    e.route,
	}))
	return e
}

// reportCycles fails the build for every dependency cycle among bps, used
// or not. Each cycle is reported once per application.
func (cp *compiler) reportCycles(route string, bps map[string]*boundProvider) {
	for _, key := range slices.Sorted(maps.Keys(bps)) {
		err := bps[key].err
		if err == nil || !errors.Is(err, ErrCycleDetected) || cp.cycles[err.Error()] {
			continue
		}
		cp.cycles[err.Error()] = true
		cp.errs = append(cp.errs, configErr(route, "", err, ""))
	}
}

func (cp *compiler) endpoint(sc *scope, d *Endpoint) {
	es := sc.extend(d, nil)
	full := joinPath(sc.prefix, d.path)
	route := strings.Join(d.methods, ",") + " " + full

	fail := func(err error) {
		var ce *ConfigError
		if !errors.As(err, &ce) {
			err = configErr(route, "", err, "")
		}
		cp.errs = append(cp.errs, err)
	}
	for _, err := range d.errs {
		fail(err)
	}

	tmpl, err := parsePath(full)
	if err != nil {
		fail(err)
		return
	}
	shape, err := analyzeHandler(d.handler)
	if err != nil {
		fail(err)
		return
	}

	e := &endpoint{
		app:           cp.root,
		decl:          d,
		shape:         shape,
		tmpl:          tmpl,
		route:         route,
		path:          tmpl.raw,
		methods:       slices.Clone(d.methods),
		schemes:       es.policy.schemes,
		secured:       es.policy.secured,
		permissions:   es.policy.permissions,
		interceptors:  es.policy.interceptors,
		before:        es.policy.before,
		after:         reversed(es.policy.after),
		levels:        reversed(es.levels),
		headers:       es.headers,
		cookies:       es.cookies,
		tags:          es.tags,
		status:        es.status,
		deprecated:    es.deprecated,
		excluded:      es.excluded,
		blocking:      es.blocking,
		websocket:     d.websocket,
		acceptOptions: d.acceptOptions,
	}
	if d.name != "" {
		e.name = joinName(sc.namespace, d.name)
	}

	e.env = &planEnv{
		registry: cp.root.registry,
		path:     tmpl.names(),
		deps:     es.policy.deps,
		schemes:  es.policy.schemes,
		route:    route,
	}
	e.providers = bindProviders(es.policy.deps, e.env)
	cp.reportCycles(route, e.providers)

	if shape.in != nil {
		p, err := buildPlan(shape.in, e.env)
		if err != nil {
			fail(err)
			return
		}
		if err := checkDependencies(p, e.providers); err != nil {
			if !errors.Is(err, ErrCycleDetected) {
				fail(err)
			}
			return
		}
		if err := checkDependencyTypes(p, e.env.deps, route); err != nil {
			fail(err)
			return
		}
		e.plan = p
	}

	for _, name := range e.secured {
		if _, ok := e.schemes[name]; !ok {
			fail(configErr(route, "", ErrUnknownScheme, "%q", name))
			return
		}
	}

	if d.bodySchema != "" {
		sch, err := compileBodySchema(d.bodySchema)
		if err != nil {
			fail(configErr(route, "", ErrImproperlyConfigured, "%v", err))
			return
		}
		e.bodySchema = sch
	}

	if e.name != "" {
		if other, dup := cp.names[e.name]; dup {
			fail(configErr(route, "", ErrDuplicateName, "%q is already used by %s", e.name, other.route))
			return
		}
		cp.names[e.name] = e
	}

	key := canonicalPath(tmpl)
	for _, m := range e.methods {
		k := m + " " + key
		if other, dup := cp.seen[k]; dup {
			fail(configErr(route, "", ErrDuplicateRoute, "%s %s is already registered by %s", m, full, other))
			return
		}
		cp.seen[k] = route
	}

	e.serve = chain(es.policy.middlewares, e.run)
	if err := cp.register(e); err != nil {
		fail(err)
		return
	}
	cp.endpoints = append(cp.endpoints, e)
}

// register adds e to the chi router. chi panics on patterns it cannot
// represent; those become configuration errors.
func (cp *compiler) register(e *endpoint) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = configErr(e.route, "", ErrInvalidPath, "%v", r)
		}
	}()
	for _, m := range e.methods {
		cp.router.MethodFunc(m, e.tmpl.pattern, e.ServeHTTP)
	}
	return nil
}

// canonicalPath identifies a template regardless of parameter names.
func canonicalPath(t *pathTemplate) string {
	var b strings.Builder
	for _, seg := range t.segments {
		if seg.param < 0 {
			b.WriteString(seg.literal)
			continue
		}
		b.WriteString("{" + t.params[seg.param].typ + "}")
	}
	return b.String()
}

func chain(mws []Middleware, h HandlerFunc) HandlerFunc {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

func reversed[S ~[]E, E any](s S) S {
	out := slices.Clone(s)
	slices.Reverse(out)
	return out
}

// fallbackErrKey carries the 404 or 405 error of an unmatched request.
type fallbackErrKey struct{}

// serveFallback renders unmatched requests through the policy of the
// innermost application whose prefix covers the path.
func (a *App) serveFallback(status int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var err error
		if status == http.StatusMethodNotAllowed {
			err = &MethodNotAllowedError{Method: r.Method, Allowed: a.allowedMethods(r.URL.Path)}
		} else {
			err = ErrNotFound(http.StatusText(http.StatusNotFound))
		}
		r = r.WithContext(context.WithValue(r.Context(), fallbackErrKey{}, err))
		a.fallbackFor(r.URL.Path).ServeHTTP(w, r)
	}
}

func (a *App) fallbackFor(path string) *endpoint {
	best := a.fallbacks[0]
	for _, fb := range a.fallbacks[1:] {
		if hasPathPrefix(path, fb.path) && len(fb.path) > len(best.path) {
			best = fb
		}
	}
	return best
}

func hasPathPrefix(path, prefix string) bool {
	if prefix == "/" {
		return true
	}
	return path == prefix || strings.HasPrefix(path, prefix+"/")
}

// allowedMethods lists the methods registered for path.
func (a *App) allowedMethods(path string) []string {
	var out []string
	for _, m := range allMethods {
		if a.router.Match(chi.NewRouteContext(), m, path) {
			out = append(out, m)
		}
	}
	return out
}
