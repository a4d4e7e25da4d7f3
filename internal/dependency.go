package internal

import (
	"errors"
	"fmt"
	"maps"
	"net/http"
	"reflect"
	"slices"
	"strings"

	"github.com/dmitrymomot/keel/pkg/validator"
)

// Provider produces a dependency value. Providers are functions of the form
// func(ctx[, in]) (T, error); their input struct is bound like a handler's.
type Provider struct {
	fn       any
	value    any
	shape    *callShape
	err      error
	isValue  bool
	blocking bool
}

// Provide wraps fn as a dependency provider.
//
// Example:
//
//	keel.WithDependency("db", keel.Provide(func(ctx context.Context) (*sql.DB, error) {
//	    return pool, nil
//	}))
func Provide(fn any) *Provider {
	shape, err := analyzeProvider(fn)
	return &Provider{fn: fn, shape: shape, err: err}
}

// ProvideBlocking is Provide for providers that block. They run on the
// application worker pool.
func ProvideBlocking(fn any) *Provider {
	p := Provide(fn)
	p.blocking = true
	return p
}

// Value provides a constant.
func Value(v any) *Provider {
	return &Provider{value: v, isValue: true}
}

// Type returns the type of the provided value, or nil when unknown.
func (p *Provider) Type() reflect.Type {
	switch {
	case p == nil:
		return nil
	case p.isValue:
		if p.value == nil {
			return nil
		}
		return reflect.TypeOf(p.value)
	case p.shape != nil:
		return p.shape.out
	}
	return nil
}

// boundProvider is a provider compiled against one endpoint.
type boundProvider struct {
	prov *Provider
	plan *plan
	err  error
	key  string
	deps []string
}

// bindProviders compiles every visible provider for the endpoint. Errors
// are kept on the bound provider and only reported for providers in use.
func bindProviders(visible map[string]*Provider, env *planEnv) map[string]*boundProvider {
	out := make(map[string]*boundProvider, len(visible))
	for key, prov := range visible {
		bp := &boundProvider{key: key, prov: prov}
		out[key] = bp
		switch {
		case prov == nil:
			bp.err = fmt.Errorf("%w: nil provider", ErrInvalidProvider)
			continue
		case prov.err != nil:
			bp.err = prov.err
			continue
		case prov.isValue || prov.shape.in == nil:
			continue
		}

		penv := *env
		penv.route = env.route + " dependency " + key
		p, err := buildPlan(prov.shape.in, &penv)
		if err != nil {
			bp.err = err
			continue
		}
		bp.plan = p
		for _, d := range p.deps {
			if _, ok := visible[d.key]; ok {
				bp.deps = append(bp.deps, d.key)
			}
		}
		if err := checkDependencyTypes(p, visible, penv.route); err != nil {
			bp.err = err
		}
	}
	markCycles(out)
	return out
}

// markCycles records ErrCycleDetected on every provider that is part of a
// dependency cycle.
func markCycles(bps map[string]*boundProvider) {
	const (
		visiting = 1
		done     = 2
	)
	state := make(map[string]int, len(bps))
	var stack []string

	var visit func(key string)
	visit = func(key string) {
		bp := bps[key]
		if bp == nil || state[key] == done {
			return
		}
		if state[key] == visiting {
			i := slices.Index(stack, key)
			path := append(slices.Clone(stack[i:]), key)
			err := fmt.Errorf("%w: %s", ErrCycleDetected, strings.Join(path, " -> "))
			for _, k := range stack[i:] {
				if bps[k].err == nil {
					bps[k].err = err
				}
			}
			return
		}
		state[key] = visiting
		stack = append(stack, key)
		for _, d := range bp.deps {
			visit(d)
		}
		stack = stack[:len(stack)-1]
		state[key] = done
	}

	for _, key := range slices.Sorted(maps.Keys(bps)) {
		visit(key)
	}
}

// checkDependencies reports the first broken provider reachable from p.
func checkDependencies(p *plan, bps map[string]*boundProvider) error {
	seen := make(map[string]bool)
	var walk func(keys []string) error
	walk = func(keys []string) error {
		for _, key := range keys {
			if seen[key] {
				continue
			}
			seen[key] = true
			bp, ok := bps[key]
			if !ok {
				continue
			}
			if bp.err != nil {
				return bp.err
			}
			if err := walk(bp.deps); err != nil {
				return err
			}
		}
		return nil
	}
	keys := make([]string, 0, len(p.deps))
	for _, d := range p.deps {
		keys = append(keys, d.key)
	}
	return walk(keys)
}

// checkDependencyTypes rejects dependency fields that cannot hold what their
// provider returns.
func checkDependencyTypes(p *plan, visible map[string]*Provider, route string) error {
	for _, d := range p.deps {
		pt := visible[d.key].Type()
		if pt == nil || pt.Kind() == reflect.Interface {
			continue
		}
		if pt.AssignableTo(d.typ) || (d.typ.Kind() == reflect.Pointer && pt.AssignableTo(d.typ.Elem())) {
			continue
		}
		return configErr(route, d.goName, ErrInvalidProvider, "dependency %q provides %s, field is %s", d.key, pt, d.typ)
	}
	return nil
}

// resolve returns the value of key for this request, invoking its provider
// at most once per request.
func (e *endpoint) resolve(c *requestContext, key string) (any, error) {
	if v, ok := c.deps[key]; ok {
		return v, nil
	}
	bp, ok := e.providers[key]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDependency, key)
	}
	if bp.err != nil {
		return nil, &DependencyError{Key: key, Err: bp.err}
	}
	if err := c.checkpoint(); err != nil {
		return nil, err
	}

	v, err := e.invokeProvider(c, bp)
	if err != nil {
		return nil, wrapDependencyErr(key, err)
	}
	if c.deps == nil {
		c.deps = make(map[string]any)
	}
	c.deps[key] = v
	return v, nil
}

func (e *endpoint) invokeProvider(c *requestContext, bp *boundProvider) (any, error) {
	if bp.prov.isValue {
		return bp.prov.value, nil
	}

	var in reflect.Value
	if bp.plan != nil {
		in = reflect.New(bp.plan.typ).Elem()
		if err := e.bind(c, bp.plan, in, bp.key); err != nil {
			return nil, err
		}
	}

	call := func() (any, error) {
		out, err := bp.prov.shape.call(c, in)
		if err != nil {
			return nil, err
		}
		return out.Interface(), nil
	}
	if bp.prov.blocking {
		return doBlocking(c, e.app.pool, call)
	}
	return call()
}

// wrapDependencyErr classifies a provider failure. Authentication and
// permission failures keep their kind, validation failures are reported under
// the provider key, and everything else becomes a DependencyError (500).
func wrapDependencyErr(key string, err error) error {
	if errors.Is(err, ErrClientDisconnected) {
		return err
	}

	var ve *ValidationError
	if errors.As(err, &ve) {
		if ve.Dependency != "" {
			return err
		}
		return tagDependency(ve, key)
	}
	if ves := validator.ExtractValidationErrors(err); ves != nil {
		out := &ValidationError{Dependency: key, Status: http.StatusUnprocessableEntity}
		for _, v := range ves {
			out.Errors = append(out.Errors, FieldError{
				Location: []string{"dependency", key},
				Field:    v.Field,
				Message:  v.Message,
			})
		}
		return out
	}

	var de *DependencyError
	if errors.As(err, &de) {
		return err
	}
	switch KindOf(err) {
	case KindNotAuthenticated, KindPermissionDenied, KindImproperlyConfigured, KindPanic, KindTimeout:
		return err
	}
	return &DependencyError{Key: key, Err: err}
}
