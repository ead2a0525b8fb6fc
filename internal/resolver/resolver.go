// Package resolver defines resolver metadata, the resolver capability, the
// registry binding names to implementations, and the ad-hoc execution
// protocol with cache support.
package resolver

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/axonops/fact-resolver/internal/cache"
	"github.com/axonops/fact-resolver/internal/facts"
	"github.com/axonops/fact-resolver/internal/resolution"
)

// ErrDuplicateResolver is returned when registering a second resolver under
// an already-bound name.
var ErrDuplicateResolver = errors.New("resolver already registered")

// Spec is the declarative metadata of a resolver.
type Spec struct {
	Name        string
	Description string
	InputFacts  []facts.ID
	OutputFacts []facts.ID
	Impact      map[facts.ID]float64
	// Cost is the planner's score denominator. Zero means the default of 1.0.
	Cost        float64
	CachePolicy cache.Policy
}

// Validate checks the spec's structural invariants.
func (s *Spec) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("resolver spec requires a name")
	}
	if s.Cost < 0 {
		return fmt.Errorf("resolver %q: cost must be positive, got %v", s.Name, s.Cost)
	}
	return nil
}

// EffectiveCost returns the cost with the default applied.
func (s *Spec) EffectiveCost() float64 {
	if s.Cost == 0 {
		return 1.0
	}
	return s.Cost
}

// Resolver is the capability a concrete resolver exposes: its spec and a
// pure-ish run over the current context. Implementations that need custom
// eligibility additionally implement CanRun(*resolution.Context) bool.
type Resolver interface {
	Spec() *Spec
	Run(rctx *resolution.Context) ([]resolution.Output, error)
}

// Eligible reports whether a resolver can run against the context: every
// declared input fact is present, regardless of its status. A resolver is
// never filtered by confidence or by ambiguous/conflicting inputs; coping
// with those is the resolver's own job. Implementations may override via a
// CanRun method.
func Eligible(r Resolver, rctx *resolution.Context) bool {
	if custom, ok := r.(interface {
		CanRun(*resolution.Context) bool
	}); ok {
		return custom.CanRun(rctx)
	}
	return rctx.HasAll(r.Spec().InputFacts)
}

// Registry binds a single resolver instance per spec name.
type Registry struct {
	mu        sync.RWMutex
	resolvers map[string]Resolver
}

// NewRegistry creates an empty resolver registry.
func NewRegistry() *Registry {
	return &Registry{resolvers: make(map[string]Resolver)}
}

// Register binds a resolver under its spec name. Registering a second
// resolver under the same name fails with ErrDuplicateResolver.
func (r *Registry) Register(res Resolver) error {
	spec := res.Spec()
	if err := spec.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.resolvers[spec.Name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateResolver, spec.Name)
	}
	r.resolvers[spec.Name] = res
	return nil
}

// MustRegister registers a resolver and panics on failure. Intended for
// startup wiring of bundled packs.
func (r *Registry) MustRegister(res Resolver) {
	if err := r.Register(res); err != nil {
		panic(err)
	}
}

// Get returns the resolver bound to a name.
func (r *Registry) Get(name string) (Resolver, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	res, ok := r.resolvers[name]
	return res, ok
}

// Names returns all bound resolver names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.resolvers))
	for name := range r.resolvers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Resolvers returns all bound resolvers, sorted by name.
func (r *Registry) Resolvers() []Resolver {
	names := r.Names()
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Resolver, 0, len(names))
	for _, name := range names {
		out = append(out, r.resolvers[name])
	}
	return out
}

// Len returns the number of bound resolvers.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.resolvers)
}

// DefaultRegistry is the conventional process-wide registry used when no
// explicit registry is wired.
var DefaultRegistry = NewRegistry()

// Register registers a resolver into the default registry.
func Register(res Resolver) error {
	return DefaultRegistry.Register(res)
}

// Func adapts a spec and a function into a Resolver.
type Func struct {
	ResolverSpec *Spec
	RunFunc      func(rctx *resolution.Context) ([]resolution.Output, error)
}

// Spec returns the resolver's spec.
func (f *Func) Spec() *Spec {
	return f.ResolverSpec
}

// Run invokes the wrapped function.
func (f *Func) Run(rctx *resolution.Context) ([]resolution.Output, error) {
	return f.RunFunc(rctx)
}
