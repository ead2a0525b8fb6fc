package cache

import (
	"context"

	"github.com/axonops/fact-resolver/internal/facts"
	"github.com/axonops/fact-resolver/internal/resolution"
)

// Instrumented decorates a policy with an access observer.
type Instrumented struct {
	Policy  Policy
	Observe func(hit bool)
}

// WithObserver wraps a policy so every fetch outcome is reported. A nil
// policy or observer returns the policy unchanged.
func WithObserver(p Policy, observe func(hit bool)) Policy {
	if p == nil || observe == nil {
		return p
	}
	return &Instrumented{Policy: p, Observe: observe}
}

// BuildCacheKey delegates to the wrapped policy.
func (i *Instrumented) BuildCacheKey(rctx *resolution.Context, inputFacts []facts.ID) (string, error) {
	return i.Policy.BuildCacheKey(rctx, inputFacts)
}

// Fetch delegates and reports whether the access hit.
func (i *Instrumented) Fetch(ctx context.Context, key string) ([]resolution.Output, error) {
	outputs, err := i.Policy.Fetch(ctx, key)
	i.Observe(err == nil && outputs != nil)
	return outputs, err
}

// Store delegates to the wrapped policy.
func (i *Instrumented) Store(ctx context.Context, key string, outputs []resolution.Output) error {
	return i.Policy.Store(ctx, key, outputs)
}

// Clear delegates to the wrapped policy.
func (i *Instrumented) Clear(ctx context.Context) error {
	return i.Policy.Clear(ctx)
}
