package resolver

import (
	"context"
	"fmt"

	"github.com/axonops/fact-resolver/internal/facts"
	"github.com/axonops/fact-resolver/internal/resolution"
)

// Execute invokes a resolver with ad-hoc inputs, consulting and populating
// its cache policy when one is declared. It is used by tests and cache
// probes; the planner calls Run directly against a merged context.
//
// Provided inputs are injected straight into the context as solid cells,
// overwriting prior state and bypassing the merge algebra. After a cache hit
// or a run, provided inputs that are also declared outputs are removed from
// the context so the caller can apply the returned outputs through a normal
// merge. Cache failures degrade to cache-miss semantics.
func Execute(ctx context.Context, r Resolver, rctx *resolution.Context, provided []resolution.Output) ([]resolution.Output, error) {
	spec := r.Spec()

	providedIDs := make(map[facts.ID]bool, len(provided))
	for _, out := range provided {
		providedIDs[out.FactID] = true
		fv := &facts.Value{
			FactID:     out.FactID,
			Values:     []any{out.Value},
			Status:     facts.StatusSolid,
			Confidence: out.EffectiveConfidence(),
		}
		if out.Source != "" {
			fv.Provenance = []string{out.Source}
		}
		if out.Note != "" {
			fv.Notes = []string{out.Note}
		}
		rctx.State[out.FactID] = fv
	}

	cleanup := func() {
		for _, fid := range spec.OutputFacts {
			if providedIDs[fid] {
				delete(rctx.State, fid)
			}
		}
	}

	var cacheKey string
	if spec.CachePolicy != nil {
		key, err := spec.CachePolicy.BuildCacheKey(rctx, spec.InputFacts)
		if err == nil {
			cacheKey = key
			if cached, err := spec.CachePolicy.Fetch(ctx, key); err == nil && cached != nil {
				cleanup()
				return cached, nil
			}
		}
	}

	outputs, err := r.Run(rctx)
	if err != nil {
		return nil, fmt.Errorf("resolver %q failed: %w", spec.Name, err)
	}
	if spec.CachePolicy != nil && cacheKey != "" {
		// A failing store never blocks resolution.
		_ = spec.CachePolicy.Store(ctx, cacheKey, outputs)
	}
	cleanup()
	return outputs, nil
}
