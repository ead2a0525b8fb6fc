// Package planner schedules resolvers greedily by benefit/cost until every
// required fact is materialised or no further progress is possible.
package planner

import (
	"context"
	"fmt"
	"time"

	"github.com/axonops/fact-resolver/internal/facts"
	"github.com/axonops/fact-resolver/internal/resolution"
	"github.com/axonops/fact-resolver/internal/resolver"
)

// Planner drives one resolution: it repeatedly picks the highest-scoring
// eligible resolver, runs it, and merges its outputs.
type Planner struct {
	required map[facts.ID]bool
	priority map[facts.ID]float64

	// Observer, when set, receives each resolver execution outcome.
	Observer func(name string, duration time.Duration, err error)
}

// Result is the outcome of a planner run.
type Result struct {
	Executed []string
}

// New creates a planner for the given required facts and user priorities.
// Facts absent from priority weigh 1.0.
func New(required []facts.ID, priority map[facts.ID]float64) *Planner {
	req := make(map[facts.ID]bool, len(required))
	for _, fid := range required {
		req[fid] = true
	}
	if priority == nil {
		priority = map[facts.ID]float64{}
	}
	return &Planner{required: req, priority: priority}
}

// Score rates a resolver: the priority-weighted sum of its output impacts
// divided by its cost.
func (p *Planner) Score(r resolver.Resolver) float64 {
	spec := r.Spec()
	var impact float64
	for _, fid := range spec.OutputFacts {
		weight := 1.0
		if w, ok := p.priority[fid]; ok {
			weight = w
		}
		impact += spec.Impact[fid] * weight
	}
	return impact / spec.EffectiveCost()
}

// Run executes the greedy loop. Each resolver is selected at most once, so
// the loop terminates within len(registry) iterations. With no required
// facts, every resolver whose inputs ever become available runs. Ties break
// deterministically by name; ctx cancellation is honoured between
// iterations. A resolver failure propagates with the partial trace already
// recorded on rctx.
func (p *Planner) Run(ctx context.Context, reg *resolver.Registry, merger *resolution.Merger, rctx *resolution.Context) (*Result, error) {
	result := &Result{}

	pending := make(map[string]bool, reg.Len())
	for _, name := range reg.Names() {
		pending[name] = true
	}

	for {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if len(p.required) > 0 && p.satisfied(rctx) {
			break
		}

		best := p.pick(reg, rctx, pending)
		if best == nil {
			break
		}
		name := best.Spec().Name
		delete(pending, name)

		runStart := time.Now()
		outputs, err := best.Run(rctx)
		if p.Observer != nil {
			p.Observer(name, time.Since(runStart), err)
		}
		if err != nil {
			return result, fmt.Errorf("resolver %q failed: %w", name, err)
		}
		if err := merger.Merge(rctx, outputs); err != nil {
			return result, err
		}
		rctx.AddTrace(name)
		result.Executed = append(result.Executed, name)
	}

	return result, nil
}

// pick returns the eligible pending resolver with the highest score,
// breaking ties by ascending name. Registry names are iterated in sorted
// order so a whole run is reproducible.
func (p *Planner) pick(reg *resolver.Registry, rctx *resolution.Context, pending map[string]bool) resolver.Resolver {
	var best resolver.Resolver
	var bestScore float64
	for _, name := range reg.Names() {
		if !pending[name] {
			continue
		}
		r, ok := reg.Get(name)
		if !ok || !resolver.Eligible(r, rctx) {
			continue
		}
		score := p.Score(r)
		if best == nil || score > bestScore {
			best = r
			bestScore = score
		}
	}
	return best
}

func (p *Planner) satisfied(rctx *resolution.Context) bool {
	for fid := range p.required {
		if !rctx.Has(fid) {
			return false
		}
	}
	return true
}
