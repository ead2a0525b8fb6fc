// Package engine assembles the schema registry, resolver registry, merge
// engine, and planner into the resolution service the HTTP layer consumes.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/axonops/fact-resolver/internal/audit"
	"github.com/axonops/fact-resolver/internal/facts"
	"github.com/axonops/fact-resolver/internal/metrics"
	"github.com/axonops/fact-resolver/internal/planner"
	"github.com/axonops/fact-resolver/internal/resolution"
	"github.com/axonops/fact-resolver/internal/resolver"
)

// SourceInput tags caller-supplied seed values in provenance.
const SourceInput = "input"

// Engine is the fact-resolution service.
type Engine struct {
	schemas   *facts.Registry
	resolvers *resolver.Registry
	merger    *resolution.Merger
	logger    *slog.Logger
	metrics   *metrics.Metrics
	audit     *audit.Logger
}

// Option configures the engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithAudit sets the audit logger.
func WithAudit(a *audit.Logger) Option {
	return func(e *Engine) { e.audit = a }
}

// New creates an engine over the given registries.
func New(schemas *facts.Registry, resolvers *resolver.Registry, opts ...Option) *Engine {
	e := &Engine{
		schemas:   schemas,
		resolvers: resolvers,
		merger:    resolution.NewMerger(schemas),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Schemas returns the engine's schema registry.
func (e *Engine) Schemas() *facts.Registry {
	return e.schemas
}

// Resolvers returns the engine's resolver registry.
func (e *Engine) Resolvers() *resolver.Registry {
	return e.resolvers
}

// SchemaInfo describes one registered fact for API consumers.
type SchemaInfo struct {
	Description string `json:"description"`
	Type        string `json:"type"`
}

// Schema returns a snapshot of the schema registry keyed by fact-id string.
func (e *Engine) Schema() map[string]SchemaInfo {
	out := make(map[string]SchemaInfo, e.schemas.Len())
	for _, id := range e.schemas.IDs() {
		s, ok := e.schemas.Get(id)
		if !ok {
			continue
		}
		out[id.String()] = SchemaInfo{
			Description: s.Description,
			Type:        string(s.Type),
		}
	}
	return out
}

// Result is the outcome of one resolution run.
type Result struct {
	ResolutionID string
	Facts        map[string]any
	Trace        []string
}

// Run resolves the caller's inputs against the required facts: inputs are
// matched to registered fact IDs by string equality (unknown keys pass
// through untouched and fail during merge), merged into a fresh context with
// source "input", and the planner drives resolvers until the requirement is
// met or no progress is possible. Facts carry the final post-normalisation
// values.
func (e *Engine) Run(ctx context.Context, inputs map[string]any, required []string) (*Result, error) {
	start := time.Now()
	rctx := resolution.NewContext()

	// Seed in sorted key order so merge order, and therefore provenance
	// order, is deterministic.
	keys := make([]string, 0, len(inputs))
	for k := range inputs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	seed := make([]resolution.Output, 0, len(inputs))
	for _, k := range keys {
		id, _ := e.schemas.Resolve(k)
		seed = append(seed, resolution.Output{
			FactID: id,
			Value:  inputs[k],
			Source: SourceInput,
		})
	}

	requiredIDs := make([]facts.ID, 0, len(required))
	for _, r := range required {
		id, _ := e.schemas.Resolve(r)
		requiredIDs = append(requiredIDs, id)
	}

	if err := e.merger.Merge(rctx, seed); err != nil {
		e.observeFailure(rctx, keys, required, start, err)
		return nil, fmt.Errorf("failed to seed resolution: %w", err)
	}

	p := planner.New(requiredIDs, nil)
	if e.metrics != nil {
		p.Observer = e.metrics.RecordResolverRun
	}
	planned, err := p.Run(ctx, e.resolvers, e.merger, rctx)
	if err != nil {
		e.observeFailure(rctx, keys, required, start, err)
		return nil, err
	}

	result := &Result{
		ResolutionID: rctx.ID,
		Facts:        make(map[string]any, len(rctx.State)),
		Trace:        planned.Executed,
	}
	for fid, fv := range rctx.State {
		result.Facts[fid.String()] = fv.Value()
	}

	duration := time.Since(start)
	if e.metrics != nil {
		e.metrics.RecordResolution(true, len(planned.Executed), duration)
		for _, fv := range rctx.State {
			e.metrics.RecordFactStatus(string(fv.Status))
		}
	}
	e.audit.Log(audit.Event{
		EventType:    audit.EventResolutionRun,
		ResolutionID: rctx.ID,
		Inputs:       keys,
		Required:     required,
		Trace:        planned.Executed,
		Facts:        len(result.Facts),
		Duration:     duration.Milliseconds(),
	})
	e.logger.Info("resolution complete",
		slog.String("resolution_id", rctx.ID),
		slog.Int("resolvers", len(planned.Executed)),
		slog.Int("facts", len(result.Facts)),
		slog.Duration("duration", duration),
	)

	return result, nil
}

func (e *Engine) observeFailure(rctx *resolution.Context, inputs, required []string, start time.Time, err error) {
	duration := time.Since(start)
	if e.metrics != nil {
		e.metrics.RecordResolution(false, len(rctx.Trace), duration)
	}
	e.audit.Log(audit.Event{
		EventType:    audit.EventResolutionFailure,
		ResolutionID: rctx.ID,
		Inputs:       inputs,
		Required:     required,
		Trace:        rctx.Trace,
		Duration:     duration.Milliseconds(),
		Error:        err.Error(),
	})
	e.logger.Error("resolution failed",
		slog.String("resolution_id", rctx.ID),
		slog.String("error", err.Error()),
	)
}

// ResolverInfo describes one registered resolver for API consumers.
type ResolverInfo struct {
	Name        string             `json:"name"`
	Description string             `json:"description"`
	Inputs      []string           `json:"inputs"`
	Outputs     []string           `json:"outputs"`
	Impact      map[string]float64 `json:"impact"`
	Cost        float64            `json:"cost"`
}

// Explain returns descriptors for every registered resolver, sorted by name.
func (e *Engine) Explain() []ResolverInfo {
	resolvers := e.resolvers.Resolvers()
	out := make([]ResolverInfo, 0, len(resolvers))
	for _, r := range resolvers {
		spec := r.Spec()
		impact := make(map[string]float64, len(spec.Impact))
		for fid, weight := range spec.Impact {
			impact[fid.String()] = weight
		}
		out = append(out, ResolverInfo{
			Name:        spec.Name,
			Description: spec.Description,
			Inputs:      facts.Strings(spec.InputFacts),
			Outputs:     facts.Strings(spec.OutputFacts),
			Impact:      impact,
			Cost:        spec.EffectiveCost(),
		})
	}
	return out
}

// IsHealthy reports whether the engine can serve resolutions.
func (e *Engine) IsHealthy(ctx context.Context) bool {
	return e.schemas != nil && e.resolvers != nil
}
