package resolution

import (
	"fmt"

	"github.com/axonops/fact-resolver/internal/facts"
)

// Merger applies resolver outputs to a context under the rules of a schema
// registry.
type Merger struct {
	schemas *facts.Registry
}

// NewMerger creates a merge engine bound to a schema registry.
func NewMerger(schemas *facts.Registry) *Merger {
	return &Merger{schemas: schemas}
}

// Merge ingests outputs in order, mutating ctx in place. An output for an
// unregistered fact aborts the merge with facts.ErrUnknownFact; state merged
// before the offending output remains observable.
//
// For each output the value is normalised, then one of three cases applies:
// insertion (fact absent), reinforcement (value already observed), or
// divergence (new distinct value, moving status to ambiguous or conflict per
// the schema). Provenance and notes append in arrival order; confidence only
// ever rises.
func (m *Merger) Merge(ctx *Context, outputs []Output) error {
	for _, out := range outputs {
		schema, ok := m.schemas.Get(out.FactID)
		if !ok {
			return fmt.Errorf("%w: %s", facts.ErrUnknownFact, out.FactID)
		}
		normalized := schema.ApplyNormalization(out.Value)

		var note string
		if err := schema.CheckConstraint(normalized); err != nil {
			note = fmt.Sprintf("constraint violation: %v", err)
		}

		existing, present := ctx.State[out.FactID]
		if !present {
			fv := &facts.Value{
				FactID:     out.FactID,
				Values:     []any{normalized},
				Status:     facts.StatusSolid,
				Confidence: out.EffectiveConfidence(),
			}
			appendMeta(fv, out, note)
			ctx.State[out.FactID] = fv
			continue
		}

		if containsValue(schema, existing.Values, normalized) {
			// Reinforcement: value and status unchanged, even when the fact
			// is already ambiguous or in conflict.
			appendMeta(existing, out, note)
			existing.Confidence = max(existing.Confidence, out.EffectiveConfidence())
			continue
		}

		existing.Values = append(existing.Values, normalized)
		if schema.AllowAmbiguity {
			existing.Status = facts.StatusAmbiguous
		} else {
			existing.Status = facts.StatusConflict
		}
		appendMeta(existing, out, note)
		existing.Confidence = max(existing.Confidence, out.EffectiveConfidence())
	}
	return nil
}

// appendMeta appends the output's source and note, plus any constraint note,
// preserving arrival order. Empty entries are skipped.
func appendMeta(fv *facts.Value, out Output, constraintNote string) {
	if out.Source != "" {
		fv.Provenance = append(fv.Provenance, out.Source)
	}
	if out.Note != "" {
		fv.Notes = append(fv.Notes, out.Note)
	}
	if constraintNote != "" {
		fv.Notes = append(fv.Notes, constraintNote)
	}
}

func containsValue(schema *facts.Schema, values []any, v any) bool {
	for _, existing := range values {
		if schema.ValuesEqual(existing, v) {
			return true
		}
	}
	return false
}
