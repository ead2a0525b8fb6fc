// Package cache defines the resolver output cache policies: a shared
// interface, the canonical cache key, and the serialised payload format the
// backends store.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/axonops/fact-resolver/internal/facts"
	"github.com/axonops/fact-resolver/internal/resolution"
)

// ErrCorruptPayload marks a cache payload that cannot be decoded. Callers
// treat it as a cache miss; a failing cache never blocks resolution.
var ErrCorruptPayload = errors.New("corrupt cache payload")

// Policy is a pluggable memoisation layer keyed by a resolver's observed
// input-fact values. Implementations own their backing store's lifecycle;
// Fetch returns (nil, nil) on a miss.
type Policy interface {
	// BuildCacheKey derives the cache key from the context's current values
	// for the given input facts.
	BuildCacheKey(rctx *resolution.Context, inputFacts []facts.ID) (string, error)

	// Fetch returns the cached outputs for a key, or nil when absent.
	Fetch(ctx context.Context, key string) ([]resolution.Output, error)

	// Store saves outputs under a key with upsert semantics.
	Store(ctx context.Context, key string, outputs []resolution.Output) error

	// Clear removes all cached entries.
	Clear(ctx context.Context) error
}

// BuildKey is the canonical key derivation shared by every policy: the
// canonical JSON of {fact-id-string: value} over the input facts present in
// the context, sorted by fact-id string. Absent input facts are omitted and
// do not contribute to the key.
func BuildKey(rctx *resolution.Context, inputFacts []facts.ID) (string, error) {
	parts := make(map[string]any, len(inputFacts))
	for _, fid := range inputFacts {
		if fv, ok := rctx.State[fid]; ok {
			parts[fid.String()] = fv.Value()
		}
	}
	// encoding/json emits map keys in sorted order, which makes the key
	// canonical.
	b, err := json.Marshal(parts)
	if err != nil {
		return "", fmt.Errorf("failed to build cache key: %w", err)
	}
	return string(b), nil
}

// record is the serialised form of one resolver output.
type record struct {
	FactID     string  `json:"fact_id"`
	Value      any     `json:"value"`
	Source     string  `json:"source,omitempty"`
	Note       string  `json:"note,omitempty"`
	Confidence float64 `json:"confidence"`
}

// EncodeOutputs serialises outputs as the JSON array payload stored by the
// backends.
func EncodeOutputs(outputs []resolution.Output) ([]byte, error) {
	records := make([]record, len(outputs))
	for i, out := range outputs {
		records[i] = record{
			FactID:     out.FactID.String(),
			Value:      out.Value,
			Source:     out.Source,
			Note:       out.Note,
			Confidence: out.EffectiveConfidence(),
		}
	}
	b, err := json.Marshal(records)
	if err != nil {
		return nil, fmt.Errorf("failed to encode cache payload: %w", err)
	}
	return b, nil
}

// DecodeOutputs parses a stored payload back into outputs. Undecodable
// payloads fail with ErrCorruptPayload.
func DecodeOutputs(payload []byte) ([]resolution.Output, error) {
	var records []record
	if err := json.Unmarshal(payload, &records); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptPayload, err)
	}
	outputs := make([]resolution.Output, len(records))
	for i, rec := range records {
		outputs[i] = resolution.Output{
			FactID:     facts.ID(rec.FactID),
			Value:      rec.Value,
			Source:     rec.Source,
			Note:       rec.Note,
			Confidence: rec.Confidence,
		}
	}
	return outputs, nil
}
